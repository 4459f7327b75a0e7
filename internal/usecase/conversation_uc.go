package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"finance-copilot/internal/domain"
	"finance-copilot/internal/domain/model"
	"finance-copilot/internal/domain/ports/repository"
	"finance-copilot/internal/infra/logging"
)

// Compile-time check
var _ ConversationUseCase = (*conversationUC)(nil)

// ConversationUseCase persists chat sessions and their messages. Every call
// is scoped to the owning user; a foreign session looks like a missing one.
type ConversationUseCase interface {
	CreateSession(ctx context.Context, userID, firstMessage string) (*model.ChatSession, error)
	GetSession(ctx context.Context, userID, sessionID string) (*model.ChatSession, error)
	ListSessions(ctx context.Context, userID string, limit int) ([]*model.ChatSession, error)
	// Messages returns the newest limit messages oldest first; limit <= 0 means all.
	Messages(ctx context.Context, userID, sessionID string, limit int) ([]*model.ChatMessage, error)
	AppendMessage(ctx context.Context, userID, sessionID, role, content string) (*model.ChatMessage, error)
	UpdateSummary(ctx context.Context, userID, sessionID, summary string) error
	DeleteSession(ctx context.Context, userID, sessionID string) error
}

const defaultSessionListLimit = 50

type conversationUC struct {
	chats repository.ChatSessionRepository
	tm    repository.TransactionManager
	log   *zerolog.Logger
}

func NewConversationUseCase(chats repository.ChatSessionRepository, tm repository.TransactionManager, logger *zerolog.Logger) *conversationUC {
	return &conversationUC{chats: chats, tm: tm, log: logger}
}

func (c *conversationUC) CreateSession(ctx context.Context, userID, firstMessage string) (*model.ChatSession, error) {
	defer logging.TraceDuration(c.log, "ConversationUC.CreateSession")()
	s := model.NewChatSession(userID, firstMessage)
	if err := c.chats.Save(ctx, nil, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (c *conversationUC) GetSession(ctx context.Context, userID, sessionID string) (*model.ChatSession, error) {
	return c.owned(ctx, nil, userID, sessionID)
}

func (c *conversationUC) owned(ctx context.Context, tx repository.Tx, userID, sessionID string) (*model.ChatSession, error) {
	if !model.ValidID(sessionID) {
		return nil, domain.ErrNotFound
	}
	s, err := c.chats.FindByID(ctx, tx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return s, nil
}

func (c *conversationUC) ListSessions(ctx context.Context, userID string, limit int) ([]*model.ChatSession, error) {
	defer logging.TraceDuration(c.log, "ConversationUC.ListSessions")()
	if limit <= 0 {
		limit = defaultSessionListLimit
	}
	out, err := c.chats.ListByUser(ctx, nil, userID, limit)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []*model.ChatSession{}
	}
	return out, nil
}

func (c *conversationUC) Messages(ctx context.Context, userID, sessionID string, limit int) ([]*model.ChatMessage, error) {
	defer logging.TraceDuration(c.log, "ConversationUC.Messages")()
	if _, err := c.owned(ctx, nil, userID, sessionID); err != nil {
		return nil, err
	}
	out, err := c.chats.ListMessages(ctx, nil, sessionID, limit)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []*model.ChatMessage{}
	}
	return out, nil
}

// AppendMessage prunes, inserts and recounts in one transaction so
// message_count always matches the stored rows.
func (c *conversationUC) AppendMessage(ctx context.Context, userID, sessionID, role, content string) (*model.ChatMessage, error) {
	defer logging.TraceDuration(c.log, "ConversationUC.AppendMessage")()
	if !model.ValidRole(role) {
		return nil, domain.NewValidationError("Role must be user or assistant")
	}
	msg := model.NewChatMessage(sessionID, role, content)

	err := c.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		if _, err := c.owned(ctx, tx, userID, sessionID); err != nil {
			return err
		}
		n, err := c.chats.CountMessages(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if drop := model.PruneCount(n); drop > 0 {
			removed, err := c.chats.DeleteOldestMessages(ctx, tx, sessionID, drop)
			if err != nil {
				return err
			}
			logging.With(ctx, c.log).Debug().Int64("pruned", removed).Str("session_id", sessionID).Msg("session pruned")
		}
		if err := c.chats.InsertMessage(ctx, tx, msg); err != nil {
			return err
		}
		n, err = c.chats.CountMessages(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		return c.chats.SetMessageCount(ctx, tx, sessionID, n, msg.CreatedAt)
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// UpdateSummary replaces the summary; blank text never clears one.
func (c *conversationUC) UpdateSummary(ctx context.Context, userID, sessionID, summary string) error {
	defer logging.TraceDuration(c.log, "ConversationUC.UpdateSummary")()
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return nil
	}
	if _, err := c.owned(ctx, nil, userID, sessionID); err != nil {
		return err
	}
	return c.chats.UpdateSummary(ctx, nil, sessionID, summary, time.Now().UTC())
}

func (c *conversationUC) DeleteSession(ctx context.Context, userID, sessionID string) error {
	defer logging.TraceDuration(c.log, "ConversationUC.DeleteSession")()
	if _, err := c.owned(ctx, nil, userID, sessionID); err != nil {
		return err
	}
	if err := c.chats.Delete(ctx, nil, sessionID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return nil
}
