package repository

import (
	"context"
	"time"

	"finance-copilot/internal/domain/model"
)

// -----------------------------
// Chat Sessions
// -----------------------------

type ChatSessionRepository interface {
	Save(ctx context.Context, tx Tx, s *model.ChatSession) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.ChatSession, error)
	// ListByUser orders by updated_at descending.
	ListByUser(ctx context.Context, tx Tx, userID string, limit int) ([]*model.ChatSession, error)
	// Delete removes the session and, by cascade, its messages.
	Delete(ctx context.Context, tx Tx, id string) error
	UpdateSummary(ctx context.Context, tx Tx, id, summary string, at time.Time) error

	InsertMessage(ctx context.Context, tx Tx, m *model.ChatMessage) error
	CountMessages(ctx context.Context, tx Tx, sessionID string) (int, error)
	DeleteOldestMessages(ctx context.Context, tx Tx, sessionID string, n int) (int64, error)
	SetMessageCount(ctx context.Context, tx Tx, sessionID string, count int, at time.Time) error
	// ListMessages returns the newest `last` messages in ascending order;
	// last <= 0 returns all of them.
	ListMessages(ctx context.Context, tx Tx, sessionID string, last int) ([]*model.ChatMessage, error)
}
