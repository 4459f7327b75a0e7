package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"finance-copilot/internal/domain/model"
	"finance-copilot/internal/domain/ports/repository"
	"finance-copilot/internal/infra/security"
)

var _ repository.ChatSessionRepository = (*ChatSessionRepo)(nil)

// ChatSessionRepo persists sessions and their messages. When an
// EncryptionService is supplied, message bodies are sealed at rest.
type ChatSessionRepo struct {
	pool *pgxpool.Pool
	enc  *security.EncryptionService
}

func NewChatSessionRepo(pool *pgxpool.Pool, enc *security.EncryptionService) *ChatSessionRepo {
	return &ChatSessionRepo{pool: pool, enc: enc}
}

func (r *ChatSessionRepo) Save(ctx context.Context, tx repository.Tx, s *model.ChatSession) error {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO chat_sessions (id, user_id, title, message_count, summary, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE SET
  title = EXCLUDED.title,
  message_count = EXCLUDED.message_count,
  summary = COALESCE(EXCLUDED.summary, chat_sessions.summary),
  updated_at = EXCLUDED.updated_at;`
	if _, err := exec.Exec(ctx, q, s.ID, s.UserID, s.Title, s.MessageCount, s.Summary, s.CreatedAt, s.UpdatedAt); err != nil {
		return fmt.Errorf("save chat session: %w", err)
	}
	return nil
}

func (r *ChatSessionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.ChatSession, error) {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	const q = `
SELECT id, user_id, title, message_count, summary, created_at, updated_at
  FROM chat_sessions WHERE id = $1;`
	var s model.ChatSession
	if err := exec.QueryRow(ctx, q, id).Scan(
		&s.ID, &s.UserID, &s.Title, &s.MessageCount, &s.Summary, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (r *ChatSessionRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, limit int) ([]*model.ChatSession, error) {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT id, user_id, title, message_count, summary, created_at, updated_at
  FROM chat_sessions
 WHERE user_id = $1
 ORDER BY updated_at DESC
 LIMIT $2;`
	rows, err := exec.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list chat sessions: %w", err)
	}
	defer rows.Close()
	var out []*model.ChatSession
	for rows.Next() {
		var s model.ChatSession
		if err := rows.Scan(&s.ID, &s.UserID, &s.Title, &s.MessageCount, &s.Summary, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

func (r *ChatSessionRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	_, err = exec.Exec(ctx, `DELETE FROM chat_sessions WHERE id = $1`, id)
	return err
}

func (r *ChatSessionRepo) UpdateSummary(ctx context.Context, tx repository.Tx, id, summary string, at time.Time) error {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	_, err = exec.Exec(ctx, `UPDATE chat_sessions SET summary = $2, updated_at = $3 WHERE id = $1`, id, summary, at)
	return err
}

func (r *ChatSessionRepo) InsertMessage(ctx context.Context, tx repository.Tx, m *model.ChatMessage) error {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	content, sealed := m.Content, false
	if r.enc != nil {
		if content, err = r.enc.Encrypt(m.Content); err != nil {
			return fmt.Errorf("seal message: %w", err)
		}
		sealed = true
	}
	const q = `
INSERT INTO chat_messages (id, session_id, role, content, encrypted, created_at)
VALUES ($1,$2,$3,$4,$5,$6);`
	if _, err := exec.Exec(ctx, q, m.ID, m.SessionID, m.Role, content, sealed, m.CreatedAt); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (r *ChatSessionRepo) CountMessages(ctx context.Context, tx repository.Tx, sessionID string) (int, error) {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return 0, err
	}
	var n int
	if err := exec.QueryRow(ctx, `SELECT COUNT(*) FROM chat_messages WHERE session_id = $1`, sessionID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

func (r *ChatSessionRepo) DeleteOldestMessages(ctx context.Context, tx repository.Tx, sessionID string, n int) (int64, error) {
	if n <= 0 {
		return 0, nil
	}
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return 0, err
	}
	const q = `
DELETE FROM chat_messages
 WHERE id IN (
   SELECT id FROM chat_messages
    WHERE session_id = $1
    ORDER BY created_at ASC, id ASC
    LIMIT $2
 );`
	tag, err := exec.Exec(ctx, q, sessionID, n)
	if err != nil {
		return 0, fmt.Errorf("prune messages: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *ChatSessionRepo) SetMessageCount(ctx context.Context, tx repository.Tx, sessionID string, count int, at time.Time) error {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	_, err = exec.Exec(ctx,
		`UPDATE chat_sessions SET message_count = $2, updated_at = $3 WHERE id = $1`,
		sessionID, count, at)
	return err
}

func (r *ChatSessionRepo) ListMessages(ctx context.Context, tx repository.Tx, sessionID string, last int) ([]*model.ChatMessage, error) {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	// Newest-first window, flipped back to chronological order.
	q := `
SELECT id, session_id, role, content, encrypted, created_at FROM (
  SELECT id, session_id, role, content, encrypted, created_at
    FROM chat_messages
   WHERE session_id = $1
   ORDER BY created_at DESC, id DESC
   LIMIT $2
) w ORDER BY created_at ASC, id ASC;`
	var limit any = last
	if last <= 0 {
		limit = nil
	}
	rows, err := exec.Query(ctx, q, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []*model.ChatMessage
	for rows.Next() {
		var (
			m      model.ChatMessage
			sealed bool
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &sealed, &m.CreatedAt); err != nil {
			return nil, err
		}
		if sealed {
			if r.enc == nil {
				return nil, fmt.Errorf("message %s is encrypted but no key is configured", m.ID)
			}
			if m.Content, err = r.enc.Decrypt(m.Content); err != nil {
				return nil, fmt.Errorf("open message %s: %w", m.ID, err)
			}
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}
