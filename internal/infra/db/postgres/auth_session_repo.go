package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"finance-copilot/internal/domain/model"
	"finance-copilot/internal/domain/ports/repository"
)

var _ repository.AuthSessionRepository = (*AuthSessionRepo)(nil)

type AuthSessionRepo struct {
	pool *pgxpool.Pool
}

func NewAuthSessionRepo(pool *pgxpool.Pool) *AuthSessionRepo {
	return &AuthSessionRepo{pool: pool}
}

func (r *AuthSessionRepo) Save(ctx context.Context, tx repository.Tx, s *model.AuthSession) error {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO auth_sessions (id, user_id, token_hash, created_at, expires_at, is_active, last_activity)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE SET
  is_active = EXCLUDED.is_active,
  last_activity = EXCLUDED.last_activity;`
	if _, err := exec.Exec(ctx, q, s.ID, s.UserID, s.TokenHash, s.CreatedAt, s.ExpiresAt, s.IsActive, s.LastActivity); err != nil {
		return fmt.Errorf("save auth session: %w", err)
	}
	return nil
}

func (r *AuthSessionRepo) FindByToken(ctx context.Context, tx repository.Tx, userID, tokenHash string) (*model.AuthSession, error) {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	const q = `
SELECT id, user_id, token_hash, created_at, expires_at, is_active, last_activity
  FROM auth_sessions
 WHERE user_id = $1 AND token_hash = $2
 ORDER BY created_at DESC
 LIMIT 1;`
	var s model.AuthSession
	if err := exec.QueryRow(ctx, q, userID, tokenHash).Scan(
		&s.ID, &s.UserID, &s.TokenHash, &s.CreatedAt, &s.ExpiresAt, &s.IsActive, &s.LastActivity); err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (r *AuthSessionRepo) Touch(ctx context.Context, tx repository.Tx, id string, at time.Time) error {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	_, err = exec.Exec(ctx, `UPDATE auth_sessions SET last_activity = $2 WHERE id = $1`, id, at)
	return err
}

func (r *AuthSessionRepo) Deactivate(ctx context.Context, tx repository.Tx, userID, tokenHash string) (bool, error) {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return false, err
	}
	tag, err := exec.Exec(ctx,
		`UPDATE auth_sessions SET is_active = FALSE WHERE user_id = $1 AND token_hash = $2 AND is_active`,
		userID, tokenHash)
	if err != nil {
		return false, fmt.Errorf("deactivate session: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *AuthSessionRepo) DeactivateAll(ctx context.Context, tx repository.Tx, userID string) (int64, error) {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return 0, err
	}
	tag, err := exec.Exec(ctx, `UPDATE auth_sessions SET is_active = FALSE WHERE user_id = $1 AND is_active`, userID)
	if err != nil {
		return 0, fmt.Errorf("deactivate all sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *AuthSessionRepo) ListActive(ctx context.Context, tx repository.Tx, userID string, now time.Time) ([]*model.AuthSession, error) {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	const q = `
SELECT id, user_id, token_hash, created_at, expires_at, is_active, last_activity
  FROM auth_sessions
 WHERE user_id = $1 AND is_active AND expires_at > $2
 ORDER BY last_activity DESC;`
	rows, err := exec.Query(ctx, q, userID, now)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()
	var out []*model.AuthSession
	for rows.Next() {
		var s model.AuthSession
		if err := rows.Scan(&s.ID, &s.UserID, &s.TokenHash, &s.CreatedAt, &s.ExpiresAt, &s.IsActive, &s.LastActivity); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

func (r *AuthSessionRepo) DeleteExpired(ctx context.Context, tx repository.Tx, now time.Time) (int64, error) {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return 0, err
	}
	tag, err := exec.Exec(ctx, `DELETE FROM auth_sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
