package repository

import (
	"context"
	"time"

	"finance-copilot/internal/domain/model"
)

// -----------------------------
// Auth (login) sessions
// -----------------------------

type AuthSessionRepository interface {
	Save(ctx context.Context, tx Tx, s *model.AuthSession) error
	// FindByToken returns the session with the given fingerprint, active or not.
	FindByToken(ctx context.Context, tx Tx, userID, tokenHash string) (*model.AuthSession, error)
	Touch(ctx context.Context, tx Tx, id string, at time.Time) error
	// Deactivate flips is_active for one fingerprint; false when nothing matched.
	Deactivate(ctx context.Context, tx Tx, userID, tokenHash string) (bool, error)
	DeactivateAll(ctx context.Context, tx Tx, userID string) (int64, error)
	ListActive(ctx context.Context, tx Tx, userID string, now time.Time) ([]*model.AuthSession, error)
	DeleteExpired(ctx context.Context, tx Tx, now time.Time) (int64, error)
}
