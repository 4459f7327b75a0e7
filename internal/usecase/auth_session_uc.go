package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"finance-copilot/internal/domain"
	"finance-copilot/internal/domain/model"
	"finance-copilot/internal/domain/ports/repository"
	"finance-copilot/internal/infra/logging"
	"finance-copilot/internal/infra/security"
)

// Compile-time check
var _ AuthSessionUseCase = (*authSessionUC)(nil)

// AuthSessionUseCase tracks issued access tokens by fingerprint so they can
// be revoked before they expire.
type AuthSessionUseCase interface {
	Create(ctx context.Context, userID, token string) (*model.AuthSession, error)
	// Validate reports whether the token's session is active and unexpired
	// and refreshes its last activity when it is.
	Validate(ctx context.Context, userID, token string) (bool, error)
	Invalidate(ctx context.Context, userID, token string) (bool, error)
	InvalidateAll(ctx context.Context, userID string) (int64, error)
	ListActive(ctx context.Context, userID string) ([]*model.AuthSession, error)
	CleanupExpired(ctx context.Context) (int64, error)
}

type authSessionUC struct {
	sessions repository.AuthSessionRepository
	log      *zerolog.Logger
	now      func() time.Time
}

func NewAuthSessionUseCase(sessions repository.AuthSessionRepository, logger *zerolog.Logger) *authSessionUC {
	return &authSessionUC{
		sessions: sessions,
		log:      logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (a *authSessionUC) Create(ctx context.Context, userID, token string) (*model.AuthSession, error) {
	defer logging.TraceDuration(a.log, "AuthSessionUC.Create")()
	s := model.NewAuthSession(userID, security.Fingerprint(token), a.now())
	if err := a.sessions.Save(ctx, nil, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (a *authSessionUC) Validate(ctx context.Context, userID, token string) (bool, error) {
	defer logging.TraceDuration(a.log, "AuthSessionUC.Validate")()
	s, err := a.sessions.FindByToken(ctx, nil, userID, security.Fingerprint(token))
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	now := a.now()
	if !s.Valid(now) {
		return false, nil
	}
	if err := a.sessions.Touch(ctx, nil, s.ID, now); err != nil {
		logging.With(ctx, a.log).Warn().Err(err).Msg("failed to refresh session activity")
	}
	return true, nil
}

func (a *authSessionUC) Invalidate(ctx context.Context, userID, token string) (bool, error) {
	defer logging.TraceDuration(a.log, "AuthSessionUC.Invalidate")()
	return a.sessions.Deactivate(ctx, nil, userID, security.Fingerprint(token))
}

func (a *authSessionUC) InvalidateAll(ctx context.Context, userID string) (int64, error) {
	defer logging.TraceDuration(a.log, "AuthSessionUC.InvalidateAll")()
	return a.sessions.DeactivateAll(ctx, nil, userID)
}

func (a *authSessionUC) ListActive(ctx context.Context, userID string) ([]*model.AuthSession, error) {
	defer logging.TraceDuration(a.log, "AuthSessionUC.ListActive")()
	return a.sessions.ListActive(ctx, nil, userID, a.now())
}

func (a *authSessionUC) CleanupExpired(ctx context.Context) (int64, error) {
	defer logging.TraceDuration(a.log, "AuthSessionUC.CleanupExpired")()
	n, err := a.sessions.DeleteExpired(ctx, nil, a.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		a.log.Info().Int64("deleted", n).Msg("expired auth sessions removed")
	}
	return n, nil
}
