package usecase

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"finance-copilot/internal/domain"
	"finance-copilot/internal/domain/model"
	"finance-copilot/internal/domain/ports/repository"
	"finance-copilot/internal/infra/logging"
	"finance-copilot/internal/infra/security"
)

// Compile-time check
var _ AuthUseCase = (*authUC)(nil)

// PasswordHasher hashes and checks account passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) bool
}

// TokenIssuer mints and parses signed access tokens whose subject is a user id.
type TokenIssuer interface {
	Mint(userID, username string) (token string, expiresAt time.Time, err error)
	Parse(raw string) (userID string, err error)
}

type RegisterInput struct {
	Email           string
	Username        string
	Password        string
	ConfirmPassword string
	FullName        *string
	Age             *int
}

type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *model.User
}

// AuthUseCase covers account registration, login and token checks.
type AuthUseCase interface {
	Register(ctx context.Context, in RegisterInput) (*model.User, error)
	VerifyEmail(ctx context.Context, token string) (*model.User, error)
	Login(ctx context.Context, username, password string) (*LoginResult, error)
	// Authenticate resolves a bearer token to an active user.
	Authenticate(ctx context.Context, token string) (*model.User, error)
	Logout(ctx context.Context, userID, token string) error
	LogoutAll(ctx context.Context, userID string) (int64, error)
	Sessions(ctx context.Context, userID string) ([]*model.AuthSession, error)
	Me(ctx context.Context, userID string) (*model.User, error)
}

type authUC struct {
	users    repository.UserRepository
	sessions AuthSessionUseCase
	hasher   PasswordHasher
	tokens   TokenIssuer
	tm       repository.TransactionManager
	log      *zerolog.Logger
}

func NewAuthUseCase(users repository.UserRepository, sessions AuthSessionUseCase, hasher PasswordHasher, tokens TokenIssuer, tm repository.TransactionManager, logger *zerolog.Logger) *authUC {
	return &authUC{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		tokens:   tokens,
		tm:       tm,
		log:      logger,
	}
}

var errBadCredentials = &domain.ValidationError{Reason: "Incorrect username or password", Cause: domain.ErrUnauthorized}

func (a *authUC) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	defer logging.TraceDuration(a.log, "AuthUC.Register")()

	if in.Password != in.ConfirmPassword {
		return nil, domain.NewValidationError("Passwords do not match")
	}
	if utf8.RuneCountInString(in.Password) < model.MinPasswordLen {
		return nil, domain.NewValidationError("Password must be at least 8 characters long")
	}
	if in.Age != nil && (*in.Age < model.MinAge || *in.Age > model.MaxAge) {
		return nil, domain.NewValidationError("Age must be between 13 and 120")
	}
	if strings.TrimSpace(in.Username) == "" {
		return nil, domain.NewValidationError("Username is required")
	}

	hash, err := a.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	user, err := model.NewUser(in.Email, in.Username, hash)
	if err != nil {
		return nil, err
	}
	user.FullName = in.FullName
	user.Age = in.Age
	tok := security.RandomToken(32)
	user.VerificationToken = &tok

	err = a.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		if _, err := a.users.FindByUsername(ctx, tx, user.Username); err == nil {
			return domain.NewValidationError("Username already registered")
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if _, err := a.users.FindByEmail(ctx, tx, user.Email); err == nil {
			return domain.NewValidationError("Email already registered")
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return a.users.Save(ctx, tx, user)
	})
	if errors.Is(err, domain.ErrAlreadyExists) {
		// lost a race with a concurrent registration
		return nil, domain.NewValidationError("Username or email already registered")
	}
	if err != nil {
		return nil, err
	}
	logging.With(ctx, a.log).Info().Str("user_id", user.ID).Msg("user registered")
	return user, nil
}

func (a *authUC) VerifyEmail(ctx context.Context, token string) (*model.User, error) {
	defer logging.TraceDuration(a.log, "AuthUC.VerifyEmail")()
	if strings.TrimSpace(token) == "" {
		return nil, domain.NewValidationError("Verification token is required")
	}
	u, err := a.users.FindByVerificationToken(ctx, nil, token)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NewValidationError("Invalid verification token")
	}
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	u.MarkVerified(now)
	u.UpdatedAt = &now
	if err := a.users.Save(ctx, nil, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (a *authUC) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	defer logging.TraceDuration(a.log, "AuthUC.Login")()
	u, err := a.users.FindByUsername(ctx, nil, strings.TrimSpace(username))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, errBadCredentials
	}
	if err != nil {
		return nil, err
	}
	if !a.hasher.Verify(u.PasswordHash, password) {
		return nil, errBadCredentials
	}
	if !u.IsActive {
		return nil, &domain.ValidationError{Reason: "Inactive user", Cause: domain.ErrForbidden}
	}

	token, exp, err := a.tokens.Mint(u.ID, u.Username)
	if err != nil {
		return nil, err
	}
	if _, err := a.sessions.Create(ctx, u.ID, token); err != nil {
		return nil, err
	}
	logging.With(ctx, a.log).Info().Str("user_id", u.ID).Msg("user logged in")
	return &LoginResult{Token: token, ExpiresAt: exp, User: u}, nil
}

func (a *authUC) Authenticate(ctx context.Context, token string) (*model.User, error) {
	userID, err := a.tokens.Parse(token)
	if err != nil {
		return nil, domain.ErrUnauthorized
	}
	ok, err := a.sessions.Validate(ctx, userID, token)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	u, err := a.users.FindByID(ctx, nil, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, domain.ErrUnauthorized
	}
	return u, nil
}

func (a *authUC) Logout(ctx context.Context, userID, token string) error {
	defer logging.TraceDuration(a.log, "AuthUC.Logout")()
	ok, err := a.sessions.Invalidate(ctx, userID, token)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotFound
	}
	return nil
}

func (a *authUC) LogoutAll(ctx context.Context, userID string) (int64, error) {
	defer logging.TraceDuration(a.log, "AuthUC.LogoutAll")()
	return a.sessions.InvalidateAll(ctx, userID)
}

func (a *authUC) Sessions(ctx context.Context, userID string) ([]*model.AuthSession, error) {
	return a.sessions.ListActive(ctx, userID)
}

func (a *authUC) Me(ctx context.Context, userID string) (*model.User, error) {
	return a.users.FindByID(ctx, nil, userID)
}
