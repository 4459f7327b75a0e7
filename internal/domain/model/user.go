package model

import (
	"net/mail"
	"strings"
	"time"

	"finance-copilot/internal/domain"

	"github.com/google/uuid"
)

// User is an account that owns sessions, watchlist items and private documents.
type User struct {
	ID                string
	Email             string
	Username          string
	PasswordHash      string
	FullName          *string
	Age               *int
	IsActive          bool
	IsVerified        bool
	VerificationToken *string
	EmailVerifiedAt   *time.Time
	CreatedAt         time.Time
	UpdatedAt         *time.Time
}

const (
	MinPasswordLen = 8
	MinAge         = 13
	MaxAge         = 120
)

func NewUser(email, username, passwordHash string) (*User, error) {
	email = strings.TrimSpace(email)
	username = strings.TrimSpace(username)
	if username == "" || passwordHash == "" {
		return nil, domain.ErrInvalidArgument
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, domain.NewValidationError("Invalid email address")
	}
	return &User{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(email),
		Username:     username,
		PasswordHash: passwordHash,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

func (u *User) IsZero() bool { return u == nil || u.ID == "" }

// MarkVerified clears the verification token.
func (u *User) MarkVerified(now time.Time) {
	u.IsVerified = true
	u.VerificationToken = nil
	u.EmailVerifiedAt = &now
	u.UpdatedAt = &now
}
