package model

import (
	"time"

	"github.com/google/uuid"
)

// AuthSessionTTL bounds the lifetime of a login session.
const AuthSessionTTL = 7 * 24 * time.Hour

// AuthSession tracks one issued access token by fingerprint.
type AuthSession struct {
	ID           string
	UserID       string
	TokenHash    string
	CreatedAt    time.Time
	ExpiresAt    time.Time
	IsActive     bool
	LastActivity time.Time
}

func NewAuthSession(userID, tokenHash string, now time.Time) *AuthSession {
	return &AuthSession{
		ID:           uuid.NewString(),
		UserID:       userID,
		TokenHash:    tokenHash,
		CreatedAt:    now,
		ExpiresAt:    now.Add(AuthSessionTTL),
		IsActive:     true,
		LastActivity: now,
	}
}

// Valid is true while the session is active and unexpired.
func (s *AuthSession) Valid(now time.Time) bool {
	return s != nil && s.IsActive && s.ExpiresAt.After(now)
}
