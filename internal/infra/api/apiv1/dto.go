package apiv1

import (
	"time"

	"finance-copilot/internal/domain/model"
	"finance-copilot/internal/usecase"
)

// ---- requests ----

type registerRequest struct {
	Email           string  `json:"email" validate:"required,email"`
	Username        string  `json:"username" validate:"required,max=64"`
	Password        string  `json:"password" validate:"required"`
	ConfirmPassword string  `json:"confirm_password" validate:"required"`
	FullName        *string `json:"full_name"`
	Age             *int    `json:"age"`
}

type verifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type watchlistAddRequest struct {
	Symbol string `json:"symbol" validate:"required,max=15"`
	Name   string `json:"name"`
}

type chatRequest struct {
	Message   string  `json:"message" validate:"required"`
	SessionID *string `json:"session_id"`
}

type documentCreateRequest struct {
	Title    string         `json:"title" validate:"required"`
	Content  string         `json:"content" validate:"required"`
	Source   *string        `json:"source"`
	Metadata map[string]any `json:"metadata"`
}

type searchRequest struct {
	Query string `json:"query" validate:"required"`
	Limit *int   `json:"limit" validate:"omitempty,min=1,max=50"`
}

// ---- responses ----

type userResponse struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Username   string    `json:"username"`
	FullName   *string   `json:"full_name"`
	Age        *int      `json:"age"`
	IsActive   bool      `json:"is_active"`
	IsVerified bool      `json:"is_verified"`
	CreatedAt  time.Time `json:"created_at"`
}

func toUser(u *model.User) userResponse {
	return userResponse{
		ID:         u.ID,
		Email:      u.Email,
		Username:   u.Username,
		FullName:   u.FullName,
		Age:        u.Age,
		IsActive:   u.IsActive,
		IsVerified: u.IsVerified,
		CreatedAt:  u.CreatedAt,
	}
}

type tokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        userResponse `json:"user"`
}

type authSessionResponse struct {
	SessionID    string    `json:"session_id"`
	UserID       string    `json:"user_id"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	IsActive     bool      `json:"is_active"`
	LastActivity time.Time `json:"last_activity"`
}

func toAuthSessions(in []*model.AuthSession) []authSessionResponse {
	out := make([]authSessionResponse, 0, len(in))
	for _, s := range in {
		out = append(out, authSessionResponse{
			SessionID:    s.ID,
			UserID:       s.UserID,
			CreatedAt:    s.CreatedAt,
			ExpiresAt:    s.ExpiresAt,
			IsActive:     s.IsActive,
			LastActivity: s.LastActivity,
		})
	}
	return out
}

type watchlistItemResponse struct {
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name"`
	AddedAt       time.Time `json:"added_at"`
	CurrentPrice  *float64  `json:"current_price"`
	ChangePercent *float64  `json:"change_percent"`
	Stale         bool      `json:"stale,omitempty"`
}

func toWatchlistItem(it *model.WatchlistItem) watchlistItemResponse {
	return watchlistItemResponse{
		Symbol:        it.Symbol,
		Name:          it.Name,
		AddedAt:       it.AddedAt,
		CurrentPrice:  it.CurrentPrice,
		ChangePercent: it.ChangePercent,
	}
}

type chatMessageResponse struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id,omitempty"`
}

func toChatReply(r *usecase.ChatReply) chatMessageResponse {
	return chatMessageResponse{Role: r.Role, Content: r.Content, Timestamp: r.Timestamp, SessionID: r.SessionID}
}

type chatSessionResponse struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
	Summary      *string   `json:"summary"`
}

func toChatSession(s *model.ChatSession) chatSessionResponse {
	return chatSessionResponse{
		ID:           s.ID,
		Title:        s.Title,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
		MessageCount: s.MessageCount,
		Summary:      s.Summary,
	}
}

type chatSessionDetailResponse struct {
	Session  chatSessionResponse   `json:"session"`
	Messages []chatMessageResponse `json:"messages"`
}

type documentResponse struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Content   string         `json:"content"`
	Source    *string        `json:"source"`
	Metadata  map[string]any `json:"metadata"`
	Indexed   bool           `json:"indexed"`
	CreatedAt time.Time      `json:"created_at"`
}

func toDocument(d *model.Document) documentResponse {
	meta := d.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	return documentResponse{
		ID:        d.ID,
		Title:     d.Title,
		Content:   d.Content,
		Source:    d.Source,
		Metadata:  meta,
		Indexed:   d.Indexed,
		CreatedAt: d.CreatedAt,
	}
}

type searchResultResponse struct {
	Content  string         `json:"content"`
	Title    string         `json:"title"`
	Source   *string        `json:"source"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

type messageResponse struct {
	Message             string `json:"message"`
	SessionsInvalidated *int64 `json:"sessions_invalidated,omitempty"`
}
