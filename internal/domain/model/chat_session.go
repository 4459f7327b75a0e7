package model

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	// MaxSessionMessages is the hard cap before the oldest messages are pruned;
	// a prune keeps MaxSessionMessages-PruneHeadroom messages.
	MaxSessionMessages = 100
	PruneHeadroom      = 10
	// SummaryThreshold is the message count at which a session without a
	// summary gets one generated.
	SummaryThreshold = 20

	titleMaxRunes = 50
	defaultTitle  = "New Chat"
)

// ChatMessage is one persisted turn of a conversation.
type ChatMessage struct {
	ID        string
	SessionID string
	Role      string // "user" | "assistant"
	Content   string
	CreatedAt time.Time
}

// NewChatMessage stamps a lexicographically sortable id so that messages
// written within the same clock tick still order correctly.
func NewChatMessage(sessionID, role, content string) *ChatMessage {
	return &ChatMessage{
		ID:        ulid.Make().String(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

func ValidRole(role string) bool { return role == RoleUser || role == RoleAssistant }

// ChatSession is a persisted conversation thread owned by one user.
type ChatSession struct {
	ID           string
	UserID       string
	Title        string
	MessageCount int
	Summary      *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func NewChatSession(userID, firstMessage string) *ChatSession {
	now := time.Now().UTC()
	return &ChatSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     DeriveTitle(firstMessage),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// DeriveTitle truncates the first message to 50 characters and marks the cut
// with an ellipsis. Blank input yields "New Chat".
func DeriveTitle(first string) string {
	if strings.TrimSpace(first) == "" {
		return defaultTitle
	}
	if utf8.RuneCountInString(first) <= titleMaxRunes {
		return strings.TrimSpace(first)
	}
	r := []rune(first)
	return strings.TrimSpace(string(r[:titleMaxRunes])) + "..."
}

func (s *ChatSession) HasSummary() bool { return s.Summary != nil && *s.Summary != "" }

func (s *ChatSession) SummaryText() string {
	if s.Summary == nil {
		return ""
	}
	return *s.Summary
}

// NeedsSummary reports whether the session crossed the summarization
// threshold without ever receiving a summary.
func (s *ChatSession) NeedsSummary() bool {
	return s.MessageCount >= SummaryThreshold && !s.HasSummary()
}

// PruneCount returns how many of the oldest messages must go before one more
// can be appended, given the current count.
func PruneCount(current int) int {
	if current < MaxSessionMessages {
		return 0
	}
	return current - (MaxSessionMessages - PruneHeadroom)
}
