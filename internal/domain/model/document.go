package model

import (
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	PreviewRunes    = 500
	TextSearchScore = 0.5
)

// Document is a knowledge-base entry. A nil OwnerID makes it public.
type Document struct {
	ID        string
	OwnerID   *string
	Title     string
	Content   string
	Source    *string
	Metadata  map[string]any
	Indexed   bool
	CreatedAt time.Time
}

func NewDocument(ownerID *string, title, content string, source *string, meta map[string]any) *Document {
	if meta == nil {
		meta = map[string]any{}
	}
	return &Document{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Title:     title,
		Content:   content,
		Source:    source,
		Metadata:  meta,
		CreatedAt: time.Now().UTC(),
	}
}

func (d *Document) IsPublic() bool { return d.OwnerID == nil }

// VisibleTo reports whether userID may read the document.
func (d *Document) VisibleTo(userID string) bool {
	return d.OwnerID == nil || *d.OwnerID == userID
}

func (d *Document) OwnedBy(userID string) bool {
	return d.OwnerID != nil && *d.OwnerID == userID
}

// Preview truncates s to n runes, appending "..." when cut.
func Preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

// SearchHit is one ranked retrieval result.
type SearchHit struct {
	DocumentID string
	Title      string
	Content    string
	Source     *string
	Metadata   map[string]any
	Score      float64
}

// VectorMatch is a raw hit from the vector index, carrying the index's own
// copy of the document for rehydration fallback.
type VectorMatch struct {
	DocumentID string
	OwnerID    *string
	Title      string
	Content    string
	Distance   float64
}
