package agent

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"finance-copilot/internal/domain/ports/adapter"
)

// Counter estimates the token footprint of a piece of text.
type Counter interface {
	Count(text string) int
}

// TokenCounter uses the cl100k_base BPE. If the encoding cannot be loaded
// (it is fetched on first use) it degrades to a four-characters-per-token
// estimate.
type TokenCounter struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
}

func NewTokenCounter() *TokenCounter { return &TokenCounter{} }

func (t *TokenCounter) Count(text string) int {
	t.once.Do(func() {
		if enc, err := tiktoken.GetEncoding("cl100k_base"); err == nil {
			t.enc = enc
		}
	})
	if t.enc != nil {
		return len(t.enc.Encode(text, nil, nil))
	}
	return EstimateTokens(text)
}

// EstimateTokens is the offline fallback: roughly four characters per token.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}

type estimator struct{}

func (estimator) Count(text string) int { return EstimateTokens(text) }

// Estimator returns a Counter that never touches the network.
func Estimator() Counter { return estimator{} }

// CountMessages adds a small per-message overhead for role framing.
func CountMessages(c Counter, msgs []adapter.Message) int {
	n := 0
	for _, m := range msgs {
		n += 4 + c.Count(m.Content)
	}
	return n
}
