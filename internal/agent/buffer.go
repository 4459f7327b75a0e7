package agent

import (
	"context"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"finance-copilot/internal/domain/model"
	"finance-copilot/internal/domain/ports/adapter"
)

// Summarizer folds turns into an existing summary and returns the new one.
type Summarizer func(ctx context.Context, previous string, turns []adapter.Message) (string, error)

// Buffer is the working memory of one conversation: a rolling summary plus
// the most recent turns, kept under a token budget.
type Buffer struct {
	mu      sync.Mutex
	summary string
	turns   []adapter.Message
	limit   int
	counter Counter
}

// minKeptTurns is never compacted away so the model always sees the latest
// exchange verbatim.
const minKeptTurns = 2

func NewBuffer(tokenLimit int, c Counter) *Buffer {
	if c == nil {
		c = Estimator()
	}
	return &Buffer{limit: tokenLimit, counter: c}
}

// Seed loads persisted state. Roles are copied as stored; anything that is
// not a user or assistant turn is skipped.
func (b *Buffer) Seed(summary string, history []*model.ChatMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.summary = strings.TrimSpace(summary)
	b.turns = b.turns[:0]
	for _, m := range history {
		if !model.ValidRole(m.Role) {
			continue
		}
		b.turns = append(b.turns, adapter.Message{Role: m.Role, Content: m.Content})
	}
}

func (b *Buffer) Append(role, content string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.turns = append(b.turns, adapter.Message{Role: role, Content: content})
}

func (b *Buffer) Summary() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.summary
}

// History returns a copy of the retained turns, oldest first.
func (b *Buffer) History() []adapter.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]adapter.Message(nil), b.turns...)
}

func (b *Buffer) Tokens() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tokensLocked()
}

func (b *Buffer) tokensLocked() int {
	return b.counter.Count(b.summary) + CountMessages(b.counter, b.turns)
}

// Compact moves the oldest turns into the summary until the buffer fits the
// budget again. It reports whether the summary text changed. On summarizer
// failure the buffer is left untouched.
func (b *Buffer) Compact(ctx context.Context, summarize Summarizer) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.limit <= 0 || b.tokensLocked() <= b.limit {
		return false, nil
	}

	cut := 0
	for cut < len(b.turns)-minKeptTurns {
		cut++
		rest := b.counter.Count(b.summary) + CountMessages(b.counter, b.turns[cut:])
		if rest <= b.limit {
			break
		}
	}
	if cut == 0 {
		return false, nil
	}

	pruned := append([]adapter.Message(nil), b.turns[:cut]...)
	next, err := summarize(ctx, b.summary, pruned)
	if err != nil {
		return false, err
	}
	next = strings.TrimSpace(next)
	b.turns = append([]adapter.Message(nil), b.turns[cut:]...)
	if next == "" || next == b.summary {
		return false, nil
	}
	b.summary = next
	return true, nil
}

type bufferKey struct {
	userID    string
	sessionID string
}

// BufferCache bounds the number of live buffers; the least recently used
// conversation is dropped first and re-seeded from storage on its next turn.
type BufferCache struct {
	cache   *lru.Cache[bufferKey, *Buffer]
	limit   int
	counter Counter
}

func NewBufferCache(size, tokenLimit int, c Counter) (*BufferCache, error) {
	l, err := lru.New[bufferKey, *Buffer](size)
	if err != nil {
		return nil, err
	}
	if c == nil {
		c = Estimator()
	}
	return &BufferCache{cache: l, limit: tokenLimit, counter: c}, nil
}

func (c *BufferCache) Get(userID, sessionID string) (*Buffer, bool) {
	return c.cache.Get(bufferKey{userID, sessionID})
}

// Create builds an empty buffer, stores it and returns it.
func (c *BufferCache) Create(userID, sessionID string) *Buffer {
	b := NewBuffer(c.limit, c.counter)
	c.cache.Add(bufferKey{userID, sessionID}, b)
	return b
}

func (c *BufferCache) Evict(userID, sessionID string) {
	c.cache.Remove(bufferKey{userID, sessionID})
}

func (c *BufferCache) Len() int { return c.cache.Len() }
