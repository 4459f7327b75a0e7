//go:build !integration

package redis

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"

	"finance-copilot/internal/domain/model"
)

// memRedis is a map-backed RedisClient; expirations are recorded, not enforced.
type memRedis struct {
	mu      sync.Mutex
	data    map[string]string
	expires map[string]time.Duration
}

func newMemRedis() *memRedis {
	return &memRedis{data: map[string]string{}, expires: map[string]time.Duration{}}
}

func (m *memRedis) Ping(ctx context.Context) error { return nil }

func (m *memRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	}
	m.expires[key] = expiration
	return nil
}

func (m *memRedis) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memRedis) Incr(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, _ := strconv.ParseInt(m.data[key], 10, 64)
	n++
	m.data[key] = strconv.FormatInt(n, 10)
	return n, nil
}

func (m *memRedis) Expire(ctx context.Context, key string, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expires[key] = expiration
	return nil
}

func (m *memRedis) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memRedis) Close() error { return nil }

func TestRateLimiter_FixedWindow(t *testing.T) {
	ctx := context.Background()
	store := newMemRedis()
	rl := NewRateLimiter(store)
	now := time.Date(2026, 3, 1, 10, 0, 5, 0, time.UTC)
	rl.now = func() time.Time { return now }

	key := UserCommandKey("u1", "chat")
	if key != "rate_limit:u1:chat" {
		t.Fatalf("unexpected key %q", key)
	}

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, key, 3, time.Minute)
		if err != nil || !ok {
			t.Fatalf("hit %d should pass: ok=%v err=%v", i+1, ok, err)
		}
	}
	ok, err := rl.Allow(ctx, key, 3, time.Minute)
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if ok {
		t.Fatal("4th hit in window must be rejected")
	}
	bucket := windowKey(key, now, time.Minute)
	if store.expires[bucket] != 2*time.Minute {
		t.Fatalf("window expiry not set on first hit: %v", store.expires[bucket])
	}

	now = now.Add(time.Minute)
	if ok, _ := rl.Allow(ctx, key, 3, time.Minute); !ok {
		t.Fatal("next window must start fresh")
	}
}

func TestRateLimiter_DisabledLimit(t *testing.T) {
	rl := NewRateLimiter(newMemRedis())
	for i := 0; i < 5; i++ {
		if ok, err := rl.Allow(context.Background(), "k", 0, time.Minute); !ok || err != nil {
			t.Fatalf("limit 0 must not block: ok=%v err=%v", ok, err)
		}
	}
}

func TestQuoteCache_RoundTripAndMiss(t *testing.T) {
	ctx := context.Background()
	qc := NewQuoteCache(newMemRedis())

	if _, ok := qc.GetQuote(ctx, "AAPL"); ok {
		t.Fatal("empty cache must miss")
	}
	in := &model.Quote{Symbol: "AAPL", CurrentPrice: 190.5, ChangePercent: 1.2, Volume: 1000}
	if err := qc.StoreQuote(ctx, in, 15*time.Second); err != nil {
		t.Fatalf("StoreQuote: %v", err)
	}
	got, ok := qc.GetQuote(ctx, "AAPL")
	if !ok {
		t.Fatal("expected hit")
	}
	if *got != *in {
		t.Fatalf("got %+v, want %+v", got, in)
	}
}

func TestQuoteCache_CorruptEntryIsMiss(t *testing.T) {
	ctx := context.Background()
	store := newMemRedis()
	_ = store.Set(ctx, "quote:MSFT", "not-json", time.Minute)
	if _, ok := NewQuoteCache(store).GetQuote(ctx, "MSFT"); ok {
		t.Fatal("corrupt payload must be treated as a miss")
	}
}
