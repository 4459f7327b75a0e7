//go:build !integration

package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"finance-copilot/internal/domain/ports/adapter"
)

type blockingAI struct {
	UnconfiguredAI
	release chan struct{}
}

func (b *blockingAI) Chat(ctx context.Context, model string, messages []adapter.Message) (string, error) {
	<-b.release
	return "done", nil
}

func TestLimitedAI_WaitRespectsContext(t *testing.T) {
	inner := &blockingAI{release: make(chan struct{})}
	l := NewLimitedAI(inner, 1)

	done := make(chan struct{})
	go func() {
		_, _ = l.Chat(context.Background(), "m", nil)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := l.Chat(ctx, "m", nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want deadline exceeded while slot is taken, got %v", err)
	}

	close(inner.release)
	<-done
	if out, err := l.Chat(context.Background(), "m", nil); err != nil || out != "done" {
		t.Fatalf("slot should be free again: %q %v", out, err)
	}
}

func TestNewLimitedAI_ZeroIsPassthrough(t *testing.T) {
	inner := NewUnconfiguredAI()
	if got := NewLimitedAI(inner, 0); got != adapter.AIServiceAdapter(inner) {
		t.Fatalf("zero limit should return inner adapter")
	}
}
