package ai

import (
	"context"

	"finance-copilot/internal/domain"
	"finance-copilot/internal/domain/ports/adapter"
)

var (
	_ adapter.AIServiceAdapter = (*UnconfiguredAI)(nil)
	_ adapter.Embedder         = (*UnconfiguredAI)(nil)
)

// UnconfiguredAI stands in when no provider key is set. Every call fails
// with domain.ErrLLMNotConfigured so callers can answer with a fixed message.
type UnconfiguredAI struct{}

func NewUnconfiguredAI() *UnconfiguredAI { return &UnconfiguredAI{} }

func (UnconfiguredAI) ListModels(ctx context.Context) ([]string, error) { return nil, nil }

func (UnconfiguredAI) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	return 0, domain.ErrLLMNotConfigured
}

func (UnconfiguredAI) Chat(ctx context.Context, model string, messages []adapter.Message) (string, error) {
	return "", domain.ErrLLMNotConfigured
}

func (UnconfiguredAI) ChatWithUsage(ctx context.Context, model string, messages []adapter.Message) (string, adapter.Usage, error) {
	return "", adapter.Usage{}, domain.ErrLLMNotConfigured
}

func (UnconfiguredAI) ChatWithTools(ctx context.Context, req adapter.ChatRequest) (adapter.ChatResponse, error) {
	return adapter.ChatResponse{}, domain.ErrLLMNotConfigured
}

func (UnconfiguredAI) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, domain.ErrLLMNotConfigured
}
