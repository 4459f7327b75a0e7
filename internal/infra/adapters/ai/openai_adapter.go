package ai

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/pkoukk/tiktoken-go"

	"finance-copilot/internal/domain"
	"finance-copilot/internal/domain/ports/adapter"
	"finance-copilot/internal/infra/metrics"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.AIServiceAdapter = (*OpenAIAdapter)(nil)

// OpenAIAdapter serves direct (tool-less) chat through the Chat Completions
// API. It backs the fallback tier when fallback_model names a gpt-* model.
type OpenAIAdapter struct {
	client openai.Client
	model  string
	maxOut int
}

func NewOpenAIAdapter(apiKey, baseURL, model string, maxOut int, opts ...option.RequestOption) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	reqOpts = append(reqOpts, opts...)
	return &OpenAIAdapter{
		client: openai.NewClient(reqOpts...),
		model:  model,
		maxOut: maxOut,
	}, nil
}

func (o *OpenAIAdapter) ListModels(ctx context.Context) ([]string, error) {
	return []string{o.model}, nil
}

// CountTokens estimates prompt tokens locally with the model's BPE encoding.
func (o *OpenAIAdapter) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	enc, err := tiktoken.EncodingForModel(modelOrDefault(model, o.model))
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return 0, err
		}
	}
	n := 0
	for _, m := range messages {
		// role + separators per message, as counted by the chat format
		n += 4 + len(enc.Encode(m.Content, nil, nil))
	}
	return n + 2, nil
}

func (o *OpenAIAdapter) Chat(ctx context.Context, model string, messages []adapter.Message) (string, error) {
	text, _, err := o.ChatWithUsage(ctx, model, messages)
	return text, err
}

func (o *OpenAIAdapter) ChatWithUsage(ctx context.Context, model string, messages []adapter.Message) (string, adapter.Usage, error) {
	model = modelOrDefault(model, o.model)
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: toOpenAIMessages(messages),
	}
	if o.maxOut > 0 {
		params.MaxCompletionTokens = openai.Int(int64(o.maxOut))
	}

	start := time.Now()
	resp, err := o.client.Chat.Completions.New(ctx, params)
	latency := int(time.Since(start).Milliseconds())
	if err != nil {
		metrics.ObserveChatUsage("openai", model, 0, 0, latency, false)
		return "", adapter.Usage{}, err
	}
	u := adapter.Usage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}
	metrics.ObserveChatUsage("openai", model, u.PromptTokens, u.CompletionTokens, latency, true)
	for _, c := range resp.Choices {
		if s := strings.TrimSpace(c.Message.Content); s != "" {
			return s, u, nil
		}
	}
	return "", u, errors.New("openai: no choice content")
}

// ChatWithTools is not offered by this adapter; the agent tier runs on Gemini.
func (o *OpenAIAdapter) ChatWithTools(ctx context.Context, req adapter.ChatRequest) (adapter.ChatResponse, error) {
	return adapter.ChatResponse{}, domain.ErrToolsUnsupported
}

func toOpenAIMessages(msgs []adapter.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch strings.ToLower(m.Role) {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "assistant", "model":
			if m.Content != "" {
				out = append(out, openai.AssistantMessage(m.Content))
			}
		case "tool":
			// tool traffic never reaches this adapter; keep the data as context
			out = append(out, openai.UserMessage("Tool "+m.ToolName+" returned: "+m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
