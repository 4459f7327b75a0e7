package adapter

import "context"

// Message is one entry of a provider-neutral conversation.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system", "tool"
	Content string `json:"content"`

	// ToolCalls is set on assistant turns that requested tool invocations.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// ToolCallID and ToolName identify which call a "tool" turn answers.
	ToolCallID string `json:"tool_call_id,omitempty"`
	ToolName   string `json:"tool_name,omitempty"`
}

// ToolCall is a model's request to run a named tool.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// ToolParam describes one argument of a tool.
type ToolParam struct {
	Name        string
	Type        string // "string" | "integer" | "number"
	Description string
	Required    bool
	Enum        []string
}

// ToolSpec is the declaration sent to the provider.
type ToolSpec struct {
	Name        string
	Description string
	Params      []ToolParam
}

type ChatRequest struct {
	Model    string
	System   string
	Messages []Message
	Tools    []ToolSpec
}

type ChatResponse struct {
	Text      string
	ToolCalls []ToolCall
	Usage     Usage
}

// Usage for a single chat call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// AIServiceAdapter is the port for LLM chat.
type AIServiceAdapter interface {
	ListModels(ctx context.Context) ([]string, error)

	// CountTokens must return prompt tokens for the provided messages
	// (provider-specific counting; best-effort when exact isn't available).
	CountTokens(ctx context.Context, model string, messages []Message) (int, error)

	// Chat returns only the assistant text
	Chat(ctx context.Context, model string, messages []Message) (string, error)

	// ChatWithUsage returns assistant text + usage as reported by the provider.
	ChatWithUsage(ctx context.Context, model string, messages []Message) (string, Usage, error)

	// ChatWithTools performs one model step with tool declarations bound.
	// The response carries either tool calls or final text.
	ChatWithTools(ctx context.Context, req ChatRequest) (ChatResponse, error)
}

// Embedder turns text into a dense vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
