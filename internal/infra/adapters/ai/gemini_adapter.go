// File: internal/infra/adapters/ai/gemini_adapter.go
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"google.golang.org/genai"

	"finance-copilot/internal/domain/ports/adapter"
	"finance-copilot/internal/infra/metrics"
)

var (
	_ adapter.AIServiceAdapter = (*GeminiAdapter)(nil)
	_ adapter.Embedder         = (*GeminiAdapter)(nil)
)

type GeminiAdapter struct {
	client       *genai.Client
	defaultModel string
	embedModel   string
	embedDims    int
	maxOut       int
}

type GeminiOptions struct {
	APIKey         string
	BaseURL        string
	DefaultModel   string
	EmbeddingModel string
	EmbeddingDims  int
	MaxOutput      int
}

// NewGeminiAdapter creates a Gemini adapter using the official SDK.
func NewGeminiAdapter(ctx context.Context, opt GeminiOptions) (*GeminiAdapter, error) {
	if opt.APIKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opt.APIKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: opt.BaseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	return &GeminiAdapter{
		client:       c,
		defaultModel: opt.DefaultModel,
		embedModel:   opt.EmbeddingModel,
		embedDims:    opt.EmbeddingDims,
		maxOut:       opt.MaxOutput,
	}, nil
}

func (g *GeminiAdapter) ListModels(ctx context.Context) ([]string, error) {
	var out []string
	for m, err := range g.client.Models.All(ctx) {
		if err != nil {
			break
		}
		if m.Name != "" {
			out = append(out, m.Name)
		}
	}
	if len(out) == 0 && g.defaultModel != "" {
		out = []string{g.defaultModel}
	}
	return out, nil
}

func (g *GeminiAdapter) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	_, contents := toGenAIContents(messages)
	resp, err := g.client.Models.CountTokens(ctx, modelOrDefault(model, g.defaultModel), contents, nil)
	if err != nil {
		return 0, err
	}
	return int(resp.TotalTokens), nil
}

func (g *GeminiAdapter) Chat(ctx context.Context, model string, messages []adapter.Message) (string, error) {
	resp, err := g.generate(ctx, adapter.ChatRequest{Model: model, Messages: messages})
	return resp.Text, err
}

func (g *GeminiAdapter) ChatWithUsage(ctx context.Context, model string, messages []adapter.Message) (string, adapter.Usage, error) {
	resp, err := g.generate(ctx, adapter.ChatRequest{Model: model, Messages: messages})
	return resp.Text, resp.Usage, err
}

func (g *GeminiAdapter) ChatWithTools(ctx context.Context, req adapter.ChatRequest) (adapter.ChatResponse, error) {
	return g.generate(ctx, req)
}

// Embed returns the embedding of text using the configured embedding model.
func (g *GeminiAdapter) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("gemini: empty text for embedding")
	}
	var cfg *genai.EmbedContentConfig
	if g.embedDims > 0 {
		d := int32(g.embedDims)
		cfg = &genai.EmbedContentConfig{OutputDimensionality: &d}
	}
	contents := []*genai.Content{{Role: string(genai.RoleUser), Parts: []*genai.Part{{Text: text}}}}
	resp, err := g.client.Models.EmbedContent(ctx, g.embedModel, contents, cfg)
	if err != nil {
		return nil, err
	}
	if resp == nil || len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, errors.New("gemini: empty embedding")
	}
	return resp.Embeddings[0].Values, nil
}

// --- internal ---

func (g *GeminiAdapter) generate(ctx context.Context, req adapter.ChatRequest) (adapter.ChatResponse, error) {
	if len(req.Messages) == 0 {
		return adapter.ChatResponse{}, errors.New("gemini: no messages")
	}
	model := modelOrDefault(req.Model, g.defaultModel)
	system, contents := toGenAIContents(req.Messages)
	if req.System != "" {
		system = strings.TrimSpace(req.System + "\n\n" + system)
	}

	cfg := &genai.GenerateContentConfig{}
	if g.maxOut > 0 {
		cfg.MaxOutputTokens = int32(g.maxOut)
	}
	if system != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	if len(req.Tools) > 0 {
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: toFunctionDeclarations(req.Tools)}}
	}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, model, contents, cfg)
	latency := int(time.Since(start).Milliseconds())
	if err != nil {
		metrics.ObserveChatUsage("gemini", model, 0, 0, latency, false)
		return adapter.ChatResponse{}, err
	}

	out := adapter.ChatResponse{}
	if resp != nil {
		for _, fc := range resp.FunctionCalls() {
			if fc == nil {
				continue
			}
			out.ToolCalls = append(out.ToolCalls, adapter.ToolCall{ID: fc.ID, Name: fc.Name, Args: fc.Args})
		}
		if len(out.ToolCalls) == 0 {
			out.Text = strings.TrimSpace(resp.Text())
		}
		if resp.UsageMetadata != nil {
			out.Usage = adapter.Usage{
				PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
				CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
				TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
			}
		}
	}
	metrics.ObserveChatUsage("gemini", model, out.Usage.PromptTokens, out.Usage.CompletionTokens, latency, true)
	if out.Text == "" && len(out.ToolCalls) == 0 {
		return out, errors.New("gemini: empty response")
	}
	return out, nil
}

// toGenAIContents splits system messages out (Gemini takes them as a system
// instruction) and maps the rest, including tool traffic, to contents.
func toGenAIContents(msgs []adapter.Message) (string, []*genai.Content) {
	var system []string
	out := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		switch strings.ToLower(m.Role) {
		case "system":
			if m.Content != "" {
				system = append(system, m.Content)
			}
		case "assistant", "model":
			c := &genai.Content{Role: string(genai.RoleModel)}
			if m.Content != "" {
				c.Parts = append(c.Parts, &genai.Part{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				c.Parts = append(c.Parts, &genai.Part{FunctionCall: &genai.FunctionCall{ID: tc.ID, Name: tc.Name, Args: tc.Args}})
			}
			if len(c.Parts) > 0 {
				out = append(out, c)
			}
		case "tool":
			out = append(out, &genai.Content{
				Role: string(genai.RoleUser),
				Parts: []*genai.Part{{FunctionResponse: &genai.FunctionResponse{
					ID:       m.ToolCallID,
					Name:     m.ToolName,
					Response: toolPayload(m.Content),
				}}},
			})
		default:
			out = append(out, &genai.Content{Role: string(genai.RoleUser), Parts: []*genai.Part{{Text: m.Content}}})
		}
	}
	return strings.Join(system, "\n\n"), out
}

func toolPayload(content string) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(content), &obj); err == nil && obj != nil {
		return obj
	}
	return map[string]any{"output": content}
}

func toFunctionDeclarations(specs []adapter.ToolSpec) []*genai.FunctionDeclaration {
	out := make([]*genai.FunctionDeclaration, 0, len(specs))
	for _, s := range specs {
		schema := &genai.Schema{Type: genai.TypeObject, Properties: map[string]*genai.Schema{}}
		for _, p := range s.Params {
			schema.Properties[p.Name] = &genai.Schema{
				Type:        schemaType(p.Type),
				Description: p.Description,
				Enum:        p.Enum,
			}
			if p.Required {
				schema.Required = append(schema.Required, p.Name)
			}
		}
		out = append(out, &genai.FunctionDeclaration{
			Name:        s.Name,
			Description: s.Description,
			Parameters:  schema,
		})
	}
	return out
}

func schemaType(t string) genai.Type {
	switch t {
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	default:
		return genai.TypeString
	}
}

func modelOrDefault(model, def string) string {
	if strings.TrimSpace(model) != "" {
		return model
	}
	return def
}
