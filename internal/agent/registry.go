// Package agent holds the pieces of a tool-augmented chat turn: the closed
// tool registry, the per-session conversation buffer and the bounded
// tool-calling loop.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"finance-copilot/internal/domain/ports/adapter"
	"finance-copilot/internal/infra/metrics"
)

// Handler runs one tool. A returned error is reported to the model as
// {"error": "..."} instead of aborting the turn.
type Handler func(ctx context.Context, args Args) (any, error)

// Tool is a named, schema-described operation the model may call.
type Tool struct {
	Name        string
	Description string
	Params      []adapter.ToolParam
	Handler     Handler
}

func (t Tool) Spec() adapter.ToolSpec {
	return adapter.ToolSpec{Name: t.Name, Description: t.Description, Params: t.Params}
}

// Registry is the closed set of tools bound to one turn.
type Registry struct {
	tools map[string]Tool
	names []string
}

func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if t.Name == "" || t.Handler == nil {
			panic("agent: tool needs a name and a handler")
		}
		if _, dup := r.tools[t.Name]; dup {
			panic("agent: duplicate tool " + t.Name)
		}
		r.tools[t.Name] = t
		r.names = append(r.names, t.Name)
	}
	sort.Strings(r.names)
	return r
}

func (r *Registry) Names() []string { return append([]string(nil), r.names...) }

func (r *Registry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

func (r *Registry) Specs() []adapter.ToolSpec {
	out := make([]adapter.ToolSpec, 0, len(r.names))
	for _, n := range r.names {
		out = append(out, r.tools[n].Spec())
	}
	return out
}

// Dispatch runs the named tool and always returns a JSON document.
func (r *Registry) Dispatch(ctx context.Context, call adapter.ToolCall) string {
	t, ok := r.tools[call.Name]
	if !ok {
		metrics.IncToolCall(call.Name, "unknown")
		return errorPayload(fmt.Errorf("unknown tool %q", call.Name))
	}
	res, err := t.Handler(ctx, Args(call.Args))
	if err != nil {
		metrics.IncToolCall(call.Name, "error")
		return errorPayload(err)
	}
	b, err := json.Marshal(res)
	if err != nil {
		metrics.IncToolCall(call.Name, "error")
		return errorPayload(fmt.Errorf("encode result: %w", err))
	}
	metrics.IncToolCall(call.Name, "ok")
	return string(b)
}

func errorPayload(err error) string {
	b, _ := json.Marshal(map[string]string{"error": err.Error()})
	return string(b)
}

// Args is the raw argument object of a tool call. Providers decode JSON
// numbers as float64, so the accessors coerce.
type Args map[string]any

func (a Args) String(key string) string {
	switch v := a[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// RequireString fails when the argument is missing or blank.
func (a Args) RequireString(key string) (string, error) {
	s := a.String(key)
	if s == "" {
		return "", fmt.Errorf("missing required argument %q", key)
	}
	return s, nil
}

// Int returns def when the argument is absent or unparsable.
func (a Args) Int(key string, def int) int {
	switch v := a[key].(type) {
	case float64:
		return int(v)
	case float32:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}
