package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"finance-copilot/internal/domain/ports/adapter"
	"finance-copilot/internal/infra/logging"
)

var (
	ErrMaxIterations = errors.New("agent stopped after max iterations")
	ErrEmptyAnswer   = errors.New("agent produced an empty answer")
)

// Result is a finished tool-calling run.
type Result struct {
	Text       string
	ToolsUsed  []string
	Iterations int
}

// Runner drives the model through tool calls until it answers, bounded by
// an iteration count and a wall-clock timeout.
type Runner struct {
	ai      adapter.AIServiceAdapter
	model   string
	maxIter int
	timeout time.Duration
	log     *zerolog.Logger
}

func NewRunner(ai adapter.AIServiceAdapter, model string, maxIter int, timeout time.Duration, log *zerolog.Logger) *Runner {
	if maxIter <= 0 {
		maxIter = 5
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &Runner{ai: ai, model: model, maxIter: maxIter, timeout: timeout, log: logging.Component(log, "agent")}
}

// Run sends history plus input and executes requested tools from reg.
// Any error, including the deadline, means the caller should fall back.
func (r *Runner) Run(ctx context.Context, system string, history []adapter.Message, input string, reg *Registry) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	log := logging.With(ctx, r.log)

	msgs := make([]adapter.Message, 0, len(history)+1+2*r.maxIter)
	msgs = append(msgs, history...)
	msgs = append(msgs, adapter.Message{Role: "user", Content: input})

	var res Result
	for i := 0; i < r.maxIter; i++ {
		res.Iterations = i + 1
		resp, err := r.ai.ChatWithTools(ctx, adapter.ChatRequest{
			Model:    r.model,
			System:   system,
			Messages: RepairToolMessages(msgs),
			Tools:    reg.Specs(),
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res, fmt.Errorf("agent iteration %d: %w", i+1, ctxErr)
			}
			return res, fmt.Errorf("agent iteration %d: %w", i+1, err)
		}

		if len(resp.ToolCalls) == 0 {
			text := strings.TrimSpace(resp.Text)
			if text == "" {
				return res, ErrEmptyAnswer
			}
			res.Text = text
			return res, nil
		}

		msgs = append(msgs, adapter.Message{Role: "assistant", Content: resp.Text, ToolCalls: resp.ToolCalls})
		for _, call := range resp.ToolCalls {
			payload := reg.Dispatch(ctx, call)
			log.Debug().Str("tool", call.Name).Int("iteration", i+1).Msg("tool executed")
			res.ToolsUsed = append(res.ToolsUsed, call.Name)
			msgs = append(msgs, adapter.Message{
				Role:       "tool",
				Content:    payload,
				ToolCallID: call.ID,
				ToolName:   call.Name,
			})
		}
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("agent after tools: %w", err)
		}
	}
	return res, ErrMaxIterations
}
