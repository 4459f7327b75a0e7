// File: internal/usecase/chat_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"finance-copilot/internal/agent"
	"finance-copilot/internal/domain"
	"finance-copilot/internal/domain/model"
	"finance-copilot/internal/domain/ports/adapter"
	"finance-copilot/internal/infra/logging"
	"finance-copilot/internal/infra/metrics"
)

// Compile-time check
var _ ChatUseCase = (*chatUC)(nil)

// ChatUseCase runs one chat turn end to end and manages the caller's sessions.
type ChatUseCase interface {
	Chat(ctx context.Context, userID, message, sessionID string) (*ChatReply, error)
	ListSessions(ctx context.Context, userID string) ([]*model.ChatSession, error)
	GetSession(ctx context.Context, userID, sessionID string) (*SessionDetail, error)
	CreateSession(ctx context.Context, userID string) (*model.ChatSession, error)
	DeleteSession(ctx context.Context, userID, sessionID string) error
}

// ChatReply is the assistant side of a finished turn.
type ChatReply struct {
	Role      string
	Content   string
	Timestamp time.Time
	SessionID string
}

type SessionDetail struct {
	Session  *model.ChatSession
	Messages []*model.ChatMessage
}

const (
	MsgNoLLM = "AI features require Gemini API key. Please configure it in environment variables."
	MsgQuota = "I'm temporarily unavailable because the AI service quota has been exceeded. Please try again in a few minutes."
	MsgError = "I'm temporarily unavailable due to a technical issue. Please try again shortly."

	emptyWatchlist = "empty"
	seedWindow     = 10
	summaryWindow  = 20
	directHistory  = 5
)

const agentSystemPrompt = `You are FinanceCopilot, a knowledgeable financial assistant.
- Use the provided tools to fetch real-time data when needed
- Always use tools to get current stock prices, metrics, and news
- Reference specific numbers and metrics when available
- Maintain conversation continuity
- Be conversational and helpful, not robotic
- IMPORTANT: Do NOT use markdown formatting. Write in plain text only.

When a user asks about a stock:
1. First search for the symbol if needed (search_stock_symbols)
2. Get current quote (get_stock_quote)
3. Get metrics if asked about fundamentals (get_stock_metrics)
4. Get news if asked about recent events (get_stock_news)
5. Use watchlist tool if user asks about their watchlist (get_watchlist)

Always fetch real-time data - don't make up prices or metrics.`

const directSystemPrompt = `You are FinanceCopilot, a knowledgeable financial assistant.
- Use the provided context data to give accurate, data-driven answers
- Reference specific numbers and metrics when available
- Maintain conversation continuity by referencing previous discussions when relevant
- Be conversational and helpful, not robotic
- IMPORTANT: Do NOT use markdown formatting. Write in plain text only.`

const summarizerPrompt = "You are a conversation summarizer. Create a concise summary of the key topics, questions, and context discussed."

// ChatOptions selects the models for each tier.
type ChatOptions struct {
	// Model drives the tool-calling agent and summaries.
	Model string
	// FallbackModel answers the direct tier.
	FallbackModel string
}

type chatUC struct {
	conv      ConversationUseCase
	knowledge KnowledgeUseCase
	watchlist WatchlistUseCase
	market    agent.MarketData
	ai        adapter.AIServiceAdapter
	runner    *agent.Runner
	buffers   *agent.BufferCache
	opts      ChatOptions
	log       *zerolog.Logger
}

func NewChatUseCase(
	conv ConversationUseCase,
	knowledge KnowledgeUseCase,
	watchlist WatchlistUseCase,
	market agent.MarketData,
	ai adapter.AIServiceAdapter,
	runner *agent.Runner,
	buffers *agent.BufferCache,
	opts ChatOptions,
	logger *zerolog.Logger,
) *chatUC {
	if opts.FallbackModel == "" {
		opts.FallbackModel = opts.Model
	}
	return &chatUC{
		conv: conv, knowledge: knowledge, watchlist: watchlist, market: market,
		ai: ai, runner: runner, buffers: buffers, opts: opts, log: logger,
	}
}

// turnContext is everything gathered before the model is asked.
type turnContext struct {
	snippets  []model.SearchHit
	watchlist []string
	summary   string
	history   []adapter.Message
}

func (c *chatUC) Chat(ctx context.Context, userID, message, sessionID string) (*ChatReply, error) {
	defer logging.TraceDuration(c.log, "ChatUC.Chat")()
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, domain.NewValidationError("Message is required")
	}

	s, err := c.resolveSession(ctx, userID, message, sessionID)
	if err != nil {
		return nil, err
	}
	ctx = logging.WithSessID(ctx, s.ID)
	log := logging.With(ctx, c.log)

	history, err := c.conv.Messages(ctx, userID, s.ID, 0)
	if err != nil {
		return nil, err
	}
	if s.NeedsSummary() {
		c.summarizeHistory(ctx, userID, s, history)
	}

	buf, ok := c.buffers.Get(userID, s.ID)
	if !ok {
		buf = c.buffers.Create(userID, s.ID)
		buf.Seed(s.SummaryText(), lastMessages(history, seedWindow))
	}

	if _, err := c.conv.AppendMessage(ctx, userID, s.ID, model.RoleUser, message); err != nil {
		return nil, err
	}

	tc := turnContext{
		snippets:  c.snippets(ctx, userID, message),
		watchlist: c.watchlistSymbols(ctx, userID),
		summary:   s.SummaryText(),
		history:   buf.History(),
	}
	if tc.summary == "" {
		tc.summary = buf.Summary()
	}

	outcome := c.respond(ctx, userID, message, tc)
	log.Debug().Str("outcome", outcome.Kind.String()).Msg("chat turn answered")

	reply, err := c.conv.AppendMessage(ctx, userID, s.ID, model.RoleAssistant, outcome.Text)
	if err != nil {
		return nil, err
	}

	buf.Append(model.RoleUser, message)
	buf.Append(model.RoleAssistant, outcome.Text)
	c.refreshSummary(ctx, userID, s, buf)

	return &ChatReply{
		Role:      model.RoleAssistant,
		Content:   reply.Content,
		Timestamp: reply.CreatedAt,
		SessionID: s.ID,
	}, nil
}

func (c *chatUC) resolveSession(ctx context.Context, userID, message, sessionID string) (*model.ChatSession, error) {
	if strings.TrimSpace(sessionID) == "" {
		return c.conv.CreateSession(ctx, userID, message)
	}
	return c.conv.GetSession(ctx, userID, sessionID)
}

// respond walks the fallback chain: agent, direct model call, fixed text.
func (c *chatUC) respond(ctx context.Context, userID, message string, tc turnContext) agent.Outcome {
	log := logging.With(ctx, c.log)

	out := c.agentTier(ctx, userID, message, tc)
	if out.Kind == agent.KindOk {
		metrics.IncChatOutcome("agent")
		return out
	}
	log.Warn().Err(out.Reason).Msg("agent tier failed; using direct model call")

	out = c.directTier(ctx, message, tc)
	if out.Kind == agent.KindOk {
		metrics.IncChatOutcome("direct")
		return out
	}
	log.Error().Err(out.Reason).Msg("direct tier failed")

	switch {
	case errors.Is(out.Reason, domain.ErrLLMNotConfigured):
		metrics.IncChatOutcome("unconfigured")
		out.Text = MsgNoLLM
	case agent.IsQuotaError(out.Reason):
		metrics.IncChatOutcome("quota")
		out.Text = MsgQuota
	default:
		metrics.IncChatOutcome("error")
		out.Text = MsgError
	}
	return out
}

func (c *chatUC) agentTier(ctx context.Context, userID, message string, tc turnContext) agent.Outcome {
	if c.runner == nil {
		return agent.Degraded(domain.ErrLLMNotConfigured)
	}
	input := message
	if len(tc.snippets) > 0 {
		input = "Relevant context from the knowledge base:\n" + FormatSnippets(tc.snippets) + "\n\nQuestion: " + message
	}
	system := agentSystemPrompt + "\n\nUser's watchlist: " + watchlistLine(tc.watchlist)
	if tc.summary != "" {
		system += "\nPrevious conversation summary: " + tc.summary
	}

	reg := agent.BuildRegistry(userID, c.market, c.knowledge, c.watchlist)
	res, err := c.runner.Run(ctx, system, tc.history, input, reg)
	if err != nil {
		return agent.Degraded(err)
	}
	logging.With(ctx, c.log).Debug().Strs("tools", res.ToolsUsed).Int("iterations", res.Iterations).Msg("agent answered")
	return agent.Ok(res.Text)
}

func (c *chatUC) directTier(ctx context.Context, message string, tc turnContext) agent.Outcome {
	var parts []string
	if tc.summary != "" {
		parts = append(parts, "Previous Conversation Summary: "+tc.summary)
	}
	if len(tc.watchlist) > 0 {
		parts = append(parts, "User's Watchlist: "+strings.Join(tc.watchlist, ", "))
	}
	if syms := DetectSymbols(message); len(syms) > 0 {
		parts = append(parts, "Stocks mentioned in question: "+strings.Join(syms, ", "))
	}
	if len(tc.snippets) > 0 {
		parts = append(parts, "Knowledge base:\n"+FormatSnippets(tc.snippets))
	}

	system := directSystemPrompt
	if len(parts) > 0 {
		system += "\n\nContext:\n- " + strings.Join(parts, "\n- ")
	}

	msgs := []adapter.Message{{Role: "system", Content: system}}
	msgs = append(msgs, plainTurns(tc.history, directHistory)...)
	msgs = append(msgs, adapter.Message{Role: model.RoleUser, Content: message})

	text, err := c.ai.Chat(ctx, c.opts.FallbackModel, msgs)
	if err != nil {
		return agent.Unavailable(err)
	}
	if text = strings.TrimSpace(text); text == "" {
		return agent.Unavailable(agent.ErrEmptyAnswer)
	}
	return agent.Ok(text)
}

func (c *chatUC) snippets(ctx context.Context, userID, message string) []model.SearchHit {
	if c.knowledge == nil {
		return nil
	}
	hits, err := c.knowledge.Search(ctx, message, userID, contextSnippets)
	if err != nil {
		logging.With(ctx, c.log).Warn().Err(err).Msg("knowledge lookup failed")
		return nil
	}
	return hits
}

func (c *chatUC) watchlistSymbols(ctx context.Context, userID string) []string {
	syms, err := c.watchlist.Symbols(ctx, userID)
	if err != nil {
		logging.With(ctx, c.log).Warn().Err(err).Msg("watchlist lookup failed")
		return nil
	}
	return syms
}

func watchlistLine(syms []string) string {
	if len(syms) == 0 {
		return emptyWatchlist
	}
	return strings.Join(syms, ", ")
}

// summarizeHistory persists a summary of the latest messages once the
// session crosses the threshold. Failures are logged only.
func (c *chatUC) summarizeHistory(ctx context.Context, userID string, s *model.ChatSession, history []*model.ChatMessage) {
	turns := make([]adapter.Message, 0, summaryWindow)
	for _, m := range lastMessages(history, summaryWindow) {
		turns = append(turns, adapter.Message{Role: m.Role, Content: m.Content})
	}
	summary, err := c.Summarize(ctx, "", turns)
	if err != nil {
		metrics.IncSummary("threshold", "error")
		logging.With(ctx, c.log).Warn().Err(err).Msg("session summary failed")
		return
	}
	if err := c.conv.UpdateSummary(ctx, userID, s.ID, summary); err != nil {
		metrics.IncSummary("threshold", "error")
		logging.With(ctx, c.log).Warn().Err(err).Msg("persist session summary failed")
		return
	}
	metrics.IncSummary("threshold", "ok")
	s.Summary = &summary
}

// refreshSummary compacts the buffer and persists its summary when it moved
// away from the stored one.
func (c *chatUC) refreshSummary(ctx context.Context, userID string, s *model.ChatSession, buf *agent.Buffer) {
	log := logging.With(ctx, c.log)
	if _, err := buf.Compact(ctx, c.Summarize); err != nil {
		metrics.IncSummary("buffer", "error")
		log.Warn().Err(err).Msg("buffer compaction failed")
	}
	sum := buf.Summary()
	if sum == "" || sum == s.SummaryText() {
		return
	}
	if err := c.conv.UpdateSummary(ctx, userID, s.ID, sum); err != nil {
		metrics.IncSummary("buffer", "error")
		log.Warn().Err(err).Msg("persist buffer summary failed")
		return
	}
	metrics.IncSummary("buffer", "ok")
}

// Summarize folds turns into previous with one model call.
func (c *chatUC) Summarize(ctx context.Context, previous string, turns []adapter.Message) (string, error) {
	if len(turns) == 0 {
		return previous, nil
	}
	var sb strings.Builder
	for _, t := range turns {
		role := "Assistant"
		if t.Role == model.RoleUser {
			role = "User"
		}
		fmt.Fprintf(&sb, "%s: %s\n\n", role, t.Content)
	}
	prompt := "Summarize this conversation in 2-3 sentences, focusing on:\n" +
		"- Main topics discussed\n- Key stocks or companies mentioned\n" +
		"- User's interests or questions\n- Important context or preferences\n\n"
	if previous != "" {
		prompt += "Earlier summary:\n" + previous + "\n\n"
	}
	prompt += "Conversation:\n" + sb.String() + "Summary:"

	text, err := c.ai.Chat(ctx, c.opts.Model, []adapter.Message{
		{Role: "system", Content: summarizerPrompt},
		{Role: model.RoleUser, Content: prompt},
	})
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("empty summary")
	}
	return text, nil
}

func (c *chatUC) ListSessions(ctx context.Context, userID string) ([]*model.ChatSession, error) {
	return c.conv.ListSessions(ctx, userID, 0)
}

func (c *chatUC) GetSession(ctx context.Context, userID, sessionID string) (*SessionDetail, error) {
	defer logging.TraceDuration(c.log, "ChatUC.GetSession")()
	s, err := c.conv.GetSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	msgs, err := c.conv.Messages(ctx, userID, sessionID, 0)
	if err != nil {
		return nil, err
	}
	return &SessionDetail{Session: s, Messages: msgs}, nil
}

func (c *chatUC) CreateSession(ctx context.Context, userID string) (*model.ChatSession, error) {
	return c.conv.CreateSession(ctx, userID, "")
}

func (c *chatUC) DeleteSession(ctx context.Context, userID, sessionID string) error {
	defer logging.TraceDuration(c.log, "ChatUC.DeleteSession")()
	if err := c.conv.DeleteSession(ctx, userID, sessionID); err != nil {
		return err
	}
	c.buffers.Evict(userID, sessionID)
	return nil
}

func lastMessages(msgs []*model.ChatMessage, n int) []*model.ChatMessage {
	if len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}

// plainTurns keeps the last n user/assistant turns without tool traffic.
func plainTurns(msgs []adapter.Message, n int) []adapter.Message {
	out := make([]adapter.Message, 0, n)
	for _, m := range msgs {
		if model.ValidRole(m.Role) && m.Content != "" && len(m.ToolCalls) == 0 {
			out = append(out, adapter.Message{Role: m.Role, Content: m.Content})
		}
	}
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}

var tickerRe = regexp.MustCompile(`\$?\b[A-Z]{1,5}\b`)

var tickerStopwords = map[string]struct{}{
	"I": {}, "A": {}, "AN": {}, "THE": {}, "AND": {}, "OR": {}, "IS": {}, "IT": {}, "TO": {},
	"OF": {}, "IN": {}, "ON": {}, "FOR": {}, "AT": {}, "BY": {}, "IF": {}, "SO": {}, "DO": {},
	"BE": {}, "ME": {}, "MY": {}, "US": {}, "OK": {}, "VS": {}, "AI": {}, "CEO": {}, "CFO": {},
	"USD": {}, "EUR": {}, "ETF": {}, "IPO": {}, "EPS": {}, "PE": {}, "GDP": {}, "FAQ": {},
	"WHAT": {}, "HOW": {}, "WHY": {}, "WHO": {}, "BUY": {}, "SELL": {}, "HOLD": {},
}

// DetectSymbols returns upper-case words that look like tickers, in order of
// first appearance.
func DetectSymbols(text string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, m := range tickerRe.FindAllString(text, -1) {
		sym := strings.TrimPrefix(m, "$")
		if _, stop := tickerStopwords[sym]; stop {
			continue
		}
		if _, dup := seen[sym]; dup {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	return out
}
