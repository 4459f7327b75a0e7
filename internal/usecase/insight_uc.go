package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"finance-copilot/internal/domain"
	"finance-copilot/internal/domain/model"
	"finance-copilot/internal/domain/ports/adapter"
	"finance-copilot/internal/infra/logging"
)

// Compile-time check
var _ InsightUseCase = (*insightUC)(nil)

type InsightUseCase interface {
	Insight(ctx context.Context, symbol string) (*model.Insight, error)
	CompanyAnalysis(ctx context.Context, symbol string) (*model.CompanyAnalysis, error)
}

const (
	insightNewsDays  = 7
	trendDays        = 30
	maxKeyPoints     = 5
	minKeyPointRunes = 10
)

const insightSystemPrompt = "You are a financial analyst. Provide concise, punchy insights - just 4-5 cool key points. Be brief, data-driven, and insightful."

const analysisSystemPrompt = "You are a financial analyst providing fundamental analysis."

var numbers = message.NewPrinter(language.English)

type insightUC struct {
	market MarketUseCase
	ai     adapter.AIServiceAdapter
	model  string
	log    *zerolog.Logger
}

func NewInsightUseCase(market MarketUseCase, ai adapter.AIServiceAdapter, model string, logger *zerolog.Logger) *insightUC {
	return &insightUC{market: market, ai: ai, model: model, log: logger}
}

// Insight requires a quote; metrics, news and the price trend only enrich
// the prompt.
func (u *insightUC) Insight(ctx context.Context, symbol string) (*model.Insight, error) {
	defer logging.TraceDuration(u.log, "InsightUC.Insight")()
	q, err := u.market.Quote(ctx, symbol)
	if err != nil {
		return nil, err
	}
	sym := q.Symbol
	if sym == "" {
		sym = model.NormalizeSymbol(symbol)
	}
	log := logging.With(ctx, u.log)

	m, err := u.market.Metrics(ctx, sym)
	if err != nil {
		log.Warn().Err(err).Str("symbol", sym).Msg("insight without metrics")
		m = nil
	}
	news, _ := u.market.CompanyNews(ctx, sym, insightNewsDays)
	trend := u.trend(ctx, sym)

	out := &model.Insight{Symbol: sym, GeneratedAt: time.Now().UTC().Format(time.RFC3339)}

	text, err := u.ai.Chat(ctx, u.model, []adapter.Message{
		{Role: "system", Content: insightSystemPrompt},
		{Role: model.RoleUser, Content: insightPrompt(sym, q, m, news, trend)},
	})
	if err != nil {
		if !errors.Is(err, domain.ErrLLMNotConfigured) {
			log.Warn().Err(err).Str("symbol", sym).Msg("insight generation failed")
		}
		out.Summary = fmt.Sprintf("%s shows current price of $%.2f with %.2f%% change.", sym, q.CurrentPrice, q.ChangePercent)
		out.KeyPoints = []string{
			fmt.Sprintf("Price: $%.2f", q.CurrentPrice),
			fmt.Sprintf("Change: %.2f%%", q.ChangePercent),
		}
		return out, nil
	}

	points := ParseKeyPoints(text)
	if len(points) == 0 {
		points = dataPoints(q, m)
	}
	if len(points) > maxKeyPoints {
		points = points[:maxKeyPoints]
	}
	head := points
	if len(head) > 2 {
		head = head[:2]
	}
	out.KeyPoints = points
	out.Summary = sym + " insights: " + strings.Join(head, ". ") + "."
	return out, nil
}

// trend describes the 30-day move; it is empty when candles are unavailable.
func (u *insightUC) trend(ctx context.Context, sym string) string {
	candles, err := u.market.Candles(ctx, sym, "D", trendDays)
	if err != nil || len(candles) < 2 {
		return ""
	}
	first, last := candles[0].Close, candles[len(candles)-1].Close
	if first == 0 {
		return ""
	}
	pct := (last - first) / first * 100
	dir := "up"
	if pct < 0 {
		dir = "down"
	}
	return fmt.Sprintf("%s %.1f%% over the last %d days", dir, pct, trendDays)
}

func insightPrompt(sym string, q *model.Quote, m *model.Metrics, news []model.NewsItem, trend string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate exactly 4-5 concise, insightful bullet points about %s stock.\n\nData:\n", sym)
	b.WriteString(numbers.Sprintf("- Price: $%.2f (%+.2f%%), Volume: %d\n", q.CurrentPrice, q.ChangePercent, q.Volume))
	if m != nil {
		var parts []string
		if m.PERatio != nil {
			parts = append(parts, fmt.Sprintf("P/E: %.2f", *m.PERatio))
		}
		if m.MarketCap != nil {
			parts = append(parts, numbers.Sprintf("Market Cap: $%.0f", *m.MarketCap))
		}
		if m.RevenueGrowth != nil {
			parts = append(parts, fmt.Sprintf("Revenue Growth: %.1f%%", *m.RevenueGrowth*100))
		}
		if len(parts) > 0 {
			b.WriteString("- " + strings.Join(parts, ", ") + "\n")
		}
	}
	if len(news) > 0 && news[0].Title != "" {
		b.WriteString("- Recent news: " + model.Preview(news[0].Title, 100) + "\n")
	}
	if trend != "" {
		b.WriteString("- Trend: " + trend + "\n")
	}
	b.WriteString("\nFormat as bullet points (• or -). Each point should be one sentence, data-driven and specific, " +
		"and focus on what matters to investors.\n\nGenerate 4-5 points now:")
	return b.String()
}

// ParseKeyPoints extracts bullet or numbered lines longer than ten
// characters, falling back to the first sentences of the text.
func ParseKeyPoints(text string) []string {
	var points []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		first := []rune(line)[0]
		if first != '•' && first != '-' && first != '*' && !unicode.IsDigit(first) {
			continue
		}
		p := strings.TrimSpace(strings.TrimLeft(line, "•-*0123456789.) "))
		if len([]rune(p)) > minKeyPointRunes {
			points = append(points, p)
		}
	}
	if len(points) > 0 {
		return points
	}
	for _, s := range strings.Split(strings.ReplaceAll(text, "\n", " "), ".") {
		if s = strings.TrimSpace(s); s != "" {
			points = append(points, s)
		}
		if len(points) == maxKeyPoints {
			break
		}
	}
	return points
}

func dataPoints(q *model.Quote, m *model.Metrics) []string {
	points := []string{
		fmt.Sprintf("Trading at $%.2f (%+.2f%% today)", q.CurrentPrice, q.ChangePercent),
		numbers.Sprintf("Volume: %d shares", q.Volume),
	}
	if m != nil && m.PERatio != nil {
		points = append(points, fmt.Sprintf("P/E Ratio: %.2f", *m.PERatio))
	}
	if q.ChangePercent > 0 {
		points = append(points, "Showing positive momentum")
	} else {
		points = append(points, "Facing downward pressure")
	}
	return points
}

// CompanyAnalysis requires metrics; the AI summary degrades to a fixed
// sentence built from them.
func (u *insightUC) CompanyAnalysis(ctx context.Context, symbol string) (*model.CompanyAnalysis, error) {
	defer logging.TraceDuration(u.log, "InsightUC.CompanyAnalysis")()
	m, err := u.market.Metrics(ctx, symbol)
	if err != nil {
		return nil, err
	}
	sym := m.Symbol
	if sym == "" {
		sym = model.NormalizeSymbol(symbol)
	}
	out := &model.CompanyAnalysis{Symbol: sym, Metrics: m, HealthScore: model.HealthScore(m)}

	text, err := u.ai.Chat(ctx, u.model, []adapter.Message{
		{Role: "system", Content: analysisSystemPrompt},
		{Role: model.RoleUser, Content: analysisPrompt(sym, m)},
	})
	if err == nil {
		text = strings.TrimSpace(text)
	}
	if err != nil || text == "" {
		if err != nil && !errors.Is(err, domain.ErrLLMNotConfigured) {
			logging.With(ctx, u.log).Warn().Err(err).Str("symbol", sym).Msg("company analysis generation failed")
		}
		text = numbers.Sprintf("%s fundamentals analysis: P/E ratio %s, Market Cap $%.0f.", sym, optional(m.PERatio), valueOr(m.MarketCap))
	}
	out.AISummary = text
	return out, nil
}

func analysisPrompt(sym string, m *model.Metrics) string {
	return numbers.Sprintf(`Analyze the financial health of %s based on these metrics:

- P/E Ratio: %s
- EPS: %s
- Market Cap: $%.0f
- Dividend Yield: %s
- Profit Margin: %s
- Revenue Growth: %s
- Price to Book: %s
- Debt to Equity: %s

Provide a 3-4 sentence analysis comparing these metrics to industry standards and assessing overall company health.`,
		sym, optional(m.PERatio), optional(m.EPS), valueOr(m.MarketCap), optional(m.DividendYield),
		optional(m.ProfitMargin), optional(m.RevenueGrowth), optional(m.PriceToBook), optional(m.DebtToEquity))
}

func optional(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.2f", *v)
}

func valueOr(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
