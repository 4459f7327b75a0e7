package agent

import (
	"context"
	"strings"

	"finance-copilot/internal/domain/model"
	"finance-copilot/internal/domain/ports/adapter"
)

// Tool names are part of the conversation history the provider sees and
// must stay stable.
const (
	ToolSearchSymbols   = "search_stock_symbols"
	ToolQuote           = "get_stock_quote"
	ToolMetrics         = "get_stock_metrics"
	ToolNews            = "get_stock_news"
	ToolCandles         = "get_stock_candles"
	ToolSearchKnowledge = "search_knowledge_base"
	ToolGetWatchlist    = "get_watchlist"
	ToolAddWatchlist    = "add_to_watchlist"
	ToolRemoveWatchlist = "remove_from_watchlist"
	ToolCompare         = "compare_stocks"
)

// MarketData is the slice of the market gateway the tools use.
type MarketData interface {
	Quote(ctx context.Context, symbol string) (*model.Quote, error)
	Candles(ctx context.Context, symbol, resolution string, days int) ([]model.Candle, error)
	Metrics(ctx context.Context, symbol string) (*model.Metrics, error)
	SearchSymbols(ctx context.Context, query string) ([]model.SymbolMatch, error)
	CompanyNews(ctx context.Context, symbol string, days int) ([]model.NewsItem, error)
}

// Knowledge searches documents visible to one user.
type Knowledge interface {
	Search(ctx context.Context, query, userID string, limit int) ([]model.SearchHit, error)
}

// Watchlist is the caller-scoped watchlist collaborator.
type Watchlist interface {
	List(ctx context.Context, userID string) ([]model.PricedItem, error)
	Add(ctx context.Context, userID, symbol, name string) (*model.WatchlistItem, error)
	Remove(ctx context.Context, userID, symbol string) error
}

var symbolParam = adapter.ToolParam{Name: "symbol", Type: "string", Description: "Ticker symbol, e.g. AAPL", Required: true}

// MarketTools are stateless and may be shared across users.
func MarketTools(md MarketData) []Tool {
	return []Tool{
		{
			Name:        ToolSearchSymbols,
			Description: "Search for stock ticker symbols by company name or keyword.",
			Params:      []adapter.ToolParam{{Name: "query", Type: "string", Description: "Company name or keyword", Required: true}},
			Handler: func(ctx context.Context, a Args) (any, error) {
				q, err := a.RequireString("query")
				if err != nil {
					return nil, err
				}
				res, err := md.SearchSymbols(ctx, q)
				if err != nil {
					return nil, err
				}
				if len(res) > 10 {
					res = res[:10]
				}
				return map[string]any{"query": q, "results": res}, nil
			},
		},
		{
			Name:        ToolQuote,
			Description: "Get the real-time price quote for a stock symbol.",
			Params:      []adapter.ToolParam{symbolParam},
			Handler: func(ctx context.Context, a Args) (any, error) {
				sym, err := a.RequireString("symbol")
				if err != nil {
					return nil, err
				}
				return md.Quote(ctx, model.NormalizeSymbol(sym))
			},
		},
		{
			Name:        ToolMetrics,
			Description: "Get fundamental metrics (P/E, EPS, market cap, margins, growth) for a stock symbol.",
			Params:      []adapter.ToolParam{symbolParam},
			Handler: func(ctx context.Context, a Args) (any, error) {
				sym, err := a.RequireString("symbol")
				if err != nil {
					return nil, err
				}
				return md.Metrics(ctx, model.NormalizeSymbol(sym))
			},
		},
		{
			Name:        ToolNews,
			Description: "Get recent company news for a stock symbol.",
			Params: []adapter.ToolParam{
				symbolParam,
				{Name: "days", Type: "integer", Description: "How many days back to look (default 7)"},
			},
			Handler: func(ctx context.Context, a Args) (any, error) {
				sym, err := a.RequireString("symbol")
				if err != nil {
					return nil, err
				}
				sym = model.NormalizeSymbol(sym)
				news, err := md.CompanyNews(ctx, sym, clamp(a.Int("days", 7), 1, 30))
				if err != nil {
					return nil, err
				}
				if len(news) > 10 {
					news = news[:10]
				}
				return map[string]any{"symbol": sym, "news": news}, nil
			},
		},
		{
			Name:        ToolCandles,
			Description: "Get historical OHLCV candles for a stock symbol.",
			Params: []adapter.ToolParam{
				symbolParam,
				{Name: "days", Type: "integer", Description: "How many days of history (default 30)"},
				{Name: "resolution", Type: "string", Description: "Candle resolution", Enum: []string{"1", "5", "15", "30", "60", "D", "W", "M"}},
			},
			Handler: func(ctx context.Context, a Args) (any, error) {
				sym, err := a.RequireString("symbol")
				if err != nil {
					return nil, err
				}
				sym = model.NormalizeSymbol(sym)
				res := a.String("resolution")
				if res == "" {
					res = "D"
				}
				candles, err := md.Candles(ctx, sym, res, clamp(a.Int("days", 30), 1, 365))
				if err != nil {
					return nil, err
				}
				if len(candles) > 30 {
					candles = candles[len(candles)-30:]
				}
				return map[string]any{"symbol": sym, "resolution": res, "candles": candles}, nil
			},
		},
		{
			Name:        ToolCompare,
			Description: "Compare price and fundamentals of two stock symbols side by side.",
			Params: []adapter.ToolParam{
				{Name: "symbol_a", Type: "string", Description: "First ticker", Required: true},
				{Name: "symbol_b", Type: "string", Description: "Second ticker", Required: true},
			},
			Handler: func(ctx context.Context, a Args) (any, error) {
				symA, err := a.RequireString("symbol_a")
				if err != nil {
					return nil, err
				}
				symB, err := a.RequireString("symbol_b")
				if err != nil {
					return nil, err
				}
				return map[string]any{
					"a": compareSide(ctx, md, model.NormalizeSymbol(symA)),
					"b": compareSide(ctx, md, model.NormalizeSymbol(symB)),
				}, nil
			},
		},
	}
}

// compareSide keeps going when one half fails so the model still gets the
// other half.
func compareSide(ctx context.Context, md MarketData, sym string) map[string]any {
	out := map[string]any{"symbol": sym}
	if q, err := md.Quote(ctx, sym); err != nil {
		out["quote_error"] = err.Error()
	} else {
		out["quote"] = q
	}
	if m, err := md.Metrics(ctx, sym); err != nil {
		out["metrics_error"] = err.Error()
	} else {
		out["metrics"] = m
	}
	return out
}

// UserTools close over userID so the model can only touch the caller's data.
func UserTools(userID string, kb Knowledge, wl Watchlist, md MarketData) []Tool {
	var tools []Tool
	if kb != nil {
		tools = append(tools, Tool{
			Name:        ToolSearchKnowledge,
			Description: "Search the financial knowledge base for relevant documents.",
			Params:      []adapter.ToolParam{{Name: "query", Type: "string", Description: "What to look for", Required: true}},
			Handler: func(ctx context.Context, a Args) (any, error) {
				q, err := a.RequireString("query")
				if err != nil {
					return nil, err
				}
				hits, err := kb.Search(ctx, q, userID, 3)
				if err != nil {
					return nil, err
				}
				type hit struct {
					Title   string  `json:"title"`
					Content string  `json:"content"`
					Score   float64 `json:"score"`
				}
				out := make([]hit, 0, len(hits))
				for _, h := range hits {
					out = append(out, hit{Title: h.Title, Content: model.Preview(h.Content, model.PreviewRunes), Score: h.Score})
				}
				return map[string]any{"query": q, "results": out}, nil
			},
		})
	}
	if wl == nil {
		return tools
	}
	return append(tools,
		Tool{
			Name:        ToolGetWatchlist,
			Description: "List the symbols on the user's watchlist with last known prices.",
			Handler: func(ctx context.Context, _ Args) (any, error) {
				items, err := wl.List(ctx, userID)
				if err != nil {
					return nil, err
				}
				type row struct {
					Symbol        string   `json:"symbol"`
					Name          string   `json:"name"`
					CurrentPrice  *float64 `json:"current_price"`
					ChangePercent *float64 `json:"change_percent"`
					Freshness     string   `json:"freshness"`
				}
				out := make([]row, 0, len(items))
				for _, p := range items {
					out = append(out, row{
						Symbol: p.Item.Symbol, Name: p.Item.Name,
						CurrentPrice: p.Item.CurrentPrice, ChangePercent: p.Item.ChangePercent,
						Freshness: string(p.Freshness),
					})
				}
				return map[string]any{"count": len(out), "items": out}, nil
			},
		},
		Tool{
			Name:        ToolAddWatchlist,
			Description: "Add a stock symbol to the user's watchlist.",
			Params: []adapter.ToolParam{
				symbolParam,
				{Name: "name", Type: "string", Description: "Display name; looked up when omitted"},
			},
			Handler: func(ctx context.Context, a Args) (any, error) {
				sym, err := a.RequireString("symbol")
				if err != nil {
					return nil, err
				}
				name := a.String("name")
				if name == "" && md != nil {
					name = resolveName(ctx, md, sym)
				}
				it, err := wl.Add(ctx, userID, sym, name)
				if err != nil {
					return nil, err
				}
				return map[string]any{"added": true, "symbol": it.Symbol, "name": it.Name}, nil
			},
		},
		Tool{
			Name:        ToolRemoveWatchlist,
			Description: "Remove a stock symbol from the user's watchlist.",
			Params:      []adapter.ToolParam{symbolParam},
			Handler: func(ctx context.Context, a Args) (any, error) {
				sym, err := a.RequireString("symbol")
				if err != nil {
					return nil, err
				}
				sym = model.NormalizeSymbol(sym)
				if err := wl.Remove(ctx, userID, sym); err != nil {
					return nil, err
				}
				return map[string]any{"removed": true, "symbol": sym}, nil
			},
		},
	)
}

// resolveName prefers an exact symbol match from search, else the first hit.
func resolveName(ctx context.Context, md MarketData, sym string) string {
	matches, err := md.SearchSymbols(ctx, sym)
	if err != nil || len(matches) == 0 {
		return ""
	}
	want := model.NormalizeSymbol(sym)
	for _, m := range matches {
		if strings.EqualFold(m.Symbol, want) {
			return m.Description
		}
	}
	return matches[0].Description
}

// BuildRegistry assembles the full tool set for one caller.
func BuildRegistry(userID string, md MarketData, kb Knowledge, wl Watchlist) *Registry {
	tools := MarketTools(md)
	tools = append(tools, UserTools(userID, kb, wl, md)...)
	return NewRegistry(tools...)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
