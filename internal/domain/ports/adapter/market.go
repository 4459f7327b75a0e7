package adapter

import (
	"context"
	"time"

	"finance-copilot/internal/domain/model"
)

// MarketProvider is one upstream price/fundamentals source.
type MarketProvider interface {
	Name() string
	Quote(ctx context.Context, symbol string) (*model.Quote, error)
	Candles(ctx context.Context, symbol, resolution string, days int) ([]model.Candle, error)
	Metrics(ctx context.Context, symbol string) (*model.Metrics, error)
	SearchSymbols(ctx context.Context, query string, limit int) ([]model.SymbolMatch, error)
}

// NewsProvider serves company and market news.
type NewsProvider interface {
	CompanyNews(ctx context.Context, symbol string, days int) ([]model.NewsItem, error)
	GeneralNews(ctx context.Context, category string) ([]model.NewsItem, error)
}

// QuoteCache short-circuits repeated quote lookups. Implementations must
// treat their own failures as misses.
type QuoteCache interface {
	GetQuote(ctx context.Context, symbol string) (*model.Quote, bool)
	StoreQuote(ctx context.Context, q *model.Quote, ttl time.Duration) error
}
