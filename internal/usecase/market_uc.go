package usecase

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"finance-copilot/internal/domain"
	"finance-copilot/internal/domain/model"
	"finance-copilot/internal/domain/ports/adapter"
	"finance-copilot/internal/infra/logging"
	"finance-copilot/internal/infra/metrics"
)

// Compile-time check
var _ MarketUseCase = (*marketUC)(nil)

// MarketUseCase presents the market providers as one source with fallback.
type MarketUseCase interface {
	Quote(ctx context.Context, symbol string) (*model.Quote, error)
	Candles(ctx context.Context, symbol, resolution string, days int) ([]model.Candle, error)
	Metrics(ctx context.Context, symbol string) (*model.Metrics, error)
	SearchSymbols(ctx context.Context, query string) ([]model.SymbolMatch, error)
	CompanyNews(ctx context.Context, symbol string, days int) ([]model.NewsItem, error)
	GeneralNews(ctx context.Context, category string) ([]model.NewsItem, error)
}

// metricsMergeThreshold is the completeness below which the secondary
// provider is asked to fill gaps.
const metricsMergeThreshold = 0.5

const symbolSearchLimit = 10

var resolutionRe = regexp.MustCompile(`^(1|5|15|30|60|D|W|M)$`)

var newsCategories = map[string]string{
	"general": "general",
	"finance": "general",
	"forex":   "forex",
	"crypto":  "crypto",
	"merger":  "merger",
}

type marketUC struct {
	providers []adapter.MarketProvider // in preference order
	news      adapter.NewsProvider
	cache     adapter.QuoteCache
	cacheTTL  time.Duration
	log       *zerolog.Logger
}

// NewMarketUseCase tries providers in the given order. news and cache may be nil.
func NewMarketUseCase(providers []adapter.MarketProvider, news adapter.NewsProvider, cache adapter.QuoteCache, cacheTTL time.Duration, logger *zerolog.Logger) *marketUC {
	return &marketUC{
		providers: providers,
		news:      news,
		cache:     cache,
		cacheTTL:  cacheTTL,
		log:       logger,
	}
}

func requireSymbol(symbol string) (string, error) {
	sym := model.NormalizeSymbol(symbol)
	if sym == "" {
		return "", domain.NewValidationError("Symbol is required")
	}
	return sym, nil
}

func (m *marketUC) Quote(ctx context.Context, symbol string) (*model.Quote, error) {
	defer logging.TraceDuration(m.log, "MarketUC.Quote")()
	sym, err := requireSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if m.cache != nil {
		if q, ok := m.cache.GetQuote(ctx, sym); ok {
			return q, nil
		}
	}

	upErr := &domain.UpstreamError{What: "quote", Symbol: sym}
	for _, p := range m.providers {
		q, err := p.Quote(ctx, sym)
		metrics.IncProviderRequest(p.Name(), "quote", err == nil)
		if err != nil {
			upErr.Details = append(upErr.Details, detail(p, err))
			continue
		}
		if m.cache != nil {
			if err := m.cache.StoreQuote(ctx, q, m.cacheTTL); err != nil {
				m.log.Warn().Err(err).Str("symbol", sym).Msg("quote cache store failed")
			}
		}
		return q, nil
	}
	m.logExhausted(ctx, upErr)
	return nil, upErr
}

func (m *marketUC) Candles(ctx context.Context, symbol, resolution string, days int) ([]model.Candle, error) {
	defer logging.TraceDuration(m.log, "MarketUC.Candles")()
	sym, err := requireSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if resolution == "" {
		resolution = "D"
	}
	if !resolutionRe.MatchString(resolution) {
		return nil, domain.NewValidationError("Resolution must be one of 1, 5, 15, 30, 60, D, W, M")
	}
	if days < 1 || days > 365 {
		return nil, domain.NewValidationError("Days must be between 1 and 365")
	}

	upErr := &domain.UpstreamError{What: "candles", Symbol: sym}
	for _, p := range m.providers {
		c, err := p.Candles(ctx, sym, resolution, days)
		if err == nil && len(c) == 0 {
			err = fmt.Errorf("no candle data available for %s", sym)
		}
		metrics.IncProviderRequest(p.Name(), "candles", err == nil)
		if err != nil {
			upErr.Details = append(upErr.Details, detail(p, err))
			continue
		}
		return c, nil
	}
	m.logExhausted(ctx, upErr)
	return nil, upErr
}

// Metrics asks the primary provider first and fills missing fields from
// the next one when the primary result is thin or missing. Fields the
// primary supplied always win.
func (m *marketUC) Metrics(ctx context.Context, symbol string) (*model.Metrics, error) {
	defer logging.TraceDuration(m.log, "MarketUC.Metrics")()
	sym, err := requireSymbol(symbol)
	if err != nil {
		return nil, err
	}

	upErr := &domain.UpstreamError{What: "metrics", Symbol: sym}
	var merged *model.Metrics
	for _, p := range m.providers {
		res, err := p.Metrics(ctx, sym)
		metrics.IncProviderRequest(p.Name(), "metrics", err == nil)
		if err != nil {
			upErr.Details = append(upErr.Details, detail(p, err))
			continue
		}
		if merged == nil {
			merged = res
		} else {
			merged.FillFrom(res)
			metrics.IncMetricsMerge()
		}
		if merged.Completeness() >= metricsMergeThreshold {
			break
		}
	}
	if merged == nil {
		m.logExhausted(ctx, upErr)
		return nil, upErr
	}
	if merged.Symbol == "" {
		merged.Symbol = sym
	}
	return merged, nil
}

func (m *marketUC) SearchSymbols(ctx context.Context, query string) ([]model.SymbolMatch, error) {
	defer logging.TraceDuration(m.log, "MarketUC.SearchSymbols")()
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, domain.NewValidationError("Query is required")
	}

	upErr := &domain.UpstreamError{What: "symbol search", Symbol: q}
	for _, p := range m.providers {
		res, err := p.SearchSymbols(ctx, q, symbolSearchLimit)
		metrics.IncProviderRequest(p.Name(), "search", err == nil)
		if err != nil {
			upErr.Details = append(upErr.Details, detail(p, err))
			continue
		}
		return res, nil
	}
	m.logExhausted(ctx, upErr)
	return nil, upErr
}

// CompanyNews is supplementary: failures yield an empty list.
func (m *marketUC) CompanyNews(ctx context.Context, symbol string, days int) ([]model.NewsItem, error) {
	defer logging.TraceDuration(m.log, "MarketUC.CompanyNews")()
	sym, err := requireSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if days < 1 || days > 30 {
		return nil, domain.NewValidationError("Days must be between 1 and 30")
	}
	if m.news == nil {
		return []model.NewsItem{}, nil
	}
	items, err := m.news.CompanyNews(ctx, sym, days)
	metrics.IncProviderRequest("news", "company_news", err == nil)
	if err != nil {
		logging.With(ctx, m.log).Warn().Err(err).Str("symbol", sym).Msg("company news unavailable")
		return []model.NewsItem{}, nil
	}
	if items == nil {
		items = []model.NewsItem{}
	}
	return items, nil
}

func (m *marketUC) GeneralNews(ctx context.Context, category string) ([]model.NewsItem, error) {
	defer logging.TraceDuration(m.log, "MarketUC.GeneralNews")()
	if category == "" {
		category = "general"
	}
	cat, ok := newsCategories[strings.ToLower(category)]
	if !ok {
		return nil, domain.NewValidationError("Category must be one of general, forex, crypto, merger")
	}
	if m.news == nil {
		return []model.NewsItem{}, nil
	}
	items, err := m.news.GeneralNews(ctx, cat)
	metrics.IncProviderRequest("news", "general_news", err == nil)
	if err != nil {
		logging.With(ctx, m.log).Warn().Err(err).Str("category", cat).Msg("general news unavailable")
		return []model.NewsItem{}, nil
	}
	if items == nil {
		items = []model.NewsItem{}
	}
	return items, nil
}

func detail(p adapter.MarketProvider, err error) string {
	return p.Name() + ": " + err.Error()
}

func (m *marketUC) logExhausted(ctx context.Context, err *domain.UpstreamError) {
	logging.With(ctx, m.log).Warn().
		Str("what", err.What).
		Str("symbol", err.Symbol).
		Strs("details", err.Details).
		Msg("all market providers failed")
}
