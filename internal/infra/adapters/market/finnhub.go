// File: internal/infra/adapters/market/finnhub.go
package market

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"finance-copilot/internal/domain/model"
	"finance-copilot/internal/domain/ports/adapter"
)

var (
	_ adapter.MarketProvider = (*Finnhub)(nil)
	_ adapter.NewsProvider   = (*Finnhub)(nil)
)

const (
	finnhubBaseURL      = "https://finnhub.io/api/v1"
	companyNewsLimit    = 10
	generalNewsLimit    = 20
	finnhubDateLayout   = "2006-01-02"
	finnhubProviderName = "finnhub"
)

// Finnhub is the primary market-data provider and the only news source.
type Finnhub struct {
	apiKey  string
	baseURL string
	client  *http.Client
	now     func() time.Time
}

func NewFinnhub(apiKey string, timeout time.Duration) *Finnhub {
	return &Finnhub{
		apiKey:  apiKey,
		baseURL: finnhubBaseURL,
		client:  newHTTPClient(timeout),
		now:     time.Now,
	}
}

// WithBaseURL points the client at another host (tests, proxies).
func (f *Finnhub) WithBaseURL(u string) *Finnhub {
	f.baseURL = u
	return f
}

func (f *Finnhub) Name() string { return finnhubProviderName }

func (f *Finnhub) get(ctx context.Context, path string, params url.Values, out any) error {
	if f.apiKey == "" {
		return ErrNoAPIKey
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("token", f.apiKey)
	return getJSON(ctx, f.client, f.baseURL, path, params, out)
}

func (f *Finnhub) Quote(ctx context.Context, symbol string) (*model.Quote, error) {
	sym := model.NormalizeSymbol(symbol)
	var raw struct {
		C  float64 `json:"c"`
		D  float64 `json:"d"`
		DP float64 `json:"dp"`
		H  float64 `json:"h"`
		L  float64 `json:"l"`
		O  float64 `json:"o"`
		PC float64 `json:"pc"`
		V  float64 `json:"v"`
		T  int64   `json:"t"`
	}
	if err := f.get(ctx, "/quote", url.Values{"symbol": {sym}}, &raw); err != nil {
		return nil, err
	}
	// unknown symbols come back as an all-zero object
	if raw.C == 0 && raw.T == 0 {
		return nil, fmt.Errorf("no quote data for %s", sym)
	}
	return &model.Quote{
		Symbol:        sym,
		CurrentPrice:  raw.C,
		Change:        raw.D,
		ChangePercent: raw.DP,
		High:          raw.H,
		Low:           raw.L,
		Open:          raw.O,
		PreviousClose: raw.PC,
		Volume:        int64(raw.V),
		Timestamp:     raw.T,
	}, nil
}

func (f *Finnhub) Candles(ctx context.Context, symbol, resolution string, days int) ([]model.Candle, error) {
	sym := model.NormalizeSymbol(symbol)
	to := f.now()
	from := to.AddDate(0, 0, -days)
	params := url.Values{
		"symbol":     {sym},
		"resolution": {resolution},
		"from":       {strconv.FormatInt(from.Unix(), 10)},
		"to":         {strconv.FormatInt(to.Unix(), 10)},
	}
	var raw struct {
		S string    `json:"s"`
		T []int64   `json:"t"`
		O []float64 `json:"o"`
		H []float64 `json:"h"`
		L []float64 `json:"l"`
		C []float64 `json:"c"`
		V []float64 `json:"v"`
	}
	if err := f.get(ctx, "/stock/candle", params, &raw); err != nil {
		return nil, err
	}
	if raw.S != "ok" {
		return nil, fmt.Errorf("no candle data for %s (status %q)", sym, raw.S)
	}
	n := len(raw.T)
	if len(raw.O) != n || len(raw.H) != n || len(raw.L) != n || len(raw.C) != n || len(raw.V) != n {
		return nil, errors.New("malformed candle arrays")
	}
	out := make([]model.Candle, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, model.Candle{
			Symbol:    sym,
			Timestamp: raw.T[i],
			Open:      raw.O[i],
			High:      raw.H[i],
			Low:       raw.L[i],
			Close:     raw.C[i],
			Volume:    int64(raw.V[i]),
		})
	}
	return out, nil
}

func (f *Finnhub) Metrics(ctx context.Context, symbol string) (*model.Metrics, error) {
	sym := model.NormalizeSymbol(symbol)
	var raw struct {
		Metric map[string]any `json:"metric"`
	}
	if err := f.get(ctx, "/stock/metric", url.Values{"symbol": {sym}, "metric": {"all"}}, &raw); err != nil {
		return nil, err
	}
	pick := func(keys ...string) *float64 {
		for _, k := range keys {
			if v, ok := raw.Metric[k].(float64); ok {
				return model.Float(v)
			}
		}
		return nil
	}
	return &model.Metrics{
		Symbol:        sym,
		PERatio:       pick("peRatio", "peTTM", "peBasicExclExtraTTM"),
		EPS:           pick("eps", "epsTTM", "epsBasicExclExtraItemsTTM"),
		MarketCap:     pick("marketCapitalization"),
		DividendYield: pick("dividendYield", "dividendYieldIndicatedAnnual"),
		ProfitMargin:  pick("profitMargin", "netProfitMarginTTM"),
		RevenueGrowth: pick("revenueGrowth", "revenueGrowthTTMYoy"),
		PriceToBook:   pick("priceToBookRatio", "pbQuarterly"),
		DebtToEquity:  pick("debtToEquityRatio", "totalDebt/totalEquityQuarterly"),
	}, nil
}

func (f *Finnhub) SearchSymbols(ctx context.Context, query string, limit int) ([]model.SymbolMatch, error) {
	var raw struct {
		Result []struct {
			Symbol      string `json:"symbol"`
			Description string `json:"description"`
			Type        string `json:"type"`
		} `json:"result"`
	}
	if err := f.get(ctx, "/search", url.Values{"q": {query}}, &raw); err != nil {
		return nil, err
	}
	out := make([]model.SymbolMatch, 0, len(raw.Result))
	for _, r := range raw.Result {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, model.SymbolMatch{Symbol: r.Symbol, Description: r.Description, Type: r.Type})
	}
	return out, nil
}

type finnhubNews struct {
	ID       int64  `json:"id"`
	Headline string `json:"headline"`
	Source   string `json:"source"`
	URL      string `json:"url"`
	Summary  string `json:"summary"`
	Image    string `json:"image"`
	Datetime int64  `json:"datetime"`
	Related  string `json:"related"`
}

func (n finnhubNews) toModel(related []string) model.NewsItem {
	return model.NewsItem{
		ID:             n.ID,
		Title:          n.Headline,
		Source:         n.Source,
		URL:            n.URL,
		Summary:        n.Summary,
		Image:          n.Image,
		PublishedAt:    n.Datetime,
		RelatedSymbols: related,
	}
}

func (f *Finnhub) CompanyNews(ctx context.Context, symbol string, days int) ([]model.NewsItem, error) {
	sym := model.NormalizeSymbol(symbol)
	to := f.now()
	params := url.Values{
		"symbol": {sym},
		"from":   {to.AddDate(0, 0, -days).Format(finnhubDateLayout)},
		"to":     {to.Format(finnhubDateLayout)},
	}
	var raw []finnhubNews
	if err := f.get(ctx, "/company-news", params, &raw); err != nil {
		return nil, err
	}
	out := make([]model.NewsItem, 0, min(len(raw), companyNewsLimit))
	for i := 0; i < len(raw) && i < companyNewsLimit; i++ {
		out = append(out, raw[i].toModel([]string{sym}))
	}
	return out, nil
}

func (f *Finnhub) GeneralNews(ctx context.Context, category string) ([]model.NewsItem, error) {
	var raw []finnhubNews
	if err := f.get(ctx, "/news", url.Values{"category": {category}}, &raw); err != nil {
		return nil, err
	}
	out := make([]model.NewsItem, 0, min(len(raw), generalNewsLimit))
	for i := 0; i < len(raw) && i < generalNewsLimit; i++ {
		var related []string
		if raw[i].Related != "" {
			related = []string{raw[i].Related}
		}
		out = append(out, raw[i].toModel(related))
	}
	return out, nil
}
