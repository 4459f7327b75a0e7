// File: internal/infra/adapters/market/alphavantage.go
package market

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"finance-copilot/internal/domain/model"
	"finance-copilot/internal/domain/ports/adapter"
)

var _ adapter.MarketProvider = (*AlphaVantage)(nil)

const alphaVantageBaseURL = "https://www.alphavantage.co/query"

var intradayIntervals = map[string]string{
	"1":  "1min",
	"5":  "5min",
	"15": "15min",
	"30": "30min",
	"60": "60min",
}

// AlphaVantage is the secondary provider. It has no news endpoint and never
// reports revenue growth or debt/equity.
type AlphaVantage struct {
	apiKey  string
	baseURL string
	client  *http.Client
	now     func() time.Time
}

func NewAlphaVantage(apiKey string, timeout time.Duration) *AlphaVantage {
	return &AlphaVantage{
		apiKey:  apiKey,
		baseURL: alphaVantageBaseURL,
		client:  newHTTPClient(timeout),
		now:     time.Now,
	}
}

func (a *AlphaVantage) WithBaseURL(u string) *AlphaVantage {
	a.baseURL = u
	return a
}

func (a *AlphaVantage) Name() string { return "alpha_vantage" }

// get decodes into a generic object first so application-level errors
// ("Error Message", rate-limit "Note"/"Information") surface as failures.
func (a *AlphaVantage) get(ctx context.Context, params url.Values) (map[string]any, error) {
	if a.apiKey == "" {
		return nil, ErrNoAPIKey
	}
	params.Set("apikey", a.apiKey)
	var data map[string]any
	if err := getJSON(ctx, a.client, a.baseURL, "", params, &data); err != nil {
		return nil, err
	}
	if msg, ok := data["Error Message"].(string); ok {
		return nil, fmt.Errorf("api error: %s", msg)
	}
	if msg, ok := data["Note"].(string); ok {
		return nil, fmt.Errorf("rate limit: %s", msg)
	}
	if msg, ok := data["Information"].(string); ok {
		return nil, fmt.Errorf("rate limit: %s", msg)
	}
	return data, nil
}

func (a *AlphaVantage) Quote(ctx context.Context, symbol string) (*model.Quote, error) {
	sym := model.NormalizeSymbol(symbol)
	data, err := a.get(ctx, url.Values{"function": {"GLOBAL_QUOTE"}, "symbol": {sym}})
	if err != nil {
		return nil, err
	}
	q, _ := data["Global Quote"].(map[string]any)
	if len(q) == 0 {
		return nil, fmt.Errorf("no quote data available for symbol %s", sym)
	}
	price := parseFloat(q["05. price"])
	if price == nil {
		return nil, fmt.Errorf("no quote data available for symbol %s", sym)
	}
	or := func(v *float64, def float64) float64 {
		if v == nil {
			return def
		}
		return *v
	}
	ts := a.now().Unix()
	if day, ok := q["07. latest trading day"].(string); ok {
		if t, err := time.Parse("2006-01-02", day); err == nil {
			ts = t.Unix()
		}
	}
	pct := strings.TrimSuffix(strings.TrimSpace(str(q["10. change percent"])), "%")
	return &model.Quote{
		Symbol:        sym,
		CurrentPrice:  *price,
		Change:        or(parseFloat(q["09. change"]), 0),
		ChangePercent: or(parseFloat(pct), 0),
		High:          or(parseFloat(q["03. high"]), *price),
		Low:           or(parseFloat(q["04. low"]), *price),
		Open:          or(parseFloat(q["02. open"]), *price),
		PreviousClose: or(parseFloat(q["08. previous close"]), *price),
		Volume:        int64(or(parseFloat(q["06. volume"]), 0)),
		Timestamp:     ts,
	}, nil
}

func (a *AlphaVantage) Candles(ctx context.Context, symbol, resolution string, days int) ([]model.Candle, error) {
	sym := model.NormalizeSymbol(symbol)
	params := url.Values{"symbol": {sym}}
	layout := "2006-01-02"
	if iv, ok := intradayIntervals[resolution]; ok {
		params.Set("function", "TIME_SERIES_INTRADAY")
		params.Set("interval", iv)
		layout = "2006-01-02 15:04:05"
	} else {
		switch resolution {
		case "W":
			params.Set("function", "TIME_SERIES_WEEKLY")
		case "M":
			params.Set("function", "TIME_SERIES_MONTHLY")
		default:
			params.Set("function", "TIME_SERIES_DAILY")
		}
	}
	if days > 100 {
		params.Set("outputsize", "full")
	} else {
		params.Set("outputsize", "compact")
	}

	data, err := a.get(ctx, params)
	if err != nil {
		return nil, err
	}
	var series map[string]any
	for k, v := range data {
		if strings.Contains(k, "Time Series") {
			series, _ = v.(map[string]any)
			break
		}
	}
	if series == nil {
		return nil, fmt.Errorf("no time series data available for %s", sym)
	}

	cutoff := a.now().AddDate(0, 0, -days)
	out := make([]model.Candle, 0, len(series))
	for stamp, raw := range series {
		bar, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		t, err := time.Parse(layout, stamp)
		if err != nil || t.Before(cutoff) {
			continue
		}
		c := model.Candle{Symbol: sym, Timestamp: t.Unix()}
		if v := parseFloat(bar["1. open"]); v != nil {
			c.Open = *v
		}
		if v := parseFloat(bar["2. high"]); v != nil {
			c.High = *v
		}
		if v := parseFloat(bar["3. low"]); v != nil {
			c.Low = *v
		}
		if v := parseFloat(bar["4. close"]); v != nil {
			c.Close = *v
		}
		if v := parseFloat(bar["5. volume"]); v != nil {
			c.Volume = int64(*v)
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	if len(out) == 0 {
		return nil, fmt.Errorf("no candle data available for %s for the specified time period", sym)
	}
	return out, nil
}

func (a *AlphaVantage) Metrics(ctx context.Context, symbol string) (*model.Metrics, error) {
	sym := model.NormalizeSymbol(symbol)
	data, err := a.get(ctx, url.Values{"function": {"OVERVIEW"}, "symbol": {sym}})
	if err != nil {
		return nil, err
	}
	if _, ok := data["Symbol"]; !ok {
		return nil, fmt.Errorf("no metrics data available for %s", sym)
	}
	return &model.Metrics{
		Symbol:        sym,
		PERatio:       parseFloat(data["PERatio"]),
		EPS:           parseFloat(data["EPS"]),
		MarketCap:     parseFloat(data["MarketCapitalization"]),
		DividendYield: parseFloat(data["DividendYield"]),
		ProfitMargin:  parseFloat(data["ProfitMargin"]),
		PriceToBook:   parseFloat(data["PriceToBookRatio"]),
	}, nil
}

func (a *AlphaVantage) SearchSymbols(ctx context.Context, query string, limit int) ([]model.SymbolMatch, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("empty search query")
	}
	data, err := a.get(ctx, url.Values{"function": {"SYMBOL_SEARCH"}, "keywords": {query}})
	if err != nil {
		return nil, err
	}
	matches, _ := data["bestMatches"].([]any)
	out := make([]model.SymbolMatch, 0, len(matches))
	for _, m := range matches {
		if limit > 0 && len(out) >= limit {
			break
		}
		row, ok := m.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, model.SymbolMatch{
			Symbol:      str(row["1. symbol"]),
			Description: str(row["2. name"]),
			Type:        str(row["3. type"]),
		})
	}
	return out, nil
}

// parseFloat reads Alpha Vantage's stringly-typed numbers; "None", "-" and
// "" are absent values.
func parseFloat(v any) *float64 {
	switch t := v.(type) {
	case float64:
		return model.Float(t)
	case string:
		s := strings.TrimSpace(t)
		if s == "" || s == "None" || s == "-" {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		return model.Float(f)
	default:
		return nil
	}
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
