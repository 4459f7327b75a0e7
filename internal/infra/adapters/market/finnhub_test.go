//go:build !integration

package market

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newFinnhubServer(t *testing.T, routes map[string]string) *Finnhub {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "k" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		body, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	f := NewFinnhub("k", time.Second).WithBaseURL(srv.URL)
	f.now = func() time.Time { return time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC) }
	return f
}

func TestFinnhub_Quote(t *testing.T) {
	f := newFinnhubServer(t, map[string]string{
		"/quote": `{"c":190.5,"d":1.5,"dp":0.8,"h":191,"l":188,"o":189,"pc":189,"v":1200,"t":1715300000}`,
	})
	q, err := f.Quote(context.Background(), "aapl")
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if q.Symbol != "AAPL" || q.CurrentPrice != 190.5 || q.Volume != 1200 {
		t.Fatalf("unexpected quote %+v", q)
	}
}

func TestFinnhub_QuoteUnknownSymbol(t *testing.T) {
	f := newFinnhubServer(t, map[string]string{"/quote": `{"c":0,"d":null,"dp":null,"h":0,"l":0,"o":0,"pc":0,"t":0}`})
	if _, err := f.Quote(context.Background(), "ZZZZ"); err == nil {
		t.Fatal("expected error for all-zero quote")
	}
}

func TestFinnhub_CandlesNoData(t *testing.T) {
	f := newFinnhubServer(t, map[string]string{"/stock/candle": `{"s":"no_data"}`})
	if _, err := f.Candles(context.Background(), "AAPL", "D", 30); err == nil {
		t.Fatal("no_data status must be an error")
	}
}

func TestFinnhub_Candles(t *testing.T) {
	f := newFinnhubServer(t, map[string]string{
		"/stock/candle": `{"s":"ok","t":[1,2],"o":[1,2],"h":[1,2],"l":[1,2],"c":[1.5,2.5],"v":[10,20]}`,
	})
	cs, err := f.Candles(context.Background(), "msft", "D", 5)
	if err != nil {
		t.Fatalf("Candles: %v", err)
	}
	if len(cs) != 2 || cs[1].Close != 2.5 || cs[0].Symbol != "MSFT" {
		t.Fatalf("unexpected candles %+v", cs)
	}
}

func TestFinnhub_MetricsAliases(t *testing.T) {
	f := newFinnhubServer(t, map[string]string{
		"/stock/metric": `{"metric":{"peTTM":28.1,"epsTTM":6.4,"marketCapitalization":3000000}}`,
	})
	m, err := f.Metrics(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("Metrics: %v", err)
	}
	if m.PERatio == nil || *m.PERatio != 28.1 || m.EPS == nil || m.DividendYield != nil {
		t.Fatalf("unexpected metrics %+v", m)
	}
	if got := m.Completeness(); got != 3.0/8.0 {
		t.Fatalf("completeness %v", got)
	}
}

func TestFinnhub_NewsLimits(t *testing.T) {
	item := `{"id":1,"headline":"h","source":"s","url":"u","datetime":1,"related":"AAPL"}`
	many := "["
	for i := 0; i < 25; i++ {
		if i > 0 {
			many += ","
		}
		many += item
	}
	many += "]"
	f := newFinnhubServer(t, map[string]string{"/company-news": many, "/news": many})

	cn, err := f.CompanyNews(context.Background(), "aapl", 7)
	if err != nil || len(cn) != 10 {
		t.Fatalf("company news: len=%d err=%v", len(cn), err)
	}
	if cn[0].RelatedSymbols[0] != "AAPL" {
		t.Fatalf("related symbol not set")
	}
	gn, err := f.GeneralNews(context.Background(), "general")
	if err != nil || len(gn) != 20 {
		t.Fatalf("general news: len=%d err=%v", len(gn), err)
	}
}

func TestFinnhub_NoKey(t *testing.T) {
	f := NewFinnhub("", time.Second)
	if _, err := f.Quote(context.Background(), "AAPL"); !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("want ErrNoAPIKey, got %v", err)
	}
}

func TestFinnhub_HTTPError(t *testing.T) {
	f := newFinnhubServer(t, map[string]string{})
	if _, err := f.Metrics(context.Background(), "ZZZZ"); err == nil || err.Error() != "http 404" {
		t.Fatalf("want http 404, got %v", err)
	}
}
