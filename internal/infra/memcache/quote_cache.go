// Package memcache provides process-local caches for single-instance
// deployments that run without Redis.
package memcache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"finance-copilot/internal/domain/model"
	"finance-copilot/internal/domain/ports/adapter"
	"finance-copilot/internal/infra/metrics"
)

var _ adapter.QuoteCache = (*QuoteCache)(nil)

type QuoteCache struct {
	c *gocache.Cache
}

// NewQuoteCache creates a cache whose expired entries are purged every
// cleanup interval.
func NewQuoteCache(defaultTTL, cleanup time.Duration) *QuoteCache {
	return &QuoteCache{c: gocache.New(defaultTTL, cleanup)}
}

func (q *QuoteCache) GetQuote(_ context.Context, symbol string) (*model.Quote, bool) {
	v, ok := q.c.Get(symbol)
	if !ok {
		metrics.IncCacheRequest(metrics.CacheQuoteLocal, false)
		return nil, false
	}
	metrics.IncCacheRequest(metrics.CacheQuoteLocal, true)
	cp := *(v.(*model.Quote))
	return &cp, true
}

func (q *QuoteCache) StoreQuote(_ context.Context, quote *model.Quote, ttl time.Duration) error {
	cp := *quote
	q.c.Set(quote.Symbol, &cp, ttl)
	return nil
}
