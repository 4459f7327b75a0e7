package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"finance-copilot/internal/domain/model"
	"finance-copilot/internal/domain/ports/adapter"
	"finance-copilot/internal/infra/metrics"
)

var _ adapter.QuoteCache = (*QuoteCache)(nil)

// QuoteCache shares recent quotes between instances.
type QuoteCache struct {
	client RedisClient
}

func NewQuoteCache(client RedisClient) *QuoteCache {
	return &QuoteCache{client: client}
}

func quoteKey(symbol string) string { return "quote:" + symbol }

func (c *QuoteCache) GetQuote(ctx context.Context, symbol string) (*model.Quote, bool) {
	val, err := c.client.Get(ctx, quoteKey(symbol))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.IncCacheRequest(metrics.CacheQuote, false)
		} else {
			metrics.IncCacheError(metrics.CacheQuote)
		}
		return nil, false
	}
	var q model.Quote
	if err := json.Unmarshal([]byte(val), &q); err != nil {
		metrics.IncCacheError(metrics.CacheQuote)
		return nil, false
	}
	metrics.IncCacheRequest(metrics.CacheQuote, true)
	return &q, true
}

func (c *QuoteCache) StoreQuote(ctx context.Context, q *model.Quote, ttl time.Duration) error {
	b, err := json.Marshal(q)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, quoteKey(q.Symbol), b, ttl)
}
