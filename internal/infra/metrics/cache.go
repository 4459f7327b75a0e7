package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(cacheLookups) }

// Cache names used as the "cache" label.
const (
	CacheQuote      = "quote"       // redis quote cache
	CacheQuoteLocal = "quote_local" // in-process fallback
	CacheUser       = "user"        // redis read-through in front of users
)

var cacheLookups = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cache_requests_total",
		Help: "Cache lookups by cache and result (hit, miss, error).",
	},
	[]string{"cache", "result"},
)

func IncCacheRequest(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookups.WithLabelValues(norm(cache), result).Inc()
}

// IncCacheError counts lookups that failed for a reason other than a
// missing key; callers treat them as misses.
func IncCacheError(cache string) {
	cacheLookups.WithLabelValues(norm(cache), "error").Inc()
}
