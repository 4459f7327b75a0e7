package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(marketProviderRequests, metricsMerges) }

var (
	marketProviderRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_provider_requests_total",
			Help: "Upstream market-data calls by provider, operation and result.",
		},
		[]string{"provider", "op", "result"},
	)

	metricsMerges = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "market_metrics_merges_total",
			Help: "Fundamental metric reads that needed the secondary provider to fill gaps.",
		},
	)
)

func IncProviderRequest(provider, op string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	marketProviderRequests.WithLabelValues(norm(provider), norm(op), result).Inc()
}

func IncMetricsMerge() { metricsMerges.Inc() }
