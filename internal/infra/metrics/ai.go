package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		aiTokensIn,
		aiTokensOut,
		aiCallsLatencyMs,
		aiToolCalls,
		chatOutcomes,
		summariesGenerated,
	)
}

var (
	aiTokensIn = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_tokens_in",
			Help: "Sum of prompt (input) tokens per provider/model.",
		},
		[]string{"provider", "model"},
	)

	aiTokensOut = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_tokens_out",
			Help: "Sum of completion (output) tokens per provider/model.",
		},
		[]string{"provider", "model"},
	)

	aiCallsLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_calls_latency_ms",
			Help:    "AI call latency distribution in milliseconds.",
			Buckets: []float64{50, 100, 200, 400, 800, 1600, 3000, 5000, 10000, 30000},
		},
		[]string{"provider", "model", "success"},
	)

	aiToolCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_tool_calls_total",
			Help: "Agent tool invocations by tool and result.",
		},
		[]string{"tool", "result"},
	)

	chatOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_turn_outcomes_total",
			Help: "Chat turns by the tier that produced the answer.",
		},
		[]string{"tier"}, // agent | direct | static_quota | static_error | unconfigured
	)

	summariesGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_summaries_total",
			Help: "Conversation summaries produced, by trigger and result.",
		},
		[]string{"trigger", "result"}, // threshold|buffer, ok|error
	)
)

func ObserveChatUsage(provider, model string, tokensIn, tokensOut int, latencyMs int, success bool) {
	lbl := []string{norm(provider), norm(model)}
	aiTokensIn.WithLabelValues(lbl...).Add(float64(tokensIn))
	aiTokensOut.WithLabelValues(lbl...).Add(float64(tokensOut))
	aiCallsLatencyMs.WithLabelValues(norm(provider), norm(model), strconv.FormatBool(success)).
		Observe(float64(latencyMs))
}

func IncToolCall(tool, result string) {
	aiToolCalls.WithLabelValues(norm(tool), norm(result)).Inc()
}

func IncChatOutcome(tier string) {
	chatOutcomes.WithLabelValues(norm(tier)).Inc()
}

func IncSummary(trigger, result string) {
	summariesGenerated.WithLabelValues(norm(trigger), norm(result)).Inc()
}
