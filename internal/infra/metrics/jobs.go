package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(backgroundJobsTotal) }

var backgroundJobsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "background_jobs_total",
		Help: "Background work items processed, by job and status.",
	},
	[]string{"job", "status"}, // job: session_sweep|index_backfill; status: ok|failed|dropped
)

func IncJob(job, status string) {
	backgroundJobsTotal.WithLabelValues(norm(job), norm(status)).Inc()
}
