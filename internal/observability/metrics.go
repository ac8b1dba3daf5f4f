package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SnapOperations counts feed operations by name and outcome.
	SnapOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snapfeed_operations_total",
		Help: "Total number of feed operations by operation and outcome",
	}, []string{"operation", "outcome"})

	// PostCacheResults counts post-row cache lookups by result (hit, miss, error).
	PostCacheResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snapfeed_post_cache_results_total",
		Help: "Post cache lookups by result",
	}, []string{"result"})

	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snapfeed_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// MetricsSinkFailures counts metrics-queue publishes that failed.
	MetricsSinkFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snapfeed_metrics_sink_failures_total",
		Help: "Total number of failed metrics sink publishes",
	})
)

// RecordOperation increments the operation counter with an ok/error outcome.
func RecordOperation(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	SnapOperations.WithLabelValues(operation, outcome).Inc()
}
