// Package metrics defines Prometheus metrics for the automation engine.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "automation_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automation_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automation_errors_total",
			Help: "Total errors by type",
		},
		[]string{"type"},
	)

	// QueueItems counts worker outcomes per queue kind (action/report)
	// and outcome (succeeded/failed/skipped).
	QueueItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automation_queue_items_total",
			Help: "Queue items processed by the worker, by queue and outcome",
		},
		[]string{"queue", "outcome"},
	)

	ClaimBatchSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "automation_claim_batch_size",
			Help:    "Number of items claimed per worker pass",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
		[]string{"queue"},
	)

	RulesEvaluated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automation_rules_evaluated_total",
			Help: "Rule evaluations by outcome (matched/unmatched)",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestDuration, RequestsTotal, ErrorsTotal,
		QueueItems, ClaimBatchSize, RulesEvaluated,
	)
}
