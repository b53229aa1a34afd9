// Package metrics holds the Prometheus collectors for the ledger service.
// They register with the default registry and are served on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Failure reasons used as the "reason" label of ApplyFailures.
const (
	ReasonValidation = "validation"
	ReasonNotFound   = "not_found"
	ReasonConflict   = "conflict"
	ReasonCommit     = "commit"
	ReasonCancelled  = "cancelled"
)

// TransactionsApplied counts committed transactions by type.
var TransactionsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "khata",
	Subsystem: "ledger",
	Name:      "transactions_applied_total",
	Help:      "Total transactions committed, by type.",
}, []string{"type"})

// TransactionsReplayed counts applies answered from an existing idempotency key.
var TransactionsReplayed = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "khata",
	Subsystem: "ledger",
	Name:      "transactions_replayed_total",
	Help:      "Total apply calls answered from an existing idempotency key.",
})

// ApplyFailures counts failed applies by reason.
var ApplyFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "khata",
	Subsystem: "ledger",
	Name:      "apply_failures_total",
	Help:      "Total failed apply calls, by reason.",
}, []string{"reason"})

// ApplyDuration tracks apply latency including lock wait.
var ApplyDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "khata",
	Subsystem: "ledger",
	Name:      "apply_duration_seconds",
	Help:      "Latency of apply calls, lock wait included.",
	Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
})

// EventPublishFailures counts events that could not be handed to the broker.
var EventPublishFailures = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "khata",
	Subsystem: "events",
	Name:      "publish_failures_total",
	Help:      "Total TransactionRecorded events that failed to publish.",
})

// HTTPRequests counts served requests by route pattern and status code.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "khata",
	Subsystem: "http",
	Name:      "requests_total",
	Help:      "Total HTTP requests, by method, route and status.",
}, []string{"method", "route", "status"})

// HTTPDuration tracks request latency by route pattern.
var HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "khata",
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "Latency of HTTP requests, by method and route.",
	Buckets:   prometheus.DefBuckets,
}, []string{"method", "route"})
