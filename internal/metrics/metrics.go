// Package metrics defines the process-wide Prometheus collectors shared
// across the core components, grounded on the teacher's go.mod dependency
// on github.com/prometheus/client_golang (previously unused in teacher
// source).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SnapshotDuration observes how long one outbound C3 step took, labelled
// "initialize" for the handshake and by capability family name for each
// list (one observation covers a family's whole paginated walk).
var SnapshotDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "trustgate_snapshot_call_duration_seconds",
	Help:    "Duration of a single outbound MCP call made while taking a snapshot.",
	Buckets: prometheus.DefBuckets,
}, []string{"method"})

// SnapshotItems observes, per capability family, how many items a snapshot
// call returned.
var SnapshotItems = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "trustgate_snapshot_items",
	Help:    "Item count per capability family in a single snapshot.",
	Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250, 500},
}, []string{"family"})

// ChecksTotal counts Check Scheduler per-service checks by outcome:
// unchanged, diverged, first_unapproved, skipped_error.
var ChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "trustgate_checks_total",
	Help: "Check Scheduler per-service check outcomes by outcome.",
}, []string{"outcome"})

// ProxyRequestsTotal counts gateway dispositions by outcome: forwarded,
// unknown, disabled.
var ProxyRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "trustgate_proxy_requests_total",
	Help: "Proxy Gateway dispositions by outcome.",
}, []string{"outcome"})
