// Package metrics holds the Prometheus collectors of the hub.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for Responses.
const (
	OutcomeCommitted     = "committed"
	OutcomeAuthFailed    = "auth_failed"
	OutcomePersistFailed = "persist_failed"
	OutcomeUnknown       = "unknown"
	OutcomeDuplicate     = "duplicate"
	OutcomeExpired       = "expired"
	OutcomeMalformed     = "malformed"
)

// Outcome labels for Enrollments.
const (
	EnrollAccepted = "accepted"
	EnrollRejected = "rejected"
	EnrollFailed   = "failed"
)

type Metrics struct {
	Dispatched          prometheus.Counter
	SendFailures        prometheus.Counter
	Responses           *prometheus.CounterVec
	Enrollments         *prometheus.CounterVec
	Expired             prometheus.Counter
	ConnectedValidators prometheus.Gauge
	PendingCorrelations prometheus.Gauge
	DispatchDuration    prometheus.Histogram
	CommitLatency       prometheus.Histogram
}

// New registers every collector on reg. Tests pass a fresh
// prometheus.NewRegistry so collectors never collide.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Dispatched: f.NewCounter(prometheus.CounterOpts{
			Namespace: "uptime",
			Subsystem: "hub",
			Name:      "dispatched_total",
			Help:      "Validate requests sent to validators",
		}),
		SendFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: "uptime",
			Subsystem: "hub",
			Name:      "send_failures_total",
			Help:      "Validate requests that could not be written to a connection",
		}),
		Responses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uptime",
			Subsystem: "hub",
			Name:      "responses_total",
			Help:      "Validate responses by outcome",
		}, []string{"outcome"}),
		Enrollments: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uptime",
			Subsystem: "hub",
			Name:      "enrollments_total",
			Help:      "Signup attempts by outcome",
		}, []string{"outcome"}),
		Expired: f.NewCounter(prometheus.CounterOpts{
			Namespace: "uptime",
			Subsystem: "hub",
			Name:      "expired_correlations_total",
			Help:      "Pending requests dropped without a response",
		}),
		ConnectedValidators: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "uptime",
			Subsystem: "hub",
			Name:      "connected_validators",
			Help:      "Validators with a live session",
		}),
		PendingCorrelations: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "uptime",
			Subsystem: "hub",
			Name:      "pending_correlations",
			Help:      "Validate requests awaiting a response",
		}),
		DispatchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "uptime",
			Subsystem: "hub",
			Name:      "dispatch_duration_seconds",
			Help:      "Duration of one dispatch cycle",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
		}),
		CommitLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "uptime",
			Subsystem: "ledger",
			Name:      "commit_latency_seconds",
			Help:      "Latency of the atomic tick and payout write",
			Buckets:   prometheus.ExponentialBuckets(0.001, 1.5, 20),
		}),
	}
}
