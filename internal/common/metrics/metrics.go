// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BackendRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_backend_requests_total",
			Help: "Total number of calls to the recruitment backend by outcome",
		},
		[]string{"operation", "outcome"},
	)

	BackendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portal_backend_request_duration_seconds",
			Help:    "Duration of calls to the recruitment backend in seconds",
			Buckets: []float64{.025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	QueryCacheEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_query_cache_events_total",
			Help: "Query cache events (hit, miss, dedup, stale, discard, invalidate, retry)",
		},
		[]string{"event"},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "portal_sessions_active",
			Help: "Number of started browser session contexts",
		},
	)
)

// Backend call outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeTimeout = "timeout"
	OutcomeFailed  = "failed"
	OutcomeNetwork = "network_error"
)
