// Package metrics holds the Prometheus collectors for vendor logins and
// the session cache. Collectors register on the default registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// LoginAttempts counts login state machine runs.
	// Labels: service, outcome ("success", "failure", "rejected").
	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clubauth_login_attempts_total",
			Help: "Vendor login attempts by outcome",
		},
		[]string{"service", "outcome"},
	)

	// LoginDuration includes throttle wait and every retry.
	LoginDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clubauth_login_duration_seconds",
			Help:    "Duration of vendor logins in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"service"},
	)

	// ThrottleWait is the time callers slept before a login.
	ThrottleWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clubauth_throttle_wait_seconds",
			Help:    "Time spent waiting on the login throttle",
			Buckets: []float64{0, 0.5, 1, 2, 4, 8},
		},
		[]string{"service"},
	)

	// CacheLookups counts Authenticate cache outcomes.
	// Labels: service, result ("hit", "miss", "dead", "shared").
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clubauth_cache_lookups_total",
			Help: "Session cache lookups by result",
		},
		[]string{"service", "result"},
	)

	CachedSessions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "clubauth_cached_sessions",
			Help: "Sessions currently held in the cache",
		},
		[]string{"service"},
	)

	// BreakerState is 0 closed, 1 half-open, 2 open.
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "clubauth_breaker_state",
			Help: "Vendor circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"service"},
	)

	BreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clubauth_breaker_transitions_total",
			Help: "Vendor circuit breaker state transitions",
		},
		[]string{"service", "from", "to"},
	)
)

// RecordLogin records the outcome and duration of one login.
func RecordLogin(service, outcome string, d time.Duration) {
	LoginAttempts.WithLabelValues(service, outcome).Inc()
	LoginDuration.WithLabelValues(service).Observe(d.Seconds())
}

// RecordCacheLookup counts a cache lookup result.
func RecordCacheLookup(service, result string) {
	CacheLookups.WithLabelValues(service, result).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
