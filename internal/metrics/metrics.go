package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "spicywod",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency of HTTP requests by route and status code.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	authAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spicywod",
		Subsystem: "auth",
		Name:      "attempts_total",
		Help:      "Signup and login attempts by action and outcome.",
	}, []string{"action", "outcome"})

	sessionsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "spicywod",
		Subsystem: "auth",
		Name:      "sessions_created_total",
		Help:      "Number of sessions issued.",
	})

	sessionsExpired = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "spicywod",
		Subsystem: "auth",
		Name:      "sessions_expired_total",
		Help:      "Number of sessions found past their expiry on read.",
	})

	resultsLogged = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spicywod",
		Subsystem: "results",
		Name:      "logged_total",
		Help:      "Number of results stored, by scoring scheme.",
	}, []string{"scheme"})

	validationFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spicywod",
		Subsystem: "results",
		Name:      "validation_failures_total",
		Help:      "Number of rejected result submissions, by scheme and error kind.",
	}, []string{"scheme", "kind"})

	kvSwept = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "spicywod",
		Subsystem: "kvstore",
		Name:      "swept_entries_total",
		Help:      "Number of expired key/value entries removed by the sweeper.",
	})
)

func init() {
	prometheus.MustRegister(
		requestDuration,
		authAttempts,
		sessionsCreated,
		sessionsExpired,
		resultsLogged,
		validationFailures,
		kvSwept,
	)
}

func ObserveRequest(method, route, status string, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	requestDuration.WithLabelValues(method, route, status).Observe(elapsed.Seconds())
}

// RecordAuthAttempt counts a signup or login by outcome ("success" or an error kind).
func RecordAuthAttempt(action, outcome string) {
	authAttempts.WithLabelValues(action, outcome).Inc()
}

func RecordSessionCreated() {
	sessionsCreated.Inc()
}

func RecordSessionExpired() {
	sessionsExpired.Inc()
}

func RecordResultLogged(scheme string) {
	resultsLogged.WithLabelValues(scheme).Inc()
}

func RecordValidationFailure(scheme, kind string) {
	validationFailures.WithLabelValues(scheme, kind).Inc()
}

func RecordSwept(n int64) {
	if n <= 0 {
		return
	}
	kvSwept.Add(float64(n))
}
