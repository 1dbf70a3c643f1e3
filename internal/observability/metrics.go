package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis errors by command.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chirp_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chirp_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// EngagementToggles counts toggles by kind and resulting state.
	EngagementToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chirp_engagement_toggles_total",
		Help: "Total number of engagement toggles by kind and resulting state",
	}, []string{"kind", "state"})

	// TokenEvents counts token lifecycle transitions.
	TokenEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chirp_token_events_total",
		Help: "Token lifecycle events (issued, rotated, revoked, rejected)",
	}, []string{"token", "event"})

	// AuthAttempts counts signup and login outcomes.
	AuthAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chirp_auth_attempts_total",
		Help: "Authentication attempts by operation and outcome",
	}, []string{"operation", "outcome"})

	// TransactionRetries counts transaction retries after serialization or deadlock failures.
	TransactionRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chirp_transaction_retries_total",
		Help: "Transactions retried after a serialization failure or deadlock",
	}, []string{"operation"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
