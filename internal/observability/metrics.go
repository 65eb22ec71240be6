package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plume_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// AuthEvents counts credential lifecycle events (login, refresh, logout,
	// register, password_reset) by outcome.
	AuthEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plume_auth_events_total",
		Help: "Authentication events by type and outcome",
	}, []string{"event", "outcome"})

	// CacheLookups counts cache-aside lookups by cache name and result.
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plume_cache_lookups_total",
		Help: "Cache lookups by cache and result (hit, miss, error)",
	}, []string{"cache", "result"})

	// UpstreamRequests counts improvement proxy calls by mapped outcome.
	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plume_llm_upstream_requests_total",
		Help: "Language-model upstream calls by outcome",
	}, []string{"outcome"})

	// UpstreamLatency records language-model upstream latency.
	UpstreamLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "plume_llm_upstream_latency_seconds",
		Help:    "Language-model upstream latency in seconds",
		Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
	})
)

// RecordAuthEvent increments the auth event counter.
func RecordAuthEvent(event, outcome string) {
	AuthEvents.WithLabelValues(event, outcome).Inc()
}

// RecordUpstream records one upstream call.
func RecordUpstream(outcome string, start time.Time) {
	UpstreamRequests.WithLabelValues(outcome).Inc()
	UpstreamLatency.Observe(time.Since(start).Seconds())
}
