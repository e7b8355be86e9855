package metrics

import "github.com/prometheus/client_golang/prometheus"

// Orchestrator metrics, labeled by collector key where that keeps
// cardinality bounded (the key set is the configured source list).
var (
	FetchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gridiron_edge",
		Name:      "fetches_total",
		Help:      "Total number of outbound collector fetches",
	}, []string{"collector_key"})
	FetchErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gridiron_edge",
		Name:      "fetch_errors_total",
		Help:      "Total number of failed collector fetches by error kind",
	}, []string{"collector_key", "kind"})
	DedupedRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gridiron_edge",
		Name:      "deduped_requests_total",
		Help:      "Total number of requests attached to an already in-flight fetch",
	}, []string{"collector_key"})
	RateLimitDenialsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gridiron_edge",
		Name:      "rate_limit_denials_total",
		Help:      "Total number of requests denied for lack of tokens",
	}, []string{"collector_key"})
	CircuitBreakerTripsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gridiron_edge",
		Name:      "circuit_breaker_trips_total",
		Help:      "Total number of circuit breaker open transitions",
	}, []string{"collector_key"})
	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gridiron_edge",
		Name:      "cache_hits_total",
		Help:      "Total number of cache hits by tier",
	}, []string{"tier"})
	StaleServesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gridiron_edge",
		Name:      "stale_serves_total",
		Help:      "Total number of responses served from expired cache entries",
	}, []string{"collector_key"})
	QueueEscalationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gridiron_edge",
		Name:      "queue_escalations_total",
		Help:      "Total number of priority escalations for waiting requests",
	}, []string{"from_priority"})
)

var (
	QueueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "gridiron_edge",
		Name:      "queue_depth",
		Help:      "Requests waiting in the scheduler by priority level",
	}, []string{"priority"})
	TokensAvailable = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "gridiron_edge",
		Name:      "tokens_available",
		Help:      "Tokens remaining in each collector's bucket",
	}, []string{"collector_key"})
)

var (
	FetchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gridiron_edge",
		Name:      "fetch_duration_seconds",
		Help:      "Duration of outbound collector fetches in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"collector_key"})
)

// RecordFetch records one outbound fetch and its duration.
func RecordFetch(collectorKey string, durationSeconds float64) {
	FetchesTotal.WithLabelValues(collectorKey).Inc()
	FetchDuration.WithLabelValues(collectorKey).Observe(durationSeconds)
}

// RecordFetchError records a failed fetch by error kind.
func RecordFetchError(collectorKey, kind string) {
	FetchErrorsTotal.WithLabelValues(collectorKey, kind).Inc()
}

// RecordDedup records a request coalesced onto an in-flight fetch.
func RecordDedup(collectorKey string) {
	DedupedRequestsTotal.WithLabelValues(collectorKey).Inc()
}

// RecordRateLimitDenial records a request refused for lack of tokens.
func RecordRateLimitDenial(collectorKey string) {
	RateLimitDenialsTotal.WithLabelValues(collectorKey).Inc()
}

// RecordBreakerTrip records a closed-to-open breaker transition.
func RecordBreakerTrip(collectorKey string) {
	CircuitBreakerTripsTotal.WithLabelValues(collectorKey).Inc()
}

// RecordCacheHit records a cache hit at the named tier.
func RecordCacheHit(tier string) {
	CacheHitsTotal.WithLabelValues(tier).Inc()
}

// RecordStaleServe records a stale cache entry served after fetch failure.
func RecordStaleServe(collectorKey string) {
	StaleServesTotal.WithLabelValues(collectorKey).Inc()
}
