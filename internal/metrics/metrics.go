// Package metrics provides the centralized Prometheus registry for the
// gridiron-edge daemon.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	RecommendationsEmittedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gridiron_edge",
		Name:      "recommendations_emitted_total",
		Help:      "Total number of recommendations emitted",
	}, []string{"tier"})
	GamesSkippedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gridiron_edge",
		Name:      "games_skipped_total",
		Help:      "Total number of games skipped during decision runs",
	}, []string{"reason"})
	RecommendationsSettledTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gridiron_edge",
		Name:      "recommendations_settled_total",
		Help:      "Total number of recommendations settled",
	})
	EdgeTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gridiron_edge",
		Name:      "edge_transitions_total",
		Help:      "Total number of edge lifecycle transitions",
	}, []string{"to_status"})
	CandidatesRegisteredTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gridiron_edge",
		Name:      "candidates_registered_total",
		Help:      "Total number of candidate edges submitted to the catalog",
	}, []string{"outcome"})
	LookAheadViolationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gridiron_edge",
		Name:      "look_ahead_violations_total",
		Help:      "Total number of look-ahead violations caught by the feature builder",
	})
)

// Gauge metrics
var (
	ActiveEdges = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gridiron_edge",
		Name:      "active_edges",
		Help:      "Number of currently active edges in the catalog",
	})
	CurrentBankroll = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gridiron_edge",
		Name:      "current_bankroll",
		Help:      "Current simulated bankroll balance",
	})
	RollingWinRate = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gridiron_edge",
		Name:      "rolling_win_rate",
		Help:      "Win rate over the trailing settled-recommendation window",
	})
	CurrentDrawdown = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gridiron_edge",
		Name:      "current_drawdown",
		Help:      "Current fractional drawdown from the bankroll peak",
	})
)

// Histogram metrics
var (
	GameEvaluationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "gridiron_edge",
		Name:      "game_evaluation_duration_seconds",
		Help:      "Duration of one game's decision pipeline in seconds",
		Buckets:   prometheus.DefBuckets,
	})
	DiscoveryRunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "gridiron_edge",
		Name:      "discovery_run_duration_seconds",
		Help:      "Duration of discovery sweeps in seconds",
		Buckets:   []float64{1, 5, 10, 30, 60, 300, 600, 1800},
	})
	BacktestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "gridiron_edge",
		Name:      "backtest_duration_seconds",
		Help:      "Duration of walk-forward backtest runs in seconds",
		Buckets:   []float64{1, 5, 10, 30, 60, 300, 600, 1800},
	})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		registry.MustRegister(RecommendationsEmittedTotal)
		registry.MustRegister(GamesSkippedTotal)
		registry.MustRegister(RecommendationsSettledTotal)
		registry.MustRegister(EdgeTransitionsTotal)
		registry.MustRegister(CandidatesRegisteredTotal)
		registry.MustRegister(LookAheadViolationsTotal)

		registry.MustRegister(ActiveEdges)
		registry.MustRegister(CurrentBankroll)
		registry.MustRegister(RollingWinRate)
		registry.MustRegister(CurrentDrawdown)

		registry.MustRegister(GameEvaluationDuration)
		registry.MustRegister(DiscoveryRunDuration)
		registry.MustRegister(BacktestDuration)

		// Orchestrator metrics
		registry.MustRegister(FetchesTotal)
		registry.MustRegister(FetchErrorsTotal)
		registry.MustRegister(DedupedRequestsTotal)
		registry.MustRegister(RateLimitDenialsTotal)
		registry.MustRegister(CircuitBreakerTripsTotal)
		registry.MustRegister(CacheHitsTotal)
		registry.MustRegister(StaleServesTotal)
		registry.MustRegister(QueueEscalationsTotal)
		registry.MustRegister(QueueDepth)
		registry.MustRegister(TokensAvailable)
		registry.MustRegister(FetchDuration)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	if registry == nil {
		return InitRegistry()
	}
	return registry
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}

// RecordRecommendation records an emitted recommendation.
func RecordRecommendation(tier string) {
	RecommendationsEmittedTotal.WithLabelValues(tier).Inc()
}

// RecordGameSkipped records a game dropped from a decision run.
func RecordGameSkipped(reason string) {
	GamesSkippedTotal.WithLabelValues(reason).Inc()
}

// RecordEdgeTransition records an edge lifecycle transition.
func RecordEdgeTransition(toStatus string) {
	EdgeTransitionsTotal.WithLabelValues(toStatus).Inc()
}

// RecordCandidateRegistered records a catalog registration verdict.
func RecordCandidateRegistered(outcome string) {
	CandidatesRegisteredTotal.WithLabelValues(outcome).Inc()
}

// UpdateBankroll updates the bankroll gauges from the current state.
func UpdateBankroll(balance, rollingWinRate, drawdown float64) {
	CurrentBankroll.Set(balance)
	RollingWinRate.Set(rollingWinRate)
	CurrentDrawdown.Set(drawdown)
}
