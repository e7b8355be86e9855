package orchestrator

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/yourusername/gridiron-edge/internal/config"
	"github.com/yourusername/gridiron-edge/internal/logger"
	"github.com/yourusername/gridiron-edge/internal/metrics"
)

// BreakerSet holds one circuit breaker per collector key. A breaker
// opens after the configured run of consecutive failures, fails fast for
// the cool-off, then admits probes and recloses after the configured
// half-open successes.
type BreakerSet struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
	settings breakerSettings
	logger   *logrus.Entry
	audit    *logger.AuditLogger
}

type breakerSettings struct {
	failureThreshold  int
	cooloff           time.Duration
	halfOpenSuccesses int
}

// NewBreakerSet creates the set from orchestrator config.
func NewBreakerSet(cfg *config.OrchestratorConfig, log *logrus.Logger, audit *logger.AuditLogger) *BreakerSet {
	return &BreakerSet{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		settings: breakerSettings{
			failureThreshold:  cfg.BreakerFailureThreshold,
			cooloff:           cfg.BreakerCooloff(),
			halfOpenSuccesses: cfg.BreakerHalfOpenSuccesses,
		},
		logger: log.WithField("component", "circuit_breaker"),
		audit:  audit,
	}
}

// Execute runs fn through the collector's breaker.
func (s *BreakerSet) Execute(collectorKey string, fn func() (interface{}, error)) (interface{}, error) {
	return s.breaker(collectorKey).Execute(fn)
}

// State reports the breaker's current state name for the status surface.
func (s *BreakerSet) State(collectorKey string) string {
	return stateName(s.breaker(collectorKey).State())
}

// Counts exposes the breaker's rolling counts.
func (s *BreakerSet) Counts(collectorKey string) gobreaker.Counts {
	return s.breaker(collectorKey).Counts()
}

func (s *BreakerSet) breaker(collectorKey string) *gobreaker.CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()

	cb, ok := s.breakers[collectorKey]
	if !ok {
		cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        collectorKey,
			MaxRequests: uint32(s.settings.halfOpenSuccesses),
			Timeout:     s.settings.cooloff,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= uint32(s.settings.failureThreshold)
			},
			OnStateChange: s.onStateChange,
		})
		s.breakers[collectorKey] = cb
	}
	return cb
}

func (s *BreakerSet) onStateChange(name string, from, to gobreaker.State) {
	if to == gobreaker.StateOpen {
		metrics.RecordBreakerTrip(name)
	}
	s.logger.WithFields(logrus.Fields{
		"collector_key": name,
		"from":          stateName(from),
		"to":            stateName(to),
	}).Warn("Circuit breaker state change")
	if s.audit != nil {
		s.audit.LogCircuitBreakerEvent(name, stateName(from), stateName(to))
	}
}

func stateName(state gobreaker.State) string {
	switch state {
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}
