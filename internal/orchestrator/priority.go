// Package orchestrator is the shared fetch machinery every caller goes
// through to reach an external source: a priority queue feeding
// per-source worker pools, with token-bucket rate limiting, circuit
// breaking, in-flight deduplication, retry with backoff and a
// three-tier cache in front.
package orchestrator

import "time"

// Priority orders requests in the scheduler. Higher values run first.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

// String returns the metric label form of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	default:
		return "low"
	}
}

// retryFactor scales backoff delays so urgent work waits less between
// attempts.
func (p Priority) retryFactor() float64 {
	switch p {
	case PriorityCritical:
		return 0.5
	case PriorityHigh:
		return 0.75
	default:
		return 1.0
	}
}

// escalationThresholds maps each level to the wait after which a
// request is promoted one level. CRITICAL never escalates.
func escalationThresholds(lowSec, normalSec, highSec int) map[Priority]time.Duration {
	return map[Priority]time.Duration{
		PriorityLow:    time.Duration(lowSec) * time.Second,
		PriorityNormal: time.Duration(normalSec) * time.Second,
		PriorityHigh:   time.Duration(highSec) * time.Second,
	}
}
