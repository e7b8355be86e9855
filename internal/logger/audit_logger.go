// Package logger provides audit logging.
package logger

import (
	"time"

	"github.com/sirupsen/logrus"
)

// AuditLogger provides the dedicated audit trail: every catalog
// transition, every recommendation, every settlement.
type AuditLogger struct {
	*logrus.Entry
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger(baseLogger *logrus.Logger) *AuditLogger {
	return &AuditLogger{
		Entry: baseLogger.WithField("component", "audit"),
	}
}

// LogEdgeTransition logs an edge lifecycle change.
func (al *AuditLogger) LogEdgeTransition(edgeID string, from, to string, reason string, sampleSize int, winRate, pValue float64) {
	al.WithFields(logrus.Fields{
		"edge_id":     edgeID,
		"from_status": from,
		"to_status":   to,
		"reason":      reason,
		"sample_size": sampleSize,
		"win_rate":    winRate,
		"p_value":     pValue,
	}).Info("Edge transition recorded")
}

// LogEdgeRegistration logs the catalog's verdict on a candidate.
func (al *AuditLogger) LogEdgeRegistration(edgeID, predicate, outcome, source string, version int) {
	al.WithFields(logrus.Fields{
		"edge_id":   edgeID,
		"predicate": predicate,
		"outcome":   outcome,
		"source":    source,
		"version":   version,
	}).Info("Edge registration recorded")
}

// LogRecommendation logs an emitted recommendation.
func (al *AuditLogger) LogRecommendation(recID, gameID, side string, stakeFraction, modelProb, impliedProb, rawEdge, confidence float64, tier string, matchedEdges []string, staleInputs []string) {
	al.WithFields(logrus.Fields{
		"recommendation_id": recID,
		"game_id":           gameID,
		"side":              side,
		"stake_fraction":    stakeFraction,
		"model_prob":        modelProb,
		"implied_prob":      impliedProb,
		"raw_edge":          rawEdge,
		"confidence":        confidence,
		"tier":              tier,
		"matched_edges":     matchedEdges,
		"stale_inputs":      staleInputs,
	}).Info("Recommendation emitted")
}

// LogSettlement logs a settled recommendation outcome.
func (al *AuditLogger) LogSettlement(recID, gameID string, won bool, profit float64, clv float64, balance float64, settledAt time.Time) {
	al.WithFields(logrus.Fields{
		"recommendation_id": recID,
		"game_id":           gameID,
		"won":               won,
		"profit":            profit,
		"clv":               clv,
		"balance":           balance,
		"settled_at":        settledAt.Unix(),
	}).Info("Recommendation settled")
}

// LogCircuitBreakerEvent logs circuit breaker state changes.
func (al *AuditLogger) LogCircuitBreakerEvent(collectorKey, fromState, toState string) {
	al.WithFields(logrus.Fields{
		"collector_key": collectorKey,
		"from_state":    fromState,
		"to_state":      toState,
	}).Warn("Circuit breaker state changed")
}

// LogRateLimitDenial logs a request refused for lack of tokens.
func (al *AuditLogger) LogRateLimitDenial(collectorKey string, priority string, tokensAvailable float64) {
	al.WithFields(logrus.Fields{
		"collector_key":    collectorKey,
		"priority":         priority,
		"tokens_available": tokensAvailable,
	}).Warn("Request denied by rate limiter")
}
