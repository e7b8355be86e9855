// Package logger provides decision-run logging.
package logger

import (
	"github.com/sirupsen/logrus"
)

// DecisionLogger provides dedicated logging for engine runs.
type DecisionLogger struct {
	*logrus.Entry
}

// NewDecisionLogger creates a new decision logger.
func NewDecisionLogger(baseLogger *logrus.Logger) *DecisionLogger {
	return &DecisionLogger{
		Entry: baseLogger.WithField("component", "engine"),
	}
}

// LogGameEvaluation logs the outcome of evaluating one game.
func (dl *DecisionLogger) LogGameEvaluation(runID, gameID string, modelProb, impliedProb, rawEdge, confidence float64, matchedEdges int, durationMs float64) {
	dl.WithFields(logrus.Fields{
		"run_id":        runID,
		"game_id":       gameID,
		"model_prob":    modelProb,
		"implied_prob":  impliedProb,
		"raw_edge":      rawEdge,
		"confidence":    confidence,
		"matched_edges": matchedEdges,
		"duration_ms":   durationMs,
	}).Info("Game evaluated")
}

// LogGameSkipped logs a game dropped from the run with the reason.
func (dl *DecisionLogger) LogGameSkipped(runID, gameID, reason string) {
	dl.WithFields(logrus.Fields{
		"run_id":  runID,
		"game_id": gameID,
		"reason":  reason,
	}).Warn("Game skipped")
}

// LogRunSummary logs the diagnostic summary of one decision run.
func (dl *DecisionLogger) LogRunSummary(runID string, gamesEvaluated, gamesSkipped, recommendations int, failedSources []string) {
	dl.WithFields(logrus.Fields{
		"run_id":           runID,
		"games_evaluated":  gamesEvaluated,
		"games_skipped":    gamesSkipped,
		"recommendations":  recommendations,
		"failed_sources":   failedSources,
	}).Info("Decision run completed")
}
