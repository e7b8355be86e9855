package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Tier grades a recommendation for downstream consumers
type Tier string

const (
	TierS Tier = "S"
	TierA Tier = "A"
	TierB Tier = "B"
	TierC Tier = "C"
)

// Recommendation is the engine's sized wager suggestion for one game
// side. It is immutable once emitted; settlement writes a paired
// RecommendationOutcome instead of mutating it.
type Recommendation struct {
	ID                  uuid.UUID       `db:"id" json:"id"`
	RunID               uuid.UUID       `db:"run_id" json:"run_id"`
	GameID              string          `db:"game_id" json:"game_id" validate:"required"`
	Kickoff             time.Time       `db:"kickoff" json:"kickoff_utc" validate:"required"`
	Side                Side            `db:"side" json:"side" validate:"required,oneof=home away over under"`
	StakeFraction       float64         `db:"stake_fraction" json:"stake_fraction" validate:"gte=0,lte=0.10"`
	StakeAmount         decimal.Decimal `db:"stake_amount" json:"stake_amount"`
	ModelProb           float64         `db:"model_prob" json:"model_prob" validate:"gte=0,lte=1"`
	ImpliedProb         float64         `db:"implied_prob" json:"implied_prob" validate:"gte=0,lte=1"`
	RawEdge             float64         `db:"raw_edge" json:"raw_edge"`
	MatchedEdges        []string        `json:"matched_edges"`
	Confidence          float64         `db:"confidence" json:"confidence" validate:"gte=0,lte=1"`
	Tier                Tier            `db:"tier" json:"tier" validate:"required,oneof=S A B C"`
	BestBook            string          `db:"best_book" json:"best_book"`
	BestOdds            int             `db:"best_odds" json:"best_odds"`
	GeneratedAt         time.Time       `db:"generated_at" json:"generated_at"`
	FeatureSnapshotHash string          `db:"feature_snapshot_hash" json:"feature_snapshot_hash"`
	StaleInputs         []string        `json:"stale_inputs"`
}

// GradeTier maps confidence and raw edge onto the S/A/B/C scale.
func GradeTier(confidence, rawEdge float64) Tier {
	switch {
	case confidence > 0.75 && rawEdge > 0.08:
		return TierS
	case confidence > 0.70 && rawEdge > 0.05:
		return TierA
	case confidence > 0.65 && rawEdge > 0.03:
		return TierB
	default:
		return TierC
	}
}

// RecommendationOutcome records settlement of one recommendation
type RecommendationOutcome struct {
	RecommendationID uuid.UUID       `db:"recommendation_id" json:"recommendation_id"`
	GameID           string          `db:"game_id" json:"game_id"`
	Won              bool            `db:"won" json:"won"`
	Push             bool            `db:"push" json:"push"`
	Profit           decimal.Decimal `db:"profit" json:"profit"`
	ClosingOdds      int             `db:"closing_odds" json:"closing_odds"`
	CLV              float64         `db:"clv" json:"clv"`
	SettledAt        time.Time       `db:"settled_at" json:"settled_at"`
}
