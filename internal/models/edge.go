package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Side represents the wager side an edge or recommendation targets
type Side string

const (
	SideHome  Side = "home"
	SideAway  Side = "away"
	SideOver  Side = "over"
	SideUnder Side = "under"
)

// EdgeStatus represents the lifecycle state of an edge
type EdgeStatus string

const (
	EdgeStatusCandidate EdgeStatus = "candidate"
	EdgeStatusActive    EdgeStatus = "active"
	EdgeStatusMonitored EdgeStatus = "monitored"
	EdgeStatusRetired   EdgeStatus = "retired"
)

// RegisterOutcome is the catalog's verdict on a submitted candidate
type RegisterOutcome string

const (
	RegisterAccepted    RegisterOutcome = "accepted"
	RegisterDuplicate   RegisterOutcome = "duplicate"
	RegisterVersionBump RegisterOutcome = "version_bump"
)

// EdgeStats aggregates wager performance over a set of historical games
type EdgeStats struct {
	SampleSize int     `db:"sample_size" json:"sample_size"`
	Wins       int     `db:"wins" json:"wins"`
	WinRate    float64 `db:"win_rate" json:"win_rate"`
	ROI        float64 `db:"roi" json:"roi"`
	PValue     float64 `db:"p_value" json:"p_value"`
	EffectSize float64 `db:"effect_size" json:"effect_size"`
}

// Edge is a historically validated predicate that flips the expected value
// of one side positive at standard odds. The predicate field holds the
// canonical string form produced by the predicate package.
type Edge struct {
	EdgeID         string     `db:"edge_id" json:"edge_id" validate:"required,len=64"`
	Predicate      string     `db:"predicate" json:"predicate" validate:"required"`
	Side           Side       `db:"side" json:"recommended_side" validate:"required,oneof=home away over under"`
	Status         EdgeStatus `db:"status" json:"status" validate:"required,oneof=candidate active monitored retired"`
	Version        int        `db:"version" json:"version" validate:"gte=1"`
	DiscoveryStats EdgeStats  `json:"discovery_stats"`
	RecentStats    EdgeStats  `json:"recent_stats"`
	Source         string     `db:"source" json:"source"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	PromotedAt     *time.Time `db:"promoted_at" json:"promoted_at"`
	RetiredAt      *time.Time `db:"retired_at" json:"retired_at"`
	RetireReason   *string    `db:"retire_reason" json:"retire_reason"`
}

// ComputeEdgeID derives the deterministic edge identifier from the
// canonical predicate and version.
func ComputeEdgeID(canonicalPredicate string, version int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s#v%d", canonicalPredicate, version)))
	return hex.EncodeToString(sum[:])
}

// IsActive checks whether the edge may influence recommendations
func (e *Edge) IsActive() bool {
	return e.Status == EdgeStatusActive || e.Status == EdgeStatusMonitored
}

// MeetsActivationBar reports whether discovery stats clear the promotion
// gate: sample of at least 100 and p strictly below 0.01.
func (e *Edge) MeetsActivationBar(minSample int, maxPValue float64) bool {
	return e.DiscoveryStats.SampleSize >= minSample && e.DiscoveryStats.PValue < maxPValue
}

// HistoricalEdge returns the discovery-time edge over break-even at -110.
func (e *Edge) HistoricalEdge() float64 {
	return e.DiscoveryStats.WinRate - BreakEvenWinRate(-110)
}

// WagerOutcome is a settled observation fed back into an edge's trailing
// window.
type WagerOutcome struct {
	EdgeID     string    `db:"edge_id" json:"edge_id"`
	GameID     string    `db:"game_id" json:"game_id"`
	Won        bool      `db:"won" json:"won"`
	Profit     float64   `db:"profit" json:"profit"`
	ObservedAt time.Time `db:"observed_at" json:"observed_at"`
}
