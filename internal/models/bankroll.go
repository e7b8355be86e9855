package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BankrollState is the global singleton the staking multipliers read.
// Only the settlement path writes it.
type BankrollState struct {
	Balance              decimal.Decimal `db:"balance" json:"balance"`
	PeakBalance          decimal.Decimal `db:"peak_balance" json:"peak_balance"`
	RollingWinRate       float64         `db:"rolling_win_rate" json:"rolling_win_rate"`
	RollingSharpe        float64         `db:"rolling_sharpe" json:"rolling_sharpe"`
	CurrentDrawdown      float64         `db:"current_drawdown" json:"current_drawdown"`
	AggressionMultiplier float64         `db:"aggression_multiplier" json:"aggression_multiplier"`
	SettledCount         int             `db:"settled_count" json:"settled_count"`
	UpdatedAt            time.Time       `db:"updated_at" json:"updated_at"`
}

// Drawdown returns the fractional distance from the peak balance.
func (b *BankrollState) Drawdown() float64 {
	if b.PeakBalance.IsZero() {
		return 0
	}
	dd, _ := b.PeakBalance.Sub(b.Balance).Div(b.PeakBalance).Float64()
	if dd < 0 {
		return 0
	}
	return dd
}

// LedgerEntry is one append-only bankroll movement
type LedgerEntry struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	RecommendationID *uuid.UUID      `db:"recommendation_id" json:"recommendation_id"`
	Delta            decimal.Decimal `db:"delta" json:"delta"`
	Balance          decimal.Decimal `db:"balance" json:"balance"`
	Reason           string          `db:"reason" json:"reason"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
}
