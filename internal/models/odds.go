package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Market represents the wager market a quote belongs to
type Market string

const (
	MarketMoneyline Market = "moneyline"
	MarketTotal     Market = "total"
)

// BookQuote is a single book's line for one side of one market
type BookQuote struct {
	Book         string          `db:"book" json:"book" validate:"required"`
	Market       Market          `db:"market" json:"market" validate:"required,oneof=moneyline total"`
	Side         Side            `db:"side" json:"side" validate:"required,oneof=home away over under"`
	AmericanOdds int             `db:"american_odds" json:"american_odds" validate:"required"`
	DecimalOdds  decimal.Decimal `db:"decimal_odds" json:"decimal_odds"`
	ObservedAt   time.Time       `db:"observed_at" json:"observed_at" validate:"required"`
}

// ImpliedProbability returns the no-vig-naive implied probability of the
// quoted side.
func (q *BookQuote) ImpliedProbability() float64 {
	return ImpliedProbFromAmerican(q.AmericanOdds)
}

// OddsSnapshot is the per-book table of quotes for one game at one
// observation instant.
type OddsSnapshot struct {
	GameID     string      `json:"game_id"`
	Quotes     []BookQuote `json:"quotes"`
	ObservedAt time.Time   `json:"observed_at"`
	Stale      bool        `json:"stale,omitempty"`
	// TotalLine is the posted points total, zero when no book reports one.
	TotalLine float64 `json:"total_line,omitempty"`
}

// BestQuote returns the most favorable line for the given side across
// books, or nil when no book reports that side.
func (s *OddsSnapshot) BestQuote(side Side) *BookQuote {
	var best *BookQuote
	for i := range s.Quotes {
		q := &s.Quotes[i]
		if q.Side != side {
			continue
		}
		if best == nil || q.DecimalOdds.GreaterThan(best.DecimalOdds) {
			best = q
		}
	}
	return best
}

// HasSide checks whether any book reports a line for the side
func (s *OddsSnapshot) HasSide(side Side) bool {
	return s.BestQuote(side) != nil
}

// DecimalFromAmerican converts american odds to decimal odds.
func DecimalFromAmerican(odds int) decimal.Decimal {
	if odds == 0 {
		return decimal.Zero
	}
	if odds > 0 {
		return decimal.NewFromInt(1).Add(decimal.NewFromInt(int64(odds)).Div(decimal.NewFromInt(100)))
	}
	return decimal.NewFromInt(1).Add(decimal.NewFromInt(100).Div(decimal.NewFromInt(int64(-odds))))
}

// ImpliedProbFromAmerican converts american odds to implied probability.
func ImpliedProbFromAmerican(odds int) float64 {
	if odds == 0 {
		return 0
	}
	if odds > 0 {
		return 100.0 / (float64(odds) + 100.0)
	}
	a := float64(-odds)
	return a / (a + 100.0)
}

// BreakEvenWinRate returns the win rate required to break even wagering
// flat stakes at the given american odds. At -110 this is 110/210.
func BreakEvenWinRate(americanOdds int) float64 {
	return ImpliedProbFromAmerican(americanOdds)
}

// ProfitAtOdds returns the profit on a winning 1-unit wager at american
// odds; a losing wager returns -1 regardless of price.
func ProfitAtOdds(americanOdds int) float64 {
	if americanOdds == 0 {
		return 0
	}
	if americanOdds > 0 {
		return float64(americanOdds) / 100.0
	}
	return 100.0 / float64(-americanOdds)
}
