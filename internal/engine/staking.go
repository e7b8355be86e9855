package engine

import (
	"github.com/yourusername/gridiron-edge/internal/models"
	"github.com/yourusername/gridiron-edge/internal/stats"
)

// confidenceMultiplier scales the base stake by conviction.
func confidenceMultiplier(confidence float64) float64 {
	switch {
	case confidence > 0.75:
		return 2.0
	case confidence > 0.70:
		return 1.5
	case confidence > 0.65:
		return 1.0
	default:
		return 0.5
	}
}

// edgeMultiplier rewards strong historical edges among the matches.
func edgeMultiplier(matched []*models.Edge) float64 {
	best := 0.0
	for _, e := range matched {
		if he := e.HistoricalEdge(); he > best {
			best = he
		}
	}
	switch {
	case best > 0.10:
		return 1.5
	case best > 0.05:
		return 1.2
	default:
		return 1.0
	}
}

// regimeMultiplier throttles or presses based on recent bankroll
// performance. A fresh bankroll with no settled history is neutral.
func regimeMultiplier(state *models.BankrollState) float64 {
	if state == nil || state.SettledCount == 0 {
		return 1.0
	}
	switch {
	case state.RollingWinRate < 0.52:
		return 0.5
	case state.RollingSharpe < 1.0:
		return 0.7
	case state.RollingWinRate > 0.58:
		return 1.3
	default:
		return 1.0
	}
}

// stakeFraction sizes the wager: quarter-Kelly on the model probability
// at the best available price, scaled by the three multipliers, clamped
// to the absolute cap and floored while any edge exists.
func stakeFraction(prob, decimalOdds, confidence float64, matched []*models.Edge, state *models.BankrollState, cap, floor float64) float64 {
	base := stats.QuarterKelly(prob, decimalOdds)
	f := base * confidenceMultiplier(confidence) * edgeMultiplier(matched) * regimeMultiplier(state)

	if f > cap {
		f = cap
	}
	if f < floor {
		f = floor
	}
	return f
}
