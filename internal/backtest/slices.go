package backtest

import (
	"context"
	"fmt"
	"sort"

	"github.com/yourusername/gridiron-edge/internal/catalog"
	"github.com/yourusername/gridiron-edge/internal/models"
	"github.com/yourusername/gridiron-edge/internal/predicate"
	"github.com/yourusername/gridiron-edge/internal/stats"
)

// sliceDefs are the orthogonal dimensions the settled results are cut
// along when hunting for patterns the sweep templates missed.
var sliceDefs = []string{
	"wind_mph > 15",
	"wind_mph > 20",
	"temp_f < 32",
	"elo_diff > 100",
	"elo_diff < -100",
	"divisional == 1",
	"week < 5",
	"week > 14",
	"rest_diff > 2",
	"rest_diff < -2",
	"roof_outdoor == 0",
	"precip_prob > 0.5",
	"home_injury_impact > 5",
	"away_injury_impact > 5",
	"home_win_pct > 0.7",
	"away_win_pct > 0.7",
}

// submitPatternSlices cuts the settled results along each slice and
// side, and hands the outliers to the catalog as candidates. Nothing is
// promoted here: candidates still face the discovery-grade activation
// bar later.
func (b *Backtester) submitPatternSlices(ctx context.Context, result *Result) (int, error) {
	decided := 0
	baseWins := 0
	for _, s := range result.Settled {
		if s.Push {
			continue
		}
		decided++
		if s.Outcome.Won {
			baseWins++
		}
	}
	if decided == 0 {
		return 0, nil
	}
	baseRate := float64(baseWins) / float64(decided)
	liftFloor := baseRate + b.cfg.PatternMinLiftPP/100

	submitted := 0
	for _, def := range sliceDefs {
		p, err := predicate.Parse(def)
		if err != nil {
			return submitted, fmt.Errorf("bad slice definition %q: %w", def, err)
		}
		for _, side := range []models.Side{models.SideHome, models.SideAway, models.SideOver, models.SideUnder} {
			wins, n := sliceRecord(result.Settled, p, side)
			if n < b.cfg.PatternMinSample {
				continue
			}
			rate := float64(wins) / float64(n)
			if rate < liftFloor {
				continue
			}
			pValue := stats.OneSidedPValue(wins, n)
			if pValue >= b.cfg.PatternMaxPValue {
				continue
			}

			_, _, err := b.catalog.Register(ctx, &catalog.Candidate{
				Predicate: p,
				Side:      side,
				Stats: models.EdgeStats{
					SampleSize: n,
					Wins:       wins,
					WinRate:    rate,
					ROI:        stats.FlatROI(rate, models.ProfitAtOdds(-110)),
					PValue:     pValue,
					EffectSize: stats.CohenH(rate),
				},
				Source: "backtest_pattern",
			})
			if err != nil {
				return submitted, fmt.Errorf("failed to submit pattern slice: %w", err)
			}
			submitted++
		}
	}
	return submitted, nil
}

// sliceRecord tallies settled bets of one side inside the slice.
func sliceRecord(settled []Settlement, p *predicate.Predicate, side models.Side) (wins, n int) {
	for _, s := range settled {
		if s.Push || s.Recommendation.Side != side || !p.Evaluate(s.Vector) {
			continue
		}
		n++
		if s.Outcome.Won {
			wins++
		}
	}
	return wins, n
}

// sharpeFromWeekly converts weekly profit buckets into returns on the
// starting bankroll and computes the Sharpe ratio over them. Buckets
// are walked in key order so the result is deterministic.
func sharpeFromWeekly(weeklyProfit map[string]float64, initialBankroll float64) float64 {
	if len(weeklyProfit) == 0 || initialBankroll <= 0 {
		return 0
	}
	keys := make([]string, 0, len(weeklyProfit))
	for k := range weeklyProfit {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	returns := make([]float64, 0, len(keys))
	for _, k := range keys {
		returns = append(returns, weeklyProfit[k]/initialBankroll)
	}
	return stats.SharpeRatio(returns)
}
