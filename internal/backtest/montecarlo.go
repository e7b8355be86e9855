package backtest

import (
	"math"
	"math/rand"
	"sort"

	"github.com/yourusername/gridiron-edge/internal/models"
)

// MonteCarlo resamples a backtest's settled wagers to estimate how much
// of the observed equity path was luck. The seed is fixed by the caller
// so reports are reproducible.
type MonteCarlo struct {
	Iterations      int
	Seed            int64
	InitialBankroll float64
}

// MonteCarloResult summarizes the simulated terminal bankrolls as
// returns on the initial bankroll.
type MonteCarloResult struct {
	Iterations          int     `json:"iterations"`
	MeanReturn          float64 `json:"mean_return"`
	StdReturn           float64 `json:"std_return"`
	VaR95               float64 `json:"var_95"`
	VaR99               float64 `json:"var_99"`
	ProbabilityOfProfit float64 `json:"probability_of_profit"`
	ProbabilityOfRuin   float64 `json:"probability_of_ruin"`
}

// Run replays the settled sequence with each wager re-decided at its
// recommendation's model probability, wagering the same fractions.
func (mc MonteCarlo) Run(settled []Settlement) MonteCarloResult {
	iterations := mc.Iterations
	if iterations <= 0 {
		iterations = 1000
	}

	rng := rand.New(rand.NewSource(mc.Seed))
	terminal := make([]float64, iterations)

	for i := 0; i < iterations; i++ {
		bankroll := mc.InitialBankroll
		for _, s := range settled {
			if s.Push {
				continue
			}
			rec := s.Recommendation
			prob := sideProbability(rec)
			stake := bankroll * rec.StakeFraction
			if rng.Float64() < prob {
				payout, _ := models.DecimalFromAmerican(rec.BestOdds).Float64()
				bankroll += stake * (payout - 1)
			} else {
				bankroll -= stake
			}
			if bankroll <= 0 {
				bankroll = 0
				break
			}
		}
		terminal[i] = bankroll
	}

	mean, std := meanStd(terminal)
	initial := mc.InitialBankroll
	return MonteCarloResult{
		Iterations:          iterations,
		MeanReturn:          (mean - initial) / initial,
		StdReturn:           std / initial,
		VaR95:               (percentile(terminal, 0.05) - initial) / initial,
		VaR99:               (percentile(terminal, 0.01) - initial) / initial,
		ProbabilityOfProfit: fractionAbove(terminal, initial),
		ProbabilityOfRuin:   fractionAtOrBelow(terminal, 0),
	}
}

// sideProbability is the model's probability of the wagered side.
func sideProbability(rec *models.Recommendation) float64 {
	switch rec.Side {
	case models.SideHome:
		return rec.ModelProb
	case models.SideAway:
		return 1 - rec.ModelProb
	default:
		// Totals sides carry no model probability; fall back to the
		// implied price.
		return rec.ImpliedProb
	}
}

func meanStd(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	return mean, math.Sqrt(variance / float64(len(values)))
}

func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	idx := int(math.Floor(p * float64(len(sorted)-1)))
	if idx < 0 {
		idx = 0
	}
	return sorted[idx]
}

func fractionAbove(values []float64, threshold float64) float64 {
	if len(values) == 0 {
		return 0
	}
	count := 0
	for _, v := range values {
		if v > threshold {
			count++
		}
	}
	return float64(count) / float64(len(values))
}

func fractionAtOrBelow(values []float64, threshold float64) float64 {
	if len(values) == 0 {
		return 0
	}
	count := 0
	for _, v := range values {
		if v <= threshold {
			count++
		}
	}
	return float64(count) / float64(len(values))
}
