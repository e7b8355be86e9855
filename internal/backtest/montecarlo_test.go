package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/gridiron-edge/internal/models"
)

func mcSettlement(side models.Side, modelProb, fraction float64, odds int, won bool) Settlement {
	return Settlement{
		Recommendation: &models.Recommendation{
			Side:          side,
			ModelProb:     modelProb,
			ImpliedProb:   0.5,
			StakeFraction: fraction,
			BestOdds:      odds,
		},
		Outcome: &models.RecommendationOutcome{Won: won},
	}
}

func TestMonteCarloIsDeterministic(t *testing.T) {
	settled := make([]Settlement, 0, 40)
	for i := 0; i < 40; i++ {
		settled = append(settled, mcSettlement(models.SideHome, 0.60, 0.02, -110, i%3 != 0))
	}

	mc := MonteCarlo{Iterations: 500, Seed: 42, InitialBankroll: 10000}
	first := mc.Run(settled)
	second := mc.Run(settled)
	assert.Equal(t, first, second)
	assert.Equal(t, 500, first.Iterations)
}

func TestMonteCarloFavorableBookProfitsOnAverage(t *testing.T) {
	// A 60% winner at -110 pays well above break-even (52.4%), so the
	// mean simulated return should be positive and ruin should be rare.
	settled := make([]Settlement, 0, 60)
	for i := 0; i < 60; i++ {
		settled = append(settled, mcSettlement(models.SideHome, 0.60, 0.02, -110, true))
	}

	result := MonteCarlo{Iterations: 2000, Seed: 7, InitialBankroll: 10000}.Run(settled)
	assert.Greater(t, result.MeanReturn, 0.0)
	assert.Greater(t, result.ProbabilityOfProfit, 0.5)
	assert.Less(t, result.ProbabilityOfRuin, 0.01)
	assert.LessOrEqual(t, result.VaR95, result.MeanReturn)
	assert.LessOrEqual(t, result.VaR99, result.VaR95)
}

func TestMonteCarloSkipsPushes(t *testing.T) {
	pushes := []Settlement{
		{Recommendation: &models.Recommendation{Side: models.SideHome, ModelProb: 0.6, StakeFraction: 0.05, BestOdds: -110}, Push: true},
	}
	result := MonteCarlo{Iterations: 100, Seed: 1, InitialBankroll: 5000}.Run(pushes)
	require.Equal(t, 0.0, result.MeanReturn)
	require.Equal(t, 0.0, result.StdReturn)
}
