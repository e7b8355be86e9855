package stats

import "math"

// weeksPerSeasonYear annualizes weekly return buckets.
const weeksPerSeasonYear = 52

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := average(values)
	sumSq := 0.0
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)-1))
}

// SharpeRatio annualizes weekly return buckets at a zero risk-free rate.
func SharpeRatio(weeklyReturns []float64) float64 {
	if len(weeklyReturns) == 0 {
		return 0
	}
	mean := average(weeklyReturns)
	std := stddev(weeklyReturns)
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(weeksPerSeasonYear)
}

// MaxDrawdown returns the deepest peak-to-trough fraction of an equity
// curve.
func MaxDrawdown(equity []float64) float64 {
	maxDD := 0.0
	peak := 0.0
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if peak == 0 {
			continue
		}
		dd := (peak - v) / peak
		if dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// WinRate is wins over decided outcomes.
func WinRate(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total)
}

// ROI is net profit over total amount staked.
func ROI(netProfit, totalStaked float64) float64 {
	if totalStaked == 0 {
		return 0
	}
	return netProfit / totalStaked
}

// FlatROI returns the per-wager ROI of flat staking at american odds
// given a win rate: winRate*profit - (1-winRate).
func FlatROI(winRate float64, profitPerUnit float64) float64 {
	return winRate*profitPerUnit - (1 - winRate)
}
