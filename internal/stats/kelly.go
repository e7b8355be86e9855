package stats

// KellyFraction returns the growth-optimal stake fraction for a wager at
// decimal odds with the given win probability. Negative expectation
// returns 0.
func KellyFraction(prob, decimalOdds float64) float64 {
	if decimalOdds <= 1 || prob <= 0 {
		return 0
	}
	b := decimalOdds - 1
	q := 1 - prob
	f := (b*prob - q) / b
	if f < 0 {
		return 0
	}
	return f
}

// QuarterKelly applies the variance-control fraction used as the staking
// base.
func QuarterKelly(prob, decimalOdds float64) float64 {
	return KellyFraction(prob, decimalOdds) * 0.25
}
