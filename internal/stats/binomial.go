// Package stats holds the shared wagering math: binomial significance
// tests, Kelly sizing, and performance ratios.
package stats

import "math"

// logBinomialPMF returns ln P(X = k) for X ~ Binomial(n, 0.5).
func logBinomialPMF(k, n int) float64 {
	lgN, _ := math.Lgamma(float64(n + 1))
	lgK, _ := math.Lgamma(float64(k + 1))
	lgNK, _ := math.Lgamma(float64(n - k + 1))
	return lgN - lgK - lgNK + float64(n)*math.Log(0.5)
}

// upperTail returns P(X >= k) for X ~ Binomial(n, 0.5).
func upperTail(k, n int) float64 {
	if k <= 0 {
		return 1
	}
	if k > n {
		return 0
	}
	sum := 0.0
	for i := k; i <= n; i++ {
		sum += math.Exp(logBinomialPMF(i, n))
	}
	if sum > 1 {
		return 1
	}
	return sum
}

// TwoSidedPValue tests wins out of n trials against the fair-coin null.
// Returns 1 for empty samples so callers reject them naturally.
func TwoSidedPValue(wins, n int) float64 {
	if n <= 0 {
		return 1
	}
	lower := 1 - upperTail(wins+1, n)
	upper := upperTail(wins, n)
	p := 2 * math.Min(lower, upper)
	if p > 1 {
		return 1
	}
	return p
}

// OneSidedPValue tests whether wins out of n exceeds the fair-coin null.
func OneSidedPValue(wins, n int) float64 {
	if n <= 0 {
		return 1
	}
	return upperTail(wins, n)
}

// CohenH is the arcsine effect size between an observed proportion and
// the 0.5 null.
func CohenH(winRate float64) float64 {
	clamped := math.Max(0, math.Min(1, winRate))
	return 2*math.Asin(math.Sqrt(clamped)) - 2*math.Asin(math.Sqrt(0.5))
}
