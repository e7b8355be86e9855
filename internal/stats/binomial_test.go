package stats

import (
	"math"
	"testing"
)

func TestTwoSidedPValue(t *testing.T) {
	tests := []struct {
		name    string
		wins    int
		n       int
		maxP    float64
		minP    float64
	}{
		{"coin flip result is insignificant", 50, 100, 1.01, 0.9},
		{"60 of 100 is marginal", 60, 100, 0.06, 0.04},
		{"300 of 400 is overwhelming", 300, 400, 1e-10, 0},
		{"empty sample", 0, 0, 1.01, 0.99},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := TwoSidedPValue(tt.wins, tt.n)
			if p > tt.maxP || p < tt.minP {
				t.Errorf("TwoSidedPValue(%d, %d) = %v, want in [%v, %v]", tt.wins, tt.n, p, tt.minP, tt.maxP)
			}
		})
	}
}

func TestTwoSidedPValueSymmetry(t *testing.T) {
	up := TwoSidedPValue(70, 100)
	down := TwoSidedPValue(30, 100)
	if math.Abs(up-down) > 1e-9 {
		t.Errorf("symmetric deviations must give equal p: %v vs %v", up, down)
	}
}

func TestOneSidedPValue(t *testing.T) {
	// P(X >= 6) for ten fair flips: 386/1024
	p := OneSidedPValue(6, 10)
	want := 386.0 / 1024.0
	if math.Abs(p-want) > 1e-9 {
		t.Errorf("OneSidedPValue(6, 10) = %v, want %v", p, want)
	}
}

func TestKellyFraction(t *testing.T) {
	// 55% at even money: f = (1*0.55 - 0.45)/1 = 0.10
	f := KellyFraction(0.55, 2.0)
	if math.Abs(f-0.10) > 1e-9 {
		t.Errorf("KellyFraction(0.55, 2.0) = %v, want 0.10", f)
	}

	if KellyFraction(0.40, 2.0) != 0 {
		t.Error("negative expectation must return zero")
	}

	q := QuarterKelly(0.55, 2.0)
	if math.Abs(q-0.025) > 1e-9 {
		t.Errorf("QuarterKelly = %v, want 0.025", q)
	}
}

func TestSharpeRatio(t *testing.T) {
	if SharpeRatio(nil) != 0 {
		t.Error("empty returns should give zero")
	}
	flat := []float64{0.01, 0.01, 0.01, 0.01}
	if SharpeRatio(flat) != 0 {
		t.Error("zero variance should give zero, not infinity")
	}

	mixed := []float64{0.02, -0.01, 0.03, 0.00, 0.01}
	if SharpeRatio(mixed) <= 0 {
		t.Error("positive mean returns should give positive Sharpe")
	}
}

func TestMaxDrawdown(t *testing.T) {
	equity := []float64{1000, 1100, 990, 1050, 880, 1200}
	got := MaxDrawdown(equity)
	want := (1100.0 - 880.0) / 1100.0
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("MaxDrawdown = %v, want %v", got, want)
	}
}

func TestFlatROI(t *testing.T) {
	// Break-even win rate at -110 should produce zero ROI.
	be := 110.0 / 210.0
	roi := FlatROI(be, 100.0/110.0)
	if math.Abs(roi) > 1e-9 {
		t.Errorf("ROI at break-even should be 0, got %v", roi)
	}
}
