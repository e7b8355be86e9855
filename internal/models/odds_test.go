package models

import (
	"math"
	"testing"
	"time"
)

func TestImpliedProbFromAmerican(t *testing.T) {
	tests := []struct {
		name string
		odds int
		want float64
	}{
		{"standard juice favorite", -110, 110.0 / 210.0},
		{"even money", 100, 0.5},
		{"heavy favorite", -200, 200.0 / 300.0},
		{"underdog", 150, 100.0 / 250.0},
		{"zero odds", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ImpliedProbFromAmerican(tt.odds)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ImpliedProbFromAmerican(%d) = %v, want %v", tt.odds, got, tt.want)
			}
		})
	}
}

func TestBreakEvenWinRate(t *testing.T) {
	be := BreakEvenWinRate(-110)
	want := 110.0 / 210.0
	if math.Abs(be-want) > 1e-9 {
		t.Errorf("BreakEvenWinRate(-110) = %v, want %v", be, want)
	}
}

func TestProfitAtOdds(t *testing.T) {
	if got := ProfitAtOdds(-110); math.Abs(got-100.0/110.0) > 1e-9 {
		t.Errorf("ProfitAtOdds(-110) = %v, want %v", got, 100.0/110.0)
	}
	if got := ProfitAtOdds(150); math.Abs(got-1.5) > 1e-9 {
		t.Errorf("ProfitAtOdds(150) = %v, want 1.5", got)
	}
}

func TestBestQuotePicksHighestDecimal(t *testing.T) {
	now := time.Now()
	snap := OddsSnapshot{
		GameID: "2025_01_BUF_KC",
		Quotes: []BookQuote{
			{Book: "alpha", Market: MarketMoneyline, Side: SideHome, AmericanOdds: -115, DecimalOdds: DecimalFromAmerican(-115), ObservedAt: now},
			{Book: "beta", Market: MarketMoneyline, Side: SideHome, AmericanOdds: -105, DecimalOdds: DecimalFromAmerican(-105), ObservedAt: now},
			{Book: "alpha", Market: MarketMoneyline, Side: SideAway, AmericanOdds: 105, DecimalOdds: DecimalFromAmerican(105), ObservedAt: now},
		},
		ObservedAt: now,
	}

	best := snap.BestQuote(SideHome)
	if best == nil {
		t.Fatal("expected a home quote")
	}
	if best.Book != "beta" {
		t.Errorf("best home book = %s, want beta", best.Book)
	}
	if snap.HasSide(SideUnder) {
		t.Error("HasSide(under) should be false with no total quotes")
	}
}
