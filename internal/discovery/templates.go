package discovery

import (
	"fmt"

	"github.com/yourusername/gridiron-edge/internal/models"
	"github.com/yourusername/gridiron-edge/internal/predicate"
)

// Template is one parameterized hypothesis family: a feature clause
// swept over a coarse grid of thresholds, all targeting the same side.
type Template struct {
	Name       string
	Side       models.Side
	Hypotheses []*predicate.Predicate
}

func mustClause(field string, op predicate.Op, value float64) *predicate.Predicate {
	p, err := predicate.New(predicate.Comparison{Field: field, Op: op, Value: value})
	if err != nil {
		panic(fmt.Sprintf("bad template clause %s %s %v: %v", field, op, value, err))
	}
	return p
}

func sweep(name string, side models.Side, field string, op predicate.Op, values ...float64) Template {
	t := Template{Name: name, Side: side}
	for _, v := range values {
		t.Hypotheses = append(t.Hypotheses, mustClause(field, op, v))
	}
	return t
}

// Templates returns the full hypothesis sweep. Grids are deliberately
// coarse: fine-grained threshold shopping inflates the multiple-testing
// burden without adding real hypotheses.
func Templates() []Template {
	return []Template{
		// Strength and form, moneyline.
		sweep("home_elo_favorite", models.SideHome, models.FeatureEloDiff, predicate.OpGT, 50, 75, 100, 150),
		sweep("away_elo_favorite", models.SideAway, models.FeatureEloDiff, predicate.OpLT, -50, -75, -100, -150),
		sweep("home_dog_bites", models.SideHome, models.FeatureEloDiff, predicate.OpLT, -25, -50),
		sweep("away_dog_bites", models.SideAway, models.FeatureEloDiff, predicate.OpGT, 25, 50),
		sweep("home_off_epa_elite", models.SideHome, models.FeatureHomeOffEPA, predicate.OpGT, 0.05, 0.10, 0.15, 0.20),
		sweep("away_off_epa_elite", models.SideAway, models.FeatureAwayOffEPA, predicate.OpGT, 0.05, 0.10, 0.15, 0.20),
		sweep("home_def_epa_elite", models.SideHome, models.FeatureHomeDefEPA, predicate.OpLT, -0.05, -0.10, -0.15),
		sweep("away_def_epa_elite", models.SideAway, models.FeatureAwayDefEPA, predicate.OpLT, -0.05, -0.10, -0.15),
		sweep("home_hot_streak", models.SideHome, models.FeatureHomeWinPct, predicate.OpGT, 0.60, 0.70, 0.80),
		sweep("away_hot_streak", models.SideAway, models.FeatureAwayWinPct, predicate.OpGT, 0.60, 0.70, 0.80),

		// Rest and schedule.
		sweep("home_rest_edge", models.SideHome, models.FeatureRestDiff, predicate.OpGT, 2, 3, 4, 6),
		sweep("away_rest_edge", models.SideAway, models.FeatureRestDiff, predicate.OpLT, -2, -3, -4, -6),
		sweep("away_short_week_fade", models.SideHome, models.FeatureAwayRestDays, predicate.OpLT, 5, 6),
		sweep("home_short_week_fade", models.SideAway, models.FeatureHomeRestDays, predicate.OpLT, 5, 6),
		sweep("home_off_bye", models.SideHome, models.FeatureHomeRestDays, predicate.OpGT, 10, 12),
		sweep("away_off_bye", models.SideAway, models.FeatureAwayRestDays, predicate.OpGT, 10, 12),
		sweep("early_season_home", models.SideHome, models.FeatureWeek, predicate.OpLT, 4, 5),
		sweep("late_season_home", models.SideHome, models.FeatureWeek, predicate.OpGT, 14, 15),

		// Matchup context.
		sweep("divisional_home", models.SideHome, models.FeatureDivisional, predicate.OpEQ, 1),
		sweep("divisional_away", models.SideAway, models.FeatureDivisional, predicate.OpEQ, 1),
		sweep("home_health_edge", models.SideHome, models.FeatureInjuryDiff, predicate.OpLT, -3, -5, -8),
		sweep("away_health_edge", models.SideAway, models.FeatureInjuryDiff, predicate.OpGT, 3, 5, 8),
		sweep("ref_home_lean", models.SideHome, models.FeatureRefHomeWinRate, predicate.OpGT, 0.55, 0.58, 0.60),
		sweep("ref_away_lean", models.SideAway, models.FeatureRefHomeWinRate, predicate.OpLT, 0.40, 0.42, 0.45),
		sweep("altitude_home", models.SideHome, models.FeatureElevationFeet, predicate.OpGT, 4000, 5000),
		sweep("grass_home", models.SideHome, models.FeatureSurfaceGrass, predicate.OpEQ, 1),

		// Totals: weather.
		sweep("wind_under", models.SideUnder, models.FeatureWindMPH, predicate.OpGT, 12, 15, 18, 21),
		sweep("gust_under", models.SideUnder, models.FeatureGustMPH, predicate.OpGT, 20, 25, 30),
		sweep("freezing_under", models.SideUnder, models.FeatureTempF, predicate.OpLT, 25, 32),
		sweep("heat_over", models.SideOver, models.FeatureTempF, predicate.OpGT, 85, 90),
		sweep("precip_under", models.SideUnder, models.FeaturePrecipProb, predicate.OpGT, 0.5, 0.7),
		sweep("dome_over", models.SideOver, models.FeatureRoofOutdoor, predicate.OpEQ, 0),

		// Totals: officiating and efficiency.
		sweep("ref_total_over", models.SideOver, models.FeatureRefTotalTendency, predicate.OpGT, 46, 48),
		sweep("ref_total_under", models.SideUnder, models.FeatureRefTotalTendency, predicate.OpLT, 40, 42),
		sweep("flag_heavy_over", models.SideOver, models.FeatureRefPenaltyRate, predicate.OpGT, 13, 15),
		sweep("shootout_over", models.SideOver, models.FeatureHomeOffEPA, predicate.OpGT, 0.10, 0.15),
		sweep("slugfest_under", models.SideUnder, models.FeatureHomeDefEPA, predicate.OpLT, -0.10, -0.15),
		sweep("altitude_over", models.SideOver, models.FeatureElevationFeet, predicate.OpGT, 4000, 5000),
	}
}
