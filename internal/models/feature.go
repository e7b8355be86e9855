package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Feature namespace. Predicates may only reference these names; the
// parser rejects anything else. Booleans are exposed as 0/1.
const (
	FeatureHomeElo          = "home_elo"
	FeatureAwayElo          = "away_elo"
	FeatureEloDiff          = "elo_diff"
	FeatureHomeOffEPA       = "home_off_epa"
	FeatureHomeDefEPA       = "home_def_epa"
	FeatureAwayOffEPA       = "away_off_epa"
	FeatureAwayDefEPA       = "away_def_epa"
	FeatureHomeRestDays     = "home_rest_days"
	FeatureAwayRestDays     = "away_rest_days"
	FeatureRestDiff         = "rest_diff"
	FeatureRoofOutdoor      = "roof_outdoor"
	FeatureSurfaceGrass     = "surface_grass"
	FeatureElevationFeet    = "elevation_feet"
	FeatureWindMPH          = "wind_mph"
	FeatureGustMPH          = "gust_mph"
	FeatureTempF            = "temp_f"
	FeaturePrecipProb       = "precip_prob"
	FeatureRefHomeWinRate   = "ref_home_win_rate"
	FeatureRefPenaltyRate   = "ref_penalty_rate"
	FeatureRefTotalTendency = "ref_total_tendency"
	FeatureHomeInjuryImpact = "home_injury_impact"
	FeatureAwayInjuryImpact = "away_injury_impact"
	FeatureInjuryDiff       = "injury_diff"
	FeatureDivisional       = "divisional"
	FeatureHomeFavorite     = "home_favorite"
	FeatureWeek             = "week"
	FeatureHomeWinPct       = "home_win_pct"
	FeatureAwayWinPct       = "away_win_pct"
)

// FeatureNames lists the closed namespace in stable order.
var FeatureNames = []string{
	FeatureHomeElo, FeatureAwayElo, FeatureEloDiff,
	FeatureHomeOffEPA, FeatureHomeDefEPA, FeatureAwayOffEPA, FeatureAwayDefEPA,
	FeatureHomeRestDays, FeatureAwayRestDays, FeatureRestDiff,
	FeatureRoofOutdoor, FeatureSurfaceGrass, FeatureElevationFeet,
	FeatureWindMPH, FeatureGustMPH, FeatureTempF, FeaturePrecipProb,
	FeatureRefHomeWinRate, FeatureRefPenaltyRate, FeatureRefTotalTendency,
	FeatureHomeInjuryImpact, FeatureAwayInjuryImpact, FeatureInjuryDiff,
	FeatureDivisional, FeatureHomeFavorite, FeatureWeek,
	FeatureHomeWinPct, FeatureAwayWinPct,
}

// IsFeatureName checks membership in the closed namespace
func IsFeatureName(name string) bool {
	for _, n := range FeatureNames {
		if n == name {
			return true
		}
	}
	return false
}

// FeatureVector holds everything the classifier consumes for one game at
// one as-of instant. Every value must be derivable from information
// available strictly before AsOf; the builder enforces this and the
// backtester depends on it. Odds are never features.
type FeatureVector struct {
	GameID string    `json:"game_id"`
	AsOf   time.Time `json:"as_of"`

	HomeElo          float64 `json:"home_elo"`
	AwayElo          float64 `json:"away_elo"`
	EloDiff          float64 `json:"elo_diff"`
	HomeOffEPA       float64 `json:"home_off_epa"`
	HomeDefEPA       float64 `json:"home_def_epa"`
	AwayOffEPA       float64 `json:"away_off_epa"`
	AwayDefEPA       float64 `json:"away_def_epa"`
	HomeRestDays     float64 `json:"home_rest_days"`
	AwayRestDays     float64 `json:"away_rest_days"`
	RoofOutdoor      bool    `json:"roof_outdoor"`
	SurfaceGrass     bool    `json:"surface_grass"`
	ElevationFeet    float64 `json:"elevation_feet"`
	WindMPH          float64 `json:"wind_mph"`
	GustMPH          float64 `json:"gust_mph"`
	TempF            float64 `json:"temp_f"`
	PrecipProb       float64 `json:"precip_prob"`
	RefHomeWinRate   float64 `json:"ref_home_win_rate"`
	RefPenaltyRate   float64 `json:"ref_penalty_rate"`
	RefTotalTendency float64 `json:"ref_total_tendency"`
	HomeInjuryImpact float64 `json:"home_injury_impact"`
	AwayInjuryImpact float64 `json:"away_injury_impact"`
	Divisional       bool    `json:"divisional"`
	Week             float64 `json:"week"`
	HomeWinPct       float64 `json:"home_win_pct"`
	AwayWinPct       float64 `json:"away_win_pct"`

	// SourceTimes records the publish instant of every contributing
	// input, keyed by collector key.
	SourceTimes map[string]time.Time `json:"source_times"`
	// StaleInputs lists collector keys whose values came from expired
	// cache entries.
	StaleInputs []string `json:"stale_inputs,omitempty"`
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Field resolves a namespace name to its value. The second return is
// false for names outside the namespace.
func (fv *FeatureVector) Field(name string) (float64, bool) {
	switch name {
	case FeatureHomeElo:
		return fv.HomeElo, true
	case FeatureAwayElo:
		return fv.AwayElo, true
	case FeatureEloDiff:
		return fv.HomeElo - fv.AwayElo, true
	case FeatureHomeOffEPA:
		return fv.HomeOffEPA, true
	case FeatureHomeDefEPA:
		return fv.HomeDefEPA, true
	case FeatureAwayOffEPA:
		return fv.AwayOffEPA, true
	case FeatureAwayDefEPA:
		return fv.AwayDefEPA, true
	case FeatureHomeRestDays:
		return fv.HomeRestDays, true
	case FeatureAwayRestDays:
		return fv.AwayRestDays, true
	case FeatureRestDiff:
		return fv.HomeRestDays - fv.AwayRestDays, true
	case FeatureRoofOutdoor:
		return boolToFloat(fv.RoofOutdoor), true
	case FeatureSurfaceGrass:
		return boolToFloat(fv.SurfaceGrass), true
	case FeatureElevationFeet:
		return fv.ElevationFeet, true
	case FeatureWindMPH:
		return fv.WindMPH, true
	case FeatureGustMPH:
		return fv.GustMPH, true
	case FeatureTempF:
		return fv.TempF, true
	case FeaturePrecipProb:
		return fv.PrecipProb, true
	case FeatureRefHomeWinRate:
		return fv.RefHomeWinRate, true
	case FeatureRefPenaltyRate:
		return fv.RefPenaltyRate, true
	case FeatureRefTotalTendency:
		return fv.RefTotalTendency, true
	case FeatureHomeInjuryImpact:
		return fv.HomeInjuryImpact, true
	case FeatureAwayInjuryImpact:
		return fv.AwayInjuryImpact, true
	case FeatureInjuryDiff:
		return fv.HomeInjuryImpact - fv.AwayInjuryImpact, true
	case FeatureDivisional:
		return boolToFloat(fv.Divisional), true
	case FeatureHomeFavorite:
		return boolToFloat(fv.HomeElo > fv.AwayElo), true
	case FeatureWeek:
		return fv.Week, true
	case FeatureHomeWinPct:
		return fv.HomeWinPct, true
	case FeatureAwayWinPct:
		return fv.AwayWinPct, true
	default:
		return 0, false
	}
}

// SnapshotHash returns the reproducible digest of the feature values.
// Map marshaling sorts keys, so identical vectors hash identically.
func (fv *FeatureVector) SnapshotHash() string {
	values := make(map[string]float64, len(FeatureNames)+1)
	for _, name := range FeatureNames {
		v, _ := fv.Field(name)
		values[name] = v
	}
	payload := struct {
		GameID string             `json:"game_id"`
		AsOf   string             `json:"as_of"`
		Values map[string]float64 `json:"values"`
	}{
		GameID: fv.GameID,
		AsOf:   fv.AsOf.UTC().Format(time.RFC3339Nano),
		Values: values,
	}
	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
