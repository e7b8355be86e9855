// Package features assembles the classifier's input vector from the
// gathered source data. The builder is pure: callers fetch, it folds.
// Every contributing value must carry a source timestamp strictly before
// the as-of instant or the build fails with a LookAheadViolation.
package features

import (
	"fmt"
	"sort"
	"time"

	"github.com/yourusername/gridiron-edge/internal/models"
)

// rollingWindow is how many recent games feed the efficiency averages.
const rollingWindow = 5

// Inputs carries everything a build consumes for one game. History
// slices must contain only each team's completed games; the builder
// filters them to observations before the as-of instant itself.
type Inputs struct {
	Game    *models.Game
	Stadium *models.Stadium

	HomeTeam *models.Team
	AwayTeam *models.Team
	HomeElo  float64
	AwayElo  float64

	HomeEfficiency []models.TeamEfficiency
	AwayEfficiency []models.TeamEfficiency

	// Weather is nil for domed stadiums.
	Weather *models.WeatherForecast

	HomeInjuries *models.InjuryReport
	AwayInjuries *models.InjuryReport

	Referee *models.RefereeProfile

	// HomeHistory and AwayHistory are each team's completed games this
	// season, any order.
	HomeHistory []*models.Game
	AwayHistory []*models.Game

	// SourceTimes records each collector input's publish instant for the
	// audit trail. Entries here are validated against the as-of instant.
	SourceTimes map[string]time.Time
	// StaleInputs lists collector keys served from expired cache entries.
	StaleInputs []string
}

// Build assembles the feature vector for asOf, enforcing the
// no-look-ahead invariant on every timestamped input.
func Build(in *Inputs, asOf time.Time) (*models.FeatureVector, error) {
	if in.Game == nil || in.Stadium == nil {
		return nil, fmt.Errorf("game and stadium are required")
	}

	for key, ts := range in.SourceTimes {
		if !ts.Before(asOf) {
			return nil, &models.LookAheadViolation{Field: key, SourceTime: ts, AsOf: asOf}
		}
	}
	if in.Weather != nil && !in.Weather.AsOf.Before(asOf) {
		return nil, &models.LookAheadViolation{Field: models.FeatureWindMPH, SourceTime: in.Weather.AsOf, AsOf: asOf}
	}
	if in.HomeInjuries != nil && !in.HomeInjuries.PublishedAt.Before(asOf) {
		return nil, &models.LookAheadViolation{Field: models.FeatureHomeInjuryImpact, SourceTime: in.HomeInjuries.PublishedAt, AsOf: asOf}
	}
	if in.AwayInjuries != nil && !in.AwayInjuries.PublishedAt.Before(asOf) {
		return nil, &models.LookAheadViolation{Field: models.FeatureAwayInjuryImpact, SourceTime: in.AwayInjuries.PublishedAt, AsOf: asOf}
	}

	fv := &models.FeatureVector{
		GameID:      in.Game.GameID,
		AsOf:        asOf.UTC(),
		HomeElo:     in.HomeElo,
		AwayElo:     in.AwayElo,
		EloDiff:     in.HomeElo - in.AwayElo,
		Week:        float64(in.Game.Week),
		SourceTimes: in.SourceTimes,
		StaleInputs: in.StaleInputs,
	}

	fv.HomeOffEPA, fv.HomeDefEPA = rollingEPA(in.HomeEfficiency, asOf)
	fv.AwayOffEPA, fv.AwayDefEPA = rollingEPA(in.AwayEfficiency, asOf)

	fv.HomeRestDays = restDays(in.HomeHistory, in.Game.Kickoff, asOf)
	fv.AwayRestDays = restDays(in.AwayHistory, in.Game.Kickoff, asOf)

	fv.RoofOutdoor = in.Stadium.Roof == models.RoofOutdoor
	fv.SurfaceGrass = in.Stadium.Surface == "grass"
	fv.ElevationFeet = float64(in.Stadium.ElevationFeet)

	if in.Weather != nil && in.Stadium.IsWeatherExposed() {
		fv.WindMPH = in.Weather.SurfaceWindMPH
		fv.GustMPH = in.Weather.GustMPH
		fv.TempF = in.Weather.TempF
		fv.PrecipProb = in.Weather.PrecipProb
	} else {
		// Controlled environment: neutral indoor conditions.
		fv.TempF = 70
	}

	if in.Referee != nil {
		fv.RefHomeWinRate = in.Referee.HomeWinRate
		fv.RefPenaltyRate = in.Referee.PenaltiesPerGame
		fv.RefTotalTendency = in.Referee.AvgTotalPoints
	}

	if in.HomeInjuries != nil {
		fv.HomeInjuryImpact = in.HomeInjuries.ImpactScore()
	}
	if in.AwayInjuries != nil {
		fv.AwayInjuryImpact = in.AwayInjuries.ImpactScore()
	}

	if in.HomeTeam != nil && in.AwayTeam != nil {
		fv.Divisional = in.HomeTeam.SameDivision(in.AwayTeam)
	}

	fv.HomeWinPct = winPct(in.HomeHistory, in.Game.HomeTeam, asOf)
	fv.AwayWinPct = winPct(in.AwayHistory, in.Game.AwayTeam, asOf)

	return fv, nil
}

// rollingEPA averages the team's last rollingWindow completed games with
// observations strictly before asOf.
func rollingEPA(rows []models.TeamEfficiency, asOf time.Time) (off, def float64) {
	eligible := make([]models.TeamEfficiency, 0, len(rows))
	for _, r := range rows {
		if r.CompletedAt.Before(asOf) {
			eligible = append(eligible, r)
		}
	}
	sort.Slice(eligible, func(i, j int) bool {
		return eligible[i].CompletedAt.After(eligible[j].CompletedAt)
	})
	if len(eligible) > rollingWindow {
		eligible = eligible[:rollingWindow]
	}
	if len(eligible) == 0 {
		return 0, 0
	}

	for _, r := range eligible {
		off += r.OffenseEPA
		def += r.DefenseEPA
	}
	n := float64(len(eligible))
	return off / n, def / n
}

// restDays returns full days between the team's most recent completed
// game before asOf and this kickoff. Teams with no prior game this
// season get the neutral seven.
func restDays(history []*models.Game, kickoff, asOf time.Time) float64 {
	var last time.Time
	for _, g := range history {
		if !g.IsCompleted() || !g.Kickoff.Before(asOf) {
			continue
		}
		if g.Kickoff.After(last) {
			last = g.Kickoff
		}
	}
	if last.IsZero() {
		return 7
	}
	return kickoff.Sub(last).Hours() / 24
}

// winPct is the team's season win rate over completed games before asOf.
// Ties count half. Teams with no completed games get 0.5.
func winPct(history []*models.Game, team string, asOf time.Time) float64 {
	var wins, played float64
	for _, g := range history {
		if !g.IsCompleted() || !g.Kickoff.Before(asOf) {
			continue
		}
		played++
		switch {
		case *g.HomeScore == *g.AwayScore:
			wins += 0.5
		case g.HomeTeam == team && g.HomeWon():
			wins++
		case g.AwayTeam == team && !g.HomeWon():
			wins++
		}
	}
	if played == 0 {
		return 0.5
	}
	return wins / played
}
