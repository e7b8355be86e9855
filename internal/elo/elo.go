// Package elo maintains the team strength ratings consumed by the
// feature builder. Ratings update only from final scores, one game at a
// time, so replaying the same schedule always yields the same ratings.
package elo

import (
	"math"

	"github.com/yourusername/gridiron-edge/internal/models"
)

const (
	// InitialRating seeds every team before its first rated game.
	InitialRating = 1500.0
	// KFactor controls per-game rating movement.
	KFactor = 32.0
	// HomeAdvantage is added to the home side's rating when computing
	// expectations, worth roughly 2.5 points of spread.
	HomeAdvantage = 65.0
)

// Expected returns the home side's win expectation given both ratings,
// with home advantage applied.
func Expected(homeElo, awayElo float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (awayElo-(homeElo+HomeAdvantage))/400.0))
}

// marginMultiplier dampens blowout inflation the way the public NFL Elo
// formulations do: log of the margin, corrected for the winner already
// being rated higher.
func marginMultiplier(margin int, eloDiff float64) float64 {
	absMargin := math.Abs(float64(margin))
	if absMargin < 1 {
		absMargin = 1
	}
	return math.Log(absMargin+1) * (2.2 / (eloDiff*0.001 + 2.2))
}

// Update returns the post-game ratings for both sides. The game must be
// final; ties split the score halfway.
func (r *Rater) Update(game *models.Game, homeElo, awayElo float64) (newHome, newAway float64) {
	if !game.IsCompleted() {
		return homeElo, awayElo
	}

	expected := Expected(homeElo, awayElo)
	actual := 0.5
	margin := *game.HomeMargin
	switch {
	case margin > 0:
		actual = 1.0
	case margin < 0:
		actual = 0.0
	}

	winnerDiff := homeElo - awayElo
	if margin < 0 {
		winnerDiff = awayElo - homeElo
	}

	delta := r.k * marginMultiplier(margin, winnerDiff) * (actual - expected)
	return homeElo + delta, awayElo - delta
}

// Rater applies the update rule with a fixed K.
type Rater struct {
	k float64
}

// NewRater creates a rater with the standard K factor.
func NewRater() *Rater {
	return &Rater{k: KFactor}
}

// Ratings tracks per-team ratings during a replay. Not safe for
// concurrent use; the backtester and ingestion both drive it from a
// single goroutine.
type Ratings struct {
	rater   *Rater
	ratings map[string]float64
}

// NewRatings creates an empty table; unknown teams start at InitialRating.
func NewRatings() *Ratings {
	return &Ratings{
		rater:   NewRater(),
		ratings: make(map[string]float64),
	}
}

// Get returns a team's current rating.
func (t *Ratings) Get(team string) float64 {
	if r, ok := t.ratings[team]; ok {
		return r
	}
	return InitialRating
}

// Set overrides a team's rating, used when seeding from storage.
func (t *Ratings) Set(team string, rating float64) {
	t.ratings[team] = rating
}

// Apply folds one final game into the table and returns both new ratings.
func (t *Ratings) Apply(game *models.Game) (newHome, newAway float64) {
	newHome, newAway = t.rater.Update(game, t.Get(game.HomeTeam), t.Get(game.AwayTeam))
	t.ratings[game.HomeTeam] = newHome
	t.ratings[game.AwayTeam] = newAway
	return newHome, newAway
}

// Snapshot returns a copy of the table for persistence.
func (t *Ratings) Snapshot() map[string]float64 {
	out := make(map[string]float64, len(t.ratings))
	for k, v := range t.ratings {
		out[k] = v
	}
	return out
}
