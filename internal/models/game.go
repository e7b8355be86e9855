package models

import (
	"fmt"
	"time"
)

// GameStatus represents the scheduling state of a game
type GameStatus string

const (
	GameStatusScheduled GameStatus = "scheduled"
	GameStatusLive      GameStatus = "live"
	GameStatusFinal     GameStatus = "final"
	GameStatusCancelled GameStatus = "cancelled"
)

// Game represents a single NFL game. The row is immutable once the game
// reaches final status; only the outcome attachment mutates it.
type Game struct {
	GameID     string     `db:"game_id" json:"game_id" validate:"required"`
	Season     int        `db:"season" json:"season" validate:"required,gte=1990"`
	Week       int        `db:"week" json:"week" validate:"required,gte=1,lte=22"`
	HomeTeam   string     `db:"home_team" json:"home_team" validate:"required,len=2|len=3"`
	AwayTeam   string     `db:"away_team" json:"away_team" validate:"required,len=2|len=3"`
	Kickoff    time.Time  `db:"kickoff" json:"kickoff_utc" validate:"required"`
	Stadium    string     `db:"stadium" json:"stadium" validate:"required"`
	Status     GameStatus `db:"status" json:"status" validate:"required,oneof=scheduled live final cancelled"`
	HomeScore  *int       `db:"home_score" json:"home_score"`
	AwayScore  *int       `db:"away_score" json:"away_score"`
	HomeMargin *int       `db:"home_margin" json:"home_margin"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// FormatGameID builds the composite game key: SEASON_WK_AWAY_HOME.
func FormatGameID(season, week int, away, home string) string {
	return fmt.Sprintf("%d_%02d_%s_%s", season, week, away, home)
}

// IsCompleted checks whether the game has a final result attached
func (g *Game) IsCompleted() bool {
	return g.Status == GameStatusFinal && g.HomeScore != nil && g.AwayScore != nil
}

// IsUpcoming checks whether the game has not kicked off yet
func (g *Game) IsUpcoming() bool {
	return g.Status == GameStatusScheduled
}

// TimeToKickoff returns the duration until kickoff
func (g *Game) TimeToKickoff() time.Duration {
	return time.Until(g.Kickoff)
}

// HomeWon reports whether the home side won. False for incomplete games
// and for ties.
func (g *Game) HomeWon() bool {
	if !g.IsCompleted() {
		return false
	}
	return *g.HomeScore > *g.AwayScore
}

// WinningSide returns the moneyline side that cashed, or empty for pushes
// and incomplete games.
func (g *Game) WinningSide() Side {
	if !g.IsCompleted() || *g.HomeScore == *g.AwayScore {
		return ""
	}
	if *g.HomeScore > *g.AwayScore {
		return SideHome
	}
	return SideAway
}

// TotalPoints returns the combined final score, or 0 when incomplete.
func (g *Game) TotalPoints() int {
	if g.HomeScore == nil || g.AwayScore == nil {
		return 0
	}
	return *g.HomeScore + *g.AwayScore
}
