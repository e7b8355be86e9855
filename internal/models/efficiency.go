package models

import "time"

// TeamEfficiency carries one completed game's per-team offensive and
// defensive efficiency aggregates from the play-by-play provider.
// Values are expected points added per play, where positive offense and
// negative defense favor the team.
type TeamEfficiency struct {
	GameID      string    `json:"game_id"`
	Team        string    `json:"team"`
	OffenseEPA  float64   `json:"offense_epa"`
	DefenseEPA  float64   `json:"defense_epa"`
	PassRate    float64   `json:"pass_rate"`
	PlaysRun    int       `json:"plays_run"`
	CompletedAt time.Time `json:"completed_at"`
}
