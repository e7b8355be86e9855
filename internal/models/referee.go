package models

import "time"

// RefereeProfile holds historical per-official aggregates
type RefereeProfile struct {
	Name              string    `json:"name"`
	GamesOfficiated   int       `json:"games_officiated"`
	HomeWinRate       float64   `json:"home_win_rate"`
	PenaltiesPerGame  float64   `json:"penalty_rate"`
	AvgTotalPoints    float64   `json:"total_points_tendency"`
	AsOf              time.Time `json:"as_of"`
}
