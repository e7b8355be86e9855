package models

import "time"

// Team holds league alignment and the current Elo strength rating.
// Elo is mutated after each completed game by the rating engine.
type Team struct {
	Code       string    `db:"code" json:"code" validate:"required,len=2|len=3"`
	Name       string    `db:"name" json:"name" validate:"required"`
	Conference string    `db:"conference" json:"conference" validate:"required,oneof=AFC NFC"`
	Division   string    `db:"division" json:"division" validate:"required,oneof=North South East West"`
	Elo        float64   `db:"elo" json:"elo"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// SameDivision reports whether two teams meet in a divisional game.
func (t *Team) SameDivision(other *Team) bool {
	return t.Conference == other.Conference && t.Division == other.Division
}
