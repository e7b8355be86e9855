package models

// RoofType represents stadium roof construction
type RoofType string

const (
	RoofOutdoor     RoofType = "outdoor"
	RoofDome        RoofType = "dome"
	RoofRetractable RoofType = "retractable"
)

// Stadium holds static venue reference data plus microclimate hints used
// by the weather features.
type Stadium struct {
	Name           string   `db:"name" json:"name" validate:"required"`
	Latitude       float64  `db:"latitude" json:"latitude" validate:"gte=-90,lte=90"`
	Longitude      float64  `db:"longitude" json:"longitude" validate:"gte=-180,lte=180"`
	ElevationFeet  int      `db:"elevation_feet" json:"elevation_feet"`
	Roof           RoofType `db:"roof" json:"roof" validate:"required,oneof=outdoor dome retractable"`
	Surface        string   `db:"surface" json:"surface" validate:"required"`
	Timezone       string   `db:"timezone" json:"timezone" validate:"required"`
	PrevailingWind string   `db:"prevailing_wind" json:"prevailing_wind"`
	WindTunnel     bool     `db:"wind_tunnel" json:"wind_tunnel"`
	SwirlingWinds  bool     `db:"swirling_winds" json:"swirling_winds"`
}

// IsWeatherExposed reports whether kickoff conditions can affect play.
// Retractable roofs are treated as exposed because the open/closed call
// is not known far in advance.
func (s *Stadium) IsWeatherExposed() bool {
	return s.Roof != RoofDome
}
