package models

import "time"

// WeatherForecast is a point forecast for a stadium at a target time,
// stamped with the instant the forecast itself was issued. Backtests key
// off AsOf, never off observed actuals.
type WeatherForecast struct {
	Latitude        float64   `json:"latitude"`
	Longitude       float64   `json:"longitude"`
	TargetTime      time.Time `json:"target_time"`
	SurfaceWindMPH  float64   `json:"surface_wind_mph"`
	GustMPH         float64   `json:"gust_mph"`
	TempF           float64   `json:"temp_f"`
	PrecipProb      float64   `json:"precip_prob"`
	VisibilityMiles float64   `json:"visibility"`
	CloudCover      float64   `json:"cloud_cover"`
	AsOf            time.Time `json:"as_of"`
}

// IsWindy reports whether sustained wind exceeds the passing-game
// disruption threshold.
func (w *WeatherForecast) IsWindy(thresholdMPH float64) bool {
	return w.SurfaceWindMPH > thresholdMPH
}
