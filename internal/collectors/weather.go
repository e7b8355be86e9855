package collectors

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/yourusername/gridiron-edge/internal/config"
	"github.com/yourusername/gridiron-edge/internal/models"
)

// WeatherCollector fetches a point forecast for a stadium at a target
// time. The provider must also serve historical forecasts (forecasts as
// they existed at issue time) for backtesting.
//
// Request ops:
//   - "forecast": params lat, lon, target_time
type WeatherCollector struct {
	http *httpClient
	cfg  *config.CollectorsConfig
}

// NewWeatherCollector creates the weather collector from its source config.
func NewWeatherCollector(src *config.SourceConfig, cfg *config.CollectorsConfig) *WeatherCollector {
	return &WeatherCollector{
		http: newHTTPClient(KeyWeather, src.BaseURL, src.APIKey, time.Duration(src.TimeoutSeconds)*time.Second),
		cfg:  cfg,
	}
}

// Key returns the collector key
func (c *WeatherCollector) Key() string { return KeyWeather }

// weatherWire is the provider's forecast shape
type weatherWire struct {
	SurfaceWindMPH float64 `json:"surface_wind_mph"`
	GustMPH        float64 `json:"gust_mph"`
	TempF          float64 `json:"temp_f"`
	PrecipProb     float64 `json:"precip_prob"`
	Visibility     float64 `json:"visibility"`
	CloudCover     float64 `json:"cloud_cover"`
	AsOf           string  `json:"as_of"`
}

// Fetch retrieves the forecast for one location and target instant
func (c *WeatherCollector) Fetch(ctx context.Context, req Request) (*Result, error) {
	if req.Op != "forecast" {
		return nil, models.NewPermanentError(KeyWeather, models.ErrCodeBadRequest,
			fmt.Sprintf("unknown op %q", req.Op), nil)
	}

	var wire weatherWire
	err := c.http.getJSON(ctx, "/forecast", map[string]string{
		"lat":         req.Params["lat"],
		"lon":         req.Params["lon"],
		"target_time": req.Params["target_time"],
	}, &wire)
	if err != nil {
		return nil, err
	}

	lat, _ := strconv.ParseFloat(req.Params["lat"], 64)
	lon, _ := strconv.ParseFloat(req.Params["lon"], 64)
	targetTime, err := time.Parse(time.RFC3339, req.Params["target_time"])
	if err != nil {
		return nil, models.NewPermanentError(KeyWeather, models.ErrCodeBadRequest,
			fmt.Sprintf("bad target_time %q", req.Params["target_time"]), err)
	}

	asOf := time.Now().UTC()
	if wire.AsOf != "" {
		if t, parseErr := time.Parse(time.RFC3339, wire.AsOf); parseErr == nil {
			asOf = t.UTC()
		}
	}

	forecast := models.WeatherForecast{
		Latitude:        lat,
		Longitude:       lon,
		TargetTime:      targetTime.UTC(),
		SurfaceWindMPH:  wire.SurfaceWindMPH,
		GustMPH:         wire.GustMPH,
		TempF:           wire.TempF,
		PrecipProb:      wire.PrecipProb,
		VisibilityMiles: wire.Visibility,
		CloudCover:      wire.CloudCover,
		AsOf:            asOf,
	}

	payload, err := json.Marshal(&forecast)
	if err != nil {
		return nil, models.NewPermanentError(KeyWeather, models.ErrCodeSchema, "failed to encode forecast", err)
	}

	return &Result{Payload: payload, ObservedAt: asOf}, nil
}

// TTL returns the forecast refresh interval
func (c *WeatherCollector) TTL(req Request) time.Duration {
	return time.Duration(c.cfg.WeatherTTLMinutes) * time.Minute
}

// WeatherRequest builds the canonical forecast request for a stadium
// and kickoff.
func WeatherRequest(lat, lon float64, targetTime time.Time) Request {
	return Request{
		Op: "forecast",
		Params: map[string]string{
			"lat":         strconv.FormatFloat(lat, 'f', 4, 64),
			"lon":         strconv.FormatFloat(lon, 'f', 4, 64),
			"target_time": targetTime.UTC().Format(time.RFC3339),
		},
	}
}
