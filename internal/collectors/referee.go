package collectors

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/yourusername/gridiron-edge/internal/config"
	"github.com/yourusername/gridiron-edge/internal/models"
)

// RefereeCollector fetches the crew assignment and the head official's
// historical tendencies for one game.
//
// Request ops:
//   - "assignment": params game_id
type RefereeCollector struct {
	http *httpClient
	cfg  *config.CollectorsConfig
}

// NewRefereeCollector creates the referee collector from its source config.
func NewRefereeCollector(src *config.SourceConfig, cfg *config.CollectorsConfig) *RefereeCollector {
	return &RefereeCollector{
		http: newHTTPClient(KeyReferee, src.BaseURL, src.APIKey, time.Duration(src.TimeoutSeconds)*time.Second),
		cfg:  cfg,
	}
}

// Key returns the collector key
func (c *RefereeCollector) Key() string { return KeyReferee }

// refereeWire is the provider's assignment shape
type refereeWire struct {
	Name             string  `json:"name"`
	GamesOfficiated  int     `json:"games_officiated"`
	HomeWinRate      float64 `json:"home_win_rate"`
	PenaltiesPerGame float64 `json:"penalties_per_game"`
	AvgTotalPoints   float64 `json:"avg_total_points"`
}

// Fetch retrieves the crew assignment for one game
func (c *RefereeCollector) Fetch(ctx context.Context, req Request) (*Result, error) {
	if req.Op != "assignment" {
		return nil, models.NewPermanentError(KeyReferee, models.ErrCodeBadRequest,
			fmt.Sprintf("unknown op %q", req.Op), nil)
	}

	var wire refereeWire
	err := c.http.getJSON(ctx, "/assignments", map[string]string{"game_id": req.Params["game_id"]}, &wire)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	profile := models.RefereeProfile{
		Name:             wire.Name,
		GamesOfficiated:  wire.GamesOfficiated,
		HomeWinRate:      wire.HomeWinRate,
		PenaltiesPerGame: wire.PenaltiesPerGame,
		AvgTotalPoints:   wire.AvgTotalPoints,
		AsOf:             now,
	}

	payload, err := json.Marshal(&profile)
	if err != nil {
		return nil, models.NewPermanentError(KeyReferee, models.ErrCodeSchema, "failed to encode profile", err)
	}

	return &Result{Payload: payload, ObservedAt: now}, nil
}

// TTL returns the assignment refresh interval. Crews post midweek and
// rarely change after.
func (c *RefereeCollector) TTL(req Request) time.Duration {
	return time.Duration(c.cfg.RefereeTTLHours) * time.Hour
}

// RefereeRequest builds the canonical assignment request for a game.
func RefereeRequest(gameID string) Request {
	return Request{
		Op:     "assignment",
		Params: map[string]string{"game_id": gameID},
	}
}
