package collectors

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/yourusername/gridiron-edge/internal/config"
	"github.com/yourusername/gridiron-edge/internal/models"
)

// EfficiencyCollector fetches a team's per-game efficiency aggregates
// for one season from the play-by-play provider. The response covers
// every completed game; callers filter to the games finished before
// their as-of instant.
//
// Request ops:
//   - "season": params team, season
type EfficiencyCollector struct {
	http *httpClient
	cfg  *config.CollectorsConfig
}

// NewEfficiencyCollector creates the efficiency collector from its source config.
func NewEfficiencyCollector(src *config.SourceConfig, cfg *config.CollectorsConfig) *EfficiencyCollector {
	return &EfficiencyCollector{
		http: newHTTPClient(KeyEfficiency, src.BaseURL, src.APIKey, time.Duration(src.TimeoutSeconds)*time.Second),
		cfg:  cfg,
	}
}

// Key returns the collector key
func (c *EfficiencyCollector) Key() string { return KeyEfficiency }

// efficiencyWire is the provider's per-game aggregate shape
type efficiencyWire struct {
	GameID      string  `json:"game_id"`
	Team        string  `json:"team"`
	OffenseEPA  float64 `json:"offense_epa"`
	DefenseEPA  float64 `json:"defense_epa"`
	PassRate    float64 `json:"pass_rate"`
	PlaysRun    int     `json:"plays_run"`
	CompletedAt string  `json:"completed_at"`
}

// Fetch retrieves one team-season of aggregates
func (c *EfficiencyCollector) Fetch(ctx context.Context, req Request) (*Result, error) {
	if req.Op != "season" {
		return nil, models.NewPermanentError(KeyEfficiency, models.ErrCodeBadRequest,
			fmt.Sprintf("unknown op %q", req.Op), nil)
	}

	var wire []efficiencyWire
	err := c.http.getJSON(ctx, "/efficiency", map[string]string{
		"team":   req.Params["team"],
		"season": req.Params["season"],
	}, &wire)
	if err != nil {
		return nil, err
	}

	rows := make([]models.TeamEfficiency, 0, len(wire))
	for _, we := range wire {
		completedAt, err := time.Parse(time.RFC3339, we.CompletedAt)
		if err != nil {
			return nil, models.NewPermanentError(KeyEfficiency, models.ErrCodeSchema,
				fmt.Sprintf("bad completed_at %q for game %s", we.CompletedAt, we.GameID), err)
		}
		rows = append(rows, models.TeamEfficiency{
			GameID:      we.GameID,
			Team:        we.Team,
			OffenseEPA:  we.OffenseEPA,
			DefenseEPA:  we.DefenseEPA,
			PassRate:    we.PassRate,
			PlaysRun:    we.PlaysRun,
			CompletedAt: completedAt.UTC(),
		})
	}

	payload, err := json.Marshal(rows)
	if err != nil {
		return nil, models.NewPermanentError(KeyEfficiency, models.ErrCodeSchema, "failed to encode rows", err)
	}

	return &Result{Payload: payload, ObservedAt: time.Now().UTC()}, nil
}

// TTL returns the efficiency refresh interval
func (c *EfficiencyCollector) TTL(req Request) time.Duration {
	return time.Duration(c.cfg.EfficiencyTTLHours) * time.Hour
}

// EfficiencyRequest builds the canonical efficiency request for a
// team-season.
func EfficiencyRequest(team string, season int) Request {
	return Request{
		Op: "season",
		Params: map[string]string{
			"team":   team,
			"season": fmt.Sprintf("%d", season),
		},
	}
}
