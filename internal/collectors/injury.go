package collectors

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/yourusername/gridiron-edge/internal/config"
	"github.com/yourusername/gridiron-edge/internal/models"
)

// InjuryCollector fetches a team's published injury report.
//
// Request ops:
//   - "team": params team, kickoff (the report is for the game at that kickoff)
type InjuryCollector struct {
	http *httpClient
	cfg  *config.CollectorsConfig
}

// NewInjuryCollector creates the injury collector from its source config.
func NewInjuryCollector(src *config.SourceConfig, cfg *config.CollectorsConfig) *InjuryCollector {
	return &InjuryCollector{
		http: newHTTPClient(KeyInjury, src.BaseURL, src.APIKey, time.Duration(src.TimeoutSeconds)*time.Second),
		cfg:  cfg,
	}
}

// Key returns the collector key
func (c *InjuryCollector) Key() string { return KeyInjury }

// injuryWire is the provider's report shape
type injuryWire struct {
	Team        string `json:"team"`
	PublishedAt string `json:"published_at"`
	Players     []struct {
		Player   string `json:"player"`
		Position string `json:"position"`
		Status   string `json:"status"`
	} `json:"players"`
}

// Fetch retrieves one team's current report
func (c *InjuryCollector) Fetch(ctx context.Context, req Request) (*Result, error) {
	if req.Op != "team" {
		return nil, models.NewPermanentError(KeyInjury, models.ErrCodeBadRequest,
			fmt.Sprintf("unknown op %q", req.Op), nil)
	}

	team := req.Params["team"]
	var wire injuryWire
	if err := c.http.getJSON(ctx, "/injuries", map[string]string{"team": team}, &wire); err != nil {
		return nil, err
	}

	publishedAt := time.Now().UTC()
	if wire.PublishedAt != "" {
		if t, err := time.Parse(time.RFC3339, wire.PublishedAt); err == nil {
			publishedAt = t.UTC()
		}
	}

	report := models.InjuryReport{
		Team:        team,
		Injuries:    make([]models.PlayerInjury, 0, len(wire.Players)),
		PublishedAt: publishedAt,
	}
	for _, p := range wire.Players {
		report.Injuries = append(report.Injuries, models.PlayerInjury{
			Player:   p.Player,
			Position: p.Position,
			Status:   models.InjuryStatus(p.Status),
		})
	}

	payload, err := json.Marshal(&report)
	if err != nil {
		return nil, models.NewPermanentError(KeyInjury, models.ErrCodeSchema, "failed to encode report", err)
	}

	return &Result{Payload: payload, ObservedAt: publishedAt}, nil
}

// TTL returns the injury-report refresh interval
func (c *InjuryCollector) TTL(req Request) time.Duration {
	return time.Duration(c.cfg.InjuryTTLMinutes) * time.Minute
}

// InjuryRequest builds the canonical injury request for a team's game.
func InjuryRequest(team string, kickoff time.Time) Request {
	return Request{
		Op: "team",
		Params: map[string]string{
			"team":       team,
			kickoffParam: kickoff.UTC().Format(time.RFC3339),
		},
	}
}
