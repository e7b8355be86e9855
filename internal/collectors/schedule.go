package collectors

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/yourusername/gridiron-edge/internal/config"
	"github.com/yourusername/gridiron-edge/internal/models"
)

// ScheduleCollector fetches a week's slate from the schedule provider.
//
// Request ops:
//   - "week": params season, week
type ScheduleCollector struct {
	http *httpClient
	cfg  *config.CollectorsConfig
}

// NewScheduleCollector creates the schedule collector from its source config.
func NewScheduleCollector(src *config.SourceConfig, cfg *config.CollectorsConfig) *ScheduleCollector {
	return &ScheduleCollector{
		http: newHTTPClient(KeySchedule, src.BaseURL, src.APIKey, time.Duration(src.TimeoutSeconds)*time.Second),
		cfg:  cfg,
	}
}

// Key returns the collector key
func (c *ScheduleCollector) Key() string { return KeySchedule }

// scheduleWireGame is the provider's wire shape for one game
type scheduleWireGame struct {
	GameID     string `json:"game_id"`
	Season     int    `json:"season"`
	Week       int    `json:"week"`
	Home       string `json:"home"`
	Away       string `json:"away"`
	KickoffUTC string `json:"kickoff_utc"`
	StadiumRef string `json:"stadium_ref"`
	Status     string `json:"status"`
	FinalScore *struct {
		Home int `json:"home"`
		Away int `json:"away"`
	} `json:"final_score"`
}

// Fetch retrieves and normalizes one week of games
func (c *ScheduleCollector) Fetch(ctx context.Context, req Request) (*Result, error) {
	if req.Op != "week" {
		return nil, models.NewPermanentError(KeySchedule, models.ErrCodeBadRequest,
			fmt.Sprintf("unknown op %q", req.Op), nil)
	}

	var wire []scheduleWireGame
	err := c.http.getJSON(ctx, "/schedule", map[string]string{
		"season": req.Params["season"],
		"week":   req.Params["week"],
	}, &wire)
	if err != nil {
		return nil, err
	}

	games := make([]*models.Game, 0, len(wire))
	for _, wg := range wire {
		kickoff, err := time.Parse(time.RFC3339, wg.KickoffUTC)
		if err != nil {
			return nil, models.NewPermanentError(KeySchedule, models.ErrCodeSchema,
				fmt.Sprintf("bad kickoff %q for game %s", wg.KickoffUTC, wg.GameID), err)
		}

		game := &models.Game{
			GameID:   wg.GameID,
			Season:   wg.Season,
			Week:     wg.Week,
			HomeTeam: wg.Home,
			AwayTeam: wg.Away,
			Kickoff:  kickoff.UTC(),
			Stadium:  wg.StadiumRef,
			Status:   models.GameStatus(wg.Status),
		}
		if game.GameID == "" {
			game.GameID = models.FormatGameID(wg.Season, wg.Week, wg.Away, wg.Home)
		}
		if wg.FinalScore != nil {
			home, away := wg.FinalScore.Home, wg.FinalScore.Away
			margin := home - away
			game.HomeScore = &home
			game.AwayScore = &away
			game.HomeMargin = &margin
			game.Status = models.GameStatusFinal
		}
		games = append(games, game)
	}

	payload, err := json.Marshal(games)
	if err != nil {
		return nil, models.NewPermanentError(KeySchedule, models.ErrCodeSchema, "failed to encode games", err)
	}

	return &Result{Payload: payload, ObservedAt: time.Now().UTC()}, nil
}

// TTL returns the schedule refresh interval
func (c *ScheduleCollector) TTL(req Request) time.Duration {
	return time.Duration(c.cfg.ScheduleTTLHours) * time.Hour
}
