package collectors

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/yourusername/gridiron-edge/internal/config"
	"github.com/yourusername/gridiron-edge/internal/models"
)

// OddsCollector fetches the multi-book line table for one game.
//
// Request ops:
//   - "game": params game_id, kickoff (RFC3339; drives the TTL schedule)
type OddsCollector struct {
	http *httpClient
	cfg  *config.CollectorsConfig
}

// NewOddsCollector creates the odds collector from its source config.
func NewOddsCollector(src *config.SourceConfig, cfg *config.CollectorsConfig) *OddsCollector {
	return &OddsCollector{
		http: newHTTPClient(KeyOdds, src.BaseURL, src.APIKey, time.Duration(src.TimeoutSeconds)*time.Second),
		cfg:  cfg,
	}
}

// Key returns the collector key
func (c *OddsCollector) Key() string { return KeyOdds }

// oddsWireQuote is the provider's wire shape for one book quote
type oddsWireQuote struct {
	Book         string  `json:"book"`
	Market       string  `json:"market"`
	Side         string  `json:"side"`
	AmericanOdds int     `json:"american_odds"`
	DecimalOdds  float64 `json:"decimal_odds"`
	Line         float64 `json:"line"`
	ObservedAt   string  `json:"observed_at"`
}

// Fetch retrieves the per-book table for one game
func (c *OddsCollector) Fetch(ctx context.Context, req Request) (*Result, error) {
	if req.Op != "game" {
		return nil, models.NewPermanentError(KeyOdds, models.ErrCodeBadRequest,
			fmt.Sprintf("unknown op %q", req.Op), nil)
	}

	gameID := req.Params["game_id"]
	var wire []oddsWireQuote
	if err := c.http.getJSON(ctx, "/odds", map[string]string{"game_id": gameID}, &wire); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	snapshot := models.OddsSnapshot{
		GameID:     gameID,
		Quotes:     make([]models.BookQuote, 0, len(wire)),
		ObservedAt: now,
	}
	for _, wq := range wire {
		observedAt := now
		if wq.ObservedAt != "" {
			if t, err := time.Parse(time.RFC3339, wq.ObservedAt); err == nil {
				observedAt = t.UTC()
			}
		}

		quote := models.BookQuote{
			Book:         wq.Book,
			Market:       models.Market(wq.Market),
			Side:         models.Side(wq.Side),
			AmericanOdds: wq.AmericanOdds,
			DecimalOdds:  models.DecimalFromAmerican(wq.AmericanOdds),
			ObservedAt:   observedAt,
		}
		snapshot.Quotes = append(snapshot.Quotes, quote)

		if quote.Market == models.MarketTotal && wq.Line > 0 && snapshot.TotalLine == 0 {
			snapshot.TotalLine = wq.Line
		}
	}

	payload, err := json.Marshal(&snapshot)
	if err != nil {
		return nil, models.NewPermanentError(KeyOdds, models.ErrCodeSchema, "failed to encode snapshot", err)
	}

	return &Result{Payload: payload, ObservedAt: now}, nil
}

// TTL shortens as kickoff approaches: the line moves fastest in the
// final minutes.
func (c *OddsCollector) TTL(req Request) time.Duration {
	kickoff, ok := kickoffFromRequest(req)
	if !ok {
		return time.Duration(c.cfg.OddsTTLFarMinutes) * time.Minute
	}

	until := time.Until(kickoff)
	switch {
	case until <= 30*time.Minute:
		return time.Duration(c.cfg.OddsTTLFinalMinutes) * time.Minute
	case until <= 4*time.Hour:
		return time.Duration(c.cfg.OddsTTLNearMinutes) * time.Minute
	default:
		return time.Duration(c.cfg.OddsTTLFarMinutes) * time.Minute
	}
}

// OddsRequest builds the canonical odds request for a game.
func OddsRequest(gameID string, kickoff time.Time) Request {
	return Request{
		Op: "game",
		Params: map[string]string{
			"game_id":    gameID,
			kickoffParam: kickoff.UTC().Format(time.RFC3339),
		},
	}
}
