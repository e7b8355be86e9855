package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/yourusername/gridiron-edge/internal/collectors"
	"github.com/yourusername/gridiron-edge/internal/config"
	"github.com/yourusername/gridiron-edge/internal/features"
	"github.com/yourusername/gridiron-edge/internal/models"
	"github.com/yourusername/gridiron-edge/internal/orchestrator"
	"github.com/yourusername/gridiron-edge/internal/repository"
)

// InputProvider supplies everything one game evaluation needs. The live
// provider fans out through the orchestrator; the backtester substitutes
// a replay provider that reads the history tier.
type InputProvider interface {
	// Gather collects the feature inputs and the odds snapshot for the
	// game. A nil snapshot means no odds source is reporting.
	Gather(ctx context.Context, game *models.Game) (*features.Inputs, *models.OddsSnapshot, error)

	// AsOf returns the evaluation instant for the game. Called after
	// Gather so live evaluations can stamp an instant later than every
	// gathered observation.
	AsOf(game *models.Game) time.Time
}

// LiveInputProvider gathers inputs concurrently through the
// orchestrator and joins them at a barrier, so classification sees one
// consistent snapshot.
type LiveInputProvider struct {
	orch     *orchestrator.Orchestrator
	stadiums repository.StadiumRepository
	teams    repository.TeamRepository
	games    repository.GameRepository
	cfg      *config.EngineConfig
}

// NewLiveInputProvider wires the live gather path.
func NewLiveInputProvider(orch *orchestrator.Orchestrator, repos *repository.Repositories, cfg *config.EngineConfig) *LiveInputProvider {
	return &LiveInputProvider{
		orch:     orch,
		stadiums: repos.Stadium,
		teams:    repos.Team,
		games:    repos.Game,
		cfg:      cfg,
	}
}

// AsOf stamps live evaluations with the current instant, taken after
// the barrier so every gathered observation precedes it.
func (p *LiveInputProvider) AsOf(game *models.Game) time.Time {
	return time.Now().UTC()
}

// fetchResult carries one collector's contribution across the barrier.
type fetchResult struct {
	key   string
	resp  *orchestrator.Response
	err   error
}

// Gather dispatches every collector fetch concurrently with a per-input
// timeout and assembles the builder inputs. A failed input other than
// odds fails the gather: the engine never builds partial vectors.
func (p *LiveInputProvider) Gather(ctx context.Context, game *models.Game) (*features.Inputs, *models.OddsSnapshot, error) {
	stadium, err := p.stadiums.GetByName(ctx, game.Stadium)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load stadium %q: %w", game.Stadium, err)
	}
	homeTeam, err := p.teams.GetByCode(ctx, game.HomeTeam)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load team %q: %w", game.HomeTeam, err)
	}
	awayTeam, err := p.teams.GetByCode(ctx, game.AwayTeam)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load team %q: %w", game.AwayTeam, err)
	}

	seasonStart := time.Date(game.Season, 8, 1, 0, 0, 0, 0, time.UTC)
	completed, err := p.games.GetCompletedBetween(ctx, seasonStart, game.Kickoff)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load season history: %w", err)
	}
	var homeHistory, awayHistory []*models.Game
	for _, g := range completed {
		if g.HomeTeam == game.HomeTeam || g.AwayTeam == game.HomeTeam {
			homeHistory = append(homeHistory, g)
		}
		if g.HomeTeam == game.AwayTeam || g.AwayTeam == game.AwayTeam {
			awayHistory = append(awayHistory, g)
		}
	}

	requests := map[string]collectors.Request{
		collectors.KeyOdds:    collectors.OddsRequest(game.GameID, game.Kickoff),
		collectors.KeyWeather: collectors.WeatherRequest(stadium.Latitude, stadium.Longitude, game.Kickoff),
		collectors.KeyReferee: collectors.RefereeRequest(game.GameID),
		homeInjuryKey:         collectors.InjuryRequest(game.HomeTeam, game.Kickoff),
		awayInjuryKey:         collectors.InjuryRequest(game.AwayTeam, game.Kickoff),
		homeEfficiencyKey:     collectors.EfficiencyRequest(game.HomeTeam, game.Season),
		awayEfficiencyKey:     collectors.EfficiencyRequest(game.AwayTeam, game.Season),
	}

	results := make(map[string]fetchResult, len(requests))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for name, req := range requests {
		wg.Add(1)
		go func(name string, req collectors.Request) {
			defer wg.Done()
			fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.InputTimeout())
			defer cancel()
			resp, err := p.orch.Fetch(fetchCtx, collectorKeyFor(name), req, priorityFor(game.Kickoff))
			mu.Lock()
			results[name] = fetchResult{key: name, resp: resp, err: err}
			mu.Unlock()
		}(name, req)
	}
	wg.Wait()

	in := &features.Inputs{
		Game:        game,
		Stadium:     stadium,
		HomeTeam:    homeTeam,
		AwayTeam:    awayTeam,
		HomeElo:     homeTeam.Elo,
		AwayElo:     awayTeam.Elo,
		HomeHistory: homeHistory,
		AwayHistory: awayHistory,
		SourceTimes: make(map[string]time.Time),
	}

	// Weather only matters where the elements reach the field.
	if stadium.IsWeatherExposed() {
		if err := decodeInput(results[collectors.KeyWeather], collectors.KeyWeather, in, &in.Weather); err != nil {
			return nil, nil, err
		}
	}
	if err := decodeInput(results[homeInjuryKey], homeInjuryKey, in, &in.HomeInjuries); err != nil {
		return nil, nil, err
	}
	if err := decodeInput(results[awayInjuryKey], awayInjuryKey, in, &in.AwayInjuries); err != nil {
		return nil, nil, err
	}
	if err := decodeInput(results[collectors.KeyReferee], collectors.KeyReferee, in, &in.Referee); err != nil {
		return nil, nil, err
	}
	if err := decodeInput(results[homeEfficiencyKey], homeEfficiencyKey, in, &in.HomeEfficiency); err != nil {
		return nil, nil, err
	}
	if err := decodeInput(results[awayEfficiencyKey], awayEfficiencyKey, in, &in.AwayEfficiency); err != nil {
		return nil, nil, err
	}

	// Odds failures do not fail the gather; the engine skips the game
	// itself when no snapshot is available.
	var odds *models.OddsSnapshot
	oddsResult := results[collectors.KeyOdds]
	if oddsResult.err == nil && oddsResult.resp != nil {
		var snapshot models.OddsSnapshot
		if err := json.Unmarshal(oddsResult.resp.Payload, &snapshot); err == nil {
			snapshot.Stale = snapshot.Stale || oddsResult.resp.Stale
			odds = &snapshot
			if oddsResult.resp.Stale {
				in.StaleInputs = append(in.StaleInputs, collectors.KeyOdds)
			}
		}
	}

	return in, odds, nil
}

// Pseudo-keys distinguish the two sides' fetches against the same
// collectors. The orchestrator still sees the real collector key.
const (
	homeInjuryKey     = "injury_home"
	awayInjuryKey     = "injury_away"
	homeEfficiencyKey = "efficiency_home"
	awayEfficiencyKey = "efficiency_away"
)

func collectorKeyFor(name string) string {
	switch name {
	case homeInjuryKey, awayInjuryKey:
		return collectors.KeyInjury
	case homeEfficiencyKey, awayEfficiencyKey:
		return collectors.KeyEfficiency
	default:
		return name
	}
}

// priorityFor escalates fetches as kickoff approaches.
func priorityFor(kickoff time.Time) orchestrator.Priority {
	switch until := time.Until(kickoff); {
	case until <= 2*time.Hour:
		return orchestrator.PriorityCritical
	case until <= 24*time.Hour:
		return orchestrator.PriorityHigh
	default:
		return orchestrator.PriorityNormal
	}
}

// decodeInput unmarshals one required input, recording its source time
// and stale flag on the builder inputs.
func decodeInput(result fetchResult, key string, in *features.Inputs, out interface{}) error {
	if result.err != nil {
		return fmt.Errorf("input %s failed: %w", key, result.err)
	}
	if result.resp == nil {
		return fmt.Errorf("input %s missing", key)
	}
	if err := json.Unmarshal(result.resp.Payload, out); err != nil {
		return fmt.Errorf("input %s payload malformed: %w", key, err)
	}
	in.SourceTimes[key] = result.resp.ObservedAt
	if result.resp.Stale {
		in.StaleInputs = append(in.StaleInputs, key)
	}
	return nil
}
