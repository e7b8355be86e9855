package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/gridiron-edge/internal/backtest"
	"github.com/yourusername/gridiron-edge/internal/cache"
	"github.com/yourusername/gridiron-edge/internal/collectors"
	"github.com/yourusername/gridiron-edge/internal/config"
	"github.com/yourusername/gridiron-edge/internal/discovery"
	"github.com/yourusername/gridiron-edge/internal/elo"
	"github.com/yourusername/gridiron-edge/internal/features"
	"github.com/yourusername/gridiron-edge/internal/models"
	"github.com/yourusername/gridiron-edge/internal/repository"
)

// eloWarmupSeasons is how many seasons before the requested window the
// rating replay starts, so ratings have converged by the first record.
const eloWarmupSeasons = 2

// closingLineWindow bounds how far back the closing-line lookup reaches.
const closingLineWindow = 48 * time.Hour

// Pseudo source keys distinguishing the two sides' archived inputs,
// matching the keys the live gather stamps into SourceTimes.
const (
	sourceInjuryHome     = "injury_home"
	sourceInjuryAway     = "injury_away"
	sourceEfficiencyHome = "efficiency_home"
	sourceEfficiencyAway = "efficiency_away"
)

// HistoryService reconstructs what the engine would have seen pregame
// for completed games, from the games table and the response archive.
// It backs both the discoverer's dataset and the backtester's records.
type HistoryService struct {
	repos     *repository.Repositories
	history   *cache.HistoryTier
	engineCfg *config.EngineConfig
	logger    *logrus.Entry
}

// NewHistoryService wires the replay read path.
func NewHistoryService(repos *repository.Repositories, tc *cache.TieredCache, engineCfg *config.EngineConfig, log *logrus.Logger) *HistoryService {
	return &HistoryService{
		repos:     repos,
		history:   tc.History(),
		engineCfg: engineCfg,
		logger:    log.WithField("component", "history"),
	}
}

// Records loads the completed games in [start, end] with their inputs
// reconstructed as of each game's evaluation cutoff. Elo ratings are
// replayed in kickoff order from a warmup margin before the window and
// never written back.
func (h *HistoryService) Records(ctx context.Context, start, end time.Time) ([]*backtest.GameRecord, error) {
	all, err := h.repos.Game.GetCompletedSince(ctx, start.Year()-eloWarmupSeasons)
	if err != nil {
		return nil, fmt.Errorf("failed to load completed games: %w", err)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].Kickoff.Equal(all[j].Kickoff) {
			return all[i].Kickoff.Before(all[j].Kickoff)
		}
		return all[i].GameID < all[j].GameID
	})

	stadiums := make(map[string]*models.Stadium)
	teams := make(map[string]*models.Team)
	ratings := elo.NewRatings()
	seasonGames := make(map[int][]*models.Game)

	records := make([]*backtest.GameRecord, 0)
	for _, game := range all {
		if !game.Kickoff.Before(start) && !game.Kickoff.After(end) {
			record, err := h.buildRecord(ctx, game, ratings, seasonGames[game.Season], stadiums, teams)
			if err != nil {
				return nil, err
			}
			if record != nil {
				records = append(records, record)
			}
		}
		ratings.Apply(game)
		seasonGames[game.Season] = append(seasonGames[game.Season], game)
	}

	h.logger.WithFields(logrus.Fields{
		"start":   start.Format("2006-01-02"),
		"end":     end.Format("2006-01-02"),
		"records": len(records),
	}).Info("History records loaded")
	return records, nil
}

// buildRecord assembles one game's pregame view. Games whose stadium or
// teams are missing from reference data are dropped with a warning
// rather than failing the whole load.
func (h *HistoryService) buildRecord(ctx context.Context, game *models.Game, ratings *elo.Ratings, seasonHistory []*models.Game, stadiums map[string]*models.Stadium, teams map[string]*models.Team) (*backtest.GameRecord, error) {
	stadium, err := h.stadium(ctx, game.Stadium, stadiums)
	if err != nil {
		h.logger.WithError(err).WithField("game_id", game.GameID).
			Warn("Dropping game with unknown stadium")
		return nil, nil
	}
	homeTeam, err := h.team(ctx, game.HomeTeam, teams)
	if err != nil {
		h.logger.WithError(err).WithField("game_id", game.GameID).
			Warn("Dropping game with unknown home team")
		return nil, nil
	}
	awayTeam, err := h.team(ctx, game.AwayTeam, teams)
	if err != nil {
		h.logger.WithError(err).WithField("game_id", game.GameID).
			Warn("Dropping game with unknown away team")
		return nil, nil
	}

	asOf := game.Kickoff.Add(-h.engineCfg.KickoffLead())

	in := &features.Inputs{
		Game:        game,
		Stadium:     stadium,
		HomeTeam:    homeTeam,
		AwayTeam:    awayTeam,
		HomeElo:     ratings.Get(game.HomeTeam),
		AwayElo:     ratings.Get(game.AwayTeam),
		SourceTimes: make(map[string]time.Time),
	}
	for _, g := range seasonHistory {
		if g.HomeTeam == game.HomeTeam || g.AwayTeam == game.HomeTeam {
			in.HomeHistory = append(in.HomeHistory, g)
		}
		if g.HomeTeam == game.AwayTeam || g.AwayTeam == game.AwayTeam {
			in.AwayHistory = append(in.AwayHistory, g)
		}
	}

	if stadium.IsWeatherExposed() {
		h.archived(ctx, collectors.KeyWeather, collectors.KeyWeather,
			collectors.WeatherRequest(stadium.Latitude, stadium.Longitude, game.Kickoff), asOf, in, &in.Weather)
	}
	h.archived(ctx, collectors.KeyInjury, sourceInjuryHome,
		collectors.InjuryRequest(game.HomeTeam, game.Kickoff), asOf, in, &in.HomeInjuries)
	h.archived(ctx, collectors.KeyInjury, sourceInjuryAway,
		collectors.InjuryRequest(game.AwayTeam, game.Kickoff), asOf, in, &in.AwayInjuries)
	h.archived(ctx, collectors.KeyReferee, collectors.KeyReferee,
		collectors.RefereeRequest(game.GameID), asOf, in, &in.Referee)
	h.archived(ctx, collectors.KeyEfficiency, sourceEfficiencyHome,
		collectors.EfficiencyRequest(game.HomeTeam, game.Season), asOf, in, &in.HomeEfficiency)
	h.archived(ctx, collectors.KeyEfficiency, sourceEfficiencyAway,
		collectors.EfficiencyRequest(game.AwayTeam, game.Season), asOf, in, &in.AwayEfficiency)

	record := &backtest.GameRecord{
		Game:        game,
		Inputs:      in,
		ClosingOdds: make(map[models.Side]int),
	}

	oddsHash := collectors.Hash(collectors.KeyOdds, collectors.OddsRequest(game.GameID, game.Kickoff))
	if entry, err := h.history.AsOf(ctx, collectors.KeyOdds, oddsHash, asOf); err == nil && entry != nil {
		var snapshot models.OddsSnapshot
		if err := json.Unmarshal(entry.Payload, &snapshot); err == nil {
			record.Odds = &snapshot
			record.TotalLine = snapshot.TotalLine
		}
	}
	if entry, err := h.history.LastBefore(ctx, collectors.KeyOdds, oddsHash,
		game.Kickoff.Add(-closingLineWindow), game.Kickoff); err == nil && entry != nil {
		var closing models.OddsSnapshot
		if err := json.Unmarshal(entry.Payload, &closing); err == nil {
			for _, side := range []models.Side{models.SideHome, models.SideAway, models.SideOver, models.SideUnder} {
				if q := closing.BestQuote(side); q != nil {
					record.ClosingOdds[side] = q.AmericanOdds
				}
			}
			if closing.TotalLine > 0 {
				record.TotalLine = closing.TotalLine
			}
		}
	}

	return record, nil
}

// archived decodes the newest archive entry observed before asOf into
// out, stamping its observation instant. Missing archives leave the
// input nil; the feature builder treats absent optional inputs as
// neutral.
func (h *HistoryService) archived(ctx context.Context, collectorKey, sourceKey string, req collectors.Request, asOf time.Time, in *features.Inputs, out interface{}) {
	hash := collectors.Hash(collectorKey, req)
	entry, err := h.history.AsOf(ctx, collectorKey, hash, asOf)
	if err != nil || entry == nil {
		return
	}
	if err := json.Unmarshal(entry.Payload, out); err != nil {
		h.logger.WithError(err).WithField("source", sourceKey).
			Debug("Skipping malformed archive payload")
		return
	}
	in.SourceTimes[sourceKey] = entry.ObservedAt
}

func (h *HistoryService) stadium(ctx context.Context, name string, cached map[string]*models.Stadium) (*models.Stadium, error) {
	if s, ok := cached[name]; ok {
		return s, nil
	}
	s, err := h.repos.Stadium.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	cached[name] = s
	return s, nil
}

func (h *HistoryService) team(ctx context.Context, code string, cached map[string]*models.Team) (*models.Team, error) {
	if t, ok := cached[code]; ok {
		return t, nil
	}
	t, err := h.repos.Team.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	cached[code] = t
	return t, nil
}

// Load implements the discoverer's dataset contract: every completed
// game in the season range with its pregame feature vector. Games whose
// vectors cannot be built cleanly are dropped.
func (h *HistoryService) Load(ctx context.Context, startSeason, endSeason int) ([]discovery.Observation, error) {
	// NFL seasons run August through the following February.
	start := time.Date(startSeason, 8, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(endSeason+1, 3, 1, 0, 0, 0, 0, time.UTC)

	records, err := h.Records(ctx, start, end)
	if err != nil {
		return nil, err
	}

	observations := make([]discovery.Observation, 0, len(records))
	dropped := 0
	for _, record := range records {
		asOf := record.Game.Kickoff.Add(-h.engineCfg.KickoffLead())
		vector, err := features.Build(record.Inputs, asOf)
		if err != nil {
			dropped++
			h.logger.WithError(err).WithField("game_id", record.Game.GameID).
				Debug("Dropping observation that failed the as-of build")
			continue
		}
		observations = append(observations, discovery.Observation{
			Vector:    vector,
			Game:      record.Game,
			TotalLine: record.TotalLine,
		})
	}

	if dropped > 0 {
		h.logger.WithField("dropped", dropped).Warn("Some historical games were excluded from the dataset")
	}
	return observations, nil
}
