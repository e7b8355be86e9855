package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/gridiron-edge/internal/cache"
	"github.com/yourusername/gridiron-edge/internal/collectors"
	"github.com/yourusername/gridiron-edge/internal/models"
	"github.com/yourusername/gridiron-edge/internal/repository"
)

func historyFixture(t *testing.T) (*HistoryService, *memGameRepo, *cache.HistoryTier) {
	t.Helper()
	games := newMemGameRepo()
	teams := newMemTeamRepo("KC", "BUF")
	repos := testRepos(games, teams)
	repos.Stadium.(*memStadiumRepo).stadiums["Arrowhead Stadium"] = &models.Stadium{
		Name:      "Arrowhead Stadium",
		Latitude:  39.0489,
		Longitude: -94.4839,
		Roof:      models.RoofOutdoor,
		Surface:   "grass",
		Timezone:  "America/Chicago",
	}
	tier := testHistoryTier(t)
	svc := newHistoryServiceForTest(repos, tier)
	return svc, games, tier
}

func newHistoryServiceForTest(repos *repository.Repositories, tier *cache.HistoryTier) *HistoryService {
	return &HistoryService{
		repos:     repos,
		history:   tier,
		engineCfg: testEngineCfg(),
		logger:    testLogger().WithField("component", "history"),
	}
}

func completedGame(gameID string, season, week int, home, away string, kickoff time.Time, homeScore, awayScore int) *models.Game {
	return wireGame(gameID, season, week, home, away, kickoff, true, homeScore, awayScore)
}

func archiveOdds(t *testing.T, tier *cache.HistoryTier, game *models.Game, observedAt time.Time, homeOdds int, totalLine float64) {
	t.Helper()
	snapshot := models.OddsSnapshot{
		GameID: game.GameID,
		Quotes: []models.BookQuote{
			{Book: "pinnacle", Market: models.MarketMoneyline, Side: models.SideHome,
				AmericanOdds: homeOdds, DecimalOdds: models.DecimalFromAmerican(homeOdds), ObservedAt: observedAt},
			{Book: "pinnacle", Market: models.MarketMoneyline, Side: models.SideAway,
				AmericanOdds: -104, DecimalOdds: models.DecimalFromAmerican(-104), ObservedAt: observedAt},
		},
		ObservedAt: observedAt,
		TotalLine:  totalLine,
	}
	payload, err := json.Marshal(&snapshot)
	require.NoError(t, err)
	hash := collectors.Hash(collectors.KeyOdds, collectors.OddsRequest(game.GameID, game.Kickoff))
	require.NoError(t, tier.Append(context.Background(), &cache.Entry{
		CollectorKey: collectors.KeyOdds,
		RequestHash:  hash,
		Payload:      payload,
		ObservedAt:   observedAt,
		TTL:          time.Hour,
	}))
}

func TestRecordsReplaysEloWithoutWriteback(t *testing.T) {
	svc, games, _ := historyFixture(t)
	ctx := context.Background()

	first := completedGame("2024_01_BUF_KC", 2024, 1, "KC", "BUF",
		time.Date(2024, 9, 8, 17, 0, 0, 0, time.UTC), 31, 10)
	second := completedGame("2024_10_BUF_KC", 2024, 10, "KC", "BUF",
		time.Date(2024, 11, 10, 17, 0, 0, 0, time.UTC), 24, 20)
	require.NoError(t, games.Upsert(ctx, first))
	require.NoError(t, games.Upsert(ctx, second))

	records, err := svc.Records(ctx,
		time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, records, 2)

	// The first record sees virgin ratings; the second sees the first
	// result folded in.
	assert.Equal(t, 1500.0, records[0].Inputs.HomeElo)
	assert.Greater(t, records[1].Inputs.HomeElo, 1500.0)
	assert.Less(t, records[1].Inputs.AwayElo, 1500.0)

	// The stored team rows are untouched by the replay.
	team, err := svc.repos.Team.GetByCode(ctx, "KC")
	require.NoError(t, err)
	assert.Equal(t, 1500.0, team.Elo)
}

func TestRecordsReadArchiveStrictlyBeforeCutoff(t *testing.T) {
	svc, games, tier := historyFixture(t)
	ctx := context.Background()

	kickoff := time.Date(2024, 10, 6, 17, 0, 0, 0, time.UTC)
	game := completedGame("2024_05_BUF_KC", 2024, 5, "KC", "BUF", kickoff, 27, 24)
	require.NoError(t, games.Upsert(ctx, game))

	asOf := kickoff.Add(-svc.engineCfg.KickoffLead())
	archiveOdds(t, tier, game, asOf.Add(-2*time.Hour), -110, 46.5)
	// Closing move after the evaluation cutoff: visible to settlement,
	// never to the pregame view.
	archiveOdds(t, tier, game, kickoff.Add(-5*time.Minute), -125, 47.5)

	records, err := svc.Records(ctx, kickoff.Add(-24*time.Hour), kickoff.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, records, 1)
	record := records[0]

	require.NotNil(t, record.Odds)
	pregame := record.Odds.BestQuote(models.SideHome)
	require.NotNil(t, pregame)
	assert.Equal(t, -110, pregame.AmericanOdds)

	assert.Equal(t, -125, record.ClosingOdds[models.SideHome])
	assert.Equal(t, -104, record.ClosingOdds[models.SideAway])
	assert.Equal(t, 47.5, record.TotalLine)
}

func TestRecordsDropGamesWithUnknownStadium(t *testing.T) {
	svc, games, _ := historyFixture(t)
	ctx := context.Background()

	stray := completedGame("2024_02_BUF_KC", 2024, 2, "KC", "BUF",
		time.Date(2024, 9, 15, 17, 0, 0, 0, time.UTC), 20, 17)
	stray.Stadium = "Condemned Grounds"
	require.NoError(t, games.Upsert(ctx, stray))

	records, err := svc.Records(ctx,
		time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestLoadBuildsPregameObservations(t *testing.T) {
	svc, games, tier := historyFixture(t)
	ctx := context.Background()

	kickoff := time.Date(2024, 9, 22, 17, 0, 0, 0, time.UTC)
	game := completedGame("2024_03_BUF_KC", 2024, 3, "KC", "BUF", kickoff, 34, 14)
	require.NoError(t, games.Upsert(ctx, game))
	archiveOdds(t, tier, game, kickoff.Add(-4*time.Hour), -110, 44.5)

	weather := models.WeatherForecast{
		SurfaceWindMPH: 18,
		GustMPH:        25,
		TempF:          52,
		PrecipProb:     0.1,
		AsOf:           kickoff.Add(-3 * time.Hour),
	}
	payload, err := json.Marshal(&weather)
	require.NoError(t, err)
	stadium, err := svc.repos.Stadium.GetByName(ctx, game.Stadium)
	require.NoError(t, err)
	weatherHash := collectors.Hash(collectors.KeyWeather,
		collectors.WeatherRequest(stadium.Latitude, stadium.Longitude, game.Kickoff))
	require.NoError(t, tier.Append(ctx, &cache.Entry{
		CollectorKey: collectors.KeyWeather,
		RequestHash:  weatherHash,
		Payload:      payload,
		ObservedAt:   weather.AsOf,
		TTL:          time.Hour,
	}))

	observations, err := svc.Load(ctx, 2024, 2024)
	require.NoError(t, err)
	require.Len(t, observations, 1)

	obs := observations[0]
	assert.Equal(t, game.GameID, obs.Vector.GameID)
	assert.Equal(t, 18.0, obs.Vector.WindMPH)
	assert.Equal(t, 44.5, obs.TotalLine)
	assert.True(t, obs.Vector.AsOf.Before(kickoff))
	assert.True(t, obs.Game.IsCompleted())
}
