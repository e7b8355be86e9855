package backtest

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/gridiron-edge/internal/catalog"
	"github.com/yourusername/gridiron-edge/internal/config"
	"github.com/yourusername/gridiron-edge/internal/features"
	"github.com/yourusername/gridiron-edge/internal/logger"
	"github.com/yourusername/gridiron-edge/internal/models"
)

type memEdgeRepo struct {
	edges []*models.Edge
}

func (r *memEdgeRepo) Create(ctx context.Context, e *models.Edge) error {
	r.edges = append(r.edges, e)
	return nil
}

func (r *memEdgeRepo) Update(ctx context.Context, e *models.Edge) error { return nil }

func (r *memEdgeRepo) GetByID(ctx context.Context, id string) (*models.Edge, error) {
	for _, e := range r.edges {
		if e.EdgeID == id {
			return e, nil
		}
	}
	return nil, fmt.Errorf("edge %s not found", id)
}

func (r *memEdgeRepo) ListByStatus(ctx context.Context, status models.EdgeStatus) ([]*models.Edge, error) {
	var out []*models.Edge
	for _, e := range r.edges {
		if e.Status == status {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memEdgeRepo) ListLatestVersions(ctx context.Context) ([]*models.Edge, error) {
	return r.edges, nil
}

func (r *memEdgeRepo) AppendObservation(ctx context.Context, obs *models.WagerOutcome) error {
	return nil
}

func (r *memEdgeRepo) RecentObservations(ctx context.Context, edgeID string, limit int) ([]*models.WagerOutcome, error) {
	return nil, nil
}

type stubHistory struct {
	records []*GameRecord
	err     error
}

func (h *stubHistory) Records(ctx context.Context, start, end time.Time) ([]*GameRecord, error) {
	return h.records, h.err
}

func testBacktestConfig() *config.BacktestConfig {
	return &config.BacktestConfig{
		StartDate:         "2022-01-01",
		EndDate:           "2023-01-01",
		TrainYears:        3,
		ValidateYears:     1,
		InitialBankroll:   10000,
		RollingWindowBets: 20,
		PatternMinSample:  5,
		PatternMinLiftPP:  3,
		PatternMaxPValue:  0.01,
	}
}

func testEngineConfig() *config.EngineConfig {
	return &config.EngineConfig{
		Cron:                 "0 */4 * * *",
		MinEdge:              0.0001,
		MinEdgeWithMatch:     0.0001,
		MinConfidence:        0.50,
		KellyFraction:        0.25,
		StakeCap:             0.10,
		StakeFloor:           0.001,
		KickoffLeadMinutes:   60,
		InputTimeoutSeconds:  5,
		LookaheadWindowHours: 72,
	}
}

func testModelConfig() *config.ModelConfig {
	return &config.ModelConfig{
		TimeoutSeconds:    5,
		CacheTTLSeconds:   300,
		CacheMaxSize:      1000,
		LocalEpochs:       200,
		LocalLearningRate: 0.1,
	}
}

// record builds a fully settled historical game whose winner is always
// the elo favorite, so the classifier has a clean signal to learn.
func record(season int, idx int, kickoff time.Time, homeEloEdge float64) *GameRecord {
	homeWon := homeEloEdge > 0
	homeScore, awayScore := 27, 17
	if !homeWon {
		homeScore, awayScore = 17, 27
	}
	game := &models.Game{
		GameID:    fmt.Sprintf("%d_%02d_AWY_HOM%d", season, 1+idx%18, idx),
		Season:    season,
		Week:      1 + idx%18,
		HomeTeam:  "HOM",
		AwayTeam:  "AWY",
		Kickoff:   kickoff,
		Stadium:   "Replay Dome",
		Status:    models.GameStatusFinal,
		HomeScore: &homeScore,
		AwayScore: &awayScore,
	}

	observed := kickoff.Add(-3 * time.Hour)
	inputs := &features.Inputs{
		Game: game,
		Stadium: &models.Stadium{
			Name: game.Stadium, Roof: models.RoofDome, Surface: "turf", Timezone: "UTC",
		},
		HomeTeam:    &models.Team{Code: "HOM", Conference: "AFC", Division: "West"},
		AwayTeam:    &models.Team{Code: "AWY", Conference: "NFC", Division: "East"},
		HomeElo:     1500 + homeEloEdge/2,
		AwayElo:     1500 - homeEloEdge/2,
		SourceTimes: map[string]time.Time{"injury_home": observed, "injury_away": observed},
	}

	return &GameRecord{
		Game:   game,
		Inputs: inputs,
		Odds: &models.OddsSnapshot{
			GameID:     game.GameID,
			ObservedAt: observed,
			Quotes: []models.BookQuote{
				{Book: "pinnacle", Market: models.MarketMoneyline, Side: models.SideHome, AmericanOdds: 100, DecimalOdds: models.DecimalFromAmerican(100), ObservedAt: observed},
				{Book: "pinnacle", Market: models.MarketMoneyline, Side: models.SideAway, AmericanOdds: 100, DecimalOdds: models.DecimalFromAmerican(100), ObservedAt: observed},
			},
		},
		ClosingOdds: map[models.Side]int{models.SideHome: -105, models.SideAway: -105},
		TotalLine:   44.5,
	}
}

// trainingHistory builds three seasons of perfectly elo-separated games
// plus one validation season.
func trainingHistory() []*GameRecord {
	var records []*GameRecord
	idx := 0
	for season := 2019; season <= 2021; season++ {
		for i := 0; i < 40; i++ {
			kickoff := time.Date(season, 10, 1+i%28, 17, 0, 0, 0, time.UTC)
			edge := 200.0
			if i%2 == 1 {
				edge = -200.0
			}
			records = append(records, record(season, idx, kickoff, edge))
			idx++
		}
	}
	for i := 0; i < 20; i++ {
		kickoff := time.Date(2022, 10, 1+i, 17, 0, 0, 0, time.UTC)
		edge := 200.0
		if i%2 == 1 {
			edge = -200.0
		}
		records = append(records, record(2022, idx, kickoff, edge))
		idx++
	}
	return records
}

func newTestBacktester(history HistorySource) (*Backtester, *memEdgeRepo) {
	base := logrus.New()
	edges := &memEdgeRepo{}
	cat := catalog.New(&config.CatalogConfig{
		MinSampleSize:        100,
		MaxPValue:            0.01,
		SimilarityThreshold:  0.85,
		VersionBumpMinGainPP: 2,
		VersionBumpSampleX:   1.5,
		DecayMargin:          0.02,
		MonitorWindowGames:   20,
		TrailingSeasons:      3,
	}, edges, base, logger.NewAuditLogger(base))
	return New(testBacktestConfig(), testEngineConfig(), testModelConfig(), history, cat, base), edges
}

func TestRunSettlesAndBalancesLedger(t *testing.T) {
	b, _ := newTestBacktester(&stubHistory{records: trainingHistory()})

	result, err := b.Run(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, result.Recommendations)
	require.Equal(t, len(result.Recommendations), len(result.Settled))
	require.Equal(t, len(result.Settled), len(result.Ledger))

	// Settled outcomes must sum exactly to the ledger delta over the
	// run, and the ledger must land on the final balance.
	ledgerSum := decimal.Zero
	for _, entry := range result.Ledger {
		ledgerSum = ledgerSum.Add(entry.Delta)
	}
	profitSum := decimal.Zero
	for _, s := range result.Settled {
		profitSum = profitSum.Add(s.Outcome.Profit)
	}
	assert.True(t, ledgerSum.Equal(profitSum), "ledger %s != settled %s", ledgerSum, profitSum)

	expected := decimal.NewFromFloat(10000).Add(ledgerSum)
	assert.True(t, result.FinalState.Balance.Equal(expected))
	assert.Equal(t, len(result.Settled), result.FinalState.SettledCount)

	// The winner is always the elo favorite, so the learned model
	// should grade far above break-even on this history.
	assert.Greater(t, result.WinRate, 0.9)
	assert.Greater(t, result.ROI, 0.0)
	assert.InDelta(t, 0.0122, result.AvgCLV, 0.001)
}

func TestRunIsByteIdenticallyReproducible(t *testing.T) {
	history := &stubHistory{records: trainingHistory()}

	first, _ := newTestBacktester(history)
	second, _ := newTestBacktester(history)

	a, err := first.Run(context.Background())
	require.NoError(t, err)
	b, err := second.Run(context.Background())
	require.NoError(t, err)

	rawA, err := json.Marshal(a.Recommendations)
	require.NoError(t, err)
	rawB, err := json.Marshal(b.Recommendations)
	require.NoError(t, err)
	assert.Equal(t, string(rawA), string(rawB))
}

func TestTaintedRecordIsDroppedNotScored(t *testing.T) {
	records := trainingHistory()
	tainted := record(2022, 999, time.Date(2022, 11, 6, 17, 0, 0, 0, time.UTC), 200)
	// An input published at the evaluation instant itself violates the
	// strictly-before rule.
	asOf := tainted.Game.Kickoff.Add(-time.Hour)
	tainted.Inputs.SourceTimes["injury_home"] = asOf
	records = append(records, tainted)

	b, _ := newTestBacktester(&stubHistory{records: records})
	result, err := b.Run(context.Background())
	require.NoError(t, err)

	for _, rec := range result.Recommendations {
		assert.NotEqual(t, tainted.Game.GameID, rec.GameID)
	}
}

func TestTrainAtExcludesFutureGames(t *testing.T) {
	b, _ := newTestBacktester(&stubHistory{})
	records := trainingHistory()
	cutoff := b.engineCfg.KickoffLead()
	vectors := b.buildVectors(records, cutoff)

	t0 := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	clf, err := b.trainAt(records, vectors, t0)
	require.NoError(t, err)
	require.NotNil(t, clf)

	// Retraining at an earlier boundary with fewer seasons must not
	// see 2021 games either.
	t1 := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	clf1, err := b.trainAt(records, vectors, t1)
	require.NoError(t, err)
	require.NotNil(t, clf1)
}

func TestTrainAtExcludesGamesStillOnTheField(t *testing.T) {
	b, _ := newTestBacktester(&stubHistory{})
	retrainAt := time.Date(2022, 10, 9, 18, 0, 0, 0, time.UTC)

	// The dataset carries the final score, but the game kicked off one
	// hour before the retrain instant: its outcome was not knowable yet.
	inFlight := record(2022, 1, retrainAt.Add(-time.Hour), 200)
	records := []*GameRecord{inFlight}
	vectors := b.buildVectors(records, b.engineCfg.KickoffLead())

	_, err := b.trainAt(records, vectors, retrainAt)
	require.ErrorIs(t, err, models.ErrInsufficientData)

	// Exactly settleLag before the retrain instant is still excluded;
	// anything earlier is fair game.
	boundary := record(2022, 2, retrainAt.Add(-settleLag), 200)
	_, err = b.trainAt([]*GameRecord{boundary}, b.buildVectors([]*GameRecord{boundary}, b.engineCfg.KickoffLead()), retrainAt)
	require.ErrorIs(t, err, models.ErrInsufficientData)

	settledGame := record(2022, 3, retrainAt.Add(-settleLag-time.Second), 200)
	clf, err := b.trainAt([]*GameRecord{settledGame}, b.buildVectors([]*GameRecord{settledGame}, b.engineCfg.KickoffLead()), retrainAt)
	require.NoError(t, err)
	require.NotNil(t, clf)
}

func TestActiveAtFiltersLaterPromotions(t *testing.T) {
	b, edges := newTestBacktester(&stubHistory{})

	early := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	edges.edges = append(edges.edges,
		&models.Edge{EdgeID: "a", Predicate: "elo_diff > 100", Side: models.SideHome, Status: models.EdgeStatusActive, Version: 1, PromotedAt: &early},
		&models.Edge{EdgeID: "b", Predicate: "wind_mph > 15", Side: models.SideUnder, Status: models.EdgeStatusActive, Version: 1, PromotedAt: &late},
	)

	eligible, err := b.activeAt(context.Background(), time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, eligible, 1)
	assert.Equal(t, "a", eligible[0].EdgeID)
}

func TestSubmitPatternSlicesRegistersOutliers(t *testing.T) {
	b, edges := newTestBacktester(&stubHistory{})

	var settled []Settlement
	// Windy unders hit 18 of 20; the calm remainder hits 8 of 20.
	for i := 0; i < 20; i++ {
		settled = append(settled, sliceSettlement(models.SideUnder, 20, i < 18))
	}
	for i := 0; i < 20; i++ {
		settled = append(settled, sliceSettlement(models.SideHome, 5, i < 8))
	}

	submitted, err := b.submitPatternSlices(context.Background(), &Result{Settled: settled})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, submitted, 1)

	found := false
	for _, e := range edges.edges {
		if e.Source == "backtest_pattern" && e.Side == models.SideUnder {
			found = true
			assert.Equal(t, models.EdgeStatusCandidate, e.Status)
		}
	}
	assert.True(t, found, "expected a windy under pattern candidate")
}

func sliceSettlement(side models.Side, wind float64, won bool) Settlement {
	return Settlement{
		Recommendation: &models.Recommendation{Side: side},
		Outcome:        &models.RecommendationOutcome{Won: won},
		Vector:         &models.FeatureVector{WindMPH: wind, HomeElo: 1500, AwayElo: 1500},
	}
}

func TestResolveGradesTotalsAndPushes(t *testing.T) {
	rec := record(2022, 1, time.Date(2022, 10, 2, 17, 0, 0, 0, time.UTC), 200)
	// 27-17 = 44 total against a 44.5 line: under cashes.
	won, push := resolve(models.SideUnder, rec)
	assert.True(t, won)
	assert.False(t, push)

	rec.TotalLine = 44
	_, push = resolve(models.SideOver, rec)
	assert.True(t, push)

	won, push = resolve(models.SideHome, rec)
	assert.True(t, won)
	assert.False(t, push)
}
