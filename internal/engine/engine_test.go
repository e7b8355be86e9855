package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/gridiron-edge/internal/catalog"
	"github.com/yourusername/gridiron-edge/internal/config"
	"github.com/yourusername/gridiron-edge/internal/features"
	"github.com/yourusername/gridiron-edge/internal/logger"
	"github.com/yourusername/gridiron-edge/internal/models"
)

func testEngineConfig() *config.EngineConfig {
	return &config.EngineConfig{
		Cron:                 "0 */4 * * *",
		MinEdge:              0.03,
		MinEdgeWithMatch:     0.02,
		MinConfidence:        0.55,
		KellyFraction:        0.25,
		StakeCap:             0.10,
		StakeFloor:           0.001,
		KickoffLeadMinutes:   10,
		InputTimeoutSeconds:  5,
		LookaheadWindowHours: 72,
	}
}

func testGame(id string) *models.Game {
	return &models.Game{
		GameID:   id,
		Season:   2025,
		Week:     10,
		HomeTeam: "KC",
		AwayTeam: "BUF",
		Kickoff:  time.Now().Add(48 * time.Hour).UTC(),
		Stadium:  "Covered Field",
		Status:   models.GameStatusScheduled,
	}
}

func testInputs(game *models.Game, asOf time.Time) *features.Inputs {
	return &features.Inputs{
		Game: game,
		Stadium: &models.Stadium{
			Name: game.Stadium, Roof: models.RoofDome, Surface: "turf", Timezone: "UTC",
		},
		HomeTeam: &models.Team{Code: "KC", Conference: "AFC", Division: "West"},
		AwayTeam: &models.Team{Code: "BUF", Conference: "AFC", Division: "East"},
		HomeElo:  1550,
		AwayElo:  1500,
		SourceTimes: map[string]time.Time{
			"injury_home": asOf.Add(-2 * time.Hour),
			"injury_away": asOf.Add(-2 * time.Hour),
		},
	}
}

func quoteAt(side models.Side, american int, at time.Time) models.BookQuote {
	return models.BookQuote{
		Book:         "pinnacle",
		Market:       models.MarketMoneyline,
		Side:         side,
		AmericanOdds: american,
		DecimalOdds:  models.DecimalFromAmerican(american),
		ObservedAt:   at,
	}
}

func testOdds(game *models.Game, asOf time.Time) *models.OddsSnapshot {
	at := asOf.Add(-10 * time.Minute)
	return &models.OddsSnapshot{
		GameID:     game.GameID,
		ObservedAt: at,
		Quotes: []models.BookQuote{
			quoteAt(models.SideHome, -110, at),
			quoteAt(models.SideAway, -110, at),
		},
	}
}

// stubProvider serves canned inputs per game.
type stubProvider struct {
	inputs map[string]*features.Inputs
	odds   map[string]*models.OddsSnapshot
	errs   map[string]error
	asOf   time.Time
}

func (p *stubProvider) Gather(ctx context.Context, game *models.Game) (*features.Inputs, *models.OddsSnapshot, error) {
	if err := p.errs[game.GameID]; err != nil {
		return nil, nil, err
	}
	return p.inputs[game.GameID], p.odds[game.GameID], nil
}

func (p *stubProvider) AsOf(game *models.Game) time.Time { return p.asOf }

type stubClassifier struct {
	p   float64
	err error
}

func (c *stubClassifier) Predict(ctx context.Context, fv *models.FeatureVector) (float64, error) {
	return c.p, c.err
}

// stubEdgeRepo is the minimal in-memory edge store the catalog needs.
type stubEdgeRepo struct {
	edges []*models.Edge
}

func (r *stubEdgeRepo) Create(ctx context.Context, e *models.Edge) error {
	r.edges = append(r.edges, e)
	return nil
}

func (r *stubEdgeRepo) Update(ctx context.Context, e *models.Edge) error { return nil }

func (r *stubEdgeRepo) GetByID(ctx context.Context, id string) (*models.Edge, error) {
	for _, e := range r.edges {
		if e.EdgeID == id {
			return e, nil
		}
	}
	return nil, fmt.Errorf("edge %s not found", id)
}

func (r *stubEdgeRepo) ListByStatus(ctx context.Context, status models.EdgeStatus) ([]*models.Edge, error) {
	var out []*models.Edge
	for _, e := range r.edges {
		if e.Status == status {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *stubEdgeRepo) ListLatestVersions(ctx context.Context) ([]*models.Edge, error) {
	return r.edges, nil
}

func (r *stubEdgeRepo) AppendObservation(ctx context.Context, obs *models.WagerOutcome) error {
	return nil
}

func (r *stubEdgeRepo) RecentObservations(ctx context.Context, edgeID string, limit int) ([]*models.WagerOutcome, error) {
	return nil, nil
}

func testCatalog(edges ...*models.Edge) *catalog.Catalog {
	base := logrus.New()
	return catalog.New(&config.CatalogConfig{
		MinSampleSize:        100,
		MaxPValue:            0.01,
		SimilarityThreshold:  0.85,
		VersionBumpMinGainPP: 2,
		VersionBumpSampleX:   1.5,
		DecayMargin:          0.02,
		MonitorWindowGames:   20,
		TrailingSeasons:      3,
	}, &stubEdgeRepo{edges: edges}, base, logger.NewAuditLogger(base))
}

func activeEdge(pred string, side models.Side, winRate float64) *models.Edge {
	return &models.Edge{
		EdgeID:    models.ComputeEdgeID(pred, 1),
		Predicate: pred,
		Side:      side,
		Status:    models.EdgeStatusActive,
		Version:   1,
		DiscoveryStats: models.EdgeStats{
			SampleSize: 200, Wins: int(200 * winRate), WinRate: winRate, PValue: 0.001,
		},
	}
}

func newTestEngine(provider *stubProvider, clf *stubClassifier, cat *catalog.Catalog) *Engine {
	return NewReplay(testEngineConfig(), provider, clf, cat, logrus.New())
}

func TestEvaluateGameEmitsRecommendation(t *testing.T) {
	game := testGame("2025_10_BUF_KC")
	asOf := time.Now().UTC()
	provider := &stubProvider{
		inputs: map[string]*features.Inputs{game.GameID: testInputs(game, asOf)},
		odds:   map[string]*models.OddsSnapshot{game.GameID: testOdds(game, asOf)},
		asOf:   asOf,
	}
	eng := newTestEngine(provider, &stubClassifier{p: 0.62}, testCatalog())

	rec, skip, err := eng.EvaluateGame(context.Background(), game, nil, nil)
	require.NoError(t, err)
	require.Empty(t, skip)
	require.NotNil(t, rec)

	assert.Equal(t, models.SideHome, rec.Side)
	assert.Equal(t, game.GameID, rec.GameID)
	assert.Equal(t, "pinnacle", rec.BestBook)
	assert.Equal(t, -110, rec.BestOdds)
	assert.InDelta(t, 0.62-110.0/210.0, rec.RawEdge, 1e-9)
	assert.Equal(t, asOf, rec.GeneratedAt)
	assert.NotEmpty(t, rec.FeatureSnapshotHash)
	assert.GreaterOrEqual(t, rec.StakeFraction, 0.001)
	assert.LessOrEqual(t, rec.StakeFraction, 0.10)
}

func TestRunContinuesWhenOddsUnavailable(t *testing.T) {
	down := testGame("2025_10_NYJ_NE")
	up := testGame("2025_10_BUF_KC")
	up.Kickoff = down.Kickoff.Add(time.Hour)
	asOf := time.Now().UTC()

	provider := &stubProvider{
		inputs: map[string]*features.Inputs{
			down.GameID: testInputs(down, asOf),
			up.GameID:   testInputs(up, asOf),
		},
		odds: map[string]*models.OddsSnapshot{
			// down has no snapshot at all: every odds source failing
			// must skip that game only.
			up.GameID: testOdds(up, asOf),
		},
		asOf: asOf,
	}
	eng := newTestEngine(provider, &stubClassifier{p: 0.62}, testCatalog())

	result, err := eng.RunGames(context.Background(), []*models.Game{down, up})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 1, result.Evaluated)
	require.Len(t, result.Recommendations, 1)
	assert.Equal(t, up.GameID, result.Recommendations[0].GameID)
}

func TestLookAheadViolationSkipsGameOnly(t *testing.T) {
	tainted := testGame("2025_10_NYJ_NE")
	clean := testGame("2025_10_BUF_KC")
	clean.Kickoff = tainted.Kickoff.Add(time.Hour)
	asOf := time.Now().UTC()

	taintedInputs := testInputs(tainted, asOf)
	// A forecast published exactly at the evaluation instant is not
	// strictly before it and must poison the build.
	taintedInputs.SourceTimes["weather"] = asOf

	provider := &stubProvider{
		inputs: map[string]*features.Inputs{
			tainted.GameID: taintedInputs,
			clean.GameID:   testInputs(clean, asOf),
		},
		odds: map[string]*models.OddsSnapshot{
			tainted.GameID: testOdds(tainted, asOf),
			clean.GameID:   testOdds(clean, asOf),
		},
		asOf: asOf,
	}
	eng := newTestEngine(provider, &stubClassifier{p: 0.62}, testCatalog())

	result, err := eng.RunGames(context.Background(), []*models.Game{tainted, clean})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, result.Recommendations, 1)
	assert.Equal(t, clean.GameID, result.Recommendations[0].GameID)
}

func TestClassifierFailureAbortsRun(t *testing.T) {
	game := testGame("2025_10_BUF_KC")
	asOf := time.Now().UTC()
	provider := &stubProvider{
		inputs: map[string]*features.Inputs{game.GameID: testInputs(game, asOf)},
		odds:   map[string]*models.OddsSnapshot{game.GameID: testOdds(game, asOf)},
		asOf:   asOf,
	}
	eng := newTestEngine(provider, &stubClassifier{err: models.ErrClassifierFailed}, testCatalog())

	_, err := eng.RunGames(context.Background(), []*models.Game{game})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrClassifierFailed))
}

func TestBelowEdgeThresholdEmitsNothing(t *testing.T) {
	game := testGame("2025_10_BUF_KC")
	asOf := time.Now().UTC()
	provider := &stubProvider{
		inputs: map[string]*features.Inputs{game.GameID: testInputs(game, asOf)},
		odds:   map[string]*models.OddsSnapshot{game.GameID: testOdds(game, asOf)},
		asOf:   asOf,
	}
	// p 0.55 vs -110 implied 0.5238: raw edge ~0.026, under the bare
	// 0.03 bar.
	eng := newTestEngine(provider, &stubClassifier{p: 0.55}, testCatalog())

	rec, skip, err := eng.EvaluateGame(context.Background(), game, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, skip)
	assert.Nil(t, rec)
}

func TestMatchedEdgeLowersThreshold(t *testing.T) {
	game := testGame("2025_10_BUF_KC")
	asOf := time.Now().UTC()
	provider := &stubProvider{
		inputs: map[string]*features.Inputs{game.GameID: testInputs(game, asOf)},
		odds:   map[string]*models.OddsSnapshot{game.GameID: testOdds(game, asOf)},
		asOf:   asOf,
	}
	eng := newTestEngine(provider, &stubClassifier{p: 0.55}, testCatalog())

	// elo_diff is 50 on the test inputs, so this edge matches.
	edge := activeEdge("elo_diff > 25", models.SideHome, 0.55)
	rec, skip, err := eng.EvaluateGame(context.Background(), game, []*models.Edge{edge}, nil)
	require.NoError(t, err)
	require.Empty(t, skip)
	require.NotNil(t, rec)
	assert.Equal(t, []string{edge.EdgeID}, rec.MatchedEdges)
	// One matched edge bumps confidence by 5%.
	assert.InDelta(t, 0.55*1.05, rec.Confidence, 1e-9)
}

func TestNonMatchingEdgeIgnored(t *testing.T) {
	game := testGame("2025_10_BUF_KC")
	asOf := time.Now().UTC()
	provider := &stubProvider{
		inputs: map[string]*features.Inputs{game.GameID: testInputs(game, asOf)},
		odds:   map[string]*models.OddsSnapshot{game.GameID: testOdds(game, asOf)},
		asOf:   asOf,
	}
	eng := newTestEngine(provider, &stubClassifier{p: 0.55}, testCatalog())

	edge := activeEdge("elo_diff > 200", models.SideHome, 0.55)
	rec, skip, err := eng.EvaluateGame(context.Background(), game, []*models.Edge{edge}, nil)
	require.NoError(t, err)
	assert.Empty(t, skip)
	assert.Nil(t, rec)
}

func TestPickSideUnanimousOverride(t *testing.T) {
	away1 := activeEdge("elo_diff > 25", models.SideAway, 0.56)
	away2 := activeEdge("home_rest_days < 6", models.SideAway, 0.57)

	side, prob := pickSide(0.55, []*models.Edge{away1, away2})
	assert.Equal(t, models.SideAway, side)
	assert.InDelta(t, 0.45, prob, 1e-9)
}

func TestPickSideSplitEdgesKeepModelSide(t *testing.T) {
	home := activeEdge("elo_diff > 25", models.SideHome, 0.56)
	away := activeEdge("home_rest_days < 6", models.SideAway, 0.57)

	side, prob := pickSide(0.55, []*models.Edge{home, away})
	assert.Equal(t, models.SideHome, side)
	assert.InDelta(t, 0.55, prob, 1e-9)
}

func TestPickSideTotalsEdgesDoNotOverride(t *testing.T) {
	under := activeEdge("wind_mph > 18", models.SideUnder, 0.58)

	side, prob := pickSide(0.60, []*models.Edge{under})
	assert.Equal(t, models.SideHome, side)
	assert.InDelta(t, 0.60, prob, 1e-9)
}

func TestStakeFractionBounds(t *testing.T) {
	// An absurdly confident model must still be capped at the absolute
	// fraction limit.
	high := stakeFraction(0.95, 1.91, 0.90, nil, nil, 0.10, 0.001)
	assert.InDelta(t, 0.10, high, 1e-9)

	// A marginal edge with every multiplier throttling still wagers the
	// minimum tracked stake.
	losing := &models.BankrollState{RollingWinRate: 0.40, SettledCount: 50}
	low := stakeFraction(0.53, 1.91, 0.56, nil, losing, 0.10, 0.001)
	assert.GreaterOrEqual(t, low, 0.001)
	assert.LessOrEqual(t, low, 0.10)
}

func TestRegimeMultiplierNeutralWhenUnsettled(t *testing.T) {
	assert.Equal(t, 1.0, regimeMultiplier(nil))
	assert.Equal(t, 1.0, regimeMultiplier(&models.BankrollState{SettledCount: 0, RollingWinRate: 0.1}))
	assert.Equal(t, 0.5, regimeMultiplier(&models.BankrollState{SettledCount: 10, RollingWinRate: 0.50}))
	assert.Equal(t, 1.3, regimeMultiplier(&models.BankrollState{SettledCount: 10, RollingWinRate: 0.60, RollingSharpe: 1.5}))
}

func TestRecommendationIDDeterministic(t *testing.T) {
	game := testGame("2025_10_BUF_KC")
	asOf := time.Now().UTC()
	provider := &stubProvider{
		inputs: map[string]*features.Inputs{game.GameID: testInputs(game, asOf)},
		odds:   map[string]*models.OddsSnapshot{game.GameID: testOdds(game, asOf)},
		asOf:   asOf,
	}
	eng := newTestEngine(provider, &stubClassifier{p: 0.62}, testCatalog())

	first, _, err := eng.EvaluateGame(context.Background(), game, nil, nil)
	require.NoError(t, err)
	second, _, err := eng.EvaluateGame(context.Background(), game, nil, nil)
	require.NoError(t, err)

	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.FeatureSnapshotHash, second.FeatureSnapshotHash)
	assert.Equal(t, first.StakeFraction, second.StakeFraction)
}

func TestKickoffLeadSkips(t *testing.T) {
	game := testGame("2025_10_BUF_KC")
	game.Kickoff = time.Now().Add(5 * time.Minute)
	asOf := time.Now().UTC()
	provider := &stubProvider{asOf: asOf}
	eng := newTestEngine(provider, &stubClassifier{p: 0.62}, testCatalog())

	rec, skip, err := eng.EvaluateGame(context.Background(), game, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, SkipInsideKickoffLead, skip)
	assert.Nil(t, rec)
}
