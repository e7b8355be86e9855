package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/gridiron-edge/internal/config"
	"github.com/yourusername/gridiron-edge/internal/logger"
	"github.com/yourusername/gridiron-edge/internal/models"
	"github.com/yourusername/gridiron-edge/internal/predicate"
)

// memEdgeRepo is an in-memory EdgeRepository for catalog tests.
type memEdgeRepo struct {
	mu           sync.Mutex
	edges        map[string]*models.Edge
	observations map[string][]*models.WagerOutcome
}

func newMemEdgeRepo() *memEdgeRepo {
	return &memEdgeRepo{
		edges:        make(map[string]*models.Edge),
		observations: make(map[string][]*models.WagerOutcome),
	}
}

func (r *memEdgeRepo) Create(ctx context.Context, edge *models.Edge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.edges[edge.EdgeID]; exists {
		return models.ErrDuplicateKey
	}
	clone := *edge
	r.edges[edge.EdgeID] = &clone
	return nil
}

func (r *memEdgeRepo) Update(ctx context.Context, edge *models.Edge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.edges[edge.EdgeID]; !exists {
		return models.ErrNotFound
	}
	clone := *edge
	r.edges[edge.EdgeID] = &clone
	return nil
}

func (r *memEdgeRepo) GetByID(ctx context.Context, edgeID string) (*models.Edge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	edge, ok := r.edges[edgeID]
	if !ok {
		return nil, models.ErrNotFound
	}
	clone := *edge
	return &clone, nil
}

func (r *memEdgeRepo) ListByStatus(ctx context.Context, status models.EdgeStatus) ([]*models.Edge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Edge
	for _, e := range r.edges {
		if e.Status == status {
			clone := *e
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *memEdgeRepo) ListLatestVersions(ctx context.Context) ([]*models.Edge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	latest := make(map[string]*models.Edge)
	for _, e := range r.edges {
		if cur, ok := latest[e.Predicate]; !ok || e.Version > cur.Version {
			latest[e.Predicate] = e
		}
	}
	out := make([]*models.Edge, 0, len(latest))
	for _, e := range latest {
		clone := *e
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memEdgeRepo) AppendObservation(ctx context.Context, obs *models.WagerOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *obs
	r.observations[obs.EdgeID] = append(r.observations[obs.EdgeID], &clone)
	return nil
}

func (r *memEdgeRepo) RecentObservations(ctx context.Context, edgeID string, limit int) ([]*models.WagerOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	obs := r.observations[edgeID]
	if len(obs) > limit {
		obs = obs[len(obs)-limit:]
	}
	out := make([]*models.WagerOutcome, len(obs))
	copy(out, obs)
	return out, nil
}

func testCatalogConfig() *config.CatalogConfig {
	return &config.CatalogConfig{
		MinSampleSize:        100,
		MaxPValue:            0.01,
		SimilarityThreshold:  0.85,
		VersionBumpMinGainPP: 5,
		VersionBumpSampleX:   1.5,
		DecayMargin:          0.02,
		MonitorWindowGames:   20,
		TrailingSeasons:      2,
	}
}

func newTestCatalog(t *testing.T) (*Catalog, *memEdgeRepo) {
	t.Helper()
	repo := newMemEdgeRepo()
	log := logrus.New()
	return New(testCatalogConfig(), repo, log, logger.NewAuditLogger(log)), repo
}

func mustParse(t *testing.T, s string) *predicate.Predicate {
	t.Helper()
	p, err := predicate.Parse(s)
	require.NoError(t, err)
	return p
}

func strongStats() models.EdgeStats {
	return models.EdgeStats{SampleSize: 450, Wins: 320, WinRate: 0.711, ROI: 0.31, PValue: 0.00001, EffectSize: 0.4}
}

func TestRegisterAcceptsNewCandidate(t *testing.T) {
	c, _ := newTestCatalog(t)

	outcome, edge, err := c.Register(context.Background(), &Candidate{
		Predicate: mustParse(t, "elo_diff > 100"),
		Side:      models.SideHome,
		Stats:     strongStats(),
		Source:    "template",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RegisterAccepted, outcome)
	assert.Equal(t, models.EdgeStatusCandidate, edge.Status)
	assert.Equal(t, 1, edge.Version)
	assert.Equal(t, models.ComputeEdgeID(edge.Predicate, 1), edge.EdgeID)
}

func TestRegisterRejectsSimilarWithoutImprovement(t *testing.T) {
	c, _ := newTestCatalog(t)
	ctx := context.Background()

	_, incumbent, err := c.Register(ctx, &Candidate{
		Predicate: mustParse(t, "elo_diff > 100"), Side: models.SideHome, Stats: strongStats(), Source: "template",
	})
	require.NoError(t, err)

	// Near-identical predicate, no metric gain.
	outcome, stored, err := c.Register(ctx, &Candidate{
		Predicate: mustParse(t, "elo_diff > 101"), Side: models.SideHome, Stats: strongStats(), Source: "template",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RegisterDuplicate, outcome)
	assert.Equal(t, incumbent.EdgeID, stored.EdgeID)
}

func TestRegisterVersionBumpRetiresIncumbent(t *testing.T) {
	c, repo := newTestCatalog(t)
	ctx := context.Background()

	_, incumbent, err := c.Register(ctx, &Candidate{
		Predicate: mustParse(t, "elo_diff > 100"), Side: models.SideHome, Stats: strongStats(), Source: "template",
	})
	require.NoError(t, err)

	better := strongStats()
	better.SampleSize = 700 // >= 1.5x incumbent
	better.WinRate = 0.78   // +5pp and change
	outcome, bumped, err := c.Register(ctx, &Candidate{
		Predicate: mustParse(t, "elo_diff > 100"), Side: models.SideHome, Stats: better, Source: "template",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RegisterVersionBump, outcome)
	assert.Equal(t, 2, bumped.Version)

	old, err := repo.GetByID(ctx, incumbent.EdgeID)
	require.NoError(t, err)
	assert.Equal(t, models.EdgeStatusRetired, old.Status)
	require.NotNil(t, old.RetiredAt)
}

func TestPromoteEnforcesStrictActivationBar(t *testing.T) {
	c, _ := newTestCatalog(t)
	ctx := context.Background()

	// Boundary case: sample exactly 100 and p exactly 0.01 fails the
	// strict inequality.
	boundary := models.EdgeStats{SampleSize: 100, Wins: 60, WinRate: 0.60, PValue: 0.01}
	_, edge, err := c.Register(ctx, &Candidate{
		Predicate: mustParse(t, "wind_mph > 18"), Side: models.SideUnder, Stats: boundary, Source: "template",
	})
	require.NoError(t, err)
	require.ErrorIs(t, c.Promote(ctx, edge.EdgeID), models.ErrInsufficientData)

	_, edge2, err := c.Register(ctx, &Candidate{
		Predicate: mustParse(t, "elo_diff > 100"), Side: models.SideHome, Stats: strongStats(), Source: "template",
	})
	require.NoError(t, err)
	require.NoError(t, c.Promote(ctx, edge2.EdgeID))

	// Idempotent.
	require.NoError(t, c.Promote(ctx, edge2.EdgeID))

	active, err := c.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, edge2.EdgeID, active[0].EdgeID)
}

func TestDecayRetiresAutomatically(t *testing.T) {
	c, repo := newTestCatalog(t)
	ctx := context.Background()

	_, edge, err := c.Register(ctx, &Candidate{
		Predicate: mustParse(t, "elo_diff > 100"), Side: models.SideHome, Stats: strongStats(), Source: "template",
	})
	require.NoError(t, err)
	require.NoError(t, c.Promote(ctx, edge.EdgeID))

	// Trailing window win rate 0.45: 9 wins in each 20. Feed two full
	// windows: the first flips active → monitored, the second retires.
	now := time.Now().UTC()
	for i := 0; i < 40; i++ {
		won := i%20 < 9
		profit := -1.0
		if won {
			profit = models.ProfitAtOdds(-110)
		}
		err := c.RecordObservation(ctx, edge.EdgeID, &models.WagerOutcome{
			GameID:     "g",
			Won:        won,
			Profit:     profit,
			ObservedAt: now.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			break // retired partway through the second window
		}
	}

	final, err := repo.GetByID(ctx, edge.EdgeID)
	require.NoError(t, err)
	assert.Equal(t, models.EdgeStatusRetired, final.Status)
	require.NotNil(t, final.RetiredAt)
	assert.InDelta(t, 0.45, final.RecentStats.WinRate, 0.001)
}

func TestMonitoredEdgeRecoversToActive(t *testing.T) {
	c, repo := newTestCatalog(t)
	ctx := context.Background()

	_, edge, err := c.Register(ctx, &Candidate{
		Predicate: mustParse(t, "elo_diff > 100"), Side: models.SideHome, Stats: strongStats(), Source: "template",
	})
	require.NoError(t, err)
	require.NoError(t, c.Promote(ctx, edge.EdgeID))

	now := time.Now().UTC()
	record := func(i int, won bool) {
		profit := -1.0
		if won {
			profit = models.ProfitAtOdds(-110)
		}
		require.NoError(t, c.RecordObservation(ctx, edge.EdgeID, &models.WagerOutcome{
			GameID: "g", Won: won, Profit: profit, ObservedAt: now.Add(time.Duration(i) * time.Hour),
		}))
	}

	// A losing full window demotes to monitored.
	for i := 0; i < 20; i++ {
		record(i, i < 9)
	}
	mid, err := repo.GetByID(ctx, edge.EdgeID)
	require.NoError(t, err)
	assert.Equal(t, models.EdgeStatusMonitored, mid.Status)

	// A winning streak pulls the trailing window back above threshold.
	for i := 20; i < 35; i++ {
		record(i, true)
	}
	final, err := repo.GetByID(ctx, edge.EdgeID)
	require.NoError(t, err)
	assert.Equal(t, models.EdgeStatusActive, final.Status)
}

func TestRetireIsTerminal(t *testing.T) {
	c, _ := newTestCatalog(t)
	ctx := context.Background()

	_, edge, err := c.Register(ctx, &Candidate{
		Predicate: mustParse(t, "elo_diff > 100"), Side: models.SideHome, Stats: strongStats(), Source: "template",
	})
	require.NoError(t, err)
	require.NoError(t, c.Retire(ctx, edge.EdgeID, "manual"))

	// Retiring again is a no-op; observations are refused.
	require.NoError(t, c.Retire(ctx, edge.EdgeID, "again"))
	err = c.RecordObservation(ctx, edge.EdgeID, &models.WagerOutcome{GameID: "g", Won: true})
	require.Error(t, err)
}

// conflictEdgeRepo injects duplicate-key failures on Create, as if a
// second writer filed the same lineage between the read and the write.
type conflictEdgeRepo struct {
	*memEdgeRepo
	conflicts  int
	competitor *models.Edge
}

func (r *conflictEdgeRepo) Create(ctx context.Context, edge *models.Edge) error {
	if r.conflicts > 0 {
		r.conflicts--
		if r.competitor != nil {
			if err := r.memEdgeRepo.Create(ctx, r.competitor); err != nil {
				return err
			}
			r.competitor = nil
		}
		return fmt.Errorf("edge %s: %w", edge.EdgeID, models.ErrDuplicateKey)
	}
	return r.memEdgeRepo.Create(ctx, edge)
}

func TestRegisterRetriesOnceAfterRacedWrite(t *testing.T) {
	canonical := mustParse(t, "elo_diff > 100").Canonical()
	competitor := &models.Edge{
		EdgeID:         models.ComputeEdgeID(canonical, 1),
		Predicate:      canonical,
		Side:           models.SideHome,
		Status:         models.EdgeStatusCandidate,
		Version:        1,
		DiscoveryStats: strongStats(),
		RecentStats:    strongStats(),
		Source:         "template",
		CreatedAt:      time.Now().UTC(),
	}
	repo := &conflictEdgeRepo{memEdgeRepo: newMemEdgeRepo(), conflicts: 1, competitor: competitor}
	log := logrus.New()
	c := New(testCatalogConfig(), repo, log, logger.NewAuditLogger(log))

	// The retry re-reads the store, sees the competitor that won the
	// race and resolves against it instead of failing.
	outcome, stored, err := c.Register(context.Background(), &Candidate{
		Predicate: mustParse(t, "elo_diff > 100"), Side: models.SideHome, Stats: strongStats(), Source: "template",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RegisterDuplicate, outcome)
	assert.Equal(t, competitor.EdgeID, stored.EdgeID)
}

func TestRegisterFailsAfterSecondWriteConflict(t *testing.T) {
	repo := &conflictEdgeRepo{memEdgeRepo: newMemEdgeRepo(), conflicts: 2}
	log := logrus.New()
	c := New(testCatalogConfig(), repo, log, logger.NewAuditLogger(log))

	_, _, err := c.Register(context.Background(), &Candidate{
		Predicate: mustParse(t, "elo_diff > 100"), Side: models.SideHome, Stats: strongStats(), Source: "template",
	})
	require.ErrorIs(t, err, models.ErrWriteConflict)
}

func TestConcurrentRegistrationsCollapseToOne(t *testing.T) {
	c, repo := newTestCatalog(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Register(ctx, &Candidate{
				Predicate: mustParse(t, "elo_diff > 100"), Side: models.SideHome, Stats: strongStats(), Source: "template",
			})
		}()
	}
	wg.Wait()

	latest, err := repo.ListLatestVersions(ctx)
	require.NoError(t, err)
	assert.Len(t, latest, 1)
}
