// Package catalog is the durable registry of every edge hypothesis the
// system has considered, with its lifecycle and performance metrics.
// All writes are serialized through one mutex; reads go straight to the
// store.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/gridiron-edge/internal/config"
	"github.com/yourusername/gridiron-edge/internal/logger"
	"github.com/yourusername/gridiron-edge/internal/metrics"
	"github.com/yourusername/gridiron-edge/internal/models"
	"github.com/yourusername/gridiron-edge/internal/predicate"
	"github.com/yourusername/gridiron-edge/internal/repository"
	"github.com/yourusername/gridiron-edge/internal/stats"
)

// Catalog owns the edge lifecycle: registration with duplicate
// collapsing, the promotion gate, decay monitoring and retirement.
type Catalog struct {
	cfg    *config.CatalogConfig
	edges  repository.EdgeRepository
	logger *logrus.Entry
	audit  *logger.AuditLogger

	// writeMu serializes every mutation. Concurrent reads are allowed.
	writeMu sync.Mutex

	// monitorCounts tracks observations seen since each edge entered
	// monitored, so retirement waits out a full window of decay.
	monitorCounts map[string]int
}

// New creates the catalog over its store.
func New(cfg *config.CatalogConfig, edges repository.EdgeRepository, log *logrus.Logger, audit *logger.AuditLogger) *Catalog {
	return &Catalog{
		cfg:           cfg,
		edges:         edges,
		logger:        log.WithField("component", "catalog"),
		audit:         audit,
		monitorCounts: make(map[string]int),
	}
}

// Candidate is a validated hypothesis submitted for registration.
type Candidate struct {
	Predicate *predicate.Predicate
	Side      models.Side
	Stats     models.EdgeStats
	Source    string
}

// Register files a candidate, collapsing near-duplicates. The returned
// edge is the stored one: the new candidate when accepted or bumped, the
// incumbent when rejected as duplicate.
//
// A duplicate-key failure on the insert means another writer filed the
// same lineage between our read and our write. The registration is
// retried once against the fresh state; a second conflict is fatal.
func (c *Catalog) Register(ctx context.Context, cand *Candidate) (models.RegisterOutcome, *models.Edge, error) {
	if cand.Predicate == nil {
		return "", nil, models.ErrPredicateRequired
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	canonical := cand.Predicate.Canonical()

	outcome, edge, err := c.registerLocked(ctx, cand, canonical)
	if errors.Is(err, models.ErrDuplicateKey) {
		c.logger.WithField("predicate", canonical).Warn("Edge write conflicted, retrying once")
		outcome, edge, err = c.registerLocked(ctx, cand, canonical)
		if errors.Is(err, models.ErrDuplicateKey) {
			return "", nil, fmt.Errorf("%w: %s", models.ErrWriteConflict, canonical)
		}
	}
	return outcome, edge, err
}

// registerLocked runs one read-resolve-write cycle. Caller holds
// writeMu.
func (c *Catalog) registerLocked(ctx context.Context, cand *Candidate, canonical string) (models.RegisterOutcome, *models.Edge, error) {
	existing, err := c.edges.ListLatestVersions(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("failed to list edges for similarity check: %w", err)
	}

	incumbent := c.mostSimilar(canonical, existing)
	if incumbent != nil {
		return c.resolveCollision(ctx, cand, canonical, incumbent)
	}

	edge := &models.Edge{
		EdgeID:         models.ComputeEdgeID(canonical, 1),
		Predicate:      canonical,
		Side:           cand.Side,
		Status:         models.EdgeStatusCandidate,
		Version:        1,
		DiscoveryStats: cand.Stats,
		RecentStats:    cand.Stats,
		Source:         cand.Source,
		CreatedAt:      time.Now().UTC(),
	}
	if err := c.edges.Create(ctx, edge); err != nil {
		return "", nil, fmt.Errorf("failed to create edge: %w", err)
	}

	metrics.RecordCandidateRegistered(string(models.RegisterAccepted))
	c.audit.LogEdgeRegistration(edge.EdgeID, edge.Predicate, string(models.RegisterAccepted), edge.Source, edge.Version)
	return models.RegisterAccepted, edge, nil
}

// mostSimilar returns the closest edge at or above the similarity
// threshold, oldest winning ties.
func (c *Catalog) mostSimilar(canonical string, existing []*models.Edge) *models.Edge {
	var best *models.Edge
	bestScore := c.cfg.SimilarityThreshold
	sort.Slice(existing, func(i, j int) bool {
		return existing[i].CreatedAt.Before(existing[j].CreatedAt)
	})
	for _, e := range existing {
		score := predicate.Similarity(canonical, e.Predicate)
		if score > bestScore || (score == bestScore && best == nil && score >= c.cfg.SimilarityThreshold) {
			best = e
			bestScore = score
		}
	}
	return best
}

// resolveCollision applies the version-bump policy: the newcomer must
// improve win rate or ROI by the configured gain and carry the required
// sample multiple, otherwise it is a duplicate and the incumbent stands.
func (c *Catalog) resolveCollision(ctx context.Context, cand *Candidate, canonical string, incumbent *models.Edge) (models.RegisterOutcome, *models.Edge, error) {
	gainPP := c.cfg.VersionBumpMinGainPP / 100.0
	improved := cand.Stats.WinRate >= incumbent.DiscoveryStats.WinRate+gainPP ||
		cand.Stats.ROI >= incumbent.DiscoveryStats.ROI+gainPP
	enoughSample := float64(cand.Stats.SampleSize) >= c.cfg.VersionBumpSampleX*float64(incumbent.DiscoveryStats.SampleSize)

	if !improved || !enoughSample {
		metrics.RecordCandidateRegistered(string(models.RegisterDuplicate))
		c.audit.LogEdgeRegistration(incumbent.EdgeID, canonical, string(models.RegisterDuplicate), cand.Source, incumbent.Version)
		return models.RegisterDuplicate, incumbent, nil
	}

	now := time.Now().UTC()
	bumped := &models.Edge{
		EdgeID:         models.ComputeEdgeID(canonical, incumbent.Version+1),
		Predicate:      canonical,
		Side:           cand.Side,
		Status:         models.EdgeStatusCandidate,
		Version:        incumbent.Version + 1,
		DiscoveryStats: cand.Stats,
		RecentStats:    cand.Stats,
		Source:         cand.Source,
		CreatedAt:      now,
	}
	if err := c.edges.Create(ctx, bumped); err != nil {
		return "", nil, fmt.Errorf("failed to create bumped edge: %w", err)
	}

	if err := c.retireLocked(ctx, incumbent, "superseded by version "+fmt.Sprint(bumped.Version)); err != nil {
		return "", nil, err
	}

	metrics.RecordCandidateRegistered(string(models.RegisterVersionBump))
	c.audit.LogEdgeRegistration(bumped.EdgeID, canonical, string(models.RegisterVersionBump), cand.Source, bumped.Version)
	return models.RegisterVersionBump, bumped, nil
}

// Promote moves a candidate to active iff the activation bar holds.
// Promoting an already-active edge is a no-op.
func (c *Catalog) Promote(ctx context.Context, edgeID string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	edge, err := c.edges.GetByID(ctx, edgeID)
	if err != nil {
		return err
	}

	switch edge.Status {
	case models.EdgeStatusActive:
		return nil
	case models.EdgeStatusCandidate:
		// fall through to the gate
	default:
		return fmt.Errorf("cannot promote edge in status %q", edge.Status)
	}

	if !edge.MeetsActivationBar(c.cfg.MinSampleSize, c.cfg.MaxPValue) {
		return fmt.Errorf("%w: sample %d, p-value %f", models.ErrInsufficientData,
			edge.DiscoveryStats.SampleSize, edge.DiscoveryStats.PValue)
	}

	now := time.Now().UTC()
	from := edge.Status
	edge.Status = models.EdgeStatusActive
	edge.PromotedAt = &now
	if err := c.edges.Update(ctx, edge); err != nil {
		return fmt.Errorf("failed to promote edge: %w", err)
	}

	c.recordTransition(edge, from, models.EdgeStatusActive, "promotion gate passed")
	return nil
}

// ListActive returns every edge allowed to influence recommendations
// (active plus monitored).
func (c *Catalog) ListActive(ctx context.Context) ([]*models.Edge, error) {
	active, err := c.edges.ListByStatus(ctx, models.EdgeStatusActive)
	if err != nil {
		return nil, err
	}
	monitored, err := c.edges.ListByStatus(ctx, models.EdgeStatusMonitored)
	if err != nil {
		return nil, err
	}
	return append(active, monitored...), nil
}

// ListCandidates returns every edge still awaiting promotion.
func (c *Catalog) ListCandidates(ctx context.Context) ([]*models.Edge, error) {
	return c.edges.ListByStatus(ctx, models.EdgeStatusCandidate)
}

// RecordObservation appends a settled wager to the edge's trailing
// window, recomputes recent stats, and walks the decay state machine:
// active edges whose trailing win rate drops below break-even minus the
// decay margin become monitored; a monitored edge that stays below for a
// full window retires; one that recovers reactivates.
func (c *Catalog) RecordObservation(ctx context.Context, edgeID string, outcome *models.WagerOutcome) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	edge, err := c.edges.GetByID(ctx, edgeID)
	if err != nil {
		return err
	}
	if edge.Status == models.EdgeStatusRetired {
		return fmt.Errorf("edge %s is retired", edgeID)
	}

	outcome.EdgeID = edgeID
	if err := c.edges.AppendObservation(ctx, outcome); err != nil {
		return fmt.Errorf("failed to append observation: %w", err)
	}

	window, err := c.edges.RecentObservations(ctx, edgeID, c.cfg.MonitorWindowGames)
	if err != nil {
		return err
	}
	edge.RecentStats = statsFromWindow(window)

	threshold := models.BreakEvenWinRate(-110) - c.cfg.DecayMargin
	below := edge.RecentStats.WinRate < threshold
	fullWindow := edge.RecentStats.SampleSize >= c.cfg.MonitorWindowGames

	from := edge.Status
	switch {
	case edge.Status == models.EdgeStatusActive && below && fullWindow:
		edge.Status = models.EdgeStatusMonitored
		c.monitorCounts[edge.EdgeID] = 0
	case edge.Status == models.EdgeStatusMonitored && !below:
		edge.Status = models.EdgeStatusActive
		delete(c.monitorCounts, edge.EdgeID)
	case edge.Status == models.EdgeStatusMonitored && below:
		c.monitorCounts[edge.EdgeID]++
		if c.monitorCounts[edge.EdgeID] >= c.cfg.MonitorWindowGames {
			delete(c.monitorCounts, edge.EdgeID)
			return c.retireAndSave(ctx, edge, "trailing win rate decayed below break-even margin")
		}
	}

	if err := c.edges.Update(ctx, edge); err != nil {
		return fmt.Errorf("failed to update edge stats: %w", err)
	}
	if from != edge.Status {
		c.recordTransition(edge, from, edge.Status, "trailing window crossed decay threshold")
	}
	return nil
}

// Retire freezes an edge. Reversible only via a later version bump.
func (c *Catalog) Retire(ctx context.Context, edgeID, reason string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	edge, err := c.edges.GetByID(ctx, edgeID)
	if err != nil {
		return err
	}
	return c.retireAndSave(ctx, edge, reason)
}

func (c *Catalog) retireAndSave(ctx context.Context, edge *models.Edge, reason string) error {
	if edge.Status == models.EdgeStatusRetired {
		return nil
	}
	return c.retireLocked(ctx, edge, reason)
}

// retireLocked performs the transition. Caller holds writeMu.
func (c *Catalog) retireLocked(ctx context.Context, edge *models.Edge, reason string) error {
	now := time.Now().UTC()
	from := edge.Status
	edge.Status = models.EdgeStatusRetired
	edge.RetiredAt = &now
	edge.RetireReason = &reason
	if err := c.edges.Update(ctx, edge); err != nil {
		return fmt.Errorf("failed to retire edge: %w", err)
	}
	c.recordTransition(edge, from, models.EdgeStatusRetired, reason)
	return nil
}

func (c *Catalog) recordTransition(edge *models.Edge, from, to models.EdgeStatus, reason string) {
	metrics.RecordEdgeTransition(string(to))
	c.audit.LogEdgeTransition(edge.EdgeID, string(from), string(to), reason,
		edge.RecentStats.SampleSize, edge.RecentStats.WinRate, edge.RecentStats.PValue)
	c.logger.WithFields(logrus.Fields{
		"edge_id": edge.EdgeID,
		"from":    from,
		"to":      to,
	}).Info("Edge transition")
}

// statsFromWindow recomputes trailing stats from raw observations.
func statsFromWindow(window []*models.WagerOutcome) models.EdgeStats {
	out := models.EdgeStats{SampleSize: len(window)}
	if len(window) == 0 {
		return out
	}

	var profit float64
	for _, obs := range window {
		if obs.Won {
			out.Wins++
		}
		profit += obs.Profit
	}
	out.WinRate = float64(out.Wins) / float64(out.SampleSize)
	out.ROI = profit / float64(out.SampleSize)
	out.PValue = stats.TwoSidedPValue(out.Wins, out.SampleSize)
	out.EffectSize = stats.CohenH(out.WinRate)
	return out
}
