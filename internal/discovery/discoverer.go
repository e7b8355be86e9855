// Package discovery sweeps the hypothesis space for predicates that
// historically beat the break-even rate, validates them against a
// holdout, and submits survivors to the catalog as candidates. It never
// promotes anything itself.
package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/gridiron-edge/internal/catalog"
	"github.com/yourusername/gridiron-edge/internal/config"
	"github.com/yourusername/gridiron-edge/internal/metrics"
	"github.com/yourusername/gridiron-edge/internal/models"
	"github.com/yourusername/gridiron-edge/internal/predicate"
	"github.com/yourusername/gridiron-edge/internal/reasoning"
	"github.com/yourusername/gridiron-edge/internal/repository"
	"github.com/yourusername/gridiron-edge/internal/stats"
)

// referenceOdds is the standard juice all edges are validated against.
const referenceOdds = -110

// Observation is one historical game with its pregame feature vector,
// built at the same cutoff the live engine would have used.
type Observation struct {
	Vector *models.FeatureVector
	Game   *models.Game
	// TotalLine is the closing total, zero when no line was archived.
	// Totals-side hypotheses skip observations without one.
	TotalLine float64
}

// DatasetProvider loads the historical observation set for a season
// range. A load failure aborts the whole run: a sweep over partial data
// would register edges the full record refutes.
type DatasetProvider interface {
	Load(ctx context.Context, startSeason, endSeason int) ([]Observation, error)
}

// Proposer abstracts the AI hypothesis source.
type Proposer interface {
	Propose(ctx context.Context, n int, activePredicates []string) []reasoning.Proposal
}

// Discoverer runs the sweep.
type Discoverer struct {
	cfg        *config.DiscoveryConfig
	catalogCfg *config.CatalogConfig
	dataset    DatasetProvider
	catalog    *catalog.Catalog
	proposer   Proposer
	runs       repository.DiscoveryRepository
	logger     *logrus.Entry
}

// New wires the discoverer. The proposer may be nil when AI proposals
// are disabled.
func New(cfg *config.DiscoveryConfig, catalogCfg *config.CatalogConfig, dataset DatasetProvider, cat *catalog.Catalog, proposer Proposer, runs repository.DiscoveryRepository, log *logrus.Logger) *Discoverer {
	return &Discoverer{
		cfg:        cfg,
		catalogCfg: catalogCfg,
		dataset:    dataset,
		catalog:    cat,
		proposer:   proposer,
		runs:       runs,
		logger:     log.WithField("component", "discovery"),
	}
}

// candidate is one validated hypothesis awaiting registration.
type candidate struct {
	pred   *predicate.Predicate
	side   models.Side
	stats  models.EdgeStats
	source string
}

// Run executes one sweep, resuming the latest interrupted run if one
// exists. Template panics are contained to the template; a dataset load
// failure fails the run without touching the catalog.
func (d *Discoverer) Run(ctx context.Context) (*models.DiscoveryRun, error) {
	start := time.Now()
	defer func() {
		metrics.DiscoveryRunDuration.Observe(time.Since(start).Seconds())
	}()

	run, done, err := d.resumeOrCreate(ctx)
	if err != nil {
		return nil, err
	}

	endSeason := time.Now().UTC().Year()
	startSeason := endSeason - d.cfg.StartSeasonsBack
	observations, err := d.dataset.Load(ctx, startSeason, endSeason)
	if err != nil {
		d.finishRun(ctx, run, models.DiscoveryRunFailed)
		return run, fmt.Errorf("dataset load failed: %w", err)
	}
	train, holdout := d.split(observations, endSeason)
	d.logger.WithFields(logrus.Fields{
		"run_id":  run.RunID,
		"train":   len(train),
		"holdout": len(holdout),
	}).Info("Discovery sweep starting")

	templates := Templates()
	run.TemplatesTotal = len(templates)

	// Survivors from templates an interrupted pass already finished are
	// in the catalog, not in memory; reload them so interaction mining
	// still conjoins across the whole sweep.
	survivors := d.recoverFiled(ctx, done)

	for _, tmpl := range templates {
		if ctx.Err() != nil {
			d.finishRun(ctx, run, models.DiscoveryRunInterrupted)
			return run, ctx.Err()
		}
		if done[tmpl.Name] {
			run.TemplatesDone++
			continue
		}

		found, sweepErr := d.runTemplate(tmpl, train, holdout)
		if err := d.registerAll(ctx, run, found); err != nil {
			d.finishRun(ctx, run, models.DiscoveryRunInterrupted)
			return run, err
		}
		// Progress is stamped only after the survivors are durably in
		// the catalog, so a resume never skips unrecorded work.
		now := time.Now().UTC()
		progress := &models.TemplateProgress{
			RunID:           run.RunID,
			TemplateName:    tmpl.Name,
			Completed:       true,
			CandidatesFound: len(found),
			Error:           sweepErr,
			FinishedAt:      &now,
		}
		if err := d.runs.UpsertTemplateProgress(ctx, progress); err != nil {
			d.logger.WithError(err).WithField("template", tmpl.Name).Warn("Failed to persist template progress")
		}

		survivors = append(survivors, found...)
		run.TemplatesDone++
		run.CandidatesFound += len(found)
	}

	extra := d.mineInteractions(ctx, survivors, train, holdout)
	extra = append(extra, d.askProposer(ctx, train, holdout)...)
	run.CandidatesFound += len(extra)

	if err := d.registerAll(ctx, run, extra); err != nil {
		d.finishRun(ctx, run, models.DiscoveryRunInterrupted)
		return run, err
	}

	d.finishRun(ctx, run, models.DiscoveryRunCompleted)
	d.logger.WithFields(logrus.Fields{
		"run_id":     run.RunID,
		"candidates": run.CandidatesFound,
		"registered": run.EdgesRegistered,
	}).Info("Discovery sweep completed")
	return run, nil
}

// resumeOrCreate picks up the latest interrupted run, or starts fresh.
func (d *Discoverer) resumeOrCreate(ctx context.Context) (*models.DiscoveryRun, map[string]bool, error) {
	done := make(map[string]bool)

	prior, err := d.runs.LatestInterruptedRun(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check for interrupted runs: %w", err)
	}
	if prior != nil {
		progress, err := d.runs.TemplateProgress(ctx, prior.RunID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load template progress: %w", err)
		}
		for _, p := range progress {
			if p.Completed {
				done[p.TemplateName] = true
			}
		}
		prior.Status = models.DiscoveryRunRunning
		if err := d.runs.UpdateRun(ctx, prior); err != nil {
			return nil, nil, fmt.Errorf("failed to reopen run: %w", err)
		}
		d.logger.WithFields(logrus.Fields{
			"run_id":         prior.RunID,
			"templates_done": len(done),
		}).Info("Resuming interrupted discovery run")
		return prior, done, nil
	}

	run := &models.DiscoveryRun{
		RunID:     uuid.New(),
		StartedAt: time.Now().UTC(),
		Status:    models.DiscoveryRunRunning,
	}
	if err := d.runs.CreateRun(ctx, run); err != nil {
		return nil, nil, fmt.Errorf("failed to create discovery run: %w", err)
	}
	return run, done, nil
}

// runTemplate sweeps one template's grid. A panicking hypothesis is
// logged and reported against the template; the sweep moves on.
func (d *Discoverer) runTemplate(tmpl Template, train, holdout []Observation) (found []candidate, sweepErr *string) {
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("template panicked: %v", r)
			sweepErr = &msg
			d.logger.WithField("template", tmpl.Name).Error(msg)
			found = nil
		}
	}()

	for _, hyp := range tmpl.Hypotheses {
		if st, ok := d.validate(hyp, tmpl.Side, train, holdout); ok {
			found = append(found, candidate{pred: hyp, side: tmpl.Side, stats: st, source: "template:" + tmpl.Name})
		}
	}
	return found, nil
}

// registerAll files candidates with the catalog, counting the ones that
// landed as new edges or version bumps.
func (d *Discoverer) registerAll(ctx context.Context, run *models.DiscoveryRun, cands []candidate) error {
	for _, cand := range cands {
		outcome, _, err := d.catalog.Register(ctx, &catalog.Candidate{
			Predicate: cand.pred,
			Side:      cand.side,
			Stats:     cand.stats,
			Source:    cand.source,
		})
		if err != nil {
			return fmt.Errorf("catalog registration failed: %w", err)
		}
		if outcome == models.RegisterAccepted || outcome == models.RegisterVersionBump {
			run.EdgesRegistered++
		}
	}
	return nil
}

// recoverFiled rebuilds in-memory survivors from catalog candidates
// filed by templates a prior interrupted pass already completed.
func (d *Discoverer) recoverFiled(ctx context.Context, done map[string]bool) []candidate {
	if len(done) == 0 {
		return nil
	}
	filed, err := d.catalog.ListCandidates(ctx)
	if err != nil {
		d.logger.WithError(err).Warn("Failed to reload filed candidates for resume")
		return nil
	}

	var out []candidate
	for _, e := range filed {
		name, ok := strings.CutPrefix(e.Source, "template:")
		if !ok || !done[name] {
			continue
		}
		p, err := predicate.Parse(e.Predicate)
		if err != nil {
			continue
		}
		out = append(out, candidate{pred: p, side: e.Side, stats: e.DiscoveryStats, source: e.Source})
	}
	return out
}

// mineInteractions conjoins surviving predicates pairwise (and deeper,
// up to the configured size) looking for combinations stronger than
// their parts. Conjunctions below the support floor are discarded
// before any significance test.
func (d *Discoverer) mineInteractions(ctx context.Context, base []candidate, train, holdout []Observation) []candidate {
	var found []candidate
	seen := make(map[string]bool)
	for _, c := range base {
		seen[c.pred.Canonical()] = true
	}

	level := base
	for depth := 2; depth <= d.cfg.MaxInteractionSize; depth++ {
		var next []candidate
		for _, left := range level {
			if ctx.Err() != nil {
				return found
			}
			for _, right := range base {
				if left.side != right.side {
					continue
				}
				combined := predicate.Conjoin(left.pred, right.pred)
				canonical := combined.Canonical()
				if seen[canonical] {
					continue
				}
				seen[canonical] = true

				if d.support(combined, train) < d.cfg.MinSupport {
					continue
				}
				st, ok := d.validate(combined, left.side, train, holdout)
				if !ok {
					continue
				}
				// Interactions must beat both parents, or they are
				// just narrower restatements.
				if st.WinRate <= left.stats.WinRate || st.WinRate <= right.stats.WinRate {
					continue
				}
				cand := candidate{pred: combined, side: left.side, stats: st, source: "interaction"}
				found = append(found, cand)
				next = append(next, cand)
			}
		}
		level = next
	}
	return found
}

// askProposer requests AI hypotheses and validates them exactly like
// grid candidates. A dead proposer contributes nothing.
func (d *Discoverer) askProposer(ctx context.Context, train, holdout []Observation) []candidate {
	if d.proposer == nil || d.cfg.AIProposalsPerRun <= 0 {
		return nil
	}

	known := make([]string, 0)
	if active, err := d.catalog.ListActive(ctx); err == nil {
		for _, e := range active {
			known = append(known, e.Predicate)
		}
	}

	var found []candidate
	for _, prop := range d.proposer.Propose(ctx, d.cfg.AIProposalsPerRun, known) {
		if st, ok := d.validate(prop.Predicate, prop.Side, train, holdout); ok {
			found = append(found, candidate{pred: prop.Predicate, side: prop.Side, stats: st, source: "ai_proposal"})
		}
	}
	return found
}

// split partitions observations into train and holdout by season: the
// most recent HoldoutSeasons seasons are never used for selection.
func (d *Discoverer) split(observations []Observation, endSeason int) (train, holdout []Observation) {
	cutoff := endSeason - d.cfg.HoldoutSeasons
	for _, obs := range observations {
		if obs.Game.Season > cutoff {
			holdout = append(holdout, obs)
		} else {
			train = append(train, obs)
		}
	}
	return train, holdout
}

// support counts training observations the predicate selects.
func (d *Discoverer) support(p *predicate.Predicate, train []Observation) int {
	n := 0
	for _, obs := range train {
		if p.Evaluate(obs.Vector) {
			n++
		}
	}
	return n
}

// validate applies the statistical gate: enough selected games, a
// training win rate significantly above coin-flip noise and clear of
// the juice, and a holdout that does not refute it.
func (d *Discoverer) validate(p *predicate.Predicate, side models.Side, train, holdout []Observation) (models.EdgeStats, bool) {
	wins, n := d.record(p, side, train)
	if n < d.catalogCfg.MinSampleSize {
		return models.EdgeStats{}, false
	}

	winRate := float64(wins) / float64(n)
	breakEven := models.BreakEvenWinRate(referenceOdds)
	if winRate <= breakEven {
		return models.EdgeStats{}, false
	}

	pValue := stats.TwoSidedPValue(wins, n)
	if pValue >= d.cfg.MaxPValue {
		return models.EdgeStats{}, false
	}

	holdWins, holdN := d.record(p, side, holdout)
	if holdN == 0 || float64(holdWins)/float64(holdN) < breakEven {
		return models.EdgeStats{}, false
	}

	return models.EdgeStats{
		SampleSize: n,
		Wins:       wins,
		WinRate:    winRate,
		ROI:        stats.FlatROI(winRate, models.ProfitAtOdds(referenceOdds)),
		PValue:     pValue,
		EffectSize: stats.CohenH(winRate),
	}, true
}

// record tallies the side's settled record over the observations the
// predicate selects. Pushes and unsettled games are excluded.
func (d *Discoverer) record(p *predicate.Predicate, side models.Side, observations []Observation) (wins, n int) {
	for _, obs := range observations {
		if !p.Evaluate(obs.Vector) {
			continue
		}
		won, counted := settle(obs, side)
		if !counted {
			continue
		}
		n++
		if won {
			wins++
		}
	}
	return wins, n
}

// settle resolves one observation for a side. The second return is
// false for pushes, missing lines and incomplete games.
func settle(obs Observation, side models.Side) (won, counted bool) {
	if !obs.Game.IsCompleted() {
		return false, false
	}
	switch side {
	case models.SideHome, models.SideAway:
		winner := obs.Game.WinningSide()
		if winner == "" {
			return false, false
		}
		return winner == side, true
	case models.SideOver, models.SideUnder:
		if obs.TotalLine <= 0 {
			return false, false
		}
		total := float64(obs.Game.TotalPoints())
		if total == obs.TotalLine {
			return false, false
		}
		if side == models.SideOver {
			return total > obs.TotalLine, true
		}
		return total < obs.TotalLine, true
	default:
		return false, false
	}
}

// finishRun stamps the terminal status. Persistence failures here are
// logged, not propagated: the sweep's work is already in the catalog.
func (d *Discoverer) finishRun(ctx context.Context, run *models.DiscoveryRun, status models.DiscoveryRunStatus) {
	now := time.Now().UTC()
	run.Status = status
	if status == models.DiscoveryRunCompleted || status == models.DiscoveryRunFailed {
		run.CompletedAt = &now
	}
	if err := d.runs.UpdateRun(ctx, run); err != nil {
		d.logger.WithError(err).Warn("Failed to persist discovery run status")
	}
}
