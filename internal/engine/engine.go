// Package engine runs the pregame decision pipeline: gather, build,
// classify, match, size, emit. Recommendations are immutable once
// persisted; settlement pairs them with outcomes later.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/gridiron-edge/internal/catalog"
	"github.com/yourusername/gridiron-edge/internal/config"
	"github.com/yourusername/gridiron-edge/internal/features"
	"github.com/yourusername/gridiron-edge/internal/logger"
	"github.com/yourusername/gridiron-edge/internal/metrics"
	"github.com/yourusername/gridiron-edge/internal/model"
	"github.com/yourusername/gridiron-edge/internal/models"
	"github.com/yourusername/gridiron-edge/internal/predicate"
	"github.com/yourusername/gridiron-edge/internal/repository"
)

// Skip reasons, used both as log fields and metric labels.
const (
	SkipNoOdds            = "no_odds"
	SkipNoSideQuote       = "no_side_quote"
	SkipLookAhead         = "look_ahead_violation"
	SkipIncompleteInputs  = "incomplete_inputs"
	SkipInsideKickoffLead = "inside_kickoff_lead"
	SkipBelowEdge         = "below_edge"
	SkipBelowConfidence   = "below_confidence"
)

// matchedEdgeBump is the multiplicative confidence lift per matched
// active edge.
const matchedEdgeBump = 1.05

// maxConfidence caps the post-bump confidence short of certainty.
const maxConfidence = 0.99

// recommendationNamespace seeds the deterministic recommendation IDs so
// replayed runs emit byte-identical rows.
var recommendationNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("gridiron-edge/recommendation"))

// RunResult summarizes one decision run.
type RunResult struct {
	RunID           uuid.UUID
	Evaluated       int
	Skipped         int
	Recommendations []*models.Recommendation
	FailedSources   []string
}

// Engine is the pregame decision core.
type Engine struct {
	cfg        *config.EngineConfig
	provider   InputProvider
	classifier model.Classifier
	catalog    *catalog.Catalog
	games      repository.GameRepository
	recs       repository.RecommendationRepository
	bankroll   repository.BankrollRepository
	log        *logrus.Logger
	decisions  *logger.DecisionLogger

	// clock feeds the kickoff-lead check; replay rewinds it.
	clock func() time.Time
	// persist is disabled during backtests, which keep their own ledger.
	persist bool
}

// New wires a live engine that persists what it emits.
func New(cfg *config.EngineConfig, provider InputProvider, classifier model.Classifier, cat *catalog.Catalog, repos *repository.Repositories, log *logrus.Logger) *Engine {
	return &Engine{
		cfg:        cfg,
		provider:   provider,
		classifier: classifier,
		catalog:    cat,
		games:      repos.Game,
		recs:       repos.Recommendation,
		bankroll:   repos.Bankroll,
		log:        log,
		decisions:  logger.NewDecisionLogger(log),
		clock:      time.Now,
		persist:    true,
	}
}

// NewReplay wires an engine for deterministic replay: same pipeline, no
// persistence, inputs supplied by the caller's provider.
func NewReplay(cfg *config.EngineConfig, provider InputProvider, classifier model.Classifier, cat *catalog.Catalog, log *logrus.Logger) *Engine {
	return &Engine{
		cfg:        cfg,
		provider:   provider,
		classifier: classifier,
		catalog:    cat,
		log:        log,
		decisions:  logger.NewDecisionLogger(log),
		clock:      time.Now,
	}
}

// SetClock overrides the engine's notion of now. Replay moves it to
// each historical evaluation instant.
func (e *Engine) SetClock(clock func() time.Time) {
	e.clock = clock
}

// SetClassifier swaps the classifier. The walk-forward loop installs a
// freshly trained model at each window boundary.
func (e *Engine) SetClassifier(c model.Classifier) {
	e.classifier = c
}

// Run evaluates every upcoming game inside the lookahead window. One
// game's skip never aborts the run; a classifier failure does, because
// a silently degraded model is worse than no recommendations.
func (e *Engine) Run(ctx context.Context) (*RunResult, error) {
	window := time.Duration(e.cfg.LookaheadWindowHours) * time.Hour
	games, err := e.games.GetUpcoming(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming games: %w", err)
	}
	return e.RunGames(ctx, games)
}

// RunGames evaluates the given games in kickoff order.
func (e *Engine) RunGames(ctx context.Context, games []*models.Game) (*RunResult, error) {
	sort.Slice(games, func(i, j int) bool {
		if games[i].Kickoff.Equal(games[j].Kickoff) {
			return games[i].GameID < games[j].GameID
		}
		return games[i].Kickoff.Before(games[j].Kickoff)
	})

	result := &RunResult{RunID: uuid.New()}
	failed := make(map[string]bool)

	active, err := e.catalog.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active edges: %w", err)
	}

	var state *models.BankrollState
	if e.bankroll != nil {
		if state, err = e.bankroll.GetState(ctx); err != nil {
			return nil, fmt.Errorf("failed to load bankroll state: %w", err)
		}
	}

	for _, game := range games {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		rec, skip, err := e.evaluateGame(ctx, result.RunID.String(), game, active, state)
		if err != nil {
			return result, err
		}
		if skip != "" {
			result.Skipped++
			e.decisions.LogGameSkipped(result.RunID.String(), game.GameID, skip)
			metrics.RecordGameSkipped(skip)
			if skip == SkipIncompleteInputs {
				failed[game.GameID] = true
			}
			continue
		}
		result.Evaluated++
		if rec == nil {
			continue
		}
		rec.RunID = result.RunID
		if e.persist {
			if err := e.recs.Create(ctx, rec); err != nil {
				return result, fmt.Errorf("failed to persist recommendation for %s: %w", game.GameID, err)
			}
		}
		result.Recommendations = append(result.Recommendations, rec)
		metrics.RecordRecommendation(string(rec.Tier))
	}

	for id := range failed {
		result.FailedSources = append(result.FailedSources, id)
	}
	sort.Strings(result.FailedSources)
	e.decisions.LogRunSummary(result.RunID.String(), result.Evaluated, result.Skipped,
		len(result.Recommendations), result.FailedSources)
	return result, nil
}

// EvaluateGame runs the full per-game pipeline. It returns a nil
// recommendation with an empty skip reason when the game evaluated
// cleanly but cleared no threshold; a non-empty skip reason when the
// game could not be evaluated at all; and an error only for classifier
// failures, which abort the run.
func (e *Engine) EvaluateGame(ctx context.Context, game *models.Game, active []*models.Edge, state *models.BankrollState) (*models.Recommendation, string, error) {
	return e.evaluateGame(ctx, "", game, active, state)
}

func (e *Engine) evaluateGame(ctx context.Context, runID string, game *models.Game, active []*models.Edge, state *models.BankrollState) (*models.Recommendation, string, error) {
	start := time.Now()
	defer func() {
		metrics.GameEvaluationDuration.Observe(time.Since(start).Seconds())
	}()

	if game.Kickoff.Sub(e.clock()) < e.cfg.KickoffLead() {
		return nil, SkipInsideKickoffLead, nil
	}

	in, odds, err := e.provider.Gather(ctx, game)
	if err != nil {
		e.log.WithError(err).WithField("game_id", game.GameID).Warn("Input gather failed")
		return nil, SkipIncompleteInputs, nil
	}
	if odds == nil || len(odds.Quotes) == 0 {
		e.log.WithError(models.ErrNoOddsAvailable).WithField("game_id", game.GameID).Warn("No odds for game")
		return nil, SkipNoOdds, nil
	}

	asOf := e.provider.AsOf(game)
	fv, err := features.Build(in, asOf)
	if err != nil {
		var violation *models.LookAheadViolation
		if errors.As(err, &violation) {
			metrics.LookAheadViolationsTotal.Inc()
			e.log.WithFields(logrus.Fields{
				"game_id":     game.GameID,
				"field":       violation.Field,
				"source_time": violation.SourceTime,
				"as_of":       violation.AsOf,
			}).Error("Look-ahead violation, dropping game")
			return nil, SkipLookAhead, nil
		}
		return nil, SkipIncompleteInputs, nil
	}

	pHome, err := e.classifier.Predict(ctx, fv)
	if err != nil {
		return nil, "", fmt.Errorf("classifier failed for %s: %w", game.GameID, err)
	}

	matched := matchEdges(active, fv)

	side, sideProb := pickSide(pHome, matched)
	best := odds.BestQuote(side)
	if best == nil {
		return nil, SkipNoSideQuote, nil
	}
	implied := best.ImpliedProbability()
	rawEdge := sideProb - implied

	confidence := sideProb
	for range matched {
		confidence *= matchedEdgeBump
	}
	if confidence > maxConfidence {
		confidence = maxConfidence
	}

	e.decisions.LogGameEvaluation(runID, game.GameID, pHome, implied, rawEdge, confidence,
		len(matched), float64(time.Since(start).Milliseconds()))

	minEdge := e.cfg.MinEdge
	if len(matched) > 0 {
		minEdge = e.cfg.MinEdgeWithMatch
	}
	if rawEdge < minEdge {
		return nil, "", nil
	}
	if confidence < e.cfg.MinConfidence {
		return nil, "", nil
	}

	fraction := stakeFraction(sideProb, best.DecimalOdds.InexactFloat64(), confidence,
		matched, state, e.cfg.StakeCap, e.cfg.StakeFloor)

	hash := fv.SnapshotHash()
	rec := &models.Recommendation{
		ID:                  recommendationID(game.GameID, hash, side),
		GameID:              game.GameID,
		Kickoff:             game.Kickoff,
		Side:                side,
		StakeFraction:       fraction,
		ModelProb:           pHome,
		ImpliedProb:         implied,
		RawEdge:             rawEdge,
		MatchedEdges:        edgeIDs(matched),
		Confidence:          confidence,
		Tier:                models.GradeTier(confidence, rawEdge),
		BestBook:            best.Book,
		BestOdds:            best.AmericanOdds,
		GeneratedAt:         asOf,
		FeatureSnapshotHash: hash,
		StaleInputs:         fv.StaleInputs,
	}
	if state != nil {
		rec.StakeAmount = state.Balance.Mul(decimal.NewFromFloat(fraction)).Round(2)
	}
	return rec, "", nil
}

// matchEdges returns the active edges whose predicates hold on the
// vector. Unparseable catalog rows are skipped rather than trusted.
func matchEdges(active []*models.Edge, fv *models.FeatureVector) []*models.Edge {
	var matched []*models.Edge
	for _, edge := range active {
		p, err := predicate.Parse(edge.Predicate)
		if err != nil {
			continue
		}
		if p.Evaluate(fv) {
			matched = append(matched, edge)
		}
	}
	return matched
}

// pickSide chooses the wager side. The model picks the moneyline
// favorite by its own lights; when every matched moneyline edge agrees
// on the opposite side, the historical evidence overrides the model.
func pickSide(pHome float64, matched []*models.Edge) (models.Side, float64) {
	side := models.SideHome
	prob := pHome
	if pHome < 0.5 {
		side = models.SideAway
		prob = 1 - pHome
	}

	var unanimous models.Side
	for _, e := range matched {
		if e.Side != models.SideHome && e.Side != models.SideAway {
			continue
		}
		if unanimous == "" {
			unanimous = e.Side
			continue
		}
		if unanimous != e.Side {
			unanimous = ""
			break
		}
	}
	if unanimous != "" && unanimous != side {
		side = unanimous
		prob = pHome
		if side == models.SideAway {
			prob = 1 - pHome
		}
	}
	return side, prob
}

func edgeIDs(edges []*models.Edge) []string {
	ids := make([]string, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.EdgeID)
	}
	sort.Strings(ids)
	return ids
}

// recommendationID derives the deterministic identifier so a replayed
// run reproduces identical rows.
func recommendationID(gameID, snapshotHash string, side models.Side) uuid.UUID {
	return uuid.NewSHA1(recommendationNamespace, []byte(gameID+"#"+snapshotHash+"#"+string(side)))
}
