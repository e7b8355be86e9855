// Package backtest replays the decision pipeline over historical
// windows with walk-forward retraining and strict no-look-ahead
// discipline, settles what it would have wagered, and feeds strong
// result slices back to the catalog as candidates.
package backtest

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
	"github.com/yourusername/gridiron-edge/internal/engine"
	"github.com/yourusername/gridiron-edge/internal/features"
	"github.com/yourusername/gridiron-edge/internal/metrics"
	"github.com/yourusername/gridiron-edge/internal/model"
	"github.com/yourusername/gridiron-edge/internal/models"
	"github.com/yourusername/gridiron-edge/internal/stats"
)

// settleLag is how long after kickoff a game is assumed to have gone
// final. A game whose kickoff plus this lag has not passed yet is still
// being played and its outcome is not knowable.
const settleLag = 4 * time.Hour

// GameRecord is one historical game with everything the engine would
// have seen pregame: inputs as of the evaluation cutoff, the odds
// snapshot observed then, and the closing line for CLV.
type GameRecord struct {
	Game        *models.Game
	Inputs      *features.Inputs
	Odds        *models.OddsSnapshot
	ClosingOdds map[models.Side]int
	TotalLine   float64
}

// HistorySource loads game records for a window, typically from the
// cache history tier and the games table.
type HistorySource interface {
	Records(ctx context.Context, start, end time.Time) ([]*GameRecord, error)
}

// Settlement pairs an emitted recommendation with its scored outcome
// and the feature vector it was built from.
type Settlement struct {
	Recommendation *models.Recommendation
	Outcome        *models.RecommendationOutcome
	Vector         *models.FeatureVector
	Push           bool
}

// Result is one completed backtest.
type Result struct {
	Recommendations []*models.Recommendation
	Settled         []Settlement
	Ledger          []*models.LedgerEntry
	FinalState      *models.BankrollState

	WinRate     float64
	ROI         float64
	Sharpe      float64
	MaxDrawdown float64
	AvgCLV      float64

	// CandidatesSubmitted counts pattern slices handed to the catalog.
	CandidatesSubmitted int
}

// Backtester walks the configured window.
type Backtester struct {
	cfg       *config.BacktestConfig
	engineCfg *config.EngineConfig
	modelCfg  *config.ModelConfig
	history   HistorySource
	catalog   *catalog.Catalog
	logger    *logrus.Entry
	base      *logrus.Logger
}

// New wires a backtester.
func New(cfg *config.BacktestConfig, engineCfg *config.EngineConfig, modelCfg *config.ModelConfig, history HistorySource, cat *catalog.Catalog, log *logrus.Logger) *Backtester {
	return &Backtester{
		cfg:       cfg,
		engineCfg: engineCfg,
		modelCfg:  modelCfg,
		history:   history,
		catalog:   cat,
		logger:    log.WithField("component", "backtest"),
		base:      log,
	}
}

// recordProvider serves one record at a time to the replay engine.
type recordProvider struct {
	current *GameRecord
	cutoff  time.Duration
}

func (p *recordProvider) Gather(ctx context.Context, game *models.Game) (*features.Inputs, *models.OddsSnapshot, error) {
	return p.current.Inputs, p.current.Odds, nil
}

func (p *recordProvider) AsOf(game *models.Game) time.Time {
	return game.Kickoff.Add(-p.cutoff)
}

// Run executes the walk-forward loop. Everything downstream of the
// record set is deterministic, so identical inputs reproduce identical
// recommendations byte for byte.
func (b *Backtester) Run(ctx context.Context) (*Result, error) {
	started := time.Now()
	defer func() {
		metrics.BacktestDuration.Observe(time.Since(started).Seconds())
	}()

	start, err := time.Parse("2006-01-02", b.cfg.StartDate)
	if err != nil {
		return nil, fmt.Errorf("bad start date: %w", err)
	}
	end, err := time.Parse("2006-01-02", b.cfg.EndDate)
	if err != nil {
		return nil, fmt.Errorf("bad end date: %w", err)
	}

	trainStart := start.AddDate(-b.cfg.TrainYears, 0, 0)
	records, err := b.history.Records(ctx, trainStart, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Game.Kickoff.Equal(records[j].Game.Kickoff) {
			return records[i].Game.GameID < records[j].Game.GameID
		}
		return records[i].Game.Kickoff.Before(records[j].Game.Kickoff)
	})

	cutoff := b.engineCfg.KickoffLead()
	vectors := b.buildVectors(records, cutoff)

	result := &Result{
		FinalState: &models.BankrollState{
			Balance:     decimal.NewFromFloat(b.cfg.InitialBankroll),
			PeakBalance: decimal.NewFromFloat(b.cfg.InitialBankroll),
		},
	}

	provider := &recordProvider{cutoff: cutoff}
	eng := engine.NewReplay(b.engineCfg, provider, nil, b.catalog, b.base)

	ledgerSeq := 0
	var recentResults []bool
	weeklyProfit := make(map[string]float64)
	equity := []float64{b.cfg.InitialBankroll}
	var totalStaked, totalProfit, totalCLV float64
	wins, losses := 0, 0

	for t := start; t.Before(end); t = t.AddDate(b.cfg.ValidateYears, 0, 0) {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		windowEnd := t.AddDate(b.cfg.ValidateYears, 0, 0)
		if windowEnd.After(end) {
			windowEnd = end
		}

		clf, err := b.trainAt(records, vectors, t)
		if err != nil {
			if errors.Is(err, models.ErrInsufficientData) {
				b.logger.WithField("window_start", t).Warn("No training data for window, skipping")
				continue
			}
			return result, err
		}

		active, err := b.activeAt(ctx, t)
		if err != nil {
			return result, err
		}

		for _, rec := range records {
			k := rec.Game.Kickoff
			if k.Before(t) || !k.Before(windowEnd) || !rec.Game.IsCompleted() {
				continue
			}
			fv := vectors[rec.Game.GameID]
			if fv == nil || rec.Odds == nil {
				continue
			}

			provider.current = rec
			asOf := provider.AsOf(rec.Game)
			eng.SetClock(func() time.Time { return asOf })

			recommendation, skip, err := evalWith(ctx, eng, clf, rec.Game, active, result.FinalState)
			if err != nil {
				return result, err
			}
			if skip != "" || recommendation == nil {
				continue
			}
			result.Recommendations = append(result.Recommendations, recommendation)

			settlement := b.settle(recommendation, rec, fv)
			result.Settled = append(result.Settled, settlement)

			profit, _ := settlement.Outcome.Profit.Float64()
			stake, _ := recommendation.StakeAmount.Float64()
			totalStaked += stake
			totalProfit += profit
			totalCLV += settlement.Outcome.CLV
			if !settlement.Push {
				if settlement.Outcome.Won {
					wins++
				} else {
					losses++
				}
				recentResults = append(recentResults, settlement.Outcome.Won)
				if len(recentResults) > b.cfg.RollingWindowBets {
					recentResults = recentResults[1:]
				}
			}

			b.applyToBankroll(result, settlement, recentResults, weeklyProfit, &ledgerSeq)
			balance, _ := result.FinalState.Balance.Float64()
			equity = append(equity, balance)
		}
	}

	b.aggregate(result, wins, losses, totalStaked, totalProfit, totalCLV, weeklyProfit, equity)

	submitted, err := b.submitPatternSlices(ctx, result)
	if err != nil {
		return result, err
	}
	result.CandidatesSubmitted = submitted

	b.logger.WithFields(logrus.Fields{
		"recommendations": len(result.Recommendations),
		"win_rate":        result.WinRate,
		"roi":             result.ROI,
		"max_drawdown":    result.MaxDrawdown,
		"candidates":      result.CandidatesSubmitted,
	}).Info("Backtest completed")
	return result, nil
}

// evalWith swaps the window's classifier into the evaluation.
func evalWith(ctx context.Context, eng *engine.Engine, clf model.Classifier, game *models.Game, active []*models.Edge, state *models.BankrollState) (*models.Recommendation, string, error) {
	eng.SetClassifier(clf)
	return eng.EvaluateGame(ctx, game, active, state)
}

// buildVectors precomputes each game's pregame vector. Records whose
// inputs violate the look-ahead invariant are dropped: corrupted
// history must not leak into training or scoring.
func (b *Backtester) buildVectors(records []*GameRecord, cutoff time.Duration) map[string]*models.FeatureVector {
	vectors := make(map[string]*models.FeatureVector, len(records))
	for _, rec := range records {
		fv, err := features.Build(rec.Inputs, rec.Game.Kickoff.Add(-cutoff))
		if err != nil {
			if models.IsLookAheadViolation(err) {
				metrics.LookAheadViolationsTotal.Inc()
			}
			b.logger.WithError(err).WithField("game_id", rec.Game.GameID).Warn("Dropping record")
			continue
		}
		vectors[rec.Game.GameID] = fv
	}
	return vectors
}

// trainAt fits the window classifier on games completed strictly
// before t, bounded by the training horizon. A game kicking off within
// settleLag of t was still on the field at retrain time, so its outcome
// is excluded even when the dataset already carries the final score.
func (b *Backtester) trainAt(records []*GameRecord, vectors map[string]*models.FeatureVector, t time.Time) (*model.LogisticClassifier, error) {
	horizon := t.AddDate(-b.cfg.TrainYears, 0, 0)
	var samples []model.Sample
	for _, rec := range records {
		if !rec.Game.IsCompleted() {
			continue
		}
		if rec.Game.Kickoff.Before(horizon) || !rec.Game.Kickoff.Add(settleLag).Before(t) {
			continue
		}
		fv := vectors[rec.Game.GameID]
		if fv == nil {
			continue
		}
		samples = append(samples, model.Sample{Features: fv, HomeWon: rec.Game.HomeWon()})
	}
	return model.TrainLogistic(samples, b.modelCfg)
}

// activeAt returns the edges promoted at or before t. Later promotions
// did not exist yet and must not influence the replay.
func (b *Backtester) activeAt(ctx context.Context, t time.Time) ([]*models.Edge, error) {
	active, err := b.catalog.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active edges: %w", err)
	}
	var eligible []*models.Edge
	for _, e := range active {
		if e.PromotedAt != nil && !e.PromotedAt.After(t) {
			eligible = append(eligible, e)
		}
	}
	return eligible, nil
}

// settle scores one recommendation against the actual result.
func (b *Backtester) settle(rec *models.Recommendation, record *GameRecord, fv *models.FeatureVector) Settlement {
	won, push := resolve(rec.Side, record)

	profit := decimal.Zero
	switch {
	case push:
	case won:
		profit = rec.StakeAmount.Mul(models.DecimalFromAmerican(rec.BestOdds).Sub(decimal.NewFromInt(1)))
	default:
		profit = rec.StakeAmount.Neg()
	}

	closing, haveClosing := record.ClosingOdds[rec.Side]
	clv := 0.0
	if haveClosing {
		clv = models.ImpliedProbFromAmerican(closing) - models.ImpliedProbFromAmerican(rec.BestOdds)
	}

	return Settlement{
		Recommendation: rec,
		Vector:         fv,
		Push:           push,
		Outcome: &models.RecommendationOutcome{
			RecommendationID: rec.ID,
			GameID:           rec.GameID,
			Won:              won,
			Push:             push,
			Profit:           profit.Round(2),
			ClosingOdds:      closing,
			CLV:              clv,
			SettledAt:        record.Game.Kickoff.Add(settleLag),
		},
	}
}

// resolve grades a side against the final score.
func resolve(side models.Side, record *GameRecord) (won, push bool) {
	game := record.Game
	switch side {
	case models.SideHome, models.SideAway:
		winner := game.WinningSide()
		if winner == "" {
			return false, true
		}
		return winner == side, false
	case models.SideOver, models.SideUnder:
		if record.TotalLine <= 0 {
			return false, true
		}
		total := float64(game.TotalPoints())
		if total == record.TotalLine {
			return false, true
		}
		if side == models.SideOver {
			return total > record.TotalLine, false
		}
		return total < record.TotalLine, false
	default:
		return false, true
	}
}

// applyToBankroll is the single writer for simulated bankroll state:
// balance, peak, drawdown, rolling window, and the append-only ledger.
func (b *Backtester) applyToBankroll(result *Result, s Settlement, recent []bool, weeklyProfit map[string]float64, seq *int) {
	state := result.FinalState
	state.Balance = state.Balance.Add(s.Outcome.Profit)
	if state.Balance.GreaterThan(state.PeakBalance) {
		state.PeakBalance = state.Balance
	}
	state.CurrentDrawdown = state.Drawdown()
	state.SettledCount++
	state.UpdatedAt = s.Outcome.SettledAt

	recentWins := 0
	for _, w := range recent {
		if w {
			recentWins++
		}
	}
	if len(recent) > 0 {
		state.RollingWinRate = float64(recentWins) / float64(len(recent))
	}

	profit, _ := s.Outcome.Profit.Float64()
	year, week := s.Recommendation.Kickoff.ISOWeek()
	weeklyProfit[fmt.Sprintf("%04d-%02d", year, week)] += profit
	state.RollingSharpe = sharpeFromWeekly(weeklyProfit, b.cfg.InitialBankroll)

	*seq++
	recID := s.Recommendation.ID
	result.Ledger = append(result.Ledger, &models.LedgerEntry{
		ID:               uuid.NewSHA1(recID, []byte(fmt.Sprintf("settlement-%d", *seq))),
		RecommendationID: &recID,
		Delta:            s.Outcome.Profit,
		Balance:          state.Balance,
		Reason:           "settlement",
		CreatedAt:        s.Outcome.SettledAt,
	})
}

// aggregate fills the run-level performance metrics.
func (b *Backtester) aggregate(result *Result, wins, losses int, totalStaked, totalProfit, totalCLV float64, weeklyProfit map[string]float64, equity []float64) {
	decided := wins + losses
	if decided > 0 {
		result.WinRate = float64(wins) / float64(decided)
	}
	if totalStaked > 0 {
		result.ROI = totalProfit / totalStaked
	}
	if len(result.Settled) > 0 {
		result.AvgCLV = totalCLV / float64(len(result.Settled))
	}
	result.Sharpe = sharpeFromWeekly(weeklyProfit, b.cfg.InitialBankroll)
	result.MaxDrawdown = stats.MaxDrawdown(equity)
}
