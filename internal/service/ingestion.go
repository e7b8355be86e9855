// Package service hosts the daemon's housekeeping workflows: schedule
// and result ingestion, recommendation settlement, closing-line capture
// and usage-ledger mirroring. Everything here runs from scheduler jobs;
// the decision pipeline itself lives in internal/engine.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/gridiron-edge/internal/cache"
	"github.com/yourusername/gridiron-edge/internal/catalog"
	"github.com/yourusername/gridiron-edge/internal/collectors"
	"github.com/yourusername/gridiron-edge/internal/config"
	"github.com/yourusername/gridiron-edge/internal/elo"
	"github.com/yourusername/gridiron-edge/internal/metrics"
	"github.com/yourusername/gridiron-edge/internal/models"
	"github.com/yourusername/gridiron-edge/internal/orchestrator"
	"github.com/yourusername/gridiron-edge/internal/repository"
	"github.com/yourusername/gridiron-edge/internal/stats"
)

// rollingWindowSettles bounds the settled window feeding the rolling
// win-rate estimate once enough history has accrued.
const rollingWindowSettles = 50

// sharpeWeeks is how many trailing weekly ledger buckets feed the
// rolling Sharpe estimate.
const sharpeWeeks = 12

// Fetcher is the slice of the orchestrator the housekeeping workflows
// use.
type Fetcher interface {
	Fetch(ctx context.Context, collectorKey string, req collectors.Request, p orchestrator.Priority) (*orchestrator.Response, error)
	UsageSnapshot() []models.APIUsage
}

// IngestionService keeps the games table, the Elo column, the bankroll
// and the usage ledger current. It is the only live-path writer of the
// bankroll state.
type IngestionService struct {
	fetcher   Fetcher
	history   *cache.HistoryTier
	catalog   *catalog.Catalog
	repos     *repository.Repositories
	engineCfg *config.EngineConfig
	validate  *validator.Validate
	rater     *elo.Rater
	logger    *logrus.Entry
}

// NewIngestionService wires the housekeeping workflows.
func NewIngestionService(fetcher Fetcher, history *cache.HistoryTier, cat *catalog.Catalog, repos *repository.Repositories, engineCfg *config.EngineConfig, log *logrus.Logger) *IngestionService {
	return &IngestionService{
		fetcher:   fetcher,
		history:   history,
		catalog:   cat,
		repos:     repos,
		engineCfg: engineCfg,
		validate:  validator.New(),
		rater:     elo.NewRater(),
		logger:    log.WithField("component", "ingestion"),
	}
}

// SyncWeek pulls one week's slate from the schedule source and folds it
// into the games table. Newly-final games get their outcome attached
// exactly once, followed by the Elo update for both sides.
func (s *IngestionService) SyncWeek(ctx context.Context, season, week int) (int, error) {
	req := collectors.Request{
		Op: "week",
		Params: map[string]string{
			"season": strconv.Itoa(season),
			"week":   strconv.Itoa(week),
		},
	}
	resp, err := s.fetcher.Fetch(ctx, collectors.KeySchedule, req, orchestrator.PriorityNormal)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch schedule for %d week %d: %w", season, week, err)
	}

	var games []*models.Game
	if err := json.Unmarshal(resp.Payload, &games); err != nil {
		return 0, fmt.Errorf("schedule payload malformed: %w", err)
	}

	synced := 0
	for _, game := range games {
		if err := s.validate.Struct(game); err != nil {
			s.logger.WithError(err).WithField("game_id", game.GameID).
				Warn("Discarding schedule row that failed validation")
			continue
		}
		if err := s.syncGame(ctx, game); err != nil {
			return synced, err
		}
		synced++
	}

	s.logger.WithFields(logrus.Fields{
		"season": season,
		"week":   week,
		"games":  synced,
	}).Info("Schedule week synced")
	return synced, nil
}

// syncGame upserts one wire game, attaching the outcome when the stored
// row has not been finalized yet. Completed rows are never rewritten.
func (s *IngestionService) syncGame(ctx context.Context, game *models.Game) error {
	stored, err := s.repos.Game.GetByID(ctx, game.GameID)
	switch {
	case errors.Is(err, models.ErrNotFound):
		stored = nil
	case err != nil:
		return fmt.Errorf("failed to load game %s: %w", game.GameID, err)
	}

	if stored != nil && stored.IsCompleted() {
		return nil
	}

	// Upsert even when the row exists so kickoff moves propagate.
	scheduled := *game
	scheduled.Status = models.GameStatusScheduled
	scheduled.HomeScore, scheduled.AwayScore, scheduled.HomeMargin = nil, nil, nil
	if err := s.repos.Game.Upsert(ctx, &scheduled); err != nil {
		return fmt.Errorf("failed to upsert game %s: %w", game.GameID, err)
	}

	if game.IsCompleted() {
		if err := s.repos.Game.AttachOutcome(ctx, game.GameID, *game.HomeScore, *game.AwayScore); err != nil {
			return fmt.Errorf("failed to attach outcome for %s: %w", game.GameID, err)
		}
		if err := s.applyElo(ctx, game); err != nil {
			return err
		}
	}
	return nil
}

// applyElo folds one final score into both teams' stored ratings.
func (s *IngestionService) applyElo(ctx context.Context, game *models.Game) error {
	home, err := s.repos.Team.GetByCode(ctx, game.HomeTeam)
	if err != nil {
		return fmt.Errorf("failed to load team %s: %w", game.HomeTeam, err)
	}
	away, err := s.repos.Team.GetByCode(ctx, game.AwayTeam)
	if err != nil {
		return fmt.Errorf("failed to load team %s: %w", game.AwayTeam, err)
	}

	newHome, newAway := s.rater.Update(game, home.Elo, away.Elo)
	if err := s.repos.Team.UpdateElo(ctx, game.HomeTeam, newHome); err != nil {
		return fmt.Errorf("failed to update elo for %s: %w", game.HomeTeam, err)
	}
	if err := s.repos.Team.UpdateElo(ctx, game.AwayTeam, newAway); err != nil {
		return fmt.Errorf("failed to update elo for %s: %w", game.AwayTeam, err)
	}

	s.logger.WithFields(logrus.Fields{
		"game_id":  game.GameID,
		"home_elo": newHome,
		"away_elo": newAway,
	}).Debug("Elo ratings updated")
	return nil
}

// SettleDue grades every unsettled recommendation whose game has gone
// final, writes the paired outcome row, moves the bankroll and feeds
// each matched edge its observation. Games still in flight are left for
// the next pass.
func (s *IngestionService) SettleDue(ctx context.Context) (int, error) {
	unsettled, err := s.repos.Recommendation.ListUnsettled(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list unsettled recommendations: %w", err)
	}

	settled := 0
	for _, rec := range unsettled {
		game, err := s.repos.Game.GetByID(ctx, rec.GameID)
		if err != nil {
			return settled, fmt.Errorf("failed to load game %s: %w", rec.GameID, err)
		}
		if !game.IsCompleted() {
			continue
		}
		if err := s.settleOne(ctx, rec, game); err != nil {
			return settled, err
		}
		settled++
	}
	return settled, nil
}

// settleOne grades a single recommendation against the final score.
func (s *IngestionService) settleOne(ctx context.Context, rec *models.Recommendation, game *models.Game) error {
	winner := game.WinningSide()
	push := winner == ""
	won := !push && rec.Side == winner

	profit := decimal.Zero
	if !push {
		if won {
			profit = rec.StakeAmount.Mul(models.DecimalFromAmerican(rec.BestOdds).Sub(decimal.NewFromInt(1))).Round(2)
		} else {
			profit = rec.StakeAmount.Neg()
		}
	}

	closing := s.closingOdds(ctx, game, rec.Side)
	clv := 0.0
	if closing != 0 {
		clv = models.ImpliedProbFromAmerican(closing) - rec.ImpliedProb
	}

	outcome := &models.RecommendationOutcome{
		RecommendationID: rec.ID,
		GameID:           game.GameID,
		Won:              won,
		Push:             push,
		Profit:           profit,
		ClosingOdds:      closing,
		CLV:              clv,
		SettledAt:        time.Now().UTC(),
	}
	if err := s.repos.Recommendation.CreateOutcome(ctx, outcome); err != nil {
		return fmt.Errorf("failed to persist outcome for %s: %w", rec.ID, err)
	}

	if !push {
		if err := s.moveBankroll(ctx, rec, outcome); err != nil {
			return err
		}
	}

	// Edge observations carry flat one-unit profit, not the dollar
	// result of this particular stake, so trailing ROI stays comparable
	// across bankroll sizes and with discovery-fed stats.
	unitProfit := 0.0
	if !push {
		unitProfit = -1.0
		if won {
			unitProfit = models.ProfitAtOdds(rec.BestOdds)
		}
	}
	for _, edgeID := range rec.MatchedEdges {
		obs := &models.WagerOutcome{
			EdgeID:     edgeID,
			GameID:     game.GameID,
			Won:        won,
			Profit:     unitProfit,
			ObservedAt: outcome.SettledAt,
		}
		if err := s.catalog.RecordObservation(ctx, edgeID, obs); err != nil {
			return fmt.Errorf("failed to record edge observation for %s: %w", edgeID, err)
		}
	}

	metrics.RecommendationsSettledTotal.Inc()
	s.logger.WithFields(logrus.Fields{
		"recommendation_id": rec.ID,
		"game_id":           game.GameID,
		"won":               won,
		"push":              push,
		"profit":            profit,
		"clv":               clv,
	}).Info("Recommendation settled")
	return nil
}

// moveBankroll applies one settled result to the singleton state and
// appends the matching ledger row.
func (s *IngestionService) moveBankroll(ctx context.Context, rec *models.Recommendation, outcome *models.RecommendationOutcome) error {
	state, err := s.repos.Bankroll.GetState(ctx)
	if err != nil {
		return fmt.Errorf("failed to load bankroll state: %w", err)
	}

	state.Balance = state.Balance.Add(outcome.Profit)
	if state.Balance.GreaterThan(state.PeakBalance) {
		state.PeakBalance = state.Balance
	}
	state.CurrentDrawdown = state.Drawdown()

	win := 0.0
	if outcome.Won {
		win = 1.0
	}
	if state.SettledCount < rollingWindowSettles {
		n := float64(state.SettledCount)
		state.RollingWinRate = (state.RollingWinRate*n + win) / (n + 1)
	} else {
		alpha := 1.0 / float64(rollingWindowSettles)
		state.RollingWinRate = state.RollingWinRate*(1-alpha) + win*alpha
	}
	state.SettledCount++
	state.RollingSharpe = s.rollingSharpe(ctx, state)
	state.UpdatedAt = time.Now().UTC()

	recID := rec.ID
	entry := &models.LedgerEntry{
		ID:               uuid.New(),
		RecommendationID: &recID,
		Delta:            outcome.Profit,
		Balance:          state.Balance,
		Reason:           "settlement",
		CreatedAt:        state.UpdatedAt,
	}
	if err := s.repos.Bankroll.AppendLedger(ctx, entry); err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	if err := s.repos.Bankroll.SaveState(ctx, state); err != nil {
		return fmt.Errorf("failed to save bankroll state: %w", err)
	}

	balance, _ := state.Balance.Float64()
	metrics.UpdateBankroll(balance, state.RollingWinRate, state.CurrentDrawdown)
	return nil
}

// rollingSharpe estimates the Sharpe ratio over the trailing weekly
// ledger buckets. Weeks with no settles contribute a zero return.
func (s *IngestionService) rollingSharpe(ctx context.Context, state *models.BankrollState) float64 {
	balance, _ := state.Balance.Float64()
	if balance <= 0 {
		return 0
	}

	now := time.Now().UTC()
	returns := make([]float64, 0, sharpeWeeks)
	for i := sharpeWeeks; i > 0; i-- {
		end := now.AddDate(0, 0, -7*(i-1))
		start := end.AddDate(0, 0, -7)
		delta, err := s.repos.Bankroll.LedgerDeltaBetween(ctx, start, end)
		if err != nil {
			s.logger.WithError(err).Warn("Failed to read ledger window for Sharpe estimate")
			return state.RollingSharpe
		}
		returns = append(returns, delta/balance)
	}
	return stats.SharpeRatio(returns)
}

// CaptureClosingLines forces a fresh odds fetch for every game inside
// the kickoff lead so the history tier archives the closing snapshot
// settlement needs for CLV.
func (s *IngestionService) CaptureClosingLines(ctx context.Context) error {
	upcoming, err := s.repos.Game.GetUpcoming(ctx, s.engineCfg.KickoffLead())
	if err != nil {
		return fmt.Errorf("failed to list games near kickoff: %w", err)
	}

	for _, game := range upcoming {
		req := collectors.OddsRequest(game.GameID, game.Kickoff)
		if _, err := s.fetcher.Fetch(ctx, collectors.KeyOdds, req, orchestrator.PriorityCritical); err != nil {
			s.logger.WithError(err).WithField("game_id", game.GameID).
				Warn("Failed to capture closing line")
		}
	}
	return nil
}

// closingOdds reads the last archived quote for the side before kickoff.
func (s *IngestionService) closingOdds(ctx context.Context, game *models.Game, side models.Side) int {
	hash := collectors.Hash(collectors.KeyOdds, collectors.OddsRequest(game.GameID, game.Kickoff))
	entry, err := s.history.LastBefore(ctx, collectors.KeyOdds, hash, game.Kickoff.Add(-48*time.Hour), game.Kickoff)
	if err != nil || entry == nil {
		return 0
	}
	var snapshot models.OddsSnapshot
	if err := json.Unmarshal(entry.Payload, &snapshot); err != nil {
		return 0
	}
	if q := snapshot.BestQuote(side); q != nil {
		return q.AmericanOdds
	}
	return 0
}

// FlushUsage mirrors the in-process budget state into the usage ledger.
func (s *IngestionService) FlushUsage(ctx context.Context) error {
	for _, usage := range s.fetcher.UsageSnapshot() {
		u := usage
		if err := s.repos.APIUsage.Upsert(ctx, &u); err != nil {
			return fmt.Errorf("failed to mirror usage for %s: %w", u.CollectorKey, err)
		}
	}
	return nil
}
