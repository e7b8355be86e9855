package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/yourusername/gridiron-edge/internal/database"
	"github.com/yourusername/gridiron-edge/internal/models"
)

// PostgresBankrollRepository implements BankrollRepository for
// PostgreSQL. The state table holds one row; the ledger is append-only.
type PostgresBankrollRepository struct {
	db *database.DB
}

// NewPostgresBankrollRepository creates a new bankroll repository
func NewPostgresBankrollRepository(db *database.DB) BankrollRepository {
	return &PostgresBankrollRepository{db: db}
}

// GetState retrieves the bankroll singleton
func (r *PostgresBankrollRepository) GetState(ctx context.Context) (*models.BankrollState, error) {
	query := `
		SELECT balance, peak_balance, rolling_win_rate, rolling_sharpe,
			current_drawdown, aggression_multiplier, settled_count, updated_at
		FROM bankroll_state WHERE id = 1
	`

	state := &models.BankrollState{}
	err := r.db.GetPool().QueryRow(ctx, query).Scan(
		&state.Balance, &state.PeakBalance, &state.RollingWinRate, &state.RollingSharpe,
		&state.CurrentDrawdown, &state.AggressionMultiplier, &state.SettledCount, &state.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bankroll state: %w", err)
	}

	return state, nil
}

// SaveState writes the bankroll singleton
func (r *PostgresBankrollRepository) SaveState(ctx context.Context, state *models.BankrollState) error {
	query := `
		INSERT INTO bankroll_state
			(id, balance, peak_balance, rolling_win_rate, rolling_sharpe,
			 current_drawdown, aggression_multiplier, settled_count, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (id) DO UPDATE SET
			balance = EXCLUDED.balance,
			peak_balance = EXCLUDED.peak_balance,
			rolling_win_rate = EXCLUDED.rolling_win_rate,
			rolling_sharpe = EXCLUDED.rolling_sharpe,
			current_drawdown = EXCLUDED.current_drawdown,
			aggression_multiplier = EXCLUDED.aggression_multiplier,
			settled_count = EXCLUDED.settled_count,
			updated_at = NOW()
	`

	_, err := r.db.GetPool().Exec(ctx, query,
		state.Balance, state.PeakBalance, state.RollingWinRate, state.RollingSharpe,
		state.CurrentDrawdown, state.AggressionMultiplier, state.SettledCount,
	)
	if err != nil {
		return fmt.Errorf("failed to save bankroll state: %w", err)
	}

	return nil
}

// AppendLedger appends one bankroll movement
func (r *PostgresBankrollRepository) AppendLedger(ctx context.Context, entry *models.LedgerEntry) error {
	query := `
		INSERT INTO bankroll_ledger (id, recommendation_id, delta, balance, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.GetPool().Exec(ctx, query,
		entry.ID, entry.RecommendationID, entry.Delta, entry.Balance, entry.Reason, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}

	return nil
}

// LedgerDeltaBetween sums ledger movements inside [start, end)
func (r *PostgresBankrollRepository) LedgerDeltaBetween(ctx context.Context, start, end time.Time) (float64, error) {
	query := `
		SELECT COALESCE(SUM(delta), 0)
		FROM bankroll_ledger
		WHERE created_at >= $1 AND created_at < $2
	`

	var delta float64
	err := r.db.GetPool().QueryRow(ctx, query, start, end).Scan(&delta)
	if err != nil {
		return 0, fmt.Errorf("failed to sum ledger delta: %w", err)
	}

	return delta, nil
}
