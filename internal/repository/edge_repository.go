package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/yourusername/gridiron-edge/internal/database"
	"github.com/yourusername/gridiron-edge/internal/models"
)

// uniqueViolation is the Postgres error code for a unique constraint
// breach, raised when two writers race on the same predicate lineage.
const uniqueViolation = "23505"

// PostgresEdgeRepository implements EdgeRepository for PostgreSQL
type PostgresEdgeRepository struct {
	db *database.DB
}

// NewPostgresEdgeRepository creates a new edge repository
func NewPostgresEdgeRepository(db *database.DB) EdgeRepository {
	return &PostgresEdgeRepository{db: db}
}

const edgeColumns = `edge_id, predicate, side, status, version, source,
		disc_sample_size, disc_wins, disc_win_rate, disc_roi, disc_p_value, disc_effect_size,
		recent_sample_size, recent_wins, recent_win_rate, recent_roi, recent_p_value, recent_effect_size,
		created_at, promoted_at, retired_at, retire_reason`

func scanEdge(row pgx.Row) (*models.Edge, error) {
	edge := &models.Edge{}
	err := row.Scan(
		&edge.EdgeID, &edge.Predicate, &edge.Side, &edge.Status, &edge.Version, &edge.Source,
		&edge.DiscoveryStats.SampleSize, &edge.DiscoveryStats.Wins, &edge.DiscoveryStats.WinRate,
		&edge.DiscoveryStats.ROI, &edge.DiscoveryStats.PValue, &edge.DiscoveryStats.EffectSize,
		&edge.RecentStats.SampleSize, &edge.RecentStats.Wins, &edge.RecentStats.WinRate,
		&edge.RecentStats.ROI, &edge.RecentStats.PValue, &edge.RecentStats.EffectSize,
		&edge.CreatedAt, &edge.PromotedAt, &edge.RetiredAt, &edge.RetireReason,
	)
	if err == pgx.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan edge: %w", err)
	}
	return edge, nil
}

// Create inserts a new edge row
func (r *PostgresEdgeRepository) Create(ctx context.Context, edge *models.Edge) error {
	if edge.Predicate == "" {
		return models.ErrPredicateRequired
	}

	query := `
		INSERT INTO edges (edge_id, predicate, side, status, version, source,
			disc_sample_size, disc_wins, disc_win_rate, disc_roi, disc_p_value, disc_effect_size,
			recent_sample_size, recent_wins, recent_win_rate, recent_roi, recent_p_value, recent_effect_size)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	_, err := r.db.GetPool().Exec(ctx, query,
		edge.EdgeID, edge.Predicate, edge.Side, edge.Status, edge.Version, edge.Source,
		edge.DiscoveryStats.SampleSize, edge.DiscoveryStats.Wins, edge.DiscoveryStats.WinRate,
		edge.DiscoveryStats.ROI, edge.DiscoveryStats.PValue, edge.DiscoveryStats.EffectSize,
		edge.RecentStats.SampleSize, edge.RecentStats.Wins, edge.RecentStats.WinRate,
		edge.RecentStats.ROI, edge.RecentStats.PValue, edge.RecentStats.EffectSize,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("edge %s: %w", edge.EdgeID, models.ErrDuplicateKey)
		}
		return fmt.Errorf("failed to create edge: %w", err)
	}

	return nil
}

// Update rewrites an edge's lifecycle fields and stats
func (r *PostgresEdgeRepository) Update(ctx context.Context, edge *models.Edge) error {
	query := `
		UPDATE edges SET
			status = $2, promoted_at = $3, retired_at = $4, retire_reason = $5,
			recent_sample_size = $6, recent_wins = $7, recent_win_rate = $8,
			recent_roi = $9, recent_p_value = $10, recent_effect_size = $11
		WHERE edge_id = $1
	`

	commandTag, err := r.db.GetPool().Exec(ctx, query,
		edge.EdgeID, edge.Status, edge.PromotedAt, edge.RetiredAt, edge.RetireReason,
		edge.RecentStats.SampleSize, edge.RecentStats.Wins, edge.RecentStats.WinRate,
		edge.RecentStats.ROI, edge.RecentStats.PValue, edge.RecentStats.EffectSize,
	)
	if err != nil {
		return fmt.Errorf("failed to update edge: %w", err)
	}

	if commandTag.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// GetByID retrieves an edge by its deterministic identifier
func (r *PostgresEdgeRepository) GetByID(ctx context.Context, edgeID string) (*models.Edge, error) {
	query := `SELECT ` + edgeColumns + ` FROM edges WHERE edge_id = $1`
	return scanEdge(r.db.GetPool().QueryRow(ctx, query, edgeID))
}

// ListByStatus retrieves edges in one lifecycle state, oldest first
func (r *PostgresEdgeRepository) ListByStatus(ctx context.Context, status models.EdgeStatus) ([]*models.Edge, error) {
	query := `SELECT ` + edgeColumns + ` FROM edges WHERE status = $1 ORDER BY created_at ASC, edge_id ASC`

	rows, err := r.db.GetPool().Query(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges by status: %w", err)
	}
	defer rows.Close()

	return collectEdges(rows)
}

// ListLatestVersions retrieves the highest version of every predicate
// lineage, including retired ones.
func (r *PostgresEdgeRepository) ListLatestVersions(ctx context.Context) ([]*models.Edge, error) {
	query := `
		SELECT DISTINCT ON (predicate) ` + edgeColumns + `
		FROM edges
		ORDER BY predicate, version DESC, created_at ASC
	`

	rows, err := r.db.GetPool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest edge versions: %w", err)
	}
	defer rows.Close()

	return collectEdges(rows)
}

// AppendObservation appends one settled wager to an edge's trailing window
func (r *PostgresEdgeRepository) AppendObservation(ctx context.Context, obs *models.WagerOutcome) error {
	query := `
		INSERT INTO edge_observations (edge_id, game_id, won, profit, observed_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.GetPool().Exec(ctx, query,
		obs.EdgeID, obs.GameID, obs.Won, obs.Profit, obs.ObservedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append observation: %w", err)
	}

	return nil
}

// RecentObservations retrieves the newest observations for an edge,
// most recent first.
func (r *PostgresEdgeRepository) RecentObservations(ctx context.Context, edgeID string, limit int) ([]*models.WagerOutcome, error) {
	query := `
		SELECT edge_id, game_id, won, profit, observed_at
		FROM edge_observations
		WHERE edge_id = $1
		ORDER BY observed_at DESC
		LIMIT $2
	`

	rows, err := r.db.GetPool().Query(ctx, query, edgeID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	var observations []*models.WagerOutcome
	for rows.Next() {
		obs := &models.WagerOutcome{}
		err := rows.Scan(&obs.EdgeID, &obs.GameID, &obs.Won, &obs.Profit, &obs.ObservedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		observations = append(observations, obs)
	}

	return observations, rows.Err()
}

func collectEdges(rows pgx.Rows) ([]*models.Edge, error) {
	var edges []*models.Edge
	for rows.Next() {
		edge, err := scanEdge(rows)
		if err != nil {
			return nil, err
		}
		edges = append(edges, edge)
	}
	return edges, rows.Err()
}
