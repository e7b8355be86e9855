package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/yourusername/gridiron-edge/internal/database"
	"github.com/yourusername/gridiron-edge/internal/models"
)

// PostgresRecommendationRepository implements RecommendationRepository
// for PostgreSQL. Rows are append-only; there is deliberately no Update.
type PostgresRecommendationRepository struct {
	db *database.DB
}

// NewPostgresRecommendationRepository creates a new recommendation repository
func NewPostgresRecommendationRepository(db *database.DB) RecommendationRepository {
	return &PostgresRecommendationRepository{db: db}
}

const recommendationColumns = `id, run_id, game_id, kickoff, side, stake_fraction, stake_amount,
		model_prob, implied_prob, raw_edge, matched_edges, confidence, tier,
		best_book, best_odds, generated_at, feature_snapshot_hash, stale_inputs`

func scanRecommendation(row pgx.Row) (*models.Recommendation, error) {
	rec := &models.Recommendation{}
	err := row.Scan(
		&rec.ID, &rec.RunID, &rec.GameID, &rec.Kickoff, &rec.Side, &rec.StakeFraction,
		&rec.StakeAmount, &rec.ModelProb, &rec.ImpliedProb, &rec.RawEdge, &rec.MatchedEdges,
		&rec.Confidence, &rec.Tier, &rec.BestBook, &rec.BestOdds, &rec.GeneratedAt,
		&rec.FeatureSnapshotHash, &rec.StaleInputs,
	)
	if err == pgx.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan recommendation: %w", err)
	}
	return rec, nil
}

// Create inserts an emitted recommendation
func (r *PostgresRecommendationRepository) Create(ctx context.Context, rec *models.Recommendation) error {
	query := `
		INSERT INTO recommendations (` + recommendationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	_, err := r.db.GetPool().Exec(ctx, query,
		rec.ID, rec.RunID, rec.GameID, rec.Kickoff, rec.Side, rec.StakeFraction,
		rec.StakeAmount, rec.ModelProb, rec.ImpliedProb, rec.RawEdge, rec.MatchedEdges,
		rec.Confidence, rec.Tier, rec.BestBook, rec.BestOdds, rec.GeneratedAt,
		rec.FeatureSnapshotHash, rec.StaleInputs,
	)
	if err != nil {
		return fmt.Errorf("failed to create recommendation: %w", err)
	}

	return nil
}

// GetByID retrieves a recommendation by id
func (r *PostgresRecommendationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Recommendation, error) {
	query := `SELECT ` + recommendationColumns + ` FROM recommendations WHERE id = $1`
	return scanRecommendation(r.db.GetPool().QueryRow(ctx, query, id))
}

// ListByRun retrieves every recommendation emitted by one run
func (r *PostgresRecommendationRepository) ListByRun(ctx context.Context, runID uuid.UUID) ([]*models.Recommendation, error) {
	query := `
		SELECT ` + recommendationColumns + `
		FROM recommendations
		WHERE run_id = $1
		ORDER BY kickoff ASC, game_id ASC
	`

	rows, err := r.db.GetPool().Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query recommendations by run: %w", err)
	}
	defer rows.Close()

	return collectRecommendations(rows)
}

// ListUnsettled retrieves recommendations without a paired outcome row
func (r *PostgresRecommendationRepository) ListUnsettled(ctx context.Context) ([]*models.Recommendation, error) {
	query := `
		SELECT ` + prefixColumns("r.", recommendationColumns) + `
		FROM recommendations r
		LEFT JOIN recommendation_outcomes o ON o.recommendation_id = r.id
		WHERE o.recommendation_id IS NULL
		ORDER BY r.kickoff ASC, r.game_id ASC
	`

	rows, err := r.db.GetPool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query unsettled recommendations: %w", err)
	}
	defer rows.Close()

	return collectRecommendations(rows)
}

// CreateOutcome writes the paired settlement record
func (r *PostgresRecommendationRepository) CreateOutcome(ctx context.Context, outcome *models.RecommendationOutcome) error {
	query := `
		INSERT INTO recommendation_outcomes
			(recommendation_id, game_id, won, push, profit, closing_odds, clv, settled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.GetPool().Exec(ctx, query,
		outcome.RecommendationID, outcome.GameID, outcome.Won, outcome.Push,
		outcome.Profit, outcome.ClosingOdds, outcome.CLV, outcome.SettledAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create outcome: %w", err)
	}

	return nil
}

// prefixColumns qualifies a comma-separated column list with a table
// alias for joined queries.
func prefixColumns(prefix, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = prefix + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func collectRecommendations(rows pgx.Rows) ([]*models.Recommendation, error) {
	var recs []*models.Recommendation
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
