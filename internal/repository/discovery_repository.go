package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/yourusername/gridiron-edge/internal/database"
	"github.com/yourusername/gridiron-edge/internal/models"
)

// PostgresDiscoveryRepository implements DiscoveryRepository for PostgreSQL
type PostgresDiscoveryRepository struct {
	db *database.DB
}

// NewPostgresDiscoveryRepository creates a new discovery repository
func NewPostgresDiscoveryRepository(db *database.DB) DiscoveryRepository {
	return &PostgresDiscoveryRepository{db: db}
}

// CreateRun inserts a discovery run header
func (r *PostgresDiscoveryRepository) CreateRun(ctx context.Context, run *models.DiscoveryRun) error {
	query := `
		INSERT INTO discovery_runs
			(run_id, started_at, status, templates_total, templates_done, candidates_found, edges_registered)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.GetPool().Exec(ctx, query,
		run.RunID, run.StartedAt, run.Status, run.TemplatesTotal,
		run.TemplatesDone, run.CandidatesFound, run.EdgesRegistered,
	)
	if err != nil {
		return fmt.Errorf("failed to create discovery run: %w", err)
	}

	return nil
}

// UpdateRun rewrites a run's progress counters and status
func (r *PostgresDiscoveryRepository) UpdateRun(ctx context.Context, run *models.DiscoveryRun) error {
	query := `
		UPDATE discovery_runs SET
			completed_at = $2, status = $3, templates_done = $4,
			candidates_found = $5, edges_registered = $6
		WHERE run_id = $1
	`

	commandTag, err := r.db.GetPool().Exec(ctx, query,
		run.RunID, run.CompletedAt, run.Status, run.TemplatesDone,
		run.CandidatesFound, run.EdgesRegistered,
	)
	if err != nil {
		return fmt.Errorf("failed to update discovery run: %w", err)
	}

	if commandTag.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// LatestInterruptedRun retrieves the most recent resumable run, if any
func (r *PostgresDiscoveryRepository) LatestInterruptedRun(ctx context.Context) (*models.DiscoveryRun, error) {
	query := `
		SELECT run_id, started_at, completed_at, status, templates_total,
			templates_done, candidates_found, edges_registered
		FROM discovery_runs
		WHERE status = 'interrupted'
		ORDER BY started_at DESC
		LIMIT 1
	`

	run := &models.DiscoveryRun{}
	err := r.db.GetPool().QueryRow(ctx, query).Scan(
		&run.RunID, &run.StartedAt, &run.CompletedAt, &run.Status, &run.TemplatesTotal,
		&run.TemplatesDone, &run.CandidatesFound, &run.EdgesRegistered,
	)
	if err == pgx.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get interrupted run: %w", err)
	}

	return run, nil
}

// UpsertTemplateProgress records one template's completion inside a run
func (r *PostgresDiscoveryRepository) UpsertTemplateProgress(ctx context.Context, progress *models.TemplateProgress) error {
	query := `
		INSERT INTO discovery_progress
			(run_id, template_name, completed, candidates_found, error, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (run_id, template_name) DO UPDATE SET
			completed = EXCLUDED.completed,
			candidates_found = EXCLUDED.candidates_found,
			error = EXCLUDED.error,
			finished_at = EXCLUDED.finished_at
	`

	_, err := r.db.GetPool().Exec(ctx, query,
		progress.RunID, progress.TemplateName, progress.Completed,
		progress.CandidatesFound, progress.Error, progress.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert template progress: %w", err)
	}

	return nil
}

// TemplateProgress retrieves the per-template progress of one run
func (r *PostgresDiscoveryRepository) TemplateProgress(ctx context.Context, runID uuid.UUID) ([]*models.TemplateProgress, error) {
	query := `
		SELECT run_id, template_name, completed, candidates_found, error, finished_at
		FROM discovery_progress
		WHERE run_id = $1
		ORDER BY template_name ASC
	`

	rows, err := r.db.GetPool().Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query template progress: %w", err)
	}
	defer rows.Close()

	var progress []*models.TemplateProgress
	for rows.Next() {
		p := &models.TemplateProgress{}
		err := rows.Scan(&p.RunID, &p.TemplateName, &p.Completed, &p.CandidatesFound, &p.Error, &p.FinishedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template progress: %w", err)
		}
		progress = append(progress, p)
	}

	return progress, rows.Err()
}
