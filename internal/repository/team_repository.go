package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/yourusername/gridiron-edge/internal/database"
	"github.com/yourusername/gridiron-edge/internal/models"
)

// PostgresTeamRepository implements TeamRepository for PostgreSQL
type PostgresTeamRepository struct {
	db *database.DB
}

// NewPostgresTeamRepository creates a new team repository
func NewPostgresTeamRepository(db *database.DB) TeamRepository {
	return &PostgresTeamRepository{db: db}
}

// Upsert inserts or refreshes a team's alignment row. Elo is only seeded
// on insert; rating updates go through UpdateElo.
func (r *PostgresTeamRepository) Upsert(ctx context.Context, team *models.Team) error {
	query := `
		INSERT INTO teams (code, name, conference, division, elo)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name,
			conference = EXCLUDED.conference,
			division = EXCLUDED.division,
			updated_at = NOW()
	`

	_, err := r.db.GetPool().Exec(ctx, query,
		team.Code, team.Name, team.Conference, team.Division, team.Elo,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert team: %w", err)
	}

	return nil
}

// GetByCode retrieves a team by its code
func (r *PostgresTeamRepository) GetByCode(ctx context.Context, code string) (*models.Team, error) {
	query := `
		SELECT code, name, conference, division, elo, updated_at
		FROM teams WHERE code = $1
	`

	team := &models.Team{}
	err := r.db.GetPool().QueryRow(ctx, query, code).Scan(
		&team.Code, &team.Name, &team.Conference, &team.Division, &team.Elo, &team.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team: %w", err)
	}

	return team, nil
}

// List retrieves every team ordered by code
func (r *PostgresTeamRepository) List(ctx context.Context) ([]*models.Team, error) {
	query := `
		SELECT code, name, conference, division, elo, updated_at
		FROM teams ORDER BY code ASC
	`

	rows, err := r.db.GetPool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query teams: %w", err)
	}
	defer rows.Close()

	var teams []*models.Team
	for rows.Next() {
		team := &models.Team{}
		err := rows.Scan(
			&team.Code, &team.Name, &team.Conference, &team.Division, &team.Elo, &team.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, team)
	}

	return teams, rows.Err()
}

// UpdateElo writes a team's new rating after a completed game
func (r *PostgresTeamRepository) UpdateElo(ctx context.Context, code string, elo float64) error {
	query := `UPDATE teams SET elo = $2, updated_at = NOW() WHERE code = $1`

	commandTag, err := r.db.GetPool().Exec(ctx, query, code, elo)
	if err != nil {
		return fmt.Errorf("failed to update elo: %w", err)
	}

	if commandTag.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}
