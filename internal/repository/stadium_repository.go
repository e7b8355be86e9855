package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/yourusername/gridiron-edge/internal/database"
	"github.com/yourusername/gridiron-edge/internal/models"
)

// PostgresStadiumRepository implements StadiumRepository for PostgreSQL
type PostgresStadiumRepository struct {
	db *database.DB
}

// NewPostgresStadiumRepository creates a new stadium repository
func NewPostgresStadiumRepository(db *database.DB) StadiumRepository {
	return &PostgresStadiumRepository{db: db}
}

const stadiumColumns = `name, latitude, longitude, elevation_feet, roof, surface,
		timezone, prevailing_wind, wind_tunnel, swirling_winds`

// Upsert inserts or replaces a venue's reference row
func (r *PostgresStadiumRepository) Upsert(ctx context.Context, stadium *models.Stadium) error {
	query := `
		INSERT INTO stadiums (` + stadiumColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (name) DO UPDATE SET
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			elevation_feet = EXCLUDED.elevation_feet,
			roof = EXCLUDED.roof,
			surface = EXCLUDED.surface,
			timezone = EXCLUDED.timezone,
			prevailing_wind = EXCLUDED.prevailing_wind,
			wind_tunnel = EXCLUDED.wind_tunnel,
			swirling_winds = EXCLUDED.swirling_winds
	`

	_, err := r.db.GetPool().Exec(ctx, query,
		stadium.Name, stadium.Latitude, stadium.Longitude, stadium.ElevationFeet,
		stadium.Roof, stadium.Surface, stadium.Timezone, stadium.PrevailingWind,
		stadium.WindTunnel, stadium.SwirlingWinds,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert stadium: %w", err)
	}

	return nil
}

// GetByName retrieves a stadium by its canonical name
func (r *PostgresStadiumRepository) GetByName(ctx context.Context, name string) (*models.Stadium, error) {
	query := `SELECT ` + stadiumColumns + ` FROM stadiums WHERE name = $1`

	stadium := &models.Stadium{}
	err := r.db.GetPool().QueryRow(ctx, query, name).Scan(
		&stadium.Name, &stadium.Latitude, &stadium.Longitude, &stadium.ElevationFeet,
		&stadium.Roof, &stadium.Surface, &stadium.Timezone, &stadium.PrevailingWind,
		&stadium.WindTunnel, &stadium.SwirlingWinds,
	)
	if err == pgx.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stadium: %w", err)
	}

	return stadium, nil
}

// List retrieves every stadium ordered by name
func (r *PostgresStadiumRepository) List(ctx context.Context) ([]*models.Stadium, error) {
	query := `SELECT ` + stadiumColumns + ` FROM stadiums ORDER BY name ASC`

	rows, err := r.db.GetPool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query stadiums: %w", err)
	}
	defer rows.Close()

	var stadiums []*models.Stadium
	for rows.Next() {
		stadium := &models.Stadium{}
		err := rows.Scan(
			&stadium.Name, &stadium.Latitude, &stadium.Longitude, &stadium.ElevationFeet,
			&stadium.Roof, &stadium.Surface, &stadium.Timezone, &stadium.PrevailingWind,
			&stadium.WindTunnel, &stadium.SwirlingWinds,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stadium: %w", err)
		}
		stadiums = append(stadiums, stadium)
	}

	return stadiums, rows.Err()
}
