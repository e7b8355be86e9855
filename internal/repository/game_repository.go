package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/yourusername/gridiron-edge/internal/database"
	"github.com/yourusername/gridiron-edge/internal/models"
)

// PostgresGameRepository implements GameRepository for PostgreSQL
type PostgresGameRepository struct {
	db *database.DB
}

// NewPostgresGameRepository creates a new game repository
func NewPostgresGameRepository(db *database.DB) GameRepository {
	return &PostgresGameRepository{db: db}
}

const gameColumns = `game_id, season, week, home_team, away_team, kickoff, stadium,
		status, home_score, away_score, home_margin, created_at, updated_at`

func scanGame(row pgx.Row) (*models.Game, error) {
	game := &models.Game{}
	err := row.Scan(
		&game.GameID, &game.Season, &game.Week, &game.HomeTeam, &game.AwayTeam,
		&game.Kickoff, &game.Stadium, &game.Status, &game.HomeScore, &game.AwayScore,
		&game.HomeMargin, &game.CreatedAt, &game.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan game: %w", err)
	}
	return game, nil
}

// Upsert inserts or refreshes a scheduled game. Completed rows are left
// untouched; the outcome path is AttachOutcome.
func (r *PostgresGameRepository) Upsert(ctx context.Context, game *models.Game) error {
	query := `
		INSERT INTO games (game_id, season, week, home_team, away_team, kickoff, stadium, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (game_id) DO UPDATE SET
			kickoff = EXCLUDED.kickoff,
			stadium = EXCLUDED.stadium,
			status = EXCLUDED.status,
			updated_at = NOW()
		WHERE games.status != 'final'
	`

	_, err := r.db.GetPool().Exec(ctx, query,
		game.GameID, game.Season, game.Week, game.HomeTeam, game.AwayTeam,
		game.Kickoff, game.Stadium, game.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert game: %w", err)
	}

	return nil
}

// GetByID retrieves a game by its composite key
func (r *PostgresGameRepository) GetByID(ctx context.Context, gameID string) (*models.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE game_id = $1`
	return scanGame(r.db.GetPool().QueryRow(ctx, query, gameID))
}

// GetUpcoming retrieves scheduled games kicking off within the window
func (r *PostgresGameRepository) GetUpcoming(ctx context.Context, within time.Duration) ([]*models.Game, error) {
	query := `
		SELECT ` + gameColumns + `
		FROM games
		WHERE status = 'scheduled' AND kickoff > NOW() AND kickoff <= NOW() + $1
		ORDER BY kickoff ASC, game_id ASC
	`

	rows, err := r.db.GetPool().Query(ctx, query, within)
	if err != nil {
		return nil, fmt.Errorf("failed to query upcoming games: %w", err)
	}
	defer rows.Close()

	return collectGames(rows)
}

// GetCompletedBetween retrieves final games with kickoff inside [start, end)
func (r *PostgresGameRepository) GetCompletedBetween(ctx context.Context, start, end time.Time) ([]*models.Game, error) {
	query := `
		SELECT ` + gameColumns + `
		FROM games
		WHERE status = 'final' AND kickoff >= $1 AND kickoff < $2
		ORDER BY kickoff ASC, game_id ASC
	`

	rows, err := r.db.GetPool().Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query completed games: %w", err)
	}
	defer rows.Close()

	return collectGames(rows)
}

// GetCompletedSince retrieves final games from the given season onward
func (r *PostgresGameRepository) GetCompletedSince(ctx context.Context, season int) ([]*models.Game, error) {
	query := `
		SELECT ` + gameColumns + `
		FROM games
		WHERE status = 'final' AND season >= $1
		ORDER BY kickoff ASC, game_id ASC
	`

	rows, err := r.db.GetPool().Query(ctx, query, season)
	if err != nil {
		return nil, fmt.Errorf("failed to query completed games: %w", err)
	}
	defer rows.Close()

	return collectGames(rows)
}

// AttachOutcome writes the final score exactly once. A second attempt on
// the same game returns ErrGameCompleted.
func (r *PostgresGameRepository) AttachOutcome(ctx context.Context, gameID string, homeScore, awayScore int) error {
	query := `
		UPDATE games SET
			status = 'final',
			home_score = $2,
			away_score = $3,
			home_margin = $2 - $3,
			updated_at = NOW()
		WHERE game_id = $1 AND status != 'final'
	`

	commandTag, err := r.db.GetPool().Exec(ctx, query, gameID, homeScore, awayScore)
	if err != nil {
		return fmt.Errorf("failed to attach outcome: %w", err)
	}

	if commandTag.RowsAffected() == 0 {
		existing, getErr := r.GetByID(ctx, gameID)
		if getErr != nil {
			return getErr
		}
		if existing.Status == models.GameStatusFinal {
			return models.ErrGameCompleted
		}
		return models.ErrNotFound
	}

	return nil
}

func collectGames(rows pgx.Rows) ([]*models.Game, error) {
	var games []*models.Game
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, game)
	}
	return games, rows.Err()
}
