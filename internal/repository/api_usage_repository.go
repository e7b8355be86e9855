package repository

import (
	"context"
	"fmt"

	"github.com/yourusername/gridiron-edge/internal/database"
	"github.com/yourusername/gridiron-edge/internal/models"
)

// PostgresAPIUsageRepository implements APIUsageRepository for PostgreSQL
type PostgresAPIUsageRepository struct {
	db *database.DB
}

// NewPostgresAPIUsageRepository creates a new api usage repository
func NewPostgresAPIUsageRepository(db *database.DB) APIUsageRepository {
	return &PostgresAPIUsageRepository{db: db}
}

// Upsert mirrors one collector's live budget counters
func (r *PostgresAPIUsageRepository) Upsert(ctx context.Context, usage *models.APIUsage) error {
	query := `
		INSERT INTO api_usage
			(collector_key, tokens_available, capacity, refill_per_second, last_refill,
			 consecutive_failures, circuit_state, requests_served, requests_denied, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (collector_key) DO UPDATE SET
			tokens_available = EXCLUDED.tokens_available,
			capacity = EXCLUDED.capacity,
			refill_per_second = EXCLUDED.refill_per_second,
			last_refill = EXCLUDED.last_refill,
			consecutive_failures = EXCLUDED.consecutive_failures,
			circuit_state = EXCLUDED.circuit_state,
			requests_served = EXCLUDED.requests_served,
			requests_denied = EXCLUDED.requests_denied,
			updated_at = NOW()
	`

	_, err := r.db.GetPool().Exec(ctx, query,
		usage.CollectorKey, usage.TokensAvailable, usage.Capacity, usage.RefillPerSecond,
		usage.LastRefill, usage.ConsecutiveFailures, usage.CircuitState,
		usage.RequestsServed, usage.RequestsDenied,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert api usage: %w", err)
	}

	return nil
}

// List retrieves every collector's mirrored counters
func (r *PostgresAPIUsageRepository) List(ctx context.Context) ([]*models.APIUsage, error) {
	query := `
		SELECT collector_key, tokens_available, capacity, refill_per_second, last_refill,
			consecutive_failures, circuit_state, requests_served, requests_denied, updated_at
		FROM api_usage
		ORDER BY collector_key ASC
	`

	rows, err := r.db.GetPool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query api usage: %w", err)
	}
	defer rows.Close()

	var usages []*models.APIUsage
	for rows.Next() {
		usage := &models.APIUsage{}
		err := rows.Scan(
			&usage.CollectorKey, &usage.TokensAvailable, &usage.Capacity, &usage.RefillPerSecond,
			&usage.LastRefill, &usage.ConsecutiveFailures, &usage.CircuitState,
			&usage.RequestsServed, &usage.RequestsDenied, &usage.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan api usage: %w", err)
		}
		usages = append(usages, usage)
	}

	return usages, rows.Err()
}
