package database

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/gridiron-edge/internal/config"
)

// Initialize creates the connection pool and checks that migrations have
// been applied. A missing schema_migrations table is tolerated so a
// fresh checkout can still connect before its first migration run.
func Initialize(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*DB, error) {
	db, err := NewDB(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}

	var migrationCount int
	err = db.pool.QueryRow(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&migrationCount)
	if err != nil {
		logger.Warn("schema_migrations table not found; run database migrations before first use")
		return db, nil
	}

	if migrationCount == 0 {
		logger.Warn("No migrations have been applied. Please run database migrations")
	}

	return db, nil
}
