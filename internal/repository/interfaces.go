// Package repository provides Postgres-backed persistence for the
// catalog store, game history, recommendations and the bankroll ledger.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/yourusername/gridiron-edge/internal/models"
)

// GameRepository manages game rows. Completed games are immutable; only
// AttachOutcome may touch them, once.
type GameRepository interface {
	Upsert(ctx context.Context, game *models.Game) error
	GetByID(ctx context.Context, gameID string) (*models.Game, error)
	GetUpcoming(ctx context.Context, within time.Duration) ([]*models.Game, error)
	GetCompletedBetween(ctx context.Context, start, end time.Time) ([]*models.Game, error)
	GetCompletedSince(ctx context.Context, season int) ([]*models.Game, error)
	AttachOutcome(ctx context.Context, gameID string, homeScore, awayScore int) error
}

// StadiumRepository manages static venue reference data
type StadiumRepository interface {
	Upsert(ctx context.Context, stadium *models.Stadium) error
	GetByName(ctx context.Context, name string) (*models.Stadium, error)
	List(ctx context.Context) ([]*models.Stadium, error)
}

// TeamRepository manages team alignment and Elo ratings
type TeamRepository interface {
	Upsert(ctx context.Context, team *models.Team) error
	GetByCode(ctx context.Context, code string) (*models.Team, error)
	List(ctx context.Context) ([]*models.Team, error)
	UpdateElo(ctx context.Context, code string, elo float64) error
}

// EdgeRepository persists the edge catalog. All writes go through the
// catalog's single-writer path.
type EdgeRepository interface {
	Create(ctx context.Context, edge *models.Edge) error
	Update(ctx context.Context, edge *models.Edge) error
	GetByID(ctx context.Context, edgeID string) (*models.Edge, error)
	ListByStatus(ctx context.Context, status models.EdgeStatus) ([]*models.Edge, error)
	ListLatestVersions(ctx context.Context) ([]*models.Edge, error)
	AppendObservation(ctx context.Context, obs *models.WagerOutcome) error
	RecentObservations(ctx context.Context, edgeID string, limit int) ([]*models.WagerOutcome, error)
}

// RecommendationRepository persists emitted recommendations and their
// paired settlement outcomes. Recommendations are never updated.
type RecommendationRepository interface {
	Create(ctx context.Context, rec *models.Recommendation) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Recommendation, error)
	ListByRun(ctx context.Context, runID uuid.UUID) ([]*models.Recommendation, error)
	ListUnsettled(ctx context.Context) ([]*models.Recommendation, error)
	CreateOutcome(ctx context.Context, outcome *models.RecommendationOutcome) error
}

// BankrollRepository manages the bankroll singleton and its append-only
// ledger.
type BankrollRepository interface {
	GetState(ctx context.Context) (*models.BankrollState, error)
	SaveState(ctx context.Context, state *models.BankrollState) error
	AppendLedger(ctx context.Context, entry *models.LedgerEntry) error
	LedgerDeltaBetween(ctx context.Context, start, end time.Time) (float64, error)
}

// DiscoveryRepository persists discovery run logs and per-template
// progress so interrupted sweeps resume.
type DiscoveryRepository interface {
	CreateRun(ctx context.Context, run *models.DiscoveryRun) error
	UpdateRun(ctx context.Context, run *models.DiscoveryRun) error
	LatestInterruptedRun(ctx context.Context) (*models.DiscoveryRun, error)
	UpsertTemplateProgress(ctx context.Context, progress *models.TemplateProgress) error
	TemplateProgress(ctx context.Context, runID uuid.UUID) ([]*models.TemplateProgress, error)
}

// APIUsageRepository mirrors the in-process budget state for status
// reporting. The limiter stays authoritative.
type APIUsageRepository interface {
	Upsert(ctx context.Context, usage *models.APIUsage) error
	List(ctx context.Context) ([]*models.APIUsage, error)
}
