package repository

import (
	"fmt"

	"github.com/yourusername/gridiron-edge/internal/database"
)

// Repositories holds all repository implementations
type Repositories struct {
	Game           GameRepository
	Stadium        StadiumRepository
	Team           TeamRepository
	Edge           EdgeRepository
	Recommendation RecommendationRepository
	Bankroll       BankrollRepository
	Discovery      DiscoveryRepository
	APIUsage       APIUsageRepository
}

// NewRepositories creates and returns all repository implementations
func NewRepositories(db *database.DB) (*Repositories, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	return &Repositories{
		Game:           NewPostgresGameRepository(db),
		Stadium:        NewPostgresStadiumRepository(db),
		Team:           NewPostgresTeamRepository(db),
		Edge:           NewPostgresEdgeRepository(db),
		Recommendation: NewPostgresRecommendationRepository(db),
		Bankroll:       NewPostgresBankrollRepository(db),
		Discovery:      NewPostgresDiscoveryRepository(db),
		APIUsage:       NewPostgresAPIUsageRepository(db),
	}, nil
}
