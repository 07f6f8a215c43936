package sync

import (
	"context"

	"github.com/ecociclo/ecociclo/internal/point"
	"github.com/ecociclo/ecociclo/internal/profile"
	"github.com/ecociclo/ecociclo/internal/reward"
)

// RepositorySource implements Source directly against the repositories.
// The API server hands each controller one of these; a standalone daemon
// would substitute an HTTP-backed source.
type RepositorySource struct {
	points   point.Repository
	profiles profile.Repository
	ledger   reward.Ledger
}

// NewRepositorySource creates a repository-backed snapshot source.
func NewRepositorySource(points point.Repository, profiles profile.Repository, ledger reward.Ledger) *RepositorySource {
	return &RepositorySource{points: points, profiles: profiles, ledger: ledger}
}

// PointsSnapshot returns the user's detailed collection points.
func (s *RepositorySource) PointsSnapshot(ctx context.Context, userID string) ([]point.DetailedPoint, error) {
	return s.points.ListByOwner(ctx, userID)
}

// RecyclersSnapshot returns the recyclers currently online.
func (s *RepositorySource) RecyclersSnapshot(ctx context.Context) ([]profile.Profile, error) {
	return s.profiles.OnlineRecyclers(ctx)
}

// Balance returns the user's current eco-credit balance.
func (s *RepositorySource) Balance(ctx context.Context, userID string) (int, error) {
	return s.ledger.Balance(ctx, userID)
}
