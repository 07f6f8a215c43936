package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/ecociclo/ecociclo/internal/claim"
	"github.com/ecociclo/ecociclo/internal/point"
	"github.com/ecociclo/ecociclo/internal/reward"
)

// MemoryStore is an in-memory Store for testing. A single mutex covers
// every transition so each one is observed atomically.
type MemoryStore struct {
	mu sync.Mutex

	Points *point.InMemoryRepository
	Claims *claim.InMemoryRepository
	Ledger *reward.InMemoryLedger
}

// NewMemoryStore creates an in-memory lifecycle store.
func NewMemoryStore(points *point.InMemoryRepository, claims *claim.InMemoryRepository, ledger *reward.InMemoryLedger) *MemoryStore {
	return &MemoryStore{Points: points, Claims: claims, Ledger: ledger}
}

func (s *MemoryStore) GetPoint(ctx context.Context, id string) (*point.CollectionPoint, error) {
	p, err := s.Points.GetByID(ctx, id)
	if err == point.ErrPointNotFound {
		return nil, ErrPointNotFound
	}
	return p, err
}

func (s *MemoryStore) CreatePoint(ctx context.Context, p *point.CollectionPoint) error {
	return s.Points.Insert(ctx, p)
}

func (s *MemoryStore) GetClaim(ctx context.Context, id string) (*claim.Claim, error) {
	c, err := s.Claims.GetByID(ctx, id)
	if err == claim.ErrClaimNotFound {
		return nil, ErrClaimNotFound
	}
	return c, err
}

func (s *MemoryStore) ActiveClaim(ctx context.Context, pointID string) (*claim.Claim, error) {
	return s.Claims.ActiveByPoint(ctx, pointID)
}

func (s *MemoryStore) Claim(ctx context.Context, c *claim.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.Points.GetByID(ctx, c.CollectionPointID)
	if err != nil {
		return ErrPointNotFound
	}
	if p.Status != point.StatusAvailable {
		return ErrAlreadyClaimed
	}
	if active, err := s.Claims.ActiveByPoint(ctx, c.CollectionPointID); err != nil {
		return err
	} else if active != nil {
		return ErrAlreadyClaimed
	}

	if err := s.Claims.Insert(ctx, c); err != nil {
		return err
	}
	p.Status = point.StatusClaimed
	p.ClaimID = &c.ID
	p.PickupTime = c.PickupTime
	p.RecyclerID = &c.RecyclerID
	return s.Points.Update(ctx, p)
}

func (s *MemoryStore) Cancel(ctx context.Context, c *claim.Claim, reason *string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.Status = claim.StatusCancelled
	c.CancelledAt = &at
	c.CancellationReason = reason
	if err := s.Claims.Update(ctx, c); err != nil {
		return err
	}

	p, err := s.Points.GetByID(ctx, c.CollectionPointID)
	if err != nil {
		return ErrPointNotFound
	}
	p.Status = point.StatusAvailable
	p.ClaimID = nil
	p.PickupTime = nil
	p.RecyclerID = nil
	return s.Points.Update(ctx, p)
}

func (s *MemoryStore) Complete(ctx context.Context, c *claim.Claim, credit int, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.Status = claim.StatusCompleted
	c.CompletedAt = &at
	if err := s.Claims.Update(ctx, c); err != nil {
		return 0, err
	}

	p, err := s.Points.GetByID(ctx, c.CollectionPointID)
	if err != nil {
		return 0, ErrPointNotFound
	}
	p.Status = point.StatusCompleted
	if err := s.Points.Update(ctx, p); err != nil {
		return 0, err
	}

	return s.Ledger.Accrue(ctx, c.UserID, credit)
}

func (s *MemoryStore) Reopen(ctx context.Context, originalID string, replacement *point.CollectionPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.Points.Insert(ctx, replacement); err != nil {
		return err
	}
	return s.Points.Delete(ctx, originalID)
}

func (s *MemoryStore) DeletePoint(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.Points.Delete(ctx, id); err == point.ErrPointNotFound {
		return ErrPointNotFound
	} else if err != nil {
		return err
	}
	return nil
}
