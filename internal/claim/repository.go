package claim

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Common errors for claim operations.
var (
	ErrClaimNotFound = errors.New("claim not found")
)

// Repository defines claim data operations.
type Repository interface {
	// Insert stores a new claim.
	Insert(ctx context.Context, c *Claim) error

	// GetByID retrieves a claim by ID.
	GetByID(ctx context.Context, id string) (*Claim, error)

	// ActiveByPoint returns the active claim for a point, or nil if the
	// point has no claim in status claimed.
	ActiveByPoint(ctx context.Context, pointID string) (*Claim, error)

	// ListByPoint returns all claims ever made against a point.
	ListByPoint(ctx context.Context, pointID string) ([]Claim, error)

	// ListByOwner returns all claims ever made against a resident's points.
	ListByOwner(ctx context.Context, userID string) ([]Claim, error)
}

// InMemoryRepository is a thread-safe in-memory implementation for testing
// and the memory lifecycle store.
type InMemoryRepository struct {
	mu     sync.RWMutex
	claims map[string]*Claim
}

// NewInMemoryRepository creates a new in-memory claim repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{claims: make(map[string]*Claim)}
}

// Insert stores a new claim.
func (r *InMemoryRepository) Insert(ctx context.Context, c *Claim) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = StatusClaimed
	}
	if c.ClaimedAt.IsZero() {
		c.ClaimedAt = time.Now()
	}
	copied := *c
	r.claims[c.ID] = &copied
	return nil
}

// GetByID retrieves a claim by ID.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Claim, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.claims[id]
	if !ok {
		return nil, ErrClaimNotFound
	}
	copied := *c
	return &copied, nil
}

// Update replaces a stored claim. Used by the memory lifecycle store.
func (r *InMemoryRepository) Update(ctx context.Context, c *Claim) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.claims[c.ID]; !ok {
		return ErrClaimNotFound
	}
	copied := *c
	r.claims[c.ID] = &copied
	return nil
}

// ActiveByPoint returns the active claim for a point, or nil.
func (r *InMemoryRepository) ActiveByPoint(ctx context.Context, pointID string) (*Claim, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.claims {
		if c.CollectionPointID == pointID && c.Status == StatusClaimed {
			copied := *c
			return &copied, nil
		}
	}
	return nil, nil
}

// ListByPoint returns all claims against a point.
func (r *InMemoryRepository) ListByPoint(ctx context.Context, pointID string) ([]Claim, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Claim
	for _, c := range r.claims {
		if c.CollectionPointID == pointID {
			out = append(out, *c)
		}
	}
	return out, nil
}

// ListByOwner returns all claims against a resident's points.
func (r *InMemoryRepository) ListByOwner(ctx context.Context, userID string) ([]Claim, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Claim
	for _, c := range r.claims {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}
