package point

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ecociclo/ecociclo/internal/claim"
	"github.com/ecociclo/ecociclo/internal/profile"
)

// Common errors for point operations.
var (
	ErrPointNotFound = errors.New("collection point not found")
	ErrNotOwner      = errors.New("caller does not own the collection point")
)

// Repository defines collection point data operations.
type Repository interface {
	// Insert stores a new point with status available.
	Insert(ctx context.Context, p *CollectionPoint) error

	// GetByID retrieves a point by ID.
	GetByID(ctx context.Context, id string) (*CollectionPoint, error)

	// ListByOwner retrieves a resident's points joined with their most
	// recent claim and that claim's recycler profile, newest first.
	ListByOwner(ctx context.Context, userID string) ([]DetailedPoint, error)

	// ListAvailable retrieves available points, optionally filtered by
	// district, newest first.
	ListAvailable(ctx context.Context, district string) ([]CollectionPoint, error)
}

// InMemoryRepository is a thread-safe in-memory implementation backed by the
// in-memory claim and profile repositories, used for testing and the memory
// lifecycle store.
type InMemoryRepository struct {
	mu     sync.RWMutex
	points map[string]*CollectionPoint

	Claims   *claim.InMemoryRepository
	Profiles *profile.InMemoryRepository
}

// NewInMemoryRepository creates a new in-memory point repository wired to the
// given claim and profile repositories for the detailed-point join.
func NewInMemoryRepository(claims *claim.InMemoryRepository, profiles *profile.InMemoryRepository) *InMemoryRepository {
	return &InMemoryRepository{
		points:   make(map[string]*CollectionPoint),
		Claims:   claims,
		Profiles: profiles,
	}
}

// Insert stores a new point.
func (r *InMemoryRepository) Insert(ctx context.Context, p *CollectionPoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Status == "" {
		p.Status = StatusAvailable
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	copied := *p
	r.points[p.ID] = &copied
	return nil
}

// GetByID retrieves a point by ID.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*CollectionPoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.points[id]
	if !ok {
		return nil, ErrPointNotFound
	}
	copied := *p
	return &copied, nil
}

// Update replaces a stored point. Used by the memory lifecycle store.
func (r *InMemoryRepository) Update(ctx context.Context, p *CollectionPoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.points[p.ID]; !ok {
		return ErrPointNotFound
	}
	copied := *p
	r.points[p.ID] = &copied
	return nil
}

// Delete removes a point unconditionally. Precondition checks live in the
// lifecycle engine.
func (r *InMemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.points[id]; !ok {
		return ErrPointNotFound
	}
	delete(r.points, id)
	return nil
}

// ListAvailable retrieves available points, newest first.
func (r *InMemoryRepository) ListAvailable(ctx context.Context, district string) ([]CollectionPoint, error) {
	r.mu.RLock()
	out := make([]CollectionPoint, 0)
	for _, p := range r.points {
		if p.Status != StatusAvailable {
			continue
		}
		if district != "" && p.District != district {
			continue
		}
		out = append(out, *p)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// ListByOwner retrieves a resident's detailed points, newest first.
func (r *InMemoryRepository) ListByOwner(ctx context.Context, userID string) ([]DetailedPoint, error) {
	r.mu.RLock()
	var owned []CollectionPoint
	for _, p := range r.points {
		if p.UserID == userID {
			owned = append(owned, *p)
		}
	}
	r.mu.RUnlock()

	sort.Slice(owned, func(i, j int) bool {
		return owned[i].CreatedAt.After(owned[j].CreatedAt)
	})

	out := make([]DetailedPoint, 0, len(owned))
	for _, p := range owned {
		dp := DetailedPoint{Point: p}
		claims, err := r.Claims.ListByPoint(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		dp.Claim = claim.Latest(claims)
		if dp.Claim != nil && r.Profiles != nil {
			if rec, err := r.Profiles.GetByUserID(ctx, dp.Claim.RecyclerID); err == nil {
				dp.Recycler = rec
			}
		}
		out = append(out, dp)
	}
	return out, nil
}
