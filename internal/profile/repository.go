package profile

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrProfileNotFound is returned when no profile matches the lookup.
var ErrProfileNotFound = errors.New("profile not found")

// Repository defines profile data operations.
type Repository interface {
	// Insert stores a new profile, generating an ID when absent.
	Insert(ctx context.Context, p *Profile) error

	// GetByUserID retrieves a profile by its auth user ID.
	GetByUserID(ctx context.Context, userID string) (*Profile, error)

	// Update replaces the mutable contact fields of an existing profile.
	Update(ctx context.Context, p *Profile) error

	// SetOnline flips the presence flag and, for recyclers, records the
	// last reported coordinates.
	SetOnline(ctx context.Context, userID string, online bool, lat, lng *float64) error

	// OnlineRecyclers returns all recycler profiles currently online.
	OnlineRecyclers(ctx context.Context) ([]Profile, error)
}

// InMemoryRepository is a thread-safe in-memory Repository used for testing
// and single-process development.
type InMemoryRepository struct {
	mu       sync.RWMutex
	byUserID map[string]*Profile
}

// NewInMemoryRepository creates a new in-memory profile repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{byUserID: make(map[string]*Profile)}
}

// Insert stores a new profile.
func (r *InMemoryRepository) Insert(ctx context.Context, p *Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	copied := *p
	r.byUserID[p.UserID] = &copied
	return nil
}

// GetByUserID retrieves a profile by auth user ID.
func (r *InMemoryRepository) GetByUserID(ctx context.Context, userID string) (*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byUserID[userID]
	if !ok {
		return nil, ErrProfileNotFound
	}
	copied := *p
	return &copied, nil
}

// Update replaces the mutable fields of an existing profile.
func (r *InMemoryRepository) Update(ctx context.Context, p *Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byUserID[p.UserID]
	if !ok {
		return ErrProfileNotFound
	}
	copied := *p
	copied.ID = existing.ID
	copied.CreatedAt = existing.CreatedAt
	// The balance belongs to the reward ledger, never to profile edits.
	copied.EcoCreditos = existing.EcoCreditos
	r.byUserID[p.UserID] = &copied
	return nil
}

// SetOnline flips the presence flag for a profile.
func (r *InMemoryRepository) SetOnline(ctx context.Context, userID string, online bool, lat, lng *float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byUserID[userID]
	if !ok {
		return ErrProfileNotFound
	}
	p.Online = online
	if lat != nil {
		v := *lat
		p.Lat = &v
	}
	if lng != nil {
		v := *lng
		p.Lng = &v
	}
	return nil
}

// OnlineRecyclers returns all recycler profiles currently online.
func (r *InMemoryRepository) OnlineRecyclers(ctx context.Context) ([]Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Profile
	for _, p := range r.byUserID {
		if p.Role == RoleRecycler && p.Online {
			out = append(out, *p)
		}
	}
	return out, nil
}
