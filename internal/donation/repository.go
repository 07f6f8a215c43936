package donation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrDonationNotFound is returned when a donation record is not found.
var ErrDonationNotFound = errors.New("donation not found")

// Repository defines donation record persistence.
type Repository interface {
	// Insert stores a new pending donation, generating an ID when absent.
	Insert(ctx context.Context, d *Donation) error

	// GetBySessionID retrieves a donation by its checkout session ID.
	GetBySessionID(ctx context.Context, sessionID string) (*Donation, error)

	// SetPaymentIntent records the payment intent ID once Stripe reports it.
	SetPaymentIntent(ctx context.Context, sessionID, paymentIntentID string) error

	// MarkSucceeded finalizes a donation as succeeded.
	MarkSucceeded(ctx context.Context, sessionID string) error

	// MarkFailed finalizes a donation as failed with a reason.
	MarkFailed(ctx context.Context, sessionID, reason string) error
}

// InMemoryRepository implements Repository with in-memory storage.
type InMemoryRepository struct {
	mu        sync.RWMutex
	bySession map[string]*Donation
}

// NewInMemoryRepository creates an empty in-memory donation repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{bySession: make(map[string]*Donation)}
}

// Insert adds a new donation record.
func (r *InMemoryRepository) Insert(ctx context.Context, d *Donation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.Status == "" {
		d.Status = StatusPending
	}

	now := time.Now()
	if d.CreatedAt == nil {
		d.CreatedAt = &now
	}
	if d.UpdatedAt == nil {
		d.UpdatedAt = &now
	}

	copied := *d
	r.bySession[d.SessionID] = &copied
	return nil
}

// GetBySessionID retrieves a donation by session ID.
func (r *InMemoryRepository) GetBySessionID(ctx context.Context, sessionID string) (*Donation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.bySession[sessionID]
	if !ok {
		return nil, ErrDonationNotFound
	}
	copied := *d
	return &copied, nil
}

// SetPaymentIntent records the payment intent ID for a session.
func (r *InMemoryRepository) SetPaymentIntent(ctx context.Context, sessionID, paymentIntentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.bySession[sessionID]
	if !ok {
		return ErrDonationNotFound
	}
	d.PaymentIntentID = &paymentIntentID
	now := time.Now()
	d.UpdatedAt = &now
	return nil
}

// MarkSucceeded finalizes a donation as succeeded.
func (r *InMemoryRepository) MarkSucceeded(ctx context.Context, sessionID string) error {
	return r.setStatus(sessionID, StatusSucceeded, nil)
}

// MarkFailed finalizes a donation as failed.
func (r *InMemoryRepository) MarkFailed(ctx context.Context, sessionID, reason string) error {
	return r.setStatus(sessionID, StatusFailed, &reason)
}

func (r *InMemoryRepository) setStatus(sessionID, status string, reason *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.bySession[sessionID]
	if !ok {
		return ErrDonationNotFound
	}
	d.Status = status
	d.FailureReason = reason
	now := time.Now()
	d.UpdatedAt = &now
	return nil
}
