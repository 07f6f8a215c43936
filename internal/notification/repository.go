package notification

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotificationNotFound is returned when a notification does not exist.
var ErrNotificationNotFound = errors.New("notification not found")

// Repository defines notification data operations.
type Repository interface {
	Insert(ctx context.Context, n *Notification) error
	ListByUser(ctx context.Context, userID string, limit int) ([]Notification, error)
	MarkRead(ctx context.Context, id, userID string) error
	UnreadCount(ctx context.Context, userID string) (int, error)
}

// InMemoryRepository is a thread-safe in-memory implementation for testing.
type InMemoryRepository struct {
	mu            sync.RWMutex
	notifications map[string]*Notification
}

// NewInMemoryRepository creates a new in-memory notification repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{notifications: make(map[string]*Notification)}
}

// Insert stores a new notification.
func (r *InMemoryRepository) Insert(ctx context.Context, n *Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	copied := *n
	r.notifications[n.ID] = &copied
	return nil
}

// ListByUser returns a user's notifications, newest first.
func (r *InMemoryRepository) ListByUser(ctx context.Context, userID string, limit int) ([]Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Notification
	for _, n := range r.notifications {
		if n.UserID == userID {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MarkRead marks a notification as read. The userID must match the owner.
func (r *InMemoryRepository) MarkRead(ctx context.Context, id, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.notifications[id]
	if !ok || n.UserID != userID {
		return ErrNotificationNotFound
	}
	n.Read = true
	return nil
}

// UnreadCount returns the number of unread notifications for a user.
func (r *InMemoryRepository) UnreadCount(ctx context.Context, userID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, n := range r.notifications {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}
