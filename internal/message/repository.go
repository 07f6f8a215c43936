package message

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines message data operations.
type Repository interface {
	// Insert stores a new message.
	Insert(ctx context.Context, m *Message) error

	// Conversation returns the messages between two users, oldest first.
	Conversation(ctx context.Context, userA, userB string, limit int) ([]Message, error)

	// UnreadBySender returns unread message counts for a receiver, grouped
	// by sender.
	UnreadBySender(ctx context.Context, receiverID string) ([]UnreadCount, error)

	// MarkReadFrom marks all messages from a sender to a receiver as read.
	MarkReadFrom(ctx context.Context, receiverID, senderID string) error
}

// InMemoryRepository is a thread-safe in-memory implementation for testing.
type InMemoryRepository struct {
	mu       sync.RWMutex
	messages map[string]*Message
}

// NewInMemoryRepository creates a new in-memory message repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{messages: make(map[string]*Message)}
}

// Insert stores a new message.
func (r *InMemoryRepository) Insert(ctx context.Context, m *Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	copied := *m
	r.messages[m.ID] = &copied
	return nil
}

// Conversation returns the messages between two users, oldest first.
func (r *InMemoryRepository) Conversation(ctx context.Context, userA, userB string, limit int) ([]Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Message
	for _, m := range r.messages {
		if (m.SenderID == userA && m.ReceiverID == userB) ||
			(m.SenderID == userB && m.ReceiverID == userA) {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// UnreadBySender returns unread counts for a receiver grouped by sender.
func (r *InMemoryRepository) UnreadBySender(ctx context.Context, receiverID string) ([]UnreadCount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int)
	for _, m := range r.messages {
		if m.ReceiverID == receiverID && !m.Read {
			counts[m.SenderID]++
		}
	}
	out := make([]UnreadCount, 0, len(counts))
	for sender, count := range counts {
		out = append(out, UnreadCount{SenderID: sender, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SenderID < out[j].SenderID
	})
	return out, nil
}

// MarkReadFrom marks all messages from a sender to a receiver as read.
func (r *InMemoryRepository) MarkReadFrom(ctx context.Context, receiverID, senderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.messages {
		if m.ReceiverID == receiverID && m.SenderID == senderID {
			m.Read = true
		}
	}
	return nil
}
