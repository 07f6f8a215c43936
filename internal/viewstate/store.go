// Package viewstate persists small pieces of per-user UI state, such as the
// last selected dashboard tab and the cached set of online recyclers, so a
// session can resume where it left off.
package viewstate

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Well-known state keys.
const (
	KeyActiveTab         = "dashboard_resident_active_tab"
	KeyRecyclersOnline   = "recyclers_online"
	KeyLastEcoRewardStep = "last_eco_reward_step"
)

// ErrNotFound is returned when no value exists for a key.
var ErrNotFound = errors.New("view state not found")

// Store persists per-user view state.
type Store interface {
	// Get returns the value stored under a key for a user.
	Get(ctx context.Context, userID, key string) (string, error)

	// Set stores a value under a key for a user.
	Set(ctx context.Context, userID, key, value string) error

	// Delete removes a key for a user.
	Delete(ctx context.Context, userID, key string) error
}

// RedisStore implements Store on Redis. Entries expire after the TTL so
// abandoned sessions clean themselves up.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed store. A non-positive ttl keeps
// entries for 30 days.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &RedisStore{client: client, ttl: ttl}
}

func stateKey(userID, key string) string {
	return "viewstate:" + userID + ":" + key
}

// Get returns the value stored under a key for a user.
func (s *RedisStore) Get(ctx context.Context, userID, key string) (string, error) {
	value, err := s.client.Get(ctx, stateKey(userID, key)).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// Set stores a value under a key for a user.
func (s *RedisStore) Set(ctx context.Context, userID, key, value string) error {
	return s.client.Set(ctx, stateKey(userID, key), value, s.ttl).Err()
}

// Delete removes a key for a user.
func (s *RedisStore) Delete(ctx context.Context, userID, key string) error {
	return s.client.Del(ctx, stateKey(userID, key)).Err()
}

// MemoryStore is a thread-safe in-memory Store for testing and single-node
// deployments without Redis.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// Get returns the value stored under a key for a user.
func (s *MemoryStore) Get(ctx context.Context, userID, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[stateKey(userID, key)]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

// Set stores a value under a key for a user.
func (s *MemoryStore) Set(ctx context.Context, userID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[stateKey(userID, key)] = value
	return nil
}

// Delete removes a key for a user.
func (s *MemoryStore) Delete(ctx context.Context, userID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, stateKey(userID, key))
	return nil
}
