package middleware

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimitStore implements fixed-window rate limiting backed by Redis,
// so limits are shared across API instances. It fails open: if Redis is
// unavailable the request is allowed and the full quota is reported.
type RedisRateLimitStore struct {
	client  *redis.Client
	metrics *Metrics
}

// NewRedisRateLimitStore creates a Redis-backed rate limit store.
func NewRedisRateLimitStore(client *redis.Client) *RedisRateLimitStore {
	return &RedisRateLimitStore{client: client}
}

// WithMetrics attaches middleware metrics so fail-open events are counted.
func (s *RedisRateLimitStore) WithMetrics(m *Metrics) *RedisRateLimitStore {
	s.metrics = m
	return s
}

// Allow checks if a request from the given key should be allowed.
// Returns whether the request is allowed, how many requests remain in the
// current window, and the seconds until the window resets when blocked.
func (s *RedisRateLimitStore) Allow(ctx context.Context, key string, config RateLimitConfig) (allowed bool, remaining int, retryAfter int) {
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, config.WindowDuration)
	if _, err := pipe.Exec(ctx); err != nil {
		// Fail open on Redis errors
		if s.metrics != nil {
			s.metrics.IncRateLimitRedisErrors()
		}
		return true, config.RequestsPerWindow, 0
	}

	count := int(incr.Val())
	if count <= config.RequestsPerWindow {
		return true, config.RequestsPerWindow - count, 0
	}

	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil || ttl <= 0 {
		return false, 0, 1
	}
	retryAfter = int(ttl.Seconds())
	if retryAfter <= 0 {
		retryAfter = 1
	}
	return false, 0, retryAfter
}
