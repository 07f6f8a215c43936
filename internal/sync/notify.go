package sync

import (
	"sync"
	"time"
)

// NotificationCooldown is the minimum gap between user-facing notifications
// for the same key.
const NotificationCooldown = 3 * time.Second

// Throttle rate-limits notifications per key. A burst of feed events inside
// the cooldown window produces at most one notification.
type Throttle struct {
	cooldown time.Duration
	now      func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

// NewThrottle creates a throttle with the given cooldown. A non-positive
// cooldown uses NotificationCooldown.
func NewThrottle(cooldown time.Duration) *Throttle {
	if cooldown <= 0 {
		cooldown = NotificationCooldown
	}
	return &Throttle{
		cooldown: cooldown,
		now:      time.Now,
		last:     make(map[string]time.Time),
	}
}

// Allow reports whether a notification for the key may fire now, and
// records the time if so.
func (t *Throttle) Allow(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if last, ok := t.last[key]; ok && now.Sub(last) < t.cooldown {
		return false
	}
	t.last[key] = now
	return true
}
