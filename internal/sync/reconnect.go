// Package sync keeps a user session's view of collection points, online
// recyclers and messages consistent with the server: change-feed events and
// periodic polls trigger refetches, a sequence guard discards stale
// snapshots, and a throttle caps notification frequency.
package sync

import "time"

// Default reconnection policies per feed. Points reconnect with exponential
// backoff; recyclers and messages use cheaper linear schedules with tighter
// attempt caps.
var (
	PointsBackoff    = Exponential{Base: time.Second, Max: 30 * time.Second, Attempts: 5}
	RecyclersBackoff = Linear{Base: 2 * time.Second, Max: 10 * time.Second, Attempts: 3}
	MessagesBackoff  = Linear{Base: time.Second, Attempts: 3}
)

// Exponential doubles the delay per attempt, capped at Max.
type Exponential struct {
	Base     time.Duration
	Max      time.Duration
	Attempts int
}

// Delay returns the delay before the given attempt, starting at one.
func (e Exponential) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	shift := uint(attempt - 1)
	if shift > 30 {
		shift = 30
	}
	delay := e.Base * time.Duration(uint64(1)<<shift)
	if e.Max > 0 && delay > e.Max {
		delay = e.Max
	}
	return delay
}

// MaxAttempts returns the attempt cap.
func (e Exponential) MaxAttempts() int { return e.Attempts }

// Linear grows the delay by Base per attempt, capped at Max when set.
type Linear struct {
	Base     time.Duration
	Max      time.Duration
	Attempts int
}

// Delay returns the delay before the given attempt, starting at one.
func (l Linear) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := l.Base * time.Duration(attempt)
	if l.Max > 0 && delay > l.Max {
		delay = l.Max
	}
	return delay
}

// MaxAttempts returns the attempt cap.
func (l Linear) MaxAttempts() int { return l.Attempts }
