package reward

import "sync"

// RewardStep is the balance interval at which a milestone fires.
const RewardStep = 50

// ThresholdTracker deduplicates milestone announcements within a session.
// A milestone fires when the balance is a positive multiple of RewardStep
// that has not fired before; re-observing the same balance stays silent
// until the next multiple is reached.
type ThresholdTracker struct {
	mu       sync.Mutex
	lastStep int
}

// NewThresholdTracker creates a tracker with no milestones recorded.
func NewThresholdTracker() *ThresholdTracker {
	return &ThresholdTracker{}
}

// Check reports whether the given balance crosses a new milestone, and
// records it if so.
func (t *ThresholdTracker) Check(balance int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if balance < RewardStep || balance%RewardStep != 0 {
		return false
	}
	if balance == t.lastStep {
		return false
	}
	t.lastStep = balance
	return true
}

// Reset clears the recorded milestone, e.g. when a new session begins.
func (t *ThresholdTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lastStep = 0
}
