// Package lifecycle implements the claim state machine for collection
// points: claiming, cancelling, completing, reopening and deletion, with
// every transition applied atomically against the store.
package lifecycle

import (
	"time"

	"github.com/ecociclo/ecociclo/internal/point"
)

// StateDelayed is the derived state of a point whose active claim's pickup
// time has passed. It is never persisted; stored status remains claimed.
const StateDelayed = "delayed"

// StateOf returns the effective state of a point at the given instant.
func StateOf(p *point.CollectionPoint, now time.Time) string {
	if p.Status == point.StatusClaimed && p.PickupTime != nil && p.PickupTime.Before(now) {
		return StateDelayed
	}
	return p.Status
}
