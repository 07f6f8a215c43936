// Package claim provides models and repositories for collection claims, a
// recycler's commitment to collect a specific collection point. Claims are
// append-only history; at most one claim per point may be active at a time.
package claim

import (
	"sort"
	"time"
)

// Claim lifecycle status.
const (
	StatusClaimed   = "claimed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

// Claim records a recycler's commitment to collect a point.
type Claim struct {
	ID                 string     `json:"id"`
	CollectionPointID  string     `json:"collection_point_id"`
	RecyclerID         string     `json:"recycler_id"`
	UserID             string     `json:"user_id"` // point owner at claim time
	Status             string     `json:"status"`
	PickupTime         *time.Time `json:"pickup_time,omitempty"`
	ClaimedAt          time.Time  `json:"claimed_at"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancellationReason *string    `json:"cancellation_reason,omitempty"`
}

// Active reports whether the claim is the point's live commitment.
func (c *Claim) Active() bool {
	return c != nil && c.Status == StatusClaimed
}

// Latest normalizes the loose shape of joined claim data into a single
// value. The store may return zero, one, or (after a reopen race) several
// claims for a point; the most recently created one is authoritative.
func Latest(claims []Claim) *Claim {
	if len(claims) == 0 {
		return nil
	}
	sorted := append([]Claim(nil), claims...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ClaimedAt.Before(sorted[j].ClaimedAt)
	})
	latest := sorted[len(sorted)-1]
	return &latest
}
