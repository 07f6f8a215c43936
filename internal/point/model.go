// Package point provides models and repositories for resident collection
// points, the unit of work that recyclers claim and fulfill.
package point

import (
	"time"

	"github.com/ecociclo/ecociclo/internal/claim"
	"github.com/ecociclo/ecociclo/internal/profile"
)

// Persisted lifecycle status of a collection point.
const (
	StatusAvailable = "available"
	StatusClaimed   = "claimed"
	StatusCompleted = "completed"
)

// CollectionPoint represents a resident-declared location and schedule
// offering recyclable material for pickup.
type CollectionPoint struct {
	ID             string   `json:"id"`
	UserID         string   `json:"user_id"` // owning resident
	Address        string   `json:"address"`
	District       string   `json:"district"`
	Schedule       string   `json:"schedule"`
	Materials      []string `json:"materials,omitempty"`
	Notes          *string  `json:"notes,omitempty"`
	AdditionalInfo *string  `json:"additional_info,omitempty"`
	PhotoURL       *string  `json:"photo_url,omitempty"`
	Lat            *float64 `json:"lat,omitempty"`
	Lng            *float64 `json:"lng,omitempty"`

	Status string `json:"status"`

	// Claim bookkeeping, cleared whenever the point reverts to available.
	ClaimID    *string    `json:"claim_id,omitempty"`
	PickupTime *time.Time `json:"pickup_time,omitempty"`
	RecyclerID *string    `json:"recycler_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// CopyDescriptive returns a fresh available point carrying only the
// descriptive fields of p. Claim bookkeeping is never copied.
func (p *CollectionPoint) CopyDescriptive() *CollectionPoint {
	fresh := &CollectionPoint{
		UserID:   p.UserID,
		Address:  p.Address,
		District: p.District,
		Schedule: p.Schedule,
		Status:   StatusAvailable,
	}
	if p.Materials != nil {
		fresh.Materials = append([]string(nil), p.Materials...)
	}
	if p.Notes != nil {
		v := *p.Notes
		fresh.Notes = &v
	}
	if p.AdditionalInfo != nil {
		v := *p.AdditionalInfo
		fresh.AdditionalInfo = &v
	}
	if p.PhotoURL != nil {
		v := *p.PhotoURL
		fresh.PhotoURL = &v
	}
	if p.Lat != nil {
		v := *p.Lat
		fresh.Lat = &v
	}
	if p.Lng != nil {
		v := *p.Lng
		fresh.Lng = &v
	}
	return fresh
}

// DetailedPoint is a collection point joined with its most recent claim and
// that claim's recycler profile. It is derived on every sync, never persisted.
type DetailedPoint struct {
	Point    CollectionPoint  `json:"point"`
	Claim    *claim.Claim     `json:"claim,omitempty"`
	Recycler *profile.Profile `json:"recycler,omitempty"`
}
