// Package profile provides models and repositories for user profiles,
// including recycler presence and the EcoCreditos reward balance.
package profile

import "time"

// Profile roles.
const (
	RoleResident              = "resident"
	RoleRecycler              = "recycler"
	RoleAdmin                 = "admin"
	RoleResidentInstitutional = "resident_institutional"
)

// Profile represents a registered user.
type Profile struct {
	ID        string  `json:"id"`
	UserID    string  `json:"user_id"`
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	Phone     *string `json:"phone,omitempty"`
	Address   *string `json:"address,omitempty"`
	Role      string  `json:"role"`
	Bio       *string `json:"bio,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`

	// Recycler-specific fields.
	Materials []string `json:"materials,omitempty"`
	Online    bool     `json:"online"`
	Lat       *float64 `json:"lat,omitempty"`
	Lng       *float64 `json:"lng,omitempty"`

	// Rating aggregate, maintained by the rating repository.
	RatingAverage float64 `json:"rating_average"`
	TotalRatings  int     `json:"total_ratings"`

	// EcoCreditos reward balance, mutated only by the reward ledger.
	EcoCreditos int `json:"eco_creditos"`

	CreatedAt time.Time `json:"created_at"`
}
