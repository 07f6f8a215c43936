// Package notification stores and delivers per-user notifications produced
// by claim lifecycle transitions and incoming messages.
package notification

import "time"

// Notification types.
const (
	TypeCollectionClaimed   = "collection_claimed"
	TypeCollectionCompleted = "collection_completed"
	TypeNewMessage          = "new_message"
	TypeEcoCreditos         = "eco_creditos_reward"
)

// Notification is a single notification addressed to a user.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Type      string    `json:"type"`
	RelatedID *string   `json:"related_id,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}
