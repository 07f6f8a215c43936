// Package donation provides models and services for one-time donations to
// recyclers, processed through Stripe Checkout.
package donation

import "time"

// Donation status.
const (
	StatusPending   = "pending"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Donation is a provisional record of a donation checkout session. It is
// created pending when the session is opened and finalized by webhook.
type Donation struct {
	ID              string     `json:"id"`
	SessionID       string     `json:"session_id"` // Stripe Checkout Session ID
	PaymentIntentID *string    `json:"payment_intent_id,omitempty"`
	Status          string     `json:"status"`
	Amount          int64      `json:"amount"`   // Amount in cents
	Currency        string     `json:"currency"` // ISO currency code
	DonorID         string     `json:"donor_id"` // User making the donation
	RecyclerID      string     `json:"recycler_id"`
	FailureReason   *string    `json:"failure_reason,omitempty"`
	CreatedAt       *time.Time `json:"created_at,omitempty"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}
