package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ecociclo/ecociclo/internal/donation"
	"github.com/ecociclo/ecociclo/internal/middleware"
	"github.com/ecociclo/ecociclo/internal/profile"
)

// Donation amount bounds, in cents.
const (
	MinDonationAmount = 100     // 1.00
	MaxDonationAmount = 1000000 // 10,000.00
)

// DonationRequest represents the request body for POST /v1/donations.
type DonationRequest struct {
	RecyclerID string `json:"recycler_id"`
	Amount     int64  `json:"amount"`   // Amount in cents
	Currency   string `json:"currency"` // Defaults to "pen"
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
}

// DonationResponse represents the response for a created donation session.
type DonationResponse struct {
	SessionURL string `json:"session_url"`
	SessionID  string `json:"session_id"`
}

// DonationHandlers holds dependencies for donation HTTP handlers.
type DonationHandlers struct {
	donations    donation.Repository
	profiles     profile.Repository
	stripeClient donation.Client
}

// NewDonationHandlers creates a new DonationHandlers instance.
func NewDonationHandlers(donations donation.Repository, profiles profile.Repository, stripeClient donation.Client) *DonationHandlers {
	return &DonationHandlers{
		donations:    donations,
		profiles:     profiles,
		stripeClient: stripeClient,
	}
}

// Create handles POST /v1/donations - opens a Stripe Checkout Session for a
// one-time donation to a recycler.
func (h *DonationHandlers) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	donorID := middleware.GetUserID(ctx)

	var req DonationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}

	if req.RecyclerID == "" {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "recycler_id is required")
		return
	}
	if req.Amount < MinDonationAmount || req.Amount > MaxDonationAmount {
		ctx = middleware.SetErrorCode(ctx, ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "amount must be between 100 and 1000000 cents")
		return
	}
	if req.SuccessURL == "" {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "success_url is required")
		return
	}
	if req.CancelURL == "" {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "cancel_url is required")
		return
	}
	if req.Currency == "" {
		req.Currency = "pen"
	}

	// The recipient must exist and be a recycler.
	prof, err := h.profiles.GetByUserID(ctx, req.RecyclerID)
	if err != nil {
		if errors.Is(err, profile.ErrProfileNotFound) {
			ctx = middleware.SetErrorCode(ctx, ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "recycler not found")
			return
		}
		slog.ErrorContext(ctx, "failed to load recycler profile", "recycler_id", req.RecyclerID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to create donation")
		return
	}
	if prof.Role != profile.RoleRecycler {
		ctx = middleware.SetErrorCode(ctx, ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "recipient is not a recycler")
		return
	}

	session, err := h.stripeClient.CreateCheckoutSession(&donation.CheckoutParams{
		Amount:     req.Amount,
		Currency:   req.Currency,
		DonorID:    donorID,
		RecyclerID: req.RecyclerID,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create checkout session", "recycler_id", req.RecyclerID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to create checkout session")
		return
	}

	record := &donation.Donation{
		SessionID:  session.ID,
		Amount:     req.Amount,
		Currency:   req.Currency,
		DonorID:    donorID,
		RecyclerID: req.RecyclerID,
	}
	if err := h.donations.Insert(ctx, record); err != nil {
		slog.ErrorContext(ctx, "failed to insert donation record", "session_id", session.ID, "error", err)
		// Not a critical failure; continue and return session URL
	}

	response := DonationResponse{
		SessionURL: session.URL,
		SessionID:  session.ID,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
