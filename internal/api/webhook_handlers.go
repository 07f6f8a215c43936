package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/ecociclo/ecociclo/internal/donation"
	"github.com/ecociclo/ecociclo/internal/middleware"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
)

// WebhookHandlers holds dependencies for webhook-related HTTP handlers.
type WebhookHandlers struct {
	webhookSecret string
	donations     donation.Repository
	webhookRepo   donation.WebhookRepository
}

// NewWebhookHandlers creates a new WebhookHandlers instance.
func NewWebhookHandlers(webhookSecret string, donations donation.Repository, webhookRepo donation.WebhookRepository) *WebhookHandlers {
	return &WebhookHandlers{
		webhookSecret: webhookSecret,
		donations:     donations,
		webhookRepo:   webhookRepo,
	}
}

// HandleStripeWebhook processes Stripe webhook events with signature verification.
// POST /internal/stripe
func (h *WebhookHandlers) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "failed to read request body")
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "missing Stripe-Signature header")
		return
	}

	event, err := webhook.ConstructEvent(body, signature, h.webhookSecret)
	if err != nil {
		slog.WarnContext(ctx, "webhook signature verification failed", "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "invalid signature")
		return
	}

	// Log minimal event info (type and ID only, not full payload)
	slog.InfoContext(ctx, "webhook event received", "event_type", event.Type, "event_id", event.ID)

	// Idempotency: a redelivered event is acknowledged but not reprocessed.
	if err := h.webhookRepo.RecordEvent(event.ID, string(event.Type)); err != nil {
		if errors.Is(err, donation.ErrEventAlreadyProcessed) {
			slog.InfoContext(ctx, "webhook event already processed, ignoring", "event_id", event.ID)
			w.WriteHeader(http.StatusOK)
			return
		}
		slog.ErrorContext(ctx, "failed to record webhook event", "event_id", event.ID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to process webhook")
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		h.handleCheckoutSessionCompleted(ctx, event)
	case "checkout.session.expired":
		h.handleCheckoutSessionExpired(ctx, event)
	case "payment_intent.payment_failed":
		h.handlePaymentIntentFailed(ctx, event)
	default:
		slog.InfoContext(ctx, "ignoring unhandled webhook event type", "event_type", event.Type, "event_id", event.ID)
	}

	// Always return 200 to acknowledge receipt
	w.WriteHeader(http.StatusOK)
}

// handleCheckoutSessionCompleted finalizes a donation once its checkout
// session completes with payment.
func (h *WebhookHandlers) handleCheckoutSessionCompleted(ctx context.Context, event stripe.Event) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		slog.ErrorContext(ctx, "failed to parse checkout session", "event_id", event.ID, "error", err)
		return
	}

	if session.PaymentIntent != nil && session.PaymentIntent.ID != "" {
		if err := h.donations.SetPaymentIntent(ctx, session.ID, session.PaymentIntent.ID); err != nil {
			slog.WarnContext(ctx, "failed to record payment intent",
				"session_id", session.ID,
				"payment_intent_id", session.PaymentIntent.ID,
				"error", err)
		}
	}

	// Donations are single-shot payments, so a completed session with
	// payment_status paid is final.
	if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		slog.InfoContext(ctx, "checkout session completed but not yet paid", "session_id", session.ID)
		return
	}

	if err := h.donations.MarkSucceeded(ctx, session.ID); err != nil {
		if errors.Is(err, donation.ErrDonationNotFound) {
			slog.WarnContext(ctx, "donation record not found for session", "session_id", session.ID)
			return
		}
		slog.ErrorContext(ctx, "failed to mark donation succeeded", "session_id", session.ID, "error", err)
		return
	}

	slog.InfoContext(ctx, "donation marked as succeeded",
		"session_id", session.ID,
		"amount", session.AmountTotal,
		"currency", session.Currency)
}

// handleCheckoutSessionExpired marks a donation failed when the donor
// abandons the checkout.
func (h *WebhookHandlers) handleCheckoutSessionExpired(ctx context.Context, event stripe.Event) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		slog.ErrorContext(ctx, "failed to parse checkout session", "event_id", event.ID, "error", err)
		return
	}

	if err := h.donations.MarkFailed(ctx, session.ID, "checkout session expired"); err != nil {
		if errors.Is(err, donation.ErrDonationNotFound) {
			slog.WarnContext(ctx, "donation record not found for expired session", "session_id", session.ID)
			return
		}
		slog.ErrorContext(ctx, "failed to mark donation failed", "session_id", session.ID, "error", err)
		return
	}

	slog.InfoContext(ctx, "donation marked as failed", "session_id", session.ID, "reason", "checkout session expired")
}

// handlePaymentIntentFailed marks a donation failed when its payment is
// declined.
func (h *WebhookHandlers) handlePaymentIntentFailed(ctx context.Context, event stripe.Event) {
	var paymentIntent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &paymentIntent); err != nil {
		slog.ErrorContext(ctx, "failed to parse payment intent", "event_id", event.ID, "error", err)
		return
	}

	sessionID := ""
	if paymentIntent.Metadata != nil {
		sessionID = paymentIntent.Metadata["session_id"]
	}
	if sessionID == "" {
		slog.WarnContext(ctx, "payment intent failed but session ID not found",
			"payment_intent_id", paymentIntent.ID,
			"event_id", event.ID)
		return
	}

	failureReason := "unknown"
	if paymentIntent.LastPaymentError != nil {
		if paymentIntent.LastPaymentError.Code != "" {
			failureReason = string(paymentIntent.LastPaymentError.Code)
		} else if paymentIntent.LastPaymentError.Msg != "" {
			failureReason = paymentIntent.LastPaymentError.Msg
		}
	}

	if err := h.donations.MarkFailed(ctx, sessionID, failureReason); err != nil {
		if errors.Is(err, donation.ErrDonationNotFound) {
			slog.WarnContext(ctx, "donation record not found for failed payment intent",
				"session_id", sessionID,
				"payment_intent_id", paymentIntent.ID)
			return
		}
		slog.ErrorContext(ctx, "failed to mark donation failed",
			"session_id", sessionID,
			"payment_intent_id", paymentIntent.ID,
			"error", err)
		return
	}

	slog.InfoContext(ctx, "donation marked as failed",
		"session_id", sessionID,
		"payment_intent_id", paymentIntent.ID,
		"reason", failureReason)
}
