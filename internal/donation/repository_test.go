package donation

import (
	"errors"
	"testing"
)

func newPendingDonation(sessionID string) *Donation {
	return &Donation{
		SessionID:  sessionID,
		Status:     StatusPending,
		Amount:     500,
		Currency:   "pen",
		DonorID:    "user-donor",
		RecyclerID: "user-recycler",
	}
}

func TestInMemoryRepository_InsertAndGet(t *testing.T) {
	repo := NewInMemoryRepository()

	d := newPendingDonation("cs_test123")
	if err := repo.Insert(t.Context(), d); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if d.ID == "" {
		t.Error("Insert should assign an ID")
	}

	got, err := repo.GetBySessionID(t.Context(), "cs_test123")
	if err != nil {
		t.Fatalf("GetBySessionID failed: %v", err)
	}
	if got.Status != StatusPending {
		t.Errorf("status = %q, want pending", got.Status)
	}
	if got.Amount != 500 || got.Currency != "pen" {
		t.Errorf("amount/currency = %d/%q, want 500/pen", got.Amount, got.Currency)
	}

	if _, err := repo.GetBySessionID(t.Context(), "cs_unknown"); !errors.Is(err, ErrDonationNotFound) {
		t.Errorf("expected ErrDonationNotFound, got %v", err)
	}
}

func TestInMemoryRepository_Lifecycle(t *testing.T) {
	repo := NewInMemoryRepository()
	if err := repo.Insert(t.Context(), newPendingDonation("cs_lifecycle")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := repo.SetPaymentIntent(t.Context(), "cs_lifecycle", "pi_test123"); err != nil {
		t.Fatalf("SetPaymentIntent failed: %v", err)
	}
	if err := repo.MarkSucceeded(t.Context(), "cs_lifecycle"); err != nil {
		t.Fatalf("MarkSucceeded failed: %v", err)
	}

	got, err := repo.GetBySessionID(t.Context(), "cs_lifecycle")
	if err != nil {
		t.Fatalf("GetBySessionID failed: %v", err)
	}
	if got.Status != StatusSucceeded {
		t.Errorf("status = %q, want succeeded", got.Status)
	}
	if got.PaymentIntentID == nil || *got.PaymentIntentID != "pi_test123" {
		t.Errorf("payment intent = %v, want pi_test123", got.PaymentIntentID)
	}
}

func TestInMemoryRepository_MarkFailed(t *testing.T) {
	repo := NewInMemoryRepository()
	if err := repo.Insert(t.Context(), newPendingDonation("cs_failed")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := repo.MarkFailed(t.Context(), "cs_failed", "card_declined"); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}

	got, err := repo.GetBySessionID(t.Context(), "cs_failed")
	if err != nil {
		t.Fatalf("GetBySessionID failed: %v", err)
	}
	if got.Status != StatusFailed {
		t.Errorf("status = %q, want failed", got.Status)
	}
	if got.FailureReason == nil || *got.FailureReason != "card_declined" {
		t.Errorf("failure reason = %v, want card_declined", got.FailureReason)
	}

	if err := repo.MarkSucceeded(t.Context(), "cs_unknown"); !errors.Is(err, ErrDonationNotFound) {
		t.Errorf("expected ErrDonationNotFound for unknown session, got %v", err)
	}
}

func TestInMemoryWebhookRepository(t *testing.T) {
	repo := NewInMemoryWebhookRepository()

	processed, err := repo.HasProcessed("evt_1")
	if err != nil {
		t.Fatalf("HasProcessed failed: %v", err)
	}
	if processed {
		t.Error("fresh event should not be processed")
	}

	if err := repo.RecordEvent("evt_1", "checkout.session.completed"); err != nil {
		t.Fatalf("RecordEvent failed: %v", err)
	}

	processed, err = repo.HasProcessed("evt_1")
	if err != nil {
		t.Fatalf("HasProcessed failed: %v", err)
	}
	if !processed {
		t.Error("recorded event should be processed")
	}

	if err := repo.RecordEvent("evt_1", "checkout.session.completed"); !errors.Is(err, ErrEventAlreadyProcessed) {
		t.Errorf("expected ErrEventAlreadyProcessed, got %v", err)
	}
}
