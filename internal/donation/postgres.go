package donation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresRepository implements Repository backed by PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgreSQL donation repository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert stores a new donation record.
func (r *PostgresRepository) Insert(ctx context.Context, d *Donation) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.Status == "" {
		d.Status = StatusPending
	}
	query := `
		INSERT INTO donations (
			id, session_id, payment_intent_id, status, amount, currency,
			donor_id, recycler_id, failure_reason, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		d.ID, d.SessionID, d.PaymentIntentID, d.Status, d.Amount, d.Currency,
		d.DonorID, d.RecyclerID, d.FailureReason,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert donation: %w", err)
	}
	return nil
}

// GetBySessionID retrieves a donation by its checkout session ID.
func (r *PostgresRepository) GetBySessionID(ctx context.Context, sessionID string) (*Donation, error) {
	query := `
		SELECT id, session_id, payment_intent_id, status, amount, currency,
			donor_id, recycler_id, failure_reason, created_at, updated_at
		FROM donations
		WHERE session_id = $1
	`
	var d Donation
	err := r.db.QueryRowContext(ctx, query, sessionID).Scan(
		&d.ID, &d.SessionID, &d.PaymentIntentID, &d.Status, &d.Amount,
		&d.Currency, &d.DonorID, &d.RecyclerID, &d.FailureReason,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDonationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query donation: %w", err)
	}
	return &d, nil
}

// SetPaymentIntent records the payment intent ID once Stripe reports it.
func (r *PostgresRepository) SetPaymentIntent(ctx context.Context, sessionID, paymentIntentID string) error {
	query := `
		UPDATE donations
		SET payment_intent_id = $2, updated_at = NOW()
		WHERE session_id = $1
	`
	return r.exec(ctx, query, sessionID, paymentIntentID)
}

// MarkSucceeded finalizes a donation as succeeded.
func (r *PostgresRepository) MarkSucceeded(ctx context.Context, sessionID string) error {
	query := `
		UPDATE donations
		SET status = $2, failure_reason = NULL, updated_at = NOW()
		WHERE session_id = $1
	`
	return r.exec(ctx, query, sessionID, StatusSucceeded)
}

// MarkFailed finalizes a donation as failed with a reason.
func (r *PostgresRepository) MarkFailed(ctx context.Context, sessionID, reason string) error {
	query := `
		UPDATE donations
		SET status = $2, failure_reason = $3, updated_at = NOW()
		WHERE session_id = $1
	`
	return r.exec(ctx, query, sessionID, StatusFailed, reason)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update donation: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrDonationNotFound
	}
	return nil
}

// PostgresWebhookRepository implements WebhookRepository backed by
// PostgreSQL. The primary key on event_id is what makes webhook processing
// idempotent across replicas.
type PostgresWebhookRepository struct {
	db *sql.DB
}

// NewPostgresWebhookRepository creates a new PostgreSQL webhook event
// repository.
func NewPostgresWebhookRepository(db *sql.DB) *PostgresWebhookRepository {
	return &PostgresWebhookRepository{db: db}
}

// RecordEvent stores a processed webhook event. Returns
// ErrEventAlreadyProcessed if the event was already recorded.
func (r *PostgresWebhookRepository) RecordEvent(eventID, eventType string) error {
	query := `
		INSERT INTO webhook_events (event_id, event_type, processed_at)
		VALUES ($1, $2, $3)
	`
	_, err := r.db.Exec(query, eventID, eventType, time.Now())
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrEventAlreadyProcessed
		}
		return fmt.Errorf("failed to record webhook event: %w", err)
	}
	return nil
}

// HasProcessed reports whether an event was already processed.
func (r *PostgresWebhookRepository) HasProcessed(eventID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM webhook_events WHERE event_id = $1)`
	var exists bool
	if err := r.db.QueryRow(query, eventID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check webhook event: %w", err)
	}
	return exists, nil
}
