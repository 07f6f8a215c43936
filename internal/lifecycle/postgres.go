package lifecycle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/ecociclo/ecociclo/internal/claim"
	"github.com/ecociclo/ecociclo/internal/point"
	"github.com/ecociclo/ecociclo/internal/reward"
)

// PostgresStore implements Store with one transaction per transition. The
// single-active-claim invariant is backed by a partial unique index on
// collection_claims, so racing claims collide in the database rather than
// in application code.
type PostgresStore struct {
	db     *sql.DB
	points *point.PostgresRepository
	claims *claim.PostgresRepository
}

// NewPostgresStore creates a PostgreSQL lifecycle store.
func NewPostgresStore(db *sql.DB, points *point.PostgresRepository, claims *claim.PostgresRepository) *PostgresStore {
	return &PostgresStore{db: db, points: points, claims: claims}
}

func (s *PostgresStore) GetPoint(ctx context.Context, id string) (*point.CollectionPoint, error) {
	p, err := s.points.GetByID(ctx, id)
	if errors.Is(err, point.ErrPointNotFound) {
		return nil, ErrPointNotFound
	}
	return p, err
}

func (s *PostgresStore) CreatePoint(ctx context.Context, p *point.CollectionPoint) error {
	return s.points.Insert(ctx, p)
}

func (s *PostgresStore) GetClaim(ctx context.Context, id string) (*claim.Claim, error) {
	c, err := s.claims.GetByID(ctx, id)
	if errors.Is(err, claim.ErrClaimNotFound) {
		return nil, ErrClaimNotFound
	}
	return c, err
}

func (s *PostgresStore) ActiveClaim(ctx context.Context, pointID string) (*claim.Claim, error) {
	return s.claims.ActiveByPoint(ctx, pointID)
}

// Claim inserts the claim and marks the point claimed in one transaction.
func (s *PostgresStore) Claim(ctx context.Context, c *claim.Claim) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	insert := `
		INSERT INTO collection_claims (
			id, collection_point_id, recycler_id, user_id, status,
			pickup_time, claimed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = tx.ExecContext(ctx, insert,
		c.ID, c.CollectionPointID, c.RecyclerID, c.UserID, c.Status,
		c.PickupTime, c.ClaimedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyClaimed
		}
		return fmt.Errorf("failed to insert claim: %w", err)
	}

	update := `
		UPDATE collection_points SET
			status = $2, claim_id = $3, pickup_time = $4, recycler_id = $5
		WHERE id = $1 AND status = $6
	`
	result, err := tx.ExecContext(ctx, update,
		c.CollectionPointID, point.StatusClaimed, c.ID, c.PickupTime,
		c.RecyclerID, point.StatusAvailable)
	if err != nil {
		return fmt.Errorf("failed to mark point claimed: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrAlreadyClaimed
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit claim: %w", err)
	}
	return nil
}

// Cancel marks the claim cancelled and resets the point in one transaction.
func (s *PostgresStore) Cancel(ctx context.Context, c *claim.Claim, reason *string, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	update := `
		UPDATE collection_claims SET
			status = $2, cancelled_at = $3, cancellation_reason = $4
		WHERE id = $1 AND status = $5
	`
	result, err := tx.ExecContext(ctx, update,
		c.ID, claim.StatusCancelled, at, reason, claim.StatusClaimed)
	if err != nil {
		return fmt.Errorf("failed to cancel claim: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrClaimNotActive
	}

	reset := `
		UPDATE collection_points SET
			status = $2, claim_id = NULL, pickup_time = NULL, recycler_id = NULL
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, reset, c.CollectionPointID, point.StatusAvailable); err != nil {
		return fmt.Errorf("failed to reset point: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cancellation: %w", err)
	}

	c.Status = claim.StatusCancelled
	c.CancelledAt = &at
	c.CancellationReason = reason
	return nil
}

// Complete marks the claim and point completed and credits the point's
// owning resident, all in one transaction.
func (s *PostgresStore) Complete(ctx context.Context, c *claim.Claim, credit int, at time.Time) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	update := `
		UPDATE collection_claims SET status = $2, completed_at = $3
		WHERE id = $1 AND status = $4
	`
	result, err := tx.ExecContext(ctx, update,
		c.ID, claim.StatusCompleted, at, claim.StatusClaimed)
	if err != nil {
		return 0, fmt.Errorf("failed to complete claim: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return 0, ErrClaimNotActive
	}

	mark := `UPDATE collection_points SET status = $2 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, mark, c.CollectionPointID, point.StatusCompleted); err != nil {
		return 0, fmt.Errorf("failed to mark point completed: %w", err)
	}

	balance, err := reward.AccrueTx(ctx, tx, c.UserID, credit)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit completion: %w", err)
	}
	return balance, nil
}

// Reopen inserts the replacement point and deletes the original in one
// transaction.
func (s *PostgresStore) Reopen(ctx context.Context, originalID string, replacement *point.CollectionPoint) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	insert := `
		INSERT INTO collection_points (
			id, user_id, address, district, schedule, materials,
			notes, additional_info, photo_url, lat, lng, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = tx.ExecContext(ctx, insert,
		replacement.ID, replacement.UserID, replacement.Address,
		replacement.District, replacement.Schedule,
		pq.Array(replacement.Materials), replacement.Notes,
		replacement.AdditionalInfo, replacement.PhotoURL,
		replacement.Lat, replacement.Lng, replacement.Status,
		replacement.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert replacement point: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM collection_points WHERE id = $1`, originalID); err != nil {
		return fmt.Errorf("failed to delete original point: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reopen: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeletePoint(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM collection_points WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete point: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrPointNotFound
	}
	return nil
}

func rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return
	}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
