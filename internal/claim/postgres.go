package claim

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresRepository implements Repository backed by PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgreSQL claim repository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const claimColumns = `id, collection_point_id, recycler_id, user_id, status,
	pickup_time, claimed_at, completed_at, cancelled_at, cancellation_reason`

// Insert stores a new claim.
func (r *PostgresRepository) Insert(ctx context.Context, c *Claim) error {
	query := `
		INSERT INTO collection_claims (
			id, collection_point_id, recycler_id, user_id, status,
			pickup_time, claimed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.CollectionPointID, c.RecyclerID, c.UserID, c.Status,
		c.PickupTime, c.ClaimedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert claim: %w", err)
	}
	return nil
}

// GetByID retrieves a claim by ID.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM collection_claims WHERE id = $1`
	c, err := scanClaim(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrClaimNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get claim: %w", err)
	}
	return c, nil
}

// ActiveByPoint returns the active claim for a point, or nil.
func (r *PostgresRepository) ActiveByPoint(ctx context.Context, pointID string) (*Claim, error) {
	query := `
		SELECT ` + claimColumns + `
		FROM collection_claims
		WHERE collection_point_id = $1 AND status = $2
	`
	c, err := scanClaim(r.db.QueryRowContext(ctx, query, pointID, StatusClaimed))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active claim: %w", err)
	}
	return c, nil
}

// ListByPoint returns all claims against a point, most recent first.
func (r *PostgresRepository) ListByPoint(ctx context.Context, pointID string) ([]Claim, error) {
	query := `
		SELECT ` + claimColumns + `
		FROM collection_claims
		WHERE collection_point_id = $1
		ORDER BY claimed_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, pointID)
	if err != nil {
		return nil, fmt.Errorf("failed to list claims: %w", err)
	}
	defer rows.Close()

	var out []Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan claim: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// ListByOwner returns all claims against a resident's points, most recent
// first.
func (r *PostgresRepository) ListByOwner(ctx context.Context, userID string) ([]Claim, error) {
	query := `
		SELECT ` + claimColumns + `
		FROM collection_claims
		WHERE user_id = $1
		ORDER BY claimed_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list claims: %w", err)
	}
	defer rows.Close()

	var out []Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan claim: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClaim(row rowScanner) (*Claim, error) {
	var c Claim
	err := row.Scan(
		&c.ID, &c.CollectionPointID, &c.RecyclerID, &c.UserID, &c.Status,
		&c.PickupTime, &c.ClaimedAt, &c.CompletedAt, &c.CancelledAt,
		&c.CancellationReason,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
