package point

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/ecociclo/ecociclo/internal/claim"
	"github.com/ecociclo/ecociclo/internal/profile"
)

// PostgresRepository implements Repository backed by PostgreSQL.
type PostgresRepository struct {
	db       *sql.DB
	claims   *claim.PostgresRepository
	profiles *profile.PostgresRepository
}

// NewPostgresRepository creates a new PostgreSQL point repository.
func NewPostgresRepository(db *sql.DB, claims *claim.PostgresRepository, profiles *profile.PostgresRepository) *PostgresRepository {
	return &PostgresRepository{db: db, claims: claims, profiles: profiles}
}

const pointColumns = `id, user_id, address, district, schedule, materials,
	notes, additional_info, photo_url, lat, lng, status, claim_id,
	pickup_time, recycler_id, created_at`

// Insert stores a new point.
func (r *PostgresRepository) Insert(ctx context.Context, p *CollectionPoint) error {
	query := `
		INSERT INTO collection_points (
			id, user_id, address, district, schedule, materials,
			notes, additional_info, photo_url, lat, lng, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.UserID, p.Address, p.District, p.Schedule,
		pq.Array(p.Materials), p.Notes, p.AdditionalInfo, p.PhotoURL,
		p.Lat, p.Lng, p.Status, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert collection point: %w", err)
	}
	return nil
}

// GetByID retrieves a point by ID.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*CollectionPoint, error) {
	query := `SELECT ` + pointColumns + ` FROM collection_points WHERE id = $1`
	p, err := scanPoint(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrPointNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get collection point: %w", err)
	}
	return p, nil
}

// ListByOwner retrieves a resident's detailed points, newest first. Points
// carrying several historical claims are reduced to the most recent one so
// callers always see a single optional claim.
func (r *PostgresRepository) ListByOwner(ctx context.Context, userID string) ([]DetailedPoint, error) {
	query := `
		SELECT ` + pointColumns + `
		FROM collection_points
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list collection points: %w", err)
	}
	defer rows.Close()

	var points []CollectionPoint
	for rows.Next() {
		p, err := scanPoint(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan collection point: %w", err)
		}
		points = append(points, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]DetailedPoint, 0, len(points))
	for _, p := range points {
		dp := DetailedPoint{Point: p}
		claims, err := r.claims.ListByPoint(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		dp.Claim = claim.Latest(claims)
		if dp.Claim != nil {
			rec, err := r.profiles.GetByUserID(ctx, dp.Claim.RecyclerID)
			if err != nil && err != profile.ErrProfileNotFound {
				return nil, err
			}
			dp.Recycler = rec
		}
		out = append(out, dp)
	}
	return out, nil
}

// ListAvailable retrieves available points, optionally filtered by district,
// newest first.
func (r *PostgresRepository) ListAvailable(ctx context.Context, district string) ([]CollectionPoint, error) {
	query := `
		SELECT ` + pointColumns + `
		FROM collection_points
		WHERE status = $1 AND ($2 = '' OR district = $2)
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, StatusAvailable, district)
	if err != nil {
		return nil, fmt.Errorf("failed to list available points: %w", err)
	}
	defer rows.Close()

	out := make([]CollectionPoint, 0)
	for rows.Next() {
		p, err := scanPoint(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan collection point: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPoint(row rowScanner) (*CollectionPoint, error) {
	var p CollectionPoint
	err := row.Scan(
		&p.ID, &p.UserID, &p.Address, &p.District, &p.Schedule,
		pq.Array(&p.Materials), &p.Notes, &p.AdditionalInfo, &p.PhotoURL,
		&p.Lat, &p.Lng, &p.Status, &p.ClaimID, &p.PickupTime,
		&p.RecyclerID, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
