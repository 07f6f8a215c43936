package profile

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresRepository implements Repository against the profiles table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new Postgres-backed profile repository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const profileColumns = `id, user_id, name, email, phone, address, role, bio, avatar_url,
	materials, online, lat, lng, rating_average, total_ratings, eco_creditos, created_at`

// Insert stores a new profile.
func (r *PostgresRepository) Insert(ctx context.Context, p *Profile) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	query := `
		INSERT INTO profiles (id, user_id, name, email, phone, address, role, bio, avatar_url,
			materials, online, lat, lng, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())
	`
	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.UserID, p.Name, p.Email, p.Phone, p.Address, p.Role, p.Bio, p.AvatarURL,
		pq.Array(p.Materials), p.Online, p.Lat, p.Lng)
	if err != nil {
		return fmt.Errorf("failed to insert profile: %w", err)
	}
	return nil
}

// GetByUserID retrieves a profile by auth user ID.
func (r *PostgresRepository) GetByUserID(ctx context.Context, userID string) (*Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE user_id = $1`
	p, err := scanProfile(r.db.QueryRowContext(ctx, query, userID))
	if err == sql.ErrNoRows {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

// Update replaces the mutable contact fields of an existing profile. The
// eco_creditos balance is deliberately excluded; only the reward ledger
// writes it.
func (r *PostgresRepository) Update(ctx context.Context, p *Profile) error {
	query := `
		UPDATE profiles
		SET name = $2, email = $3, phone = $4, address = $5, bio = $6,
		    avatar_url = $7, materials = $8
		WHERE user_id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		p.UserID, p.Name, p.Email, p.Phone, p.Address, p.Bio, p.AvatarURL, pq.Array(p.Materials))
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// SetOnline flips the presence flag and records reported coordinates.
func (r *PostgresRepository) SetOnline(ctx context.Context, userID string, online bool, lat, lng *float64) error {
	query := `
		UPDATE profiles
		SET online = $2,
		    lat = COALESCE($3, lat),
		    lng = COALESCE($4, lng)
		WHERE user_id = $1
	`
	result, err := r.db.ExecContext(ctx, query, userID, online, lat, lng)
	if err != nil {
		return fmt.Errorf("failed to set presence: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// OnlineRecyclers returns all recycler profiles currently online.
func (r *PostgresRepository) OnlineRecyclers(ctx context.Context) ([]Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles
		WHERE role = $1 AND online = TRUE
		ORDER BY name ASC`
	rows, err := r.db.QueryContext(ctx, query, RoleRecycler)
	if err != nil {
		return nil, fmt.Errorf("failed to list online recyclers: %w", err)
	}
	defer rows.Close()

	var out []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recycler: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate recyclers: %w", err)
	}
	return out, nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*Profile, error) {
	var p Profile
	var materials pq.StringArray
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Email, &p.Phone, &p.Address, &p.Role,
		&p.Bio, &p.AvatarURL, &materials, &p.Online, &p.Lat, &p.Lng,
		&p.RatingAverage, &p.TotalRatings, &p.EcoCreditos, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.Materials = []string(materials)
	return &p, nil
}
