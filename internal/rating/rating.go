// Package rating records resident ratings of recyclers and keeps the
// recycler's aggregate average up to date.
package rating

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidScore is returned when a score falls outside 1..5.
var ErrInvalidScore = errors.New("rating score must be between 1 and 5")

// Rating is a single resident rating of a recycler.
type Rating struct {
	ID         string    `json:"id"`
	RecyclerID string    `json:"recycler_id"`
	RaterID    string    `json:"rater_id"`
	Score      int       `json:"score"`
	Comment    *string   `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Repository defines rating data operations.
type Repository interface {
	// Insert stores a rating and refreshes the recycler's aggregate.
	Insert(ctx context.Context, r *Rating) error

	// Summary returns the average score and total count for a recycler.
	Summary(ctx context.Context, recyclerID string) (avg float64, total int, err error)
}

// InMemoryRepository is a thread-safe in-memory implementation for testing.
type InMemoryRepository struct {
	mu      sync.RWMutex
	ratings []Rating
}

// NewInMemoryRepository creates a new in-memory rating repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{}
}

// Insert stores a rating.
func (r *InMemoryRepository) Insert(ctx context.Context, rt *Rating) error {
	if rt.Score < 1 || rt.Score > 5 {
		return ErrInvalidScore
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if rt.ID == "" {
		rt.ID = uuid.New().String()
	}
	if rt.CreatedAt.IsZero() {
		rt.CreatedAt = time.Now()
	}
	r.ratings = append(r.ratings, *rt)
	return nil
}

// Summary returns the average score and total count for a recycler.
func (r *InMemoryRepository) Summary(ctx context.Context, recyclerID string) (float64, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sum, total := 0, 0
	for _, rt := range r.ratings {
		if rt.RecyclerID == recyclerID {
			sum += rt.Score
			total++
		}
	}
	if total == 0 {
		return 0, 0, nil
	}
	return float64(sum) / float64(total), total, nil
}

// PostgresRepository implements Repository backed by PostgreSQL. Inserting a
// rating also refreshes the denormalized aggregate on the recycler's profile
// inside the same transaction.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgreSQL rating repository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert stores a rating and refreshes the recycler's aggregate.
func (r *PostgresRepository) Insert(ctx context.Context, rt *Rating) error {
	if rt.Score < 1 || rt.Score > 5 {
		return ErrInvalidScore
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			return
		}
	}()

	insert := `
		INSERT INTO recycler_ratings (id, recycler_id, rater_id, score, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = tx.ExecContext(ctx, insert,
		rt.ID, rt.RecyclerID, rt.RaterID, rt.Score, rt.Comment, rt.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert rating: %w", err)
	}

	refresh := `
		UPDATE profiles SET
			rating_average = sub.avg,
			total_ratings = sub.total
		FROM (
			SELECT AVG(score)::float8 AS avg, COUNT(*) AS total
			FROM recycler_ratings
			WHERE recycler_id = $1
		) sub
		WHERE user_id = $1
	`
	if _, err := tx.ExecContext(ctx, refresh, rt.RecyclerID); err != nil {
		return fmt.Errorf("failed to refresh rating aggregate: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rating: %w", err)
	}
	return nil
}

// Summary returns the average score and total count for a recycler.
func (r *PostgresRepository) Summary(ctx context.Context, recyclerID string) (float64, int, error) {
	query := `
		SELECT COALESCE(AVG(score), 0)::float8, COUNT(*)
		FROM recycler_ratings
		WHERE recycler_id = $1
	`
	var avg float64
	var total int
	if err := r.db.QueryRowContext(ctx, query, recyclerID).Scan(&avg, &total); err != nil {
		return 0, 0, fmt.Errorf("failed to get rating summary: %w", err)
	}
	return avg, total, nil
}
