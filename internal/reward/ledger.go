// Package reward manages eco-credit balances: atomic accrual on completed
// collections and the milestone tracking that announces each new multiple
// of the reward step.
package reward

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
)

// CompletionCredit is the number of eco-credits earned per completed
// collection.
const CompletionCredit = 10

// ErrAccountNotFound is returned when no balance exists for a user.
var ErrAccountNotFound = errors.New("reward account not found")

// Ledger manages eco-credit balances.
type Ledger interface {
	// Accrue atomically adds amount to a user's balance and returns the
	// new balance. The increment happens server-side so concurrent
	// completions never lose credits.
	Accrue(ctx context.Context, userID string, amount int) (int, error)

	// Balance returns a user's current balance.
	Balance(ctx context.Context, userID string) (int, error)
}

// PostgresLedger implements Ledger against the profiles table.
type PostgresLedger struct {
	db *sql.DB
}

// NewPostgresLedger creates a new PostgreSQL ledger.
func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// Accrue atomically adds amount to a user's balance.
func (l *PostgresLedger) Accrue(ctx context.Context, userID string, amount int) (int, error) {
	return accrue(ctx, l.db, userID, amount)
}

// Balance returns a user's current balance.
func (l *PostgresLedger) Balance(ctx context.Context, userID string) (int, error) {
	query := `SELECT eco_creditos FROM profiles WHERE user_id = $1`
	var balance int
	err := l.db.QueryRowContext(ctx, query, userID).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, ErrAccountNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

type execQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// AccrueTx adds amount to a user's balance within an existing transaction.
// The lifecycle engine uses this so the credit lands or rolls back together
// with the completion itself.
func AccrueTx(ctx context.Context, tx *sql.Tx, userID string, amount int) (int, error) {
	return accrue(ctx, tx, userID, amount)
}

func accrue(ctx context.Context, q execQuerier, userID string, amount int) (int, error) {
	query := `
		UPDATE profiles
		SET eco_creditos = eco_creditos + $2
		WHERE user_id = $1
		RETURNING eco_creditos
	`
	var balance int
	err := q.QueryRowContext(ctx, query, userID, amount).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, ErrAccountNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to accrue credits: %w", err)
	}
	return balance, nil
}

// InMemoryLedger is a thread-safe in-memory implementation for testing.
type InMemoryLedger struct {
	mu       sync.Mutex
	balances map[string]int
}

// NewInMemoryLedger creates a new in-memory ledger.
func NewInMemoryLedger() *InMemoryLedger {
	return &InMemoryLedger{balances: make(map[string]int)}
}

// Accrue adds amount to a user's balance.
func (l *InMemoryLedger) Accrue(ctx context.Context, userID string, amount int) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.balances[userID] += amount
	return l.balances[userID], nil
}

// Balance returns a user's current balance.
func (l *InMemoryLedger) Balance(ctx context.Context, userID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.balances[userID], nil
}
