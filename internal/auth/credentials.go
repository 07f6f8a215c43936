package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
)

// Credential errors.
var (
	ErrEmailTaken         = errors.New("email is already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// bcryptCost balances hashing time against login latency.
const bcryptCost = 12

// Credential links a login email to a password hash and auth user ID.
type Credential struct {
	UserID       string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// CredentialRepository defines credential storage operations.
type CredentialRepository interface {
	// Create stores a new credential. Returns ErrEmailTaken if the email
	// is already registered.
	Create(ctx context.Context, c *Credential) error

	// GetByEmail retrieves a credential by email. Returns
	// ErrInvalidCredentials if no credential exists for the email.
	GetByEmail(ctx context.Context, email string) (*Credential, error)
}

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword compares a plaintext password against a stored hash.
// Returns ErrInvalidCredentials on mismatch.
func CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// NormalizeEmail lowercases and trims an email for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// InMemoryCredentialRepository is a thread-safe in-memory implementation
// used for testing and single-process development.
type InMemoryCredentialRepository struct {
	mu      sync.RWMutex
	byEmail map[string]*Credential
}

// NewInMemoryCredentialRepository creates an empty credential repository.
func NewInMemoryCredentialRepository() *InMemoryCredentialRepository {
	return &InMemoryCredentialRepository{byEmail: make(map[string]*Credential)}
}

// Create stores a new credential keyed by normalized email.
func (r *InMemoryCredentialRepository) Create(ctx context.Context, c *Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := NormalizeEmail(c.Email)
	if _, exists := r.byEmail[email]; exists {
		return ErrEmailTaken
	}

	stored := *c
	stored.Email = email
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	r.byEmail[email] = &stored
	return nil
}

// GetByEmail retrieves a credential by normalized email.
func (r *InMemoryCredentialRepository) GetByEmail(ctx context.Context, email string) (*Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.byEmail[NormalizeEmail(email)]
	if !ok {
		return nil, ErrInvalidCredentials
	}
	copied := *c
	return &copied, nil
}

// PostgresCredentialRepository stores credentials in Postgres.
type PostgresCredentialRepository struct {
	db *sql.DB
}

// NewPostgresCredentialRepository creates a credential repository backed by db.
func NewPostgresCredentialRepository(db *sql.DB) *PostgresCredentialRepository {
	return &PostgresCredentialRepository{db: db}
}

// Create stores a new credential. Email uniqueness is enforced by the
// unique constraint on user_credentials.email.
func (r *PostgresCredentialRepository) Create(ctx context.Context, c *Credential) error {
	const q = `
		INSERT INTO user_credentials (user_id, email, password_hash, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))`

	var createdAt any
	if !c.CreatedAt.IsZero() {
		createdAt = c.CreatedAt
	}

	_, err := r.db.ExecContext(ctx, q, c.UserID, NormalizeEmail(c.Email), c.PasswordHash, createdAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

// GetByEmail retrieves a credential by email.
func (r *PostgresCredentialRepository) GetByEmail(ctx context.Context, email string) (*Credential, error) {
	const q = `
		SELECT user_id, email, password_hash, created_at
		FROM user_credentials
		WHERE email = $1`

	var c Credential
	err := r.db.QueryRowContext(ctx, q, NormalizeEmail(email)).
		Scan(&c.UserID, &c.Email, &c.PasswordHash, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("query credential: %w", err)
	}
	return &c, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
