package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("secret-password")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "secret-password" {
		t.Error("hash should not equal the plaintext password")
	}

	if err := CheckPassword(hash, "secret-password"); err != nil {
		t.Errorf("CheckPassword rejected the correct password: %v", err)
	}
	if err := CheckPassword(hash, "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"maria@example.com", "maria@example.com"},
		{"  Maria@Example.COM ", "maria@example.com"},
		{"UPPER@CASE.PE", "upper@case.pe"},
	}
	for _, tt := range tests {
		if got := NormalizeEmail(tt.input); got != tt.want {
			t.Errorf("NormalizeEmail(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestInMemoryCredentialRepository(t *testing.T) {
	repo := NewInMemoryCredentialRepository()

	cred := &Credential{
		UserID:       "user-1",
		Email:        "maria@example.com",
		PasswordHash: "hash",
	}
	if err := repo.Create(t.Context(), cred); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := repo.GetByEmail(t.Context(), "maria@example.com")
	if err != nil {
		t.Fatalf("GetByEmail failed: %v", err)
	}
	if got.UserID != "user-1" {
		t.Errorf("user ID = %q, want user-1", got.UserID)
	}

	// Duplicate email is rejected.
	dup := &Credential{
		UserID:       "user-2",
		Email:        "maria@example.com",
		PasswordHash: "other",
	}
	if err := repo.Create(t.Context(), dup); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}

	// Unknown email maps to invalid credentials.
	if _, err := repo.GetByEmail(t.Context(), "ghost@example.com"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestHashPassword_RejectsOverlongInput(t *testing.T) {
	// bcrypt rejects inputs over 72 bytes.
	if _, err := HashPassword(strings.Repeat("x", 100)); err == nil {
		t.Error("expected error for password over 72 bytes")
	}
}
