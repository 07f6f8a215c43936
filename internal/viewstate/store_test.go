package viewstate

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.Get(ctx, "u1", KeyActiveTab); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get on empty store error = %v, want ErrNotFound", err)
	}

	if err := s.Set(ctx, "u1", KeyActiveTab, "map"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := s.Get(ctx, "u1", KeyActiveTab)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != "map" {
		t.Errorf("got %q, want %q", got, "map")
	}

	// Another user's state stays separate.
	if _, err := s.Get(ctx, "u2", KeyActiveTab); !errors.Is(err, ErrNotFound) {
		t.Error("other user should not see the value")
	}

	if err := s.Delete(ctx, "u1", KeyActiveTab); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(ctx, "u1", KeyActiveTab); !errors.Is(err, ErrNotFound) {
		t.Error("deleted key should not be found")
	}
}

func TestMemoryStoreOverwrite(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Set(ctx, "u1", KeyRecyclersOnline, `["r1"]`); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Set(ctx, "u1", KeyRecyclersOnline, `["r1","r2"]`); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := s.Get(ctx, "u1", KeyRecyclersOnline)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != `["r1","r2"]` {
		t.Errorf("got %q", got)
	}
}
