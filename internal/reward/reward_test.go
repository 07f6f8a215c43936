package reward

import (
	"context"
	"testing"
)

func TestInMemoryLedgerAccrue(t *testing.T) {
	l := NewInMemoryLedger()
	ctx := context.Background()

	balance, err := l.Accrue(ctx, "recycler-1", CompletionCredit)
	if err != nil {
		t.Fatalf("Accrue failed: %v", err)
	}
	if balance != 10 {
		t.Errorf("balance = %d, want 10", balance)
	}

	balance, err = l.Accrue(ctx, "recycler-1", CompletionCredit)
	if err != nil {
		t.Fatalf("Accrue failed: %v", err)
	}
	if balance != 20 {
		t.Errorf("balance = %d, want 20", balance)
	}

	other, err := l.Balance(ctx, "recycler-2")
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if other != 0 {
		t.Errorf("untouched balance = %d, want 0", other)
	}
}

func TestThresholdFiresAtStep(t *testing.T) {
	tr := NewThresholdTracker()

	if tr.Check(40) {
		t.Error("40 should not fire")
	}
	if tr.Check(45) {
		t.Error("45 should not fire")
	}
	if !tr.Check(50) {
		t.Error("50 should fire")
	}
}

func TestThresholdFiresOncePerStep(t *testing.T) {
	tr := NewThresholdTracker()

	if !tr.Check(50) {
		t.Fatal("first 50 should fire")
	}
	if tr.Check(50) {
		t.Error("repeated 50 should not fire again")
	}
	if !tr.Check(100) {
		t.Error("100 should fire")
	}
	if tr.Check(100) {
		t.Error("repeated 100 should not fire again")
	}
}

func TestThresholdIgnoresNonMultiples(t *testing.T) {
	tr := NewThresholdTracker()

	for _, balance := range []int{10, 60, 99, 101, 149} {
		if tr.Check(balance) {
			t.Errorf("%d should not fire", balance)
		}
	}
}

func TestThresholdZeroNeverFires(t *testing.T) {
	tr := NewThresholdTracker()
	if tr.Check(0) {
		t.Error("zero balance should not fire")
	}
}

func TestThresholdReset(t *testing.T) {
	tr := NewThresholdTracker()
	if !tr.Check(50) {
		t.Fatal("50 should fire")
	}
	tr.Reset()
	if !tr.Check(50) {
		t.Error("50 should fire again after reset")
	}
}
