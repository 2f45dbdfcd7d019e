package game

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPlayerLocksHonourContext(t *testing.T) {
	locks := newPlayerLocks()
	unlock, err := locks.acquire(context.Background(), "p1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := locks.acquire(ctx, "p1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}

	other, err := locks.acquire(context.Background(), "p2")
	if err != nil {
		t.Fatalf("other player blocked: %v", err)
	}
	other()

	unlock()
	unlock()
	if len(locks.slots) != 0 {
		t.Fatalf("slots leaked: %d", len(locks.slots))
	}
}
