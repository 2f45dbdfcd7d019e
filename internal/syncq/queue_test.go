package syncq

import (
	"context"
	"errors"
	"testing"
)

func TestPushLoadReplay(t *testing.T) {
	Dir = t.TempDir()
	t.Cleanup(func() { Dir = "" })

	empty, err := Load()
	if err != nil || len(empty) != 0 {
		t.Fatalf("empty queue = %v err=%v", empty, err)
	}
	for _, key := range []string{"k1", "k2", "k3"} {
		if err := Push(Command{Method: "POST", Path: "/v1/businesses/b1/inventory", IdempotencyKey: key}); err != nil {
			t.Fatalf("push %s: %v", key, err)
		}
	}

	transient := errors.New("connection refused")
	rejected := errors.New("api status 400")
	send := func(_ context.Context, c Command) error {
		switch c.IdempotencyKey {
		case "k2":
			return transient
		case "k3":
			return rejected
		}
		return nil
	}
	sent, failed, err := Replay(context.Background(), send, func(err error) bool { return errors.Is(err, transient) })
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if sent != 1 || len(failed) != 2 {
		t.Fatalf("sent=%d failed=%v", sent, failed)
	}

	left, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(left) != 1 || left[0].IdempotencyKey != "k2" {
		t.Fatalf("remaining = %+v", left)
	}
}
