package main

import (
	"context"
	"errors"
	"testing"
	"time"

	cl "payday/internal/cli"
	"payday/internal/syncq"
)

func TestRunSimIsDeterministicPerSeed(t *testing.T) {
	opts := simOptions{
		BusinessType: "kiosk",
		Days:         60,
		Seed:         42,
		RestockBelow: 40,
		Start:        time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	first, err := runSim(context.Background(), opts)
	if err != nil {
		t.Fatalf("sim: %v", err)
	}
	second, err := runSim(context.Background(), opts)
	if err != nil {
		t.Fatalf("sim again: %v", err)
	}
	if len(first.Days) != 60 {
		t.Fatalf("days = %d", len(first.Days))
	}
	if first.Final.FundsMicros != second.Final.FundsMicros {
		t.Fatalf("same seed diverged: %d vs %d", first.Final.FundsMicros, second.Final.FundsMicros)
	}
	for i, d := range first.Days {
		want := opts.Start.AddDate(0, 0, i)
		if !d.TickAt.Equal(want) {
			t.Fatalf("day %d ticked at %s, want %s", i, d.TickAt, want)
		}
		b := d.Businesses[0]
		if b.Rating < 1 || b.Rating > 5 || b.InventoryLevel < 0 || b.InventoryLevel > 100 {
			t.Fatalf("day %d out of range: %+v", i, b)
		}
	}
}

func TestRunSimRejectsUnknownType(t *testing.T) {
	_, err := runSim(context.Background(), simOptions{BusinessType: "food_truck", Days: 1, Start: time.Now()})
	if err == nil {
		t.Fatalf("expected error for unknown business type")
	}
}

func TestFormatMicros(t *testing.T) {
	cases := map[int64]string{
		0:                 "0.00",
		1_500_000:         "1.50",
		-2_000_000:        "-2.00",
		1_234_567_890_000: "1,234,567.89",
	}
	for in, want := range cases {
		if got := formatMicros(in); got != want {
			t.Fatalf("formatMicros(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestQueueOnNetworkErrorPassesAPIErrors(t *testing.T) {
	apiErr := &cl.APIError{StatusCode: 400, Message: "insufficient funds"}
	if err := queueOnNetworkError(apiErr, syncq.Command{Method: "POST", Path: "/v1/businesses"}); !errors.Is(err, apiErr) {
		t.Fatalf("api error should be returned, got %v", err)
	}
}

func TestQueueOnNetworkErrorQueuesTransportFailures(t *testing.T) {
	syncq.Dir = t.TempDir()
	t.Cleanup(func() { syncq.Dir = "" })

	err := queueOnNetworkError(errors.New("dial tcp: connection refused"), syncq.Command{Method: "POST", Path: "/v1/tick", IdempotencyKey: "k1"})
	if err != nil {
		t.Fatalf("transport error should be queued, got %v", err)
	}
	queued, err := syncq.Load()
	if err != nil || len(queued) != 1 || queued[0].IdempotencyKey != "k1" {
		t.Fatalf("queue = %+v err=%v", queued, err)
	}
}
