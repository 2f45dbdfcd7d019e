package economy

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var testNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type scriptedSource struct {
	vals  []float64
	draws int
}

func (s *scriptedSource) Float64() float64 {
	s.draws++
	if len(s.vals) == 0 {
		return 0.999999
	}
	v := s.vals[0]
	s.vals = s.vals[1:]
	return v
}

func kiosk() Business {
	return NewBusiness("biz-1", "player-1", Kiosk, testNow.Add(-30*Day))
}

func TestDefaultTablesValid(t *testing.T) {
	tables := DefaultTables()
	for _, bt := range []BusinessType{Kiosk, Cafe, Restaurant, RestaurantChain} {
		if _, ok := tables.Business(bt); !ok {
			t.Fatalf("missing business spec %s", bt)
		}
	}
	for _, et := range tables.EventTypes() {
		spec, _ := tables.Event(et)
		sum := 0.0
		for _, o := range spec.Outcomes {
			sum += o.Weight
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Fatalf("event %s weights sum to %f", et, sum)
		}
	}
	if got := len(tables.EventTypes()); got != 4 {
		t.Fatalf("event types = %d, want 4", got)
	}
}

func TestTablesAreImmutable(t *testing.T) {
	tables := DefaultTables()
	spec, _ := tables.Event(HealthInspection)
	spec.Outcomes[0].CostMicros = 1
	again, _ := tables.Event(HealthInspection)
	if again.Outcomes[0].CostMicros == 1 {
		t.Fatalf("outcome slice leaked out of tables")
	}
	cfg := tables.Config()
	cfg.Businesses[0].CostMicros = 1
	if b, _ := tables.Business(cfg.Businesses[0].Type); b.CostMicros == 1 {
		t.Fatalf("config copy leaked into tables")
	}
}

func TestNewTablesRejectsBadWeights(t *testing.T) {
	cfg := DefaultTablesConfig()
	cfg.Events[0].Outcomes[0].Weight = 0.5
	if _, err := NewTables(cfg); err == nil {
		t.Fatalf("expected weight validation error")
	}
	cfg = DefaultTablesConfig()
	cfg.Events[1].Probability = 1.5
	if _, err := NewTables(cfg); err == nil {
		t.Fatalf("expected probability validation error")
	}
}

func TestLoadTablesOverridesSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.yaml")
	body := []byte(`
sell_refund_ratio: 0.25
inventory:
  restock_cost_micros: 1000000
  restock_amount: 25
  low_threshold: 30
  decay_factor: 0.8
  low_stock_penalty: 0.4
  penalty_streak_days: 2
  streak_rating_penalty: 1
`)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	tables, err := LoadTables(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tables.SellRefundRatio() != 0.25 {
		t.Fatalf("refund ratio = %f", tables.SellRefundRatio())
	}
	if tables.Inventory().LowThreshold != 30 {
		t.Fatalf("low threshold = %f", tables.Inventory().LowThreshold)
	}
	if spec, ok := tables.Business(Kiosk); !ok || spec.BaseRevenueMicros != 8_000*MicrosPerCoin {
		t.Fatalf("defaults not kept for businesses: %+v", spec)
	}
}

func TestLoadTablesMergesStructSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.yaml")
	body := []byte(`
inventory:
  low_threshold: 35
achievements:
  tycoon_business_type: cafe
`)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	tables, err := LoadTables(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	defaults := DefaultTablesConfig()

	wantInv := defaults.Inventory
	wantInv.LowThreshold = 35
	if got := tables.Inventory(); got != wantInv {
		t.Fatalf("inventory = %+v, want %+v", got, wantInv)
	}
	wantAch := defaults.Achievements
	wantAch.TycoonBusinessType = Cafe
	if got := tables.Achievements(); got != wantAch {
		t.Fatalf("achievements = %+v, want %+v", got, wantAch)
	}
}

func TestNewBusinessKeepsMicrosecondPrecision(t *testing.T) {
	at := time.Date(2025, 3, 1, 9, 0, 0, 123_456_789, time.FixedZone("CET", 3600))
	b := NewBusiness("biz-1", "player-1", Kiosk, at)
	want := time.Date(2025, 3, 1, 8, 0, 0, 123_456_000, time.UTC)
	if !b.CreatedAt.Equal(want) || b.CreatedAt.Location() != time.UTC {
		t.Fatalf("created at = %v, want %v", b.CreatedAt, want)
	}
	if got := Stamp(b.CreatedAt); !got.Equal(b.CreatedAt) {
		t.Fatalf("stamp not idempotent: %v", got)
	}
}

func TestParseEnums(t *testing.T) {
	if v, err := ParseBusinessType(" Restaurant_Chain "); err != nil || v != RestaurantChain {
		t.Fatalf("parse business type: %v %v", v, err)
	}
	for _, fn := range []func() error{
		func() error { _, err := ParseBusinessType("castle"); return err },
		func() error { _, err := ParseEmployeeType("janitor"); return err },
		func() error { _, err := ParseUpgradeType("pool"); return err },
		func() error { _, err := ParseEventType("meteor"); return err },
		func() error { _, err := ParseEventOutcome("bonus"); return err },
	} {
		if err := fn(); err == nil {
			t.Fatalf("expected invalid enum error")
		}
	}
}

func TestWeightedChoice(t *testing.T) {
	weights := []float64{0.7, 0, 0.3}
	tests := []struct {
		draw float64
		want int
	}{
		{0.0, 0},
		{0.69, 0},
		{0.70, 2},
		{0.999999, 2},
	}
	for _, tc := range tests {
		got := WeightedChoice(&scriptedSource{vals: []float64{tc.draw}}, weights)
		if got != tc.want {
			t.Fatalf("draw=%f got=%d want=%d", tc.draw, got, tc.want)
		}
	}
	if got := WeightedChoice(&scriptedSource{}, []float64{0, 0}); got != -1 {
		t.Fatalf("all-zero weights got %d", got)
	}
}

func TestClampRatingAnySequence(t *testing.T) {
	src := NewSource(7)
	b := kiosk()
	for i := 0; i < 5000; i++ {
		b.AdjustRating((src.Float64() - 0.5) * 6)
		if b.Rating < MinRating || b.Rating > MaxRating {
			t.Fatalf("rating %f escaped bounds at step %d", b.Rating, i)
		}
	}
	if got := ClampRating(math.NaN()); got != MinRating {
		t.Fatalf("NaN rating clamped to %f", got)
	}
}
