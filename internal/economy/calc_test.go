package economy

import (
	"math"
	"testing"
	"time"
)

func TestKioskBaselineScenario(t *testing.T) {
	tables := DefaultTables()
	b := kiosk()
	fx := tables.Evaluate(&b, b.InventoryLevel, testNow)
	res := tables.Settle(&b, fx, 0)

	if res.RevenueMicros != 8_000*float64(MicrosPerCoin) {
		t.Fatalf("revenue = %f", res.RevenueMicros)
	}
	if res.ExpensesMicros != 2_000*float64(MicrosPerCoin) {
		t.Fatalf("expenses = %f", res.ExpensesMicros)
	}
	if res.NetProfitMicros != 6_000*float64(MicrosPerCoin) {
		t.Fatalf("net = %f", res.NetProfitMicros)
	}
}

func TestRevenueComposesAllFactors(t *testing.T) {
	tables := DefaultTables()
	expires := testNow.Add(3 * Day)
	b := kiosk()
	b.Rating = 4.0
	b.Employees = []Employee{{ID: "e1", Type: Manager}, {ID: "e2", Type: Chef}}
	b.Upgrades = []Upgrade{
		{Type: NewMenu, PurchasedAt: testNow.Add(-Day)},
		{Type: Advertising, PurchasedAt: testNow.Add(-Day), ExpiresAt: &expires},
	}
	b.Events = []BusinessEvent{{ID: "ev1", Type: CompetitorOpens, Outcome: OutcomeRevenuePenalty, TriggeredAt: testNow.Add(-Day), ExpiresAt: &expires}}

	fx := tables.Evaluate(&b, 10, testNow)
	got := tables.Revenue(&b, fx)

	want := 8_000 * float64(MicrosPerCoin) * (4.0 / 3.0) * 1.25 * 1.30 * 1.20 * 0.80 * 0.5
	if math.Abs(got-want) > want*1e-12 {
		t.Fatalf("revenue got=%f want=%f", got, want)
	}

	wantExpenses := float64((2_000 + 8_000 + 5_000) * MicrosPerCoin)
	if e := tables.Expenses(&b); e != wantExpenses {
		t.Fatalf("expenses got=%f want=%f", e, wantExpenses)
	}
}

func TestInventoryPenaltyThreshold(t *testing.T) {
	tables := DefaultTables()
	tests := []struct {
		level float64
		want  float64
	}{
		{0, 0.5},
		{19.999, 0.5},
		{20, 1.0},
		{90, 1.0},
	}
	for _, tc := range tests {
		if got := tables.InventoryPenalty(tc.level); got != tc.want {
			t.Fatalf("level=%f got=%f want=%f", tc.level, got, tc.want)
		}
	}
}

func TestExpiredUpgradeAndResolvedEventDoNotApply(t *testing.T) {
	tables := DefaultTables()
	past := testNow.Add(-time.Hour)
	b := kiosk()
	b.Upgrades = []Upgrade{{Type: Advertising, PurchasedAt: testNow.Add(-7 * Day), ExpiresAt: &past}}
	b.Events = []BusinessEvent{
		{ID: "ev1", Type: EquipmentBreakdown, Outcome: OutcomeRequiresRepair, TriggeredAt: testNow.Add(-Day), Resolved: true},
		{ID: "ev2", Type: ViralPost, Outcome: OutcomeRevenueBoost, TriggeredAt: testNow.Add(-3 * Day), ExpiresAt: &testNow},
	}
	fx := tables.Evaluate(&b, 100, testNow)
	if fx.Upgrades.RevenueMultiplier != 1.0 {
		t.Fatalf("expired upgrade applied: %f", fx.Upgrades.RevenueMultiplier)
	}
	if fx.Events.RevenueMultiplier != 1.0 {
		t.Fatalf("finished events applied: %f", fx.Events.RevenueMultiplier)
	}
}

func TestClosureForcesZeroRevenue(t *testing.T) {
	tables := DefaultTables()
	until := testNow.Add(Day)
	b := kiosk()
	b.Upgrades = []Upgrade{{Type: Delivery, PurchasedAt: testNow.Add(-Day)}}
	b.Events = []BusinessEvent{{ID: "ev1", Type: HealthInspection, Outcome: OutcomeClosure, TriggeredAt: testNow.Add(-Day), ExpiresAt: &until}}

	fx := tables.Evaluate(&b, 100, testNow)
	if !fx.Events.Closure {
		t.Fatalf("closure flag not set")
	}
	res := tables.Settle(&b, fx, 0)
	if res.RevenueMicros != 0 {
		t.Fatalf("revenue during closure = %f", res.RevenueMicros)
	}
	if res.NetProfitMicros != -2_000*float64(MicrosPerCoin) {
		t.Fatalf("net during closure = %f", res.NetProfitMicros)
	}
}

func TestImmediateCostOnlyForEventsTriggeredNow(t *testing.T) {
	tables := DefaultTables()
	b := kiosk()
	b.Events = []BusinessEvent{
		{ID: "old", Type: HealthInspection, Outcome: OutcomeFine, TriggeredAt: testNow.Add(-Day), ExpiresAt: &testNow},
		{ID: "new", Type: HealthInspection, Outcome: OutcomeFine, TriggeredAt: testNow, ExpiresAt: &testNow},
	}
	fx := tables.Evaluate(&b, 100, testNow)
	if fx.Events.ImmediateCostMicros != 50_000*float64(MicrosPerCoin) {
		t.Fatalf("immediate cost = %f", fx.Events.ImmediateCostMicros)
	}
	res := tables.Settle(&b, fx, fx.Events.ImmediateCostMicros)
	want := float64((8_000 - 2_000 - 50_000) * MicrosPerCoin)
	if res.NetProfitMicros != want {
		t.Fatalf("net = %f want %f", res.NetProfitMicros, want)
	}
}

func TestEmployeeRatingDeltaIsReportedNotApplied(t *testing.T) {
	tables := DefaultTables()
	b := kiosk()
	b.Employees = []Employee{{ID: "c1", Type: Chef}, {ID: "c2", Type: Chef}}
	fx := tables.Evaluate(&b, 100, testNow)
	if fx.Employees.RatingDelta != 1.0 {
		t.Fatalf("rating delta = %f", fx.Employees.RatingDelta)
	}
	if b.Rating != DefaultRating {
		t.Fatalf("evaluate mutated rating to %f", b.Rating)
	}
}
