package economy

import "time"

type EmployeeEffects struct {
	RevenueMultiplier float64 `json:"revenue_multiplier"`
	// RatingDelta is applied when staff is hired or fired, never per tick.
	RatingDelta float64 `json:"rating_delta"`
}

type UpgradeEffects struct {
	RevenueMultiplier float64 `json:"revenue_multiplier"`
	// RatingDelta is applied at purchase time, never per tick.
	RatingDelta float64 `json:"rating_delta"`
}

type EventEffects struct {
	RevenueMultiplier   float64 `json:"revenue_multiplier"`
	ImmediateCostMicros float64 `json:"immediate_cost_micros"`
	Closure             bool    `json:"closure"`
}

type Effects struct {
	Employees        EmployeeEffects `json:"employees"`
	Upgrades         UpgradeEffects  `json:"upgrades"`
	Events           EventEffects    `json:"events"`
	InventoryPenalty float64         `json:"inventory_penalty"`
}

// Evaluate computes the effect bundles for b at now. The inventory penalty
// is taken from enteringInventory, the level the business carried into the
// tick before any decay.
func (t *Tables) Evaluate(b *Business, enteringInventory float64, now time.Time) Effects {
	return Effects{
		Employees:        t.EmployeeEffects(b),
		Upgrades:         t.UpgradeEffects(b, now),
		Events:           t.EventEffects(b, now),
		InventoryPenalty: t.InventoryPenalty(enteringInventory),
	}
}

func (t *Tables) EmployeeEffects(b *Business) EmployeeEffects {
	out := EmployeeEffects{RevenueMultiplier: 1.0}
	for _, e := range b.Employees {
		spec, ok := t.employees[e.Type]
		if !ok {
			continue
		}
		out.RevenueMultiplier *= spec.RevenueMultiplier
		out.RatingDelta += spec.RatingBonus
	}
	return out
}

func (t *Tables) UpgradeEffects(b *Business, now time.Time) UpgradeEffects {
	out := UpgradeEffects{RevenueMultiplier: 1.0}
	for _, u := range b.Upgrades {
		if !u.Active(now) {
			continue
		}
		spec, ok := t.upgrades[u.Type]
		if !ok {
			continue
		}
		out.RevenueMultiplier *= spec.RevenueMultiplier
		out.RatingDelta += spec.RatingBonus
	}
	return out
}

func (t *Tables) EventEffects(b *Business, now time.Time) EventEffects {
	out := EventEffects{RevenueMultiplier: 1.0}
	for _, e := range b.Events {
		if !e.Active(now) {
			continue
		}
		spec, ok := t.outcome(e.Type, e.Outcome)
		if !ok {
			continue
		}
		out.RevenueMultiplier *= spec.RevenueMultiplier
		if spec.Closure() {
			out.Closure = true
		}
	}
	out.ImmediateCostMicros = t.ImmediateCost(b.Events, now)
	return out
}

// ImmediateCost sums the one-time costs of events that triggered at now.
func (t *Tables) ImmediateCost(events []BusinessEvent, now time.Time) float64 {
	total := 0.0
	for _, e := range events {
		if e.Resolved || !e.TriggeredAt.Equal(now) {
			continue
		}
		spec, ok := t.outcome(e.Type, e.Outcome)
		if !ok {
			continue
		}
		total += float64(spec.CostMicros)
	}
	return total
}

func (t *Tables) InventoryPenalty(level float64) float64 {
	if level < t.inventory.LowThreshold {
		return t.inventory.LowStockPenalty
	}
	return 1.0
}

func (t *Tables) outcome(et EventType, o EventOutcome) (OutcomeSpec, bool) {
	ev, ok := t.events[et]
	if !ok {
		return OutcomeSpec{}, false
	}
	return ev.Outcome(o)
}
