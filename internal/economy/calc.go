package economy

// DailyResult is one business's outcome for one tick. Amounts are micros and
// stay unrounded until they are committed.
type DailyResult struct {
	RevenueMicros    float64 `json:"revenue_micros"`
	ExpensesMicros   float64 `json:"expenses_micros"`
	EventCostsMicros float64 `json:"event_costs_micros"`
	NetProfitMicros  float64 `json:"net_profit_micros"`
}

// Revenue applies rating, employee, upgrade, event and inventory factors to
// the base revenue of the business type, in that order.
func (t *Tables) Revenue(b *Business, fx Effects) float64 {
	spec, ok := t.businesses[b.Type]
	if !ok || fx.Events.Closure {
		return 0
	}
	revenue := float64(spec.BaseRevenueMicros)
	revenue *= b.Rating / DefaultRating
	revenue *= fx.Employees.RevenueMultiplier
	revenue *= fx.Upgrades.RevenueMultiplier
	revenue *= fx.Events.RevenueMultiplier
	revenue *= fx.InventoryPenalty
	return revenue
}

func (t *Tables) Expenses(b *Business) float64 {
	spec, ok := t.businesses[b.Type]
	if !ok {
		return 0
	}
	expenses := float64(spec.BaseRentMicros)
	for _, e := range b.Employees {
		if es, ok := t.employees[e.Type]; ok {
			expenses += float64(es.SalaryMicros)
		}
	}
	return expenses
}

// Settle combines revenue and expenses with the one-time event costs charged
// this tick. A negative net profit is a valid result.
func (t *Tables) Settle(b *Business, fx Effects, eventCosts float64) DailyResult {
	revenue := t.Revenue(b, fx)
	expenses := t.Expenses(b)
	return DailyResult{
		RevenueMicros:    revenue,
		ExpensesMicros:   expenses,
		EventCostsMicros: eventCosts,
		NetProfitMicros:  revenue - expenses - eventCosts,
	}
}
