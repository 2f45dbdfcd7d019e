package economy

import (
	"fmt"
	"time"
)

func CanAfford(fundsMicros, costMicros int64) error {
	if fundsMicros < costMicros {
		return fmt.Errorf("%w: need %.2f, have %.2f", ErrInsufficientFunds, MicrosToCoins(costMicros), MicrosToCoins(fundsMicros))
	}
	return nil
}

func (t *Tables) CanCreate(bt BusinessType, fundsMicros int64) (BusinessSpec, error) {
	spec, ok := t.businesses[bt]
	if !ok {
		return BusinessSpec{}, fmt.Errorf("%w: business type %q", ErrInvalidEnumValue, bt)
	}
	return spec, CanAfford(fundsMicros, spec.CostMicros)
}

func (t *Tables) CanHire(b *Business, et EmployeeType) (EmployeeSpec, error) {
	spec, ok := t.employees[et]
	if !ok {
		return EmployeeSpec{}, fmt.Errorf("%w: employee type %q", ErrInvalidEnumValue, et)
	}
	bs, ok := t.businesses[b.Type]
	if !ok {
		return EmployeeSpec{}, fmt.Errorf("%w: business type %q", ErrInvalidEnumValue, b.Type)
	}
	if len(b.Employees) >= bs.MaxEmployees {
		return EmployeeSpec{}, fmt.Errorf("%w: max %d", ErrCapacityExceeded, bs.MaxEmployees)
	}
	return spec, nil
}

func (t *Tables) CanPurchaseUpgrade(b *Business, ut UpgradeType, fundsMicros int64, now time.Time) (UpgradeSpec, error) {
	spec, ok := t.upgrades[ut]
	if !ok {
		return UpgradeSpec{}, fmt.Errorf("%w: upgrade type %q", ErrInvalidEnumValue, ut)
	}
	if err := CanAfford(fundsMicros, spec.CostMicros); err != nil {
		return UpgradeSpec{}, err
	}
	if spec.Permanent() {
		for _, u := range b.Upgrades {
			if u.Type == ut && u.Active(now) {
				return UpgradeSpec{}, fmt.Errorf("%w: %s", ErrDuplicateUpgrade, ut)
			}
		}
	}
	return spec, nil
}

func (t *Tables) CanRestock(fundsMicros int64) (InventorySpec, error) {
	return t.inventory, CanAfford(fundsMicros, t.inventory.RestockCostMicros)
}

// CanResolve returns the event and the cost of resolving it.
func (t *Tables) CanResolve(b *Business, eventID string, fundsMicros int64) (BusinessEvent, int64, error) {
	ev, _, ok := b.Event(eventID)
	if !ok {
		return BusinessEvent{}, 0, ErrEventNotFound
	}
	if !ev.RequiresAction() || ev.Resolved {
		return BusinessEvent{}, 0, fmt.Errorf("%w: %s (%s)", ErrEventNotResolvable, ev.Type, ev.Outcome)
	}
	spec, ok := t.outcome(ev.Type, ev.Outcome)
	if !ok {
		return BusinessEvent{}, 0, fmt.Errorf("%w: event %s/%s", ErrInvalidEnumValue, ev.Type, ev.Outcome)
	}
	if err := CanAfford(fundsMicros, spec.RepairCostMicros); err != nil {
		return BusinessEvent{}, 0, err
	}
	return ev, spec.RepairCostMicros, nil
}

// Investment is the purchase cost of b plus every upgrade bought for it,
// expired temporary upgrades included.
func (t *Tables) Investment(b *Business) int64 {
	total := int64(0)
	if spec, ok := t.businesses[b.Type]; ok {
		total += spec.CostMicros
	}
	for _, u := range b.Upgrades {
		if spec, ok := t.upgrades[u.Type]; ok {
			total += spec.CostMicros
		}
	}
	return total
}

func (t *Tables) SellRefund(b *Business) int64 {
	return RoundMicros(float64(t.Investment(b)) * t.refundRatio)
}
