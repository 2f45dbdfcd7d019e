package economy

import "time"

type LifecycleResult struct {
	EnteringInventory    float64       `json:"entering_inventory"`
	StreakPenaltyApplied bool          `json:"streak_penalty_applied"`
	ExpiredUpgrades      []UpgradeType `json:"expired_upgrades,omitempty"`
	FinishedEvents       []string      `json:"finished_events,omitempty"`
}

// Advance moves b one day forward: inventory decay, low-stock streak
// tracking, expiry of upgrades and events, and a final rating clamp.
func (t *Tables) Advance(b *Business, now time.Time) LifecycleResult {
	res := LifecycleResult{EnteringInventory: b.InventoryLevel}
	inv := t.inventory

	b.SetInventory(b.InventoryLevel * inv.DecayFactor)

	if b.InventoryLevel < inv.LowThreshold {
		b.LowInventoryStreak++
	} else {
		b.LowInventoryStreak = 0
	}
	if inv.PenaltyStreakDays > 0 && b.LowInventoryStreak >= inv.PenaltyStreakDays {
		b.Rating -= inv.StreakRatingPenalty
		b.LowInventoryStreak = 0
		res.StreakPenaltyApplied = true
	}

	for i := range b.Upgrades {
		u := &b.Upgrades[i]
		if u.Expired || u.ExpiresAt == nil {
			continue
		}
		if !now.Before(*u.ExpiresAt) {
			u.Expired = true
			res.ExpiredUpgrades = append(res.ExpiredUpgrades, u.Type)
		}
	}

	kept := b.Events[:0]
	for _, e := range b.Events {
		if e.Resolved || (e.ExpiresAt != nil && !now.Before(*e.ExpiresAt)) {
			res.FinishedEvents = append(res.FinishedEvents, e.ID)
			continue
		}
		kept = append(kept, e)
	}
	b.Events = kept

	b.Rating = ClampRating(b.Rating)
	return res
}
