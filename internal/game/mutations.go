package game

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"payday/internal/economy"
	"payday/internal/store"
)

func (s *Service) CreateBusiness(ctx context.Context, in CreateBusinessInput) (MutationResult, error) {
	var out MutationResult
	bt, err := economy.ParseBusinessType(in.Type)
	if err != nil {
		return out, s.rejected("create_business", in.PlayerID, err)
	}
	err = s.withPlayer(ctx, in.PlayerID, func(st *playerState) error {
		spec, err := s.tables.CanCreate(bt, st.funds)
		if err != nil {
			return err
		}
		b := economy.NewBusiness(uuid.NewString(), st.playerID, bt, s.now())
		var achievements []string
		if tycoon := s.tables.Achievements().TycoonBusinessType; bt == tycoon && !st.hasAchievement(AchievementTycoon) {
			achievements = append(achievements, AchievementTycoon)
		}
		if err := s.commit(ctx, st, "create_business", in.IdempotencyKey, b, -spec.CostMicros, achievements...); err != nil {
			return err
		}
		out = MutationResult{Business: b, CostMicros: spec.CostMicros, FundsMicros: st.funds - spec.CostMicros}
		return nil
	})
	return out, s.rejected("create_business", in.PlayerID, err)
}

// HireEmployee adds staff under the business capacity. Hiring is free; the
// salary is charged by every following tick.
func (s *Service) HireEmployee(ctx context.Context, in HireEmployeeInput) (MutationResult, error) {
	var out MutationResult
	et, err := economy.ParseEmployeeType(in.Type)
	if err != nil {
		return out, s.rejected("hire_employee", in.PlayerID, err)
	}
	err = s.withPlayer(ctx, in.PlayerID, func(st *playerState) error {
		b, err := st.business(in.BusinessID)
		if err != nil {
			return err
		}
		spec, err := s.tables.CanHire(b, et)
		if err != nil {
			return err
		}
		b.Employees = append(b.Employees, economy.Employee{ID: uuid.NewString(), Type: et, HiredAt: s.now()})
		b.AdjustRating(spec.RatingBonus)
		if err := s.commit(ctx, st, "hire_employee", in.IdempotencyKey, *b, 0); err != nil {
			return err
		}
		out = MutationResult{Business: *b, FundsMicros: st.funds}
		return nil
	})
	return out, s.rejected("hire_employee", in.PlayerID, err)
}

func (s *Service) FireEmployee(ctx context.Context, in FireEmployeeInput) (MutationResult, error) {
	var out MutationResult
	err := s.withPlayer(ctx, in.PlayerID, func(st *playerState) error {
		b, err := st.business(in.BusinessID)
		if err != nil {
			return err
		}
		emp, idx, ok := b.Employee(in.EmployeeID)
		if !ok {
			return ErrEmployeeNotFound
		}
		b.Employees = append(b.Employees[:idx], b.Employees[idx+1:]...)
		if spec, ok := s.tables.Employee(emp.Type); ok {
			b.AdjustRating(-spec.RatingBonus)
		}
		if err := s.commit(ctx, st, "fire_employee", in.IdempotencyKey, *b, 0); err != nil {
			return err
		}
		out = MutationResult{Business: *b, FundsMicros: st.funds}
		return nil
	})
	return out, s.rejected("fire_employee", in.PlayerID, err)
}

func (s *Service) BuyInventory(ctx context.Context, in BuyInventoryInput) (MutationResult, error) {
	var out MutationResult
	err := s.withPlayer(ctx, in.PlayerID, func(st *playerState) error {
		b, err := st.business(in.BusinessID)
		if err != nil {
			return err
		}
		spec, err := s.tables.CanRestock(st.funds)
		if err != nil {
			return err
		}
		b.SetInventory(b.InventoryLevel + spec.RestockAmount)
		if err := s.commit(ctx, st, "buy_inventory", in.IdempotencyKey, *b, -spec.RestockCostMicros); err != nil {
			return err
		}
		out = MutationResult{Business: *b, CostMicros: spec.RestockCostMicros, FundsMicros: st.funds - spec.RestockCostMicros}
		return nil
	})
	return out, s.rejected("buy_inventory", in.PlayerID, err)
}

func (s *Service) PurchaseUpgrade(ctx context.Context, in PurchaseUpgradeInput) (MutationResult, error) {
	var out MutationResult
	ut, err := economy.ParseUpgradeType(in.Type)
	if err != nil {
		return out, s.rejected("purchase_upgrade", in.PlayerID, err)
	}
	err = s.withPlayer(ctx, in.PlayerID, func(st *playerState) error {
		b, err := st.business(in.BusinessID)
		if err != nil {
			return err
		}
		now := s.now()
		spec, err := s.tables.CanPurchaseUpgrade(b, ut, st.funds, now)
		if err != nil {
			return err
		}
		u := economy.Upgrade{Type: ut, PurchasedAt: now}
		if !spec.Permanent() {
			expires := now.Add(time.Duration(spec.DurationDays) * economy.Day)
			u.ExpiresAt = &expires
		}
		b.Upgrades = append(b.Upgrades, u)
		b.AdjustRating(spec.RatingBonus)
		if err := s.commit(ctx, st, "purchase_upgrade", in.IdempotencyKey, *b, -spec.CostMicros); err != nil {
			return err
		}
		out = MutationResult{Business: *b, CostMicros: spec.CostMicros, FundsMicros: st.funds - spec.CostMicros}
		return nil
	})
	return out, s.rejected("purchase_upgrade", in.PlayerID, err)
}

// SellBusiness removes the business with everything attached to it and
// refunds part of the total investment.
func (s *Service) SellBusiness(ctx context.Context, in SellBusinessInput) (SellResult, error) {
	var out SellResult
	err := s.withPlayer(ctx, in.PlayerID, func(st *playerState) error {
		b, err := st.business(in.BusinessID)
		if err != nil {
			return err
		}
		refund := s.tables.SellRefund(b)
		err = s.store.Commit(ctx, store.Commit{
			PlayerID:         st.playerID,
			Version:          st.version,
			IdempotencyKey:   strings.TrimSpace(in.IdempotencyKey),
			Action:           "sell_business",
			Deletes:          []string{b.ID},
			FundsDeltaMicros: refund,
			Ledger:           []store.LedgerEntry{{Action: "sell_business", BusinessID: b.ID, AmountMicros: refund}},
		})
		if err != nil {
			return commitError("sell_business", err)
		}
		out = SellResult{BusinessID: b.ID, RefundMicros: refund, FundsMicros: st.funds + refund}
		return nil
	})
	return out, s.rejected("sell_business", in.PlayerID, err)
}

// ResolveEvent pays for a repair and marks the event resolved. The event is
// dropped from the business on the next tick.
func (s *Service) ResolveEvent(ctx context.Context, in ResolveEventInput) (MutationResult, error) {
	var out MutationResult
	err := s.withPlayer(ctx, in.PlayerID, func(st *playerState) error {
		b, err := st.business(in.BusinessID)
		if err != nil {
			return err
		}
		_, idx, cost, err := s.canResolve(b, in.EventID, st.funds)
		if err != nil {
			return err
		}
		b.Events[idx].Resolved = true
		if err := s.commit(ctx, st, "resolve_event", in.IdempotencyKey, *b, -cost); err != nil {
			return err
		}
		out = MutationResult{Business: *b, CostMicros: cost, FundsMicros: st.funds - cost}
		return nil
	})
	return out, s.rejected("resolve_event", in.PlayerID, err)
}

func (s *Service) canResolve(b *economy.Business, eventID string, funds int64) (economy.BusinessEvent, int, int64, error) {
	ev, cost, err := s.tables.CanResolve(b, eventID, funds)
	if err != nil {
		return economy.BusinessEvent{}, -1, 0, err
	}
	_, idx, _ := b.Event(ev.ID)
	return ev, idx, cost, nil
}

// commit persists one business and a funds movement for a mutation.
func (s *Service) commit(ctx context.Context, st *playerState, action, key string, b economy.Business, deltaMicros int64, achievements ...string) error {
	c := store.Commit{
		PlayerID:         st.playerID,
		Version:          st.version,
		IdempotencyKey:   strings.TrimSpace(key),
		Action:           action,
		Upserts:          []economy.Business{b},
		FundsDeltaMicros: deltaMicros,
		Achievements:     achievements,
	}
	if deltaMicros != 0 {
		c.Ledger = []store.LedgerEntry{{Action: action, BusinessID: b.ID, AmountMicros: deltaMicros}}
	}
	if err := s.store.Commit(ctx, c); err != nil {
		return commitError(action, err)
	}
	s.log.Debug("mutation applied", "action", action, "player_id", st.playerID, "business_id", b.ID, "delta_micros", deltaMicros)
	return nil
}
