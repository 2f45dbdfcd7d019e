package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"payday/internal/economy"
	"payday/internal/store"
)

// TickKey is the idempotency key that keeps a player from being paid twice
// for the same calendar day.
func TickKey(playerID string, now time.Time) string {
	return "tick:" + playerID + ":" + now.UTC().Format("2006-01-02")
}

// RunTick advances every business of playerID by one day and commits the
// new state together with the summed net profit. Either everything is
// committed or nothing is.
func (s *Service) RunTick(ctx context.Context, playerID string, now time.Time) (TickReport, error) {
	playerID = strings.TrimSpace(playerID)
	now = economy.Stamp(now)

	var out TickReport
	err := s.withPlayer(ctx, playerID, func(st *playerState) error {
		report := TickReport{
			PlayerID:        playerID,
			TickAt:          now,
			FundsMicros:     st.funds,
			Businesses:      []BusinessReport{},
			NewAchievements: []string{},
		}
		if len(st.businesses) == 0 {
			out = report
			return nil
		}

		var (
			ledger    []store.LedgerEntry
			operating float64
		)
		for i := range st.businesses {
			b := &st.businesses[i]
			row, day := s.simulateDay(b, now)
			operating += day.RevenueMicros - day.ExpensesMicros

			report.Businesses = append(report.Businesses, row)
			report.TotalRevenueMicros += row.RevenueMicros
			report.TotalExpensesMicros += row.ExpensesMicros
			report.TotalEventCostMicros += row.EventCostsMicros
			report.TotalNetProfitMicros += row.NetProfitMicros
			ledger = append(ledger, store.LedgerEntry{Action: "tick", BusinessID: b.ID, AmountMicros: row.NetProfitMicros})
		}
		report.NewAchievements = s.unlockedAchievements(st, operating)

		err := s.store.Commit(ctx, store.Commit{
			PlayerID:         playerID,
			Version:          st.version,
			IdempotencyKey:   TickKey(playerID, now),
			Action:           "tick",
			Upserts:          st.businesses,
			FundsDeltaMicros: report.TotalNetProfitMicros,
			Ledger:           ledger,
			Achievements:     report.NewAchievements,
		})
		if errors.Is(err, store.ErrDuplicateIdempotency) {
			return fmt.Errorf("%w: player %s on %s", ErrTickAlreadyApplied, playerID, now.Format("2006-01-02"))
		}
		if err != nil {
			return err
		}
		report.FundsMicros = st.funds + report.TotalNetProfitMicros
		out = report
		return nil
	})
	if err != nil {
		return TickReport{}, err
	}

	s.log.Info("tick complete",
		"player_id", playerID,
		"businesses", len(out.Businesses),
		"net_profit_micros", out.TotalNetProfitMicros,
		"new_events", countEvents(out.Businesses),
	)
	return out, nil
}

// simulateDay runs lifecycle, effect evaluation, settlement and the event
// roll for one business, in that order. Events fired today only charge
// their immediate cost; their multipliers apply from the next tick.
func (s *Service) simulateDay(b *economy.Business, now time.Time) (BusinessReport, economy.DailyResult) {
	life := s.tables.Advance(b, now)
	fx := s.tables.Evaluate(b, life.EnteringInventory, now)
	day := s.tables.Settle(b, fx, 0)

	fired := s.tables.RollEvents(b, s.rand, now)
	day.EventCostsMicros = s.tables.ImmediateCost(fired, now)
	day.NetProfitMicros -= day.EventCostsMicros

	if fired == nil {
		fired = []economy.BusinessEvent{}
	}
	row := BusinessReport{
		BusinessID:           b.ID,
		Type:                 b.Type,
		RevenueMicros:        economy.RoundMicros(day.RevenueMicros),
		ExpensesMicros:       economy.RoundMicros(day.ExpensesMicros),
		EventCostsMicros:     economy.RoundMicros(day.EventCostsMicros),
		NetProfitMicros:      economy.RoundMicros(day.NetProfitMicros),
		InventoryLevel:       b.InventoryLevel,
		Rating:               b.Rating,
		Closed:               fx.Events.Closure,
		StreakPenaltyApplied: life.StreakPenaltyApplied,
		ExpiredUpgrades:      life.ExpiredUpgrades,
		NewEvents:            fired,
	}
	return row, day
}

func (s *Service) unlockedAchievements(st *playerState, operatingMicros float64) []string {
	spec := s.tables.Achievements()
	out := []string{}
	if !st.hasAchievement(AchievementBusinessman) && spec.BusinessmanNetProfitMicros > 0 &&
		operatingMicros >= float64(spec.BusinessmanNetProfitMicros) {
		out = append(out, AchievementBusinessman)
	}
	if !st.hasAchievement(AchievementTycoon) && ownsType(st.businesses, spec.TycoonBusinessType) {
		out = append(out, AchievementTycoon)
	}
	return out
}

func ownsType(businesses []economy.Business, bt economy.BusinessType) bool {
	if bt == "" {
		return false
	}
	for _, b := range businesses {
		if b.Type == bt {
			return true
		}
	}
	return false
}

func countEvents(rows []BusinessReport) int {
	n := 0
	for _, r := range rows {
		n += len(r.NewEvents)
	}
	return n
}
