// Package storetest holds the behaviour every store.Store implementation
// must share.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"payday/internal/economy"
	"payday/internal/store"
)

type Backend interface {
	store.Store
	store.PlayerLister
	store.Provisioner
}

// Run exercises s against the shared contract. newStore must return an
// empty store for every call.
func Run(t *testing.T, newStore func(t *testing.T) Backend) {
	t.Run("EnsurePlayerIsIdempotent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.EnsurePlayer(ctx, "p1", 100))
		require.NoError(t, s.EnsurePlayer(ctx, "p1", 999))

		funds, err := s.LoadFunds(ctx, "p1")
		require.NoError(t, err)
		require.Equal(t, int64(100), funds)

		players, err := s.ListPlayers(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{"p1"}, players)
	})

	t.Run("UnknownPlayerIsEmpty", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		funds, err := s.LoadFunds(ctx, "nobody")
		require.NoError(t, err)
		require.Zero(t, funds)

		list, err := s.LoadBusinesses(ctx, "nobody")
		require.NoError(t, err)
		require.Empty(t, list)
	})

	t.Run("CommitRoundTrip", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.EnsurePlayer(ctx, "p1", 1_000))

		b := sampleBusiness("b1", "p1")
		err := s.Commit(ctx, store.Commit{
			PlayerID:         "p1",
			IdempotencyKey:   "create:1",
			Action:           "create_business",
			Upserts:          []economy.Business{b},
			FundsDeltaMicros: -400,
			Ledger:           []store.LedgerEntry{{Action: "create_business", BusinessID: "b1", AmountMicros: -400}},
			Achievements:     []string{"tycoon"},
		})
		require.NoError(t, err)

		funds, err := s.LoadFunds(ctx, "p1")
		require.NoError(t, err)
		require.Equal(t, int64(600), funds)

		list, err := s.LoadBusinesses(ctx, "p1")
		require.NoError(t, err)
		require.Len(t, list, 1)
		require.Equal(t, b, list[0])

		ach, err := s.LoadAchievements(ctx, "p1")
		require.NoError(t, err)
		require.Equal(t, []string{"tycoon"}, ach)
	})

	t.Run("DuplicateIdempotencyKeyChangesNothing", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.EnsurePlayer(ctx, "p1", 1_000))
		c := store.Commit{PlayerID: "p1", IdempotencyKey: "tick:p1:2025-03-01", Action: "tick", FundsDeltaMicros: 50}
		require.NoError(t, s.Commit(ctx, c))

		err := s.Commit(ctx, c)
		require.True(t, errors.Is(err, store.ErrDuplicateIdempotency), "got %v", err)

		funds, err := s.LoadFunds(ctx, "p1")
		require.NoError(t, err)
		require.Equal(t, int64(1_050), funds)
	})

	t.Run("UpdateAndDelete", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.EnsurePlayer(ctx, "p1", 0))
		b1 := sampleBusiness("b1", "p1")
		b2 := sampleBusiness("b2", "p1")
		b2.CreatedAt = b1.CreatedAt.Add(time.Hour)
		require.NoError(t, s.Commit(ctx, store.Commit{PlayerID: "p1", Action: "seed", Upserts: []economy.Business{b1, b2}}))

		b1.Rating = 4.5
		b1.InventoryLevel = 12.5
		b1.Events = append(b1.Events, economy.BusinessEvent{ID: "ev-2", Type: economy.ViralPost, Outcome: economy.OutcomeRevenueBoost, TriggeredAt: b1.CreatedAt})
		require.NoError(t, s.Commit(ctx, store.Commit{
			PlayerID: "p1",
			Version:  versionOf(t, s, "p1"),
			Action:   "sell_business",
			Upserts:  []economy.Business{b1},
			Deletes:  []string{"b2"},
		}))

		list, err := s.LoadBusinesses(ctx, "p1")
		require.NoError(t, err)
		require.Len(t, list, 1)
		require.Equal(t, b1, list[0])
	})

	t.Run("BusinessesAreScopedToOwner", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.EnsurePlayer(ctx, "p1", 0))
		require.NoError(t, s.EnsurePlayer(ctx, "p2", 0))
		require.NoError(t, s.Commit(ctx, store.Commit{PlayerID: "p1", Action: "seed", Upserts: []economy.Business{sampleBusiness("b1", "p1")}}))

		stolen := sampleBusiness("b1", "p2")
		err := s.Commit(ctx, store.Commit{PlayerID: "p2", Action: "seed", Upserts: []economy.Business{stolen}})
		require.True(t, errors.Is(err, store.ErrPersistence), "got %v", err)

		require.NoError(t, s.Commit(ctx, store.Commit{PlayerID: "p2", Version: versionOf(t, s, "p2"), Action: "sell_business", Deletes: []string{"b1"}}))
		list, err := s.LoadBusinesses(ctx, "p1")
		require.NoError(t, err)
		require.Len(t, list, 1)
	})

	t.Run("VersionAdvancesPerCommit", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.EnsurePlayer(ctx, "p1", 0))
		require.Zero(t, versionOf(t, s, "p1"))
		require.Zero(t, versionOf(t, s, "nobody"))

		require.NoError(t, s.Commit(ctx, store.Commit{PlayerID: "p1", Action: "a", FundsDeltaMicros: 1}))
		require.NoError(t, s.Commit(ctx, store.Commit{PlayerID: "p1", Version: 1, Action: "b", FundsDeltaMicros: 1}))
		require.Equal(t, int64(2), versionOf(t, s, "p1"))
	})

	t.Run("StaleVersionIsRejected", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.EnsurePlayer(ctx, "p1", 1_000))
		b := sampleBusiness("b1", "p1")
		require.NoError(t, s.Commit(ctx, store.Commit{PlayerID: "p1", Action: "seed", Upserts: []economy.Business{b}}))

		// a writer that loaded before the seed commit must not overwrite it
		stale := b.Clone()
		stale.Upgrades = nil
		err := s.Commit(ctx, store.Commit{
			PlayerID:         "p1",
			IdempotencyKey:   "tick:p1:2025-03-01",
			Action:           "tick",
			Upserts:          []economy.Business{stale},
			FundsDeltaMicros: 10,
		})
		require.ErrorIs(t, err, store.ErrTxConflict)

		funds, err := s.LoadFunds(ctx, "p1")
		require.NoError(t, err)
		require.Equal(t, int64(1_000), funds)
		list, err := s.LoadBusinesses(ctx, "p1")
		require.NoError(t, err)
		require.Equal(t, []economy.Business{b}, list)
		require.Equal(t, int64(1), versionOf(t, s, "p1"))

		// the key was not consumed by the rejected commit
		require.NoError(t, s.Commit(ctx, store.Commit{PlayerID: "p1", Version: 1, IdempotencyKey: "tick:p1:2025-03-01", Action: "tick", FundsDeltaMicros: 10}))
	})
}

// sampleBusiness carries sub-second timestamps at the model's microsecond
// precision and every flag a snapshot can hold.
func sampleBusiness(id, owner string) economy.Business {
	created := time.Date(2025, 3, 1, 9, 0, 0, 123_456_000, time.UTC)
	hired := created.Add(1500 * time.Microsecond)
	expires := created.Add(7 * economy.Day)
	expired := created.Add(-2 * economy.Day)
	closureEnds := created.Add(2*economy.Day + 250*time.Millisecond)
	b := economy.NewBusiness(id, owner, economy.Cafe, created)
	b.InventoryLevel = 81.25
	b.Rating = 3.5
	b.LowInventoryStreak = 1
	b.Employees = []economy.Employee{
		{ID: "emp-1", Type: economy.Chef, HiredAt: hired},
		{ID: "emp-2", Type: economy.Manager, HiredAt: hired.Add(time.Second)},
	}
	b.Upgrades = []economy.Upgrade{
		{Type: economy.Delivery, PurchasedAt: hired},
		{Type: economy.Advertising, PurchasedAt: created, ExpiresAt: &expires},
		{Type: economy.Advertising, PurchasedAt: created.Add(-9 * economy.Day), ExpiresAt: &expired, Expired: true},
	}
	b.Events = []economy.BusinessEvent{
		{ID: "ev-1", Type: economy.EquipmentBreakdown, Outcome: economy.OutcomeRequiresRepair, TriggeredAt: created, Resolved: true},
		{ID: "ev-3", Type: economy.HealthInspection, Outcome: economy.OutcomeClosure, TriggeredAt: created, ExpiresAt: &closureEnds},
	}
	return b
}

func versionOf(t *testing.T, s store.Store, playerID string) int64 {
	t.Helper()
	v, err := s.LoadVersion(context.Background(), playerID)
	require.NoError(t, err)
	return v
}
