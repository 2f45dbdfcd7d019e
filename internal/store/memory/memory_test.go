package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"payday/internal/economy"
	"payday/internal/store"
	"payday/internal/store/storetest"
)

func TestContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Backend { return New() })
}

func TestFailCommitsLeavesStateUntouched(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.EnsurePlayer(ctx, "p1", 500))

	s.FailCommits(errors.New("disk on fire"))
	b := economy.NewBusiness("b1", "p1", economy.Kiosk, time.Now())
	err := s.Commit(ctx, store.Commit{PlayerID: "p1", Upserts: []economy.Business{b}, FundsDeltaMicros: -100})
	require.ErrorIs(t, err, store.ErrPersistence)

	funds, err := s.LoadFunds(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, int64(500), funds)
	list, err := s.LoadBusinesses(ctx, "p1")
	require.NoError(t, err)
	require.Empty(t, list)
	require.Zero(t, s.Commits())
}

func TestLoadReturnsCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	b := economy.NewBusiness("b1", "p1", economy.Kiosk, time.Now())
	require.NoError(t, s.Commit(ctx, store.Commit{PlayerID: "p1", Upserts: []economy.Business{b}}))

	list, err := s.LoadBusinesses(ctx, "p1")
	require.NoError(t, err)
	list[0].Rating = 5
	list[0].Employees = append(list[0].Employees, economy.Employee{ID: "x"})

	again, err := s.LoadBusinesses(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, economy.DefaultRating, again[0].Rating)
	require.Empty(t, again[0].Employees)
}
