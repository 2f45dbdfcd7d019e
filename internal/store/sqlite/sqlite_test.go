package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"payday/internal/economy"
	"payday/internal/store"
	"payday/internal/store/storetest"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "payday.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Backend { return openTemp(t) })
}

func TestReopenKeepsState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payday.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.EnsurePlayer(ctx, "p1", 1_000))
	b := economy.NewBusiness("b1", "p1", economy.Restaurant, time.Date(2025, 1, 2, 3, 4, 5, 6, time.UTC))
	require.NoError(t, s.Commit(ctx, store.Commit{
		PlayerID: "p1",
		Action:   "create_business",
		Upserts:  []economy.Business{b},
		Ledger:   []store.LedgerEntry{{Action: "create_business", BusinessID: "b1", AmountMicros: -10}},
	}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	list, err := s.LoadBusinesses(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.True(t, list[0].CreatedAt.Equal(b.CreatedAt))

	var rows int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(1) FROM ledger_entries WHERE player_id = 'p1'`).Scan(&rows))
	require.Equal(t, 2, rows)
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := Open("")
	require.Error(t, err)
}

func TestBusinessesLoadInCreationOrder(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	require.NoError(t, s.EnsurePlayer(ctx, "p1", 0))

	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	later := economy.NewBusiness("a-later", "p1", economy.Kiosk, base.Add(500*time.Millisecond))
	first := economy.NewBusiness("b-first", "p1", economy.Kiosk, base)
	require.NoError(t, s.Commit(ctx, store.Commit{PlayerID: "p1", Action: "seed", Upserts: []economy.Business{later, first}}))

	list, err := s.LoadBusinesses(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "b-first", list[0].ID)
	require.Equal(t, "a-later", list[1].ID)
}

func TestParseTimeAcceptsOlderRows(t *testing.T) {
	got, err := parseTime("2025-03-01T09:00:00.5Z")
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, 3, 1, 9, 0, 0, 500_000_000, time.UTC), got)

	require.Equal(t, "2025-03-01T09:00:00.000000000Z", time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC).Format(timeLayout))
}
