package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"payday/internal/economy"
)

var (
	ErrPersistence          = errors.New("persistence failure")
	ErrDuplicateIdempotency = errors.New("duplicate idempotency key")
	ErrTxConflict           = errors.New("transaction conflict, retry")
)

// Wrap marks err as a storage failure while keeping it inspectable.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrPersistence) || errors.Is(err, ErrDuplicateIdempotency) || errors.Is(err, ErrTxConflict) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

// LedgerEntry is one wallet movement. Positive amounts credit the player.
type LedgerEntry struct {
	Action       string `json:"action"`
	BusinessID   string `json:"business_id,omitempty"`
	AmountMicros int64  `json:"amount_micros"`
}

// Commit is everything one tick or mutation changes for a single player.
// Stores apply it atomically or not at all.
type Commit struct {
	PlayerID string
	// Version is the player version the commit was computed from. A store
	// whose version has moved rejects the commit with ErrTxConflict.
	Version int64
	// IdempotencyKey is optional. A key already claimed by the player fails
	// the whole commit with ErrDuplicateIdempotency.
	IdempotencyKey   string
	Action           string
	Upserts          []economy.Business
	Deletes          []string
	FundsDeltaMicros int64
	Ledger           []LedgerEntry
	Achievements     []string
}

// Store persists player state. Callers read LoadVersion before the other
// loads so that any commit landing in between shows up as a conflict.
type Store interface {
	LoadVersion(ctx context.Context, playerID string) (int64, error)
	LoadBusinesses(ctx context.Context, playerID string) ([]economy.Business, error)
	LoadFunds(ctx context.Context, playerID string) (int64, error)
	LoadAchievements(ctx context.Context, playerID string) ([]string, error)
	Commit(ctx context.Context, c Commit) error
}

type PlayerLister interface {
	ListPlayers(ctx context.Context) ([]string, error)
}

type Provisioner interface {
	EnsurePlayer(ctx context.Context, playerID string, starterFundsMicros int64) error
}

type businessState struct {
	Employees []economy.Employee      `json:"employees"`
	Upgrades  []economy.Upgrade       `json:"upgrades"`
	Events    []economy.BusinessEvent `json:"events"`
}

// EncodeState serializes the nested collections of b for a single column.
func EncodeState(b economy.Business) ([]byte, error) {
	return json.Marshal(businessState{
		Employees: b.Employees,
		Upgrades:  b.Upgrades,
		Events:    b.Events,
	})
}

func DecodeState(raw []byte, b *economy.Business) error {
	var st businessState
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &st); err != nil {
			return fmt.Errorf("decode business %s state: %w", b.ID, err)
		}
	}
	b.Employees = nonNil(st.Employees)
	b.Upgrades = nonNil(st.Upgrades)
	b.Events = nonNil(st.Events)
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// LedgerMetadata is the JSON blob stored next to each ledger row.
func LedgerMetadata(action string, e LedgerEntry) string {
	meta, _ := json.Marshal(map[string]any{"action": action, "entry": e.Action, "business_id": e.BusinessID})
	return string(meta)
}
