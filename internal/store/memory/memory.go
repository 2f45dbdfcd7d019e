package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"payday/internal/economy"
	"payday/internal/store"
)

type player struct {
	version      int64
	fundsMicros  int64
	businesses   map[string]economy.Business
	achievements map[string]struct{}
	keys         map[string]struct{}
	ledger       []store.LedgerEntry
}

// Store keeps every player in process memory. Reads and writes work on deep
// copies so callers never share state with the store.
type Store struct {
	mu      sync.RWMutex
	players map[string]*player
	failErr error
	commits int
}

func New() *Store {
	return &Store{players: map[string]*player{}}
}

// FailCommits makes every following Commit fail with err until reset with nil.
func (s *Store) FailCommits(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

func (s *Store) Commits() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.commits
}

func (s *Store) Ledger(playerID string) []store.LedgerEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[playerID]
	if !ok {
		return nil
	}
	return append([]store.LedgerEntry(nil), p.ledger...)
}

func (s *Store) EnsurePlayer(_ context.Context, playerID string, starterFundsMicros int64) error {
	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return store.Wrap("ensure player", errors.New("player id is required"))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.players[playerID]; ok {
		return nil
	}
	p := s.playerLocked(playerID)
	p.fundsMicros = starterFundsMicros
	return nil
}

func (s *Store) ListPlayers(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.players))
	for id := range s.players {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) LoadVersion(ctx context.Context, playerID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, store.Wrap("load version", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.players[playerID]; ok {
		return p.version, nil
	}
	return 0, nil
}

func (s *Store) LoadBusinesses(ctx context.Context, playerID string) ([]economy.Business, error) {
	if err := ctx.Err(); err != nil {
		return nil, store.Wrap("load businesses", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[playerID]
	if !ok {
		return []economy.Business{}, nil
	}
	out := make([]economy.Business, 0, len(p.businesses))
	for _, b := range p.businesses {
		out = append(out, b.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) LoadFunds(ctx context.Context, playerID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, store.Wrap("load funds", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.players[playerID]; ok {
		return p.fundsMicros, nil
	}
	return 0, nil
}

func (s *Store) LoadAchievements(ctx context.Context, playerID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, store.Wrap("load achievements", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []string{}
	if p, ok := s.players[playerID]; ok {
		for code := range p.achievements {
			out = append(out, code)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) Commit(ctx context.Context, c store.Commit) error {
	if err := ctx.Err(); err != nil {
		return store.Wrap("commit", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return store.Wrap("commit", s.failErr)
	}

	// validate everything before touching state so a rejected commit changes nothing
	existing := s.players[c.PlayerID]
	if existing != nil && c.IdempotencyKey != "" {
		if _, dup := existing.keys[c.IdempotencyKey]; dup {
			return store.ErrDuplicateIdempotency
		}
	}
	var current int64
	if existing != nil {
		current = existing.version
	}
	if current != c.Version {
		return fmt.Errorf("%w: player %s at version %d, commit built on %d", store.ErrTxConflict, c.PlayerID, current, c.Version)
	}
	for _, b := range c.Upserts {
		if b.OwnerID != c.PlayerID {
			return store.Wrap("commit", fmt.Errorf("business %s owned by %q, not %q", b.ID, b.OwnerID, c.PlayerID))
		}
		if owner := s.ownerLocked(b.ID); owner != "" && owner != c.PlayerID {
			return store.Wrap("commit", fmt.Errorf("business %s belongs to another player", b.ID))
		}
	}

	p := s.playerLocked(c.PlayerID)
	if c.IdempotencyKey != "" {
		p.keys[c.IdempotencyKey] = struct{}{}
	}
	for _, id := range c.Deletes {
		delete(p.businesses, id)
	}
	for _, b := range c.Upserts {
		p.businesses[b.ID] = b.Clone()
	}
	p.fundsMicros += c.FundsDeltaMicros
	p.version++
	p.ledger = append(p.ledger, c.Ledger...)
	for _, code := range c.Achievements {
		p.achievements[code] = struct{}{}
	}
	s.commits++
	return nil
}

func (s *Store) playerLocked(id string) *player {
	p, ok := s.players[id]
	if !ok {
		p = &player{
			businesses:   map[string]economy.Business{},
			achievements: map[string]struct{}{},
			keys:         map[string]struct{}{},
		}
		s.players[id] = p
	}
	return p
}

func (s *Store) ownerLocked(businessID string) string {
	for id, p := range s.players {
		if _, ok := p.businesses[businessID]; ok {
			return id
		}
	}
	return ""
}

var (
	_ store.Store        = (*Store)(nil)
	_ store.PlayerLister = (*Store)(nil)
	_ store.Provisioner  = (*Store)(nil)
)
