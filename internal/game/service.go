package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"payday/internal/economy"
	"payday/internal/store"
)

type Options struct {
	Tables             *economy.Tables
	Source             economy.Source
	Logger             *slog.Logger
	Clock              func() time.Time
	StarterFundsMicros int64
}

type Service struct {
	store        store.Store
	tables       *economy.Tables
	rand         economy.Source
	log          *slog.Logger
	now          func() time.Time
	starterFunds int64
	locks        *playerLocks
}

func NewService(st store.Store, opts Options) *Service {
	s := &Service{
		store:        st,
		tables:       opts.Tables,
		rand:         opts.Source,
		log:          opts.Logger,
		now:          opts.Clock,
		starterFunds: opts.StarterFundsMicros,
		locks:        newPlayerLocks(),
	}
	if s.tables == nil {
		s.tables = economy.DefaultTables()
	}
	if s.rand == nil {
		s.rand = economy.NewSource(0)
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	clock := s.now
	s.now = func() time.Time { return economy.Stamp(clock()) }
	if s.starterFunds <= 0 {
		s.starterFunds = StarterFundsMicros
	}
	return s
}

func (s *Service) Tables() *economy.Tables {
	return s.tables
}

// EnsurePlayer provisions a wallet with the starter funds when the store
// supports it. Existing players are left alone.
func (s *Service) EnsurePlayer(ctx context.Context, playerID string) error {
	if err := ValidatePlayerID(playerID); err != nil {
		return err
	}
	p, ok := s.store.(store.Provisioner)
	if !ok {
		return nil
	}
	return p.EnsurePlayer(ctx, strings.TrimSpace(playerID), s.starterFunds)
}

func (s *Service) Player(ctx context.Context, playerID string) (PlayerView, error) {
	playerID = strings.TrimSpace(playerID)
	if err := ValidatePlayerID(playerID); err != nil {
		return PlayerView{}, err
	}
	businesses, err := s.store.LoadBusinesses(ctx, playerID)
	if err != nil {
		return PlayerView{}, err
	}
	funds, err := s.store.LoadFunds(ctx, playerID)
	if err != nil {
		return PlayerView{}, err
	}
	achievements, err := s.store.LoadAchievements(ctx, playerID)
	if err != nil {
		return PlayerView{}, err
	}
	return PlayerView{
		PlayerID:     playerID,
		FundsMicros:  funds,
		Businesses:   businesses,
		Achievements: achievements,
	}, nil
}

func (s *Service) Businesses(ctx context.Context, playerID string) ([]economy.Business, error) {
	if err := ValidatePlayerID(playerID); err != nil {
		return nil, err
	}
	return s.store.LoadBusinesses(ctx, strings.TrimSpace(playerID))
}

func (s *Service) Business(ctx context.Context, playerID, businessID string) (economy.Business, error) {
	list, err := s.Businesses(ctx, playerID)
	if err != nil {
		return economy.Business{}, err
	}
	for _, b := range list {
		if b.ID == businessID {
			return b, nil
		}
	}
	return economy.Business{}, ErrBusinessNotFound
}

func (s *Service) Funds(ctx context.Context, playerID string) (int64, error) {
	if err := ValidatePlayerID(playerID); err != nil {
		return 0, err
	}
	return s.store.LoadFunds(ctx, strings.TrimSpace(playerID))
}

func (s *Service) Catalog() economy.TablesConfig {
	return s.tables.Config()
}

// playerState is a private working copy of one player's persisted state.
// Nothing in it reaches the store until commit succeeds.
type playerState struct {
	playerID     string
	version      int64
	funds        int64
	businesses   []economy.Business
	achievements []string
}

func (st *playerState) business(id string) (*economy.Business, error) {
	for i := range st.businesses {
		if st.businesses[i].ID == id {
			return &st.businesses[i], nil
		}
	}
	return nil, ErrBusinessNotFound
}

func (st *playerState) hasAchievement(code string) bool {
	for _, c := range st.achievements {
		if c == code {
			return true
		}
	}
	return false
}

// conflictRetries bounds how often withPlayer reloads after another process
// committed for the same player between our load and our commit.
const conflictRetries = 5

// withPlayer loads playerID under the player lock and hands the snapshot to
// fn. fn runs while the lock is held and must build everything it commits
// from st, since it runs again on a fresh snapshot when the commit loses a
// version race.
func (s *Service) withPlayer(ctx context.Context, playerID string, fn func(st *playerState) error) error {
	playerID = strings.TrimSpace(playerID)
	if err := ValidatePlayerID(playerID); err != nil {
		return err
	}
	unlock, err := s.locks.acquire(ctx, playerID)
	if err != nil {
		return err
	}
	defer unlock()

	for attempt := 1; ; attempt++ {
		st, err := s.loadState(ctx, playerID)
		if err != nil {
			return err
		}
		err = fn(st)
		if !errors.Is(err, store.ErrTxConflict) {
			return err
		}
		if attempt == conflictRetries {
			return fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		s.log.Debug("player changed underneath, reloading", "player_id", playerID, "attempt", attempt)
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// loadState reads the version before anything else so a commit built on
// the snapshot is rejected if any write landed after it.
func (s *Service) loadState(ctx context.Context, playerID string) (*playerState, error) {
	version, err := s.store.LoadVersion(ctx, playerID)
	if err != nil {
		return nil, err
	}
	businesses, err := s.store.LoadBusinesses(ctx, playerID)
	if err != nil {
		return nil, err
	}
	funds, err := s.store.LoadFunds(ctx, playerID)
	if err != nil {
		return nil, err
	}
	achievements, err := s.store.LoadAchievements(ctx, playerID)
	if err != nil {
		return nil, err
	}
	return &playerState{
		playerID:     playerID,
		version:      version,
		funds:        funds,
		businesses:   businesses,
		achievements: achievements,
	}, nil
}

func (s *Service) rejected(action, playerID string, err error) error {
	if err != nil && !errors.Is(err, ErrPersistence) {
		s.log.Debug("mutation rejected", "action", action, "player_id", playerID, "err", err)
	}
	return err
}

func commitError(action string, err error) error {
	if errors.Is(err, ErrDuplicateIdempotency) {
		return fmt.Errorf("%s: %w", action, err)
	}
	return err
}
