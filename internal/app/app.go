// Package app wires configuration to a store and a game service for the
// binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"payday/internal/config"
	"payday/internal/economy"
	"payday/internal/game"
	"payday/internal/store"
	"payday/internal/store/memory"
	"payday/internal/store/postgres"
	"payday/internal/store/sqlite"
)

type Backend interface {
	store.Store
	store.PlayerLister
	store.Provisioner
}

// OpenStore opens the configured store. The returned func releases it.
func OpenStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (Backend, func(), error) {
	switch cfg.Driver {
	case config.StorePostgres:
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return postgres.New(pool, logger), pool.Close, nil
	case config.StoreSQLite:
		st, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		return st, func() { _ = st.Close() }, nil
	case config.StoreMemory:
		return memory.New(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func NewService(st store.Store, cfg config.EngineConfig, logger *slog.Logger) (*game.Service, error) {
	tables, err := cfg.Tables()
	if err != nil {
		return nil, fmt.Errorf("load economy tables: %w", err)
	}
	return game.NewService(st, game.Options{
		Tables:             tables,
		Source:             economy.NewSource(cfg.RandomSeed),
		Logger:             logger,
		StarterFundsMicros: cfg.StarterFundsMicros,
	}), nil
}
