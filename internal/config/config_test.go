package config

import (
	"testing"
	"time"

	"payday/internal/economy"
)

func TestLoadAPIDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("PAYDAY_API_ADDR", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PAYDAY_STORE", "")
	t.Setenv("PAYDAY_STARTER_FUNDS", "")

	cfg, err := LoadAPIFromEnv()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("addr = %q", cfg.Addr)
	}
	if cfg.Store.Driver != StoreSQLite {
		t.Fatalf("driver = %q", cfg.Store.Driver)
	}
	if cfg.Engine.StarterFundsMicros != 100_000*economy.MicrosPerCoin {
		t.Fatalf("starter funds = %d", cfg.Engine.StarterFundsMicros)
	}
}

func TestLoadAPIPortAndPostgres(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("DATABASE_URL", "postgres://localhost/payday")
	t.Setenv("PAYDAY_STORE", "")

	cfg, err := LoadAPIFromEnv()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9000" || cfg.Store.Driver != StorePostgres {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadStoreRejectsUnknownDriver(t *testing.T) {
	t.Setenv("PAYDAY_STORE", "redis")
	if _, err := LoadAPIFromEnv(); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
	t.Setenv("PAYDAY_STORE", "postgres")
	t.Setenv("DATABASE_URL", "")
	if _, err := LoadAPIFromEnv(); err == nil {
		t.Fatalf("expected error for postgres without DATABASE_URL")
	}
}

func TestLoadWorker(t *testing.T) {
	t.Setenv("PAYDAY_STORE", "memory")
	t.Setenv("PAYDAY_TICK_EVERY", "1h")
	t.Setenv("PAYDAY_WORKERS", "0")
	t.Setenv("PAYDAY_WORKER_RUN_ONCE", "true")
	t.Setenv("PAYDAY_RANDOM_SEED", "42")

	cfg, err := LoadWorkerFromEnv()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TickEvery != time.Hour || cfg.Workers != 1 || !cfg.RunOnce || cfg.Engine.RandomSeed != 42 {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestEngineTablesDefault(t *testing.T) {
	tables, err := EngineConfig{}.Tables()
	if err != nil {
		t.Fatalf("tables: %v", err)
	}
	if _, ok := tables.Business(economy.Kiosk); !ok {
		t.Fatalf("default tables missing kiosk")
	}
}
