package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"payday/internal/economy"
)

const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreMemory   = "memory"
)

type StoreConfig struct {
	Driver      string
	DatabaseURL string
	SQLitePath  string
}

type EngineConfig struct {
	TablesPath         string
	StarterFundsMicros int64
	RandomSeed         int64
}

type APIConfig struct {
	Addr   string
	Store  StoreConfig
	Engine EngineConfig
}

type WorkerConfig struct {
	Store     StoreConfig
	Engine    EngineConfig
	TickEvery time.Duration
	Workers   int
	RunOnce   bool
	// RetryFor bounds how long a player's failed tick is retried.
	RetryFor time.Duration
}

type CLIConfig struct {
	APIBaseURL string
	PlayerID   string
}

func LoadAPIFromEnv() (APIConfig, error) {
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("PAYDAY_API_ADDR", ":8080")
	}

	storeCfg, err := loadStore()
	if err != nil {
		return APIConfig{}, err
	}
	return APIConfig{
		Addr:   addr,
		Store:  storeCfg,
		Engine: loadEngine(),
	}, nil
}

func LoadWorkerFromEnv() (WorkerConfig, error) {
	storeCfg, err := loadStore()
	if err != nil {
		return WorkerConfig{}, err
	}
	cfg := WorkerConfig{
		Store:     storeCfg,
		Engine:    loadEngine(),
		TickEvery: envDurationDefault("PAYDAY_TICK_EVERY", 24*time.Hour),
		Workers:   envIntDefault("PAYDAY_WORKERS", 8),
		RunOnce:   envBoolDefault("PAYDAY_WORKER_RUN_ONCE", false),
		RetryFor:  envDurationDefault("PAYDAY_RETRY_FOR", 2*time.Minute),
	}
	if cfg.TickEvery <= 0 {
		return cfg, fmt.Errorf("PAYDAY_TICK_EVERY must be > 0")
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return cfg, nil
}

func LoadCLIFromEnv() CLIConfig {
	return CLIConfig{
		APIBaseURL: strings.TrimRight(envDefault("PAYDAY_API_BASE_URL", "http://localhost:8080"), "/"),
		PlayerID:   strings.TrimSpace(os.Getenv("PAYDAY_PLAYER_ID")),
	}
}

// Tables loads the economy tables, applying the YAML override when one is
// configured.
func (e EngineConfig) Tables() (*economy.Tables, error) {
	if e.TablesPath == "" {
		return economy.DefaultTables(), nil
	}
	return economy.LoadTables(e.TablesPath)
}

func loadStore() (StoreConfig, error) {
	cfg := StoreConfig{
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		SQLitePath:  envDefault("PAYDAY_SQLITE_PATH", "data/payday.db"),
	}
	fallback := StoreSQLite
	if cfg.DatabaseURL != "" {
		fallback = StorePostgres
	}
	cfg.Driver = strings.ToLower(envDefault("PAYDAY_STORE", fallback))
	switch cfg.Driver {
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return cfg, fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	case StoreSQLite, StoreMemory:
	default:
		return cfg, fmt.Errorf("PAYDAY_STORE must be postgres, sqlite or memory, got %q", cfg.Driver)
	}
	return cfg, nil
}

func loadEngine() EngineConfig {
	return EngineConfig{
		TablesPath:         strings.TrimSpace(os.Getenv("PAYDAY_TABLES_PATH")),
		StarterFundsMicros: economy.CoinsToMicros(envFloatDefault("PAYDAY_STARTER_FUNDS", 100_000)),
		RandomSeed:         envInt64Default("PAYDAY_RANDOM_SEED", 0),
	}
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envFloatDefault(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envIntDefault(key string, fallback int) int {
	return int(envInt64Default(key, int64(fallback)))
}

func envInt64Default(key string, fallback int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func envBoolDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
