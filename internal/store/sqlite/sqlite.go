package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"payday/internal/economy"
	"payday/internal/store"
)

type Store struct {
	db *sql.DB
}

// timeLayout is fixed width so text order matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Open opens or creates the database at path. ":memory:" keeps everything in
// process, which is what the tests use.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS players (
			player_id TEXT PRIMARY KEY,
			balance_micros INTEGER NOT NULL DEFAULT 0,
			version INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS businesses (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL REFERENCES players(player_id),
			business_type TEXT NOT NULL,
			created_at TEXT NOT NULL,
			inventory_level REAL NOT NULL,
			rating REAL NOT NULL,
			low_inventory_streak INTEGER NOT NULL DEFAULT 0,
			state TEXT NOT NULL DEFAULT '{}'
		);`,
		`CREATE INDEX IF NOT EXISTS businesses_owner_idx ON businesses(owner_id, created_at);`,
		`CREATE TABLE IF NOT EXISTS achievements (
			player_id TEXT NOT NULL REFERENCES players(player_id),
			code TEXT NOT NULL,
			unlocked_at TEXT NOT NULL,
			PRIMARY KEY (player_id, code)
		);`,
		`CREATE TABLE IF NOT EXISTS idempotency_keys (
			player_id TEXT NOT NULL,
			key TEXT NOT NULL,
			action TEXT NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (player_id, key)
		);`,
		`CREATE TABLE IF NOT EXISTS ledger_entries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tx_group_id TEXT NOT NULL,
			player_id TEXT NOT NULL,
			account TEXT NOT NULL,
			delta_micros INTEGER NOT NULL,
			metadata TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	// databases created before players carried a version
	if _, err := db.Exec(`ALTER TABLE players ADD COLUMN version INTEGER NOT NULL DEFAULT 0;`); err != nil &&
		!strings.Contains(err.Error(), "duplicate column") {
		return err
	}
	return nil
}

func (s *Store) EnsurePlayer(ctx context.Context, playerID string, starterFundsMicros int64) error {
	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return store.Wrap("ensure player", errors.New("player id is required"))
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO players (player_id, balance_micros, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(player_id) DO NOTHING
	`, playerID, starterFundsMicros, nowText())
	return store.Wrap("ensure player", err)
}

func (s *Store) ListPlayers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT player_id FROM players ORDER BY player_id`)
	if err != nil {
		return nil, store.Wrap("list players", err)
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, store.Wrap("list players", err)
		}
		out = append(out, id)
	}
	return out, store.Wrap("list players", rows.Err())
}

func (s *Store) LoadVersion(ctx context.Context, playerID string) (int64, error) {
	var version int64
	err := s.db.QueryRowContext(ctx, `SELECT version FROM players WHERE player_id = ?`, playerID).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, store.Wrap("load version", err)
	}
	return version, nil
}

func (s *Store) LoadBusinesses(ctx context.Context, playerID string) ([]economy.Business, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, business_type, created_at, inventory_level, rating, low_inventory_streak, state
		FROM businesses
		WHERE owner_id = ?
		ORDER BY created_at ASC, id ASC
	`, playerID)
	if err != nil {
		return nil, store.Wrap("load businesses", err)
	}
	defer rows.Close()

	out := []economy.Business{}
	for rows.Next() {
		var (
			b         economy.Business
			bt        string
			createdAt string
			state     string
		)
		if err := rows.Scan(&b.ID, &b.OwnerID, &bt, &createdAt, &b.InventoryLevel, &b.Rating, &b.LowInventoryStreak, &state); err != nil {
			return nil, store.Wrap("load businesses", err)
		}
		b.Type = economy.BusinessType(bt)
		if b.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, store.Wrap("load businesses", err)
		}
		if err := store.DecodeState([]byte(state), &b); err != nil {
			return nil, store.Wrap("load businesses", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Wrap("load businesses", err)
	}
	return out, nil
}

func (s *Store) LoadFunds(ctx context.Context, playerID string) (int64, error) {
	var balance int64
	err := s.db.QueryRowContext(ctx, `SELECT balance_micros FROM players WHERE player_id = ?`, playerID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, store.Wrap("load funds", err)
	}
	return balance, nil
}

func (s *Store) LoadAchievements(ctx context.Context, playerID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT code FROM achievements WHERE player_id = ? ORDER BY code`, playerID)
	if err != nil {
		return nil, store.Wrap("load achievements", err)
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, store.Wrap("load achievements", err)
		}
		out = append(out, code)
	}
	return out, store.Wrap("load achievements", rows.Err())
}

func (s *Store) Commit(ctx context.Context, c store.Commit) error {
	return store.Wrap("commit", s.commit(ctx, c))
}

func (s *Store) commit(ctx context.Context, c store.Commit) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := nowText()
	if c.IdempotencyKey != "" {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO idempotency_keys (player_id, key, action, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(player_id, key) DO NOTHING
		`, c.PlayerID, strings.TrimSpace(c.IdempotencyKey), c.Action, now)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return store.ErrDuplicateIdempotency
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO players (player_id, balance_micros, created_at)
		VALUES (?, 0, ?)
		ON CONFLICT(player_id) DO NOTHING
	`, c.PlayerID, now); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE players
		SET balance_micros = balance_micros + ?, version = version + 1
		WHERE player_id = ? AND version = ?
	`, c.FundsDeltaMicros, c.PlayerID, c.Version)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: player %s moved past version %d", store.ErrTxConflict, c.PlayerID, c.Version)
	}

	for _, id := range c.Deletes {
		if _, err := tx.ExecContext(ctx, `DELETE FROM businesses WHERE owner_id = ? AND id = ?`, c.PlayerID, id); err != nil {
			return err
		}
	}

	for _, b := range c.Upserts {
		if b.OwnerID != c.PlayerID {
			return fmt.Errorf("business %s owned by %q, not %q", b.ID, b.OwnerID, c.PlayerID)
		}
		state, err := store.EncodeState(b)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO businesses (id, owner_id, business_type, created_at, inventory_level, rating, low_inventory_streak, state)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				inventory_level = excluded.inventory_level,
				rating = excluded.rating,
				low_inventory_streak = excluded.low_inventory_streak,
				state = excluded.state
			WHERE businesses.owner_id = excluded.owner_id
		`, b.ID, b.OwnerID, string(b.Type), b.CreatedAt.UTC().Format(timeLayout), b.InventoryLevel, b.Rating, b.LowInventoryStreak, string(state))
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("business %s belongs to another player", b.ID)
		}
	}

	for _, code := range c.Achievements {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO achievements (player_id, code, unlocked_at)
			VALUES (?, ?, ?)
			ON CONFLICT(player_id, code) DO NOTHING
		`, c.PlayerID, code, now); err != nil {
			return err
		}
	}

	txID := uuid.NewString()
	for _, e := range c.Ledger {
		if e.AmountMicros == 0 {
			continue
		}
		meta := store.LedgerMetadata(c.Action, e)
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO ledger_entries (tx_group_id, player_id, account, delta_micros, metadata, created_at)
			VALUES (?, ?, 'wallet', ?, ?, ?), (?, ?, 'counterparty', ?, ?, ?)
		`, txID, c.PlayerID, e.AmountMicros, meta, now, txID, c.PlayerID, -e.AmountMicros, meta, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// parseTime also accepts the variable-width RFC 3339 text of older rows.
func parseTime(v string) (time.Time, error) {
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, v)
	}
	return t.UTC(), err
}

func nowText() string {
	return time.Now().UTC().Format(timeLayout)
}

var (
	_ store.Store        = (*Store)(nil)
	_ store.PlayerLister = (*Store)(nil)
	_ store.Provisioner  = (*Store)(nil)
)
