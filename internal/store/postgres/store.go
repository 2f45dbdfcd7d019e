package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"payday/internal/economy"
	"payday/internal/store"
)

type Store struct {
	db  *pgxpool.Pool
	log *slog.Logger
}

func New(db *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, log: logger}
}

func (s *Store) EnsurePlayer(ctx context.Context, playerID string, starterFundsMicros int64) error {
	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return store.Wrap("ensure player", errors.New("player id is required"))
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO payday.players (player_id, balance_micros)
		VALUES ($1, $2)
		ON CONFLICT (player_id) DO NOTHING
	`, playerID, starterFundsMicros)
	return store.Wrap("ensure player", err)
}

func (s *Store) ListPlayers(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT player_id FROM payday.players ORDER BY player_id`)
	if err != nil {
		return nil, store.Wrap("list players", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, store.Wrap("list players", err)
	}
	return ids, nil
}

func (s *Store) LoadVersion(ctx context.Context, playerID string) (int64, error) {
	var version int64
	err := s.db.QueryRow(ctx, `SELECT version FROM payday.players WHERE player_id = $1`, playerID).Scan(&version)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, store.Wrap("load version", err)
	}
	return version, nil
}

func (s *Store) LoadBusinesses(ctx context.Context, playerID string) ([]economy.Business, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, owner_id, business_type, created_at, inventory_level, rating, low_inventory_streak, state
		FROM payday.businesses
		WHERE owner_id = $1
		ORDER BY created_at ASC, id ASC
	`, playerID)
	if err != nil {
		return nil, store.Wrap("load businesses", err)
	}
	defer rows.Close()

	out := []economy.Business{}
	for rows.Next() {
		var (
			b     economy.Business
			bt    string
			state []byte
		)
		if err := rows.Scan(&b.ID, &b.OwnerID, &bt, &b.CreatedAt, &b.InventoryLevel, &b.Rating, &b.LowInventoryStreak, &state); err != nil {
			return nil, store.Wrap("load businesses", err)
		}
		b.Type = economy.BusinessType(bt)
		b.CreatedAt = b.CreatedAt.UTC()
		if err := store.DecodeState(state, &b); err != nil {
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
	err := s.db.QueryRow(ctx, `SELECT balance_micros FROM payday.players WHERE player_id = $1`, playerID).Scan(&balance)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, store.Wrap("load funds", err)
	}
	return balance, nil
}

func (s *Store) LoadAchievements(ctx context.Context, playerID string) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT code FROM payday.achievements WHERE player_id = $1 ORDER BY code
	`, playerID)
	if err != nil {
		return nil, store.Wrap("load achievements", err)
	}
	codes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, store.Wrap("load achievements", err)
	}
	if codes == nil {
		codes = []string{}
	}
	return codes, nil
}

// Commit applies c in one serializable transaction, retrying serialization
// failures with a doubling delay.
func (s *Store) Commit(ctx context.Context, c store.Commit) error {
	const maxAttempts = 8
	retryDelay := 75 * time.Millisecond
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := s.commitOnce(ctx, c)
		if err == nil {
			return nil
		}
		if !isSerializationError(err) {
			return store.Wrap("commit", err)
		}
		s.log.Debug("commit serialization conflict", "player_id", c.PlayerID, "attempt", attempt+1)
		if attempt == maxAttempts-1 {
			break
		}
		if err := sleepWithContext(ctx, retryDelay); err != nil {
			return store.Wrap("commit", err)
		}
		if retryDelay < 1200*time.Millisecond {
			retryDelay *= 2
		}
	}
	return store.Wrap("commit", store.ErrTxConflict)
}

func (s *Store) commitOnce(ctx context.Context, c store.Commit) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if c.IdempotencyKey != "" {
		if err := claimIdempotency(ctx, tx, c.PlayerID, c.IdempotencyKey, c.Action); err != nil {
			return err
		}
	}

	if err := bumpPlayer(ctx, tx, c); err != nil {
		return err
	}

	if len(c.Deletes) > 0 {
		if _, err := tx.Exec(ctx, `
			DELETE FROM payday.businesses WHERE owner_id = $1 AND id = ANY($2)
		`, c.PlayerID, c.Deletes); err != nil {
			return err
		}
	}

	for _, b := range c.Upserts {
		if err := upsertBusiness(ctx, tx, c.PlayerID, b); err != nil {
			return err
		}
	}

	for _, code := range c.Achievements {
		if _, err := tx.Exec(ctx, `
			INSERT INTO payday.achievements (player_id, code)
			VALUES ($1, $2)
			ON CONFLICT (player_id, code) DO NOTHING
		`, c.PlayerID, code); err != nil {
			return err
		}
	}

	if err := appendLedgerEntries(ctx, tx, c.PlayerID, c.Action, c.Ledger); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// bumpPlayer applies the funds delta and advances the version, but only
// while the row is still at the version the commit was built on.
func bumpPlayer(ctx context.Context, tx pgx.Tx, c store.Commit) error {
	if _, err := tx.Exec(ctx, `
		INSERT INTO payday.players (player_id, balance_micros)
		VALUES ($1, 0)
		ON CONFLICT (player_id) DO NOTHING
	`, c.PlayerID); err != nil {
		return err
	}
	cmd, err := tx.Exec(ctx, `
		UPDATE payday.players
		SET balance_micros = balance_micros + $2, version = version + 1, updated_at = now()
		WHERE player_id = $1 AND version = $3
	`, c.PlayerID, c.FundsDeltaMicros, c.Version)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: player %s moved past version %d", store.ErrTxConflict, c.PlayerID, c.Version)
	}
	return nil
}

func upsertBusiness(ctx context.Context, tx pgx.Tx, playerID string, b economy.Business) error {
	if b.OwnerID != playerID {
		return fmt.Errorf("business %s owned by %q, not %q", b.ID, b.OwnerID, playerID)
	}
	state, err := store.EncodeState(b)
	if err != nil {
		return err
	}
	cmd, err := tx.Exec(ctx, `
		INSERT INTO payday.businesses (id, owner_id, business_type, created_at, inventory_level, rating, low_inventory_streak, state)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb)
		ON CONFLICT (id) DO UPDATE
		SET inventory_level = EXCLUDED.inventory_level,
			rating = EXCLUDED.rating,
			low_inventory_streak = EXCLUDED.low_inventory_streak,
			state = EXCLUDED.state,
			updated_at = now()
		WHERE payday.businesses.owner_id = EXCLUDED.owner_id
	`, b.ID, b.OwnerID, string(b.Type), b.CreatedAt, b.InventoryLevel, b.Rating, b.LowInventoryStreak, string(state))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("business %s belongs to another player", b.ID)
	}
	return nil
}

func appendLedgerEntries(ctx context.Context, tx pgx.Tx, playerID, action string, entries []store.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	txID := uuid.NewString()
	for _, e := range entries {
		if e.AmountMicros == 0 {
			continue
		}
		meta := store.LedgerMetadata(action, e)
		_, err := tx.Exec(ctx, `
			INSERT INTO payday.ledger_entries (tx_group_id, player_id, account, delta_micros, metadata)
			VALUES
			($1, $2, 'wallet', $3, $5::jsonb),
			($1, $2, 'counterparty', $4, $5::jsonb)
		`, txID, playerID, e.AmountMicros, -e.AmountMicros, meta)
		if err != nil {
			return err
		}
	}
	return nil
}

func claimIdempotency(ctx context.Context, tx pgx.Tx, playerID, key, action string) error {
	cmd, err := tx.Exec(ctx, `
		INSERT INTO payday.idempotency_keys (player_id, key, action, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (player_id, key) DO NOTHING
	`, playerID, strings.TrimSpace(key), action)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return store.ErrDuplicateIdempotency
	}
	return nil
}

func isSerializationError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "40001"
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var (
	_ store.Store        = (*Store)(nil)
	_ store.PlayerLister = (*Store)(nil)
	_ store.Provisioner  = (*Store)(nil)
)
