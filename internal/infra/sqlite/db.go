// Package sqlite provides SQLite-based persistent storage for ratehive.
// Uses WAL mode for concurrent reads and crash-safe writes. This is the
// default store driver; hosted deployments use infra/postgres behind the
// same domain.Store contract.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)

	"github.com/ratehive/ratehive/internal/domain"
)

// DB wraps a SQLite connection with WAL mode and migrations.
type DB struct {
	db *sql.DB
}

var _ domain.Store = (*DB)(nil)

// Open creates or opens the SQLite database at dir/ratehive.db.
// Enables WAL mode, foreign keys, and a 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "ratehive.db")
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite is single-writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		// Cached per-user summary. Display only — the ledger is the
		// source of truth and the reconciliation job repairs drift.
		`CREATE TABLE IF NOT EXISTS users (
			id             TEXT PRIMARY KEY,
			total_points   INTEGER NOT NULL DEFAULT 0,
			weekly_actions INTEGER NOT NULL DEFAULT 0,
			updated_at     INTEGER NOT NULL
		)`,

		// Append-only point ledger. The UNIQUE constraint is the
		// idempotency key; SQL NULL semantics exempt reference-less
		// entries from deduplication.
		`CREATE TABLE IF NOT EXISTS point_ledger (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id      TEXT NOT NULL,
			action_type  TEXT NOT NULL,
			points       INTEGER NOT NULL,
			reference_id TEXT,
			created_at   INTEGER NOT NULL,
			UNIQUE (user_id, action_type, reference_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_user ON point_ledger(user_id, created_at)`,

		// Badge catalog (administrator configuration).
		`CREATE TABLE IF NOT EXISTS badges (
			id             TEXT PRIMARY KEY,
			name           TEXT NOT NULL,
			description    TEXT NOT NULL DEFAULT '',
			sort_order     INTEGER NOT NULL DEFAULT 0,
			condition_kind TEXT NOT NULL,
			threshold      INTEGER NOT NULL
		)`,

		// Unlock events: one row per (user, badge), ever.
		`CREATE TABLE IF NOT EXISTS user_badges (
			user_id     TEXT NOT NULL,
			badge_id    TEXT NOT NULL,
			unlocked_at INTEGER NOT NULL,
			PRIMARY KEY (user_id, badge_id)
		)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// ─── Transactions ───────────────────────────────────────────────────────────

// dbtx is satisfied by both *sql.DB and *sql.Tx so the query helpers below
// serve reads inside and outside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// sqliteTx adapts *sql.Tx to domain.Tx.
type sqliteTx struct {
	tx *sql.Tx
}

var _ domain.Tx = (*sqliteTx)(nil)

// InTx runs fn inside a single transaction. Any error rolls back every
// effect, including the ledger append.
func (d *DB) InTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&sqliteTx{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
