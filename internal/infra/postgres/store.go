// Package postgres implements the store contract over PostgreSQL for
// hosted deployments. Same schema shape as infra/sqlite; the UNIQUE
// constraint on the ledger is the idempotency key and SQL NULL semantics
// exempt reference-less entries.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ratehive/ratehive/internal/domain"
)

// Store wraps a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ domain.Store = (*Store)(nil)

// Open connects to PostgreSQL and runs idempotent migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id             TEXT PRIMARY KEY,
			total_points   BIGINT NOT NULL DEFAULT 0,
			weekly_actions BIGINT NOT NULL DEFAULT 0,
			updated_at     TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS point_ledger (
			id           BIGSERIAL PRIMARY KEY,
			user_id      TEXT NOT NULL,
			action_type  TEXT NOT NULL,
			points       BIGINT NOT NULL,
			reference_id TEXT,
			created_at   TIMESTAMPTZ NOT NULL,
			UNIQUE (user_id, action_type, reference_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_user ON point_ledger(user_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS badges (
			id             TEXT PRIMARY KEY,
			name           TEXT NOT NULL,
			description    TEXT NOT NULL DEFAULT '',
			sort_order     INTEGER NOT NULL DEFAULT 0,
			condition_kind TEXT NOT NULL,
			threshold      BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS user_badges (
			user_id     TEXT NOT NULL,
			badge_id    TEXT NOT NULL,
			unlocked_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (user_id, badge_id)
		)`,
	}
	for _, m := range migrations {
		if _, err := s.pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// ─── Transactions ───────────────────────────────────────────────────────────

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgTx struct {
	tx pgx.Tx
}

var _ domain.Tx = (*pgTx)(nil)

// InTx runs fn inside a single transaction; any error rolls back every
// effect including the ledger append.
func (s *Store) InTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&pgTx{tx: tx})
	})
}

// ─── Ledger ─────────────────────────────────────────────────────────────────

func appendEntry(ctx context.Context, q querier, e domain.PointLedgerEntry) (int64, error) {
	var id int64
	err := q.QueryRow(ctx,
		`INSERT INTO point_ledger (user_id, action_type, points, reference_id, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id, action_type, reference_id) DO NOTHING
		 RETURNING id`,
		e.UserID, string(e.Action), e.Points, nullStr(e.ReferenceID), e.CreatedAt,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrDuplicateAction
	}
	if err != nil {
		return 0, fmt.Errorf("append ledger entry: %w", err)
	}
	return id, nil
}

func (s *Store) AppendEntry(ctx context.Context, e domain.PointLedgerEntry) (int64, error) {
	return appendEntry(ctx, s.pool, e)
}

func (t *pgTx) AppendEntry(ctx context.Context, e domain.PointLedgerEntry) (int64, error) {
	return appendEntry(ctx, t.tx, e)
}

// ─── Stats ──────────────────────────────────────────────────────────────────

func userStats(ctx context.Context, q querier, userID string, weekStart time.Time) (domain.UserStats, error) {
	stats := domain.UserStats{UserID: userID}
	err := q.QueryRow(ctx,
		`SELECT
			COALESCE(SUM(points), 0),
			COUNT(*),
			COUNT(*) FILTER (WHERE action_type = 'rating'),
			COUNT(*) FILTER (WHERE action_type = 'review'),
			COUNT(*) FILTER (WHERE action_type = 'brand_add'),
			COUNT(*) FILTER (WHERE action_type = 'brand_update'),
			COUNT(*) FILTER (WHERE action_type = 'help_resolve'),
			COUNT(*) FILTER (WHERE action_type = 'comment'),
			COUNT(DISTINCT reference_id) FILTER (WHERE action_type = 'rating'),
			COUNT(*) FILTER (WHERE created_at >= $1)
		 FROM point_ledger WHERE user_id = $2`,
		weekStart, userID,
	).Scan(
		&stats.TotalPoints, &stats.TotalActions,
		&stats.Ratings, &stats.Reviews, &stats.BrandAdds, &stats.BrandUpdates,
		&stats.HelpResolves, &stats.Comments,
		&stats.UniqueRatings, &stats.WeeklyActions,
	)
	if err != nil {
		return domain.UserStats{}, fmt.Errorf("recompute stats: %w", err)
	}
	return stats, nil
}

func (s *Store) UserStats(ctx context.Context, userID string, weekStart time.Time) (domain.UserStats, error) {
	return userStats(ctx, s.pool, userID, weekStart)
}

func (t *pgTx) UserStats(ctx context.Context, userID string, weekStart time.Time) (domain.UserStats, error) {
	return userStats(ctx, t.tx, userID, weekStart)
}

// ─── User Snapshot ──────────────────────────────────────────────────────────

func snapshot(ctx context.Context, q querier, userID string) (domain.UserSnapshot, error) {
	snap := domain.UserSnapshot{UserID: userID}
	err := q.QueryRow(ctx,
		`SELECT total_points, weekly_actions, updated_at FROM users WHERE id = $1`,
		userID,
	).Scan(&snap.TotalPoints, &snap.WeeklyActions, &snap.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return snap, nil
	}
	if err != nil {
		return snap, fmt.Errorf("load snapshot: %w", err)
	}
	return snap, nil
}

func (s *Store) Snapshot(ctx context.Context, userID string) (domain.UserSnapshot, error) {
	return snapshot(ctx, s.pool, userID)
}

func (t *pgTx) Snapshot(ctx context.Context, userID string) (domain.UserSnapshot, error) {
	return snapshot(ctx, t.tx, userID)
}

func (t *pgTx) SaveSnapshot(ctx context.Context, snap domain.UserSnapshot) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO users (id, total_points, weekly_actions, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET
			total_points = excluded.total_points,
			weekly_actions = excluded.weekly_actions,
			updated_at = excluded.updated_at`,
		snap.UserID, snap.TotalPoints, snap.WeeklyActions, snap.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// UserIDs lists every user with at least one ledger entry.
func (s *Store) UserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT user_id FROM point_ledger ORDER BY user_id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
