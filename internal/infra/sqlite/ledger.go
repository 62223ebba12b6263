package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ratehive/ratehive/internal/domain"
)

// ─── Point Ledger ───────────────────────────────────────────────────────────

func appendEntry(ctx context.Context, q dbtx, e domain.PointLedgerEntry) (int64, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO point_ledger (user_id, action_type, points, reference_id, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, action_type, reference_id) DO NOTHING`,
		e.UserID, string(e.Action), e.Points, nullStr(e.ReferenceID), e.CreatedAt.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("append ledger entry: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, domain.ErrDuplicateAction
	}
	return result.LastInsertId()
}

func (d *DB) AppendEntry(ctx context.Context, e domain.PointLedgerEntry) (int64, error) {
	return appendEntry(ctx, d.db, e)
}

func (t *sqliteTx) AppendEntry(ctx context.Context, e domain.PointLedgerEntry) (int64, error) {
	return appendEntry(ctx, t.tx, e)
}

// ─── Stats ──────────────────────────────────────────────────────────────────

func userStats(ctx context.Context, q dbtx, userID string, weekStart time.Time) (domain.UserStats, error) {
	stats := domain.UserStats{UserID: userID}
	err := q.QueryRowContext(ctx,
		`SELECT
			COALESCE(SUM(points), 0),
			COUNT(*),
			COALESCE(SUM(CASE WHEN action_type = 'rating' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN action_type = 'review' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN action_type = 'brand_add' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN action_type = 'brand_update' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN action_type = 'help_resolve' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN action_type = 'comment' THEN 1 ELSE 0 END), 0),
			COUNT(DISTINCT CASE WHEN action_type = 'rating' THEN reference_id END),
			COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0)
		 FROM point_ledger WHERE user_id = ?`,
		weekStart.Unix(), userID,
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

func (d *DB) UserStats(ctx context.Context, userID string, weekStart time.Time) (domain.UserStats, error) {
	return userStats(ctx, d.db, userID, weekStart)
}

func (t *sqliteTx) UserStats(ctx context.Context, userID string, weekStart time.Time) (domain.UserStats, error) {
	return userStats(ctx, t.tx, userID, weekStart)
}

// ─── User Snapshot ──────────────────────────────────────────────────────────

func snapshot(ctx context.Context, q dbtx, userID string) (domain.UserSnapshot, error) {
	snap := domain.UserSnapshot{UserID: userID}
	var updatedAt int64
	err := q.QueryRowContext(ctx,
		`SELECT total_points, weekly_actions, updated_at FROM users WHERE id = ?`,
		userID,
	).Scan(&snap.TotalPoints, &snap.WeeklyActions, &updatedAt)
	if err == sql.ErrNoRows {
		return snap, nil
	}
	if err != nil {
		return snap, fmt.Errorf("load snapshot: %w", err)
	}
	snap.UpdatedAt = time.Unix(updatedAt, 0)
	return snap, nil
}

func saveSnapshot(ctx context.Context, q dbtx, snap domain.UserSnapshot) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO users (id, total_points, weekly_actions, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			total_points=excluded.total_points,
			weekly_actions=excluded.weekly_actions,
			updated_at=excluded.updated_at`,
		snap.UserID, snap.TotalPoints, snap.WeeklyActions, snap.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (d *DB) Snapshot(ctx context.Context, userID string) (domain.UserSnapshot, error) {
	return snapshot(ctx, d.db, userID)
}

func (t *sqliteTx) Snapshot(ctx context.Context, userID string) (domain.UserSnapshot, error) {
	return snapshot(ctx, t.tx, userID)
}

func (t *sqliteTx) SaveSnapshot(ctx context.Context, snap domain.UserSnapshot) error {
	return saveSnapshot(ctx, t.tx, snap)
}

// UserIDs lists every user with at least one ledger entry.
func (d *DB) UserIDs(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx,
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

// nullStr converts "" to SQL NULL so empty references stay outside the
// idempotency key.
func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
