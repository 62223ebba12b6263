package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/ratehive/ratehive/internal/domain"
)

// ─── Badge Catalog ──────────────────────────────────────────────────────────

func badges(ctx context.Context, q dbtx) ([]domain.Badge, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, name, description, sort_order, condition_kind, threshold
		 FROM badges ORDER BY sort_order, id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Badge
	for rows.Next() {
		var b domain.Badge
		var kind string
		if err := rows.Scan(&b.ID, &b.Name, &b.Description, &b.SortOrder,
			&kind, &b.Condition.Threshold); err != nil {
			return nil, err
		}
		b.Condition.Kind = domain.ConditionKind(kind)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (d *DB) Badges(ctx context.Context) ([]domain.Badge, error) {
	return badges(ctx, d.db)
}

func (t *sqliteTx) Badges(ctx context.Context) ([]domain.Badge, error) {
	return badges(ctx, t.tx)
}

// CreateBadge inserts a catalog entry. Returns ErrBadgeExists on id
// collision.
func (d *DB) CreateBadge(ctx context.Context, b domain.Badge) error {
	result, err := d.db.ExecContext(ctx,
		`INSERT INTO badges (id, name, description, sort_order, condition_kind, threshold)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		b.ID, b.Name, b.Description, b.SortOrder,
		string(b.Condition.Kind), b.Condition.Threshold,
	)
	if err != nil {
		return fmt.Errorf("create badge: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return domain.ErrBadgeExists
	}
	return nil
}

// UpdateBadge rewrites a catalog entry. Returns ErrBadgeNotFound for an
// unknown id.
func (d *DB) UpdateBadge(ctx context.Context, b domain.Badge) error {
	result, err := d.db.ExecContext(ctx,
		`UPDATE badges SET name = ?, description = ?, sort_order = ?,
			condition_kind = ?, threshold = ?
		 WHERE id = ?`,
		b.Name, b.Description, b.SortOrder,
		string(b.Condition.Kind), b.Condition.Threshold, b.ID,
	)
	if err != nil {
		return fmt.Errorf("update badge: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return domain.ErrBadgeNotFound
	}
	return nil
}

// DeleteBadge removes a catalog entry. Unlock history is kept — UserBadge
// rows are never removed.
func (d *DB) DeleteBadge(ctx context.Context, id string) error {
	result, err := d.db.ExecContext(ctx, `DELETE FROM badges WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete badge: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return domain.ErrBadgeNotFound
	}
	return nil
}

// ─── Unlocks ────────────────────────────────────────────────────────────────

func unlockBadge(ctx context.Context, q dbtx, userID, badgeID string, at time.Time) (bool, error) {
	result, err := q.ExecContext(ctx,
		`INSERT OR IGNORE INTO user_badges (user_id, badge_id, unlocked_at)
		 VALUES (?, ?, ?)`,
		userID, badgeID, at.Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("unlock badge: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil // true = newly unlocked
}

func (t *sqliteTx) UnlockBadge(ctx context.Context, userID, badgeID string, at time.Time) (bool, error) {
	return unlockBadge(ctx, t.tx, userID, badgeID, at)
}

func unlockedBadges(ctx context.Context, q dbtx, userID string) ([]domain.UserBadge, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT ub.user_id, ub.badge_id, ub.unlocked_at
		 FROM user_badges ub
		 LEFT JOIN badges b ON b.id = ub.badge_id
		 WHERE ub.user_id = ?
		 ORDER BY COALESCE(b.sort_order, 0), ub.badge_id`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.UserBadge
	for rows.Next() {
		var ub domain.UserBadge
		var unlockedAt int64
		if err := rows.Scan(&ub.UserID, &ub.BadgeID, &unlockedAt); err != nil {
			return nil, err
		}
		ub.UnlockedAt = time.Unix(unlockedAt, 0)
		out = append(out, ub)
	}
	return out, rows.Err()
}

func (d *DB) UnlockedBadges(ctx context.Context, userID string) ([]domain.UserBadge, error) {
	return unlockedBadges(ctx, d.db, userID)
}

func (t *sqliteTx) UnlockedBadges(ctx context.Context, userID string) ([]domain.UserBadge, error) {
	return unlockedBadges(ctx, t.tx, userID)
}

func unlockedBadgeIDs(ctx context.Context, q dbtx, userID string) (map[string]struct{}, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT badge_id FROM user_badges WHERE user_id = ?`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

func (d *DB) UnlockedBadgeIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	return unlockedBadgeIDs(ctx, d.db, userID)
}

func (t *sqliteTx) UnlockedBadgeIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	return unlockedBadgeIDs(ctx, t.tx, userID)
}
