package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/ratehive/ratehive/internal/domain"
)

// ─── Badge Catalog ──────────────────────────────────────────────────────────

func badgeList(ctx context.Context, q querier) ([]domain.Badge, error) {
	rows, err := q.Query(ctx,
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

func (s *Store) Badges(ctx context.Context) ([]domain.Badge, error) {
	return badgeList(ctx, s.pool)
}

func (t *pgTx) Badges(ctx context.Context) ([]domain.Badge, error) {
	return badgeList(ctx, t.tx)
}

// CreateBadge inserts a catalog entry. Returns ErrBadgeExists on id
// collision.
func (s *Store) CreateBadge(ctx context.Context, b domain.Badge) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO badges (id, name, description, sort_order, condition_kind, threshold)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO NOTHING`,
		b.ID, b.Name, b.Description, b.SortOrder,
		string(b.Condition.Kind), b.Condition.Threshold,
	)
	if err != nil {
		return fmt.Errorf("create badge: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBadgeExists
	}
	return nil
}

// UpdateBadge rewrites a catalog entry. Returns ErrBadgeNotFound for an
// unknown id.
func (s *Store) UpdateBadge(ctx context.Context, b domain.Badge) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE badges SET name = $1, description = $2, sort_order = $3,
			condition_kind = $4, threshold = $5
		 WHERE id = $6`,
		b.Name, b.Description, b.SortOrder,
		string(b.Condition.Kind), b.Condition.Threshold, b.ID,
	)
	if err != nil {
		return fmt.Errorf("update badge: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBadgeNotFound
	}
	return nil
}

// DeleteBadge removes a catalog entry; unlock history is kept.
func (s *Store) DeleteBadge(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM badges WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete badge: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBadgeNotFound
	}
	return nil
}

// ─── Unlocks ────────────────────────────────────────────────────────────────

func (t *pgTx) UnlockBadge(ctx context.Context, userID, badgeID string, at time.Time) (bool, error) {
	tag, err := t.tx.Exec(ctx,
		`INSERT INTO user_badges (user_id, badge_id, unlocked_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, badge_id) DO NOTHING`,
		userID, badgeID, at,
	)
	if err != nil {
		return false, fmt.Errorf("unlock badge: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func unlockedBadges(ctx context.Context, q querier, userID string) ([]domain.UserBadge, error) {
	rows, err := q.Query(ctx,
		`SELECT ub.user_id, ub.badge_id, ub.unlocked_at
		 FROM user_badges ub
		 LEFT JOIN badges b ON b.id = ub.badge_id
		 WHERE ub.user_id = $1
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
		if err := rows.Scan(&ub.UserID, &ub.BadgeID, &ub.UnlockedAt); err != nil {
			return nil, err
		}
		out = append(out, ub)
	}
	return out, rows.Err()
}

func (s *Store) UnlockedBadges(ctx context.Context, userID string) ([]domain.UserBadge, error) {
	return unlockedBadges(ctx, s.pool, userID)
}

func (t *pgTx) UnlockedBadges(ctx context.Context, userID string) ([]domain.UserBadge, error) {
	return unlockedBadges(ctx, t.tx, userID)
}

func unlockedBadgeIDs(ctx context.Context, q querier, userID string) (map[string]struct{}, error) {
	rows, err := q.Query(ctx,
		`SELECT badge_id FROM user_badges WHERE user_id = $1`, userID,
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

func (s *Store) UnlockedBadgeIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	return unlockedBadgeIDs(ctx, s.pool, userID)
}

func (t *pgTx) UnlockedBadgeIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	return unlockedBadgeIDs(ctx, t.tx, userID)
}
