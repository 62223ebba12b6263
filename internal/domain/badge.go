package domain

import "time"

// ─── Badge Catalog ──────────────────────────────────────────────────────────

// ConditionKind names the stat a badge threshold is checked against.
// The set is closed; anything else is rejected at the catalog boundary and
// skipped (with a warning) if it still reaches evaluation.
type ConditionKind string

const (
	CondPoints        ConditionKind = "points"
	CondActions       ConditionKind = "actions"
	CondReviews       ConditionKind = "reviews"
	CondRatings       ConditionKind = "ratings"
	CondUniqueRatings ConditionKind = "unique_ratings"
	CondWeeklyActions ConditionKind = "weekly_actions"
)

// Condition is a declarative unlock rule: observed stat >= Threshold.
type Condition struct {
	Kind      ConditionKind `json:"kind"`
	Threshold int64         `json:"threshold"`
}

// Validate checks the condition for a known kind and a positive threshold.
func (c Condition) Validate() error {
	switch c.Kind {
	case CondPoints, CondActions, CondReviews, CondRatings,
		CondUniqueRatings, CondWeeklyActions:
	default:
		return ErrUnknownBadgeCondition
	}
	if c.Threshold <= 0 {
		return ErrInvalidThreshold
	}
	return nil
}

// Observed returns the stat value the condition is measured against.
// ok is false for an unknown kind.
func (c Condition) Observed(s UserStats) (int64, bool) {
	switch c.Kind {
	case CondPoints:
		return s.TotalPoints, true
	case CondActions:
		return s.TotalActions, true
	case CondReviews:
		return s.Reviews, true
	case CondRatings:
		return s.Ratings, true
	case CondUniqueRatings:
		return s.UniqueRatings, true
	case CondWeeklyActions:
		return s.WeeklyActions, true
	}
	return 0, false
}

// Badge is a catalog entry. Badges are administrator configuration and
// read-only to the engine.
type Badge struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	SortOrder   int       `json:"sort_order"`
	Condition   Condition `json:"unlock_condition"`
}

// UserBadge records an unlock event. At most one row exists per
// (user, badge); a badge is granted exactly once, ever.
type UserBadge struct {
	UserID     string    `json:"user_id"`
	BadgeID    string    `json:"badge_id"`
	UnlockedAt time.Time `json:"unlocked_at"`
}
