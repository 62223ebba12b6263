// Package domain holds the core gamification types shared by every layer.
// The points engine converts user actions on the review site (rating a
// brand, writing a review, fixing a brand record) into ledger entries,
// aggregate stats, and badge unlocks.
package domain

import "time"

// ─── Actions ────────────────────────────────────────────────────────────────

// ActionType identifies a point-earning user action.
type ActionType string

const (
	ActionRating      ActionType = "rating"
	ActionReview      ActionType = "review"
	ActionBrandAdd    ActionType = "brand_add"
	ActionBrandUpdate ActionType = "brand_update"
	ActionHelpResolve ActionType = "help_resolve"
	ActionComment     ActionType = "comment"
)

// AllActionTypes lists every known action type.
func AllActionTypes() []ActionType {
	return []ActionType{
		ActionRating, ActionReview, ActionBrandAdd,
		ActionBrandUpdate, ActionHelpResolve, ActionComment,
	}
}

// Valid reports whether t is a known action type.
func (t ActionType) Valid() bool {
	switch t {
	case ActionRating, ActionReview, ActionBrandAdd,
		ActionBrandUpdate, ActionHelpResolve, ActionComment:
		return true
	}
	return false
}

// DefaultPointValues maps each action type to the points it earns.
// Overridable via the [award] config section; values must stay positive.
func DefaultPointValues() map[ActionType]int64 {
	return map[ActionType]int64{
		ActionRating:      5,
		ActionReview:      10,
		ActionBrandAdd:    15,
		ActionBrandUpdate: 5,
		ActionHelpResolve: 10,
		ActionComment:     2,
	}
}

// ─── Ledger ─────────────────────────────────────────────────────────────────

// PointLedgerEntry is one immutable point-earning event. The ledger is the
// source of truth for all aggregates; entries are never updated or deleted.
//
// (UserID, Action, ReferenceID) is the idempotency key: a second append with
// the same non-empty ReferenceID is rejected as a duplicate. Entries without
// a reference (free-form comments) always append.
type PointLedgerEntry struct {
	ID          int64      `json:"id"`
	UserID      string     `json:"user_id"`
	Action      ActionType `json:"action_type"`
	Points      int64      `json:"points"`
	ReferenceID string     `json:"reference_id,omitempty"` // "" = no reference
	CreatedAt   time.Time  `json:"created_at"`
}

// ─── Stats ──────────────────────────────────────────────────────────────────

// UserStats is the aggregate snapshot derived from a user's ledger.
// Always reconstructable by recompute; cached copies are display-only.
type UserStats struct {
	UserID        string `json:"user_id"`
	TotalPoints   int64  `json:"total_points"`
	TotalActions  int64  `json:"total_actions"`
	Ratings       int64  `json:"ratings"`
	Reviews       int64  `json:"reviews"`
	BrandAdds     int64  `json:"brand_adds"`
	BrandUpdates  int64  `json:"brand_updates"`
	HelpResolves  int64  `json:"help_resolves"`
	Comments      int64  `json:"comments"`
	UniqueRatings int64  `json:"unique_ratings"` // distinct reference_ids among ratings
	WeeklyActions int64  `json:"weekly_actions"` // entries inside the current week window
}

// UserSnapshot is the cached points summary kept on the users row for
// dashboard display. Never authoritative; repaired by reconciliation.
type UserSnapshot struct {
	UserID        string    `json:"user_id"`
	TotalPoints   int64     `json:"total_points"`
	WeeklyActions int64     `json:"weekly_actions"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ─── Award Result ───────────────────────────────────────────────────────────

// AwardResult is returned by every award call. A duplicate submission is not
// an error: Accepted is false and the current totals are reported unchanged.
type AwardResult struct {
	Accepted       bool    `json:"accepted"`
	NewTotalPoints int64   `json:"new_total_points"`
	NewlyUnlocked  []Badge `json:"newly_unlocked_badges"`
}
