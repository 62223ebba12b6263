package domain

import (
	"context"
	"time"
)

// ─── Storage Contracts ──────────────────────────────────────────────────────
// Implemented by infra/sqlite (default), infra/postgres (hosted), and
// infra/memstore (tests). The engine only ever talks to these interfaces.

// Reader is the read-only view shared by the store and its transactions.
type Reader interface {
	// UserStats recomputes the aggregate snapshot from the ledger.
	// weekStart bounds the WeeklyActions counter.
	UserStats(ctx context.Context, userID string, weekStart time.Time) (UserStats, error)

	// Snapshot returns the cached users-row summary (display only).
	// A user with no ledger entries yields a zero snapshot, not an error.
	Snapshot(ctx context.Context, userID string) (UserSnapshot, error)

	// Badges returns the catalog ordered by sort_order then id.
	Badges(ctx context.Context) ([]Badge, error)

	// UnlockedBadges lists a user's unlock events ordered by badge
	// sort_order.
	UnlockedBadges(ctx context.Context, userID string) ([]UserBadge, error)

	// UnlockedBadgeIDs returns the set of badge ids a user already holds.
	UnlockedBadgeIDs(ctx context.Context, userID string) (map[string]struct{}, error)
}

// Tx is the unit of work an award runs in. Everything between the ledger
// append and the snapshot write commits or rolls back together.
type Tx interface {
	Reader

	// AppendEntry appends a ledger entry. Returns ErrDuplicateAction when
	// the idempotency key (user, action, non-empty reference) already
	// exists. Entries with an empty reference always append.
	AppendEntry(ctx context.Context, e PointLedgerEntry) (int64, error)

	// UnlockBadge inserts a user_badges row. Returns false when the badge
	// was already held — a lost race, not an error.
	UnlockBadge(ctx context.Context, userID, badgeID string, at time.Time) (bool, error)

	// SaveSnapshot upserts the cached users-row summary.
	SaveSnapshot(ctx context.Context, snap UserSnapshot) error
}

// Store is the full storage contract.
type Store interface {
	Reader

	// InTx runs fn in a single durable transaction. A non-nil error from
	// fn rolls everything back.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	// Catalog administration. CreateBadge returns ErrBadgeExists on id
	// collision; UpdateBadge and DeleteBadge return ErrBadgeNotFound.
	CreateBadge(ctx context.Context, b Badge) error
	UpdateBadge(ctx context.Context, b Badge) error
	DeleteBadge(ctx context.Context, id string) error

	// UserIDs lists every user present in the ledger (for reconciliation).
	UserIDs(ctx context.Context) ([]string, error)

	Ping(ctx context.Context) error
	Close() error
}
