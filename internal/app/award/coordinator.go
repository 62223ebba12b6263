// Package award implements the award coordinator: the single mutation
// entry point that turns a user action into a ledger append, a stats
// update, and badge unlock evaluation — atomically, serialized per user.
package award

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ratehive/ratehive/internal/app/badges"
	"github.com/ratehive/ratehive/internal/domain"
	"github.com/ratehive/ratehive/internal/infra/metrics"
)

// DefaultLockWait bounds how long an award waits for its user's lock
// before failing retryably.
const DefaultLockWait = 5 * time.Second

// CatalogSource yields the badge catalog. Satisfied by *badges.Catalog
// (TTL cached) and by any store.
type CatalogSource interface {
	Badges(ctx context.Context) ([]domain.Badge, error)
}

// Config tunes the coordinator.
type Config struct {
	// LockWait bounds per-user lock acquisition; 0 selects DefaultLockWait.
	LockWait time.Duration
	// Points overrides per-action point values; nil keeps the defaults.
	Points map[domain.ActionType]int64
	// Now is the clock, replaceable in tests; nil selects time.Now.
	Now func() time.Time
}

// Coordinator sequences ledger append, stats update, and badge evaluation
// under a per-user serialization scope.
type Coordinator struct {
	store    domain.Store
	catalog  CatalogSource
	locks    *userLocks
	lockWait time.Duration
	points   map[domain.ActionType]int64
	now      func() time.Time
}

// NewCoordinator wires a coordinator over a store and a badge catalog.
func NewCoordinator(store domain.Store, catalog CatalogSource, cfg Config) (*Coordinator, error) {
	points := domain.DefaultPointValues()
	for action, v := range cfg.Points {
		if !action.Valid() {
			return nil, fmt.Errorf("points override for %q: %w", action, domain.ErrUnknownAction)
		}
		if v <= 0 {
			return nil, fmt.Errorf("points override for %q: %w", action, domain.ErrInvalidPoints)
		}
		points[action] = v
	}

	c := &Coordinator{
		store:    store,
		catalog:  catalog,
		locks:    newUserLocks(),
		lockWait: cfg.LockWait,
		points:   points,
		now:      cfg.Now,
	}
	if c.lockWait <= 0 {
		c.lockWait = DefaultLockWait
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c, nil
}

// Award records one user action. Duplicate submissions (same user, action,
// and non-empty reference) return Accepted=false with current totals — an
// expected outcome under retry, not an error. All effects of an accepted
// award commit as one transaction; any failure rolls back the ledger
// append too.
func (c *Coordinator) Award(ctx context.Context, userID string, action domain.ActionType, referenceID string) (domain.AwardResult, error) {
	started := c.now()
	if userID == "" {
		return domain.AwardResult{}, domain.ErrUserRequired
	}
	if !action.Valid() {
		return domain.AwardResult{}, fmt.Errorf("action %q: %w", action, domain.ErrUnknownAction)
	}

	// Catalog read stays outside the lock and the transaction: it is
	// read-only, TTL-cached configuration.
	catalog, err := c.catalog.Badges(ctx)
	if err != nil {
		return domain.AwardResult{}, fmt.Errorf("load badge catalog: %w", err)
	}

	lockStarted := c.now()
	release, err := c.locks.Acquire(ctx, userID, c.lockWait)
	if err != nil {
		return domain.AwardResult{}, fmt.Errorf("acquire award lock for %s: %w", userID, err)
	}
	defer release()
	metrics.LockWait.Observe(c.now().Sub(lockStarted).Seconds())

	now := c.now()
	entry := domain.PointLedgerEntry{
		UserID:      userID,
		Action:      action,
		Points:      c.points[action],
		ReferenceID: referenceID,
		CreatedAt:   now,
	}
	weekStart := domain.WeekStart(now)

	var result domain.AwardResult
	err = c.store.InTx(ctx, func(tx domain.Tx) error {
		_, err := tx.AppendEntry(ctx, entry)
		if errors.Is(err, domain.ErrDuplicateAction) {
			stats, err := tx.UserStats(ctx, userID, weekStart)
			if err != nil {
				return err
			}
			result = domain.AwardResult{
				Accepted:       false,
				NewTotalPoints: stats.TotalPoints,
				NewlyUnlocked:  []domain.Badge{},
			}
			return nil
		}
		if err != nil {
			return err
		}

		// Recompute from the ledger inside the transaction:
		// read-your-writes, and the cache stays non-authoritative.
		stats, err := tx.UserStats(ctx, userID, weekStart)
		if err != nil {
			return err
		}

		unlocked, err := tx.UnlockedBadgeIDs(ctx, userID)
		if err != nil {
			return err
		}

		qualify, skipped := badges.Evaluate(stats, catalog, unlocked)
		for _, b := range skipped {
			metrics.UnknownConditions.Inc()
			log.WithFields(log.Fields{
				"badge": b.ID,
				"kind":  string(b.Condition.Kind),
			}).Warn("skipping badge with unrecognized condition kind")
		}

		granted := make([]domain.Badge, 0, len(qualify))
		for _, b := range qualify {
			isNew, err := tx.UnlockBadge(ctx, userID, b.ID, now)
			if err != nil {
				return err
			}
			// A lost race with a concurrent grant is already-granted,
			// dropped from the result silently.
			if isNew {
				granted = append(granted, b)
			}
		}

		if err := tx.SaveSnapshot(ctx, domain.UserSnapshot{
			UserID:        userID,
			TotalPoints:   stats.TotalPoints,
			WeeklyActions: stats.WeeklyActions,
			UpdatedAt:     now,
		}); err != nil {
			return err
		}

		result = domain.AwardResult{
			Accepted:       true,
			NewTotalPoints: stats.TotalPoints,
			NewlyUnlocked:  granted,
		}
		return nil
	})

	metrics.AwardLatency.Observe(c.now().Sub(started).Seconds())
	if err != nil {
		metrics.AwardsFailed.WithLabelValues(string(action)).Inc()
		return domain.AwardResult{}, err
	}

	if !result.Accepted {
		metrics.AwardsDuplicate.WithLabelValues(string(action)).Inc()
		log.WithFields(log.Fields{
			"user":   userID,
			"action": string(action),
			"ref":    referenceID,
		}).Debug("duplicate award ignored")
		return result, nil
	}

	metrics.AwardsAccepted.WithLabelValues(string(action)).Inc()
	for _, b := range result.NewlyUnlocked {
		metrics.BadgesUnlocked.WithLabelValues(b.ID).Inc()
	}
	log.WithFields(log.Fields{
		"user":   userID,
		"action": string(action),
		"points": entry.Points,
		"total":  result.NewTotalPoints,
		"badges": len(result.NewlyUnlocked),
	}).Info("award accepted")
	return result, nil
}

// Stats returns a live aggregate snapshot for dashboard display.
func (c *Coordinator) Stats(ctx context.Context, userID string) (domain.UserStats, error) {
	if userID == "" {
		return domain.UserStats{}, domain.ErrUserRequired
	}
	return c.store.UserStats(ctx, userID, domain.WeekStart(c.now()))
}

// UnlockedBadges lists a user's unlocks ordered by badge sort_order.
func (c *Coordinator) UnlockedBadges(ctx context.Context, userID string) ([]domain.UserBadge, error) {
	if userID == "" {
		return nil, domain.ErrUserRequired
	}
	return c.store.UnlockedBadges(ctx, userID)
}
