// Package memstore implements the store contract in memory. Used by tests
// and the "memory" config driver; the Hook field injects faults mid
// transaction to exercise rollback paths no real database will produce on
// demand.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ratehive/ratehive/internal/domain"
)

// Store is an in-memory domain.Store. Transactions run on a deep copy of
// the state and commit by swapping it in, so a failing transaction leaves
// no trace.
type Store struct {
	mu     sync.Mutex
	st     state
	nextID int64

	// Hook, when set, is called by every mutating transaction step with
	// the operation name ("append", "stats", "unlock", "snapshot"). A
	// non-nil return aborts the transaction.
	Hook func(op string) error
}

type state struct {
	entries []domain.PointLedgerEntry
	badges  []domain.Badge
	unlocks map[string]map[string]time.Time // user → badge → unlocked at
	snaps   map[string]domain.UserSnapshot
}

var _ domain.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{st: state{
		unlocks: make(map[string]map[string]time.Time),
		snaps:   make(map[string]domain.UserSnapshot),
	}}
}

func (s *Store) Close() error                   { return nil }
func (s *Store) Ping(ctx context.Context) error { return nil }

func (st state) clone() state {
	c := state{
		entries: append([]domain.PointLedgerEntry(nil), st.entries...),
		badges:  append([]domain.Badge(nil), st.badges...),
		unlocks: make(map[string]map[string]time.Time, len(st.unlocks)),
		snaps:   make(map[string]domain.UserSnapshot, len(st.snaps)),
	}
	for user, badges := range st.unlocks {
		m := make(map[string]time.Time, len(badges))
		for id, at := range badges {
			m[id] = at
		}
		c.unlocks[user] = m
	}
	for user, snap := range st.snaps {
		c.snaps[user] = snap
	}
	return c
}

// ─── Transactions ───────────────────────────────────────────────────────────

type memTx struct {
	store *Store
	st    *state
	hook  func(op string) error
}

var _ domain.Tx = (*memTx)(nil)

func noHook(string) error { return nil }

// InTx runs fn on a deep copy of the state under the store lock and swaps
// the copy in on success. The lock also provides the global serialization
// the single-writer SQLite store gives for free.
func (s *Store) InTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	hook := s.Hook
	if hook == nil {
		hook = noHook
	}
	working := s.st.clone()
	if err := fn(&memTx{store: s, st: &working, hook: hook}); err != nil {
		return err
	}
	s.st = working
	return nil
}

// view builds a read-only tx over the live state (caller must hold mu).
func (s *Store) view() *memTx {
	return &memTx{store: s, st: &s.st, hook: noHook}
}

// ─── Ledger ─────────────────────────────────────────────────────────────────

func (t *memTx) AppendEntry(ctx context.Context, e domain.PointLedgerEntry) (int64, error) {
	if e.ReferenceID != "" {
		for _, prev := range t.st.entries {
			if prev.UserID == e.UserID && prev.Action == e.Action && prev.ReferenceID == e.ReferenceID {
				return 0, domain.ErrDuplicateAction
			}
		}
	}
	t.store.nextID++
	e.ID = t.store.nextID
	t.st.entries = append(t.st.entries, e)
	if err := t.hook("append"); err != nil {
		return 0, err
	}
	return e.ID, nil
}

func (s *Store) AppendEntry(ctx context.Context, e domain.PointLedgerEntry) (int64, error) {
	var id int64
	err := s.InTx(ctx, func(tx domain.Tx) error {
		var err error
		id, err = tx.AppendEntry(ctx, e)
		return err
	})
	return id, err
}

// ─── Stats ──────────────────────────────────────────────────────────────────

func (t *memTx) UserStats(ctx context.Context, userID string, weekStart time.Time) (domain.UserStats, error) {
	if err := t.hook("stats"); err != nil {
		return domain.UserStats{}, err
	}
	stats := domain.UserStats{UserID: userID}
	seenRatings := make(map[string]struct{})
	for _, e := range t.st.entries {
		if e.UserID != userID {
			continue
		}
		first := false
		if e.Action == domain.ActionRating && e.ReferenceID != "" {
			if _, ok := seenRatings[e.ReferenceID]; !ok {
				seenRatings[e.ReferenceID] = struct{}{}
				first = true
			}
		}
		stats = domain.ApplyEntry(stats, e, first, weekStart)
	}
	return stats, nil
}

func (s *Store) UserStats(ctx context.Context, userID string, weekStart time.Time) (domain.UserStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().UserStats(ctx, userID, weekStart)
}

func (t *memTx) Snapshot(ctx context.Context, userID string) (domain.UserSnapshot, error) {
	if snap, ok := t.st.snaps[userID]; ok {
		return snap, nil
	}
	return domain.UserSnapshot{UserID: userID}, nil
}

func (s *Store) Snapshot(ctx context.Context, userID string) (domain.UserSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().Snapshot(ctx, userID)
}

func (t *memTx) SaveSnapshot(ctx context.Context, snap domain.UserSnapshot) error {
	if err := t.hook("snapshot"); err != nil {
		return err
	}
	t.st.snaps[snap.UserID] = snap
	return nil
}

// UserIDs lists every user with at least one ledger entry.
func (s *Store) UserIDs(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{})
	for _, e := range s.st.entries {
		seen[e.UserID] = struct{}{}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// ─── Badges ─────────────────────────────────────────────────────────────────

func (t *memTx) Badges(ctx context.Context) ([]domain.Badge, error) {
	out := append([]domain.Badge(nil), t.st.badges...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) Badges(ctx context.Context) ([]domain.Badge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().Badges(ctx)
}

func (s *Store) CreateBadge(ctx context.Context, b domain.Badge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, prev := range s.st.badges {
		if prev.ID == b.ID {
			return domain.ErrBadgeExists
		}
	}
	s.st.badges = append(s.st.badges, b)
	return nil
}

func (s *Store) UpdateBadge(ctx context.Context, b domain.Badge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, prev := range s.st.badges {
		if prev.ID == b.ID {
			s.st.badges[i] = b
			return nil
		}
	}
	return domain.ErrBadgeNotFound
}

func (s *Store) DeleteBadge(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, prev := range s.st.badges {
		if prev.ID == id {
			s.st.badges = append(s.st.badges[:i], s.st.badges[i+1:]...)
			return nil
		}
	}
	return domain.ErrBadgeNotFound
}

// ─── Unlocks ────────────────────────────────────────────────────────────────

func (t *memTx) UnlockBadge(ctx context.Context, userID, badgeID string, at time.Time) (bool, error) {
	if err := t.hook("unlock"); err != nil {
		return false, err
	}
	byBadge := t.st.unlocks[userID]
	if byBadge == nil {
		byBadge = make(map[string]time.Time)
		t.st.unlocks[userID] = byBadge
	}
	if _, ok := byBadge[badgeID]; ok {
		return false, nil
	}
	byBadge[badgeID] = at
	return true, nil
}

func (t *memTx) UnlockedBadges(ctx context.Context, userID string) ([]domain.UserBadge, error) {
	order := make(map[string]int, len(t.st.badges))
	for _, b := range t.st.badges {
		order[b.ID] = b.SortOrder
	}
	var out []domain.UserBadge
	for id, at := range t.st.unlocks[userID] {
		out = append(out, domain.UserBadge{UserID: userID, BadgeID: id, UnlockedAt: at})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if order[out[i].BadgeID] != order[out[j].BadgeID] {
			return order[out[i].BadgeID] < order[out[j].BadgeID]
		}
		return out[i].BadgeID < out[j].BadgeID
	})
	return out, nil
}

func (s *Store) UnlockedBadges(ctx context.Context, userID string) ([]domain.UserBadge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().UnlockedBadges(ctx, userID)
}

func (t *memTx) UnlockedBadgeIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	ids := make(map[string]struct{}, len(t.st.unlocks[userID]))
	for id := range t.st.unlocks[userID] {
		ids[id] = struct{}{}
	}
	return ids, nil
}

func (s *Store) UnlockedBadgeIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().UnlockedBadgeIDs(ctx, userID)
}
