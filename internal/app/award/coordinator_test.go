package award_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/ratehive/ratehive/internal/app/award"
	"github.com/ratehive/ratehive/internal/app/badges"
	"github.com/ratehive/ratehive/internal/domain"
	"github.com/ratehive/ratehive/internal/infra/memstore"
	"github.com/ratehive/ratehive/internal/infra/metrics"
	"github.com/ratehive/ratehive/internal/infra/sqlite"
)

func newCoordinator(t *testing.T, store domain.Store, cfg award.Config) *award.Coordinator {
	t.Helper()
	c, err := award.NewCoordinator(store, badges.NewCatalog(store, time.Hour), cfg)
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}
	return c
}

func seedBadge(t *testing.T, store domain.Store, id string, kind domain.ConditionKind, threshold int64) {
	t.Helper()
	err := store.CreateBadge(context.Background(), domain.Badge{
		ID: id, Name: id,
		Condition: domain.Condition{Kind: kind, Threshold: threshold},
	})
	if err != nil {
		t.Fatalf("seed badge %s: %v", id, err)
	}
}

func TestAward_Idempotency(t *testing.T) {
	ctx := context.Background()
	coord := newCoordinator(t, memstore.New(), award.Config{})

	first, err := coord.Award(ctx, "u1", domain.ActionRating, "brand-1")
	if err != nil {
		t.Fatalf("first award: %v", err)
	}
	if !first.Accepted || first.NewTotalPoints != 5 {
		t.Fatalf("first = %+v, want accepted with 5 points", first)
	}

	second, err := coord.Award(ctx, "u1", domain.ActionRating, "brand-1")
	if err != nil {
		t.Fatalf("duplicate award errored: %v", err)
	}
	if second.Accepted {
		t.Error("duplicate award was accepted")
	}
	if second.NewTotalPoints != 5 {
		t.Errorf("duplicate reported %d points, want unchanged 5", second.NewTotalPoints)
	}
	if len(second.NewlyUnlocked) != 0 {
		t.Errorf("duplicate unlocked badges: %v", second.NewlyUnlocked)
	}
}

func TestAward_AtomicRollback(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	coord := newCoordinator(t, store, award.Config{})

	// Fail after the ledger append, before the stats read.
	boom := errors.New("store connection lost")
	store.Hook = func(op string) error {
		if op == "stats" {
			return boom
		}
		return nil
	}

	if _, err := coord.Award(ctx, "u1", domain.ActionReview, "brand-1"); !errors.Is(err, boom) {
		t.Fatalf("expected injected failure, got %v", err)
	}

	store.Hook = nil
	stats, err := store.UserStats(ctx, "u1", domain.WeekStart(time.Now()))
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalActions != 0 || stats.TotalPoints != 0 {
		t.Errorf("ledger entry survived the rollback: %+v", stats)
	}

	// The same award must succeed once the fault clears.
	res, err := coord.Award(ctx, "u1", domain.ActionReview, "brand-1")
	if err != nil || !res.Accepted {
		t.Fatalf("retry after rollback: %+v, %v", res, err)
	}
}

func TestAward_Monotonicity(t *testing.T) {
	ctx := context.Background()
	coord := newCoordinator(t, memstore.New(), award.Config{})

	var last int64
	calls := []struct {
		action domain.ActionType
		ref    string
	}{
		{domain.ActionRating, "b1"},
		{domain.ActionRating, "b1"}, // duplicate
		{domain.ActionComment, ""},
		{domain.ActionReview, "b1"},
		{domain.ActionRating, "b1"}, // duplicate again
		{domain.ActionComment, ""},
	}
	for i, call := range calls {
		res, err := coord.Award(ctx, "u1", call.action, call.ref)
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if res.NewTotalPoints < last {
			t.Errorf("call %d: total dropped from %d to %d", i, last, res.NewTotalPoints)
		}
		last = res.NewTotalPoints
	}
	if last != 5+2+10+2 {
		t.Errorf("final total = %d, want 19", last)
	}
}

func TestAward_BadgeExactlyOnce(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	seedBadge(t, store, "ten-points", domain.CondPoints, 10)
	coord := newCoordinator(t, store, award.Config{})

	// 5 points: below threshold.
	res, err := coord.Award(ctx, "u1", domain.ActionRating, "b1")
	if err != nil || len(res.NewlyUnlocked) != 0 {
		t.Fatalf("below threshold: %+v, %v", res, err)
	}

	// 10 points: crossing grants the badge in the same call.
	res, err = coord.Award(ctx, "u1", domain.ActionRating, "b2")
	if err != nil {
		t.Fatalf("crossing award: %v", err)
	}
	if len(res.NewlyUnlocked) != 1 || res.NewlyUnlocked[0].ID != "ten-points" {
		t.Fatalf("crossing award unlocked %v, want [ten-points]", res.NewlyUnlocked)
	}

	// The condition stays satisfied forever; the badge must never recur.
	for _, ref := range []string{"b3", "b4", "b5"} {
		res, err = coord.Award(ctx, "u1", domain.ActionRating, ref)
		if err != nil {
			t.Fatalf("award %s: %v", ref, err)
		}
		if len(res.NewlyUnlocked) != 0 {
			t.Errorf("badge granted again on %s: %v", ref, res.NewlyUnlocked)
		}
	}

	unlocked, err := store.UnlockedBadges(ctx, "u1")
	if err != nil {
		t.Fatalf("unlocked: %v", err)
	}
	if len(unlocked) != 1 {
		t.Errorf("expected exactly one unlock row, got %d", len(unlocked))
	}
}

func TestAward_ExampleScenario(t *testing.T) {
	// User at 95 points with a badge at points >= 100: a rating (+5)
	// must report 100 and the badge in the same call.
	ctx := context.Background()
	store := memstore.New()
	seedBadge(t, store, "century", domain.CondPoints, 100)
	coord := newCoordinator(t, store, award.Config{})

	for i := 0; i < 19; i++ {
		if _, err := coord.Award(ctx, "u1", domain.ActionRating, fmt.Sprintf("brand-%d", i)); err != nil {
			t.Fatalf("setup award %d: %v", i, err)
		}
	}
	stats, _ := coord.Stats(ctx, "u1")
	if stats.TotalPoints != 95 {
		t.Fatalf("setup total = %d, want 95", stats.TotalPoints)
	}

	res, err := coord.Award(ctx, "u1", domain.ActionRating, "brand-final")
	if err != nil {
		t.Fatalf("crossing award: %v", err)
	}
	if res.NewTotalPoints != 100 {
		t.Errorf("new total = %d, want 100", res.NewTotalPoints)
	}
	if len(res.NewlyUnlocked) != 1 || res.NewlyUnlocked[0].ID != "century" {
		t.Errorf("newly unlocked = %v, want [century]", res.NewlyUnlocked)
	}
}

func TestAward_ConcurrentCommentsNoLostUpdates(t *testing.T) {
	// Comments carry no reference and are never deduplicated: N parallel
	// awards must each append. Run against SQLite for real constraints.
	ctx := context.Background()
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	coord := newCoordinator(t, db, award.Config{LockWait: 10 * time.Second})

	const n = 25
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := coord.Award(ctx, "u1", domain.ActionComment, ""); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent award: %v", err)
	}

	stats, err := coord.Stats(ctx, "u1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalActions != n {
		t.Errorf("total actions = %d, want %d (lost updates)", stats.TotalActions, n)
	}
	if stats.TotalPoints != n*2 {
		t.Errorf("total points = %d, want %d", stats.TotalPoints, n*2)
	}
}

func TestAward_ConcurrentDuplicateAcceptedOnce(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	coord := newCoordinator(t, db, award.Config{LockWait: 10 * time.Second})

	const n = 10
	var wg sync.WaitGroup
	var accepted int64
	var mu sync.Mutex
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := coord.Award(ctx, "u1", domain.ActionRating, "brand-1")
			if err != nil {
				t.Errorf("award: %v", err)
				return
			}
			if res.Accepted {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if accepted != 1 {
		t.Errorf("%d awards accepted for one idempotency key, want 1", accepted)
	}
	stats, _ := coord.Stats(ctx, "u1")
	if stats.TotalPoints != 5 {
		t.Errorf("total points = %d, want 5", stats.TotalPoints)
	}
}

func TestAward_WeeklyWindowThroughClock(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()

	boundary := time.Date(2025, 7, 14, 0, 0, 0, 0, time.UTC) // Monday
	clock := boundary.Add(-time.Second)
	coord := newCoordinator(t, store, award.Config{Now: func() time.Time { return clock }})

	if _, err := coord.Award(ctx, "u1", domain.ActionComment, ""); err != nil {
		t.Fatalf("award before boundary: %v", err)
	}

	// One second into the new week: last week's action no longer counts.
	clock = boundary.Add(time.Second)
	stats, err := coord.Stats(ctx, "u1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.WeeklyActions != 0 {
		t.Errorf("weekly actions = %d after rollover, want 0", stats.WeeklyActions)
	}
	if stats.TotalActions != 1 {
		t.Errorf("total actions = %d, want 1", stats.TotalActions)
	}

	if _, err := coord.Award(ctx, "u1", domain.ActionComment, ""); err != nil {
		t.Fatalf("award after boundary: %v", err)
	}
	stats, _ = coord.Stats(ctx, "u1")
	if stats.WeeklyActions != 1 {
		t.Errorf("weekly actions = %d, want 1", stats.WeeklyActions)
	}
}

func TestAward_UniqueRatingsDistinct(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	seedBadge(t, store, "five-brands", domain.CondUniqueRatings, 5)
	coord := newCoordinator(t, store, award.Config{})

	// Re-rating the same brand is a duplicate; only distinct brands count.
	for _, ref := range []string{"a", "b", "c", "d"} {
		if _, err := coord.Award(ctx, "u1", domain.ActionRating, ref); err != nil {
			t.Fatalf("award %s: %v", ref, err)
		}
	}
	if _, err := coord.Award(ctx, "u1", domain.ActionRating, "a"); err != nil {
		t.Fatalf("duplicate rating: %v", err)
	}

	stats, _ := coord.Stats(ctx, "u1")
	if stats.UniqueRatings != 4 {
		t.Errorf("unique ratings = %d, want 4", stats.UniqueRatings)
	}

	res, err := coord.Award(ctx, "u1", domain.ActionRating, "e")
	if err != nil {
		t.Fatalf("fifth brand: %v", err)
	}
	if len(res.NewlyUnlocked) != 1 || res.NewlyUnlocked[0].ID != "five-brands" {
		t.Errorf("newly unlocked = %v, want [five-brands]", res.NewlyUnlocked)
	}
}

func TestAward_UnknownActionRejected(t *testing.T) {
	coord := newCoordinator(t, memstore.New(), award.Config{})
	_, err := coord.Award(context.Background(), "u1", "teleport", "x")
	if !errors.Is(err, domain.ErrUnknownAction) {
		t.Fatalf("expected ErrUnknownAction, got %v", err)
	}
	if domain.Retryable(err) {
		t.Error("unknown action must not be retryable")
	}
}

func TestAward_UnknownConditionNeverFatal(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	// Written directly to the store, bypassing boundary validation, the
	// way a stale catalog row would look after a bad deploy.
	if err := store.CreateBadge(ctx, domain.Badge{
		ID: "mystery", Name: "Mystery",
		Condition: domain.Condition{Kind: "karma", Threshold: 1},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	coord := newCoordinator(t, store, award.Config{})

	res, err := coord.Award(ctx, "u1", domain.ActionReview, "b1")
	if err != nil {
		t.Fatalf("award failed on unknown condition: %v", err)
	}
	if !res.Accepted || len(res.NewlyUnlocked) != 0 {
		t.Errorf("result = %+v, want accepted with no unlocks", res)
	}
}

func TestAward_CancelledMidFlightRollsBack(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := memstore.New()
	seedBadge(t, store, "first-points", domain.CondPoints, 1)
	coord := newCoordinator(t, store, award.Config{})

	// The caller gives up while the transaction sits between the ledger
	// append and the badge unlock.
	store.Hook = func(op string) error {
		if op == "unlock" {
			cancel()
		}
		return ctx.Err()
	}

	_, err := coord.Award(ctx, "u1", domain.ActionRating, "b1")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if !domain.Retryable(err) {
		t.Error("abandoned award must stay retryable")
	}

	// Nothing half-applied: no ledger entry, no unlock row.
	store.Hook = nil
	stats, err := store.UserStats(context.Background(), "u1", domain.WeekStart(time.Now()))
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalActions != 0 || stats.TotalPoints != 0 {
		t.Errorf("ledger entry survived the abandoned award: %+v", stats)
	}
	unlocked, err := store.UnlockedBadges(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unlocked: %v", err)
	}
	if len(unlocked) != 0 {
		t.Errorf("badge unlock survived the abandoned award: %v", unlocked)
	}

	// The resubmitted award applies in full.
	res, err := coord.Award(context.Background(), "u1", domain.ActionRating, "b1")
	if err != nil || !res.Accepted {
		t.Fatalf("retry after cancellation: %+v, %v", res, err)
	}
	if len(res.NewlyUnlocked) != 1 {
		t.Errorf("retry unlocked %v, want the seeded badge", res.NewlyUnlocked)
	}
}

func lockWaitSampleSum(t *testing.T) float64 {
	t.Helper()
	var m dto.Metric
	if err := metrics.LockWait.Write(&m); err != nil {
		t.Fatalf("read lock wait histogram: %v", err)
	}
	return m.GetHistogram().GetSampleSum()
}

// slowCatalog burns an hour of fake time per load, like a cold cache
// hitting a congested store.
type slowCatalog struct {
	advance func(d time.Duration)
}

func (c slowCatalog) Badges(ctx context.Context) ([]domain.Badge, error) {
	c.advance(time.Hour)
	return nil, nil
}

func TestAward_LockWaitMeasuresOnlyAcquisition(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()

	// Fake clock: one minute per reading, plus whatever a stage burns
	// explicitly. Only the acquisition interval may land in the
	// lock-wait histogram; the slow catalog load must not.
	base := time.Date(2025, 7, 16, 12, 0, 0, 0, time.UTC)
	var elapsed time.Duration
	now := func() time.Time {
		elapsed += time.Minute
		return base.Add(elapsed)
	}
	coord, err := award.NewCoordinator(store,
		slowCatalog{advance: func(d time.Duration) { elapsed += d }},
		award.Config{Now: now})
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}

	before := lockWaitSampleSum(t)
	if _, err := coord.Award(ctx, "u1", domain.ActionComment, ""); err != nil {
		t.Fatalf("award: %v", err)
	}
	waited := lockWaitSampleSum(t) - before

	if waited > 90 {
		t.Errorf("lock wait recorded %.0fs, absorbing stages outside acquisition", waited)
	}
}

func TestAward_LockWaitBounded(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	coord := newCoordinator(t, store, award.Config{LockWait: 20 * time.Millisecond})

	// Stall the first award inside its transaction to hold u1's lock.
	entered := make(chan struct{})
	unblock := make(chan struct{})
	var once sync.Once
	store.Hook = func(op string) error {
		if op == "stats" {
			once.Do(func() {
				close(entered)
				<-unblock
			})
		}
		return nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := coord.Award(ctx, "u1", domain.ActionComment, "")
		done <- err
	}()
	<-entered

	_, err := coord.Award(ctx, "u1", domain.ActionComment, "")
	if !errors.Is(err, domain.ErrLockWaitExceeded) {
		t.Fatalf("expected ErrLockWaitExceeded, got %v", err)
	}

	close(unblock)
	if err := <-done; err != nil {
		t.Fatalf("stalled award: %v", err)
	}
}
