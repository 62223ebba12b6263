package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/ratehive/ratehive/internal/app/badges"
	"github.com/ratehive/ratehive/internal/domain"
	"github.com/ratehive/ratehive/internal/infra/memstore"
)

func TestReconcile_RepairsDriftedSnapshot(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()

	// Two ledger entries worth 15 points, then a snapshot that lies.
	err := store.InTx(ctx, func(tx domain.Tx) error {
		now := time.Now().UTC()
		for i, e := range []domain.PointLedgerEntry{
			{UserID: "u1", Action: domain.ActionReview, Points: 10, ReferenceID: "b1", CreatedAt: now},
			{UserID: "u1", Action: domain.ActionRating, Points: 5, ReferenceID: "b1", CreatedAt: now},
		} {
			if _, err := tx.AppendEntry(ctx, e); err != nil {
				t.Fatalf("append %d: %v", i, err)
			}
		}
		return tx.SaveSnapshot(ctx, domain.UserSnapshot{
			UserID: "u1", TotalPoints: 999, WeeklyActions: 0, UpdatedAt: now,
		})
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	s := NewScheduler(store, badges.NewCatalog(store, time.Hour), Config{})
	if err := s.Reconcile(ctx); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	snap, err := store.Snapshot(ctx, "u1")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.TotalPoints != 15 {
		t.Errorf("total_points = %d, want 15 after repair", snap.TotalPoints)
	}
	if snap.WeeklyActions != 2 {
		t.Errorf("weekly_actions = %d, want 2 after repair", snap.WeeklyActions)
	}
}

func TestReconcile_CleanSnapshotUntouched(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()

	now := time.Now().UTC()
	err := store.InTx(ctx, func(tx domain.Tx) error {
		if _, err := tx.AppendEntry(ctx, domain.PointLedgerEntry{
			UserID: "u1", Action: domain.ActionComment, Points: 2, CreatedAt: now,
		}); err != nil {
			return err
		}
		return tx.SaveSnapshot(ctx, domain.UserSnapshot{
			UserID: "u1", TotalPoints: 2, WeeklyActions: 1, UpdatedAt: now,
		})
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	s := NewScheduler(store, badges.NewCatalog(store, time.Hour), Config{})
	if err := s.Reconcile(ctx); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	snap, _ := store.Snapshot(ctx, "u1")
	if snap.UpdatedAt != now {
		t.Error("clean snapshot was rewritten")
	}
}
