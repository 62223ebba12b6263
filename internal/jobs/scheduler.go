// Package jobs runs the daemon's background maintenance tasks on a cron
// schedule: snapshot reconciliation and badge catalog refresh.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/ratehive/ratehive/internal/app/badges"
	"github.com/ratehive/ratehive/internal/domain"
	"github.com/ratehive/ratehive/internal/infra/metrics"
)

// Config holds the cron expressions for each job. Empty specs disable
// the corresponding job.
type Config struct {
	ReconcileSpec      string
	CatalogRefreshSpec string
}

// Scheduler manages the background jobs.
type Scheduler struct {
	cron    *cron.Cron
	store   domain.Store
	catalog *badges.Catalog
	cfg     Config
}

// NewScheduler creates the job scheduler. Jobs run in UTC, matching the
// weekly window.
func NewScheduler(store domain.Store, catalog *badges.Catalog, cfg Config) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		store:   store,
		catalog: catalog,
		cfg:     cfg,
	}
}

// Start registers and starts all background jobs.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.ReconcileSpec != "" {
		if _, err := s.cron.AddFunc(s.cfg.ReconcileSpec, func() {
			if err := s.Reconcile(ctx); err != nil {
				log.WithError(err).Error("snapshot reconciliation failed")
			}
		}); err != nil {
			return err
		}
	}

	if s.cfg.CatalogRefreshSpec != "" {
		if _, err := s.cron.AddFunc(s.cfg.CatalogRefreshSpec, func() {
			if err := s.catalog.Refresh(ctx); err != nil {
				log.WithError(err).Warn("badge catalog refresh failed")
			}
		}); err != nil {
			return err
		}
	}

	s.cron.Start()
	log.Info("job scheduler started")
	return nil
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("job scheduler stopped")
}

// Reconcile verifies every user's cached snapshot against a fresh ledger
// recompute and repairs any drift. The ledger is the source of truth;
// snapshots are display caches and may go stale after a crash between
// commit and read.
func (s *Scheduler) Reconcile(ctx context.Context) error {
	metrics.ReconcileRuns.Inc()

	userIDs, err := s.store.UserIDs(ctx)
	if err != nil {
		return err
	}

	weekStart := domain.WeekStart(time.Now())
	var repaired int
	for _, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			return err
		}

		stats, err := s.store.UserStats(ctx, userID, weekStart)
		if err != nil {
			log.WithError(err).WithField("user", userID).Error("reconcile: recompute failed")
			continue
		}
		snap, err := s.store.Snapshot(ctx, userID)
		if err != nil {
			log.WithError(err).WithField("user", userID).Error("reconcile: snapshot read failed")
			continue
		}

		if snap.TotalPoints == stats.TotalPoints && snap.WeeklyActions == stats.WeeklyActions {
			continue
		}

		metrics.ReconcileDrift.Inc()
		log.WithFields(log.Fields{
			"user":            userID,
			"snapshot_points": snap.TotalPoints,
			"ledger_points":   stats.TotalPoints,
		}).Warn("reconcile: snapshot drift, repairing")

		err = s.store.InTx(ctx, func(tx domain.Tx) error {
			return tx.SaveSnapshot(ctx, domain.UserSnapshot{
				UserID:        userID,
				TotalPoints:   stats.TotalPoints,
				WeeklyActions: stats.WeeklyActions,
				UpdatedAt:     time.Now().UTC(),
			})
		})
		if err != nil {
			log.WithError(err).WithField("user", userID).Error("reconcile: repair failed")
			continue
		}
		repaired++
	}

	if repaired > 0 {
		log.WithField("repaired", repaired).Info("snapshot reconciliation done")
	}
	return nil
}
