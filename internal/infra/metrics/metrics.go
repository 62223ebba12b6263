// Package metrics provides Prometheus metrics for the award engine:
// counters and histograms for awards, duplicates, badge unlocks, lock
// contention, and reconciliation drift.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Awards ─────────────────────────────────────────────────────────────────

// AwardsAccepted tracks accepted awards by action type.
var AwardsAccepted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ratehive",
	Name:      "awards_accepted_total",
	Help:      "Total accepted point awards.",
}, []string{"action"})

// AwardsDuplicate tracks rejected duplicate submissions by action type.
var AwardsDuplicate = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ratehive",
	Name:      "awards_duplicate_total",
	Help:      "Total awards rejected as duplicate submissions.",
}, []string{"action"})

// AwardsFailed tracks awards that failed and rolled back.
var AwardsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ratehive",
	Name:      "awards_failed_total",
	Help:      "Total awards that failed and were rolled back.",
}, []string{"action"})

// AwardLatency tracks end-to-end award duration in seconds.
var AwardLatency = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "ratehive",
	Name:      "award_latency_seconds",
	Help:      "End-to-end award duration including lock wait.",
	Buckets:   prometheus.DefBuckets,
})

// LockWait tracks time spent waiting for the per-user serialization lock.
var LockWait = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "ratehive",
	Name:      "award_lock_wait_seconds",
	Help:      "Time spent acquiring the per-user award lock.",
	Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
})

// ─── Badges ─────────────────────────────────────────────────────────────────

// BadgesUnlocked tracks badge unlock events by badge id.
var BadgesUnlocked = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ratehive",
	Name:      "badges_unlocked_total",
	Help:      "Total badges unlocked.",
}, []string{"badge"})

// UnknownConditions tracks catalog entries skipped during evaluation.
var UnknownConditions = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "ratehive",
	Name:      "badge_unknown_condition_total",
	Help:      "Badge evaluations skipped due to an unrecognized condition kind.",
})

// ─── Reconciliation ─────────────────────────────────────────────────────────

// ReconcileDrift tracks user snapshots repaired by the reconciliation job.
var ReconcileDrift = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "ratehive",
	Name:      "reconcile_drift_total",
	Help:      "Cached user snapshots found drifted from the ledger and repaired.",
})

// ReconcileRuns tracks reconciliation job executions.
var ReconcileRuns = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "ratehive",
	Name:      "reconcile_runs_total",
	Help:      "Reconciliation job executions.",
})
