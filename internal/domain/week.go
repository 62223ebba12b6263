package domain

import "time"

// ─── Weekly Window ──────────────────────────────────────────────────────────
// "Weekly" counters cover a fixed window anchored at Monday 00:00 UTC.
// Rollover is implicit: the window is recomputed from now on every stats
// read, so there is no background job and no missed-rollover drift.

// WeekStart returns the Monday 00:00 UTC boundary of now's calendar week.
// Pure and monotonic: any two instants in the same week map to the same
// boundary.
func WeekStart(now time.Time) time.Time {
	now = now.UTC()
	// time.Weekday counts Sunday=0; shift so Monday=0.
	back := (int(now.Weekday()) + 6) % 7
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -back)
}

// SameWeek reports whether two instants fall in the same weekly window.
func SameWeek(a, b time.Time) bool {
	return WeekStart(a).Equal(WeekStart(b))
}
