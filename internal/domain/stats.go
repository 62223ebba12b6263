package domain

import "time"

// ApplyEntry folds one ledger entry into a stats snapshot in O(1).
// firstRating tells the caller's distinct-reference bookkeeping: re-rating
// the same brand must not grow UniqueRatings. weekStart is the current
// weekly window boundary.
//
// Folding every entry of a user through ApplyEntry from a zero snapshot
// yields the same result as a full recompute; the in-memory store relies
// on that equivalence.
func ApplyEntry(prev UserStats, e PointLedgerEntry, firstRating bool, weekStart time.Time) UserStats {
	s := prev
	s.UserID = e.UserID
	s.TotalPoints += e.Points
	s.TotalActions++

	switch e.Action {
	case ActionRating:
		s.Ratings++
		if firstRating && e.ReferenceID != "" {
			s.UniqueRatings++
		}
	case ActionReview:
		s.Reviews++
	case ActionBrandAdd:
		s.BrandAdds++
	case ActionBrandUpdate:
		s.BrandUpdates++
	case ActionHelpResolve:
		s.HelpResolves++
	case ActionComment:
		s.Comments++
	}

	if !e.CreatedAt.Before(weekStart) {
		s.WeeklyActions++
	}
	return s
}
