// Package badges implements badge rule evaluation and the cached catalog.
// Evaluation is a pure function over an aggregate stats snapshot; the
// catalog is administrator configuration, read-only to the engine.
package badges

import (
	"sort"

	"github.com/ratehive/ratehive/internal/domain"
)

// Evaluate returns the badges the user newly qualifies for: every catalog
// entry not already unlocked whose observed stat meets its threshold.
//
// All simultaneous qualifications are returned together, ordered by
// sort_order for presentation; persistence of the whole set is the
// coordinator's job. Entries with an unrecognized condition kind are never
// granted; they come back in skipped so the caller can surface a
// configuration warning without interrupting the award.
func Evaluate(stats domain.UserStats, catalog []domain.Badge, unlocked map[string]struct{}) (qualify, skipped []domain.Badge) {
	for _, b := range catalog {
		if _, ok := unlocked[b.ID]; ok {
			continue
		}
		observed, ok := b.Condition.Observed(stats)
		if !ok {
			skipped = append(skipped, b)
			continue
		}
		if observed >= b.Condition.Threshold {
			qualify = append(qualify, b)
		}
	}

	sort.SliceStable(qualify, func(i, j int) bool {
		if qualify[i].SortOrder != qualify[j].SortOrder {
			return qualify[i].SortOrder < qualify[j].SortOrder
		}
		return qualify[i].ID < qualify[j].ID
	})
	return qualify, skipped
}
