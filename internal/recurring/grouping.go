package recurring

import (
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/recurring-cart/internal/cart"
)

// Grouping partitions the subscription items of a cart into cohorts sharing
// an identical future billing schedule. Keys preserves the order each key was
// first encountered; Members maps a key to the indices of its items in the
// master cart.
type Grouping struct {
	Keys    []string
	Members map[string][]int
}

// Empty reports whether no subscription items were found.
func (g Grouping) Empty() bool { return len(g.Keys) == 0 }

// GroupItems assigns every subscription item to exactly one cohort. The walk
// is deterministic and order-preserving: grouping the same items twice yields
// identical keys and member ordering. Non-subscription items are skipped.
func GroupItems(items []cart.Item, now time.Time) Grouping {
	g := Grouping{Members: make(map[string][]int)}
	for i, it := range items {
		if !it.IsSubscription() {
			continue
		}
		key := GroupingKeyFor(it, now)
		if _, seen := g.Members[key]; !seen {
			g.Keys = append(g.Keys, key)
		}
		g.Members[key] = append(g.Members[key], i)
	}
	return g
}

// GroupingKeyFor derives the cohort key for a subscription item from its
// billing interval, period, length and trial, prefixed with the computed
// first-renewal date when billing-day synchronization is active. Two
// synchronized products renewing on different calendar dates therefore never
// share a cohort even if their plans are otherwise identical.
func GroupingKeyFor(it cart.Item, now time.Time) string {
	s := it.Schedule
	if s == nil {
		return noCohort
	}
	var parts []string
	if s.IsSynced() {
		if first := s.FirstRenewal(now); !first.IsZero() {
			parts = append(parts, first.Format("2006_01_02"))
		}
	}
	parts = append(parts, fmt.Sprintf("every_%d_%s", s.Interval, s.Period))
	if s.Length > 0 {
		parts = append(parts, fmt.Sprintf("for_%d_periods", s.Length))
	}
	if s.HasTrial() {
		parts = append(parts, fmt.Sprintf("after_%d_%s_trial", s.TrialLength, s.TrialPeriod))
	}
	return strings.Join(parts, "_")
}
