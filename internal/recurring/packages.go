package recurring

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/noah-isme/recurring-cart/internal/cart"
)

// ShippingPackage is one shippable bundle handed to the external rate
// calculator. Key is empty until the package is tagged for a cohort.
type ShippingPackage struct {
	Key          string
	SourceIndex  int
	CohortKey    string
	Contents     []cart.Item
	ContentsCost cart.Money
}

// PackageKey combines the cohort key and the source package index so the
// initial cart's numeric indices can never collide with a cohort's packages.
func PackageKey(cohortKey string, sourceIndex int) string {
	return fmt.Sprintf("%s_%d", cohortKey, sourceIndex)
}

// SynthesizeInitial reshapes the master cart's packages for the initial
// charge: items on a free trial must not be shipped or charged now, so their
// contents are removed and their line cost subtracted. Packages left empty
// are dropped entirely.
func SynthesizeInitial(pkgs []ShippingPackage) []ShippingPackage {
	out := make([]ShippingPackage, 0, len(pkgs))
	for _, pkg := range pkgs {
		kept, cost := filterContents(pkg.Contents, func(it cart.Item) bool {
			return !it.HasFreeTrial()
		})
		if len(kept) == 0 {
			continue
		}
		pkg.Contents = kept
		pkg.ContentsCost = cost
		out = append(out, pkg)
	}
	return out
}

// SynthesizeCohort reshapes the master cart's packages for one cohort's
// renewal: only the cohort's member items remain, items flagged as one-time
// shipping are excluded (they ship with the initial order only), and each
// surviving package is tagged with the cohort-scoped key. Packages whose
// contents zero out are omitted, not emitted empty.
func SynthesizeCohort(pkgs []ShippingPackage, co Cohort, master *cart.Cart) []ShippingPackage {
	members := make(map[uuid.UUID]struct{}, len(co.Members))
	for _, idx := range co.Members {
		if idx < 0 || idx >= len(master.Items) {
			continue
		}
		members[master.Items[idx].ID] = struct{}{}
	}

	out := make([]ShippingPackage, 0, len(pkgs))
	for _, pkg := range pkgs {
		kept, cost := filterContents(pkg.Contents, func(it cart.Item) bool {
			if _, ok := members[it.ID]; !ok {
				return false
			}
			return !it.OneTimeShipping
		})
		if len(kept) == 0 {
			continue
		}
		tagged := pkg
		tagged.Contents = kept
		tagged.ContentsCost = cost
		tagged.CohortKey = co.Key
		tagged.Key = PackageKey(co.Key, pkg.SourceIndex)
		out = append(out, tagged)
	}
	return out
}

func filterContents(contents []cart.Item, keep func(cart.Item) bool) ([]cart.Item, cart.Money) {
	var kept []cart.Item
	var cost cart.Money
	for _, it := range contents {
		if !keep(it) {
			continue
		}
		kept = append(kept, it)
		cost += it.LineSubtotal()
	}
	return kept, cost
}
