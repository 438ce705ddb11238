package recurring

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/recurring-cart/internal/cart"
	"github.com/noah-isme/recurring-cart/internal/subscription"
)

func shippableItem(price int64, oneTime bool, sched *subscription.Schedule) cart.Item {
	return cart.Item{
		ID:              uuid.New(),
		Qty:             1,
		UnitPrice:       price,
		NeedsShipping:   true,
		OneTimeShipping: oneTime,
		Schedule:        sched,
	}
}

func TestSynthesizeInitialDropsTrialItems(t *testing.T) {
	trial := shippableItem(1000, false, &subscription.Schedule{
		Interval: 1, Period: subscription.PeriodMonth,
		TrialLength: 1, TrialPeriod: subscription.PeriodMonth,
	})
	regular := shippableItem(2000, false, nil)

	pkgs := SynthesizeInitial([]ShippingPackage{{
		SourceIndex:  0,
		Contents:     []cart.Item{trial, regular},
		ContentsCost: 3000,
	}})
	if len(pkgs) != 1 {
		t.Fatalf("expected 1 package, got %d", len(pkgs))
	}
	if len(pkgs[0].Contents) != 1 || pkgs[0].Contents[0].ID != regular.ID {
		t.Fatalf("trial item must be removed from initial package, got %+v", pkgs[0].Contents)
	}
	if pkgs[0].ContentsCost != 2000 {
		t.Fatalf("cost must drop to 2000, got %d", pkgs[0].ContentsCost)
	}
}

func TestSynthesizeInitialOmitsEmptiedPackages(t *testing.T) {
	trial := shippableItem(1000, false, &subscription.Schedule{
		Interval: 1, Period: subscription.PeriodMonth,
		TrialLength: 1, TrialPeriod: subscription.PeriodMonth,
	})
	pkgs := SynthesizeInitial([]ShippingPackage{{
		SourceIndex:  0,
		Contents:     []cart.Item{trial},
		ContentsCost: 1000,
	}})
	if len(pkgs) != 0 {
		t.Fatalf("package emptied by trial exclusion must be omitted, got %d", len(pkgs))
	}
}

func TestSynthesizeCohortExcludesOneTimeShipping(t *testing.T) {
	monthly := &subscription.Schedule{Interval: 1, Period: subscription.PeriodMonth}
	oneTime := shippableItem(1500, true, monthly)
	renewing := shippableItem(2500, false, monthly)
	master := &cart.Cart{Items: []cart.Item{oneTime, renewing}}
	co := Cohort{Key: GroupingKeyFor(renewing, time.Now().UTC()), Members: []int{0, 1}}

	pkgs := SynthesizeCohort([]ShippingPackage{{
		SourceIndex:  0,
		Contents:     []cart.Item{oneTime, renewing},
		ContentsCost: 4000,
	}}, co, master)

	if len(pkgs) != 1 {
		t.Fatalf("expected 1 package, got %d", len(pkgs))
	}
	got := pkgs[0]
	if len(got.Contents) != 1 || got.Contents[0].ID != renewing.ID {
		t.Fatalf("one-time-shipping item must be removed, got %+v", got.Contents)
	}
	if got.ContentsCost != 2500 {
		t.Fatalf("cost must subtract the one-time line total, got %d", got.ContentsCost)
	}
	if got.CohortKey != co.Key {
		t.Fatalf("package must carry cohort key %s, got %s", co.Key, got.CohortKey)
	}
	if want := PackageKey(co.Key, 0); got.Key != want {
		t.Fatalf("package key = %s, want %s", got.Key, want)
	}
}

func TestSynthesizeCohortDropsNonMembers(t *testing.T) {
	monthly := &subscription.Schedule{Interval: 1, Period: subscription.PeriodMonth}
	member := shippableItem(1000, false, monthly)
	outsider := shippableItem(9999, false, &subscription.Schedule{Interval: 1, Period: subscription.PeriodYear})
	master := &cart.Cart{Items: []cart.Item{member, outsider}}
	co := Cohort{Key: "every_1_month", Members: []int{0}}

	pkgs := SynthesizeCohort([]ShippingPackage{{
		SourceIndex:  0,
		Contents:     []cart.Item{member, outsider},
		ContentsCost: 10999,
	}}, co, master)

	if len(pkgs) != 1 || len(pkgs[0].Contents) != 1 {
		t.Fatalf("only cohort members may remain, got %+v", pkgs)
	}
	if pkgs[0].Contents[0].ID != member.ID {
		t.Fatal("wrong item survived the cohort filter")
	}
}

func TestPackageKeysPairwiseDistinct(t *testing.T) {
	keys := map[string]bool{}
	for _, cohort := range []string{"every_1_month", "every_1_year"} {
		for idx := 0; idx < 2; idx++ {
			key := PackageKey(cohort, idx)
			if keys[key] {
				t.Fatalf("duplicate package key %s", key)
			}
			keys[key] = true
		}
	}
	if len(keys) != 4 {
		t.Fatalf("expected 4 distinct keys, got %d", len(keys))
	}
}
