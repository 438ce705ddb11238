package recurring

import (
	"errors"
	"fmt"
	"time"

	"github.com/noah-isme/recurring-cart/internal/cart"
)

var (
	// ErrNotSubscription is returned when schedule dates are requested for a
	// non-subscription item.
	ErrNotSubscription = errors.New("item is not a subscription")
	// ErrEmptyCohort is returned when a cohort cart is requested for a cohort
	// with no member items.
	ErrEmptyCohort = errors.New("cohort has no member items")
)

// Cohort is one group of cart items sharing a future billing schedule,
// rebuilt from the master cart's contents on every calculation cycle.
type Cohort struct {
	Key     string
	Members []int // indices into the master cart's items

	Start       time.Time
	TrialEnd    time.Time
	NextPayment time.Time
	End         time.Time
}

// BuildCohortCart derives a disposable cart view scoped to one cohort. The
// view copies the master cart's structural state (currency, coupon codes) and
// only the member line items; fees never carry over automatically, and the
// caller re-applies fees flagged as recurring before the cohort's own pass.
// Schedule dates come from the resolver applied to the first member item.
func BuildCohortCart(master *cart.Cart, co Cohort, resolver ScheduleResolver, now time.Time) (*cart.Cart, error) {
	if len(co.Members) == 0 {
		return nil, fmt.Errorf("cohort %s: %w", co.Key, ErrEmptyCohort)
	}
	items := make([]cart.Item, 0, len(co.Members))
	for _, idx := range co.Members {
		if idx < 0 || idx >= len(master.Items) {
			return nil, fmt.Errorf("cohort %s: member index %d out of range", co.Key, idx)
		}
		items = append(items, master.Items[idx])
	}

	representative := items[0]
	nextPayment, err := resolver.NextPaymentDate(representative, now)
	if err != nil {
		return nil, fmt.Errorf("cohort %s: resolve next payment: %w", co.Key, err)
	}

	rc := &cart.Cart{
		ID:          master.ID,
		Currency:    master.Currency,
		Items:       items,
		CouponCodes: append([]string(nil), master.CouponCodes...),
		CohortKey:   co.Key,
		Start:       now.UTC(),
		TrialEnd:    resolver.TrialEndDate(representative, now),
		NextPayment: nextPayment,
		End:         resolver.ExpirationDate(representative, now),
	}
	return rc, nil
}
