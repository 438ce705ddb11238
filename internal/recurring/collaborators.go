package recurring

import (
	"context"
	"time"

	"github.com/noah-isme/recurring-cart/internal/cart"
)

// TotalCalculator is the external cart total calculator the aggregator
// invokes once for the master cart and once per cohort. Implementations
// consult the cycle Context for the active mode; they must not call back
// into Aggregator.Run other than through the reentrancy guard.
type TotalCalculator interface {
	Calculate(ctx context.Context, cc *Context, c *cart.Cart) (cart.Totals, error)
}

// ScheduleResolver derives the billing dates of a cohort from one
// representative member item.
type ScheduleResolver interface {
	TrialEndDate(it cart.Item, from time.Time) time.Time
	NextPaymentDate(it cart.Item, from time.Time) (time.Time, error)
	ExpirationDate(it cart.Item, from time.Time) time.Time
}

// Packager derives shipping packages from a cart's shippable contents. The
// engine only reshapes packages; it never prices them.
type Packager interface {
	Packages(c *cart.Cart) []ShippingPackage
}

// FeePolicy lets a store override the aggregator's fee and shipping
// suppression decisions and choose which fees recur.
type FeePolicy interface {
	// SuppressInitialFees decides whether the initial cart's fees are zeroed.
	// The default is true when the total sign-up fee is zero and every
	// subscription item has a trial.
	SuppressInitialFees(c *cart.Cart, signUpFeeTotal cart.Money, allOnTrial bool) bool
	// ChargeShippingUpFront decides whether the initial order is charged
	// shipping now. The default is false only when the cart contains a
	// subscription with a free trial and no other item needing immediate
	// shipping.
	ChargeShippingUpFront(c *cart.Cart) bool
	// RecurringFees selects the fees re-applied to a cohort cart.
	RecurringFees(c *cart.Cart, cohortKey string) []cart.Fee
}

// ProductSchedule resolves dates straight from the item's own billing
// schedule. It is the default ScheduleResolver.
type ProductSchedule struct{}

func (ProductSchedule) TrialEndDate(it cart.Item, from time.Time) time.Time {
	if it.Schedule == nil {
		return time.Time{}
	}
	return it.Schedule.TrialEnd(from)
}

func (ProductSchedule) NextPaymentDate(it cart.Item, from time.Time) (time.Time, error) {
	if it.Schedule == nil {
		return time.Time{}, ErrNotSubscription
	}
	return it.Schedule.NextPayment(from)
}

func (ProductSchedule) ExpirationDate(it cart.Item, from time.Time) time.Time {
	if it.Schedule == nil {
		return time.Time{}
	}
	return it.Schedule.Expiration(from)
}

// DefaultPackager puts every shippable item into a single package.
type DefaultPackager struct{}

func (DefaultPackager) Packages(c *cart.Cart) []ShippingPackage {
	var contents []cart.Item
	var cost cart.Money
	for _, it := range c.Items {
		if !it.NeedsShipping {
			continue
		}
		contents = append(contents, it)
		cost += it.LineSubtotal()
	}
	if len(contents) == 0 {
		return nil
	}
	return []ShippingPackage{{SourceIndex: 0, Contents: contents, ContentsCost: cost}}
}

// DefaultFeePolicy implements the stock suppression rules.
type DefaultFeePolicy struct{}

func (DefaultFeePolicy) SuppressInitialFees(c *cart.Cart, signUpFeeTotal cart.Money, allOnTrial bool) bool {
	return signUpFeeTotal == 0 && allOnTrial
}

func (DefaultFeePolicy) ChargeShippingUpFront(c *cart.Cart) bool {
	hasTrialSub := false
	for _, it := range c.Items {
		if it.IsSubscription() && it.HasFreeTrial() {
			hasTrialSub = true
			break
		}
	}
	if !hasTrialSub {
		return true
	}
	for _, it := range c.Items {
		if !it.NeedsShipping {
			continue
		}
		if !it.IsSubscription() || !it.HasFreeTrial() {
			// Something ships with the initial order regardless of trials.
			return true
		}
	}
	return false
}

func (DefaultFeePolicy) RecurringFees(c *cart.Cart, cohortKey string) []cart.Fee {
	var out []cart.Fee
	for _, f := range c.Fees {
		if f.Recurring {
			out = append(out, f)
		}
	}
	return out
}
