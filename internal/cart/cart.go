package cart

import (
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/recurring-cart/internal/subscription"
)

// Money is a monetary amount in minor units of the cart currency.
type Money = int64

// Item is one line in a cart. Items are plain values so cohort carts can
// carry copies without duplicating any deeper object graph.
type Item struct {
	ID        uuid.UUID
	ProductID uuid.UUID
	Title     string
	Qty       int

	// UnitPrice is the recurring (or one-off) per-unit price.
	UnitPrice Money
	// SignUpFee is the per-unit fee charged once on the initial order.
	SignUpFee Money

	NeedsShipping bool
	// OneTimeShipping marks products that ship with the initial order only,
	// never with renewals.
	OneTimeShipping bool

	// Schedule is nil for non-subscription products.
	Schedule *subscription.Schedule
}

// IsSubscription reports whether the item bills on a recurring schedule.
func (it Item) IsSubscription() bool { return it.Schedule != nil }

// HasFreeTrial reports whether the item starts with a free trial.
func (it Item) HasFreeTrial() bool {
	return it.Schedule != nil && it.Schedule.HasTrial()
}

// LineSubtotal is quantity times the recurring unit price.
func (it Item) LineSubtotal() Money { return Money(it.Qty) * it.UnitPrice }

// LineSignUpFee is quantity times the sign-up fee.
func (it Item) LineSignUpFee() Money { return Money(it.Qty) * it.SignUpFee }

// Fee is an extra charge attached to a cart. Recurring fees are re-applied to
// every renewal cart; the rest apply to the initial order only.
type Fee struct {
	Name      string
	Amount    Money
	Recurring bool
	Taxable   bool
}

// Totals aggregates the monetary components of one calculation pass.
type Totals struct {
	ItemsSubtotal Money `json:"itemsSubtotal"`
	Discount      Money `json:"discount"`
	Tax           Money `json:"tax"`
	Shipping      Money `json:"shipping"`
	ShippingTax   Money `json:"shippingTax"`
	Fees          Money `json:"fees"`
	GrandTotal    Money `json:"grandTotal"`
}

// Cart is the in-memory calculation model. The master cart owns the items;
// recurring carts built from it are disposable views scoped to one cohort.
type Cart struct {
	ID       uuid.UUID
	Currency string

	Items       []Item
	Fees        []Fee
	CouponCodes []string

	Totals Totals

	// Schedule dates, populated on cohort carts only.
	Start       time.Time
	TrialEnd    time.Time
	NextPayment time.Time
	End         time.Time

	// CohortKey is empty on the master cart.
	CohortKey string

	// RecurringCarts holds the per-cohort results of the last calculation
	// cycle, keyed by grouping key. RecurringOrder preserves the order the
	// cohorts were first encountered in.
	RecurringCarts map[string]*Cart
	RecurringOrder []string
}

// SubscriptionItems returns the indices of subscription line items.
func (c *Cart) SubscriptionItems() []int {
	var out []int
	for i, it := range c.Items {
		if it.IsSubscription() {
			out = append(out, i)
		}
	}
	return out
}

// AllSubscriptionsOnTrial reports whether every subscription item in the cart
// has a free trial. It is false when the cart has no subscription items.
func (c *Cart) AllSubscriptionsOnTrial() bool {
	found := false
	for _, it := range c.Items {
		if !it.IsSubscription() {
			continue
		}
		found = true
		if !it.HasFreeTrial() {
			return false
		}
	}
	return found
}

// TotalSignUpFee sums the sign-up fees across all subscription items.
func (c *Cart) TotalSignUpFee() Money {
	var total Money
	for _, it := range c.Items {
		if it.IsSubscription() {
			total += it.LineSignUpFee()
		}
	}
	return total
}

// FeeTotal sums the attached fee amounts.
func (c *Cart) FeeTotal() Money {
	var total Money
	for _, f := range c.Fees {
		total += f.Amount
	}
	return total
}

// ClearFees drops all fees from the cart.
func (c *Cart) ClearFees() { c.Fees = nil }
