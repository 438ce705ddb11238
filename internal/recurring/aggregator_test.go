package recurring_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/recurring-cart/internal/cart"
	"github.com/noah-isme/recurring-cart/internal/pricing"
	"github.com/noah-isme/recurring-cart/internal/recurring"
	"github.com/noah-isme/recurring-cart/internal/shipping"
	"github.com/noah-isme/recurring-cart/internal/subscription"
	"github.com/noah-isme/recurring-cart/internal/voucher"
)

var fixedNow = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

func newAggregator(calc recurring.TotalCalculator) *recurring.Aggregator {
	return &recurring.Aggregator{
		Calc: calc,
		Now:  func() time.Time { return fixedNow },
	}
}

func simpleItem(price int64) cart.Item {
	return cart.Item{ID: uuid.New(), Qty: 1, UnitPrice: price}
}

func monthlySub(price, fee int64, trialMonths int) cart.Item {
	s := &subscription.Schedule{Interval: 1, Period: subscription.PeriodMonth}
	if trialMonths > 0 {
		s.TrialLength = trialMonths
		s.TrialPeriod = subscription.PeriodMonth
	}
	return cart.Item{ID: uuid.New(), Qty: 1, UnitPrice: price, SignUpFee: fee, Schedule: s}
}

func TestRunMixedCart(t *testing.T) {
	t.Parallel()

	master := &cart.Cart{
		ID:       uuid.New(),
		Currency: "USD",
		Items:    []cart.Item{simpleItem(2000), monthlySub(1000, 0, 0)},
	}
	agg := newAggregator(&pricing.Calculator{})
	cc := recurring.NewContext()

	total, err := agg.Run(context.Background(), cc, master)
	require.NoError(t, err)
	require.Equal(t, int64(3000), total)

	require.Len(t, master.RecurringCarts, 1)
	require.Len(t, master.RecurringOrder, 1)
	rc := master.RecurringCarts[master.RecurringOrder[0]]
	require.Equal(t, int64(1000), rc.Totals.GrandTotal)
	require.Equal(t, fixedNow, rc.Start)
	require.Equal(t, fixedNow.AddDate(0, 1, 0), rc.NextPayment)

	// Cycle finished: the context is back to neutral.
	require.Equal(t, recurring.ModeNone, cc.Mode())
	require.False(t, cc.IsReentrant())
}

func TestRunTrialSuppression(t *testing.T) {
	t.Parallel()

	sub := monthlySub(1000, 0, 1)
	sub.NeedsShipping = true
	master := &cart.Cart{
		ID:       uuid.New(),
		Currency: "USD",
		Items:    []cart.Item{sub},
		Fees:     []cart.Fee{{Name: "setup", Amount: 500}},
	}
	agg := newAggregator(&pricing.Calculator{
		Rates: shipping.FlatRate{Base: 300},
	})
	cc := recurring.NewContext()

	total, err := agg.Run(context.Background(), cc, master)
	require.NoError(t, err)
	require.Equal(t, int64(0), total)
	require.Equal(t, int64(0), master.Totals.Fees)
	require.Equal(t, int64(0), master.Totals.Shipping)

	require.Len(t, master.RecurringCarts, 1)
	rc := master.RecurringCarts[master.RecurringOrder[0]]
	require.Equal(t, int64(1000), rc.Totals.ItemsSubtotal)
	require.Equal(t, int64(300), rc.Totals.Shipping, "renewals still pay shipping")
	require.Equal(t, fixedNow.AddDate(0, 1, 0), rc.NextPayment, "first payment lands on trial end")
}

func TestRunSignUpFeeKeepsInitialCharge(t *testing.T) {
	t.Parallel()

	master := &cart.Cart{
		ID:       uuid.New(),
		Currency: "USD",
		Items:    []cart.Item{monthlySub(1000, 2500, 1)},
	}
	agg := newAggregator(&pricing.Calculator{})
	cc := recurring.NewContext()

	total, err := agg.Run(context.Background(), cc, master)
	require.NoError(t, err)
	// Trial defers the recurring amount; the sign-up fee is charged now.
	require.Equal(t, int64(2500), total)
}

func TestRunIdenticalSchedulesShareOneCohort(t *testing.T) {
	t.Parallel()

	master := &cart.Cart{
		ID:       uuid.New(),
		Currency: "USD",
		Items:    []cart.Item{monthlySub(1000, 0, 0), monthlySub(2500, 0, 0)},
	}
	agg := newAggregator(&pricing.Calculator{})
	cc := recurring.NewContext()

	_, err := agg.Run(context.Background(), cc, master)
	require.NoError(t, err)
	require.Len(t, master.RecurringCarts, 1)
	rc := master.RecurringCarts[master.RecurringOrder[0]]
	require.Equal(t, int64(3500), rc.Totals.GrandTotal)
}

func TestRunDifferentSchedulesSplitCohorts(t *testing.T) {
	t.Parallel()

	yearly := cart.Item{
		ID: uuid.New(), Qty: 1, UnitPrice: 9000,
		Schedule: &subscription.Schedule{Interval: 1, Period: subscription.PeriodYear},
	}
	master := &cart.Cart{
		ID:       uuid.New(),
		Currency: "USD",
		Items:    []cart.Item{monthlySub(1000, 0, 0), yearly},
	}
	agg := newAggregator(&pricing.Calculator{})
	cc := recurring.NewContext()

	_, err := agg.Run(context.Background(), cc, master)
	require.NoError(t, err)
	require.Len(t, master.RecurringCarts, 2)
	require.Len(t, master.RecurringOrder, 2)
	first := master.RecurringCarts[master.RecurringOrder[0]]
	second := master.RecurringCarts[master.RecurringOrder[1]]
	require.Equal(t, int64(1000), first.Totals.GrandTotal)
	require.Equal(t, int64(9000), second.Totals.GrandTotal)
}

func TestRunNoSubscriptionsShortCircuits(t *testing.T) {
	t.Parallel()

	master := &cart.Cart{ID: uuid.New(), Currency: "USD", Items: []cart.Item{simpleItem(2000)}}
	agg := newAggregator(&pricing.Calculator{})
	cc := recurring.NewContext()

	total, err := agg.Run(context.Background(), cc, master)
	require.NoError(t, err)
	require.Equal(t, int64(2000), total)
	require.Empty(t, master.RecurringCarts)
}

// reentrantCalculator re-invokes the aggregator from inside every cohort
// pass, the way collaborator callbacks do in production.
type reentrantCalculator struct {
	inner    recurring.TotalCalculator
	agg      *recurring.Aggregator
	master   *cart.Cart
	maxDepth int
	depth    int
}

func (r *reentrantCalculator) Calculate(ctx context.Context, cc *recurring.Context, c *cart.Cart) (cart.Totals, error) {
	r.depth++
	if r.depth > r.maxDepth {
		r.maxDepth = r.depth
	}
	if cc.Mode() == recurring.ModeRecurringTotal {
		// This must short-circuit on the reentrancy guard.
		if _, err := r.agg.Run(ctx, cc, r.master); err != nil {
			return cart.Totals{}, err
		}
	}
	totals, err := r.inner.Calculate(ctx, cc, c)
	r.depth--
	return totals, err
}

func TestRunReentrancyTerminates(t *testing.T) {
	t.Parallel()

	master := &cart.Cart{
		ID:       uuid.New(),
		Currency: "USD",
		Items:    []cart.Item{simpleItem(2000), monthlySub(1000, 0, 0)},
	}
	calc := &reentrantCalculator{inner: &pricing.Calculator{}}
	agg := newAggregator(calc)
	calc.agg = agg
	calc.master = master
	cc := recurring.NewContext()

	total, err := agg.Run(context.Background(), cc, master)
	require.NoError(t, err)
	require.Equal(t, int64(3000), total)
	require.Len(t, master.RecurringCarts, 1)
	// The nested Run never reached the calculator again: depth stays at one
	// in-flight calculation per pass.
	require.LessOrEqual(t, calc.maxDepth, 1)
}

func TestRunPartialCohortFailure(t *testing.T) {
	t.Parallel()

	corrupt := cart.Item{
		ID: uuid.New(), Qty: 1, UnitPrice: 1000,
		Schedule: &subscription.Schedule{Interval: 0, Period: subscription.PeriodMonth},
	}
	master := &cart.Cart{
		ID:       uuid.New(),
		Currency: "USD",
		Items:    []cart.Item{corrupt, monthlySub(2000, 0, 0)},
	}
	agg := newAggregator(&pricing.Calculator{})
	cc := recurring.NewContext()

	_, err := agg.Run(context.Background(), cc, master)
	require.ErrorIs(t, err, subscription.ErrInvalidSchedule)
	// The healthy cohort still completed.
	require.Len(t, master.RecurringCarts, 1)
	rc := master.RecurringCarts[master.RecurringOrder[0]]
	require.Equal(t, int64(2000), rc.Totals.GrandTotal)
	require.False(t, cc.IsReentrant())
}

func TestRunDiscountsNeverGoNegative(t *testing.T) {
	t.Parallel()

	master := &cart.Cart{
		ID:          uuid.New(),
		Currency:    "USD",
		Items:       []cart.Item{monthlySub(1000, 0, 0)},
		CouponCodes: []string{"HUGE"},
	}
	vouchers := &voucher.Engine{
		Rules: map[string]voucher.Rule{
			"HUGE": {Code: "HUGE", Kind: voucher.KindFixed, Value: 999999},
		},
		Now: func() time.Time { return fixedNow },
	}
	agg := newAggregator(&pricing.Calculator{Vouchers: vouchers})
	cc := recurring.NewContext()

	total, err := agg.Run(context.Background(), cc, master)
	require.NoError(t, err)
	require.GreaterOrEqual(t, total, int64(0))
	for _, rc := range master.RecurringCarts {
		require.GreaterOrEqual(t, rc.Totals.GrandTotal, int64(0))
	}
}

func TestRunRecurringVoucherSkippedOnInitialPass(t *testing.T) {
	t.Parallel()

	master := &cart.Cart{
		ID:          uuid.New(),
		Currency:    "USD",
		Items:       []cart.Item{monthlySub(1000, 0, 0)},
		CouponCodes: []string{"RENEW10"},
	}
	vouchers := &voucher.Engine{
		Rules: map[string]voucher.Rule{
			"RENEW10": {Code: "RENEW10", Kind: voucher.KindRecurringPercent, PercentBps: 1000},
		},
		Now: func() time.Time { return fixedNow },
	}
	agg := newAggregator(&pricing.Calculator{Vouchers: vouchers})
	cc := recurring.NewContext()

	total, err := agg.Run(context.Background(), cc, master)
	require.NoError(t, err)
	// No trial: the initial pass ignores the recurring voucher.
	require.Equal(t, int64(1000), total)
	rc := master.RecurringCarts[master.RecurringOrder[0]]
	require.Equal(t, int64(100), rc.Totals.Discount)
	require.Equal(t, int64(900), rc.Totals.GrandTotal)
}

func TestScopedPassesRestoreMode(t *testing.T) {
	t.Parallel()

	master := &cart.Cart{
		ID:       uuid.New(),
		Currency: "USD",
		Items:    []cart.Item{monthlySub(1000, 2500, 0)},
	}
	agg := newAggregator(&pricing.Calculator{})
	cc := recurring.NewContext()

	fee, err := agg.SignUpFeeTotal(context.Background(), cc, master)
	require.NoError(t, err)
	require.Equal(t, int64(2500), fee)
	require.Equal(t, recurring.ModeNone, cc.Mode())

	combined, err := agg.CombinedTotal(context.Background(), cc, master)
	require.NoError(t, err)
	require.Equal(t, int64(3500), combined)
	require.Equal(t, recurring.ModeNone, cc.Mode())

	trial, err := agg.FreeTrialTotal(context.Background(), cc, master)
	require.NoError(t, err)
	// No trial on this item, so the free-trial view still charges recurring.
	require.Equal(t, int64(1000), trial)
	require.Equal(t, recurring.ModeNone, cc.Mode())
}
