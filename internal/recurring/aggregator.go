package recurring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/recurring-cart/internal/cart"
	"github.com/noah-isme/recurring-cart/internal/obs"
)

// Aggregator runs one full calculation cycle over a master cart: it
// partitions subscription items into cohorts, invokes the external total
// calculator once per cohort under recurring mode, and reconciles the
// initial cart's total. Cohorts are processed strictly sequentially because
// the cycle Context is a single shared mutable state consulted by every
// collaborator.
type Aggregator struct {
	Calc     TotalCalculator
	Schedule ScheduleResolver
	Packager Packager
	Policy   FeePolicy
	Now      func() time.Time
	Logger   *zerolog.Logger
}

// ErrCalculatorMissing is returned when the aggregator has no total calculator.
var ErrCalculatorMissing = errors.New("total calculator not configured")

func (a *Aggregator) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now().UTC()
}

func (a *Aggregator) schedule() ScheduleResolver {
	if a.Schedule != nil {
		return a.Schedule
	}
	return ProductSchedule{}
}

func (a *Aggregator) packager() Packager {
	if a.Packager != nil {
		return a.Packager
	}
	return DefaultPackager{}
}

func (a *Aggregator) policy() FeePolicy {
	if a.Policy != nil {
		return a.Policy
	}
	return DefaultFeePolicy{}
}

// Run executes one calculation cycle and returns the finalized initial
// total. It must be the only entry point: collaborator callbacks that fire
// during a cohort pass may attempt to re-invoke it, and the reentrancy
// guard — checked before any other state is touched — is what keeps that
// from recursing forever. A cohort whose schedule cannot be resolved aborts
// that cohort only; its error is joined into the returned error while the
// remaining cohorts still complete.
func (a *Aggregator) Run(ctx context.Context, cc *Context, master *cart.Cart) (cart.Money, error) {
	if cc.IsReentrant() || cc.Mode() != ModeNone {
		if obs.ReentrantShortCircuits != nil {
			obs.ReentrantShortCircuits.Inc()
		}
		return clamp0(master.Totals.GrandTotal), nil
	}
	if a.Calc == nil {
		return 0, ErrCalculatorMissing
	}
	now := a.now()

	// Baseline: the cart priced without any recurring adjustments.
	totals, err := a.Calc.Calculate(ctx, cc, master)
	if err != nil {
		return 0, fmt.Errorf("baseline pass: %w", err)
	}
	totals.GrandTotal = clamp0(totals.GrandTotal)
	master.Totals = totals

	grouping := GroupItems(master.Items, now)
	if grouping.Empty() {
		master.RecurringCarts = map[string]*cart.Cart{}
		master.RecurringOrder = nil
		return master.Totals.GrandTotal, nil
	}

	masterPackages := a.packager().Packages(master)

	var cohortErrs []error
	for _, key := range grouping.Keys {
		co := Cohort{Key: key, Members: grouping.Members[key]}
		cc.PushCohort(key)

		rc, err := BuildCohortCart(master, co, a.schedule(), now)
		if err != nil {
			cohortErrs = append(cohortErrs, err)
			observeCohort("error")
			cc.PopCohort()
			continue
		}

		cc.StoreShippingPackages(key, SynthesizeCohort(masterPackages, co, master))

		rc.ClearFees()
		rc.Fees = a.policy().RecurringFees(master, key)

		cohortTotals, err := a.Calc.Calculate(ctx, cc, rc)
		if err != nil {
			cohortErrs = append(cohortErrs, fmt.Errorf("cohort %s: %w", key, err))
			observeCohort("error")
			cc.PopCohort()
			continue
		}
		cohortTotals.GrandTotal = clamp0(cohortTotals.GrandTotal)
		rc.Totals = cohortTotals
		cc.StoreRecurringCart(key, rc)
		observeCohort("ok")

		if a.Logger != nil {
			a.Logger.Debug().
				Str("cohort", key).
				Int("members", len(co.Members)).
				Int64("total", cohortTotals.GrandTotal).
				Msg("cohort pass complete")
		}
		cc.PopCohort()
	}

	signUpFee, err := a.SignUpFeeTotal(ctx, cc, master)
	if err != nil {
		cohortErrs = append(cohortErrs, fmt.Errorf("sign-up fee pass: %w", err))
		signUpFee = master.TotalSignUpFee()
	}
	allOnTrial := master.AllSubscriptionsOnTrial()

	final := master.Totals
	if a.policy().SuppressInitialFees(master, signUpFee, allOnTrial) {
		final.Fees = 0
	}
	if !a.policy().ChargeShippingUpFront(master) {
		final.Shipping = 0
		final.ShippingTax = 0
	}
	final.GrandTotal = clamp0(final.ItemsSubtotal - final.Discount + final.Tax + final.ShippingTax + final.Shipping + final.Fees)
	master.Totals = final
	master.RecurringCarts = cc.RecurringCarts()
	master.RecurringOrder = cc.RecurringCartOrder()

	return final.GrandTotal, errors.Join(cohortErrs...)
}

// SignUpFeeTotal prices the cart under sign_up_fee_total and returns the
// resulting items subtotal: the sign-up fees alone, before tax and with no
// shipping. The previous mode is restored before returning.
func (a *Aggregator) SignUpFeeTotal(ctx context.Context, cc *Context, master *cart.Cart) (cart.Money, error) {
	return a.scopedPass(ctx, cc, master, ModeSignUpFeeTotal)
}

// CombinedTotal prices the cart as sign-up fees plus first recurring
// amounts, the single figure storefronts show for a subscription's upfront
// commitment.
func (a *Aggregator) CombinedTotal(ctx context.Context, cc *Context, master *cart.Cart) (cart.Money, error) {
	return a.scopedPass(ctx, cc, master, ModeCombinedTotal)
}

// FreeTrialTotal prices the cart under free_trial_total: trial items cost
// nothing and no shipping applies.
func (a *Aggregator) FreeTrialTotal(ctx context.Context, cc *Context, master *cart.Cart) (cart.Money, error) {
	return a.scopedPass(ctx, cc, master, ModeFreeTrialTotal)
}

func (a *Aggregator) scopedPass(ctx context.Context, cc *Context, master *cart.Cart, mode Mode) (cart.Money, error) {
	if a.Calc == nil {
		return 0, ErrCalculatorMissing
	}
	scratch := &cart.Cart{
		ID:          master.ID,
		Currency:    master.Currency,
		Items:       master.Items,
		CouponCodes: master.CouponCodes,
	}
	prev := cc.SetMode(mode)
	defer cc.SetMode(prev)
	totals, err := a.Calc.Calculate(ctx, cc, scratch)
	if err != nil {
		return 0, err
	}
	return clamp0(totals.ItemsSubtotal - totals.Discount), nil
}

func observeCohort(result string) {
	if obs.CohortPassTotal != nil {
		obs.CohortPassTotal.WithLabelValues(result).Inc()
	}
}

func clamp0(v cart.Money) cart.Money {
	if v < 0 {
		return 0
	}
	return v
}
