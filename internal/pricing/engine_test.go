package pricing

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/noah-isme/recurring-cart/internal/cart"
	"github.com/noah-isme/recurring-cart/internal/recurring"
	"github.com/noah-isme/recurring-cart/internal/shipping"
	"github.com/noah-isme/recurring-cart/internal/subscription"
)

func subItem(price, fee int64, trial bool) cart.Item {
	s := &subscription.Schedule{Interval: 1, Period: subscription.PeriodMonth}
	if trial {
		s.TrialLength = 1
		s.TrialPeriod = subscription.PeriodMonth
	}
	return cart.Item{ID: uuid.New(), Qty: 1, UnitPrice: price, SignUpFee: fee, Schedule: s}
}

func TestPriceForModes(t *testing.T) {
	plain := cart.Item{ID: uuid.New(), Qty: 1, UnitPrice: 2000}
	sub := subItem(1000, 500, false)
	trial := subItem(1000, 500, true)

	cases := []struct {
		name string
		item cart.Item
		mode recurring.Mode
		want int64
	}{
		{"plain initial", plain, recurring.ModeNone, 2000},
		{"plain recurring", plain, recurring.ModeRecurringTotal, 0},
		{"plain sign-up", plain, recurring.ModeSignUpFeeTotal, 0},
		{"sub initial", sub, recurring.ModeNone, 1500},
		{"sub recurring", sub, recurring.ModeRecurringTotal, 1000},
		{"sub sign-up", sub, recurring.ModeSignUpFeeTotal, 500},
		{"sub combined", sub, recurring.ModeCombinedTotal, 1500},
		{"trial initial", trial, recurring.ModeNone, 500},
		{"trial recurring", trial, recurring.ModeRecurringTotal, 1000},
		{"trial free-trial view", trial, recurring.ModeFreeTrialTotal, 0},
		{"sub free-trial view", sub, recurring.ModeFreeTrialTotal, 1000},
	}
	for _, tc := range cases {
		if got := PriceFor(tc.item, tc.mode); got != tc.want {
			t.Fatalf("%s: got %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestBpsTaxRounds(t *testing.T) {
	tax := BpsTax{Bps: 1100} // 11%
	if got := tax.Tax(1000); got != 110 {
		t.Fatalf("tax on 1000 = %d, want 110", got)
	}
	// 11% of 95 = 10.45, rounds to 10.
	if got := tax.Tax(95); got != 10 {
		t.Fatalf("tax on 95 = %d, want 10", got)
	}
	if got := tax.Tax(-50); got != 0 {
		t.Fatalf("negative taxable must yield 0, got %d", got)
	}
}

func TestCalculateInitialWithTaxAndShipping(t *testing.T) {
	item := subItem(1000, 0, false)
	item.NeedsShipping = true
	k := &cart.Cart{
		ID:    uuid.New(),
		Items: []cart.Item{item},
		Fees:  []cart.Fee{{Name: "handling", Amount: 200, Taxable: true}},
	}
	calc := &Calculator{
		Rates: shipping.FlatRate{Base: 300},
		Tax:   BpsTax{Bps: 1000},
	}
	cc := recurring.NewContext()

	totals, err := calc.Calculate(context.Background(), cc, k)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if totals.ItemsSubtotal != 1000 {
		t.Fatalf("items = %d, want 1000", totals.ItemsSubtotal)
	}
	if totals.Shipping != 300 {
		t.Fatalf("shipping = %d, want 300", totals.Shipping)
	}
	if totals.Tax != 120 { // 10% of (1000 items + 200 taxable fee)
		t.Fatalf("tax = %d, want 120", totals.Tax)
	}
	if totals.ShippingTax != 30 {
		t.Fatalf("shipping tax = %d, want 30", totals.ShippingTax)
	}
	if totals.GrandTotal != 1000+120+300+30+200 {
		t.Fatalf("grand total = %d", totals.GrandTotal)
	}
}

func TestCalculateRecurringUsesCachedPackages(t *testing.T) {
	item := subItem(1000, 0, false)
	item.NeedsShipping = true
	k := &cart.Cart{ID: uuid.New(), Items: []cart.Item{item}, CohortKey: "every_1_month"}
	calc := &Calculator{Rates: shipping.FlatRate{Base: 300}}

	cc := recurring.NewContext()
	cc.PushCohort("every_1_month")
	cc.StoreShippingPackages("every_1_month", []recurring.ShippingPackage{{
		Key:          recurring.PackageKey("every_1_month", 0),
		CohortKey:    "every_1_month",
		Contents:     []cart.Item{item},
		ContentsCost: 1000,
	}})

	totals, err := calc.Calculate(context.Background(), cc, k)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if totals.Shipping != 300 {
		t.Fatalf("shipping = %d, want 300", totals.Shipping)
	}

	// No cached packages for an unknown cohort: shipping is zero rather
	// than recomputed.
	cc2 := recurring.NewContext()
	cc2.PushCohort("every_1_year")
	totals, err = calc.Calculate(context.Background(), cc2, k)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if totals.Shipping != 0 {
		t.Fatalf("shipping = %d, want 0 without cached packages", totals.Shipping)
	}
}

func TestCalculateSignUpFeePassHasNoShipping(t *testing.T) {
	item := subItem(1000, 500, false)
	item.NeedsShipping = true
	k := &cart.Cart{ID: uuid.New(), Items: []cart.Item{item}}
	calc := &Calculator{Rates: shipping.FlatRate{Base: 300}}

	cc := recurring.NewContext()
	cc.SetMode(recurring.ModeSignUpFeeTotal)
	totals, err := calc.Calculate(context.Background(), cc, k)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if totals.Shipping != 0 || totals.ShippingTax != 0 {
		t.Fatalf("sign-up fee pass must not include shipping, got %+v", totals)
	}
	if totals.ItemsSubtotal != 500 {
		t.Fatalf("items = %d, want 500", totals.ItemsSubtotal)
	}
}
