package voucher

import (
	"testing"
	"time"

	"github.com/noah-isme/recurring-cart/internal/recurring"
)

var now = time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)

func TestComputePercent(t *testing.T) {
	rule := Rule{Kind: KindPercent, PercentBps: 2000}
	if discount := Compute(100_000, rule); discount != 20_000 {
		t.Fatalf("expected 20000 discount, got %d", discount)
	}
}

func TestComputeClampsToEligible(t *testing.T) {
	rule := Rule{Kind: KindFixed, Value: 5000}
	if discount := Compute(3000, rule); discount != 3000 {
		t.Fatalf("fixed discount must clamp to eligible, got %d", discount)
	}
}

func TestComputePercentRounds(t *testing.T) {
	rule := Rule{Kind: KindPercent, PercentBps: 3333}
	// 33.33% of 99 = 32.99..., rounds to 33.
	if discount := Compute(99, rule); discount != 33 {
		t.Fatalf("expected 33, got %d", discount)
	}
}

func TestAppliesTo(t *testing.T) {
	cases := []struct {
		name      string
		kind      Kind
		mode      recurring.Mode
		trialOnly bool
		want      bool
	}{
		{"initial coupon on initial pass", KindPercent, recurring.ModeNone, false, true},
		{"initial coupon on recurring pass", KindPercent, recurring.ModeRecurringTotal, false, false},
		{"recurring coupon on recurring pass", KindRecurringPercent, recurring.ModeRecurringTotal, false, true},
		{"recurring coupon on initial pass", KindRecurringPercent, recurring.ModeNone, false, false},
		{"recurring coupon on trial-only initial pass", KindRecurringPercent, recurring.ModeNone, true, true},
		{"recurring coupon on combined pass", KindRecurringFixed, recurring.ModeCombinedTotal, false, true},
		{"fee coupon on sign-up pass", KindSignUpFeePercent, recurring.ModeSignUpFeeTotal, false, true},
		{"fee coupon on recurring pass", KindSignUpFeePercent, recurring.ModeRecurringTotal, false, false},
	}
	for _, tc := range cases {
		rule := Rule{Kind: tc.kind}
		if got := rule.AppliesTo(tc.mode, tc.trialOnly); got != tc.want {
			t.Fatalf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestValidateWindow(t *testing.T) {
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	if err := (Rule{ValidFrom: &future}).Validate(now, 1000); err != ErrVoucherInactive {
		t.Fatalf("expected ErrVoucherInactive, got %v", err)
	}
	if err := (Rule{ValidTo: &past}).Validate(now, 1000); err != ErrVoucherExpired {
		t.Fatalf("expected ErrVoucherExpired, got %v", err)
	}
	if err := (Rule{MinSpend: 5000}).Validate(now, 1000); err != ErrMinimumSpendUnmet {
		t.Fatalf("expected ErrMinimumSpendUnmet, got %v", err)
	}
	if err := (Rule{ValidFrom: &past, ValidTo: &future}).Validate(now, 1000); err != nil {
		t.Fatalf("expected valid rule, got %v", err)
	}
}

func TestEngineDiscountTargetsRuleKind(t *testing.T) {
	e := &Engine{
		Rules: map[string]Rule{
			"FEE50": {Code: "FEE50", Kind: KindSignUpFeePercent, PercentBps: 5000},
		},
		Now: func() time.Time { return now },
	}
	lines := []Line{{ModePriced: 1500, Recurring: 1000, SignUpFee: 500}}

	discount := e.Discount([]string{"FEE50"}, lines, recurring.ModeNone, false)
	if discount != 250 {
		t.Fatalf("fee coupon must discount the fee portion only, got %d", discount)
	}
}

func TestEngineDiscountSkipsUnknownAndExpired(t *testing.T) {
	past := now.Add(-time.Hour)
	e := &Engine{
		Rules: map[string]Rule{
			"OLD": {Code: "OLD", Kind: KindFixed, Value: 100, ValidTo: &past},
		},
		Now: func() time.Time { return now },
	}
	lines := []Line{{ModePriced: 1000}}
	if discount := e.Discount([]string{"OLD", "MISSING"}, lines, recurring.ModeNone, false); discount != 0 {
		t.Fatalf("expired and unknown codes must contribute nothing, got %d", discount)
	}
}

func TestEngineDiscountClampsToPassTotal(t *testing.T) {
	e := &Engine{
		Rules: map[string]Rule{
			"A": {Code: "A", Kind: KindFixed, Value: 800},
			"B": {Code: "B", Kind: KindFixed, Value: 800},
		},
		Now: func() time.Time { return now },
	}
	lines := []Line{{ModePriced: 1000}}
	if discount := e.Discount([]string{"A", "B"}, lines, recurring.ModeNone, false); discount != 1000 {
		t.Fatalf("stacked discounts must clamp to the pass total, got %d", discount)
	}
}
