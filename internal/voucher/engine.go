package voucher

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/recurring-cart/internal/recurring"
)

var (
	// ErrVoucherInactive is returned when attempting to use a voucher outside of its active window.
	ErrVoucherInactive = errors.New("voucher not active")
	// ErrVoucherExpired is returned when the voucher has already expired.
	ErrVoucherExpired = errors.New("voucher expired")
	// ErrMinimumSpendUnmet indicates the cart total did not meet the voucher requirement.
	ErrMinimumSpendUnmet = errors.New("voucher minimum spend not met")
)

// Kind distinguishes what part of a subscription purchase a voucher discounts.
type Kind string

const (
	// KindPercent discounts the initial order by a percentage.
	KindPercent Kind = "percent"
	// KindFixed discounts the initial order by a fixed amount.
	KindFixed Kind = "fixed"
	// KindRecurringPercent discounts every renewal by a percentage.
	KindRecurringPercent Kind = "recurring_percent"
	// KindRecurringFixed discounts every renewal by a fixed amount.
	KindRecurringFixed Kind = "recurring_fixed"
	// KindSignUpFeePercent discounts the sign-up fee portion only.
	KindSignUpFeePercent Kind = "sign_up_fee_percent"
)

// Rule captures the runtime constraints of a voucher.
type Rule struct {
	Code       string
	Kind       Kind
	Value      int64 // fixed discount, minor units
	PercentBps int32 // percentage in basis points
	MinSpend   int64
	ValidFrom  *time.Time
	ValidTo    *time.Time
}

// Validate ensures the rule can be applied at the provided instant and cart total.
func (r Rule) Validate(now time.Time, cartTotal int64) error {
	if cartTotal < r.MinSpend {
		return ErrMinimumSpendUnmet
	}
	if r.ValidFrom != nil && now.Before(*r.ValidFrom) {
		return ErrVoucherInactive
	}
	if r.ValidTo != nil && now.After(*r.ValidTo) {
		return ErrVoucherExpired
	}
	return nil
}

// AppliesTo reports whether the rule participates in a pass under the given
// calculation mode. Recurring vouchers are skipped during the initial pass
// unless the cart is trial-only, in which case the first charge is already a
// pure recurring amount.
func (r Rule) AppliesTo(mode recurring.Mode, trialOnly bool) bool {
	switch r.Kind {
	case KindPercent, KindFixed:
		return mode == recurring.ModeNone || mode == recurring.ModeCombinedTotal
	case KindRecurringPercent, KindRecurringFixed:
		if mode == recurring.ModeRecurringTotal || mode == recurring.ModeCombinedTotal {
			return true
		}
		return mode == recurring.ModeNone && trialOnly
	case KindSignUpFeePercent:
		switch mode {
		case recurring.ModeNone, recurring.ModeCombinedTotal, recurring.ModeSignUpFeeTotal:
			return true
		}
	}
	return false
}

// Line is the per-item amounts a voucher can discount: the price as resolved
// for the current pass, the pure recurring amount, and the sign-up fee.
type Line struct {
	ModePriced int64
	Recurring  int64
	SignUpFee  int64
}

// eligible returns the portion of the lines the rule's kind targets.
func (r Rule) eligible(lines []Line) int64 {
	var total int64
	for _, l := range lines {
		switch r.Kind {
		case KindRecurringPercent, KindRecurringFixed:
			total += l.Recurring
		case KindSignUpFeePercent:
			total += l.SignUpFee
		default:
			total += l.ModePriced
		}
	}
	if total < 0 {
		return 0
	}
	return total
}

// Compute determines the discount amount based on the rule and eligible subtotal.
func Compute(eligible int64, r Rule) int64 {
	if eligible <= 0 {
		return 0
	}
	discount := r.Value
	switch r.Kind {
	case KindPercent, KindRecurringPercent, KindSignUpFeePercent:
		if r.PercentBps <= 0 {
			return 0
		}
		discount = decimal.NewFromInt(eligible).
			Mul(decimal.NewFromInt32(r.PercentBps)).
			Div(decimal.NewFromInt(10000)).
			Round(0).IntPart()
	}
	if discount > eligible {
		discount = eligible
	}
	if discount < 0 {
		return 0
	}
	return discount
}

// Engine resolves applied voucher codes to rules and computes the discount
// for one calculation pass.
type Engine struct {
	Rules map[string]Rule
	Now   func() time.Time
}

func (e *Engine) now() time.Time {
	if e != nil && e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Discount sums the discounts of all applied codes that are valid now and
// applicable under the given mode. Codes whose rules fail validation are
// skipped: they were vetted when applied, and a stale code must not blank
// out the whole calculation.
func (e *Engine) Discount(codes []string, lines []Line, mode recurring.Mode, trialOnly bool) int64 {
	if e == nil || len(codes) == 0 || len(lines) == 0 {
		return 0
	}
	var passTotal int64
	for _, l := range lines {
		passTotal += l.ModePriced
	}
	now := e.now()
	var discount int64
	for _, code := range codes {
		rule, ok := e.Rules[code]
		if !ok {
			continue
		}
		if !rule.AppliesTo(mode, trialOnly) {
			continue
		}
		if err := rule.Validate(now, passTotal); err != nil {
			continue
		}
		discount += Compute(rule.eligible(lines), rule)
	}
	if discount > passTotal {
		discount = passTotal
	}
	if discount < 0 {
		return 0
	}
	return discount
}
