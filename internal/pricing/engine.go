package pricing

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/recurring-cart/internal/cart"
	"github.com/noah-isme/recurring-cart/internal/recurring"
	"github.com/noah-isme/recurring-cart/internal/shipping"
	"github.com/noah-isme/recurring-cart/internal/voucher"
)

// PriceFor resolves the per-unit price of an item under the active
// calculation mode. Non-subscription items cost nothing during recurring,
// sign-up-fee and free-trial passes: those views contain only the
// subscription-specific components.
func PriceFor(it cart.Item, mode recurring.Mode) cart.Money {
	if !it.IsSubscription() {
		switch mode {
		case recurring.ModeRecurringTotal, recurring.ModeSignUpFeeTotal, recurring.ModeFreeTrialTotal:
			return 0
		}
		return it.UnitPrice
	}
	switch mode {
	case recurring.ModeRecurringTotal:
		return it.UnitPrice
	case recurring.ModeSignUpFeeTotal:
		return it.SignUpFee
	case recurring.ModeCombinedTotal:
		return it.SignUpFee + it.UnitPrice
	case recurring.ModeFreeTrialTotal:
		if it.HasFreeTrial() {
			return 0
		}
		return it.UnitPrice
	default:
		// Initial pass: a free trial defers the recurring amount, leaving
		// only the sign-up fee to charge now.
		if it.HasFreeTrial() {
			return it.SignUpFee
		}
		return it.SignUpFee + it.UnitPrice
	}
}

// LineFor is PriceFor times quantity.
func LineFor(it cart.Item, mode recurring.Mode) cart.Money {
	return cart.Money(it.Qty) * PriceFor(it, mode)
}

// TaxEngine produces tax totals for one pass; consumed as opaque amounts.
type TaxEngine interface {
	Tax(taxable cart.Money) cart.Money
	ShippingTax(shippingCost cart.Money) cart.Money
}

// BpsTax applies a single basis-point rate to both items and shipping.
type BpsTax struct {
	Bps int32
}

func (t BpsTax) rate(amount cart.Money) cart.Money {
	if amount <= 0 || t.Bps <= 0 {
		return 0
	}
	return decimal.NewFromInt(amount).
		Mul(decimal.NewFromInt32(t.Bps)).
		Div(decimal.NewFromInt(10000)).
		Round(0).IntPart()
}

// Tax implements TaxEngine.
func (t BpsTax) Tax(taxable cart.Money) cart.Money { return t.rate(taxable) }

// ShippingTax implements TaxEngine.
func (t BpsTax) ShippingTax(shippingCost cart.Money) cart.Money { return t.rate(shippingCost) }

// Calculator is the default cart total calculator. It resolves prices,
// discounts and shipping according to the cycle Context's active mode, which
// is how a single calculator serves the initial pass and every cohort pass.
type Calculator struct {
	Vouchers *voucher.Engine
	Rates    shipping.Provider
	Tax      TaxEngine
	Packager recurring.Packager
}

func (c *Calculator) packager() recurring.Packager {
	if c.Packager != nil {
		return c.Packager
	}
	return recurring.DefaultPackager{}
}

// Calculate implements recurring.TotalCalculator.
func (c *Calculator) Calculate(ctx context.Context, cc *recurring.Context, k *cart.Cart) (cart.Totals, error) {
	mode := cc.Mode()

	var itemsSubtotal cart.Money
	lines := make([]voucher.Line, 0, len(k.Items))
	for _, it := range k.Items {
		priced := LineFor(it, mode)
		itemsSubtotal += priced
		line := voucher.Line{ModePriced: priced}
		if it.IsSubscription() {
			line.Recurring = it.LineSubtotal()
			line.SignUpFee = it.LineSignUpFee()
		}
		lines = append(lines, line)
	}

	discount := c.Vouchers.Discount(k.CouponCodes, lines, mode, k.AllSubscriptionsOnTrial())

	shippingCost, err := c.shippingFor(ctx, cc, k, mode)
	if err != nil {
		return cart.Totals{}, fmt.Errorf("shipping: %w", err)
	}

	var fees, taxableFees cart.Money
	for _, f := range k.Fees {
		fees += f.Amount
		if f.Taxable {
			taxableFees += f.Amount
		}
	}

	taxable := itemsSubtotal - discount + taxableFees
	if taxable < 0 {
		taxable = 0
	}
	var tax, shippingTax cart.Money
	if c.Tax != nil {
		tax = c.Tax.Tax(taxable)
		shippingTax = c.Tax.ShippingTax(shippingCost)
	}

	total := itemsSubtotal - discount + tax + shippingCost + shippingTax + fees
	if total < 0 {
		total = 0
	}
	return cart.Totals{
		ItemsSubtotal: itemsSubtotal,
		Discount:      discount,
		Tax:           tax,
		Shipping:      shippingCost,
		ShippingTax:   shippingTax,
		Fees:          fees,
		GrandTotal:    total,
	}, nil
}

// shippingFor prices the packages relevant to this pass. Sign-up fee and
// free-trial views never include shipping. Cohort passes consume the
// packages the aggregator synthesized and cached on the Context; the
// initial pass derives packages from the cart with trial items excluded.
func (c *Calculator) shippingFor(ctx context.Context, cc *recurring.Context, k *cart.Cart, mode recurring.Mode) (cart.Money, error) {
	if c.Rates == nil {
		return 0, nil
	}
	var pkgs []recurring.ShippingPackage
	switch mode {
	case recurring.ModeSignUpFeeTotal, recurring.ModeFreeTrialTotal:
		return 0, nil
	case recurring.ModeRecurringTotal:
		cached, ok := cc.ShippingPackagesFor(cc.CohortKey())
		if !ok {
			return 0, nil
		}
		pkgs = cached
	default:
		pkgs = recurring.SynthesizeInitial(c.packager().Packages(k))
	}

	var total cart.Money
	for _, pkg := range pkgs {
		rates, err := c.Rates.Rates(ctx, pkg)
		if err != nil {
			return 0, err
		}
		best, err := shipping.Cheapest(rates)
		if err != nil {
			return 0, err
		}
		total += best.Cost
	}
	return total, nil
}
