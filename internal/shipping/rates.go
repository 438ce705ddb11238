package shipping

import (
	"context"
	"errors"

	"github.com/noah-isme/recurring-cart/internal/recurring"
)

// ErrNoRates is returned when a provider yields no candidate rate for a package.
var ErrNoRates = errors.New("no shipping rates available for package")

// Rate is one candidate shipping option for a package.
type Rate struct {
	Method string
	Label  string
	Cost   int64
}

// Provider models a rate calculator capable of pricing a shipping package.
// The calculation engine only reshapes packages; providers price them.
type Provider interface {
	Rates(ctx context.Context, pkg recurring.ShippingPackage) ([]Rate, error)
}

// FlatRate prices packages with a base charge plus a per-item charge.
type FlatRate struct {
	Method  string
	Base    int64
	PerItem int64
}

// Rates implements Provider.
func (f FlatRate) Rates(ctx context.Context, pkg recurring.ShippingPackage) ([]Rate, error) {
	items := 0
	for _, it := range pkg.Contents {
		items += it.Qty
	}
	method := f.Method
	if method == "" {
		method = "flat_rate"
	}
	return []Rate{{
		Method: method,
		Label:  "Flat rate",
		Cost:   f.Base + f.PerItem*int64(items),
	}}, nil
}

// FreeOver wraps another provider and zeroes the rate when the package
// contents cost reaches the threshold.
type FreeOver struct {
	Inner     Provider
	Threshold int64
}

// Rates implements Provider.
func (f FreeOver) Rates(ctx context.Context, pkg recurring.ShippingPackage) ([]Rate, error) {
	if f.Threshold > 0 && pkg.ContentsCost >= f.Threshold {
		return []Rate{{Method: "free_shipping", Label: "Free shipping", Cost: 0}}, nil
	}
	if f.Inner == nil {
		return nil, ErrNoRates
	}
	return f.Inner.Rates(ctx, pkg)
}

// Cheapest selects the lowest-cost candidate rate.
func Cheapest(rates []Rate) (Rate, error) {
	if len(rates) == 0 {
		return Rate{}, ErrNoRates
	}
	best := rates[0]
	for _, r := range rates[1:] {
		if r.Cost < best.Cost {
			best = r
		}
	}
	return best, nil
}
