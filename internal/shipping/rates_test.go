package shipping

import (
	"context"
	"testing"

	"github.com/noah-isme/recurring-cart/internal/cart"
	"github.com/noah-isme/recurring-cart/internal/recurring"
)

func TestFlatRate(t *testing.T) {
	pkg := recurring.ShippingPackage{
		Contents: []cart.Item{{Qty: 2}, {Qty: 1}},
	}
	rates, err := FlatRate{Base: 500, PerItem: 100}.Rates(context.Background(), pkg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rates) != 1 || rates[0].Cost != 800 {
		t.Fatalf("expected one 800 rate, got %+v", rates)
	}
}

func TestFreeOverThreshold(t *testing.T) {
	provider := FreeOver{Inner: FlatRate{Base: 500}, Threshold: 10_000}

	cheap := recurring.ShippingPackage{ContentsCost: 5000, Contents: []cart.Item{{Qty: 1}}}
	rates, err := provider.Rates(context.Background(), cheap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rates[0].Cost != 500 {
		t.Fatalf("below threshold should fall through, got %+v", rates)
	}

	pricey := recurring.ShippingPackage{ContentsCost: 12_000}
	rates, err = provider.Rates(context.Background(), pricey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rates[0].Cost != 0 || rates[0].Method != "free_shipping" {
		t.Fatalf("above threshold should be free, got %+v", rates)
	}
}

func TestCheapest(t *testing.T) {
	best, err := Cheapest([]Rate{{Method: "a", Cost: 900}, {Method: "b", Cost: 300}, {Method: "c", Cost: 500}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if best.Method != "b" {
		t.Fatalf("expected cheapest rate b, got %+v", best)
	}
	if _, err := Cheapest(nil); err != ErrNoRates {
		t.Fatalf("expected ErrNoRates, got %v", err)
	}
}
