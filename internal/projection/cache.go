package projection

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/recurring-cart/internal/cart"
	"github.com/noah-isme/recurring-cart/internal/recurring"
)

// Line is one displayed recurring line item.
type Line struct {
	ProductID uuid.UUID `json:"productId"`
	Title     string    `json:"title"`
	Qty       int       `json:"qty"`
	UnitPrice int64     `json:"unitPrice"`
}

// Package summarises one synthesized shipping package for display.
type Package struct {
	Key          string `json:"key"`
	ItemCount    int    `json:"itemCount"`
	ContentsCost int64  `json:"contentsCost"`
}

// RecurringCart is the read-only storefront view of one cohort's renewal.
type RecurringCart struct {
	CohortKey   string      `json:"cohortKey"`
	Currency    string      `json:"currency"`
	NextPayment time.Time   `json:"nextPayment"`
	TrialEnd    time.Time   `json:"trialEnd,omitzero"`
	End         time.Time   `json:"end,omitzero"`
	Items       []Line      `json:"items"`
	Totals      cart.Totals `json:"totals"`
	Packages    []Package   `json:"packages,omitempty"`
}

// FromCycle projects the results of a finished calculation cycle, in stable
// cohort order.
func FromCycle(master *cart.Cart, cc *recurring.Context) []RecurringCart {
	out := make([]RecurringCart, 0, len(master.RecurringOrder))
	for _, key := range master.RecurringOrder {
		rc, ok := master.RecurringCarts[key]
		if !ok {
			continue
		}
		view := RecurringCart{
			CohortKey:   key,
			Currency:    rc.Currency,
			NextPayment: rc.NextPayment,
			TrialEnd:    rc.TrialEnd,
			End:         rc.End,
			Totals:      rc.Totals,
		}
		for _, it := range rc.Items {
			view.Items = append(view.Items, Line{
				ProductID: it.ProductID,
				Title:     it.Title,
				Qty:       it.Qty,
				UnitPrice: it.UnitPrice,
			})
		}
		if pkgs, ok := cc.ShippingPackagesFor(key); ok {
			for _, pkg := range pkgs {
				view.Packages = append(view.Packages, Package{
					Key:          pkg.Key,
					ItemCount:    len(pkg.Contents),
					ContentsCost: pkg.ContentsCost,
				})
			}
		}
		out = append(out, view)
	}
	return out
}

// Cache stores recurring-cart projections in Redis so storefront reads do
// not rerun the calculation cycle.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a projection cache.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func cacheKey(cartID uuid.UUID) string {
	return "recurring:carts:" + cartID.String()
}

// Store serialises the projections for a cart. A nil cache is a no-op.
func (c *Cache) Store(ctx context.Context, cartID uuid.UUID, views []RecurringCart) error {
	if c == nil || c.client == nil {
		return nil
	}
	data, err := json.Marshal(views)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKey(cartID), data, c.ttl).Err()
}

// Get loads the cached projections for a cart. It reports whether an entry
// existed.
func (c *Cache) Get(ctx context.Context, cartID uuid.UUID) ([]RecurringCart, bool, error) {
	if c == nil || c.client == nil {
		return nil, false, nil
	}
	data, err := c.client.Get(ctx, cacheKey(cartID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, err
	}
	var views []RecurringCart
	if err := json.Unmarshal(data, &views); err != nil {
		return nil, false, err
	}
	return views, true, nil
}

// Invalidate removes the cached projections for a cart, e.g. after the cart
// contents change.
func (c *Cache) Invalidate(ctx context.Context, cartID uuid.UUID) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, cacheKey(cartID)).Err()
}
