package recurring

import (
	"github.com/noah-isme/recurring-cart/internal/cart"
)

// Context carries all mutable state of one calculation cycle: the active
// mode, the LIFO stack of cohort keys being computed, and the per-cycle
// caches of cohort results. It is created fresh (or Reset) for every
// independent "calculate totals" request and is never shared across
// requests, so it needs no locking.
type Context struct {
	mode  Mode
	stack []string

	recurringCarts map[string]*cart.Cart
	cartOrder      []string

	shippingPackages map[string][]ShippingPackage
	packageOrder     []string
}

// NewContext returns a cycle context in its neutral state.
func NewContext() *Context {
	c := &Context{}
	c.Reset()
	return c
}

// Reset returns the context to {mode: none, stack: empty} and clears the
// per-cycle caches. Stale state from an aborted cycle would otherwise
// permanently disable recurring calculation for the next one.
func (c *Context) Reset() {
	c.mode = ModeNone
	c.stack = c.stack[:0]
	c.recurringCarts = make(map[string]*cart.Cart)
	c.cartOrder = nil
	c.shippingPackages = make(map[string][]ShippingPackage)
	c.packageOrder = nil
}

// SetMode activates mode and returns the mode that was active, so callers
// doing a scoped pass can restore it manually.
func (c *Context) SetMode(m Mode) Mode {
	prev := c.mode
	if !m.Valid() {
		m = ModeNone
	}
	c.mode = m
	return prev
}

// Mode returns the active calculation mode.
func (c *Context) Mode() Mode { return c.mode }

// PushCohort records that a cohort pass has begun. Pushing any key other
// than "none" switches the mode to recurring_total.
func (c *Context) PushCohort(key string) {
	c.stack = append([]string{key}, c.stack...)
	if key != noCohort && key != "" {
		c.mode = ModeRecurringTotal
	} else {
		c.mode = ModeNone
	}
}

// PopCohort removes and returns the most recently pushed cohort key, then
// restores the mode implied by the new top of stack.
func (c *Context) PopCohort() string {
	if len(c.stack) == 0 {
		c.mode = ModeNone
		return noCohort
	}
	key := c.stack[0]
	c.stack = c.stack[1:]
	if top := c.CohortKey(); top != noCohort {
		c.mode = ModeRecurringTotal
	} else {
		c.mode = ModeNone
	}
	return key
}

// CohortKey returns the cohort currently being computed, or "none".
func (c *Context) CohortKey() string {
	if len(c.stack) == 0 {
		return noCohort
	}
	return c.stack[0]
}

// IsReentrant reports whether a cohort pass is already in progress. The
// total aggregator checks this before doing anything else: a calculation
// triggered from inside a cohort pass is a side effect of that pass and
// must short-circuit instead of recursing.
func (c *Context) IsReentrant() bool {
	for _, key := range c.stack {
		if key != noCohort && key != "" {
			return true
		}
	}
	return false
}

// StoreRecurringCart records a cohort's computed cart, preserving first
// insertion order.
func (c *Context) StoreRecurringCart(key string, rc *cart.Cart) {
	if _, seen := c.recurringCarts[key]; !seen {
		c.cartOrder = append(c.cartOrder, key)
	}
	c.recurringCarts[key] = rc
}

// RecurringCarts returns the cohort results of the current cycle keyed by
// grouping key. The returned map is the live cache; callers treat it as
// read-only.
func (c *Context) RecurringCarts() map[string]*cart.Cart { return c.recurringCarts }

// RecurringCartOrder returns the grouping keys in the order their cohorts
// were first stored.
func (c *Context) RecurringCartOrder() []string { return c.cartOrder }

// StoreShippingPackages caches the synthesized packages for a cohort so
// repeated consultation within the cycle does not re-derive them.
func (c *Context) StoreShippingPackages(key string, pkgs []ShippingPackage) {
	if _, seen := c.shippingPackages[key]; !seen {
		c.packageOrder = append(c.packageOrder, key)
	}
	c.shippingPackages[key] = pkgs
}

// ShippingPackagesFor returns the cached packages for a cohort. The second
// return reports whether the cohort has an entry.
func (c *Context) ShippingPackagesFor(key string) ([]ShippingPackage, bool) {
	pkgs, ok := c.shippingPackages[key]
	return pkgs, ok
}

// ShippingPackages returns the full per-cohort package cache.
func (c *Context) ShippingPackages() map[string][]ShippingPackage { return c.shippingPackages }
