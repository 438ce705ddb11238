package totals

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/recurring-cart/internal/cart"
	"github.com/noah-isme/recurring-cart/internal/common"
	"github.com/noah-isme/recurring-cart/internal/obs"
	"github.com/noah-isme/recurring-cart/internal/projection"
	"github.com/noah-isme/recurring-cart/internal/recurring"
	"github.com/noah-isme/recurring-cart/internal/repo"
)

// CycleScheduler enqueues renewal tasks for a finished calculation cycle.
type CycleScheduler interface {
	ScheduleCycle(ctx context.Context, master *cart.Cart) error
}

// Service orchestrates cart mutations and calculation cycles.
type Service struct {
	Products    repo.ProductStore
	Carts       repo.CartStore
	Renewals    repo.RenewalStore
	Engine      *recurring.Aggregator
	Projections *projection.Cache
	Scheduler   CycleScheduler
	Currency    string
	Logger      zerolog.Logger
}

// Output is the response body for a full totals calculation.
type Output struct {
	CartID         uuid.UUID                  `json:"cartId"`
	Currency       string                     `json:"currency"`
	Totals         cart.Totals                `json:"totals"`
	SignUpFeeTotal cart.Money                 `json:"signUpFeeTotal"`
	CombinedTotal  cart.Money                 `json:"combinedTotal"`
	FreeTrialTotal cart.Money                 `json:"freeTrialTotal"`
	RecurringCarts []projection.RecurringCart `json:"recurringCarts"`
}

// CreateCart opens an empty cart in the configured currency.
func (s *Service) CreateCart(ctx context.Context, currency string) (uuid.UUID, error) {
	if currency == "" {
		currency = s.Currency
	}
	return s.Carts.CreateCart(ctx, currency)
}

// AddItem snapshots a catalog product into the cart.
func (s *Service) AddItem(ctx context.Context, cartID, productID uuid.UUID, qty int) (uuid.UUID, error) {
	product, err := s.Products.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, common.NotFound("product not found", err)
		}
		return uuid.Nil, err
	}
	itemID, err := s.Carts.AddItem(ctx, cartID, product, qty)
	if err != nil {
		return uuid.Nil, err
	}
	if err := s.Projections.Invalidate(ctx, cartID); err != nil {
		s.Logger.Warn().Err(err).Str("cart_id", cartID.String()).Msg("projection invalidate failed")
	}
	return itemID, nil
}

// SetCoupons replaces the coupon codes on a cart.
func (s *Service) SetCoupons(ctx context.Context, cartID uuid.UUID, codes []string) error {
	if err := s.Carts.SetCoupons(ctx, cartID, codes); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return common.NotFound("cart not found", err)
		}
		return err
	}
	if err := s.Projections.Invalidate(ctx, cartID); err != nil {
		s.Logger.Warn().Err(err).Str("cart_id", cartID.String()).Msg("projection invalidate failed")
	}
	return nil
}

// Calculate runs one full calculation cycle for the cart: baseline pass,
// cohort passes, scoped subscription totals, then persists the outcome,
// refreshes the projection cache and schedules renewals. A cohort that fails
// mid-cycle is logged and skipped; the remaining cohorts still price.
func (s *Service) Calculate(ctx context.Context, cartID uuid.UUID) (*Output, error) {
	master, err := s.Carts.GetCart(ctx, cartID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NotFound("cart not found", err)
		}
		return nil, err
	}

	cc := recurring.NewContext()
	start := time.Now()
	_, err = s.Engine.Run(ctx, cc, master)
	result := "ok"
	if err != nil {
		// A nil RecurringCarts map means the baseline pass itself failed
		// and no totals exist to report.
		if master.RecurringCarts == nil {
			observeCycle("error", start)
			return nil, err
		}
		result = "partial"
		s.Logger.Warn().Err(err).Str("cart_id", cartID.String()).Msg("cohort passes incomplete")
	}
	observeCycle(result, start)

	signUp, err := s.Engine.SignUpFeeTotal(ctx, cc, master)
	if err != nil {
		return nil, err
	}
	combined, err := s.Engine.CombinedTotal(ctx, cc, master)
	if err != nil {
		return nil, err
	}
	freeTrial, err := s.Engine.FreeTrialTotal(ctx, cc, master)
	if err != nil {
		return nil, err
	}

	if err := s.Carts.SaveTotals(ctx, cartID, master.Totals); err != nil {
		return nil, err
	}

	views := projection.FromCycle(master, cc)
	if err := s.Projections.Store(ctx, cartID, views); err != nil {
		s.Logger.Warn().Err(err).Str("cart_id", cartID.String()).Msg("projection store failed")
	}
	if s.Scheduler != nil {
		if err := s.Scheduler.ScheduleCycle(ctx, master); err != nil {
			s.Logger.Warn().Err(err).Str("cart_id", cartID.String()).Msg("renewal scheduling failed")
		}
	}

	return &Output{
		CartID:         cartID,
		Currency:       master.Currency,
		Totals:         master.Totals,
		SignUpFeeTotal: signUp,
		CombinedTotal:  combined,
		FreeTrialTotal: freeTrial,
		RecurringCarts: views,
	}, nil
}

// Recurring returns the cached recurring-cart projections for a cart,
// recomputing them when the cache has no entry.
func (s *Service) Recurring(ctx context.Context, cartID uuid.UUID) ([]projection.RecurringCart, error) {
	views, hit, err := s.Projections.Get(ctx, cartID)
	if err != nil {
		s.Logger.Warn().Err(err).Str("cart_id", cartID.String()).Msg("projection read failed")
	}
	if hit {
		observeProjection("hit")
		return views, nil
	}
	observeProjection("miss")

	out, err := s.Calculate(ctx, cartID)
	if err != nil {
		return nil, err
	}
	return out.RecurringCarts, nil
}

// RenewalOrders lists the renewal orders recorded for a cart.
func (s *Service) RenewalOrders(ctx context.Context, cartID uuid.UUID) ([]repo.RenewalOrder, error) {
	return s.Renewals.ListRenewalsByCart(ctx, cartID)
}

// ListProducts lists catalog products for storefront display.
func (s *Service) ListProducts(ctx context.Context, limit, offset int) ([]repo.Product, error) {
	return s.Products.ListProducts(ctx, limit, offset)
}

func observeCycle(result string, start time.Time) {
	if obs.CalcCycleTotal != nil {
		obs.CalcCycleTotal.WithLabelValues(result).Inc()
	}
	if obs.CalcCycleLatency != nil {
		obs.CalcCycleLatency.WithLabelValues(result).Observe(obs.DurationMillis(time.Since(start)))
	}
}

func observeProjection(result string) {
	if obs.ProjectionCacheTotal != nil {
		obs.ProjectionCacheTotal.WithLabelValues(result).Inc()
	}
}
