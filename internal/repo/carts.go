package repo

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/google/uuid"

	"github.com/noah-isme/recurring-cart/internal/cart"
	"github.com/noah-isme/recurring-cart/internal/subscription"
)

// CartStore persists carts and their line items.
type CartStore interface {
	CreateCart(ctx context.Context, currency string) (uuid.UUID, error)
	GetCart(ctx context.Context, id uuid.UUID) (*cart.Cart, error)
	AddItem(ctx context.Context, cartID uuid.UUID, product Product, qty int) (uuid.UUID, error)
	SetCoupons(ctx context.Context, cartID uuid.UUID, codes []string) error
	SaveTotals(ctx context.Context, cartID uuid.UUID, totals cart.Totals) error
}

// NewCartStore constructs a CartStore backed by a pgx connection pool.
func NewCartStore(pool *pgxpool.Pool) CartStore {
	return &pgCarts{pool: pool}
}

type pgCarts struct {
	pool *pgxpool.Pool
}

// CreateCart inserts an empty cart and returns its identifier.
func (s *pgCarts) CreateCart(ctx context.Context, currency string) (uuid.UUID, error) {
	if s == nil || s.pool == nil {
		return uuid.Nil, ErrStoreUnavailable
	}
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `INSERT INTO carts (currency) VALUES ($1) RETURNING id`, currency).Scan(&id)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// GetCart loads a cart with its items and coupon codes.
func (s *pgCarts) GetCart(ctx context.Context, id uuid.UUID) (*cart.Cart, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	c := &cart.Cart{ID: id}
	var coupons []string
	err := s.pool.QueryRow(ctx, `SELECT currency, coupon_codes,
items_subtotal, discount_total, tax_total, shipping_total, shipping_tax_total, fee_total, grand_total
FROM carts WHERE id = $1`, id).Scan(&c.Currency, &coupons,
		&c.Totals.ItemsSubtotal, &c.Totals.Discount, &c.Totals.Tax,
		&c.Totals.Shipping, &c.Totals.ShippingTax, &c.Totals.Fees, &c.Totals.GrandTotal)
	if err != nil {
		return nil, err
	}
	c.CouponCodes = coupons

	rows, err := s.pool.Query(ctx, `SELECT id, product_id, title, qty, unit_price, sign_up_fee,
needs_shipping, one_time_shipping, sub_interval, sub_period, sub_length, trial_length, trial_period, sync_day
FROM cart_items WHERE cart_id = $1 ORDER BY created_at, id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var it cart.Item
		var interval, length, trialLen, syncDay int
		var period, trialPeriod sql.NullString
		if err := rows.Scan(&it.ID, &it.ProductID, &it.Title, &it.Qty, &it.UnitPrice, &it.SignUpFee,
			&it.NeedsShipping, &it.OneTimeShipping, &interval, &period, &length, &trialLen, &trialPeriod, &syncDay); err != nil {
			return nil, err
		}
		if interval > 0 && period.Valid && period.String != "" {
			it.Schedule = &subscription.Schedule{
				Interval:    interval,
				Period:      subscription.Period(period.String),
				Length:      length,
				TrialLength: trialLen,
				TrialPeriod: subscription.Period(trialPeriod.String),
				SyncDay:     syncDay,
			}
		}
		c.Items = append(c.Items, it)
	}
	return c, rows.Err()
}

// AddItem snapshots a product into the cart as a line item.
func (s *pgCarts) AddItem(ctx context.Context, cartID uuid.UUID, product Product, qty int) (uuid.UUID, error) {
	if s == nil || s.pool == nil {
		return uuid.Nil, ErrStoreUnavailable
	}
	var period, trialPeriod any
	if product.SubPeriod != "" {
		period = product.SubPeriod
	}
	if product.TrialPeriod != "" {
		trialPeriod = product.TrialPeriod
	}
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `INSERT INTO cart_items
(cart_id, product_id, title, qty, unit_price, sign_up_fee, needs_shipping, one_time_shipping,
 sub_interval, sub_period, sub_length, trial_length, trial_period, sync_day)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14) RETURNING id`,
		cartID, product.ID, product.Title, qty, product.Price, product.SignUpFee,
		product.NeedsShipping, product.OneTimeShipping,
		product.SubInterval, period, product.SubLength, product.TrialLength, trialPeriod, product.SyncDay).Scan(&id)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// SetCoupons replaces the coupon codes applied to a cart.
func (s *pgCarts) SetCoupons(ctx context.Context, cartID uuid.UUID, codes []string) error {
	if s == nil || s.pool == nil {
		return ErrStoreUnavailable
	}
	tag, err := s.pool.Exec(ctx, `UPDATE carts SET coupon_codes = $2, updated_at = now() WHERE id = $1`, cartID, codes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// SaveTotals persists the outcome of a calculation cycle on the cart row.
func (s *pgCarts) SaveTotals(ctx context.Context, cartID uuid.UUID, totals cart.Totals) error {
	if s == nil || s.pool == nil {
		return ErrStoreUnavailable
	}
	tag, err := s.pool.Exec(ctx, `UPDATE carts SET
items_subtotal = $2, discount_total = $3, tax_total = $4, shipping_total = $5,
shipping_tax_total = $6, fee_total = $7, grand_total = $8, updated_at = now()
WHERE id = $1`, cartID,
		totals.ItemsSubtotal, totals.Discount, totals.Tax, totals.Shipping,
		totals.ShippingTax, totals.Fees, totals.GrandTotal)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
