package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/recurring-cart/internal/cart"
)

// Renewal order lifecycle states.
const (
	RenewalStatusScheduled = "scheduled"
	RenewalStatusCharged   = "charged"
	RenewalStatusFailed    = "failed"
)

// RenewalOrder is one scheduled renewal for a billing cohort.
type RenewalOrder struct {
	ID        uuid.UUID
	CartID    uuid.UUID
	CohortKey string
	DueAt     time.Time
	Totals    cart.Totals
	Status    string
	CreatedAt time.Time
}

// RenewalStore persists scheduled renewal orders.
type RenewalStore interface {
	InsertRenewal(ctx context.Context, order RenewalOrder) (uuid.UUID, error)
	GetRenewal(ctx context.Context, id uuid.UUID) (RenewalOrder, error)
	ListRenewalsByCart(ctx context.Context, cartID uuid.UUID) ([]RenewalOrder, error)
	MarkRenewal(ctx context.Context, id uuid.UUID, status string) error
}

// NewRenewalStore constructs a RenewalStore backed by a pgx connection pool.
func NewRenewalStore(pool *pgxpool.Pool) RenewalStore {
	return &pgRenewals{pool: pool}
}

type pgRenewals struct {
	pool *pgxpool.Pool
}

const renewalColumns = `id, cart_id, cohort_key, due_at,
items_subtotal, discount_total, tax_total, shipping_total, shipping_tax_total, fee_total, grand_total,
status, created_at`

func scanRenewal(row interface{ Scan(...any) error }) (RenewalOrder, error) {
	var o RenewalOrder
	err := row.Scan(&o.ID, &o.CartID, &o.CohortKey, &o.DueAt,
		&o.Totals.ItemsSubtotal, &o.Totals.Discount, &o.Totals.Tax, &o.Totals.Shipping,
		&o.Totals.ShippingTax, &o.Totals.Fees, &o.Totals.GrandTotal,
		&o.Status, &o.CreatedAt)
	if err != nil {
		return RenewalOrder{}, err
	}
	return o, nil
}

// InsertRenewal persists a renewal order and returns its identifier.
func (s *pgRenewals) InsertRenewal(ctx context.Context, order RenewalOrder) (uuid.UUID, error) {
	if s == nil || s.pool == nil {
		return uuid.Nil, ErrStoreUnavailable
	}
	status := order.Status
	if status == "" {
		status = RenewalStatusScheduled
	}
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `INSERT INTO renewal_orders
(cart_id, cohort_key, due_at, items_subtotal, discount_total, tax_total, shipping_total, shipping_tax_total, fee_total, grand_total, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`,
		order.CartID, order.CohortKey, order.DueAt,
		order.Totals.ItemsSubtotal, order.Totals.Discount, order.Totals.Tax, order.Totals.Shipping,
		order.Totals.ShippingTax, order.Totals.Fees, order.Totals.GrandTotal, status).Scan(&id)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// GetRenewal fetches one renewal order by ID.
func (s *pgRenewals) GetRenewal(ctx context.Context, id uuid.UUID) (RenewalOrder, error) {
	if s == nil || s.pool == nil {
		return RenewalOrder{}, ErrStoreUnavailable
	}
	row := s.pool.QueryRow(ctx, `SELECT `+renewalColumns+` FROM renewal_orders WHERE id = $1`, id)
	return scanRenewal(row)
}

// ListRenewalsByCart fetches all renewal orders for a cart, soonest first.
func (s *pgRenewals) ListRenewalsByCart(ctx context.Context, cartID uuid.UUID) ([]RenewalOrder, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	rows, err := s.pool.Query(ctx, `SELECT `+renewalColumns+` FROM renewal_orders WHERE cart_id = $1 ORDER BY due_at, id`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []RenewalOrder
	for rows.Next() {
		o, err := scanRenewal(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// MarkRenewal transitions a renewal order to a new status.
func (s *pgRenewals) MarkRenewal(ctx context.Context, id uuid.UUID, status string) error {
	if s == nil || s.pool == nil {
		return ErrStoreUnavailable
	}
	tag, err := s.pool.Exec(ctx, `UPDATE renewal_orders SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
