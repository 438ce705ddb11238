package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/recurring-cart/internal/subscription"
)

// ErrStoreUnavailable indicates a store dependency is not configured.
var ErrStoreUnavailable = errors.New("repo: store unavailable")

// Product is a catalog row, including its subscription terms when the
// product bills on a schedule.
type Product struct {
	ID              uuid.UUID
	Title           string
	Price           int64
	SignUpFee       int64
	NeedsShipping   bool
	OneTimeShipping bool
	SubInterval     int
	SubPeriod       string
	SubLength       int
	TrialLength     int
	TrialPeriod     string
	SyncDay         int
}

// IsSubscription reports whether the product carries a billing schedule.
func (p Product) IsSubscription() bool {
	return p.SubInterval > 0 && p.SubPeriod != ""
}

// Schedule converts the row's subscription columns into a billing schedule,
// or nil for one-time products.
func (p Product) Schedule() *subscription.Schedule {
	if !p.IsSubscription() {
		return nil
	}
	return &subscription.Schedule{
		Interval:    p.SubInterval,
		Period:      subscription.Period(p.SubPeriod),
		Length:      p.SubLength,
		TrialLength: p.TrialLength,
		TrialPeriod: subscription.Period(p.TrialPeriod),
		SyncDay:     p.SyncDay,
	}
}

// ProductStore provides catalog accessors for the totals API.
type ProductStore interface {
	GetProduct(ctx context.Context, id uuid.UUID) (Product, error)
	ListProducts(ctx context.Context, limit, offset int) ([]Product, error)
}

// NewProductStore constructs a ProductStore backed by a pgx connection pool.
func NewProductStore(pool *pgxpool.Pool) ProductStore {
	return &pgProducts{pool: pool}
}

type pgProducts struct {
	pool *pgxpool.Pool
}

const productColumns = `id, title, price, sign_up_fee, needs_shipping, one_time_shipping,
sub_interval, sub_period, sub_length, trial_length, trial_period, sync_day`

func scanProduct(row interface{ Scan(...any) error }) (Product, error) {
	var p Product
	var period, trialPeriod sql.NullString
	err := row.Scan(&p.ID, &p.Title, &p.Price, &p.SignUpFee, &p.NeedsShipping, &p.OneTimeShipping,
		&p.SubInterval, &period, &p.SubLength, &p.TrialLength, &trialPeriod, &p.SyncDay)
	if err != nil {
		return Product{}, err
	}
	p.SubPeriod = period.String
	p.TrialPeriod = trialPeriod.String
	return p, nil
}

// GetProduct fetches one product by ID.
func (s *pgProducts) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	if s == nil || s.pool == nil {
		return Product{}, ErrStoreUnavailable
	}
	row := s.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	return scanProduct(row)
}

// ListProducts fetches products with pagination, newest first.
func (s *pgProducts) ListProducts(ctx context.Context, limit, offset int) ([]Product, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	limit = clampRange(limit, 1, 200)
	if offset < 0 {
		offset = 0
	}
	rows, err := s.pool.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]Product, 0, limit)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func clampRange(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
