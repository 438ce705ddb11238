package renewal

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/recurring-cart/internal/cart"
	"github.com/noah-isme/recurring-cart/internal/pricing"
	"github.com/noah-isme/recurring-cart/internal/recurring"
	"github.com/noah-isme/recurring-cart/internal/repo"
	"github.com/noah-isme/recurring-cart/internal/subscription"
)

var testNow = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

type stubCalc struct{}

func (stubCalc) Calculate(_ context.Context, cc *recurring.Context, c *cart.Cart) (cart.Totals, error) {
	var t cart.Totals
	for _, it := range c.Items {
		t.ItemsSubtotal += pricing.LineFor(it, cc.Mode())
	}
	t.Fees = c.FeeTotal()
	t.GrandTotal = t.ItemsSubtotal + t.Fees
	return t, nil
}

type fakeCarts struct {
	cart *cart.Cart
	err  error
}

func (f *fakeCarts) CreateCart(context.Context, string) (uuid.UUID, error) { return uuid.Nil, nil }
func (f *fakeCarts) GetCart(context.Context, uuid.UUID) (*cart.Cart, error) {
	return f.cart, f.err
}
func (f *fakeCarts) AddItem(context.Context, uuid.UUID, repo.Product, int) (uuid.UUID, error) {
	return uuid.Nil, nil
}
func (f *fakeCarts) SetCoupons(context.Context, uuid.UUID, []string) error { return nil }
func (f *fakeCarts) SaveTotals(context.Context, uuid.UUID, cart.Totals) error {
	return nil
}

type fakeRenewals struct {
	inserted []repo.RenewalOrder
}

func (f *fakeRenewals) InsertRenewal(_ context.Context, o repo.RenewalOrder) (uuid.UUID, error) {
	f.inserted = append(f.inserted, o)
	return uuid.New(), nil
}
func (f *fakeRenewals) GetRenewal(context.Context, uuid.UUID) (repo.RenewalOrder, error) {
	return repo.RenewalOrder{}, nil
}
func (f *fakeRenewals) ListRenewalsByCart(context.Context, uuid.UUID) ([]repo.RenewalOrder, error) {
	return nil, nil
}
func (f *fakeRenewals) MarkRenewal(context.Context, uuid.UUID, string) error { return nil }

type fakeScheduler struct {
	scheduled []DuePayload
}

func (f *fakeScheduler) ScheduleDue(_ context.Context, p DuePayload) error {
	f.scheduled = append(f.scheduled, p)
	return nil
}

func monthlyCart(id uuid.UUID) *cart.Cart {
	return &cart.Cart{
		ID:       id,
		Currency: "USD",
		Items: []cart.Item{{
			ID: uuid.New(), ProductID: uuid.New(), Title: "Coffee Club",
			Qty: 1, UnitPrice: 2000,
			Schedule: &subscription.Schedule{Interval: 1, Period: subscription.PeriodMonth},
		}},
	}
}

func newWorker(carts *fakeCarts, renewals *fakeRenewals, sched *fakeScheduler) *Worker {
	return &Worker{
		Carts:    carts,
		Renewals: renewals,
		Engine: &recurring.Aggregator{
			Calc: stubCalc{},
			Now:  func() time.Time { return testNow },
		},
		Scheduler: sched,
		Logger:    zerolog.Nop(),
		Now:       func() time.Time { return testNow },
	}
}

func dueTask(t *testing.T, p DuePayload) *asynq.Task {
	t.Helper()
	task, _, err := NewDueTask(p)
	require.NoError(t, err)
	return task
}

func TestHandleDueRecordsOrderAndReschedules(t *testing.T) {
	t.Parallel()

	cartID := uuid.New()
	carts := &fakeCarts{cart: monthlyCart(cartID)}
	renewals := &fakeRenewals{}
	sched := &fakeScheduler{}
	w := newWorker(carts, renewals, sched)

	p := DuePayload{CartID: cartID, CohortKey: "every_1_month", DueAt: testNow}
	require.NoError(t, w.HandleDue(context.Background(), dueTask(t, p)))

	require.Len(t, renewals.inserted, 1)
	order := renewals.inserted[0]
	require.Equal(t, "every_1_month", order.CohortKey)
	require.Equal(t, repo.RenewalStatusCharged, order.Status)
	require.EqualValues(t, 2000, order.Totals.GrandTotal)

	require.Len(t, sched.scheduled, 1)
	require.Equal(t, "every_1_month", sched.scheduled[0].CohortKey)
	require.True(t, sched.scheduled[0].DueAt.After(testNow))
}

func TestHandleDueDropsVanishedCohort(t *testing.T) {
	t.Parallel()

	cartID := uuid.New()
	carts := &fakeCarts{cart: monthlyCart(cartID)}
	renewals := &fakeRenewals{}
	sched := &fakeScheduler{}
	w := newWorker(carts, renewals, sched)

	p := DuePayload{CartID: cartID, CohortKey: "every_2_week", DueAt: testNow}
	require.NoError(t, w.HandleDue(context.Background(), dueTask(t, p)))

	require.Empty(t, renewals.inserted)
	require.Empty(t, sched.scheduled)
}

func TestHandleDueBadPayloadSkipsRetry(t *testing.T) {
	t.Parallel()

	w := newWorker(&fakeCarts{}, &fakeRenewals{}, &fakeScheduler{})
	err := w.HandleDue(context.Background(), asynq.NewTask(TypeDue, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestDueTaskIDDeterministic(t *testing.T) {
	t.Parallel()

	p := DuePayload{CartID: uuid.New(), CohortKey: "every_1_month", DueAt: testNow}
	_, opts1, err := NewDueTask(p)
	require.NoError(t, err)
	_, opts2, err := NewDueTask(p)
	require.NoError(t, err)
	require.Equal(t, opts1, opts2)
}
