package renewal

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/recurring-cart/internal/lock"
	"github.com/noah-isme/recurring-cart/internal/obs"
	"github.com/noah-isme/recurring-cart/internal/recurring"
	"github.com/noah-isme/recurring-cart/internal/repo"
)

// Worker processes due renewals: it reruns the calculation cycle against the
// cart's current contents, records a renewal order for the due cohort, and
// schedules the cohort's next occurrence.
type Worker struct {
	Carts     repo.CartStore
	Renewals  repo.RenewalStore
	Engine    *recurring.Aggregator
	Scheduler DueScheduler
	Locker    *lock.Locker
	LockTTL   time.Duration
	Logger    zerolog.Logger
	Now       func() time.Time
}

func (w *Worker) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now().UTC()
}

// Register attaches the worker's handlers to the task mux.
func (w *Worker) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeDue, w.HandleDue)
}

// HandleDue charges one due cohort. A cohort that no longer exists on the
// cart (items removed since scheduling) completes the task without recording
// an order. Carts are processed under a per-cart lock so two due cohorts of
// the same cart never run their cycles concurrently.
func (w *Worker) HandleDue(ctx context.Context, t *asynq.Task) error {
	p, err := decodeDue(t)
	if err != nil {
		return fmt.Errorf("%w: %w", asynq.SkipRetry, err)
	}
	if w.Locker != nil {
		return w.Locker.WithLock(ctx, "renewal:cart:"+p.CartID.String(), w.LockTTL, func(ctx context.Context) error {
			return w.handleDue(ctx, p)
		})
	}
	return w.handleDue(ctx, p)
}

func (w *Worker) handleDue(ctx context.Context, p DuePayload) error {
	log := w.Logger.With().
		Str("cart_id", p.CartID.String()).
		Str("cohort", p.CohortKey).
		Logger()

	master, err := w.Carts.GetCart(ctx, p.CartID)
	if err != nil {
		observeRenewal("error")
		return fmt.Errorf("renewal: load cart %s: %w", p.CartID, err)
	}

	cc := recurring.NewContext()
	if _, err := w.Engine.Run(ctx, cc, master); err != nil {
		observeRenewal("error")
		return fmt.Errorf("renewal: calculation cycle: %w", err)
	}

	rc, ok := master.RecurringCarts[p.CohortKey]
	if !ok {
		observeRenewal("dropped")
		log.Info().Msg("cohort no longer present, renewal dropped")
		return nil
	}

	order := repo.RenewalOrder{
		CartID:    p.CartID,
		CohortKey: p.CohortKey,
		DueAt:     p.DueAt,
		Totals:    rc.Totals,
		Status:    repo.RenewalStatusCharged,
	}
	orderID, err := w.Renewals.InsertRenewal(ctx, order)
	if err != nil {
		observeRenewal("error")
		return fmt.Errorf("renewal: record order: %w", err)
	}
	observeRenewal("charged")
	log.Info().
		Str("order_id", orderID.String()).
		Int64("total", rc.Totals.GrandTotal).
		Msg("renewal charged")

	// The rerun computed the cohort's next payment from the current clock,
	// so rescheduling from the fresh cart keeps the cadence.
	if w.Scheduler != nil && !rc.NextPayment.IsZero() && rc.NextPayment.After(w.now()) {
		next := DuePayload{CartID: p.CartID, CohortKey: p.CohortKey, DueAt: rc.NextPayment}
		if err := w.Scheduler.ScheduleDue(ctx, next); err != nil {
			return fmt.Errorf("renewal: schedule next occurrence: %w", err)
		}
	}
	return nil
}

func observeRenewal(result string) {
	if obs.RenewalTaskTotal != nil {
		obs.RenewalTaskTotal.WithLabelValues(result).Inc()
	}
}
