package renewal

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/recurring-cart/internal/cart"
)

// DueScheduler enqueues a due-renewal task for later processing.
type DueScheduler interface {
	ScheduleDue(ctx context.Context, p DuePayload) error
}

// Scheduler enqueues renewal tasks on the asynq queue.
type Scheduler struct {
	Client *asynq.Client
	Logger *zerolog.Logger
}

// ScheduleDue enqueues one due-renewal task, processed at its due time.
// Enqueuing the same cohort and due time twice is a no-op.
func (s *Scheduler) ScheduleDue(ctx context.Context, p DuePayload) error {
	task, opts, err := NewDueTask(p)
	if err != nil {
		return err
	}
	_, err = s.Client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

// ScheduleCycle enqueues one due-renewal task per cohort produced by a
// finished calculation cycle. Cohorts without a next payment date are
// skipped.
func (s *Scheduler) ScheduleCycle(ctx context.Context, master *cart.Cart) error {
	var errs []error
	for _, key := range master.RecurringOrder {
		rc, ok := master.RecurringCarts[key]
		if !ok || rc.NextPayment.IsZero() {
			continue
		}
		p := DuePayload{CartID: master.ID, CohortKey: key, DueAt: rc.NextPayment}
		if err := s.ScheduleDue(ctx, p); err != nil {
			errs = append(errs, err)
			continue
		}
		if s.Logger != nil {
			s.Logger.Info().
				Str("cart_id", master.ID.String()).
				Str("cohort", key).
				Time("due_at", rc.NextPayment).
				Msg("renewal scheduled")
		}
	}
	return errors.Join(errs...)
}
