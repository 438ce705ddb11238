package renewal

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// TypeDue is the task type for a renewal that has come due.
const TypeDue = "renewal:due"

// DuePayload identifies which cohort of which cart is due for renewal.
type DuePayload struct {
	CartID    uuid.UUID `json:"cartId"`
	CohortKey string    `json:"cohortKey"`
	DueAt     time.Time `json:"dueAt"`
}

// NewDueTask builds the asynq task for a due renewal. The task ID is derived
// from the payload so a rescheduled cycle cannot double-enqueue the same
// renewal.
func NewDueTask(p DuePayload) (*asynq.Task, []asynq.Option, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, nil, err
	}
	opts := []asynq.Option{
		asynq.TaskID(fmt.Sprintf("%s:%s:%s:%d", TypeDue, p.CartID, p.CohortKey, p.DueAt.Unix())),
		asynq.ProcessAt(p.DueAt),
		asynq.MaxRetry(5),
	}
	return asynq.NewTask(TypeDue, data), opts, nil
}

func decodeDue(t *asynq.Task) (DuePayload, error) {
	var p DuePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return DuePayload{}, fmt.Errorf("renewal: decode %s payload: %w", t.Type(), err)
	}
	return p, nil
}
