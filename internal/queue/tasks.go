package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/orderhub-dev/backend-kiosk/internal/order"
)

// Task kinds processed by the worker binary.
const (
	KindPosSync     = "pos-sync"
	KindPrintTicket = "print-ticket"
)

// OrderTask is the payload for order fan-out tasks. The full order rides
// along so the worker never needs a read that could race a failing primary.
type OrderTask struct {
	TenantID string       `json:"tenantId"`
	Order    *order.Order `json:"order"`
}

// DecodeOrderTask unmarshals an order fan-out payload.
func DecodeOrderTask(payload []byte) (OrderTask, error) {
	var task OrderTask
	if err := json.Unmarshal(payload, &task); err != nil {
		return OrderTask{}, fmt.Errorf("decode order task: %w", err)
	}
	if task.Order == nil {
		return OrderTask{}, fmt.Errorf("decode order task: missing order")
	}
	return task, nil
}

// Scheduler enqueues the side effects of a paid order: mirroring it to the
// POS and printing the kitchen ticket. The order id keys deduplication, so a
// client retry never schedules double work.
type Scheduler struct {
	Enq Enqueuer
}

// OrderPaid schedules POS sync and ticket printing for the order.
func (s Scheduler) OrderPaid(ctx context.Context, o *order.Order) error {
	payload, err := json.Marshal(OrderTask{TenantID: o.TenantID, Order: o})
	if err != nil {
		return fmt.Errorf("marshal order task: %w", err)
	}
	for _, kind := range []string{KindPosSync, KindPrintTicket} {
		err := s.Enq.Enqueue(ctx, Task{
			Kind:           kind,
			Payload:        payload,
			IdempotencyKey: o.ID + ":" + kind,
			MaxAttempts:    10,
		})
		if err != nil {
			return fmt.Errorf("enqueue %s: %w", kind, err)
		}
	}
	return nil
}
