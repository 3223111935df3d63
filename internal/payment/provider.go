package payment

import (
	"context"

	"github.com/orderhub-dev/backend-kiosk/internal/pricing"
)

// Status is the lifecycle state of a terminal payment intent.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// Final reports whether the status is a final outcome.
func (s Status) Final() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCanceled
}

// Intent is a charge in progress on a card-present terminal.
type Intent struct {
	ID     string
	Amount pricing.Money
	Status Status
}

// Terminal abstracts the card reader integration. Implementations create a
// charge on the physical device and expose its status for polling.
type Terminal interface {
	CreateIntent(ctx context.Context, amount pricing.Money, metadata map[string]string) (Intent, error)
	IntentStatus(ctx context.Context, id string) (Intent, error)
	CancelIntent(ctx context.Context, id string) error
}
