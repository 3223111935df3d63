package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/orderhub-dev/backend-kiosk/internal/pricing"
)

// ErrTimedOut is returned when the shopper never completed the charge within
// the polling window. The intent is canceled on the terminal before return.
var ErrTimedOut = errors.New("payment: terminal charge timed out")

// ErrDeclined is returned when the terminal reports a failed charge.
var ErrDeclined = errors.New("payment: charge declined")

// Collector drives a card-present charge to completion: create the intent,
// poll the terminal at a fixed interval, and cancel the intent if the window
// closes without a final status.
type Collector struct {
	Terminal     Terminal
	PollInterval time.Duration
	PollAttempts int
	Sleep        func(ctx context.Context, d time.Duration) error
}

func (c *Collector) interval() time.Duration {
	if c.PollInterval <= 0 {
		return time.Second
	}
	return c.PollInterval
}

func (c *Collector) attempts() int {
	if c.PollAttempts <= 0 {
		return 120
	}
	return c.PollAttempts
}

func (c *Collector) sleep(ctx context.Context, d time.Duration) error {
	if c.Sleep != nil {
		return c.Sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Collect charges the amount on the terminal and blocks until the charge
// reaches a final status or the polling window closes.
func (c *Collector) Collect(ctx context.Context, amount pricing.Money, metadata map[string]string) (Intent, error) {
	if c == nil || c.Terminal == nil {
		return Intent{}, errors.New("payment collector not configured")
	}
	if amount <= 0 {
		return Intent{}, fmt.Errorf("payment: invalid amount %d", amount)
	}
	intent, err := c.Terminal.CreateIntent(ctx, amount, metadata)
	if err != nil {
		return Intent{}, fmt.Errorf("create intent: %w", err)
	}
	for i := 0; i < c.attempts(); i++ {
		if err := c.sleep(ctx, c.interval()); err != nil {
			c.cancel(intent.ID)
			return intent, err
		}
		current, err := c.Terminal.IntentStatus(ctx, intent.ID)
		if err != nil {
			// Transient read failures keep polling; the window bounds the retry.
			continue
		}
		intent = current
		switch intent.Status {
		case StatusSucceeded:
			return intent, nil
		case StatusFailed:
			return intent, ErrDeclined
		case StatusCanceled:
			return intent, ErrTimedOut
		}
	}
	c.cancel(intent.ID)
	intent.Status = StatusCanceled
	return intent, ErrTimedOut
}

// cancel releases the terminal so the next shopper is not presented with a
// stale charge. Best effort with a fresh deadline since the request context
// may already be done.
func (c *Collector) cancel(intentID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = c.Terminal.CancelIntent(ctx, intentID)
}
