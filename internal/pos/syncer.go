package pos

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/orderhub-dev/backend-kiosk/internal/lock"
	"github.com/orderhub-dev/backend-kiosk/internal/obs"
	"github.com/orderhub-dev/backend-kiosk/internal/queue"
)

// Syncer is the worker handler for register mirror tasks. A per-tenant lock
// keeps mirrors sequential; the register rejects interleaved order builds.
type Syncer struct {
	Client  *Client
	Locker  lock.Locker
	LockTTL time.Duration
	Log     zerolog.Logger
}

func (s *Syncer) lockTTL() time.Duration {
	if s.LockTTL <= 0 {
		return time.Minute
	}
	return s.LockTTL
}

// Handle processes one queued mirror task. Errors bubble up so the queue
// retries with backoff and eventually parks the task in the DLQ.
func (s *Syncer) Handle(ctx context.Context, task queue.Task) error {
	decoded, err := queue.DecodeOrderTask(task.Payload)
	if err != nil {
		return err
	}
	key := "pos:sync:" + decoded.TenantID
	return s.Locker.WithLock(ctx, key, s.lockTTL(), func(ctx context.Context) error {
		start := time.Now()
		if err := s.Client.Sync(ctx, decoded.Order); err != nil {
			if obs.PosSyncTotal != nil {
				obs.PosSyncTotal.WithLabelValues("error").Inc()
			}
			return err
		}
		if obs.PosSyncTotal != nil {
			obs.PosSyncTotal.WithLabelValues("ok").Inc()
		}
		s.Log.Info().
			Str("tenant_id", decoded.TenantID).
			Str("order_id", decoded.Order.ID).
			Dur("took", time.Since(start)).
			Msg("order mirrored to register")
		return nil
	})
}
