package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/orderhub-dev/backend-kiosk/internal/order"
)

// Channel returns the per-tenant kitchen display channel name.
func Channel(tenantID string) string {
	return "kds:orders:" + tenantID
}

// Publisher pushes paid orders onto the tenant's kitchen display channel.
type Publisher struct {
	Client *redis.Client
}

// PublishOrder broadcasts the order to every subscribed display. No
// subscribers is not an error; displays catch up from the order list.
func (p *Publisher) PublishOrder(ctx context.Context, o *order.Order) error {
	if p == nil || p.Client == nil {
		return errors.New("realtime: publisher not configured")
	}
	payload, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}
	return p.Client.Publish(ctx, Channel(o.TenantID), payload).Err()
}

// Subscriber receives order events for one tenant.
type Subscriber struct {
	Client *redis.Client
}

// Orders subscribes to the tenant's channel and decodes events until the
// context ends. The returned channel closes when the subscription does.
func (s *Subscriber) Orders(ctx context.Context, tenantID string) (<-chan *order.Order, error) {
	if s == nil || s.Client == nil {
		return nil, errors.New("realtime: subscriber not configured")
	}
	sub := s.Client.Subscribe(ctx, Channel(tenantID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", Channel(tenantID), err)
	}
	out := make(chan *order.Order)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var o order.Order
				if err := json.Unmarshal([]byte(msg.Payload), &o); err != nil {
					continue
				}
				select {
				case out <- &o:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
