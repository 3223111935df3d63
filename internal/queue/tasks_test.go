package queue_test

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/orderhub-dev/backend-kiosk/internal/order"
	"github.com/orderhub-dev/backend-kiosk/internal/queue"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestSchedulerOrderPaid(t *testing.T) {
	client := newTestRedis(t)
	enq := queue.Enqueuer{R: client}
	s := queue.Scheduler{Enq: enq}

	o := &order.Order{ID: "o1", TenantID: "t1", Total: 1503}
	require.NoError(t, s.OrderPaid(context.Background(), o))

	for _, kind := range []string{queue.KindPosSync, queue.KindPrintTicket} {
		size, err := client.ZCard(context.Background(), "queue:"+kind).Result()
		require.NoError(t, err)
		require.EqualValues(t, 1, size, kind)
	}

	// A retry with the same order dedups.
	require.NoError(t, s.OrderPaid(context.Background(), o))
	size, err := client.ZCard(context.Background(), "queue:"+queue.KindPosSync).Result()
	require.NoError(t, err)
	require.EqualValues(t, 1, size)
}

func TestDecodeOrderTask(t *testing.T) {
	_, err := queue.DecodeOrderTask([]byte(`{"tenantId":"t1"}`))
	require.Error(t, err)

	task, err := queue.DecodeOrderTask([]byte(`{"tenantId":"t1","order":{"id":"o1","tenantId":"t1"}}`))
	require.NoError(t, err)
	require.Equal(t, "o1", task.Order.ID)
}
