package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/orderhub-dev/backend-kiosk/internal/order"
)

func TestPublishSubscribeRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sub := &Subscriber{Client: client}
	orders, err := sub.Orders(ctx, "t1")
	require.NoError(t, err)

	pub := &Publisher{Client: client}
	table := "12"
	sent := &order.Order{ID: "o1", TenantID: "t1", Type: order.TypeDineIn, TableNumber: &table, Total: 1503}
	require.NoError(t, pub.PublishOrder(ctx, sent))

	select {
	case got := <-orders:
		require.Equal(t, "o1", got.ID)
		require.NotNil(t, got.TableNumber)
		require.Equal(t, "12", *got.TableNumber)
	case <-ctx.Done():
		t.Fatal("timed out waiting for published order")
	}
}

func TestSubscriberTenantIsolation(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	sub := &Subscriber{Client: client}
	orders, err := sub.Orders(ctx, "t1")
	require.NoError(t, err)

	pub := &Publisher{Client: client}
	require.NoError(t, pub.PublishOrder(ctx, &order.Order{ID: "o-other", TenantID: "t2"}))

	select {
	case got := <-orders:
		t.Fatalf("received order %s across tenants", got.ID)
	case <-time.After(200 * time.Millisecond):
	}
}
