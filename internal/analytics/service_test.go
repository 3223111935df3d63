package analytics

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestCacheRoundTrip(t *testing.T) {
	svc := &Service{R: newTestRedis(t), TTL: time.Minute}
	ctx := context.Background()

	rows := []SalesDay{{Orders: 3, Gross: 4500, Tax: 294, Tips: 200}}
	svc.store(ctx, "an:t1:sales:x", rows)

	var got []SalesDay
	require.True(t, svc.fromCache(ctx, "an:t1:sales:x", &got))
	require.Equal(t, rows, got)

	require.False(t, svc.fromCache(ctx, "an:t1:sales:missing", &got))
}

func TestCacheDisabledWithoutTTL(t *testing.T) {
	svc := &Service{R: newTestRedis(t)}
	ctx := context.Background()
	svc.store(ctx, "key", []TopItem{{Name: "Burger"}})
	var got []TopItem
	require.False(t, svc.fromCache(ctx, "key", &got))
}

func TestWindowDefaultsToRange(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	h := &Handler{Svc: &Service{DefaultRange: 7, Now: func() time.Time { return now }}}

	r := httptest.NewRequest("GET", "/analytics/sales", nil)
	from, to, ok := h.window(r)
	require.True(t, ok)
	require.Equal(t, now, to)
	require.Equal(t, now.AddDate(0, 0, -7), from)
}

func TestWindowExplicitRange(t *testing.T) {
	h := &Handler{Svc: &Service{}}
	r := httptest.NewRequest("GET", "/analytics/sales?from=2026-03-01T00:00:00Z&to=2026-03-08T00:00:00Z", nil)
	from, to, ok := h.window(r)
	require.True(t, ok)
	require.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), from)
	require.Equal(t, time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC), to)
}

func TestWindowRejectsInvertedRange(t *testing.T) {
	h := &Handler{Svc: &Service{}}
	r := httptest.NewRequest("GET", "/analytics/sales?from=2026-03-08T00:00:00Z&to=2026-03-01T00:00:00Z", nil)
	_, _, ok := h.window(r)
	require.False(t, ok)
}

func TestWindowRejectsGarbageDates(t *testing.T) {
	h := &Handler{Svc: &Service{}}
	r := httptest.NewRequest("GET", "/analytics/sales?from=yesterday&to=today", nil)
	_, _, ok := h.window(r)
	require.False(t, ok)
}
