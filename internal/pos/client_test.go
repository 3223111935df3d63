package pos

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/orderhub-dev/backend-kiosk/internal/order"
	"github.com/orderhub-dev/backend-kiosk/internal/resilience"
)

func noSleep(ctx context.Context, d time.Duration) error { return nil }

type recordedCall struct {
	Path string
	Body map[string]any
}

func newRegisterServer(t *testing.T) (*httptest.Server, func() []recordedCall) {
	t.Helper()
	var mu sync.Mutex
	var calls []recordedCall
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		calls = append(calls, recordedCall{Path: r.URL.Path, Body: body})
		mu.Unlock()
		if r.URL.Path == "/v3/merchants/m1/orders" {
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "reg-1"})
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []recordedCall {
		mu.Lock()
		defer mu.Unlock()
		out := make([]recordedCall, len(calls))
		copy(out, calls)
		return out
	}
}

func testClient(srv *httptest.Server) *Client {
	c := NewClient(srv.URL, "m1", "token", nil)
	c.Sleep = noSleep
	return c
}

func testOrder() *order.Order {
	table := "12"
	return &order.Order{
		ID:          "o1",
		TenantID:    "t1",
		Type:        order.TypeDineIn,
		TableNumber: &table,
		Subtotal:    1500,
		Tip:         180,
		Total:       1833,
		PaymentRef:  "pi_test",
		Lines: []order.Line{
			{ItemName: "Lunch Combo", Quantity: 1, UnitPrice: 1500, LineTotal: 1500},
			{ItemName: "(Set) Fries", Quantity: 1, UnitPrice: 0, LineTotal: 0, Companion: true},
		},
	}
}

func TestSyncPostsSequentially(t *testing.T) {
	srv, calls := newRegisterServer(t)
	c := testClient(srv)

	require.NoError(t, c.Sync(context.Background(), testOrder()))

	got := calls()
	require.Len(t, got, 5)
	require.Equal(t, "/v3/merchants/m1/orders", got[0].Path)
	require.Equal(t, "o1", got[0].Body["externalReferenceId"])
	require.Equal(t, "Kiosk table 12", got[0].Body["title"])

	require.Equal(t, "/v3/merchants/m1/orders/reg-1/line_items", got[1].Path)
	require.Equal(t, "Lunch Combo", got[1].Body["name"])
	require.Equal(t, "(Set) Fries", got[2].Body["name"])
	require.EqualValues(t, 0, got[2].Body["price"])

	require.Equal(t, "Tip", got[3].Body["name"])
	require.EqualValues(t, 180, got[3].Body["price"])

	require.Equal(t, "/v3/merchants/m1/orders/reg-1/payments", got[4].Path)
	require.Equal(t, "external", got[4].Body["tender"])
	require.Equal(t, "pi_test", got[4].Body["externalReferenceId"])
	require.EqualValues(t, 1833, got[4].Body["amount"])
}

func TestSyncSkipsTipLineWhenZero(t *testing.T) {
	srv, calls := newRegisterServer(t)
	c := testClient(srv)

	o := testOrder()
	o.Tip = 0
	o.Total = 1653
	require.NoError(t, c.Sync(context.Background(), o))

	got := calls()
	require.Len(t, got, 4)
	require.Equal(t, "/v3/merchants/m1/orders/reg-1/payments", got[3].Path)
}

func TestSyncSurfacesRegisterErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "merchant not found", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)
	c := testClient(srv)

	err := c.Sync(context.Background(), testOrder())
	require.ErrorContains(t, err, "status 404")
}

func TestSyncRetriesServerErrors(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "reg-1"})
	}))
	t.Cleanup(srv.Close)

	c := testClient(srv)
	c.HTTP.Breaker = resilience.NewBreaker(10, 1, time.Second)
	o := testOrder()
	o.Lines = nil
	o.Tip = 0

	require.NoError(t, c.Sync(context.Background(), o))
	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, attempts, 3)
}
