package kiosk

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/orderhub-dev/backend-kiosk/internal/catalog"
	"github.com/orderhub-dev/backend-kiosk/internal/checkout"
	"github.com/orderhub-dev/backend-kiosk/internal/order"
	"github.com/orderhub-dev/backend-kiosk/internal/payment"
)

type menuLoader struct{ menu *catalog.Menu }

func (m *menuLoader) LoadMenu(ctx context.Context, tenantID string) (*catalog.Menu, error) {
	return m.menu, nil
}

type memorySaver struct{ saved []*order.Order }

func (m *memorySaver) Save(ctx context.Context, o *order.Order) error {
	m.saved = append(m.saved, o)
	return nil
}

type instantTerminal struct{}

func (instantTerminal) CreateIntent(ctx context.Context, amount int64, metadata map[string]string) (payment.Intent, error) {
	return payment.Intent{ID: "pi_1", Amount: amount, Status: payment.StatusPending}, nil
}

func (instantTerminal) IntentStatus(ctx context.Context, id string) (payment.Intent, error) {
	return payment.Intent{ID: id, Status: payment.StatusSucceeded}, nil
}

func (instantTerminal) CancelIntent(ctx context.Context, id string) error { return nil }

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func kioskMenu() *catalog.Menu {
	return &catalog.Menu{
		Categories: []catalog.Category{{ID: "c1", Name: "Mains"}},
		Items: []catalog.MenuItem{
			{ID: "i1", Name: "Cheeseburger", Price: 1200, CategoryID: "c1"},
			{ID: "i2", Name: "Fries", Price: 350, CategoryID: "c1"},
		},
	}
}

func testRegistry(t *testing.T, clock *fakeClock) (*Registry, *memorySaver) {
	t.Helper()
	svc, err := catalog.NewService(catalog.ServiceConfig{Store: &menuLoader{menu: kioskMenu()}})
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	saver := &memorySaver{}
	reg, err := NewRegistry(Deps{
		Catalog:     svc,
		Collector:   &payment.Collector{Terminal: instantTerminal{}, Sleep: func(ctx context.Context, d time.Duration) error { return nil }},
		Orders:      saver,
		Journal:     &order.Journal{Client: client, Log: zerolog.Nop()},
		TaxBps:      700,
		CardFeeBps:  300,
		TipPercents: []int{10, 15, 20},
		IdleTimeout: 180 * time.Second,
		Now:         clock.Now,
		Log:         zerolog.Nop(),
	})
	require.NoError(t, err)
	return reg, saver
}

func TestRegistryFullFlow(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, time.June, 4, 12, 0, 0, 0, time.UTC)}
	reg, saver := testRegistry(t, clock)

	s, err := reg.Start(context.Background(), "t1", "k1")
	require.NoError(t, err)
	require.Equal(t, 1, reg.Len())

	_, err = s.AddItem("i1", 1, clock.Now())
	require.NoError(t, err)
	require.NoError(t, s.BeginCheckout(clock.Now()))
	require.NoError(t, s.ConfirmTable("5", clock.Now()))
	require.NoError(t, s.SelectOrderType(order.TypeDineIn, clock.Now()))
	require.NoError(t, s.SelectTip(0, clock.Now()))

	placed, err := s.Pay(context.Background(), clock.Now())
	require.NoError(t, err)
	require.Len(t, saver.saved, 1)
	require.Equal(t, "t1", placed.TenantID)

	s.Reset(clock.Now())
	view := s.View(clock.Now())
	require.Empty(t, view.Lines)
}

func TestSweepClearsIdleSessions(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, time.June, 4, 12, 0, 0, 0, time.UTC)}
	reg, _ := testRegistry(t, clock)

	s, err := reg.Start(context.Background(), "t1", "k1")
	require.NoError(t, err)
	_, err = s.AddItem("i2", 1, clock.Now())
	require.NoError(t, err)

	// Under the timeout: nothing happens.
	clock.Advance(179 * time.Second)
	require.Zero(t, reg.Sweep())
	require.Equal(t, 1, reg.Len())

	// Past the timeout: the session is reset and dropped.
	clock.Advance(2 * time.Second)
	require.Equal(t, 1, reg.Sweep())
	require.Zero(t, reg.Len())
	require.Empty(t, s.View(clock.Now()).Lines)

	_, err = reg.Get(s.ID)
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSweepSkipsSessionMidPayment(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, time.June, 4, 12, 0, 0, 0, time.UTC)}
	reg, _ := testRegistry(t, clock)

	paying, err := reg.Start(context.Background(), "t1", "k1")
	require.NoError(t, err)
	idle, err := reg.Start(context.Background(), "t1", "k2")
	require.NoError(t, err)

	// Hold the first session's lock the way a slow terminal poll does.
	paying.mu.Lock()
	defer paying.mu.Unlock()

	clock.Advance(181 * time.Second)

	done := make(chan int, 1)
	go func() { done <- reg.Sweep() }()
	select {
	case swept := <-done:
		require.Equal(t, 1, swept)
	case <-time.After(2 * time.Second):
		t.Fatal("sweep blocked on a busy session")
	}

	// The paying session is untouched; the abandoned one is gone.
	_, err = reg.Get(paying.ID)
	require.NoError(t, err)
	_, err = reg.Get(idle.ID)
	require.ErrorIs(t, err, ErrSessionNotFound)
	require.Equal(t, 1, reg.Len())
}

func TestSweepKeepsRegistryResponsive(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, time.June, 4, 12, 0, 0, 0, time.UTC)}
	reg, _ := testRegistry(t, clock)

	s, err := reg.Start(context.Background(), "t1", "k1")
	require.NoError(t, err)

	s.mu.Lock()
	defer s.mu.Unlock()
	clock.Advance(181 * time.Second)

	// Sweeping around a held session lock must not wedge the registry itself.
	swept := make(chan int, 1)
	go func() { swept <- reg.Sweep() }()

	got := make(chan error, 1)
	go func() {
		_, err := reg.Get(s.ID)
		got <- err
	}()
	select {
	case err := <-got:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("registry lookup blocked during sweep")
	}
	select {
	case n := <-swept:
		require.Zero(t, n)
	case <-time.After(2 * time.Second):
		t.Fatal("sweep never returned")
	}
}

func TestRegistryRequiresJournal(t *testing.T) {
	svc, err := catalog.NewService(catalog.ServiceConfig{Store: &menuLoader{menu: kioskMenu()}})
	require.NoError(t, err)

	_, err = NewRegistry(Deps{
		Catalog: svc,
		Orders:  &memorySaver{},
		Log:     zerolog.Nop(),
	})
	require.Error(t, err)
}

func TestActivityDefersSweep(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, time.June, 4, 12, 0, 0, 0, time.UTC)}
	reg, _ := testRegistry(t, clock)

	s, err := reg.Start(context.Background(), "t1", "k1")
	require.NoError(t, err)

	clock.Advance(170 * time.Second)
	_, err = s.AddItem("i2", 1, clock.Now()) // touches the session
	require.NoError(t, err)

	clock.Advance(20 * time.Second)
	require.Zero(t, reg.Sweep())
	require.Equal(t, 1, reg.Len())
}

func TestCancelCheckoutKeepsCart(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, time.June, 4, 12, 0, 0, 0, time.UTC)}
	reg, _ := testRegistry(t, clock)

	s, err := reg.Start(context.Background(), "t1", "k1")
	require.NoError(t, err)
	_, err = s.AddItem("i1", 1, clock.Now())
	require.NoError(t, err)

	require.NoError(t, s.BeginCheckout(clock.Now()))
	require.NoError(t, s.CancelCheckout(clock.Now()))
	require.Len(t, s.View(clock.Now()).Lines, 1)

	// Once the tip step is reached the only ways out are paying or timing out.
	require.NoError(t, s.BeginCheckout(clock.Now()))
	require.NoError(t, s.ConfirmTable("5", clock.Now()))
	require.NoError(t, s.SelectOrderType(order.TypeTakeOut, clock.Now()))
	require.ErrorIs(t, s.CancelCheckout(clock.Now()), checkout.ErrBadState)
}

func TestSessionConfigureAndToggle(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, time.June, 4, 12, 0, 0, 0, time.UTC)}
	reg, _ := testRegistry(t, clock)

	s, err := reg.Start(context.Background(), "t1", "k1")
	require.NoError(t, err)

	require.ErrorIs(t, s.ToggleOption("g", "o", clock.Now()), ErrNoPendingItem)

	_, err = s.SelectItem("missing", clock.Now())
	require.ErrorIs(t, err, ErrItemNotFound)

	item, err := s.SelectItem("i1", clock.Now())
	require.NoError(t, err)
	require.Equal(t, "Cheeseburger", item.Name)

	added, err := s.AddPendingToCart(1, clock.Now())
	require.NoError(t, err)
	require.Len(t, added, 1)

	// Committing consumes the pending configuration.
	_, err = s.AddPendingToCart(1, clock.Now())
	require.ErrorIs(t, err, ErrNoPendingItem)
}
