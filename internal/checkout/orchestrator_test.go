package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/orderhub-dev/backend-kiosk/internal/cart"
	"github.com/orderhub-dev/backend-kiosk/internal/catalog"
	"github.com/orderhub-dev/backend-kiosk/internal/order"
	"github.com/orderhub-dev/backend-kiosk/internal/payment"
)

type stubTerminal struct {
	status   payment.Status
	canceled bool
	amount   int64
}

func (s *stubTerminal) CreateIntent(ctx context.Context, amount int64, metadata map[string]string) (payment.Intent, error) {
	s.amount = amount
	return payment.Intent{ID: "pi_test", Amount: amount, Status: payment.StatusPending}, nil
}

func (s *stubTerminal) IntentStatus(ctx context.Context, id string) (payment.Intent, error) {
	return payment.Intent{ID: id, Amount: s.amount, Status: s.status}, nil
}

func (s *stubTerminal) CancelIntent(ctx context.Context, id string) error {
	s.canceled = true
	return nil
}

type stubSaver struct {
	saved []*order.Order
	err   error
}

func (s *stubSaver) Save(ctx context.Context, o *order.Order) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, o)
	return nil
}

type stubPublisher struct{ published []*order.Order }

func (s *stubPublisher) PublishOrder(ctx context.Context, o *order.Order) error {
	s.published = append(s.published, o)
	return nil
}

type stubEffects struct{ orders []*order.Order }

func (s *stubEffects) OrderPaid(ctx context.Context, o *order.Order) error {
	s.orders = append(s.orders, o)
	return nil
}

func noSleep(ctx context.Context, d time.Duration) error { return nil }

func testJournal(t *testing.T) (*order.Journal, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return &order.Journal{Client: client, Log: zerolog.Nop()}, client
}

func filledCart(t *testing.T) *cart.Cart {
	t.Helper()
	menu := &catalog.Menu{
		Categories: []catalog.Category{{ID: "c1", Name: "Mains"}},
		Items:      []catalog.MenuItem{{ID: "i1", Name: "Cheeseburger", Price: 1200, CategoryID: "c1"}},
	}
	item, _ := menu.Item("i1")
	c := cart.New()
	_, err := c.Add(menu, item, nil, 1, time.Date(2025, time.June, 4, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return c
}

func fixture(t *testing.T, term *stubTerminal, saver *stubSaver) (*Orchestrator, *stubPublisher, *stubEffects) {
	t.Helper()
	journal, _ := testJournal(t)
	pub := &stubPublisher{}
	eff := &stubEffects{}
	o := &Orchestrator{
		TenantID:    "t1",
		KioskID:     "k1",
		Cart:        filledCart(t),
		Collector:   &payment.Collector{Terminal: term, PollAttempts: 3, Sleep: noSleep},
		Orders:      saver,
		Journal:     journal,
		Publish:     pub,
		SideEffects: eff,
		TaxBps:      700,
		CardFeeBps:  300,
		TipPercents: []int{10, 15, 20},
		Log:         zerolog.Nop(),
	}
	return o, pub, eff
}

func TestCheckoutDineInHappyPath(t *testing.T) {
	term := &stubTerminal{status: payment.StatusSucceeded}
	saver := &stubSaver{}
	o, pub, eff := fixture(t, term, saver)

	require.Equal(t, StateIdle, o.State())
	require.NoError(t, o.Begin())
	require.NoError(t, o.ConfirmTable("12"))
	require.NoError(t, o.SelectOrderType(order.TypeDineIn))

	tips := o.TipOptions()
	require.Len(t, tips, 3)
	require.Equal(t, int64(180), tips[1].Amount) // 15% of 12.00

	require.NoError(t, o.SelectTip(tips[1].Amount))
	totals := o.Totals()
	require.Equal(t, int64(1323), totals.GrandTotal)
	require.Equal(t, int64(1503), totals.ChargeTotal)

	placed, err := o.Pay(context.Background())
	require.NoError(t, err)
	require.Equal(t, StateSuccess, o.State())
	require.Equal(t, int64(1503), term.amount)

	require.Len(t, saver.saved, 1)
	require.Equal(t, order.TypeDineIn, placed.Type)
	require.NotNil(t, placed.TableNumber)
	require.Equal(t, "12", *placed.TableNumber)
	require.Equal(t, order.StatusPending, placed.Status)
	require.Equal(t, "pi_test", placed.PaymentRef)
	require.Len(t, placed.Lines, 1)

	require.Len(t, pub.published, 1)
	require.Len(t, eff.orders, 1)

	o.Reset()
	require.Equal(t, StateIdle, o.State())
	require.True(t, o.Cart.IsEmpty())
}

func TestCheckoutBlankTableDefaults(t *testing.T) {
	term := &stubTerminal{status: payment.StatusSucceeded}
	o, _, _ := fixture(t, term, &stubSaver{})

	require.NoError(t, o.Begin())
	require.NoError(t, o.ConfirmTable("  "))
	require.NoError(t, o.SelectOrderType(order.TypeDineIn))
	require.NoError(t, o.SelectTip(0))

	placed, err := o.Pay(context.Background())
	require.NoError(t, err)
	require.NotNil(t, placed.TableNumber)
	require.Equal(t, order.DefaultTable, *placed.TableNumber)
}

func TestCheckoutRejectsBadTableInput(t *testing.T) {
	term := &stubTerminal{status: payment.StatusSucceeded}
	o, _, _ := fixture(t, term, &stubSaver{})

	require.NoError(t, o.Begin())
	for _, table := range []string{"not-a-number-9999", "12a", "1234", "1 2"} {
		require.ErrorIs(t, o.ConfirmTable(table), ErrInvalidTable, "table %q", table)
		require.Equal(t, StateCollectingTable, o.State(), "guest retypes at the same step")
	}

	require.NoError(t, o.ConfirmTable("999"))
	require.Equal(t, StateCollectingType, o.State())
}

func TestCheckoutTakeOutHasNoTable(t *testing.T) {
	term := &stubTerminal{status: payment.StatusSucceeded}
	o, _, _ := fixture(t, term, &stubSaver{})

	require.NoError(t, o.Begin())
	require.NoError(t, o.ConfirmTable("7"))
	require.NoError(t, o.SelectOrderType(order.TypeTakeOut))
	require.NoError(t, o.SelectTip(0))

	placed, err := o.Pay(context.Background())
	require.NoError(t, err)
	require.Nil(t, placed.TableNumber)
}

func TestCheckoutDeclineReturnsToIdle(t *testing.T) {
	term := &stubTerminal{status: payment.StatusFailed}
	saver := &stubSaver{}
	o, pub, _ := fixture(t, term, saver)

	require.NoError(t, o.Begin())
	require.NoError(t, o.ConfirmTable(""))
	require.NoError(t, o.SelectOrderType(order.TypeDineIn))
	require.NoError(t, o.SelectTip(0))

	before := o.Cart.Len()
	_, err := o.Pay(context.Background())
	require.ErrorIs(t, err, payment.ErrDeclined)
	require.Equal(t, StateIdle, o.State())
	require.Empty(t, saver.saved)
	require.Empty(t, pub.published)
	require.Equal(t, before, o.Cart.Len())

	// The cart survived, so the guest walks the steps again and the retry
	// goes through.
	term.status = payment.StatusSucceeded
	require.NoError(t, o.Begin())
	require.NoError(t, o.ConfirmTable(""))
	require.NoError(t, o.SelectOrderType(order.TypeDineIn))
	require.NoError(t, o.SelectTip(100))
	_, err = o.Pay(context.Background())
	require.NoError(t, err)
	require.Equal(t, StateSuccess, o.State())
}

func TestCheckoutCancelKeepsCart(t *testing.T) {
	term := &stubTerminal{status: payment.StatusSucceeded}
	o, _, _ := fixture(t, term, &stubSaver{})

	require.ErrorIs(t, o.Cancel(), ErrBadState)

	require.NoError(t, o.Begin())
	require.NoError(t, o.Cancel())
	require.Equal(t, StateIdle, o.State())
	require.False(t, o.Cart.IsEmpty())

	require.NoError(t, o.Begin())
	require.NoError(t, o.ConfirmTable("5"))
	require.NoError(t, o.Cancel())
	require.Equal(t, StateIdle, o.State())
	require.False(t, o.Cart.IsEmpty())

	// No cancel once the tip step is reached.
	require.NoError(t, o.Begin())
	require.NoError(t, o.ConfirmTable("5"))
	require.NoError(t, o.SelectOrderType(order.TypeDineIn))
	require.ErrorIs(t, o.Cancel(), ErrBadState)
}

func TestCheckoutPersistFailureJournals(t *testing.T) {
	term := &stubTerminal{status: payment.StatusSucceeded}
	saver := &stubSaver{err: errors.New("connection refused")}
	journal, _ := testJournal(t)
	o, pub, eff := fixture(t, term, saver)
	o.Journal = journal

	require.NoError(t, o.Begin())
	require.NoError(t, o.ConfirmTable(""))
	require.NoError(t, o.SelectOrderType(order.TypeTakeOut))
	require.NoError(t, o.SelectTip(0))

	before := o.Cart.Len()
	placed, err := o.Pay(context.Background())
	require.Error(t, err, "money moved but no order row exists; staff must hear about it")
	require.Nil(t, placed)
	require.Equal(t, StateIdle, o.State())
	require.Equal(t, before, o.Cart.Len())

	entries, err := journal.Pending(context.Background(), "t1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "pi_test", entries[0].PaymentRef)
	require.Equal(t, entries[0].Draft.Total, entries[0].Amount)

	// No fan-out for an order the kitchen cannot load.
	require.Empty(t, pub.published)
	require.Empty(t, eff.orders)
}

func TestCheckoutStateGuards(t *testing.T) {
	term := &stubTerminal{status: payment.StatusSucceeded}
	o, _, _ := fixture(t, term, &stubSaver{})

	require.ErrorIs(t, o.ConfirmTable("1"), ErrBadState)
	require.ErrorIs(t, o.SelectOrderType(order.TypeDineIn), ErrBadState)
	require.ErrorIs(t, o.SelectTip(0), ErrBadState)
	_, err := o.Pay(context.Background())
	require.ErrorIs(t, err, ErrBadState)

	require.NoError(t, o.Begin())
	require.ErrorIs(t, o.Begin(), ErrBadState)
}

func TestCheckoutBeginRequiresLines(t *testing.T) {
	o := &Orchestrator{Cart: cart.New()}
	require.ErrorIs(t, o.Begin(), cart.ErrEmptyCart)
}

func TestCheckoutRejectsNegativeTip(t *testing.T) {
	term := &stubTerminal{status: payment.StatusSucceeded}
	o, _, _ := fixture(t, term, &stubSaver{})
	require.NoError(t, o.Begin())
	require.NoError(t, o.ConfirmTable(""))
	require.NoError(t, o.SelectOrderType(order.TypeDineIn))
	require.ErrorIs(t, o.SelectTip(-1), ErrNegativeTip)
}

func TestCheckoutRejectsUnknownOrderType(t *testing.T) {
	term := &stubTerminal{status: payment.StatusSucceeded}
	o, _, _ := fixture(t, term, &stubSaver{})
	require.NoError(t, o.Begin())
	require.NoError(t, o.ConfirmTable(""))
	require.Error(t, o.SelectOrderType(order.Type("delivery")))
}
