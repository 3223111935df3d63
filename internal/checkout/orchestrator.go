package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/orderhub-dev/backend-kiosk/internal/cart"
	"github.com/orderhub-dev/backend-kiosk/internal/obs"
	"github.com/orderhub-dev/backend-kiosk/internal/order"
	"github.com/orderhub-dev/backend-kiosk/internal/payment"
	"github.com/orderhub-dev/backend-kiosk/internal/pricing"
)

// State is the position of a kiosk session in the checkout flow.
type State string

const (
	StateIdle              State = "idle"
	StateCollectingTable   State = "collecting_table"
	StateCollectingType    State = "collecting_order_type"
	StateCollectingTip     State = "collecting_tip"
	StateProcessingPayment State = "processing_payment"
	StateSuccess           State = "success"
)

// ErrBadState is returned when an operation does not apply to the current state.
var ErrBadState = errors.New("checkout: operation not valid in current state")

// ErrNegativeTip is returned for tip amounts below zero.
var ErrNegativeTip = errors.New("checkout: tip must be non-negative")

// ErrInvalidTable is returned for table input the kiosk keypad could not have
// produced: anything non-numeric or longer than three digits.
var ErrInvalidTable = errors.New("checkout: table number must be 1-3 digits")

// Saver persists a finished order.
type Saver interface {
	Save(ctx context.Context, o *order.Order) error
}

// Publisher fans a persisted order out to live kitchen displays.
type Publisher interface {
	PublishOrder(ctx context.Context, o *order.Order) error
}

// Effects schedules post-payment side effects (POS mirror, ticket printing).
type Effects interface {
	OrderPaid(ctx context.Context, o *order.Order) error
}

// Orchestrator walks one kiosk session from a filled cart to a persisted,
// paid order. It is not safe for concurrent use; the session registry
// serialises access per session.
type Orchestrator struct {
	TenantID    string
	KioskID     string
	Cart        *cart.Cart
	Collector   *payment.Collector
	Orders      Saver
	Journal     *order.Journal
	Publish     Publisher
	SideEffects Effects
	TaxBps      int
	CardFeeBps  int
	TipPercents []int
	Now         func() time.Time
	Log         zerolog.Logger

	state     State
	orderType order.Type
	table     *string
	tip       pricing.Money
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// State returns the current checkout state. A fresh orchestrator is idle.
func (o *Orchestrator) State() State {
	if o.state == "" {
		return StateIdle
	}
	return o.state
}

// Begin starts checkout for a non-empty cart.
func (o *Orchestrator) Begin() error {
	if o.State() != StateIdle {
		return ErrBadState
	}
	if o.Cart == nil || o.Cart.IsEmpty() {
		return cart.ErrEmptyCart
	}
	o.state = StateCollectingTable
	return nil
}

// ConfirmTable records the table number. Blank input falls back to the
// default table; the value is discarded later if the guest picks take-out.
// Invalid input keeps the flow at the table step so the guest can retype.
func (o *Orchestrator) ConfirmTable(table string) error {
	if o.State() != StateCollectingTable {
		return ErrBadState
	}
	table = strings.TrimSpace(table)
	if table == "" {
		table = order.DefaultTable
	} else if !validTable(table) {
		return ErrInvalidTable
	}
	o.table = &table
	o.state = StateCollectingType
	return nil
}

func validTable(table string) bool {
	if len(table) > 3 {
		return false
	}
	for i := 0; i < len(table); i++ {
		if table[i] < '0' || table[i] > '9' {
			return false
		}
	}
	return true
}

// SelectOrderType records dine-in or take-out. Take-out orders carry no table.
func (o *Orchestrator) SelectOrderType(t order.Type) error {
	if o.State() != StateCollectingType {
		return ErrBadState
	}
	switch t {
	case order.TypeDineIn:
	case order.TypeTakeOut:
		o.table = nil
	default:
		return fmt.Errorf("checkout: unknown order type %q", t)
	}
	o.orderType = t
	o.state = StateCollectingTip
	return nil
}

// TipOptions returns the preset tip choices for the current subtotal.
func (o *Orchestrator) TipOptions() []pricing.TipChoice {
	return pricing.TipChoices(o.Cart.Summary(o.TaxBps, o.CardFeeBps).Subtotal, o.TipPercents)
}

// SelectTip records the chosen tip amount (0 for no tip) and arms payment.
func (o *Orchestrator) SelectTip(amount pricing.Money) error {
	if o.State() != StateCollectingTip {
		return ErrBadState
	}
	if amount < 0 {
		return ErrNegativeTip
	}
	o.tip = amount
	o.state = StateProcessingPayment
	return nil
}

// Cancel abandons checkout from the table or order-type step, keeping the
// cart. The tip step has no cancel path (a zero tip stands in for it) and
// payment cannot be interrupted once it starts.
func (o *Orchestrator) Cancel() error {
	switch o.State() {
	case StateCollectingTable, StateCollectingType:
		o.backToIdle()
		return nil
	default:
		return ErrBadState
	}
}

// Summary returns the totals that will be charged, tip included in ChargeTotal.
type Summary struct {
	pricing.Summary
	Tip         pricing.Money
	ChargeTotal pricing.Money
}

// Totals computes the current charge breakdown.
func (o *Orchestrator) Totals() Summary {
	base := o.Cart.Summary(o.TaxBps, o.CardFeeBps)
	return Summary{Summary: base, Tip: o.tip, ChargeTotal: base.GrandTotal + o.tip}
}

// Pay drives the terminal charge and, on success, persists and fans out the
// order. Payment failure drops the session back to idle with the cart intact
// so staff can retry. A persistence failure after a successful charge is
// journaled for reconciliation and surfaced as a distinct error; the money
// has already moved.
func (o *Orchestrator) Pay(ctx context.Context) (*order.Order, error) {
	if o.State() != StateProcessingPayment {
		return nil, ErrBadState
	}
	totals := o.Totals()
	started := time.Now()
	intent, err := o.Collector.Collect(ctx, totals.ChargeTotal, map[string]string{
		"tenant_id": o.TenantID,
		"kiosk_id":  o.KioskID,
	})
	if err != nil {
		observePayment(paymentResult(err), started)
		o.backToIdle()
		return nil, err
	}
	observePayment("succeeded", started)

	draft := o.buildOrder(totals, intent.ID)
	if err := o.Orders.Save(ctx, draft); err != nil {
		if obs.OrderJournalTotal != nil {
			obs.OrderJournalTotal.Inc()
		}
		o.Journal.Record(ctx, order.JournalEntry{
			TenantID:   o.TenantID,
			PaymentRef: intent.ID,
			Amount:     totals.ChargeTotal,
			Draft:      draft,
			Reason:     err.Error(),
		})
		o.backToIdle()
		return nil, fmt.Errorf("checkout: payment %s captured but order not recorded: %w", intent.ID, err)
	}
	o.fanOut(ctx, draft)
	if obs.OrdersPlacedTotal != nil {
		obs.OrdersPlacedTotal.WithLabelValues(string(draft.Type)).Inc()
	}

	o.state = StateSuccess
	return draft, nil
}

// backToIdle rewinds the step state after a failed attempt. The cart is left
// alone so the order does not have to be rebuilt.
func (o *Orchestrator) backToIdle() {
	o.state = StateIdle
	o.orderType = ""
	o.table = nil
	o.tip = 0
}

// Reset returns the session to idle and empties the cart. Safe in any state;
// the idle sweeper and the post-success timer both call it.
func (o *Orchestrator) Reset() {
	if o.Cart != nil {
		o.Cart.Clear()
	}
	o.state = StateIdle
	o.orderType = ""
	o.table = nil
	o.tip = 0
}

func (o *Orchestrator) buildOrder(totals Summary, paymentRef string) *order.Order {
	lines := make([]order.Line, 0, o.Cart.Len())
	for _, l := range o.Cart.Lines() {
		lines = append(lines, order.Line{
			ID:        uuid.NewString(),
			ItemName:  l.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			LineTotal: l.Total(),
			Options:   l.Options,
			GroupKey:  l.GroupKey,
			Companion: l.Companion,
		})
	}
	var table *string
	if o.orderType == order.TypeDineIn && o.table != nil {
		t := *o.table
		table = &t
	}
	return &order.Order{
		ID:          uuid.NewString(),
		TenantID:    o.TenantID,
		Type:        o.orderType,
		TableNumber: table,
		Status:      order.StatusPending,
		Subtotal:    totals.Subtotal,
		Tax:         totals.Tax,
		CardFee:     totals.CardFee,
		Tip:         totals.Tip,
		Total:       totals.ChargeTotal,
		PaymentRef:  paymentRef,
		Lines:       lines,
		CreatedAt:   o.now().UTC(),
	}
}

func paymentResult(err error) string {
	switch {
	case errors.Is(err, payment.ErrDeclined):
		return "declined"
	case errors.Is(err, payment.ErrTimedOut):
		return "timeout"
	default:
		return "error"
	}
}

func observePayment(result string, started time.Time) {
	if obs.PaymentOutcomeTotal != nil {
		obs.PaymentOutcomeTotal.WithLabelValues(result).Inc()
	}
	if obs.PaymentCollectLatency != nil {
		obs.PaymentCollectLatency.WithLabelValues(result).Observe(obs.DurationMillis(time.Since(started)))
	}
}

// fanOut runs best-effort side effects. Failures are logged, never surfaced
// to the guest; the worker retries scheduled tasks on its own.
func (o *Orchestrator) fanOut(ctx context.Context, draft *order.Order) {
	if o.SideEffects != nil {
		if err := o.SideEffects.OrderPaid(ctx, draft); err != nil {
			o.Log.Error().Err(err).Str("order_id", draft.ID).Msg("scheduling side effects failed")
		}
	}
	if o.Publish != nil {
		if err := o.Publish.PublishOrder(ctx, draft); err != nil {
			o.Log.Warn().Err(err).Str("order_id", draft.ID).Msg("realtime publish failed")
		}
	}
}
