package kiosk

import (
	"context"
	"sync"
	"time"

	"github.com/orderhub-dev/backend-kiosk/internal/cart"
	"github.com/orderhub-dev/backend-kiosk/internal/catalog"
	"github.com/orderhub-dev/backend-kiosk/internal/checkout"
	"github.com/orderhub-dev/backend-kiosk/internal/order"
	"github.com/orderhub-dev/backend-kiosk/internal/pricing"
)

// Session is one guest's interaction with a kiosk: a pinned menu snapshot, a
// cart, an in-flight item configuration, and the checkout flow. All access
// goes through the mutex; HTTP handlers may race the idle sweeper.
type Session struct {
	ID       string
	TenantID string

	mu          sync.Mutex
	menu        *catalog.Menu
	cart        *cart.Cart
	flow        *checkout.Orchestrator
	pendingItem string
	pending     *cart.Selection
	lastActive  time.Time
}

func (s *Session) touch(now time.Time) {
	s.lastActive = now
}

// Menu returns the session's pinned menu snapshot.
func (s *Session) Menu() *catalog.Menu {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.menu
}

// SelectItem starts configuring an item, replacing any previous in-flight
// configuration.
func (s *Session) SelectItem(itemID string, now time.Time) (catalog.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch(now)
	item, ok := s.menu.Item(itemID)
	if !ok {
		return catalog.MenuItem{}, ErrItemNotFound
	}
	s.pendingItem = itemID
	s.pending = cart.NewSelection(item)
	return item, nil
}

// ToggleOption flips an option on the item being configured.
func (s *Session) ToggleOption(groupID, optionID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch(now)
	if s.pending == nil {
		return ErrNoPendingItem
	}
	return s.pending.Toggle(groupID, optionID)
}

// AddPendingToCart validates the in-flight configuration and adds it.
func (s *Session) AddPendingToCart(quantity int, now time.Time) ([]cart.Line, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch(now)
	if s.pending == nil {
		return nil, ErrNoPendingItem
	}
	item, ok := s.menu.Item(s.pendingItem)
	if !ok {
		return nil, ErrItemNotFound
	}
	added, err := s.cart.Add(s.menu, item, s.pending, quantity, now)
	if err != nil {
		return nil, err
	}
	s.pendingItem = ""
	s.pending = nil
	return added, nil
}

// AddItem adds an item with no modifiers directly, bypassing configuration.
func (s *Session) AddItem(itemID string, quantity int, now time.Time) ([]cart.Line, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch(now)
	item, ok := s.menu.Item(itemID)
	if !ok {
		return nil, ErrItemNotFound
	}
	return s.cart.Add(s.menu, item, nil, quantity, now)
}

// RemoveLine removes a cart line (and its bundled companions).
func (s *Session) RemoveLine(lineID string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch(now)
	s.cart.Remove(lineID)
}

// ClearCart empties the cart and discards any table/order-type/tip already
// collected; a draft makes no sense without lines behind it.
func (s *Session) ClearCart(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch(now)
	s.flow.Reset()
}

// CartView is the kiosk's cart screen payload.
type CartView struct {
	Lines      []cart.Line         `json:"lines"`
	Subtotal   pricing.Money       `json:"subtotal"`
	Tax        pricing.Money       `json:"tax"`
	CardFee    pricing.Money       `json:"cardFee"`
	GrandTotal pricing.Money       `json:"grandTotal"`
	TipOptions []pricing.TipChoice `json:"tipOptions"`
	State      checkout.State      `json:"state"`
}

// View snapshots the cart and totals for display.
func (s *Session) View(now time.Time) CartView {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch(now)
	sum := s.cart.Summary(s.flow.TaxBps, s.flow.CardFeeBps)
	return CartView{
		Lines:      s.cart.Lines(),
		Subtotal:   sum.Subtotal,
		Tax:        sum.Tax,
		CardFee:    sum.CardFee,
		GrandTotal: sum.GrandTotal,
		TipOptions: pricing.TipChoices(sum.Subtotal, s.flow.TipPercents),
		State:      s.flow.State(),
	}
}

// BeginCheckout enters the checkout flow.
func (s *Session) BeginCheckout(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch(now)
	return s.flow.Begin()
}

// ConfirmTable records the table number.
func (s *Session) ConfirmTable(table string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch(now)
	return s.flow.ConfirmTable(table)
}

// SelectOrderType records dine-in or take-out.
func (s *Session) SelectOrderType(t order.Type, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch(now)
	return s.flow.SelectOrderType(t)
}

// CancelCheckout backs out of the table or order-type step, keeping the cart.
func (s *Session) CancelCheckout(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch(now)
	return s.flow.Cancel()
}

// SelectTip records the tip amount.
func (s *Session) SelectTip(amount pricing.Money, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch(now)
	return s.flow.SelectTip(amount)
}

// Pay runs the terminal charge. The session lock is held for the duration;
// the sweeper skips sessions whose lock is busy, so a session mid-payment is
// never reset under the guest.
func (s *Session) Pay(ctx context.Context, now time.Time) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch(now)
	o, err := s.flow.Pay(ctx)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// Reset returns the session to the attract screen.
func (s *Session) Reset(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch(now)
	s.pendingItem = ""
	s.pending = nil
	s.flow.Reset()
}

// State returns the current checkout state.
func (s *Session) State() checkout.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flow.State()
}

// sweepIfIdle resets the session when it has been untouched past the cutoff
// and reports whether it did. A session whose lock is busy is mid-request —
// possibly blocked on the card terminal for minutes — so it is skipped rather
// than waited on; the next sweep sees it again.
func (s *Session) sweepIfIdle(cutoff, now time.Time) bool {
	if !s.mu.TryLock() {
		return false
	}
	defer s.mu.Unlock()
	if !s.lastActive.Before(cutoff) {
		return false
	}
	s.touch(now)
	s.pendingItem = ""
	s.pending = nil
	s.flow.Reset()
	return true
}
