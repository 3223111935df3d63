package kiosk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/orderhub-dev/backend-kiosk/internal/cart"
	"github.com/orderhub-dev/backend-kiosk/internal/catalog"
	"github.com/orderhub-dev/backend-kiosk/internal/checkout"
	"github.com/orderhub-dev/backend-kiosk/internal/obs"
	"github.com/orderhub-dev/backend-kiosk/internal/order"
	"github.com/orderhub-dev/backend-kiosk/internal/payment"
)

// ErrSessionNotFound is returned for unknown or swept session ids.
var ErrSessionNotFound = errors.New("kiosk: session not found")

// ErrItemNotFound is returned when a session references a menu item that is
// not in its pinned snapshot.
var ErrItemNotFound = errors.New("kiosk: item not on menu")

// ErrNoPendingItem is returned when toggling options with nothing selected.
var ErrNoPendingItem = errors.New("kiosk: no item being configured")

// Deps bundles everything a session's checkout flow needs.
type Deps struct {
	Catalog     *catalog.Service
	Collector   *payment.Collector
	Orders      checkout.Saver
	Journal     *order.Journal
	Publish     checkout.Publisher
	SideEffects checkout.Effects
	TaxBps      int
	CardFeeBps  int
	TipPercents []int
	IdleTimeout time.Duration
	ResetDelay  time.Duration
	Now         func() time.Time
	Log         zerolog.Logger
}

// Registry owns the live kiosk sessions for one API process and sweeps away
// the ones guests abandoned.
type Registry struct {
	deps Deps

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry constructs a Registry.
func NewRegistry(deps Deps) (*Registry, error) {
	if deps.Catalog == nil {
		return nil, errors.New("kiosk: catalog service is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("kiosk: order saver is required")
	}
	if deps.Journal == nil {
		return nil, errors.New("kiosk: payment journal is required")
	}
	if deps.IdleTimeout <= 0 {
		deps.IdleTimeout = 180 * time.Second
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Registry{deps: deps, sessions: make(map[string]*Session)}, nil
}

func (r *Registry) now() time.Time {
	return r.deps.Now()
}

// Start creates a session with a freshly loaded menu snapshot.
func (r *Registry) Start(ctx context.Context, tenantID, kioskID string) (*Session, error) {
	menu, err := r.deps.Catalog.Menu(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load menu: %w", err)
	}
	c := cart.New()
	s := &Session{
		ID:       uuid.NewString(),
		TenantID: tenantID,
		menu:     menu,
		cart:     c,
		flow: &checkout.Orchestrator{
			TenantID:    tenantID,
			KioskID:     kioskID,
			Cart:        c,
			Collector:   r.deps.Collector,
			Orders:      r.deps.Orders,
			Journal:     r.deps.Journal,
			Publish:     r.deps.Publish,
			SideEffects: r.deps.SideEffects,
			TaxBps:      r.deps.TaxBps,
			CardFeeBps:  r.deps.CardFeeBps,
			TipPercents: r.deps.TipPercents,
			Now:         r.deps.Now,
			Log:         r.deps.Log,
		},
		lastActive: r.now(),
	}
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	if obs.ActiveSessions != nil {
		obs.ActiveSessions.Inc()
	}
	return s, nil
}

// scheduleReset returns a session to the attract screen once the success
// screen has had its moment. Reset is idempotent, so a guest tapping "done"
// first costs nothing.
func (r *Registry) scheduleReset(s *Session) {
	delay := r.deps.ResetDelay
	if delay <= 0 {
		delay = 5 * time.Second
	}
	time.AfterFunc(delay, func() {
		s.Reset(r.now())
	})
}

// Get returns a live session by id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// End removes a session immediately.
func (r *Registry) End(id string) {
	r.mu.Lock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok && obs.ActiveSessions != nil {
		obs.ActiveSessions.Dec()
	}
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep resets and drops sessions idle past the configured timeout. The
// registry lock is never held while a session lock is taken, and sessions
// whose lock is busy (a payment poll can hold it for minutes) are skipped,
// so one guest paying never stalls the rest of the fleet.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.deps.IdleTimeout)
	r.mu.RLock()
	candidates := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		candidates = append(candidates, s)
	}
	r.mu.RUnlock()

	swept := 0
	for _, s := range candidates {
		if !s.sweepIfIdle(cutoff, r.now()) {
			continue
		}
		r.mu.Lock()
		_, live := r.sessions[s.ID]
		delete(r.sessions, s.ID)
		r.mu.Unlock()
		if !live {
			continue
		}
		swept++
		r.deps.Log.Debug().Str("session_id", s.ID).Str("tenant_id", s.TenantID).Msg("idle session swept")
		if obs.SessionSweepTotal != nil {
			obs.SessionSweepTotal.Inc()
		}
		if obs.ActiveSessions != nil {
			obs.ActiveSessions.Dec()
		}
	}
	return swept
}

// RunSweeper sweeps on the interval until the context ends.
func (r *Registry) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}
