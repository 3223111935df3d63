package kiosk

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/orderhub-dev/backend-kiosk/internal/cart"
	"github.com/orderhub-dev/backend-kiosk/internal/checkout"
	"github.com/orderhub-dev/backend-kiosk/internal/common"
	"github.com/orderhub-dev/backend-kiosk/internal/order"
	"github.com/orderhub-dev/backend-kiosk/internal/payment"
	"github.com/orderhub-dev/backend-kiosk/internal/pricing"
	"github.com/orderhub-dev/backend-kiosk/internal/tenant"
)

// Handler exposes the guest-facing kiosk flow.
type Handler struct {
	registry *Registry
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Registry *Registry
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{registry: cfg.Registry}
}

// Routes mounts the kiosk session endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/sessions", h.StartSession)
	h.SessionRoutes(r)
}

// SessionRoutes mounts the per-session endpoints, leaving session creation to
// the caller so it can carry its own middleware.
func (h *Handler) SessionRoutes(r chi.Router) {
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Post("/items/{itemId}/configure", h.ConfigureItem)
		r.Post("/options/toggle", h.ToggleOption)
		r.Post("/cart", h.AddToCart)
		r.Get("/cart", h.Cart)
		r.Delete("/cart", h.ClearCart)
		r.Delete("/cart/lines/{lineId}", h.RemoveLine)
		r.Post("/checkout", h.BeginCheckout)
		r.Post("/checkout/cancel", h.CancelCheckout)
		r.Post("/table", h.ConfirmTable)
		r.Post("/order-type", h.SelectOrderType)
		r.Post("/tip", h.SelectTip)
		r.Post("/pay", h.Pay)
		r.Post("/reset", h.Reset)
	})
}

// StartSession handles POST /api/v1/kiosk/sessions.
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant.FromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "tenant could not be resolved", nil)
		return
	}
	kioskID := r.Header.Get("X-Kiosk-ID")
	s, err := h.registry.Start(r.Context(), tenantID, kioskID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": map[string]any{
		"sessionId": s.ID,
		"menu":      s.Menu(),
	}})
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	s, err := h.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return nil, false
	}
	return s, true
}

// ConfigureItem handles POST .../items/{itemId}/configure.
func (h *Handler) ConfigureItem(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	item, err := s.SelectItem(chi.URLParam(r, "itemId"), h.registry.now())
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": item})
}

// ToggleOption handles POST .../options/toggle.
func (h *Handler) ToggleOption(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req struct {
		GroupID  string `json:"groupId"`
		OptionID string `json:"optionId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	if err := s.ToggleOption(req.GroupID, req.OptionID, h.registry.now()); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddToCart handles POST .../cart. With an itemId it adds the item directly;
// without one it commits the in-flight configuration.
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req struct {
		ItemID   string `json:"itemId"`
		Quantity int    `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	var (
		added []cart.Line
		err   error
	)
	if req.ItemID != "" {
		added, err = s.AddItem(req.ItemID, req.Quantity, h.registry.now())
	} else {
		added, err = s.AddPendingToCart(req.Quantity, h.registry.now())
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": added})
}

// Cart handles GET .../cart.
func (h *Handler) Cart(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": s.View(h.registry.now())})
}

// RemoveLine handles DELETE .../cart/lines/{lineId}.
func (h *Handler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.RemoveLine(chi.URLParam(r, "lineId"), h.registry.now())
	w.WriteHeader(http.StatusNoContent)
}

// ClearCart handles DELETE .../cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.ClearCart(h.registry.now())
	w.WriteHeader(http.StatusNoContent)
}

// BeginCheckout handles POST .../checkout.
func (h *Handler) BeginCheckout(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.BeginCheckout(h.registry.now()); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"state": s.State()}})
}

// CancelCheckout handles POST .../checkout/cancel. The cart survives; only
// the collected steps are discarded.
func (h *Handler) CancelCheckout(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.CancelCheckout(h.registry.now()); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"state": s.State()}})
}

// ConfirmTable handles POST .../table.
func (h *Handler) ConfirmTable(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req struct {
		TableNumber string `json:"tableNumber"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	if err := s.ConfirmTable(req.TableNumber, h.registry.now()); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"state": s.State()}})
}

// SelectOrderType handles POST .../order-type.
func (h *Handler) SelectOrderType(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req struct {
		OrderType order.Type `json:"orderType"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	if err := s.SelectOrderType(req.OrderType, h.registry.now()); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"state": s.State()}})
}

// SelectTip handles POST .../tip.
func (h *Handler) SelectTip(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Amount pricing.Money `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	if err := s.SelectTip(req.Amount, h.registry.now()); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"state": s.State()}})
}

// Pay handles POST .../pay. The response blocks while the terminal charge is
// in progress.
func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	placed, err := s.Pay(r.Context(), h.registry.now())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.registry.scheduleReset(s)
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"state":   s.State(),
		"orderId": placed.ID,
		"total":   placed.Total,
	}})
}

// Reset handles POST .../reset.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Reset(h.registry.now())
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"state": s.State()}})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var dayErr *cart.DayRestrictedError
	var reqErr *cart.RequiredGroupError
	switch {
	case errors.Is(err, ErrSessionNotFound):
		common.JSONError(w, http.StatusNotFound, "SESSION_NOT_FOUND", "session expired or unknown", nil)
	case errors.Is(err, ErrItemNotFound):
		common.JSONError(w, http.StatusNotFound, "ITEM_NOT_FOUND", "item not on menu", nil)
	case errors.Is(err, ErrNoPendingItem):
		common.JSONError(w, http.StatusConflict, "NO_PENDING_ITEM", "no item is being configured", nil)
	case errors.As(err, &dayErr):
		common.JSONError(w, http.StatusConflict, "DAY_RESTRICTED", dayErr.Error(), map[string]any{"requiredDay": dayErr.RequiredDay})
	case errors.Is(err, cart.ErrSoldOut):
		common.JSONError(w, http.StatusConflict, "SOLD_OUT", "item is sold out", nil)
	case errors.As(err, &reqErr):
		common.JSONError(w, http.StatusUnprocessableEntity, "SELECTION_REQUIRED", reqErr.Error(), map[string]any{"group": reqErr.GroupName})
	case errors.Is(err, cart.ErrUnknownGroup), errors.Is(err, cart.ErrUnknownOption):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, cart.ErrEmptyCart):
		common.JSONError(w, http.StatusConflict, "EMPTY_CART", "cart is empty", nil)
	case errors.Is(err, checkout.ErrBadState):
		common.JSONError(w, http.StatusConflict, "BAD_STATE", "operation not valid in current state", nil)
	case errors.Is(err, checkout.ErrInvalidTable):
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "table number must be 1-3 digits", nil)
	case errors.Is(err, checkout.ErrNegativeTip):
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "tip must be non-negative", nil)
	case errors.Is(err, payment.ErrDeclined):
		common.JSONError(w, http.StatusPaymentRequired, "PAYMENT_DECLINED", "card was declined", nil)
	case errors.Is(err, payment.ErrTimedOut):
		common.JSONError(w, http.StatusRequestTimeout, "PAYMENT_TIMEOUT", "payment was not completed in time", nil)
	case errors.Is(err, order.ErrPersist):
		// The charge went through but no order row exists. The journal has
		// the record; staff must reconcile before retrying the sale.
		common.JSONError(w, http.StatusInternalServerError, "ORDER_NOT_RECORDED", "payment captured but the order could not be recorded; see staff", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}
