package order

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/orderhub-dev/backend-kiosk/internal/common"
	"github.com/orderhub-dev/backend-kiosk/internal/tenant"
)

// Handler exposes the order listing and status surface used by the kitchen
// display and the back office.
type Handler struct {
	store   *Store
	journal *Journal
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Store   *Store
	Journal *Journal
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{store: cfg.Store, journal: cfg.Journal}
}

// List handles GET /api/v1/admin/orders.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	params := ListParams{Status: Status(r.URL.Query().Get("status"))}
	if params.Status != "" && !params.Status.Valid() {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unknown status filter", nil)
		return
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil {
			params.Limit = limit
		}
	}
	orders, err := h.store.List(r.Context(), tenantID, params)
	if err != nil {
		writeError(w, err)
		return
	}
	if orders == nil {
		orders = []Order{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": orders})
}

// Get handles GET /api/v1/admin/orders/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	o, err := h.store.Get(r.Context(), tenantID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": o})
}

// UpdateStatus handles PATCH /api/v1/admin/orders/{id}/status.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	var req struct {
		Status Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	if !req.Status.Valid() {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "unknown status", map[string]any{"field": "status"})
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.store.UpdateStatus(r.Context(), tenantID, id, req.Status); err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"id": id, "status": req.Status}})
}

// Journal handles GET /api/v1/admin/orders/journal, the reconciliation list
// of charges that never became orders.
func (h *Handler) Journal(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	entries, err := h.journal.Pending(r.Context(), tenantID, 100)
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []JournalEntry{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": entries})
}

// ResolveJournal handles DELETE /api/v1/admin/orders/journal/{paymentRef}.
func (h *Handler) ResolveJournal(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	if err := h.journal.Resolve(r.Context(), tenantID, chi.URLParam(r, "paymentRef")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func requireTenant(w http.ResponseWriter, r *http.Request) (string, bool) {
	tenantID, ok := tenant.FromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "tenant could not be resolved", nil)
		return "", false
	}
	return tenantID, true
}

func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}
