package analytics

import (
	"net/http"
	"time"

	"github.com/orderhub-dev/backend-kiosk/internal/common"
	"github.com/orderhub-dev/backend-kiosk/internal/tenant"
)

// Handler exposes analytics read endpoints for the back office.
type Handler struct {
	Svc *Service
}

func (h *Handler) window(r *http.Request) (from, to time.Time, ok bool) {
	query := r.URL.Query()
	fromStr := query.Get("from")
	toStr := query.Get("to")
	now := h.Svc.now()
	if fromStr != "" && toStr != "" {
		var err error
		from, err = time.Parse(time.RFC3339, fromStr)
		if err != nil {
			return from, to, false
		}
		to, err = time.Parse(time.RFC3339, toStr)
		if err != nil {
			return from, to, false
		}
		return from, to, from.Before(to)
	}
	days := h.Svc.DefaultRange
	if days <= 0 {
		days = 30
	}
	if raw := query.Get("days"); raw != "" {
		if parsed := common.AtoiDefault(raw, days); parsed > 0 {
			days = parsed
		}
	}
	to = now
	from = to.AddDate(0, 0, -days)
	return from, to, true
}

// Sales handles GET /api/v1/admin/analytics/sales.
func (h *Handler) Sales(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant.FromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "tenant could not be resolved", nil)
		return
	}
	from, to, ok := h.window(r)
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid date range", nil)
		return
	}
	rows, err := h.Svc.SalesRange(r.Context(), tenantID, from, to)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_ERROR", err.Error(), nil)
		return
	}
	if rows == nil {
		rows = []SalesDay{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

// TopItems handles GET /api/v1/admin/analytics/top-items.
func (h *Handler) TopItems(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant.FromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "tenant could not be resolved", nil)
		return
	}
	from, to, ok := h.window(r)
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid date range", nil)
		return
	}
	q := r.URL.Query()
	limit := common.AtoiDefault(q.Get("limit"), 10)
	offset := common.AtoiDefault(q.Get("offset"), 0)
	rows, err := h.Svc.TopItems(r.Context(), tenantID, from, to, limit, offset)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_ERROR", err.Error(), nil)
		return
	}
	if rows == nil {
		rows = []TopItem{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

// Overview handles GET /api/v1/admin/analytics/overview.
func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant.FromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "tenant could not be resolved", nil)
		return
	}
	from, to, ok := h.window(r)
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid date range", nil)
		return
	}
	overview, err := h.Svc.OverviewRange(r.Context(), tenantID, from, to)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_ERROR", err.Error(), nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": overview})
}
