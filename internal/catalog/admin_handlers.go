package catalog

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/orderhub-dev/backend-kiosk/internal/common"
	"github.com/orderhub-dev/backend-kiosk/internal/pricing"
	"github.com/orderhub-dev/backend-kiosk/internal/tenant"
)

// AdminHandler exposes the back-office catalog CRUD surface. Every write
// invalidates the tenant's cached menu snapshot.
type AdminHandler struct {
	store    *Store
	service  *Service
	validate *validator.Validate
}

// AdminHandlerConfig configures the AdminHandler dependencies.
type AdminHandlerConfig struct {
	Store    *Store
	Service  *Service
	Validate *validator.Validate
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(cfg AdminHandlerConfig) *AdminHandler {
	v := cfg.Validate
	if v == nil {
		v = validator.New()
	}
	return &AdminHandler{store: cfg.Store, service: cfg.Service, validate: v}
}

type categoryRequest struct {
	Name      string `json:"name" validate:"required,max=120"`
	SortOrder int    `json:"sortOrder" validate:"gte=0"`
}

type itemRequest struct {
	Name        string        `json:"name" validate:"required,max=200"`
	Price       pricing.Money `json:"price" validate:"gte=0"`
	Description string        `json:"description" validate:"max=2000"`
	ImageURL    string        `json:"imageUrl" validate:"omitempty,url"`
	CategoryID  string        `json:"categoryId" validate:"required,uuid4"`
	SoldOut     bool          `json:"soldOut"`
	SortOrder   int           `json:"sortOrder" validate:"gte=0"`
}

type groupRequest struct {
	Name         string `json:"name" validate:"required,max=120"`
	IsRequired   bool   `json:"isRequired"`
	MinSelection int    `json:"minSelection" validate:"gte=0"`
	MaxSelection int    `json:"maxSelection" validate:"gte=0"`
}

type optionRequest struct {
	Name      string        `json:"name" validate:"required,max=120"`
	Price     pricing.Money `json:"price" validate:"gte=0"`
	SortOrder int           `json:"sortOrder" validate:"gte=0"`
}

type soldOutRequest struct {
	SoldOut bool `json:"soldOut"`
}

type attachRequest struct {
	GroupID string `json:"groupId" validate:"required,uuid4"`
}

// CreateCategory handles POST /api/v1/admin/categories.
func (h *AdminHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	tenantID, req, ok := decode[categoryRequest](h, w, r)
	if !ok {
		return
	}
	created, err := h.store.CreateCategory(r.Context(), tenantID, CategoryParams{Name: req.Name, SortOrder: req.SortOrder})
	if err != nil {
		writeError(w, err)
		return
	}
	h.service.Invalidate(r.Context(), tenantID)
	common.JSON(w, http.StatusCreated, map[string]any{"data": created})
}

// UpdateCategory handles PUT /api/v1/admin/categories/{id}.
func (h *AdminHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	tenantID, req, ok := decode[categoryRequest](h, w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.store.UpdateCategory(r.Context(), tenantID, id, CategoryParams{Name: req.Name, SortOrder: req.SortOrder}); err != nil {
		writeError(w, err)
		return
	}
	h.service.Invalidate(r.Context(), tenantID)
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]string{"id": id}})
}

// DeleteCategory handles DELETE /api/v1/admin/categories/{id}.
func (h *AdminHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteCategory(r.Context(), tenantID, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	h.service.Invalidate(r.Context(), tenantID)
	w.WriteHeader(http.StatusNoContent)
}

// CreateItem handles POST /api/v1/admin/items.
func (h *AdminHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	tenantID, req, ok := decode[itemRequest](h, w, r)
	if !ok {
		return
	}
	created, err := h.store.CreateItem(r.Context(), tenantID, itemParamsFrom(req))
	if err != nil {
		writeError(w, err)
		return
	}
	h.service.Invalidate(r.Context(), tenantID)
	common.JSON(w, http.StatusCreated, map[string]any{"data": created})
}

// UpdateItem handles PUT /api/v1/admin/items/{id}.
func (h *AdminHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	tenantID, req, ok := decode[itemRequest](h, w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.store.UpdateItem(r.Context(), tenantID, id, itemParamsFrom(req)); err != nil {
		writeError(w, err)
		return
	}
	h.service.Invalidate(r.Context(), tenantID)
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]string{"id": id}})
}

// SetSoldOut handles PATCH /api/v1/admin/items/{id}/sold-out. The kiosk picks
// the flag up on its next menu load; carts already holding the item keep it.
func (h *AdminHandler) SetSoldOut(w http.ResponseWriter, r *http.Request) {
	tenantID, req, ok := decode[soldOutRequest](h, w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.store.SetSoldOut(r.Context(), tenantID, id, req.SoldOut); err != nil {
		writeError(w, err)
		return
	}
	h.service.Invalidate(r.Context(), tenantID)
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"id": id, "soldOut": req.SoldOut}})
}

// DeleteItem handles DELETE /api/v1/admin/items/{id}.
func (h *AdminHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteItem(r.Context(), tenantID, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	h.service.Invalidate(r.Context(), tenantID)
	w.WriteHeader(http.StatusNoContent)
}

// CreateGroup handles POST /api/v1/admin/modifier-groups.
func (h *AdminHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	tenantID, req, ok := decode[groupRequest](h, w, r)
	if !ok {
		return
	}
	if req.IsRequired && req.MinSelection < 1 {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION",
			"required groups need minSelection of at least 1", map[string]any{"field": "minSelection"})
		return
	}
	created, err := h.store.CreateGroup(r.Context(), tenantID, groupParamsFrom(req))
	if err != nil {
		writeError(w, err)
		return
	}
	h.service.Invalidate(r.Context(), tenantID)
	common.JSON(w, http.StatusCreated, map[string]any{"data": created})
}

// UpdateGroup handles PUT /api/v1/admin/modifier-groups/{id}.
func (h *AdminHandler) UpdateGroup(w http.ResponseWriter, r *http.Request) {
	tenantID, req, ok := decode[groupRequest](h, w, r)
	if !ok {
		return
	}
	if req.IsRequired && req.MinSelection < 1 {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION",
			"required groups need minSelection of at least 1", map[string]any{"field": "minSelection"})
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.store.UpdateGroup(r.Context(), tenantID, id, groupParamsFrom(req)); err != nil {
		writeError(w, err)
		return
	}
	h.service.Invalidate(r.Context(), tenantID)
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]string{"id": id}})
}

// DeleteGroup handles DELETE /api/v1/admin/modifier-groups/{id}.
func (h *AdminHandler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteGroup(r.Context(), tenantID, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	h.service.Invalidate(r.Context(), tenantID)
	w.WriteHeader(http.StatusNoContent)
}

// CreateOption handles POST /api/v1/admin/modifier-groups/{id}/options.
func (h *AdminHandler) CreateOption(w http.ResponseWriter, r *http.Request) {
	tenantID, req, ok := decode[optionRequest](h, w, r)
	if !ok {
		return
	}
	groupID := chi.URLParam(r, "id")
	created, err := h.store.CreateOption(r.Context(), tenantID, groupID, OptionParams{Name: req.Name, Price: req.Price, SortOrder: req.SortOrder})
	if err != nil {
		writeError(w, err)
		return
	}
	h.service.Invalidate(r.Context(), tenantID)
	common.JSON(w, http.StatusCreated, map[string]any{"data": created})
}

// UpdateOption handles PUT /api/v1/admin/modifier-options/{id}.
func (h *AdminHandler) UpdateOption(w http.ResponseWriter, r *http.Request) {
	tenantID, req, ok := decode[optionRequest](h, w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.store.UpdateOption(r.Context(), tenantID, id, OptionParams{Name: req.Name, Price: req.Price, SortOrder: req.SortOrder}); err != nil {
		writeError(w, err)
		return
	}
	h.service.Invalidate(r.Context(), tenantID)
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]string{"id": id}})
}

// DeleteOption handles DELETE /api/v1/admin/modifier-options/{id}.
func (h *AdminHandler) DeleteOption(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteOption(r.Context(), tenantID, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	h.service.Invalidate(r.Context(), tenantID)
	w.WriteHeader(http.StatusNoContent)
}

// AttachGroup handles POST /api/v1/admin/items/{id}/modifier-groups.
func (h *AdminHandler) AttachGroup(w http.ResponseWriter, r *http.Request) {
	tenantID, req, ok := decode[attachRequest](h, w, r)
	if !ok {
		return
	}
	itemID := chi.URLParam(r, "id")
	if err := h.store.AttachGroup(r.Context(), tenantID, itemID, req.GroupID); err != nil {
		writeError(w, err)
		return
	}
	h.service.Invalidate(r.Context(), tenantID)
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]string{"itemId": itemID, "groupId": req.GroupID}})
}

// DetachGroup handles DELETE /api/v1/admin/items/{id}/modifier-groups/{groupId}.
func (h *AdminHandler) DetachGroup(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	if err := h.store.DetachGroup(r.Context(), tenantID, chi.URLParam(r, "id"), chi.URLParam(r, "groupId")); err != nil {
		writeError(w, err)
		return
	}
	h.service.Invalidate(r.Context(), tenantID)
	w.WriteHeader(http.StatusNoContent)
}

func itemParamsFrom(req itemRequest) ItemParams {
	return ItemParams{
		Name:        req.Name,
		Price:       req.Price,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		CategoryID:  req.CategoryID,
		SoldOut:     req.SoldOut,
		SortOrder:   req.SortOrder,
	}
}

func groupParamsFrom(req groupRequest) GroupParams {
	return GroupParams{
		Name:         req.Name,
		IsRequired:   req.IsRequired,
		MinSelection: req.MinSelection,
		MaxSelection: req.MaxSelection,
	}
}

func requireTenant(w http.ResponseWriter, r *http.Request) (string, bool) {
	tenantID, ok := tenant.FromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "tenant could not be resolved", nil)
		return "", false
	}
	return tenantID, true
}

func decode[T any](h *AdminHandler, w http.ResponseWriter, r *http.Request) (string, T, bool) {
	var req T
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return "", req, false
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return "", req, false
	}
	if err := h.validate.Struct(req); err != nil {
		var fields []map[string]string
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				fields = append(fields, map[string]string{"field": fe.Field(), "rule": fe.Tag()})
			}
		}
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "request failed validation", fields)
		return "", req, false
	}
	return tenantID, req, true
}
