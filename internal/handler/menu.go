package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/abba-pos/api/internal/store"
)

// MenuStore defines the database methods needed by menu handlers.
// Satisfied by *store.Store; narrow interface for testability.
type MenuStore interface {
	CreateMenuItem(ctx context.Context, p store.MenuItemParams) (store.MenuItem, error)
	UpdateMenuItem(ctx context.Context, id uuid.UUID, p store.MenuItemParams) (store.MenuItem, error)
	DeleteMenuItem(ctx context.Context, id uuid.UUID) error
	GetMenuItem(ctx context.Context, id uuid.UUID) (store.MenuItem, error)
	ListMenuItems(ctx context.Context, onlyAvailable bool) ([]store.MenuItem, error)
}

// MenuHandler handles menu endpoints.
type MenuHandler struct {
	store MenuStore
}

// NewMenuHandler creates a new MenuHandler.
func NewMenuHandler(st MenuStore) *MenuHandler {
	return &MenuHandler{store: st}
}

// RegisterRoutes registers menu endpoints on the given Chi router.
// Mounted at /api/menu. Reads are open to all staff; writes are limited
// to admins at the router level.
func (h *MenuHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
}

// RegisterAdminRoutes registers the mutating menu endpoints.
func (h *MenuHandler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

type menuItemRequest struct {
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	IsAvailable *bool           `json:"is_available"`
}

func (req menuItemRequest) validate() (store.MenuItemParams, string) {
	if req.Name == "" {
		return store.MenuItemParams{}, "name is required"
	}
	if req.Price.IsNegative() {
		return store.MenuItemParams{}, "price must be >= 0"
	}
	available := true
	if req.IsAvailable != nil {
		available = *req.IsAvailable
	}
	return store.MenuItemParams{
		Name:        req.Name,
		Category:    req.Category,
		Price:       req.Price,
		IsAvailable: available,
	}, ""
}

// List handles GET /api/menu. By default only available items are
// returned; ?all=true includes retired ones.
func (h *MenuHandler) List(w http.ResponseWriter, r *http.Request) {
	onlyAvailable := r.URL.Query().Get("all") != "true"

	items, err := h.store.ListMenuItems(r.Context(), onlyAvailable)
	if err != nil {
		logrus.WithError(err).Error("list menu items")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if items == nil {
		items = []store.MenuItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

// Get handles GET /api/menu/{id}.
func (h *MenuHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu item ID"})
		return
	}

	item, err := h.store.GetMenuItem(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
			return
		}
		logrus.WithError(err).Error("get menu item")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// Create handles POST /api/menu.
func (h *MenuHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req menuItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	params, msg := req.validate()
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	item, err := h.store.CreateMenuItem(r.Context(), params)
	if err != nil {
		logrus.WithError(err).Error("create menu item")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// Update handles PUT /api/menu/{id}.
func (h *MenuHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu item ID"})
		return
	}

	var req menuItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	params, msg := req.validate()
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	item, err := h.store.UpdateMenuItem(r.Context(), id, params)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
			return
		}
		logrus.WithError(err).Error("update menu item")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// Delete handles DELETE /api/menu/{id}: retires the item.
func (h *MenuHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu item ID"})
		return
	}

	if err := h.store.DeleteMenuItem(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
			return
		}
		logrus.WithError(err).Error("delete menu item")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
