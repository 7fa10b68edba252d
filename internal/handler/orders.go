package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/abba-pos/api/internal/enum"
	"github.com/abba-pos/api/internal/middleware"
	"github.com/abba-pos/api/internal/order"
	"github.com/abba-pos/api/internal/service"
	"github.com/abba-pos/api/internal/store"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (order.Snapshot, error)
	UpdateOrder(ctx context.Context, id uuid.UUID, req service.CreateOrderRequest) (order.Snapshot, error)
	SetStatus(ctx context.Context, id uuid.UUID, req service.SetStatusRequest) (order.Snapshot, error)
	MarkItem(ctx context.Context, orderID, itemID uuid.UUID, prepared, served *bool) (order.Snapshot, error)
	GetOrder(ctx context.Context, id uuid.UUID) (order.Snapshot, error)
	ListOrders(ctx context.Context, f store.ListFilter) ([]order.Snapshot, error)
	ListActiveOrders(ctx context.Context) ([]order.Snapshot, error)
}

// Broadcaster pushes order events to connected dashboards.
// Satisfied by *ws.Hub.
type Broadcaster interface {
	BroadcastSnapshot(channel, eventType string, payload any)
}

// NopBroadcaster drops all events, for tests and tooling.
type NopBroadcaster struct{}

func (NopBroadcaster) BroadcastSnapshot(string, string, any) {}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc OrderServicer
	hub Broadcaster
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer, hub Broadcaster) *OrderHandler {
	if hub == nil {
		hub = NopBroadcaster{}
	}
	return &OrderHandler{svc: svc, hub: hub}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Mounted at /api/orders.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/active", h.ListActive)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Patch("/{id}/status", h.UpdateStatus)
	r.Patch("/{id}/items/{itemID}", h.MarkItem)
}

// --- Request types ---

type orderItemRequest struct {
	MenuItemID string `json:"menu_item_id"`
	Quantity   int32  `json:"quantity"`
	Note       string `json:"note"`
}

type createOrderRequest struct {
	Identifier string             `json:"identifier"`
	RoomNumber string             `json:"room_number"`
	Items      []orderItemRequest `json:"items"`
}

type updateStatusRequest struct {
	Status     string          `json:"status"`
	TipAmount  decimal.Decimal `json:"tip_amount"`
	RoomNumber string          `json:"room_number"`
}

type markItemRequest struct {
	IsPrepared *bool `json:"is_prepared"`
	IsServed   *bool `json:"is_served"`
}

func toServiceRequest(req createOrderRequest, createdBy uuid.UUID) service.CreateOrderRequest {
	items := make([]service.OrderItemRequest, len(req.Items))
	for i, item := range req.Items {
		items[i] = service.OrderItemRequest{
			MenuItemID: item.MenuItemID,
			Quantity:   item.Quantity,
			Note:       item.Note,
		}
	}
	return service.CreateOrderRequest{
		Identifier: req.Identifier,
		RoomNumber: req.RoomNumber,
		CreatedBy:  createdBy,
		Items:      items,
	}
}

// --- Handlers ---

// Create handles POST /api/orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	snap, err := h.svc.CreateOrder(r.Context(), toServiceRequest(req, claims.UserID))
	if err != nil {
		h.writeOrderError(w, err, "create order")
		return
	}

	h.hub.BroadcastSnapshot(enum.ChannelOrders, enum.EventOrderCreated, snap)
	writeJSON(w, http.StatusCreated, snap)
}

// Update handles PUT /api/orders/{id}: replaces the unfulfilled lines of
// an order still in the kitchen.
func (h *OrderHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	snap, err := h.svc.UpdateOrder(r.Context(), orderID, toServiceRequest(req, claims.UserID))
	if err != nil {
		h.writeOrderError(w, err, "update order")
		return
	}

	h.hub.BroadcastSnapshot(enum.ChannelOrders, enum.EventOrderUpdated, snap)
	writeJSON(w, http.StatusOK, snap)
}

// List handles GET /api/orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := store.ListFilter{Limit: 20}

	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			filter.Limit = int32(v)
		}
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			filter.Offset = int32(v)
		}
	}
	if s := r.URL.Query().Get("status"); s != "" {
		status := order.Status(s)
		if !status.Valid() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status filter"})
			return
		}
		filter.Status = status
	}
	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid start_date format, use YYYY-MM-DD"})
			return
		}
		filter.From = t
	}
	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid end_date format, use YYYY-MM-DD"})
			return
		}
		filter.To = t.AddDate(0, 0, 1)
	}
	filter.Search = r.URL.Query().Get("search")

	orders, err := h.svc.ListOrders(r.Context(), filter)
	if err != nil {
		logrus.WithError(err).Error("list orders")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if orders == nil {
		orders = []order.Snapshot{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"orders": orders,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// ListActive handles GET /api/orders/active: the non-terminal orders a
// dashboard seeds its board from.
func (h *OrderHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	orders, err := h.svc.ListActiveOrders(r.Context())
	if err != nil {
		logrus.WithError(err).Error("list active orders")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if orders == nil {
		orders = []order.Snapshot{}
	}
	writeJSON(w, http.StatusOK, orders)
}

// Get handles GET /api/orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	snap, err := h.svc.GetOrder(r.Context(), orderID)
	if err != nil {
		h.writeOrderError(w, err, "get order")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// UpdateStatus handles PATCH /api/orders/{id}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	snap, err := h.svc.SetStatus(r.Context(), orderID, service.SetStatusRequest{
		Status:     order.Status(req.Status),
		TipAmount:  req.TipAmount,
		RoomNumber: req.RoomNumber,
	})
	if err != nil {
		h.writeOrderError(w, err, "update order status")
		return
	}

	h.broadcastStatus(snap)
	writeJSON(w, http.StatusOK, snap)
}

// MarkItem handles PATCH /api/orders/{id}/items/{itemID}: per-line
// fulfilment flags for the kitchen.
func (h *OrderHandler) MarkItem(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item ID"})
		return
	}

	var req markItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.IsPrepared == nil && req.IsServed == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "is_prepared or is_served is required"})
		return
	}

	snap, err := h.svc.MarkItem(r.Context(), orderID, itemID, req.IsPrepared, req.IsServed)
	if err != nil {
		h.writeOrderError(w, err, "mark order item")
		return
	}

	h.hub.BroadcastSnapshot(enum.ChannelOrders, enum.EventOrderUpdated, snap)
	writeJSON(w, http.StatusOK, snap)
}

// broadcastStatus pushes the right event for a transition. Reaching ready
// gets its own event type so dashboards can chime on it.
func (h *OrderHandler) broadcastStatus(snap order.Snapshot) {
	eventType := enum.EventOrderUpdated
	if snap.Status == order.StatusReady {
		eventType = enum.EventOrderReady
	}
	h.hub.BroadcastSnapshot(enum.ChannelOrders, eventType, snap)
}

// writeOrderError maps service errors to HTTP status codes.
func (h *OrderHandler) writeOrderError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, service.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
	case errors.Is(err, service.ErrStatusConflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case isOrderValidationError(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		logrus.WithError(err).Error(op)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

// isOrderValidationError reports whether err is a request problem rather
// than a server fault.
func isOrderValidationError(err error) bool {
	for _, target := range []error{
		service.ErrEmptyItems,
		service.ErrInvalidMenuItemID,
		service.ErrInvalidQuantity,
		service.ErrNoteTooLong,
		service.ErrMenuItemNotFound,
		service.ErrMenuItemUnavailable,
		service.ErrOrderNotEditable,
		service.ErrRoomRequired,
		service.ErrInvalidTip,
		order.ErrInvalidTransition,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
