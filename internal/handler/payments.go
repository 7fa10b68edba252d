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

	"github.com/abba-pos/api/internal/enum"
	"github.com/abba-pos/api/internal/middleware"
	"github.com/abba-pos/api/internal/service"
	"github.com/abba-pos/api/internal/store"
)

// PaymentServicer defines the service methods needed by payment handlers.
// Satisfied by *service.PaymentService.
type PaymentServicer interface {
	RecordPayment(ctx context.Context, req service.RecordPaymentRequest) (*service.PaymentResult, error)
	ListPayments(ctx context.Context, orderID uuid.UUID) ([]store.Payment, error)
}

// PaymentHandler handles payment endpoints.
type PaymentHandler struct {
	svc PaymentServicer
	hub Broadcaster
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(svc PaymentServicer, hub Broadcaster) *PaymentHandler {
	if hub == nil {
		hub = NopBroadcaster{}
	}
	return &PaymentHandler{svc: svc, hub: hub}
}

// RegisterRoutes registers payment endpoints on the given Chi router.
// Mounted at /api/orders/{id}/payments.
func (h *PaymentHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
}

// --- Request types ---

type paymentComponentRequest struct {
	Method string          `json:"method"`
	Amount decimal.Decimal `json:"amount"`
}

type createPaymentRequest struct {
	Method       string                    `json:"method"`
	Amount       decimal.Decimal           `json:"amount"`
	TipAmount    decimal.Decimal           `json:"tip_amount"`
	CashReceived decimal.Decimal           `json:"cash_received"`
	Components   []paymentComponentRequest `json:"components"`
}

// --- Handlers ---

// Create handles POST /api/orders/{id}/payments.
func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
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

	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Method == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "method is required"})
		return
	}

	components := make([]store.PaymentComponent, len(req.Components))
	for i, c := range req.Components {
		components[i] = store.PaymentComponent{Method: c.Method, Amount: c.Amount}
	}

	result, err := h.svc.RecordPayment(r.Context(), service.RecordPaymentRequest{
		OrderID:      orderID,
		Method:       req.Method,
		Amount:       req.Amount,
		TipAmount:    req.TipAmount,
		CashReceived: req.CashReceived,
		Components:   components,
		ReceivedBy:   claims.UserID,
	})
	if err != nil {
		h.writePaymentError(w, err, "record payment")
		return
	}

	h.hub.BroadcastSnapshot(enum.ChannelOrders, enum.EventOrderUpdated, result.Order)
	writeJSON(w, http.StatusCreated, result)
}

// List handles GET /api/orders/{id}/payments.
func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	payments, err := h.svc.ListPayments(r.Context(), orderID)
	if err != nil {
		logrus.WithError(err).Error("list payments")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if payments == nil {
		payments = []store.Payment{}
	}
	writeJSON(w, http.StatusOK, payments)
}

func (h *PaymentHandler) writePaymentError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, service.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
	case errors.Is(err, service.ErrStatusConflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case isPaymentValidationError(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		logrus.WithError(err).Error(op)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func isPaymentValidationError(err error) bool {
	for _, target := range []error{
		service.ErrInvalidPaymentMethod,
		service.ErrInvalidAmount,
		service.ErrComponentsRequired,
		service.ErrComponentsMismatch,
		service.ErrOrderNotPayable,
		service.ErrInsufficientCash,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
