package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/abba-pos/api/internal/middleware"
	"github.com/abba-pos/api/internal/service"
	"github.com/abba-pos/api/internal/store"
)

// RoomServicer defines the service methods needed by room-billing handlers.
// Satisfied by *service.PaymentService.
type RoomServicer interface {
	ListRoomCharges(ctx context.Context) ([]store.RoomCharge, error)
	SettleRoom(ctx context.Context, roomNumber, method string, receivedBy uuid.UUID) (*service.RoomSettlement, error)
}

// RoomHandler handles hotel room billing endpoints.
type RoomHandler struct {
	svc RoomServicer
}

// NewRoomHandler creates a new RoomHandler.
func NewRoomHandler(svc RoomServicer) *RoomHandler {
	return &RoomHandler{svc: svc}
}

// RegisterRoutes registers room endpoints on the given Chi router.
// Mounted at /api/rooms.
func (h *RoomHandler) RegisterRoutes(r chi.Router) {
	r.Get("/charges", h.ListCharges)
	r.Post("/{room}/settle", h.Settle)
}

type settleRoomRequest struct {
	Method string `json:"method"`
}

// ListCharges handles GET /api/rooms/charges: outstanding room bills
// grouped by room for the reception desk.
func (h *RoomHandler) ListCharges(w http.ResponseWriter, r *http.Request) {
	charges, err := h.svc.ListRoomCharges(r.Context())
	if err != nil {
		logrus.WithError(err).Error("list room charges")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if charges == nil {
		charges = []store.RoomCharge{}
	}
	writeJSON(w, http.StatusOK, charges)
}

// Settle handles POST /api/rooms/{room}/settle: consolidates every
// outstanding charge for the room into payments at checkout.
func (h *RoomHandler) Settle(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	roomNumber := chi.URLParam(r, "room")
	if roomNumber == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "room number is required"})
		return
	}

	var req settleRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Method == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "method is required"})
		return
	}

	settlement, err := h.svc.SettleRoom(r.Context(), roomNumber, req.Method, claims.UserID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNothingToSettle):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrInvalidPaymentMethod):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		default:
			logrus.WithError(err).Error("settle room")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, settlement)
}
