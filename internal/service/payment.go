package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/abba-pos/api/internal/enum"
	"github.com/abba-pos/api/internal/order"
	"github.com/abba-pos/api/internal/store"
)

// Errors returned by the payment service.
var (
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrInvalidAmount        = errors.New("amount must be > 0")
	ErrComponentsRequired   = errors.New("mixed payments require components")
	ErrComponentsMismatch   = errors.New("component amounts must sum to the payment amount")
	ErrOrderNotPayable      = errors.New("order cannot be paid in its current status")
	ErrInsufficientCash     = errors.New("cash received is less than the amount due")
	ErrNothingToSettle      = errors.New("no outstanding charges for this room")
)

// PaymentStore defines the DB methods needed by the payment service.
// Satisfied by *store.Store.
type PaymentStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (order.Snapshot, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, from, to order.Status, tip decimal.Decimal, roomNumber string) (order.Snapshot, error)
	CreatePayment(ctx context.Context, p store.CreatePaymentParams) (store.Payment, error)
	ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]store.Payment, error)
	SumPaymentsForOrder(ctx context.Context, orderID uuid.UUID) (decimal.Decimal, error)
	ListRoomCharges(ctx context.Context) ([]store.RoomCharge, error)
}

// RecordPaymentRequest is the validated input for taking a payment.
type RecordPaymentRequest struct {
	OrderID      uuid.UUID
	Method       string
	Amount       decimal.Decimal
	TipAmount    decimal.Decimal
	CashReceived decimal.Decimal
	Components   []store.PaymentComponent
	ReceivedBy   uuid.UUID
}

// PaymentResult is the outcome of a recorded payment.
type PaymentResult struct {
	Payment store.Payment   `json:"payment"`
	Change  decimal.Decimal `json:"change"`
	Order   order.Snapshot  `json:"order"`
}

// RoomSettlement summarizes a settled room bill.
type RoomSettlement struct {
	RoomNumber string          `json:"room_number"`
	OrderCount int             `json:"order_count"`
	Total      decimal.Decimal `json:"total"`
	Payments   []store.Payment `json:"payments"`
}

// PaymentService handles payment business logic.
type PaymentService struct {
	store PaymentStore
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(st PaymentStore) *PaymentService {
	return &PaymentService{store: st}
}

func baseMethod(method string) bool {
	switch method {
	case enum.PaymentMethodCash, enum.PaymentMethodCard, enum.PaymentMethodTransfer, enum.PaymentMethodCheck:
		return true
	}
	return false
}

// RecordPayment takes a payment against a served order. When the payments
// on the order cover its total, the order closes as paid. For cash, the
// change due is computed from CashReceived.
func (s *PaymentService) RecordPayment(ctx context.Context, req RecordPaymentRequest) (*PaymentResult, error) {
	if !baseMethod(req.Method) && req.Method != enum.PaymentMethodMixed {
		return nil, ErrInvalidPaymentMethod
	}
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	if req.Method == enum.PaymentMethodMixed {
		if len(req.Components) == 0 {
			return nil, ErrComponentsRequired
		}
		sum := decimal.Zero
		for i, c := range req.Components {
			if !baseMethod(c.Method) {
				return nil, fmt.Errorf("components[%d]: %w", i, ErrInvalidPaymentMethod)
			}
			if !c.Amount.IsPositive() {
				return nil, fmt.Errorf("components[%d]: %w", i, ErrInvalidAmount)
			}
			sum = sum.Add(c.Amount)
		}
		if !sum.Equal(req.Amount) {
			return nil, ErrComponentsMismatch
		}
	}

	snap, err := s.store.GetOrder(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if snap.Status != order.StatusServed {
		return nil, ErrOrderNotPayable
	}

	change := decimal.Zero
	if req.Method == enum.PaymentMethodCash && !req.CashReceived.IsZero() {
		if req.CashReceived.LessThan(req.Amount) {
			return nil, ErrInsufficientCash
		}
		change = req.CashReceived.Sub(req.Amount)
	}

	payment, err := s.store.CreatePayment(ctx, store.CreatePaymentParams{
		OrderID:    req.OrderID,
		Method:     req.Method,
		Amount:     req.Amount,
		TipAmount:  req.TipAmount,
		Components: req.Components,
		ReceivedBy: req.ReceivedBy,
	})
	if err != nil {
		return nil, err
	}

	// Close the order once payments cover the bill. Partial payments
	// leave it served.
	paid, err := s.store.SumPaymentsForOrder(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if paid.GreaterThanOrEqual(snap.Total) {
		snap, err = s.store.UpdateOrderStatus(ctx, req.OrderID, order.StatusServed, order.StatusPaid, req.TipAmount, "")
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, ErrStatusConflict
			}
			return nil, err
		}
	}

	return &PaymentResult{Payment: payment, Change: change, Order: snap}, nil
}

// ListPayments returns the payments recorded against one order.
func (s *PaymentService) ListPayments(ctx context.Context, orderID uuid.UUID) ([]store.Payment, error) {
	return s.store.ListPaymentsByOrder(ctx, orderID)
}

// ListRoomCharges returns the outstanding room bills grouped by room.
func (s *PaymentService) ListRoomCharges(ctx context.Context) ([]store.RoomCharge, error) {
	return s.store.ListRoomCharges(ctx)
}

// SettleRoom records one payment per outstanding charged_to_room order
// for the room, consolidating its bill. The orders keep their
// charged_to_room status; the payment rows mark them settled.
func (s *PaymentService) SettleRoom(ctx context.Context, roomNumber, method string, receivedBy uuid.UUID) (*RoomSettlement, error) {
	if !baseMethod(method) {
		return nil, ErrInvalidPaymentMethod
	}

	charges, err := s.store.ListRoomCharges(ctx)
	if err != nil {
		return nil, err
	}
	var charge *store.RoomCharge
	for i := range charges {
		if charges[i].RoomNumber == roomNumber {
			charge = &charges[i]
			break
		}
	}
	if charge == nil {
		return nil, ErrNothingToSettle
	}

	settlement := &RoomSettlement{
		RoomNumber: roomNumber,
		OrderCount: charge.OrderCount,
		Total:      charge.Total,
	}
	for _, orderID := range charge.OrderIDs {
		snap, err := s.store.GetOrder(ctx, orderID)
		if err != nil {
			return nil, err
		}
		payment, err := s.store.CreatePayment(ctx, store.CreatePaymentParams{
			OrderID:    orderID,
			Method:     method,
			Amount:     snap.Total,
			ReceivedBy: receivedBy,
		})
		if err != nil {
			return nil, err
		}
		settlement.Payments = append(settlement.Payments, payment)
	}
	return settlement, nil
}
