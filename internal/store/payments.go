package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentComponent is one part of a mixed payment.
type PaymentComponent struct {
	Method string          `json:"method"`
	Amount decimal.Decimal `json:"amount"`
}

// Payment is a stored payment row.
type Payment struct {
	ID         uuid.UUID          `json:"id"`
	OrderID    uuid.UUID          `json:"order_id"`
	Method     string             `json:"method"`
	Amount     decimal.Decimal    `json:"amount"`
	TipAmount  decimal.Decimal    `json:"tip_amount"`
	Components []PaymentComponent `json:"components,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
}

// CreatePaymentParams carries a payment to persist. Components is only
// set for mixed payments.
type CreatePaymentParams struct {
	OrderID    uuid.UUID
	Method     string
	Amount     decimal.Decimal
	TipAmount  decimal.Decimal
	Components []PaymentComponent
	ReceivedBy uuid.UUID
}

// CreatePayment inserts a payment row.
func (s *Store) CreatePayment(ctx context.Context, p CreatePaymentParams) (Payment, error) {
	var pay Payment
	err := s.db.QueryRow(ctx, `
		INSERT INTO payments (order_id, method, amount, tip_amount, components, received_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, order_id, method, amount, tip_amount, created_at`,
		p.OrderID, p.Method, p.Amount, p.TipAmount, componentsJSON(p.Components), nullableUUID(p.ReceivedBy),
	).Scan(&pay.ID, &pay.OrderID, &pay.Method, &pay.Amount, &pay.TipAmount, &pay.CreatedAt)
	if err != nil {
		return Payment{}, mapError(err)
	}
	pay.Components = p.Components
	return pay, nil
}

// ListPaymentsByOrder returns the payments recorded against one order,
// oldest first.
func (s *Store) ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]Payment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, order_id, method, amount, tip_amount, COALESCE(components, 'null'::jsonb), created_at
		FROM payments
		WHERE order_id = $1
		ORDER BY created_at ASC`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		var pay Payment
		if err := rows.Scan(&pay.ID, &pay.OrderID, &pay.Method, &pay.Amount, &pay.TipAmount, &pay.Components, &pay.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, pay)
	}
	return payments, rows.Err()
}

// SumPaymentsForOrder totals what has been received against an order.
func (s *Store) SumPaymentsForOrder(ctx context.Context, orderID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := s.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM payments WHERE order_id = $1`, orderID,
	).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum payments: %w", err)
	}
	return sum, nil
}

// RoomCharge aggregates the outstanding room-billed orders for one room.
type RoomCharge struct {
	RoomNumber string          `json:"room_number"`
	OrderCount int             `json:"order_count"`
	Total      decimal.Decimal `json:"total"`
	OrderIDs   []uuid.UUID     `json:"order_ids"`
}

// ListRoomCharges returns, per room, the charged_to_room orders that have
// no payment recorded yet.
func (s *Store) ListRoomCharges(ctx context.Context) ([]RoomCharge, error) {
	rows, err := s.db.Query(ctx, `
		SELECT o.room_number, COUNT(*), SUM(o.total), ARRAY_AGG(o.id ORDER BY o.created_at)
		FROM orders o
		WHERE o.status = 'charged_to_room'
		  AND NOT EXISTS (SELECT 1 FROM payments p WHERE p.order_id = o.id)
		GROUP BY o.room_number
		ORDER BY o.room_number`)
	if err != nil {
		return nil, fmt.Errorf("list room charges: %w", err)
	}
	defer rows.Close()

	var charges []RoomCharge
	for rows.Next() {
		var rc RoomCharge
		if err := rows.Scan(&rc.RoomNumber, &rc.OrderCount, &rc.Total, &rc.OrderIDs); err != nil {
			return nil, err
		}
		charges = append(charges, rc)
	}
	return charges, rows.Err()
}

// SalesRow is one day of the sales report.
type SalesRow struct {
	Day        time.Time       `json:"day"`
	OrderCount int             `json:"order_count"`
	Total      decimal.Decimal `json:"total"`
	TipTotal   decimal.Decimal `json:"tip_total"`
}

// SalesByDay aggregates closed orders per calendar day in [from, to).
func (s *Store) SalesByDay(ctx context.Context, from, to time.Time) ([]SalesRow, error) {
	rows, err := s.db.Query(ctx, `
		SELECT created_at::DATE, COUNT(*), SUM(total), SUM(tip_amount)
		FROM orders
		WHERE status IN ('paid', 'charged_to_room')
		  AND created_at >= $1 AND created_at < $2
		GROUP BY created_at::DATE
		ORDER BY created_at::DATE`, from, to)
	if err != nil {
		return nil, fmt.Errorf("sales by day: %w", err)
	}
	defer rows.Close()

	var report []SalesRow
	for rows.Next() {
		var row SalesRow
		if err := rows.Scan(&row.Day, &row.OrderCount, &row.Total, &row.TipTotal); err != nil {
			return nil, err
		}
		report = append(report, row)
	}
	return report, rows.Err()
}

// MethodRow is one payment method's share of the takings.
type MethodRow struct {
	Method string          `json:"method"`
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// PaymentMethodTotals aggregates payments by method in [from, to).
func (s *Store) PaymentMethodTotals(ctx context.Context, from, to time.Time) ([]MethodRow, error) {
	rows, err := s.db.Query(ctx, `
		SELECT method, COUNT(*), SUM(amount)
		FROM payments
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY method
		ORDER BY SUM(amount) DESC`, from, to)
	if err != nil {
		return nil, fmt.Errorf("payment method totals: %w", err)
	}
	defer rows.Close()

	var report []MethodRow
	for rows.Next() {
		var row MethodRow
		if err := rows.Scan(&row.Method, &row.Count, &row.Amount); err != nil {
			return nil, err
		}
		report = append(report, row)
	}
	return report, rows.Err()
}

func componentsJSON(components []PaymentComponent) any {
	if len(components) == 0 {
		return nil
	}
	return components
}
