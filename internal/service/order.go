package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/abba-pos/api/internal/order"
	"github.com/abba-pos/api/internal/store"
)

const maxOrderNumberRetries = 3

// Errors returned by the order service.
var (
	ErrEmptyItems          = errors.New("items are required")
	ErrInvalidMenuItemID   = errors.New("invalid menu_item_id")
	ErrInvalidQuantity     = errors.New("quantity must be > 0")
	ErrNoteTooLong         = errors.New("note too long")
	ErrMenuItemNotFound    = errors.New("menu item not found")
	ErrMenuItemUnavailable = errors.New("menu item not available")
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderNotEditable    = errors.New("order can no longer be edited")
	ErrStatusConflict      = errors.New("order status changed concurrently")
	ErrRoomRequired        = errors.New("room_number is required to charge to room")
	ErrInvalidTip          = errors.New("invalid tip_amount")
)

// OrderStore defines the DB methods needed by the order service.
// Satisfied by *store.Store.
type OrderStore interface {
	CountOrdersToday(ctx context.Context) (int, error)
	CreateOrder(ctx context.Context, p store.CreateOrderParams) (order.Snapshot, error)
	GetOrder(ctx context.Context, id uuid.UUID) (order.Snapshot, error)
	ListOrders(ctx context.Context, f store.ListFilter) ([]order.Snapshot, error)
	ListActiveOrders(ctx context.Context) ([]order.Snapshot, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, from, to order.Status, tip decimal.Decimal, roomNumber string) (order.Snapshot, error)
	ReplaceEditableItems(ctx context.Context, id uuid.UUID, items []store.ItemParams) (order.Snapshot, error)
	SetItemFlags(ctx context.Context, orderID, itemID uuid.UUID, prepared, served *bool) (order.Snapshot, error)
	GetMenuItem(ctx context.Context, id uuid.UUID) (store.MenuItem, error)
}

// CreateOrderRequest is the validated input for creating an order.
type CreateOrderRequest struct {
	Identifier string
	RoomNumber string
	CreatedBy  uuid.UUID
	Items      []OrderItemRequest
}

// OrderItemRequest is a single line in a create or update request.
type OrderItemRequest struct {
	MenuItemID string
	Quantity   int32
	Note       string
}

// SetStatusRequest asks for a lifecycle transition.
type SetStatusRequest struct {
	Status     order.Status
	TipAmount  decimal.Decimal
	RoomNumber string
}

// OrderService handles order business logic.
type OrderService struct {
	store OrderStore
}

// NewOrderService creates a new OrderService.
func NewOrderService(st OrderStore) *OrderService {
	return &OrderService{store: st}
}

// CreateOrder validates the request, prices the lines from the menu, and
// creates the order. Retries up to maxOrderNumberRetries times when two
// concurrent creations derive the same order number.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (order.Snapshot, error) {
	if len(req.Items) == 0 {
		return order.Snapshot{}, ErrEmptyItems
	}

	identifier := req.Identifier
	if identifier == "" {
		identifier = "Barra"
	}

	items, subtotal, err := s.priceItems(ctx, req.Items)
	if err != nil {
		return order.Snapshot{}, err
	}

	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		count, err := s.store.CountOrdersToday(ctx)
		if err != nil {
			return order.Snapshot{}, err
		}
		number := orderNumber(time.Now(), count+1)

		snap, err := s.store.CreateOrder(ctx, store.CreateOrderParams{
			Number:     number,
			Identifier: identifier,
			RoomNumber: req.RoomNumber,
			CreatedBy:  req.CreatedBy,
			Items:      items,
			Subtotal:   subtotal,
			Total:      subtotal,
		})
		if err == nil {
			return snap, nil
		}
		if errors.Is(err, store.ErrUniqueViolation) {
			lastErr = err
			continue
		}
		return order.Snapshot{}, err
	}
	return order.Snapshot{}, lastErr
}

// orderNumber derives the human order number: date plus a per-day sequence.
func orderNumber(now time.Time, seq int) string {
	return fmt.Sprintf("ABB-%s-%03d", now.Format("20060102"), seq)
}

// priceItems validates request lines and prices them from the menu.
func (s *OrderService) priceItems(ctx context.Context, reqItems []OrderItemRequest) ([]store.ItemParams, decimal.Decimal, error) {
	items := make([]store.ItemParams, 0, len(reqItems))
	subtotal := decimal.Zero

	for i, ri := range reqItems {
		menuItemID, err := uuid.Parse(ri.MenuItemID)
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("items[%d]: %w", i, ErrInvalidMenuItemID)
		}
		if ri.Quantity <= 0 {
			return nil, decimal.Zero, fmt.Errorf("items[%d]: %w", i, ErrInvalidQuantity)
		}
		if len(ri.Note) > order.MaxNoteLength {
			return nil, decimal.Zero, fmt.Errorf("items[%d]: %w", i, ErrNoteTooLong)
		}

		mi, err := s.store.GetMenuItem(ctx, menuItemID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, decimal.Zero, fmt.Errorf("items[%d]: %w", i, ErrMenuItemNotFound)
			}
			return nil, decimal.Zero, err
		}
		if !mi.IsAvailable {
			return nil, decimal.Zero, fmt.Errorf("items[%d]: %w", i, ErrMenuItemUnavailable)
		}

		items = append(items, store.ItemParams{
			MenuItemID: mi.ID,
			Name:       mi.Name,
			Price:      mi.Price,
			Quantity:   ri.Quantity,
			Note:       ri.Note,
		})
		subtotal = subtotal.Add(mi.Price.Mul(decimal.NewFromInt32(ri.Quantity)))
	}
	return items, subtotal, nil
}

// editableStatuses are the states in which a waiter may still change an
// order's unfulfilled lines.
func editable(status order.Status) bool {
	switch status {
	case order.StatusPending, order.StatusPreparing, order.StatusReady:
		return true
	}
	return false
}

// UpdateOrder replaces the editable lines of an order still in the
// kitchen. An empty item list removes every unfulfilled line.
func (s *OrderService) UpdateOrder(ctx context.Context, id uuid.UUID, req CreateOrderRequest) (order.Snapshot, error) {
	snap, err := s.store.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return order.Snapshot{}, ErrOrderNotFound
		}
		return order.Snapshot{}, err
	}
	if !editable(snap.Status) {
		return order.Snapshot{}, ErrOrderNotEditable
	}

	items, _, err := s.priceItems(ctx, req.Items)
	if err != nil {
		return order.Snapshot{}, err
	}
	return s.store.ReplaceEditableItems(ctx, id, items)
}

// SetStatus applies a lifecycle transition. The store update is
// conditional on the current status; losing that race returns
// ErrStatusConflict so the caller can reload and retry.
func (s *OrderService) SetStatus(ctx context.Context, id uuid.UUID, req SetStatusRequest) (order.Snapshot, error) {
	if !req.Status.Valid() {
		return order.Snapshot{}, fmt.Errorf("%w: %q", order.ErrInvalidTransition, req.Status)
	}
	if req.TipAmount.IsNegative() {
		return order.Snapshot{}, ErrInvalidTip
	}

	snap, err := s.store.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return order.Snapshot{}, ErrOrderNotFound
		}
		return order.Snapshot{}, err
	}

	if err := order.Transition(snap.Status, req.Status); err != nil {
		return order.Snapshot{}, err
	}

	// Tips only make sense when the bill is closed.
	closing := req.Status == order.StatusPaid || req.Status == order.StatusChargedToRoom
	if !closing && !req.TipAmount.IsZero() {
		return order.Snapshot{}, ErrInvalidTip
	}
	if req.Status == order.StatusChargedToRoom && req.RoomNumber == "" && snap.RoomNumber == "" {
		return order.Snapshot{}, ErrRoomRequired
	}

	updated, err := s.store.UpdateOrderStatus(ctx, id, snap.Status, req.Status, req.TipAmount, req.RoomNumber)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return order.Snapshot{}, ErrStatusConflict
		}
		return order.Snapshot{}, err
	}
	return updated, nil
}

// MarkItem updates a line's fulfilment flags. Nil pointers keep the
// current value.
func (s *OrderService) MarkItem(ctx context.Context, orderID, itemID uuid.UUID, prepared, served *bool) (order.Snapshot, error) {
	snap, err := s.store.SetItemFlags(ctx, orderID, itemID, prepared, served)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return order.Snapshot{}, ErrOrderNotFound
		}
		return order.Snapshot{}, err
	}
	return snap, nil
}

// GetOrder fetches one order.
func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID) (order.Snapshot, error) {
	snap, err := s.store.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return order.Snapshot{}, ErrOrderNotFound
		}
		return order.Snapshot{}, err
	}
	return snap, nil
}

// ListOrders returns orders matching the filter.
func (s *OrderService) ListOrders(ctx context.Context, f store.ListFilter) ([]order.Snapshot, error) {
	return s.store.ListOrders(ctx, f)
}

// ListActiveOrders returns every non-terminal order for board seeding.
func (s *OrderService) ListActiveOrders(ctx context.Context) ([]order.Snapshot, error) {
	return s.store.ListActiveOrders(ctx)
}
