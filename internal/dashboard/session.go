package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/abba-pos/api/internal/cart"
	"github.com/abba-pos/api/internal/enum"
	"github.com/abba-pos/api/internal/monitor"
	"github.com/abba-pos/api/internal/order"
	"github.com/abba-pos/api/internal/ws"
)

// DefaultIdentifier is used when a waiter submits without naming a table
// or customer.
const DefaultIdentifier = "Barra"

// Errors returned by session operations.
var (
	ErrSubmitInFlight = errors.New("submit already in flight")
	ErrEmptyCart      = errors.New("cart is empty")
	ErrDeclined       = errors.New("declined by operator")
)

// Session coordinates one dashboard user's cart, live order monitor, and
// API client. Like the cart, it is confined to a single goroutine; the
// in-flight flag guards against rapid double submits, not concurrent use.
type Session struct {
	cart    *cart.Cart
	monitor *monitor.Monitor
	client  Client

	inFlight bool

	// Confirm, when set, is asked before destructive transitions (serve,
	// cancel). A nil Confirm means proceed.
	Confirm func(prompt string) bool
}

// NewSession wires a cart and monitor around the given API client.
// Notifications (toasts, the ready chime) go through notifier.
func NewSession(client Client, notifier monitor.Notifier) *Session {
	return &Session{
		cart:    cart.New(),
		monitor: monitor.New(notifier),
		client:  client,
	}
}

// Cart exposes the working cart for view bindings.
func (s *Session) Cart() *cart.Cart { return s.cart }

// Monitor exposes the live order monitor for view bindings.
func (s *Session) Monitor() *monitor.Monitor { return s.monitor }

// Refresh reloads the active order list from the API and reseeds the
// monitor from scratch. Used on startup and after a WebSocket reconnect;
// resetting first evicts orders that closed while the connection was down.
func (s *Session) Refresh(ctx context.Context) error {
	snaps, err := s.client.ListActiveOrders(ctx)
	if err != nil {
		return fmt.Errorf("refresh active orders: %w", err)
	}
	s.monitor.Reset()
	s.monitor.Seed(snaps)
	return nil
}

// SubmitOrder sends the cart to the API. When the cart was opened from an
// existing order still in the kitchen, the editable lines replace that
// order's unfulfilled lines; otherwise a new order is created. A second
// call while the first is still running returns ErrSubmitInFlight.
func (s *Session) SubmitOrder(ctx context.Context) (order.Snapshot, error) {
	if s.inFlight {
		return order.Snapshot{}, ErrSubmitInFlight
	}
	if len(s.cart.Current()) == 0 && !s.cart.IsUpdate() {
		return order.Snapshot{}, ErrEmptyCart
	}

	s.inFlight = true
	defer func() { s.inFlight = false }()

	draft := OrderDraft{
		Identifier: s.cart.Identifier(),
		RoomNumber: s.cart.RoomNumber(),
		Items:      make([]DraftLine, 0, len(s.cart.Current())),
	}
	if draft.Identifier == "" {
		draft.Identifier = DefaultIdentifier
	}
	for _, line := range s.cart.Current() {
		draft.Items = append(draft.Items, DraftLine{
			MenuItemID: line.MenuItemID,
			Quantity:   line.Quantity,
			Note:       line.Note,
		})
	}

	var (
		snap order.Snapshot
		err  error
	)
	if s.cart.IsUpdate() {
		snap, err = s.client.UpdateOrder(ctx, s.cart.EditingID(), draft)
	} else {
		snap, err = s.client.CreateOrder(ctx, draft)
	}
	if err != nil {
		return order.Snapshot{}, err
	}

	s.cart.Clear()
	s.monitor.ApplyUpdate(snap)
	return snap, nil
}

// EditOrder fetches an order and loads it into the cart for editing.
// Fulfilled lines arrive locked; see cart.LoadOrder.
func (s *Session) EditOrder(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return cart.ErrInvalidOrderID
	}
	snap, err := s.client.GetOrder(ctx, id)
	if err != nil {
		return err
	}
	return s.cart.LoadOrder(id, snap)
}

// ChangeStatus requests a transition and applies the server's answer to
// the monitor. The board never moves an order optimistically; it waits
// for the returned snapshot.
func (s *Session) ChangeStatus(ctx context.Context, id uuid.UUID, change StatusChange) error {
	if id == uuid.Nil {
		return cart.ErrInvalidOrderID
	}
	snap, err := s.client.SetOrderStatus(ctx, id, change)
	if err != nil {
		return err
	}
	s.monitor.ApplyUpdate(snap)
	return nil
}

// ConfirmServe marks a ready order as served after operator confirmation.
func (s *Session) ConfirmServe(ctx context.Context, id uuid.UUID) error {
	if s.Confirm != nil && !s.Confirm("Mark this order as served?") {
		return ErrDeclined
	}
	return s.ChangeStatus(ctx, id, StatusChange{Status: order.StatusServed})
}

// CancelOrder cancels a non-terminal order after operator confirmation.
func (s *Session) CancelOrder(ctx context.Context, id uuid.UUID) error {
	if s.Confirm != nil && !s.Confirm("Cancel this order?") {
		return ErrDeclined
	}
	return s.ChangeStatus(ctx, id, StatusChange{Status: order.StatusCancelled})
}

// HandleEvent routes a WebSocket event into the monitor. Unknown event
// types are logged and ignored so protocol additions never break older
// dashboards.
func (s *Session) HandleEvent(ev ws.Event) error {
	switch ev.Type {
	case enum.EventOrderCreated, enum.EventOrderUpdated, enum.EventOrderReady:
		var snap order.Snapshot
		if err := json.Unmarshal(ev.Payload, &snap); err != nil {
			return fmt.Errorf("event %s: %w", ev.Type, err)
		}
		s.monitor.ApplyUpdate(snap)
		return nil
	default:
		logrus.WithField("type", ev.Type).Debug("dashboard: ignoring event")
		return nil
	}
}
