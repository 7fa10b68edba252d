package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/abba-pos/api/internal/cart"
	"github.com/abba-pos/api/internal/enum"
	"github.com/abba-pos/api/internal/monitor"
	"github.com/abba-pos/api/internal/order"
	"github.com/abba-pos/api/internal/ws"
)

type fakeClient struct {
	createFunc func(ctx context.Context, draft OrderDraft) (order.Snapshot, error)
	updateFunc func(ctx context.Context, id uuid.UUID, draft OrderDraft) (order.Snapshot, error)
	statusFunc func(ctx context.Context, id uuid.UUID, change StatusChange) (order.Snapshot, error)
	getFunc    func(ctx context.Context, id uuid.UUID) (order.Snapshot, error)
	listFunc   func(ctx context.Context) ([]order.Snapshot, error)
}

func (f *fakeClient) CreateOrder(ctx context.Context, draft OrderDraft) (order.Snapshot, error) {
	return f.createFunc(ctx, draft)
}

func (f *fakeClient) UpdateOrder(ctx context.Context, id uuid.UUID, draft OrderDraft) (order.Snapshot, error) {
	return f.updateFunc(ctx, id, draft)
}

func (f *fakeClient) SetOrderStatus(ctx context.Context, id uuid.UUID, change StatusChange) (order.Snapshot, error) {
	return f.statusFunc(ctx, id, change)
}

func (f *fakeClient) GetOrder(ctx context.Context, id uuid.UUID) (order.Snapshot, error) {
	return f.getFunc(ctx, id)
}

func (f *fakeClient) ListActiveOrders(ctx context.Context) ([]order.Snapshot, error) {
	return f.listFunc(ctx)
}

type recordingNotifier struct {
	toasts []string
	ready  []uuid.UUID
}

func (n *recordingNotifier) OnToast(message, severity string) {
	n.toasts = append(n.toasts, message)
}

func (n *recordingNotifier) OnOrderReady(snap order.Snapshot) {
	n.ready = append(n.ready, snap.ID)
}

func price(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func testSnapshot(id uuid.UUID, status order.Status, updatedAt time.Time) order.Snapshot {
	return order.Snapshot{
		ID:         id,
		Number:     "ABB-001",
		Identifier: "Mesa 4",
		Status:     status,
		Items: []order.LineItem{
			{ID: uuid.New(), MenuItemID: uuid.New(), Name: "Margherita", Price: price("8.50"), Quantity: 2},
		},
		Subtotal:  price("17.00"),
		Total:     price("17.00"),
		CreatedAt: updatedAt.Add(-time.Minute),
		UpdatedAt: updatedAt,
	}
}

func TestSubmitOrderCreatesAndSeedsBoard(t *testing.T) {
	orderID := uuid.New()
	var gotDraft OrderDraft
	client := &fakeClient{
		createFunc: func(ctx context.Context, draft OrderDraft) (order.Snapshot, error) {
			gotDraft = draft
			return testSnapshot(orderID, order.StatusPending, time.Now()), nil
		},
	}
	sess := NewSession(client, monitor.NopNotifier{})

	sess.Cart().Begin("Mesa 4", "")
	sess.Cart().AddItem(uuid.New(), "Margherita", price("8.50"))

	snap, err := sess.SubmitOrder(context.Background())
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if snap.ID != orderID {
		t.Errorf("snapshot id = %s, want %s", snap.ID, orderID)
	}
	if gotDraft.Identifier != "Mesa 4" {
		t.Errorf("draft identifier = %q, want %q", gotDraft.Identifier, "Mesa 4")
	}
	if len(gotDraft.Items) != 1 {
		t.Fatalf("draft has %d items, want 1", len(gotDraft.Items))
	}

	// New pending orders land in the in-progress column.
	if bucket, ok := sess.Monitor().Contains(orderID); !ok || bucket != monitor.BucketInProgress {
		t.Errorf("order in bucket %q (present=%v), want %q", bucket, ok, monitor.BucketInProgress)
	}
	// Cart is reset after a successful submit.
	if len(sess.Cart().Current()) != 0 {
		t.Errorf("cart still has %d lines after submit", len(sess.Cart().Current()))
	}
}

func TestSubmitOrderEmptyCart(t *testing.T) {
	client := &fakeClient{
		createFunc: func(ctx context.Context, draft OrderDraft) (order.Snapshot, error) {
			t.Fatal("CreateOrder should not be called for an empty cart")
			return order.Snapshot{}, nil
		},
	}
	sess := NewSession(client, monitor.NopNotifier{})

	if _, err := sess.SubmitOrder(context.Background()); err != ErrEmptyCart {
		t.Fatalf("err = %v, want ErrEmptyCart", err)
	}
}

func TestSubmitOrderDefaultIdentifier(t *testing.T) {
	var gotDraft OrderDraft
	client := &fakeClient{
		createFunc: func(ctx context.Context, draft OrderDraft) (order.Snapshot, error) {
			gotDraft = draft
			return testSnapshot(uuid.New(), order.StatusPending, time.Now()), nil
		},
	}
	sess := NewSession(client, monitor.NopNotifier{})
	sess.Cart().AddItem(uuid.New(), "Espresso", price("2.00"))

	if _, err := sess.SubmitOrder(context.Background()); err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if gotDraft.Identifier != DefaultIdentifier {
		t.Errorf("identifier = %q, want %q", gotDraft.Identifier, DefaultIdentifier)
	}
}

func TestSubmitOrderDoubleClickSendsOneRequest(t *testing.T) {
	calls := 0
	var sess *Session
	client := &fakeClient{
		createFunc: func(ctx context.Context, draft OrderDraft) (order.Snapshot, error) {
			calls++
			// Simulate the second click landing while the first request is
			// still running.
			if _, err := sess.SubmitOrder(ctx); err != ErrSubmitInFlight {
				t.Errorf("reentrant submit err = %v, want ErrSubmitInFlight", err)
			}
			return testSnapshot(uuid.New(), order.StatusPending, time.Now()), nil
		},
	}
	sess = NewSession(client, monitor.NopNotifier{})
	sess.Cart().AddItem(uuid.New(), "Margherita", price("8.50"))

	if _, err := sess.SubmitOrder(context.Background()); err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if calls != 1 {
		t.Errorf("CreateOrder called %d times, want 1", calls)
	}
}

func TestSubmitOrderUpdatesWhenEditingReadyOrder(t *testing.T) {
	orderID := uuid.New()
	readySnap := testSnapshot(orderID, order.StatusReady, time.Now())
	readySnap.Items = []order.LineItem{
		{ID: uuid.New(), MenuItemID: uuid.New(), Name: "Margherita", Price: price("8.50"), Quantity: 1, IsPrepared: true},
		{ID: uuid.New(), MenuItemID: uuid.New(), Name: "Tiramisu", Price: price("5.00"), Quantity: 1},
	}

	var updatedID uuid.UUID
	var gotDraft OrderDraft
	client := &fakeClient{
		getFunc: func(ctx context.Context, id uuid.UUID) (order.Snapshot, error) {
			return readySnap, nil
		},
		updateFunc: func(ctx context.Context, id uuid.UUID, draft OrderDraft) (order.Snapshot, error) {
			updatedID = id
			gotDraft = draft
			return testSnapshot(orderID, order.StatusReady, time.Now()), nil
		},
		createFunc: func(ctx context.Context, draft OrderDraft) (order.Snapshot, error) {
			t.Fatal("editing an order must go through UpdateOrder")
			return order.Snapshot{}, nil
		},
	}
	sess := NewSession(client, monitor.NopNotifier{})

	if err := sess.EditOrder(context.Background(), orderID); err != nil {
		t.Fatalf("EditOrder: %v", err)
	}
	// Only the unprepared dessert is editable; the prepared pizza is locked.
	if len(sess.Cart().Current()) != 1 || sess.Cart().Current()[0].Name != "Tiramisu" {
		t.Fatalf("editable lines = %+v", sess.Cart().Current())
	}
	if len(sess.Cart().Served()) != 1 {
		t.Fatalf("locked lines = %+v", sess.Cart().Served())
	}

	sess.Cart().AddItem(uuid.New(), "Limoncello", price("4.00"))

	if _, err := sess.SubmitOrder(context.Background()); err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if updatedID != orderID {
		t.Errorf("UpdateOrder called with id %s, want %s", updatedID, orderID)
	}
	if len(gotDraft.Items) != 2 {
		t.Errorf("update draft has %d items, want 2 (editable union)", len(gotDraft.Items))
	}
}

func TestEditServedOrderLocksEverything(t *testing.T) {
	orderID := uuid.New()
	servedSnap := testSnapshot(orderID, order.StatusServed, time.Now())
	client := &fakeClient{
		getFunc: func(ctx context.Context, id uuid.UUID) (order.Snapshot, error) {
			return servedSnap, nil
		},
	}
	sess := NewSession(client, monitor.NopNotifier{})

	if err := sess.EditOrder(context.Background(), orderID); err != nil {
		t.Fatalf("EditOrder: %v", err)
	}
	if len(sess.Cart().Current()) != 0 {
		t.Errorf("served order should have no editable lines, got %d", len(sess.Cart().Current()))
	}
	if len(sess.Cart().Served()) != len(servedSnap.Items) {
		t.Errorf("locked lines = %d, want %d", len(sess.Cart().Served()), len(servedSnap.Items))
	}
	if sess.Cart().IsUpdate() {
		t.Error("a served order must not be submittable as an update")
	}
}

func TestHandleEventReadyNotifiesOnce(t *testing.T) {
	orderID := uuid.New()
	notifier := &recordingNotifier{}
	sess := NewSession(&fakeClient{}, notifier)

	snap := testSnapshot(orderID, order.StatusReady, time.Now())
	payload, _ := json.Marshal(snap)

	ev := ws.Event{Type: enum.EventOrderReady, Payload: payload}
	if err := sess.HandleEvent(ev); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	// Duplicate push inside the suppression window: no second chime.
	snap.UpdatedAt = snap.UpdatedAt.Add(time.Second)
	payload, _ = json.Marshal(snap)
	if err := sess.HandleEvent(ws.Event{Type: enum.EventOrderReady, Payload: payload}); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	if len(notifier.ready) != 1 {
		t.Errorf("ready chime fired %d times, want 1", len(notifier.ready))
	}
	if bucket, ok := sess.Monitor().Contains(orderID); !ok || bucket != monitor.BucketReady {
		t.Errorf("order in bucket %q (present=%v), want %q", bucket, ok, monitor.BucketReady)
	}
}

func TestHandleEventTerminalRemovesFromBoard(t *testing.T) {
	orderID := uuid.New()
	sess := NewSession(&fakeClient{}, monitor.NopNotifier{})

	pending := testSnapshot(orderID, order.StatusPending, time.Now())
	payload, _ := json.Marshal(pending)
	if err := sess.HandleEvent(ws.Event{Type: enum.EventOrderCreated, Payload: payload}); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if _, ok := sess.Monitor().Contains(orderID); !ok {
		t.Fatal("order missing from board after create event")
	}

	paid := testSnapshot(orderID, order.StatusPaid, time.Now().Add(time.Minute))
	payload, _ = json.Marshal(paid)
	if err := sess.HandleEvent(ws.Event{Type: enum.EventOrderUpdated, Payload: payload}); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if _, ok := sess.Monitor().Contains(orderID); ok {
		t.Error("paid order still on the board")
	}
}

func TestHandleEventUnknownTypeIgnored(t *testing.T) {
	sess := NewSession(&fakeClient{}, monitor.NopNotifier{})
	ev := ws.Event{Type: "menu.updated", Payload: json.RawMessage(`{}`)}
	if err := sess.HandleEvent(ev); err != nil {
		t.Fatalf("unknown events should be ignored, got %v", err)
	}
}

func TestConfirmServeDeclined(t *testing.T) {
	client := &fakeClient{
		statusFunc: func(ctx context.Context, id uuid.UUID, change StatusChange) (order.Snapshot, error) {
			t.Fatal("SetOrderStatus should not run when the operator declines")
			return order.Snapshot{}, nil
		},
	}
	sess := NewSession(client, monitor.NopNotifier{})
	sess.Confirm = func(string) bool { return false }

	if err := sess.ConfirmServe(context.Background(), uuid.New()); err != ErrDeclined {
		t.Fatalf("err = %v, want ErrDeclined", err)
	}
}

func TestConfirmServeAccepted(t *testing.T) {
	orderID := uuid.New()
	var gotChange StatusChange
	client := &fakeClient{
		statusFunc: func(ctx context.Context, id uuid.UUID, change StatusChange) (order.Snapshot, error) {
			gotChange = change
			return testSnapshot(orderID, order.StatusServed, time.Now()), nil
		},
	}
	sess := NewSession(client, monitor.NopNotifier{})
	sess.Confirm = func(string) bool { return true }

	if err := sess.ConfirmServe(context.Background(), orderID); err != nil {
		t.Fatalf("ConfirmServe: %v", err)
	}
	if gotChange.Status != order.StatusServed {
		t.Errorf("requested status %q, want %q", gotChange.Status, order.StatusServed)
	}
	if bucket, ok := sess.Monitor().Contains(orderID); !ok || bucket != monitor.BucketServed {
		t.Errorf("order in bucket %q (present=%v), want %q", bucket, ok, monitor.BucketServed)
	}
}

func TestRefreshSeedsMonitor(t *testing.T) {
	a := testSnapshot(uuid.New(), order.StatusPending, time.Now())
	b := testSnapshot(uuid.New(), order.StatusReady, time.Now())
	notifier := &recordingNotifier{}
	client := &fakeClient{
		listFunc: func(ctx context.Context) ([]order.Snapshot, error) {
			return []order.Snapshot{a, b}, nil
		},
	}
	sess := NewSession(client, notifier)

	if err := sess.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if len(sess.Monitor().InProgress()) != 1 || len(sess.Monitor().Ready()) != 1 {
		t.Errorf("board = %d in progress, %d ready; want 1 and 1",
			len(sess.Monitor().InProgress()), len(sess.Monitor().Ready()))
	}
	// Orders already ready at load time never chime.
	if len(notifier.ready) != 0 {
		t.Errorf("ready chime fired %d times on seed, want 0", len(notifier.ready))
	}
}

func TestRefreshEvictsOrdersClosedDuringDisconnect(t *testing.T) {
	closedID := uuid.New()
	keptID := uuid.New()
	active := []order.Snapshot{
		testSnapshot(closedID, order.StatusServed, time.Now()),
		testSnapshot(keptID, order.StatusPreparing, time.Now()),
	}
	client := &fakeClient{
		listFunc: func(ctx context.Context) ([]order.Snapshot, error) {
			return active, nil
		},
	}
	sess := NewSession(client, monitor.NopNotifier{})

	if err := sess.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if _, ok := sess.Monitor().Contains(closedID); !ok {
		t.Fatal("served order missing after first refresh")
	}

	// The order was paid while the feed was down, so the next active list
	// no longer carries it.
	active = []order.Snapshot{testSnapshot(keptID, order.StatusPreparing, time.Now())}
	if err := sess.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if _, ok := sess.Monitor().Contains(closedID); ok {
		t.Fatal("order closed during disconnect still shown after reconnect refresh")
	}
	if _, ok := sess.Monitor().Contains(keptID); !ok {
		t.Fatal("still-active order dropped by refresh")
	}
}

func TestChangeStatusRejectsNilIDBeforeRequest(t *testing.T) {
	requests := 0
	client := &fakeClient{
		statusFunc: func(ctx context.Context, id uuid.UUID, change StatusChange) (order.Snapshot, error) {
			requests++
			return testSnapshot(id, change.Status, time.Now()), nil
		},
	}
	sess := NewSession(client, monitor.NopNotifier{})

	err := sess.ChangeStatus(context.Background(), uuid.Nil, StatusChange{Status: order.StatusPreparing})
	if !errors.Is(err, cart.ErrInvalidOrderID) {
		t.Fatalf("error = %v, want cart.ErrInvalidOrderID", err)
	}
	if requests != 0 {
		t.Fatalf("nil order id issued %d request(s), want 0", requests)
	}
}

func TestEditOrderRejectsNilIDBeforeRequest(t *testing.T) {
	requests := 0
	client := &fakeClient{
		getFunc: func(ctx context.Context, id uuid.UUID) (order.Snapshot, error) {
			requests++
			return testSnapshot(id, order.StatusPending, time.Now()), nil
		},
	}
	sess := NewSession(client, monitor.NopNotifier{})

	err := sess.EditOrder(context.Background(), uuid.Nil)
	if !errors.Is(err, cart.ErrInvalidOrderID) {
		t.Fatalf("error = %v, want cart.ErrInvalidOrderID", err)
	}
	if requests != 0 {
		t.Fatalf("nil order id issued %d request(s), want 0", requests)
	}
}
