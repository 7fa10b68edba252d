// Package order defines the order entity, its line items, and the status
// lifecycle shared by the API server and the dashboard client core.
package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxNoteLength is the longest free-text note accepted on a line item.
const MaxNoteLength = 200

// LineItem is one menu product entry within an order. IsPrepared and
// IsServed track per-line fulfilment independently of the order status:
// a "ready" order may have only some of its lines prepared.
type LineItem struct {
	ID         uuid.UUID       `json:"id"`
	MenuItemID uuid.UUID       `json:"menu_item_id"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Quantity   int32           `json:"quantity"`
	Note       string          `json:"note"`
	IsPrepared bool            `json:"is_prepared"`
	IsServed   bool            `json:"is_served"`
}

// Fulfilled reports whether the kitchen or service has already completed
// this line. Fulfilled lines are locked during waiter edits.
func (li LineItem) Fulfilled() bool {
	return li.IsPrepared || li.IsServed
}

// Subtotal is the line's contribution to the order total.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.Price.Mul(decimal.NewFromInt32(li.Quantity))
}

// Snapshot is the full server-side view of an order at a point in time.
// UpdatedAt doubles as a freshness marker: consumers drop snapshots older
// than the one they last applied for the same id.
type Snapshot struct {
	ID         uuid.UUID       `json:"id"`
	Number     string          `json:"order_number"`
	Identifier string          `json:"identifier"`
	RoomNumber string          `json:"room_number"`
	Status     Status          `json:"status"`
	Items      []LineItem      `json:"items"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	TipAmount  decimal.Decimal `json:"tip_amount"`
	Total      decimal.Decimal `json:"total"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}
