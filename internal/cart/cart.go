// Package cart implements the waiter's editable working copy of an order.
// When an existing order is opened for editing, its lines are partitioned
// into fulfilled (locked) and editable groups so work the kitchen already
// completed cannot be modified by accident.
package cart

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/abba-pos/api/internal/order"
)

// Errors returned by cart operations.
var (
	ErrInvalidOrderID = errors.New("invalid order id")
	ErrLineNotFound   = errors.New("line item not found")
)

// Line is a cart entry. LineID is a session-local key used to address the
// line before submission; it is never persisted.
type Line struct {
	LineID     int64
	MenuItemID uuid.UUID
	Name       string
	Price      decimal.Decimal
	Quantity   int32
	Note       string
}

// Cart holds the editable lines of a new or in-edit order. It is confined
// to the session goroutine; no internal locking.
type Cart struct {
	current []Line
	served  []Line

	identifier string
	roomNumber string

	editingID     uuid.UUID
	editingStatus order.Status

	lineSeq int64

	// OnChange, when set, runs after every mutation. Views re-render from
	// Current/Served/Total; the hook carries no payload so a view can never
	// hold a stale copy.
	OnChange func()
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{}
}

// nextLineID hands out session-unique line keys. Monotonic, so two rapid
// additions can never collide.
func (c *Cart) nextLineID() int64 {
	c.lineSeq++
	return c.lineSeq
}

func (c *Cart) changed() {
	if c.OnChange != nil {
		c.OnChange()
	}
}

// LoadOrder populates the cart from a fetched order snapshot for in-place
// editing. Partitioning depends on the snapshot status:
//
//   - served: every line is locked; nothing is editable until the waiter
//     adds a new line.
//   - ready: lines split per-item on fulfilment, since the kitchen may have
//     completed only part of the order.
//   - pending/preparing: everything stays editable.
func (c *Cart) LoadOrder(orderID uuid.UUID, snap order.Snapshot) error {
	if orderID == uuid.Nil {
		return ErrInvalidOrderID
	}

	c.current = c.current[:0]
	c.served = c.served[:0]
	c.identifier = snap.Identifier
	c.roomNumber = snap.RoomNumber
	c.editingID = orderID
	c.editingStatus = snap.Status

	for _, item := range snap.Items {
		line := Line{
			LineID:     c.nextLineID(),
			MenuItemID: item.MenuItemID,
			Name:       item.Name,
			Price:      item.Price,
			Quantity:   item.Quantity,
			Note:       item.Note,
		}
		switch {
		case snap.Status == order.StatusServed:
			c.served = append(c.served, line)
		case snap.Status == order.StatusReady && item.Fulfilled():
			c.served = append(c.served, line)
		default:
			c.current = append(c.current, line)
		}
	}

	c.changed()
	return nil
}

// AddItem appends a new editable line with quantity 1 and returns its key.
func (c *Cart) AddItem(menuItemID uuid.UUID, name string, price decimal.Decimal) int64 {
	id := c.nextLineID()
	c.current = append(c.current, Line{
		LineID:     id,
		MenuItemID: menuItemID,
		Name:       name,
		Price:      price,
		Quantity:   1,
	})
	c.changed()
	return id
}

func (c *Cart) findLine(lineID int64) int {
	for i := range c.current {
		if c.current[i].LineID == lineID {
			return i
		}
	}
	return -1
}

// IncrementQuantity raises a line's quantity by one.
func (c *Cart) IncrementQuantity(lineID int64) error {
	i := c.findLine(lineID)
	if i < 0 {
		return fmt.Errorf("%w: %d", ErrLineNotFound, lineID)
	}
	c.current[i].Quantity++
	c.changed()
	return nil
}

// DecrementQuantity lowers a line's quantity by one. Reaching zero removes
// the line entirely rather than leaving a zero-quantity entry.
func (c *Cart) DecrementQuantity(lineID int64) error {
	i := c.findLine(lineID)
	if i < 0 {
		return fmt.Errorf("%w: %d", ErrLineNotFound, lineID)
	}
	c.current[i].Quantity--
	if c.current[i].Quantity <= 0 {
		c.current = append(c.current[:i], c.current[i+1:]...)
	}
	c.changed()
	return nil
}

// RemoveItem deletes a line unconditionally.
func (c *Cart) RemoveItem(lineID int64) error {
	i := c.findLine(lineID)
	if i < 0 {
		return fmt.Errorf("%w: %d", ErrLineNotFound, lineID)
	}
	c.current = append(c.current[:i], c.current[i+1:]...)
	c.changed()
	return nil
}

// UpdateNote replaces a line's note, truncated to MaxNoteLength without
// splitting a multi-byte character. The single stored note is the source of
// truth for every rendered view of the line.
func (c *Cart) UpdateNote(lineID int64, note string) error {
	i := c.findLine(lineID)
	if i < 0 {
		return fmt.Errorf("%w: %d", ErrLineNotFound, lineID)
	}
	if len(note) > order.MaxNoteLength {
		cut := order.MaxNoteLength
		for cut > 0 && !utf8.RuneStart(note[cut]) {
			cut--
		}
		note = note[:cut]
	}
	c.current[i].Note = note
	c.changed()
	return nil
}

// Clear empties both partitions and resets all editing state. Used after a
// successful submission or an explicit cancel.
func (c *Cart) Clear() {
	c.current = c.current[:0]
	c.served = c.served[:0]
	c.identifier = ""
	c.roomNumber = ""
	c.editingID = uuid.Nil
	c.editingStatus = ""
	c.changed()
}

// Begin starts a fresh order for the given identifier and room, discarding
// any previous cart contents.
func (c *Cart) Begin(identifier, roomNumber string) {
	c.current = c.current[:0]
	c.served = c.served[:0]
	c.identifier = identifier
	c.roomNumber = roomNumber
	c.editingID = uuid.Nil
	c.editingStatus = ""
	c.changed()
}

// Current returns the editable partition.
func (c *Cart) Current() []Line { return c.current }

// Served returns the locked partition: lines already fulfilled server-side,
// kept for display and total computation only.
func (c *Cart) Served() []Line { return c.served }

// Identifier returns the client/table label for the order being built.
func (c *Cart) Identifier() string { return c.identifier }

// RoomNumber returns the room the order may be charged to, if any.
func (c *Cart) RoomNumber() string { return c.roomNumber }

// EditingID returns the order under edit, or uuid.Nil for a new order.
func (c *Cart) EditingID() uuid.UUID { return c.editingID }

// EditingStatus returns the status the order had when loaded for editing.
func (c *Cart) EditingStatus() order.Status { return c.editingStatus }

// IsUpdate reports whether submission should update the existing order
// rather than create a new one. Only a ready order under edit is submitted
// as an update; everything else goes through creation.
func (c *Cart) IsUpdate() bool {
	return c.editingID != uuid.Nil && c.editingStatus == order.StatusReady
}

// Total sums both partitions, since fulfilled lines still represent money
// owed.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.served {
		total = total.Add(l.Price.Mul(decimal.NewFromInt32(l.Quantity)))
	}
	for _, l := range c.current {
		total = total.Add(l.Price.Mul(decimal.NewFromInt32(l.Quantity)))
	}
	return total
}

// ItemCount is the number of units across the editable partition.
func (c *Cart) ItemCount() int32 {
	var n int32
	for _, l := range c.current {
		n += l.Quantity
	}
	return n
}
