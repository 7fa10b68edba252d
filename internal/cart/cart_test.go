package cart

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/abba-pos/api/internal/order"
)

func price(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func readySnapshot(items []order.LineItem) order.Snapshot {
	return order.Snapshot{
		ID:         uuid.New(),
		Identifier: "Mesa 3",
		RoomNumber: "12",
		Status:     order.StatusReady,
		Items:      items,
	}
}

func TestLoadOrderPartitionsReadyOrder(t *testing.T) {
	items := []order.LineItem{
		{MenuItemID: uuid.New(), Name: "Lomo", Price: price("12500"), Quantity: 1, IsPrepared: true},
		{MenuItemID: uuid.New(), Name: "Jugo", Price: price("3000"), Quantity: 2},
		{MenuItemID: uuid.New(), Name: "Cafe", Price: price("2500"), Quantity: 1, IsServed: true},
	}
	snap := readySnapshot(items)

	c := New()
	if err := c.LoadOrder(snap.ID, snap); err != nil {
		t.Fatalf("LoadOrder: %v", err)
	}

	if got := len(c.Served()); got != 2 {
		t.Errorf("served partition = %d lines, want 2", got)
	}
	if got := len(c.Current()); got != 1 {
		t.Errorf("current partition = %d lines, want 1", got)
	}
	if total := len(c.Served()) + len(c.Current()); total != len(items) {
		t.Errorf("partitions hold %d lines, snapshot has %d", total, len(items))
	}

	// No line key may repeat across the two partitions.
	seen := map[int64]bool{}
	for _, l := range append(append([]Line{}, c.Served()...), c.Current()...) {
		if seen[l.LineID] {
			t.Fatalf("duplicate line id %d", l.LineID)
		}
		seen[l.LineID] = true
	}

	if c.Identifier() != "Mesa 3" || c.RoomNumber() != "12" {
		t.Errorf("identifier/room not populated: %q %q", c.Identifier(), c.RoomNumber())
	}
	if !c.IsUpdate() {
		t.Error("editing a ready order should submit as an update")
	}
}

func TestLoadOrderServedLocksEverything(t *testing.T) {
	items := []order.LineItem{
		{MenuItemID: uuid.New(), Name: "Lomo", Price: price("12500"), Quantity: 1, IsServed: true},
		{MenuItemID: uuid.New(), Name: "Jugo", Price: price("3000"), Quantity: 1},
	}
	snap := readySnapshot(items)
	snap.Status = order.StatusServed

	c := New()
	if err := c.LoadOrder(snap.ID, snap); err != nil {
		t.Fatalf("LoadOrder: %v", err)
	}
	if len(c.Current()) != 0 {
		t.Errorf("served order should have no editable lines, got %d", len(c.Current()))
	}
	if len(c.Served()) != 2 {
		t.Errorf("served partition = %d lines, want 2", len(c.Served()))
	}
	if c.IsUpdate() {
		t.Error("served order edit does not submit as a ready-order update")
	}
}

func TestLoadOrderPendingStaysEditable(t *testing.T) {
	items := []order.LineItem{
		// Fulfilment flags are ignored below ready.
		{MenuItemID: uuid.New(), Name: "Lomo", Price: price("12500"), Quantity: 1, IsPrepared: true},
		{MenuItemID: uuid.New(), Name: "Jugo", Price: price("3000"), Quantity: 1},
	}
	snap := readySnapshot(items)
	snap.Status = order.StatusPending

	c := New()
	if err := c.LoadOrder(snap.ID, snap); err != nil {
		t.Fatalf("LoadOrder: %v", err)
	}
	if len(c.Current()) != 2 || len(c.Served()) != 0 {
		t.Errorf("pending order: current=%d served=%d, want 2/0", len(c.Current()), len(c.Served()))
	}
}

func TestLoadOrderRejectsNilID(t *testing.T) {
	c := New()
	if err := c.LoadOrder(uuid.Nil, order.Snapshot{}); !errors.Is(err, ErrInvalidOrderID) {
		t.Fatalf("error = %v, want ErrInvalidOrderID", err)
	}
}

func TestTotalAcrossBothPartitions(t *testing.T) {
	items := []order.LineItem{
		{MenuItemID: uuid.New(), Name: "Lomo", Price: price("10000"), Quantity: 2, IsPrepared: true},
	}
	snap := readySnapshot(items)

	c := New()
	if err := c.LoadOrder(snap.ID, snap); err != nil {
		t.Fatalf("LoadOrder: %v", err)
	}
	c.AddItem(uuid.New(), "Jugo", price("3000"))

	if got, want := c.Total(), price("23000"); !got.Equal(want) {
		t.Errorf("total = %s, want %s", got, want)
	}
}

func TestQuantityMutations(t *testing.T) {
	c := New()
	id := c.AddItem(uuid.New(), "Empanada", price("1000"))

	if err := c.IncrementQuantity(id); err != nil {
		t.Fatalf("IncrementQuantity: %v", err)
	}
	if got, want := c.Total(), price("2000"); !got.Equal(want) {
		t.Errorf("total after increment = %s, want %s", got, want)
	}

	if err := c.RemoveItem(id); err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	if !c.Total().IsZero() {
		t.Errorf("total after remove = %s, want 0", c.Total())
	}
}

func TestDecrementToZeroRemovesLine(t *testing.T) {
	c := New()
	id := c.AddItem(uuid.New(), "Empanada", price("1000"))

	if err := c.DecrementQuantity(id); err != nil {
		t.Fatalf("DecrementQuantity: %v", err)
	}
	if len(c.Current()) != 0 {
		t.Fatalf("line should be removed at zero, cart has %d lines", len(c.Current()))
	}
	if err := c.DecrementQuantity(id); !errors.Is(err, ErrLineNotFound) {
		t.Fatalf("decrementing a removed line: error = %v, want ErrLineNotFound", err)
	}
}

func TestUpdateNoteCapsLength(t *testing.T) {
	c := New()
	id := c.AddItem(uuid.New(), "Empanada", price("1000"))

	long := strings.Repeat("x", order.MaxNoteLength+50)
	if err := c.UpdateNote(id, long); err != nil {
		t.Fatalf("UpdateNote: %v", err)
	}
	if got := len(c.Current()[0].Note); got != order.MaxNoteLength {
		t.Errorf("note length = %d, want %d", got, order.MaxNoteLength)
	}

	if err := c.UpdateNote(id, "sin cebolla"); err != nil {
		t.Fatalf("UpdateNote: %v", err)
	}
	if got := c.Current()[0].Note; got != "sin cebolla" {
		t.Errorf("note = %q", got)
	}
}

func TestUpdateNoteTruncatesOnRuneBoundary(t *testing.T) {
	c := New()
	id := c.AddItem(uuid.New(), "Empanada", price("1000"))

	// The second byte of the two-byte rune lands exactly on the cap, so a
	// byte-level cut would leave a dangling lead byte.
	long := strings.Repeat("x", order.MaxNoteLength-1) + "ñ con ají"
	if err := c.UpdateNote(id, long); err != nil {
		t.Fatalf("UpdateNote: %v", err)
	}

	got := c.Current()[0].Note
	if !utf8.ValidString(got) {
		t.Fatalf("truncated note is not valid UTF-8: %q", got[len(got)-4:])
	}
	if len(got) != order.MaxNoteLength-1 {
		t.Errorf("note length = %d, want %d", len(got), order.MaxNoteLength-1)
	}
	if !strings.HasSuffix(got, "x") {
		t.Errorf("note should end before the split rune, ends with %q", got[len(got)-1:])
	}
}

func TestClearResetsEverything(t *testing.T) {
	items := []order.LineItem{
		{MenuItemID: uuid.New(), Name: "Lomo", Price: price("10000"), Quantity: 1, IsPrepared: true},
	}
	snap := readySnapshot(items)

	c := New()
	if err := c.LoadOrder(snap.ID, snap); err != nil {
		t.Fatalf("LoadOrder: %v", err)
	}
	c.AddItem(uuid.New(), "Jugo", price("3000"))
	c.Clear()

	if len(c.Current()) != 0 || len(c.Served()) != 0 {
		t.Error("partitions not emptied")
	}
	if c.Identifier() != "" || c.RoomNumber() != "" {
		t.Error("identifier/room not reset")
	}
	if c.EditingID() != uuid.Nil || c.EditingStatus() != "" {
		t.Error("editing state not reset")
	}
}

func TestLineIDsUniqueAcrossLoads(t *testing.T) {
	c := New()
	seen := map[int64]bool{}

	for i := 0; i < 3; i++ {
		snap := readySnapshot([]order.LineItem{
			{MenuItemID: uuid.New(), Name: "Lomo", Price: price("10000"), Quantity: 1},
			{MenuItemID: uuid.New(), Name: "Jugo", Price: price("3000"), Quantity: 1, IsPrepared: true},
		})
		if err := c.LoadOrder(snap.ID, snap); err != nil {
			t.Fatalf("LoadOrder: %v", err)
		}
		for _, l := range append(append([]Line{}, c.Served()...), c.Current()...) {
			if seen[l.LineID] {
				t.Fatalf("line id %d reused across loads", l.LineID)
			}
			seen[l.LineID] = true
		}
	}
}

func TestOnChangeFiresPerMutation(t *testing.T) {
	c := New()
	var calls int
	c.OnChange = func() { calls++ }

	id := c.AddItem(uuid.New(), "Empanada", price("1000"))
	c.IncrementQuantity(id)
	c.UpdateNote(id, "picante")
	c.Clear()

	if calls != 4 {
		t.Errorf("OnChange fired %d times, want 4", calls)
	}
}
