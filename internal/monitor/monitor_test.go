package monitor

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/abba-pos/api/internal/order"
)

type recordingNotifier struct {
	toasts []string
	ready  []uuid.UUID
}

func (r *recordingNotifier) OnToast(message, severity string) {
	r.toasts = append(r.toasts, message)
}

func (r *recordingNotifier) OnOrderReady(snap order.Snapshot) {
	r.ready = append(r.ready, snap.ID)
}

// fakeClock is an adjustable time source.
type fakeClock struct {
	t time.Time
}

func (f *fakeClock) now() time.Time { return f.t }

func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func snapAt(id uuid.UUID, status order.Status, at time.Time) order.Snapshot {
	return order.Snapshot{
		ID:         id,
		Number:     "ABB-001",
		Identifier: "Mesa 3",
		Status:     status,
		UpdatedAt:  at,
	}
}

func newTestMonitor() (*Monitor, *recordingNotifier, *fakeClock) {
	n := &recordingNotifier{}
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	return New(n, WithClock(clock.now)), n, clock
}

func countBuckets(m *Monitor, id uuid.UUID) int {
	n := 0
	for _, snaps := range [][]order.Snapshot{m.InProgress(), m.Ready(), m.Served()} {
		for _, s := range snaps {
			if s.ID == id {
				n++
			}
		}
	}
	return n
}

func TestBucketExclusivity(t *testing.T) {
	m, _, clock := newTestMonitor()
	id := uuid.New()

	statuses := []order.Status{
		order.StatusPending, order.StatusPreparing, order.StatusReady,
		order.StatusServed, order.StatusReady, order.StatusPreparing,
	}
	for _, s := range statuses {
		clock.advance(time.Second)
		m.ApplyUpdate(snapAt(id, s, clock.now()))
		if got := countBuckets(m, id); got != 1 {
			t.Fatalf("after %s: order appears in %d buckets, want 1", s, got)
		}
	}
}

func TestStatusRouting(t *testing.T) {
	m, _, clock := newTestMonitor()
	id := uuid.New()

	m.ApplyUpdate(snapAt(id, order.StatusPending, clock.now()))
	if b, ok := m.Contains(id); !ok || b != BucketInProgress {
		t.Fatalf("pending order in %q, want in_progress", b)
	}

	clock.advance(time.Second)
	m.ApplyUpdate(snapAt(id, order.StatusReady, clock.now()))
	if b, _ := m.Contains(id); b != BucketReady {
		t.Fatalf("ready order in %q, want ready", b)
	}
	if len(m.InProgress()) != 0 {
		t.Error("in-progress bucket should have lost the order")
	}

	clock.advance(time.Second)
	m.ApplyUpdate(snapAt(id, order.StatusServed, clock.now()))
	if b, _ := m.Contains(id); b != BucketServed {
		t.Fatalf("served order in %q, want served", b)
	}
	if len(m.Ready()) != 0 {
		t.Error("ready bucket should have lost the order")
	}
}

func TestTerminalRemovesFromAllBuckets(t *testing.T) {
	for _, terminal := range []order.Status{order.StatusPaid, order.StatusChargedToRoom, order.StatusCancelled} {
		m, _, clock := newTestMonitor()
		id := uuid.New()

		m.ApplyUpdate(snapAt(id, order.StatusServed, clock.now()))
		clock.advance(time.Second)
		m.ApplyUpdate(snapAt(id, terminal, clock.now()))

		if got := countBuckets(m, id); got != 0 {
			t.Errorf("%s: order still in %d buckets", terminal, got)
		}

		// Terminal re-apply is a no-op, including for ids never tracked.
		clock.advance(time.Second)
		m.ApplyUpdate(snapAt(id, terminal, clock.now()))
		m.ApplyUpdate(snapAt(uuid.New(), terminal, clock.now()))
		if got := countBuckets(m, id); got != 0 {
			t.Errorf("%s: re-apply resurrected the order", terminal)
		}
	}
}

func TestIdempotentReapply(t *testing.T) {
	m, _, clock := newTestMonitor()
	id := uuid.New()
	snap := snapAt(id, order.StatusReady, clock.now())

	m.ApplyUpdate(snap)
	m.ApplyUpdate(snap)

	if len(m.Ready()) != 1 {
		t.Fatalf("ready bucket holds %d orders, want 1", len(m.Ready()))
	}
	if got := countBuckets(m, id); got != 1 {
		t.Fatalf("order in %d buckets after re-apply, want 1", got)
	}
}

func TestReadyNotificationFiresOncePerWindow(t *testing.T) {
	m, n, clock := newTestMonitor()
	id := uuid.New()
	snap := snapAt(id, order.StatusReady, clock.now())

	m.ApplyUpdate(snap)
	m.ApplyUpdate(snap) // duplicate push delivery

	if len(n.ready) != 1 {
		t.Fatalf("ready notification fired %d times, want 1", len(n.ready))
	}
	if len(n.toasts) != 1 {
		t.Fatalf("toast fired %d times, want 1", len(n.toasts))
	}

	// After the suppression window the notification may fire again.
	clock.advance(6 * time.Second)
	later := snapAt(id, order.StatusReady, clock.now())
	m.ApplyUpdate(later)
	if len(n.ready) != 2 {
		t.Fatalf("ready notification fired %d times after window, want 2", len(n.ready))
	}
}

func TestTerminalClearsNotificationBookkeeping(t *testing.T) {
	m, n, clock := newTestMonitor()
	id := uuid.New()

	m.ApplyUpdate(snapAt(id, order.StatusReady, clock.now()))
	clock.advance(time.Second)
	m.ApplyUpdate(snapAt(id, order.StatusPaid, clock.now()))

	// A brand-new ready update for the same id (within the old window)
	// notifies again because terminal removal cleared the bookkeeping.
	clock.advance(time.Second)
	m.ApplyUpdate(snapAt(id, order.StatusReady, clock.now()))
	if len(n.ready) != 2 {
		t.Fatalf("ready notification fired %d times, want 2", len(n.ready))
	}
}

func TestStaleSnapshotDropped(t *testing.T) {
	m, _, clock := newTestMonitor()
	id := uuid.New()

	fresh := snapAt(id, order.StatusReady, clock.now())
	m.ApplyUpdate(fresh)

	stale := snapAt(id, order.StatusPending, clock.now().Add(-time.Minute))
	m.ApplyUpdate(stale)

	if b, _ := m.Contains(id); b != BucketReady {
		t.Fatalf("stale update moved order to %q", b)
	}
}

func TestOrderingAppendAndUpdateInPlace(t *testing.T) {
	m, _, clock := newTestMonitor()
	first, second, third := uuid.New(), uuid.New(), uuid.New()

	m.ApplyUpdate(snapAt(first, order.StatusPending, clock.now()))
	m.ApplyUpdate(snapAt(second, order.StatusPending, clock.now()))
	m.ApplyUpdate(snapAt(third, order.StatusPending, clock.now()))

	// Updating the first order must not move it to the end.
	clock.advance(time.Second)
	updated := snapAt(first, order.StatusPreparing, clock.now())
	updated.Identifier = "Mesa 7"
	m.ApplyUpdate(updated)

	got := m.InProgress()
	if len(got) != 3 {
		t.Fatalf("in-progress holds %d orders, want 3", len(got))
	}
	if got[0].ID != first || got[1].ID != second || got[2].ID != third {
		t.Error("update-in-place reordered the bucket")
	}
	if got[0].Identifier != "Mesa 7" {
		t.Error("update did not replace stored snapshot content")
	}
}

func TestSeedMatchesIncrementalApplication(t *testing.T) {
	a, b, c, d := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	batch := []order.Snapshot{
		snapAt(a, order.StatusPending, now),
		snapAt(b, order.StatusReady, now),
		snapAt(c, order.StatusServed, now),
		snapAt(d, order.StatusPaid, now), // terminal: skipped
	}

	seeded, _, _ := newTestMonitor()
	seeded.Seed(batch)

	incremental, _, _ := newTestMonitor()
	for _, snap := range batch {
		incremental.ApplyUpdate(snap)
	}

	type state struct{ inProgress, ready, served int }
	stateOf := func(m *Monitor) state {
		return state{len(m.InProgress()), len(m.Ready()), len(m.Served())}
	}
	if stateOf(seeded) != stateOf(incremental) {
		t.Errorf("seed state %+v != incremental state %+v", stateOf(seeded), stateOf(incremental))
	}
	if _, ok := seeded.Contains(d); ok {
		t.Error("terminal order seeded into a bucket")
	}
}

func TestSeedDoesNotChimeForAlreadyReadyOrders(t *testing.T) {
	m, n, clock := newTestMonitor()
	m.Seed([]order.Snapshot{snapAt(uuid.New(), order.StatusReady, clock.now())})

	if len(n.ready) != 0 {
		t.Fatalf("seeding fired %d ready notifications, want 0", len(n.ready))
	}
}

func TestRenderHookSeesEmptyBucket(t *testing.T) {
	m, _, clock := newTestMonitor()
	id := uuid.New()

	var lastReady []order.Snapshot
	rendered := map[Bucket]bool{}
	m.OnRender = func(b Bucket, orders []order.Snapshot) {
		rendered[b] = true
		if b == BucketReady {
			lastReady = orders
		}
	}

	m.ApplyUpdate(snapAt(id, order.StatusReady, clock.now()))
	if len(lastReady) != 1 {
		t.Fatalf("ready render saw %d orders, want 1", len(lastReady))
	}

	clock.advance(time.Second)
	m.ApplyUpdate(snapAt(id, order.StatusCancelled, clock.now()))
	if len(lastReady) != 0 {
		t.Fatalf("ready render saw %d orders after cancel, want 0 (placeholder state)", len(lastReady))
	}
	if !rendered[BucketReady] {
		t.Error("ready bucket never rendered")
	}
}

func TestResetEvictsOrdersMissingFromReseed(t *testing.T) {
	m, _, clock := newTestMonitor()
	closed := uuid.New()
	kept := uuid.New()

	m.Seed([]order.Snapshot{
		snapAt(closed, order.StatusServed, clock.now()),
		snapAt(kept, order.StatusPreparing, clock.now()),
	})

	// The closed order was paid while the feed was down, so the fresh
	// active list no longer carries it.
	clock.advance(time.Minute)
	m.Reset()
	m.Seed([]order.Snapshot{snapAt(kept, order.StatusPreparing, clock.now())})

	if _, ok := m.Contains(closed); ok {
		t.Fatal("order closed during the gap still shown in a bucket after reseed")
	}
	if b, ok := m.Contains(kept); !ok || b != BucketInProgress {
		t.Fatalf("surviving order: bucket = %v, present = %v", b, ok)
	}
}

func TestResetClearsNotificationAndVersionState(t *testing.T) {
	m, n, clock := newTestMonitor()
	id := uuid.New()

	m.ApplyUpdate(snapAt(id, order.StatusReady, clock.now()))
	if len(n.ready) != 1 {
		t.Fatalf("ready notifications = %d, want 1", len(n.ready))
	}

	m.Reset()

	// After a reset the board knows nothing about the order: an update
	// carrying an older timestamp must still apply, and a fresh ready
	// transition within the suppression window must chime again.
	m.ApplyUpdate(snapAt(id, order.StatusReady, clock.now().Add(-time.Hour)))
	if _, ok := m.Contains(id); !ok {
		t.Fatal("pre-reset version state leaked: update after reset was dropped")
	}
	if len(n.ready) != 2 {
		t.Fatalf("ready notifications = %d, want 2", len(n.ready))
	}
}

func TestResetRendersEmptiedBuckets(t *testing.T) {
	m, _, clock := newTestMonitor()
	m.ApplyUpdate(snapAt(uuid.New(), order.StatusServed, clock.now()))

	servedRendered := false
	var lastServed []order.Snapshot
	m.OnRender = func(b Bucket, orders []order.Snapshot) {
		if b == BucketServed {
			servedRendered = true
			lastServed = orders
		}
	}

	m.Reset()
	if !servedRendered {
		t.Fatal("served bucket not re-rendered on reset")
	}
	if len(lastServed) != 0 {
		t.Fatalf("served render after reset carries %d orders, want 0", len(lastServed))
	}
}
