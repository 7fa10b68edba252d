// Package monitor maintains the three status-bucketed order lists the
// kitchen and reception dashboards display: in-progress, ready, and served.
// Every live order appears in exactly one bucket; terminal orders are
// tracked nowhere. Inbound snapshots from creation, polling, or the push
// channel are all applied through the same idempotent classification.
package monitor

import (
	"time"

	"github.com/google/uuid"

	"github.com/abba-pos/api/internal/order"
)

// readyNotifyWindow absorbs duplicate delivery of the same ready event.
const readyNotifyWindow = 5 * time.Second

// Bucket names one of the three live-order groupings.
type Bucket string

const (
	BucketInProgress Bucket = "in_progress"
	BucketReady      Bucket = "ready"
	BucketServed     Bucket = "served"
)

// Notifier receives the user-facing side effects of bucket changes. The
// monitor carries no presentation logic beyond invoking these hooks.
type Notifier interface {
	// OnToast surfaces a human-readable message. Severity is one of
	// "info", "success", "error".
	OnToast(message, severity string)
	// OnOrderReady fires once per order when it first becomes ready; the
	// dashboard plays its notification sound here.
	OnOrderReady(snap order.Snapshot)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) OnToast(string, string)      {}
func (NopNotifier) OnOrderReady(order.Snapshot) {}

// list is one bucket's membership: insertion-ordered ids with the latest
// snapshot per id. An update replaces the stored snapshot wholesale so no
// stale partial state survives an item-list change.
type list struct {
	ids  []uuid.UUID
	byID map[uuid.UUID]order.Snapshot
}

func newList() *list {
	return &list{byID: make(map[uuid.UUID]order.Snapshot)}
}

func (l *list) upsert(snap order.Snapshot) {
	if _, ok := l.byID[snap.ID]; !ok {
		l.ids = append(l.ids, snap.ID)
	}
	l.byID[snap.ID] = snap
}

func (l *list) remove(id uuid.UUID) bool {
	if _, ok := l.byID[id]; !ok {
		return false
	}
	delete(l.byID, id)
	for i, v := range l.ids {
		if v == id {
			l.ids = append(l.ids[:i], l.ids[i+1:]...)
			break
		}
	}
	return true
}

func (l *list) contains(id uuid.UUID) bool {
	_, ok := l.byID[id]
	return ok
}

func (l *list) snapshots() []order.Snapshot {
	out := make([]order.Snapshot, 0, len(l.ids))
	for _, id := range l.ids {
		out = append(out, l.byID[id])
	}
	return out
}

// Monitor applies order snapshots to the three buckets. It is confined to
// the session goroutine; handlers must finish a whole ApplyUpdate before
// yielding so no partial bucket state is ever observable.
type Monitor struct {
	inProgress *list
	ready      *list
	served     *list

	notifier Notifier
	now      func() time.Time

	// notifiedAt suppresses duplicate ready notifications per order id
	// within readyNotifyWindow.
	notifiedAt map[uuid.UUID]time.Time

	// applied records the newest UpdatedAt seen per order id; older
	// snapshots are dropped so a delayed update cannot roll state back.
	applied map[uuid.UUID]time.Time

	// OnRender, when set, receives a bucket's full membership after every
	// change to it. An empty slice means the bucket shows its placeholder.
	OnRender func(b Bucket, orders []order.Snapshot)
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock substitutes the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// New creates a Monitor reporting through the given notifier.
func New(notifier Notifier, opts ...Option) *Monitor {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	m := &Monitor{
		inProgress: newList(),
		ready:      newList(),
		served:     newList(),
		notifier:   notifier,
		now:        time.Now,
		notifiedAt: make(map[uuid.UUID]time.Time),
		applied:    make(map[uuid.UUID]time.Time),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Reset drops all tracked orders and notification state. A reseed after a
// reconnect starts from a Reset board so orders that reached a terminal
// status while the connection was down do not linger in a bucket.
func (m *Monitor) Reset() {
	if len(m.inProgress.ids) > 0 {
		m.inProgress = newList()
		m.render(BucketInProgress, m.inProgress)
	}
	if len(m.ready.ids) > 0 {
		m.ready = newList()
		m.render(BucketReady, m.ready)
	}
	if len(m.served.ids) > 0 {
		m.served = newList()
		m.render(BucketServed, m.served)
	}
	m.notifiedAt = make(map[uuid.UUID]time.Time)
	m.applied = make(map[uuid.UUID]time.Time)
}

// Seed classifies a batch of initial orders, skipping terminal ones. The
// end state is identical to applying each order through ApplyUpdate, except
// that seeding never fires ready notifications: the dashboard should not
// chime for orders that were already ready before it loaded.
func (m *Monitor) Seed(orders []order.Snapshot) {
	for _, snap := range orders {
		if snap.Status.Terminal() {
			continue
		}
		if snap.Status == order.StatusReady {
			m.notifiedAt[snap.ID] = m.now()
		}
		m.ApplyUpdate(snap)
	}
}

// ApplyUpdate routes a snapshot to its bucket. Terminal statuses remove the
// order everywhere; anything else relocates it so the id lives in exactly
// one bucket. Re-applying an identical snapshot is a no-op in effect, and
// snapshots older than the last applied one for the same id are dropped.
func (m *Monitor) ApplyUpdate(snap order.Snapshot) {
	if last, ok := m.applied[snap.ID]; ok && snap.UpdatedAt.Before(last) {
		return
	}
	m.applied[snap.ID] = snap.UpdatedAt

	if snap.Status.Terminal() {
		m.removeEverywhere(snap.ID)
		delete(m.notifiedAt, snap.ID)
		return
	}

	switch snap.Status {
	case order.StatusServed:
		m.relocate(snap, m.served, BucketServed, m.inProgress, BucketInProgress, m.ready, BucketReady)
	case order.StatusReady:
		m.relocate(snap, m.ready, BucketReady, m.inProgress, BucketInProgress, m.served, BucketServed)
		m.notifyReady(snap)
	default:
		m.relocate(snap, m.inProgress, BucketInProgress, m.ready, BucketReady, m.served, BucketServed)
	}
}

// relocate inserts or updates snap in target and evicts it from the two
// other buckets, re-rendering whichever lists changed.
func (m *Monitor) relocate(snap order.Snapshot, target *list, targetName Bucket, a *list, aName Bucket, b *list, bName Bucket) {
	if a.remove(snap.ID) {
		m.render(aName, a)
	}
	if b.remove(snap.ID) {
		m.render(bName, b)
	}
	target.upsert(snap)
	m.render(targetName, target)
}

func (m *Monitor) removeEverywhere(id uuid.UUID) {
	if m.inProgress.remove(id) {
		m.render(BucketInProgress, m.inProgress)
	}
	if m.ready.remove(id) {
		m.render(BucketReady, m.ready)
	}
	if m.served.remove(id) {
		m.render(BucketServed, m.served)
	}
}

func (m *Monitor) notifyReady(snap order.Snapshot) {
	now := m.now()
	if at, ok := m.notifiedAt[snap.ID]; ok && now.Sub(at) < readyNotifyWindow {
		return
	}
	m.notifiedAt[snap.ID] = now
	m.notifier.OnToast("Order "+snap.Number+" for "+snap.Identifier+" is ready", "info")
	m.notifier.OnOrderReady(snap)
}

func (m *Monitor) render(b Bucket, l *list) {
	if m.OnRender != nil {
		m.OnRender(b, l.snapshots())
	}
}

// InProgress returns the in-progress bucket in display order.
func (m *Monitor) InProgress() []order.Snapshot { return m.inProgress.snapshots() }

// Ready returns the ready bucket in display order.
func (m *Monitor) Ready() []order.Snapshot { return m.ready.snapshots() }

// Served returns the served bucket in display order.
func (m *Monitor) Served() []order.Snapshot { return m.served.snapshots() }

// Contains reports which bucket holds the given order id, if any.
func (m *Monitor) Contains(id uuid.UUID) (Bucket, bool) {
	switch {
	case m.inProgress.contains(id):
		return BucketInProgress, true
	case m.ready.contains(id):
		return BucketReady, true
	case m.served.contains(id):
		return BucketServed, true
	}
	return "", false
}
