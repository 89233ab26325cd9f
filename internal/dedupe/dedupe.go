// ABOUTME: Thread-safe deduplication table for inbound webhook events.
// ABOUTME: Atomically check-and-inserts fingerprints with TTL and size-based eviction.

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// Defaults for the deduplication table.
const (
	DefaultWindow  = 5 * time.Minute
	DefaultMaxSize = 1000
)

// record stores the first-seen timestamp and list element for a fingerprint.
type record struct {
	seenAt  time.Time
	element *list.Element
}

// Deduplicator tracks event fingerprints seen within a trailing time window.
// The first sighting of a fingerprint admits the event; every sighting within
// the window after that is rejected. Timestamps are never refreshed on a
// duplicate sighting, so the record expires relative to the first delivery.
//
// Check-then-insert runs under a single mutex: two deliveries of the same
// event racing into IsDuplicate can never both be admitted.
type Deduplicator struct {
	mu      sync.Mutex
	seen    map[string]*record
	order   *list.List // fingerprints in insertion order (oldest at front)
	window  time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// New creates a Deduplicator with the given expiry window and maximum table
// size. Non-positive arguments fall back to the defaults. A background
// goroutine periodically purges expired records; callers that do not want the
// goroutine to outlive them must call Close.
func New(window time.Duration, maxSize int) *Deduplicator {
	if window <= 0 {
		window = DefaultWindow
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	d := &Deduplicator{
		seen:    make(map[string]*record),
		order:   list.New(),
		window:  window,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go d.sweep()
	return d
}

// IsDuplicate reports whether the fingerprint has been seen within the expiry
// window. A fingerprint that has not been seen is recorded as a side effect,
// making check-and-insert a single atomic step.
func (d *Deduplicator) IsDuplicate(fingerprint string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	d.purgeLocked(now)

	if _, ok := d.seen[fingerprint]; ok {
		return true
	}

	elem := d.order.PushBack(fingerprint)
	d.seen[fingerprint] = &record{seenAt: now, element: elem}
	return false
}

// Size returns the current number of tracked fingerprints.
func (d *Deduplicator) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

// purgeLocked evicts the oldest half of the table when it has grown past
// maxSize, then drops records older than the expiry window. Must be called
// with mu held. Records are never refreshed, so insertion order equals
// seenAt order and both passes walk from the front of the list.
func (d *Deduplicator) purgeLocked(now time.Time) {
	if len(d.seen) > d.maxSize {
		for i := len(d.seen) / 2; i > 0; i-- {
			d.removeFrontLocked()
		}
	}

	for {
		front := d.order.Front()
		if front == nil {
			break
		}
		fp, _ := front.Value.(string)
		rec := d.seen[fp]
		if rec == nil || now.Sub(rec.seenAt) <= d.window {
			break
		}
		d.removeFrontLocked()
	}
}

// removeFrontLocked drops the oldest record. Must be called with mu held.
func (d *Deduplicator) removeFrontLocked() {
	front := d.order.Front()
	if front == nil {
		return
	}
	fp, _ := front.Value.(string)
	d.order.Remove(front)
	delete(d.seen, fp)
}

// sweep runs in a background goroutine, periodically purging expired records
// so an idle table does not hold on to stale fingerprints.
func (d *Deduplicator) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.mu.Lock()
			d.purgeLocked(time.Now())
			d.mu.Unlock()
		case <-d.done:
			return
		}
	}
}

// Close stops the background sweep goroutine. Safe to call multiple times.
func (d *Deduplicator) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.closed {
		close(d.done)
		d.closed = true
	}
}
