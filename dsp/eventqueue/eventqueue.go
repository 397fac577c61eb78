// Package eventqueue bridges MIDI events between hardware callbacks and the
// processing graph.
//
// MIDI event rates are orders of magnitude below audio sample rates, so a
// bounded slice guarded by a try-lock is enough. Every Try* operation returns
// immediately: on contention the operation is dropped for this call and is
// never retried internally.
package eventqueue

import (
	"sync"
	"sync/atomic"

	"github.com/cwbudde/algo-garden/dsp/signal"
)

// DefaultCapacity is the queue size used by the MIDI bridging nodes.
const DefaultCapacity = 256

// Queue is a fixed-capacity MIDI event queue.
type Queue struct {
	mu     sync.Mutex
	events []signal.MidiEvent

	dropped atomic.Uint64
}

// New returns an empty queue that holds at most capacity events.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &Queue{events: make([]signal.MidiEvent, 0, capacity)}
}

// Capacity returns the maximum number of queued events.
func (q *Queue) Capacity() int {
	return cap(q.events)
}

// TryPush appends ev unless the queue is locked or full. Rejected events are
// counted as dropped.
func (q *Queue) TryPush(ev signal.MidiEvent) bool {
	if !q.mu.TryLock() {
		q.dropped.Add(1)
		return false
	}
	defer q.mu.Unlock()

	if len(q.events) == cap(q.events) {
		q.dropped.Add(1)
		return false
	}

	q.events = append(q.events, ev)

	return true
}

// TryDrain moves all queued events into dst, up to dst's capacity, and
// empties the queue. It reports false, leaving dst and the queue untouched,
// when the lock is held elsewhere. Events that do not fit in dst are dropped.
func (q *Queue) TryDrain(dst *signal.MidiBuffer) bool {
	if !q.mu.TryLock() {
		return false
	}
	defer q.mu.Unlock()

	for _, ev := range q.events {
		if !dst.Append(ev) {
			q.dropped.Add(1)
		}
	}

	q.events = q.events[:0]

	return true
}

// TryReplace swaps the queue contents for src, truncated to capacity.
// It reports false when the lock is held elsewhere.
func (q *Queue) TryReplace(src []signal.MidiEvent) bool {
	if !q.mu.TryLock() {
		return false
	}
	defer q.mu.Unlock()

	n := min(len(src), cap(q.events))
	if n < len(src) {
		q.dropped.Add(uint64(len(src) - n))
	}

	q.events = append(q.events[:0], src[:n]...)

	return true
}

// Len returns the number of queued events. It blocks on the lock and is meant
// for control-plane inspection only.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.events)
}

// Snapshot returns a copy of the queued events without draining them.
// Control plane only.
func (q *Queue) Snapshot() []signal.MidiEvent {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]signal.MidiEvent, len(q.events))
	copy(out, q.events)

	return out
}

// Clear empties the queue, waiting for the lock. Control plane only.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.events = q.events[:0]
}

// Dropped returns the number of events lost to contention or overflow.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}
