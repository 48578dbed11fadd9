package webui

import (
	"sync"

	"aesthetisim/simulation"
)

// Ring is a thread-safe fixed-capacity buffer that overwrites its oldest
// entry when full.
type Ring[T any] struct {
	mu   sync.RWMutex
	data []T
	size int
	head int
	tail int
}

// NewRing creates a ring holding at most capacity entries. Panics if
// capacity is less than one.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		panic("webui: ring capacity must be at least 1")
	}
	return &Ring[T]{data: make([]T, capacity)}
}

// Push appends an entry, evicting the oldest when full.
func (r *Ring[T]) Push(item T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.data[r.head] = item
	r.head = (r.head + 1) % len(r.data)

	if r.size < len(r.data) {
		r.size++
	} else {
		r.tail = (r.tail + 1) % len(r.data)
	}
}

// All returns every entry, oldest first. The slice is a copy.
func (r *Ring[T]) All() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]T, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.data[(r.tail+i)%len(r.data)]
	}
	return out
}

// Last returns the n newest entries, oldest first. Fewer are returned
// when the ring holds fewer.
func (r *Ring[T]) Last(n int) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n <= 0 {
		return []T{}
	}
	if n > r.size {
		n = r.size
	}

	out := make([]T, n)
	start := r.size - n
	for i := 0; i < n; i++ {
		out[i] = r.data[(r.tail+start+i)%len(r.data)]
	}
	return out
}

// Len returns the current entry count.
func (r *Ring[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Cap returns the fixed capacity.
func (r *Ring[T]) Cap() int {
	return len(r.data)
}

// Clear drops all entries.
func (r *Ring[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	for i := range r.data {
		r.data[i] = zero
	}
	r.size = 0
	r.head = 0
	r.tail = 0
}

// DefaultActivityCapacity bounds the recent-activity list shown to newly
// connected dashboard clients.
const DefaultActivityCapacity = 50

// ActivityFeed is the bounded history of simulation updates backing the
// dashboard's recent-activity panel.
type ActivityFeed struct {
	ring *Ring[SimulationUpdateData]
}

// NewActivityFeed creates a feed with the given capacity, or the default
// when capacity is not positive.
func NewActivityFeed(capacity int) *ActivityFeed {
	if capacity <= 0 {
		capacity = DefaultActivityCapacity
	}
	return &ActivityFeed{ring: NewRing[SimulationUpdateData](capacity)}
}

// Record appends one update.
func (f *ActivityFeed) Record(update SimulationUpdateData) {
	f.ring.Push(update)
}

// Recent returns up to n updates, newest last.
func (f *ActivityFeed) Recent(n int) []SimulationUpdateData {
	return f.ring.Last(n)
}

// Len returns the number of stored updates.
func (f *ActivityFeed) Len() int {
	return f.ring.Len()
}

// StatusFanout implements simulation.Notifier by recording each update
// in the activity feed and broadcasting it to WebSocket clients. Either
// field may be nil.
type StatusFanout struct {
	Feed        *ActivityFeed
	Broadcaster *Broadcaster
}

// NotifyStatus implements simulation.Notifier.
func (f *StatusFanout) NotifyStatus(rec *simulation.Record) {
	update := SimulationUpdateFromRecord(rec)
	if f.Feed != nil {
		f.Feed.Record(update)
	}
	if f.Broadcaster != nil {
		f.Broadcaster.Broadcast(NewSimulationUpdateMessage(update))
	}
}
