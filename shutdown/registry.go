package shutdown

import (
	"context"
	"sort"
	"sync"
)

// Func is a cleanup step run during shutdown. It receives a context that
// carries the remaining shutdown budget.
type Func func(ctx context.Context) error

// Registry holds cleanup functions and runs them in priority order during
// shutdown. Lower priority values run first.
type Registry struct {
	mu      sync.Mutex
	entries []registryEntry
	closed  bool
}

type registryEntry struct {
	name     string
	fn       Func
	priority int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a cleanup function. Registration after Shutdown is a
// no-op.
//
// Priority conventions used across the codebase:
//   - 0-9: flush logs and metrics
//   - 10-19: close client connections
//   - 20-29: stop background workers
//   - 30-39: close databases and files
//   - 40+: final cleanup, temp file removal
func (r *Registry) Register(name string, priority int, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.entries = append(r.entries, registryEntry{name: name, fn: fn, priority: priority})
}

// Shutdown runs every registered function in priority order, collecting
// errors rather than stopping at the first failure. The registry is closed
// afterwards; a second Shutdown returns nil.
func (r *Registry) Shutdown(ctx context.Context) []error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	sorted := make([]registryEntry, len(r.entries))
	copy(sorted, r.entries)
	r.mu.Unlock()

	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].priority < sorted[j].priority
	})

	var errs []error
	for _, entry := range sorted {
		if err := entry.fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// Names returns registered function names in execution order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	sorted := make([]registryEntry, len(r.entries))
	copy(sorted, r.entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].priority < sorted[j].priority
	})

	names := make([]string, len(sorted))
	for i, entry := range sorted {
		names[i] = entry.name
	}
	return names
}

// Count returns the number of registered functions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// IsClosed reports whether Shutdown has run.
func (r *Registry) IsClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
