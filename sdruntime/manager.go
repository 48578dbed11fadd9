package sdruntime

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"aesthetisim/logging"
)

// State is the lifecycle state of the Manager.
type State int

const (
	StateUnloaded State = iota
	StateLoading
	StateReady
	StateClosed
)

// String returns the string representation of a lifecycle state.
func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Manager owns the generation backend lifecycle: unloaded until the first
// Initialize, loading while the primary factory runs, then ready. Concurrent
// Initialize calls collapse into a single load; later callers wait for it.
//
// When the primary factory fails the fallback factory is substituted and
// the manager still reaches ready, so a dead remote endpoint degrades the
// service instead of disabling it.
type Manager struct {
	mu       sync.Mutex
	state    State
	backend  Backend
	loading  chan struct{} // closed when an in-flight load finishes
	loadErr  error         // result of the in-flight load
	fellBack bool

	primary  BackendFactory
	fallback BackendFactory
	logger   *logging.Logger
}

// NewManager creates a Manager. The fallback factory should be infallible
// in practice (NewSyntheticBackend never fails); it may be nil, in which
// case a primary load failure leaves the manager unloaded.
func NewManager(primary, fallback BackendFactory, logger *logging.Logger) *Manager {
	return &Manager{
		state:    StateUnloaded,
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// UsedFallback reports whether the active backend came from the fallback
// factory.
func (m *Manager) UsedFallback() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fellBack
}

// Initialize loads the backend if it is not loaded yet. It is safe to call
// from any number of goroutines: exactly one load runs, everyone else
// blocks until it finishes (or their ctx expires) and shares its outcome.
// Calling Initialize on a ready manager returns nil immediately.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()

	switch m.state {
	case StateReady:
		m.mu.Unlock()
		return nil
	case StateClosed:
		m.mu.Unlock()
		return ErrClosed
	case StateLoading:
		done := m.loading
		m.mu.Unlock()
		select {
		case <-done:
			m.mu.Lock()
			err := m.loadErr
			m.mu.Unlock()
			return err
		case <-ctx.Done():
			// The load keeps running; only this waiter gives up.
			return ctx.Err()
		}
	}

	// StateUnloaded: this caller performs the load.
	m.state = StateLoading
	done := make(chan struct{})
	m.loading = done
	m.mu.Unlock()

	backend, fellBack, err := m.load(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateClosed {
		// Cleanup ran while we were loading. Discard the backend.
		if backend != nil {
			backend.Close()
		}
		m.loadErr = ErrClosed
		close(done)
		return ErrClosed
	}

	if err != nil {
		m.state = StateUnloaded
		m.loadErr = err
		close(done)
		return err
	}

	m.backend = backend
	m.fellBack = fellBack
	m.state = StateReady
	m.loadErr = nil
	close(done)
	return nil
}

// load runs the primary factory and, on failure, the fallback factory.
func (m *Manager) load(ctx context.Context) (Backend, bool, error) {
	backend, err := m.primary(ctx)
	if err == nil {
		if m.logger != nil {
			info := backend.ModelInfo()
			m.logger.Info("generation backend loaded",
				zap.String("backend", info.Backend),
				zap.String("model", info.ModelName))
		}
		return backend, false, nil
	}

	if m.fallback == nil {
		return nil, false, err
	}

	if m.logger != nil {
		m.logger.Warn("primary backend failed to load, substituting fallback",
			zap.Error(err))
	}

	fb, fbErr := m.fallback(ctx)
	if fbErr != nil {
		return nil, false, fbErr
	}
	return fb, true, nil
}

// Backend returns the active backend, or ErrNotReady before Initialize has
// completed.
func (m *Manager) Backend() (Backend, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateReady:
		return m.backend, nil
	case StateClosed:
		return nil, ErrClosed
	default:
		return nil, ErrNotReady
	}
}

// ModelInfo returns metadata for the active backend, or a zero ModelInfo
// before the manager is ready.
func (m *Manager) ModelInfo() ModelInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateReady || m.backend == nil {
		return ModelInfo{}
	}
	return m.backend.ModelInfo()
}

// Infer initializes the backend if needed and runs one generation. This is
// the entry point the executor uses; lazy loading keeps startup fast.
func (m *Manager) Infer(ctx context.Context, req InferRequest) (*InferResult, error) {
	if err := m.Initialize(ctx); err != nil {
		return nil, err
	}
	backend, err := m.Backend()
	if err != nil {
		return nil, err
	}
	return backend.Infer(ctx, req)
}

// Cleanup closes the active backend and moves the manager to the closed
// state. It is idempotent; extra calls return nil.
func (m *Manager) Cleanup() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateClosed {
		return nil
	}

	var err error
	if m.backend != nil {
		err = m.backend.Close()
		m.backend = nil
	}
	m.state = StateClosed
	return err
}
