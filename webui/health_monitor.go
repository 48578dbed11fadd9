package webui

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"aesthetisim/logging"
	"aesthetisim/sdruntime"
)

// BackendChecker exposes the generation backend state the monitor polls.
// sdruntime.Manager satisfies it.
type BackendChecker interface {
	State() sdruntime.State
	UsedFallback() bool
	ModelInfo() sdruntime.ModelInfo
}

// BackendMonitor polls the generation backend and surfaces its state to
// the dashboard: the current status is available synchronously for the
// health endpoint, and state changes invoke the OnChange callback so
// they can be broadcast to WebSocket clients.
type BackendMonitor struct {
	mu       sync.RWMutex
	checker  BackendChecker
	status   BackendStatusData
	interval time.Duration
	onChange func(BackendStatusData)
	logger   *logging.Logger
}

// BackendMonitorConfig configures the monitor.
type BackendMonitorConfig struct {
	// CheckInterval is how often the backend state is sampled.
	CheckInterval time.Duration

	// OnChange is called when the sampled state differs from the last
	// one. May be nil.
	OnChange func(BackendStatusData)

	Logger *logging.Logger
}

// NewBackendMonitor creates a monitor for the given backend.
func NewBackendMonitor(checker BackendChecker, cfg BackendMonitorConfig) *BackendMonitor {
	interval := cfg.CheckInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	m := &BackendMonitor{
		checker:  checker,
		interval: interval,
		onChange: cfg.OnChange,
		logger:   cfg.Logger,
	}
	m.status = m.sample()
	return m
}

// Start polls until ctx is cancelled. Run it in a goroutine.
func (m *BackendMonitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.check()
		}
	}
}

// Status returns the most recent sample.
func (m *BackendMonitor) Status() BackendStatusData {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// CheckNow samples immediately, outside the ticker cadence.
func (m *BackendMonitor) CheckNow() BackendStatusData {
	m.check()
	return m.Status()
}

func (m *BackendMonitor) check() {
	next := m.sample()

	m.mu.Lock()
	prev := m.status
	m.status = next
	m.mu.Unlock()

	if prev.State != next.State || prev.UsedFallback != next.UsedFallback {
		if m.logger != nil {
			m.logger.Info("generation backend state changed",
				zap.String("from", prev.State),
				zap.String("to", next.State),
				zap.Bool("used_fallback", next.UsedFallback),
			)
		}
		if m.onChange != nil {
			m.onChange(next)
		}
	}
}

func (m *BackendMonitor) sample() BackendStatusData {
	info := m.checker.ModelInfo()
	return BackendStatusData{
		Backend:      info.Backend,
		Model:        info.ModelName,
		State:        m.checker.State().String(),
		UsedFallback: m.checker.UsedFallback(),
		CheckedAt:    time.Now(),
	}
}
