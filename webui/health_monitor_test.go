package webui

import (
	"sync"
	"testing"
	"time"

	"aesthetisim/sdruntime"
)

type fakeChecker struct {
	mu       sync.Mutex
	state    sdruntime.State
	fallback bool
}

func (f *fakeChecker) State() sdruntime.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeChecker) UsedFallback() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fallback
}

func (f *fakeChecker) ModelInfo() sdruntime.ModelInfo {
	return sdruntime.ModelInfo{Backend: "synthetic", ModelName: "synthetic-v1"}
}

func (f *fakeChecker) set(state sdruntime.State, fallback bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = state
	f.fallback = fallback
}

func TestBackendMonitorInitialStatus(t *testing.T) {
	checker := &fakeChecker{state: sdruntime.StateReady}
	monitor := NewBackendMonitor(checker, BackendMonitorConfig{})

	status := monitor.Status()
	if status.State != "ready" {
		t.Errorf("state = %q, want ready", status.State)
	}
	if status.Backend != "synthetic" {
		t.Errorf("backend = %q, want synthetic", status.Backend)
	}
	if status.CheckedAt.IsZero() {
		t.Error("CheckedAt not set")
	}
}

func TestBackendMonitorReportsChanges(t *testing.T) {
	checker := &fakeChecker{state: sdruntime.StateLoading}

	var changes []BackendStatusData
	monitor := NewBackendMonitor(checker, BackendMonitorConfig{
		CheckInterval: time.Hour, // changes driven by CheckNow below
		OnChange:      func(s BackendStatusData) { changes = append(changes, s) },
	})

	// Same state: no change reported.
	monitor.CheckNow()
	if len(changes) != 0 {
		t.Fatalf("change reported with no state transition: %+v", changes)
	}

	checker.set(sdruntime.StateReady, true)
	status := monitor.CheckNow()

	if status.State != "ready" || !status.UsedFallback {
		t.Errorf("status = %+v, want ready with fallback", status)
	}
	if len(changes) != 1 {
		t.Fatalf("reported %d changes, want 1", len(changes))
	}
	if changes[0].State != "ready" {
		t.Errorf("change state = %q, want ready", changes[0].State)
	}
}
