package validation

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"aesthetisim/core"
)

func testConfig(t *testing.T) *core.Config {
	t.Helper()
	dir := t.TempDir()
	return &core.Config{
		UploadDir:  filepath.Join(dir, "uploads"),
		DBPath:     filepath.Join(dir, "data", "test.db"),
		GenBackend: core.BackendSynthetic,
	}
}

func TestSuitePassesWithSyntheticBackend(t *testing.T) {
	var buf bytes.Buffer
	suite := NewSuite(testConfig(t)).
		WithOutput(&buf).
		WithSkipNetwork(true)

	result := suite.Validate()

	if !result.Success {
		t.Fatalf("suite failed: %v", result.GetErrors())
	}
	if result.FailedSteps != 0 {
		t.Errorf("FailedSteps = %d, want 0", result.FailedSteps)
	}
	if !strings.Contains(buf.String(), "Validation Passed") {
		t.Errorf("summary missing from output: %s", buf.String())
	}
}

func TestSuiteFailsWhenBackendUnconfigured(t *testing.T) {
	cfg := testConfig(t)
	cfg.GenBackend = core.BackendOpenAI // no API key set

	var buf bytes.Buffer
	result := NewSuite(cfg).
		WithOutput(&buf).
		WithSkipNetwork(true).
		Validate()

	if result.Success {
		t.Fatal("expected failure for openai backend without key")
	}
	if len(result.GetErrors()) == 0 {
		t.Error("expected errors from failed steps")
	}
}

func TestSuiteWarnsInAutoModeWithoutRemote(t *testing.T) {
	cfg := testConfig(t)
	cfg.GenBackend = core.BackendAuto

	result := NewSuite(cfg).
		WithOutput(&bytes.Buffer{}).
		WithSkipNetwork(true).
		Validate()

	if !result.Success {
		t.Fatalf("auto mode should pass: %v", result.GetErrors())
	}
	if result.Warnings == 0 {
		t.Error("expected a warning for auto mode without remote backend")
	}
}

func TestSuiteFailFast(t *testing.T) {
	cfg := testConfig(t)
	cfg.UploadDir = string([]byte{0}) // invalid path, first check fails

	result := NewSuite(cfg).
		WithOutput(&bytes.Buffer{}).
		WithSkipNetwork(true).
		WithFailFast(true).
		Validate()

	if result.Success {
		t.Fatal("expected failure")
	}
	if result.TotalSteps != 1 {
		t.Errorf("TotalSteps = %d, want 1 with fail-fast", result.TotalSteps)
	}
}

func TestSuiteSkipsNetworkChecks(t *testing.T) {
	cfg := testConfig(t)
	cfg.SDAPIURL = "http://127.0.0.1:1" // would fail if probed

	result := NewSuite(cfg).
		WithOutput(&bytes.Buffer{}).
		WithTimeout(time.Second).
		WithSkipNetwork(true).
		Validate()

	var found bool
	for _, step := range result.Steps {
		if step.Name == "Generation Endpoint" && step.Status == StepSkipped {
			found = true
		}
	}
	if !found {
		t.Error("network check was not skipped")
	}
}

func TestStepStatusString(t *testing.T) {
	tests := []struct {
		status StepStatus
		want   string
	}{
		{StepPending, "pending"},
		{StepRunning, "running"},
		{StepPassed, "passed"},
		{StepFailed, "failed"},
		{StepWarning, "warning"},
		{StepSkipped, "skipped"},
		{StepStatus(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("StepStatus(%d).String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}
