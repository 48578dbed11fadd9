// Package validation runs the startup check suite with colored progress
// output. It verifies configuration, filesystem paths, and the selected
// generation backend before the server begins accepting requests.
package validation

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"

	"aesthetisim/core"
)

// StepStatus represents the status of a validation step.
type StepStatus int

const (
	StepPending StepStatus = iota
	StepRunning
	StepPassed
	StepFailed
	StepWarning
	StepSkipped
)

// String returns the string representation of a step status.
func (s StepStatus) String() string {
	switch s {
	case StepPending:
		return "pending"
	case StepRunning:
		return "running"
	case StepPassed:
		return "passed"
	case StepFailed:
		return "failed"
	case StepWarning:
		return "warning"
	case StepSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// ValidationStep records a single check and its outcome.
type ValidationStep struct {
	Name    string
	Status  StepStatus
	Message string
	Error   error
	Latency time.Duration
}

// SuiteResult is the aggregate outcome of a suite run.
type SuiteResult struct {
	Steps       []ValidationStep
	TotalSteps  int
	PassedSteps int
	FailedSteps int
	Warnings    int
	Duration    time.Duration
	Success     bool
}

// GetErrors returns the errors from all failed steps.
func (r SuiteResult) GetErrors() []error {
	var errs []error
	for _, step := range r.Steps {
		if step.Status == StepFailed && step.Error != nil {
			errs = append(errs, step.Error)
		}
	}
	return errs
}

// checkResult is the outcome of a single check function.
type checkResult struct {
	ok      bool
	warn    bool
	message string
	err     error
}

// Suite runs startup checks in sequence with progress output.
type Suite struct {
	cfg          *core.Config
	output       io.Writer
	timeout      time.Duration
	showProgress bool
	failFast     bool
	skipNetwork  bool
}

// NewSuite creates a Suite with default settings.
func NewSuite(cfg *core.Config) *Suite {
	return &Suite{
		cfg:          cfg,
		output:       os.Stdout,
		timeout:      10 * time.Second,
		showProgress: true,
		failFast:     false,
	}
}

// WithOutput sets the output writer for progress messages.
func (s *Suite) WithOutput(w io.Writer) *Suite {
	s.output = w
	return s
}

// WithTimeout sets the timeout for network checks.
func (s *Suite) WithTimeout(timeout time.Duration) *Suite {
	s.timeout = timeout
	return s
}

// WithShowProgress enables or disables progress output.
func (s *Suite) WithShowProgress(show bool) *Suite {
	s.showProgress = show
	return s
}

// WithFailFast stops the suite on the first failed check.
func (s *Suite) WithFailFast(failFast bool) *Suite {
	s.failFast = failFast
	return s
}

// WithSkipNetwork disables checks that reach out to remote endpoints.
func (s *Suite) WithSkipNetwork(skip bool) *Suite {
	s.skipNetwork = skip
	return s
}

// Validate runs all checks and prints a summary.
func (s *Suite) Validate() SuiteResult {
	startTime := time.Now()
	steps := make([]ValidationStep, 0, 6)

	if s.showProgress {
		s.printHeader("AesthetiSim Startup Validation")
	}

	checks := []struct {
		name    string
		network bool
		fn      func() checkResult
	}{
		{"Upload Directory", false, s.checkUploadDir},
		{"Database Path", false, s.checkDatabasePath},
		{"Catalog Overrides", false, s.checkCatalogOverrides},
		{"Generation Backend", false, s.checkGenerationBackend},
		{"Generation Endpoint", true, s.checkEndpointConnectivity},
	}

	for _, check := range checks {
		if check.network && s.skipNetwork {
			step := ValidationStep{
				Name:    check.name,
				Status:  StepSkipped,
				Message: "Network checks disabled",
			}
			if s.showProgress {
				s.printStep(step)
			}
			steps = append(steps, step)
			continue
		}

		step := s.runStep(check.name, check.fn)
		steps = append(steps, step)
		if s.failFast && step.Status == StepFailed {
			break
		}
	}

	result := s.buildResult(steps, startTime)

	if s.showProgress {
		s.printSummary(result)
	}

	return result
}

// runStep executes a check with timing and progress output.
func (s *Suite) runStep(name string, fn func() checkResult) ValidationStep {
	step := ValidationStep{Name: name, Status: StepRunning}

	if s.showProgress {
		s.printStepStart(name)
	}

	startTime := time.Now()
	res := fn()
	step.Latency = time.Since(startTime)
	step.Message = res.message
	step.Error = res.err

	switch {
	case res.ok && res.warn:
		step.Status = StepWarning
	case res.ok:
		step.Status = StepPassed
	default:
		step.Status = StepFailed
	}

	if s.showProgress {
		s.printStep(step)
	}

	return step
}

// buildResult creates a SuiteResult from completed steps.
func (s *Suite) buildResult(steps []ValidationStep, startTime time.Time) SuiteResult {
	result := SuiteResult{
		Steps:      steps,
		TotalSteps: len(steps),
		Duration:   time.Since(startTime),
		Success:    true,
	}

	for _, step := range steps {
		switch step.Status {
		case StepPassed:
			result.PassedSteps++
		case StepFailed:
			result.FailedSteps++
			result.Success = false
		case StepWarning:
			result.Warnings++
		}
	}

	return result
}

// printHeader prints a validation header.
func (s *Suite) printHeader(title string) {
	fmt.Fprintln(s.output)
	headerColor := color.New(color.FgCyan, color.Bold)
	headerColor.Fprintf(s.output, "=== %s ===\n", title)
	fmt.Fprintln(s.output)
}

// printStepStart prints the step name before execution.
func (s *Suite) printStepStart(name string) {
	fmt.Fprintf(s.output, "  . %s...", name)
}

// printStep prints a completed step with its status indicator.
func (s *Suite) printStep(step ValidationStep) {
	var icon string
	var clr *color.Color

	switch step.Status {
	case StepPassed:
		icon = "✓"
		clr = color.New(color.FgGreen)
	case StepFailed:
		icon = "✗"
		clr = color.New(color.FgRed)
	case StepWarning:
		icon = "!"
		clr = color.New(color.FgYellow)
	case StepSkipped:
		icon = "○"
		clr = color.New(color.FgHiBlack)
	default:
		icon = "?"
		clr = color.New(color.FgWhite)
	}

	fmt.Fprintf(s.output, "\r")
	clr.Fprintf(s.output, "  %s %s", icon, step.Name)

	if step.Message != "" {
		dim := color.New(color.FgHiBlack)
		dim.Fprintf(s.output, " - %s", step.Message)
	}

	fmt.Fprintln(s.output)

	if step.Status == StepFailed && step.Error != nil {
		errColor := color.New(color.FgRed)
		errColor.Fprintf(s.output, "    -> %s\n", step.Error.Error())
	}
}

// printSummary prints the validation summary.
func (s *Suite) printSummary(result SuiteResult) {
	fmt.Fprintln(s.output)

	if result.Success {
		successColor := color.New(color.FgGreen, color.Bold)
		successColor.Fprintf(s.output, "=== Validation Passed ")
		color.New(color.FgHiBlack).Fprintf(s.output, "(%d/%d checks passed in %v)",
			result.PassedSteps, result.TotalSteps, result.Duration.Round(time.Millisecond))
		successColor.Fprintln(s.output, " ===")
	} else {
		failColor := color.New(color.FgRed, color.Bold)
		failColor.Fprintf(s.output, "=== Validation Failed ")
		color.New(color.FgHiBlack).Fprintf(s.output, "(%d passed, %d failed)",
			result.PassedSteps, result.FailedSteps)
		failColor.Fprintln(s.output, " ===")
	}

	fmt.Fprintln(s.output)
}
