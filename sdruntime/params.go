package sdruntime

import "fmt"

// Default generation parameters. These mirror the values tuned for
// portrait enhancement with ControlNet conditioning.
const (
	DefaultSteps             = 20
	DefaultGuidanceScale     = 7.5
	DefaultConditioningScale = 0.8
	DefaultDimension         = 512
)

// Parameter bounds enforced by ValidateRequest.
const (
	MinSteps         = 1
	MaxSteps         = 100
	MinGuidanceScale = 1.0
	MaxGuidanceScale = 30.0
	MaxDimension     = 2048
)

// ApplyDefaults fills zero-valued fields with the package defaults and
// resolves the seed. It does not validate; call ValidateRequest after.
func ApplyDefaults(req InferRequest) InferRequest {
	if req.Steps == 0 {
		req.Steps = DefaultSteps
	}
	if req.GuidanceScale == 0 {
		req.GuidanceScale = DefaultGuidanceScale
	}
	if req.ConditioningScale == 0 {
		req.ConditioningScale = DefaultConditioningScale
	}
	if req.Width == 0 && req.Height == 0 {
		if req.InitImage != nil {
			req.Width = req.InitImage.Bounds().Dx()
			req.Height = req.InitImage.Bounds().Dy()
		} else {
			req.Width = DefaultDimension
			req.Height = DefaultDimension
		}
	}
	req.Seed = ResolveSeed(req.Seed)
	return req
}

// ValidateRequest checks an InferRequest against the parameter bounds.
// All violations wrap ErrInvalidParams.
func ValidateRequest(req InferRequest) error {
	if req.Prompt == "" {
		return fmt.Errorf("%w: prompt is empty", ErrInvalidParams)
	}
	if req.Steps < MinSteps || req.Steps > MaxSteps {
		return fmt.Errorf("%w: steps %d outside [%d, %d]", ErrInvalidParams, req.Steps, MinSteps, MaxSteps)
	}
	if req.GuidanceScale < MinGuidanceScale || req.GuidanceScale > MaxGuidanceScale {
		return fmt.Errorf("%w: guidance scale %.2f outside [%.1f, %.1f]",
			ErrInvalidParams, req.GuidanceScale, MinGuidanceScale, MaxGuidanceScale)
	}
	if req.ConditioningScale < 0 || req.ConditioningScale > 2.0 {
		return fmt.Errorf("%w: conditioning scale %.2f outside [0, 2]", ErrInvalidParams, req.ConditioningScale)
	}
	if req.Width < 8 || req.Height < 8 {
		return fmt.Errorf("%w: dimensions %dx%d too small", ErrInvalidParams, req.Width, req.Height)
	}
	if req.Width > MaxDimension || req.Height > MaxDimension {
		return fmt.Errorf("%w: dimensions %dx%d exceed %d", ErrInvalidParams, req.Width, req.Height, MaxDimension)
	}
	if req.Width%8 != 0 || req.Height%8 != 0 {
		return fmt.Errorf("%w: dimensions %dx%d must be divisible by 8", ErrInvalidParams, req.Width, req.Height)
	}
	return nil
}
