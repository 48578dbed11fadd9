package core

import "time"

// DefaultRateLimitWindow is the default window for counting failed
// authentication attempts.
const DefaultRateLimitWindow = 15 * time.Minute

// AttemptRecord counts failed authentication attempts within a reset
// window. It is a value type; Increment returns an updated copy.
type AttemptRecord struct {
	// Count is the number of failed attempts in the current window.
	Count int

	// ResetAt is when the window expires and the count starts over.
	ResetAt time.Time
}

// NewAttemptRecord creates a record with one attempt and the default
// window.
func NewAttemptRecord() AttemptRecord {
	return NewAttemptRecordWithWindow(DefaultRateLimitWindow)
}

// NewAttemptRecordWithWindow creates a record with one attempt and a
// custom window.
func NewAttemptRecordWithWindow(window time.Duration) AttemptRecord {
	return AttemptRecord{
		Count:   1,
		ResetAt: time.Now().Add(window),
	}
}

// ShouldReset reports whether the window has expired.
func (r AttemptRecord) ShouldReset() bool {
	return time.Now().After(r.ResetAt)
}

// IsBlocked reports whether the count has reached maxAttempts within an
// unexpired window.
func (r AttemptRecord) IsBlocked(maxAttempts int) bool {
	return !r.ShouldReset() && r.Count >= maxAttempts
}

// TimeUntilReset returns the duration until the window expires, or zero
// if it already has.
func (r AttemptRecord) TimeUntilReset() time.Duration {
	remaining := time.Until(r.ResetAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Increment returns a copy with the count raised by one. The window is
// unchanged.
func (r AttemptRecord) Increment() AttemptRecord {
	r.Count++
	return r
}
