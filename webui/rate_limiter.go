package webui

import (
	"context"
	"sync"
	"time"

	"aesthetisim/core"
)

// RateLimiter tracks failed login attempts per client IP and blocks an
// IP once it exceeds the limit. A successful login resets the slate.
// Safe for concurrent use.
type RateLimiter struct {
	mu            sync.RWMutex
	attempts      map[string]core.AttemptRecord
	maxAttempts   int
	windowMinutes int
	blockMinutes  int
}

// NewRateLimiter creates a limiter that blocks an IP for blockMinutes
// after maxAttempts failures within windowMinutes.
func NewRateLimiter(maxAttempts, windowMinutes, blockMinutes int) *RateLimiter {
	return &RateLimiter{
		attempts:      make(map[string]core.AttemptRecord),
		maxAttempts:   maxAttempts,
		windowMinutes: windowMinutes,
		blockMinutes:  blockMinutes,
	}
}

// Allow reports whether an IP may attempt authentication. When blocked,
// the second return value is the time until the block lifts.
func (r *RateLimiter) Allow(ip string) (bool, time.Duration) {
	r.mu.RLock()
	record, exists := r.attempts[ip]
	r.mu.RUnlock()

	if !exists || record.ShouldReset() {
		return true, 0
	}
	if record.IsBlocked(r.maxAttempts) {
		return false, record.TimeUntilReset()
	}
	return true, 0
}

// RecordAttempt registers one failed attempt for an IP. Hitting the
// limit extends the window to the block duration.
func (r *RateLimiter) RecordAttempt(ip string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	window := time.Duration(r.windowMinutes) * time.Minute

	record, exists := r.attempts[ip]
	if !exists || record.ShouldReset() {
		r.attempts[ip] = core.NewAttemptRecordWithWindow(window)
		return
	}

	record = record.Increment()
	if record.Count == r.maxAttempts {
		record.ResetAt = time.Now().Add(time.Duration(r.blockMinutes) * time.Minute)
	}
	r.attempts[ip] = record
}

// Reset clears the attempt record for an IP after a successful login.
func (r *RateLimiter) Reset(ip string) {
	r.mu.Lock()
	delete(r.attempts, ip)
	r.mu.Unlock()
}

// Cleanup removes expired records and returns how many it removed.
func (r *RateLimiter) Cleanup() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for ip, record := range r.attempts {
		if record.ShouldReset() {
			delete(r.attempts, ip)
			removed++
		}
	}
	return removed
}

// StartCleanupTicker runs Cleanup on an interval until ctx is cancelled.
func (r *RateLimiter) StartCleanupTicker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.Cleanup()
			}
		}
	}()
}

// Count returns the number of tracked IPs.
func (r *RateLimiter) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.attempts)
}

// AttemptCount returns the live attempt count for an IP, zero once the
// window expired.
func (r *RateLimiter) AttemptCount(ip string) int {
	r.mu.RLock()
	record, exists := r.attempts[ip]
	r.mu.RUnlock()

	if !exists || record.ShouldReset() {
		return 0
	}
	return record.Count
}
