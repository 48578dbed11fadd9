package core

import (
	"testing"
	"time"
)

func TestAttemptRecordIncrement(t *testing.T) {
	record := NewAttemptRecord()
	if record.Count != 1 {
		t.Errorf("new record count = %d, want 1", record.Count)
	}

	updated := record.Increment()
	if updated.Count != 2 {
		t.Errorf("incremented count = %d, want 2", updated.Count)
	}
	if record.Count != 1 {
		t.Error("Increment mutated the original record")
	}
	if !updated.ResetAt.Equal(record.ResetAt) {
		t.Error("Increment changed the reset window")
	}
}

func TestAttemptRecordBlocking(t *testing.T) {
	record := NewAttemptRecordWithWindow(time.Hour)
	for i := 0; i < 4; i++ {
		record = record.Increment()
	}

	if !record.IsBlocked(5) {
		t.Error("record with 5 attempts not blocked at max 5")
	}
	if record.IsBlocked(6) {
		t.Error("record with 5 attempts blocked at max 6")
	}
	if record.TimeUntilReset() <= 0 {
		t.Error("unexpired record reports zero time until reset")
	}
}

func TestAttemptRecordExpiredWindow(t *testing.T) {
	record := AttemptRecord{Count: 10, ResetAt: time.Now().Add(-time.Minute)}

	if !record.ShouldReset() {
		t.Error("expired record did not report ShouldReset")
	}
	if record.IsBlocked(5) {
		t.Error("expired record still blocked")
	}
	if record.TimeUntilReset() != 0 {
		t.Errorf("TimeUntilReset = %v for expired record, want 0", record.TimeUntilReset())
	}
}
