package webui

import (
	"fmt"
	"testing"

	"aesthetisim/core"
	"aesthetisim/simulation"
)

func TestRingEvictsOldest(t *testing.T) {
	ring := NewRing[int](3)
	for i := 1; i <= 5; i++ {
		ring.Push(i)
	}

	got := ring.All()
	want := []int{3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("All() returned %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("All()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestRingLast(t *testing.T) {
	ring := NewRing[string](5)
	for _, s := range []string{"a", "b", "c", "d"} {
		ring.Push(s)
	}

	got := ring.Last(2)
	if len(got) != 2 || got[0] != "c" || got[1] != "d" {
		t.Errorf("Last(2) = %v, want [c d]", got)
	}

	if got := ring.Last(10); len(got) != 4 {
		t.Errorf("Last(10) returned %d entries, want 4", len(got))
	}
	if got := ring.Last(0); len(got) != 0 {
		t.Errorf("Last(0) returned %d entries, want 0", len(got))
	}
}

func TestRingClear(t *testing.T) {
	ring := NewRing[int](2)
	ring.Push(1)
	ring.Push(2)
	ring.Clear()

	if ring.Len() != 0 {
		t.Errorf("Len = %d after Clear, want 0", ring.Len())
	}
	if ring.Cap() != 2 {
		t.Errorf("Cap = %d after Clear, want 2", ring.Cap())
	}
}

func TestActivityFeedBounded(t *testing.T) {
	feed := NewActivityFeed(3)
	for i := 0; i < 6; i++ {
		feed.Record(SimulationUpdateData{SimulationID: fmt.Sprintf("sim-%d", i)})
	}

	recent := feed.Recent(10)
	if len(recent) != 3 {
		t.Fatalf("Recent returned %d entries, want 3", len(recent))
	}
	if recent[2].SimulationID != "sim-5" {
		t.Errorf("newest entry = %s, want sim-5", recent[2].SimulationID)
	}
}

func TestStatusFanout(t *testing.T) {
	feed := NewActivityFeed(10)
	fanout := &StatusFanout{Feed: feed}

	rec := simulation.NewRecord("patient-1", core.InterventionLips, 2.0)
	fanout.NotifyStatus(rec)

	if feed.Len() != 1 {
		t.Fatalf("feed holds %d entries, want 1", feed.Len())
	}
	update := feed.Recent(1)[0]
	if update.SimulationID != rec.ID || update.Status != "pending" {
		t.Errorf("fed update = %+v, want id %s status pending", update, rec.ID)
	}
}
