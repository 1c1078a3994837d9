package timing

import (
	"testing"
	"time"
)

func TestTrackerAverages(t *testing.T) {
	tr := NewTracker()
	tr.Record("blur", 2*time.Millisecond)
	tr.Record("blur", 4*time.Millisecond)

	if got := tr.GetAverageTime("blur"); got != 3*time.Millisecond {
		t.Errorf("average = %v, want 3ms", got)
	}
	if got := tr.Summary()["blur_avg_ms"]; got != 3.0 {
		t.Errorf("summary = %v, want 3.0", got)
	}
}

func TestTrackerStartEnd(t *testing.T) {
	tr := NewTracker()
	tr.EndTiming(tr.StartTiming("threshold"))

	if n := len(tr.GetTimings("threshold")); n != 1 {
		t.Fatalf("recorded %d timings, want 1", n)
	}

	tr.SetEnabled(false)
	tr.EndTiming(tr.StartTiming("threshold"))
	if n := len(tr.GetTimings("threshold")); n != 1 {
		t.Errorf("disabled tracker recorded, have %d", n)
	}

	tr.Reset("")
	if tr.GetTimings("threshold") != nil {
		t.Error("Reset did not clear timings")
	}
}
