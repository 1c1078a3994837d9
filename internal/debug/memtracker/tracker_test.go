package memtracker

import (
	"testing"
	"time"

	"meltpool/internal/opencv/safe"
)

func TestTrackerAccounting(t *testing.T) {
	tr := NewTracker(false)

	tr.TrackAllocation(1, 100, "frame")
	tr.TrackAllocation(2, 50, "mask")
	tr.TrackDeallocation(1, "frame")
	tr.TrackDeallocation(99, "stale")

	s := tr.Stats()
	if s.Live != 1 || s.LiveBytes != 50 || s.AllocationCount != 2 || s.Untracked != 1 {
		t.Errorf("stats = %+v", s)
	}

	live := tr.Live()
	if len(live) != 1 || live[0].Tag != "mask" {
		t.Errorf("live = %+v", live)
	}
}

func TestDetectLeaks(t *testing.T) {
	tr := NewTracker(true)
	tr.TrackAllocation(7, 10, "annotated")

	if leaks := tr.DetectLeaks(time.Hour); len(leaks) != 0 {
		t.Errorf("fresh allocation reported as leak: %+v", leaks)
	}

	time.Sleep(5 * time.Millisecond)
	leaks := tr.DetectLeaks(time.Millisecond)
	if len(leaks) != 1 || len(leaks[0].StackTrace) == 0 {
		t.Errorf("leaks = %+v", leaks)
	}
}

func TestTracksSafeMats(t *testing.T) {
	tr := NewTracker(false)
	safe.SetTracker(tr)
	defer safe.SetTracker(nil)

	mat, err := safe.NewGrayFromBytes(4, 4, make([]byte, 16))
	if err != nil {
		t.Fatalf("NewGrayFromBytes: %v", err)
	}

	if s := tr.Stats(); s.Live != 1 || s.LiveBytes != 16 {
		t.Errorf("after create: %+v", s)
	}

	mat.Close()
	mat.Close()

	if s := tr.Stats(); s.Live != 0 || s.Untracked != 0 {
		t.Errorf("after close: %+v", s)
	}
}
