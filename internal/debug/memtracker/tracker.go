// Package memtracker accounts for native image buffers that are still alive.
// It implements safe.LifetimeTracker.
package memtracker

import (
	"runtime"
	"sort"
	"sync"
	"time"
)

type Allocation struct {
	ID          uint64
	Size        int64
	Tag         string
	AllocatedAt time.Time
	StackTrace  []uintptr
}

type Stats struct {
	TotalAllocated   int64
	TotalDeallocated int64
	LiveBytes        int64
	Live             int
	AllocationCount  int64
	// Untracked counts releases of buffers created before the tracker was
	// installed.
	Untracked int64
}

type Tracker struct {
	mu          sync.Mutex
	live        map[uint64]Allocation
	stackTraces bool
	stats       Stats
}

func NewTracker(stackTraces bool) *Tracker {
	return &Tracker{
		live:        make(map[uint64]Allocation),
		stackTraces: stackTraces,
	}
}

func (t *Tracker) TrackAllocation(id uint64, size int64, tag string) {
	a := Allocation{
		ID:          id,
		Size:        size,
		Tag:         tag,
		AllocatedAt: time.Now(),
	}
	if t.stackTraces {
		var pcs [32]uintptr
		n := runtime.Callers(3, pcs[:])
		a.StackTrace = pcs[:n]
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.live[id] = a
	t.stats.TotalAllocated += size
	t.stats.AllocationCount++
}

func (t *Tracker) TrackDeallocation(id uint64, _ string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	a, ok := t.live[id]
	if !ok {
		t.stats.Untracked++
		return
	}
	delete(t.live, id)
	t.stats.TotalDeallocated += a.Size
}

func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.stats
	s.Live = len(t.live)
	s.LiveBytes = s.TotalAllocated - s.TotalDeallocated
	return s
}

// Live returns the allocations not yet released, oldest first.
func (t *Tracker) Live() []Allocation {
	t.mu.Lock()
	out := make([]Allocation, 0, len(t.live))
	for _, a := range t.live {
		out = append(out, a)
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DetectLeaks returns live allocations older than olderThan.
func (t *Tracker) DetectLeaks(olderThan time.Duration) []Allocation {
	cutoff := time.Now().Add(-olderThan)
	var leaks []Allocation
	for _, a := range t.Live() {
		if a.AllocatedAt.Before(cutoff) {
			leaks = append(leaks, a)
		}
	}
	return leaks
}

// Fields summarizes the tracker for a structured log line.
func (t *Tracker) Fields() map[string]interface{} {
	s := t.Stats()
	tags := make(map[string]int)
	for _, a := range t.Live() {
		tags[a.Tag]++
	}
	return map[string]interface{}{
		"allocations": s.AllocationCount,
		"live":        s.Live,
		"live_bytes":  s.LiveBytes,
		"untracked":   s.Untracked,
		"live_tags":   tags,
	}
}
