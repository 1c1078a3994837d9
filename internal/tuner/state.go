// Package tuner drives live parameter tuning against a single frame.
package tuner

import (
	"context"

	"meltpool/internal/models"
	"meltpool/internal/opencv/safe"
)

type Phase int

const (
	Idle Phase = iota
	PreviewDirty
	Previewing
	BoundaryShown
	Saved
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case PreviewDirty:
		return "preview_dirty"
	case Previewing:
		return "previewing"
	case BoundaryShown:
		return "boundary_shown"
	case Saved:
		return "saved"
	}
	return "unknown"
}

// Event is one input from a Surface.
type Event interface {
	event()
}

// ParamChanged reports a new slider value.
type ParamChanged struct {
	Name  string
	Value int
}

// ShowBoundary asks for the boundary overlay on the current preview.
type ShowBoundary struct{}

// Save asks for the current configuration to be persisted.
type Save struct{}

// Terminate ends the loop.
type Terminate struct{}

func (ParamChanged) event() {}
func (ShowBoundary) event() {}
func (Save) event()         {}
func (Terminate) event()    {}

// Surface is an input-binding display. Next blocks until the user acts;
// Show replaces the displayed image. Show must not retain img.
type Surface interface {
	Next(ctx context.Context) (Event, error)
	Show(img *safe.Mat) error
	Close() error
}

// StatusReporter is implemented by surfaces that can show a line of text
// next to the image.
type StatusReporter interface {
	SetStatus(text string)
}

// State is everything the tuner knows. It is owned by the single goroutine
// running the loop.
type State struct {
	Config       models.ParameterConfig
	Source       *safe.Mat
	Preprocessed *safe.Mat
	Last         *models.Measurement
	Phase        Phase
	FrameID      string
}

// NewState starts in Idle. Source stays owned by the caller.
func NewState(frameID string, source *safe.Mat, cfg models.ParameterConfig) *State {
	return &State{
		Config:  cfg,
		Source:  source,
		Phase:   Idle,
		FrameID: frameID,
	}
}

// replacePreview swaps in a new preprocessed frame, releasing the old one.
func (s *State) replacePreview(next *safe.Mat) {
	if s.Preprocessed != nil {
		s.Preprocessed.Close()
	}
	s.Preprocessed = next
	s.Last = nil
}

// Release frees the preprocessed frame. Source is not touched.
func (s *State) Release() {
	s.replacePreview(nil)
}
