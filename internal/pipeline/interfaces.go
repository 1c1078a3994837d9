package pipeline

import (
	"context"
	"errors"

	"meltpool/internal/models"
	"meltpool/internal/opencv/safe"
)

var (
	ErrFrameNotFound = errors.New("frame not found")
	ErrDecode        = errors.New("frame could not be decoded")
	ErrEmptyFrame    = errors.New("empty frame")
	ErrSave          = errors.New("annotated frame could not be saved")
)

// FrameResult carries either a decoded grayscale frame or the error that
// prevented loading it. The receiver owns Frame and must Close it.
type FrameResult struct {
	ID    string
	Path  string
	Frame *safe.Mat
	Err   error
}

// FrameSource yields frames in a stable order and closes the channel when
// exhausted or when ctx is cancelled.
type FrameSource interface {
	Frames(ctx context.Context) (<-chan FrameResult, error)
}

// AnnotatedFrame is handed to a Sink. Sinks must not retain Image after
// Save returns.
type AnnotatedFrame struct {
	ID          string
	Image       *safe.Mat
	Measurement models.Measurement
}

// Sink persists or displays annotated frames. Sinks driven by a batch with
// more than one worker must be safe for concurrent use.
type Sink interface {
	Save(ctx context.Context, frame AnnotatedFrame) error
}

type SinkFunc func(ctx context.Context, frame AnnotatedFrame) error

func (f SinkFunc) Save(ctx context.Context, frame AnnotatedFrame) error {
	return f(ctx, frame)
}

// Discard drops every frame.
var Discard Sink = SinkFunc(func(context.Context, AnnotatedFrame) error { return nil })
