package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gocv.io/x/gocv"
)

// OutputPrefix is prepended to the frame ID to name annotated files.
const OutputPrefix = "processed_"

// DirSink writes each annotated frame to Dir as processed_<id>.
type DirSink struct {
	Dir    string
	logger Logger
}

func NewDirSink(dir string, logger Logger) (*DirSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	return &DirSink{Dir: dir, logger: logger}, nil
}

// OutputPath returns where frame id is written.
func (s *DirSink) OutputPath(id string) string {
	return filepath.Join(s.Dir, OutputPrefix+id)
}

func (s *DirSink) Save(ctx context.Context, frame AnnotatedFrame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if frame.Image == nil || frame.Image.Empty() {
		return ErrEmptyFrame
	}

	path := s.OutputPath(frame.ID)
	if !gocv.IMWrite(path, frame.Image.GetMat()) {
		return fmt.Errorf("%w: %s", ErrSave, path)
	}

	if s.logger != nil {
		s.logger.Debug("DirSink", "annotated frame written", map[string]interface{}{
			"path": path,
		})
	}
	return nil
}

// WindowSink shows each frame in a highgui window and blocks until a key is
// pressed. Calls are serialised since highgui is not goroutine safe.
type WindowSink struct {
	mu     sync.Mutex
	window *gocv.Window
}

func NewWindowSink(title string) *WindowSink {
	return &WindowSink{window: gocv.NewWindow(title)}
}

func (s *WindowSink) Save(ctx context.Context, frame AnnotatedFrame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if frame.Image == nil || frame.Image.Empty() {
		return ErrEmptyFrame
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.window.SetWindowTitle(frame.ID)
	s.window.IMShow(frame.Image.GetMat())
	s.window.WaitKey(0)
	return nil
}

func (s *WindowSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.window.Close()
}
