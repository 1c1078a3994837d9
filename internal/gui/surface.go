// Package gui is the fyne tuning surface.
package gui

import (
	"context"
	"sync"
	"sync/atomic"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
	"meltpool/internal/models"
	"meltpool/internal/opencv/conversion"
	"meltpool/internal/opencv/safe"
	"meltpool/internal/tuner"
)

const (
	AppID       = "com.meltpool.tuner"
	PanelWidth  = 280
	eventBuffer = 16
)

// Surface binds sliders, keys and buttons to tuner events. Widget callbacks
// run on the fyne goroutine and only enqueue; the tuner drains the queue
// from its own goroutine, one event at a time.
type Surface struct {
	app     fyne.App
	window  fyne.Window
	display *ImageDisplay
	panel   *ParameterPanel

	events    chan tuner.Event
	quit      chan struct{}
	closeOnce sync.Once
	stopped   atomic.Bool
}

func NewSurface(a fyne.App, title string, cfg models.ParameterConfig) *Surface {
	s := &Surface{
		app:     a,
		window:  a.NewWindow(title),
		display: NewImageDisplay(),
		panel:   NewParameterPanel(models.TunerParameters(cfg.ThresholdMode), cfg),
		events:  make(chan tuner.Event, eventBuffer),
		quit:    make(chan struct{}),
	}
	s.setupWindow()
	return s
}

func (s *Surface) setupWindow() {
	s.panel.SetParameterChangeHandler(func(name string, value int) {
		s.emit(tuner.ParamChanged{Name: name, Value: value})
	})

	buttons := container.NewGridWithColumns(2,
		widget.NewButton("Show boundary", func() { s.emit(tuner.ShowBoundary{}) }),
		widget.NewButton("Save", func() { s.emit(tuner.Save{}) }),
	)

	left := container.NewBorder(nil, buttons, nil, nil, container.NewVScroll(s.panel.GetContainer()))
	split := container.NewHSplit(left, s.display.GetContainer())
	split.SetOffset(float64(PanelWidth) / float64(PanelWidth+ImageAreaWidth))

	s.window.SetContent(split)
	s.window.Resize(fyne.NewSize(PanelWidth+ImageAreaWidth, ImageAreaHeight))

	s.window.Canvas().SetOnTypedRune(func(r rune) {
		switch r {
		case 'c':
			s.emit(tuner.ShowBoundary{})
		case 's':
			s.emit(tuner.Save{})
		}
	})
	s.window.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) {
		if ev.Name == fyne.KeyEscape {
			s.emit(tuner.Terminate{})
		}
	})
	s.window.SetCloseIntercept(func() {
		s.emit(tuner.Terminate{})
	})
}

func (s *Surface) emit(ev tuner.Event) {
	select {
	case s.events <- ev:
	case <-s.quit:
	}
}

func (s *Surface) Next(ctx context.Context) (tuner.Event, error) {
	select {
	case ev := <-s.events:
		return ev, nil
	case <-s.quit:
		return tuner.Terminate{}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Surface) Show(img *safe.Mat) error {
	preview, err := conversion.Preview(img, ImageAreaWidth, ImageAreaHeight)
	if err != nil {
		return err
	}

	s.do(func() {
		s.display.SetPreviewImage(preview)
	})
	return nil
}

func (s *Surface) SetStatus(text string) {
	s.do(func() {
		s.display.SetStatus(text)
	})
}

// Close quits the fyne app, which makes ShowAndRun return.
func (s *Surface) Close() error {
	s.closeOnce.Do(func() {
		close(s.quit)
		s.do(s.app.Quit)
	})
	return nil
}

// ShowAndRun blocks on the fyne event loop; call it from the main goroutine.
func (s *Surface) ShowAndRun() {
	s.window.ShowAndRun()
	s.stopped.Store(true)
}

// do schedules fn on the fyne goroutine unless the event loop has ended.
func (s *Surface) do(fn func()) {
	if s.stopped.Load() {
		return
	}
	fyne.Do(fn)
}
