// Package highgui is the OpenCV window tuning surface. It must be driven
// from the goroutine that created it.
package highgui

import (
	"context"

	"gocv.io/x/gocv"
	"meltpool/internal/models"
	"meltpool/internal/opencv/safe"
	"meltpool/internal/tuner"
)

const (
	keyEscape = 27
	pollDelay = 30
	noKey     = -1
)

type trackbar struct {
	name string
	bar  *gocv.Trackbar
	last int
}

// keyBuffer holds a key read while redrawing until Next can report it.
type keyBuffer struct {
	key int
}

func newKeyBuffer() keyBuffer { return keyBuffer{key: noKey} }

// put keeps the first unread key; later ones are dropped like any key
// pressed while the window is busy.
func (b *keyBuffer) put(key int) {
	if key >= 0 && b.key == noKey {
		b.key = key
	}
}

// take returns the buffered key, falling back to poll when there is none.
func (b *keyBuffer) take(poll func() int) int {
	if key := b.key; key != noKey {
		b.key = noKey
		return key
	}
	return poll()
}

// eventForKey maps a WaitKey result to a tuner command.
func eventForKey(key int) (tuner.Event, bool) {
	if key < 0 {
		return nil, false
	}
	switch key & 0xFF {
	case 'c':
		return tuner.ShowBoundary{}, true
	case 's':
		return tuner.Save{}, true
	case keyEscape:
		return tuner.Terminate{}, true
	}
	return nil, false
}

// Surface polls keys and trackbar positions between WaitKey calls.
type Surface struct {
	window    *gocv.Window
	trackbars []*trackbar
	keys      keyBuffer
	closed    bool
}

func NewSurface(title string, cfg models.ParameterConfig) *Surface {
	s := &Surface{window: gocv.NewWindow(title), keys: newKeyBuffer()}

	for _, r := range models.TunerParameters(cfg.ThresholdMode) {
		value, _ := cfg.Value(r.Name)

		bar := s.window.CreateTrackbar(r.Label, r.Max)
		bar.SetMin(r.Min)
		bar.SetPos(value)

		s.trackbars = append(s.trackbars, &trackbar{name: r.Name, bar: bar, last: value})
	}
	return s
}

// Next reports the first pending key or trackbar move. Only one trackbar
// change is reported per call; the rest are picked up on the next poll.
func (s *Surface) Next(ctx context.Context) (tuner.Event, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.closed || !s.window.IsOpen() {
			return tuner.Terminate{}, nil
		}

		key := s.keys.take(func() int { return s.window.WaitKey(pollDelay) })
		if ev, ok := eventForKey(key); ok {
			return ev, nil
		}

		for _, tb := range s.trackbars {
			if pos := tb.bar.GetPos(); pos != tb.last {
				tb.last = pos
				return tuner.ParamChanged{Name: tb.name, Value: pos}, nil
			}
		}
	}
}

func (s *Surface) Show(img *safe.Mat) error {
	if err := safe.ValidateMatForOperation(img, "highgui show"); err != nil {
		return err
	}
	s.window.IMShow(img.GetMat())
	// The redraw pump can swallow a key press; keep it for Next.
	s.keys.put(s.window.WaitKey(1))
	return nil
}

func (s *Surface) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.window.Close()
}
