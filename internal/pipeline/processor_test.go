package pipeline

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"

	"meltpool/internal/logger"
	"meltpool/internal/models"
	"meltpool/internal/opencv/safe"
)

// diskFrame is a size x size black frame with a white disk at (cx, cy).
func diskFrame(t *testing.T, size, cx, cy, radius int) *safe.Mat {
	t.Helper()
	pixels := make([]byte, size*size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if (x-cx)*(x-cx)+(y-cy)*(y-cy) <= radius*radius {
				pixels[y*size+x] = 255
			}
		}
	}
	m, err := safe.NewGrayFromBytes(size, size, pixels)
	if err != nil {
		t.Fatalf("NewGrayFromBytes: %v", err)
	}
	t.Cleanup(m.Close)
	return m
}

func newTestProcessor() *Processor {
	return NewProcessor(logger.Nop(), nil)
}

func TestRunCircleScenario(t *testing.T) {
	p := newTestProcessor()
	frame := diskFrame(t, 200, 100, 100, 50)
	circle := math.Pi * 50 * 50

	cfg := models.DefaultParameterConfig()
	cfg.Tolerance = 0

	m, annotated, err := p.Run(context.Background(), "disk.png", frame, cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	annotated.Close()

	if m.Contours != 1 {
		t.Errorf("contours = %d, want 1", m.Contours)
	}
	if math.Abs(m.Area.OuterArea-circle)/circle > 0.05 {
		t.Errorf("outer area %.1f not within 5%% of %.1f", m.Area.OuterArea, circle)
	}
	if math.Abs(m.Area.MeltPoolArea) > 0.02*m.Area.OuterArea {
		t.Errorf("tolerance 0 melt pool area %.1f should be near zero", m.Area.MeltPoolArea)
	}

	cfg.Tolerance = 100
	m, annotated, err = p.Run(context.Background(), "disk.png", frame, cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	annotated.Close()

	if math.Abs(m.Area.MeltPoolArea-m.Area.OuterArea) > 0.05*m.Area.OuterArea {
		t.Errorf("tolerance 100 melt pool area %.1f should approach outer %.1f",
			m.Area.MeltPoolArea, m.Area.OuterArea)
	}
}

func TestRunBlackFrame(t *testing.T) {
	frame, err := safe.NewGrayFromBytes(64, 64, make([]byte, 64*64))
	if err != nil {
		t.Fatalf("NewGrayFromBytes: %v", err)
	}
	defer frame.Close()

	m, annotated, err := newTestProcessor().Run(context.Background(), "black", frame, models.DefaultParameterConfig())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	defer annotated.Close()

	if m.Points != 0 || len(m.Pair.Outer) != 0 || len(m.Pair.Inner) != 0 {
		t.Errorf("expected empty geometry, got %+v", m)
	}
	if m.Area.MeltPoolArea != 0 {
		t.Errorf("MeltPoolArea = %v, want 0", m.Area.MeltPoolArea)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	p := newTestProcessor()
	frame := diskFrame(t, 120, 60, 60, 30)
	before := frame.Bytes()

	cfg := models.DefaultParameterConfig()
	cfg.Gaussian = 2
	cfg.Open = 1
	cfg.Tolerance = 10

	m1, a1, err := p.Run(context.Background(), "f", frame, cfg)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	defer a1.Close()

	m2, a2, err := p.Run(context.Background(), "f", frame, cfg)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	defer a2.Close()

	if m1.Area != m2.Area {
		t.Errorf("areas differ: %+v vs %+v", m1.Area, m2.Area)
	}
	if !bytes.Equal(a1.Bytes(), a2.Bytes()) {
		t.Error("annotated output differs between runs")
	}
	if !bytes.Equal(frame.Bytes(), before) {
		t.Error("source frame was modified")
	}
}

func TestPreprocessThresholdInvertsDarkPool(t *testing.T) {
	pixels := make([]byte, 100*100)
	for i := range pixels {
		pixels[i] = 220
	}
	for y := 40; y < 60; y++ {
		for x := 40; x < 60; x++ {
			pixels[y*100+x] = 20
		}
	}
	frame, err := safe.NewGrayFromBytes(100, 100, pixels)
	if err != nil {
		t.Fatalf("NewGrayFromBytes: %v", err)
	}
	defer frame.Close()

	cfg := models.DefaultParameterConfig()
	cfg.Threshold = 1

	m, annotated, err := newTestProcessor().Run(context.Background(), "pool", frame, cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	annotated.Close()

	if m.Area.OuterArea < 300 || m.Area.OuterArea > 400 {
		t.Errorf("outer area %.1f, want about 19x19", m.Area.OuterArea)
	}
}

func TestMeasureTranslatesROI(t *testing.T) {
	p := newTestProcessor()
	frame := diskFrame(t, 200, 150, 150, 20)

	cfg := models.DefaultParameterConfig()
	cfg.ROI = models.Region{X: 100, Y: 100, Width: 100, Height: 100}

	pre, err := p.Preprocess(context.Background(), frame, cfg)
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	defer pre.Close()

	if pre.Rows() != 100 || pre.Cols() != 100 {
		t.Fatalf("cropped size %dx%d", pre.Cols(), pre.Rows())
	}

	m, err := p.Measure(context.Background(), "roi", pre, cfg)
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}
	for _, pt := range m.Pair.Outer {
		if pt.X < 125 || pt.Y < 125 {
			t.Fatalf("vertex %v not in full-frame coordinates", pt)
		}
	}
	if m.Bounds.Min.X < 125 {
		t.Errorf("bounds %v not translated", m.Bounds)
	}
}

func TestPreprocessErrors(t *testing.T) {
	p := newTestProcessor()

	if _, err := p.Preprocess(context.Background(), nil, models.DefaultParameterConfig()); !errors.Is(err, ErrEmptyFrame) {
		t.Errorf("nil frame err = %v", err)
	}

	cfg := models.DefaultParameterConfig()
	cfg.ROI = models.Region{X: 50, Y: 50, Width: 100, Height: 100}
	if _, err := p.Preprocess(context.Background(), diskFrame(t, 100, 50, 50, 10), cfg); !errors.Is(err, models.ErrInvalidConfig) {
		t.Errorf("roi outside frame err = %v", err)
	}
}

func TestStepsFollowConfig(t *testing.T) {
	cfg := models.DefaultParameterConfig()
	if got := newTestProcessor().Steps(cfg); len(got) != 0 {
		t.Errorf("default config runs %v", got)
	}

	cfg.Equalize = true
	cfg.ClipLow, cfg.ClipHigh = 5, 70
	cfg.SmoothingWeight = 0.3
	cfg.Gaussian = 1
	cfg.Threshold = 1
	cfg.Open = 1
	cfg.Close = 1
	want := []string{"equalize_filter", "percentile_clip", "nlmeans_denoise", "gaussian_filter",
		"inverse_threshold", "opening_filter", "closing_filter"}
	got := newTestProcessor().Steps(cfg)
	if len(got) != len(want) {
		t.Fatalf("Steps = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("step %d = %s, want %s", i, got[i], want[i])
		}
	}
}
