package gui

import (
	"context"
	"testing"

	"fyne.io/fyne/v2/test"
	"meltpool/internal/models"
	"meltpool/internal/tuner"
)

func TestSliderEmitsParamChanged(t *testing.T) {
	s := NewSurface(test.NewApp(), "tune", models.DefaultParameterConfig())

	slider, ok := s.panel.sliders[models.ParamGaussian]
	if !ok {
		t.Fatal("no gaussian slider")
	}
	if slider.Max != 5 {
		t.Errorf("gaussian max = %v, want 5", slider.Max)
	}

	slider.OnChanged(3)
	slider.OnChanged(3.4)

	ev, err := s.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if got, want := ev, (tuner.ParamChanged{Name: models.ParamGaussian, Value: 3}); got != want {
		t.Errorf("event = %#v, want %#v", got, want)
	}

	select {
	case extra := <-s.events:
		t.Errorf("unchanged integer value emitted %#v", extra)
	default:
	}
}

func TestSurfaceTerminatesAfterClose(t *testing.T) {
	s := NewSurface(test.NewApp(), "tune", models.DefaultParameterConfig())

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	ev, err := s.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if _, ok := ev.(tuner.Terminate); !ok {
		t.Errorf("event = %#v, want Terminate", ev)
	}
}

func TestNextHonoursContext(t *testing.T) {
	s := NewSurface(test.NewApp(), "tune", models.DefaultParameterConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Next(ctx); err == nil {
		t.Error("expected context error")
	}
}
