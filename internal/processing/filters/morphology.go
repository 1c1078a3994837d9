package filters

import (
	"context"
	"fmt"
	"image"

	"gocv.io/x/gocv"
	"meltpool/internal/models"
	"meltpool/internal/opencv/safe"
)

type morphOp int

const (
	morphOpen morphOp = iota
	morphClose
)

// MorphologyFilter applies opening or closing with a square structuring
// element of size 2r+1. With n iterations, opening erodes n times and then
// dilates n times; closing does the reverse.
type MorphologyFilter struct {
	op morphOp
}

func NewOpeningFilter() *MorphologyFilter {
	return &MorphologyFilter{op: morphOpen}
}

func NewClosingFilter() *MorphologyFilter {
	return &MorphologyFilter{op: morphClose}
}

func (m *MorphologyFilter) Name() string {
	if m.op == morphOpen {
		return "opening_filter"
	}
	return "closing_filter"
}

func (m *MorphologyFilter) params(cfg models.ParameterConfig) (radius, iterations int) {
	if m.op == morphOpen {
		return cfg.Open, cfg.OpenIterations
	}
	return cfg.Close, cfg.CloseIterations
}

func (m *MorphologyFilter) ShouldExecute(cfg models.ParameterConfig) bool {
	radius, _ := m.params(cfg)
	return radius > 0
}

func (m *MorphologyFilter) Apply(ctx context.Context, input *safe.Mat, cfg models.ParameterConfig) (*safe.Mat, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	radius, iterations := m.params(cfg)
	if radius <= 0 {
		return input.Clone()
	}
	if iterations < 1 {
		iterations = 1
	}

	return m.applyMorphology(input, KernelSize(radius), iterations)
}

func (m *MorphologyFilter) applyMorphology(src *safe.Mat, kernelSize, iterations int) (*safe.Mat, error) {
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: kernelSize, Y: kernelSize})
	defer kernel.Close()

	srcMat := src.GetMat()
	work := srcMat.Clone()

	erodeFirst := m.op == morphOpen
	for pass := 0; pass < 2; pass++ {
		for i := 0; i < iterations; i++ {
			if erodeFirst == (pass == 0) {
				gocv.Erode(work, &work, kernel)
			} else {
				gocv.Dilate(work, &work, kernel)
			}
		}
	}

	if work.Empty() {
		work.Close()
		return nil, fmt.Errorf("%s with kernel %d produced no output", m.Name(), kernelSize)
	}
	return safe.Adopt(work, m.Name())
}
