package filters

import (
	"context"
	"fmt"

	"gocv.io/x/gocv"
	"meltpool/internal/models"
	"meltpool/internal/opencv/safe"
)

// SmoothingStrength is the non-local means filter strength h reached at
// SmoothingWeight 1.
const SmoothingStrength = 30.0

const (
	templateWindow = 7
	searchWindow   = 21
)

// DenoiseFilter applies non-local means denoising with strength
// SmoothingWeight * SmoothingStrength.
type DenoiseFilter struct{}

func NewDenoiseFilter() *DenoiseFilter {
	return &DenoiseFilter{}
}

func (d *DenoiseFilter) Name() string {
	return "nlmeans_denoise"
}

func (d *DenoiseFilter) ShouldExecute(cfg models.ParameterConfig) bool {
	return cfg.SmoothingWeight > 0
}

func (d *DenoiseFilter) Apply(ctx context.Context, input *safe.Mat, cfg models.ParameterConfig) (*safe.Mat, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if err := safe.ValidateGray(input, d.Name()); err != nil {
		return nil, err
	}

	h := float32(cfg.SmoothingWeight * SmoothingStrength)

	dst := gocv.NewMat()
	gocv.FastNlMeansDenoisingWithParams(input.GetMat(), &dst, h, templateWindow, searchWindow)
	if dst.Empty() {
		dst.Close()
		return nil, fmt.Errorf("denoise with weight %g produced no output", cfg.SmoothingWeight)
	}

	return safe.Adopt(dst, "denoised")
}
