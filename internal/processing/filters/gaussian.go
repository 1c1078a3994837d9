package filters

import (
	"context"
	"fmt"
	"image"

	"gocv.io/x/gocv"
	"meltpool/internal/models"
	"meltpool/internal/opencv/safe"
)

type GaussianFilter struct{}

func NewGaussianFilter() *GaussianFilter {
	return &GaussianFilter{}
}

func (g *GaussianFilter) Name() string {
	return "gaussian_filter"
}

func (g *GaussianFilter) ShouldExecute(cfg models.ParameterConfig) bool {
	return cfg.Gaussian > 0
}

func (g *GaussianFilter) Apply(ctx context.Context, input *safe.Mat, cfg models.ParameterConfig) (*safe.Mat, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if cfg.Gaussian <= 0 {
		return input.Clone()
	}

	return g.applyGaussianBlur(input, KernelSize(cfg.Gaussian))
}

// applyGaussianBlur lets OpenCV derive sigma from the kernel size.
func (g *GaussianFilter) applyGaussianBlur(src *safe.Mat, kernelSize int) (*safe.Mat, error) {
	dst := gocv.NewMat()

	srcMat := src.GetMat()
	gocv.GaussianBlur(srcMat, &dst, image.Point{X: kernelSize, Y: kernelSize}, 0, 0, gocv.BorderReplicate)
	if dst.Empty() {
		dst.Close()
		return nil, fmt.Errorf("gaussian blur with kernel %d produced no output", kernelSize)
	}

	return safe.Adopt(dst, "gaussian")
}

// KernelSize maps a radius onto the odd kernel width 2r+1.
func KernelSize(radius int) int {
	return 2*radius + 1
}
