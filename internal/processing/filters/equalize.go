package filters

import (
	"context"
	"fmt"

	"gocv.io/x/gocv"
	"meltpool/internal/models"
	"meltpool/internal/opencv/safe"
)

// EqualizeFilter spreads the frame's histogram before smoothing.
type EqualizeFilter struct{}

func NewEqualizeFilter() *EqualizeFilter {
	return &EqualizeFilter{}
}

func (e *EqualizeFilter) Name() string {
	return "equalize_filter"
}

func (e *EqualizeFilter) ShouldExecute(cfg models.ParameterConfig) bool {
	return cfg.Equalize
}

func (e *EqualizeFilter) Apply(ctx context.Context, input *safe.Mat, cfg models.ParameterConfig) (*safe.Mat, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	dst := gocv.NewMat()
	gocv.EqualizeHist(input.GetMat(), &dst)
	if dst.Empty() {
		dst.Close()
		return nil, fmt.Errorf("equalize histogram produced no output")
	}

	return safe.Adopt(dst, "equalized")
}
