package threshold

import (
	"context"
	"fmt"

	"gocv.io/x/gocv"
	"meltpool/internal/models"
	"meltpool/internal/opencv/safe"
)

// MaskCutoff is the level used to force any preprocessed frame into a
// {0,255} mask before contour extraction.
const MaskCutoff = 127

// InverseBinarizer maps dark pixels (the melt pool) to 255 and everything
// else to 0, using either the configured cutoff or Otsu's global value.
type InverseBinarizer struct{}

func NewInverseBinarizer() *InverseBinarizer {
	return &InverseBinarizer{}
}

func (b *InverseBinarizer) Name() string {
	return "inverse_threshold"
}

func (b *InverseBinarizer) ShouldExecute(cfg models.ParameterConfig) bool {
	return cfg.ThresholdEnabled()
}

func (b *InverseBinarizer) Apply(ctx context.Context, input *safe.Mat, cfg models.ParameterConfig) (*safe.Mat, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if err := safe.ValidateGray(input, b.Name()); err != nil {
		return nil, err
	}

	dst, _, err := Inverse(input, cfg)
	return dst, err
}

// Inverse binarizes src and reports the cutoff that was applied. Pixels at or
// below the cutoff become foreground.
func Inverse(src *safe.Mat, cfg models.ParameterConfig) (*safe.Mat, float32, error) {
	dst := gocv.NewMat()

	var cutoff float32
	switch cfg.ThresholdMode {
	case models.ThresholdFixed:
		cutoff = gocv.Threshold(src.GetMat(), &dst, float32(cfg.Threshold), 255, gocv.ThresholdBinaryInv)
	case models.ThresholdAuto:
		cutoff = gocv.Threshold(src.GetMat(), &dst, 0, 255, gocv.ThresholdBinaryInv+gocv.ThresholdOtsu)
	default:
		dst.Close()
		return nil, 0, fmt.Errorf("%w: unknown threshold mode %q", models.ErrInvalidConfig, cfg.ThresholdMode)
	}

	mask, err := safe.Adopt(dst, "binary")
	if err != nil {
		return nil, 0, fmt.Errorf("threshold produced no output: %w", err)
	}
	return mask, cutoff, nil
}

// ToMask re-binarizes src at MaskCutoff (non-inverted) so downstream contour
// extraction always sees a strict {0,255} image.
func ToMask(src *safe.Mat) (*safe.Mat, error) {
	if err := safe.ValidateGray(src, "mask"); err != nil {
		return nil, err
	}

	dst := gocv.NewMat()
	gocv.Threshold(src.GetMat(), &dst, MaskCutoff, 255, gocv.ThresholdBinary)
	return safe.Adopt(dst, "mask")
}
