package filters

import (
	"context"
	"fmt"
	"math"

	"gocv.io/x/gocv"
	"meltpool/internal/models"
	"meltpool/internal/opencv/safe"
)

const histogramBins = 256

// PercentileClipFilter stretches the [ClipLow, ClipHigh] percentile band of
// intensities to the full 0..255 range, saturating everything outside it.
type PercentileClipFilter struct{}

func NewPercentileClipFilter() *PercentileClipFilter {
	return &PercentileClipFilter{}
}

func (p *PercentileClipFilter) Name() string {
	return "percentile_clip"
}

func (p *PercentileClipFilter) ShouldExecute(cfg models.ParameterConfig) bool {
	return cfg.ClipEnabled()
}

func (p *PercentileClipFilter) Apply(ctx context.Context, input *safe.Mat, cfg models.ParameterConfig) (*safe.Mat, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if err := safe.ValidateGray(input, p.Name()); err != nil {
		return nil, err
	}

	low, high, err := Percentiles(input, cfg.ClipLow, cfg.ClipHigh)
	if err != nil {
		return nil, err
	}
	if high <= low {
		return input.Clone()
	}

	alpha := 255.0 / float32(high-low)
	beta := -float32(low) * alpha

	src := input.GetMat()
	dst := gocv.NewMat()
	src.ConvertToWithParams(&dst, gocv.MatTypeCV8UC1, alpha, beta)
	if dst.Empty() {
		dst.Close()
		return nil, fmt.Errorf("percentile clip produced no output")
	}

	return safe.Adopt(dst, "clipped")
}

// Percentiles returns the intensity levels at the low and high percentiles of
// src. A level is the smallest value whose cumulative share reaches the
// percentile.
func Percentiles(src *safe.Mat, low, high int) (int, int, error) {
	hist := gocv.NewMat()
	defer hist.Close()
	mask := gocv.NewMat()
	defer mask.Close()

	gocv.CalcHist([]gocv.Mat{src.GetMat()}, []int{0}, mask, &hist,
		[]int{histogramBins}, []float64{0, histogramBins}, false)
	if hist.Empty() {
		return 0, 0, fmt.Errorf("histogram produced no output")
	}

	counts := make([]float64, histogramBins)
	for i := range counts {
		counts[i] = float64(hist.GetFloatAt(i, 0))
	}
	return levelAt(counts, low), levelAt(counts, high), nil
}

func levelAt(counts []float64, percentile int) int {
	var total float64
	for _, c := range counts {
		total += c
	}

	target := math.Max(1, math.Ceil(float64(percentile)/100*total))
	var cum float64
	for level, c := range counts {
		cum += c
		if cum >= target {
			return level
		}
	}
	return len(counts) - 1
}
