package pipeline

import (
	"context"
	"fmt"
	"image"
	"time"

	"meltpool/internal/models"
	"meltpool/internal/opencv/safe"
	"meltpool/internal/processing/annotate"
	"meltpool/internal/processing/boundary"
	"meltpool/internal/processing/chain"
	"meltpool/internal/processing/contour"
	"meltpool/internal/processing/filters"
	"meltpool/internal/processing/threshold"
)

// Processor is the single parameterised pipeline shared by the tuner and
// the batch runner. It holds no per-frame state and is safe for concurrent
// use.
type Processor struct {
	chain         *chain.ProcessingChain
	style         annotate.Style
	logger        Logger
	timingTracker TimingTracker
}

func NewProcessor(logger Logger, timingTracker TimingTracker) *Processor {
	if timingTracker == nil {
		timingTracker = noopTiming{}
	}

	steps := []chain.ProcessingStep{
		filters.NewEqualizeFilter(),
		filters.NewPercentileClipFilter(),
		filters.NewDenoiseFilter(),
		filters.NewGaussianFilter(),
		threshold.NewInverseBinarizer(),
		filters.NewOpeningFilter(),
		filters.NewClosingFilter(),
	}

	return &Processor{
		chain:         chain.NewProcessingChain(steps).WithTiming(timingTracker),
		style:         annotate.DefaultStyle(),
		logger:        logger,
		timingTracker: timingTracker,
	}
}

// WithStyle replaces the annotation style.
func (p *Processor) WithStyle(style annotate.Style) *Processor {
	p.style = style
	return p
}

// Steps lists the preprocessing steps cfg enables, in execution order.
func (p *Processor) Steps(cfg models.ParameterConfig) []string {
	return p.chain.EnabledSteps(cfg)
}

// Preprocess crops frame to cfg.ROI (when set) and runs the enabled filter
// steps. frame is never modified; the result is always a new Mat.
func (p *Processor) Preprocess(ctx context.Context, frame *safe.Mat, cfg models.ParameterConfig) (*safe.Mat, error) {
	if frame == nil || frame.Empty() {
		return nil, ErrEmptyFrame
	}
	if err := safe.ValidateGray(frame, "preprocess"); err != nil {
		return nil, err
	}

	timingCtx := p.timingTracker.StartTiming("preprocess")
	defer p.timingTracker.EndTiming(timingCtx)

	input := frame
	if !cfg.ROI.IsZero() {
		cropped, err := crop(frame, cfg.ROI)
		if err != nil {
			return nil, err
		}
		defer cropped.Close()
		input = cropped
	}

	result, err := p.chain.Execute(ctx, input, cfg)
	if err != nil {
		return nil, fmt.Errorf("preprocess: %w", err)
	}

	p.logger.Debug("Processor", "preprocessed", map[string]interface{}{
		"steps": p.chain.EnabledSteps(cfg),
		"rows":  result.Rows(),
		"cols":  result.Cols(),
	})

	return result, nil
}

// Measure extracts the boundary pair and area from a preprocessed frame.
// Coordinates are reported in full-frame space, undoing any ROI crop.
func (p *Processor) Measure(ctx context.Context, id string, preprocessed *safe.Mat, cfg models.ParameterConfig) (models.Measurement, error) {
	if err := ctx.Err(); err != nil {
		return models.Measurement{}, err
	}
	if preprocessed == nil || preprocessed.Empty() {
		return models.Measurement{}, ErrEmptyFrame
	}

	timingCtx := p.timingTracker.StartTiming("measure")
	defer p.timingTracker.EndTiming(timingCtx)

	mask, err := threshold.ToMask(preprocessed)
	if err != nil {
		return models.Measurement{}, fmt.Errorf("binarize: %w", err)
	}
	defer mask.Close()

	points, contours, err := contour.Extract(mask)
	if err != nil {
		return models.Measurement{}, fmt.Errorf("extract contours: %w", err)
	}

	pair, err := boundary.Build(points, cfg.Tolerance, cfg.InnerPolicy)
	if err != nil {
		return models.Measurement{}, fmt.Errorf("build boundary: %w", err)
	}

	offset := image.Pt(cfg.ROI.X, cfg.ROI.Y)
	pair.Outer = translate(pair.Outer, offset)
	pair.Inner = translate(pair.Inner, offset)

	bounds := boundary.Bounds(points)
	if !bounds.Empty() {
		bounds = bounds.Add(offset)
	}

	m := models.Measurement{
		FrameID:  id,
		Points:   len(points),
		Contours: contours,
		Pair:     pair,
		Area:     boundary.Compute(pair, cfg.Scale()),
		Bounds:   bounds,
	}

	p.logger.Debug("Processor", "measured", map[string]interface{}{
		"frame":          id,
		"points":         m.Points,
		"contours":       m.Contours,
		"outer_vertices": len(pair.Outer),
		"inner_vertices": len(pair.Inner),
		"melt_pool_area": m.Area.MeltPoolArea,
	})

	return m, nil
}

// Annotate draws m onto a BGR copy of the original frame.
func (p *Processor) Annotate(frame *safe.Mat, m models.Measurement) (*safe.Mat, error) {
	timingCtx := p.timingTracker.StartTiming("annotate")
	defer p.timingTracker.EndTiming(timingCtx)

	return annotate.Draw(frame, m, p.style)
}

// Run performs preprocess, measure and annotate for one frame. The caller
// owns the returned Mat.
func (p *Processor) Run(ctx context.Context, id string, frame *safe.Mat, cfg models.ParameterConfig) (models.Measurement, *safe.Mat, error) {
	start := time.Now()

	preprocessed, err := p.Preprocess(ctx, frame, cfg)
	if err != nil {
		return models.Measurement{}, nil, err
	}
	defer preprocessed.Close()

	m, err := p.Measure(ctx, id, preprocessed, cfg)
	if err != nil {
		return models.Measurement{}, nil, err
	}

	annotated, err := p.Annotate(frame, m)
	if err != nil {
		return models.Measurement{}, nil, fmt.Errorf("annotate: %w", err)
	}

	m.ProcessTime = time.Since(start)
	return m, annotated, nil
}

func crop(frame *safe.Mat, roi models.Region) (*safe.Mat, error) {
	rect := roi.Rect()
	full := image.Rect(0, 0, frame.Cols(), frame.Rows())
	if roi.Width <= 0 || roi.Height <= 0 || !rect.In(full) {
		return nil, fmt.Errorf("%w: roi %v outside frame %dx%d",
			models.ErrInvalidConfig, rect, frame.Cols(), frame.Rows())
	}

	mat := frame.GetMat()
	view := mat.Region(rect)
	defer view.Close()

	return safe.NewMatFromMatWithTag(view, "roi")
}

func translate(poly models.Polygon, offset image.Point) models.Polygon {
	if offset == (image.Point{}) {
		return poly
	}
	out := make(models.Polygon, len(poly))
	for i, p := range poly {
		out[i] = p.Add(offset)
	}
	return out
}
