package models

import (
	"errors"
	"fmt"
	"image"
	"math"
)

// ErrInvalidConfig marks every configuration validation and decoding failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// ThresholdMode selects how a non-zero threshold parameter is interpreted.
type ThresholdMode string

const (
	// ThresholdAuto computes a global Otsu cutoff; the threshold value only toggles the stage.
	ThresholdAuto ThresholdMode = "auto"
	// ThresholdFixed uses the threshold value itself as the cutoff, including 0.
	ThresholdFixed ThresholdMode = "fixed"
	// ThresholdDisabled skips binarization whatever the threshold value.
	ThresholdDisabled ThresholdMode = "disabled"
)

// InnerPolicy selects what the inner boundary simplifies.
type InnerPolicy string

const (
	// InnerFromHull simplifies the closed convex hull.
	InnerFromHull InnerPolicy = "hull"
	// InnerFromPoints simplifies the raw contour point cloud as an open curve.
	InnerFromPoints InnerPolicy = "points"
)

// Parameter names shared by the persisted configuration and the tuner surfaces.
const (
	ParamGaussian        = "gaussian"
	ParamThreshold       = "threshold"
	ParamOpen            = "open"
	ParamOpenIterations  = "open_itns"
	ParamClose           = "close"
	ParamCloseIterations = "close_itns"
	ParamTolerance       = "tolerance"
	ParamClipLow         = "clip_low"
	ParamClipHigh        = "clip_high"
	ParamSmoothingWeight = "smoothing_weight"
)

// MaxSmoothingWeight bounds SmoothingWeight; sliders expose it in hundredths.
const MaxSmoothingWeight = 1.0

// Region is a crop rectangle applied to every frame before processing.
// The zero Region means the full frame.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r Region) IsZero() bool {
	return r == Region{}
}

func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// ParameterConfig is the full set of knobs for one processing pass. It is a
// value type: the tuner replaces it wholesale through With, never in place.
type ParameterConfig struct {
	Gaussian        int
	Threshold       int
	ThresholdMode   ThresholdMode
	Open            int
	OpenIterations  int
	Close           int
	CloseIterations int
	Tolerance       int

	// ClipLow and ClipHigh are intensity percentiles stretched to 0 and 255.
	// The clip stage runs when ClipHigh > 0.
	ClipLow         int
	ClipHigh        int
	// SmoothingWeight scales non-local means denoising; 0 disables it.
	SmoothingWeight float64

	InnerPolicy     InnerPolicy
	Equalize        bool
	ResolutionScale float64
	ROI             Region
}

// DefaultParameterConfig mirrors the tuner's initial slider positions.
func DefaultParameterConfig() ParameterConfig {
	return ParameterConfig{
		ThresholdMode:   ThresholdAuto,
		OpenIterations:  1,
		CloseIterations: 1,
		Tolerance:       1,
		InnerPolicy:     InnerFromPoints,
		ResolutionScale: 1.0,
	}
}

// ThresholdEnabled reports whether the binarization stage runs. In auto mode
// the threshold value is an on/off toggle; a fixed cutoff always runs.
func (c ParameterConfig) ThresholdEnabled() bool {
	switch c.ThresholdMode {
	case ThresholdDisabled:
		return false
	case ThresholdFixed:
		return true
	default:
		return c.Threshold > 0
	}
}

// ClipEnabled reports whether the percentile clip stage runs.
func (c ParameterConfig) ClipEnabled() bool {
	return c.ClipHigh > 0
}

// Scale returns the resolution multiplier, treating unset as 1.
func (c ParameterConfig) Scale() float64 {
	if c.ResolutionScale <= 0 {
		return 1.0
	}
	return c.ResolutionScale
}

func (c ParameterConfig) Validate() error {
	var errs []error

	nonNegative := func(name string, v int) {
		if v < 0 {
			errs = append(errs, fmt.Errorf("%s must be >= 0, got %d", name, v))
		}
	}
	nonNegative(ParamGaussian, c.Gaussian)
	nonNegative(ParamThreshold, c.Threshold)
	nonNegative(ParamOpen, c.Open)
	nonNegative(ParamClose, c.Close)

	if c.OpenIterations < 1 {
		errs = append(errs, fmt.Errorf("%s must be >= 1, got %d", ParamOpenIterations, c.OpenIterations))
	}
	if c.CloseIterations < 1 {
		errs = append(errs, fmt.Errorf("%s must be >= 1, got %d", ParamCloseIterations, c.CloseIterations))
	}
	if c.Tolerance < 0 || c.Tolerance > 100 {
		errs = append(errs, fmt.Errorf("%s must be within [0,100], got %d", ParamTolerance, c.Tolerance))
	}

	percentile := func(name string, v int) {
		if v < 0 || v > 100 {
			errs = append(errs, fmt.Errorf("%s must be within [0,100], got %d", name, v))
		}
	}
	percentile(ParamClipLow, c.ClipLow)
	percentile(ParamClipHigh, c.ClipHigh)
	if c.ClipEnabled() && c.ClipLow >= c.ClipHigh {
		errs = append(errs, fmt.Errorf("%s must be below %s, got %d >= %d",
			ParamClipLow, ParamClipHigh, c.ClipLow, c.ClipHigh))
	}
	if c.SmoothingWeight < 0 || c.SmoothingWeight > MaxSmoothingWeight {
		errs = append(errs, fmt.Errorf("%s must be within [0,%g], got %g",
			ParamSmoothingWeight, MaxSmoothingWeight, c.SmoothingWeight))
	}

	switch c.ThresholdMode {
	case ThresholdAuto, ThresholdDisabled:
	case ThresholdFixed:
		if c.Threshold > 255 {
			errs = append(errs, fmt.Errorf("fixed %s must be within [0,255], got %d", ParamThreshold, c.Threshold))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown threshold_mode %q", c.ThresholdMode))
	}

	switch c.InnerPolicy {
	case InnerFromHull, InnerFromPoints:
	default:
		errs = append(errs, fmt.Errorf("unknown inner_policy %q", c.InnerPolicy))
	}

	if c.ResolutionScale < 0 {
		errs = append(errs, fmt.Errorf("resolution_scale must be > 0, got %g", c.ResolutionScale))
	}
	if c.ROI.X < 0 || c.ROI.Y < 0 || c.ROI.Width < 0 || c.ROI.Height < 0 {
		errs = append(errs, fmt.Errorf("roi must not have negative fields: %+v", c.ROI))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// With returns a copy of c with the named integer parameter replaced. The
// copy is validated; on error c is untouched and the zero config returned.
func (c ParameterConfig) With(name string, value int) (ParameterConfig, error) {
	next := c
	switch name {
	case ParamGaussian:
		next.Gaussian = value
	case ParamThreshold:
		next.Threshold = value
	case ParamOpen:
		next.Open = value
	case ParamOpenIterations:
		next.OpenIterations = value
	case ParamClose:
		next.Close = value
	case ParamCloseIterations:
		next.CloseIterations = value
	case ParamTolerance:
		next.Tolerance = value
	case ParamClipLow:
		next.ClipLow = value
	case ParamClipHigh:
		next.ClipHigh = value
	case ParamSmoothingWeight:
		next.SmoothingWeight = float64(value) / 100
	default:
		return ParameterConfig{}, fmt.Errorf("%w: unknown parameter %q", ErrInvalidConfig, name)
	}

	if err := next.Validate(); err != nil {
		return ParameterConfig{}, err
	}
	return next, nil
}

// Value reads a named integer parameter. SmoothingWeight is reported in
// hundredths.
func (c ParameterConfig) Value(name string) (int, bool) {
	switch name {
	case ParamGaussian:
		return c.Gaussian, true
	case ParamThreshold:
		return c.Threshold, true
	case ParamOpen:
		return c.Open, true
	case ParamOpenIterations:
		return c.OpenIterations, true
	case ParamClose:
		return c.Close, true
	case ParamCloseIterations:
		return c.CloseIterations, true
	case ParamTolerance:
		return c.Tolerance, true
	case ParamClipLow:
		return c.ClipLow, true
	case ParamClipHigh:
		return c.ClipHigh, true
	case ParamSmoothingWeight:
		return int(math.Round(c.SmoothingWeight * 100)), true
	}
	return 0, false
}

// ParameterRange defines the slider range offered by a tuner surface.
type ParameterRange struct {
	Name  string
	Label string
	Min   int
	Max   int
}

// TunerParameters lists the tunable parameters in display order.
func TunerParameters(mode ThresholdMode) []ParameterRange {
	thresholdMax, thresholdLabel := 1, "Toggle Adaptive Threshold"
	if mode == ThresholdFixed {
		thresholdMax, thresholdLabel = 255, "Threshold"
	}

	return []ParameterRange{
		{Name: ParamClipLow, Label: "Clip Low %", Min: 0, Max: 100},
		{Name: ParamClipHigh, Label: "Clip High %", Min: 0, Max: 100},
		{Name: ParamSmoothingWeight, Label: "Denoise Weight %", Min: 0, Max: 100},
		{Name: ParamGaussian, Label: "Gaussian", Min: 0, Max: 5},
		{Name: ParamThreshold, Label: thresholdLabel, Min: 0, Max: thresholdMax},
		{Name: ParamOpen, Label: "Open Kernel", Min: 0, Max: 5},
		{Name: ParamOpenIterations, Label: "Open Iterations", Min: 1, Max: 10},
		{Name: ParamClose, Label: "Close Kernel", Min: 0, Max: 5},
		{Name: ParamCloseIterations, Label: "Close Iterations", Min: 1, Max: 10},
		{Name: ParamTolerance, Label: "Tolerance", Min: 0, Max: 100},
	}
}
