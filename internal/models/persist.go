package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// configFile is the persisted JSON form. Pointer fields distinguish "absent"
// from an explicit zero so iteration counts can default to 1.
type configFile struct {
	Gaussian        *int          `json:"gaussian,omitempty"`
	Threshold       *int          `json:"threshold,omitempty"`
	Open            *int          `json:"open,omitempty"`
	OpenIterations  *int          `json:"open_itns,omitempty"`
	Close           *int          `json:"close,omitempty"`
	CloseIterations *int          `json:"close_itns,omitempty"`
	Tolerance       *int          `json:"tolerance,omitempty"`
	ClipLow         *int          `json:"clip_low,omitempty"`
	ClipHigh        *int          `json:"clip_high,omitempty"`
	SmoothingWeight float64       `json:"smoothing_weight,omitempty"`
	ThresholdMode   ThresholdMode `json:"threshold_mode,omitempty"`
	InnerPolicy     InnerPolicy   `json:"inner_policy,omitempty"`
	Equalize        bool          `json:"equalize,omitempty"`
	ResolutionScale float64       `json:"resolution_scale,omitempty"`
	ROI             *Region       `json:"roi,omitempty"`
}

func intOr(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	return *v
}

func (f configFile) toConfig() ParameterConfig {
	cfg := ParameterConfig{
		Gaussian:        intOr(f.Gaussian, 0),
		Threshold:       intOr(f.Threshold, 0),
		Open:            intOr(f.Open, 0),
		OpenIterations:  intOr(f.OpenIterations, 1),
		Close:           intOr(f.Close, 0),
		CloseIterations: intOr(f.CloseIterations, 1),
		Tolerance:       intOr(f.Tolerance, 0),
		ClipLow:         intOr(f.ClipLow, 0),
		ClipHigh:        intOr(f.ClipHigh, 0),
		SmoothingWeight: f.SmoothingWeight,
		ThresholdMode:   f.ThresholdMode,
		InnerPolicy:     f.InnerPolicy,
		Equalize:        f.Equalize,
		ResolutionScale: f.ResolutionScale,
	}
	if cfg.ThresholdMode == "" {
		cfg.ThresholdMode = ThresholdAuto
	}
	if cfg.InnerPolicy == "" {
		cfg.InnerPolicy = InnerFromPoints
	}
	if cfg.ResolutionScale == 0 {
		cfg.ResolutionScale = 1.0
	}
	if f.ROI != nil {
		cfg.ROI = *f.ROI
	}
	return cfg
}

func fromConfig(c ParameterConfig) configFile {
	ptr := func(v int) *int { return &v }
	f := configFile{
		Gaussian:        ptr(c.Gaussian),
		Threshold:       ptr(c.Threshold),
		Open:            ptr(c.Open),
		OpenIterations:  ptr(c.OpenIterations),
		Close:           ptr(c.Close),
		CloseIterations: ptr(c.CloseIterations),
		Tolerance:       ptr(c.Tolerance),
		ClipLow:         ptr(c.ClipLow),
		ClipHigh:        ptr(c.ClipHigh),
		SmoothingWeight: c.SmoothingWeight,
		ThresholdMode:   c.ThresholdMode,
		InnerPolicy:     c.InnerPolicy,
		Equalize:        c.Equalize,
		ResolutionScale: c.ResolutionScale,
	}
	if !c.ROI.IsZero() {
		roi := c.ROI
		f.ROI = &roi
	}
	return f
}

// DecodeConfig reads and validates a persisted configuration. Unknown fields
// are rejected.
func DecodeConfig(r io.Reader) (ParameterConfig, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var f configFile
	if err := dec.Decode(&f); err != nil {
		return ParameterConfig{}, fmt.Errorf("%w: decode: %w", ErrInvalidConfig, err)
	}

	cfg := f.toConfig()
	if err := cfg.Validate(); err != nil {
		return ParameterConfig{}, err
	}
	return cfg, nil
}

// EncodeConfig writes cfg as indented JSON.
func EncodeConfig(w io.Writer, cfg ParameterConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(fromConfig(cfg))
}

func LoadConfig(path string) (ParameterConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ParameterConfig{}, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg, err := DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ParameterConfig{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path through a temp file and rename so a crashed
// save never leaves a truncated configuration behind.
func SaveConfig(path string, cfg ParameterConfig) error {
	var buf bytes.Buffer
	if err := EncodeConfig(&buf, cfg); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".config-*.json")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp config: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace config %s: %w", path, err)
	}
	return nil
}
