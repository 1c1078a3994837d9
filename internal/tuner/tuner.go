package tuner

import (
	"context"
	"errors"
	"fmt"

	"meltpool/internal/logger"
	"meltpool/internal/models"
	"meltpool/internal/pipeline"
	"meltpool/internal/processing/annotate"
)

// ErrTerminated is returned by Dispatch for a Terminate event.
var ErrTerminated = errors.New("tuner terminated")

type Tuner struct {
	processor  *pipeline.Processor
	surface    Surface
	logger     logger.Logger
	configPath string
}

func New(processor *pipeline.Processor, surface Surface, log logger.Logger, configPath string) *Tuner {
	return &Tuner{
		processor:  processor,
		surface:    surface,
		logger:     log,
		configPath: configPath,
	}
}

// Run draws the initial preview and then handles one event at a time until
// Terminate, a surface error, or ctx cancellation. The surface is closed on
// return.
func (t *Tuner) Run(ctx context.Context, s *State) (err error) {
	defer func() {
		s.Release()
		if cerr := t.surface.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close surface: %w", cerr)
		}
	}()

	if err := t.refresh(ctx, s); err != nil {
		return err
	}

	t.logger.Info("Tuner", "tuning started", map[string]interface{}{
		"frame":       s.FrameID,
		"config_path": t.configPath,
	})

	for {
		ev, err := t.surface.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("read surface event: %w", err)
		}

		if err := t.Dispatch(ctx, s, ev); err != nil {
			if errors.Is(err, ErrTerminated) {
				t.logger.Info("Tuner", "tuning finished", map[string]interface{}{
					"phase": s.Phase.String(),
				})
				return nil
			}
			return err
		}
	}
}

// Dispatch applies ev to s. Rejected parameter values and failed saves are
// logged and leave s unchanged; only pipeline and display failures are
// returned.
func (t *Tuner) Dispatch(ctx context.Context, s *State, ev Event) error {
	switch e := ev.(type) {
	case ParamChanged:
		next, err := validate(s.Config, e)
		if err != nil {
			t.logger.Warning("Tuner", "parameter rejected", map[string]interface{}{
				"name":  e.Name,
				"value": e.Value,
				"error": err.Error(),
			})
			return nil
		}
		s.Config = next
		s.Phase = PreviewDirty
		return t.refresh(ctx, s)

	case ShowBoundary:
		if s.Preprocessed == nil {
			if err := t.refresh(ctx, s); err != nil {
				return err
			}
		}
		return t.showBoundary(ctx, s)

	case Save:
		if err := models.SaveConfig(t.configPath, s.Config); err != nil {
			t.logger.Error("Tuner", err, map[string]interface{}{
				"path": t.configPath,
			})
			return nil
		}
		s.Phase = Saved
		t.logger.Info("Tuner", "configuration saved", map[string]interface{}{
			"path": t.configPath,
		})
		s.Phase = Previewing
		return nil

	case Terminate:
		return ErrTerminated

	default:
		return fmt.Errorf("unknown tuner event %T", ev)
	}
}

func (t *Tuner) refresh(ctx context.Context, s *State) error {
	preview, err := t.processor.Preprocess(ctx, s.Source, s.Config)
	if err != nil {
		return fmt.Errorf("preprocess preview: %w", err)
	}
	s.replacePreview(preview)

	if err := t.surface.Show(s.Preprocessed); err != nil {
		return fmt.Errorf("show preview: %w", err)
	}
	s.Phase = Previewing
	return nil
}

func (t *Tuner) showBoundary(ctx context.Context, s *State) error {
	m, err := t.processor.Measure(ctx, s.FrameID, s.Preprocessed, s.Config)
	if err != nil {
		return fmt.Errorf("measure: %w", err)
	}

	overlay, err := t.processor.Annotate(s.Source, m)
	if err != nil {
		return fmt.Errorf("annotate: %w", err)
	}
	defer overlay.Close()

	if err := t.surface.Show(overlay); err != nil {
		return fmt.Errorf("show boundary: %w", err)
	}

	if reporter, ok := t.surface.(StatusReporter); ok {
		reporter.SetStatus(annotate.Label(m.Area))
	}

	s.Last = &m
	s.Phase = BoundaryShown

	t.logger.Info("Tuner", "boundary measured", map[string]interface{}{
		"outer_area":     m.Area.OuterArea,
		"inner_area":     m.Area.InnerArea,
		"melt_pool_area": m.Area.MeltPoolArea,
	})
	return nil
}

// validate applies e to cfg and checks it against the slider range.
func validate(cfg models.ParameterConfig, e ParamChanged) (models.ParameterConfig, error) {
	for _, r := range models.TunerParameters(cfg.ThresholdMode) {
		if r.Name != e.Name {
			continue
		}
		if e.Value < r.Min || e.Value > r.Max {
			return models.ParameterConfig{}, fmt.Errorf("%w: %s=%d outside [%d,%d]",
				models.ErrInvalidConfig, e.Name, e.Value, r.Min, r.Max)
		}
		break
	}
	return cfg.With(e.Name, e.Value)
}
