// Package batch runs the measurement pipeline over a directory of frames
// with a fixed configuration.
package batch

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"meltpool/internal/logger"
	"meltpool/internal/models"
	"meltpool/internal/pipeline"
)

// FrameOutcome is the per-frame entry of a Summary. Exactly one of
// Measurement and Err is set.
type FrameOutcome struct {
	ID          string
	Measurement *models.Measurement
	Err         error
}

type Summary struct {
	Total     int
	Processed int
	Failed    int
	Frames    []FrameOutcome
	Duration  time.Duration
}

// AllFailed reports whether frames were seen and none succeeded.
func (s Summary) AllFailed() bool {
	return s.Total > 0 && s.Processed == 0
}

type Runner struct {
	processor *pipeline.Processor
	logger    logger.Logger
	workers   int
}

// NewRunner uses runtime.NumCPU workers when workers < 1.
func NewRunner(processor *pipeline.Processor, log logger.Logger, workers int) *Runner {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	return &Runner{
		processor: processor,
		logger:    log,
		workers:   workers,
	}
}

func (r *Runner) Workers() int {
	return r.workers
}

// Run processes every frame from source with cfg and hands each annotated
// frame to sink. A frame that fails to load, process or save is logged and
// counted; the run continues. Cancelling ctx stops scheduling new frames,
// lets in-flight frames finish and returns ctx.Err with the partial summary.
func (r *Runner) Run(ctx context.Context, source pipeline.FrameSource, cfg models.ParameterConfig, sink pipeline.Sink) (Summary, error) {
	if err := cfg.Validate(); err != nil {
		return Summary{}, err
	}

	frames, err := source.Frames(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("open frame source: %w", err)
	}

	start := time.Now()
	var (
		mu       sync.Mutex
		outcomes []FrameOutcome
	)

	// In-flight frames finish even when ctx is cancelled.
	work := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(r.workers)

	for result := range frames {
		if ctx.Err() != nil {
			release(result)
			continue
		}

		g.Go(func() error {
			outcome := r.processFrame(work, result, cfg, sink)

			mu.Lock()
			outcomes = append(outcomes, outcome)
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()

	summary := summarize(outcomes)
	summary.Duration = time.Since(start)

	r.logger.Info("BatchRunner", "batch finished", map[string]interface{}{
		"total":       summary.Total,
		"processed":   summary.Processed,
		"failed":      summary.Failed,
		"duration_ms": summary.Duration.Milliseconds(),
		"workers":     r.workers,
	})

	return summary, ctx.Err()
}

func (r *Runner) processFrame(ctx context.Context, result pipeline.FrameResult, cfg models.ParameterConfig, sink pipeline.Sink) FrameOutcome {
	outcome := FrameOutcome{ID: result.ID}

	if result.Err != nil {
		outcome.Err = result.Err
		r.logFailure(result.ID, "load", result.Err)
		return outcome
	}
	defer result.Frame.Close()

	m, annotated, err := r.processor.Run(ctx, result.ID, result.Frame, cfg)
	if err != nil {
		outcome.Err = fmt.Errorf("process %s: %w", result.ID, err)
		r.logFailure(result.ID, "process", err)
		return outcome
	}
	defer annotated.Close()

	if err := sink.Save(ctx, pipeline.AnnotatedFrame{ID: result.ID, Image: annotated, Measurement: m}); err != nil {
		outcome.Err = fmt.Errorf("save %s: %w", result.ID, err)
		r.logFailure(result.ID, "save", err)
		return outcome
	}

	r.logger.Debug("BatchRunner", "frame processed", map[string]interface{}{
		"frame":          result.ID,
		"melt_pool_area": m.Area.MeltPoolArea,
		"duration_ms":    m.ProcessTime.Milliseconds(),
	})

	outcome.Measurement = &m
	return outcome
}

func (r *Runner) logFailure(id, stage string, err error) {
	r.logger.Error("BatchRunner", err, map[string]interface{}{
		"frame": id,
		"stage": stage,
	})
}

func summarize(outcomes []FrameOutcome) Summary {
	sort.Slice(outcomes, func(i, j int) bool {
		return outcomes[i].ID < outcomes[j].ID
	})

	s := Summary{Total: len(outcomes), Frames: outcomes}
	for _, o := range outcomes {
		if o.Err != nil {
			s.Failed++
		} else {
			s.Processed++
		}
	}
	return s
}

func release(result pipeline.FrameResult) {
	if result.Frame != nil {
		result.Frame.Close()
	}
}

// IsInputError reports whether err means the input could not be found or
// decoded, as opposed to a processing failure.
func IsInputError(err error) bool {
	return errors.Is(err, pipeline.ErrFrameNotFound) || errors.Is(err, pipeline.ErrDecode)
}
