package chain

import (
	"context"
	"fmt"

	"meltpool/internal/models"
	"meltpool/internal/opencv/safe"
)

// ProcessingStep is one conditionally executed transform of the preprocess
// stage. Apply must not modify input and must return a new Mat.
type ProcessingStep interface {
	Apply(ctx context.Context, input *safe.Mat, cfg models.ParameterConfig) (*safe.Mat, error)
	Name() string
	ShouldExecute(cfg models.ParameterConfig) bool
}

// TimingTracker receives per-step durations.
type TimingTracker interface {
	StartTiming(operation string) context.Context
	EndTiming(ctx context.Context)
}

type ProcessingChain struct {
	steps  []ProcessingStep
	timing TimingTracker
}

func NewProcessingChain(steps []ProcessingStep) *ProcessingChain {
	return &ProcessingChain{
		steps: steps,
	}
}

// WithTiming attaches a tracker; nil disables timing.
func (pc *ProcessingChain) WithTiming(tracker TimingTracker) *ProcessingChain {
	pc.timing = tracker
	return pc
}

// Execute runs every enabled step in order. The input is never closed or
// modified; the result is always a distinct Mat owned by the caller, even
// when no step runs.
func (pc *ProcessingChain) Execute(ctx context.Context, input *safe.Mat, cfg models.ParameterConfig) (*safe.Mat, error) {
	if err := safe.ValidateMatForOperation(input, "processing chain"); err != nil {
		return nil, err
	}

	current := input
	needsCleanup := false

	for _, step := range pc.steps {
		select {
		case <-ctx.Done():
			if needsCleanup {
				current.Close()
			}
			return nil, ctx.Err()
		default:
		}

		if !step.ShouldExecute(cfg) {
			continue
		}

		var timingCtx context.Context
		if pc.timing != nil {
			timingCtx = pc.timing.StartTiming(step.Name())
		}

		result, err := step.Apply(ctx, current, cfg)

		if pc.timing != nil {
			pc.timing.EndTiming(timingCtx)
		}

		if err != nil {
			if needsCleanup {
				current.Close()
			}
			return nil, fmt.Errorf("step %s failed: %w", step.Name(), err)
		}

		if needsCleanup {
			current.Close()
		}

		current = result
		needsCleanup = true
	}

	if !needsCleanup {
		return input.Clone()
	}
	return current, nil
}

// EnabledSteps lists the names of the steps cfg would run.
func (pc *ProcessingChain) EnabledSteps(cfg models.ParameterConfig) []string {
	var names []string
	for _, step := range pc.steps {
		if step.ShouldExecute(cfg) {
			names = append(names, step.Name())
		}
	}
	return names
}
