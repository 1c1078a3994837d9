package chain

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"meltpool/internal/models"
	"meltpool/internal/opencv/safe"
)

type recordingStep struct {
	name    string
	enabled bool
	err     error
	calls   *[]string
}

func (s recordingStep) Name() string                               { return s.name }
func (s recordingStep) ShouldExecute(models.ParameterConfig) bool { return s.enabled }

func (s recordingStep) Apply(_ context.Context, input *safe.Mat, _ models.ParameterConfig) (*safe.Mat, error) {
	*s.calls = append(*s.calls, s.name)
	if s.err != nil {
		return nil, s.err
	}
	return input.Clone()
}

func frame(t *testing.T) *safe.Mat {
	t.Helper()
	m, err := safe.NewGrayFromBytes(2, 2, []byte{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("NewGrayFromBytes: %v", err)
	}
	t.Cleanup(m.Close)
	return m
}

func TestExecuteRunsEnabledStepsInOrder(t *testing.T) {
	var calls []string
	c := NewProcessingChain([]ProcessingStep{
		recordingStep{name: "a", enabled: true, calls: &calls},
		recordingStep{name: "b", enabled: false, calls: &calls},
		recordingStep{name: "c", enabled: true, calls: &calls},
	})

	src := frame(t)
	out, err := c.Execute(context.Background(), src, models.DefaultParameterConfig())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	defer out.Close()

	if len(calls) != 2 || calls[0] != "a" || calls[1] != "c" {
		t.Errorf("calls = %v, want [a c]", calls)
	}
	if got := c.EnabledSteps(models.DefaultParameterConfig()); len(got) != 2 {
		t.Errorf("EnabledSteps = %v", got)
	}
	if !src.IsValid() {
		t.Error("input was closed")
	}
}

func TestExecuteWithoutStepsClones(t *testing.T) {
	src := frame(t)
	out, err := NewProcessingChain(nil).Execute(context.Background(), src, models.DefaultParameterConfig())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	defer out.Close()

	if out.ID() == src.ID() || !bytes.Equal(out.Bytes(), src.Bytes()) {
		t.Error("expected an identical but distinct Mat")
	}
}

func TestExecuteWrapsStepError(t *testing.T) {
	boom := errors.New("boom")
	var calls []string
	c := NewProcessingChain([]ProcessingStep{
		recordingStep{name: "ok", enabled: true, calls: &calls},
		recordingStep{name: "bad", enabled: true, err: boom, calls: &calls},
	})

	_, err := c.Execute(context.Background(), frame(t), models.DefaultParameterConfig())
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped boom", err)
	}
}

func TestExecuteRejectsNil(t *testing.T) {
	if _, err := NewProcessingChain(nil).Execute(context.Background(), nil, models.DefaultParameterConfig()); err == nil {
		t.Error("expected error for nil input")
	}
}
