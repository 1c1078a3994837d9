package shutdown

import (
	"context"
	"testing"
	"time"

	"meltpool/internal/logger"
)

func TestShutdownOrderAndCancel(t *testing.T) {
	m := NewManager(context.Background(), logger.Nop())

	var order []int
	m.Register(Func(func() { order = append(order, 1) }))
	m.Register(Func(func() { order = append(order, 2) }))

	m.Shutdown()
	m.Shutdown()

	if len(order) != 2 || order[0] != 2 || order[1] != 1 {
		t.Errorf("order = %v, want [2 1]", order)
	}
	if m.Context().Err() == nil {
		t.Error("context not cancelled")
	}
	select {
	case <-m.Done():
	default:
		t.Error("Done not closed")
	}
}

func TestShutdownTimeout(t *testing.T) {
	m := NewManager(context.Background(), logger.Nop())
	m.SetTimeout(10 * time.Millisecond)

	block := make(chan struct{})
	defer close(block)
	m.Register(Func(func() { <-block }))

	start := time.Now()
	m.Shutdown()
	if time.Since(start) > time.Second {
		t.Error("shutdown waited past the component timeout")
	}
}
