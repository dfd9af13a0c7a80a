// Package testutil provides shared helpers for the engine tests: canned
// stage handlers, event collectors, and context helpers.
package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shvee-pandora/pnd-agents-sub001/workflow"
)

// TestContext returns a context that is cancelled when the test finishes.
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// CancelledContext returns an already-cancelled context.
func CancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

// EchoHandler returns a handler that succeeds with a fixed output value
// under the "echo" key, plus the stage name under "stage".
func EchoHandler(value string) workflow.Handler {
	return workflow.HandlerFunc(func(ctx context.Context, in workflow.HandlerInput) workflow.StageResult {
		return workflow.Success(map[string]any{
			"echo":  value,
			"stage": in.StageName,
		})
	})
}

// FailingHandler returns a handler that always fails with the given message.
func FailingHandler(msg string) workflow.Handler {
	return workflow.HandlerFunc(func(ctx context.Context, in workflow.HandlerInput) workflow.StageResult {
		return workflow.Errorf("%s", msg)
	})
}

// PanickingHandler returns a handler that panics with the given value.
func PanickingHandler(v any) workflow.Handler {
	return workflow.HandlerFunc(func(ctx context.Context, in workflow.HandlerInput) workflow.StageResult {
		panic(v)
	})
}

// SkippingHandler returns a handler that skips itself with the given reason.
func SkippingHandler(reason string) workflow.Handler {
	return workflow.HandlerFunc(func(ctx context.Context, in workflow.HandlerInput) workflow.StageResult {
		return workflow.Skip(reason)
	})
}

// JumpHandler returns a handler that succeeds and routes execution to the
// named downstream stage.
func JumpHandler(next string) workflow.Handler {
	return workflow.HandlerFunc(func(ctx context.Context, in workflow.HandlerInput) workflow.StageResult {
		res := workflow.Success(map[string]any{"jumped_from": in.StageName})
		res.Next = next
		return res
	})
}

// SlowHandler returns a handler that sleeps before succeeding, or fails fast
// when the context is cancelled first.
func SlowHandler(d time.Duration) workflow.Handler {
	return workflow.HandlerFunc(func(ctx context.Context, in workflow.HandlerInput) workflow.StageResult {
		select {
		case <-time.After(d):
			return workflow.Success(map[string]any{"slept_ms": d.Milliseconds()})
		case <-ctx.Done():
			return workflow.Errorf("cancelled: %v", ctx.Err())
		}
	})
}

// RecordingHandler wraps a handler and records every input it receives.
type RecordingHandler struct {
	mu     sync.Mutex
	inner  workflow.Handler
	inputs []workflow.HandlerInput
}

// NewRecordingHandler wraps inner; a nil inner defaults to an echo handler.
func NewRecordingHandler(inner workflow.Handler) *RecordingHandler {
	if inner == nil {
		inner = EchoHandler("ok")
	}
	return &RecordingHandler{inner: inner}
}

func (r *RecordingHandler) Handle(ctx context.Context, in workflow.HandlerInput) workflow.StageResult {
	r.mu.Lock()
	r.inputs = append(r.inputs, in)
	r.mu.Unlock()
	return r.inner.Handle(ctx, in)
}

// Calls returns how many times the handler ran.
func (r *RecordingHandler) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inputs)
}

// Inputs returns a copy of the recorded inputs in call order.
func (r *RecordingHandler) Inputs() []workflow.HandlerInput {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]workflow.HandlerInput, len(r.inputs))
	copy(out, r.inputs)
	return out
}

// EventCollector is a thread-safe workflow.EventEmitter sink.
type EventCollector struct {
	mu     sync.Mutex
	events []workflow.Event
}

// NewEventCollector creates an empty collector.
func NewEventCollector() *EventCollector {
	return &EventCollector{}
}

// Emitter returns the emitter function feeding this collector.
func (c *EventCollector) Emitter() workflow.EventEmitter {
	return func(ev workflow.Event) {
		c.mu.Lock()
		c.events = append(c.events, ev)
		c.mu.Unlock()
	}
}

// Events returns a copy of everything collected so far.
func (c *EventCollector) Events() []workflow.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]workflow.Event, len(c.events))
	copy(out, c.events)
	return out
}

// OfType returns the collected events with the given type, in order.
func (c *EventCollector) OfType(t workflow.EventType) []workflow.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []workflow.Event
	for _, ev := range c.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}
