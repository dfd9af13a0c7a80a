package workflow

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Registry holds stage-name to handler bindings and executes a single stage
// with uniform panic capture and event emission.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	logger   *zap.Logger
}

// NewRegistry creates an empty handler registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		handlers: make(map[string]Handler),
		logger:   logger.With(zap.String("component", "stage_registry")),
	}
}

// Register binds a handler to a stage name, replacing any previous binding.
func (r *Registry) Register(name string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = handler
}

// Get returns the handler bound to name, if any.
func (r *Registry) Get(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns the registered stage names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}

// Execute runs one stage: it emits a started event, times the handler call,
// converts any panic raised inside the handler into an error result, and
// emits a finished event. An unregistered stage name yields a skipped result
// rather than an error. Panics never propagate past the registry.
func (r *Registry) Execute(ctx context.Context, name string, input HandlerInput, emitter EventEmitter) StageResult {
	emit(emitter, Event{
		Type:       EventStageStarted,
		WorkflowID: input.WorkflowID,
		Stage:      name,
		Status:     string(StageStatusInProgress),
	})

	start := time.Now()
	handler, ok := r.Get(name)

	var result StageResult
	if !ok {
		r.logger.Debug("no handler registered, skipping stage",
			zap.String("stage", name),
			zap.String("workflow_id", input.WorkflowID),
		)
		result = Skip("no handler registered for stage")
	} else {
		result = r.invoke(ctx, handler, input)
	}
	result.DurationMs = time.Since(start).Milliseconds()

	if result.Status == OutcomeError {
		r.logger.Warn("stage handler failed",
			zap.String("stage", name),
			zap.String("workflow_id", input.WorkflowID),
			zap.String("error", result.Error),
		)
	}

	emit(emitter, Event{
		Type:       EventStageFinished,
		WorkflowID: input.WorkflowID,
		Stage:      name,
		Status:     string(result.stageStatus()),
		Duration:   time.Since(start),
		Details:    result.Error,
	})
	return result
}

// invoke calls the handler with panic capture and normalizes the outcome tag.
func (r *Registry) invoke(ctx context.Context, handler Handler, input HandlerInput) (result StageResult) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("stage handler panicked",
				zap.String("stage", input.StageName),
				zap.String("workflow_id", input.WorkflowID),
				zap.Any("panic", rec),
			)
			result = Errorf("handler panic: %v", rec)
		}
	}()

	result = handler.Handle(ctx, input)
	if result.Status == "" {
		result.Status = OutcomeSuccess
	}
	return result
}
