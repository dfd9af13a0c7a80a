package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/shvee-pandora/pnd-agents-sub001/internal/metrics"
)

// ErrNilContext is returned when a run method receives a nil context record.
var ErrNilContext = errors.New("workflow context is nil")

// Plan is the read-only projection of what a description would execute.
type Plan struct {
	TaskType TaskType `json:"task_type"`
	Pipeline []string `json:"pipeline"`
}

// RunOptions controls one execution.
type RunOptions struct {
	// ContinueOnError keeps executing later stages after a failure instead of
	// short-circuiting. The default is false on every call path.
	ContinueOnError bool
	// Emitter receives execution events in addition to the workflow trace.
	Emitter EventEmitter
}

// Engine composes the classifier, pipeline builder, handler registry and
// snapshot store into the orchestration engine. All WorkflowContext mutation
// happens on the goroutine that called a run method; parallel stage handlers
// only compute values.
type Engine struct {
	classifier *Classifier
	pipelines  *PipelineBuilder
	registry   *Registry
	store      SnapshotStore
	logger     *zap.Logger
	metrics    *metrics.Collector
	tracer     trace.Tracer

	// saveMu serializes snapshot writes within the process.
	saveMu sync.Mutex
}

// EngineOption configures optional engine collaborators.
type EngineOption func(*Engine)

// WithMetrics attaches a Prometheus collector.
func WithMetrics(c *metrics.Collector) EngineOption {
	return func(e *Engine) { e.metrics = c }
}

// WithTracer attaches an OpenTelemetry tracer; each stage execution then runs
// inside a span.
func WithTracer(t trace.Tracer) EngineOption {
	return func(e *Engine) { e.tracer = t }
}

// NewEngine creates an engine. classifier, pipelines, registry and store are
// required; the persistence backend is injected rather than ambient so tests
// can run against the in-memory store.
func NewEngine(classifier *Classifier, pipelines *PipelineBuilder, registry *Registry, store SnapshotStore, logger *zap.Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		classifier: classifier,
		pipelines:  pipelines,
		registry:   registry,
		store:      store,
		logger:     logger.With(zap.String("component", "workflow_engine")),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// GetPlan classifies a description and returns the pipeline it would run,
// without creating or persisting anything.
func (e *Engine) GetPlan(description string) Plan {
	taskType := e.classifier.Classify(description)
	return Plan{
		TaskType: taskType,
		Pipeline: e.pipelines.Build(taskType),
	}
}

// CreateWorkflow classifies the description, freezes the pipeline into a new
// pending context and persists it, superseding any prior snapshot.
func (e *Engine) CreateWorkflow(ctx context.Context, description string, metadata map[string]any) (*WorkflowContext, error) {
	taskType := e.classifier.Classify(description)
	pipeline := e.pipelines.Build(taskType)
	wf := NewWorkflowContext(description, taskType, pipeline, metadata)

	e.metrics.Classified(string(taskType))
	e.logger.Info("workflow created",
		zap.String("workflow_id", wf.WorkflowID),
		zap.String("task_type", string(taskType)),
		zap.Strings("pipeline", pipeline),
	)

	if err := e.save(ctx, wf); err != nil {
		return nil, fmt.Errorf("persist new workflow: %w", err)
	}
	return wf, nil
}

// RunSequential executes the pipeline in order, one stage at a time, passing
// each successful stage's output forward through the accumulator. On a stage
// failure with ContinueOnError false the run short-circuits: the context is
// marked failed and all later stages remain pending.
func (e *Engine) RunSequential(ctx context.Context, wf *WorkflowContext, opts RunOptions) (*WorkflowContext, error) {
	if wf == nil {
		return nil, ErrNilContext
	}
	acc := newAccumulator(wf)
	return e.runFrom(ctx, wf, 0, acc, opts)
}

// runFrom drives sequential execution beginning at pipeline index start.
// Resume re-enters here with a seeded accumulator.
func (e *Engine) runFrom(ctx context.Context, wf *WorkflowContext, start int, acc map[string]any, opts RunOptions) (*WorkflowContext, error) {
	emitter := e.runEmitter(wf, opts.Emitter)

	e.metrics.WorkflowStarted()
	wf.Status = WorkflowStatusRunning
	wf.CompletedAt = nil
	e.persist(ctx, wf)
	emit(emitter, Event{Type: EventWorkflowStarted, WorkflowID: wf.WorkflowID, Status: string(WorkflowStatusRunning)})

	i := start
	for i < len(wf.Pipeline) {
		name := wf.Pipeline[i]
		record := wf.Stages[name]

		input := snapshotMap(acc)
		e.beginStage(ctx, wf, record, input)

		result := e.executeStage(ctx, wf, name, input, emitter)
		e.finishStage(ctx, wf, record, result)

		switch result.Status {
		case OutcomeError:
			if !opts.ContinueOnError {
				e.finalize(ctx, wf, WorkflowStatusFailed, emitter)
				return wf, nil
			}
			// Stage failed but the run continues; the failed stage's data is
			// not folded into the accumulator.
		case OutcomeSuccess:
			acc["previous_output"] = result.Data
			acc["previous_agent"] = name
		}

		i = e.advance(ctx, wf, i, result, emitter)
	}

	e.finalize(ctx, wf, statusFromRecords(wf), emitter)
	return wf, nil
}

// advance computes the next pipeline index, applying a validated forward jump
// and marking every skipped-over stage. Backward or same-position jumps are
// ignored.
func (e *Engine) advance(ctx context.Context, wf *WorkflowContext, current int, result StageResult, emitter EventEmitter) int {
	next := current + 1
	if result.Next == "" {
		return next
	}

	target := wf.StageIndex(result.Next)
	if target <= current {
		e.logger.Warn("ignoring non-forward stage jump",
			zap.String("workflow_id", wf.WorkflowID),
			zap.String("from", wf.Pipeline[current]),
			zap.String("to", result.Next),
		)
		return next
	}

	for k := current + 1; k < target; k++ {
		e.markSkipped(wf, wf.Pipeline[k], "skipped by jump to "+result.Next, emitter)
	}
	e.persist(ctx, wf)
	return target
}

// executeStage invokes the registry inside an optional tracing span.
func (e *Engine) executeStage(ctx context.Context, wf *WorkflowContext, name string, input map[string]any, emitter EventEmitter) StageResult {
	handlerInput := HandlerInput{
		TaskDescription: wf.TaskDescription,
		InputData:       input,
		Metadata:        wf.Metadata,
		WorkflowID:      wf.WorkflowID,
		StageName:       name,
	}

	if e.tracer == nil {
		return e.registry.Execute(ctx, name, handlerInput, emitter)
	}

	spanCtx, span := e.tracer.Start(ctx, "stage "+name, trace.WithAttributes(
		attribute.String("workflow.id", wf.WorkflowID),
		attribute.String("workflow.task_type", string(wf.TaskType)),
		attribute.String("stage.name", name),
	))
	defer span.End()

	result := e.registry.Execute(spanCtx, name, handlerInput, emitter)
	span.SetAttributes(attribute.String("stage.status", string(result.stageStatus())))
	if result.Status == OutcomeError {
		span.SetStatus(codes.Error, result.Error)
	}
	return result
}

// beginStage transitions a record to in_progress and persists the context.
func (e *Engine) beginStage(ctx context.Context, wf *WorkflowContext, record *StageRecord, input map[string]any) {
	now := time.Now().UTC()
	record.Status = StageStatusInProgress
	record.StartedAt = &now
	record.InputSnapshot = input
	wf.CurrentStage = record.StageName
	e.persist(ctx, wf)
}

// finishStage applies a stage result to its record and persists the context.
func (e *Engine) finishStage(ctx context.Context, wf *WorkflowContext, record *StageRecord, result StageResult) {
	now := time.Now().UTC()
	record.Status = result.stageStatus()
	record.CompletedAt = &now
	record.OutputSnapshot = result.Data
	record.Error = result.Error
	e.metrics.StageFinished(record.StageName, string(record.Status), time.Duration(result.DurationMs)*time.Millisecond)
	e.persist(ctx, wf)
}

// markSkipped transitions a pending stage to skipped without executing it.
func (e *Engine) markSkipped(wf *WorkflowContext, name, reason string, emitter EventEmitter) {
	record := wf.Stages[name]
	if record == nil || record.Status.IsTerminal() {
		return
	}
	now := time.Now().UTC()
	record.Status = StageStatusSkipped
	record.CompletedAt = &now
	e.metrics.StageFinished(name, string(StageStatusSkipped), 0)
	emit(emitter, Event{
		Type:       EventStageSkipped,
		WorkflowID: wf.WorkflowID,
		Stage:      name,
		Status:     string(StageStatusSkipped),
		Details:    reason,
	})
}

// finalize stamps the terminal workflow status and persists.
func (e *Engine) finalize(ctx context.Context, wf *WorkflowContext, status WorkflowStatus, emitter EventEmitter) {
	now := time.Now().UTC()
	wf.Status = status
	wf.CompletedAt = &now
	wf.CurrentStage = ""
	e.persist(ctx, wf)

	eventType := EventWorkflowCompleted
	if status == WorkflowStatusFailed {
		eventType = EventWorkflowFailed
	}
	duration := now.Sub(wf.StartedAt)
	e.metrics.WorkflowFinished(string(status), duration)
	emit(emitter, Event{
		Type:       eventType,
		WorkflowID: wf.WorkflowID,
		Status:     string(status),
		Duration:   duration,
	})
	e.logger.Info("workflow finished",
		zap.String("workflow_id", wf.WorkflowID),
		zap.String("status", string(status)),
		zap.Duration("duration", duration),
	)
}

// GetStatus loads the persisted snapshot and returns its summary, or nil when
// no snapshot exists.
func (e *Engine) GetStatus(ctx context.Context) (*Summary, error) {
	wf := e.loadSnapshot(ctx)
	if wf == nil {
		return nil, nil
	}
	return Summarize(wf), nil
}

// Clear deletes the persisted snapshot.
func (e *Engine) Clear(ctx context.Context) error {
	return e.store.Clear(ctx)
}

// Registry exposes the injected handler registry for stage registration.
func (e *Engine) Registry() *Registry { return e.registry }

// ReloadRules re-reads the external pipeline rule resource. Contexts already
// created keep their frozen pipelines.
func (e *Engine) ReloadRules() error { return e.pipelines.Reload() }

// loadSnapshot returns the persisted context, or nil when the snapshot is
// missing or corrupt. Load problems are logged, never raised.
func (e *Engine) loadSnapshot(ctx context.Context) *WorkflowContext {
	wf, err := e.store.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrSnapshotNotFound) {
			e.logger.Warn("snapshot unreadable, treating as absent", zap.Error(err))
		}
		return nil
	}
	return wf
}

// save writes the snapshot under the single-writer mutex.
func (e *Engine) save(ctx context.Context, wf *WorkflowContext) error {
	e.saveMu.Lock()
	defer e.saveMu.Unlock()
	return e.store.Save(ctx, wf)
}

// persist saves the snapshot, logging and counting failures. A persistence
// failure never retroactively fails a stage that already completed.
func (e *Engine) persist(ctx context.Context, wf *WorkflowContext) {
	if err := e.save(ctx, wf); err != nil {
		e.metrics.SnapshotSaveFailed()
		e.logger.Error("failed to persist workflow snapshot",
			zap.String("workflow_id", wf.WorkflowID),
			zap.Error(err),
		)
	}
}

// newAccumulator seeds the forward-passed payload for a run.
func newAccumulator(wf *WorkflowContext) map[string]any {
	return map[string]any{
		"task_description": wf.TaskDescription,
		"metadata":         wf.Metadata,
	}
}

// snapshotMap shallow-copies the accumulator so a stage's input snapshot is
// immune to later accumulator mutation.
func snapshotMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// statusFromRecords derives the terminal workflow status after the pipeline
// drained: failed when any stage failed, completed otherwise.
func statusFromRecords(wf *WorkflowContext) WorkflowStatus {
	for _, name := range wf.Pipeline {
		if wf.Stages[name].Status == StageStatusFailed {
			return WorkflowStatusFailed
		}
	}
	return WorkflowStatusCompleted
}

// runEmitter chains the trace appender with the caller's emitter.
func (e *Engine) runEmitter(wf *WorkflowContext, user EventEmitter) EventEmitter {
	traceAppender := func(ev Event) {
		wf.appendTrace(ev)
	}
	return chainEmitters(traceAppender, user)
}
