package workflow

import (
	"time"

	"github.com/google/uuid"
)

// WorkflowStatus represents the lifecycle status of a workflow run.
type WorkflowStatus string

const (
	// WorkflowStatusPending indicates the workflow has been created but not started.
	WorkflowStatusPending WorkflowStatus = "pending"
	// WorkflowStatusRunning indicates the workflow is executing.
	WorkflowStatusRunning WorkflowStatus = "running"
	// WorkflowStatusCompleted indicates every pipeline stage reached a terminal
	// status and no short-circuit failure occurred.
	WorkflowStatusCompleted WorkflowStatus = "completed"
	// WorkflowStatusFailed indicates a stage failed and either short-circuited
	// the run or, under continue-on-error, the pipeline drained with at least
	// one failure.
	WorkflowStatusFailed WorkflowStatus = "failed"
)

// StageStatus represents the status of a single pipeline stage.
// Transitions are strictly forward within a run: pending -> in_progress ->
// {completed | failed | skipped}.
type StageStatus string

const (
	StageStatusPending    StageStatus = "pending"
	StageStatusInProgress StageStatus = "in_progress"
	StageStatusCompleted  StageStatus = "completed"
	StageStatusFailed     StageStatus = "failed"
	StageStatusSkipped    StageStatus = "skipped"
)

// IsTerminal reports whether the status is a terminal stage status.
func (s StageStatus) IsTerminal() bool {
	return s == StageStatusCompleted || s == StageStatusFailed || s == StageStatusSkipped
}

// StageRecord captures the execution of one pipeline stage.
type StageRecord struct {
	StageName      string         `json:"stage_name"`
	Status         StageStatus    `json:"status"`
	StartedAt      *time.Time     `json:"started_at,omitempty"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
	InputSnapshot  map[string]any `json:"input_snapshot,omitempty"`
	OutputSnapshot map[string]any `json:"output_snapshot,omitempty"`
	Error          string         `json:"error,omitempty"`
}

// TraceEvent is one immutable entry in the workflow trace. Stage-level events
// carry the stage name; workflow-level events leave Stage empty.
type TraceEvent struct {
	Timestamp  time.Time `json:"timestamp"`
	Stage      string    `json:"stage,omitempty"`
	EventType  EventType `json:"event_type"`
	Status     string    `json:"resulting_status"`
	DurationMs int64     `json:"duration_ms,omitempty"`
	Details    string    `json:"details,omitempty"`
}

// WorkflowContext is the mutable, serializable record of one workflow run.
// It is created by the Engine and mutated only by the Engine's coordinating
// goroutine during execution.
type WorkflowContext struct {
	WorkflowID      string                  `json:"workflow_id"`
	TaskDescription string                  `json:"task_description"`
	TaskType        TaskType                `json:"task_type"`
	Pipeline        []string                `json:"pipeline"`
	Stages          map[string]*StageRecord `json:"stages"`
	Status          WorkflowStatus          `json:"status"`
	CurrentStage    string                  `json:"current_stage,omitempty"`
	Metadata        map[string]any          `json:"metadata,omitempty"`
	Trace           []TraceEvent            `json:"trace"`
	StartedAt       time.Time               `json:"started_at"`
	CompletedAt     *time.Time              `json:"completed_at,omitempty"`
}

// NewWorkflowContext creates a pending context for the given pipeline. The
// stage map keys are frozen to exactly the pipeline set; the pipeline slice is
// copied so later rule reloads never mutate an existing run.
func NewWorkflowContext(description string, taskType TaskType, pipeline []string, metadata map[string]any) *WorkflowContext {
	stages := make(map[string]*StageRecord, len(pipeline))
	frozen := make([]string, len(pipeline))
	copy(frozen, pipeline)
	for _, name := range frozen {
		stages[name] = &StageRecord{
			StageName: name,
			Status:    StageStatusPending,
		}
	}
	if metadata == nil {
		metadata = make(map[string]any)
	}
	return &WorkflowContext{
		WorkflowID:      uuid.New().String(),
		TaskDescription: description,
		TaskType:        taskType,
		Pipeline:        frozen,
		Stages:          stages,
		Status:          WorkflowStatusPending,
		Metadata:        metadata,
		Trace:           make([]TraceEvent, 0, 2*len(frozen)),
		StartedAt:       time.Now().UTC(),
	}
}

// StageIndex returns the position of a stage in the pipeline, or -1 if the
// stage is not part of it.
func (c *WorkflowContext) StageIndex(name string) int {
	for i, s := range c.Pipeline {
		if s == name {
			return i
		}
	}
	return -1
}

// StageTrace returns the stage-level trace events (events with a stage name).
func (c *WorkflowContext) StageTrace() []TraceEvent {
	out := make([]TraceEvent, 0, len(c.Trace))
	for _, ev := range c.Trace {
		if ev.Stage != "" {
			out = append(out, ev)
		}
	}
	return out
}

// appendTrace records an event in the trace.
func (c *WorkflowContext) appendTrace(ev Event) {
	c.Trace = append(c.Trace, TraceEvent{
		Timestamp:  ev.Timestamp,
		Stage:      ev.Stage,
		EventType:  ev.Type,
		Status:     ev.Status,
		DurationMs: ev.Duration.Milliseconds(),
		Details:    ev.Details,
	})
}
