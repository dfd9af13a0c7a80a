package workflow

import "time"

// EventType identifies the kind of execution event.
type EventType string

const (
	// EventWorkflowStarted is emitted when a run transitions to running.
	EventWorkflowStarted EventType = "workflow_started"
	// EventWorkflowCompleted is emitted when a run finishes with every stage terminal.
	EventWorkflowCompleted EventType = "workflow_completed"
	// EventWorkflowFailed is emitted when a run finishes failed.
	EventWorkflowFailed EventType = "workflow_failed"
	// EventStageStarted is emitted before a stage handler is invoked.
	EventStageStarted EventType = "stage_started"
	// EventStageFinished is emitted after a stage reaches a terminal status.
	EventStageFinished EventType = "stage_finished"
	// EventStageSkipped is emitted when a forward jump skips over a stage.
	EventStageSkipped EventType = "stage_skipped"
)

// Event carries information about one execution transition. Events are
// delivered to the run's emitter and appended to the workflow trace.
type Event struct {
	Type       EventType
	WorkflowID string
	Stage      string
	Status     string
	Duration   time.Duration
	Details    string
	Timestamp  time.Time
}

// EventEmitter receives execution events. Emitters are invoked synchronously
// from the coordinating goroutine; a nil emitter is valid and ignored.
type EventEmitter func(Event)

// chainEmitters combines emitters into one, skipping nil entries.
func chainEmitters(emitters ...EventEmitter) EventEmitter {
	live := emitters[:0]
	for _, e := range emitters {
		if e != nil {
			live = append(live, e)
		}
	}
	if len(live) == 0 {
		return nil
	}
	chained := make([]EventEmitter, len(live))
	copy(chained, live)
	return func(ev Event) {
		for _, e := range chained {
			e(ev)
		}
	}
}

// emit invokes the emitter if it is set.
func emit(emitter EventEmitter, ev Event) {
	if emitter == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	emitter(ev)
}
