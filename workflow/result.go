package workflow

import "fmt"

// Outcome is the tagged status of a stage result.
type Outcome string

const (
	// OutcomeSuccess indicates the handler finished and produced data.
	OutcomeSuccess Outcome = "success"
	// OutcomeError indicates the handler failed; Error carries the message.
	OutcomeError Outcome = "error"
	// OutcomeSkipped indicates the stage was not executed. Unregistered stage
	// names produce skipped results so optional stages never abort a pipeline.
	OutcomeSkipped Outcome = "skipped"
)

// StageResult is the value returned by a stage execution.
type StageResult struct {
	Status Outcome        `json:"status"`
	Data   map[string]any `json:"data,omitempty"`
	// Next optionally names a later pipeline stage to jump to. The engine
	// validates it against the run's pipeline; backward or same-position
	// jumps are ignored.
	Next       string `json:"next,omitempty"`
	Error      string `json:"error,omitempty"`
	Reason     string `json:"reason,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Success builds a successful result carrying the handler's output data.
func Success(data map[string]any) StageResult {
	return StageResult{Status: OutcomeSuccess, Data: data}
}

// Errorf builds an error result with a formatted message.
func Errorf(format string, args ...any) StageResult {
	return StageResult{Status: OutcomeError, Error: fmt.Sprintf(format, args...)}
}

// Skip builds a skipped result with a reason.
func Skip(reason string) StageResult {
	return StageResult{Status: OutcomeSkipped, Reason: reason}
}

// stageStatus maps a result outcome to the stage status the record ends in.
func (r StageResult) stageStatus() StageStatus {
	switch r.Status {
	case OutcomeError:
		return StageStatusFailed
	case OutcomeSkipped:
		return StageStatusSkipped
	default:
		return StageStatusCompleted
	}
}
