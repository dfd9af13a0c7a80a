package workflow

import (
	"context"

	"go.uber.org/zap"
)

// Resume reloads the persisted snapshot and restarts sequential execution at
// the first stage that is not completed. Completed stages are never
// re-executed: the last completed stage's output (or the raw task
// description when none exists) seeds the accumulator. Returns (nil, nil)
// when no usable snapshot exists, and the snapshot untouched when the run
// already completed.
func (e *Engine) Resume(ctx context.Context, opts RunOptions) (*WorkflowContext, error) {
	wf := e.loadSnapshot(ctx)
	if wf == nil {
		return nil, nil
	}
	if wf.Status == WorkflowStatusCompleted {
		e.logger.Info("workflow already completed, nothing to resume",
			zap.String("workflow_id", wf.WorkflowID),
		)
		return wf, nil
	}

	start := -1
	var lastOutput map[string]any
	lastAgent := ""
	for idx, name := range wf.Pipeline {
		record := wf.Stages[name]
		if record.Status == StageStatusCompleted {
			lastOutput = record.OutputSnapshot
			lastAgent = name
			continue
		}
		start = idx
		break
	}

	if start == -1 {
		// Every stage completed but the final status was never stamped; the
		// interruption happened between the last stage and finalization.
		e.finalize(ctx, wf, statusFromRecords(wf), e.runEmitter(wf, opts.Emitter))
		return wf, nil
	}

	// Stages from the restart point are reset to pending. The forward-only
	// status invariant holds within a single run; Resume is the sanctioned
	// restart point across runs.
	for _, name := range wf.Pipeline[start:] {
		record := wf.Stages[name]
		record.Status = StageStatusPending
		record.StartedAt = nil
		record.CompletedAt = nil
		record.OutputSnapshot = nil
		record.Error = ""
	}

	acc := newAccumulator(wf)
	if lastAgent != "" {
		acc["previous_output"] = lastOutput
		acc["previous_agent"] = lastAgent
	}

	e.logger.Info("resuming workflow",
		zap.String("workflow_id", wf.WorkflowID),
		zap.String("from_stage", wf.Pipeline[start]),
		zap.Int("completed_stages", start),
	)
	return e.runFrom(ctx, wf, start, acc, opts)
}
