package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shvee-pandora/pnd-agents-sub001/internal/pool"
)

// defaultMaxWorkers bounds a parallel group when the caller does not.
const defaultMaxWorkers = 4

// ParallelOptions controls a grouped run.
type ParallelOptions struct {
	// MaxWorkers caps concurrency within a group; the effective pool size for
	// a group is min(MaxWorkers, group size). Zero means defaultMaxWorkers.
	MaxWorkers int
	// ContinueOnError keeps scheduling later groups after a member failed.
	// The default is false: the run aborts once the failing group's barrier
	// completes. Members already submitted are never cancelled in flight.
	ContinueOnError bool
	// Emitter receives execution events in addition to the workflow trace.
	Emitter EventEmitter
}

// RunParallel executes the pipeline as ordered groups: groups run strictly in
// sequence, stages within a group run concurrently on a bounded worker pool.
// Every group member receives the same upstream snapshot (the accumulator
// plus all outputs gathered so far) and must not depend on sibling results.
// Workers only compute stage results; the coordinating goroutine blocks at
// the fan-in barrier and is the sole writer of the WorkflowContext.
func (e *Engine) RunParallel(ctx context.Context, wf *WorkflowContext, groups [][]string, opts ParallelOptions) (*WorkflowContext, error) {
	if wf == nil {
		return nil, ErrNilContext
	}
	for _, group := range groups {
		for _, name := range group {
			if _, ok := wf.Stages[name]; !ok {
				return nil, fmt.Errorf("group stage %q is not part of the pipeline", name)
			}
		}
	}
	maxWorkers := opts.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = defaultMaxWorkers
	}

	emitter := e.runEmitter(wf, opts.Emitter)

	e.metrics.WorkflowStarted()
	wf.Status = WorkflowStatusRunning
	wf.CompletedAt = nil
	e.persist(ctx, wf)
	emit(emitter, Event{Type: EventWorkflowStarted, WorkflowID: wf.WorkflowID, Status: string(WorkflowStatusRunning)})

	acc := newAccumulator(wf)
	allOutputs := make(map[string]any)

	for _, group := range groups {
		// Stages already terminal (for example skipped by an earlier jump)
		// are not executed again.
		members := make([]string, 0, len(group))
		for _, name := range group {
			if !wf.Stages[name].Status.IsTerminal() {
				members = append(members, name)
			}
		}
		if len(members) == 0 {
			continue
		}

		var groupFailed bool
		if len(members) == 1 {
			groupFailed = e.runGroupMember(ctx, wf, members[0], acc, allOutputs, emitter)
		} else {
			groupFailed = e.runGroup(ctx, wf, members, maxWorkers, acc, allOutputs, emitter)
		}

		if groupFailed && !opts.ContinueOnError {
			e.finalize(ctx, wf, WorkflowStatusFailed, emitter)
			return wf, nil
		}
	}

	e.finalize(ctx, wf, statusFromRecords(wf), emitter)
	return wf, nil
}

// runGroupMember executes a single-stage group with the sequential per-stage
// semantics, including the forward-jump override. It reports whether the
// stage failed.
func (e *Engine) runGroupMember(ctx context.Context, wf *WorkflowContext, name string, acc, allOutputs map[string]any, emitter EventEmitter) bool {
	record := wf.Stages[name]
	input := upstreamSnapshot(acc, allOutputs)
	e.beginStage(ctx, wf, record, input)

	result := e.executeStage(ctx, wf, name, input, emitter)
	e.finishStage(ctx, wf, record, result)

	if result.Status == OutcomeSuccess {
		acc["previous_output"] = result.Data
		acc["previous_agent"] = name
		allOutputs[name] = result.Data
	}

	if result.Next != "" {
		current := wf.StageIndex(name)
		target := wf.StageIndex(result.Next)
		if target > current {
			for k := current + 1; k < target; k++ {
				e.markSkipped(wf, wf.Pipeline[k], "skipped by jump to "+result.Next, emitter)
			}
			e.persist(ctx, wf)
		} else {
			e.logger.Warn("ignoring non-forward stage jump",
				zap.String("workflow_id", wf.WorkflowID),
				zap.String("from", name),
				zap.String("to", result.Next),
			)
		}
	}
	return result.Status == OutcomeError
}

// runGroup fans a multi-stage group out onto a bounded worker pool and blocks
// at the barrier until every member reached a terminal status. Only then does
// it fold the results into the context and the accumulator.
func (e *Engine) runGroup(ctx context.Context, wf *WorkflowContext, members []string, maxWorkers int, acc, allOutputs map[string]any, emitter EventEmitter) bool {
	upstream := upstreamSnapshot(acc, allOutputs)
	now := time.Now().UTC()
	for _, name := range members {
		record := wf.Stages[name]
		startedAt := now
		record.Status = StageStatusInProgress
		record.StartedAt = &startedAt
		record.InputSnapshot = upstream
		emit(emitter, Event{
			Type:       EventStageStarted,
			WorkflowID: wf.WorkflowID,
			Stage:      name,
			Status:     string(StageStatusInProgress),
		})
	}
	e.persist(ctx, wf)

	workers := pool.New(min(maxWorkers, len(members)), len(members), e.logger)
	defer workers.Close()

	results := make([]StageResult, len(members))
	var wg sync.WaitGroup
	for idx, name := range members {
		handlerInput := HandlerInput{
			TaskDescription: wf.TaskDescription,
			InputData:       snapshotMap(upstream),
			Metadata:        wf.Metadata,
			WorkflowID:      wf.WorkflowID,
			StageName:       name,
		}
		wg.Add(1)
		err := workers.Submit(ctx, func(taskCtx context.Context) {
			defer wg.Done()
			// Workers compute a value and return; no emitter, no shared
			// context access. The registry still captures handler panics.
			results[idx] = e.registry.Execute(taskCtx, name, handlerInput, nil)
		})
		if err != nil {
			results[idx] = Errorf("submit stage %s: %v", name, err)
			wg.Done()
		}
	}
	wg.Wait() // fan-in barrier

	groupFailed := false
	for idx, name := range members {
		record := wf.Stages[name]
		result := results[idx]
		completedAt := time.Now().UTC()
		record.Status = result.stageStatus()
		record.CompletedAt = &completedAt
		record.OutputSnapshot = result.Data
		record.Error = result.Error
		e.metrics.StageFinished(name, string(record.Status), time.Duration(result.DurationMs)*time.Millisecond)
		emit(emitter, Event{
			Type:       EventStageFinished,
			WorkflowID: wf.WorkflowID,
			Stage:      name,
			Status:     string(record.Status),
			Duration:   time.Duration(result.DurationMs) * time.Millisecond,
			Details:    result.Error,
		})

		switch result.Status {
		case OutcomeSuccess:
			allOutputs[name] = result.Data
		case OutcomeError:
			groupFailed = true
		}
	}
	e.persist(ctx, wf)

	// Successful outputs accumulate keyed per stage; earlier groups' entries
	// are kept, not overwritten.
	previous, _ := acc["previous_outputs"].(map[string]any)
	if previous == nil {
		previous = make(map[string]any)
	}
	for _, name := range members {
		if out, ok := allOutputs[name]; ok {
			previous[name] = out
		}
	}
	acc["previous_outputs"] = previous
	acc["previous_group"] = append([]string(nil), members...)

	return groupFailed
}

// upstreamSnapshot builds the immutable input every group member receives:
// the accumulator plus the outputs of all stages finished so far.
func upstreamSnapshot(acc, allOutputs map[string]any) map[string]any {
	out := snapshotMap(acc)
	out["all_outputs"] = snapshotMap(allOutputs)
	return out
}
