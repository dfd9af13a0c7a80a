package workflow_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shvee-pandora/pnd-agents-sub001/testutil"
	"github.com/shvee-pandora/pnd-agents-sub001/workflow"
)

// newTestEngine wires an engine on the in-memory store with an empty rule
// resource and the default classifier.
func newTestEngine(t *testing.T) (*workflow.Engine, *workflow.MemorySnapshotStore) {
	t.Helper()
	pipelines, err := workflow.NewPipelineBuilder("", nil)
	require.NoError(t, err)
	store := workflow.NewMemorySnapshotStore()
	engine := workflow.NewEngine(
		workflow.NewDefaultClassifier(),
		pipelines,
		workflow.NewRegistry(nil),
		store,
		nil,
	)
	return engine, store
}

// runPipeline creates a workflow for the description and executes it.
func runPipeline(t *testing.T, engine *workflow.Engine, description string, opts workflow.RunOptions) *workflow.WorkflowContext {
	t.Helper()
	ctx := testutil.TestContext(t)
	wf, err := engine.CreateWorkflow(ctx, description, nil)
	require.NoError(t, err)
	wf, err = engine.RunSequential(ctx, wf, opts)
	require.NoError(t, err)
	return wf
}

func TestEngine_GetPlan(t *testing.T) {
	engine, _ := newTestEngine(t)

	plan := engine.GetPlan("generate the weekly analytics report")
	assert.Equal(t, workflow.TaskTypeReporting, plan.TaskType)
	assert.Equal(t, []string{"data_collector", "report_generator"}, plan.Pipeline)

	// Planning persists nothing.
	summary, err := engine.GetStatus(context.Background())
	require.NoError(t, err)
	assert.Nil(t, summary)
}

func TestEngine_CreateWorkflowPersists(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := testutil.TestContext(t)

	wf, err := engine.CreateWorkflow(ctx, "check sonar coverage", map[string]any{"team": "platform"})
	require.NoError(t, err)
	assert.Equal(t, workflow.TaskTypeCodeQuality, wf.TaskType)
	assert.Equal(t, workflow.WorkflowStatusPending, wf.Status)

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, wf.WorkflowID, loaded.WorkflowID)
	assert.Equal(t, "platform", loaded.Metadata["team"])
	for _, name := range loaded.Pipeline {
		assert.Equal(t, workflow.StageStatusPending, loaded.Stages[name].Status)
	}
}

func TestEngine_RunSequential_AllStagesSucceed(t *testing.T) {
	engine, _ := newTestEngine(t)
	for _, name := range []string{"data_collector", "report_generator"} {
		engine.Registry().Register(name, testutil.EchoHandler(name))
	}

	wf := runPipeline(t, engine, "generate the weekly analytics report", workflow.RunOptions{})

	assert.Equal(t, workflow.WorkflowStatusCompleted, wf.Status)
	for _, name := range wf.Pipeline {
		assert.Equal(t, workflow.StageStatusCompleted, wf.Stages[name].Status)
	}
	assert.NotNil(t, wf.CompletedAt)
	assert.Empty(t, wf.CurrentStage)
}

func TestEngine_RunSequential_FailureShortCircuits(t *testing.T) {
	path := writeRules(t, `
pipelines:
  default: [a, b, c, d]
`)
	pipelines, err := workflow.NewPipelineBuilder(path, nil)
	require.NoError(t, err)
	engine := workflow.NewEngine(workflow.NewDefaultClassifier(), pipelines, workflow.NewRegistry(nil), workflow.NewMemorySnapshotStore(), nil)

	engine.Registry().Register("a", testutil.EchoHandler("a"))
	engine.Registry().Register("b", testutil.EchoHandler("b"))
	engine.Registry().Register("c", testutil.FailingHandler("boom"))
	engine.Registry().Register("d", testutil.EchoHandler("d"))

	wf := runPipeline(t, engine, "plain unclassifiable task", workflow.RunOptions{})

	assert.Equal(t, workflow.WorkflowStatusFailed, wf.Status)
	assert.Equal(t, workflow.StageStatusCompleted, wf.Stages["a"].Status)
	assert.Equal(t, workflow.StageStatusCompleted, wf.Stages["b"].Status)
	assert.Equal(t, workflow.StageStatusFailed, wf.Stages["c"].Status)
	assert.Equal(t, "boom", wf.Stages["c"].Error)
	// The stage after the failure never ran.
	assert.Equal(t, workflow.StageStatusPending, wf.Stages["d"].Status)

	// Three executed stages leave exactly six stage-level trace events.
	stageTrace := wf.StageTrace()
	require.Len(t, stageTrace, 6)
	assert.Equal(t, workflow.EventStageStarted, stageTrace[0].EventType)
	assert.Equal(t, workflow.EventStageFinished, stageTrace[5].EventType)
	assert.Equal(t, "c", stageTrace[5].Stage)
}

func TestEngine_RunSequential_ContinueOnError(t *testing.T) {
	engine, _ := newTestEngine(t)
	engine.Registry().Register("data_collector", testutil.FailingHandler("collector down"))

	recorder := testutil.NewRecordingHandler(testutil.EchoHandler("report"))
	engine.Registry().Register("report_generator", recorder)

	wf := runPipeline(t, engine, "generate the weekly analytics report", workflow.RunOptions{ContinueOnError: true})

	assert.Equal(t, workflow.WorkflowStatusFailed, wf.Status)
	assert.Equal(t, workflow.StageStatusFailed, wf.Stages["data_collector"].Status)
	assert.Equal(t, workflow.StageStatusCompleted, wf.Stages["report_generator"].Status)

	// The failed stage's data never entered the accumulator.
	inputs := recorder.Inputs()
	require.Len(t, inputs, 1)
	_, hasPrevious := inputs[0].InputData["previous_output"]
	assert.False(t, hasPrevious)
}

func TestEngine_RunSequential_AccumulatorFlows(t *testing.T) {
	engine, _ := newTestEngine(t)
	engine.Registry().Register("data_collector", testutil.EchoHandler("collected"))
	recorder := testutil.NewRecordingHandler(testutil.EchoHandler("report"))
	engine.Registry().Register("report_generator", recorder)

	wf := runPipeline(t, engine, "generate the weekly analytics report", workflow.RunOptions{})
	require.Equal(t, workflow.WorkflowStatusCompleted, wf.Status)

	inputs := recorder.Inputs()
	require.Len(t, inputs, 1)
	in := inputs[0]
	assert.Equal(t, "generate the weekly analytics report", in.TaskDescription)
	assert.Equal(t, "data_collector", in.InputData["previous_agent"])
	previous, ok := in.InputData["previous_output"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "collected", previous["echo"])
}

func TestEngine_RunSequential_ForwardJumpSkips(t *testing.T) {
	path := writeRules(t, `
pipelines:
  default: [gate, detail_a, detail_b, closer]
`)
	pipelines, err := workflow.NewPipelineBuilder(path, nil)
	require.NoError(t, err)
	engine := workflow.NewEngine(workflow.NewDefaultClassifier(), pipelines, workflow.NewRegistry(nil), workflow.NewMemorySnapshotStore(), nil)

	engine.Registry().Register("gate", testutil.JumpHandler("closer"))
	engine.Registry().Register("detail_a", testutil.EchoHandler("a"))
	engine.Registry().Register("detail_b", testutil.EchoHandler("b"))
	closerRecorder := testutil.NewRecordingHandler(nil)
	engine.Registry().Register("closer", closerRecorder)

	collector := testutil.NewEventCollector()
	wf := runPipeline(t, engine, "plain unclassifiable task", workflow.RunOptions{Emitter: collector.Emitter()})

	assert.Equal(t, workflow.WorkflowStatusCompleted, wf.Status)
	assert.Equal(t, workflow.StageStatusCompleted, wf.Stages["gate"].Status)
	assert.Equal(t, workflow.StageStatusSkipped, wf.Stages["detail_a"].Status)
	assert.Equal(t, workflow.StageStatusSkipped, wf.Stages["detail_b"].Status)
	assert.Equal(t, workflow.StageStatusCompleted, wf.Stages["closer"].Status)
	assert.Equal(t, 1, closerRecorder.Calls())

	skipped := collector.OfType(workflow.EventStageSkipped)
	require.Len(t, skipped, 2)
	assert.Equal(t, "detail_a", skipped[0].Stage)
	assert.Equal(t, "detail_b", skipped[1].Stage)
}

func TestEngine_RunSequential_BackwardJumpIgnored(t *testing.T) {
	path := writeRules(t, `
pipelines:
  default: [first, second]
`)
	pipelines, err := workflow.NewPipelineBuilder(path, nil)
	require.NoError(t, err)
	engine := workflow.NewEngine(workflow.NewDefaultClassifier(), pipelines, workflow.NewRegistry(nil), workflow.NewMemorySnapshotStore(), nil)

	engine.Registry().Register("first", testutil.EchoHandler("first"))
	engine.Registry().Register("second", testutil.JumpHandler("first"))

	wf := runPipeline(t, engine, "plain unclassifiable task", workflow.RunOptions{})

	// The backward jump is ignored; each stage ran exactly once.
	assert.Equal(t, workflow.WorkflowStatusCompleted, wf.Status)
	assert.Equal(t, workflow.StageStatusCompleted, wf.Stages["first"].Status)
	assert.Equal(t, workflow.StageStatusCompleted, wf.Stages["second"].Status)
}

func TestEngine_RunSequential_UnregisteredStageSkipsAndContinues(t *testing.T) {
	engine, _ := newTestEngine(t)
	engine.Registry().Register("report_generator", testutil.EchoHandler("report"))
	// data_collector has no handler.

	wf := runPipeline(t, engine, "generate the weekly analytics report", workflow.RunOptions{})

	assert.Equal(t, workflow.WorkflowStatusCompleted, wf.Status)
	assert.Equal(t, workflow.StageStatusSkipped, wf.Stages["data_collector"].Status)
	assert.Equal(t, workflow.StageStatusCompleted, wf.Stages["report_generator"].Status)
}

func TestEngine_RunSequential_NilContext(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, err := engine.RunSequential(context.Background(), nil, workflow.RunOptions{})
	assert.ErrorIs(t, err, workflow.ErrNilContext)
}

func TestEngine_GetStatusAndClear(t *testing.T) {
	engine, _ := newTestEngine(t)
	engine.Registry().Register("data_collector", testutil.EchoHandler("collected"))
	engine.Registry().Register("report_generator", testutil.EchoHandler("report"))

	wf := runPipeline(t, engine, "generate the weekly analytics report", workflow.RunOptions{})
	ctx := testutil.TestContext(t)

	summary, err := engine.GetStatus(ctx)
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, wf.WorkflowID, summary.WorkflowID)
	assert.Equal(t, workflow.WorkflowStatusCompleted, summary.Status)

	require.NoError(t, engine.Clear(ctx))
	summary, err = engine.GetStatus(ctx)
	require.NoError(t, err)
	assert.Nil(t, summary)
}

func TestEngine_ReloadRules(t *testing.T) {
	path := writeRules(t, `
pipelines:
  reporting: [v1_collector]
`)
	pipelines, err := workflow.NewPipelineBuilder(path, nil)
	require.NoError(t, err)
	engine := workflow.NewEngine(workflow.NewDefaultClassifier(), pipelines, workflow.NewRegistry(nil), workflow.NewMemorySnapshotStore(), nil)

	require.NoError(t, os.WriteFile(path, []byte(`
pipelines:
  reporting: [v2_collector]
`), 0o644))
	require.NoError(t, engine.ReloadRules())

	assert.Equal(t, []string{"v2_collector"}, engine.GetPlan("generate the analytics report").Pipeline)
}

// corruptStore always reports a corrupt snapshot.
type corruptStore struct {
	workflow.SnapshotStore
}

func (corruptStore) Load(ctx context.Context) (*workflow.WorkflowContext, error) {
	return nil, workflow.ErrSnapshotCorrupt
}

func TestEngine_CorruptSnapshotTreatedAsAbsent(t *testing.T) {
	pipelines, err := workflow.NewPipelineBuilder("", nil)
	require.NoError(t, err)
	engine := workflow.NewEngine(
		workflow.NewDefaultClassifier(),
		pipelines,
		workflow.NewRegistry(nil),
		corruptStore{workflow.NewMemorySnapshotStore()},
		nil,
	)

	summary, err := engine.GetStatus(testutil.TestContext(t))
	require.NoError(t, err)
	assert.Nil(t, summary)
}
