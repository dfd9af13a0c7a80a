package persistence

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shvee-pandora/pnd-agents-sub001/workflow"
)

func sampleWorkflow() *workflow.WorkflowContext {
	wf := workflow.NewWorkflowContext("persist me", workflow.TaskTypeReporting, []string{"data_collector", "report_generator"}, map[string]any{"env": "test"})
	wf.Stages["data_collector"].Status = workflow.StageStatusCompleted
	wf.Stages["data_collector"].OutputSnapshot = map[string]any{"rows": "120"}
	return wf
}

func TestFileSnapshotStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "workflow.json")
	store, err := NewFileSnapshotStore(path)
	require.NoError(t, err)
	ctx := context.Background()

	wf := sampleWorkflow()
	require.NoError(t, store.Save(ctx, wf))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, wf.WorkflowID, loaded.WorkflowID)
	assert.Equal(t, wf.TaskType, loaded.TaskType)
	assert.Equal(t, workflow.StageStatusCompleted, loaded.Stages["data_collector"].Status)
	assert.Equal(t, "120", loaded.Stages["data_collector"].OutputSnapshot["rows"])
}

func TestFileSnapshotStore_LastWriterWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workflow.json")
	store, err := NewFileSnapshotStore(path)
	require.NoError(t, err)
	ctx := context.Background()

	first := sampleWorkflow()
	second := sampleWorkflow()
	require.NoError(t, store.Save(ctx, first))
	require.NoError(t, store.Save(ctx, second))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.WorkflowID, loaded.WorkflowID)
}

func TestFileSnapshotStore_LoadMissing(t *testing.T) {
	store, err := NewFileSnapshotStore(filepath.Join(t.TempDir(), "workflow.json"))
	require.NoError(t, err)

	_, err = store.Load(context.Background())
	assert.ErrorIs(t, err, workflow.ErrSnapshotNotFound)
}

func TestFileSnapshotStore_LoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workflow.json")
	store, err := NewFileSnapshotStore(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("{ not json"), 0o644))

	_, err = store.Load(context.Background())
	assert.ErrorIs(t, err, workflow.ErrSnapshotCorrupt)
}

func TestFileSnapshotStore_SaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workflow.json")
	store, err := NewFileSnapshotStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), sampleWorkflow()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "workflow.json", entries[0].Name())
}

func TestFileSnapshotStore_Clear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workflow.json")
	store, err := NewFileSnapshotStore(path)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Clear(ctx)) // clearing before any save is fine

	require.NoError(t, store.Save(ctx, sampleWorkflow()))
	require.NoError(t, store.Clear(ctx))
	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, workflow.ErrSnapshotNotFound)
}

func TestNewFileSnapshotStore_EmptyPath(t *testing.T) {
	_, err := NewFileSnapshotStore("")
	assert.Error(t, err)
}
