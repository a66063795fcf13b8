package runner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sadadonline17-oss/ai-manus-unified/features/store/inmem"
	"github.com/sadadonline17-oss/ai-manus-unified/runtime/skill"
	"github.com/sadadonline17-oss/ai-manus-unified/runtime/stream"
	"github.com/sadadonline17-oss/ai-manus-unified/runtime/workflow"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	ok := &fakeSkill{def: skill.Definition{ID: "ok"}, fn: succeedWith(map[string]any{"done": true})}
	return NewManager(inmem.New(), New(registryWith(t, ok)), nil)
}

func storableWorkflow() *workflow.Workflow {
	return &workflow.Workflow{
		Name:     "stored",
		Nodes:    []*workflow.Node{{ID: "n", SkillID: "ok"}},
		Triggers: []string{"n"},
	}
}

func TestManagerSaveAssignsID(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	w := storableWorkflow()
	id, err := m.SaveWorkflow(ctx, w)
	require.NoError(t, err)
	require.Len(t, id, len("workflow_")+12)
	require.Equal(t, "workflow_", id[:9])
	require.False(t, w.CreatedAt.IsZero())
	require.False(t, w.UpdatedAt.IsZero())

	stored, err := m.GetWorkflow(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "stored", stored.Name)
}

func TestManagerSaveKeepsExistingID(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	w := storableWorkflow()
	w.ID = "workflow_custom"
	id, err := m.SaveWorkflow(ctx, w)
	require.NoError(t, err)
	require.Equal(t, "workflow_custom", id)
}

func TestManagerGetUnknownWorkflow(t *testing.T) {
	m := newTestManager(t)
	_, err := m.GetWorkflow(context.Background(), "workflow_missing")
	require.ErrorIs(t, err, workflow.ErrNotFound)
}

func TestManagerDeleteWorkflow(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	id, err := m.SaveWorkflow(ctx, storableWorkflow())
	require.NoError(t, err)

	deleted, err := m.DeleteWorkflow(ctx, id)
	require.NoError(t, err)
	require.True(t, deleted)

	deleted, err = m.DeleteWorkflow(ctx, id)
	require.NoError(t, err)
	require.False(t, deleted)
}

func TestManagerListWorkflows(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	_, err := m.SaveWorkflow(ctx, storableWorkflow())
	require.NoError(t, err)
	_, err = m.SaveWorkflow(ctx, storableWorkflow())
	require.NoError(t, err)

	workflows, err := m.ListWorkflows(ctx)
	require.NoError(t, err)
	require.Len(t, workflows, 2)
}

func TestManagerRunWorkflow(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	id, err := m.SaveWorkflow(ctx, storableWorkflow())
	require.NoError(t, err)

	exec, err := m.RunWorkflow(ctx, id, map[string]any{"seed": 1})
	require.NoError(t, err)

	snap := exec.Snapshot()
	require.Equal(t, StatusCompleted, snap.Status)
	require.Equal(t, id, snap.WorkflowID)
	require.Equal(t, map[string]any{"done": true}, snap.Context["n"])

	_, err = m.RunWorkflow(ctx, "workflow_missing", nil)
	require.ErrorIs(t, err, workflow.ErrNotFound)
}

func TestManagerRunWorkflowStream(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	id, err := m.SaveWorkflow(ctx, storableWorkflow())
	require.NoError(t, err)

	updates, err := m.RunWorkflowStream(ctx, id, nil)
	require.NoError(t, err)

	var last stream.Update
	for upd := range updates {
		last = upd
	}
	require.Equal(t, stream.TypeExecutionComplete, last.Type)
	require.Equal(t, string(StatusCompleted), last.Status)

	_, err = m.RunWorkflowStream(ctx, "workflow_missing", nil)
	require.True(t, errors.Is(err, workflow.ErrNotFound))
}
