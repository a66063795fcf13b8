package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/sadadonline17-oss/ai-manus-unified/runtime/stream"
	"github.com/sadadonline17-oss/ai-manus-unified/runtime/telemetry"
	"github.com/sadadonline17-oss/ai-manus-unified/runtime/workflow"
)

// Manager binds a workflow store to a runner: it owns workflow document
// lifecycle (save, get, delete, list) and starts executions by workflow ID.
type Manager struct {
	store  workflow.Store
	runner *Runner
	logger telemetry.Logger
}

// NewManager returns a Manager over the given store and runner.
func NewManager(store workflow.Store, r *Runner, logger telemetry.Logger) *Manager {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Manager{store: store, runner: r, logger: logger}
}

// Runner exposes the underlying runner for execution queries and
// cancellation.
func (m *Manager) Runner() *Runner {
	return m.runner
}

// SaveWorkflow persists the workflow, assigning a workflow_<12 hex> ID when
// it has none, and stamps UpdatedAt (and CreatedAt on first save). Returns
// the workflow ID.
func (m *Manager) SaveWorkflow(ctx context.Context, w *workflow.Workflow) (string, error) {
	if w.ID == "" {
		w.ID = newID("workflow_")
	}
	w.UpdatedAt = time.Now()
	if w.CreatedAt.IsZero() {
		w.CreatedAt = w.UpdatedAt
	}
	if err := m.store.Save(ctx, w); err != nil {
		return "", fmt.Errorf("save workflow %s: %w", w.ID, err)
	}
	m.logger.Info(ctx, "saved workflow", "workflow_id", w.ID)
	return w.ID, nil
}

// GetWorkflow returns the stored workflow or workflow.ErrNotFound.
func (m *Manager) GetWorkflow(ctx context.Context, id string) (*workflow.Workflow, error) {
	w, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load workflow %s: %w", id, err)
	}
	if w == nil {
		return nil, fmt.Errorf("%w: %s", workflow.ErrNotFound, id)
	}
	return w, nil
}

// DeleteWorkflow removes the workflow and reports whether it existed.
func (m *Manager) DeleteWorkflow(ctx context.Context, id string) (bool, error) {
	deleted, err := m.store.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete workflow %s: %w", id, err)
	}
	if deleted {
		m.logger.Info(ctx, "deleted workflow", "workflow_id", id)
	}
	return deleted, nil
}

// ListWorkflows returns every stored workflow.
func (m *Manager) ListWorkflows(ctx context.Context) ([]*workflow.Workflow, error) {
	return m.store.List(ctx)
}

// RunWorkflow executes the stored workflow with the given initial context.
func (m *Manager) RunWorkflow(ctx context.Context, id string, initialContext map[string]any) (*Execution, error) {
	w, err := m.GetWorkflow(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.runner.Execute(ctx, w, initialContext)
}

// RunWorkflowStream executes the stored workflow and streams update records.
func (m *Manager) RunWorkflowStream(ctx context.Context, id string, initialContext map[string]any) (<-chan stream.Update, error) {
	w, err := m.GetWorkflow(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.runner.ExecuteStream(ctx, w, initialContext), nil
}
