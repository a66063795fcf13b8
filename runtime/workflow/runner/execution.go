package runner

import (
	"sync"
	"time"
)

type (
	// Status is the lifecycle status of a workflow execution.
	Status string

	// NodeStatus is the lifecycle status of a single node execution.
	NodeStatus string

	// NodeExecution is the execution record of one node: its synthesized
	// inputs, produced outputs, logs, retry accounting, and timing.
	NodeExecution struct {
		NodeID      string         `json:"node_id"`
		Status      NodeStatus     `json:"status"`
		StartedAt   *time.Time     `json:"started_at"`
		CompletedAt *time.Time     `json:"completed_at"`
		Inputs      map[string]any `json:"inputs,omitempty"`
		Outputs     map[string]any `json:"outputs"`
		Error       string         `json:"error,omitempty"`
		Logs        []string       `json:"logs"`
		RetryCount  int            `json:"retry_count"`
		DurationMS  int64          `json:"duration_ms"`
	}

	// Execution is the complete execution state of one workflow run. The
	// runner mutates it under its internal lock while nodes execute; external
	// consumers read consistent copies via Snapshot.
	Execution struct {
		mu sync.RWMutex

		ExecutionID    string                    `json:"execution_id"`
		WorkflowID     string                    `json:"workflow_id"`
		Status         Status                    `json:"status"`
		StartedAt      *time.Time                `json:"started_at"`
		CompletedAt    *time.Time                `json:"completed_at"`
		NodeExecutions map[string]*NodeExecution `json:"node_executions"`
		// Context accumulates node outputs keyed by node ID, seeded with the
		// caller's initial context.
		Context map[string]any `json:"context"`
		Error   string         `json:"error,omitempty"`
	}
)

// Workflow execution statuses.
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusPaused    Status = "paused"
)

// Node execution statuses.
const (
	NodePending NodeStatus = "pending"
	NodeQueued  NodeStatus = "queued"
	NodeRunning NodeStatus = "running"
	NodeSuccess NodeStatus = "success"
	NodeFailed  NodeStatus = "failed"
	NodeSkipped NodeStatus = "skipped"
)

// Snapshot returns a deep copy of the execution safe to serialize or inspect
// while the run is still in flight.
func (e *Execution) Snapshot() *Execution {
	e.mu.RLock()
	defer e.mu.RUnlock()

	c := &Execution{
		ExecutionID:    e.ExecutionID,
		WorkflowID:     e.WorkflowID,
		Status:         e.Status,
		StartedAt:      copyTime(e.StartedAt),
		CompletedAt:    copyTime(e.CompletedAt),
		NodeExecutions: make(map[string]*NodeExecution, len(e.NodeExecutions)),
		Context:        copyAnyMap(e.Context),
		Error:          e.Error,
	}
	for id, ne := range e.NodeExecutions {
		c.NodeExecutions[id] = ne.clone()
	}
	return c
}

func (ne *NodeExecution) clone() *NodeExecution {
	c := *ne
	c.StartedAt = copyTime(ne.StartedAt)
	c.CompletedAt = copyTime(ne.CompletedAt)
	c.Inputs = copyAnyMap(ne.Inputs)
	c.Outputs = copyAnyMap(ne.Outputs)
	c.Logs = append([]string(nil), ne.Logs...)
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func copyAnyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	c := make(map[string]any, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
