// Package runner implements the DAG execution engine: a ready-set scheduler
// that runs workflow nodes with bounded parallelism, applies per-node timeout
// and retry envelopes, and records execution state for polling, streaming,
// and cancellation.
package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"

	"github.com/sadadonline17-oss/ai-manus-unified/runtime/conditions"
	"github.com/sadadonline17-oss/ai-manus-unified/runtime/skill"
	"github.com/sadadonline17-oss/ai-manus-unified/runtime/stream"
	"github.com/sadadonline17-oss/ai-manus-unified/runtime/telemetry"
	"github.com/sadadonline17-oss/ai-manus-unified/runtime/workflow"
)

// ErrDeadlock is reported when no node is ready and none is running before
// all nodes completed, which means the graph has a cycle or an unsatisfiable
// dependency.
var ErrDeadlock = errors.New("Workflow deadlock detected")

type (
	// Runner executes workflow DAGs against a skill registry. Safe for
	// concurrent use; every Execute call gets an isolated execution record.
	Runner struct {
		registry       *skill.Registry
		maxParallel    int
		defaultTimeout time.Duration
		backoffUnit    time.Duration
		heartbeat      time.Duration
		logger         telemetry.Logger
		metrics        telemetry.Metrics
		tracer         telemetry.Tracer
		sink           stream.Sink

		state runnerState
	}

	// Option configures a Runner.
	Option func(*Runner)
)

// New returns a Runner with the given skill registry. Defaults: five parallel
// nodes, five-minute node timeout, one-second retry backoff unit, 500 ms
// stream heartbeat, noop telemetry.
func New(reg *skill.Registry, opts ...Option) *Runner {
	r := &Runner{
		registry:       reg,
		maxParallel:    5,
		defaultTimeout: skill.DefaultTimeout,
		backoffUnit:    time.Second,
		heartbeat:      500 * time.Millisecond,
		logger:         telemetry.NewNoopLogger(),
		metrics:        telemetry.NewNoopMetrics(),
		tracer:         telemetry.NewNoopTracer(),
	}
	r.state.init()
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WithMaxParallelNodes bounds the number of nodes dispatched concurrently.
func WithMaxParallelNodes(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxParallel = n
		}
	}
}

// WithDefaultTimeout sets the per-attempt timeout for skills that do not
// declare their own.
func WithDefaultTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.defaultTimeout = d
		}
	}
}

// WithRetryBackoffUnit scales the exponential retry backoff. The wait before
// retry attempt n is 2^(n-1) units; the default unit is one second.
func WithRetryBackoffUnit(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.backoffUnit = d
		}
	}
}

// WithHeartbeatInterval sets the idle interval between heartbeat records on
// streamed executions.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.heartbeat = d
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l telemetry.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m telemetry.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithTracer sets the tracer used to span node executions.
func WithTracer(t telemetry.Tracer) Option {
	return func(r *Runner) { r.tracer = t }
}

// WithSink forwards every streamed update to the given sink in addition to
// any per-execution stream observers.
func WithSink(s stream.Sink) Option {
	return func(r *Runner) { r.sink = s }
}

// Execute runs the workflow to completion and returns its execution record.
// Scheduling failures (deadlock) and node failures are reported on the record
// itself; the error return is reserved for invalid arguments.
func (r *Runner) Execute(ctx context.Context, w *workflow.Workflow, initialContext map[string]any) (*Execution, error) {
	if w == nil {
		return nil, errors.New("workflow is required")
	}
	return r.execute(ctx, w, initialContext, newID("exec_")), nil
}

// execute runs the workflow under the given execution ID. Streamed runs
// generate the ID up front so updates can reference it before scheduling
// starts.
func (r *Runner) execute(ctx context.Context, w *workflow.Workflow, initialContext map[string]any, executionID string) *Execution {
	now := time.Now()
	exec := &Execution{
		ExecutionID:    executionID,
		WorkflowID:     w.ID,
		Status:         StatusRunning,
		StartedAt:      &now,
		NodeExecutions: make(map[string]*NodeExecution, len(w.Nodes)),
		Context:        copyAnyMap(initialContext),
	}
	if exec.Context == nil {
		exec.Context = make(map[string]any)
	}
	for _, n := range w.Nodes {
		exec.NodeExecutions[n.ID] = &NodeExecution{NodeID: n.ID, Status: NodePending}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.state.track(executionID, exec, cancel)

	r.logger.Info(ctx, "starting workflow execution", "execution_id", executionID, "workflow_id", w.ID, "nodes", len(w.Nodes))

	err := r.runGraph(runCtx, w, exec)

	exec.mu.Lock()
	if exec.Status == StatusRunning {
		if err != nil {
			exec.Status = StatusFailed
			exec.Error = err.Error()
		} else {
			exec.Status = StatusCompleted
		}
	}
	if exec.CompletedAt == nil {
		done := time.Now()
		exec.CompletedAt = &done
	}
	final := exec.Status
	exec.mu.Unlock()

	r.metrics.RecordTimer("workflow_execution_duration", time.Since(now), "status", string(final))
	r.logger.Info(ctx, "workflow execution finished", "execution_id", executionID, "status", string(final))

	if cb := r.state.workflowComplete(); cb != nil {
		cb(exec.Snapshot())
	}
	return exec
}

// runGraph drives the ready-set loop: find nodes whose dependencies are all
// completed, dispatch up to maxParallel of them, wait for the batch, repeat.
// Failed nodes still count as completed so independent branches keep going.
func (r *Runner) runGraph(ctx context.Context, w *workflow.Workflow, exec *Execution) error {
	deps := make(map[string]map[string]bool, len(w.Nodes))
	for _, n := range w.Nodes {
		deps[n.ID] = make(map[string]bool)
	}
	for _, e := range w.Edges {
		if _, ok := deps[e.Target]; ok {
			deps[e.Target][e.Source] = true
		}
	}

	completed := make(map[string]bool, len(w.Nodes))
	var completedOrder []string

	for len(completedOrder) < len(w.Nodes) {
		if ctx.Err() != nil {
			r.markCancelled(exec)
			return nil
		}

		var ready []*workflow.Node
		for _, n := range w.Nodes {
			if completed[n.ID] {
				continue
			}
			satisfied := true
			for dep := range deps[n.ID] {
				if !completed[dep] {
					satisfied = false
					break
				}
			}
			if satisfied {
				ready = append(ready, n)
			}
		}

		if len(ready) == 0 {
			return ErrDeadlock
		}

		batch := ready
		if len(batch) > r.maxParallel {
			batch = batch[:r.maxParallel]
		}

		done := make(chan struct{}, len(batch))
		for _, n := range batch {
			order := append([]string(nil), completedOrder...)
			go func(n *workflow.Node) {
				defer func() { done <- struct{}{} }()
				r.executeNode(ctx, n, exec, order)
			}(n)
		}
		for range batch {
			<-done
		}

		for _, n := range batch {
			completed[n.ID] = true
			completedOrder = append(completedOrder, n.ID)
		}
	}
	return nil
}

// executeNode runs one node through its full lifecycle: input synthesis,
// skill lookup, the retry/timeout envelope, and state bookkeeping.
func (r *Runner) executeNode(ctx context.Context, node *workflow.Node, exec *Execution, completedOrder []string) {
	exec.mu.Lock()
	ne := exec.NodeExecutions[node.ID]
	ne.Status = NodeRunning
	started := time.Now()
	ne.StartedAt = &started
	exec.mu.Unlock()

	r.logger.Info(ctx, "executing node", "execution_id", exec.ExecutionID, "node_id", node.ID, "skill_id", node.SkillID)

	spanCtx, span := r.tracer.Start(ctx, "workflow.node")
	span.AddEvent("node_start", "node_id", node.ID, "skill_id", node.SkillID)
	defer span.End()

	if cb := r.state.nodeStart(); cb != nil {
		cb(r.nodeSnapshot(exec, node.ID))
	}

	// The stream carries terminal transitions only; start is observable
	// through the OnNodeStart callback.
	finish := func(status NodeStatus) {
		r.metrics.IncCounter("workflow_node_executions", 1, "status", string(status), "skill_id", node.SkillID)
		if status == NodeFailed {
			span.SetStatus(codes.Error, "node failed")
		} else {
			span.SetStatus(codes.Ok, "")
		}
		snap := r.nodeSnapshot(exec, node.ID)
		if cb := r.state.nodeComplete(); cb != nil {
			cb(snap)
		}
		r.emit(ctx, stream.Update{
			Type:        stream.TypeNodeUpdate,
			ExecutionID: exec.ExecutionID,
			NodeID:      node.ID,
			Status:      string(snap.Status),
			Outputs:     snap.Outputs,
			Error:       snap.Error,
			Logs:        tail(snap.Logs, 5),
		})
	}

	// Nodes without a skill binding (triggers) succeed immediately with
	// empty outputs.
	if node.SkillID == "" {
		exec.mu.Lock()
		ne.Status = NodeSuccess
		completedAt := time.Now()
		ne.CompletedAt = &completedAt
		exec.mu.Unlock()
		finish(NodeSuccess)
		return
	}

	sk, ok := r.registry.Get(node.SkillID)
	if !ok {
		exec.mu.Lock()
		ne.Status = NodeFailed
		ne.Error = fmt.Sprintf("Skill not found: %s", node.SkillID)
		completedAt := time.Now()
		ne.CompletedAt = &completedAt
		exec.mu.Unlock()
		r.logger.Error(ctx, "node execution failed", "execution_id", exec.ExecutionID, "node_id", node.ID, "error", fmt.Sprintf("Skill not found: %s", node.SkillID))
		finish(NodeFailed)
		return
	}

	inputs, previous := r.prepareInputs(node, exec, completedOrder)
	exec.mu.Lock()
	ne.Inputs = inputs
	exec.mu.Unlock()

	sc := &skill.Context{
		WorkflowID:      exec.WorkflowID,
		NodeID:          node.ID,
		Inputs:          inputs,
		PreviousOutputs: previous,
		Config:          node.Config,
	}

	result := r.executeWithRetry(spanCtx, sk, sc, exec, ne)

	// Condition nodes evaluate their routing rules against the produced
	// outputs; the chosen output index is recorded alongside the outputs.
	// Scheduling still runs every downstream branch.
	if result.Status == skill.StatusSuccess && node.Type == workflow.NodeTypeCondition && len(node.Conditions) > 0 {
		if idx, ok := conditions.Select(node.Conditions, result.Outputs); ok {
			if result.Outputs == nil {
				result.Outputs = make(map[string]any)
			}
			result.Outputs["selected_output"] = idx
		}
	}

	exec.mu.Lock()
	if result.Status == skill.StatusSuccess {
		ne.Status = NodeSuccess
	} else {
		ne.Status = NodeFailed
	}
	ne.Outputs = result.Outputs
	ne.Error = result.Error
	ne.Logs = result.Logs
	ne.DurationMS = result.DurationMS
	completedAt := time.Now()
	ne.CompletedAt = &completedAt
	exec.Context[node.ID] = result.Outputs
	status := ne.Status
	exec.mu.Unlock()

	r.metrics.RecordTimer("workflow_node_duration", time.Duration(result.DurationMS)*time.Millisecond, "skill_id", node.SkillID)
	if status == NodeFailed {
		r.logger.Error(ctx, "node execution failed", "execution_id", exec.ExecutionID, "node_id", node.ID, "error", result.Error)
	}
	finish(status)
}

// prepareInputs synthesizes a node's inputs: a copy of its declared
// parameters, then every completed node's outputs merged in completion order
// for keys the parameters do not already set. Also returns the upstream
// outputs map handed to the skill.
func (r *Runner) prepareInputs(node *workflow.Node, exec *Execution, completedOrder []string) (map[string]any, map[string]any) {
	inputs := make(map[string]any, len(node.Parameters))
	for k, v := range node.Parameters {
		inputs[k] = v
	}

	previous := make(map[string]any, len(completedOrder))
	exec.mu.RLock()
	for _, id := range completedOrder {
		ne, ok := exec.NodeExecutions[id]
		if !ok {
			continue
		}
		previous[id] = copyAnyMap(ne.Outputs)
		for k, v := range ne.Outputs {
			if _, exists := inputs[k]; !exists {
				inputs[k] = v
			}
		}
	}
	exec.mu.RUnlock()

	return inputs, previous
}

// executeWithRetry applies the retry/timeout envelope: up to 1+retry_count
// attempts, each bounded by the skill's timeout, with 2^attempt backoff
// between failed attempts. A timed-out attempt yields a synthetic failed
// result; parent cancellation aborts without further retries.
func (r *Runner) executeWithRetry(ctx context.Context, sk skill.Skill, sc *skill.Context, exec *Execution, ne *NodeExecution) *skill.Result {
	def := sk.Definition()
	retries := def.RetryCount
	timeout := def.Timeout
	if timeout <= 0 {
		timeout = r.defaultTimeout
	}

	var last *skill.Result
	for attempt := 0; attempt <= retries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		resCh := make(chan *skill.Result, 1)
		go func() {
			resCh <- sk.Execute(attemptCtx, sc)
		}()

		select {
		case res := <-resCh:
			cancel()
			if res == nil {
				res = &skill.Result{Status: skill.StatusFailed, Error: "skill returned no result"}
			}
			if res.Status == skill.StatusSuccess {
				return res
			}
			last = res

		case <-attemptCtx.Done():
			cancel()
			if ctx.Err() != nil {
				// Parent cancelled or timed out; do not retry.
				if last != nil {
					return last
				}
				return &skill.Result{Status: skill.StatusFailed, Error: ctx.Err().Error()}
			}
			last = &skill.Result{
				Status:     skill.StatusFailed,
				Error:      fmt.Sprintf("Execution timed out after %gs", timeout.Seconds()),
				Outputs:    map[string]any{},
				Logs:       []string{"Execution timed out"},
				DurationMS: timeout.Milliseconds(),
			}
		}

		exec.mu.Lock()
		ne.RetryCount = attempt + 1
		exec.mu.Unlock()

		if attempt < retries {
			r.metrics.IncCounter("workflow_node_retries", 1, "skill_id", def.ID)
			if !r.backoff(ctx, attempt) {
				return last
			}
		}
	}
	return last
}

// backoff sleeps for 2^attempt backoff units, returning false when the
// context is cancelled first.
func (r *Runner) backoff(ctx context.Context, attempt int) bool {
	timer := time.NewTimer((1 << attempt) * r.backoffUnit)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (r *Runner) markCancelled(exec *Execution) {
	exec.mu.Lock()
	if exec.Status == StatusRunning {
		exec.Status = StatusCancelled
		now := time.Now()
		exec.CompletedAt = &now
	}
	exec.mu.Unlock()
}

func (r *Runner) nodeSnapshot(exec *Execution, nodeID string) *NodeExecution {
	exec.mu.RLock()
	defer exec.mu.RUnlock()
	return exec.NodeExecutions[nodeID].clone()
}

// GetExecution returns a snapshot of the execution with the given ID.
func (r *Runner) GetExecution(id string) (*Execution, bool) {
	exec, ok := r.state.get(id)
	if !ok {
		return nil, false
	}
	return exec.Snapshot(), true
}

// ListExecutions returns snapshots of all known executions in start order,
// optionally filtered by workflow ID (empty matches all).
func (r *Runner) ListExecutions(workflowID string) []*Execution {
	var out []*Execution
	for _, exec := range r.state.list() {
		if workflowID != "" && exec.WorkflowID != workflowID {
			continue
		}
		out = append(out, exec.Snapshot())
	}
	return out
}

// CancelExecution cancels a running execution. It reports false when the
// execution is unknown or already finished. Nodes already dispatched observe
// the cancellation through their context.
func (r *Runner) CancelExecution(id string) bool {
	exec, cancel, ok := r.state.getWithCancel(id)
	if !ok {
		return false
	}
	exec.mu.Lock()
	if exec.Status != StatusRunning {
		exec.mu.Unlock()
		return false
	}
	exec.Status = StatusCancelled
	now := time.Now()
	exec.CompletedAt = &now
	exec.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return true
}

// OnNodeStart registers a callback invoked with a snapshot whenever a node
// starts executing.
func (r *Runner) OnNodeStart(cb func(*NodeExecution)) { r.state.setNodeStart(cb) }

// OnNodeComplete registers a callback invoked with a snapshot whenever a node
// finishes, regardless of outcome.
func (r *Runner) OnNodeComplete(cb func(*NodeExecution)) { r.state.setNodeComplete(cb) }

// OnWorkflowComplete registers a callback invoked with a snapshot when an
// execution reaches a terminal status.
func (r *Runner) OnWorkflowComplete(cb func(*Execution)) { r.state.setWorkflowComplete(cb) }

func newID(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func tail(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
