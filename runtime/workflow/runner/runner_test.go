package runner

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sadadonline17-oss/ai-manus-unified/runtime/skill"
	"github.com/sadadonline17-oss/ai-manus-unified/runtime/workflow"
)

// fakeSkill runs a configurable function under a fixed definition.
type fakeSkill struct {
	def skill.Definition
	fn  func(ctx context.Context, sc *skill.Context) *skill.Result
}

func (f *fakeSkill) Definition() skill.Definition {
	return f.def
}

func (f *fakeSkill) Execute(ctx context.Context, sc *skill.Context) *skill.Result {
	return f.fn(ctx, sc)
}

func registryWith(t *testing.T, skills ...*fakeSkill) *skill.Registry {
	t.Helper()
	reg := skill.NewRegistry()
	for _, s := range skills {
		s := s
		reg.Register(context.Background(), func() skill.Skill { return s })
	}
	return reg
}

func succeedWith(outputs map[string]any) func(context.Context, *skill.Context) *skill.Result {
	return func(ctx context.Context, sc *skill.Context) *skill.Result {
		return &skill.Result{Status: skill.StatusSuccess, Outputs: outputs}
	}
}

func TestExecuteLinearWorkflow(t *testing.T) {
	var captured *skill.Context
	var mu sync.Mutex

	reg := registryWith(t,
		&fakeSkill{
			def: skill.Definition{ID: "producer"},
			fn:  succeedWith(map[string]any{"value": 42}),
		},
		&fakeSkill{
			def: skill.Definition{ID: "consumer"},
			fn: func(ctx context.Context, sc *skill.Context) *skill.Result {
				mu.Lock()
				captured = sc
				mu.Unlock()
				return &skill.Result{Status: skill.StatusSuccess, Outputs: map[string]any{"done": true}}
			},
		},
	)

	w := &workflow.Workflow{
		ID:   "workflow_1",
		Name: "linear",
		Nodes: []*workflow.Node{
			{ID: "trigger", Type: workflow.NodeTypeTrigger},
			{ID: "a", Type: workflow.NodeTypeSkill, SkillID: "producer"},
			{ID: "b", Type: workflow.NodeTypeSkill, SkillID: "consumer", Parameters: map[string]any{"own": true}},
		},
		Edges: []workflow.Edge{
			{ID: "e1", Source: "trigger", Target: "a"},
			{ID: "e2", Source: "a", Target: "b"},
		},
		Triggers: []string{"trigger"},
	}

	r := New(reg)
	exec, err := r.Execute(context.Background(), w, map[string]any{"seed": "s"})
	require.NoError(t, err)

	snap := exec.Snapshot()
	require.Equal(t, StatusCompleted, snap.Status)
	require.NotNil(t, snap.CompletedAt)
	require.Equal(t, NodeSuccess, snap.NodeExecutions["trigger"].Status)
	require.Equal(t, NodeSuccess, snap.NodeExecutions["a"].Status)
	require.Equal(t, NodeSuccess, snap.NodeExecutions["b"].Status)

	// Node outputs accumulate in the execution context next to the seed.
	require.Equal(t, "s", snap.Context["seed"])
	require.Equal(t, map[string]any{"value": 42}, snap.Context["a"])
	require.Equal(t, map[string]any{"done": true}, snap.Context["b"])

	// The consumer sees its own parameters plus upstream outputs for absent
	// keys, and the upstream outputs keyed by node ID.
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, true, captured.Inputs["own"])
	require.Equal(t, 42, captured.Inputs["value"])
	require.Equal(t, map[string]any{"value": 42}, captured.PreviousOutputs["a"])
	require.Equal(t, "workflow_1", captured.WorkflowID)
}

func TestExecuteBoundsParallelism(t *testing.T) {
	var current, peak int64

	slow := &fakeSkill{
		def: skill.Definition{ID: "slow"},
		fn: func(ctx context.Context, sc *skill.Context) *skill.Result {
			n := atomic.AddInt64(&current, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt64(&current, -1)
			return &skill.Result{Status: skill.StatusSuccess, Outputs: map[string]any{}}
		},
	}

	w := &workflow.Workflow{
		ID:   "workflow_1",
		Name: "fanout",
		Nodes: []*workflow.Node{
			{ID: "n1", SkillID: "slow"},
			{ID: "n2", SkillID: "slow"},
			{ID: "n3", SkillID: "slow"},
			{ID: "n4", SkillID: "slow"},
		},
		Triggers: []string{"n1"},
	}

	r := New(registryWith(t, slow), WithMaxParallelNodes(2))
	exec, err := r.Execute(context.Background(), w, nil)
	require.NoError(t, err)

	require.Equal(t, StatusCompleted, exec.Snapshot().Status)
	require.LessOrEqual(t, atomic.LoadInt64(&peak), int64(2))
}

func TestExecuteFailedNodeDoesNotBlockBranches(t *testing.T) {
	reg := registryWith(t,
		&fakeSkill{
			def: skill.Definition{ID: "broken"},
			fn: func(ctx context.Context, sc *skill.Context) *skill.Result {
				return &skill.Result{Status: skill.StatusFailed, Error: "boom"}
			},
		},
		&fakeSkill{
			def: skill.Definition{ID: "fine"},
			fn:  succeedWith(map[string]any{"ok": true}),
		},
	)

	w := &workflow.Workflow{
		ID:   "workflow_1",
		Name: "branches",
		Nodes: []*workflow.Node{
			{ID: "trigger", Type: workflow.NodeTypeTrigger},
			{ID: "bad", SkillID: "broken"},
			{ID: "good", SkillID: "fine"},
			{ID: "after_bad", SkillID: "fine"},
		},
		Edges: []workflow.Edge{
			{ID: "e1", Source: "trigger", Target: "bad"},
			{ID: "e2", Source: "trigger", Target: "good"},
			{ID: "e3", Source: "bad", Target: "after_bad"},
		},
		Triggers: []string{"trigger"},
	}

	exec, err := New(reg).Execute(context.Background(), w, nil)
	require.NoError(t, err)

	snap := exec.Snapshot()
	require.Equal(t, StatusCompleted, snap.Status)
	require.Equal(t, NodeFailed, snap.NodeExecutions["bad"].Status)
	require.Equal(t, "boom", snap.NodeExecutions["bad"].Error)
	require.Equal(t, NodeSuccess, snap.NodeExecutions["good"].Status)
	// A failed dependency still counts as completed, so the downstream node runs.
	require.Equal(t, NodeSuccess, snap.NodeExecutions["after_bad"].Status)
}

func TestExecuteRetriesTimedOutAttempts(t *testing.T) {
	stuck := &fakeSkill{
		def: skill.Definition{ID: "stuck", Timeout: 50 * time.Millisecond, RetryCount: 2},
		fn: func(ctx context.Context, sc *skill.Context) *skill.Result {
			<-ctx.Done()
			return &skill.Result{Status: skill.StatusFailed, Error: "late"}
		},
	}

	w := &workflow.Workflow{
		ID:       "workflow_1",
		Name:     "timeouts",
		Nodes:    []*workflow.Node{{ID: "n", SkillID: "stuck"}},
		Triggers: []string{"n"},
	}

	r := New(registryWith(t, stuck), WithRetryBackoffUnit(10*time.Millisecond))
	exec, err := r.Execute(context.Background(), w, nil)
	require.NoError(t, err)

	snap := exec.Snapshot()
	ne := snap.NodeExecutions["n"]
	require.Equal(t, NodeFailed, ne.Status)
	require.Equal(t, "Execution timed out after 0.05s", ne.Error)
	require.Equal(t, 3, ne.RetryCount)
	require.Contains(t, ne.Logs, "Execution timed out")
}

func TestExecuteRetryUntilSuccess(t *testing.T) {
	var attempts int64
	flaky := &fakeSkill{
		def: skill.Definition{ID: "flaky", RetryCount: 3},
		fn: func(ctx context.Context, sc *skill.Context) *skill.Result {
			if atomic.AddInt64(&attempts, 1) < 3 {
				return &skill.Result{Status: skill.StatusFailed, Error: "transient"}
			}
			return &skill.Result{Status: skill.StatusSuccess, Outputs: map[string]any{"ok": true}}
		},
	}

	w := &workflow.Workflow{
		ID:       "workflow_1",
		Name:     "flaky",
		Nodes:    []*workflow.Node{{ID: "n", SkillID: "flaky"}},
		Triggers: []string{"n"},
	}

	r := New(registryWith(t, flaky), WithRetryBackoffUnit(time.Millisecond))
	exec, err := r.Execute(context.Background(), w, nil)
	require.NoError(t, err)

	snap := exec.Snapshot()
	ne := snap.NodeExecutions["n"]
	require.Equal(t, NodeSuccess, ne.Status)
	require.Equal(t, 2, ne.RetryCount)
	require.EqualValues(t, 3, atomic.LoadInt64(&attempts))
}

func TestExecuteReportsDeadlock(t *testing.T) {
	w := &workflow.Workflow{
		ID:   "workflow_1",
		Name: "cycle",
		Nodes: []*workflow.Node{
			{ID: "a", SkillID: "x"},
			{ID: "b", SkillID: "x"},
		},
		Edges: []workflow.Edge{
			{ID: "e1", Source: "a", Target: "b"},
			{ID: "e2", Source: "b", Target: "a"},
		},
		Triggers: []string{"a"},
	}

	exec, err := New(skill.NewRegistry()).Execute(context.Background(), w, nil)
	require.NoError(t, err)

	snap := exec.Snapshot()
	require.Equal(t, StatusFailed, snap.Status)
	require.Equal(t, "Workflow deadlock detected", snap.Error)
}

func TestExecuteUnknownSkillFailsNode(t *testing.T) {
	w := &workflow.Workflow{
		ID:       "workflow_1",
		Name:     "unknown",
		Nodes:    []*workflow.Node{{ID: "n", SkillID: "ghost"}},
		Triggers: []string{"n"},
	}

	exec, err := New(skill.NewRegistry()).Execute(context.Background(), w, nil)
	require.NoError(t, err)

	snap := exec.Snapshot()
	require.Equal(t, StatusCompleted, snap.Status)
	require.Equal(t, NodeFailed, snap.NodeExecutions["n"].Status)
	require.Equal(t, "Skill not found: ghost", snap.NodeExecutions["n"].Error)
}

func TestExecuteNilWorkflow(t *testing.T) {
	_, err := New(skill.NewRegistry()).Execute(context.Background(), nil, nil)
	require.EqualError(t, err, "workflow is required")
}

func TestCancelExecution(t *testing.T) {
	blocking := &fakeSkill{
		def: skill.Definition{ID: "blocking"},
		fn: func(ctx context.Context, sc *skill.Context) *skill.Result {
			<-ctx.Done()
			return &skill.Result{Status: skill.StatusFailed, Error: ctx.Err().Error()}
		},
	}

	w := &workflow.Workflow{
		ID:       "workflow_1",
		Name:     "blocking",
		Nodes:    []*workflow.Node{{ID: "n", SkillID: "blocking"}},
		Triggers: []string{"n"},
	}

	r := New(registryWith(t, blocking))

	done := make(chan *Execution, 1)
	go func() {
		exec, _ := r.Execute(context.Background(), w, nil)
		done <- exec
	}()

	var executionID string
	require.Eventually(t, func() bool {
		execs := r.ListExecutions("workflow_1")
		if len(execs) == 0 {
			return false
		}
		executionID = execs[0].ExecutionID
		return execs[0].Status == StatusRunning
	}, time.Second, 5*time.Millisecond)

	require.True(t, r.CancelExecution(executionID))

	exec := <-done
	require.Equal(t, StatusCancelled, exec.Snapshot().Status)

	// A finished execution cannot be cancelled again.
	require.False(t, r.CancelExecution(executionID))
	require.False(t, r.CancelExecution("exec_unknown"))
}

func TestGetAndListExecutions(t *testing.T) {
	ok := &fakeSkill{def: skill.Definition{ID: "ok"}, fn: succeedWith(map[string]any{})}
	r := New(registryWith(t, ok))

	w1 := &workflow.Workflow{ID: "workflow_1", Name: "one", Nodes: []*workflow.Node{{ID: "n", SkillID: "ok"}}, Triggers: []string{"n"}}
	w2 := &workflow.Workflow{ID: "workflow_2", Name: "two", Nodes: []*workflow.Node{{ID: "n", SkillID: "ok"}}, Triggers: []string{"n"}}

	e1, err := r.Execute(context.Background(), w1, nil)
	require.NoError(t, err)
	_, err = r.Execute(context.Background(), w2, nil)
	require.NoError(t, err)

	got, found := r.GetExecution(e1.ExecutionID)
	require.True(t, found)
	require.Equal(t, "workflow_1", got.WorkflowID)

	_, found = r.GetExecution("exec_unknown")
	require.False(t, found)

	require.Len(t, r.ListExecutions(""), 2)
	onlyOne := r.ListExecutions("workflow_1")
	require.Len(t, onlyOne, 1)
	require.Equal(t, e1.ExecutionID, onlyOne[0].ExecutionID)
}

func TestExecutionIDFormat(t *testing.T) {
	id := newID("exec_")
	require.Len(t, id, len("exec_")+12)
	require.Equal(t, "exec_", id[:5])
}

func TestCompletionCallbacks(t *testing.T) {
	ok := &fakeSkill{def: skill.Definition{ID: "ok"}, fn: succeedWith(map[string]any{})}
	r := New(registryWith(t, ok))

	var (
		mu        sync.Mutex
		started   []string
		completed []string
		workflows []Status
	)
	r.OnNodeStart(func(ne *NodeExecution) {
		mu.Lock()
		started = append(started, ne.NodeID)
		mu.Unlock()
	})
	r.OnNodeComplete(func(ne *NodeExecution) {
		mu.Lock()
		completed = append(completed, ne.NodeID)
		mu.Unlock()
	})
	r.OnWorkflowComplete(func(e *Execution) {
		mu.Lock()
		workflows = append(workflows, e.Status)
		mu.Unlock()
	})

	w := &workflow.Workflow{ID: "workflow_1", Name: "cb", Nodes: []*workflow.Node{{ID: "n", SkillID: "ok"}}, Triggers: []string{"n"}}
	_, err := r.Execute(context.Background(), w, nil)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"n"}, started)
	require.Equal(t, []string{"n"}, completed)
	require.Equal(t, []Status{StatusCompleted}, workflows)
}

func TestExecuteDiamondOrdersEdgesAndOverlapsBranches(t *testing.T) {
	// b and c rendezvous so the test observes them running concurrently.
	barrier := make(chan struct{})
	meet := func(ctx context.Context, sc *skill.Context) *skill.Result {
		select {
		case barrier <- struct{}{}:
		case <-barrier:
		}
		time.Sleep(20 * time.Millisecond)
		return &skill.Result{Status: skill.StatusSuccess, Outputs: map[string]any{}}
	}

	reg := registryWith(t,
		&fakeSkill{def: skill.Definition{ID: "left"}, fn: meet},
		&fakeSkill{def: skill.Definition{ID: "right"}, fn: meet},
		&fakeSkill{def: skill.Definition{ID: "join"}, fn: succeedWith(map[string]any{})},
	)
	r := New(reg, WithMaxParallelNodes(2))

	w := &workflow.Workflow{
		ID:   "workflow_1",
		Name: "diamond",
		Nodes: []*workflow.Node{
			{ID: "a", Type: workflow.NodeTypeTrigger},
			{ID: "b", Type: workflow.NodeTypeSkill, SkillID: "left"},
			{ID: "c", Type: workflow.NodeTypeSkill, SkillID: "right"},
			{ID: "d", Type: workflow.NodeTypeMerge, SkillID: "join"},
		},
		Edges: []workflow.Edge{
			{ID: "e1", Source: "a", Target: "b"},
			{ID: "e2", Source: "a", Target: "c"},
			{ID: "e3", Source: "b", Target: "d"},
			{ID: "e4", Source: "c", Target: "d"},
		},
		Triggers: []string{"a"},
	}

	exec, err := r.Execute(context.Background(), w, nil)
	require.NoError(t, err)

	snap := exec.Snapshot()
	require.Equal(t, StatusCompleted, snap.Status)
	for _, id := range []string{"a", "b", "c", "d"} {
		require.Equal(t, NodeSuccess, snap.NodeExecutions[id].Status)
	}

	// Every edge orders source completion before target start.
	for _, e := range w.Edges {
		src := snap.NodeExecutions[e.Source]
		tgt := snap.NodeExecutions[e.Target]
		require.NotNil(t, src.CompletedAt)
		require.NotNil(t, tgt.StartedAt)
		require.False(t, src.CompletedAt.After(*tgt.StartedAt),
			"%s completed after %s started", e.Source, e.Target)
	}

	// The independent branches ran concurrently.
	b := snap.NodeExecutions["b"]
	c := snap.NodeExecutions["c"]
	require.True(t, b.StartedAt.Before(*c.CompletedAt))
	require.True(t, c.StartedAt.Before(*b.CompletedAt))
}

func TestExecuteConditionNodeRecordsSelectedOutput(t *testing.T) {
	scorer := &fakeSkill{def: skill.Definition{ID: "scorer"}, fn: succeedWith(map[string]any{"score": 10})}
	r := New(registryWith(t, scorer))

	w := &workflow.Workflow{
		ID:   "workflow_1",
		Name: "routed",
		Nodes: []*workflow.Node{
			{ID: "t", Type: workflow.NodeTypeTrigger},
			{ID: "check", Type: workflow.NodeTypeCondition, SkillID: "scorer", Conditions: []workflow.Condition{
				{Type: "expression", Left: "score < 5", Output: 1},
				{Type: "expression", Left: "score > 5", Output: 2},
			}},
		},
		Edges:    []workflow.Edge{{ID: "e1", Source: "t", Target: "check"}},
		Triggers: []string{"t"},
	}

	exec, err := r.Execute(context.Background(), w, nil)
	require.NoError(t, err)

	snap := exec.Snapshot()
	ne := snap.NodeExecutions["check"]
	require.Equal(t, NodeSuccess, ne.Status)
	require.Equal(t, 2, ne.Outputs["selected_output"])

	ctxOutputs, ok := snap.Context["check"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, 2, ctxOutputs["selected_output"])
}

func TestExecuteConditionNodeNoMatch(t *testing.T) {
	scorer := &fakeSkill{def: skill.Definition{ID: "scorer"}, fn: succeedWith(map[string]any{"score": 1})}
	r := New(registryWith(t, scorer))

	w := &workflow.Workflow{
		ID:   "workflow_1",
		Name: "unrouted",
		Nodes: []*workflow.Node{
			{ID: "check", Type: workflow.NodeTypeCondition, SkillID: "scorer", Conditions: []workflow.Condition{
				{Type: "expression", Left: "score > 5", Output: 1},
			}},
		},
		Triggers: []string{"check"},
	}

	exec, err := r.Execute(context.Background(), w, nil)
	require.NoError(t, err)

	ne := exec.Snapshot().NodeExecutions["check"]
	require.Equal(t, NodeSuccess, ne.Status)
	require.NotContains(t, ne.Outputs, "selected_output")
}
