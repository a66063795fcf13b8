package runner

import (
	"context"
	"time"

	"github.com/sadadonline17-oss/ai-manus-unified/runtime/stream"
	"github.com/sadadonline17-oss/ai-manus-unified/runtime/workflow"
)

// ExecuteStream runs the workflow and returns a channel of update records:
// execution_start first, one node_update per node terminal transition,
// heartbeat records while idle, and a final execution_complete after which
// the channel is closed. The caller must drain the channel.
func (r *Runner) ExecuteStream(ctx context.Context, w *workflow.Workflow, initialContext map[string]any) <-chan stream.Update {
	executionID := newID("exec_")
	updates := make(chan stream.Update, 64)

	obs := make(chan stream.Update, 64)
	r.state.addObserver(executionID, obs)

	go func() {
		defer close(updates)
		defer r.state.removeObserver(executionID, obs)

		updates <- stream.Update{
			Type:        stream.TypeExecutionStart,
			ExecutionID: executionID,
			WorkflowID:  w.ID,
		}

		done := make(chan *Execution, 1)
		go func() {
			done <- r.execute(ctx, w, initialContext, executionID)
		}()

		ticker := time.NewTicker(r.heartbeat)
		defer ticker.Stop()

		var exec *Execution
	loop:
		for {
			select {
			case upd := <-obs:
				updates <- upd
				ticker.Reset(r.heartbeat)
			case <-ticker.C:
				updates <- stream.Update{
					Type:        stream.TypeHeartbeat,
					ExecutionID: executionID,
				}
			case exec = <-done:
				break loop
			}
		}

		// Drain updates emitted before the execution finished.
		for {
			select {
			case upd := <-obs:
				updates <- upd
				continue
			default:
			}
			break
		}

		snap := exec.Snapshot()
		updates <- stream.Update{
			Type:        stream.TypeExecutionComplete,
			ExecutionID: executionID,
			Status:      string(snap.Status),
			Error:       snap.Error,
		}
	}()

	return updates
}

// emit fans an update out to the execution's stream observers and, when
// configured, the runner-wide sink.
func (r *Runner) emit(ctx context.Context, upd stream.Update) {
	for _, ch := range r.state.observerChans(upd.ExecutionID) {
		select {
		case ch <- upd:
		case <-ctx.Done():
			return
		}
	}
	if r.sink != nil {
		if err := r.sink.Send(ctx, upd); err != nil {
			r.logger.Warn(ctx, "stream sink send failed", "execution_id", upd.ExecutionID, "error", err.Error())
		}
	}
}
