// Package stream defines the records emitted while a workflow executes and the
// Sink abstraction that delivers them to clients. Updates are client-facing:
// they describe execution lifecycle (start, node progress, heartbeat,
// completion) in a wire-friendly shape suitable for Server-Sent Events,
// WebSockets, or message buses like Pulse.
package stream

import "context"

type (
	// Type identifies the kind of update record.
	Type string

	// Update is a single streamed execution record. Exactly one Type is set;
	// the remaining fields are populated according to the type:
	//
	//   - execution_start: ExecutionID and WorkflowID.
	//   - node_update: emitted once per node, on its terminal transition:
	//     ExecutionID, NodeID, the terminal Status, Outputs, Error, and the
	//     tail of the node's log lines.
	//   - heartbeat: ExecutionID only.
	//   - execution_complete: ExecutionID, final Status, and Error when the
	//     execution failed. Always the last record of a stream.
	Update struct {
		Type        Type           `json:"type"`
		ExecutionID string         `json:"execution_id"`
		WorkflowID  string         `json:"workflow_id,omitempty"`
		NodeID      string         `json:"node_id,omitempty"`
		Status      string         `json:"status,omitempty"`
		Outputs     map[string]any `json:"outputs,omitempty"`
		Error       string         `json:"error,omitempty"`
		Logs        []string       `json:"logs,omitempty"`
	}

	// Sink delivers updates to clients over a transport (SSE, Pulse).
	// Implementations must be thread-safe: the runner may call Send
	// concurrently when parallel nodes complete at the same time.
	Sink interface {
		// Send publishes an update to the sink's underlying transport. The
		// implementation is responsible for marshaling the update into its
		// wire format. Send returns an error if delivery fails (connection
		// closed, serialization error, transport unavailable).
		Send(ctx context.Context, update Update) error

		// Close releases resources owned by the sink. Close is idempotent;
		// after Close returns, subsequent Send calls must return errors. The
		// context bounds graceful shutdown.
		Close(ctx context.Context) error
	}
)

// Update record types, in the order a well-formed stream emits them.
const (
	// TypeExecutionStart opens a stream: the execution was admitted and is
	// about to schedule its first nodes.
	TypeExecutionStart Type = "execution_start"

	// TypeNodeUpdate reports a node's terminal transition (success or
	// failed), emitted once per node.
	TypeNodeUpdate Type = "node_update"

	// TypeHeartbeat keeps the transport alive while no node transitions occur.
	TypeHeartbeat Type = "heartbeat"

	// TypeExecutionComplete closes a stream with the terminal execution
	// status. No records follow it.
	TypeExecutionComplete Type = "execution_complete"
)
