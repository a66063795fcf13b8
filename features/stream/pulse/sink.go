// Package pulse provides a stream.Sink that publishes execution updates to
// goa.design/pulse streams, one stream per execution. Services build a Redis
// client, wrap it in the Pulse client, and hand the resulting sink to the
// runner so out-of-process consumers can follow executions.
package pulse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sadadonline17-oss/ai-manus-unified/features/stream/pulse/clients/pulse"
	"github.com/sadadonline17-oss/ai-manus-unified/runtime/stream"
)

type (
	// Options configures the Pulse sink.
	Options struct {
		// Client is the Pulse client used to publish updates. Required.
		Client pulse.Client
		// StreamID derives the target Pulse stream from an update. Defaults
		// to `exec/<ExecutionID>`.
		StreamID func(stream.Update) (string, error)
		// MarshalEnvelope overrides envelope serialization (primarily for
		// tests).
		MarshalEnvelope func(envelope) ([]byte, error)
	}

	// Sink publishes execution updates into Pulse streams. Safe for
	// concurrent Send calls.
	Sink struct {
		client pulse.Client
		opts   sinkOptions
	}

	sinkOptions struct {
		streamID        func(stream.Update) (string, error)
		marshalEnvelope func(envelope) ([]byte, error)
	}

	// envelope wraps an update for transmission over Pulse streams.
	envelope struct {
		// Type identifies the update kind (e.g. "node_update").
		Type string `json:"type"`
		// ExecutionID links the update to a specific execution.
		ExecutionID string `json:"execution_id"`
		// Timestamp records when the update was published (UTC).
		Timestamp time.Time `json:"timestamp"`
		// Payload carries the full update record.
		Payload stream.Update `json:"payload"`
	}
)

// NewSink constructs a Pulse-backed update sink. The Client field in opts is
// required; the remaining fields default to the built-in implementations.
func NewSink(opts Options) (*Sink, error) {
	if opts.Client == nil {
		return nil, errors.New("pulse client is required")
	}
	cfg := sinkOptions{
		streamID:        defaultStreamID,
		marshalEnvelope: defaultMarshal,
	}
	if opts.StreamID != nil {
		cfg.streamID = opts.StreamID
	}
	if opts.MarshalEnvelope != nil {
		cfg.marshalEnvelope = opts.MarshalEnvelope
	}
	return &Sink{client: opts.Client, opts: cfg}, nil
}

// Send publishes the update to the derived Pulse stream.
func (s *Sink) Send(ctx context.Context, upd stream.Update) error {
	streamID, err := s.opts.streamID(upd)
	if err != nil {
		return err
	}
	handle, err := s.client.Stream(streamID)
	if err != nil {
		return err
	}
	env := envelope{
		Type:        string(upd.Type),
		ExecutionID: upd.ExecutionID,
		Timestamp:   time.Now().UTC(),
		Payload:     upd,
	}
	payload, err := s.opts.marshalEnvelope(env)
	if err != nil {
		return err
	}
	if _, err := handle.Add(ctx, env.Type, payload); err != nil {
		return err
	}
	return nil
}

// Close releases resources owned by the sink.
func (s *Sink) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

func defaultStreamID(upd stream.Update) (string, error) {
	if upd.ExecutionID == "" {
		return "", errors.New("stream update missing execution id")
	}
	return fmt.Sprintf("exec/%s", upd.ExecutionID), nil
}

func defaultMarshal(env envelope) ([]byte, error) {
	return json.Marshal(env)
}
