package workflow

import (
	"context"
	"errors"
)

// ErrNotFound is returned by store-backed operations when a workflow ID does
// not resolve to a saved document.
var ErrNotFound = errors.New("workflow not found")

// Store persists workflow documents. Implementations must return deep copies
// so callers can mutate documents without affecting stored state, and must be
// safe for concurrent use.
type Store interface {
	// Save persists the workflow under its ID, replacing any previous
	// version.
	Save(ctx context.Context, w *Workflow) error

	// Load returns the workflow with the given ID, or (nil, nil) when no
	// such workflow exists. A non-nil error indicates a backend failure.
	Load(ctx context.Context, id string) (*Workflow, error)

	// Delete removes the workflow with the given ID and reports whether a
	// document was removed.
	Delete(ctx context.Context, id string) (bool, error)

	// List returns every stored workflow.
	List(ctx context.Context) ([]*Workflow, error)
}
