// Package mongo implements a MongoDB-backed workflow store.
package mongo

import (
	"context"
	"errors"

	clientsmongo "github.com/sadadonline17-oss/ai-manus-unified/features/store/mongo/clients/mongo"
	"github.com/sadadonline17-oss/ai-manus-unified/runtime/workflow"
)

// Store implements workflow.Store by delegating to the Mongo client.
type Store struct {
	client clientsmongo.Client
}

// NewStore builds a Store using the provided client.
func NewStore(client clientsmongo.Client) (*Store, error) {
	if client == nil {
		return nil, errors.New("client is required")
	}
	return &Store{client: client}, nil
}

// Save upserts the workflow document keyed by its ID.
func (s *Store) Save(ctx context.Context, w *workflow.Workflow) error {
	return s.client.UpsertWorkflow(ctx, w)
}

// Load returns the stored workflow, or nil when absent.
func (s *Store) Load(ctx context.Context, id string) (*workflow.Workflow, error) {
	return s.client.LoadWorkflow(ctx, id)
}

// Delete removes the workflow and reports whether it existed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	return s.client.DeleteWorkflow(ctx, id)
}

// List returns every stored workflow ordered by creation time.
func (s *Store) List(ctx context.Context) ([]*workflow.Workflow, error) {
	return s.client.ListWorkflows(ctx)
}
