// Package inmem provides an in-memory workflow store. It is the default
// store for development and tests; all methods hand out deep copies so
// callers can mutate results freely.
package inmem

import (
	"context"
	"sync"

	"github.com/sadadonline17-oss/ai-manus-unified/runtime/workflow"
)

// Store is a concurrency-safe map-backed workflow store.
type Store struct {
	mu        sync.RWMutex
	workflows map[string]*workflow.Workflow
	order     []string
}

// New returns an empty Store.
func New() *Store {
	return &Store{workflows: make(map[string]*workflow.Workflow)}
}

// Save stores a copy of the workflow keyed by its ID.
func (s *Store) Save(_ context.Context, w *workflow.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workflows[w.ID]; !ok {
		s.order = append(s.order, w.ID)
	}
	s.workflows[w.ID] = w.Clone()
	return nil
}

// Load returns a copy of the stored workflow, or nil when absent.
func (s *Store) Load(_ context.Context, id string) (*workflow.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.workflows[id]
	if !ok {
		return nil, nil
	}
	return w.Clone(), nil
}

// Delete removes the workflow and reports whether it existed.
func (s *Store) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workflows[id]; !ok {
		return false, nil
	}
	delete(s.workflows, id)
	for i, wid := range s.order {
		if wid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true, nil
}

// List returns copies of every stored workflow in insertion order.
func (s *Store) List(_ context.Context) ([]*workflow.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*workflow.Workflow, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.workflows[id].Clone())
	}
	return out, nil
}

// Reset drops all stored workflows. Intended for tests.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workflows = make(map[string]*workflow.Workflow)
	s.order = nil
}
