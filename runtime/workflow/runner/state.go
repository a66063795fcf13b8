package runner

import (
	"context"
	"sync"

	"github.com/sadadonline17-oss/ai-manus-unified/runtime/stream"
)

// runnerState holds the mutable bookkeeping shared across executions: the
// executions table, per-execution cancel functions and stream observers, and
// the registered event callbacks.
type runnerState struct {
	mu        sync.RWMutex
	execs     map[string]*Execution
	order     []string
	cancels   map[string]context.CancelFunc
	observers map[string][]chan stream.Update

	onNodeStart        func(*NodeExecution)
	onNodeComplete     func(*NodeExecution)
	onWorkflowComplete func(*Execution)
}

func (s *runnerState) init() {
	s.execs = make(map[string]*Execution)
	s.cancels = make(map[string]context.CancelFunc)
	s.observers = make(map[string][]chan stream.Update)
}

func (s *runnerState) track(id string, exec *Execution, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.execs[id] = exec
	s.order = append(s.order, id)
	s.cancels[id] = cancel
}

func (s *runnerState) get(id string) (*Execution, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exec, ok := s.execs[id]
	return exec, ok
}

func (s *runnerState) getWithCancel(id string) (*Execution, context.CancelFunc, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exec, ok := s.execs[id]
	if !ok {
		return nil, nil, false
	}
	return exec, s.cancels[id], true
}

func (s *runnerState) list() []*Execution {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Execution, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.execs[id])
	}
	return out
}

func (s *runnerState) addObserver(execID string, ch chan stream.Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers[execID] = append(s.observers[execID], ch)
}

func (s *runnerState) removeObserver(execID string, ch chan stream.Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obs := s.observers[execID]
	for i, o := range obs {
		if o == ch {
			s.observers[execID] = append(obs[:i], obs[i+1:]...)
			break
		}
	}
	if len(s.observers[execID]) == 0 {
		delete(s.observers, execID)
	}
}

func (s *runnerState) observerChans(execID string) []chan stream.Update {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]chan stream.Update(nil), s.observers[execID]...)
}

func (s *runnerState) setNodeStart(cb func(*NodeExecution)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onNodeStart = cb
}

func (s *runnerState) setNodeComplete(cb func(*NodeExecution)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onNodeComplete = cb
}

func (s *runnerState) setWorkflowComplete(cb func(*Execution)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onWorkflowComplete = cb
}

func (s *runnerState) nodeStart() func(*NodeExecution) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.onNodeStart
}

func (s *runnerState) nodeComplete() func(*NodeExecution) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.onNodeComplete
}

func (s *runnerState) workflowComplete() func(*Execution) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.onWorkflowComplete
}
