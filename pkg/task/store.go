// Package task owns the in-memory task store and the state machine that
// maps triage survey outcomes onto protocol task states.
package task

import (
	"errors"
	"sync"

	"github.com/outshift/triagent/pkg/a2a"
)

var (
	// ErrNotFound is returned when a task id is unknown to the store.
	ErrNotFound = errors.New("task not found")

	// ErrTerminal is returned when an operation requires a task that can
	// still make progress.
	ErrTerminal = errors.New("task is in a terminal state")
)

// Store is a process-wide collection of tasks. Mutating access to a task
// goes through Update, which serializes concurrent operations on the same
// task id while leaving unrelated tasks unblocked.
type Store struct {
	mu    sync.RWMutex
	tasks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	task *a2a.Task
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{tasks: make(map[string]*entry)}
}

// Put registers a new task.
func (s *Store) Put(t *a2a.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = &entry{task: t}
}

// Update runs fn with exclusive access to the task. The task pointer must
// not escape fn.
func (s *Store) Update(id string, fn func(t *a2a.Task) error) error {
	s.mu.RLock()
	e, ok := s.tasks[id]
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.task)
}

// Snapshot returns a copy of the task safe to serialize outside any lock.
// When historyLimit > 0 and the stored history is longer, the copy keeps
// only the most recent historyLimit entries; the stored record is never
// truncated.
func (s *Store) Snapshot(id string, historyLimit int) (*a2a.Task, error) {
	s.mu.RLock()
	e, ok := s.tasks[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return copyTask(e.task, historyLimit), nil
}

// Count returns the number of tasks held.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

// Has reports whether the id is known.
func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tasks[id]
	return ok
}

func copyTask(t *a2a.Task, historyLimit int) *a2a.Task {
	cp := &a2a.Task{
		ID:        t.ID,
		ContextID: t.ContextID,
		Status:    t.Status,
		Kind:      t.Kind,
	}

	history := t.History
	if historyLimit > 0 && len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}
	cp.History = append([]a2a.Message(nil), history...)
	cp.Artifacts = append([]a2a.Artifact(nil), t.Artifacts...)

	if t.Status.Message != nil {
		msg := *t.Status.Message
		cp.Status.Message = &msg
	}
	if t.Metadata != nil {
		cp.Metadata = make(map[string]any, len(t.Metadata))
		for k, v := range t.Metadata {
			cp.Metadata[k] = v
		}
	}
	return cp
}
