package editor

import (
	"context"
	"errors"
	"sync"
)

// Session is one open editor: a single Graph, the read-only gate in front of
// Reduce and the guard against overlapping saves. Edits may keep arriving
// while a save is in flight; they stay dirty after the save completes.
type Session struct {
	saver *Saver

	mu       sync.Mutex
	graph    Graph
	readOnly bool
	saving   bool
	revision uint64
}

// NewSession opens a session on g that saves through saver.
func NewSession(g Graph, saver *Saver) *Session {
	return &Session{graph: g, saver: saver}
}

// Graph returns a snapshot of the current state.
func (s *Session) Graph() Graph {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.clone()
}

// SetReadOnly toggles read-only mode, used while the pipeline executes or
// when the viewer may not edit it.
func (s *Session) SetReadOnly(readOnly bool) {
	s.mu.Lock()
	s.readOnly = readOnly
	s.mu.Unlock()
}

// ReadOnly reports whether mutating actions are currently refused.
func (s *Session) ReadOnly() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readOnly
}

// Saving reports whether a save is in flight.
func (s *Session) Saving() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saving
}

// Dispatch applies a to the session graph. It returns false when a was
// refused because the session is read-only.
func (s *Session) Dispatch(a Action) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readOnly && IsMutating(a) {
		return false
	}
	s.graph = Reduce(s.graph, a)
	if IsMutating(a) {
		s.revision++
	}
	return true
}

// Save persists the current graph. Concurrent calls fail with
// ErrSaveInProgress. On success the graph is marked saved unless edits were
// dispatched during the save, in which case it stays dirty but still picks
// up the new PersistedID.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	if s.readOnly {
		s.mu.Unlock()
		return ErrReadOnly
	}
	if s.saving {
		s.mu.Unlock()
		return ErrSaveInProgress
	}
	s.saving = true
	snapshot, rev := s.graph.clone(), s.revision
	s.mu.Unlock()

	done, err := s.saver.save(ctx, snapshot)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.saving = false

	var vErr *ValidationFailedError
	switch {
	case errors.As(err, &vErr):
		s.graph = Reduce(s.graph, SetValidationErrors{Errors: vErr.Errors})
		return err
	case err != nil:
		return err
	}

	edited := s.revision != rev
	s.graph = Reduce(s.graph, SetValidationErrors{})
	s.graph = Reduce(s.graph, done)
	if edited {
		s.graph.Dirty = true
	}
	return nil
}
