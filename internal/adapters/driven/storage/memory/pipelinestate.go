package memory

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
	"github.com/custodia-labs/lexcards-cli/internal/core/ports/driven"
)

// Ensure PipelineStateStore implements the interface.
var _ driven.PipelineStateStore = (*PipelineStateStore)(nil)

// PipelineStateStore is an in-memory implementation of driven.PipelineStateStore.
type PipelineStateStore struct {
	mu     sync.RWMutex
	states map[string]domain.PipelineState
}

// NewPipelineStateStore creates a new in-memory state store.
func NewPipelineStateStore() *PipelineStateStore {
	return &PipelineStateStore{
		states: make(map[string]domain.PipelineState),
	}
}

// Get returns a copy of the stored state.
func (s *PipelineStateStore) Get(_ context.Context, documentID string) (*domain.PipelineState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[documentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := copyState(st)
	return &out, nil
}

// Save stores a copy of the state.
func (s *PipelineStateStore) Save(_ context.Context, state domain.PipelineState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.DocumentID] = copyState(state)
	return nil
}

func copyState(st domain.PipelineState) domain.PipelineState {
	completed := make(map[domain.Stage]time.Time, len(st.Completed))
	for k, v := range st.Completed {
		completed[k] = v
	}
	st.Completed = completed
	return st
}
