package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
	"github.com/custodia-labs/lexcards-cli/internal/core/ports/driven"
)

// Ensure ExperimentStore implements the interface.
var _ driven.ExperimentStore = (*ExperimentStore)(nil)

// ExperimentStore is an append-only in-memory experiment log.
type ExperimentStore struct {
	mu          sync.RWMutex
	experiments []domain.Experiment
	ids         map[string]struct{}
}

// NewExperimentStore creates a new in-memory experiment store.
func NewExperimentStore() *ExperimentStore {
	return &ExperimentStore{
		ids: make(map[string]struct{}),
	}
}

// Save appends an experiment.
func (s *ExperimentStore) Save(_ context.Context, exp domain.Experiment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[exp.ID]; ok {
		return fmt.Errorf("experiment %s already recorded: %w", exp.ID, domain.ErrInvalidInput)
	}
	s.ids[exp.ID] = struct{}{}
	s.experiments = append(s.experiments, exp)
	return nil
}

// ListByDocument returns a document's experiments in insertion order.
func (s *ExperimentStore) ListByDocument(_ context.Context, documentID string) ([]domain.Experiment, error) {
	return s.filter(func(e domain.Experiment) bool { return e.DocumentID == documentID }), nil
}

// ListByRun returns a run's experiments in insertion order.
func (s *ExperimentStore) ListByRun(_ context.Context, runID string) ([]domain.Experiment, error) {
	return s.filter(func(e domain.Experiment) bool { return e.RunID == runID }), nil
}

func (s *ExperimentStore) filter(keep func(domain.Experiment) bool) []domain.Experiment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Experiment
	for _, e := range s.experiments {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}
