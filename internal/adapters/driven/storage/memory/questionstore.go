package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
	"github.com/custodia-labs/lexcards-cli/internal/core/ports/driven"
)

// Ensure QuestionStore implements the interface.
var _ driven.QuestionStore = (*QuestionStore)(nil)

// QuestionStore is an in-memory implementation of driven.QuestionStore.
type QuestionStore struct {
	mu        sync.RWMutex
	questions map[string]domain.Question
}

// NewQuestionStore creates a new in-memory question store.
func NewQuestionStore() *QuestionStore {
	return &QuestionStore{
		questions: make(map[string]domain.Question),
	}
}

// SaveAll stores or updates questions.
func (s *QuestionStore) SaveAll(_ context.Context, questions []domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range questions {
		if q.ID == "" {
			return domain.ErrInvalidInput
		}
		s.questions[q.ID] = q.Clone()
	}
	return nil
}

// Get retrieves a question by ID.
func (s *QuestionStore) Get(_ context.Context, id string) (*domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := q.Clone()
	return &c, nil
}

// Find returns questions matching the filter, oldest first.
func (s *QuestionStore) Find(_ context.Context, filter driven.QuestionFilter) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Question
	for _, q := range s.questions {
		if filter.DocumentID != "" && q.Origin.DocumentID != filter.DocumentID {
			continue
		}
		if filter.Status != "" && q.Status != filter.Status {
			continue
		}
		if filter.Type != "" && q.Type != filter.Type {
			continue
		}
		out = append(out, q.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// CountByStatus returns per-status counts for a document.
func (s *QuestionStore) CountByStatus(_ context.Context, documentID string) (map[domain.ValidationStatus]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[domain.ValidationStatus]int)
	for _, q := range s.questions {
		if q.Origin.DocumentID == documentID {
			counts[q.Status]++
		}
	}
	return counts, nil
}

// DeleteByDocument removes a document's questions.
func (s *QuestionStore) DeleteByDocument(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, q := range s.questions {
		if q.Origin.DocumentID == documentID {
			delete(s.questions, id)
		}
	}
	return nil
}
