package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
	"github.com/custodia-labs/lexcards-cli/internal/core/ports/driven"
)

// Ensure SectionStore implements the interface.
var _ driven.SectionStore = (*SectionStore)(nil)

// SectionStore is an in-memory implementation of driven.SectionStore.
type SectionStore struct {
	mu       sync.RWMutex
	sections map[string]map[int]domain.Section
	results  map[string]map[int]domain.ClassificationResult
}

// NewSectionStore creates a new in-memory section store.
func NewSectionStore() *SectionStore {
	return &SectionStore{
		sections: make(map[string]map[int]domain.Section),
		results:  make(map[string]map[int]domain.ClassificationResult),
	}
}

// SaveAll stores or replaces sections.
func (s *SectionStore) SaveAll(_ context.Context, sections []domain.Section) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sec := range sections {
		if s.sections[sec.DocumentID] == nil {
			s.sections[sec.DocumentID] = make(map[int]domain.Section)
		}
		s.sections[sec.DocumentID][sec.ID] = sec
	}
	return nil
}

// FindAll returns a document's sections in ordinal order.
func (s *SectionStore) FindAll(_ context.Context, documentID string) ([]domain.Section, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ordered(documentID), nil
}

// SaveClassifications stores classification results.
func (s *SectionStore) SaveClassifications(_ context.Context, classified []domain.ClassifiedSection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range classified {
		docID := c.Section.DocumentID
		if _, ok := s.sections[docID][c.Section.ID]; !ok {
			return domain.ErrNotFound
		}
		if s.results[docID] == nil {
			s.results[docID] = make(map[int]domain.ClassificationResult)
		}
		s.results[docID][c.Section.ID] = c.Result
	}
	return nil
}

// FindClassified returns classified sections retiered against t.
func (s *SectionStore) FindClassified(
	_ context.Context,
	documentID string,
	t domain.Thresholds,
) ([]domain.ClassifiedSection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ClassifiedSection
	for _, sec := range s.ordered(documentID) {
		r, ok := s.results[documentID][sec.ID]
		if !ok {
			continue
		}
		out = append(out, domain.ClassifiedSection{Section: sec, Result: r.Retier(t)})
	}
	return out, nil
}

// FindRelevant returns sections whose retiered tier is kept.
func (s *SectionStore) FindRelevant(
	ctx context.Context,
	documentID string,
	t domain.Thresholds,
	includeReview bool,
) ([]domain.Section, error) {
	classified, err := s.FindClassified(ctx, documentID, t)
	if err != nil {
		return nil, err
	}
	var out []domain.Section
	for _, c := range classified {
		if c.Result.Tier.IsKept(includeReview) {
			out = append(out, c.Section)
		}
	}
	return out, nil
}

// DeleteByDocument removes a document's sections and results.
func (s *SectionStore) DeleteByDocument(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sections, documentID)
	delete(s.results, documentID)
	return nil
}

func (s *SectionStore) ordered(documentID string) []domain.Section {
	out := make([]domain.Section, 0, len(s.sections[documentID]))
	for _, sec := range s.sections[documentID] {
		out = append(out, sec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
