package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
	"github.com/custodia-labs/lexcards-cli/internal/core/ports/driven"
)

// Ensure DocumentIndex implements the interface.
var _ driven.DocumentIndex = (*DocumentIndex)(nil)

// DocumentIndex is an in-memory implementation of driven.DocumentIndex.
type DocumentIndex struct {
	mu   sync.RWMutex
	docs map[string]domain.Document
}

// NewDocumentIndex creates a new in-memory document index.
func NewDocumentIndex() *DocumentIndex {
	return &DocumentIndex{
		docs: make(map[string]domain.Document),
	}
}

// Save stores or updates a document.
func (s *DocumentIndex) Save(_ context.Context, doc domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = doc
	return nil
}

// Get retrieves a document by ID.
func (s *DocumentIndex) Get(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// GetByHash retrieves a document by content hash.
func (s *DocumentIndex) GetByHash(_ context.Context, hash string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, doc := range s.docs {
		if doc.Hash == hash {
			d := doc
			return &d, nil
		}
	}
	return nil, domain.ErrNotFound
}

// List returns all documents, newest first.
func (s *DocumentIndex) List(_ context.Context) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
