package driven

import (
	"context"

	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
)

// SectionStore persists extracted sections and their classification results.
type SectionStore interface {
	// SaveAll stores or replaces sections for their documents.
	SaveAll(ctx context.Context, sections []domain.Section) error

	// FindAll returns all sections of a document in ordinal order.
	FindAll(ctx context.Context, documentID string) ([]domain.Section, error)

	// SaveClassifications stores the classification result of each section.
	SaveClassifications(ctx context.Context, classified []domain.ClassifiedSection) error

	// FindClassified returns sections with stored results, tiers recomputed
	// against the given thresholds. Unclassified sections are omitted.
	FindClassified(ctx context.Context, documentID string, t domain.Thresholds) ([]domain.ClassifiedSection, error)

	// FindRelevant returns sections whose recomputed tier flows on to generation,
	// in ordinal order.
	FindRelevant(ctx context.Context, documentID string, t domain.Thresholds, includeReview bool) ([]domain.Section, error)

	// DeleteByDocument removes all sections of a document.
	DeleteByDocument(ctx context.Context, documentID string) error
}

// QuestionFilter narrows question queries.
type QuestionFilter struct {
	DocumentID string
	Status     domain.ValidationStatus
	Type       domain.QuestionType
}

// QuestionStore persists generated questions.
type QuestionStore interface {
	// SaveAll stores or updates questions.
	SaveAll(ctx context.Context, questions []domain.Question) error

	// Get retrieves a question by ID.
	Get(ctx context.Context, id string) (*domain.Question, error)

	// Find returns questions matching the filter, oldest first.
	Find(ctx context.Context, filter QuestionFilter) ([]domain.Question, error)

	// CountByStatus returns per-status counts for a document.
	CountByStatus(ctx context.Context, documentID string) (map[domain.ValidationStatus]int, error)

	// DeleteByDocument removes all questions of a document.
	DeleteByDocument(ctx context.Context, documentID string) error
}

// DocumentIndex tracks processed documents by content hash.
type DocumentIndex interface {
	// Save stores or updates a document.
	Save(ctx context.Context, doc domain.Document) error

	// Get retrieves a document by ID.
	Get(ctx context.Context, id string) (*domain.Document, error)

	// GetByHash retrieves a document by content hash, or domain.ErrNotFound.
	GetByHash(ctx context.Context, hash string) (*domain.Document, error)

	// List returns all documents, newest first.
	List(ctx context.Context) ([]domain.Document, error)
}

// ExperimentStore records stage runs. Experiments are insert-only.
type ExperimentStore interface {
	// Save inserts an experiment. Saving an existing ID fails with domain.ErrInvalidInput.
	Save(ctx context.Context, exp domain.Experiment) error

	// ListByDocument returns experiments for a document, oldest first.
	ListByDocument(ctx context.Context, documentID string) ([]domain.Experiment, error)

	// ListByRun returns experiments for a pipeline run, oldest first.
	ListByRun(ctx context.Context, runID string) ([]domain.Experiment, error)
}

// PipelineStateStore persists per-document pipeline progress.
type PipelineStateStore interface {
	// Get returns the state for a document, or domain.ErrNotFound.
	Get(ctx context.Context, documentID string) (*domain.PipelineState, error)

	// Save stores the state.
	Save(ctx context.Context, state domain.PipelineState) error
}
