package driving

import (
	"context"
	"io"

	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
)

// ClassificationService scores sections for relevance.
type ClassificationService interface {
	// Classify scores one section. It is pure: identical inputs always give
	// identical results. Invalid weights or thresholds fail with a
	// domain.ConfigurationError.
	Classify(section domain.Section, w domain.Weights, t domain.Thresholds) (domain.ClassificationResult, error)

	// ClassifyAll scores sections and returns tier statistics.
	ClassifyAll(sections []domain.Section, w domain.Weights, t domain.Thresholds) (
		[]domain.ClassifiedSection, domain.ClassificationStats, error)
}

// GenerateOptions configures one generation call.
type GenerateOptions struct {
	// PromptVersion pins a template version. Empty uses the active one.
	PromptVersion string

	// Params are the sampling parameters.
	Params domain.GenerationParams

	// Concurrency bounds the number of batches in flight. Values below 1 mean 1.
	Concurrency int
}

// GenerationService drives batches through the LLM backend.
type GenerationService interface {
	// GenerateForBatches generates questions for each batch. Failures are
	// isolated per batch and reported in the GenerationReport; only
	// configuration problems return an error.
	GenerateForBatches(ctx context.Context, batches []domain.Batch, opts GenerateOptions) (*domain.GenerationReport, error)
}

// ValidationSummary aggregates a validation run.
type ValidationSummary struct {
	Total     int
	Validated int
	Invalid   int
	Fixed     int
	ByRule    map[string]int
}

// ValidationService checks questions against per-type rules.
type ValidationService interface {
	// Validate returns a copy of the question with its status and violations set.
	Validate(q domain.Question, level domain.ValidationLevel, autoFix bool) domain.Question

	// ValidateAll validates every question and summarises the outcome.
	ValidateAll(questions []domain.Question, level domain.ValidationLevel, autoFix bool) (
		[]domain.Question, ValidationSummary)
}

// RunRequest configures a pipeline invocation.
type RunRequest struct {
	// PDFPath is the document to process. Required unless DocumentID is set.
	PDFPath string

	// DocumentID selects an already indexed document.
	DocumentID string

	// Skip lists stages to bypass. Each must already have stored output.
	Skip []domain.Stage

	// Only runs a single stage standalone, bypassing the predecessor guard.
	Only domain.Stage

	// Resume skips stages already recorded for the document.
	Resume bool

	// Force re-extracts a document whose hash is already indexed.
	Force bool

	// StopOnError aborts at the first failed stage.
	StopOnError bool

	// Settings overrides the stored settings when non-nil.
	Settings *domain.AppSettings
}

// PipelineService sequences extract, classify, generate and validate.
type PipelineService interface {
	// Run executes the pipeline for one document.
	Run(ctx context.Context, req RunRequest) (*domain.RunReport, error)

	// RunStage executes a single stage of an indexed document standalone,
	// bypassing the predecessor guard.
	RunStage(ctx context.Context, documentID string, stage domain.Stage, req RunRequest) (*domain.RunReport, error)

	// State returns the persisted pipeline state of a document.
	State(ctx context.Context, documentID string) (*domain.PipelineState, error)

	// Experiments returns the experiment records of a document.
	Experiments(ctx context.Context, documentID string) ([]domain.Experiment, error)
}

// QuestionQuery narrows question listings.
type QuestionQuery struct {
	DocumentID string
	Status     domain.ValidationStatus
	Type       domain.QuestionType

	// Limit caps the result size. Zero means no limit.
	Limit int
}

// QuestionCounts breaks down the stored questions of a document.
type QuestionCounts struct {
	Total    int
	ByStatus map[domain.ValidationStatus]int
	ByType   map[domain.QuestionType]int
}

// LibraryService exposes stored documents and questions, and moves them in
// and out of exchange files.
type LibraryService interface {
	// Documents lists indexed documents, newest first.
	Documents(ctx context.Context) ([]domain.Document, error)

	// Document returns one indexed document.
	Document(ctx context.Context, id string) (*domain.Document, error)

	// Questions lists stored questions, oldest first.
	Questions(ctx context.Context, q QuestionQuery) ([]domain.Question, error)

	// Counts summarises the questions of a document.
	Counts(ctx context.Context, documentID string) (QuestionCounts, error)

	// ExportQuestions writes the questions of a document in the named
	// format (internal, anki, mochi, xlsx). An empty status exports all.
	ExportQuestions(ctx context.Context, w io.Writer, documentID, format string, status domain.ValidationStatus) (int, error)

	// ImportQuestions stores questions read from an internal export.
	ImportQuestions(ctx context.Context, r io.Reader) (int, error)

	// ExportSections writes the classified sections of a document as CSV.
	ExportSections(ctx context.Context, w io.Writer, documentID string, t domain.Thresholds) (int, error)

	// ImportSections replaces the sections of a document with those read
	// from CSV and records the document as extracted.
	ImportSections(ctx context.Context, r io.Reader, documentID string) (int, error)
}
