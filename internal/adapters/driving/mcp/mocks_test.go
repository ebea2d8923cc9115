package mcp

import (
	"context"
	"io"

	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
	"github.com/custodia-labs/lexcards-cli/internal/core/ports/driving"
)

// mockLibraryService is a mock implementation of driving.LibraryService.
type mockLibraryService struct {
	documents []domain.Document
	document  *domain.Document
	questions []domain.Question
	counts    driving.QuestionCounts
	export    string
	err       error

	lastQuery  driving.QuestionQuery
	lastFormat string
	lastStatus domain.ValidationStatus
}

func (m *mockLibraryService) Documents(_ context.Context) ([]domain.Document, error) {
	return m.documents, m.err
}

func (m *mockLibraryService) Document(_ context.Context, _ string) (*domain.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.document == nil {
		return nil, domain.ErrNotFound
	}
	return m.document, nil
}

func (m *mockLibraryService) Questions(_ context.Context, q driving.QuestionQuery) ([]domain.Question, error) {
	m.lastQuery = q
	return m.questions, m.err
}

func (m *mockLibraryService) Counts(_ context.Context, _ string) (driving.QuestionCounts, error) {
	return m.counts, m.err
}

func (m *mockLibraryService) ExportQuestions(
	_ context.Context, w io.Writer, _, format string, status domain.ValidationStatus,
) (int, error) {
	m.lastFormat = format
	m.lastStatus = status
	if m.err != nil {
		return 0, m.err
	}
	_, err := io.WriteString(w, m.export)
	return len(m.questions), err
}

func (m *mockLibraryService) ImportQuestions(_ context.Context, _ io.Reader) (int, error) {
	return 0, m.err
}

func (m *mockLibraryService) ExportSections(_ context.Context, w io.Writer, _ string, _ domain.Thresholds) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	_, err := io.WriteString(w, m.export)
	return 1, err
}

func (m *mockLibraryService) ImportSections(_ context.Context, _ io.Reader, _ string) (int, error) {
	return 0, m.err
}

// mockClassificationService is a mock implementation of driving.ClassificationService.
type mockClassificationService struct {
	result  domain.ClassificationResult
	err     error
	section domain.Section
}

func (m *mockClassificationService) Classify(
	section domain.Section, _ domain.Weights, _ domain.Thresholds,
) (domain.ClassificationResult, error) {
	m.section = section
	return m.result, m.err
}

func (m *mockClassificationService) ClassifyAll(
	_ []domain.Section, _ domain.Weights, _ domain.Thresholds,
) ([]domain.ClassifiedSection, domain.ClassificationStats, error) {
	return nil, domain.ClassificationStats{}, m.err
}

// mockValidationService records its inputs and returns a fixed outcome.
type mockValidationService struct {
	status     domain.ValidationStatus
	violations []domain.Violation
	level      domain.ValidationLevel
	autoFix    bool
}

func (m *mockValidationService) Validate(q domain.Question, level domain.ValidationLevel, autoFix bool) domain.Question {
	m.level = level
	m.autoFix = autoFix
	q.Status = m.status
	q.Violations = m.violations
	return q
}

func (m *mockValidationService) ValidateAll(
	questions []domain.Question, _ domain.ValidationLevel, _ bool,
) ([]domain.Question, driving.ValidationSummary) {
	return questions, driving.ValidationSummary{Total: len(questions)}
}

// mockPipelineService is a mock implementation of driving.PipelineService.
type mockPipelineService struct {
	state *domain.PipelineState
	err   error
}

func (m *mockPipelineService) Run(_ context.Context, _ driving.RunRequest) (*domain.RunReport, error) {
	return nil, m.err
}

func (m *mockPipelineService) RunStage(
	_ context.Context, _ string, _ domain.Stage, _ driving.RunRequest,
) (*domain.RunReport, error) {
	return nil, m.err
}

func (m *mockPipelineService) State(_ context.Context, documentID string) (*domain.PipelineState, error) {
	if m.state == nil {
		return domain.NewPipelineState(documentID), m.err
	}
	return m.state, m.err
}

func (m *mockPipelineService) Experiments(_ context.Context, _ string) ([]domain.Experiment, error) {
	return nil, m.err
}
