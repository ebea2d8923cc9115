package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
	"github.com/custodia-labs/lexcards-cli/internal/core/ports/driven"
	"github.com/custodia-labs/lexcards-cli/internal/core/ports/driving"
	"github.com/custodia-labs/lexcards-cli/internal/logger"
)

// Ensure LibraryService implements the interface.
var _ driving.LibraryService = (*LibraryService)(nil)

// LibraryDeps are the collaborators of a LibraryService.
type LibraryDeps struct {
	Documents     driven.DocumentIndex
	Sections      driven.SectionStore
	Questions     driven.QuestionStore
	States        driven.PipelineStateStore
	QuestionCodec driven.QuestionCodec
	SectionCodec  driven.SectionCodec
}

// LibraryService lists stored documents and questions and moves them
// through exchange files.
type LibraryService struct {
	deps  LibraryDeps
	now   func() time.Time
	newID func() string
}

// NewLibraryService creates a library service.
func NewLibraryService(deps LibraryDeps) *LibraryService {
	return &LibraryService{
		deps:  deps,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Documents lists indexed documents, newest first.
func (s *LibraryService) Documents(ctx context.Context) ([]domain.Document, error) {
	docs, err := s.deps.Documents.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// Document returns one indexed document.
func (s *LibraryService) Document(ctx context.Context, id string) (*domain.Document, error) {
	if id == "" {
		return nil, fmt.Errorf("document id is required: %w", domain.ErrInvalidInput)
	}
	doc, err := s.deps.Documents.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", id, err)
	}
	return doc, nil
}

// Questions lists stored questions matching the query.
func (s *LibraryService) Questions(ctx context.Context, q driving.QuestionQuery) ([]domain.Question, error) {
	if q.Type != "" && !q.Type.IsValid() {
		return nil, fmt.Errorf("question type %q: %w", q.Type, domain.ErrInvalidInput)
	}
	if q.Limit < 0 {
		return nil, fmt.Errorf("limit %d: %w", q.Limit, domain.ErrInvalidInput)
	}
	questions, err := s.deps.Questions.Find(ctx, driven.QuestionFilter{
		DocumentID: q.DocumentID,
		Status:     q.Status,
		Type:       q.Type,
	})
	if err != nil {
		return nil, fmt.Errorf("find questions: %w", err)
	}
	if q.Limit > 0 && len(questions) > q.Limit {
		questions = questions[:q.Limit]
	}
	return questions, nil
}

// Counts summarises the questions of a document.
func (s *LibraryService) Counts(ctx context.Context, documentID string) (driving.QuestionCounts, error) {
	counts := driving.QuestionCounts{
		ByStatus: make(map[domain.ValidationStatus]int),
		ByType:   make(map[domain.QuestionType]int),
	}
	questions, err := s.deps.Questions.Find(ctx, driven.QuestionFilter{DocumentID: documentID})
	if err != nil {
		return counts, fmt.Errorf("find questions: %w", err)
	}
	for _, q := range questions {
		counts.Total++
		counts.ByStatus[q.Status]++
		counts.ByType[q.Type]++
	}
	return counts, nil
}

// ExportQuestions writes the questions of a document in the named format.
func (s *LibraryService) ExportQuestions(
	ctx context.Context, w io.Writer, documentID, format string, status domain.ValidationStatus,
) (int, error) {
	if s.deps.QuestionCodec == nil {
		return 0, domain.NewConfigurationError("export", "no question codec configured")
	}
	f := driven.ExportFormat(strings.ToLower(strings.TrimSpace(format)))
	if f == "" {
		f = driven.FormatInternal
	}
	if !f.IsValid() {
		return 0, domain.NewConfigurationError("format", "unknown export format %q", format)
	}
	questions, err := s.Questions(ctx, driving.QuestionQuery{DocumentID: documentID, Status: status})
	if err != nil {
		return 0, err
	}
	if err := s.deps.QuestionCodec.Export(w, f, questions); err != nil {
		return 0, fmt.Errorf("export %s: %w", f, err)
	}
	logger.Debug("Exported %d question(s) as %s", len(questions), f)
	return len(questions), nil
}

// ImportQuestions stores questions read from an internal export.
func (s *LibraryService) ImportQuestions(ctx context.Context, r io.Reader) (int, error) {
	if s.deps.QuestionCodec == nil {
		return 0, domain.NewConfigurationError("import", "no question codec configured")
	}
	questions, err := s.deps.QuestionCodec.Import(r)
	if err != nil {
		return 0, fmt.Errorf("read questions: %w", err)
	}
	if len(questions) == 0 {
		return 0, nil
	}
	if err := s.deps.Questions.SaveAll(ctx, questions); err != nil {
		return 0, fmt.Errorf("save questions: %w", err)
	}
	logger.Info("Imported %d question(s)", len(questions))
	return len(questions), nil
}

// ExportSections writes the classified sections of a document as CSV.
func (s *LibraryService) ExportSections(ctx context.Context, w io.Writer, documentID string, t domain.Thresholds) (int, error) {
	if s.deps.SectionCodec == nil {
		return 0, domain.NewConfigurationError("export", "no section codec configured")
	}
	if err := t.Validate(); err != nil {
		return 0, err
	}
	classified, err := s.deps.Sections.FindClassified(ctx, documentID, t)
	if err != nil {
		return 0, fmt.Errorf("load classified sections: %w", err)
	}
	if len(classified) == 0 {
		return 0, fmt.Errorf("document %s has no classified sections: %w", documentID, domain.ErrNoPriorOutput)
	}
	if err := s.deps.SectionCodec.ExportCSV(w, classified); err != nil {
		return 0, fmt.Errorf("write sections: %w", err)
	}
	return len(classified), nil
}

// ImportSections replaces the sections of a document with those read from
// CSV. An unknown document is indexed using the CSV content hash, and an
// empty id is derived from that hash. The document is then recorded as
// extracted, which invalidates any later stage.
func (s *LibraryService) ImportSections(ctx context.Context, r io.Reader, documentID string) (int, error) {
	if s.deps.SectionCodec == nil {
		return 0, domain.NewConfigurationError("import", "no section codec configured")
	}
	var buf bytes.Buffer
	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(&buf, h), r); err != nil {
		return 0, fmt.Errorf("read sections: %w", err)
	}
	hash := hex.EncodeToString(h.Sum(nil))
	if documentID == "" {
		documentID = domain.DocumentIDFromHash(hash)
	}

	sections, err := s.deps.SectionCodec.ImportCSV(&buf, documentID)
	if err != nil {
		return 0, fmt.Errorf("parse sections: %w", err)
	}
	if len(sections) == 0 {
		return 0, fmt.Errorf("no sections in import: %w", domain.ErrInvalidInput)
	}

	now := s.now()
	doc, err := s.deps.Documents.Get(ctx, documentID)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		doc = &domain.Document{
			ID:        documentID,
			Hash:      hash,
			Name:      documentID + ".csv",
			CreatedAt: now,
		}
	default:
		return 0, fmt.Errorf("get document %s: %w", documentID, err)
	}
	for _, sec := range sections {
		if sec.Page > doc.TotalPages {
			doc.TotalPages = sec.Page
		}
	}
	doc.SectionCount = len(sections)
	doc.ProcessedAt = now

	if err := s.deps.Sections.DeleteByDocument(ctx, documentID); err != nil {
		return 0, fmt.Errorf("clear sections: %w", err)
	}
	if err := s.deps.Sections.SaveAll(ctx, sections); err != nil {
		return 0, fmt.Errorf("save sections: %w", err)
	}
	if err := s.deps.Documents.Save(ctx, *doc); err != nil {
		return 0, fmt.Errorf("save document: %w", err)
	}
	if err := s.markExtracted(ctx, documentID, now); err != nil {
		return 0, err
	}

	logger.Info("Imported %d section(s) into %s", len(sections), documentID)
	return len(sections), nil
}

func (s *LibraryService) markExtracted(ctx context.Context, documentID string, at time.Time) error {
	if s.deps.States == nil {
		return nil
	}
	state, err := s.deps.States.Get(ctx, documentID)
	if errors.Is(err, domain.ErrNotFound) {
		state = domain.NewPipelineState(documentID)
	} else if err != nil {
		return fmt.Errorf("load pipeline state: %w", err)
	}
	state.Mark(domain.StageExtract, s.newID(), at)
	clearAfter(state, domain.StageExtract)
	if err := s.deps.States.Save(ctx, *state); err != nil {
		return fmt.Errorf("save pipeline state: %w", err)
	}
	return nil
}
