package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
	"github.com/custodia-labs/lexcards-cli/internal/core/ports/driven"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	// Create a temporary directory for the test database
	tempDir, err := os.MkdirTemp("", "lexcards-test-*")
	require.NoError(t, err)

	// Create store in temp directory
	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NotNil(t, store)

	// Return cleanup function
	cleanup := func() {
		assert.NoError(t, store.Close())
		assert.NoError(t, os.RemoveAll(tempDir))
	}

	return store, cleanup
}

func testSections(docID string, n int) []domain.Section {
	out := make([]domain.Section, n)
	for i := range out {
		out[i] = domain.Section{
			ID:         i,
			DocumentID: docID,
			Title:      fmt.Sprintf("Artículo %d", i+1),
			Text:       fmt.Sprintf("Texto del artículo %d.", i+1),
			Page:       i + 1,
			BBox:       domain.BoundingBox{X: 72, Y: 100, Width: 450, Height: 120},
		}
	}
	return out
}

func testQuestion(id, docID string, created time.Time) domain.Question {
	return domain.Question{
		ID:      id,
		Origin:  domain.Origin{DocumentID: docID, SectionID: 1},
		Type:    domain.QuestionMultipleChoice,
		Content: domain.NewMultipleChoiceContent(domain.MultipleChoice{
			Question:     "¿Cuál es el plazo?",
			Options:      []string{"cinco días", "diez días", "un mes", "un año"},
			CorrectIndex: 1,
		}),
		Status:    domain.StatusPending,
		Metadata:  domain.QuestionMetadata{Difficulty: domain.DifficultyBasic, Tags: []string{"plazos"}},
		SRS:       domain.NewSRS(domain.DifficultyBasic, created),
		Provider:  domain.AIProviderGroq,
		Model:     "llama-3.3-70b-versatile",
		CreatedAt: created,
	}
}

// ==================== Store Creation Tests ====================

func TestNewStore_CreatesDatabase(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	assert.Equal(t, "lexcards.db", filepath.Base(store.Path()))
	_, err := os.Stat(store.Path())
	assert.NoError(t, err)

	version, err := store.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}

func TestNewStore_ReopenKeepsData(t *testing.T) {
	tempDir := t.TempDir()
	ctx := context.Background()

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NoError(t, store.SectionStore().SaveAll(ctx, testSections("doc", 2)))
	require.NoError(t, store.Close())

	reopened, err := NewStore(tempDir)
	require.NoError(t, err)
	defer reopened.Close()

	sections, err := reopened.SectionStore().FindAll(ctx, "doc")
	require.NoError(t, err)
	assert.Len(t, sections, 2)
}

// ==================== DocumentIndex Tests ====================

func TestDocumentIndex_SaveAndGet(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	index := store.DocumentIndex()

	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	doc := domain.Document{
		ID: "0123456789ab", Hash: "0123456789abcdef", Path: "/tmp/ley.pdf", Name: "ley.pdf",
		TotalPages: 12, SectionCount: 40, CreatedAt: created, ProcessedAt: created.Add(time.Minute),
	}
	require.NoError(t, index.Save(ctx, doc))

	got, err := index.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc, *got)

	byHash, err := index.GetByHash(ctx, doc.Hash)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, byHash.ID)

	// Re-saving keeps the original creation time.
	doc.SectionCount = 41
	doc.CreatedAt = created.Add(time.Hour)
	require.NoError(t, index.Save(ctx, doc))
	got, err = index.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 41, got.SectionCount)
	assert.Equal(t, created, got.CreatedAt)
}

func TestDocumentIndex_NotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	_, err := store.DocumentIndex().Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = store.DocumentIndex().GetByHash(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, store.DocumentIndex().Save(ctx, domain.Document{}), domain.ErrInvalidInput)
}

func TestDocumentIndex_ListNewestFirst(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	index := store.DocumentIndex()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"aaa", "bbb", "ccc"} {
		require.NoError(t, index.Save(ctx, domain.Document{
			ID: id, Hash: id + "hash", Path: id, Name: id, CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	docs, err := index.List(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "ccc", docs[0].ID)
	assert.Equal(t, "aaa", docs[2].ID)
}

// ==================== SectionStore Tests ====================

func TestSectionStore_SaveAndFindAll(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	sections := store.SectionStore()

	input := testSections("doc", 3)
	// Insert out of order.
	require.NoError(t, sections.SaveAll(ctx, []domain.Section{input[2], input[0], input[1]}))

	got, err := sections.FindAll(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, input, got)

	other, err := sections.FindAll(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSectionStore_Classifications(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	sections := store.SectionStore()

	input := testSections("doc", 3)
	require.NoError(t, sections.SaveAll(ctx, input))

	results := []domain.ClassifiedSection{
		{Section: input[0], Result: domain.ClassificationResult{Composite: 0.82, LegalRelevance: 0.9}},
		{Section: input[1], Result: domain.ClassificationResult{Composite: 0.6}},
		{Section: input[2], Result: domain.ClassificationResult{Composite: 0.2, Conserved: true}},
	}
	require.NoError(t, sections.SaveClassifications(ctx, results))

	classified, err := sections.FindClassified(ctx, "doc", domain.DefaultThresholds())
	require.NoError(t, err)
	require.Len(t, classified, 3)
	assert.Equal(t, domain.TierRelevant, classified[0].Result.Tier)
	assert.InDelta(t, 0.9, classified[0].Result.LegalRelevance, 1e-9)
	assert.Equal(t, domain.TierReviewNeeded, classified[1].Result.Tier)
	assert.Equal(t, domain.TierAutoConserved, classified[2].Result.Tier)

	// Tiers follow the query thresholds, not the ones used at classification time.
	strict, err := sections.FindClassified(ctx, "doc", domain.Thresholds{Relevant: 0.9, Review: 0.7})
	require.NoError(t, err)
	assert.Equal(t, domain.TierReviewNeeded, strict[0].Result.Tier)

	relevant, err := sections.FindRelevant(ctx, "doc", domain.DefaultThresholds(), false)
	require.NoError(t, err)
	require.Len(t, relevant, 2)
	assert.Equal(t, 0, relevant[0].ID)
	assert.Equal(t, 2, relevant[1].ID)

	withReview, err := sections.FindRelevant(ctx, "doc", domain.DefaultThresholds(), true)
	require.NoError(t, err)
	assert.Len(t, withReview, 3)
}

func TestSectionStore_ClassificationsSurviveResave(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	sections := store.SectionStore()

	input := testSections("doc", 1)
	require.NoError(t, sections.SaveAll(ctx, input))
	require.NoError(t, sections.SaveClassifications(ctx, []domain.ClassifiedSection{
		{Section: input[0], Result: domain.ClassificationResult{Composite: 0.75}},
	}))
	require.NoError(t, sections.SaveAll(ctx, input))

	classified, err := sections.FindClassified(ctx, "doc", domain.DefaultThresholds())
	require.NoError(t, err)
	assert.Len(t, classified, 1)
}

func TestSectionStore_UnclassifiedOmitted(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	sections := store.SectionStore()
	require.NoError(t, sections.SaveAll(ctx, testSections("doc", 2)))

	classified, err := sections.FindClassified(ctx, "doc", domain.DefaultThresholds())
	require.NoError(t, err)
	assert.Empty(t, classified)
}

func TestSectionStore_SaveClassificationsUnknownSection(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	err := store.SectionStore().SaveClassifications(context.Background(), []domain.ClassifiedSection{
		{Section: domain.Section{DocumentID: "doc", ID: 7}},
	})

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSectionStore_DeleteByDocument(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	sections := store.SectionStore()
	require.NoError(t, sections.SaveAll(ctx, testSections("doc", 2)))
	require.NoError(t, sections.SaveAll(ctx, testSections("keep", 1)))

	require.NoError(t, sections.DeleteByDocument(ctx, "doc"))

	gone, err := sections.FindAll(ctx, "doc")
	require.NoError(t, err)
	assert.Empty(t, gone)
	kept, err := sections.FindAll(ctx, "keep")
	require.NoError(t, err)
	assert.Len(t, kept, 1)
}

// ==================== QuestionStore Tests ====================

func TestQuestionStore_SaveAndGet(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	questions := store.QuestionStore()

	created := time.Date(2026, 5, 2, 9, 30, 0, 0, time.UTC)
	q := testQuestion("q1", "doc", created)
	require.NoError(t, questions.SaveAll(ctx, []domain.Question{q}))

	got, err := questions.Get(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, q, *got)

	q.Status = domain.StatusInvalid
	q.Violations = []domain.Violation{{Rule: "option_count", Field: "options", Severity: domain.SeverityError}}
	require.NoError(t, questions.SaveAll(ctx, []domain.Question{q}))

	got, err = questions.Get(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInvalid, got.Status)
	assert.Equal(t, q.Violations, got.Violations)
}

func TestQuestionStore_AllVariantsRoundTrip(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	questions := store.QuestionStore()
	created := time.Date(2026, 5, 2, 9, 30, 0, 0, time.UTC)

	contents := []domain.Content{
		domain.NewFlashcardContent(domain.Flashcard{Front: "¿Qué es la prescripción?", Back: "La extinción de un derecho."}),
		domain.NewTrueFalseContent(domain.TrueFalse{Statement: "El plazo es de diez días.", Answer: true, Justification: "Art. 5"}),
		domain.NewClozeContent(domain.Cloze{Text: "El plazo es de {{diez}} días.", Answers: []string{"diez"}}),
	}
	for i, c := range contents {
		q := testQuestion(fmt.Sprintf("q%d", i), "doc", created)
		q.Type = c.Type
		q.Content = c
		require.NoError(t, questions.SaveAll(ctx, []domain.Question{q}))

		got, err := questions.Get(ctx, q.ID)
		require.NoError(t, err)
		assert.Equal(t, c, got.Content)
	}
}

func TestQuestionStore_FindFilters(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	questions := store.QuestionStore()

	base := time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)
	q1 := testQuestion("q1", "doc", base.Add(2*time.Second))
	q2 := testQuestion("q2", "doc", base.Add(time.Second))
	q2.Status = domain.StatusValidated
	q3 := testQuestion("q3", "other", base)
	q3.Type = domain.QuestionFlashcard
	q3.Content = domain.NewFlashcardContent(domain.Flashcard{Front: "f?", Back: "b"})
	require.NoError(t, questions.SaveAll(ctx, []domain.Question{q1, q2, q3}))

	all, err := questions.Find(ctx, driven.QuestionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"q3", "q2", "q1"}, []string{all[0].ID, all[1].ID, all[2].ID})

	byDoc, err := questions.Find(ctx, driven.QuestionFilter{DocumentID: "doc"})
	require.NoError(t, err)
	assert.Len(t, byDoc, 2)

	validated, err := questions.Find(ctx, driven.QuestionFilter{DocumentID: "doc", Status: domain.StatusValidated})
	require.NoError(t, err)
	require.Len(t, validated, 1)
	assert.Equal(t, "q2", validated[0].ID)

	flashcards, err := questions.Find(ctx, driven.QuestionFilter{Type: domain.QuestionFlashcard})
	require.NoError(t, err)
	require.Len(t, flashcards, 1)
	assert.Equal(t, "q3", flashcards[0].ID)
}

func TestQuestionStore_CountAndDelete(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	questions := store.QuestionStore()

	now := time.Now().UTC()
	q1 := testQuestion("q1", "doc", now)
	q2 := testQuestion("q2", "doc", now)
	q2.Status = domain.StatusValidated
	q3 := testQuestion("q3", "doc", now)
	q3.Status = domain.StatusValidated
	require.NoError(t, questions.SaveAll(ctx, []domain.Question{q1, q2, q3}))

	counts, err := questions.CountByStatus(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, map[domain.ValidationStatus]int{domain.StatusPending: 1, domain.StatusValidated: 2}, counts)

	require.NoError(t, questions.DeleteByDocument(ctx, "doc"))
	_, err = questions.Get(ctx, "q1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestQuestionStore_RejectsEmptyID(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	err := store.QuestionStore().SaveAll(context.Background(), []domain.Question{{}})

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

// ==================== ExperimentStore Tests ====================

func TestExperimentStore_SaveAndList(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	experiments := store.ExperimentStore()

	created := time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)
	exp := domain.Experiment{
		ID: "e1", RunID: "run1", DocumentID: "doc", Stage: domain.StageGenerate,
		Config: domain.ExperimentConfig{
			Weights: domain.DefaultWeights(), Thresholds: domain.DefaultThresholds(),
			BatchSize: 10, QuestionType: domain.QuestionFlashcard, PromptVersion: "v1.0",
		},
		Counts:     map[string]int{"questions": 12},
		Provider:   domain.AIProviderAnthropic,
		Model:      "claude-3-5-sonnet-latest",
		TokensUsed: 1500, CostEstimate: 0.0123, Duration: 2500 * time.Millisecond,
		Success: true, CreatedAt: created,
	}
	require.NoError(t, experiments.Save(ctx, exp))
	require.NoError(t, experiments.Save(ctx, domain.Experiment{
		ID: "e2", RunID: "run2", DocumentID: "doc", Stage: domain.StageValidate,
		Success: false, Error: "boom", CreatedAt: created.Add(time.Minute),
	}))

	byDoc, err := experiments.ListByDocument(ctx, "doc")
	require.NoError(t, err)
	require.Len(t, byDoc, 2)
	assert.Equal(t, exp, byDoc[0])
	assert.Equal(t, "boom", byDoc[1].Error)
	assert.False(t, byDoc[1].Success)

	byRun, err := experiments.ListByRun(ctx, "run2")
	require.NoError(t, err)
	require.Len(t, byRun, 1)
	assert.Equal(t, "e2", byRun[0].ID)
}

func TestExperimentStore_InsertOnly(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	experiments := store.ExperimentStore()

	exp := domain.Experiment{ID: "e1", RunID: "r", DocumentID: "doc", Stage: domain.StageExtract, CreatedAt: time.Now()}
	require.NoError(t, experiments.Save(ctx, exp))

	exp.Error = "rewritten"
	err := experiments.Save(ctx, exp)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	list, err := experiments.ListByDocument(ctx, "doc")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].Error)
}

// ==================== PipelineStateStore Tests ====================

func TestPipelineStateStore_SaveAndGet(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	states := store.PipelineStateStore()

	_, err := states.Get(ctx, "doc")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	at := time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)
	state := domain.NewPipelineState("doc")
	state.Mark(domain.StageExtract, "run1", at)
	state.Mark(domain.StageClassify, "run1", at.Add(time.Second))
	require.NoError(t, states.Save(ctx, *state))

	got, err := states.Get(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, *state, *got)
	assert.Equal(t, "CLASSIFIED", got.Current())

	assert.ErrorIs(t, states.Save(ctx, domain.PipelineState{}), domain.ErrInvalidInput)
}

// ==================== ResponseCache Tests ====================

func TestResponseCache_WriteOnce(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	cache := store.ResponseCache()

	_, err := cache.Get(ctx, "k1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	created := time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)
	first := driven.CachedResponse{
		Key: "k1", Provider: "groq", Model: "m", Text: "first",
		InputTokens: 10, OutputTokens: 5, FinishReason: "stop", CreatedAt: created,
	}
	stored, err := cache.PutIfAbsent(ctx, first)
	require.NoError(t, err)
	assert.True(t, stored)

	second := first
	second.Text = "second"
	stored, err = cache.PutIfAbsent(ctx, second)
	require.NoError(t, err)
	assert.False(t, stored)

	got, err := cache.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, first, *got)

	n, err := cache.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestResponseCache_ConcurrentPut(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	cache := store.ResponseCache()

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stored, err := cache.PutIfAbsent(ctx, driven.CachedResponse{
				Key: "same", Provider: "p", Model: "m", Text: fmt.Sprint(i), CreatedAt: time.Now(),
			})
			assert.NoError(t, err)
			if stored {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	n, err := cache.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
