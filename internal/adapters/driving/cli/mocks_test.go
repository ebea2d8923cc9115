package cli

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
	"github.com/custodia-labs/lexcards-cli/internal/core/ports/driving"
)

type mockSettingsService struct {
	settings    domain.AppSettings
	setKey      string
	setValue    string
	setErr      error
	validateErr error
	provider    domain.AIProvider
	model       string
	apiKey      string
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	s := m.settings
	return &s, nil
}

func (m *mockSettingsService) Save(s *domain.AppSettings) error {
	m.settings = *s
	return nil
}

func (m *mockSettingsService) Set(key, value string) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.setKey, m.setValue = key, value
	return nil
}

func (m *mockSettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	m.provider, m.model, m.apiKey = provider, model, apiKey
	m.settings.LLM.Provider = provider
	m.settings.LLM.Model = model
	m.settings.LLM.APIKey = apiKey
	return nil
}

func (m *mockSettingsService) Validate() error { return m.validateErr }

func (m *mockSettingsService) GetDefaults() domain.AppSettings { return domain.DefaultAppSettings() }

func (m *mockSettingsService) ValidateLLMConfig() error { return nil }

type mockPipelineService struct {
	report  *domain.RunReport
	err     error
	lastReq driving.RunRequest
	lastDoc string
	lastStg domain.Stage
	state   *domain.PipelineState
	exps    []domain.Experiment
}

func (m *mockPipelineService) Run(_ context.Context, req driving.RunRequest) (*domain.RunReport, error) {
	m.lastReq = req
	return m.report, m.err
}

func (m *mockPipelineService) RunStage(
	_ context.Context, documentID string, stage domain.Stage, req driving.RunRequest,
) (*domain.RunReport, error) {
	m.lastDoc, m.lastStg, m.lastReq = documentID, stage, req
	return m.report, m.err
}

func (m *mockPipelineService) State(_ context.Context, documentID string) (*domain.PipelineState, error) {
	if m.state != nil {
		return m.state, nil
	}
	return domain.NewPipelineState(documentID), nil
}

func (m *mockPipelineService) Experiments(_ context.Context, _ string) ([]domain.Experiment, error) {
	return m.exps, nil
}

type mockLibraryService struct {
	documents []domain.Document
	questions []domain.Question
	counts    driving.QuestionCounts
	lastQuery driving.QuestionQuery
	format    string
	status    domain.ValidationStatus
	imported  string
	importDoc string
	err       error
}

func (m *mockLibraryService) Documents(_ context.Context) ([]domain.Document, error) {
	return m.documents, m.err
}

func (m *mockLibraryService) Document(_ context.Context, id string) (*domain.Document, error) {
	for i := range m.documents {
		if m.documents[i].ID == id {
			return &m.documents[i], nil
		}
	}
	return nil, domain.ErrNotFound
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
	if m.err != nil {
		return 0, m.err
	}
	m.format, m.status = format, status
	_, err := io.WriteString(w, "questions:"+format)
	return len(m.questions), err
}

func (m *mockLibraryService) ImportQuestions(_ context.Context, r io.Reader) (int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	m.imported = string(data)
	return 2, m.err
}

func (m *mockLibraryService) ExportSections(_ context.Context, w io.Writer, _ string, _ domain.Thresholds) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.format = "sections"
	_, err := io.WriteString(w, "id;text\n1;x\n")
	return 1, err
}

func (m *mockLibraryService) ImportSections(_ context.Context, r io.Reader, documentID string) (int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	m.imported, m.importDoc = string(data), documentID
	return 3, m.err
}

type mockClassificationService struct {
	section domain.Section
}

func (m *mockClassificationService) Classify(
	section domain.Section, _ domain.Weights, _ domain.Thresholds,
) (domain.ClassificationResult, error) {
	m.section = section
	return domain.ClassificationResult{
		SemanticFitness: 0.7,
		LegalRelevance:  0.9,
		Composite:       0.72,
		Tier:            domain.TierRelevant,
	}, nil
}

func (m *mockClassificationService) ClassifyAll(
	_ []domain.Section, _ domain.Weights, _ domain.Thresholds,
) ([]domain.ClassifiedSection, domain.ClassificationStats, error) {
	return nil, domain.ClassificationStats{}, errors.New("not used")
}

// testMocks are the services installed by setupTestServices.
type testMocks struct {
	settings       *mockSettingsService
	pipeline       *mockPipelineService
	library        *mockLibraryService
	classification *mockClassificationService
}

func testReport() *domain.RunReport {
	return &domain.RunReport{
		RunID:      "run-1",
		DocumentID: "0123456789ab",
		Stages: []domain.StageResult{
			{Stage: domain.StageExtract, Skipped: true},
			{Stage: domain.StageClassify, Success: true, Duration: 20 * time.Millisecond, Counts: map[string]int{"relevant": 3}},
			{Stage: domain.StageGenerate, Success: true, Counts: map[string]int{"questions": 6}},
			{Stage: domain.StageValidate, Success: true, Counts: map[string]int{"validated": 5, "invalid": 1}},
		},
		Generation: &domain.GenerationReport{
			Questions: make([]domain.Question, 6),
			Batches:   []domain.BatchResult{{Status: domain.BatchCompleted}},
			Tokens:    1200,
			Cost:      0.0042,
		},
		Duration: time.Second,
	}
}

// setupTestServices installs mock services and resets flag state.
// The returned function restores the previous services.
func setupTestServices() (*testMocks, func()) {
	prev := Services{
		Settings:       settingsService,
		Pipeline:       pipelineService,
		Library:        libraryService,
		Classification: classificationService,
		Validation:     validationService,
	}

	m := &testMocks{
		settings: &mockSettingsService{settings: domain.DefaultAppSettings()},
		pipeline: &mockPipelineService{report: testReport()},
		library: &mockLibraryService{
			documents: []domain.Document{{ID: "0123456789ab", Name: "ley.pdf", TotalPages: 4, SectionCount: 9}},
		},
		classification: &mockClassificationService{},
	}
	SetServices(Services{
		Settings:       m.settings,
		Pipeline:       m.pipeline,
		Library:        m.library,
		Classification: m.classification,
	})
	resetFlags()

	return m, func() {
		SetServices(prev)
		resetFlags()
	}
}

func resetFlags() {
	runOpts = runOptions{}
	exportFormat = "internal"
	exportOutput = ""
	exportStatus = ""
	listStatus = ""
	listType = ""
	listLimit = 20
	importDocument = ""
	scoreTitle = ""
}
