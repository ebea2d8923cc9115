package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
	"github.com/custodia-labs/lexcards-cli/internal/core/ports/driven"
	"github.com/custodia-labs/lexcards-cli/internal/core/ports/driving"
	"github.com/custodia-labs/lexcards-cli/internal/logger"
)

// Ensure PipelineService implements the interface.
var _ driving.PipelineService = (*PipelineService)(nil)

// PipelineDeps are the collaborators of a PipelineService.
// Generator may be nil when no LLM provider is configured.
type PipelineDeps struct {
	Extractor   driven.Extractor
	Documents   driven.DocumentIndex
	Sections    driven.SectionStore
	Questions   driven.QuestionStore
	Experiments driven.ExperimentStore
	States      driven.PipelineStateStore
	Settings    driving.SettingsService
	Classifier  driving.ClassificationService
	Generator   driving.GenerationService
	Validator   driving.ValidationService
}

// PipelineService sequences extract, classify, generate and validate for
// one document at a time. Progress is persisted per document after every
// stage so an interrupted run can be resumed.
type PipelineService struct {
	deps  PipelineDeps
	now   func() time.Time
	newID func() string
}

// NewPipelineService creates a pipeline service.
func NewPipelineService(deps PipelineDeps) *PipelineService {
	return &PipelineService{
		deps:  deps,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// run is the mutable state of one Run call.
type run struct {
	id       string
	req      driving.RunRequest
	settings domain.AppSettings
	doc      *domain.Document
	path     string
	reuse    bool
	state    *domain.PipelineState
	report   *domain.RunReport
}

// stageOutput is what a stage reports back for its experiment record.
type stageOutput struct {
	counts map[string]int
	tokens int
	cost   float64
}

// Run executes the pipeline for one document.
func (s *PipelineService) Run(ctx context.Context, req driving.RunRequest) (*domain.RunReport, error) {
	settings, err := s.resolveSettings(req)
	if err != nil {
		return nil, err
	}
	if req.Only != "" && !req.Only.IsValid() {
		return nil, domain.NewConfigurationError("stage", "unknown stage %q", req.Only)
	}
	for _, st := range req.Skip {
		if !st.IsValid() {
			return nil, domain.NewConfigurationError("skip", "unknown stage %q", st)
		}
	}

	r := &run{id: s.newID(), req: req, settings: settings}
	if err := s.resolveDocument(ctx, r); err != nil {
		return nil, err
	}
	if err := s.checkSkips(ctx, r); err != nil {
		return nil, err
	}
	if r.state, err = s.loadState(ctx, r.doc.ID); err != nil {
		return nil, err
	}

	r.report = &domain.RunReport{RunID: r.id, DocumentID: r.doc.ID}
	start := s.now()
	defer func() { r.report.Duration = s.now().Sub(start) }()

	logger.Section("Pipeline")
	logger.Info("Run %s for document %s (state %s)", r.id, r.doc.ID, r.state.Current())

	stages := domain.AllStages()
	if req.Only != "" {
		stages = []domain.Stage{req.Only}
	}
	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			logger.Warn("Run %s cancelled before %s", r.id, stage)
			return r.report, err
		}

		result, err := s.runStage(ctx, r, stage)
		r.report.Stages = append(r.report.Stages, result)
		if err != nil {
			return r.report, err
		}
		if !result.Success && !result.Skipped && req.StopOnError {
			logger.Warn("Stopping run %s after failed %s stage", r.id, stage)
			break
		}
	}
	return r.report, nil
}

// RunStage executes one stage of an indexed document standalone.
func (s *PipelineService) RunStage(
	ctx context.Context,
	documentID string,
	stage domain.Stage,
	req driving.RunRequest,
) (*domain.RunReport, error) {
	if !stage.IsValid() {
		return nil, domain.NewConfigurationError("stage", "unknown stage %q", stage)
	}
	req.DocumentID = documentID
	req.Only = stage
	return s.Run(ctx, req)
}

// State returns the persisted state of a document. A document that never
// ran returns an empty state.
func (s *PipelineService) State(ctx context.Context, documentID string) (*domain.PipelineState, error) {
	return s.loadState(ctx, documentID)
}

// Experiments returns the experiment records of a document, oldest first.
func (s *PipelineService) Experiments(ctx context.Context, documentID string) ([]domain.Experiment, error) {
	return s.deps.Experiments.ListByDocument(ctx, documentID)
}

func (s *PipelineService) resolveSettings(req driving.RunRequest) (domain.AppSettings, error) {
	var settings domain.AppSettings
	switch {
	case req.Settings != nil:
		settings = *req.Settings
	case s.deps.Settings != nil:
		stored, err := s.deps.Settings.Get()
		if err != nil {
			return settings, fmt.Errorf("load settings: %w", err)
		}
		settings = *stored
	default:
		settings = domain.DefaultAppSettings()
	}
	if err := settings.Validate(); err != nil {
		return settings, err
	}
	return settings, nil
}

// resolveDocument finds the document for the request. A PDF whose hash is
// already indexed reuses the stored document unless Force is set.
func (s *PipelineService) resolveDocument(ctx context.Context, r *run) error {
	if r.req.PDFPath == "" {
		if r.req.DocumentID == "" {
			return domain.NewConfigurationError("document", "a PDF path or document id is required")
		}
		doc, err := s.deps.Documents.Get(ctx, r.req.DocumentID)
		if err != nil {
			return fmt.Errorf("get document %s: %w", r.req.DocumentID, err)
		}
		r.doc = doc
		r.reuse = true
		return nil
	}

	if s.deps.Extractor == nil {
		return domain.NewConfigurationError("extractor", "no PDF extractor configured")
	}
	hash, err := s.deps.Extractor.Hash(r.req.PDFPath)
	if err != nil {
		return fmt.Errorf("hash %s: %w", r.req.PDFPath, err)
	}
	r.path = r.req.PDFPath

	doc, err := s.deps.Documents.GetByHash(ctx, hash)
	switch {
	case err == nil:
		r.doc = doc
		r.reuse = !r.req.Force
		if r.reuse {
			logger.Info("Document %s already indexed (%s)", doc.ID, doc.Name)
		}
	case errors.Is(err, domain.ErrNotFound):
		r.doc = &domain.Document{
			ID:   domain.DocumentIDFromHash(hash),
			Hash: hash,
			Path: r.req.PDFPath,
			Name: filepath.Base(r.req.PDFPath),
		}
	default:
		return fmt.Errorf("look up document: %w", err)
	}
	return nil
}

// checkSkips fails when a skipped stage has no stored output to stand in for it.
func (s *PipelineService) checkSkips(ctx context.Context, r *run) error {
	for _, st := range r.req.Skip {
		ok, err := s.hasOutput(ctx, r.doc.ID, st)
		if err != nil {
			return err
		}
		if !ok {
			cfgErr := domain.NewConfigurationError("skip", "cannot skip %s for document %s", st, r.doc.ID)
			return fmt.Errorf("%w: %w", cfgErr, domain.ErrNoPriorOutput)
		}
	}
	return nil
}

// hasOutput reports whether the repository holds a stage's output.
func (s *PipelineService) hasOutput(ctx context.Context, documentID string, stage domain.Stage) (bool, error) {
	switch stage {
	case domain.StageExtract:
		sections, err := s.deps.Sections.FindAll(ctx, documentID)
		return len(sections) > 0, err
	case domain.StageClassify:
		classified, err := s.deps.Sections.FindClassified(ctx, documentID, domain.DefaultThresholds())
		return len(classified) > 0, err
	case domain.StageGenerate:
		questions, err := s.deps.Questions.Find(ctx, driven.QuestionFilter{DocumentID: documentID})
		return len(questions) > 0, err
	default:
		// Validation output is any question that has left PENDING.
		questions, err := s.deps.Questions.Find(ctx, driven.QuestionFilter{DocumentID: documentID})
		if err != nil {
			return false, err
		}
		for _, q := range questions {
			if q.Status != domain.StatusPending {
				return true, nil
			}
		}
		return false, nil
	}
}

func (s *PipelineService) loadState(ctx context.Context, documentID string) (*domain.PipelineState, error) {
	state, err := s.deps.States.Get(ctx, documentID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewPipelineState(documentID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load pipeline state: %w", err)
	}
	return state, nil
}

// runStage applies the skip, resume and guard rules, then executes the stage.
// Only configuration failures are returned as errors.
func (s *PipelineService) runStage(ctx context.Context, r *run, stage domain.Stage) (domain.StageResult, error) {
	result := domain.StageResult{Stage: stage}

	switch {
	case slices.Contains(r.req.Skip, stage):
		logger.Info("Skipping %s (requested)", stage)
		result.Skipped = true
		if !r.state.Has(stage) {
			r.state.Mark(stage, r.id, s.now())
			if err := s.saveState(ctx, r.state); err != nil {
				return result, err
			}
		}
		return result, nil
	case r.req.Resume && r.state.Has(stage):
		logger.Info("Skipping %s (already completed)", stage)
		result.Skipped = true
		return result, nil
	case r.req.Only == "" && !r.state.CanRun(stage):
		pred, _ := stage.Predecessor()
		result.Err = fmt.Errorf("%s requires %s: %w", stage, pred, domain.ErrStageNotReady)
		logger.Warn("Cannot run %s: %v", stage, result.Err)
		return result, nil
	}

	logger.Section(stage.String())
	start := s.now()
	out, err := s.execute(ctx, r, stage)
	result.Duration = s.now().Sub(start)
	result.Counts = out.counts

	if errors.Is(err, domain.ErrConfiguration) || errors.Is(err, domain.ErrLLMUnavailable) {
		return result, err
	}
	result.Err = err
	result.Success = err == nil

	if result.Success {
		r.state.Mark(stage, r.id, s.now())
		clearAfter(r.state, stage)
		if err := s.saveState(ctx, r.state); err != nil {
			return result, err
		}
		logger.Info("%s completed in %s", stage, result.Duration.Round(time.Millisecond))
	} else {
		logger.Warn("%s failed for document %s: %v", stage, r.doc.ID, err)
	}

	if err := s.recordExperiment(ctx, r, result, out); err != nil {
		logger.Warn("Failed to record experiment: %v", err)
	}
	return result, nil
}

// clearAfter forgets the completion of stages downstream of a stage that
// just produced fresh output.
func clearAfter(state *domain.PipelineState, stage domain.Stage) {
	after := false
	for _, st := range domain.AllStages() {
		if after {
			delete(state.Completed, st)
		}
		if st == stage {
			after = true
		}
	}
}

func (s *PipelineService) saveState(ctx context.Context, state *domain.PipelineState) error {
	if err := s.deps.States.Save(ctx, *state); err != nil {
		return fmt.Errorf("save pipeline state: %w", err)
	}
	return nil
}

func (s *PipelineService) execute(ctx context.Context, r *run, stage domain.Stage) (stageOutput, error) {
	switch stage {
	case domain.StageExtract:
		return s.extract(ctx, r)
	case domain.StageClassify:
		return s.classify(ctx, r)
	case domain.StageGenerate:
		return s.generate(ctx, r)
	case domain.StageValidate:
		return s.validate(ctx, r)
	}
	return stageOutput{}, domain.NewConfigurationError("stage", "unknown stage %q", stage)
}

func (s *PipelineService) extract(ctx context.Context, r *run) (stageOutput, error) {
	if r.reuse {
		sections, err := s.deps.Sections.FindAll(ctx, r.doc.ID)
		if err != nil {
			return stageOutput{}, fmt.Errorf("load sections: %w", err)
		}
		if len(sections) > 0 {
			logger.Info("Reusing %d stored section(s)", len(sections))
			return stageOutput{counts: map[string]int{"sections": len(sections), "reused": 1}}, nil
		}
		if r.path == "" {
			r.path = r.doc.Path
		}
	}
	if r.path == "" {
		return stageOutput{}, domain.NewConfigurationError("document", "document %s has no stored sections and no PDF path", r.doc.ID)
	}
	if s.deps.Extractor == nil {
		return stageOutput{}, domain.NewConfigurationError("extractor", "no PDF extractor configured")
	}

	extraction, err := s.deps.Extractor.Extract(ctx, r.path)
	if err != nil {
		return stageOutput{}, fmt.Errorf("extract %s: %w", r.path, err)
	}

	doc := extraction.Document
	doc.ID = r.doc.ID
	if doc.Hash == "" {
		doc.Hash = r.doc.Hash
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = r.doc.CreatedAt
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = s.now()
	}
	doc.ProcessedAt = s.now()
	doc.SectionCount = len(extraction.Sections)

	sections := make([]domain.Section, len(extraction.Sections))
	for i, sec := range extraction.Sections {
		sec.DocumentID = doc.ID
		sections[i] = sec
	}
	if err := s.deps.Sections.DeleteByDocument(ctx, doc.ID); err != nil {
		return stageOutput{}, fmt.Errorf("clear sections: %w", err)
	}
	if err := s.deps.Sections.SaveAll(ctx, sections); err != nil {
		return stageOutput{}, fmt.Errorf("save sections: %w", err)
	}
	if err := s.deps.Documents.Save(ctx, doc); err != nil {
		return stageOutput{}, fmt.Errorf("save document: %w", err)
	}
	r.doc = &doc

	logger.Info("Extracted %d section(s) from %d page(s)", len(sections), doc.TotalPages)
	return stageOutput{counts: map[string]int{"sections": len(sections), "pages": doc.TotalPages}}, nil
}

func (s *PipelineService) classify(ctx context.Context, r *run) (stageOutput, error) {
	sections, err := s.deps.Sections.FindAll(ctx, r.doc.ID)
	if err != nil {
		return stageOutput{}, fmt.Errorf("load sections: %w", err)
	}
	if len(sections) == 0 {
		return stageOutput{}, fmt.Errorf("classify %s: %w", r.doc.ID, domain.ErrNoPriorOutput)
	}

	cfg := r.settings.Classification
	classified, stats, err := s.deps.Classifier.ClassifyAll(sections, cfg.Weights, cfg.Thresholds)
	if err != nil {
		return stageOutput{}, err
	}
	if err := s.deps.Sections.SaveClassifications(ctx, classified); err != nil {
		return stageOutput{}, fmt.Errorf("save classifications: %w", err)
	}

	counts := map[string]int{"total": stats.Total}
	for _, tier := range domain.AllTiers() {
		counts[tier.String()] = stats.Counts[tier]
	}
	logger.Info("Classified %d section(s), average score %.3f", stats.Total, stats.AverageScore)
	return stageOutput{counts: counts}, nil
}

func (s *PipelineService) generate(ctx context.Context, r *run) (stageOutput, error) {
	if s.deps.Generator == nil {
		return stageOutput{}, domain.ErrLLMUnavailable
	}
	cls, gen := r.settings.Classification, r.settings.Generation

	relevant, err := s.deps.Sections.FindRelevant(ctx, r.doc.ID, cls.Thresholds, cls.IncludeReview)
	if err != nil {
		return stageOutput{}, fmt.Errorf("load relevant sections: %w", err)
	}
	if len(relevant) == 0 {
		logger.Warn("No relevant sections for document %s", r.doc.ID)
		return stageOutput{counts: map[string]int{"sections": 0, "questions": 0}}, nil
	}

	batches, err := BuildBatches(r.doc.ID, relevant, gen.BatchSize, gen.QuestionType)
	if err != nil {
		return stageOutput{}, err
	}
	report, err := s.deps.Generator.GenerateForBatches(ctx, batches, driving.GenerateOptions{
		PromptVersion: gen.PromptVersion,
		Params:        gen.Params,
		Concurrency:   gen.Concurrency,
	})
	if err != nil {
		return stageOutput{}, err
	}
	r.report.Generation = report

	failed := report.FailedBatches()
	out := stageOutput{
		counts: map[string]int{
			"sections":       len(relevant),
			"batches":        len(report.Batches),
			"failed_batches": len(failed),
			"questions":      len(report.Questions),
			"dropped":        report.DroppedCount(),
		},
		tokens: report.Tokens,
		cost:   report.Cost,
	}
	if cancelled := len(report.CancelledBatches()); cancelled > 0 {
		out.counts["cancelled_batches"] = cancelled
	}

	if len(report.Questions) == 0 && len(failed) > 0 {
		errs := make([]error, 0, len(failed))
		for _, b := range failed {
			errs = append(errs, fmt.Errorf("batch %d: %w", b.Index, b.Err))
		}
		return out, errors.Join(errs...)
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}

	if err := s.deps.Questions.DeleteByDocument(ctx, r.doc.ID); err != nil {
		return out, fmt.Errorf("clear questions: %w", err)
	}
	if err := s.deps.Questions.SaveAll(ctx, report.Questions); err != nil {
		return out, fmt.Errorf("save questions: %w", err)
	}
	logger.Info("%s", report.Summary())
	return out, nil
}

func (s *PipelineService) validate(ctx context.Context, r *run) (stageOutput, error) {
	questions, err := s.deps.Questions.Find(ctx, driven.QuestionFilter{DocumentID: r.doc.ID})
	if err != nil {
		return stageOutput{}, fmt.Errorf("load questions: %w", err)
	}

	cfg := r.settings.Validation
	validated, summary := s.deps.Validator.ValidateAll(questions, cfg.Level, cfg.AutoFix)
	if err := s.deps.Questions.SaveAll(ctx, validated); err != nil {
		return stageOutput{}, fmt.Errorf("save questions: %w", err)
	}

	for rule, n := range summary.ByRule {
		logger.Debug("Rule %s: %d question(s)", rule, n)
	}
	logger.Info("Validated %d of %d question(s), %d fixed", summary.Validated, summary.Total, summary.Fixed)
	return stageOutput{counts: map[string]int{
		"total":     summary.Total,
		"validated": summary.Validated,
		"invalid":   summary.Invalid,
		"fixed":     summary.Fixed,
	}}, nil
}

func (s *PipelineService) recordExperiment(ctx context.Context, r *run, result domain.StageResult, out stageOutput) error {
	if s.deps.Experiments == nil {
		return nil
	}
	st := r.settings
	exp := domain.Experiment{
		ID:         s.newID(),
		RunID:      r.id,
		DocumentID: r.doc.ID,
		Stage:      result.Stage,
		Config: domain.ExperimentConfig{
			Weights:       st.Classification.Weights,
			Thresholds:    st.Classification.Thresholds,
			BatchSize:     st.Generation.BatchSize,
			QuestionType:  st.Generation.QuestionType,
			PromptVersion: st.Generation.PromptVersion,
			Level:         st.Validation.Level,
			AutoFix:       st.Validation.AutoFix,
			IncludeReview: st.Classification.IncludeReview,
			Provider:      st.LLM.Provider,
			Model:         st.LLM.Model,
		},
		Counts:       out.counts,
		TokensUsed:   out.tokens,
		CostEstimate: out.cost,
		Duration:     result.Duration,
		Success:      result.Success,
		CreatedAt:    s.now(),
	}
	if result.Stage == domain.StageGenerate {
		exp.Provider = st.LLM.Provider
		exp.Model = st.LLM.Model
	}
	if result.Err != nil {
		exp.Error = result.Err.Error()
	}
	return s.deps.Experiments.Save(ctx, exp)
}
