package services

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
	"github.com/custodia-labs/lexcards-cli/internal/core/ports/driven"
	"github.com/custodia-labs/lexcards-cli/internal/core/ports/driving"
	"github.com/custodia-labs/lexcards-cli/internal/logger"
)

// Ensure GenerationService implements the interface.
var _ driving.GenerationService = (*GenerationService)(nil)

// GenerationService turns batches of sections into questions through the
// LLM backend. Batches are isolated: one failing batch never aborts the
// others.
type GenerationService struct {
	backend driven.Backend
	prompts driven.PromptStore
	now     func() time.Time
}

// NewGenerationService creates a generation service.
// A nil backend leaves generation unavailable.
func NewGenerationService(backend driven.Backend, prompts driven.PromptStore) *GenerationService {
	return &GenerationService{
		backend: backend,
		prompts: prompts,
		now:     time.Now,
	}
}

// GenerateForBatches generates questions for every batch with bounded
// concurrency. Only configuration problems return an error; batch
// failures are recorded in the report.
func (s *GenerationService) GenerateForBatches(
	ctx context.Context,
	batches []domain.Batch,
	opts driving.GenerateOptions,
) (*domain.GenerationReport, error) {
	if s.backend == nil {
		return nil, domain.ErrLLMUnavailable
	}
	if s.prompts == nil {
		return nil, domain.NewConfigurationError("prompts", "no prompt store configured")
	}

	templates := make(map[domain.QuestionType]driven.PromptTemplate)
	for _, b := range batches {
		if _, ok := templates[b.QuestionType]; ok {
			continue
		}
		tmpl, err := s.prompts.Resolve(b.QuestionType, opts.PromptVersion)
		if err != nil {
			return nil, domain.NewConfigurationError("generation.prompt_version",
				"resolve %s prompt %q: %v", b.QuestionType, opts.PromptVersion, err)
		}
		templates[b.QuestionType] = tmpl
	}

	params := opts.Params
	if params == (domain.GenerationParams{}) {
		params = domain.DefaultGenerationParams()
	}

	logger.Section("Generation")
	logger.Info("Generating %d batch(es) with %s/%s", len(batches), s.backend.Provider(), s.backend.ModelName())

	start := s.now()
	run := &batchRun{
		service:   s,
		templates: templates,
		params:    params,
		nextIndex: int64(len(batches)),
	}

	perBatch := make([][]batchOutcome, len(batches))
	var g errgroup.Group
	g.SetLimit(max(1, opts.Concurrency))
	for i, b := range batches {
		if err := ctx.Err(); err != nil {
			logger.Warn("Generation cancelled, %d batch(es) not started", len(batches)-i)
			for j := i; j < len(batches); j++ {
				perBatch[j] = []batchOutcome{cancelledOutcome(batches[j], err)}
			}
			break
		}
		g.Go(func() error {
			// A batch queued behind the concurrency limit may start after cancellation.
			if err := ctx.Err(); err != nil {
				perBatch[i] = []batchOutcome{cancelledOutcome(b, err)}
				return nil
			}
			perBatch[i] = run.process(ctx, b)
			return nil
		})
	}
	_ = g.Wait()

	report := &domain.GenerationReport{}
	for _, outcomes := range perBatch {
		for _, o := range outcomes {
			report.Batches = append(report.Batches, o.result)
			report.Questions = append(report.Questions, o.questions...)
			report.Tokens += o.result.Tokens
			report.Cost += o.result.Cost
		}
	}
	report.Duration = s.now().Sub(start)
	logger.Info("Generation finished: %s", report.Summary())
	return report, nil
}

type batchOutcome struct {
	result    domain.BatchResult
	questions []domain.Question
}

func cancelledOutcome(b domain.Batch, err error) batchOutcome {
	return batchOutcome{result: domain.BatchResult{
		Index:      b.Index,
		DocumentID: b.DocumentID,
		Size:       b.Size(),
		Depth:      b.Depth,
		Status:     domain.BatchCancelled,
		Err:        err,
	}}
}

// batchRun carries the shared state of one GenerateForBatches call.
type batchRun struct {
	service   *GenerationService
	templates map[domain.QuestionType]driven.PromptTemplate
	params    domain.GenerationParams
	nextIndex int64
}

// process runs one batch, bisecting it on context-length failures.
func (r *batchRun) process(ctx context.Context, b domain.Batch) []batchOutcome {
	outcome := r.generate(ctx, b)
	if outcome.result.Err == nil || !errors.Is(outcome.result.Err, domain.ErrContextLength) {
		return []batchOutcome{outcome}
	}

	left, right, ok := Bisect(b)
	if !ok {
		logger.Warn("Batch %d (size %d, depth %d) exceeds the context window and cannot be split further",
			b.Index, b.Size(), b.Depth)
		return []batchOutcome{outcome}
	}
	left.Index = int(atomic.AddInt64(&r.nextIndex, 1) - 1)
	right.Index = int(atomic.AddInt64(&r.nextIndex, 1) - 1)
	logger.Debug("Batch %d exceeds the context window, split into %d (%d) and %d (%d)",
		b.Index, left.Index, left.Size(), right.Index, right.Size())

	out := r.process(ctx, left)
	return append(out, r.process(ctx, right)...)
}

// generate renders, sends and parses a single batch.
func (r *batchRun) generate(ctx context.Context, b domain.Batch) batchOutcome {
	backend := r.service.backend
	b.Provider = backend.Provider()
	b.Model = backend.ModelName()

	result := domain.BatchResult{
		Index:      b.Index,
		DocumentID: b.DocumentID,
		Size:       b.Size(),
		Depth:      b.Depth,
		Status:     domain.BatchProcessing,
	}
	fail := func(err error) batchOutcome {
		result.Status = domain.BatchFailed
		result.Err = err
		logger.Warn("Batch %d failed: %v", b.Index, err)
		return batchOutcome{result: result}
	}
	if b.Size() == 0 {
		return fail(domain.ErrInvalidInput)
	}

	req, err := RenderPrompt(r.templates[b.QuestionType], b, r.params)
	if err != nil {
		return fail(err)
	}
	logger.Debug("Batch %d: %d section(s), ~%d prompt tokens", b.Index, b.Size(), EstimateTokens(req.System+req.Prompt))

	resp, err := backend.Generate(ctx, req)
	if err != nil {
		return fail(err)
	}
	result.Tokens = resp.TotalTokens()
	result.Cost = resp.Cost
	result.FromCache = resp.FromCache
	result.Latency = resp.Latency

	parsed, dropped, err := ParseResponse(resp.Text, b.QuestionType, b.Index)
	if err != nil {
		return fail(err)
	}
	for _, d := range dropped {
		logger.Warn("Dropped question: %v", d)
		result.Dropped = append(result.Dropped, d.Error())
	}

	questions := make([]domain.Question, 0, len(parsed))
	for _, p := range parsed {
		questions = append(questions, r.newQuestion(b, p))
	}
	result.Questions = len(questions)
	result.Status = domain.BatchCompleted
	if len(dropped) > 0 {
		result.Status = domain.BatchPartial
	}
	return batchOutcome{result: result, questions: questions}
}

func (r *batchRun) newQuestion(b domain.Batch, p ParsedQuestion) domain.Question {
	now := r.service.now()
	section := b.SectionByRelativeID(p.SectionRef)
	return domain.Question{
		ID:        uuid.NewString(),
		Origin:    domain.Origin{DocumentID: b.DocumentID, SectionID: section.ID},
		Type:      b.QuestionType,
		Content:   p.Content,
		Status:    domain.StatusPending,
		Metadata:  p.Metadata,
		SRS:       domain.NewSRS(p.Metadata.Difficulty, now),
		Provider:  b.Provider,
		Model:     b.Model,
		CreatedAt: now,
	}
}
