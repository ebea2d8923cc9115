package domain

import (
	"strings"
	"time"
)

// Stage is one step of the processing pipeline.
type Stage string

// Pipeline stages in execution order.
const (
	StageExtract  Stage = "extract"
	StageClassify Stage = "classify"
	StageGenerate Stage = "generate"
	StageValidate Stage = "validate"
)

// AllStages returns the stages in execution order.
func AllStages() []Stage {
	return []Stage{StageExtract, StageClassify, StageGenerate, StageValidate}
}

// IsValid returns true if the stage is recognised.
func (s Stage) IsValid() bool {
	switch s {
	case StageExtract, StageClassify, StageGenerate, StageValidate:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (s Stage) String() string {
	return string(s)
}

// Predecessor returns the stage that must complete first, and false for extract.
func (s Stage) Predecessor() (Stage, bool) {
	switch s {
	case StageClassify:
		return StageExtract, true
	case StageGenerate:
		return StageClassify, true
	case StageValidate:
		return StageGenerate, true
	default:
		return "", false
	}
}

// State is the name of the pipeline state reached when the stage completes.
func (s Stage) State() string {
	switch s {
	case StageExtract:
		return "EXTRACTED"
	case StageClassify:
		return "CLASSIFIED"
	case StageGenerate:
		return "GENERATED"
	case StageValidate:
		return "VALIDATED"
	default:
		return "NEW"
	}
}

// ParseStages parses a comma separated stage list.
func ParseStages(s string) ([]Stage, error) {
	var out []Stage
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(strings.ToLower(part))
		if part == "" {
			continue
		}
		st := Stage(part)
		if !st.IsValid() {
			return nil, NewConfigurationError("stages", "unknown stage %q", part)
		}
		out = append(out, st)
	}
	return out, nil
}

// PipelineState is the persisted progress of one document through the
// pipeline. It is loaded and saved per document, never held globally.
type PipelineState struct {
	DocumentID string
	Completed  map[Stage]time.Time
	LastRunID  string
	UpdatedAt  time.Time
}

// NewPipelineState returns an empty state for a document.
func NewPipelineState(documentID string) *PipelineState {
	return &PipelineState{
		DocumentID: documentID,
		Completed:  make(map[Stage]time.Time),
	}
}

// Has returns true if the stage completion is recorded.
func (p *PipelineState) Has(s Stage) bool {
	if p == nil {
		return false
	}
	_, ok := p.Completed[s]
	return ok
}

// CanRun returns true if the stage's predecessor is recorded.
func (p *PipelineState) CanRun(s Stage) bool {
	pred, ok := s.Predecessor()
	if !ok {
		return true
	}
	return p.Has(pred)
}

// Mark records a stage completion.
func (p *PipelineState) Mark(s Stage, runID string, at time.Time) {
	if p.Completed == nil {
		p.Completed = make(map[Stage]time.Time)
	}
	p.Completed[s] = at
	p.LastRunID = runID
	p.UpdatedAt = at
}

// Current returns the name of the furthest state reached.
func (p *PipelineState) Current() string {
	current := "NEW"
	for _, s := range AllStages() {
		if !p.Has(s) {
			break
		}
		current = s.State()
	}
	return current
}

// StageResult is the outcome of running one stage.
type StageResult struct {
	Stage    Stage
	Success  bool
	Skipped  bool
	Duration time.Duration
	Counts   map[string]int
	Err      error
}

// RunReport aggregates the stage results of one pipeline invocation.
type RunReport struct {
	RunID      string
	DocumentID string
	Stages     []StageResult
	Generation *GenerationReport
	Duration   time.Duration
}

// Succeeded returns true if no stage failed.
func (r *RunReport) Succeeded() bool {
	for _, s := range r.Stages {
		if !s.Success && !s.Skipped {
			return false
		}
	}
	return true
}

// ExperimentConfig is the configuration snapshot stored with an experiment.
type ExperimentConfig struct {
	Weights       Weights
	Thresholds    Thresholds
	BatchSize     int
	QuestionType  QuestionType
	PromptVersion string
	Level         ValidationLevel
	AutoFix       bool
	IncludeReview bool
	Provider      AIProvider
	Model         string
}

// Experiment is an append-only record of one stage completion.
type Experiment struct {
	ID           string
	RunID        string
	DocumentID   string
	Stage        Stage
	Config       ExperimentConfig
	Counts       map[string]int
	Provider     AIProvider
	Model        string
	TokensUsed   int
	CostEstimate float64
	Duration     time.Duration
	Success      bool
	Error        string
	CreatedAt    time.Time
}
