package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
	"github.com/custodia-labs/lexcards-cli/internal/core/ports/driving"
)

// ClassifyInput is the input schema for the classify_text tool.
type ClassifyInput struct {
	Text  string `json:"text" jsonschema:"the section text to score"`
	Title string `json:"title,omitempty" jsonschema:"the section heading, if any"`
}

// ClassifyOutput is the output schema for the classify_text tool.
type ClassifyOutput struct {
	Tier              string  `json:"tier"`
	Composite         float64 `json:"composite"`
	SemanticFitness   float64 `json:"semantic_fitness"`
	LegalRelevance    float64 `json:"legal_relevance"`
	ConceptualDensity float64 `json:"conceptual_density"`
	ContextualClarity float64 `json:"contextual_clarity"`
	Conserved         bool    `json:"conserved"`
}

// ValidateInput is the input schema for the validate_question tool.
// Only the fields of the given type are read.
type ValidateInput struct {
	Type          string   `json:"type" jsonschema:"flashcard, true_false, multiple_choice or cloze"`
	Front         string   `json:"front,omitempty" jsonschema:"flashcard question side"`
	Back          string   `json:"back,omitempty" jsonschema:"flashcard answer side"`
	Statement     string   `json:"statement,omitempty" jsonschema:"true/false statement"`
	Answer        bool     `json:"answer,omitempty" jsonschema:"true/false truth value"`
	Question      string   `json:"question,omitempty" jsonschema:"multiple choice question"`
	Options       []string `json:"options,omitempty" jsonschema:"multiple choice options, exactly four"`
	CorrectIndex  int      `json:"correct_index,omitempty" jsonschema:"index of the correct option"`
	Justification string   `json:"justification,omitempty" jsonschema:"why the answer is correct"`
	Text          string   `json:"text,omitempty" jsonschema:"cloze text with {{}} blanks"`
	Answers       []string `json:"answers,omitempty" jsonschema:"cloze answers, one per blank"`
	Level         string   `json:"level,omitempty" jsonschema:"lenient, moderate or strict (default: stored setting)"`
	AutoFix       bool     `json:"auto_fix,omitempty" jsonschema:"repair fixable violations"`
}

// ViolationOutput is one failed rule.
type ViolationOutput struct {
	Rule       string `json:"rule"`
	Field      string `json:"field,omitempty"`
	Message    string `json:"message"`
	Severity   string `json:"severity"`
	Repairable bool   `json:"repairable"`
}

// ValidateOutput is the output schema for the validate_question tool.
type ValidateOutput struct {
	Status     string            `json:"status"`
	Prompt     string            `json:"prompt"`
	Answer     string            `json:"answer"`
	Violations []ViolationOutput `json:"violations"`
}

// ListQuestionsInput is the input schema for the list_questions tool.
type ListQuestionsInput struct {
	DocumentID string `json:"document_id" jsonschema:"the document identifier"`
	Status     string `json:"status,omitempty" jsonschema:"PENDING, VALIDATED or INVALID"`
	Type       string `json:"type,omitempty" jsonschema:"question type filter"`
	Limit      int    `json:"limit,omitempty" jsonschema:"maximum number of questions to return (default 20)"`
}

// QuestionOutput represents a single stored question.
type QuestionOutput struct {
	ID         string   `json:"id"`
	Type       string   `json:"type"`
	Status     string   `json:"status"`
	SectionID  int      `json:"section_id"`
	Prompt     string   `json:"prompt"`
	Answer     string   `json:"answer"`
	Difficulty string   `json:"difficulty,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

// ListQuestionsOutput is the output schema for the list_questions tool.
type ListQuestionsOutput struct {
	Questions []QuestionOutput `json:"questions"`
	Count     int              `json:"count"`
}

// StatusInput is the input schema for the document_status tool.
type StatusInput struct {
	DocumentID string `json:"document_id" jsonschema:"the document identifier"`
}

// StatusOutput is the output schema for the document_status tool.
type StatusOutput struct {
	DocumentID string         `json:"document_id"`
	Name       string         `json:"name"`
	State      string         `json:"state"`
	Completed  []string       `json:"completed"`
	Questions  int            `json:"questions"`
	ByStatus   map[string]int `json:"by_status"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "classify_text",
		Description: "Score a legal text for study relevance and return its tier and sub-scores",
	}, s.handleClassify)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "validate_question",
		Description: "Check a study question against the structural rules of its type",
	}, s.handleValidate)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_questions",
		Description: "List generated questions of a processed document",
	}, s.handleListQuestions)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "document_status",
		Description: "Show how far a document has progressed through the pipeline",
	}, s.handleStatus)
}

// handleClassify handles the classify_text tool invocation.
func (s *Server) handleClassify(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input ClassifyInput,
) (*mcp.CallToolResult, ClassifyOutput, error) {
	if s.ports.Classification == nil {
		return nil, ClassifyOutput{}, errUnavailable
	}
	if strings.TrimSpace(input.Text) == "" {
		return nil, ClassifyOutput{}, fmt.Errorf("text is required: %w", domain.ErrInvalidInput)
	}

	settings := s.ports.settings()
	section := domain.Section{ID: 1, Title: input.Title, Text: input.Text, Page: 1}
	r, err := s.ports.Classification.Classify(section,
		settings.Classification.Weights, settings.Classification.Thresholds)
	if err != nil {
		return nil, ClassifyOutput{}, err
	}

	return nil, ClassifyOutput{
		Tier:              r.Tier.String(),
		Composite:         r.Composite,
		SemanticFitness:   r.SemanticFitness,
		LegalRelevance:    r.LegalRelevance,
		ConceptualDensity: r.ConceptualDensity,
		ContextualClarity: r.ContextualClarity,
		Conserved:         r.Conserved,
	}, nil
}

// handleValidate handles the validate_question tool invocation.
func (s *Server) handleValidate(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input ValidateInput,
) (*mcp.CallToolResult, ValidateOutput, error) {
	if s.ports.Validation == nil {
		return nil, ValidateOutput{}, errUnavailable
	}

	q, err := questionFromInput(input)
	if err != nil {
		return nil, ValidateOutput{}, err
	}
	level := s.ports.settings().Validation.Level
	if input.Level != "" {
		if level, err = domain.ParseValidationLevel(input.Level); err != nil {
			return nil, ValidateOutput{}, err
		}
	}

	checked := s.ports.Validation.Validate(q, level, input.AutoFix)

	output := ValidateOutput{
		Status:     string(checked.Status),
		Prompt:     checked.Content.Prompt(),
		Answer:     checked.Content.AnswerText(),
		Violations: make([]ViolationOutput, len(checked.Violations)),
	}
	for i, v := range checked.Violations {
		output.Violations[i] = ViolationOutput{
			Rule:       v.Rule,
			Field:      v.Field,
			Message:    v.Message,
			Severity:   string(v.Severity),
			Repairable: v.Repairable,
		}
	}
	return nil, output, nil
}

func questionFromInput(in ValidateInput) (domain.Question, error) {
	qt := domain.QuestionType(strings.ToLower(strings.TrimSpace(in.Type)))
	q := domain.Question{ID: "mcp", Type: qt, Status: domain.StatusPending}
	switch qt {
	case domain.QuestionFlashcard:
		q.Content = domain.NewFlashcardContent(domain.Flashcard{Front: in.Front, Back: in.Back})
	case domain.QuestionTrueFalse:
		q.Content = domain.NewTrueFalseContent(domain.TrueFalse{
			Statement:     in.Statement,
			Answer:        in.Answer,
			Justification: in.Justification,
		})
	case domain.QuestionMultipleChoice:
		q.Content = domain.NewMultipleChoiceContent(domain.MultipleChoice{
			Question:      in.Question,
			Options:       in.Options,
			CorrectIndex:  in.CorrectIndex,
			Justification: in.Justification,
		})
	case domain.QuestionCloze:
		q.Content = domain.NewClozeContent(domain.Cloze{Text: in.Text, Answers: in.Answers})
	default:
		return q, fmt.Errorf("unknown question type %q: %w", in.Type, domain.ErrInvalidInput)
	}
	return q, nil
}

// handleListQuestions handles the list_questions tool invocation.
func (s *Server) handleListQuestions(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListQuestionsInput,
) (*mcp.CallToolResult, ListQuestionsOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	questions, err := s.ports.Library.Questions(ctx, driving.QuestionQuery{
		DocumentID: input.DocumentID,
		Status:     domain.ValidationStatus(strings.ToUpper(input.Status)),
		Type:       domain.QuestionType(strings.ToLower(input.Type)),
		Limit:      limit,
	})
	if err != nil {
		return nil, ListQuestionsOutput{}, err
	}

	output := ListQuestionsOutput{
		Questions: make([]QuestionOutput, len(questions)),
		Count:     len(questions),
	}
	for i := range questions {
		output.Questions[i] = questionOutput(&questions[i])
	}
	return nil, output, nil
}

func questionOutput(q *domain.Question) QuestionOutput {
	return QuestionOutput{
		ID:         q.ID,
		Type:       string(q.Type),
		Status:     string(q.Status),
		SectionID:  q.Origin.SectionID,
		Prompt:     q.Content.Prompt(),
		Answer:     q.Content.AnswerText(),
		Difficulty: string(q.Metadata.Difficulty),
		Tags:       q.Metadata.Tags,
	}
}

// handleStatus handles the document_status tool invocation.
func (s *Server) handleStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input StatusInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	doc, err := s.ports.Library.Document(ctx, input.DocumentID)
	if err != nil {
		return nil, StatusOutput{}, err
	}

	output := StatusOutput{
		DocumentID: doc.ID,
		Name:       doc.Name,
		State:      "NEW",
		Completed:  []string{},
		ByStatus:   map[string]int{},
	}
	if s.ports.Pipeline != nil {
		state, err := s.ports.Pipeline.State(ctx, doc.ID)
		if err != nil {
			return nil, StatusOutput{}, err
		}
		output.State = state.Current()
		for _, st := range domain.AllStages() {
			if state.Has(st) {
				output.Completed = append(output.Completed, st.String())
			}
		}
	}

	counts, err := s.ports.Library.Counts(ctx, doc.ID)
	if err != nil {
		return nil, StatusOutput{}, err
	}
	output.Questions = counts.Total
	for status, n := range counts.ByStatus {
		output.ByStatus[string(status)] = n
	}
	return nil, output, nil
}
