package domain

import (
	"strings"
	"time"
)

// QuestionType identifies the content variant of a question.
type QuestionType string

// Available question types.
const (
	QuestionFlashcard      QuestionType = "flashcard"
	QuestionTrueFalse      QuestionType = "true_false"
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionCloze          QuestionType = "cloze"
)

// IsValid returns true if the question type is recognised.
func (q QuestionType) IsValid() bool {
	switch q {
	case QuestionFlashcard, QuestionTrueFalse, QuestionMultipleChoice, QuestionCloze:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (q QuestionType) String() string {
	return string(q)
}

// Label returns the Spanish display name used in prompts and exports.
func (q QuestionType) Label() string {
	switch q {
	case QuestionFlashcard:
		return "Flashcard"
	case QuestionTrueFalse:
		return "Verdadero/Falso"
	case QuestionMultipleChoice:
		return "Opción múltiple"
	case QuestionCloze:
		return "Completar espacios"
	default:
		return unknownDescription
	}
}

// AllQuestionTypes returns every supported question type.
func AllQuestionTypes() []QuestionType {
	return []QuestionType{QuestionFlashcard, QuestionTrueFalse, QuestionMultipleChoice, QuestionCloze}
}

// MultipleChoiceOptions is the exact number of options a multiple choice question carries.
const MultipleChoiceOptions = 4

// ValidationStatus is the lifecycle status of a generated question.
type ValidationStatus string

// Available validation statuses.
const (
	StatusPending   ValidationStatus = "PENDING"
	StatusValidated ValidationStatus = "VALIDATED"
	StatusInvalid   ValidationStatus = "INVALID"
)

// Origin links a question to the section it was generated from.
type Origin struct {
	DocumentID string
	SectionID  int
}

// Flashcard is a front/back card.
type Flashcard struct {
	Front string
	Back  string
}

// TrueFalse is a statement with its truth value and justification.
type TrueFalse struct {
	Statement     string
	Answer        bool
	Justification string
}

// MultipleChoice is a question with exactly four options and one correct index.
type MultipleChoice struct {
	Question      string
	Options       []string
	CorrectIndex  int
	Justification string
}

// Cloze is a text with {{blanks}} and the accepted answers.
type Cloze struct {
	Text    string
	Answers []string
}

// Content is a tagged union over the four question variants. Exactly the
// field matching Type is set.
type Content struct {
	Type           QuestionType
	Flashcard      *Flashcard
	TrueFalse      *TrueFalse
	MultipleChoice *MultipleChoice
	Cloze          *Cloze
}

// NewFlashcardContent wraps a flashcard variant.
func NewFlashcardContent(c Flashcard) Content {
	return Content{Type: QuestionFlashcard, Flashcard: &c}
}

// NewTrueFalseContent wraps a true/false variant.
func NewTrueFalseContent(c TrueFalse) Content {
	return Content{Type: QuestionTrueFalse, TrueFalse: &c}
}

// NewMultipleChoiceContent wraps a multiple choice variant.
func NewMultipleChoiceContent(c MultipleChoice) Content {
	c.Options = cloneStrings(c.Options)
	return Content{Type: QuestionMultipleChoice, MultipleChoice: &c}
}

// NewClozeContent wraps a cloze variant.
func NewClozeContent(c Cloze) Content {
	c.Answers = cloneStrings(c.Answers)
	return Content{Type: QuestionCloze, Cloze: &c}
}

// Clone returns a deep copy so that callers can modify it freely.
func (c Content) Clone() Content {
	out := Content{Type: c.Type}
	if c.Flashcard != nil {
		v := *c.Flashcard
		out.Flashcard = &v
	}
	if c.TrueFalse != nil {
		v := *c.TrueFalse
		out.TrueFalse = &v
	}
	if c.MultipleChoice != nil {
		v := *c.MultipleChoice
		v.Options = cloneStrings(v.Options)
		out.MultipleChoice = &v
	}
	if c.Cloze != nil {
		v := *c.Cloze
		v.Answers = cloneStrings(v.Answers)
		out.Cloze = &v
	}
	return out
}

// Prompt returns the text shown to the learner.
func (c Content) Prompt() string {
	switch c.Type {
	case QuestionFlashcard:
		if c.Flashcard != nil {
			return c.Flashcard.Front
		}
	case QuestionTrueFalse:
		if c.TrueFalse != nil {
			return c.TrueFalse.Statement
		}
	case QuestionMultipleChoice:
		if c.MultipleChoice != nil {
			return c.MultipleChoice.Question
		}
	case QuestionCloze:
		if c.Cloze != nil {
			return c.Cloze.Text
		}
	}
	return ""
}

// AnswerText returns a printable form of the expected answer.
func (c Content) AnswerText() string {
	switch c.Type {
	case QuestionFlashcard:
		if c.Flashcard != nil {
			return c.Flashcard.Back
		}
	case QuestionTrueFalse:
		if c.TrueFalse != nil {
			if c.TrueFalse.Answer {
				return "Verdadero"
			}
			return "Falso"
		}
	case QuestionMultipleChoice:
		if mc := c.MultipleChoice; mc != nil && mc.CorrectIndex >= 0 && mc.CorrectIndex < len(mc.Options) {
			return mc.Options[mc.CorrectIndex]
		}
	case QuestionCloze:
		if c.Cloze != nil {
			return strings.Join(c.Cloze.Answers, ", ")
		}
	}
	return ""
}

// Difficulty is the generator's estimate of how hard a question is.
type Difficulty string

// Available difficulties.
const (
	DifficultyBasic        Difficulty = "basico"
	DifficultyIntermediate Difficulty = "intermedio"
	DifficultyAdvanced     Difficulty = "avanzado"
)

// ParseDifficulty maps free text to a difficulty, defaulting to intermediate.
func ParseDifficulty(s string) Difficulty {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "basico", "básico", "basic", "easy", "facil", "fácil":
		return DifficultyBasic
	case "avanzado", "advanced", "hard", "dificil", "difícil":
		return DifficultyAdvanced
	default:
		return DifficultyIntermediate
	}
}

// InitialEaseFactor returns the SM-2 starting ease for the difficulty.
func (d Difficulty) InitialEaseFactor() float64 {
	switch d {
	case DifficultyBasic:
		return 2.7
	case DifficultyAdvanced:
		return 2.3
	default:
		return 2.5
	}
}

// SRS holds SM-2 spaced-repetition metadata. It is stored, not scheduled.
type SRS struct {
	EaseFactor  float64
	Interval    int
	Repetitions int
	DueDate     time.Time
}

// NewSRS returns the initial SM-2 state for a new question.
func NewSRS(d Difficulty, created time.Time) SRS {
	return SRS{
		EaseFactor: d.InitialEaseFactor(),
		DueDate:    created,
	}
}

// QuestionMetadata holds descriptive data from the generator.
type QuestionMetadata struct {
	Difficulty    Difficulty
	Tags          []string
	Subtype       string
	SourceExcerpt string
}

// NormaliseTag lowercases a tag and replaces whitespace runs with underscores.
func NormaliseTag(tag string) string {
	return strings.Join(strings.Fields(strings.ToLower(tag)), "_")
}

// NormaliseTags normalises and deduplicates tags, dropping empty ones.
func NormaliseTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		n := NormaliseTag(t)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// Severity grades a validation violation.
type Severity string

// Available severities.
const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Violation is a structural rule failure recorded on a question.
type Violation struct {
	Rule       string
	Field      string
	Message    string
	Severity   Severity
	Repairable bool
}

// Question is a generated study item.
type Question struct {
	ID         string
	Origin     Origin
	Type       QuestionType
	Content    Content
	Status     ValidationStatus
	Violations []Violation
	Metadata   QuestionMetadata
	SRS        SRS
	Provider   AIProvider
	Model      string
	CreatedAt  time.Time
}

// Clone returns a deep copy of the question.
func (q Question) Clone() Question {
	out := q
	out.Content = q.Content.Clone()
	if q.Violations != nil {
		out.Violations = append(make([]Violation, 0, len(q.Violations)), q.Violations...)
	}
	if q.Metadata.Tags != nil {
		out.Metadata.Tags = append(make([]string, 0, len(q.Metadata.Tags)), q.Metadata.Tags...)
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append(make([]string, 0, len(in)), in...)
}
