package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
)

func question(c domain.Content) domain.Question {
	return domain.Question{
		ID:      "q-1",
		Origin:  domain.Origin{DocumentID: "doc", SectionID: 1},
		Type:    c.Type,
		Content: c,
		Status:  domain.StatusPending,
	}
}

func flashcard(front, back string) domain.Question {
	return question(domain.NewFlashcardContent(domain.Flashcard{Front: front, Back: back}))
}

func rules(q domain.Question) []string {
	out := make([]string, 0, len(q.Violations))
	for _, v := range q.Violations {
		out = append(out, v.Rule)
	}
	return out
}

func TestValidate_ValidFlashcard(t *testing.T) {
	svc := NewValidationService()
	q := flashcard("¿Cuál es el plazo para apelar?", "Diez días hábiles desde la notificación.")

	got := svc.Validate(q, domain.LevelStrict, false)

	assert.Equal(t, domain.StatusValidated, got.Status)
	assert.Empty(t, got.Violations)
	assert.Equal(t, domain.StatusPending, q.Status, "input must not be modified")
}

func TestValidate_StrictTrueFalseMissingJustification(t *testing.T) {
	svc := NewValidationService()
	q := question(domain.NewTrueFalseContent(domain.TrueFalse{
		Statement: "El plazo para apelar es de diez días hábiles.",
		Answer:    true,
	}))

	got := svc.Validate(q, domain.LevelStrict, true)

	assert.Equal(t, domain.StatusInvalid, got.Status)
	assert.Contains(t, rules(got), RuleMissingJustify)

	moderate := svc.Validate(q, domain.LevelModerate, true)
	assert.Equal(t, domain.StatusValidated, moderate.Status)
}

func TestValidate_AutoFixAddsQuestionMark(t *testing.T) {
	svc := NewValidationService()
	q := flashcard("  Cuál es el plazo  para apelar.", "Diez días hábiles desde la notificación.")

	without := svc.Validate(q, domain.LevelStrict, false)
	assert.Equal(t, domain.StatusInvalid, without.Status)
	assert.ElementsMatch(t, []string{RuleWhitespace, RuleMissingQuestionMark}, rules(without))

	fixed := svc.Validate(q, domain.LevelStrict, true)
	assert.Equal(t, domain.StatusValidated, fixed.Status)
	assert.Equal(t, "Cuál es el plazo para apelar?", fixed.Content.Flashcard.Front)
}

func TestValidate_QuestionMarkOnlyAddedWhenRequired(t *testing.T) {
	svc := NewValidationService()
	q := flashcard("  Cuál es el plazo  para apelar.", "Diez días hábiles desde la notificación.")

	for _, level := range []domain.ValidationLevel{domain.LevelLenient, domain.LevelModerate} {
		t.Run(string(level), func(t *testing.T) {
			got := svc.Validate(q, level, true)

			assert.Equal(t, domain.StatusValidated, got.Status)
			assert.Equal(t, "Cuál es el plazo para apelar.", got.Content.Flashcard.Front)
		})
	}
}

func TestValidate_UnrepairableNotTouched(t *testing.T) {
	svc := NewValidationService()
	q := flashcard("¿Plazo?", "Diez días hábiles.")

	got := svc.Validate(q, domain.LevelStrict, true)

	assert.Equal(t, domain.StatusInvalid, got.Status)
	assert.Equal(t, []string{RuleTooShort}, rules(got))
	assert.Equal(t, "¿Plazo?", got.Content.Flashcard.Front)
}

func TestValidate_LenientSkipsLengthBounds(t *testing.T) {
	svc := NewValidationService()
	q := flashcard("¿Plazo?", "Diez.")
	q.Origin.SectionID = 0

	got := svc.Validate(q, domain.LevelLenient, false)

	assert.Equal(t, domain.StatusValidated, got.Status)
}

func TestValidate_FlashcardFrontEqualsBack(t *testing.T) {
	got := NewValidationService().Validate(flashcard("¿Qué es un plazo?", "¿qué es un plazo?"), domain.LevelLenient, true)

	assert.Equal(t, domain.StatusInvalid, got.Status)
	assert.Contains(t, rules(got), RuleFrontEqualsBack)
}

func TestValidate_MultipleChoiceIndexNeverRepaired(t *testing.T) {
	q := question(domain.NewMultipleChoiceContent(domain.MultipleChoice{
		Question:      "¿Cuál es el plazo para interponer el recurso?",
		Options:       []string{"5 días", "10 días", "15 días", "20 días"},
		CorrectIndex:  4,
		Justification: "Artículo 12.",
	}))

	got := NewValidationService().Validate(q, domain.LevelStrict, true)

	assert.Equal(t, domain.StatusInvalid, got.Status)
	assert.Equal(t, []string{RuleCorrectIndex}, rules(got))
	assert.Equal(t, 4, got.Content.MultipleChoice.CorrectIndex)
}

func TestValidate_MultipleChoiceDedupeToFour(t *testing.T) {
	q := question(domain.NewMultipleChoiceContent(domain.MultipleChoice{
		Question:      "¿Cuál es el plazo para interponer el recurso?",
		Options:       []string{"5 días", "10 días", "10 Días", "15 días", "20 días"},
		CorrectIndex:  4,
		Justification: "Artículo 12.",
	}))

	got := NewValidationService().Validate(q, domain.LevelStrict, true)

	require.Equal(t, domain.StatusValidated, got.Status)
	assert.Equal(t, []string{"5 días", "10 días", "15 días", "20 días"}, got.Content.MultipleChoice.Options)
	assert.Equal(t, 3, got.Content.MultipleChoice.CorrectIndex)
	assert.Len(t, q.Content.MultipleChoice.Options, 5, "input must not be modified")
}

func TestValidate_MultipleChoiceDuplicatesWithFourOptions(t *testing.T) {
	q := question(domain.NewMultipleChoiceContent(domain.MultipleChoice{
		Question:      "¿Cuál es el plazo para interponer el recurso?",
		Options:       []string{"5 días", "10 días", "10 días", "20 días"},
		CorrectIndex:  0,
		Justification: "Artículo 12.",
	}))

	strict := NewValidationService().Validate(q, domain.LevelStrict, true)
	assert.Equal(t, domain.StatusInvalid, strict.Status)
	assert.Equal(t, []string{RuleDuplicateOptions}, rules(strict))

	moderate := NewValidationService().Validate(q, domain.LevelModerate, true)
	assert.Equal(t, domain.StatusValidated, moderate.Status)
}

func TestValidate_MultipleChoiceTooFewOptions(t *testing.T) {
	q := question(domain.NewMultipleChoiceContent(domain.MultipleChoice{
		Question:     "¿Cuál es el plazo para interponer el recurso?",
		Options:      []string{"5 días", "10 días", ""},
		CorrectIndex: 0,
	}))

	got := NewValidationService().Validate(q, domain.LevelModerate, true)

	assert.Equal(t, domain.StatusInvalid, got.Status)
	assert.ElementsMatch(t, []string{RuleOptionCount, RuleEmptyOption}, rules(got))
}

func TestValidate_ClozeRepairs(t *testing.T) {
	q := question(domain.NewClozeContent(domain.Cloze{
		Text:    "El plazo para apelar es de ___ días hábiles.",
		Answers: []string{"diez", "Diez", " "},
	}))

	without := NewValidationService().Validate(q, domain.LevelStrict, false)
	assert.Equal(t, domain.StatusInvalid, without.Status)

	got := NewValidationService().Validate(q, domain.LevelStrict, true)

	require.Equal(t, domain.StatusValidated, got.Status, rules(got))
	assert.Equal(t, []string{"diez"}, got.Content.Cloze.Answers)
	assert.Equal(t, "El plazo para apelar es de {{diez}} días hábiles.", got.Content.Cloze.Text)
}

func TestValidate_ClozeWithoutBlanks(t *testing.T) {
	q := question(domain.NewClozeContent(domain.Cloze{
		Text:    "El plazo para apelar es de diez días hábiles.",
		Answers: []string{"diez"},
	}))

	got := NewValidationService().Validate(q, domain.LevelLenient, true)

	assert.Equal(t, domain.StatusInvalid, got.Status)
	assert.Equal(t, []string{RuleNoBlanks}, rules(got))
}

func TestValidate_ClozeMoreBlanksThanAnswers(t *testing.T) {
	q := question(domain.NewClozeContent(domain.Cloze{
		Text:    "El {{plazo}} para {{apelar}} es de diez días hábiles.",
		Answers: []string{"plazo"},
	}))

	assert.Equal(t, domain.StatusInvalid, NewValidationService().Validate(q, domain.LevelStrict, true).Status)
	assert.Equal(t, domain.StatusValidated, NewValidationService().Validate(q, domain.LevelModerate, true).Status)
}

func TestValidate_MalformedContent(t *testing.T) {
	q := domain.Question{ID: "q", Type: domain.QuestionCloze, Content: domain.Content{Type: domain.QuestionCloze}}

	got := NewValidationService().Validate(q, domain.LevelLenient, true)

	assert.Equal(t, domain.StatusInvalid, got.Status)
	assert.Equal(t, []string{RuleMalformed}, rules(got))
}

func TestValidate_Idempotent(t *testing.T) {
	svc := NewValidationService()
	inputs := []domain.Question{
		flashcard("  Cuál es el plazo  para apelar", "Diez días hábiles desde la notificación."),
		flashcard("¿Plazo?", ""),
		question(domain.NewClozeContent(domain.Cloze{Text: "Plazo de ___ días para apelar.", Answers: []string{"diez", "diez"}})),
	}
	for _, level := range []domain.ValidationLevel{domain.LevelLenient, domain.LevelModerate, domain.LevelStrict} {
		for _, q := range inputs {
			once := svc.Validate(q, level, true)
			twice := svc.Validate(once, level, true)
			if once.Status == domain.StatusValidated {
				assert.Equal(t, once, twice)
			} else {
				assert.Equal(t, once.Status, twice.Status)
			}
		}
	}
}

func TestValidateAll_Summary(t *testing.T) {
	svc := NewValidationService()
	questions := []domain.Question{
		flashcard("¿Cuál es el plazo para apelar?", "Diez días hábiles desde la notificación."),
		flashcard("Cuál es el plazo para apelar", "Diez días hábiles desde la notificación."),
		flashcard("¿Plazo?", "Diez días hábiles desde la notificación."),
		question(domain.NewTrueFalseContent(domain.TrueFalse{Statement: "El plazo es de diez días hábiles."})),
	}

	out, summary := svc.ValidateAll(questions, domain.LevelStrict, true)

	require.Len(t, out, 4)
	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 2, summary.Validated)
	assert.Equal(t, 2, summary.Invalid)
	assert.Equal(t, 1, summary.Fixed)
	assert.Equal(t, 1, summary.ByRule[RuleTooShort])
	assert.Equal(t, 1, summary.ByRule[RuleMissingJustify])
}
