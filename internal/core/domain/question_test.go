package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQuestionType_IsValid(t *testing.T) {
	for _, qt := range AllQuestionTypes() {
		assert.True(t, qt.IsValid(), qt)
		assert.NotEqual(t, unknownDescription, qt.Label())
	}
	assert.False(t, QuestionType("essay").IsValid())
}

func TestContent_CloneIsDeep(t *testing.T) {
	orig := NewMultipleChoiceContent(MultipleChoice{
		Question:     "¿Cuál?",
		Options:      []string{"a", "b", "c", "d"},
		CorrectIndex: 1,
	})

	clone := orig.Clone()
	clone.MultipleChoice.Options[0] = "changed"
	clone.MultipleChoice.CorrectIndex = 3

	assert.Equal(t, "a", orig.MultipleChoice.Options[0])
	assert.Equal(t, 1, orig.MultipleChoice.CorrectIndex)
}

func TestContent_AnswerText(t *testing.T) {
	assert.Equal(t, "back", NewFlashcardContent(Flashcard{Front: "f", Back: "back"}).AnswerText())
	assert.Equal(t, "Verdadero", NewTrueFalseContent(TrueFalse{Answer: true}).AnswerText())
	assert.Equal(t, "Falso", NewTrueFalseContent(TrueFalse{Answer: false}).AnswerText())
	assert.Equal(t, "c", NewMultipleChoiceContent(MultipleChoice{
		Options: []string{"a", "b", "c", "d"}, CorrectIndex: 2,
	}).AnswerText())
	assert.Empty(t, NewMultipleChoiceContent(MultipleChoice{
		Options: []string{"a", "b", "c", "d"}, CorrectIndex: 7,
	}).AnswerText())
	assert.Equal(t, "x, y", NewClozeContent(Cloze{Answers: []string{"x", "y"}}).AnswerText())
}

func TestDifficulty_InitialEase(t *testing.T) {
	assert.Equal(t, 2.7, ParseDifficulty("Básico").InitialEaseFactor())
	assert.Equal(t, 2.5, ParseDifficulty("intermedio").InitialEaseFactor())
	assert.Equal(t, 2.3, ParseDifficulty("avanzado").InitialEaseFactor())
	assert.Equal(t, DifficultyIntermediate, ParseDifficulty(""))
}

func TestNewSRS(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	srs := NewSRS(DifficultyAdvanced, now)

	assert.Equal(t, 2.3, srs.EaseFactor)
	assert.Zero(t, srs.Interval)
	assert.Zero(t, srs.Repetitions)
	assert.Equal(t, now, srs.DueDate)
}

func TestNormaliseTags(t *testing.T) {
	got := NormaliseTags([]string{"Derecho Civil", "derecho  civil", "", "  ", "Contratos"})
	assert.Equal(t, []string{"derecho_civil", "contratos"}, got)
}

func TestQuestion_ClonePreservesNilSlices(t *testing.T) {
	q := Question{ID: "q1", Content: NewFlashcardContent(Flashcard{Front: "a?", Back: "b"})}

	c := q.Clone()

	assert.Nil(t, c.Violations)
	assert.Nil(t, c.Metadata.Tags)
	assert.Equal(t, q, c)
}
