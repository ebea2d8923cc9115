package services

import (
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
)

const articleText = `Artículo 15. Se entiende por plazo hábil el término dentro del cual
la parte demandante puede interponer el recurso de apelación ante el tribunal.

En consecuencia, cuando el plazo haya vencido, la resolución quedará firme
sin perjuicio de lo dispuesto en el artículo 20 de la Ley 1564.`

// fixedScorer returns the score registered for a section text.
func fixedScorer(scores map[string]float64) Scorer {
	return func(st SectionText) float64 {
		return scores[st.Raw]
	}
}

func uniformScorers(scores map[string]float64) Scorers {
	s := fixedScorer(scores)
	return Scorers{SemanticFitness: s, LegalRelevance: s, ConceptualDensity: s, ContextualClarity: s}
}

func TestClassificationService_Classify_IsPure(t *testing.T) {
	svc := NewClassificationService()
	section := domain.Section{ID: 1, Title: "Plazos", Text: articleText}

	first, err := svc.Classify(section, domain.DefaultWeights(), domain.DefaultThresholds())
	require.NoError(t, err)
	second, err := svc.Classify(section, domain.DefaultWeights(), domain.DefaultThresholds())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestClassificationService_Classify_ScoresInRange(t *testing.T) {
	svc := NewClassificationService()
	texts := []string{"", "x", articleText, strings.Repeat("palabra ", 1000)}

	for i, text := range texts {
		r, err := svc.Classify(domain.Section{ID: i, Text: text}, domain.DefaultWeights(), domain.DefaultThresholds())
		require.NoError(t, err)
		for _, v := range []float64{r.SemanticFitness, r.LegalRelevance, r.ConceptualDensity, r.ContextualClarity, r.Composite} {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	}
}

func TestClassificationService_Classify_LegalTextScoresHigherThanNoise(t *testing.T) {
	svc := NewClassificationService()
	w, th := domain.DefaultWeights(), domain.DefaultThresholds()

	legal, err := svc.Classify(domain.Section{Title: "Plazos", Text: articleText}, w, th)
	require.NoError(t, err)
	noise, err := svc.Classify(domain.Section{Text: "pagina 3 de 10"}, w, th)
	require.NoError(t, err)

	assert.Greater(t, legal.Composite, noise.Composite)
	assert.Greater(t, legal.LegalRelevance, noise.LegalRelevance)
	assert.True(t, legal.Conserved)
	assert.False(t, noise.Conserved)
}

func TestClassificationService_Classify_InvalidWeights(t *testing.T) {
	svc := NewClassificationService()
	w := domain.Weights{SemanticFitness: 0.5, LegalRelevance: 0.5, ConceptualDensity: 0.5, ContextualClarity: 0.5}

	_, err := svc.Classify(domain.Section{Text: articleText}, w, domain.DefaultThresholds())

	require.Error(t, err)
	var cfgErr *domain.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestClassificationService_Classify_InvalidThresholds(t *testing.T) {
	svc := NewClassificationService()

	_, err := svc.Classify(domain.Section{Text: articleText}, domain.DefaultWeights(),
		domain.Thresholds{Relevant: 0.4, Review: 0.6})

	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestClassificationService_Classify_ConservedLowScore(t *testing.T) {
	text := "Artículo 3. Derogado."
	svc := NewClassificationService(WithScorers(uniformScorers(map[string]float64{text: 0.1})))

	r, err := svc.Classify(domain.Section{Text: text}, domain.DefaultWeights(), domain.DefaultThresholds())

	require.NoError(t, err)
	assert.InDelta(t, 0.1, r.Composite, 1e-9)
	assert.True(t, r.Conserved)
	assert.Equal(t, domain.TierAutoConserved, r.Tier)
}

func TestClassificationService_Classify_MarkerInTitle(t *testing.T) {
	tests := []struct {
		name  string
		title string
		score float64
	}{
		{name: "low score", title: "CAPÍTULO II", score: 0.1},
		{name: "review band", title: "Artículo 5", score: 0.6},
		{name: "relevant band", title: "Artículo 5", score: 0.9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := "sin contenido relevante"
			svc := NewClassificationService(WithScorers(uniformScorers(map[string]float64{text: tt.score})))

			r, err := svc.Classify(domain.Section{Title: tt.title, Text: text}, domain.DefaultWeights(), domain.DefaultThresholds())

			require.NoError(t, err)
			assert.InDelta(t, tt.score, r.Composite, 1e-9)
			assert.True(t, r.Conserved)
			assert.Equal(t, domain.TierAutoConserved, r.Tier)
		})
	}
}

func TestClassificationService_Classify_NoRules(t *testing.T) {
	text := "Artículo 3. Derogado."
	svc := NewClassificationService(
		WithScorers(uniformScorers(map[string]float64{text: 0.1})),
		WithConservationRules(),
	)

	r, err := svc.Classify(domain.Section{Text: text}, domain.DefaultWeights(), domain.DefaultThresholds())

	require.NoError(t, err)
	assert.Equal(t, domain.TierDiscardable, r.Tier)
}

func TestClassificationService_ClassifyAll_TierCounts(t *testing.T) {
	scores := map[string]float64{}
	var sections []domain.Section
	add := func(score float64) {
		text := "seccion " + strconv.Itoa(len(sections))
		scores[text] = score
		sections = append(sections, domain.Section{ID: len(sections) + 1, Text: text})
	}
	for _, s := range []float64{0.95, 0.8, 0.72} {
		add(s)
	}
	for _, s := range []float64{0.6, 0.55} {
		add(s)
	}
	for _, s := range []float64{0.1, 0.2, 0.3, 0.4, 0.45} {
		add(s)
	}

	svc := NewClassificationService(WithScorers(uniformScorers(scores)))
	classified, stats, err := svc.ClassifyAll(sections, domain.DefaultWeights(), domain.DefaultThresholds())

	require.NoError(t, err)
	require.Len(t, classified, 10)
	assert.Equal(t, 10, stats.Total)
	assert.Equal(t, 3, stats.Counts[domain.TierRelevant])
	assert.Equal(t, 2, stats.Counts[domain.TierReviewNeeded])
	assert.Equal(t, 5, stats.Counts[domain.TierDiscardable])
	assert.Equal(t, 0, stats.Counts[domain.TierAutoConserved])
	assert.InDelta(t, 0.507, stats.AverageScore, 1e-4)

	for i, c := range classified {
		assert.Equal(t, sections[i].ID, c.Section.ID)
	}
}

func TestClassificationService_ClassifyAll_Empty(t *testing.T) {
	svc := NewClassificationService()

	classified, stats, err := svc.ClassifyAll(nil, domain.DefaultWeights(), domain.DefaultThresholds())

	require.NoError(t, err)
	assert.Empty(t, classified)
	assert.Equal(t, 0, stats.Total)
	assert.Zero(t, stats.AverageScore)
}

func TestClassificationService_ClassifyAll_ReweightChangesTier(t *testing.T) {
	text := "texto"
	svc := NewClassificationService(WithScorers(Scorers{
		SemanticFitness:   func(SectionText) float64 { return 1 },
		LegalRelevance:    func(SectionText) float64 { return 0 },
		ConceptualDensity: func(SectionText) float64 { return 0 },
		ContextualClarity: func(SectionText) float64 { return 0 },
	}))
	sections := []domain.Section{{ID: 1, Text: text}}

	balanced, _, err := svc.ClassifyAll(sections, domain.DefaultWeights(), domain.DefaultThresholds())
	require.NoError(t, err)
	skewed, _, err := svc.ClassifyAll(sections, domain.Weights{SemanticFitness: 1}, domain.DefaultThresholds())
	require.NoError(t, err)

	assert.Equal(t, domain.TierDiscardable, balanced[0].Result.Tier)
	assert.Equal(t, domain.TierRelevant, skewed[0].Result.Tier)
}

func TestScoreContextualClarity_TitleBonus(t *testing.T) {
	withTitle := ScoreContextualClarity(NewSectionText(domain.Section{Title: "Objeto", Text: "texto"}))
	without := ScoreContextualClarity(NewSectionText(domain.Section{Text: "texto"}))

	assert.InDelta(t, 0.3, withTitle, 1e-9)
	assert.InDelta(t, 0.15, without, 1e-9)
}

func TestScoreLegalRelevance_Empty(t *testing.T) {
	assert.Zero(t, ScoreLegalRelevance(NewSectionText(domain.Section{})))
}

func TestFoldText(t *testing.T) {
	assert.Equal(t, "articulo disposicion camion", foldText("ARTÍCULO Disposición camión"))
}

func TestHasLegalStructureMarker(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"Artículo 1. Objeto", true},
		{"  art. 45 bis", true},
		{"TÍTULO III\nDe las obligaciones", true},
		{"Disposición transitoria primera", true},
		{"según el artículo 5 de esta ley", false},
		{"texto sin estructura", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := HasLegalStructureMarker(NewSectionText(domain.Section{Text: tt.text}))
			assert.Equal(t, tt.want, got)
		})
	}
}
