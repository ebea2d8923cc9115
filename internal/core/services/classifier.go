package services

import (
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
	"github.com/custodia-labs/lexcards-cli/internal/core/ports/driving"
)

// Ensure ClassificationService implements the interface.
var _ driving.ClassificationService = (*ClassificationService)(nil)

// SectionText is the pre-processed view of a section shared by all scorers.
type SectionText struct {
	// Raw is the section text as extracted.
	Raw string

	// Folded is Raw lowercased with diacritics removed.
	Folded string

	// Title is the folded section title.
	Title string

	// Words are the letter/digit tokens of Folded.
	Words []string
}

// NewSectionText prepares a section for scoring.
func NewSectionText(s domain.Section) SectionText {
	folded := foldText(s.Text)
	return SectionText{
		Raw:    s.Text,
		Folded: folded,
		Title:  foldText(strings.TrimSpace(s.Title)),
		Words:  words(folded),
	}
}

// Scorer computes one sub-score in [0,1]. Scorers must be pure.
type Scorer func(st SectionText) float64

// ConservationRule reports whether a section must be kept regardless of score.
type ConservationRule func(st SectionText) bool

// Scorers holds the four sub-score functions.
type Scorers struct {
	SemanticFitness   Scorer
	LegalRelevance    Scorer
	ConceptualDensity Scorer
	ContextualClarity Scorer
}

// DefaultScorers returns the lexical heuristics for Spanish legal text.
func DefaultScorers() Scorers {
	return Scorers{
		SemanticFitness:   ScoreSemanticFitness,
		LegalRelevance:    ScoreLegalRelevance,
		ConceptualDensity: ScoreConceptualDensity,
		ContextualClarity: ScoreContextualClarity,
	}
}

// ClassifierOption customises a ClassificationService.
type ClassifierOption func(*ClassificationService)

// WithScorers replaces the sub-score functions. Nil fields keep the default.
func WithScorers(s Scorers) ClassifierOption {
	return func(c *ClassificationService) {
		if s.SemanticFitness != nil {
			c.scorers.SemanticFitness = s.SemanticFitness
		}
		if s.LegalRelevance != nil {
			c.scorers.LegalRelevance = s.LegalRelevance
		}
		if s.ConceptualDensity != nil {
			c.scorers.ConceptualDensity = s.ConceptualDensity
		}
		if s.ContextualClarity != nil {
			c.scorers.ContextualClarity = s.ContextualClarity
		}
	}
}

// WithConservationRules replaces the conservation rules.
func WithConservationRules(rules ...ConservationRule) ClassifierOption {
	return func(c *ClassificationService) {
		c.rules = rules
	}
}

// ClassificationService scores sections against four weighted metrics.
// It holds no mutable state; all methods are safe for concurrent use.
type ClassificationService struct {
	scorers Scorers
	rules   []ConservationRule
}

// NewClassificationService creates a classifier with the default scorers
// and legal-structure conservation rule.
func NewClassificationService(opts ...ClassifierOption) *ClassificationService {
	c := &ClassificationService{
		scorers: DefaultScorers(),
		rules:   []ConservationRule{HasLegalStructureMarker},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify scores one section.
func (c *ClassificationService) Classify(
	section domain.Section,
	w domain.Weights,
	t domain.Thresholds,
) (domain.ClassificationResult, error) {
	if err := w.Validate(); err != nil {
		return domain.ClassificationResult{}, err
	}
	if err := t.Validate(); err != nil {
		return domain.ClassificationResult{}, err
	}
	return c.classify(NewSectionText(section), w, t), nil
}

// ClassifyAll scores every section and computes per-tier statistics.
func (c *ClassificationService) ClassifyAll(
	sections []domain.Section,
	w domain.Weights,
	t domain.Thresholds,
) ([]domain.ClassifiedSection, domain.ClassificationStats, error) {
	stats := domain.ClassificationStats{Counts: make(map[domain.Tier]int)}
	if err := w.Validate(); err != nil {
		return nil, stats, err
	}
	if err := t.Validate(); err != nil {
		return nil, stats, err
	}

	out := make([]domain.ClassifiedSection, 0, len(sections))
	var sum float64
	for _, s := range sections {
		r := c.classify(NewSectionText(s), w, t)
		out = append(out, domain.ClassifiedSection{Section: s, Result: r})
		stats.Counts[r.Tier]++
		sum += r.Composite
	}
	stats.Total = len(out)
	if stats.Total > 0 {
		stats.AverageScore = domain.Round4(sum / float64(stats.Total))
	}
	return out, stats, nil
}

func (c *ClassificationService) classify(st SectionText, w domain.Weights, t domain.Thresholds) domain.ClassificationResult {
	r := domain.ClassificationResult{
		SemanticFitness:   domain.Round4(domain.Clamp01(c.scorers.SemanticFitness(st))),
		LegalRelevance:    domain.Round4(domain.Clamp01(c.scorers.LegalRelevance(st))),
		ConceptualDensity: domain.Round4(domain.Clamp01(c.scorers.ConceptualDensity(st))),
		ContextualClarity: domain.Round4(domain.Clamp01(c.scorers.ContextualClarity(st))),
	}
	r.Composite = domain.Composite(w, r.SemanticFitness, r.LegalRelevance, r.ConceptualDensity, r.ContextualClarity)
	for _, rule := range c.rules {
		if rule(st) {
			r.Conserved = true
			break
		}
	}
	r.Tier = domain.TierFor(r.Composite, r.Conserved, t)
	return r
}

// HasLegalStructureMarker matches article, chapter, title and disposition
// headers at the start of a line in the title or the text.
func HasLegalStructureMarker(st SectionText) bool {
	for _, re := range conservationMarkers {
		if re.MatchString(st.Title) || re.MatchString(st.Folded) {
			return true
		}
	}
	return false
}

// ScoreSemanticFitness rewards texts of study-friendly length with varied
// vocabulary and complete sentences.
func ScoreSemanticFitness(st SectionText) float64 {
	var lengthScore float64
	switch n := utf8.RuneCountInString(st.Raw); {
	case n < 100:
		lengthScore = 0.2
	case n < 200:
		lengthScore = 0.5
	case n <= 1500:
		lengthScore = 1.0
	case n <= 3000:
		lengthScore = 0.8
	default:
		lengthScore = 0.6
	}

	var diversity float64
	if len(st.Words) > 0 {
		unique := make(map[string]struct{}, len(st.Words))
		for _, w := range st.Words {
			unique[w] = struct{}{}
		}
		diversity = float64(len(unique)) / float64(len(st.Words))
	}

	complete := 0
	for _, s := range sentenceSplit.Split(st.Raw, -1) {
		if utf8.RuneCountInString(strings.TrimSpace(s)) > 20 {
			complete++
		}
	}

	return lengthScore*0.4 + diversity*0.3 + ratio(complete, 3)*0.3
}

// ScoreLegalRelevance rewards legal vocabulary, explicit citations and
// article structure.
func ScoreLegalRelevance(st SectionText) float64 {
	if len(st.Words) == 0 {
		return 0
	}
	terms := 0
	for _, w := range st.Words {
		if _, ok := legalTerms[w]; ok {
			terms++
		}
	}
	density := domain.Clamp01(float64(terms) / (float64(len(st.Words)) * 0.1))

	structure := 0.3
	if articleStructure.MatchString(st.Folded) {
		structure = 1.0
	}

	return density*0.5 + ratio(countReferences(st.Folded), 3)*0.3 + structure*0.2
}

// ScoreConceptualDensity rewards definitions, enumerations, cross
// references and long or legal keywords.
func ScoreConceptualDensity(st SectionText) float64 {
	concepts := len(definitionRe.FindAllStringIndex(st.Folded, -1)) +
		len(enumerationRe.FindAllStringIndex(st.Folded, -1)) +
		countReferences(st.Folded)

	var keywordRatio float64
	if len(st.Words) > 0 {
		keywords := 0
		for _, w := range st.Words {
			if _, ok := legalTerms[w]; ok || utf8.RuneCountInString(w) > 8 {
				keywords++
			}
		}
		keywordRatio = domain.Clamp01(float64(keywords) / float64(len(st.Words)) / 0.3)
	}

	return ratio(concepts, 5)*0.6 + keywordRatio*0.4
}

// ScoreContextualClarity rewards a heading, logical connectors and
// paragraph structure.
func ScoreContextualClarity(st SectionText) float64 {
	titleScore := 0.5
	if st.Title != "" {
		titleScore = 1.0
	}

	padded := " " + strings.Join(st.Words, " ") + " "
	connectors := 0
	for _, c := range clarityIndicators {
		if containsPhrase(padded, c) {
			connectors++
		}
	}

	paragraphs := 0
	for _, p := range strings.Split(st.Raw, "\n\n") {
		if utf8.RuneCountInString(strings.TrimSpace(p)) > 50 {
			paragraphs++
		}
	}

	return titleScore*0.3 + ratio(connectors, 3)*0.4 + ratio(paragraphs, 2)*0.3
}

func countReferences(folded string) int {
	n := 0
	for _, re := range referencePatterns {
		n += len(re.FindAllStringIndex(folded, -1))
	}
	return n
}

// ratio returns n/max capped at 1.
func ratio(n, max int) float64 {
	return domain.Clamp01(float64(n) / float64(max))
}
