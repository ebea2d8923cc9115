package domain

import "math"

// Tier is the discrete relevance classification of a section.
type Tier string

// Available tiers.
const (
	// TierRelevant sections score at or above the relevant threshold.
	TierRelevant Tier = "RELEVANT"

	// TierReviewNeeded sections score between the review and relevant thresholds.
	TierReviewNeeded Tier = "REVIEW_NEEDED"

	// TierAutoConserved sections would be discarded by score but carry a
	// legal-structure marker that forces them to be kept.
	TierAutoConserved Tier = "AUTO_CONSERVED"

	// TierDiscardable sections score below the review threshold.
	TierDiscardable Tier = "DISCARDABLE"
)

// IsValid returns true if the tier is recognised.
func (t Tier) IsValid() bool {
	switch t {
	case TierRelevant, TierReviewNeeded, TierAutoConserved, TierDiscardable:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (t Tier) String() string {
	return string(t)
}

// AllTiers returns every tier in descending relevance order.
func AllTiers() []Tier {
	return []Tier{TierRelevant, TierReviewNeeded, TierAutoConserved, TierDiscardable}
}

// weightTolerance absorbs floating point error when checking the weight sum.
const weightTolerance = 1e-6

// Weights are the composite-score weights for the four sub-scores.
type Weights struct {
	SemanticFitness   float64
	LegalRelevance    float64
	ConceptualDensity float64
	ContextualClarity float64
}

// DefaultWeights returns the standard 0.30/0.40/0.20/0.10 weighting.
func DefaultWeights() Weights {
	return Weights{
		SemanticFitness:   0.30,
		LegalRelevance:    0.40,
		ConceptualDensity: 0.20,
		ContextualClarity: 0.10,
	}
}

// Validate checks that every weight is within [0,1] and that they sum to 1.0.
func (w Weights) Validate() error {
	parts := map[string]float64{
		"semantic_fitness":   w.SemanticFitness,
		"legal_relevance":    w.LegalRelevance,
		"conceptual_density": w.ConceptualDensity,
		"contextual_clarity": w.ContextualClarity,
	}
	for name, v := range parts {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return NewConfigurationError("weights."+name, "must be within [0,1], got %v", v)
		}
	}
	sum := w.SemanticFitness + w.LegalRelevance + w.ConceptualDensity + w.ContextualClarity
	if math.Abs(sum-1.0) > weightTolerance {
		return NewConfigurationError("weights", "must sum to 1.0, got %.4f", sum)
	}
	return nil
}

// Thresholds are the tier cut-off points on the composite score.
type Thresholds struct {
	Relevant float64
	Review   float64
}

// DefaultThresholds returns relevant 0.7 and review 0.5.
func DefaultThresholds() Thresholds {
	return Thresholds{Relevant: 0.7, Review: 0.5}
}

// Validate checks 0 <= Review <= Relevant <= 1.
func (t Thresholds) Validate() error {
	if math.IsNaN(t.Relevant) || math.IsNaN(t.Review) {
		return NewConfigurationError("thresholds", "must be numbers")
	}
	if t.Review < 0 || t.Relevant > 1 {
		return NewConfigurationError("thresholds", "must be within [0,1], got review=%v relevant=%v",
			t.Review, t.Relevant)
	}
	if t.Review > t.Relevant {
		return NewConfigurationError("thresholds", "review (%v) must not exceed relevant (%v)",
			t.Review, t.Relevant)
	}
	return nil
}

// ClassificationResult holds the four sub-scores of a section and the
// derived composite and tier.
type ClassificationResult struct {
	// SemanticFitness (AS) measures whether the text stands on its own.
	SemanticFitness float64

	// LegalRelevance (RJ) measures legal vocabulary, citations and article structure.
	LegalRelevance float64

	// ConceptualDensity (DC) measures definitions, enumerations and cross references.
	ConceptualDensity float64

	// ContextualClarity (CC) measures titles, connectors and paragraph structure.
	ContextualClarity float64

	// Composite is the weighted sum of the sub-scores.
	Composite float64

	// Conserved is true when the section matched a conservation rule.
	Conserved bool

	// Tier is derived from Composite, Conserved and the active thresholds.
	Tier Tier
}

// Composite computes the weighted sum of four sub-scores, clamped to [0,1]
// and rounded to four decimals.
func Composite(w Weights, as, rj, dc, cc float64) float64 {
	c := w.SemanticFitness*Clamp01(as) +
		w.LegalRelevance*Clamp01(rj) +
		w.ConceptualDensity*Clamp01(dc) +
		w.ContextualClarity*Clamp01(cc)
	return Round4(Clamp01(c))
}

// TierFor maps a composite score to a tier. A section carrying a
// conservation marker is always AUTO_CONSERVED, whatever its score.
func TierFor(composite float64, conserved bool, t Thresholds) Tier {
	switch {
	case conserved:
		return TierAutoConserved
	case composite >= t.Relevant:
		return TierRelevant
	case composite >= t.Review:
		return TierReviewNeeded
	default:
		return TierDiscardable
	}
}

// Retier recomputes the tier of a stored result against new thresholds.
func (r ClassificationResult) Retier(t Thresholds) ClassificationResult {
	r.Tier = TierFor(r.Composite, r.Conserved, t)
	return r
}

// IsKept returns true for tiers that flow on to generation.
// REVIEW_NEEDED sections are kept only when includeReview is set.
func (t Tier) IsKept(includeReview bool) bool {
	switch t {
	case TierRelevant, TierAutoConserved:
		return true
	case TierReviewNeeded:
		return includeReview
	default:
		return false
	}
}

// ClassificationStats summarises a classification run.
type ClassificationStats struct {
	Total        int
	Counts       map[Tier]int
	AverageScore float64
}

// Clamp01 restricts v to [0,1]; NaN becomes 0.
func Clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// Round4 rounds v to four decimal places.
func Round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
