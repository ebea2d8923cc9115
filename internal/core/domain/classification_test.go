package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeights_Validate(t *testing.T) {
	tests := []struct {
		name    string
		weights Weights
		wantErr bool
	}{
		{"defaults", DefaultWeights(), false},
		{"equal quarters", Weights{0.25, 0.25, 0.25, 0.25}, false},
		{"all on legal", Weights{0, 1, 0, 0}, false},
		{"sum too low", Weights{0.3, 0.4, 0.2, 0.0}, true},
		{"sum too high", Weights{0.5, 0.5, 0.2, 0.1}, true},
		{"negative", Weights{-0.1, 0.6, 0.4, 0.1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.weights.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrConfiguration))
				var cfgErr *ConfigurationError
				assert.True(t, errors.As(err, &cfgErr))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestThresholds_Validate(t *testing.T) {
	assert.NoError(t, DefaultThresholds().Validate())
	assert.NoError(t, Thresholds{Relevant: 0.5, Review: 0.5}.Validate())
	assert.ErrorIs(t, Thresholds{Relevant: 0.4, Review: 0.5}.Validate(), ErrConfiguration)
	assert.ErrorIs(t, Thresholds{Relevant: 1.2, Review: 0.5}.Validate(), ErrConfiguration)
	assert.ErrorIs(t, Thresholds{Relevant: 0.7, Review: -0.1}.Validate(), ErrConfiguration)
}

func TestComposite_StaysInUnitRange(t *testing.T) {
	weightSets := []Weights{
		DefaultWeights(),
		{0.25, 0.25, 0.25, 0.25},
		{1, 0, 0, 0},
		{0, 0, 0, 1},
		{0.1, 0.2, 0.3, 0.4},
	}
	grid := []float64{0, 0.1, 0.33, 0.5, 0.77, 1}

	for _, w := range weightSets {
		require.NoError(t, w.Validate())
		for _, as := range grid {
			for _, rj := range grid {
				for _, dc := range grid {
					for _, cc := range grid {
						c := Composite(w, as, rj, dc, cc)
						assert.GreaterOrEqual(t, c, 0.0)
						assert.LessOrEqual(t, c, 1.0)
					}
				}
			}
		}
	}
}

func TestComposite_MonotonicInEachSubScore(t *testing.T) {
	w := DefaultWeights()
	grid := []float64{0, 0.2, 0.4, 0.6, 0.8, 1}
	base := []float64{0.1, 0.5, 0.9}

	for _, b := range base {
		for i := 1; i < len(grid); i++ {
			lo, hi := grid[i-1], grid[i]
			assert.LessOrEqual(t, Composite(w, lo, b, b, b), Composite(w, hi, b, b, b))
			assert.LessOrEqual(t, Composite(w, b, lo, b, b), Composite(w, b, hi, b, b))
			assert.LessOrEqual(t, Composite(w, b, b, lo, b), Composite(w, b, b, hi, b))
			assert.LessOrEqual(t, Composite(w, b, b, b, lo), Composite(w, b, b, b, hi))
		}
	}
}

func TestComposite_ClampsOutOfRangeSubScores(t *testing.T) {
	w := DefaultWeights()
	assert.Equal(t, 1.0, Composite(w, 2, 2, 2, 2))
	assert.Equal(t, 0.0, Composite(w, -1, -1, -1, -1))
}

func TestTierFor(t *testing.T) {
	th := DefaultThresholds()

	assert.Equal(t, TierRelevant, TierFor(0.7, false, th))
	assert.Equal(t, TierAutoConserved, TierFor(0.95, true, th))
	assert.Equal(t, TierReviewNeeded, TierFor(0.5, false, th))
	assert.Equal(t, TierAutoConserved, TierFor(0.69, true, th))
	assert.Equal(t, TierDiscardable, TierFor(0.49, false, th))
	assert.Equal(t, TierAutoConserved, TierFor(0.1, true, th))
	assert.Equal(t, TierAutoConserved, TierFor(0, true, th))
}

func TestClassificationResult_Retier(t *testing.T) {
	r := ClassificationResult{Composite: 0.6, Tier: TierReviewNeeded}

	loose := r.Retier(Thresholds{Relevant: 0.55, Review: 0.3})
	assert.Equal(t, TierRelevant, loose.Tier)

	strict := r.Retier(Thresholds{Relevant: 0.9, Review: 0.8})
	assert.Equal(t, TierDiscardable, strict.Tier)

	assert.Equal(t, TierReviewNeeded, r.Tier, "original must not change")
}

func TestTier_IsKept(t *testing.T) {
	assert.True(t, TierRelevant.IsKept(false))
	assert.True(t, TierAutoConserved.IsKept(false))
	assert.False(t, TierReviewNeeded.IsKept(false))
	assert.True(t, TierReviewNeeded.IsKept(true))
	assert.False(t, TierDiscardable.IsKept(true))
}
