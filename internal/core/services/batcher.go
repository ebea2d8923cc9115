package services

import (
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
)

// DefaultBatchSize is used when adaptive sizing has no sections to measure.
const DefaultBatchSize = 10

// BuildBatches groups sections into batches of at most batchSize, in
// document order. A batchSize below 1 selects AdaptiveBatchSize. Sections
// from another document are rejected.
func BuildBatches(
	documentID string,
	sections []domain.Section,
	batchSize int,
	qtype domain.QuestionType,
) ([]domain.Batch, error) {
	if !qtype.IsValid() {
		return nil, domain.NewConfigurationError("generation.question_type", "unknown question type %q", qtype)
	}
	for _, s := range sections {
		if s.DocumentID != documentID {
			return nil, fmt.Errorf("section %d belongs to document %q, not %q: %w",
				s.ID, s.DocumentID, documentID, domain.ErrInvalidInput)
		}
	}
	if batchSize < 1 {
		batchSize = AdaptiveBatchSize(sections)
	}

	batches := make([]domain.Batch, 0, (len(sections)+batchSize-1)/batchSize)
	for start := 0; start < len(sections); start += batchSize {
		end := min(start+batchSize, len(sections))
		batches = append(batches, domain.Batch{
			Index:        len(batches),
			Parent:       -1,
			DocumentID:   documentID,
			Sections:     append([]domain.Section(nil), sections[start:end]...),
			QuestionType: qtype,
		})
	}
	return batches, nil
}

// AdaptiveBatchSize picks a batch size from the 90th percentile of
// section lengths so that long sections travel in small batches.
func AdaptiveBatchSize(sections []domain.Section) int {
	if len(sections) == 0 {
		return DefaultBatchSize
	}
	lengths := make([]int, len(sections))
	for i, s := range sections {
		lengths[i] = utf8.RuneCountInString(s.Text)
	}
	sort.Ints(lengths)
	p90 := lengths[min(len(lengths)-1, len(lengths)*9/10)]

	switch {
	case p90 > 5000:
		return 2
	case p90 > 3000:
		return 3
	case p90 > 1500:
		return 5
	default:
		return DefaultBatchSize
	}
}

// Bisect splits a batch into two halves, the first taking the extra
// section of an odd batch. It reports false when the batch cannot be
// split further: a single section or the maximum depth reached.
func Bisect(b domain.Batch) (domain.Batch, domain.Batch, bool) {
	if b.Size() < 2 || b.Depth >= domain.MaxBisectDepth {
		return domain.Batch{}, domain.Batch{}, false
	}
	mid := (b.Size() + 1) / 2

	left, right := b, b
	left.Parent, right.Parent = b.Index, b.Index
	left.Depth, right.Depth = b.Depth+1, b.Depth+1
	left.Sections = append([]domain.Section(nil), b.Sections[:mid]...)
	right.Sections = append([]domain.Section(nil), b.Sections[mid:]...)
	return left, right, true
}
