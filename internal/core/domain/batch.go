package domain

import (
	"fmt"
	"strings"
	"time"
)

// MaxBisectDepth bounds how many times a batch is split after
// context-length failures before it is failed permanently.
const MaxBisectDepth = 3

// Batch is an ordered group of sections from a single document sent
// together in one generation request.
type Batch struct {
	// Index is the batch position in the run. Bisected halves get new indexes.
	Index int

	// Parent is the index of the batch this one was bisected from, or -1.
	Parent int

	// DocumentID identifies the single document all sections belong to.
	DocumentID string

	// Sections are the batch members in document order.
	Sections []Section

	// QuestionType is the type requested for the whole batch.
	QuestionType QuestionType

	// Provider and Model record the backend that served the batch.
	Provider AIProvider
	Model    string

	// Depth counts how many bisections produced this batch.
	Depth int
}

// Size returns the number of sections in the batch.
func (b Batch) Size() int {
	return len(b.Sections)
}

// SectionByRelativeID maps a 1-based position inside the batch to its
// section, defaulting to the first section when out of range.
func (b Batch) SectionByRelativeID(rel int) Section {
	if rel >= 1 && rel <= len(b.Sections) {
		return b.Sections[rel-1]
	}
	return b.Sections[0]
}

// BatchStatus tracks the outcome of a single batch.
type BatchStatus string

// Available batch statuses.
const (
	BatchPending    BatchStatus = "PENDING"
	BatchProcessing BatchStatus = "PROCESSING"
	BatchCompleted  BatchStatus = "COMPLETED"
	BatchFailed     BatchStatus = "FAILED"
	BatchPartial    BatchStatus = "PARTIAL"
	BatchCancelled  BatchStatus = "CANCELLED"
)

// BatchResult records what happened to one batch.
type BatchResult struct {
	Index      int
	DocumentID string
	Size       int
	Depth      int
	Status     BatchStatus
	Questions  int
	Dropped    []string
	Tokens     int
	Cost       float64
	FromCache  bool
	Latency    time.Duration
	Err        error
}

// GenerationReport aggregates the outcome of generating a set of batches.
type GenerationReport struct {
	Questions []Question
	Batches   []BatchResult
	Tokens    int
	Cost      float64
	Duration  time.Duration
}

// FailedBatches returns the results of batches that produced no questions due to an error.
func (r *GenerationReport) FailedBatches() []BatchResult {
	var failed []BatchResult
	for _, b := range r.Batches {
		if b.Status == BatchFailed {
			failed = append(failed, b)
		}
	}
	return failed
}

// CancelledBatches returns the results of batches never sent because the
// run was cancelled.
func (r *GenerationReport) CancelledBatches() []BatchResult {
	var cancelled []BatchResult
	for _, b := range r.Batches {
		if b.Status == BatchCancelled {
			cancelled = append(cancelled, b)
		}
	}
	return cancelled
}

// DroppedCount returns the number of per-question parse failures.
func (r *GenerationReport) DroppedCount() int {
	n := 0
	for _, b := range r.Batches {
		n += len(b.Dropped)
	}
	return n
}

// Summary renders the "N of M batches failed" line shown to operators.
func (r *GenerationReport) Summary() string {
	failed := r.FailedBatches()
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d of %d batches failed, %d of %d questions dropped",
		len(failed), len(r.Batches), r.DroppedCount(), r.DroppedCount()+len(r.Questions))
	if cancelled := len(r.CancelledBatches()); cancelled > 0 {
		fmt.Fprintf(&sb, ", %d cancelled", cancelled)
	}
	if len(failed) > 0 {
		reasons := make([]string, 0, len(failed))
		for _, b := range failed {
			reasons = append(reasons, fmt.Sprintf("batch %d: %v", b.Index, b.Err))
		}
		sb.WriteString(", reasons: ")
		sb.WriteString(strings.Join(reasons, "; "))
	}
	return sb.String()
}
