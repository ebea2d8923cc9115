package domain

import (
	"strconv"
	"time"
)

// BoundingBox locates a section on its page, in PDF user-space units.
type BoundingBox struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Section is a block of text extracted from a document.
// Sections are immutable once extracted; classification is attached
// separately through ClassifiedSection.
type Section struct {
	// ID is the ordinal position of the section inside its document.
	ID int

	// DocumentID identifies the parent document.
	DocumentID string

	// Title is the heading detected for the section, possibly empty.
	Title string

	// Text is the raw section text.
	Text string

	// Page is the 1-based page number the section starts on.
	Page int

	// BBox holds the section's coordinates when the extractor knows them.
	BBox BoundingBox
}

// TextLength returns the number of characters in the section text.
func (s Section) TextLength() int {
	return len([]rune(s.Text))
}

// DisplayTitle returns the title or a positional fallback.
func (s Section) DisplayTitle() string {
	if s.Title != "" {
		return s.Title
	}
	return "Sección " + strconv.Itoa(s.ID)
}

// ClassifiedSection pairs a section with its classification result.
type ClassifiedSection struct {
	Section Section
	Result  ClassificationResult
}

// Document is a source PDF tracked by content hash for idempotent re-processing.
type Document struct {
	// ID is the first 12 hex characters of Hash.
	ID string

	// Hash is the hex-encoded sha256 of the file contents.
	Hash string

	// Path is the source file path at extraction time.
	Path string

	// Name is the file base name.
	Name string

	// TotalPages is the page count reported by the PDF.
	TotalPages int

	// SectionCount is the number of sections extracted.
	SectionCount int

	// CreatedAt is when the document was first indexed.
	CreatedAt time.Time

	// ProcessedAt is when extraction last completed.
	ProcessedAt time.Time
}

// DocumentIDFromHash derives the short document identifier from a content hash.
func DocumentIDFromHash(hash string) string {
	if len(hash) <= 12 {
		return hash
	}
	return hash[:12]
}
