package driven

import (
	"io"

	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
)

// ExportFormat selects a question export layout.
type ExportFormat string

// Supported export formats.
const (
	// FormatInternal is the lossless JSON format; it can be imported back.
	FormatInternal ExportFormat = "internal"

	// FormatAnki is a JSON card list for Anki import (flashcard and true/false only).
	FormatAnki ExportFormat = "anki"

	// FormatMochi is the Mochi cards JSON format.
	FormatMochi ExportFormat = "mochi"

	// FormatXLSX is a spreadsheet with one row per question.
	FormatXLSX ExportFormat = "xlsx"
)

// IsValid returns true if the format is recognised.
func (f ExportFormat) IsValid() bool {
	switch f {
	case FormatInternal, FormatAnki, FormatMochi, FormatXLSX:
		return true
	default:
		return false
	}
}

// QuestionCodec writes questions in export formats and reads the internal format back.
type QuestionCodec interface {
	// Export writes questions in the given format.
	Export(w io.Writer, format ExportFormat, questions []domain.Question) error

	// Import reads questions written in FormatInternal.
	Import(r io.Reader) ([]domain.Question, error)
}

// SectionCodec reads and writes sections as delimited text.
type SectionCodec interface {
	// ImportCSV reads sections, assigning them to documentID.
	ImportCSV(r io.Reader, documentID string) ([]domain.Section, error)

	// ExportCSV writes sections with their classification sub-scores.
	ExportCSV(w io.Writer, classified []domain.ClassifiedSection) error
}
