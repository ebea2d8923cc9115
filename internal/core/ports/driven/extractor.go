package driven

import (
	"context"

	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
)

// Extraction is the result of reading one PDF.
type Extraction struct {
	Document domain.Document
	Sections []domain.Section
}

// Extractor turns a PDF file into a document and its sections.
type Extractor interface {
	// Hash returns the content hash of the file without extracting it,
	// so callers can skip already indexed documents.
	Hash(path string) (string, error)

	// Extract reads the file and splits it into sections.
	Extract(ctx context.Context, path string) (*Extraction, error)
}
