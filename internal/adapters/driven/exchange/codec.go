// Package exchange reads and writes questions and sections in the file
// formats lexcards exchanges with other tools.
package exchange

import (
	"fmt"
	"io"
	"time"

	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
	"github.com/custodia-labs/lexcards-cli/internal/core/ports/driven"
)

// Ensure Codec implements the interfaces.
var (
	_ driven.QuestionCodec = (*Codec)(nil)
	_ driven.SectionCodec  = (*Codec)(nil)
)

// Codec implements question export/import and section CSV exchange.
type Codec struct {
	now func() time.Time
}

// NewCodec creates a codec.
func NewCodec() *Codec {
	return &Codec{now: time.Now}
}

// Export writes questions in the given format.
func (c *Codec) Export(w io.Writer, format driven.ExportFormat, questions []domain.Question) error {
	switch format {
	case driven.FormatInternal:
		return c.writeInternal(w, questions)
	case driven.FormatAnki:
		return writeAnki(w, questions)
	case driven.FormatMochi:
		return writeMochi(w, questions)
	case driven.FormatXLSX:
		return writeXLSX(w, questions)
	default:
		return domain.NewConfigurationError("format", "unknown export format %q", format)
	}
}

// Import reads questions written in the internal format.
func (c *Codec) Import(r io.Reader) ([]domain.Question, error) {
	questions, err := c.readInternal(r)
	if err != nil {
		return nil, fmt.Errorf("import questions: %w", err)
	}
	return questions, nil
}
