// Package pdf extracts legal documents from PDF files with pdfcpu and
// splits them into sections on article and chapter headings.
package pdf

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
	"github.com/custodia-labs/lexcards-cli/internal/core/ports/driven"
	"github.com/custodia-labs/lexcards-cli/internal/logger"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// ErrNoText is returned for PDFs without any extractable text, typically
// scanned documents.
var ErrNoText = errors.New("no text content found in PDF")

// Config tunes sectioning.
type Config struct {
	// MinSectionLength drops sections with fewer characters.
	MinSectionLength int

	// MergeBelow appends untitled page sections shorter than this to the
	// previous section.
	MergeBelow int
}

// DefaultConfig returns the default sectioning parameters.
func DefaultConfig() Config {
	return Config{MinSectionLength: 50, MergeBelow: 200}
}

// Extractor reads PDF files from the local filesystem.
type Extractor struct {
	cfg Config
	now func() time.Time
}

// NewExtractor creates an extractor. Zero config values take defaults.
func NewExtractor(cfg Config) *Extractor {
	def := DefaultConfig()
	if cfg.MinSectionLength <= 0 {
		cfg.MinSectionLength = def.MinSectionLength
	}
	if cfg.MergeBelow < 0 {
		cfg.MergeBelow = 0
	} else if cfg.MergeBelow == 0 {
		cfg.MergeBelow = def.MergeBelow
	}
	return &Extractor{cfg: cfg, now: time.Now}
}

// Hash returns the hex sha256 of the file contents.
func (e *Extractor) Hash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Extract reads the PDF and splits it into sections.
func (e *Extractor) Extract(ctx context.Context, path string) (*driven.Extraction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hash, err := e.Hash(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	pdfCtx, err := api.ReadValidateAndOptimize(f, model.NewDefaultConfiguration())
	if err != nil {
		return nil, fmt.Errorf("read pdf %s: %w", filepath.Base(path), err)
	}

	pages := make([]string, pdfCtx.PageCount)
	for nr := 1; nr <= pdfCtx.PageCount; nr++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pages[nr-1] = pageText(pdfCtx, nr)
	}

	sections := segment(pages, e.cfg)
	if len(sections) == 0 {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrNoText)
	}

	docID := domain.DocumentIDFromHash(hash)
	for i := range sections {
		sections[i].DocumentID = docID
	}
	logger.Debug("pdf %s: %d page(s), %d section(s)", filepath.Base(path), pdfCtx.PageCount, len(sections))

	return &driven.Extraction{
		Document: domain.Document{
			ID:           docID,
			Hash:         hash,
			Path:         path,
			Name:         filepath.Base(path),
			TotalPages:   pdfCtx.PageCount,
			SectionCount: len(sections),
			ProcessedAt:  e.now(),
		},
		Sections: sections,
	}, nil
}

// pageText returns the text of one page, or "" when its content stream
// cannot be read.
func pageText(pdfCtx *model.Context, nr int) string {
	r, err := pdfcpu.ExtractPageContent(pdfCtx, nr)
	if err != nil {
		logger.Debug("page %d: %v", nr, err)
		return ""
	}
	if r == nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil {
		logger.Debug("page %d: %v", nr, err)
		return ""
	}
	return streamText(data)
}
