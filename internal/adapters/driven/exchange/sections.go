package exchange

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
)

// sectionColumns is the CSV layout. The last four columns hold the
// classification sub-scores.
var sectionColumns = []string{
	"id",
	"document_id",
	"title",
	"page",
	"text",
	"text_length",
	"coord_x",
	"coord_y",
	"coord_width",
	"coord_height",
	"semantic_autonomy",
	"legal_relevance",
	"concept_density",
	"context_coherence",
}

const csvSeparator = ';'

// ExportCSV writes sections with their classification sub-scores.
func (c *Codec) ExportCSV(w io.Writer, classified []domain.ClassifiedSection) error {
	cw := csv.NewWriter(w)
	cw.Comma = csvSeparator

	if err := cw.Write(sectionColumns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, cs := range classified {
		s, r := cs.Section, cs.Result
		record := []string{
			strconv.Itoa(s.ID),
			s.DocumentID,
			s.Title,
			strconv.Itoa(s.Page),
			s.Text,
			strconv.Itoa(s.TextLength()),
			formatFloat(s.BBox.X),
			formatFloat(s.BBox.Y),
			formatFloat(s.BBox.Width),
			formatFloat(s.BBox.Height),
			formatFloat(r.SemanticFitness),
			formatFloat(r.LegalRelevance),
			formatFloat(r.ConceptualDensity),
			formatFloat(r.ContextualClarity),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write section %d: %w", s.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// ImportCSV reads sections, assigning them to documentID. Columns are
// matched by header name; only id and text are required.
func (c *Codec) ImportCSV(r io.Reader, documentID string) ([]domain.Section, error) {
	cr := csv.NewReader(r)
	cr.Comma = csvSeparator
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty csv", domain.ErrInvalidInput)
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, required := range []string{"id", "text"} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("%w: csv is missing column %q", domain.ErrInvalidInput, required)
		}
	}

	field := func(record []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var sections []domain.Section
	seen := make(map[int]struct{})
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}

		id, err := strconv.Atoi(field(record, "id"))
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("%w: line %d: invalid id %q", domain.ErrInvalidInput, line, field(record, "id"))
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: line %d: duplicate id %d", domain.ErrInvalidInput, line, id)
		}
		seen[id] = struct{}{}

		page, _ := strconv.Atoi(field(record, "page"))
		if page <= 0 {
			page = 1
		}
		sections = append(sections, domain.Section{
			ID:         id,
			DocumentID: documentID,
			Title:      field(record, "title"),
			Text:       field(record, "text"),
			Page:       page,
			BBox: domain.BoundingBox{
				X:      parseFloat(field(record, "coord_x")),
				Y:      parseFloat(field(record, "coord_y")),
				Width:  parseFloat(field(record, "coord_width")),
				Height: parseFloat(field(record, "coord_height")),
			},
		})
	}
	return sections, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil {
		return 0
	}
	return v
}
