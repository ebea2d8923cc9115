package exchange

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
)

// questionSheet is the worksheet name of the XLSX export.
const questionSheet = "Preguntas"

var xlsxHeaders = []string{
	"ID",
	"Documento",
	"Sección",
	"Tipo",
	"Pregunta",
	"Respuesta",
	"Opciones",
	"Justificación",
	"Dificultad",
	"Etiquetas",
	"Estado",
	"Proveedor",
	"Modelo",
	"Creada",
}

// writeXLSX writes one row per question.
func writeXLSX(w io.Writer, questions []domain.Question) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), questionSheet); err != nil {
		return fmt.Errorf("xlsx sheet: %w", err)
	}

	for i, h := range xlsxHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(questionSheet, cell, h); err != nil {
			return fmt.Errorf("xlsx header: %w", err)
		}
	}

	for r, q := range questions {
		row := r + 2
		values := []any{
			q.ID,
			q.Origin.DocumentID,
			q.Origin.SectionID,
			q.Type.Label(),
			q.Content.Prompt(),
			q.Content.AnswerText(),
			options(q.Content),
			justification(q.Content),
			string(q.Metadata.Difficulty),
			strings.Join(q.Metadata.Tags, ", "),
			string(q.Status),
			string(q.Provider),
			q.Model,
			q.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(questionSheet, cell, v); err != nil {
				return fmt.Errorf("xlsx row %d: %w", row, err)
			}
		}
	}

	_ = f.SetColWidth(questionSheet, "A", "A", 38)
	_ = f.SetColWidth(questionSheet, "E", "F", 60)
	_ = f.SetColWidth(questionSheet, "G", "H", 48)
	if err := f.SetPanes(questionSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return fmt.Errorf("xlsx panes: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

func options(c domain.Content) string {
	if c.MultipleChoice == nil {
		return ""
	}
	parts := make([]string, len(c.MultipleChoice.Options))
	for i, o := range c.MultipleChoice.Options {
		parts[i] = fmt.Sprintf("%c) %s", 'a'+rune(i), o)
	}
	return strings.Join(parts, "\n")
}

func justification(c domain.Content) string {
	switch {
	case c.TrueFalse != nil:
		return c.TrueFalse.Justification
	case c.MultipleChoice != nil:
		return c.MultipleChoice.Justification
	}
	return ""
}
