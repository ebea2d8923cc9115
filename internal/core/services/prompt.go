package services

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
	"github.com/custodia-labs/lexcards-cli/internal/core/ports/driven"
)

// PromptData is the value a user prompt template is executed with.
type PromptData struct {
	// Header introduces the document context and section count.
	Header string

	// Sections is the formatted block of every batch section.
	Sections string

	// Footer holds the closing instructions.
	Footer string

	// Count is the number of sections in the batch.
	Count int

	// TypeLabel is the display name of the requested question type.
	TypeLabel string

	// Constraints are type-specific output rules, one per line.
	Constraints string

	// DocumentID identifies the source document.
	DocumentID string
}

// sectionHeadings are the per-type labels above each section text.
var sectionHeadings = map[domain.QuestionType]string{
	domain.QuestionFlashcard:      "Texto",
	domain.QuestionTrueFalse:      "Contenido",
	domain.QuestionMultipleChoice: "Material de referencia",
	domain.QuestionCloze:          "Texto base",
}

// typeConstraints are appended to the footer for each question type.
var typeConstraints = map[domain.QuestionType][]string{
	domain.QuestionFlashcard: {
		"- El anverso debe ser una pregunta que termine en \"?\".",
	},
	domain.QuestionTrueFalse: {
		"- Cada afirmación debe incluir una justificación basada en el texto.",
	},
	domain.QuestionMultipleChoice: {
		"- Cada pregunta debe tener exactamente 4 opciones distintas.",
		"- correct_index es la posición (0 a 3) de la opción correcta.",
	},
	domain.QuestionCloze: {
		"- Marca cada espacio con {{respuesta}} y lista las respuestas en orden.",
	},
}

const promptFooter = `## Instrucciones finales

- Genera preguntas únicamente basadas en el texto proporcionado.
- No inventes información que no esté en las secciones.
- Asegúrate de que cada pregunta tenga una única respuesta correcta.
- Indica en "section_id" el número de sección de origen.
%s
**Responde en formato JSON.**
`

// NewPromptData builds the template data for a batch.
func NewPromptData(b domain.Batch) PromptData {
	heading, ok := sectionHeadings[b.QuestionType]
	if !ok {
		heading = sectionHeadings[domain.QuestionFlashcard]
	}

	var sections strings.Builder
	for i, s := range b.Sections {
		fmt.Fprintf(&sections, "### Sección %d: %s\n**Página:** %s\n**%s:**\n%s\n---\n\n",
			i+1, s.DisplayTitle(), pageLabel(s.Page), heading, cleanPromptText(s.Text))
	}

	constraints := strings.Join(typeConstraints[b.QuestionType], "\n")
	label := b.QuestionType.Label()

	return PromptData{
		Header: fmt.Sprintf("# Contexto del documento\n\nA continuación se presentan %d secciones de un documento legal.\n"+
			"Genera preguntas de tipo **%s** basándote en el contenido.\n\n---\n", b.Size(), label),
		Sections:    sections.String(),
		Footer:      fmt.Sprintf(promptFooter, constraints),
		Count:       b.Size(),
		TypeLabel:   label,
		Constraints: constraints,
		DocumentID:  b.DocumentID,
	}
}

// RenderPrompt executes a template against a batch and returns the
// completion request to send.
func RenderPrompt(tmpl driven.PromptTemplate, b domain.Batch, params domain.GenerationParams) (driven.CompletionRequest, error) {
	t, err := template.New(string(tmpl.QuestionType) + "@" + tmpl.Version).
		Option("missingkey=error").
		Parse(tmpl.User)
	if err != nil {
		return driven.CompletionRequest{}, fmt.Errorf("parse prompt %s %s: %w", tmpl.QuestionType, tmpl.Version, err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, NewPromptData(b)); err != nil {
		return driven.CompletionRequest{}, fmt.Errorf("render prompt %s %s: %w", tmpl.QuestionType, tmpl.Version, err)
	}

	return driven.CompletionRequest{
		System: tmpl.System,
		Prompt: buf.String(),
		Params: params,
	}, nil
}

// EstimateTokens approximates the token count of a text at four
// characters per token.
func EstimateTokens(text string) int {
	return len(text) / 4
}

func cleanPromptText(text string) string {
	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

// pageLabel formats an optional page number.
func pageLabel(page int) string {
	if page <= 0 {
		return "-"
	}
	return strconv.Itoa(page)
}
