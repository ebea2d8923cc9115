package exchange

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
)

type ankiCard struct {
	Front string   `json:"front"`
	Back  string   `json:"back"`
	Tags  []string `json:"tags"`
}

type mochiFile struct {
	Version int         `json:"version"`
	Cards   []mochiCard `json:"cards"`
}

type mochiCard struct {
	Content       string `json:"content"`
	ReviewReverse bool   `json:"review-reverse?"`
}

// writeAnki writes flashcards and true/false questions as front/back
// cards. Other types have no two-sided form and are skipped.
func writeAnki(w io.Writer, questions []domain.Question) error {
	cards := make([]ankiCard, 0, len(questions))
	for _, q := range questions {
		tags := q.Metadata.Tags
		if tags == nil {
			tags = []string{}
		}
		switch {
		case q.Content.Flashcard != nil:
			cards = append(cards, ankiCard{Front: q.Content.Flashcard.Front, Back: q.Content.Flashcard.Back, Tags: tags})
		case q.Content.TrueFalse != nil:
			tf := q.Content.TrueFalse
			back := q.Content.AnswerText()
			if tf.Justification != "" {
				back += ". " + tf.Justification
			}
			cards = append(cards, ankiCard{Front: "Verdadero o Falso: " + tf.Statement, Back: back, Tags: tags})
		}
	}
	return encodeJSON(w, cards, "anki")
}

// writeMochi writes every question as a "prompt\n---\nanswer" card.
func writeMochi(w io.Writer, questions []domain.Question) error {
	file := mochiFile{Version: 2, Cards: make([]mochiCard, 0, len(questions))}
	for _, q := range questions {
		file.Cards = append(file.Cards, mochiCard{Content: mochiContent(q.Content)})
	}
	return encodeJSON(w, file, "mochi")
}

func mochiContent(c domain.Content) string {
	prompt := c.Prompt()
	if mc := c.MultipleChoice; mc != nil {
		var sb strings.Builder
		sb.WriteString(prompt)
		for i, opt := range mc.Options {
			fmt.Fprintf(&sb, "\n%c) %s", 'a'+rune(i), opt)
		}
		prompt = sb.String()
	}
	return prompt + "\n---\n" + c.AnswerText()
}

func encodeJSON(w io.Writer, v any, what string) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write %s export: %w", what, err)
	}
	return nil
}
