// Package defaults embeds the built-in prompt templates, one directory per
// question type.
package defaults

import "embed"

// FS holds <type>/v<major>.<minor>.md templates.
//
//go:embed flashcard/*.md true_false/*.md multiple_choice/*.md cloze/*.md
var FS embed.FS
