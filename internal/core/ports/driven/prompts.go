package driven

import "github.com/custodia-labs/lexcards-cli/internal/core/domain"

// PromptTemplate is a resolved, versioned prompt pair for one question type.
type PromptTemplate struct {
	// QuestionType is the type the template generates.
	QuestionType domain.QuestionType

	// Version is the resolved template version, e.g. "v1.2".
	Version string

	// System is the fixed system prompt for the question type.
	System string

	// User is the user prompt template. It is rendered with the batch data
	// (see services.PromptData).
	User string
}

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files, embed them in the binary,
// or fetch them from a remote configuration service.
type PromptStore interface {
	// Resolve returns the template for a question type and version.
	// An empty version resolves to the active version, or the highest
	// available when none is marked active.
	Resolve(qtype domain.QuestionType, version string) (PromptTemplate, error)

	// Versions lists available versions for a question type, ascending.
	Versions(qtype domain.QuestionType) ([]string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	// This is useful when prompts may have been edited on disk.
	Reload()
}
