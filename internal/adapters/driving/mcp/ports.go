package mcp

import (
	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
	"github.com/custodia-labs/lexcards-cli/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Library lists documents and questions.
	Library driving.LibraryService

	// Classification scores text for study relevance.
	Classification driving.ClassificationService

	// Validation checks questions against the per-type rules.
	Validation driving.ValidationService

	// Pipeline reports per-document progress.
	Pipeline driving.PipelineService

	// Settings supplies weights, thresholds and the validation level.
	Settings driving.SettingsService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Library == nil {
		return ErrMissingLibraryService
	}
	return nil
}

// settings returns the stored settings, or defaults when none are wired.
func (p *Ports) settings() domain.AppSettings {
	if p.Settings != nil {
		if s, err := p.Settings.Get(); err == nil {
			return *s
		}
	}
	return domain.DefaultAppSettings()
}
