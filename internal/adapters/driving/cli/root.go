// Package cli provides the lexcards command line interface.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/lexcards-cli/internal/core/ports/driving"
	"github.com/custodia-labs/lexcards-cli/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

var verbose bool

// Services wired in by main.
var (
	settingsService       driving.SettingsService
	pipelineService       driving.PipelineService
	libraryService        driving.LibraryService
	classificationService driving.ClassificationService
	validationService     driving.ValidationService
)

// Services groups the driving ports the commands use.
type Services struct {
	Settings       driving.SettingsService
	Pipeline       driving.PipelineService
	Library        driving.LibraryService
	Classification driving.ClassificationService
	Validation     driving.ValidationService
}

var rootCmd = &cobra.Command{
	Use:   "lexcards",
	Short: "Turn legal PDFs into study questions",
	Long: `lexcards extracts the sections of a legal PDF, scores them for study
relevance, generates questions with an LLM and validates the result.

Run 'lexcards settings llm' first to configure a provider, then
'lexcards run <file.pdf>' to process a document end to end.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if verbose {
			logger.SetVerbose(true)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// SetServices wires the services used by the commands.
func SetServices(s Services) {
	settingsService = s.Settings
	pipelineService = s.Pipeline
	libraryService = s.Library
	classificationService = s.Classification
	validationService = s.Validation
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
