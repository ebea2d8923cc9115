package cli

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
	"github.com/custodia-labs/lexcards-cli/internal/core/ports/driving"
)

var runCmd = &cobra.Command{
	Use:   "run [file.pdf]",
	Short: "Run the full pipeline on a PDF",
	Long: `Extract, classify, generate and validate questions for a PDF.

Progress is stored per document after every stage. A PDF that was already
processed reuses its stored sections unless --force is given, and --resume
skips every stage recorded as complete.

Examples:
  lexcards run ley.pdf
  lexcards run ley.pdf --type multiple_choice --level strict
  lexcards run ley.pdf --resume
  lexcards run ley.pdf --skip extract,classify`,
	Args: cobra.ExactArgs(1),
	RunE: runPipeline,
}

var extractCmd = &cobra.Command{
	Use:   "extract [file.pdf]",
	Short: "Extract sections from a PDF",
	Args:  cobra.ExactArgs(1),
	RunE:  runExtract,
}

var classifyCmd = &cobra.Command{
	Use:   "classify [doc-id]",
	Short: "Score the sections of a document",
	Args:  cobra.ExactArgs(1),
	RunE:  stageRunner(domain.StageClassify),
}

var generateCmd = &cobra.Command{
	Use:   "generate [doc-id]",
	Short: "Generate questions for the relevant sections of a document",
	Args:  cobra.ExactArgs(1),
	RunE:  stageRunner(domain.StageGenerate),
}

var validateCmd = &cobra.Command{
	Use:   "validate [doc-id]",
	Short: "Validate and repair the questions of a document",
	Args:  cobra.ExactArgs(1),
	RunE:  stageRunner(domain.StageValidate),
}

var statusCmd = &cobra.Command{
	Use:   "status [doc-id]",
	Short: "Show the pipeline progress of a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

// runOptions holds the flags shared by the pipeline commands.
type runOptions struct {
	skip          string
	resume        bool
	force         bool
	stopOnError   bool
	questionType  string
	batchSize     int
	concurrency   int
	level         string
	noFix         bool
	noReview      bool
	promptVersion string
}

var runOpts runOptions

func init() {
	runCmd.Flags().StringVar(&runOpts.skip, "skip", "", "Comma separated stages to skip (extract,classify,generate,validate)")
	runCmd.Flags().BoolVar(&runOpts.resume, "resume", false, "Skip stages already completed for this document")
	runCmd.Flags().BoolVar(&runOpts.force, "force", false, "Re-extract even if the PDF was already processed")
	runCmd.Flags().BoolVar(&runOpts.stopOnError, "stop-on-error", false, "Stop at the first failed stage")
	extractCmd.Flags().BoolVar(&runOpts.force, "force", false, "Re-extract even if the PDF was already processed")

	for _, c := range []*cobra.Command{runCmd, classifyCmd, generateCmd, validateCmd} {
		addSettingFlags(c)
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(statusCmd)
}

func addSettingFlags(c *cobra.Command) {
	c.Flags().StringVarP(&runOpts.questionType, "type", "t", "",
		"Question type (flashcard, true_false, multiple_choice, cloze)")
	c.Flags().IntVar(&runOpts.batchSize, "batch-size", 0, "Sections per batch (0 = stored setting)")
	c.Flags().IntVar(&runOpts.concurrency, "concurrency", 0, "Batches generated in parallel (0 = stored setting)")
	c.Flags().StringVar(&runOpts.level, "level", "", "Validation level (lenient, moderate, strict)")
	c.Flags().BoolVar(&runOpts.noFix, "no-fix", false, "Disable automatic repair of invalid questions")
	c.Flags().BoolVar(&runOpts.noReview, "no-review", false, "Generate only from RELEVANT and AUTO_CONSERVED sections")
	c.Flags().StringVar(&runOpts.promptVersion, "prompt-version", "", "Prompt template version (default: active)")
}

// runSettings loads the stored settings and applies flag overrides.
func runSettings() (*domain.AppSettings, error) {
	var settings domain.AppSettings
	if settingsService != nil {
		stored, err := settingsService.Get()
		if err != nil {
			return nil, fmt.Errorf("failed to get settings: %w", err)
		}
		settings = *stored
	} else {
		settings = domain.DefaultAppSettings()
	}

	if runOpts.questionType != "" {
		qt := domain.QuestionType(strings.ToLower(runOpts.questionType))
		if !qt.IsValid() {
			return nil, domain.NewConfigurationError("type", "unknown question type %q", runOpts.questionType)
		}
		settings.Generation.QuestionType = qt
	}
	if runOpts.batchSize < 0 {
		return nil, domain.NewConfigurationError("batch-size", "must not be negative")
	}
	if runOpts.batchSize > 0 {
		settings.Generation.BatchSize = runOpts.batchSize
	}
	if runOpts.concurrency > 0 {
		settings.Generation.Concurrency = runOpts.concurrency
	}
	if runOpts.level != "" {
		level, err := domain.ParseValidationLevel(runOpts.level)
		if err != nil {
			return nil, err
		}
		settings.Validation.Level = level
	}
	if runOpts.noFix {
		settings.Validation.AutoFix = false
	}
	if runOpts.noReview {
		settings.Classification.IncludeReview = false
	}
	if runOpts.promptVersion != "" {
		settings.Generation.PromptVersion = runOpts.promptVersion
	}
	return &settings, nil
}

func runPipeline(cmd *cobra.Command, args []string) error {
	if pipelineService == nil {
		return errors.New("pipeline service not configured")
	}

	settings, err := runSettings()
	if err != nil {
		return err
	}
	skip, err := domain.ParseStages(runOpts.skip)
	if err != nil {
		return err
	}

	req := driving.RunRequest{
		PDFPath:     args[0],
		Skip:        skip,
		Resume:      runOpts.resume,
		Force:       runOpts.force,
		StopOnError: runOpts.stopOnError,
		Settings:    settings,
	}
	report, err := pipelineService.Run(cmd.Context(), req)
	return finishRun(cmd, report, err)
}

func runExtract(cmd *cobra.Command, args []string) error {
	if pipelineService == nil {
		return errors.New("pipeline service not configured")
	}

	settings, err := runSettings()
	if err != nil {
		return err
	}
	report, err := pipelineService.Run(cmd.Context(), driving.RunRequest{
		PDFPath:  args[0],
		Only:     domain.StageExtract,
		Force:    runOpts.force,
		Settings: settings,
	})
	return finishRun(cmd, report, err)
}

func stageRunner(stage domain.Stage) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if pipelineService == nil {
			return errors.New("pipeline service not configured")
		}

		settings, err := runSettings()
		if err != nil {
			return err
		}
		report, err := pipelineService.RunStage(cmd.Context(), args[0], stage, driving.RunRequest{Settings: settings})
		return finishRun(cmd, report, err)
	}
}

// finishRun prints whatever part of the report exists, then turns failures
// into a non-zero exit.
func finishRun(cmd *cobra.Command, report *domain.RunReport, err error) error {
	if report != nil {
		printRunReport(cmd, report)
	}
	if err != nil {
		return err
	}
	if !report.Succeeded() {
		return errors.New("pipeline finished with failed stages")
	}
	return nil
}

func printRunReport(cmd *cobra.Command, report *domain.RunReport) {
	cmd.Println(heading("Pipeline Run"))
	cmd.Println(field("Run", report.RunID))
	cmd.Println(field("Document", report.DocumentID))
	cmd.Println()

	for _, st := range report.Stages {
		var mark string
		switch {
		case st.Skipped:
			mark = styles.Muted.Render("- skipped")
		case st.Success:
			mark = styles.Success.Render("ok")
		default:
			mark = styles.Error.Render("FAILED")
		}
		line := fmt.Sprintf("  %-9s %s", st.Stage, mark)
		if !st.Skipped {
			line += styles.Muted.Render(fmt.Sprintf("  %s", st.Duration.Round(time.Millisecond)))
		}
		if counts := formatCounts(st.Counts); counts != "" {
			line += "  " + counts
		}
		cmd.Println(line)
		if st.Err != nil {
			cmd.Printf("            %s\n", styles.Error.Render(st.Err.Error()))
		}
	}

	if gen := report.Generation; gen != nil {
		cmd.Println()
		cmd.Println(styles.Subtitle.Render("Generation"))
		cmd.Println(field("Questions", len(gen.Questions)))
		cmd.Println(field("Batches", len(gen.Batches)))
		if len(gen.FailedBatches()) > 0 || len(gen.CancelledBatches()) > 0 {
			cmd.Println(field("Failed", styles.Warning.Render(gen.Summary())))
		}
		cmd.Println(field("Tokens", gen.Tokens))
		cmd.Println(field("Cost", fmt.Sprintf("$%.4f", gen.Cost)))
	}

	cmd.Println()
	cmd.Println(field("Duration", report.Duration.Round(time.Millisecond)))
}

// formatCounts renders counts as sorted key=value pairs.
func formatCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return ""
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, counts[k])
	}
	return strings.Join(parts, " ")
}

func runStatus(cmd *cobra.Command, args []string) error {
	if pipelineService == nil {
		return errors.New("pipeline service not configured")
	}

	documentID := args[0]
	ctx := cmd.Context()

	if libraryService != nil {
		doc, err := libraryService.Document(ctx, documentID)
		if err != nil {
			return fmt.Errorf("failed to get document: %w", err)
		}
		cmd.Println(heading(doc.Name))
		cmd.Println(field("ID", doc.ID))
		cmd.Println(field("Pages", doc.TotalPages))
		cmd.Println(field("Sections", doc.SectionCount))
	}

	state, err := pipelineService.State(ctx, documentID)
	if err != nil {
		return fmt.Errorf("failed to get pipeline state: %w", err)
	}
	cmd.Println(field("State", styles.Subtitle.Render(state.Current())))
	for _, st := range domain.AllStages() {
		if at, ok := state.Completed[st]; ok {
			cmd.Printf("  %-9s %s\n", st, at.Local().Format(time.DateTime))
		} else {
			cmd.Printf("  %-9s %s\n", st, styles.Muted.Render("pending"))
		}
	}

	if libraryService != nil {
		counts, err := libraryService.Counts(ctx, documentID)
		if err != nil {
			return fmt.Errorf("failed to count questions: %w", err)
		}
		if counts.Total > 0 {
			cmd.Println()
			cmd.Println(field("Questions", counts.Total))
			for _, s := range []domain.ValidationStatus{domain.StatusValidated, domain.StatusInvalid, domain.StatusPending} {
				if n := counts.ByStatus[s]; n > 0 {
					cmd.Printf("  %s %d\n", statusStyle(s).Render(fmt.Sprintf("%-9s", s)), n)
				}
			}
		}
	}
	return nil
}
