package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
	"github.com/custodia-labs/lexcards-cli/internal/core/ports/driving"
)

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "List processed documents",
	Args:  cobra.NoArgs,
	RunE:  runDocuments,
}

var questionsCmd = &cobra.Command{
	Use:   "questions [doc-id]",
	Short: "List the questions of a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuestions,
}

var exportCmd = &cobra.Command{
	Use:   "export [doc-id]",
	Short: "Export questions or sections",
	Long: `Export the questions of a document.

Formats:
  internal  Lossless JSON, can be imported back (default)
  anki      JSON card list for Anki (flashcard and true/false only)
  mochi     Mochi cards JSON
  xlsx      Spreadsheet with one row per question
  sections  Classified sections as semicolon separated CSV

Examples:
  lexcards export 0123456789ab -o preguntas.json
  lexcards export 0123456789ab --format xlsx -o preguntas.xlsx
  lexcards export 0123456789ab --format sections -o secciones.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import sections or questions",
}

var importSectionsCmd = &cobra.Command{
	Use:   "sections [file.csv]",
	Short: "Import sections from CSV, replacing the extracted ones",
	Long: `Import sections from a semicolon separated CSV with at least the
columns id and text. The document is marked as extracted so the next run
classifies the imported sections. Without --doc the document id is derived
from the file contents.`,
	Args: cobra.ExactArgs(1),
	RunE: runImportSections,
}

var importQuestionsCmd = &cobra.Command{
	Use:   "questions [file.json]",
	Short: "Import questions from an internal export",
	Args:  cobra.ExactArgs(1),
	RunE:  runImportQuestions,
}

var (
	exportFormat   string
	exportOutput   string
	exportStatus   string
	listStatus     string
	listType       string
	listLimit      int
	importDocument string
)

// sectionsFormat selects the CSV section export instead of a question format.
const sectionsFormat = "sections"

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "internal", "Export format")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: stdout)")
	exportCmd.Flags().StringVar(&exportStatus, "status", "", "Only export questions with this status")
	questionsCmd.Flags().StringVar(&listStatus, "status", "", "Filter by status (PENDING, VALIDATED, INVALID)")
	questionsCmd.Flags().StringVarP(&listType, "type", "t", "", "Filter by question type")
	questionsCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "Maximum questions to show (0 = all)")
	importSectionsCmd.Flags().StringVar(&importDocument, "doc", "", "Target document id")

	importCmd.AddCommand(importSectionsCmd)
	importCmd.AddCommand(importQuestionsCmd)
	rootCmd.AddCommand(documentsCmd)
	rootCmd.AddCommand(questionsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}

func runDocuments(cmd *cobra.Command, _ []string) error {
	if libraryService == nil {
		return errors.New("library service not configured")
	}

	docs, err := libraryService.Documents(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}
	if len(docs) == 0 {
		cmd.Println("No documents processed yet. Run 'lexcards run <file.pdf>' to start.")
		return nil
	}

	cmd.Println(heading("Documents"))
	for _, doc := range docs {
		state := ""
		if pipelineService != nil {
			if st, err := pipelineService.State(cmd.Context(), doc.ID); err == nil {
				state = st.Current()
			}
		}
		cmd.Printf("  %s  %s\n", styles.Subtitle.Render(doc.ID), doc.Name)
		cmd.Printf("    %s\n", styles.Muted.Render(fmt.Sprintf("%d page(s), %d section(s) %s",
			doc.TotalPages, doc.SectionCount, state)))
	}
	cmd.Println()
	cmd.Printf("Total: %d document(s)\n", len(docs))
	return nil
}

func runQuestions(cmd *cobra.Command, args []string) error {
	if libraryService == nil {
		return errors.New("library service not configured")
	}

	query := driving.QuestionQuery{
		DocumentID: args[0],
		Status:     domain.ValidationStatus(strings.ToUpper(listStatus)),
		Type:       domain.QuestionType(strings.ToLower(listType)),
		Limit:      listLimit,
	}
	questions, err := libraryService.Questions(cmd.Context(), query)
	if err != nil {
		return fmt.Errorf("failed to list questions: %w", err)
	}
	if len(questions) == 0 {
		cmd.Printf("No questions found for document: %s\n", args[0])
		return nil
	}

	for i := range questions {
		q := &questions[i]
		cmd.Printf("%s %s %s\n",
			statusStyle(q.Status).Render(fmt.Sprintf("[%s]", q.Status)),
			styles.Muted.Render(q.Type.Label()),
			styles.Muted.Render(fmt.Sprintf("sección %d", q.Origin.SectionID)))
		cmd.Printf("  %s\n", q.Content.Prompt())
		cmd.Printf("  %s %s\n", styles.Success.Render("→"), q.Content.AnswerText())
		for _, v := range q.Violations {
			cmd.Printf("  %s\n", styles.Warning.Render(fmt.Sprintf("%s: %s", v.Rule, v.Message)))
		}
		cmd.Println()
	}
	cmd.Printf("Showing %d question(s)\n", len(questions))
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	if libraryService == nil {
		return errors.New("library service not configured")
	}

	w := cmd.OutOrStdout()
	if exportOutput != "" {
		f, err := os.Create(exportOutput)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", exportOutput, err)
		}
		defer f.Close()
		w = f
	}

	n, err := exportTo(cmd, w, args[0])
	if err != nil {
		return err
	}
	if exportOutput != "" {
		cmd.Printf("Exported %d item(s) to %s\n", n, exportOutput)
	}
	return nil
}

func exportTo(cmd *cobra.Command, w io.Writer, documentID string) (int, error) {
	if strings.EqualFold(exportFormat, sectionsFormat) {
		thresholds := domain.DefaultThresholds()
		if settingsService != nil {
			if settings, err := settingsService.Get(); err == nil {
				thresholds = settings.Classification.Thresholds
			}
		}
		n, err := libraryService.ExportSections(cmd.Context(), w, documentID, thresholds)
		if err != nil {
			return 0, fmt.Errorf("failed to export sections: %w", err)
		}
		return n, nil
	}

	status := domain.ValidationStatus(strings.ToUpper(exportStatus))
	n, err := libraryService.ExportQuestions(cmd.Context(), w, documentID, exportFormat, status)
	if err != nil {
		return 0, fmt.Errorf("failed to export questions: %w", err)
	}
	return n, nil
}

func runImportSections(cmd *cobra.Command, args []string) error {
	if libraryService == nil {
		return errors.New("library service not configured")
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	defer f.Close()

	n, err := libraryService.ImportSections(cmd.Context(), f, importDocument)
	if err != nil {
		return fmt.Errorf("failed to import sections: %w", err)
	}
	cmd.Printf("Imported %d section(s)\n", n)
	return nil
}

func runImportQuestions(cmd *cobra.Command, args []string) error {
	if libraryService == nil {
		return errors.New("library service not configured")
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	defer f.Close()

	n, err := libraryService.ImportQuestions(cmd.Context(), f)
	if err != nil {
		return fmt.Errorf("failed to import questions: %w", err)
	}
	cmd.Printf("Imported %d question(s)\n", n)
	return nil
}

var experimentsCmd = &cobra.Command{
	Use:   "experiments [doc-id]",
	Short: "Show the recorded stage runs of a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runExperiments,
}

func init() {
	rootCmd.AddCommand(experimentsCmd)
}

func runExperiments(cmd *cobra.Command, args []string) error {
	if pipelineService == nil {
		return errors.New("pipeline service not configured")
	}

	exps, err := pipelineService.Experiments(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to list experiments: %w", err)
	}
	if len(exps) == 0 {
		cmd.Printf("No experiments recorded for document: %s\n", args[0])
		return nil
	}

	cmd.Println(heading("Experiments"))
	for i := range exps {
		e := &exps[i]
		mark := styles.Success.Render("ok")
		if !e.Success {
			mark = styles.Error.Render("FAILED")
		}
		cmd.Printf("  %s  %-9s %s  %s\n",
			styles.Muted.Render(e.CreatedAt.Local().Format(time.DateTime)),
			e.Stage, mark, formatCounts(e.Counts))
		if e.Model != "" {
			cmd.Printf("      %s\n", styles.Muted.Render(fmt.Sprintf("%s/%s  %d tokens  $%.4f  prompt %s",
				e.Provider, e.Model, e.TokensUsed, e.CostEstimate, e.Config.PromptVersion)))
		}
		if e.Error != "" {
			cmd.Printf("      %s\n", styles.Error.Render(e.Error))
		}
	}
	return nil
}
