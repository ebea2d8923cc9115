package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
)

var scoreCmd = &cobra.Command{
	Use:   "score [file.txt|-]",
	Short: "Score a text as a single section",
	Long: `Classify a text with the stored weights and thresholds and print its
sub-scores. Use '-' to read from stdin.

Example:
  echo "Artículo 3. Plazos. El plazo será de diez días hábiles." | lexcards score -`,
	Args: cobra.ExactArgs(1),
	RunE: runScore,
}

var scoreTitle string

func init() {
	scoreCmd.Flags().StringVar(&scoreTitle, "title", "", "Section title")
	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, args []string) error {
	if classificationService == nil {
		return errors.New("classification service not configured")
	}

	var (
		data []byte
		err  error
	)
	if args[0] == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to read text: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return errors.New("text is empty")
	}

	settings := domain.DefaultAppSettings()
	if settingsService != nil {
		stored, err := settingsService.Get()
		if err != nil {
			return fmt.Errorf("failed to get settings: %w", err)
		}
		settings = *stored
	}

	section := domain.Section{ID: 1, Title: scoreTitle, Text: text, Page: 1}
	result, err := classificationService.Classify(section,
		settings.Classification.Weights, settings.Classification.Thresholds)
	if err != nil {
		return err
	}

	cmd.Println(field("Tier", tierStyle(result.Tier).Render(result.Tier.String())))
	cmd.Println(field("Composite", fmt.Sprintf("%.4f", result.Composite)))
	cmd.Println(field("AS", fmt.Sprintf("%.4f", result.SemanticFitness)))
	cmd.Println(field("RJ", fmt.Sprintf("%.4f", result.LegalRelevance)))
	cmd.Println(field("DC", fmt.Sprintf("%.4f", result.ConceptualDensity)))
	cmd.Println(field("CC", fmt.Sprintf("%.4f", result.ContextualClarity)))
	if result.Conserved {
		cmd.Println(styles.Muted.Render("Kept by a conservation rule."))
	}
	return nil
}
