package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure the LLM provider, classification weights and
thresholds, generation and validation options.

Use subcommands to configure specific settings.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsLLMCmd = &cobra.Command{
	Use:   "llm",
	Short: "Configure LLM provider",
	Long:  `Configure the LLM provider used to generate questions.`,
	RunE:  runSettingsLLM,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a single setting",
	Long: `Set a single setting by its dotted key. The value is validated before
it is stored.

Keys:
  llm.provider, llm.model, llm.base_url, llm.api_key, llm.timeout,
  llm.requests_per_second
  classification.weights.semantic_fitness, classification.weights.legal_relevance,
  classification.weights.conceptual_density, classification.weights.contextual_clarity,
  classification.threshold_relevant, classification.threshold_review,
  classification.include_review
  generation.question_type, generation.batch_size, generation.concurrency,
  generation.prompt_version, generation.temperature, generation.max_tokens
  validation.level, validation.auto_fix
  cache.backend, cache.redis_addr

The four weights must sum to 1; this is checked when a run starts, so
they can be changed one at a time.`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsLLMCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println(heading("Current Settings"))
	cmd.Println()

	// LLM settings
	cmd.Println(styles.Subtitle.Render("[LLM]"))
	cmd.Println(field("Provider", settings.LLM.Provider.Description()))
	cmd.Println(field("Model", settings.LLM.Model))
	if settings.LLM.BaseURL != "" {
		cmd.Println(field("Base URL", settings.LLM.BaseURL))
	}
	if settings.LLM.Provider.RequiresAPIKey() {
		if settings.LLM.APIKey != "" {
			cmd.Println(field("API Key", maskAPIKey(settings.LLM.APIKey)))
		} else {
			cmd.Println(field("API Key", "(not set)"))
		}
	}
	cmd.Println(field("Timeout", settings.LLM.Timeout))
	status := "configured"
	if !settings.LLM.IsConfigured() {
		status = "not configured"
	}
	cmd.Println(field("Status", status))
	cmd.Println()

	// Classification
	c := settings.Classification
	cmd.Println(styles.Subtitle.Render("[Classification]"))
	cmd.Println(field("Weights", fmt.Sprintf("AS %.2f  RJ %.2f  DC %.2f  CC %.2f",
		c.Weights.SemanticFitness, c.Weights.LegalRelevance, c.Weights.ConceptualDensity, c.Weights.ContextualClarity)))
	cmd.Println(field("Thresholds", fmt.Sprintf("relevant %.2f  review %.2f", c.Thresholds.Relevant, c.Thresholds.Review)))
	cmd.Println(field("Review", yesNo(c.IncludeReview)))
	cmd.Println()

	// Generation
	g := settings.Generation
	cmd.Println(styles.Subtitle.Render("[Generation]"))
	cmd.Println(field("Type", g.QuestionType.Label()))
	if g.BatchSize > 0 {
		cmd.Println(field("Batch size", g.BatchSize))
	} else {
		cmd.Println(field("Batch size", "adaptive"))
	}
	cmd.Println(field("Concurrency", g.Concurrency))
	if g.PromptVersion != "" {
		cmd.Println(field("Prompt", g.PromptVersion))
	} else {
		cmd.Println(field("Prompt", "active version"))
	}
	cmd.Println(field("Temperature", g.Params.Temperature))
	cmd.Println(field("Max tokens", g.Params.MaxTokens))
	cmd.Println()

	// Validation and cache
	cmd.Println(styles.Subtitle.Render("[Validation]"))
	cmd.Println(field("Level", settings.Validation.Level))
	cmd.Println(field("Auto fix", yesNo(settings.Validation.AutoFix)))
	cmd.Println()
	cmd.Println(styles.Subtitle.Render("[Cache]"))
	cmd.Println(field("Backend", settings.Cache.Backend))
	if settings.Cache.RedisAddr != "" {
		cmd.Println(field("Redis", settings.Cache.RedisAddr))
	}
	cmd.Println()

	if err := settingsService.Validate(); err != nil {
		cmd.Println(styles.Warning.Render(fmt.Sprintf("Warning: %v", err)))
		cmd.Println("Run 'lexcards settings llm' or 'lexcards settings set' to fix configuration issues.")
	} else {
		cmd.Println(styles.Success.Render("Configuration is valid."))
	}

	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	if err := settingsService.Set(args[0], args[1]); err != nil {
		return fmt.Errorf("failed to set %s: %w", args[0], err)
	}
	cmd.Printf("Set %s = %s\n", args[0], displayValue(args[0], args[1]))
	return nil
}

func runSettingsLLM(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	reader := bufio.NewReader(cmd.InOrStdin())
	return configureLLMProvider(cmd, reader)
}

func configureLLMProvider(cmd *cobra.Command, reader *bufio.Reader) error {
	cmd.Println("Select LLM Provider")
	providers := domain.AllLLMProviders()
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	input := readLine(reader)
	idx := parseChoice(input, len(providers), 1)
	selectedProvider := providers[idx-1]

	// Get model
	defaults := domain.DefaultLLMModels()
	defaultModel := defaults[selectedProvider]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	// Get API key if needed
	var apiKey string
	if selectedProvider.RequiresAPIKey() {
		cmd.Print("Enter API key: ")
		apiKey = readPassword(reader)
		cmd.Println()
		if apiKey == "" {
			return errors.New("API key is required for this provider")
		}
	}

	if err := settingsService.SetLLMProvider(selectedProvider, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure LLM provider: %w", err)
	}

	// Validate the configuration by pinging the service
	cmd.Print("Validating configuration... ")
	if err := settingsService.ValidateLLMConfig(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("LLM configuration validation failed: %w", err)
	}
	cmd.Println("OK")

	cmd.Printf("LLM provider configured: %s (%s)\n", selectedProvider.Description(), model)
	return nil
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

// readPassword reads without echo from a terminal, and falls back to a
// plain line from reader otherwise.
func readPassword(reader *bufio.Reader) string {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err == nil {
			return string(password)
		}
	}
	return readLine(reader)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// displayValue masks secrets echoed back to the terminal.
func displayValue(key, value string) string {
	if strings.HasSuffix(key, "api_key") {
		return maskAPIKey(value)
	}
	return value
}
