// Package ai provides factory functions for creating LLM client adapters.
package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/lexcards-cli/internal/adapters/driven/llm"
	anthropicllm "github.com/custodia-labs/lexcards-cli/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/lexcards-cli/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/lexcards-cli/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
	"github.com/custodia-labs/lexcards-cli/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// CreateAndValidateLLMClient creates an LLM client and validates connectivity.
// Returns the client if successful, or an error with guidance.
func CreateAndValidateLLMClient(settings *domain.LLMSettings) (driven.LLMClient, error) {
	client, err := CreateLLMClient(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. Run 'lexcards settings set llm.provider <provider>' to fix",
			domain.ErrLLMUnavailable, err)
	}

	// Validate connectivity.
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w). Check the provider settings with 'lexcards settings'",
			domain.ErrLLMUnavailable, err)
	}

	return client, nil
}

// ValidateLLMConfig validates an LLM configuration by creating a client and pinging it.
// This is intended for use by the settings commands to validate credentials on configuration.
func ValidateLLMConfig(settings *domain.LLMSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}

	client, err := CreateLLMClient(settings)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return client.Ping(ctx)
}

// CreateLLMClient creates the client for the configured provider, wrapped
// in a rate limiter. A missing or unknown provider and a missing API key
// are configuration errors.
func CreateLLMClient(settings *domain.LLMSettings) (driven.LLMClient, error) {
	if settings == nil || settings.Provider == "" {
		return nil, domain.NewConfigurationError("llm.provider", "no provider configured")
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	client, err := createProviderClient(settings)
	if err != nil {
		return nil, err
	}
	return llm.NewRateLimitedClient(client, requestsPerSecond(settings)), nil
}

// requestsPerSecond returns the configured throttle. Local servers are not
// throttled unless asked to be.
func requestsPerSecond(settings *domain.LLMSettings) float64 {
	if settings.RequestsPerSecond > 0 {
		return settings.RequestsPerSecond
	}
	if settings.Provider.IsLocal() {
		return 0
	}
	return llm.DefaultRequestsPerSecond
}

func createProviderClient(settings *domain.LLMSettings) (driven.LLMClient, error) {
	switch {
	case settings.Provider == domain.AIProviderOllama:
		return createOllamaLLM(settings, ""), nil

	case settings.Provider == domain.AIProviderOllamaCloud:
		return createOllamaLLM(settings, settings.APIKey), nil

	case settings.Provider == domain.AIProviderAnthropic:
		return createAnthropicLLM(settings)

	case openaillm.Supports(settings.Provider):
		return createOpenAILLM(settings)

	default:
		return nil, domain.NewConfigurationError("llm.provider", "unsupported provider %q", settings.Provider)
	}
}

// createOllamaLLM creates an Ollama client. A non-empty key targets the hosted API.
func createOllamaLLM(settings *domain.LLMSettings, apiKey string) driven.LLMClient {
	return ollamallm.NewClient(ollamallm.Config{
		BaseURL: settings.BaseURL,
		APIKey:  apiKey,
		Model:   settings.Model,
		Timeout: settings.Timeout,
	})
}

// createOpenAILLM creates a client for OpenAI or a compatible provider.
func createOpenAILLM(settings *domain.LLMSettings) (driven.LLMClient, error) {
	return openaillm.NewClient(openaillm.LLMConfig{
		Provider: settings.Provider,
		APIKey:   settings.APIKey,
		BaseURL:  settings.BaseURL,
		Model:    settings.Model,
		Timeout:  settings.Timeout,
	})
}

// createAnthropicLLM creates an Anthropic client.
func createAnthropicLLM(settings *domain.LLMSettings) (driven.LLMClient, error) {
	return anthropicllm.NewClient(anthropicllm.Config{
		APIKey:  settings.APIKey,
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
		Timeout: settings.Timeout,
	})
}
