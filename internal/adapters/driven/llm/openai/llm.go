// Package openai provides an LLM client for the OpenAI chat completions API
// and the servers that speak it (Groq, Kimi, LM Studio).
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/custodia-labs/lexcards-cli/internal/adapters/driven/llm"
	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
	"github.com/custodia-labs/lexcards-cli/internal/core/ports/driven"
)

// Ensure Client implements the interface.
var _ driven.LLMClient = (*Client)(nil)

// Default configuration values.
const (
	DefaultBaseURL    = "https://api.openai.com/v1"
	DefaultLLMModel   = "gpt-4o-mini"
	DefaultLLMTimeout = 120 * time.Second
)

// defaultBaseURLs are the endpoints of the OpenAI-compatible providers.
var defaultBaseURLs = map[domain.AIProvider]string{
	domain.AIProviderOpenAI:   DefaultBaseURL,
	domain.AIProviderGroq:     "https://api.groq.com/openai/v1",
	domain.AIProviderKimi:     "https://api.moonshot.cn/v1",
	domain.AIProviderLMStudio: "http://localhost:1234/v1",
}

// Supports returns true if the provider speaks the chat completions API.
func Supports(p domain.AIProvider) bool {
	_, ok := defaultBaseURLs[p]
	return ok
}

// LLMConfig holds configuration for an OpenAI-compatible client.
type LLMConfig struct {
	// Provider selects the default endpoint (default: openai).
	Provider domain.AIProvider

	// APIKey is the API key. Required for every provider except LM Studio.
	APIKey string

	// BaseURL overrides the provider endpoint.
	BaseURL string

	// Model is the LLM model to use (default: gpt-4o-mini).
	Model string

	// Timeout is the request timeout (default: 120s).
	Timeout time.Duration
}

// Client sends chat completions to an OpenAI-compatible API.
type Client struct {
	client   *http.Client
	provider domain.AIProvider
	baseURL  string
	apiKey   string
	model    string
}

// chatCompletionRequest is the OpenAI /chat/completions request format.
type chatCompletionRequest struct {
	Model       string              `json:"model"`
	Messages    []chatCompletionMsg `json:"messages"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Temperature float64             `json:"temperature"`
}

// chatCompletionMsg is the OpenAI chat message format.
type chatCompletionMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatCompletionResponse is the OpenAI /chat/completions response format.
type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error,omitempty"`
}

// NewClient creates an OpenAI-compatible client.
func NewClient(cfg LLMConfig) (*Client, error) {
	if cfg.Provider == "" {
		cfg.Provider = domain.AIProviderOpenAI
	}
	if !Supports(cfg.Provider) {
		return nil, fmt.Errorf("openai: provider %s does not speak the chat completions API", cfg.Provider)
	}
	if cfg.Provider.RequiresAPIKey() && cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: API key is required", cfg.Provider)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURLs[cfg.Provider]
	}
	if cfg.Model == "" {
		cfg.Model = DefaultLLMModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultLLMTimeout
	}

	return &Client{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		provider: cfg.Provider,
		baseURL:  cfg.BaseURL,
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
	}, nil
}

// Complete sends one system+user exchange.
func (c *Client) Complete(ctx context.Context, creq driven.CompletionRequest) (*driven.Completion, error) {
	messages := make([]chatCompletionMsg, 0, 2)
	if creq.System != "" {
		messages = append(messages, chatCompletionMsg{Role: "system", Content: creq.System})
	}
	messages = append(messages, chatCompletionMsg{Role: "user", Content: creq.Prompt})

	reqBody := chatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   creq.Params.MaxTokens,
		Temperature: creq.Params.Temperature,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+"/chat/completions",
		bytes.NewReader(jsonBody),
	)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, llm.TransportError(string(c.provider), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, llm.TransportError(string(c.provider), fmt.Errorf("read response: %w", err))
	}
	if err := llm.CheckResponse(string(c.provider), resp, body); err != nil {
		return nil, err
	}

	var chatResp chatCompletionResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if chatResp.Error != nil {
		if llm.IsContextLengthMessage(chatResp.Error.Message) {
			return nil, fmt.Errorf("%s error: %s: %w", c.provider, chatResp.Error.Message, domain.ErrContextLength)
		}
		return nil, fmt.Errorf("%s error: %s", c.provider, chatResp.Error.Message)
	}

	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("%s: no response choices returned: %w", c.provider, domain.ErrTransient)
	}

	choice := chatResp.Choices[0]
	return &driven.Completion{
		Text:         choice.Message.Content,
		InputTokens:  chatResp.Usage.PromptTokens,
		OutputTokens: chatResp.Usage.CompletionTokens,
		FinishReason: choice.FinishReason,
		Latency:      time.Since(start),
	}, nil
}

// Provider returns the provider identifier.
func (c *Client) Provider() domain.AIProvider {
	return c.provider
}

// ModelName returns the name of the LLM model being used.
func (c *Client) ModelName() string {
	return c.model
}

// Ping validates the service is reachable by checking the /models endpoint.
// This is a lightweight check that validates the API key without running inference.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", http.NoBody)
	if err != nil {
		return fmt.Errorf("%s: failed to create ping request: %w", c.provider, err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: ping failed: %w", c.provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%s: API returned status %d (failed to read body: %w)", c.provider, resp.StatusCode, err)
		}
		return fmt.Errorf("%s: API returned status %d: %s", c.provider, resp.StatusCode, string(body))
	}
	return nil
}

// Close releases resources.
func (c *Client) Close() error {
	// HTTP client doesn't need explicit cleanup
	return nil
}
