// Package ollama provides an LLM client for the Ollama chat API, local or hosted.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/lexcards-cli/internal/adapters/driven/llm"
	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
	"github.com/custodia-labs/lexcards-cli/internal/core/ports/driven"
)

// Ensure Client implements the interface.
var _ driven.LLMClient = (*Client)(nil)

// Default configuration values.
const (
	DefaultBaseURL      = "http://localhost:11434"
	DefaultCloudBaseURL = "https://ollama.com"
	DefaultModel        = "llama3.2"
	DefaultTimeout      = 300 * time.Second
)

// Config holds configuration for the Ollama client.
type Config struct {
	// BaseURL is the Ollama API base URL. Defaults to the local server, or
	// to ollama.com when APIKey is set.
	BaseURL string

	// APIKey authenticates against the hosted API. Empty for a local server.
	APIKey string

	// Model is the LLM model to use (default: llama3.2).
	Model string

	// Timeout is the request timeout (default: 300s, local models are slow).
	Timeout time.Duration
}

// Client sends requests to an Ollama server.
type Client struct {
	client   *http.Client
	provider domain.AIProvider
	baseURL  string
	apiKey   string
	model    string
}

// chatRequest is the Ollama /api/chat request format.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  *options      `json:"options,omitempty"`
}

// chatMessage is the Ollama chat message format.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// options are generation options for Ollama.
type options struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float64 `json:"temperature"`
}

// chatResponse is the Ollama /api/chat response format.
type chatResponse struct {
	Message         chatMessage `json:"message"`
	Done            bool        `json:"done"`
	DoneReason      string      `json:"done_reason"`
	PromptEvalCount int         `json:"prompt_eval_count"`
	EvalCount       int         `json:"eval_count"`
	Error           string      `json:"error,omitempty"`
}

// NewClient creates a new Ollama client. A non-empty API key selects the
// hosted provider.
func NewClient(cfg Config) *Client {
	provider := domain.AIProviderOllama
	if cfg.APIKey != "" {
		provider = domain.AIProviderOllamaCloud
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
		if provider == domain.AIProviderOllamaCloud {
			cfg.BaseURL = DefaultCloudBaseURL
		}
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Client{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		provider: provider,
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
	}
}

// Complete sends one system+user exchange.
func (c *Client) Complete(ctx context.Context, creq driven.CompletionRequest) (*driven.Completion, error) {
	messages := make([]chatMessage, 0, 2)
	if creq.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: creq.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: creq.Prompt})

	reqBody := chatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
		Options: &options{
			NumPredict:  creq.Params.MaxTokens,
			Temperature: creq.Params.Temperature,
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+"/api/chat",
		bytes.NewReader(jsonBody),
	)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

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

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if chatResp.Error != "" {
		if llm.IsContextLengthMessage(chatResp.Error) {
			return nil, fmt.Errorf("ollama error: %s: %w", chatResp.Error, domain.ErrContextLength)
		}
		return nil, fmt.Errorf("ollama error: %s", chatResp.Error)
	}

	return &driven.Completion{
		Text:         chatResp.Message.Content,
		InputTokens:  chatResp.PromptEvalCount,
		OutputTokens: chatResp.EvalCount,
		FinishReason: chatResp.DoneReason,
		Latency:      time.Since(start),
	}, nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// Provider returns ollama or ollama_cloud.
func (c *Client) Provider() domain.AIProvider {
	return c.provider
}

// ModelName returns the name of the LLM model being used.
func (c *Client) ModelName() string {
	return c.model
}

// Ping validates the service is reachable by checking the /api/tags endpoint.
// This is a lightweight check that validates connectivity without running inference.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", http.NoBody)
	if err != nil {
		return fmt.Errorf("ollama: failed to create ping request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama: ping failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("ollama: API returned status %d (failed to read body: %w)", resp.StatusCode, err)
		}
		return fmt.Errorf("ollama: API returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// Close releases resources.
func (c *Client) Close() error {
	// HTTP client doesn't need explicit cleanup
	return nil
}
