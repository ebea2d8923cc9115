// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
)

// LLMClient performs a single call against one LLM provider.
// It does no caching and no retrying; the core backend wraps every client
// with the shared cache-then-retry flow.
//
// Implementations may include:
//   - OpenAI and OpenAI-compatible servers (Groq, Kimi, LM Studio)
//   - Anthropic (Claude)
//   - Ollama (local and cloud)
//
// Errors should wrap domain.ErrTransient or domain.ErrRateLimited when the
// call is worth retrying, and domain.ErrContextLength when the prompt did
// not fit the model context window.
type LLMClient interface {
	// Complete sends one request and returns the provider's answer.
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)

	// Provider returns the provider identifier.
	Provider() domain.AIProvider

	// ModelName returns the name of the LLM model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// CompletionRequest is a single system+user prompt exchange.
type CompletionRequest struct {
	// System is the system prompt. May be empty.
	System string

	// Prompt is the user prompt.
	Prompt string

	// Params are the sampling parameters.
	Params domain.GenerationParams
}

// Completion is the provider answer to a CompletionRequest.
type Completion struct {
	// Text is the raw model output.
	Text string

	// InputTokens and OutputTokens are the provider-reported usage.
	InputTokens  int
	OutputTokens int

	// FinishReason is the provider stop reason, if reported.
	FinishReason string

	// Latency is the wall time of the call.
	Latency time.Duration
}

// Backend is the uniform generation capability used by the orchestrator:
// cache lookup, provider call with retry and cache store behind one call.
type Backend interface {
	// Generate returns the model output for a prompt, resolving from cache when possible.
	Generate(ctx context.Context, req CompletionRequest) (*Response, error)

	// Provider returns the provider identifier.
	Provider() domain.AIProvider

	// ModelName returns the model used.
	ModelName() string
}

// Response is what the backend hands to the orchestrator.
type Response struct {
	Text         string
	InputTokens  int
	OutputTokens int
	Cost         float64
	Latency      time.Duration
	FinishReason string
	FromCache    bool
	CacheKey     string
	Attempts     int
}

// TotalTokens returns input plus output tokens.
func (r *Response) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}
