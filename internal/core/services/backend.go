package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
	"github.com/custodia-labs/lexcards-cli/internal/core/ports/driven"
	"github.com/custodia-labs/lexcards-cli/internal/logger"
)

// Ensure Backend implements the interface.
var _ driven.Backend = (*Backend)(nil)

// Retry defaults.
const (
	DefaultRetryAttempts = 3
	DefaultRetryBase     = time.Second
)

// Backend wraps a provider client with response caching, retry and cost
// accounting. Every provider goes through the same Generate sequence:
// cache lookup, call with retry, write-once cache store.
type Backend struct {
	client   driven.LLMClient
	cache    driven.ResponseCache
	attempts int
	base     time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
	now      func() time.Time
}

// BackendOption customises a Backend.
type BackendOption func(*Backend)

// WithResponseCache enables response caching. A nil cache disables it.
func WithResponseCache(c driven.ResponseCache) BackendOption {
	return func(b *Backend) {
		b.cache = c
	}
}

// WithRetry sets the total attempt count and the backoff base delay.
func WithRetry(attempts int, base time.Duration) BackendOption {
	return func(b *Backend) {
		if attempts > 0 {
			b.attempts = attempts
		}
		if base >= 0 {
			b.base = base
		}
	}
}

// WithSleeper replaces the backoff wait. Used by tests.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) BackendOption {
	return func(b *Backend) {
		b.sleep = sleep
	}
}

// NewBackend creates a backend around an LLM client.
func NewBackend(client driven.LLMClient, opts ...BackendOption) *Backend {
	b := &Backend{
		client:   client,
		attempts: DefaultRetryAttempts,
		base:     DefaultRetryBase,
		sleep:    sleepContext,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Provider returns the wrapped client's provider.
func (b *Backend) Provider() domain.AIProvider {
	return b.client.Provider()
}

// ModelName returns the wrapped client's model.
func (b *Backend) ModelName() string {
	return b.client.ModelName()
}

// Generate returns the completion for a request. A cached response is
// returned without contacting the provider.
func (b *Backend) Generate(ctx context.Context, req driven.CompletionRequest) (*driven.Response, error) {
	key, err := CacheKey(b.client.Provider(), b.client.ModelName(), req)
	if err != nil {
		return nil, err
	}

	if b.cache != nil {
		cached, err := b.cache.Get(ctx, key)
		switch {
		case err == nil:
			logger.Debug("Cache hit for %s/%s (%s)", cached.Provider, cached.Model, key[:12])
			return b.fromCache(cached), nil
		case !errors.Is(err, domain.ErrNotFound):
			logger.Warn("Cache lookup failed: %v", err)
		}
	}

	completion, attempts, err := b.completeWithRetry(ctx, req)
	if err != nil {
		return nil, &domain.BackendError{
			Provider: b.client.Provider(),
			Model:    b.client.ModelName(),
			Attempts: attempts,
			Err:      err,
		}
	}

	if b.cache != nil {
		entry := driven.CachedResponse{
			Key:          key,
			Provider:     string(b.client.Provider()),
			Model:        b.client.ModelName(),
			Text:         completion.Text,
			InputTokens:  completion.InputTokens,
			OutputTokens: completion.OutputTokens,
			FinishReason: completion.FinishReason,
			CreatedAt:    b.now(),
		}
		if _, err := b.cache.PutIfAbsent(ctx, entry); err != nil {
			logger.Warn("Cache store failed: %v", err)
		}
	}

	price := domain.PriceFor(b.client.Provider(), b.client.ModelName())
	return &driven.Response{
		Text:         completion.Text,
		InputTokens:  completion.InputTokens,
		OutputTokens: completion.OutputTokens,
		Cost:         price.Cost(completion.InputTokens, completion.OutputTokens),
		Latency:      completion.Latency,
		FinishReason: completion.FinishReason,
		CacheKey:     key,
		Attempts:     attempts,
	}, nil
}

func (b *Backend) fromCache(c *driven.CachedResponse) *driven.Response {
	return &driven.Response{
		Text:         c.Text,
		InputTokens:  c.InputTokens,
		OutputTokens: c.OutputTokens,
		FinishReason: c.FinishReason,
		FromCache:    true,
		CacheKey:     c.Key,
	}
}

func (b *Backend) completeWithRetry(ctx context.Context, req driven.CompletionRequest) (*driven.Completion, int, error) {
	var lastErr error
	for attempt := 1; attempt <= b.attempts; attempt++ {
		completion, err := b.client.Complete(ctx, req)
		if err == nil {
			return completion, attempt, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return nil, attempt, err
		}
		if attempt == b.attempts {
			break
		}

		delay := b.base * time.Duration(1<<(attempt-1))
		logger.Debug("Attempt %d/%d failed (%v), retrying in %s", attempt, b.attempts, err, delay)
		if err := b.sleep(ctx, delay); err != nil {
			return nil, attempt, err
		}
	}
	return nil, b.attempts, lastErr
}

// IsRetryable reports whether a provider error is worth another attempt.
// Context-length errors never are.
func IsRetryable(err error) bool {
	if errors.Is(err, domain.ErrContextLength) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, domain.ErrTransient) ||
		errors.Is(err, domain.ErrRateLimited) ||
		errors.Is(err, context.DeadlineExceeded)
}

// cacheKeyPayload is the canonical form hashed into a cache key.
// Field order is fixed by the struct definition.
type cacheKeyPayload struct {
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	System      string  `json:"system"`
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// CacheKey derives the deterministic cache key of a request.
func CacheKey(provider domain.AIProvider, model string, req driven.CompletionRequest) (string, error) {
	data, err := json.Marshal(cacheKeyPayload{
		Provider:    string(provider),
		Model:       model,
		System:      req.System,
		Prompt:      req.Prompt,
		Temperature: req.Params.Temperature,
		MaxTokens:   req.Params.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal cache key: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
