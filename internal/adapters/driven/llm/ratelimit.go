package llm

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
	"github.com/custodia-labs/lexcards-cli/internal/core/ports/driven"
)

// Ensure RateLimitedClient implements the interface.
var _ driven.LLMClient = (*RateLimitedClient)(nil)

// DefaultRequestsPerSecond is the proactive throttle for hosted providers.
const DefaultRequestsPerSecond = 2.0

// RateLimitedClient throttles calls to an LLM client. It combines a
// proactive token bucket with the reactive Retry-After hint of 429
// responses: after a rate-limited call every caller waits out the hint.
type RateLimitedClient struct {
	next   driven.LLMClient
	bucket *rate.Limiter

	mu          sync.Mutex
	pausedUntil time.Time
}

// NewRateLimitedClient wraps next with a bucket of rps requests per second.
// A non-positive rps disables proactive throttling.
func NewRateLimitedClient(next driven.LLMClient, rps float64) *RateLimitedClient {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &RateLimitedClient{
		next:   next,
		bucket: rate.NewLimiter(limit, 1),
	}
}

// Complete waits for a slot, then calls the wrapped client.
func (c *RateLimitedClient) Complete(ctx context.Context, req driven.CompletionRequest) (*driven.Completion, error) {
	if err := c.Wait(ctx); err != nil {
		return nil, err
	}

	completion, err := c.next.Complete(ctx, req)

	var statusErr *StatusError
	if errors.As(err, &statusErr) && errors.Is(err, domain.ErrRateLimited) && statusErr.RetryAfter > 0 {
		c.mu.Lock()
		if until := time.Now().Add(statusErr.RetryAfter); until.After(c.pausedUntil) {
			c.pausedUntil = until
		}
		c.mu.Unlock()
	}
	return completion, err
}

// Wait blocks until it's safe to make a request.
func (c *RateLimitedClient) Wait(ctx context.Context) error {
	if err := c.bucket.Wait(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	pausedUntil := c.pausedUntil
	c.mu.Unlock()

	if wait := time.Until(pausedUntil); wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return nil
}

// PausedUntil returns the end of the current Retry-After pause.
func (c *RateLimitedClient) PausedUntil() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pausedUntil
}

// Provider returns the wrapped client's provider.
func (c *RateLimitedClient) Provider() domain.AIProvider { return c.next.Provider() }

// ModelName returns the wrapped client's model.
func (c *RateLimitedClient) ModelName() string { return c.next.ModelName() }

// Ping checks the wrapped client without consuming a token.
func (c *RateLimitedClient) Ping(ctx context.Context) error { return c.next.Ping(ctx) }

// Close closes the wrapped client.
func (c *RateLimitedClient) Close() error { return c.next.Close() }
