package driven

import (
	"context"
	"time"
)

// CachedResponse is the cached form of a provider answer.
type CachedResponse struct {
	Key          string
	Provider     string
	Model        string
	Text         string
	InputTokens  int
	OutputTokens int
	FinishReason string
	CreatedAt    time.Time
}

// ResponseCache stores provider answers keyed by request hash.
//
// The cache is write-once per key: PutIfAbsent on an existing key is a
// no-op that returns stored=false. Implementations must make concurrent
// PutIfAbsent calls for the same key safe. No eviction is required.
type ResponseCache interface {
	// Get returns the cached response, or domain.ErrNotFound.
	Get(ctx context.Context, key string) (*CachedResponse, error)

	// PutIfAbsent stores the response unless the key already exists.
	PutIfAbsent(ctx context.Context, resp CachedResponse) (stored bool, err error)

	// Len returns the number of cached entries.
	Len(ctx context.Context) (int, error)
}
