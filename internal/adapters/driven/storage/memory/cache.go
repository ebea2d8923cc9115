package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
	"github.com/custodia-labs/lexcards-cli/internal/core/ports/driven"
)

// Ensure ResponseCache implements the interface.
var _ driven.ResponseCache = (*ResponseCache)(nil)

// ResponseCache is an in-memory write-once response cache.
type ResponseCache struct {
	mu      sync.RWMutex
	entries map[string]driven.CachedResponse
}

// NewResponseCache creates an empty cache.
func NewResponseCache() *ResponseCache {
	return &ResponseCache{
		entries: make(map[string]driven.CachedResponse),
	}
}

// Get returns the cached response for key.
func (c *ResponseCache) Get(_ context.Context, key string) (*driven.CachedResponse, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &entry, nil
}

// PutIfAbsent stores resp unless its key is already present.
func (c *ResponseCache) PutIfAbsent(_ context.Context, resp driven.CachedResponse) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[resp.Key]; ok {
		return false, nil
	}
	c.entries[resp.Key] = resp
	return true, nil
}

// Len returns the number of entries.
func (c *ResponseCache) Len(_ context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries), nil
}
