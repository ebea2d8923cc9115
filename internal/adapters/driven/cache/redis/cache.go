// Package redis provides a write-once response cache shared through Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
	"github.com/custodia-labs/lexcards-cli/internal/core/ports/driven"
)

// Ensure ResponseCache implements the interface.
var _ driven.ResponseCache = (*ResponseCache)(nil)

// Default configuration values.
const (
	DefaultPrefix      = "lexcards:response:"
	DefaultDialTimeout = 5 * time.Second
)

// Config holds the Redis connection settings.
type Config struct {
	// Addr is host:port of the server (required).
	Addr string

	// Prefix namespaces the cache keys (default: lexcards:response:).
	Prefix string

	// DialTimeout bounds connection setup (default: 5s).
	DialTimeout time.Duration
}

// ResponseCache stores provider answers as JSON values. Writes use SETNX,
// so the first writer of a key wins and entries never expire.
type ResponseCache struct {
	rdb    *redis.Client
	prefix string
}

// entry is the stored JSON form of a cached response.
type entry struct {
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	Text         string    `json:"text"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	FinishReason string    `json:"finish_reason"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewResponseCache connects to Redis and verifies the connection.
func NewResponseCache(ctx context.Context, cfg Config) (*ResponseCache, error) {
	if cfg.Addr == "" {
		return nil, domain.NewConfigurationError("cache.redis_addr", "required for the redis backend")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		DialTimeout: cfg.DialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &ResponseCache{rdb: rdb, prefix: cfg.Prefix}, nil
}

// Get returns the cached response for key.
func (c *ResponseCache) Get(ctx context.Context, key string) (*driven.CachedResponse, error) {
	raw, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return decodeEntry(key, raw)
}

// PutIfAbsent stores resp unless its key exists.
func (c *ResponseCache) PutIfAbsent(ctx context.Context, resp driven.CachedResponse) (bool, error) {
	raw, err := encodeEntry(resp)
	if err != nil {
		return false, err
	}
	stored, err := c.rdb.SetNX(ctx, c.prefix+resp.Key, raw, 0).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return stored, nil
}

// Len counts the keys under the cache prefix.
func (c *ResponseCache) Len(ctx context.Context) (int, error) {
	n := 0
	iter := c.rdb.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redis scan: %w", err)
	}
	return n, nil
}

// Close closes the connection pool.
func (c *ResponseCache) Close() error {
	return c.rdb.Close()
}

func encodeEntry(resp driven.CachedResponse) ([]byte, error) {
	raw, err := json.Marshal(entry{
		Provider:     resp.Provider,
		Model:        resp.Model,
		Text:         resp.Text,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
		FinishReason: resp.FinishReason,
		CreatedAt:    resp.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding cached response: %w", err)
	}
	return raw, nil
}

func decodeEntry(key string, raw []byte) (*driven.CachedResponse, error) {
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("decoding cached response %s: %w", key, err)
	}
	return &driven.CachedResponse{
		Key:          key,
		Provider:     e.Provider,
		Model:        e.Model,
		Text:         e.Text,
		InputTokens:  e.InputTokens,
		OutputTokens: e.OutputTokens,
		FinishReason: e.FinishReason,
		CreatedAt:    e.CreatedAt,
	}, nil
}
