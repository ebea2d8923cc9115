package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
	"github.com/custodia-labs/lexcards-cli/internal/core/ports/driven"
)

// responseCache implements driven.ResponseCache.
type responseCache struct {
	store *Store
}

var _ driven.ResponseCache = (*responseCache)(nil)

// Get returns the cached response for key.
func (c *responseCache) Get(ctx context.Context, key string) (*driven.CachedResponse, error) {
	row := c.store.db.QueryRowContext(ctx, `
		SELECT key, provider, model, text, input_tokens, output_tokens, finish_reason, created_at
		FROM response_cache WHERE key = ?
	`, key)

	var resp driven.CachedResponse
	var createdAt string
	if err := row.Scan(&resp.Key, &resp.Provider, &resp.Model, &resp.Text, &resp.InputTokens,
		&resp.OutputTokens, &resp.FinishReason, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning cached response: %w", err)
	}
	resp.CreatedAt = parseTime(createdAt)
	return &resp, nil
}

// PutIfAbsent stores resp unless its key exists. The insert is a single
// statement, so concurrent writers of the same key cannot both succeed.
func (c *responseCache) PutIfAbsent(ctx context.Context, resp driven.CachedResponse) (bool, error) {
	res, err := c.store.db.ExecContext(ctx, `
		INSERT INTO response_cache (key, provider, model, text, input_tokens, output_tokens, finish_reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO NOTHING
	`, resp.Key, resp.Provider, resp.Model, resp.Text, resp.InputTokens, resp.OutputTokens,
		resp.FinishReason, formatTime(resp.CreatedAt))
	if err != nil {
		return false, fmt.Errorf("caching response: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("caching response: %w", err)
	}
	return n == 1, nil
}

// Len returns the number of cached entries.
func (c *responseCache) Len(ctx context.Context) (int, error) {
	var n int
	if err := c.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM response_cache").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting cached responses: %w", err)
	}
	return n, nil
}
