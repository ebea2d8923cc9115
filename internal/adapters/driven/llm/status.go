// Package llm holds the pieces shared by the provider clients: HTTP status
// classification and client-side rate limiting.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
)

// HeaderRetryAfter is the retry-after header (seconds).
const HeaderRetryAfter = "Retry-After"

// maxErrorBody caps the provider body quoted in error messages.
const maxErrorBody = 512

// contextLengthMarkers are substrings providers use when a prompt does not
// fit the model context window.
var contextLengthMarkers = []string{
	"context_length_exceeded",
	"maximum context length",
	"context length",
	"context window",
	"prompt is too long",
	"too many tokens",
	"reduce the length",
}

// StatusError is a non-2xx provider response. It unwraps to the domain
// sentinel describing how the backend should treat it.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
	RetryAfter time.Duration
	kind       error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

// Unwrap returns domain.ErrRateLimited, domain.ErrTransient,
// domain.ErrContextLength, or nil for permanent failures.
func (e *StatusError) Unwrap() error {
	return e.kind
}

// CheckResponse classifies a provider response. It returns nil for 2xx.
func CheckResponse(provider string, resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody] + "..."
	}
	e := &StatusError{Provider: provider, StatusCode: resp.StatusCode, Body: text}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		e.kind = domain.ErrRateLimited
		if retryAfter := resp.Header.Get(HeaderRetryAfter); retryAfter != "" {
			if seconds, err := strconv.Atoi(retryAfter); err == nil {
				e.RetryAfter = time.Duration(seconds) * time.Second
			}
		}
	case IsContextLengthMessage(string(body)):
		e.kind = domain.ErrContextLength
	case resp.StatusCode == http.StatusRequestTimeout, resp.StatusCode >= 500:
		e.kind = domain.ErrTransient
	}
	return e
}

// IsContextLengthMessage reports whether a provider message describes a
// context window overflow.
func IsContextLengthMessage(msg string) bool {
	msg = strings.ToLower(msg)
	for _, m := range contextLengthMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// TransportError wraps a failed HTTP round trip. Anything but caller
// cancellation is treated as transient.
func TransportError(provider string, err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: send request: %w", provider, err)
	}
	return fmt.Errorf("%s: send request: %w: %w", provider, domain.ErrTransient, err)
}
