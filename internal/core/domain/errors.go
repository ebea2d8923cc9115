package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConfiguration indicates invalid weights, thresholds, provider ids or
	// pipeline directives. It is fatal and raised before any work starts.
	ErrConfiguration = errors.New("configuration error")

	// ErrBackend indicates an LLM provider call failed after all retries.
	ErrBackend = errors.New("backend error")

	// ErrParse indicates LLM output could not be turned into questions.
	ErrParse = errors.New("parse error")

	// ErrContextLength indicates the prompt exceeded the model context window.
	// It is never retried; the batch builder bisects the batch instead.
	ErrContextLength = errors.New("context length exceeded")

	// ErrRateLimited indicates the provider rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// ErrTransient indicates a provider failure worth retrying
	// (timeouts, 5xx responses, dropped connections).
	ErrTransient = errors.New("transient provider failure")

	// ErrStageNotReady indicates a stage's predecessor has not completed.
	ErrStageNotReady = errors.New("stage predecessor not completed")

	// ErrNoPriorOutput indicates a skip was requested for a stage with no stored output.
	ErrNoPriorOutput = errors.New("no prior output to skip")

	// ErrLLMUnavailable indicates no LLM provider is configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")
)

// ConfigurationError describes an invalid setting. It unwraps to ErrConfiguration.
type ConfigurationError struct {
	Field  string
	Reason string
}

// NewConfigurationError creates a configuration error for a field.
func NewConfigurationError(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// Unwrap allows errors.Is(err, ErrConfiguration).
func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// BackendError is raised when a provider call exhausted its retries.
// The orchestrator treats it as a failed batch, never a fatal abort.
type BackendError struct {
	Provider AIProvider
	Model    string
	Attempts int
	Err      error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %s (%s) failed after %d attempt(s): %v",
		e.Provider, e.Model, e.Attempts, e.Err)
}

// Unwrap exposes both the ErrBackend sentinel and the last provider error.
func (e *BackendError) Unwrap() []error {
	return []error{ErrBackend, e.Err}
}

// ParseError is raised when LLM output is malformed. Scope is either a
// whole batch (Item < 0) or a single question payload within it.
type ParseError struct {
	BatchIndex int
	Item       int
	Reason     string
}

func (e *ParseError) Error() string {
	if e.Item < 0 {
		return fmt.Sprintf("parse error in batch %d: %s", e.BatchIndex, e.Reason)
	}
	return fmt.Sprintf("parse error in batch %d item %d: %s", e.BatchIndex, e.Item, e.Reason)
}

// Unwrap allows errors.Is(err, ErrParse).
func (e *ParseError) Unwrap() error {
	return ErrParse
}
