// Package mcp provides an MCP (Model Context Protocol) server adapter for lexcards.
// It lets AI assistants score legal text, check questions and read the
// generated question bank.
package mcp

import "errors"

// ErrMissingLibraryService is returned when the library service is not provided.
var ErrMissingLibraryService = errors.New("mcp: library service is required")

// errUnavailable is returned by tools whose service is not wired.
var errUnavailable = errors.New("mcp: service not configured")
