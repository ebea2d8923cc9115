// Package domain defines the core business entities for lexcards.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: A source PDF identified by its content hash
//   - Section: An immutable block of text extracted from a document
//   - ClassificationResult: The four relevance sub-scores and derived tier
//   - Batch: A bounded group of sections sent in one generation request
//   - Question: A generated study item with a type-tagged content variant
//   - Experiment: An append-only record of one pipeline stage run
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
