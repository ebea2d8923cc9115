// Package sqlite provides a unified SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements multiple store interfaces
// through a single database connection:
//
//   - DocumentIndex: processed documents by content hash
//   - SectionStore: extracted sections and their classification scores
//   - QuestionStore: generated questions and their validation status
//   - ExperimentStore: append-only stage run records
//   - PipelineStateStore: per-document pipeline progress
//   - ResponseCache: write-once provider responses
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.lexcards/data/lexcards.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
