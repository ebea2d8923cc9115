// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - Extractor: Reads a PDF into a document and its sections
//   - SectionStore: Section and classification persistence
//   - QuestionStore: Question persistence
//   - DocumentIndex: Content-hash index for idempotent re-processing
//   - ExperimentStore: Append-only stage run records
//   - PipelineStateStore: Per-document stage progress
//   - PromptStore: Versioned prompt templates
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - LLMClient: Provider transport. Without it, generation is disabled.
//   - ResponseCache: Response cache. Without it, every request reaches the provider.
//   - QuestionCodec, SectionCodec: Import/export formats.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
