package domain

import (
	"strings"
	"time"
)

const unknownDescription = "Unknown"

// AIProvider identifies an LLM service provider.
type AIProvider string

// Supported providers.
const (
	// AIProviderOllama is a local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOllamaCloud is Ollama's hosted API.
	AIProviderOllamaCloud AIProvider = "ollama_cloud"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"

	// AIProviderGroq is Groq's OpenAI-compatible API.
	AIProviderGroq AIProvider = "groq"

	// AIProviderKimi is Moonshot's OpenAI-compatible Kimi API.
	AIProviderKimi AIProvider = "kimi"

	// AIProviderLMStudio is a local LM Studio server (OpenAI-compatible).
	AIProviderLMStudio AIProvider = "lmstudio"
)

// IsValid returns true if the provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOllamaCloud, AIProviderOpenAI, AIProviderAnthropic,
		AIProviderGroq, AIProviderKimi, AIProviderLMStudio:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	switch p {
	case AIProviderOpenAI, AIProviderAnthropic, AIProviderGroq, AIProviderKimi, AIProviderOllamaCloud:
		return true
	default:
		return false
	}
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama || p == AIProviderLMStudio
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOllamaCloud:
		return "Ollama Cloud"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	case AIProviderGroq:
		return "Groq (cloud)"
	case AIProviderKimi:
		return "Kimi / Moonshot (cloud)"
	case AIProviderLMStudio:
		return "LM Studio (local)"
	default:
		return unknownDescription
	}
}

// AllLLMProviders returns every supported provider.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOllamaCloud,
		AIProviderOpenAI,
		AIProviderAnthropic,
		AIProviderGroq,
		AIProviderKimi,
		AIProviderLMStudio,
	}
}

// DefaultLLMModels returns default models for each provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:      "llama3.2",
		AIProviderOllamaCloud: "ministral-3:14b-cloud",
		AIProviderOpenAI:      "gpt-4o-mini",
		AIProviderAnthropic:   "claude-3-5-sonnet-latest",
		AIProviderGroq:        "llama-3.3-70b-versatile",
		AIProviderKimi:        "moonshot-v1-128k",
		AIProviderLMStudio:    "local-model",
	}
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL overrides the provider endpoint.
	BaseURL string

	// APIKey is the API key for cloud providers.
	APIKey string

	// Timeout bounds a single provider call.
	Timeout time.Duration

	// RequestsPerSecond throttles calls to the provider. Zero uses the provider default.
	RequestsPerSecond float64
}

// Validate rejects a provider that is set but unknown, and a cloud
// provider without an API key. An empty provider is valid: runs that never
// reach the generate stage need no LLM.
func (l LLMSettings) Validate() error {
	if l.Provider == "" {
		return nil
	}
	if !l.Provider.IsValid() {
		return NewConfigurationError("llm.provider", "unknown provider %q", l.Provider)
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return NewConfigurationError("llm.api_key", "required for %s", l.Provider)
	}
	return nil
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// GenerationParams are the sampling parameters sent with every request.
// They participate in the response cache key.
type GenerationParams struct {
	Temperature float64
	MaxTokens   int
}

// DefaultGenerationParams returns temperature 0.7 and 4096 max tokens.
func DefaultGenerationParams() GenerationParams {
	return GenerationParams{Temperature: 0.7, MaxTokens: 4096}
}

// ValidationLevel selects the validation rule set.
type ValidationLevel string

// Available validation levels.
const (
	// LevelLenient checks format only.
	LevelLenient ValidationLevel = "lenient"

	// LevelModerate adds length bounds.
	LevelModerate ValidationLevel = "moderate"

	// LevelStrict adds length bounds, duplicate checks and required justifications.
	LevelStrict ValidationLevel = "strict"
)

// ParseValidationLevel parses a level name case-insensitively.
func ParseValidationLevel(s string) (ValidationLevel, error) {
	l := ValidationLevel(strings.ToLower(strings.TrimSpace(s)))
	if !l.IsValid() {
		return "", NewConfigurationError("validation.level", "unknown level %q", s)
	}
	return l, nil
}

// IsValid returns true if the level is recognised.
func (l ValidationLevel) IsValid() bool {
	switch l {
	case LevelLenient, LevelModerate, LevelStrict:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (l ValidationLevel) String() string {
	return string(l)
}

// ClassificationSettings configures the classification engine.
type ClassificationSettings struct {
	Weights       Weights
	Thresholds    Thresholds
	IncludeReview bool
}

// GenerationSettings configures batching and generation.
type GenerationSettings struct {
	// QuestionType is the default type generated.
	QuestionType QuestionType

	// BatchSize is the number of sections per batch. Zero selects adaptively.
	BatchSize int

	// Concurrency is the number of batches generated in parallel.
	Concurrency int

	// PromptVersion pins a prompt template version. Empty uses the active one.
	PromptVersion string

	// Params are the sampling parameters.
	Params GenerationParams
}

// ValidationSettings configures the validation engine.
type ValidationSettings struct {
	Level   ValidationLevel
	AutoFix bool
}

// CacheBackend selects where responses are cached.
type CacheBackend string

// Available cache backends.
const (
	CacheSQLite CacheBackend = "sqlite"
	CacheRedis  CacheBackend = "redis"
	CacheMemory CacheBackend = "memory"
	CacheNone   CacheBackend = "none"
)

// IsValid returns true if the backend is recognised.
func (c CacheBackend) IsValid() bool {
	switch c {
	case CacheSQLite, CacheRedis, CacheMemory, CacheNone:
		return true
	default:
		return false
	}
}

// CacheSettings configures the response cache.
type CacheSettings struct {
	Backend   CacheBackend
	RedisAddr string
}

// AppSettings holds all application settings.
type AppSettings struct {
	LLM            LLMSettings
	Classification ClassificationSettings
	Generation     GenerationSettings
	Validation     ValidationSettings
	Cache          CacheSettings
}

// DefaultAppSettings returns settings with sensible defaults.
// The LLM provider is left unconfigured; users must set it explicitly.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		LLM: LLMSettings{
			Timeout: 120 * time.Second,
		},
		Classification: ClassificationSettings{
			Weights:       DefaultWeights(),
			Thresholds:    DefaultThresholds(),
			IncludeReview: true,
		},
		Generation: GenerationSettings{
			QuestionType: QuestionFlashcard,
			Concurrency:  1,
			Params:       DefaultGenerationParams(),
		},
		Validation: ValidationSettings{
			Level:   LevelModerate,
			AutoFix: true,
		},
		Cache: CacheSettings{
			Backend: CacheSQLite,
		},
	}
}

// Validate checks every setting that would otherwise fail mid-run.
func (s AppSettings) Validate() error {
	if err := s.Classification.Weights.Validate(); err != nil {
		return err
	}
	if err := s.Classification.Thresholds.Validate(); err != nil {
		return err
	}
	if !s.Generation.QuestionType.IsValid() {
		return NewConfigurationError("generation.question_type", "unknown type %q", s.Generation.QuestionType)
	}
	if s.Generation.BatchSize < 0 {
		return NewConfigurationError("generation.batch_size", "must not be negative")
	}
	if !s.Validation.Level.IsValid() {
		return NewConfigurationError("validation.level", "unknown level %q", s.Validation.Level)
	}
	if !s.Cache.Backend.IsValid() {
		return NewConfigurationError("cache.backend", "unknown backend %q", s.Cache.Backend)
	}
	if s.Cache.Backend == CacheRedis && s.Cache.RedisAddr == "" {
		return NewConfigurationError("cache.redis_addr", "required for the redis cache")
	}
	return s.LLM.Validate()
}

// Price is a per-million-token USD rate.
type Price struct {
	Input  float64
	Output float64
}

// Cost returns the USD cost of a call.
func (p Price) Cost(inputTokens, outputTokens int) float64 {
	return (float64(inputTokens)*p.Input + float64(outputTokens)*p.Output) / 1_000_000
}

// pricing lists known per-model rates. Local providers are free.
var pricing = map[AIProvider]map[string]Price{
	AIProviderOpenAI: {
		"gpt-4o-mini": {Input: 0.15, Output: 0.60},
		"gpt-4o":      {Input: 2.50, Output: 10.00},
	},
	AIProviderAnthropic: {
		"claude-3-5-sonnet-latest": {Input: 3.00, Output: 15.00},
		"claude-3-5-haiku-latest":  {Input: 0.80, Output: 4.00},
	},
	AIProviderGroq: {
		"llama-3.3-70b-versatile": {Input: 0.59, Output: 0.79},
		"llama-3.1-8b-instant":    {Input: 0.05, Output: 0.08},
	},
	AIProviderKimi: {
		"moonshot-v1-8k":   {Input: 0.20, Output: 2.00},
		"moonshot-v1-32k":  {Input: 1.00, Output: 3.00},
		"moonshot-v1-128k": {Input: 2.00, Output: 5.00},
	},
}

// PriceFor returns the rate for a provider and model, or zero when unknown.
func PriceFor(p AIProvider, model string) Price {
	if models, ok := pricing[p]; ok {
		return models[model]
	}
	return Price{}
}
