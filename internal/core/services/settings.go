package services

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
	"github.com/custodia-labs/lexcards-cli/internal/core/ports/driven"
	"github.com/custodia-labs/lexcards-cli/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyLLMProvider       = "llm.provider"
	keyLLMModel          = "llm.model"
	keyLLMBaseURL        = "llm.base_url"
	keyLLMAPIKey         = "llm.api_key"
	keyLLMTimeout        = "llm.timeout"
	keyLLMRate           = "llm.requests_per_second"
	keyWeightSF          = "classification.weights.semantic_fitness"
	keyWeightLR          = "classification.weights.legal_relevance"
	keyWeightCD          = "classification.weights.conceptual_density"
	keyWeightCC          = "classification.weights.contextual_clarity"
	keyThresholdRelevant = "classification.threshold_relevant"
	keyThresholdReview   = "classification.threshold_review"
	keyIncludeReview     = "classification.include_review"
	keyQuestionType      = "generation.question_type"
	keyBatchSize         = "generation.batch_size"
	keyConcurrency       = "generation.concurrency"
	keyPromptVersion     = "generation.prompt_version"
	keyTemperature       = "generation.temperature"
	keyMaxTokens         = "generation.max_tokens"
	keyValidationLevel   = "validation.level"
	keyAutoFix           = "validation.auto_fix"
	keyCacheBackend      = "cache.backend"
	keyRedisAddr         = "cache.redis_addr"
)

// settingSetter parses a raw value into settings and returns the typed
// value to persist.
type settingSetter func(s *domain.AppSettings, raw string) (any, error)

// settingSetters maps every settable key to its parser.
var settingSetters = map[string]settingSetter{
	keyLLMProvider: func(s *domain.AppSettings, raw string) (any, error) {
		p := domain.AIProvider(strings.ToLower(raw))
		if !p.IsValid() {
			return nil, domain.NewConfigurationError(keyLLMProvider, "unknown provider %q", raw)
		}
		s.LLM.Provider = p
		return string(p), nil
	},
	keyLLMModel:      stringSetter(func(s *domain.AppSettings) *string { return &s.LLM.Model }),
	keyLLMBaseURL:    stringSetter(func(s *domain.AppSettings) *string { return &s.LLM.BaseURL }),
	keyLLMAPIKey:     stringSetter(func(s *domain.AppSettings) *string { return &s.LLM.APIKey }),
	keyPromptVersion: stringSetter(func(s *domain.AppSettings) *string { return &s.Generation.PromptVersion }),
	keyRedisAddr:     stringSetter(func(s *domain.AppSettings) *string { return &s.Cache.RedisAddr }),
	keyLLMTimeout: func(s *domain.AppSettings, raw string) (any, error) {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return nil, domain.NewConfigurationError(keyLLMTimeout, "invalid duration %q", raw)
		}
		s.LLM.Timeout = d
		return d.String(), nil
	},
	keyLLMRate:           floatSetter(keyLLMRate, func(s *domain.AppSettings) *float64 { return &s.LLM.RequestsPerSecond }),
	keyWeightSF:          floatSetter(keyWeightSF, func(s *domain.AppSettings) *float64 { return &s.Classification.Weights.SemanticFitness }),
	keyWeightLR:          floatSetter(keyWeightLR, func(s *domain.AppSettings) *float64 { return &s.Classification.Weights.LegalRelevance }),
	keyWeightCD:          floatSetter(keyWeightCD, func(s *domain.AppSettings) *float64 { return &s.Classification.Weights.ConceptualDensity }),
	keyWeightCC:          floatSetter(keyWeightCC, func(s *domain.AppSettings) *float64 { return &s.Classification.Weights.ContextualClarity }),
	keyThresholdRelevant: floatSetter(keyThresholdRelevant, func(s *domain.AppSettings) *float64 { return &s.Classification.Thresholds.Relevant }),
	keyThresholdReview:   floatSetter(keyThresholdReview, func(s *domain.AppSettings) *float64 { return &s.Classification.Thresholds.Review }),
	keyTemperature:       floatSetter(keyTemperature, func(s *domain.AppSettings) *float64 { return &s.Generation.Params.Temperature }),
	keyIncludeReview:     boolSetter(keyIncludeReview, func(s *domain.AppSettings) *bool { return &s.Classification.IncludeReview }),
	keyAutoFix:           boolSetter(keyAutoFix, func(s *domain.AppSettings) *bool { return &s.Validation.AutoFix }),
	keyBatchSize:         intSetter(keyBatchSize, func(s *domain.AppSettings) *int { return &s.Generation.BatchSize }),
	keyConcurrency:       intSetter(keyConcurrency, func(s *domain.AppSettings) *int { return &s.Generation.Concurrency }),
	keyMaxTokens:         intSetter(keyMaxTokens, func(s *domain.AppSettings) *int { return &s.Generation.Params.MaxTokens }),
	keyQuestionType: func(s *domain.AppSettings, raw string) (any, error) {
		s.Generation.QuestionType = domain.QuestionType(strings.ToLower(raw))
		return string(s.Generation.QuestionType), nil
	},
	keyValidationLevel: func(s *domain.AppSettings, raw string) (any, error) {
		l, err := domain.ParseValidationLevel(raw)
		if err != nil {
			return nil, err
		}
		s.Validation.Level = l
		return string(l), nil
	},
	keyCacheBackend: func(s *domain.AppSettings, raw string) (any, error) {
		s.Cache.Backend = domain.CacheBackend(strings.ToLower(raw))
		return string(s.Cache.Backend), nil
	},
}

func stringSetter(field func(*domain.AppSettings) *string) settingSetter {
	return func(s *domain.AppSettings, raw string) (any, error) {
		*field(s) = raw
		return raw, nil
	}
}

func floatSetter(key string, field func(*domain.AppSettings) *float64) settingSetter {
	return func(s *domain.AppSettings, raw string) (any, error) {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, domain.NewConfigurationError(key, "not a number: %q", raw)
		}
		*field(s) = v
		return v, nil
	}
}

func intSetter(key string, field func(*domain.AppSettings) *int) settingSetter {
	return func(s *domain.AppSettings, raw string) (any, error) {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, domain.NewConfigurationError(key, "not an integer: %q", raw)
		}
		*field(s) = v
		return v, nil
	}
}

func boolSetter(key string, field func(*domain.AppSettings) *bool) settingSetter {
	return func(s *domain.AppSettings, raw string) (any, error) {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, domain.NewConfigurationError(key, "not a boolean: %q", raw)
		}
		*field(s) = v
		return v, nil
	}
}

// SettingKeys returns every key accepted by Set, sorted.
func SettingKeys() []string {
	keys := make([]string, 0, len(settingSetters))
	for k := range settingSetters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
	}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	d := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		LLM: domain.LLMSettings{
			Provider:          s.getProvider(keyLLMProvider, d.LLM.Provider),
			Model:             s.getString(keyLLMModel, d.LLM.Model),
			BaseURL:           s.configStore.GetString(keyLLMBaseURL), // No default - empty is valid for cloud providers
			APIKey:            s.configStore.GetString(keyLLMAPIKey),
			Timeout:           s.getDuration(keyLLMTimeout, d.LLM.Timeout),
			RequestsPerSecond: s.getFloat(keyLLMRate, d.LLM.RequestsPerSecond),
		},
		Classification: domain.ClassificationSettings{
			Weights: domain.Weights{
				SemanticFitness:   s.getFloat(keyWeightSF, d.Classification.Weights.SemanticFitness),
				LegalRelevance:    s.getFloat(keyWeightLR, d.Classification.Weights.LegalRelevance),
				ConceptualDensity: s.getFloat(keyWeightCD, d.Classification.Weights.ConceptualDensity),
				ContextualClarity: s.getFloat(keyWeightCC, d.Classification.Weights.ContextualClarity),
			},
			Thresholds: domain.Thresholds{
				Relevant: s.getFloat(keyThresholdRelevant, d.Classification.Thresholds.Relevant),
				Review:   s.getFloat(keyThresholdReview, d.Classification.Thresholds.Review),
			},
			IncludeReview: s.getBool(keyIncludeReview, d.Classification.IncludeReview),
		},
		Generation: domain.GenerationSettings{
			QuestionType:  s.getQuestionType(d.Generation.QuestionType),
			BatchSize:     s.getInt(keyBatchSize, d.Generation.BatchSize),
			Concurrency:   s.getInt(keyConcurrency, d.Generation.Concurrency),
			PromptVersion: s.configStore.GetString(keyPromptVersion),
			Params: domain.GenerationParams{
				Temperature: s.getFloat(keyTemperature, d.Generation.Params.Temperature),
				MaxTokens:   s.getInt(keyMaxTokens, d.Generation.Params.MaxTokens),
			},
		},
		Validation: domain.ValidationSettings{
			Level:   s.getLevel(d.Validation.Level),
			AutoFix: s.getBool(keyAutoFix, d.Validation.AutoFix),
		},
		Cache: domain.CacheSettings{
			Backend:   s.getCacheBackend(d.Cache.Backend),
			RedisAddr: s.configStore.GetString(keyRedisAddr),
		},
	}

	return settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyLLMProvider, settings.LLM.Provider.String()},
		{keyLLMModel, settings.LLM.Model},
		{keyLLMBaseURL, settings.LLM.BaseURL},
		{keyLLMTimeout, settings.LLM.Timeout.String()},
		{keyLLMRate, settings.LLM.RequestsPerSecond},
		{keyWeightSF, settings.Classification.Weights.SemanticFitness},
		{keyWeightLR, settings.Classification.Weights.LegalRelevance},
		{keyWeightCD, settings.Classification.Weights.ConceptualDensity},
		{keyWeightCC, settings.Classification.Weights.ContextualClarity},
		{keyThresholdRelevant, settings.Classification.Thresholds.Relevant},
		{keyThresholdReview, settings.Classification.Thresholds.Review},
		{keyIncludeReview, settings.Classification.IncludeReview},
		{keyQuestionType, settings.Generation.QuestionType.String()},
		{keyBatchSize, settings.Generation.BatchSize},
		{keyConcurrency, settings.Generation.Concurrency},
		{keyPromptVersion, settings.Generation.PromptVersion},
		{keyTemperature, settings.Generation.Params.Temperature},
		{keyMaxTokens, settings.Generation.Params.MaxTokens},
		{keyValidationLevel, settings.Validation.Level.String()},
		{keyAutoFix, settings.Validation.AutoFix},
		{keyCacheBackend, string(settings.Cache.Backend)},
		{keyRedisAddr, settings.Cache.RedisAddr},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	// API keys are only written when set so clearing other fields never wipes them
	if settings.LLM.APIKey != "" {
		if err := s.configStore.Set(keyLLMAPIKey, settings.LLM.APIKey); err != nil {
			return fmt.Errorf("save llm api_key: %w", err)
		}
	}

	return nil
}

// Set stores a single setting by dotted key. The resulting settings must
// validate, except for the weight sum: weights are set one at a time and
// the sum is enforced when a run starts.
func (s *SettingsService) Set(key, value string) error {
	setter, ok := settingSetters[key]
	if !ok {
		return domain.NewConfigurationError(key, "unknown setting")
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}
	typed, err := setter(settings, strings.TrimSpace(value))
	if err != nil {
		return err
	}
	if err := validatePartial(*settings); err != nil {
		return err
	}
	if err := s.configStore.Set(key, typed); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func validatePartial(settings domain.AppSettings) error {
	if err := settings.Classification.Weights.Validate(); err != nil {
		var cfgErr *domain.ConfigurationError
		if !errors.As(err, &cfgErr) || cfgErr.Field != "weights" {
			return err
		}
		settings.Classification.Weights = domain.DefaultWeights()
	}
	// The API key is usually stored by a separate call after the provider.
	err := settings.Validate()
	var cfgErr *domain.ConfigurationError
	if errors.As(err, &cfgErr) && cfgErr.Field == keyLLMAPIKey {
		return nil
	}
	return err
}

// SetLLMProvider configures the LLM provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid LLM provider: %s", provider)
	}

	// Validate API key if required
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.LLM.Provider = provider

	// Set model - use provided or default
	if model != "" {
		settings.LLM.Model = model
	} else {
		defaults := domain.DefaultLLMModels()
		if defaultModel, ok := defaults[provider]; ok {
			settings.LLM.Model = defaultModel
		}
	}

	// Local providers need a base URL, cloud providers use their own endpoint
	switch provider {
	case domain.AIProviderOllama:
		if settings.LLM.BaseURL == "" {
			settings.LLM.BaseURL = "http://localhost:11434"
		}
	case domain.AIProviderLMStudio:
		if settings.LLM.BaseURL == "" {
			settings.LLM.BaseURL = "http://localhost:1234/v1"
		}
	default:
		settings.LLM.BaseURL = ""
	}

	settings.LLM.APIKey = apiKey

	return s.Save(settings)
}

// Validate checks that the current settings can drive a pipeline run.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	if err := settings.Validate(); err != nil {
		return err
	}
	if !settings.LLM.IsConfigured() {
		return fmt.Errorf("LLM provider is not configured: %w", domain.ErrLLMUnavailable)
	}
	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

// getFloat accepts TOML floats and integers ("1" and "1.0" both load).
func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	val, exists := s.configStore.Get(key)
	if !exists {
		return defaultVal
	}
	switch v := val.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

// getProvider returns the stored provider as is. An unknown id is kept so
// that Validate reports it instead of the run silently losing its LLM.
func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := strings.TrimSpace(s.configStore.GetString(key))
	if val == "" {
		return defaultVal
	}
	return domain.AIProvider(strings.ToLower(val))
}

func (s *SettingsService) getQuestionType(defaultVal domain.QuestionType) domain.QuestionType {
	qt := domain.QuestionType(s.configStore.GetString(keyQuestionType))
	if !qt.IsValid() {
		return defaultVal
	}
	return qt
}

func (s *SettingsService) getLevel(defaultVal domain.ValidationLevel) domain.ValidationLevel {
	level, err := domain.ParseValidationLevel(s.configStore.GetString(keyValidationLevel))
	if err != nil {
		return defaultVal
	}
	return level
}

func (s *SettingsService) getCacheBackend(defaultVal domain.CacheBackend) domain.CacheBackend {
	b := domain.CacheBackend(s.configStore.GetString(keyCacheBackend))
	if !b.IsValid() {
		return defaultVal
	}
	return b
}
