// Command lexcards turns legal PDFs into validated study questions.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/custodia-labs/lexcards-cli/internal/adapters/driven/ai"
	rediscache "github.com/custodia-labs/lexcards-cli/internal/adapters/driven/cache/redis"
	"github.com/custodia-labs/lexcards-cli/internal/adapters/driven/config/file"
	"github.com/custodia-labs/lexcards-cli/internal/adapters/driven/exchange"
	"github.com/custodia-labs/lexcards-cli/internal/adapters/driven/extractor/pdf"
	"github.com/custodia-labs/lexcards-cli/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/lexcards-cli/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/lexcards-cli/internal/adapters/driving/cli"
	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
	"github.com/custodia-labs/lexcards-cli/internal/core/ports/driven"
	"github.com/custodia-labs/lexcards-cli/internal/core/ports/driving"
	"github.com/custodia-labs/lexcards-cli/internal/core/services"
	"github.com/custodia-labs/lexcards-cli/internal/logger"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx)
	stop()
	logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	configStore, err := file.NewConfigStore("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: opening config: %v\n", err)
		return err
	}
	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator())

	store, err := sqlite.NewStore("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: opening database: %v\n", err)
		return err
	}
	defer store.Close()

	prompts, err := file.NewPromptStore("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: opening prompts: %v\n", err)
		return err
	}
	go func() {
		if err := prompts.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Debug("Prompt watcher stopped: %v", err)
		}
	}()

	settings, err := settingsService.Get()
	if err != nil {
		logger.Warn("Failed to load settings, using defaults: %v", err)
		defaults := domain.DefaultAppSettings()
		settings = &defaults
	}

	classifier := services.NewClassificationService()
	validator := services.NewValidationService()
	generator, closeGen := buildGenerator(ctx, settings, store, prompts)
	defer closeGen()

	codec := exchange.NewCodec()
	pipeline := services.NewPipelineService(services.PipelineDeps{
		Extractor:   pdf.NewExtractor(pdf.DefaultConfig()),
		Documents:   store.DocumentIndex(),
		Sections:    store.SectionStore(),
		Questions:   store.QuestionStore(),
		Experiments: store.ExperimentStore(),
		States:      store.PipelineStateStore(),
		Settings:    settingsService,
		Classifier:  classifier,
		Generator:   generator,
		Validator:   validator,
	})
	library := services.NewLibraryService(services.LibraryDeps{
		Documents:     store.DocumentIndex(),
		Sections:      store.SectionStore(),
		Questions:     store.QuestionStore(),
		States:        store.PipelineStateStore(),
		QuestionCodec: codec,
		SectionCodec:  codec,
	})

	cli.SetVersion(version)
	cli.SetServices(cli.Services{
		Settings:       settingsService,
		Pipeline:       pipeline,
		Library:        library,
		Classification: classifier,
		Validation:     validator,
	})
	return cli.Execute(ctx)
}

// buildGenerator creates the generation service for the configured LLM
// provider. Without a provider the generate stage reports ErrLLMUnavailable.
func buildGenerator(
	ctx context.Context,
	settings *domain.AppSettings,
	store *sqlite.Store,
	prompts driven.PromptStore,
) (driving.GenerationService, func()) {
	client, err := ai.CreateLLMClient(&settings.LLM)
	if err != nil {
		logger.Debug("LLM client not available: %v", err)
		return nil, func() {}
	}

	cache, closeCache := responseCache(ctx, settings.Cache, store)
	backend := services.NewBackend(client, services.WithResponseCache(cache))
	return services.NewGenerationService(backend, prompts), func() {
		closeCache()
		client.Close()
	}
}

// responseCache selects the configured cache backend. A redis server that
// cannot be reached falls back to the sqlite cache.
func responseCache(ctx context.Context, cfg domain.CacheSettings, store *sqlite.Store) (driven.ResponseCache, func()) {
	switch cfg.Backend {
	case domain.CacheNone:
		return nil, func() {}
	case domain.CacheMemory:
		return memory.NewResponseCache(), func() {}
	case domain.CacheRedis:
		rc, err := rediscache.NewResponseCache(ctx, rediscache.Config{Addr: cfg.RedisAddr})
		if err == nil {
			return rc, func() { rc.Close() }
		}
		logger.Warn("Redis cache unavailable, using sqlite: %v", err)
	}
	return store.ResponseCache(), func() {}
}
