package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Jeremy-Tarlie/smartmarket/internal/adapters/driven/ai"
	"github.com/Jeremy-Tarlie/smartmarket/internal/adapters/driven/catalog/jsonfile"
	"github.com/Jeremy-Tarlie/smartmarket/internal/adapters/driven/catalog/postgres"
	"github.com/Jeremy-Tarlie/smartmarket/internal/adapters/driven/config/file"
	"github.com/Jeremy-Tarlie/smartmarket/internal/adapters/driven/documents/dir"
	"github.com/Jeremy-Tarlie/smartmarket/internal/adapters/driven/storage/gobfs"
	"github.com/Jeremy-Tarlie/smartmarket/internal/adapters/driven/storage/memory"
	"github.com/Jeremy-Tarlie/smartmarket/internal/adapters/driven/storage/sqlite"
	"github.com/Jeremy-Tarlie/smartmarket/internal/adapters/driven/vectorindex/flat"
	"github.com/Jeremy-Tarlie/smartmarket/internal/adapters/driving/cli"
	"github.com/Jeremy-Tarlie/smartmarket/internal/config"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driven"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/services"
	"github.com/Jeremy-Tarlie/smartmarket/internal/logger"
	"github.com/Jeremy-Tarlie/smartmarket/internal/postprocessors"
	"github.com/Jeremy-Tarlie/smartmarket/internal/textproc"
)

// application owns the resources opened while wiring the services.
type application struct {
	closers []io.Closer
}

// Close releases resources in reverse opening order.
func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			logger.Warn("close: %v", err)
		}
	}
	a.closers = nil
}

func (a *application) track(c io.Closer) {
	a.closers = append(a.closers, c)
}

// closerFunc adapts a function to io.Closer.
type closerFunc func()

func (f closerFunc) Close() error {
	f()
	return nil
}

// Load resolves the configuration and wires every service.
func (a *application) Load(ctx context.Context) (*cli.Services, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	store, err := openConfigStore()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(store, nil)
	if err != nil {
		return nil, err
	}
	if cfg.Verbose {
		logger.SetVerbose(true)
	}
	settings := cfg.Retrieval
	if err := textproc.SetLanguage(cfg.TextLanguage); err != nil {
		return nil, err
	}
	logger.Debug("stemming: %s", textproc.Language())

	db, err := sqlite.NewStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	a.track(db)
	logger.Debug("database: %s", db.Path())

	artifacts, err := gobfs.NewArtifactStore(cfg.ArtifactDir)
	if err != nil {
		return nil, fmt.Errorf("opening artifact store: %w", err)
	}

	prompts, err := file.NewPromptStore(cfg.PromptDir)
	if err != nil {
		return nil, fmt.Errorf("opening prompts: %w", err)
	}

	models, err := ai.Init(ctx, settings, prompts)
	if err != nil {
		return nil, err
	}
	a.track(closerFunc(models.Close))
	for _, w := range models.Warnings {
		logger.Warn("%s", w)
	}

	catalog, err := openCatalog(ctx, cfg.Catalog)
	if err != nil {
		return nil, err
	}
	a.track(catalog)

	documents := openDocuments(cfg.DocumentsDir)

	pipeline, err := postprocessors.NewDefaultPipeline(settings.Assistant)
	if err != nil {
		return nil, fmt.Errorf("building document pipeline: %w", err)
	}
	logger.Debug("document pipeline: %s", strings.Join(pipeline.Stages(), " -> "))

	embedder := services.NewEmbedder(models.EmbeddingService,
		services.WithEmbedTimeout(settings.Embedding.Timeout),
		services.WithEmbedRetry(settings.Embedding.MaxAttempts, services.DefaultEmbedBackoff),
		services.WithBatchSize(settings.Embedding.BatchSize),
	)
	cache := services.NewCache(memory.NewCacheStore(settings.Cache.MaxEntries, memory.WithMaxAge(settings.Cache.TTL)), settings.Cache)
	manifest := services.NewManifest(db.ManifestStore(), artifacts)
	products := services.NewIndexStore(domain.CorpusProducts, flat.NewBuilder())
	knowledge := services.NewIndexStore(domain.CorpusDocuments, flat.NewBuilder())

	rebuilder := services.NewRebuilder(services.RebuilderDeps{
		Manifest:  manifest,
		Artifacts: artifacts,
		Embedder:  embedder,
		Catalog:   catalog,
		Documents: documents,
		Pipeline:  pipeline,
		Products:  products,
		Knowledge: knowledge,
		Cache:     cache,
	}, settings.Build)

	stale, err := rebuilder.Restore(ctx)
	if err != nil {
		return nil, fmt.Errorf("restoring indexes: %w", err)
	}
	for _, artifact := range stale {
		logger.Info("%s has no valid generation, run 'smartmarket build %s'", artifact, artifact)
	}

	scheduler := services.NewScheduler(cfg.Scheduler, db.SchedulerStore(), rebuilder, cache)

	svc := &cli.Services{
		Recommend:  services.NewRecommendationEngine(products, cache, settings.Recommend),
		Search:     services.NewSearchEngine(products, embedder, cache, settings.Search),
		Assistant:  services.NewAssistant(knowledge, embedder, models.LLMService, cache, settings.Assistant, settings.LLM),
		Status:     services.NewStatusService(manifest, cache, products, knowledge),
		Manifest:   manifest,
		Rebuild:    rebuilder,
		Cache:      cache,
		Scheduler:  scheduler,
		Models:     services.NewModelService(ai.NewConfigValidator(), settings),
		ServerAddr: cfg.ServerAddr,
		RateLimit:  cfg.RateLimit,
	}

	if notifier, ok := catalog.(driven.ChangeNotifier); ok && cfg.Catalog.Watch {
		svc.WatchCatalog = func(ctx context.Context) error {
			return services.WatchCatalog(ctx, notifier, rebuilder, services.DefaultQuietPeriod)
		}
	}

	return svc, nil
}

// openConfigStore opens config.toml in SMARTMARKET_CONFIG_DIR, or in
// ~/.smartmarket when unset.
func openConfigStore() (driven.ConfigStore, error) {
	store, err := file.NewConfigStore(os.Getenv(config.EnvPrefix + "CONFIG_DIR"))
	if err != nil {
		return nil, fmt.Errorf("opening config: %w", err)
	}
	return store, nil
}

// openCatalog opens the configured catalog. A missing JSON file yields an
// empty catalog so the knowledge base can still be served.
func openCatalog(ctx context.Context, cfg config.CatalogConfig) (driven.CatalogSource, error) {
	switch cfg.Driver {
	case config.CatalogPostgres:
		c, err := postgres.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("opening catalog: %w", err)
		}
		return c, nil
	default:
		c, err := jsonfile.New(cfg.Path)
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("catalog file %s not found, product features are unavailable", cfg.Path)
			return memory.NewCatalog(nil, nil), nil
		}
		if err != nil {
			return nil, fmt.Errorf("opening catalog: %w", err)
		}
		return c, nil
	}
}

// openDocuments opens the knowledge base directory, falling back to the
// bundled demo documents when it does not exist.
func openDocuments(root string) driven.DocumentSource {
	src, err := dir.Open(root)
	if err == nil {
		return src
	}
	if errors.Is(err, domain.ErrNotFound) {
		logger.Info("documents directory %s not found, using bundled documents", root)
	} else {
		logger.Warn("documents directory %s: %v, using bundled documents", root, err)
	}
	return dir.Demo()
}
