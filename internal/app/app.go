package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ContractGraph/internal/cache"
	"ContractGraph/internal/config"
	"ContractGraph/internal/document"
	"ContractGraph/internal/domain"
	"ContractGraph/internal/extraction"
	"ContractGraph/internal/graph"
	"ContractGraph/internal/infrastructure/llm"
	"ContractGraph/internal/infrastructure/ml"
	"ContractGraph/internal/infrastructure/parser"
	"ContractGraph/internal/infrastructure/scheduler"
	"ContractGraph/internal/infrastructure/storage"
	"ContractGraph/internal/infrastructure/telegram"
	"ContractGraph/internal/logging"
	"ContractGraph/internal/ports"
	"ContractGraph/internal/query"
	"ContractGraph/internal/scanner"
	"ContractGraph/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	store     *storage.GraphStore
	cache     *cache.Cache
	pipeline  *usecase.Pipeline
	scheduler *usecase.Scheduler
	query     *query.Service
}

// New opens the graph store and builds every component from cfg.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	registry := scanner.NewRegistry()
	registry.Register(parser.NewTreeScanner())
	registry.Register(parser.NewFlatScanner())
	source := parser.NewCorpusSource(registry, cfg.Corpora, baseLogger.With("component", "source"))

	store, err := storage.Open(ctx, cfg.Graph.Driver, cfg.Graph.DSN, baseLogger.With("component", "graph.store"))
	if err != nil {
		return nil, fmt.Errorf("open graph store: %w", err)
	}

	processed := cache.New(cache.Options{
		Path:       cfg.Cache.Path,
		MaxBackups: cfg.Cache.MaxBackups,
		Logger:     baseLogger.With("component", "cache"),
	})

	var chat *llm.ChatGPTClient
	if cfg.ChatGPT.APIKey != "" {
		chat = llm.NewChatGPTClient(cfg.ChatGPT, cfg.Extraction.Timeout)
	}

	capability := extractionCapability(cfg, chat, baseLogger)
	extractor := extraction.NewExtractor(nil, nil,
		extraction.NewAIExtractor(capability, cfg.Extraction.Timeout, baseLogger.With("component", "extraction.ai")), nil)

	normOpts := document.DefaultOptions()
	if cfg.Pipeline.MaxChars > 0 {
		normOpts.MaxChars = cfg.Pipeline.MaxChars
	}

	writer := graph.NewPersister(store, graph.Options{
		IsTransient: storage.IsTransient,
		Logger:      baseLogger.With("component", "graph.persister"),
	})

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.Enabled() {
		notifier = telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:        source,
		Cache:         processed,
		Normalizer:    document.NewNormalizer(normOpts),
		Extractor:     extractor,
		Writer:        writer,
		Graph:         store,
		Notifier:      notifier,
		ProgressEvery: cfg.Pipeline.ProgressEvery,
		ReportDir:     cfg.Pipeline.ReportDir,
		Logger:        baseLogger.With("component", "pipeline"),
	})

	driver := scheduler.NewIntervalScheduler(cfg.Scheduler.Interval, cfg.Scheduler.Location())

	var planner ports.ChatClient
	if chat != nil {
		planner = chat
	}

	return &Application{
		cfg:       cfg,
		logger:    baseLogger,
		store:     store,
		cache:     processed,
		pipeline:  pipeline,
		scheduler: usecase.NewScheduler(driver, pipeline, baseLogger.With("component", "scheduler")),
		query:     query.NewService(store, planner, baseLogger.With("component", "query")),
	}, nil
}

func extractionCapability(cfg config.Config, chat *llm.ChatGPTClient, logger *slog.Logger) ports.ExtractionCapability {
	switch cfg.Extraction.Provider {
	case config.ProviderML:
		return ml.NewClient(cfg.ML.Endpoint, cfg.ML.APIKey, cfg.Extraction.Timeout)
	case config.ProviderChatGPT:
		if chat != nil {
			return chat
		}
		logger.Warn("chatgpt provider selected without an API key, using rule extraction only")
	case config.ProviderNone:
	default:
		logger.Warn("unknown extraction provider, using rule extraction only", "provider", cfg.Extraction.Provider)
	}
	return nil
}

// Ingest performs one batch run. MaxFiles falls back to the configured cap.
func (a *Application) Ingest(ctx context.Context, opts usecase.RunOptions) (domain.BatchReport, error) {
	if opts.MaxFiles == 0 {
		opts.MaxFiles = a.cfg.Pipeline.MaxFiles
	}
	return a.pipeline.Run(ctx, opts)
}

// Watch runs ingestion on the configured interval until ctx is done.
func (a *Application) Watch(ctx context.Context) error {
	if err := a.scheduler.Start(ctx, usecase.RunOptions{MaxFiles: a.cfg.Pipeline.MaxFiles}); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("watching corpora", "interval", a.cfg.Scheduler.Interval, "timezone", a.cfg.Scheduler.Location().String())

	<-ctx.Done()
	return a.scheduler.Stop(context.WithoutCancel(ctx))
}

// Ask answers a question over the persisted graph.
func (a *Application) Ask(ctx context.Context, question string) (query.Answer, error) {
	return a.query.Ask(ctx, question)
}

// Stats returns node and edge counts.
func (a *Application) Stats(ctx context.Context) (domain.GraphStats, error) {
	return a.store.Stats(ctx)
}

// ResetCache empties the processed-contract cache; it fails while a run holds the lock.
func (a *Application) ResetCache() error {
	if err := a.cache.AcquireLock(); err != nil {
		return err
	}
	return errors.Join(a.cache.Reset(), a.cache.ReleaseLock())
}

// Close releases the graph store.
func (a *Application) Close() error {
	return a.store.Close()
}
