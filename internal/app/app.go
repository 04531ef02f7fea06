package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sectorscope/internal/common"
	"github.com/ternarybob/sectorscope/internal/handlers"
	"github.com/ternarybob/sectorscope/internal/interfaces"
	"github.com/ternarybob/sectorscope/internal/models"
	"github.com/ternarybob/sectorscope/internal/services/cache"
	"github.com/ternarybob/sectorscope/internal/services/catalog"
	"github.com/ternarybob/sectorscope/internal/services/classifier"
	"github.com/ternarybob/sectorscope/internal/services/converter"
	"github.com/ternarybob/sectorscope/internal/services/discovery"
	"github.com/ternarybob/sectorscope/internal/services/evaluator"
	"github.com/ternarybob/sectorscope/internal/services/events"
	"github.com/ternarybob/sectorscope/internal/services/keywords"
	"github.com/ternarybob/sectorscope/internal/services/llm"
	"github.com/ternarybob/sectorscope/internal/services/pdf"
	"github.com/ternarybob/sectorscope/internal/services/pipeline"
	"github.com/ternarybob/sectorscope/internal/services/scheduler"
	"github.com/ternarybob/sectorscope/internal/services/status"
	"github.com/ternarybob/sectorscope/internal/storage"
)

// PipelineJobName is the scheduler job that runs the ingestion cycle
const PipelineJobName = "pipeline"

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	ctx            context.Context
	cancelCtx      context.CancelFunc
	closeOnce      sync.Once
	StorageManager interfaces.StorageManager

	// Event-driven services
	EventService     interfaces.EventService
	StatusService    *status.Service
	SchedulerService *scheduler.Service

	// Text generation
	ProviderFactory *llm.ProviderFactory
	LLMService      *llm.Service
	Analyst         *llm.Analyst

	// Pipeline services
	CatalogService  *catalog.Service
	Converter       *converter.Converter
	Evaluator       *evaluator.Evaluator
	Orchestrator    *pipeline.Orchestrator
	KeywordService  *keywords.Service
	PDFRenderer     *pdf.Renderer
	IndustryVocab   *models.Vocabulary
	ReportDiscovery *discovery.Discoverer

	// HTTP handlers
	WSHandler       *handlers.WebSocketHandler
	StatusHandler   *handlers.StatusHandler
	ReportHandler   *handlers.ReportHandler
	AnalysisHandler *handlers.AnalysisHandler
	PipelineHandler *handlers.PipelineHandler
}

// New initializes the application with all dependencies.
// A missing API key for the default provider is returned as common.ErrMissingAPIKey.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		Config:    cfg,
		Logger:    logger,
		ctx:       ctx,
		cancelCtx: cancel,
	}

	app.ProviderFactory = llm.NewProviderFactory(&cfg.Gemini, &cfg.Claude, &cfg.LLM, logger)
	if err := app.ProviderFactory.ValidateCredentials(); err != nil {
		cancel()
		return nil, err
	}

	// Initialize database
	if err := app.initDatabase(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize event bus and status tracking before anything publishes
	app.EventService = events.NewService(logger)
	app.StatusService = status.NewService(logger)
	if err := app.StatusService.SubscribeToPipelineEvents(app.EventService); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to subscribe status service: %w", err)
	}

	if err := app.initServices(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := app.initHandlers(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	logger.Info().
		Str("provider", cfg.LLM.DefaultProvider).
		Str("schedule", cfg.Pipeline.Schedule).
		Int("industries", len(app.IndustryVocab.Labels())).
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase initializes the storage layer (Badger)
func (a *App) initDatabase() error {
	storageManager, err := storage.NewStorageManager(a.Logger, a.Config)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}

	a.StorageManager = storageManager
	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")
	return nil
}

// initServices initializes business services in dependency order:
// generator, catalog, converter, evaluator, orchestrator, keywords, scheduler.
func (a *App) initServices() error {
	cfg := a.Config

	a.LLMService = llm.NewService(a.ProviderFactory, &cfg.LLM, a.defaultModel(), a.Logger)
	a.Analyst = llm.NewAnalyst(a.LLMService, cfg.Pipeline.HomeMarket, a.Logger)

	vocabulary, err := models.LoadVocabulary(cfg.Industries.VocabularyFile)
	if err != nil {
		return err
	}
	a.IndustryVocab = vocabulary

	a.CatalogService = catalog.NewService(a.StorageManager.CatalogStorage(), a.Logger)

	fetcher := pdf.NewFetcher(a.Logger, pdf.WithUserAgent(cfg.Discovery.UserAgent))
	a.Converter = converter.NewConverter(
		fetcher,
		a.Analyst,
		a.StorageManager.DerivedTextStorage(),
		a.CatalogService,
		converter.OptionsFromConfig(&cfg.Converter),
		a.Logger,
	)
	a.PDFRenderer = pdf.NewRenderer(a.Logger)

	a.Evaluator = evaluator.NewEvaluator(
		classifier.NewClassifier(a.Analyst, vocabulary, a.Logger),
		a.Analyst,
		a.StorageManager.DerivedTextStorage(),
		a.StorageManager.EvaluationStorage(),
		cfg.Pipeline.ExcerptLength,
		a.Logger,
	)

	a.ReportDiscovery = discovery.NewDiscoverer(&cfg.Discovery, a.Logger)
	a.Orchestrator = pipeline.NewOrchestrator(
		a.CatalogService,
		a.ReportDiscovery,
		a.Converter,
		a.Evaluator,
		a.StorageManager.EvaluationStorage(),
		a.EventService,
		&cfg.Pipeline,
		a.Logger,
	)

	a.KeywordService = keywords.NewService(
		a.CatalogService,
		a.StorageManager.DerivedTextStorage(),
		a.Analyst,
		cache.NewService(a.StorageManager.KeywordCacheStorage(), a.Logger),
		a.Logger,
	)

	a.SchedulerService = scheduler.NewService(a.Logger)
	if cfg.Pipeline.Schedule != "" {
		if err := a.SchedulerService.RegisterJob(PipelineJobName, cfg.Pipeline.Schedule, "Discover, convert and evaluate reports", a.runPipelineJob); err != nil {
			return fmt.Errorf("failed to register pipeline job: %w", err)
		}
	} else {
		a.Logger.Info().Msg("Pipeline schedule empty, runs are manual only")
	}

	return nil
}

// initHandlers initializes HTTP handlers
func (a *App) initHandlers() error {
	var err error
	a.WSHandler, err = handlers.NewWebSocketHandler(a.EventService, a.StatusService, a.Logger)
	if err != nil {
		return err
	}

	a.StatusHandler = handlers.NewStatusHandler(a.StatusService, a.SchedulerService, a.Logger)
	a.ReportHandler = handlers.NewReportHandler(a.CatalogService, a.StorageManager.DerivedTextStorage(), a.PDFRenderer, a.Logger)
	a.AnalysisHandler = handlers.NewAnalysisHandler(a.ctx, a.KeywordService, a.Orchestrator, a.Logger)
	a.PipelineHandler = handlers.NewPipelineHandler(a.ctx, a.Orchestrator, a.Logger)
	return nil
}

func (a *App) defaultModel() string {
	if llm.ProviderType(a.Config.LLM.DefaultProvider) == llm.ProviderClaude {
		return a.Config.Claude.Model
	}
	return a.Config.Gemini.Model
}

// runPipelineJob is the scheduled ingestion cycle; an overlapping tick is not an error
func (a *App) runPipelineJob(ctx context.Context) error {
	_, err := a.Orchestrator.Cycle(ctx, false)
	if errors.Is(err, pipeline.ErrRunInProgress) {
		a.Logger.Info().Msg("Pipeline run already in progress, skipping scheduled run")
		return nil
	}
	return err
}

// RunOnce performs a single forced ingestion cycle under the application context
func (a *App) RunOnce() (*models.RunReport, error) {
	return a.Orchestrator.Cycle(a.ctx, true)
}

// Context returns the application lifetime context, cancelled by Close
func (a *App) Context() context.Context {
	return a.ctx
}

// Cancel stops background pipeline runs between documents
func (a *App) Cancel() {
	if a.cancelCtx != nil {
		a.cancelCtx()
	}
}

// Close closes all application resources. Safe to call more than once.
func (a *App) Close() error {
	var err error
	a.closeOnce.Do(func() {
		err = a.close()
	})
	return err
}

func (a *App) close() error {
	// Cancel background runs; in-flight documents finish before the run stops
	a.Logger.Info().Msg("Cancelling background goroutines")
	a.Cancel()

	// Stop scheduler service
	if a.SchedulerService != nil {
		a.SchedulerService.Stop()
	}

	// Let an in-flight document finish before storage closes
	if a.Orchestrator != nil {
		waitCtx, cancel := context.WithTimeout(context.Background(), common.ParseDurationOr(a.Config.LLM.Timeout, 5*time.Minute))
		if err := a.Orchestrator.Wait(waitCtx); err != nil {
			a.Logger.Warn().Err(err).Msg("Pipeline run still in progress at shutdown")
		}
		cancel()
	}

	if a.WSHandler != nil {
		a.WSHandler.Close()
	}

	// Close event service
	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	// Close storage
	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
