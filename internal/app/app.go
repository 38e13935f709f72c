package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/contexo-app/contexo/internal/common"
	"github.com/contexo-app/contexo/internal/handlers"
	"github.com/contexo-app/contexo/internal/interfaces"
	"github.com/contexo-app/contexo/internal/models"
	"github.com/contexo-app/contexo/internal/services/ai"
	"github.com/contexo-app/contexo/internal/services/chat"
	"github.com/contexo-app/contexo/internal/services/combine"
	"github.com/contexo-app/contexo/internal/services/events"
	"github.com/contexo-app/contexo/internal/services/export"
	"github.com/contexo-app/contexo/internal/services/extract"
	"github.com/contexo-app/contexo/internal/services/pipeline"
	"github.com/contexo-app/contexo/internal/services/registry"
	"github.com/contexo-app/contexo/internal/services/scheduler"
	"github.com/contexo-app/contexo/internal/services/scrape"
	"github.com/contexo-app/contexo/internal/services/settings"
	badgerstore "github.com/contexo-app/contexo/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	ctx       context.Context
	cancelCtx context.CancelFunc

	// Storage
	DB        *badgerstore.BadgerDB
	KVStorage interfaces.KeyValueStorage

	// Core services
	SettingsService  interfaces.SettingsService
	EventService     interfaces.EventService
	Orchestrator     *ai.Orchestrator
	RegistryService  *registry.Service
	ExtractService   *extract.Service
	ScrapeService    *scrape.Service
	CombineService   *combine.Service
	PipelineService  *pipeline.Service
	ChatService      *chat.Service
	ExportService    *export.Service
	SchedulerService *scheduler.Service

	// HTTP handlers
	APIHandler      *handlers.APIHandler
	FilesHandler    *handlers.FilesHandler
	ScrapeHandler   *handlers.ScrapeHandler
	PipelineHandler *handlers.PipelineHandler
	ProviderHandler *handlers.ProviderHandler
	ChatHandler     *handlers.ChatHandler
	ExportHandler   *handlers.ExportHandler
	CondenseHandler *handlers.CondenseHandler
	WSHandler       *handlers.WebSocketHandler
}

// New wires the full dependency graph. Order matters: storage, then
// settings, then providers, then the services that consume them.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		Config:    cfg,
		Logger:    logger,
		ctx:       ctx,
		cancelCtx: cancel,
	}

	if err := a.initStorage(); err != nil {
		cancel()
		return nil, err
	}
	if err := a.initServices(); err != nil {
		cancel()
		a.DB.Close()
		return nil, err
	}
	a.initHandlers()

	// Re-validate persisted credentials and sessions in the background so
	// startup never blocks on provider reachability
	go a.Orchestrator.Bootstrap(a.ctx)

	if err := a.SchedulerService.Start(a.ctx); err != nil {
		logger.Warn().Err(err).Msg("Scheduler failed to start")
	}

	return a, nil
}

func (a *App) initStorage() error {
	db, err := badgerstore.NewBadgerDB(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	a.DB = db
	a.KVStorage = badgerstore.NewKVStorage(db, a.Logger)
	return nil
}

// defaultRecord seeds settings for a first run from static configuration
func (a *App) defaultRecord() models.ConfigRecord {
	record := models.ConfigRecord{
		GeminiAPIKey:   a.Config.Gemini.APIKey,
		ActiveProvider: models.ProviderTag(a.Config.LLM.DefaultProvider),
		ActiveModel:    a.Config.Gemini.Model,
	}
	if record.ActiveProvider == models.ProviderClaude {
		record.ActiveModel = a.Config.Claude.Model
	}
	return record
}

func (a *App) initServices() error {
	settingsService := settings.NewService(a.KVStorage, a.defaultRecord(), a.Logger)
	a.SettingsService = settingsService

	a.EventService = events.NewService(a.Logger)

	gemini, err := ai.NewGeminiProvider(&a.Config.Gemini, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to build gemini provider: %w", err)
	}
	claude, err := ai.NewClaudeProvider(&a.Config.Claude, settingsService, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to build claude provider: %w", err)
	}

	orchestrator, err := ai.NewOrchestrator(gemini, claude, settingsService, a.EventService, &a.Config.Claude, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to build provider orchestrator: %w", err)
	}
	a.Orchestrator = orchestrator

	a.RegistryService = registry.NewService(&a.Config.Files, a.Logger)
	a.ExtractService = extract.NewService(a.Logger)
	a.ScrapeService = scrape.NewService(&a.Config.Scrape, a.Logger)
	a.CombineService = combine.NewService(&a.Config.Processing, orchestrator, a.Logger)
	a.PipelineService = pipeline.NewService(
		a.RegistryService,
		a.ExtractService,
		a.CombineService,
		orchestrator,
		a.EventService,
		a.Logger,
	)
	a.ChatService = chat.NewService(orchestrator, a.RegistryService, a.Logger)
	a.ExportService = export.NewService(a.Logger)
	a.SchedulerService = scheduler.NewService(&a.Config.Scheduler, orchestrator, a.Logger)

	return nil
}

func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler(a.Logger)
	a.FilesHandler = handlers.NewFilesHandler(a.RegistryService, a.CombineService, a.Logger)
	a.ScrapeHandler = handlers.NewScrapeHandler(a.ScrapeService, a.RegistryService, a.Logger)
	a.PipelineHandler = handlers.NewPipelineHandler(a.ctx, a.PipelineService, a.Logger)
	a.ProviderHandler = handlers.NewProviderHandler(a.Orchestrator, a.SettingsService, a.Logger)
	a.ChatHandler = handlers.NewChatHandler(a.ChatService, a.Logger)
	a.ExportHandler = handlers.NewExportHandler(a.ExportService, a.PipelineService, a.Logger)
	a.CondenseHandler = handlers.NewCondenseHandler(a.Orchestrator, a.PipelineService, a.Logger)
	a.WSHandler = handlers.NewWebSocketHandler(a.EventService, a.Logger)
}

// Close shuts down background work and releases storage
func (a *App) Close() error {
	a.Logger.Info().Msg("Shutting down application")

	a.PipelineService.Cancel()
	a.SchedulerService.Stop()
	a.cancelCtx()

	if err := a.DB.Close(); err != nil {
		return fmt.Errorf("failed to close storage: %w", err)
	}

	a.Logger.Info().Msg("Application shutdown complete")
	return nil
}
