package app

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/bizaudit/internal/common"
	"github.com/ternarybob/bizaudit/internal/handlers"
	"github.com/ternarybob/bizaudit/internal/interfaces"
	"github.com/ternarybob/bizaudit/internal/metrics"
	"github.com/ternarybob/bizaudit/internal/services/audits"
	"github.com/ternarybob/bizaudit/internal/services/events"
	"github.com/ternarybob/bizaudit/internal/services/generator"
	"github.com/ternarybob/bizaudit/internal/services/llm"
	"github.com/ternarybob/bizaudit/internal/services/viewer"
	"github.com/ternarybob/bizaudit/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager
	EventService   interfaces.EventService
	Metrics        *metrics.Metrics

	// Generation services
	Providers       *llm.ProviderFactory
	Generator       *generator.Generator
	FactsGenerator  *generator.FactsGenerator
	AuditService    *audits.Service
	Watcher         *viewer.Watcher
	unsubscribeLogs func()

	// HTTP handlers
	APIHandler   *handlers.APIHandler
	AuditHandler *handlers.AuditHandler
	WSHandler    *handlers.WebSocketHandler
}

// New initializes the application: storage, services, then handlers
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(),
	}

	if err := app.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.initServices(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	logger.Info().
		Str("provider", string(app.Providers.GetProviderType())).
		Int("max_attempts", cfg.Generation.MaxAttempts).
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase initializes the storage layer (Badger)
func (a *App) initDatabase() error {
	storageManager, err := badger.NewManager(a.Logger, &a.Config.Storage.Badger)
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

// initServices initializes the generation pipeline in dependency order:
// events -> provider factory -> generators -> audit service (+ reaper) -> watcher
func (a *App) initServices() error {
	var err error

	a.EventService = events.NewService(a.Logger)
	if a.unsubscribeLogs, err = events.SubscribeLoggerToAllEvents(a.EventService, a.Logger); err != nil {
		return err
	}

	a.Providers = llm.NewProviderFactory(llm.Config{
		Gemini: a.Config.Gemini,
		Claude: a.Config.Claude,
		LLM:    a.Config.LLM,
	}, a.Logger, a.Metrics)

	gen := a.Config.Generation
	a.Generator, err = generator.NewGenerator(a.Providers, generator.Config{
		Temperature:  gen.ReportTemperature,
		MaxAttempts:  gen.MaxAttempts,
		BackoffUnit:  gen.BackoffUnitDuration(),
		Pace:         gen.PaceDuration(),
		TemplatesDir: a.Config.Templates.Dir,
	}, a.Logger, a.Metrics)
	if err != nil {
		return fmt.Errorf("failed to create report generator: %w", err)
	}

	a.FactsGenerator, err = generator.NewFactsGenerator(a.Providers, "", gen.FactsCount, gen.FactsTemperature, a.Config.Templates.Dir, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create facts generator: %w", err)
	}

	a.AuditService = audits.NewService(a.StorageManager.AuditStorage(), a.EventService, a.Generator, a.Logger, a.Metrics)
	if a.Config.Jobs.ReaperSchedule != "" {
		if err := a.AuditService.StartReaper(a.Config.Jobs.ReaperSchedule, a.Config.Jobs.StaleAfterDuration()); err != nil {
			return fmt.Errorf("failed to start stale job reaper: %w", err)
		}
	}

	a.Watcher = viewer.NewWatcher(a.StorageManager.AuditStorage(), a.EventService, a.Config.Viewer.TimeoutDuration(), a.Logger)

	a.Logger.Debug().Msg("Services initialized")
	return nil
}

// initHandlers initializes HTTP handlers
func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler(a.Logger)
	a.AuditHandler = handlers.NewAuditHandler(a.AuditService, a.Watcher, a.FactsGenerator, a.Logger)
	a.WSHandler = handlers.NewWebSocketHandler(a.Watcher, a.Logger, &a.Config.WebSocket)
}

// Close stops running jobs, then closes providers, events and storage
func (a *App) Close() error {
	if a.AuditService != nil {
		if err := a.AuditService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Audit jobs did not stop cleanly")
		} else {
			a.Logger.Info().Msg("Audit service stopped")
		}
	}

	if a.Providers != nil {
		if err := a.Providers.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close LLM providers")
		}
	}

	if a.unsubscribeLogs != nil {
		a.unsubscribeLogs()
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}

