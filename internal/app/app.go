package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"GroceryScanner/internal/cache"
	"GroceryScanner/internal/config"
	"GroceryScanner/internal/domain"
	"GroceryScanner/internal/infrastructure/api"
	"GroceryScanner/internal/infrastructure/sites"
	"GroceryScanner/internal/infrastructure/storage"
	"GroceryScanner/internal/infrastructure/telegram"
	"GroceryScanner/internal/logging"
	"GroceryScanner/internal/ports"
	"GroceryScanner/internal/scraper"
	"GroceryScanner/internal/usecase"
)

// Application wires configuration into the scrape pipeline, scheduler, and
// HTTP API, and owns their lifecycle.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	db        *sql.DB
	redis     *storage.RedisCache
	scheduler *usecase.Scheduler
	server    *http.Server
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	db, err := storage.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := storage.Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	repo := storage.NewSQLRepository(db, cfg.Database.Driver)

	app := &Application{cfg: cfg, logger: baseLogger, db: db}

	var cacheRepo ports.ScrapeCacheRepository = repo
	if cfg.Cache.Backend == "redis" {
		redisCache, err := storage.NewRedisCache(cfg.Cache.Redis.Addr, cfg.Cache.Redis.Password, cfg.Cache.Redis.DB)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		app.redis = redisCache
		cacheRepo = redisCache
	}

	registry := scraper.NewRegistry()
	registry.Register(sites.NewShopriteAdapter(nil))
	registry.Register(sites.NewPnPAdapter(nil))
	registry.Register(sites.NewWoolworthsAdapter(nil))

	var notifier ports.ChangeNotifier
	if cfg.Telegram.BotToken != "" {
		notifier, err = telegram.NewNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			// Notifications are best effort; a bad token must not take the
			// scraper down.
			baseLogger.Warn("telegram notifier disabled", "error", err)
			notifier = nil
		}
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Registry:   registry,
		Gate:       cache.NewGate(cacheRepo, nil, logging.WithComponent(baseLogger, "gate")),
		Reconciler: usecase.NewReconciler(repo, nil, logging.WithComponent(baseLogger, "reconcile")),
		Notifier:   notifier,
		Logger:     logging.WithComponent(baseLogger, "pipeline"),
	})

	app.scheduler = usecase.NewScheduler(pipeline, usecase.SchedulerConfig{
		Schedule:      scheduleFromConfig(cfg.Scheduler.Schedule),
		Pacing:        cfg.Scheduler.Pacing(),
		CycleInterval: cfg.Scheduler.CycleInterval(),
		ErrorBackoff:  cfg.Scheduler.ErrorBackoff(),
	}, nil, logging.WithComponent(baseLogger, "scheduler"))

	apiServer := api.NewServer(pipeline, app.scheduler, repo, cacheRepo, nil,
		logging.WithComponent(baseLogger, "api"))
	app.server = &http.Server{
		Addr:              cfg.API.Addr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return app, nil
}

// Run starts the scheduler and serves the API until ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	a.scheduler.Start(ctx)

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("api listening", "addr", a.cfg.API.Addr)
		serveErr <- a.server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve api: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown api: %w", err)
	}
	return nil
}

// Close releases storage connections.
func (a *Application) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", "error", err)
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("close database", "error", err)
	}
}

func scheduleFromConfig(entries []config.ScheduleEntryConfig) []usecase.ScheduleEntry {
	schedule := make([]usecase.ScheduleEntry, 0, len(entries))
	for _, e := range entries {
		schedule = append(schedule, usecase.ScheduleEntry{
			Store:     domain.Store(e.Store),
			Category:  e.Category,
			MaxPages:  e.MaxPages,
			Frequency: time.Duration(e.FrequencyHours) * time.Hour,
		})
	}
	return schedule
}
