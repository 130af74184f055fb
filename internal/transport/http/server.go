package http

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"biolink/internal/cache"
	"biolink/internal/config"
	"biolink/internal/database"
	"biolink/internal/handler"
	"biolink/internal/logging"
	"biolink/internal/metrics"
	"biolink/internal/queue"
	"biolink/internal/redis"
	"biolink/internal/repository"
	"biolink/internal/repository/memory"
	"biolink/internal/service"
	"biolink/internal/worker"
)

const shutdownTimeout = 15 * time.Second

// App is the assembled service: router, background workers and the resources to release.
type App struct {
	Handler stdhttp.Handler

	manager *worker.Manager
	closers []func() error
	logger  zerolog.Logger
}

// Run loads configuration, serves HTTP and shuts down on SIGINT or SIGTERM.
func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	if !cfg.DotenvLoaded {
		logger.Info().Msg("no .env file found, relying on environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := NewApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.StartWorkers(ctx); err != nil {
		return err
	}

	srv := &stdhttp.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           app.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// NewApp wires every component from cfg. Optional collaborators are left out when their
// configuration is missing: no REDIS_URL means no cache, visitor tracking or reconcile queue,
// no R2 settings means uploads answer 503, no bot token means identity sync answers 503.
func NewApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	if cfg.JWTSecret == "" {
		return nil, config.ErrMissingJWTSecret
	}

	app := &App{logger: logger}
	checks := map[string]handler.Pinger{}

	var (
		profiles repository.ProfileRepository
		counters repository.CounterRepository
	)
	switch cfg.StorageDriver {
	case config.StorageDriverMemory:
		store := memory.New()
		profiles, counters = store, store
		logger.Warn().Msg("using in-memory storage; data is lost on restart")
	case config.StorageDriverPostgres:
		db, err := database.Connect(cfg, logger)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, db.Close)
		if err := database.Migrate(ctx, db); err != nil {
			app.Close()
			return nil, err
		}
		profiles = repository.NewProfileRepository(db)
		counters = repository.NewCounterRepository(db)
		checks["postgres"] = handler.PingFunc(db.PingContext)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}

	m := metrics.New()
	profileOpts := service.ProfileOptions{
		Metrics:            m,
		Logger:             logger,
		SlugLookupFallback: cfg.SlugLookupFallback,
	}
	viewOpts := service.ViewOptions{Metrics: m, Logger: logger}

	var consumer queue.Consumer
	if cfg.RedisURL != "" {
		rdb, err := redis.Connect(ctx, cfg.RedisURL, logger)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.closers = append(app.closers, rdb.Close)
		checks["redis"] = rdb

		profileCache := cache.NewProfileCache(rdb.Client, cfg.ProfileCacheTTL, logger)
		profileOpts.Cache = profileCache
		viewOpts.Cache = profileCache
		viewOpts.Visitors = cache.NewVisitorCounter(rdb.Client)
		viewOpts.Publisher = queue.NewPublisher(rdb.Client, logger)
		consumer = queue.NewConsumer(rdb.Client, logger)
	} else {
		logger.Warn().Msg("REDIS_URL not set; cache, unique visitors and reconcile queue disabled")
	}

	if cfg.UploadsEnabled() {
		media, err := service.NewMediaService(ctx, cfg)
		if err != nil {
			app.Close()
			return nil, err
		}
		profileOpts.Uploader = media
	} else {
		logger.Warn().Msg("R2 not configured; uploads disabled")
	}

	if cfg.DiscordBotToken != "" {
		profileOpts.Identity = service.NewDiscordClient(cfg.DiscordAPIBase, cfg.DiscordBotToken)
	} else {
		logger.Warn().Msg("DISCORD_BOT_TOKEN not set; identity sync disabled")
	}

	profileService := service.NewProfileService(profiles, profileOpts)
	viewService := service.NewViewService(profiles, counters, viewOpts)

	if consumer != nil {
		mcfg := worker.DefaultManagerConfig()
		mcfg.WorkerCount = cfg.WorkerCount
		app.manager = worker.NewManager(consumer, worker.NewHandler(viewService, logger), mcfg, logger)
	}

	app.Handler = NewRouter(RouterConfig{
		ProfileHandler: handler.NewProfileHandler(profileService, logger),
		ViewHandler:    handler.NewViewHandler(viewService, logger),
		MediaHandler:   handler.NewMediaHandler(profileService, logger),
		HealthHandler:  handler.NewHealthHandler(checks),
		Metrics:        m,
		Logger:         logger,
		JWTSecret:      cfg.JWTSecret,
		RequestTimeout: cfg.RequestTimeout,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	})

	return app, nil
}

// StartWorkers starts the reconcile workers when a queue is configured.
func (a *App) StartWorkers(ctx context.Context) error {
	if a.manager == nil {
		return nil
	}
	if err := a.manager.Start(ctx); err != nil {
		return fmt.Errorf("start workers: %w", err)
	}
	return nil
}

// Close stops the workers and releases connections in reverse order of creation.
func (a *App) Close() {
	if a.manager != nil {
		a.manager.Stop()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn().Err(err).Msg("close failed")
		}
	}
	a.closers = nil
}
