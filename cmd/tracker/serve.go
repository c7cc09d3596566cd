package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alem-hub/learning-tracker/config"
	"github.com/alem-hub/learning-tracker/internal/application/command"
	"github.com/alem-hub/learning-tracker/internal/application/query"
	"github.com/alem-hub/learning-tracker/internal/domain/progress"
	"github.com/alem-hub/learning-tracker/internal/domain/shared"
	"github.com/alem-hub/learning-tracker/internal/infrastructure/messaging"
	"github.com/alem-hub/learning-tracker/internal/infrastructure/metrics"
	"github.com/alem-hub/learning-tracker/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/learning-tracker/internal/infrastructure/scheduler"
	"github.com/alem-hub/learning-tracker/internal/infrastructure/scheduler/jobs"
	httpapi "github.com/alem-hub/learning-tracker/internal/interface/http"
	"github.com/alem-hub/learning-tracker/pkg/timeutil"
)

var (
	serveHost    string
	servePort    int
	serveMigrate bool
)

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "host to listen on (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to listen on (overrides config)")
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "apply pending migrations before serving")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if serveHost != "" {
		cfg.HTTP.Host = serveHost
	}
	if servePort > 0 {
		cfg.HTTP.Port = servePort
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting learning tracker",
		"version", cfg.App.Version,
		"env", cfg.App.Environment,
		"driver", cfg.Database.Driver,
		"redis", cfg.Redis.Enabled,
		"timezone", cfg.Engine.Timezone,
	)

	app, err := buildApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.close()

	if err := app.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.server.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := app.scheduler.Stop(); err != nil && !errors.Is(err, scheduler.ErrSchedulerNotRunning) {
		log.Warn("scheduler stop failed", "error", err)
	}
	if err := app.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	log.Info("learning tracker stopped")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// WIRING
// ══════════════════════════════════════════════════════════════════════════════

type app struct {
	server    *httpapi.Server
	scheduler *scheduler.Scheduler
	closers   []func()
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func buildApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Storage
	// ─────────────────────────────────────────────────────────────────────────
	st, err := openStores(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, st.close)

	if serveMigrate {
		n, err := st.migrate(ctx)
		if err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		log.Info("migrations applied", "count", n)
	}

	health := httpapi.NewHealthChecker(cfg.App.Version, 2*time.Second)
	if st.health != nil {
		health.AddPinger("database", st.health)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Metrics and event bus
	// ─────────────────────────────────────────────────────────────────────────
	var m *metrics.Metrics
	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.Logger = log
	if cfg.Observability.MetricsEnabled {
		m = metrics.New()
		busConfig.Middlewares = append(busConfig.Middlewares, messaging.ObserveMiddleware(m))
	}
	busConfig.Middlewares = append(busConfig.Middlewares, messaging.LoggingMiddleware(log))
	local := messaging.NewInMemoryEventBus(busConfig)
	a.closers = append(a.closers, func() { _ = local.Close() })

	var bus shared.EventBus = local
	var catalog progress.Catalog = st.catalog
	var locker command.Locker

	schedConfig := scheduler.SchedulerConfig{Logger: log}
	if m != nil {
		schedConfig.Observer = m.ObserveJob
	}
	a.scheduler = scheduler.NewScheduler(schedConfig)

	// ─────────────────────────────────────────────────────────────────────────
	// Redis: definition cache, per-user lock, cross-instance events
	// ─────────────────────────────────────────────────────────────────────────
	client, err := openRedis(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	if client != nil {
		a.closers = append(a.closers, func() { _ = client.Close() })
		health.AddPinger("redis", redisPinger{client})

		cache := redis.NewDefinitionCache(st.catalog, redis.NewCache(client, cfg.Redis.KeyPrefix), redis.DefinitionCacheConfig{
			TTL:    cfg.Engine.DefinitionCacheTTL,
			Logger: log,
		})
		catalog = cache

		lockCfg := redis.DefaultUserLockConfig()
		lockCfg.TTL = cfg.Engine.LockTTL
		lockCfg.Logger = log
		locker = redis.NewUserLock(client, cfg.Redis.KeyPrefix, lockCfg)

		remote, err := messaging.NewRedisEventBus(ctx, client, messaging.RedisEventBusConfig{
			Channel: cfg.Redis.EventChannel,
			Local:   local,
			Logger:  log,
		})
		if err != nil {
			return nil, fmt.Errorf("redis event bus: %w", err)
		}
		a.closers = append(a.closers, func() { _ = remote.Close() })
		if err := remote.SubscribeRemote(shared.EventLessonUpserted, cache.HandleEvent); err != nil {
			return nil, err
		}
		bus = remote

		if cfg.Engine.CacheWarmInterval > 0 {
			job := jobs.NewWarmCatalogJob(cache, log)
			if err := a.scheduler.Register(job, scheduler.Every(cfg.Engine.CacheWarmInterval)); err != nil {
				return nil, err
			}
		}
	}

	if m != nil {
		if err := m.Subscribe(bus); err != nil {
			return nil, fmt.Errorf("subscribe metrics: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Application handlers and HTTP
	// ─────────────────────────────────────────────────────────────────────────
	clock := timeutil.SystemClock{}
	deps := httpapi.Dependencies{
		CompleteItem: command.NewCompletionHandler(st.progress, catalog, clock, bus, command.CompletionHandlerConfig{
			Location:    loc,
			MaxAttempts: cfg.Engine.MaxConflictRetries,
			Locker:      locker,
			Logger:      log,
		}),
		RegisterUser:    command.NewRegisterUserHandler(st.progress, clock, log),
		UpsertLesson:    command.NewUpsertLessonHandler(catalog, clock, bus, log),
		UserStats:       query.NewGetUserStatsHandler(st.progress),
		Badges:          query.NewBadgeQueryHandler(st.progress, catalog),
		Recommendations: query.NewGetRecommendedLessonsHandler(st.progress, catalog, cfg.Engine.RecommendationLimit),
		Leaderboard:     query.NewGetLeaderboardHandler(st.progress),
		Health:          health,
		Logger:          log,
	}
	if m != nil {
		deps.Metrics = m
	}

	a.server = httpapi.NewServer(httpapi.Config{
		Host:           cfg.HTTP.Host,
		Port:           cfg.HTTP.Port,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		UserHeader:     cfg.HTTP.UserHeader,
	}, deps)

	return a, nil
}
