package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadgen_backend/internal/adapters"
	"leadgen_backend/internal/credits"
	"leadgen_backend/internal/discovery"
	"leadgen_backend/internal/events"
	"leadgen_backend/internal/health"
	apphttp "leadgen_backend/internal/http"
	"leadgen_backend/internal/http/router"
	"leadgen_backend/internal/idempotency"
	"leadgen_backend/internal/jobs"
	"leadgen_backend/internal/leads"
	"leadgen_backend/internal/notification"
	"leadgen_backend/internal/notification/relay"
	"leadgen_backend/internal/scheduler"
	"leadgen_backend/migrations"
	"leadgen_backend/platform/config"
	"leadgen_backend/platform/db"
	"leadgen_backend/platform/logger"
	"leadgen_backend/platform/metrics"
	"leadgen_backend/platform/redisclient"
	"leadgen_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, migrations.FS)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg, "leadgen-api")
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewCollector(registry)

	rdb := initRedis(ctx, cfg, log)
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	taskQueue, closeQueue := initTaskQueue(cfg, log)
	if closeQueue != nil {
		defer closeQueue()
	}

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	discoveryModule := discovery.NewModule(cfg, log)
	discoveryModule.SetMetrics(recorder)

	creditsModule := credits.NewModule(pool, eventBus, val, log)

	// Anti-Corruption Layer: leads only sees its own ports
	ledger := adapters.NewLedgerAdapter(creditsModule.Service())
	liveDiscovery := adapters.NewLiveDiscoveryAdapter(discoveryModule.Client())

	leadsModule := leads.NewModule(pool, ledger, liveDiscovery, cfg, val, log)
	leadsModule.SetEventBus(eventBus)
	leadsModule.SetMetrics(recorder)

	if taskQueue != nil {
		leadsModule.SetBackfillScheduler(adapters.NewBackfillScheduler(taskQueue, eventBus))
	} else {
		// No queue: backfills run on the in-process bus.
		leadsModule.SetBackfillScheduler(adapters.NewBackfillScheduler(nil, eventBus))
		discoveryModule.RegisterHandlers(eventBus)
	}

	jobsModule := jobs.NewModule(pool, adapters.NewJobSearcher(leadsModule.Service()), cfg, val, log)
	jobsModule.SetEventBus(eventBus)
	jobsModule.SetMetrics(recorder)
	if taskQueue != nil {
		jobsModule.SetEnqueuer(taskQueue)
	} else {
		runner := adapters.NewInProcessJobRunner(jobsModule.Service(), log)
		jobsModule.SetEnqueuer(runner)
		defer runner.Wait()
		// No worker process: this one fails abandoned jobs and purges old ones.
		go scheduler.NewSearchJobCleanup(jobsModule.Service(), log, 0, 0, 0).Run(ctx)
	}

	// Notification module turns domain events into SSE pushes
	notificationModule := notification.New(log)
	if rdb != nil {
		notificationModule.SetRelay(relay.New(rdb, relay.DefaultChannel, log))
		go notificationModule.RunRelay(ctx)
	}
	notificationModule.RegisterHandlers(eventBus)
	defer notificationModule.Close()

	if rdb != nil {
		idem := idempotency.Middleware(idempotency.NewStore(rdb, cfg.GetIdempotencyTTL()), log)
		leadsModule.UseSearchMiddleware(idem)
		jobsModule.UseSubmitMiddleware(idem)
	}

	var redisPinger health.Pinger
	if rdb != nil {
		redisPinger = health.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}
	healthModule := health.NewModule(db.NewPoolAdapter(pool), redisPinger, discoveryModule.Client(), log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Metrics:  registry,
		EventBus: eventBus,
		Modules: []apphttp.Module{
			healthModule,
			leadsModule,
			creditsModule,
			jobsModule,
			notificationModule,
		},
	}

	engine := router.New(app)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		// SSE streams never finish on their own.
		notificationModule.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
		eventBus.Wait()
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func initRedis(ctx context.Context, cfg config.SchedulerConfig, log *logger.Logger) *redis.Client {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; idempotency keys, SSE relay and task queue disabled")
		return nil
	}

	var rdb *redis.Client
	if err := withRetry(ctx, log, "redis connection", 3, time.Second, func() error {
		c, err := redisclient.New(ctx, cfg)
		if err != nil {
			return err
		}
		rdb = c
		return nil
	}); err != nil {
		log.Error("failed to connect to redis", "error", err)
		panic("failed to connect to redis: " + err.Error())
	}
	return rdb
}

func initTaskQueue(cfg config.SchedulerConfig, log *logger.Logger) (*scheduler.Client, func()) {
	if cfg.GetRedisURL() == "" {
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize task queue client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
