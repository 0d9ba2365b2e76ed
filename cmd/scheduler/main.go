package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"leadgen_backend/internal/adapters"
	"leadgen_backend/internal/credits"
	"leadgen_backend/internal/discovery"
	"leadgen_backend/internal/events"
	"leadgen_backend/internal/jobs"
	"leadgen_backend/internal/leads"
	"leadgen_backend/internal/notification"
	"leadgen_backend/internal/notification/relay"
	"leadgen_backend/internal/scheduler"
	"leadgen_backend/platform/config"
	"leadgen_backend/platform/db"
	"leadgen_backend/platform/logger"
	"leadgen_backend/platform/redisclient"
	"leadgen_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg, "leadgen-scheduler")
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

	eventBus := events.NewInMemoryBus(log)

	rdb, err := redisclient.New(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		panic("failed to connect to redis: " + err.Error())
	}
	defer func() { _ = rdb.Close() }()

	// Job progress reaches API replicas over the relay.
	notificationModule := notification.New(log)
	notificationModule.SetRelay(relay.New(rdb, relay.DefaultChannel, log))
	notificationModule.RegisterHandlers(eventBus)

	queue, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize task queue client", "error", err)
		panic("failed to initialize task queue client: " + err.Error())
	}
	defer func() { _ = queue.Close() }()

	val := validator.New()

	// Worker-side search wiring (no HTTP handlers required).
	discoveryModule := discovery.NewModule(cfg, log)
	creditsModule := credits.NewModule(pool, eventBus, val, log)

	leadsModule := leads.NewModule(
		pool,
		adapters.NewLedgerAdapter(creditsModule.Service()),
		adapters.NewLiveDiscoveryAdapter(discoveryModule.Client()),
		cfg,
		val,
		log,
	)
	leadsModule.SetEventBus(eventBus)
	leadsModule.SetBackfillScheduler(adapters.NewBackfillScheduler(queue, eventBus))

	jobsModule := jobs.NewModule(pool, adapters.NewJobSearcher(leadsModule.Service()), cfg, val, log)
	jobsModule.SetEventBus(eventBus)
	jobsModule.SetEnqueuer(queue)

	cleanupInterval := getDurationEnv("SEARCH_JOB_CLEANUP_INTERVAL", 10*time.Minute)
	completedRetention := time.Duration(getPositiveIntEnv("SEARCH_JOB_COMPLETED_RETENTION_DAYS", 7)) * 24 * time.Hour
	failedRetention := time.Duration(getPositiveIntEnv("SEARCH_JOB_FAILED_RETENTION_DAYS", 30)) * 24 * time.Hour
	searchJobCleanup := scheduler.NewSearchJobCleanup(jobsModule.Service(), log, cleanupInterval, completedRetention, failedRetention)
	go searchJobCleanup.Run(ctx)

	worker, err := scheduler.NewWorker(cfg, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}
	worker.SetSearchJobProcessor(jobsModule.Service())
	worker.SetBackfiller(adapters.NewDiscoveryBackfiller(discoveryModule))

	worker.Run(ctx)
	eventBus.Wait()
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
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

func getPositiveIntEnv(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}

	return parsed
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}

	return parsed
}
