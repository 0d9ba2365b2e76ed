package scheduler

import (
	"context"
	"fmt"

	"leadgen_backend/platform/config"
	"leadgen_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// SearchJobProcessor executes a queued search job.
type SearchJobProcessor interface {
	Process(ctx context.Context, jobID uuid.UUID) error
}

// Backfiller asks the discovery service to grow the cache for a query.
type Backfiller interface {
	RunBackfill(ctx context.Context, payload DiscoveryBackfillPayload) error
}

type Worker struct {
	server     *asynq.Server
	mux        *asynq.ServeMux
	jobs       SearchJobProcessor
	backfiller Backfiller
	log        *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, log *logger.Logger) (*Worker, error) {
	opt, err := redisClientOpt(cfg.GetRedisURL(), cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.Error("scheduler task failed", "task", task.Type(), "error", err)
		}),
	})

	w := newWorker(log)
	w.server = server
	return w, nil
}

func newWorker(log *logger.Logger) *Worker {
	mux := asynq.NewServeMux()
	w := &Worker{
		mux: mux,
		log: log,
	}

	mux.HandleFunc(TaskSearchJob, w.handleSearchJob)
	mux.HandleFunc(TaskDiscoveryBackfill, w.handleDiscoveryBackfill)

	return w
}

func (w *Worker) SetSearchJobProcessor(p SearchJobProcessor) {
	w.jobs = p
}

func (w *Worker) SetBackfiller(b Backfiller) {
	w.backfiller = b
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleSearchJob(ctx context.Context, task *asynq.Task) error {
	if w.jobs == nil {
		return fmt.Errorf("no search job processor configured")
	}

	payload, err := ParseSearchJobPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	jobID, err := uuid.Parse(payload.JobID)
	if err != nil {
		return fmt.Errorf("%w: invalid job id: %v", asynq.SkipRetry, err)
	}

	return w.jobs.Process(ctx, jobID)
}

func (w *Worker) handleDiscoveryBackfill(ctx context.Context, task *asynq.Task) error {
	if w.backfiller == nil {
		return nil
	}

	payload, err := ParseDiscoveryBackfillPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if payload.Query == "" || payload.Limit < 1 {
		return nil
	}

	return w.backfiller.RunBackfill(ctx, payload)
}
