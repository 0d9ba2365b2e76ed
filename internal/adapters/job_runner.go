package adapters

import (
	"context"
	"sync"
	"time"

	jobsservice "leadgen_backend/internal/jobs/service"
	"leadgen_backend/platform/logger"

	"github.com/google/uuid"
)

const inProcessJobTimeout = 5 * time.Minute

// jobProcessor is implemented by the jobs service.
type jobProcessor interface {
	Process(ctx context.Context, jobID uuid.UUID) error
}

// InProcessJobRunner executes search jobs in a goroutine of the API process.
// It is the fallback when no task queue is configured and implements the
// jobs/service.Enqueuer interface.
type InProcessJobRunner struct {
	processor jobProcessor
	log       *logger.Logger
	wg        sync.WaitGroup
}

func NewInProcessJobRunner(processor jobProcessor, log *logger.Logger) *InProcessJobRunner {
	return &InProcessJobRunner{processor: processor, log: log}
}

func (r *InProcessJobRunner) EnqueueSearchJob(ctx context.Context, jobID, _ uuid.UUID) error {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), inProcessJobTimeout)
		defer cancel()
		if err := r.processor.Process(runCtx, jobID); err != nil {
			r.log.Error("search job failed", "job_id", jobID, "error", err)
		}
	}()
	return nil
}

// Wait blocks until running jobs return.
func (r *InProcessJobRunner) Wait() {
	r.wg.Wait()
}

var _ jobsservice.Enqueuer = (*InProcessJobRunner)(nil)
