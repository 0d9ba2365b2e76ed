package service

import (
	"context"
	"time"

	"leadgen_backend/internal/jobs/repository"

	"github.com/google/uuid"
)

// JobStore persists jobs. Implemented by repository.Repository.
type JobStore interface {
	Create(ctx context.Context, userID uuid.UUID, query string, requested int) (repository.Job, error)
	Get(ctx context.Context, id uuid.UUID) (repository.Job, error)
	GetForUser(ctx context.Context, id, userID uuid.UUID) (repository.Job, error)
	ListForUser(ctx context.Context, userID uuid.UUID, page repository.Page) ([]repository.Job, int, error)
	Claim(ctx context.Context, id uuid.UUID, step string, progress int) (repository.Job, bool, error)
	SavePartial(ctx context.Context, id uuid.UUID, step string, progress int, result repository.Result) (repository.Job, error)
	Finish(ctx context.Context, id uuid.UUID, status repository.Status, step string, result *repository.Result, errMsg *string) (repository.Job, error)
	FailStale(ctx context.Context, updatedBefore time.Time, errMsg string) ([]repository.Job, error)
	DeleteFinishedBefore(ctx context.Context, doneBefore, failedBefore time.Time) (int64, error)
}

// SearchRequest is what a job asks the coordinator for.
type SearchRequest struct {
	UserID uuid.UUID
	Query  string
	Limit  int
}

// SearchOutcome is the coordinator result translated into job terms.
type SearchOutcome struct {
	Leads            []repository.ResultLead
	EmailsDelivered  int
	CacheCount       int
	LiveCount        int
	BillingComplete  bool
	CreditsRemaining *int64
}

// Searcher runs a lead search on behalf of a job. onCache receives the
// redacted cache-phase leads. On billing failure the outcome is returned with
// the error.
type Searcher interface {
	RunSearch(ctx context.Context, req SearchRequest, onCache func(ctx context.Context, leads []repository.ResultLead)) (*SearchOutcome, error)
}

// Enqueuer hands a job to a worker.
type Enqueuer interface {
	EnqueueSearchJob(ctx context.Context, jobID, userID uuid.UUID) error
}
