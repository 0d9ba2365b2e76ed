// Package service runs lead searches as asynchronous jobs: submit returns a job
// handle immediately, a worker executes the search and every transition is
// persisted and published so clients can poll or subscribe.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"leadgen_backend/internal/events"
	"leadgen_backend/internal/jobs/repository"
	"leadgen_backend/platform/apperr"
	"leadgen_backend/platform/logger"
	"leadgen_backend/platform/metrics"

	"github.com/google/uuid"
)

const (
	progressClaimed = 10
	progressPartial = 50

	defaultPageSize = 20
	maxPageSize     = 100
)

// Page is a 1-based page request.
type Page struct {
	Page     int
	PageSize int
}

func (p Page) normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = defaultPageSize
	}
	if p.PageSize > maxPageSize {
		p.PageSize = maxPageSize
	}
	return p
}

// JobList is one page of a user's jobs.
type JobList struct {
	Items    []repository.Job
	Total    int
	Page     int
	PageSize int
}

// SubmitInput is a new job request.
type SubmitInput struct {
	Query string
	Limit int
}

type Service struct {
	store    JobStore
	searcher Searcher
	enqueuer Enqueuer
	events   events.Publisher
	metrics  metrics.Recorder
	log      *logger.Logger
	maxLimit int
}

// New creates the job service. The enqueuer is set separately because the
// worker that consumes jobs is wired after the service exists.
func New(store JobStore, searcher Searcher, maxLimit int, log *logger.Logger) *Service {
	if maxLimit < 1 {
		maxLimit = 200
	}
	return &Service{store: store, searcher: searcher, metrics: metrics.Nop{}, log: log, maxLimit: maxLimit}
}

func (s *Service) SetEnqueuer(e Enqueuer) {
	s.enqueuer = e
}

func (s *Service) SetEventBus(bus events.Publisher) {
	s.events = bus
}

func (s *Service) SetMetrics(m metrics.Recorder) {
	if m != nil {
		s.metrics = m
	}
}

// Submit persists a pending job and enqueues it. A job that cannot be enqueued
// is marked failed before the error is returned.
func (s *Service) Submit(ctx context.Context, userID uuid.UUID, in SubmitInput) (repository.Job, error) {
	if userID == uuid.Nil {
		return repository.Job{}, apperr.Unauthorized("authentication required").WithOp("jobs.Submit")
	}
	query := strings.Join(strings.Fields(in.Query), " ")
	if query == "" {
		return repository.Job{}, apperr.Validation("query is required").WithOp("jobs.Submit")
	}
	if in.Limit <= 0 {
		return repository.Job{}, apperr.Validation("limit must be a positive integer").WithOp("jobs.Submit")
	}
	limit := min(in.Limit, s.maxLimit)

	job, err := s.store.Create(ctx, userID, query, limit)
	if err != nil {
		s.log.WithContext(ctx).DatabaseError("jobs.Create", err)
		return repository.Job{}, apperr.Wrap(apperr.KindInternal, "could not create search job", err).WithOp("jobs.Submit")
	}
	s.publish(ctx, job)

	if s.enqueuer == nil {
		return s.failSubmit(ctx, job, errors.New("no job runner configured"))
	}
	if err := s.enqueuer.EnqueueSearchJob(ctx, job.ID, userID); err != nil {
		return s.failSubmit(ctx, job, err)
	}

	s.log.WithContext(ctx).Info("search job submitted", "job_id", job.ID, "requested", limit)
	return job, nil
}

func (s *Service) failSubmit(ctx context.Context, job repository.Job, cause error) (repository.Job, error) {
	s.log.WithContext(ctx).Error("search job enqueue failed", "job_id", job.ID, "error", cause)
	msg := "search could not be scheduled"
	if failed, err := s.store.Finish(context.WithoutCancel(ctx), job.ID, repository.StatusFailed, repository.StepFailed, nil, &msg); err == nil {
		s.publish(ctx, failed)
	}
	return repository.Job{}, apperr.Wrap(apperr.KindInternal, msg, cause).WithOp("jobs.Submit")
}

// Get returns a job owned by userID.
func (s *Service) Get(ctx context.Context, userID, jobID uuid.UUID) (repository.Job, error) {
	job, err := s.store.GetForUser(ctx, jobID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Job{}, apperr.NotFound("search job not found").WithOp("jobs.Get")
	}
	if err != nil {
		return repository.Job{}, apperr.Wrap(apperr.KindInternal, "could not load search job", err).WithOp("jobs.Get")
	}
	return job, nil
}

// List pages through a user's jobs, newest first.
func (s *Service) List(ctx context.Context, userID uuid.UUID, page Page) (JobList, error) {
	page = page.normalize()
	items, total, err := s.store.ListForUser(ctx, userID, repository.Page{
		Limit:  page.PageSize,
		Offset: (page.Page - 1) * page.PageSize,
	})
	if err != nil {
		return JobList{}, apperr.Wrap(apperr.KindInternal, "could not list search jobs", err).WithOp("jobs.List")
	}
	return JobList{Items: items, Total: total, Page: page.Page, PageSize: page.PageSize}, nil
}

// Process executes a queued job. It returns an error only when the job state
// could not be read or claimed, so the caller may retry; a search that fails
// is recorded on the job and not retried because it may have been billed.
func (s *Service) Process(ctx context.Context, jobID uuid.UUID) error {
	log := s.log.WithContext(ctx)

	job, claimed, err := s.store.Claim(ctx, jobID, repository.StepSearching, progressClaimed)
	if err != nil {
		return err
	}
	if !claimed {
		log.Info("search job already claimed", "job_id", jobID)
		return nil
	}
	s.publish(ctx, job)

	onCache := func(ctx context.Context, leads []repository.ResultLead) {
		partial := repository.Result{Leads: leads, CacheCount: len(leads)}
		updated, err := s.store.SavePartial(ctx, job.ID, repository.StepDiscovering, progressPartial, partial)
		if err != nil {
			log.Warn("search job partial result not saved", "job_id", job.ID, "error", err)
			return
		}
		s.publish(ctx, updated)
	}

	outcome, searchErr := s.searcher.RunSearch(ctx, SearchRequest{
		UserID: job.UserID,
		Query:  job.Query,
		Limit:  job.RequestedCount,
	}, onCache)

	// Persist the final state even if the worker context was cancelled mid-search.
	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	var result *repository.Result
	if outcome != nil {
		result = &repository.Result{
			Leads:            outcome.Leads,
			EmailsDelivered:  outcome.EmailsDelivered,
			CacheCount:       outcome.CacheCount,
			LiveCount:        outcome.LiveCount,
			BillingComplete:  outcome.BillingComplete,
			CreditsRemaining: outcome.CreditsRemaining,
		}
	}

	if searchErr != nil {
		msg := failureMessage(searchErr)
		log.Warn("search job failed", "job_id", job.ID, "error", searchErr)
		failed, err := s.store.Finish(finishCtx, job.ID, repository.StatusFailed, repository.StepFailed, result, &msg)
		if err != nil {
			return err
		}
		s.publish(finishCtx, failed)
		return nil
	}

	done, err := s.store.Finish(finishCtx, job.ID, repository.StatusDone, repository.StepCompleted, result, nil)
	if err != nil {
		return err
	}
	s.publish(finishCtx, done)
	log.Info("search job completed", "job_id", job.ID, "results", len(outcome.Leads))
	return nil
}

// interruptedMessage is stored on jobs whose worker stopped mid-search.
const interruptedMessage = apperr.CodeInternal + ": search was interrupted; check your deliveries before searching again"

// FailStale marks jobs that stopped making progress as failed. They are not
// run again: the search may already have been billed.
func (s *Service) FailStale(ctx context.Context, now time.Time, staleAfter time.Duration) (int, error) {
	jobs, err := s.store.FailStale(ctx, now.Add(-staleAfter), interruptedMessage)
	if err != nil {
		return 0, err
	}
	for _, job := range jobs {
		s.log.WithContext(ctx).Warn("search job interrupted", "job_id", job.ID, "user_id", job.UserID)
		s.publish(ctx, job)
	}
	return len(jobs), nil
}

// Cleanup removes terminal jobs older than the retention windows.
func (s *Service) Cleanup(ctx context.Context, now time.Time, doneRetention, failedRetention time.Duration) (int64, error) {
	return s.store.DeleteFinishedBefore(ctx, now.Add(-doneRetention), now.Add(-failedRetention))
}

// failureMessage is the user-facing error stored on the job. Internal causes
// stay in the logs.
func failureMessage(err error) string {
	if appErr, ok := apperr.As(err); ok {
		return appErr.ErrorCode() + ": " + appErr.Message
	}
	return apperr.CodeInternal + ": search failed"
}

func (s *Service) publish(ctx context.Context, job repository.Job) {
	s.metrics.RecordJobTransition(string(job.Status))
	if s.events == nil {
		return
	}
	evt := events.SearchJobUpdated{
		BaseEvent:       events.NewBaseEvent(),
		JobID:           job.ID,
		UserID:          job.UserID,
		Status:          string(job.Status),
		Step:            job.Step,
		ProgressPercent: job.ProgressPercent,
	}
	if job.Error != nil {
		evt.Error = *job.Error
	}
	s.events.Publish(ctx, evt)
}
