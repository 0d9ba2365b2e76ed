// Package repository persists asynchronous search jobs.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a job does not exist or belongs to someone else.
var ErrNotFound = errors.New("search job not found")

const jobColumns = `id, user_id, query, requested_count, status, step, progress_percent, result, error, started_at, updated_at, completed_at`

const insertJobQuery = `
INSERT INTO search_jobs (id, user_id, query, requested_count, status, step, progress_percent)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + jobColumns

const getJobQuery = `SELECT ` + jobColumns + ` FROM search_jobs WHERE id = $1`

const getJobForUserQuery = `SELECT ` + jobColumns + ` FROM search_jobs WHERE id = $1 AND user_id = $2`

const listJobsQuery = `
SELECT ` + jobColumns + `
FROM search_jobs
WHERE user_id = $1
ORDER BY started_at DESC, id
LIMIT $2 OFFSET $3`

const countJobsQuery = `SELECT count(*) FROM search_jobs WHERE user_id = $1`

// Only a pending job can be claimed, so a redelivered task finds nothing.
const claimJobQuery = `
UPDATE search_jobs
SET status = 'running', step = $2, progress_percent = $3, updated_at = now()
WHERE id = $1 AND status = 'pending'
RETURNING ` + jobColumns

const savePartialQuery = `
UPDATE search_jobs
SET status = 'partial', step = $2, progress_percent = $3, result = $4, updated_at = now()
WHERE id = $1 AND status IN ('running', 'partial')
RETURNING ` + jobColumns

const finishJobQuery = `
UPDATE search_jobs
SET status = $2, step = $3, progress_percent = $4, result = $5, error = $6,
    updated_at = now(), completed_at = now()
WHERE id = $1 AND status NOT IN ('done', 'failed')
RETURNING ` + jobColumns

// A job whose worker died stays running until this marks it failed.
const failStaleJobsQuery = `
UPDATE search_jobs
SET status = $3, step = $4, progress_percent = 100, error = $2,
    updated_at = now(), completed_at = now()
WHERE status IN ('running', 'partial') AND updated_at < $1
RETURNING ` + jobColumns

const deleteFinishedJobsQuery = `
DELETE FROM search_jobs
WHERE (status = 'done' AND completed_at < $1)
   OR (status = 'failed' AND completed_at < $2)`

// Page selects a slice of a job listing.
type Page struct {
	Limit  int
	Offset int
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a pending job.
func (r *Repository) Create(ctx context.Context, userID uuid.UUID, query string, requested int) (Job, error) {
	row := r.pool.QueryRow(ctx, insertJobQuery, uuid.New(), userID, query, requested, StatusPending, StepQueued, 0)
	job, err := scanJob(row)
	if err != nil {
		return Job{}, fmt.Errorf("create search job: %w", err)
	}
	return job, nil
}

// Get loads a job by ID.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Job, error) {
	return r.getOne(ctx, getJobQuery, id)
}

// GetForUser loads a job owned by userID.
func (r *Repository) GetForUser(ctx context.Context, id, userID uuid.UUID) (Job, error) {
	return r.getOne(ctx, getJobForUserQuery, id, userID)
}

// ListForUser pages through a user's jobs, newest first.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID, page Page) ([]Job, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, countJobsQuery, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count search jobs: %w", err)
	}

	rows, err := r.pool.Query(ctx, listJobsQuery, userID, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list search jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan search job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, total, rows.Err()
}

// Claim moves a pending job to running. claimed is false when another worker
// already took it or it no longer exists.
func (r *Repository) Claim(ctx context.Context, id uuid.UUID, step string, progress int) (Job, bool, error) {
	job, err := scanJob(r.pool.QueryRow(ctx, claimJobQuery, id, step, progress))
	if errors.Is(err, pgx.ErrNoRows) {
		return Job{}, false, nil
	}
	if err != nil {
		return Job{}, false, fmt.Errorf("claim search job: %w", err)
	}
	return job, true, nil
}

// SavePartial stores intermediate results.
func (r *Repository) SavePartial(ctx context.Context, id uuid.UUID, step string, progress int, result Result) (Job, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return Job{}, err
	}
	job, err := scanJob(r.pool.QueryRow(ctx, savePartialQuery, id, step, progress, payload))
	if errors.Is(err, pgx.ErrNoRows) {
		return Job{}, ErrNotFound
	}
	if err != nil {
		return Job{}, fmt.Errorf("save partial result: %w", err)
	}
	return job, nil
}

// Finish moves a job to done or failed. errMsg is nil for done.
func (r *Repository) Finish(ctx context.Context, id uuid.UUID, status Status, step string, result *Result, errMsg *string) (Job, error) {
	var payload []byte
	if result != nil {
		encoded, err := json.Marshal(result)
		if err != nil {
			return Job{}, err
		}
		payload = encoded
	}

	progress := 100
	job, err := scanJob(r.pool.QueryRow(ctx, finishJobQuery, id, status, step, progress, payload, errMsg))
	if errors.Is(err, pgx.ErrNoRows) {
		return Job{}, ErrNotFound
	}
	if err != nil {
		return Job{}, fmt.Errorf("finish search job: %w", err)
	}
	return job, nil
}

// FailStale fails running or partial jobs not updated since updatedBefore and
// returns them.
func (r *Repository) FailStale(ctx context.Context, updatedBefore time.Time, errMsg string) ([]Job, error) {
	rows, err := r.pool.Query(ctx, failStaleJobsQuery, updatedBefore, errMsg, StatusFailed, StepFailed)
	if err != nil {
		return nil, fmt.Errorf("fail stale search jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stale search job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fail stale search jobs: %w", err)
	}
	return jobs, nil
}

// DeleteFinishedBefore removes old terminal jobs and returns how many went.
func (r *Repository) DeleteFinishedBefore(ctx context.Context, doneBefore, failedBefore time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, deleteFinishedJobsQuery, doneBefore, failedBefore)
	if err != nil {
		return 0, fmt.Errorf("delete finished search jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *Repository) getOne(ctx context.Context, query string, args ...any) (Job, error) {
	job, err := scanJob(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return Job{}, ErrNotFound
	}
	if err != nil {
		return Job{}, fmt.Errorf("get search job: %w", err)
	}
	return job, nil
}

func scanJob(row pgx.Row) (Job, error) {
	var (
		job    Job
		status string
		result []byte
	)
	if err := row.Scan(
		&job.ID, &job.UserID, &job.Query, &job.RequestedCount, &status, &job.Step,
		&job.ProgressPercent, &result, &job.Error, &job.StartedAt, &job.UpdatedAt, &job.CompletedAt,
	); err != nil {
		return Job{}, err
	}
	job.Status = Status(status)
	if len(result) > 0 {
		var decoded Result
		if err := json.Unmarshal(result, &decoded); err != nil {
			return Job{}, fmt.Errorf("decode job result: %w", err)
		}
		job.Result = &decoded
	}
	return job, nil
}
