package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"leadgen_backend/internal/jobs/repository"
	"leadgen_backend/internal/jobs/service"
	"leadgen_backend/internal/jobs/transport"
	"leadgen_backend/platform/apperr"
	"leadgen_backend/platform/httpkit"
	"leadgen_backend/platform/logger"
	"leadgen_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// fixedStore holds a single job.
type fixedStore struct {
	job     repository.Job
	created int
}

func (s *fixedStore) Create(_ context.Context, userID uuid.UUID, query string, requested int) (repository.Job, error) {
	s.created++
	s.job = repository.Job{
		ID:             uuid.New(),
		UserID:         userID,
		Query:          query,
		RequestedCount: requested,
		Status:         repository.StatusPending,
		Step:           repository.StepQueued,
		StartedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	return s.job, nil
}

func (s *fixedStore) Get(_ context.Context, id uuid.UUID) (repository.Job, error) {
	if id != s.job.ID {
		return repository.Job{}, repository.ErrNotFound
	}
	return s.job, nil
}

func (s *fixedStore) GetForUser(ctx context.Context, id, userID uuid.UUID) (repository.Job, error) {
	if userID != s.job.UserID {
		return repository.Job{}, repository.ErrNotFound
	}
	return s.Get(ctx, id)
}

func (s *fixedStore) ListForUser(_ context.Context, userID uuid.UUID, _ repository.Page) ([]repository.Job, int, error) {
	if userID != s.job.UserID {
		return []repository.Job{}, 0, nil
	}
	return []repository.Job{s.job}, 1, nil
}

func (s *fixedStore) Claim(context.Context, uuid.UUID, string, int) (repository.Job, bool, error) {
	return repository.Job{}, false, nil
}

func (s *fixedStore) SavePartial(context.Context, uuid.UUID, string, int, repository.Result) (repository.Job, error) {
	return s.job, nil
}

func (s *fixedStore) Finish(context.Context, uuid.UUID, repository.Status, string, *repository.Result, *string) (repository.Job, error) {
	return s.job, nil
}

func (s *fixedStore) FailStale(context.Context, time.Time, string) ([]repository.Job, error) {
	return nil, nil
}

func (s *fixedStore) DeleteFinishedBefore(context.Context, time.Time, time.Time) (int64, error) {
	return 0, nil
}

type nopEnqueuer struct{}

func (nopEnqueuer) EnqueueSearchJob(context.Context, uuid.UUID, uuid.UUID) error { return nil }

func newEngine(store *fixedStore, userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := service.New(store, nil, 200, logger.NewWithWriter("test", io.Discard))
	svc.SetEnqueuer(nopEnqueuer{})

	engine := gin.New()
	api := engine.Group("/api")
	api.Use(func(c *gin.Context) {
		c.Set(httpkit.ContextUserIDKey, userID)
		c.Next()
	})
	New(svc, validator.New(), 3).RegisterRoutes(api)
	return engine
}

func TestSubmitReturnsAccepted(t *testing.T) {
	store := &fixedStore{}
	engine := newEngine(store, uuid.New())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/search/jobs", strings.NewReader(`{"q":"bakery"}`))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var body transport.SubmitResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.JobID != store.job.ID || body.Status != "pending" {
		t.Fatalf("unexpected body %+v", body)
	}
	if rec.Header().Get("Location") != body.StatusURL {
		t.Fatalf("expected Location %q, got %q", body.StatusURL, rec.Header().Get("Location"))
	}
	if store.job.RequestedCount != 3 {
		t.Fatalf("expected default limit 3, got %d", store.job.RequestedCount)
	}
}

func TestSubmitRejectsInvalidBody(t *testing.T) {
	for _, payload := range []string{`{}`, `{"q":"x","limit":0}`, `not json`} {
		store := &fixedStore{}
		engine := newEngine(store, uuid.New())

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/search/jobs", strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		engine.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", payload, rec.Code)
		}
		if store.created != 0 {
			t.Fatalf("%s: job must not be created", payload)
		}
	}
}

func TestGetReturnsOwnJobOnly(t *testing.T) {
	owner := uuid.New()
	errMsg := "insufficient_credits: not enough credits to reveal these results"
	store := &fixedStore{job: repository.Job{
		ID:              uuid.New(),
		UserID:          owner,
		Query:           "bakery",
		RequestedCount:  3,
		Status:          repository.StatusFailed,
		Step:            repository.StepFailed,
		ProgressPercent: 100,
		Error:           &errMsg,
		Result:          &repository.Result{Leads: []repository.ResultLead{{ID: "1", Emails: []string{}}}, CacheCount: 1},
	}}

	rec := httptest.NewRecorder()
	newEngine(store, owner).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search/jobs/"+store.job.ID.String(), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body transport.JobResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "failed" || body.Error == nil || *body.Error != errMsg || body.Source.Cache != 1 {
		t.Fatalf("unexpected body %+v", body)
	}
	if !strings.Contains(rec.Header().Get("Cache-Control"), "no-store") {
		t.Fatal("job status must not be cacheable")
	}

	rec = httptest.NewRecorder()
	newEngine(store, uuid.New()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search/jobs/"+store.job.ID.String(), nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for another user, got %d", rec.Code)
	}
	var errBody httpkit.ErrorResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &errBody)
	if errBody.Error != apperr.CodeNotFound {
		t.Fatalf("unexpected code %q", errBody.Error)
	}
}

func TestGetRejectsMalformedID(t *testing.T) {
	rec := httptest.NewRecorder()
	newEngine(&fixedStore{}, uuid.New()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search/jobs/nope", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestListPagesJobs(t *testing.T) {
	owner := uuid.New()
	store := &fixedStore{job: repository.Job{ID: uuid.New(), UserID: owner, Status: repository.StatusDone}}

	rec := httptest.NewRecorder()
	newEngine(store, owner).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search/jobs?pageSize=10", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body transport.JobListResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Total != 1 || body.PageSize != 10 || body.TotalPages != 1 || len(body.Items) != 1 {
		t.Fatalf("unexpected list %+v", body)
	}
	if body.Items[0].Results == nil {
		t.Fatal("results must encode as an empty array")
	}
}

func TestRegisterRoutesLeavesCallerMiddlewareUntouched(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := service.New(&fixedStore{}, nil, 200, logger.NewWithWriter("test", io.Discard))

	mw := make([]gin.HandlerFunc, 1, 2)
	mw[0] = func(c *gin.Context) { c.Next() }
	New(svc, validator.New(), 3).RegisterRoutes(gin.New().Group("/api"), mw...)

	if spare := mw[:2][1]; spare != nil {
		t.Fatal("submit route was written into the caller's middleware slice")
	}
}
