package adapters

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"leadgen_backend/internal/credits/repository"
	"leadgen_backend/internal/discovery/client"
	"leadgen_backend/internal/events"
	jobsrepo "leadgen_backend/internal/jobs/repository"
	jobsservice "leadgen_backend/internal/jobs/service"
	"leadgen_backend/internal/leads/domain"
	"leadgen_backend/internal/leads/ports"
	leadsservice "leadgen_backend/internal/leads/service"
	"leadgen_backend/internal/scheduler"
	"leadgen_backend/platform/apperr"
	"leadgen_backend/platform/logger"

	"github.com/google/uuid"
)

type stubDiscovery struct {
	req      client.Request
	profiles []client.Profile
	err      error
}

func (s *stubDiscovery) Search(_ context.Context, req client.Request) ([]client.Profile, error) {
	s.req = req
	return s.profiles, s.err
}

func TestLiveDiscoveryAdapterMapsProfiles(t *testing.T) {
	followers := int64(1200)
	stub := &stubDiscovery{profiles: []client.Profile{{
		ID:        "42",
		Username:  "bakery",
		Biography: "<b>Fresh</b> bread",
		Followers: &followers,
		Emails:    []string{"hi@bakery.nl"},
	}}}
	a := &LiveDiscoveryAdapter{client: stub}

	leads, err := a.Search(context.Background(), ports.DiscoveryRequest{Query: "bakery", Limit: 2, Exclude: []string{"1"}})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if stub.req.Query != "bakery" || stub.req.Limit != 2 || stub.req.Exclude[0] != "1" {
		t.Fatalf("unexpected request %+v", stub.req)
	}
	if len(leads) != 1 || leads[0].ID != "42" || *leads[0].Followers != 1200 {
		t.Fatalf("unexpected leads %+v", leads)
	}
	if leads[0].Biography != "Fresh bread" {
		t.Fatalf("expected markup stripped, got %q", leads[0].Biography)
	}
}

func TestNilLiveDiscoveryAdapterReturnsNothing(t *testing.T) {
	a := NewLiveDiscoveryAdapter(nil)
	leads, err := a.Search(context.Background(), ports.DiscoveryRequest{Query: "x", Limit: 1})
	if err != nil || leads != nil {
		t.Fatalf("expected no leads and no error, got %v %v", leads, err)
	}
}

type stubLedger struct {
	lines []repository.Line
	res   repository.SettleResult
	err   error
}

func (s *stubLedger) DeliveredLeadIDs(context.Context, uuid.UUID, int) ([]string, error) {
	return []string{"a"}, nil
}

func (s *stubLedger) Settle(_ context.Context, _, _ uuid.UUID, lines []repository.Line) (repository.SettleResult, error) {
	s.lines = lines
	return s.res, s.err
}

func TestLedgerAdapterSettle(t *testing.T) {
	ledger := &stubLedger{res: repository.SettleResult{Created: []string{"a"}, EmailsCharged: 2, CreditsRemaining: 8}}
	a := NewLedgerAdapter(ledger)

	got, err := a.Settle(context.Background(), uuid.New(), uuid.New(), []ports.DeliveryLine{{LeadID: "a", Emails: 2}})
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if len(ledger.lines) != 1 || ledger.lines[0].LeadID != "a" || ledger.lines[0].Emails != 2 {
		t.Fatalf("unexpected lines %+v", ledger.lines)
	}
	if got.EmailsCharged != 2 || got.CreditsRemaining != 8 || got.Created[0] != "a" {
		t.Fatalf("unexpected settlement %+v", got)
	}
}

func TestLedgerAdapterMapsInsufficientFunds(t *testing.T) {
	ledger := &stubLedger{err: apperr.Wrap(apperr.KindPaymentRequired, "short", repository.ErrInsufficientFunds)}
	_, err := NewLedgerAdapter(ledger).Settle(context.Background(), uuid.New(), uuid.New(), nil)
	if !errors.Is(err, ports.ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}

	ledger.err = errors.New("connection reset")
	_, err = NewLedgerAdapter(ledger).Settle(context.Background(), uuid.New(), uuid.New(), nil)
	if err == nil || errors.Is(err, ports.ErrInsufficientCredits) {
		t.Fatalf("expected plain ledger error, got %v", err)
	}
}

type recordingQueue struct {
	payloads []scheduler.DiscoveryBackfillPayload
}

func (q *recordingQueue) EnqueueDiscoveryBackfill(_ context.Context, p scheduler.DiscoveryBackfillPayload) error {
	q.payloads = append(q.payloads, p)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func TestBackfillSchedulerPrefersQueue(t *testing.T) {
	queue := &recordingQueue{}
	bus := &recordingPublisher{}
	req := ports.DiscoveryRequest{Query: "bakery", Limit: 3, Exclude: []string{"x"}}

	if err := NewBackfillScheduler(queue, bus).ScheduleBackfill(context.Background(), req); err != nil {
		t.Fatalf("ScheduleBackfill: %v", err)
	}
	if len(queue.payloads) != 1 || len(bus.events) != 0 {
		t.Fatalf("expected queue only, got queue=%d bus=%d", len(queue.payloads), len(bus.events))
	}

	if err := NewBackfillScheduler(nil, bus).ScheduleBackfill(context.Background(), req); err != nil {
		t.Fatalf("ScheduleBackfill: %v", err)
	}
	evt, ok := bus.events[0].(events.DiscoveryBackfillRequested)
	if !ok || evt.Query != "bakery" || evt.Limit != 3 {
		t.Fatalf("unexpected event %+v", bus.events)
	}
}

type recordingBackfill struct {
	req client.Request
}

func (r *recordingBackfill) Backfill(_ context.Context, req client.Request) error {
	r.req = req
	return nil
}

func TestDiscoveryBackfillerForwardsPayload(t *testing.T) {
	d := &recordingBackfill{}
	err := NewDiscoveryBackfiller(d).RunBackfill(context.Background(), scheduler.DiscoveryBackfillPayload{Query: "q", Limit: 4})
	if err != nil || d.req.Query != "q" || d.req.Limit != 4 {
		t.Fatalf("unexpected forward %+v err=%v", d.req, err)
	}
}

type stubCoordinator struct {
	result *leadsservice.SearchResult
	err    error
	cached []domain.Lead
}

func (s *stubCoordinator) Search(ctx context.Context, _ uuid.UUID, in leadsservice.SearchInput) (*leadsservice.SearchResult, error) {
	if in.OnCacheResults != nil {
		in.OnCacheResults(ctx, s.cached)
	}
	return s.result, s.err
}

func TestJobSearcherTranslatesResult(t *testing.T) {
	remaining := int64(7)
	coord := &stubCoordinator{
		cached: []domain.Lead{{ID: "1"}},
		result: &leadsservice.SearchResult{
			Leads:               []domain.Lead{{ID: "1", Emails: []string{"a@b.co"}}},
			DeliveredEmailCount: 1,
			CacheCount:          1,
			BillingComplete:     true,
			CreditsRemaining:    &remaining,
		},
	}

	var partial []jobsrepo.ResultLead
	out, err := NewJobSearcher(coord).RunSearch(context.Background(), jobsservice.SearchRequest{UserID: uuid.New(), Query: "q", Limit: 1},
		func(_ context.Context, leads []jobsrepo.ResultLead) { partial = leads })
	if err != nil {
		t.Fatalf("RunSearch: %v", err)
	}
	if len(partial) != 1 || partial[0].Emails == nil {
		t.Fatalf("expected partial leads with empty email list, got %+v", partial)
	}
	if out.EmailsDelivered != 1 || *out.CreditsRemaining != 7 || out.Leads[0].Emails[0] != "a@b.co" {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

func TestJobSearcherKeepsOutcomeOnBillingFailure(t *testing.T) {
	billing := apperr.PaymentRequired("no credits")
	coord := &stubCoordinator{result: &leadsservice.SearchResult{Leads: []domain.Lead{{ID: "1"}}}, err: billing}

	out, err := NewJobSearcher(coord).RunSearch(context.Background(), jobsservice.SearchRequest{Query: "q", Limit: 1}, nil)
	if !errors.Is(err, billing) || out == nil || out.BillingComplete {
		t.Fatalf("expected redacted outcome with error, got %+v %v", out, err)
	}

	coord.result, coord.err = nil, apperr.Validation("query is required")
	out, err = NewJobSearcher(coord).RunSearch(context.Background(), jobsservice.SearchRequest{}, nil)
	if out != nil || err == nil {
		t.Fatalf("expected no outcome, got %+v %v", out, err)
	}
}

type countingProcessor struct {
	mu   sync.Mutex
	jobs []uuid.UUID
	ctx  []error
}

func (p *countingProcessor) Process(ctx context.Context, jobID uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jobs = append(p.jobs, jobID)
	p.ctx = append(p.ctx, ctx.Err())
	return nil
}

func TestInProcessJobRunnerSurvivesRequestCancel(t *testing.T) {
	proc := &countingProcessor{}
	runner := NewInProcessJobRunner(proc, logger.NewWithWriter("test", io.Discard))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	jobID := uuid.New()
	if err := runner.EnqueueSearchJob(ctx, jobID, uuid.New()); err != nil {
		t.Fatalf("EnqueueSearchJob: %v", err)
	}
	runner.Wait()

	if len(proc.jobs) != 1 || proc.jobs[0] != jobID {
		t.Fatalf("unexpected processed jobs %v", proc.jobs)
	}
	if proc.ctx[0] != nil {
		t.Fatalf("job context must not inherit request cancellation, got %v", proc.ctx[0])
	}
}
