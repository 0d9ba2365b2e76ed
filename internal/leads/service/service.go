// Package service implements the lead delivery coordinator: it combines the
// cache, live discovery and the ledger into one search that never returns a
// lead twice to the same user and bills each new email exactly once.
package service

import (
	"context"
	"errors"
	"time"

	"leadgen_backend/internal/events"
	"leadgen_backend/internal/leads/domain"
	"leadgen_backend/internal/leads/ports"
	"leadgen_backend/platform/apperr"
	"leadgen_backend/platform/logger"
	"leadgen_backend/platform/metrics"

	"github.com/google/uuid"
)

const (
	outcomeOK                  = "ok"
	outcomeInvalid             = "invalid"
	outcomeInternal            = "internal"
	outcomeInsufficientCredits = "insufficient_credits"
	outcomeLedgerError         = "ledger_error"
)

// Limits bounds a single search.
type Limits struct {
	MaxLimit         int
	HistoryCap       int
	DiscoveryTimeout time.Duration
}

// ProgressFunc receives the cache-phase leads, with emails redacted, before
// discovery and billing run.
type ProgressFunc func(ctx context.Context, cached []domain.Lead)

// SearchInput is a coordinator request.
type SearchInput struct {
	Query   string
	Limit   int
	Exclude []string
	// OnCacheResults is optional.
	OnCacheResults ProgressFunc
}

// SearchResult is what a search delivered.
type SearchResult struct {
	RunID               uuid.UUID
	Query               string
	Leads               []domain.Lead
	DeliveredEmailCount int
	CacheCount          int
	LiveCount           int
	BillingComplete     bool
	CreditsRemaining    *int64
}

// Service is the lead delivery coordinator.
type Service struct {
	cache     ports.CacheStore
	ledger    ports.DeliveryLedger
	discovery ports.LiveDiscovery
	backfill  ports.BackfillScheduler
	events    events.Publisher
	metrics   metrics.Recorder
	log       *logger.Logger
	limits    Limits
	newRunID  func() uuid.UUID
}

// New creates the coordinator. backfill and bus may be nil.
func New(cache ports.CacheStore, ledger ports.DeliveryLedger, discovery ports.LiveDiscovery, limits Limits, log *logger.Logger) *Service {
	if limits.MaxLimit < 1 {
		limits.MaxLimit = 200
	}
	if limits.HistoryCap < 1 {
		limits.HistoryCap = 5000
	}
	if limits.DiscoveryTimeout <= 0 {
		limits.DiscoveryTimeout = 30 * time.Second
	}
	return &Service{
		cache:     cache,
		ledger:    ledger,
		discovery: discovery,
		metrics:   metrics.Nop{},
		log:       log,
		limits:    limits,
		newRunID:  uuid.New,
	}
}

// SetBackfillScheduler wires the asynchronous cache backfill.
func (s *Service) SetBackfillScheduler(b ports.BackfillScheduler) {
	s.backfill = b
}

// SetEventBus wires domain event publishing.
func (s *Service) SetEventBus(bus events.Publisher) {
	s.events = bus
}

// SetMetrics wires the metrics recorder.
func (s *Service) SetMetrics(m metrics.Recorder) {
	if m != nil {
		s.metrics = m
	}
}

// Search runs one delivery: history, cache, optional live top-up, merge and
// settlement.
//
// When settlement fails the returned result is non-nil alongside the error:
// it carries the matched leads with emails redacted and BillingComplete=false,
// and nothing has been recorded or charged.
func (s *Service) Search(ctx context.Context, userID uuid.UUID, in SearchInput) (*SearchResult, error) {
	if userID == uuid.Nil {
		return nil, apperr.Unauthorized("authentication required").WithOp("leads.Search")
	}

	query := domain.NormalizeQuery(in.Query)
	if query == "" {
		s.metrics.RecordSearch(outcomeInvalid)
		return nil, apperr.Validation("query is required").WithOp("leads.Search")
	}
	if in.Limit <= 0 {
		s.metrics.RecordSearch(outcomeInvalid)
		return nil, apperr.Validation("limit must be a positive integer").WithOp("leads.Search")
	}
	limit := min(in.Limit, s.limits.MaxLimit)

	log := s.log.WithContext(ctx)

	history, err := s.ledger.DeliveredLeadIDs(ctx, userID, s.limits.HistoryCap)
	if err != nil {
		s.metrics.RecordSearch(outcomeLedgerError)
		log.DatabaseError("leads.DeliveredLeadIDs", err)
		return nil, apperr.Wrap(apperr.KindInternal, "could not load delivery history", err).
			WithCode(apperr.CodeLedgerError).WithOp("leads.Search")
	}

	exclude := domain.NewExclusionSet(history)
	for _, hint := range in.Exclude {
		exclude.AddHint(hint)
	}

	cached, err := s.cache.SearchCache(ctx, query, exclude, limit)
	if err != nil {
		s.metrics.RecordSearch(outcomeInternal)
		log.DatabaseError("leads.SearchCache", err)
		return nil, apperr.Wrap(apperr.KindInternal, "search failed", err).WithOp("leads.Search")
	}

	if in.OnCacheResults != nil {
		in.OnCacheResults(ctx, domain.RedactAll(cached))
	}

	var live []domain.Lead
	if shortfall := limit - len(cached); shortfall > 0 {
		req := ports.DiscoveryRequest{
			Query:   query,
			Limit:   shortfall,
			Exclude: discoveryExclusions(exclude, cached),
		}
		live = s.fetchLive(ctx, req)
		s.requestBackfill(ctx, req)
	}

	merged := domain.Merge(cached, live, exclude, limit)
	result := &SearchResult{
		RunID:      s.newRunID(),
		Query:      query,
		CacheCount: merged.CacheUsed,
		LiveCount:  merged.LiveUsed,
	}

	if len(merged.Leads) == 0 {
		result.Leads = []domain.Lead{}
		result.BillingComplete = true
		s.metrics.RecordSearch(outcomeOK)
		return result, nil
	}

	lines := make([]ports.DeliveryLine, len(merged.Leads))
	for i, l := range merged.Leads {
		lines[i] = ports.DeliveryLine{LeadID: l.ID, Emails: l.EmailCount()}
	}

	settlement, err := s.ledger.Settle(ctx, userID, result.RunID, lines)
	if err != nil {
		return s.billingFailed(ctx, userID, result, merged.Leads, err)
	}

	result.Leads = merged.Leads
	result.DeliveredEmailCount = settlement.EmailsCharged
	result.BillingComplete = true
	remaining := settlement.CreditsRemaining
	result.CreditsRemaining = &remaining

	s.metrics.RecordSearch(outcomeOK)
	s.metrics.RecordLeadsDelivered(string(domain.SourceCache), result.CacheCount)
	s.metrics.RecordLeadsDelivered(string(domain.SourceLive), result.LiveCount)
	s.metrics.RecordEmailsBilled(settlement.EmailsCharged)

	if s.events != nil && len(settlement.Created) > 0 {
		s.events.Publish(ctx, events.LeadsDelivered{
			BaseEvent:        events.NewBaseEvent(),
			UserID:           userID,
			RunID:            result.RunID,
			Query:            query,
			LeadCount:        len(settlement.Created),
			EmailsCharged:    settlement.EmailsCharged,
			CreditsRemaining: settlement.CreditsRemaining,
		})
	}

	log.Info("search delivered",
		"run_id", result.RunID,
		"requested", limit,
		"cache", result.CacheCount,
		"live", result.LiveCount,
		"new_deliveries", len(settlement.Created),
		"emails_charged", settlement.EmailsCharged,
	)

	return result, nil
}

func (s *Service) billingFailed(ctx context.Context, userID uuid.UUID, result *SearchResult, leads []domain.Lead, err error) (*SearchResult, error) {
	emails := 0
	for _, l := range leads {
		emails += l.EmailCount()
	}
	s.log.WithContext(ctx).BillingFailure(userID.String(), len(leads), emails, err)

	result.Leads = domain.RedactAll(leads)
	result.BillingComplete = false

	if errors.Is(err, ports.ErrInsufficientCredits) {
		s.metrics.RecordSearch(outcomeInsufficientCredits)
		return result, apperr.Wrap(apperr.KindPaymentRequired, "not enough credits to reveal these results", err).
			WithCode(apperr.CodeInsufficientCredits).WithOp("leads.Search")
	}

	s.metrics.RecordSearch(outcomeLedgerError)
	return result, apperr.Wrap(apperr.KindInternal, "billing could not be completed; you have not been charged", err).
		WithCode(apperr.CodeLedgerError).WithOp("leads.Search")
}

// fetchLive calls discovery under the hard timeout. Any failure yields no leads.
func (s *Service) fetchLive(ctx context.Context, req ports.DiscoveryRequest) []domain.Lead {
	if s.discovery == nil {
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, s.limits.DiscoveryTimeout)
	defer cancel()

	leads, err := s.discovery.Search(callCtx, req)
	if err != nil {
		s.log.WithContext(ctx).UpstreamFailure("discovery", "search", err)
		return nil
	}

	out := make([]domain.Lead, 0, len(leads))
	for _, l := range leads {
		out = append(out, domain.NormalizeLead(l))
	}
	return out
}

// requestBackfill schedules the fire-and-forget cache backfill. The request
// context may be cancelled as soon as the response is written.
func (s *Service) requestBackfill(ctx context.Context, req ports.DiscoveryRequest) {
	if s.backfill == nil {
		return
	}
	if err := s.backfill.ScheduleBackfill(context.WithoutCancel(ctx), req); err != nil {
		s.log.WithContext(ctx).UpstreamFailure("discovery", "schedule_backfill", err)
	}
}

func discoveryExclusions(exclude *domain.ExclusionSet, cached []domain.Lead) []string {
	ids := exclude.IDs()
	for _, l := range cached {
		ids = append(ids, l.ID)
	}
	return ids
}
