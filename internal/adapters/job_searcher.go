package adapters

import (
	"context"

	jobsrepo "leadgen_backend/internal/jobs/repository"
	jobsservice "leadgen_backend/internal/jobs/service"
	"leadgen_backend/internal/leads/domain"
	leadsservice "leadgen_backend/internal/leads/service"

	"github.com/google/uuid"
)

// leadSearcher is implemented by the lead delivery coordinator.
type leadSearcher interface {
	Search(ctx context.Context, userID uuid.UUID, in leadsservice.SearchInput) (*leadsservice.SearchResult, error)
}

// JobSearcher adapts the lead delivery coordinator for use by search jobs.
// It implements the jobs/service.Searcher interface.
type JobSearcher struct {
	leads leadSearcher
}

func NewJobSearcher(leads leadSearcher) *JobSearcher {
	return &JobSearcher{leads: leads}
}

// RunSearch runs the coordinator and translates its result. On billing
// failure the redacted outcome is returned alongside the error.
func (a *JobSearcher) RunSearch(ctx context.Context, req jobsservice.SearchRequest, onCache func(context.Context, []jobsrepo.ResultLead)) (*jobsservice.SearchOutcome, error) {
	in := leadsservice.SearchInput{Query: req.Query, Limit: req.Limit}
	if onCache != nil {
		in.OnCacheResults = func(ctx context.Context, cached []domain.Lead) {
			onCache(ctx, toResultLeads(cached))
		}
	}

	res, err := a.leads.Search(ctx, req.UserID, in)
	if res == nil {
		return nil, err
	}

	return &jobsservice.SearchOutcome{
		Leads:            toResultLeads(res.Leads),
		EmailsDelivered:  res.DeliveredEmailCount,
		CacheCount:       res.CacheCount,
		LiveCount:        res.LiveCount,
		BillingComplete:  res.BillingComplete,
		CreditsRemaining: res.CreditsRemaining,
	}, err
}

func toResultLeads(leads []domain.Lead) []jobsrepo.ResultLead {
	out := make([]jobsrepo.ResultLead, len(leads))
	for i, l := range leads {
		emails := l.Emails
		if emails == nil {
			emails = []string{}
		}
		out[i] = jobsrepo.ResultLead{
			ID:        l.ID,
			Username:  l.Username,
			FullName:  l.FullName,
			Biography: l.Biography,
			Followers: l.Followers,
			Category:  l.Category,
			Emails:    emails,
		}
	}
	return out
}

var _ jobsservice.Searcher = (*JobSearcher)(nil)
