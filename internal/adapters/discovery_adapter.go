package adapters

import (
	"context"

	"leadgen_backend/internal/discovery/client"
	"leadgen_backend/internal/leads/domain"
	"leadgen_backend/internal/leads/ports"
	"leadgen_backend/platform/sanitize"
)

// discoverySearcher is the slice of the discovery client used for live search.
type discoverySearcher interface {
	Search(ctx context.Context, req client.Request) ([]client.Profile, error)
}

// LiveDiscoveryAdapter adapts the discovery client for use by the leads domain.
// It implements the leads/ports.LiveDiscovery interface.
type LiveDiscoveryAdapter struct {
	client discoverySearcher
}

// NewLiveDiscoveryAdapter returns nil when c is nil so searches degrade to
// cache-only.
func NewLiveDiscoveryAdapter(c *client.Client) *LiveDiscoveryAdapter {
	if c == nil {
		return nil
	}
	return &LiveDiscoveryAdapter{client: c}
}

func (a *LiveDiscoveryAdapter) Search(ctx context.Context, req ports.DiscoveryRequest) ([]domain.Lead, error) {
	if a == nil || a.client == nil {
		return nil, nil
	}

	profiles, err := a.client.Search(ctx, client.Request{
		Query:   req.Query,
		Limit:   req.Limit,
		Exclude: req.Exclude,
	})
	if err != nil {
		return nil, err
	}

	// Profile text comes from scraped pages; strip markup like the cache does.
	leads := make([]domain.Lead, 0, len(profiles))
	for _, p := range profiles {
		leads = append(leads, domain.Lead{
			ID:        p.ID,
			Username:  p.Username,
			FullName:  sanitize.Text(p.FullName),
			Biography: sanitize.Text(p.Biography),
			Followers: p.Followers,
			Category:  sanitize.Text(p.Category),
			Emails:    p.Emails,
		})
	}
	return leads, nil
}

var _ ports.LiveDiscovery = (*LiveDiscoveryAdapter)(nil)
