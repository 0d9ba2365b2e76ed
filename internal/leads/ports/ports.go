// Package ports defines the interfaces the lead delivery coordinator requires
// from the cache, the ledger and the discovery service. Adapters in
// internal/adapters implement them so this module never imports those domains.
package ports

import (
	"context"
	"errors"

	"leadgen_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// ErrInsufficientCredits is returned by Settle when the balance cannot cover
// the emails on newly delivered leads. Nothing is recorded in that case.
var ErrInsufficientCredits = errors.New("insufficient credits")

// CacheStore queries previously discovered profiles.
type CacheStore interface {
	// SearchCache returns up to limit leads matching query that are not in
	// exclude, leads with emails first, then by follower count descending.
	SearchCache(ctx context.Context, query string, exclude *domain.ExclusionSet, limit int) ([]domain.Lead, error)
}

// DeliveryLine is one lead offered for settlement.
type DeliveryLine struct {
	LeadID string
	Emails int
}

// Settlement is the outcome of recording deliveries and debiting for them.
type Settlement struct {
	// Created holds the lead IDs whose delivery row was new in this call.
	Created          []string
	EmailsCharged    int
	CreditsRemaining int64
}

// DeliveryLedger is the part of the account ledger the coordinator uses.
type DeliveryLedger interface {
	// DeliveredLeadIDs returns the most recent delivered lead IDs, at most limit.
	DeliveredLeadIDs(ctx context.Context, userID uuid.UUID, limit int) ([]string, error)
	// Settle records each line as a delivery and debits the emails of the
	// newly created ones in one atomic unit. Duplicates are skipped, not errors.
	Settle(ctx context.Context, userID, runID uuid.UUID, lines []DeliveryLine) (Settlement, error)
}

// DiscoveryRequest is a live search or backfill request.
type DiscoveryRequest struct {
	Query   string
	Limit   int
	Exclude []string
}

// LiveDiscovery performs a live search when the cache falls short.
type LiveDiscovery interface {
	Search(ctx context.Context, req DiscoveryRequest) ([]domain.Lead, error)
}

// BackfillScheduler asks the discovery service to grow the cache for a query.
// Implementations must not block on the discovery call itself.
type BackfillScheduler interface {
	ScheduleBackfill(ctx context.Context, req DiscoveryRequest) error
}
