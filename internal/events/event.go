// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"github.com/google/uuid"

	"leadgen_backend/platform/events"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Publisher   = events.Publisher
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Lead Delivery Events
// =============================================================================

// LeadsDelivered is published after a search settled and new leads were
// recorded for the user.
type LeadsDelivered struct {
	BaseEvent
	UserID           uuid.UUID `json:"userId"`
	RunID            uuid.UUID `json:"runId"`
	Query            string    `json:"query"`
	LeadCount        int       `json:"leadCount"`
	EmailsCharged    int       `json:"emailsCharged"`
	CreditsRemaining int64     `json:"creditsRemaining"`
}

func (e LeadsDelivered) EventName() string { return "leads.delivered" }

// DiscoveryBackfillRequested is published when a search came up short and the
// discovery service should grow the cache for the query.
type DiscoveryBackfillRequested struct {
	BaseEvent
	Query   string   `json:"query"`
	Limit   int      `json:"limit"`
	Exclude []string `json:"exclude,omitempty"`
}

func (e DiscoveryBackfillRequested) EventName() string { return "leads.discovery.backfill_requested" }

// =============================================================================
// Ledger Events
// =============================================================================

// CreditsChanged is published whenever a balance moves (debit or grant).
type CreditsChanged struct {
	BaseEvent
	UserID           uuid.UUID `json:"userId"`
	Delta            int64     `json:"delta"`
	CreditsAvailable int64     `json:"creditsAvailable"`
	Reason           string    `json:"reason"`
}

func (e CreditsChanged) EventName() string { return "credits.changed" }

// =============================================================================
// Search Job Events
// =============================================================================

// SearchJobUpdated is published on every search job status transition.
type SearchJobUpdated struct {
	BaseEvent
	JobID           uuid.UUID `json:"jobId"`
	UserID          uuid.UUID `json:"userId"`
	Status          string    `json:"status"`
	Step            string    `json:"step"`
	ProgressPercent int       `json:"progressPercent"`
	Error           string    `json:"error,omitempty"`
}

func (e SearchJobUpdated) EventName() string { return "search_jobs.updated" }
