package repository

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a search job.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusPartial Status = "partial"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Terminal reports whether no further transitions happen.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Steps shown to the user while a job runs.
const (
	StepQueued      = "queued"
	StepSearching   = "searching_cache"
	StepDiscovering = "discovering"
	StepCompleted   = "completed"
	StepFailed      = "failed"
)

// ResultLead is a lead as stored with a job result.
type ResultLead struct {
	ID        string   `json:"ig_id"`
	Username  string   `json:"username"`
	FullName  string   `json:"full_name,omitempty"`
	Biography string   `json:"biography"`
	Followers *int64   `json:"followers"`
	Category  string   `json:"category"`
	Emails    []string `json:"emails"`
}

// Result is the jsonb payload of a job. Partial results never carry emails.
type Result struct {
	Leads            []ResultLead `json:"results"`
	EmailsDelivered  int          `json:"emailsDelivered"`
	CacheCount       int          `json:"cache"`
	LiveCount        int          `json:"vps"`
	BillingComplete  bool         `json:"billingComplete"`
	CreditsRemaining *int64       `json:"creditsRemaining,omitempty"`
}

// Job is one asynchronous search.
type Job struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	Query           string
	RequestedCount  int
	Status          Status
	Step            string
	ProgressPercent int
	Result          *Result
	Error           *string
	StartedAt       time.Time
	UpdatedAt       time.Time
	CompletedAt     *time.Time
}
