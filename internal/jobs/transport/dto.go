package transport

import (
	"time"

	"leadgen_backend/internal/jobs/repository"

	"github.com/google/uuid"
)

type SubmitRequest struct {
	Query string `json:"q" validate:"required,max=200"`
	Limit *int   `json:"limit" validate:"omitempty,min=1"`
}

type ListRequest struct {
	Page     int `form:"page" validate:"omitempty,min=1"`
	PageSize int `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

type SubmitResponse struct {
	JobID     uuid.UUID `json:"jobId"`
	Status    string    `json:"status"`
	StatusURL string    `json:"statusUrl"`
}

type Source struct {
	Cache int `json:"cache"`
	VPS   int `json:"vps"`
}

type JobResponse struct {
	ID               uuid.UUID               `json:"id"`
	Status           string                  `json:"status"`
	Step             string                  `json:"step"`
	ProgressPercent  int                     `json:"progressPercent"`
	Query            string                  `json:"query"`
	RequestedCount   int                     `json:"requestedCount"`
	Results          []repository.ResultLead `json:"results"`
	EmailsDelivered  int                     `json:"emailsDelivered"`
	Source           Source                  `json:"source"`
	BillingComplete  bool                    `json:"billingComplete"`
	CreditsRemaining *int64                  `json:"creditsRemaining,omitempty"`
	Error            *string                 `json:"error,omitempty"`
	StartedAt        time.Time               `json:"startedAt"`
	UpdatedAt        time.Time               `json:"updatedAt"`
	CompletedAt      *time.Time              `json:"completedAt,omitempty"`
}

type JobListResponse struct {
	Items      []JobResponse `json:"items"`
	Total      int           `json:"total"`
	Page       int           `json:"page"`
	PageSize   int           `json:"pageSize"`
	TotalPages int           `json:"totalPages"`
}

func ToJobResponse(job repository.Job) JobResponse {
	resp := JobResponse{
		ID:              job.ID,
		Status:          string(job.Status),
		Step:            job.Step,
		ProgressPercent: job.ProgressPercent,
		Query:           job.Query,
		RequestedCount:  job.RequestedCount,
		Results:         []repository.ResultLead{},
		Error:           job.Error,
		StartedAt:       job.StartedAt,
		UpdatedAt:       job.UpdatedAt,
		CompletedAt:     job.CompletedAt,
	}
	if r := job.Result; r != nil {
		if r.Leads != nil {
			resp.Results = r.Leads
		}
		resp.EmailsDelivered = r.EmailsDelivered
		resp.Source = Source{Cache: r.CacheCount, VPS: r.LiveCount}
		resp.BillingComplete = r.BillingComplete
		resp.CreditsRemaining = r.CreditsRemaining
	}
	return resp
}

func TotalPages(total, pageSize int) int {
	if pageSize < 1 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}
