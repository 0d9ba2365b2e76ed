package transport

import (
	"leadgen_backend/internal/leads/domain"
	"leadgen_backend/internal/leads/service"

	"github.com/google/uuid"
)

// SearchRequest is the body of POST /api/search. Limit is optional; emptiness
// and non-positive values are rejected by the coordinator.
type SearchRequest struct {
	Query   string   `json:"q" validate:"max=200"`
	Limit   *int     `json:"limit"`
	Exclude []string `json:"exclude" validate:"max=5000,dive,max=128"`
}

// Lead is the wire shape of a lead.
type Lead struct {
	ID        string   `json:"ig_id" validate:"required,max=128"`
	Username  string   `json:"username" validate:"max=128"`
	FullName  string   `json:"full_name,omitempty"`
	Biography string   `json:"biography"`
	Followers *int64   `json:"followers"`
	Category  string   `json:"category"`
	Emails    []string `json:"emails"`
}

// Source is the per-origin breakdown. "vps" is the live discovery count.
type Source struct {
	Cache int `json:"cache"`
	VPS   int `json:"vps"`
}

// SearchResponse is returned on success and, with Error set, on a billing
// failure where the matched leads are shown with emails redacted.
type SearchResponse struct {
	Error            string `json:"error,omitempty"`
	Message          string `json:"message,omitempty"`
	RunID            string `json:"runId,omitempty"`
	Results          []Lead `json:"results"`
	EmailsDelivered  int    `json:"emailsDelivered"`
	Source           Source `json:"source"`
	BillingComplete  bool   `json:"billingComplete"`
	CreditsRemaining *int64 `json:"creditsRemaining,omitempty"`
}

// ExportRequest is the body of POST /api/export-csv.
type ExportRequest struct {
	Results []Lead `json:"results" validate:"required,max=5000,dive"`
}

func FromDomain(l domain.Lead) Lead {
	emails := l.Emails
	if emails == nil {
		emails = []string{}
	}
	return Lead{
		ID:        l.ID,
		Username:  l.Username,
		FullName:  l.FullName,
		Biography: l.Biography,
		Followers: l.Followers,
		Category:  l.Category,
		Emails:    emails,
	}
}

func FromDomainList(leads []domain.Lead) []Lead {
	out := make([]Lead, len(leads))
	for i, l := range leads {
		out[i] = FromDomain(l)
	}
	return out
}

func (l Lead) ToDomain() domain.Lead {
	return domain.Lead{
		ID:        l.ID,
		Username:  l.Username,
		FullName:  l.FullName,
		Biography: l.Biography,
		Followers: l.Followers,
		Category:  l.Category,
		Emails:    l.Emails,
	}
}

func ToDomainList(leads []Lead) []domain.Lead {
	out := make([]domain.Lead, len(leads))
	for i, l := range leads {
		out[i] = l.ToDomain()
	}
	return out
}

// NewSearchResponse maps a coordinator result.
func NewSearchResponse(r *service.SearchResult) SearchResponse {
	resp := SearchResponse{
		Results:          FromDomainList(r.Leads),
		EmailsDelivered:  r.DeliveredEmailCount,
		Source:           Source{Cache: r.CacheCount, VPS: r.LiveCount},
		BillingComplete:  r.BillingComplete,
		CreditsRemaining: r.CreditsRemaining,
	}
	if r.RunID != uuid.Nil {
		resp.RunID = r.RunID.String()
	}
	return resp
}
