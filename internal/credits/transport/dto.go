package transport

import (
	"time"

	"leadgen_backend/internal/credits/repository"

	"github.com/google/uuid"
)

// BalanceResponse keeps the snake_case field the dashboard reads.
type BalanceResponse struct {
	CreditsAvailable int64 `json:"credits_available"`
}

type ListRequest struct {
	Page     int `form:"page" validate:"omitempty,min=1"`
	PageSize int `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

type GrantRequest struct {
	UserID uuid.UUID `json:"userId" validate:"required"`
	Amount int64     `json:"amount" validate:"required,min=1,max=1000000"`
	Reason string    `json:"reason" validate:"max=200"`
}

type GrantResponse struct {
	UserID           uuid.UUID `json:"userId"`
	CreditsAvailable int64     `json:"credits_available"`
}

type DeliveryResponse struct {
	LeadID        string    `json:"ig_id"`
	RunID         uuid.UUID `json:"runId"`
	EmailsCharged int       `json:"emailsCharged"`
	IsTrial       bool      `json:"isTrial"`
	CreatedAt     time.Time `json:"createdAt"`
}

type DeliveryListResponse struct {
	Items      []DeliveryResponse `json:"items"`
	Total      int                `json:"total"`
	Page       int                `json:"page"`
	PageSize   int                `json:"pageSize"`
	TotalPages int                `json:"totalPages"`
}

type TransactionResponse struct {
	ID           uuid.UUID  `json:"id"`
	Amount       int64      `json:"amount"`
	BalanceAfter int64      `json:"balanceAfter"`
	Reason       string     `json:"reason"`
	RunID        *uuid.UUID `json:"runId,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

type TransactionListResponse struct {
	Items      []TransactionResponse `json:"items"`
	Total      int                   `json:"total"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"pageSize"`
	TotalPages int                   `json:"totalPages"`
}

func ToDeliveryResponse(d repository.Delivery) DeliveryResponse {
	return DeliveryResponse{
		LeadID:        d.LeadID,
		RunID:         d.RunID,
		EmailsCharged: d.EmailsCharged,
		IsTrial:       d.IsTrial,
		CreatedAt:     d.CreatedAt,
	}
}

func ToTransactionResponse(t repository.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:           t.ID,
		Amount:       t.Amount,
		BalanceAfter: t.BalanceAfter,
		Reason:       t.Reason,
		RunID:        t.RunID,
		CreatedAt:    t.CreatedAt,
	}
}

// TotalPages rounds up; zero items is zero pages.
func TotalPages(total, pageSize int) int {
	if pageSize < 1 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}
