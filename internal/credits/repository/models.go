package repository

import (
	"time"

	"github.com/google/uuid"
)

// Transaction reasons.
const (
	ReasonDelivery = "delivery"
	ReasonGrant    = "grant"
	ReasonDebit    = "debit"
)

// Delivery records that a user received a lead. Rows are never updated or deleted.
type Delivery struct {
	UserID        uuid.UUID
	LeadID        string
	RunID         uuid.UUID
	EmailsCharged int
	IsTrial       bool
	CreatedAt     time.Time
}

// Transaction is one append-only movement of a balance.
type Transaction struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	Amount       int64
	BalanceAfter int64
	Reason       string
	RunID        *uuid.UUID
	CreatedAt    time.Time
}

// Line is one lead offered to Settle with the number of emails it carries.
type Line struct {
	LeadID string
	Emails int
}

// SettleResult describes what Settle recorded.
type SettleResult struct {
	Created          []string
	EmailsCharged    int
	CreditsRemaining int64
}

// Page selects a slice of a history listing.
type Page struct {
	Limit  int
	Offset int
}
