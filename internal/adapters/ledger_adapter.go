package adapters

import (
	"context"
	"errors"
	"fmt"

	"leadgen_backend/internal/credits/repository"
	"leadgen_backend/internal/leads/ports"

	"github.com/google/uuid"
)

// deliveryLedger is the slice of the credits service the coordinator needs.
type deliveryLedger interface {
	DeliveredLeadIDs(ctx context.Context, userID uuid.UUID, limit int) ([]string, error)
	Settle(ctx context.Context, userID, runID uuid.UUID, lines []repository.Line) (repository.SettleResult, error)
}

// LedgerAdapter adapts the credits service for use by the leads domain.
// It implements the leads/ports.DeliveryLedger interface.
type LedgerAdapter struct {
	ledger deliveryLedger
}

func NewLedgerAdapter(ledger deliveryLedger) *LedgerAdapter {
	return &LedgerAdapter{ledger: ledger}
}

func (a *LedgerAdapter) DeliveredLeadIDs(ctx context.Context, userID uuid.UUID, limit int) ([]string, error) {
	return a.ledger.DeliveredLeadIDs(ctx, userID, limit)
}

// Settle translates lines and maps the ledger's shortfall sentinel onto the
// leads domain's.
func (a *LedgerAdapter) Settle(ctx context.Context, userID, runID uuid.UUID, lines []ports.DeliveryLine) (ports.Settlement, error) {
	repoLines := make([]repository.Line, len(lines))
	for i, l := range lines {
		repoLines[i] = repository.Line{LeadID: l.LeadID, Emails: l.Emails}
	}

	res, err := a.ledger.Settle(ctx, userID, runID, repoLines)
	if errors.Is(err, repository.ErrInsufficientFunds) {
		return ports.Settlement{}, fmt.Errorf("%w: %v", ports.ErrInsufficientCredits, err)
	}
	if err != nil {
		return ports.Settlement{}, err
	}

	return ports.Settlement{
		Created:          res.Created,
		EmailsCharged:    res.EmailsCharged,
		CreditsRemaining: res.CreditsRemaining,
	}, nil
}

var _ ports.DeliveryLedger = (*LedgerAdapter)(nil)
