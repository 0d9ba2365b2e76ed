// Package service exposes the account ledger to handlers and to the lead
// delivery coordinator.
package service

import (
	"context"
	"errors"

	"leadgen_backend/internal/credits/repository"
	"leadgen_backend/internal/events"
	"leadgen_backend/platform/apperr"
	"leadgen_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Page is a 1-based page request.
type Page struct {
	Page     int
	PageSize int
}

func (p Page) normalize() (Page, repository.Page) {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = defaultPageSize
	}
	if p.PageSize > maxPageSize {
		p.PageSize = maxPageSize
	}
	return p, repository.Page{Limit: p.PageSize, Offset: (p.Page - 1) * p.PageSize}
}

// DeliveryList is a page of deliveries.
type DeliveryList struct {
	Items    []repository.Delivery
	Total    int
	Page     int
	PageSize int
}

// TransactionList is a page of credit transactions.
type TransactionList struct {
	Items    []repository.Transaction
	Total    int
	Page     int
	PageSize int
}

type Service struct {
	repo repository.Repository
	bus  events.Publisher
	log  *logger.Logger
}

func New(repo repository.Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// SetEventBus wires CreditsChanged publishing.
func (s *Service) SetEventBus(bus events.Publisher) {
	s.bus = bus
}

// GetBalance returns the available credits, creating an empty account on first use.
func (s *Service) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	balance, err := s.repo.GetBalance(ctx, userID)
	if err != nil {
		s.log.WithContext(ctx).DatabaseError("credits.GetBalance", err)
		return 0, apperr.Wrap(apperr.KindInternal, "could not load balance", err).
			WithCode(apperr.CodeLedgerError).WithOp("credits.GetBalance")
	}
	return balance, nil
}

// Debit subtracts amount atomically.
func (s *Service) Debit(ctx context.Context, userID uuid.UUID, amount int64) (int64, error) {
	balance, err := s.repo.Debit(ctx, userID, amount)
	if err != nil {
		return 0, s.ledgerError(ctx, "credits.Debit", err)
	}
	if amount > 0 {
		s.publish(ctx, userID, -amount, balance, repository.ReasonDebit)
	}
	return balance, nil
}

// RecordDelivery records that userID received leadID. created=false means the
// lead was already delivered, which is not an error.
func (s *Service) RecordDelivery(ctx context.Context, userID uuid.UUID, leadID string, runID uuid.UUID, emailsCharged int) (bool, error) {
	created, err := s.repo.RecordDelivery(ctx, userID, leadID, runID, emailsCharged)
	if err != nil {
		return false, s.ledgerError(ctx, "credits.RecordDelivery", err)
	}
	return created, nil
}

// Settle records deliveries and debits for the new ones atomically. The
// returned error wraps repository.ErrInsufficientFunds when the balance is short.
func (s *Service) Settle(ctx context.Context, userID, runID uuid.UUID, lines []repository.Line) (repository.SettleResult, error) {
	result, err := s.repo.Settle(ctx, userID, runID, lines)
	if err != nil {
		if !errors.Is(err, repository.ErrInsufficientFunds) {
			s.log.WithContext(ctx).DatabaseError("credits.Settle", err)
		}
		return repository.SettleResult{}, err
	}
	if result.EmailsCharged > 0 {
		s.publish(ctx, userID, -int64(result.EmailsCharged), result.CreditsRemaining, repository.ReasonDelivery)
	}
	return result, nil
}

// DeliveredLeadIDs returns up to limit most recently delivered lead IDs.
func (s *Service) DeliveredLeadIDs(ctx context.Context, userID uuid.UUID, limit int) ([]string, error) {
	return s.repo.DeliveredLeadIDs(ctx, userID, limit)
}

// Grant tops up a balance. Used by operators.
func (s *Service) Grant(ctx context.Context, userID uuid.UUID, amount int64, reason string) (int64, error) {
	if userID == uuid.Nil {
		return 0, apperr.Validation("userId is required").WithOp("credits.Grant")
	}
	if amount <= 0 {
		return 0, apperr.Validation("amount must be positive").WithOp("credits.Grant")
	}

	balance, err := s.repo.Grant(ctx, userID, amount, reason)
	if err != nil {
		return 0, s.ledgerError(ctx, "credits.Grant", err)
	}

	s.log.WithContext(ctx).Info("credits granted", "target_user_id", userID, "amount", amount, "balance", balance)
	s.publish(ctx, userID, amount, balance, repository.ReasonGrant)
	return balance, nil
}

func (s *Service) ListDeliveries(ctx context.Context, userID uuid.UUID, page Page) (DeliveryList, error) {
	page, q := page.normalize()
	items, total, err := s.repo.ListDeliveries(ctx, userID, q)
	if err != nil {
		return DeliveryList{}, s.ledgerError(ctx, "credits.ListDeliveries", err)
	}
	return DeliveryList{Items: items, Total: total, Page: page.Page, PageSize: page.PageSize}, nil
}

func (s *Service) ListTransactions(ctx context.Context, userID uuid.UUID, page Page) (TransactionList, error) {
	page, q := page.normalize()
	items, total, err := s.repo.ListTransactions(ctx, userID, q)
	if err != nil {
		return TransactionList{}, s.ledgerError(ctx, "credits.ListTransactions", err)
	}
	return TransactionList{Items: items, Total: total, Page: page.Page, PageSize: page.PageSize}, nil
}

func (s *Service) ledgerError(ctx context.Context, op string, err error) error {
	if errors.Is(err, repository.ErrInsufficientFunds) {
		return apperr.Wrap(apperr.KindPaymentRequired, "not enough credits", err).WithOp(op)
	}
	if errors.Is(err, repository.ErrInvalidAmount) {
		return apperr.Wrap(apperr.KindValidation, err.Error(), err).WithOp(op)
	}
	s.log.WithContext(ctx).DatabaseError(op, err)
	return apperr.Wrap(apperr.KindInternal, "ledger unavailable", err).WithCode(apperr.CodeLedgerError).WithOp(op)
}

func (s *Service) publish(ctx context.Context, userID uuid.UUID, delta, balance int64, reason string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, events.CreditsChanged{
		BaseEvent:        events.NewBaseEvent(),
		UserID:           userID,
		Delta:            delta,
		CreditsAvailable: balance,
		Reason:           reason,
	})
}
