package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"leadgen_backend/internal/credits/repository"
	"leadgen_backend/internal/events"
	"leadgen_backend/platform/apperr"
	"leadgen_backend/platform/logger"

	"github.com/google/uuid"
)

type memLedger struct {
	mu        sync.Mutex
	balances  map[uuid.UUID]int64
	delivered map[uuid.UUID]map[string]int
	lastPage  repository.Page
	err       error
}

func newMemLedger() *memLedger {
	return &memLedger{
		balances:  make(map[uuid.UUID]int64),
		delivered: make(map[uuid.UUID]map[string]int),
	}
}

func (m *memLedger) GetBalance(_ context.Context, userID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	if _, ok := m.balances[userID]; !ok {
		m.balances[userID] = 0
	}
	return m.balances[userID], nil
}

func (m *memLedger) Debit(_ context.Context, userID uuid.UUID, amount int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if amount <= 0 {
		return m.balances[userID], nil
	}
	if m.balances[userID] < amount {
		return 0, repository.ErrInsufficientFunds
	}
	m.balances[userID] -= amount
	return m.balances[userID], nil
}

func (m *memLedger) RecordDelivery(_ context.Context, userID uuid.UUID, leadID string, _ uuid.UUID, emails int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.delivered[userID] == nil {
		m.delivered[userID] = make(map[string]int)
	}
	if _, ok := m.delivered[userID][leadID]; ok {
		return false, nil
	}
	m.delivered[userID][leadID] = emails
	return true, nil
}

func (m *memLedger) Settle(_ context.Context, userID, _ uuid.UUID, lines []repository.Line) (repository.SettleResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return repository.SettleResult{}, m.err
	}
	seen := m.delivered[userID]
	result := repository.SettleResult{}
	pending := make(map[string]int)
	for _, l := range lines {
		if _, ok := seen[l.LeadID]; ok {
			continue
		}
		if _, ok := pending[l.LeadID]; ok {
			continue
		}
		pending[l.LeadID] = l.Emails
		result.Created = append(result.Created, l.LeadID)
		result.EmailsCharged += l.Emails
	}
	if m.balances[userID] < int64(result.EmailsCharged) {
		return repository.SettleResult{}, repository.ErrInsufficientFunds
	}
	if seen == nil {
		seen = make(map[string]int)
		m.delivered[userID] = seen
	}
	for id, emails := range pending {
		seen[id] = emails
	}
	m.balances[userID] -= int64(result.EmailsCharged)
	result.CreditsRemaining = m.balances[userID]
	return result, nil
}

func (m *memLedger) Grant(_ context.Context, userID uuid.UUID, amount int64, _ string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.balances[userID] += amount
	return m.balances[userID], nil
}

func (m *memLedger) DeliveredLeadIDs(_ context.Context, userID uuid.UUID, _ int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.delivered[userID]))
	for id := range m.delivered[userID] {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *memLedger) ListDeliveries(_ context.Context, _ uuid.UUID, page repository.Page) ([]repository.Delivery, int, error) {
	m.lastPage = page
	return []repository.Delivery{}, 0, m.err
}

func (m *memLedger) ListTransactions(_ context.Context, _ uuid.UUID, page repository.Page) ([]repository.Transaction, int, error) {
	m.lastPage = page
	return []repository.Transaction{}, 0, m.err
}

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(_ context.Context, e events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func newTestService(repo repository.Repository) (*Service, *recordingBus) {
	svc := New(repo, logger.NewWithWriter("test", io.Discard))
	bus := &recordingBus{}
	svc.SetEventBus(bus)
	return svc, bus
}

func TestGetBalanceStartsAtZero(t *testing.T) {
	svc, _ := newTestService(newMemLedger())

	balance, err := svc.GetBalance(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if balance != 0 {
		t.Fatalf("expected zero balance, got %d", balance)
	}
}

func TestDebitInsufficientFundsIsPaymentRequired(t *testing.T) {
	repo := newMemLedger()
	svc, bus := newTestService(repo)
	userID := uuid.New()
	repo.balances[userID] = 2

	_, err := svc.Debit(context.Background(), userID, 3)
	if apperr.GetKind(err) != apperr.KindPaymentRequired {
		t.Fatalf("expected payment required, got %v", err)
	}
	if !errors.Is(err, repository.ErrInsufficientFunds) {
		t.Fatal("expected sentinel to be preserved")
	}
	if repo.balances[userID] != 2 {
		t.Fatalf("balance must not change, got %d", repo.balances[userID])
	}
	if len(bus.events) != 0 {
		t.Fatalf("expected no events, got %d", len(bus.events))
	}
}

func TestDebitPublishesCreditsChanged(t *testing.T) {
	repo := newMemLedger()
	svc, bus := newTestService(repo)
	userID := uuid.New()
	repo.balances[userID] = 10

	balance, err := svc.Debit(context.Background(), userID, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if balance != 6 {
		t.Fatalf("expected 6, got %d", balance)
	}
	changed, ok := bus.events[0].(events.CreditsChanged)
	if !ok || changed.Delta != -4 || changed.CreditsAvailable != 6 {
		t.Fatalf("unexpected event %+v", bus.events[0])
	}
}

func TestSettleBillsOnlyNewDeliveries(t *testing.T) {
	repo := newMemLedger()
	svc, bus := newTestService(repo)
	userID := uuid.New()
	repo.balances[userID] = 20

	lines := []repository.Line{{LeadID: "a", Emails: 2}, {LeadID: "b", Emails: 1}}
	first, err := svc.Settle(context.Background(), userID, uuid.New(), lines)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.EmailsCharged != 3 || first.CreditsRemaining != 17 {
		t.Fatalf("unexpected first settlement %+v", first)
	}

	replay, err := svc.Settle(context.Background(), userID, uuid.New(), lines)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if replay.EmailsCharged != 0 || len(replay.Created) != 0 || replay.CreditsRemaining != 17 {
		t.Fatalf("replay must bill nothing, got %+v", replay)
	}
	if len(bus.events) != 1 {
		t.Fatalf("expected one CreditsChanged event, got %d", len(bus.events))
	}
}

func TestConcurrentSettleDeliversEachLeadOnce(t *testing.T) {
	repo := newMemLedger()
	svc, _ := newTestService(repo)
	userID := uuid.New()
	repo.balances[userID] = 100

	lines := []repository.Line{{LeadID: "shared", Emails: 5}}
	var wg sync.WaitGroup
	charged := make(chan int, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Settle(context.Background(), userID, uuid.New(), lines)
			if err == nil {
				charged <- res.EmailsCharged
			}
		}()
	}
	wg.Wait()
	close(charged)

	total := 0
	for c := range charged {
		total += c
	}
	if total != 5 || repo.balances[userID] != 95 {
		t.Fatalf("expected exactly one charge of 5, total=%d balance=%d", total, repo.balances[userID])
	}
}

func TestGrantValidation(t *testing.T) {
	svc, _ := newTestService(newMemLedger())

	if _, err := svc.Grant(context.Background(), uuid.Nil, 5, ""); apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("expected validation error for nil user, got %v", err)
	}
	if _, err := svc.Grant(context.Background(), uuid.New(), 0, ""); apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("expected validation error for zero amount, got %v", err)
	}
}

func TestGrantRepositoryFailureIsLedgerError(t *testing.T) {
	repo := newMemLedger()
	repo.err = errors.New("connection reset")
	svc, _ := newTestService(repo)

	_, err := svc.Grant(context.Background(), uuid.New(), 5, "promo")
	domainErr, ok := apperr.As(err)
	if !ok || domainErr.ErrorCode() != apperr.CodeLedgerError {
		t.Fatalf("expected ledger_error, got %v", err)
	}
}

func TestListDeliveriesNormalizesPaging(t *testing.T) {
	repo := newMemLedger()
	svc, _ := newTestService(repo)

	list, err := svc.ListDeliveries(context.Background(), uuid.New(), Page{Page: 0, PageSize: 1000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if list.Page != 1 || list.PageSize != maxPageSize {
		t.Fatalf("unexpected paging %+v", list)
	}
	if repo.lastPage.Limit != maxPageSize || repo.lastPage.Offset != 0 {
		t.Fatalf("unexpected repository page %+v", repo.lastPage)
	}

	if _, err := svc.ListTransactions(context.Background(), uuid.New(), Page{Page: 3, PageSize: 10}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.lastPage.Offset != 20 {
		t.Fatalf("expected offset 20, got %d", repo.lastPage.Offset)
	}
}
