// Package repository persists balances, deliveries and the credit transaction log.
package repository

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrInsufficientFunds is returned when a debit would take the balance below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInvalidAmount is returned for non-positive grants.
	ErrInvalidAmount = errors.New("amount must be positive")
)

// Repository is the account ledger.
type Repository interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (int64, error)
	Debit(ctx context.Context, userID uuid.UUID, amount int64) (int64, error)
	RecordDelivery(ctx context.Context, userID uuid.UUID, leadID string, runID uuid.UUID, emailsCharged int) (bool, error)
	Settle(ctx context.Context, userID, runID uuid.UUID, lines []Line) (SettleResult, error)
	Grant(ctx context.Context, userID uuid.UUID, amount int64, reason string) (int64, error)
	DeliveredLeadIDs(ctx context.Context, userID uuid.UUID, limit int) ([]string, error)
	ListDeliveries(ctx context.Context, userID uuid.UUID, page Page) ([]Delivery, int, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, page Page) ([]Transaction, int, error)
}

const ensureAccountQuery = `
INSERT INTO user_credits (user_id) VALUES ($1)
ON CONFLICT (user_id) DO NOTHING`

const selectBalanceQuery = `SELECT credits_available FROM user_credits WHERE user_id = $1`

// The predicate on credits_available makes check and write one statement.
const conditionalDebitQuery = `
UPDATE user_credits
SET credits_available = credits_available - $2, updated_at = now()
WHERE user_id = $1 AND credits_available >= $2
RETURNING credits_available`

const grantQuery = `
INSERT INTO user_credits (user_id, credits_available) VALUES ($1, $2)
ON CONFLICT (user_id) DO UPDATE
SET credits_available = user_credits.credits_available + EXCLUDED.credits_available, updated_at = now()
RETURNING credits_available`

const recordDeliveryQuery = `
INSERT INTO deliveries (user_id, ig_id, run_id, emails_charged)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id, ig_id) DO NOTHING
RETURNING ig_id`

// Duplicates inside the batch and rows delivered earlier are skipped; only
// newly created rows come back.
const recordDeliveriesBatchQuery = `
INSERT INTO deliveries (user_id, ig_id, run_id, emails_charged)
SELECT $1::uuid, t.ig_id, $2::uuid, t.emails
FROM unnest($3::text[], $4::int[]) AS t(ig_id, emails)
ON CONFLICT (user_id, ig_id) DO NOTHING
RETURNING ig_id, emails_charged`

const insertTransactionQuery = `
INSERT INTO credit_transactions (id, user_id, amount, balance_after, reason, run_id)
VALUES ($1, $2, $3, $4, $5, $6)`

const deliveredLeadIDsQuery = `
SELECT ig_id FROM deliveries
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2`

const listDeliveriesQuery = `
SELECT user_id, ig_id, run_id, emails_charged, is_trial, created_at
FROM deliveries
WHERE user_id = $1
ORDER BY created_at DESC, ig_id
LIMIT $2 OFFSET $3`

const countDeliveriesQuery = `SELECT count(*) FROM deliveries WHERE user_id = $1`

const listTransactionsQuery = `
SELECT id, user_id, amount, balance_after, reason, run_id, created_at
FROM credit_transactions
WHERE user_id = $1
ORDER BY created_at DESC, id
LIMIT $2 OFFSET $3`

const countTransactionsQuery = `SELECT count(*) FROM credit_transactions WHERE user_id = $1`

// DB is the subset of *pgxpool.Pool the ledger uses.
type DB interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repo implements Repository on Postgres.
type Repo struct {
	db DB
}

// New creates a ledger repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{db: pool}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

// GetBalance returns the balance, creating a zero balance on first read.
func (r *Repo) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	if _, err := r.db.Exec(ctx, ensureAccountQuery, userID); err != nil {
		return 0, fmt.Errorf("ensure account: %w", err)
	}
	var balance int64
	if err := r.db.QueryRow(ctx, selectBalanceQuery, userID).Scan(&balance); err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

// Debit atomically subtracts amount and returns the new balance. A
// non-positive amount changes nothing.
func (r *Repo) Debit(ctx context.Context, userID uuid.UUID, amount int64) (int64, error) {
	if amount <= 0 {
		return r.GetBalance(ctx, userID)
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	balance, err := debit(ctx, tx, userID, amount)
	if err != nil {
		return 0, err
	}
	if err := appendTransaction(ctx, tx, userID, -amount, balance, ReasonDebit, nil); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit debit: %w", err)
	}
	return balance, nil
}

// RecordDelivery inserts a delivery row. created is false when the user
// already had this lead.
func (r *Repo) RecordDelivery(ctx context.Context, userID uuid.UUID, leadID string, runID uuid.UUID, emailsCharged int) (bool, error) {
	var id string
	err := r.db.QueryRow(ctx, recordDeliveryQuery, userID, leadID, runID, emailsCharged).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("record delivery: %w", err)
	}
	return true, nil
}

// Settle records every line as a delivery and debits the emails of the rows
// that were newly created, in one transaction. On ErrInsufficientFunds nothing
// is persisted.
func (r *Repo) Settle(ctx context.Context, userID, runID uuid.UUID, lines []Line) (SettleResult, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return SettleResult{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, ensureAccountQuery, userID); err != nil {
		return SettleResult{}, fmt.Errorf("ensure account: %w", err)
	}

	// Concurrent settlements lock delivery keys in the same order.
	sorted := slices.Clone(lines)
	slices.SortFunc(sorted, func(a, b Line) int { return cmp.Compare(a.LeadID, b.LeadID) })

	ids := make([]string, len(sorted))
	emails := make([]int32, len(sorted))
	for i, l := range sorted {
		ids[i] = l.LeadID
		emails[i] = int32(l.Emails)
	}

	rows, err := tx.Query(ctx, recordDeliveriesBatchQuery, userID, runID, ids, emails)
	if err != nil {
		return SettleResult{}, fmt.Errorf("record deliveries: %w", err)
	}
	result := SettleResult{Created: make([]string, 0, len(lines))}
	for rows.Next() {
		var (
			id      string
			charged int
		)
		if err := rows.Scan(&id, &charged); err != nil {
			rows.Close()
			return SettleResult{}, fmt.Errorf("scan delivery: %w", err)
		}
		result.Created = append(result.Created, id)
		result.EmailsCharged += charged
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return SettleResult{}, fmt.Errorf("record deliveries: %w", err)
	}

	if result.EmailsCharged > 0 {
		amount := int64(result.EmailsCharged)
		balance, err := debit(ctx, tx, userID, amount)
		if err != nil {
			return SettleResult{}, err
		}
		if err := appendTransaction(ctx, tx, userID, -amount, balance, ReasonDelivery, &runID); err != nil {
			return SettleResult{}, err
		}
		result.CreditsRemaining = balance
	} else if err := tx.QueryRow(ctx, selectBalanceQuery, userID).Scan(&result.CreditsRemaining); err != nil {
		return SettleResult{}, fmt.Errorf("get balance: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return SettleResult{}, fmt.Errorf("commit settlement: %w", err)
	}
	return result, nil
}

// Grant adds credits and logs the movement.
func (r *Repo) Grant(ctx context.Context, userID uuid.UUID, amount int64, reason string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	if reason == "" {
		reason = ReasonGrant
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var balance int64
	if err := tx.QueryRow(ctx, grantQuery, userID, amount).Scan(&balance); err != nil {
		return 0, fmt.Errorf("grant credits: %w", err)
	}
	if err := appendTransaction(ctx, tx, userID, amount, balance, reason, nil); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit grant: %w", err)
	}
	return balance, nil
}

// DeliveredLeadIDs returns the most recently delivered lead IDs.
func (r *Repo) DeliveredLeadIDs(ctx context.Context, userID uuid.UUID, limit int) ([]string, error) {
	rows, err := r.db.Query(ctx, deliveredLeadIDsQuery, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("delivery history: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("delivery history: %w", err)
	}
	return ids, nil
}

// ListDeliveries pages through the user's deliveries, newest first.
func (r *Repo) ListDeliveries(ctx context.Context, userID uuid.UUID, page Page) ([]Delivery, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, countDeliveriesQuery, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count deliveries: %w", err)
	}

	rows, err := r.db.Query(ctx, listDeliveriesQuery, userID, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	items := make([]Delivery, 0)
	for rows.Next() {
		var d Delivery
		if err := rows.Scan(&d.UserID, &d.LeadID, &d.RunID, &d.EmailsCharged, &d.IsTrial, &d.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan delivery: %w", err)
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}

// ListTransactions pages through the user's credit movements, newest first.
func (r *Repo) ListTransactions(ctx context.Context, userID uuid.UUID, page Page) ([]Transaction, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, countTransactionsQuery, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	rows, err := r.db.Query(ctx, listTransactionsQuery, userID, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	items := make([]Transaction, 0)
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &t.BalanceAfter, &t.Reason, &t.RunID, &t.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan transaction: %w", err)
		}
		items = append(items, t)
	}
	return items, total, rows.Err()
}

func debit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64) (int64, error) {
	if _, err := tx.Exec(ctx, ensureAccountQuery, userID); err != nil {
		return 0, fmt.Errorf("ensure account: %w", err)
	}
	var balance int64
	err := tx.QueryRow(ctx, conditionalDebitQuery, userID, amount).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrInsufficientFunds
	}
	if err != nil {
		return 0, fmt.Errorf("debit: %w", err)
	}
	return balance, nil
}

func appendTransaction(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount, balanceAfter int64, reason string, runID *uuid.UUID) error {
	if _, err := tx.Exec(ctx, insertTransactionQuery, uuid.New(), userID, amount, balanceAfter, reason, runID); err != nil {
		return fmt.Errorf("append transaction: %w", err)
	}
	return nil
}
