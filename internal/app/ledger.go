package app

import (
	"context"
	"fmt"
	"time"

	"mindquest-service/internal/domain"
)

// Ledger appends points transactions and keeps the user's balance equal to
// the signed sum of them. Every method must run on transaction-bound Queries:
// the user row is locked before the balance is read.
type Ledger struct {
	now func() time.Time
}

func NewLedger() *Ledger {
	return NewLedgerWithClock(time.Now)
}

// NewLedgerWithClock allows deterministic timestamps in tests.
func NewLedgerWithClock(now func() time.Time) *Ledger {
	return &Ledger{now: now}
}

// Award credits amount as an EARNED transaction.
func (l *Ledger) Award(ctx context.Context, q Queries, userID, amount int64, source, description string) (domain.User, error) {
	return l.apply(ctx, q, userID, domain.TransactionEarned, amount, source, description)
}

// Bonus credits amount as a BONUS transaction.
func (l *Ledger) Bonus(ctx context.Context, q Queries, userID, amount int64, source, description string) (domain.User, error) {
	return l.apply(ctx, q, userID, domain.TransactionBonus, amount, source, description)
}

// Deduct debits amount as a REDEEMED transaction. The balance is checked
// before anything is written; an underfunded deduct changes nothing.
func (l *Ledger) Deduct(ctx context.Context, q Queries, userID, amount int64, source, description string) (domain.User, error) {
	return l.apply(ctx, q, userID, domain.TransactionRedeemed, amount, source, description)
}

func (l *Ledger) apply(ctx context.Context, q Queries, userID int64, typ domain.TransactionType, amount int64, source, description string) (domain.User, error) {
	if amount <= 0 {
		return domain.User{}, domain.ErrNonPositiveAmount
	}
	user, err := q.LockUser(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}

	tx := domain.PointsTransaction{
		UserID:      userID,
		Type:        typ,
		Points:      amount,
		Source:      source,
		Description: description,
		CreatedAt:   l.now(),
	}
	balance := user.Points + tx.Signed()
	if balance < 0 {
		return domain.User{}, fmt.Errorf("balance %d, need %d: %w", user.Points, amount, domain.ErrInsufficientBalance)
	}

	if err := q.InsertTransaction(ctx, &tx); err != nil {
		return domain.User{}, fmt.Errorf("append transaction: %w", err)
	}
	if err := q.UpdateBalance(ctx, userID, balance, user.Level); err != nil {
		return domain.User{}, fmt.Errorf("update balance: %w", err)
	}
	user.Points = balance
	return user, nil
}
