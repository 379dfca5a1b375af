package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrAccountNotFound indicates no ledger account exists for the requested owner.
	ErrAccountNotFound = errors.New("ledger account not found")

	// ErrAccountExists indicates the owner already has a ledger account; ownership is 1:1.
	ErrAccountExists = errors.New("ledger account already exists")

	// ErrInsufficientBalance occurs when a debit would take the account balance below zero.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrDuplicateEntry indicates the provided reference code was already posted to the
	// account and therefore the operation should be treated as idempotent.
	ErrDuplicateEntry = errors.New("duplicate ledger entry")

	// ErrInvalidAmount occurs when a posting amount is zero or negative.
	ErrInvalidAmount = errors.New("amount must be positive")
)

// Kind enumerates the closed set of ledger entry types.
type Kind string

const (
	KindOrderPayment Kind = "order_payment"
	KindWithdrawal   Kind = "withdrawal"
	KindRefund       Kind = "refund"
	KindCODCollected Kind = "cod_collected"
	KindCODDeposited Kind = "cod_deposited"
	KindBonus        Kind = "bonus"
	KindPenalty      Kind = "penalty"
	KindAdjustment   Kind = "adjustment"
)

// OwnerType distinguishes the two account populations sharing the same shape.
type OwnerType string

const (
	OwnerSeller  OwnerType = "seller"
	OwnerCourier OwnerType = "courier"
)

// BankDetails holds the payout destination registered for an account.
type BankDetails struct {
	BankName      string
	AccountNumber string
	AccountHolder string
}

// Account is the per-owner record of spendable balance and payout details.
// Balance is always derivable by replaying the entry log from zero:
// Balance == TotalCredited - TotalDebited.
type Account struct {
	ID            string
	OwnerID       string
	OwnerType     OwnerType
	Balance       int64
	TotalCredited int64
	TotalDebited  int64
	Pending       int64
	Bank          BankDetails
	Active        bool
	CreatedAt     time.Time
}

// Entry is one immutable balance-changing event. Entries are never updated or
// deleted; corrections are appended as compensating entries.
type Entry struct {
	ID            string
	AccountID     string
	Kind          Kind
	Amount        int64 // signed; credits positive, debits negative
	BalanceBefore int64
	BalanceAfter  int64
	OrderRef      string
	ReferenceCode string
	Description   string
	CreatedAt     time.Time
}

// Posting captures the data needed to append one entry to an owner's account.
// Amount is always positive; Credit and Debit assign the sign.
type Posting struct {
	OwnerID       string
	Amount        int64
	Kind          Kind
	OrderRef      string
	ReferenceCode string
	Description   string
}

// PostingResult reports the balance snapshot taken when an entry was written.
type PostingResult struct {
	EntryID       string
	BalanceBefore int64
	BalanceAfter  int64
}

// Ledger defines the contract implemented by ledger backends (e.g. Postgres).
// Credit, Debit and AdjustPending each execute as a single atomic unit against
// the account row; the reference-code idempotency check happens inside that
// same unit. Mutations of different accounts never serialize against each other.
type Ledger interface {
	CreateAccount(ctx context.Context, acct Account) (Account, error)
	Account(ctx context.Context, ownerID string) (Account, error)
	AccountsByType(ctx context.Context, ownerType OwnerType) ([]Account, error)
	Credit(ctx context.Context, p Posting) (PostingResult, error)
	Debit(ctx context.Context, p Posting) (PostingResult, error)
	AdjustPending(ctx context.Context, ownerID string, delta int64) error
	Entries(ctx context.Context, ownerID string, limit, offset int) ([]Entry, error)
	SumKindBetween(ctx context.Context, ownerID string, kind Kind, from, to time.Time) (int64, error)
	HasReference(ctx context.Context, ownerID, referenceCode string) (bool, error)
}
