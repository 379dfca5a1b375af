package withdrawal

import (
	"context"
	"errors"
	"time"

	"github.com/soko-pay/soko_ledger/internal/ledger"
)

var (
	// ErrNotFound indicates no withdrawal request exists for the identifier.
	ErrNotFound = errors.New("withdrawal request not found")

	// ErrInvalidState indicates the request is not in a state that permits the
	// attempted transition, e.g. processing a non-pending request.
	ErrInvalidState = errors.New("invalid withdrawal state transition")
)

// Status is the withdrawal request lifecycle state.
// pending -> approved -> completed, or pending -> rejected (terminal).
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
)

// Decision is an admin verdict on a pending request.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// Request is one withdrawal attempt. Bank details are captured at request
// time and stay fixed even if the account's payout details change later.
type Request struct {
	ID          string
	OwnerID     string
	Amount      int64
	Bank        ledger.BankDetails
	Status      Status
	AdminNote   string
	ProcessedBy string
	ProcessedAt time.Time
	CreatedAt   time.Time
}

// Repository persists withdrawal requests.
type Repository interface {
	Create(ctx context.Context, req Request) (Request, error)
	Get(ctx context.Context, id string) (Request, error)
	// Transition moves the request from one status to another atomically; it
	// fails with ErrInvalidState when the request is no longer in `from`.
	Transition(ctx context.Context, id string, from, to Status, note, processedBy string) (Request, error)
	List(ctx context.Context, status Status, limit, offset int) ([]Request, error)
}
