package escrow

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrAlreadyHeld indicates a holding already exists for the (owner, order)
	// pair; callers treat it as an idempotent no-op.
	ErrAlreadyHeld = errors.New("escrow holding already exists")

	// ErrAlreadyTransferred indicates the holding was swept previously.
	ErrAlreadyTransferred = errors.New("escrow holding already transferred")

	// ErrNotFound indicates no holding exists for the requested identifier.
	ErrNotFound = errors.New("escrow holding not found")
)

// Holding earmarks funds for an owner who has no ledger account yet. At most
// one holding exists per (owner, order) pair, and it transfers exactly once.
type Holding struct {
	ID            string
	OwnerID       string
	OrderRef      string
	Amount        int64
	Note          string
	Transferred   bool
	TransferredAt time.Time
	CreatedAt     time.Time
}

// Store persists escrow holdings.
type Store interface {
	Put(ctx context.Context, h Holding) (Holding, error)
	Untransferred(ctx context.Context, ownerID string) ([]Holding, error)
	MarkTransferred(ctx context.Context, id string) error
	Has(ctx context.Context, ownerID, orderRef string) (bool, error)
}
