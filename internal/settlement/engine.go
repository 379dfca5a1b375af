package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/soko-pay/soko_ledger/internal/escrow"
	"github.com/soko-pay/soko_ledger/internal/ledger"
	"github.com/soko-pay/soko_ledger/internal/notification"
)

// Engine orchestrates balance movement between the ledger and the escrow
// store. Upstream events arrive at-least-once, so every crediting path is
// idempotent: a replayed credit or sweep is logged and treated as success.
type Engine struct {
	ledger   ledger.Ledger
	escrow   escrow.Store
	notifier notification.Notifier
	logger   *slog.Logger
}

// NewEngine builds a settlement engine instance.
func NewEngine(l ledger.Ledger, store escrow.Store, notifier notification.Notifier, logger *slog.Logger) *Engine {
	return &Engine{ledger: l, escrow: store, notifier: notifier, logger: logger}
}

// ReferenceCode derives the idempotency key for an order-scoped posting.
// The same order can legitimately produce one entry per kind (e.g. a COD
// collection and its deposit), so the kind participates in the key.
func ReferenceCode(kind ledger.Kind, orderRef string) string {
	return string(kind) + ":" + orderRef
}

// CreditInput captures an order-scoped credit for an owner.
type CreditInput struct {
	OwnerID     string
	OrderRef    string
	Amount      int64
	Kind        ledger.Kind
	Description string
}

// CreditResult describes how a credit settled.
type CreditResult struct {
	// Escrowed is true when no account existed and the amount was held instead.
	Escrowed bool
	// Duplicate is true when the credit (or holding) already existed; the call
	// is still a success.
	Duplicate    bool
	BalanceAfter int64
}

// Credit applies an order credit to the owner's account, or holds the amount
// in escrow when the owner has no account yet. Never auto-creates accounts.
func (e *Engine) Credit(ctx context.Context, in CreditInput) (CreditResult, error) {
	if in.Amount <= 0 {
		return CreditResult{}, ledger.ErrInvalidAmount
	}

	res, err := e.ledger.Credit(ctx, ledger.Posting{
		OwnerID:       in.OwnerID,
		Amount:        in.Amount,
		Kind:          in.Kind,
		OrderRef:      in.OrderRef,
		ReferenceCode: ReferenceCode(in.Kind, in.OrderRef),
		Description:   in.Description,
	})
	switch {
	case err == nil:
		creditsTotal.WithLabelValues("posted").Inc()
		return CreditResult{BalanceAfter: res.BalanceAfter}, nil
	case errors.Is(err, ledger.ErrDuplicateEntry):
		creditsTotal.WithLabelValues("duplicate").Inc()
		e.logger.Info("credit replayed, already posted",
			"owner_id", in.OwnerID, "order_ref", in.OrderRef, "kind", in.Kind)
		return CreditResult{Duplicate: true, BalanceAfter: res.BalanceAfter}, nil
	case errors.Is(err, ledger.ErrAccountNotFound):
		return e.hold(ctx, in)
	default:
		return CreditResult{}, fmt.Errorf("credit %s for order %s: %w", in.OwnerID, in.OrderRef, err)
	}
}

func (e *Engine) hold(ctx context.Context, in CreditInput) (CreditResult, error) {
	_, err := e.escrow.Put(ctx, escrow.Holding{
		OwnerID:  in.OwnerID,
		OrderRef: in.OrderRef,
		Amount:   in.Amount,
		Note:     in.Description,
	})
	switch {
	case err == nil:
		creditsTotal.WithLabelValues("escrowed").Inc()
		e.logger.Info("no account, amount held in escrow",
			"owner_id", in.OwnerID, "order_ref", in.OrderRef, "amount", in.Amount)
		return CreditResult{Escrowed: true}, nil
	case errors.Is(err, escrow.ErrAlreadyHeld):
		creditsTotal.WithLabelValues("duplicate").Inc()
		e.logger.Info("credit replayed, already held in escrow",
			"owner_id", in.OwnerID, "order_ref", in.OrderRef)
		return CreditResult{Escrowed: true, Duplicate: true}, nil
	default:
		return CreditResult{}, fmt.Errorf("hold %s for order %s: %w", in.OwnerID, in.OrderRef, err)
	}
}

// DebitInput captures a balance reduction on an owner's account.
type DebitInput struct {
	OwnerID     string
	Amount      int64
	Kind        ledger.Kind
	RefID       string
	Description string
}

// Debit reduces the owner's balance under the same snapshot/append discipline
// as Credit. ErrInsufficientBalance surfaces to the caller untouched.
func (e *Engine) Debit(ctx context.Context, in DebitInput) (ledger.PostingResult, error) {
	res, err := e.ledger.Debit(ctx, ledger.Posting{
		OwnerID:       in.OwnerID,
		Amount:        in.Amount,
		Kind:          in.Kind,
		ReferenceCode: in.RefID,
		Description:   in.Description,
	})
	if err != nil {
		return res, err
	}
	debitsTotal.Inc()
	return res, nil
}

// MarkPending earmarks an amount for an order not yet delivered. Balance is
// untouched.
func (e *Engine) MarkPending(ctx context.Context, ownerID, orderRef string, amount int64) error {
	if amount <= 0 {
		return ledger.ErrInvalidAmount
	}
	if err := e.ledger.AdjustPending(ctx, ownerID, amount); err != nil {
		return err
	}
	e.logger.Debug("pending marked", "owner_id", ownerID, "order_ref", orderRef, "amount", amount)
	return nil
}

// ReleasePending drops an earmark, e.g. when an order is cancelled. A release
// for an owner without an account is a no-op: nothing was earmarked.
func (e *Engine) ReleasePending(ctx context.Context, ownerID, orderRef string, amount int64) error {
	if amount <= 0 {
		return ledger.ErrInvalidAmount
	}
	err := e.ledger.AdjustPending(ctx, ownerID, -amount)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		e.logger.Info("pending release for owner without account ignored",
			"owner_id", ownerID, "order_ref", orderRef)
		return nil
	}
	if err != nil {
		return err
	}
	e.logger.Debug("pending released", "owner_id", ownerID, "order_ref", orderRef, "amount", amount)
	return nil
}

// SweepEscrow credits every untransferred holding of the owner into their
// account. Each record is its own atomic step: the ledger entry's reference
// code and the transferred flag together make a crashed or repeated sweep
// converge without double-crediting.
func (e *Engine) SweepEscrow(ctx context.Context, ownerID string) (int, error) {
	holdings, err := e.escrow.Untransferred(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("list holdings for %s: %w", ownerID, err)
	}

	var swept int
	var total int64
	for _, h := range holdings {
		_, err := e.ledger.Credit(ctx, ledger.Posting{
			OwnerID:       h.OwnerID,
			Amount:        h.Amount,
			Kind:          ledger.KindOrderPayment,
			OrderRef:      h.OrderRef,
			ReferenceCode: ReferenceCode(ledger.KindOrderPayment, h.OrderRef),
			Description:   "escrow sweep: " + h.Note,
		})
		if err != nil && !errors.Is(err, ledger.ErrDuplicateEntry) {
			// Stop here; already swept records are marked and a retry picks up
			// the remainder.
			return swept, fmt.Errorf("sweep holding %s: %w", h.ID, err)
		}

		if err := e.escrow.MarkTransferred(ctx, h.ID); err != nil && !errors.Is(err, escrow.ErrAlreadyTransferred) {
			return swept, fmt.Errorf("mark holding %s transferred: %w", h.ID, err)
		}
		swept++
		total += h.Amount
	}

	if swept > 0 {
		sweepsTotal.Add(float64(swept))
		e.logger.Info("escrow swept", "owner_id", ownerID, "holdings", swept, "amount", total)
		if e.notifier != nil {
			_ = e.notifier.Send(ctx, notification.Message{
				Kind:        notification.KindEscrowSwept,
				Destination: ownerID,
				Body:        fmt.Sprintf("%d held payments totaling %d moved into your account", swept, total),
			})
		}
	}
	return swept, nil
}

// RegisterInput captures an explicit account registration with payout details.
type RegisterInput struct {
	OwnerID   string
	OwnerType ledger.OwnerType
	Bank      ledger.BankDetails
}

// RegisterAccount creates the owner's ledger account and immediately sweeps
// any funds held in escrow for them.
func (e *Engine) RegisterAccount(ctx context.Context, in RegisterInput) (ledger.Account, error) {
	acct, err := e.ledger.CreateAccount(ctx, ledger.Account{
		OwnerID:   in.OwnerID,
		OwnerType: in.OwnerType,
		Bank:      in.Bank,
	})
	if err != nil {
		return ledger.Account{}, err
	}

	if _, err := e.SweepEscrow(ctx, in.OwnerID); err != nil {
		// The account exists; the sweep is re-runnable. Surface the failure.
		return acct, err
	}

	return e.ledger.Account(ctx, in.OwnerID)
}

// Account returns the owner's account.
func (e *Engine) Account(ctx context.Context, ownerID string) (ledger.Account, error) {
	return e.ledger.Account(ctx, ownerID)
}

// Entries returns the owner's transaction history, newest first.
func (e *Engine) Entries(ctx context.Context, ownerID string, limit, offset int) ([]ledger.Entry, error) {
	return e.ledger.Entries(ctx, ownerID, limit, offset)
}

// EffectType names the upstream order/shipment events the engine consumes.
type EffectType string

const (
	EffectOrderDelivered EffectType = "order_delivered"
	EffectOrderCancelled EffectType = "order_cancelled"
	EffectCODCollected   EffectType = "cod_collected"
	EffectCODDeposited   EffectType = "cod_deposited"
)

// Event is the shape delivered by the order/shipment workflow. Delivery is
// at-least-once; HandleEvent tolerates replays for the same order reference.
type Event struct {
	OwnerID    string
	OrderRef   string
	Amount     int64
	EffectType EffectType
	OccurredAt time.Time
}

// ErrUnknownEffect indicates an event effect type outside the consumed set.
var ErrUnknownEffect = errors.New("unknown event effect type")

// HandleEvent routes one upstream event into the matching ledger effect.
func (e *Engine) HandleEvent(ctx context.Context, ev Event) error {
	switch ev.EffectType {
	case EffectOrderDelivered:
		_, err := e.Credit(ctx, CreditInput{
			OwnerID:     ev.OwnerID,
			OrderRef:    ev.OrderRef,
			Amount:      ev.Amount,
			Kind:        ledger.KindOrderPayment,
			Description: "order delivered",
		})
		return err
	case EffectOrderCancelled:
		return e.ReleasePending(ctx, ev.OwnerID, ev.OrderRef, ev.Amount)
	case EffectCODCollected:
		_, err := e.Credit(ctx, CreditInput{
			OwnerID:     ev.OwnerID,
			OrderRef:    ev.OrderRef,
			Amount:      ev.Amount,
			Kind:        ledger.KindCODCollected,
			Description: "cash collected at delivery",
		})
		return err
	case EffectCODDeposited:
		_, err := e.Debit(ctx, DebitInput{
			OwnerID:     ev.OwnerID,
			Amount:      ev.Amount,
			Kind:        ledger.KindCODDeposited,
			RefID:       ReferenceCode(ledger.KindCODDeposited, ev.OrderRef),
			Description: "cash deposited",
		})
		if errors.Is(err, ledger.ErrDuplicateEntry) {
			e.logger.Info("deposit replayed, already posted", "owner_id", ev.OwnerID, "order_ref", ev.OrderRef)
			return nil
		}
		return err
	default:
		return fmt.Errorf("%w: %s", ErrUnknownEffect, ev.EffectType)
	}
}
