package withdrawal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/soko-pay/soko_ledger/internal/ledger"
	"github.com/soko-pay/soko_ledger/internal/notification"
	"github.com/soko-pay/soko_ledger/internal/settlement"
)

// Service runs the withdrawal request state machine on top of the settlement
// engine. Requests never move funds on creation; only an approval debits the
// account, and the balance is re-validated at that moment because other
// debits may have landed since the request was made.
type Service struct {
	repo     Repository
	engine   *settlement.Engine
	notifier notification.Notifier
	logger   *slog.Logger
}

// NewService builds a withdrawal service instance.
func NewService(repo Repository, engine *settlement.Engine, notifier notification.Notifier, logger *slog.Logger) *Service {
	return &Service{repo: repo, engine: engine, notifier: notifier, logger: logger}
}

// RequestInput captures the data needed to open a withdrawal request.
type RequestInput struct {
	OwnerID string
	Amount  int64
	Bank    ledger.BankDetails
}

// Request opens a pending withdrawal. The balance check here is advisory:
// it rejects obviously impossible requests early, but the binding check
// happens at approval time.
func (s *Service) Request(ctx context.Context, in RequestInput) (Request, error) {
	if in.Amount <= 0 {
		return Request{}, ledger.ErrInvalidAmount
	}

	acct, err := s.engine.Account(ctx, in.OwnerID)
	if err != nil {
		return Request{}, err
	}
	if in.Amount > acct.Balance {
		return Request{}, ledger.ErrInsufficientBalance
	}

	bank := in.Bank
	if bank == (ledger.BankDetails{}) {
		// Snapshot the account's payout details at request time.
		bank = acct.Bank
	}

	req, err := s.repo.Create(ctx, Request{OwnerID: in.OwnerID, Amount: in.Amount, Bank: bank})
	if err != nil {
		return Request{}, err
	}

	s.logger.Info("withdrawal requested", "request_id", req.ID, "owner_id", in.OwnerID, "amount", in.Amount)
	return req, nil
}

// debitRef derives the idempotent reference code for a request's payout debit.
func debitRef(requestID string) string {
	return "withdrawal:" + requestID
}

// Process applies an admin decision to a pending request.
//
// Rejection is terminal and has no balance effect. Approval re-validates the
// balance by debiting through the settlement engine; on
// ErrInsufficientBalance the request stays pending and remains retryable.
// The debit's reference code makes a crashed approval safe to retry: the
// replayed debit is detected and only the status transition is completed.
func (s *Service) Process(ctx context.Context, requestID string, decision Decision, note, processedBy string) (Request, error) {
	req, err := s.repo.Get(ctx, requestID)
	if err != nil {
		return Request{}, err
	}
	if req.Status != StatusPending {
		return req, ErrInvalidState
	}

	switch decision {
	case DecisionRejected:
		updated, err := s.repo.Transition(ctx, requestID, StatusPending, StatusRejected, note, processedBy)
		if err != nil {
			return updated, err
		}
		processedTotal.WithLabelValues("rejected").Inc()
		s.logger.Info("withdrawal rejected", "request_id", requestID, "processed_by", processedBy)
		s.notify(ctx, notification.KindWithdrawalRejected, updated)
		return updated, nil

	case DecisionApproved:
		_, err := s.engine.Debit(ctx, settlement.DebitInput{
			OwnerID:     req.OwnerID,
			Amount:      req.Amount,
			Kind:        ledger.KindWithdrawal,
			RefID:       debitRef(requestID),
			Description: fmt.Sprintf("withdrawal to %s %s", req.Bank.BankName, req.Bank.AccountNumber),
		})
		if err != nil && !errors.Is(err, ledger.ErrDuplicateEntry) {
			if errors.Is(err, ledger.ErrInsufficientBalance) {
				s.logger.Warn("withdrawal approval failed re-validation",
					"request_id", requestID, "owner_id", req.OwnerID, "amount", req.Amount)
			}
			return req, err
		}

		updated, err := s.repo.Transition(ctx, requestID, StatusPending, StatusCompleted, note, processedBy)
		if err != nil {
			return updated, err
		}
		processedTotal.WithLabelValues("approved").Inc()
		s.logger.Info("withdrawal completed", "request_id", requestID, "owner_id", req.OwnerID,
			"amount", req.Amount, "processed_by", processedBy)
		s.notify(ctx, notification.KindWithdrawalCompleted, updated)
		return updated, nil

	default:
		return req, fmt.Errorf("%w: decision %q", ErrInvalidState, decision)
	}
}

// Get fetches one withdrawal request.
func (s *Service) Get(ctx context.Context, requestID string) (Request, error) {
	return s.repo.Get(ctx, requestID)
}

// List returns requests newest first, optionally filtered by status.
func (s *Service) List(ctx context.Context, status Status, limit, offset int) ([]Request, error) {
	return s.repo.List(ctx, status, limit, offset)
}

func (s *Service) notify(ctx context.Context, kind string, req Request) {
	if s.notifier == nil {
		return
	}
	_ = s.notifier.Send(ctx, notification.Message{
		Kind:        kind,
		Destination: req.OwnerID,
		Body:        fmt.Sprintf("withdrawal %s for %d is %s", req.ID, req.Amount, req.Status),
	})
}
