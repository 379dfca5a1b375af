package reconciliation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/soko-pay/soko_ledger/internal/ledger"
)

// Service recomputes per-courier collected-vs-deposited snapshots from the
// ledger. Runs are pure re-derivations: cancelling and re-running at any
// point yields the same record.
type Service struct {
	ledger ledger.Ledger
	repo   Repository
	logger *slog.Logger
}

// NewService builds a reconciliation service instance.
func NewService(l ledger.Ledger, repo Repository, logger *slog.Logger) *Service {
	return &Service{ledger: l, repo: repo, logger: logger}
}

// Run reconciles one courier for one UTC day and upserts the record.
//
// Deposits are debit-signed in the ledger, so the deposited total negates the
// raw sum. A refunded COD lands as a negative collected entry, which keeps
// difference = collected - deposited linear.
func (s *Service) Run(ctx context.Context, courierID string, date string) (Record, error) {
	timer := time.Now()
	defer func() { runDuration.Observe(time.Since(timer).Seconds()) }()

	from, to, err := DayBounds(date)
	if err != nil {
		return Record{}, fmt.Errorf("parse date %q: %w", date, err)
	}

	collected, err := s.ledger.SumKindBetween(ctx, courierID, ledger.KindCODCollected, from, to)
	if err != nil {
		runErrors.Inc()
		return Record{}, fmt.Errorf("sum collected for %s: %w", courierID, err)
	}
	depositedRaw, err := s.ledger.SumKindBetween(ctx, courierID, ledger.KindCODDeposited, from, to)
	if err != nil {
		runErrors.Inc()
		return Record{}, fmt.Errorf("sum deposited for %s: %w", courierID, err)
	}
	deposited := -depositedRaw

	rec := Record{
		CourierID:      courierID,
		Date:           date,
		TotalCollected: collected,
		TotalDeposited: deposited,
		Difference:     collected - deposited,
		Status:         StatusDone,
	}
	if err := s.repo.Upsert(ctx, rec); err != nil {
		runErrors.Inc()
		return Record{}, fmt.Errorf("upsert record %s/%s: %w", courierID, date, err)
	}

	runsTotal.Inc()
	if rec.Difference != 0 {
		differenceGauge.WithLabelValues(courierID).Set(float64(rec.Difference))
		s.logger.Warn("courier cash difference", "courier_id", courierID, "date", date,
			"collected", collected, "deposited", deposited, "difference", rec.Difference)
	} else {
		differenceGauge.WithLabelValues(courierID).Set(0)
	}
	return rec, nil
}

// RunAll reconciles every courier account for the given day.
func (s *Service) RunAll(ctx context.Context, date string) ([]Record, error) {
	couriers, err := s.ledger.AccountsByType(ctx, ledger.OwnerCourier)
	if err != nil {
		return nil, fmt.Errorf("list couriers: %w", err)
	}

	records := make([]Record, 0, len(couriers))
	for _, acct := range couriers {
		rec, err := s.Run(ctx, acct.OwnerID, date)
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// Report lists a courier's records over an inclusive date range, defaulting
// to today when the range is empty.
func (s *Service) Report(ctx context.Context, courierID, fromDate, toDate string) ([]Record, error) {
	if fromDate == "" {
		fromDate = DateOf(time.Now())
	}
	if toDate == "" {
		toDate = fromDate
	}
	return s.repo.Range(ctx, courierID, fromDate, toDate)
}
