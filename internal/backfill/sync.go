package backfill

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/soko-pay/soko_ledger/internal/ledger"
	"github.com/soko-pay/soko_ledger/internal/settlement"
)

// Sync scans delivered orders and ensures each produced exactly one ledger
// effect. It runs at process start and on demand, and is safe to run
// concurrently with live event-driven credits: the engine's reference-code
// and holding uniqueness constraints are the race barrier, not a global lock.
type Sync struct {
	source OrderSource
	engine *settlement.Engine
	logger *slog.Logger
}

// NewSync builds a backfill sync job.
func NewSync(source OrderSource, engine *settlement.Engine, logger *slog.Logger) *Sync {
	return &Sync{source: source, engine: engine, logger: logger}
}

// Report summarizes one sync pass.
type Report struct {
	Scanned  int `json:"scanned"`
	Credited int `json:"credited"`
	Escrowed int `json:"escrowed"`
	Skipped  int `json:"skipped"`
}

// Run walks every delivered order and settles the ones with no ledger effect
// yet. Already-settled orders count as skipped.
func (s *Sync) Run(ctx context.Context) (Report, error) {
	orders, err := s.source.DeliveredOrders(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list delivered orders: %w", err)
	}

	var report Report
	for _, o := range orders {
		report.Scanned++

		res, err := s.engine.Credit(ctx, settlement.CreditInput{
			OwnerID:     o.SellerID,
			OrderRef:    o.OrderRef,
			Amount:      o.Amount,
			Kind:        ledger.KindOrderPayment,
			Description: "backfill: order delivered",
		})
		if err != nil {
			return report, fmt.Errorf("backfill order %s: %w", o.OrderRef, err)
		}

		switch {
		case res.Duplicate:
			report.Skipped++
		case res.Escrowed:
			report.Escrowed++
		default:
			report.Credited++
		}
	}

	s.logger.Info("backfill sync finished",
		"scanned", report.Scanned, "credited", report.Credited,
		"escrowed", report.Escrowed, "skipped", report.Skipped)
	return report, nil
}
