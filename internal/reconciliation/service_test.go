package reconciliation

import (
	"context"
	"testing"
	"time"

	"github.com/soko-pay/soko_ledger/internal/ledger"
	"github.com/soko-pay/soko_ledger/internal/logging"
)

func newCourierLedger(t *testing.T, courierID string) ledger.Ledger {
	t.Helper()
	led := ledger.NewInMemory()
	if _, err := led.CreateAccount(context.Background(), ledger.Account{
		OwnerID:   courierID,
		OwnerType: ledger.OwnerCourier,
	}); err != nil {
		t.Fatalf("create courier account: %v", err)
	}
	return led
}

func TestRunComputesDifference(t *testing.T) {
	led := newCourierLedger(t, "courier-1")
	svc := NewService(led, NewMemoryRepository(), logging.Discard())

	ctx := context.Background()
	if _, err := led.Credit(ctx, ledger.Posting{OwnerID: "courier-1", Amount: 900, Kind: ledger.KindCODCollected, ReferenceCode: "cod_collected:O1"}); err != nil {
		t.Fatalf("collect O1: %v", err)
	}
	if _, err := led.Credit(ctx, ledger.Posting{OwnerID: "courier-1", Amount: 600, Kind: ledger.KindCODCollected, ReferenceCode: "cod_collected:O2"}); err != nil {
		t.Fatalf("collect O2: %v", err)
	}
	if _, err := led.Debit(ctx, ledger.Posting{OwnerID: "courier-1", Amount: 1_000, Kind: ledger.KindCODDeposited, ReferenceCode: "cod_deposited:D1"}); err != nil {
		t.Fatalf("deposit D1: %v", err)
	}

	today := DateOf(time.Now())
	rec, err := svc.Run(ctx, "courier-1", today)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if rec.TotalCollected != 1_500 {
		t.Fatalf("expected collected 1500, got %d", rec.TotalCollected)
	}
	if rec.TotalDeposited != 1_000 {
		t.Fatalf("expected deposited 1000, got %d", rec.TotalDeposited)
	}
	if rec.Difference != 500 {
		t.Fatalf("expected difference 500, got %d", rec.Difference)
	}
	if rec.Status != StatusDone {
		t.Fatalf("expected done, got %s", rec.Status)
	}
}

func TestRunIdempotent(t *testing.T) {
	led := newCourierLedger(t, "courier-1")
	repo := NewMemoryRepository()
	svc := NewService(led, repo, logging.Discard())

	ctx := context.Background()
	if _, err := led.Credit(ctx, ledger.Posting{OwnerID: "courier-1", Amount: 700, Kind: ledger.KindCODCollected, ReferenceCode: "cod_collected:O1"}); err != nil {
		t.Fatalf("collect: %v", err)
	}

	today := DateOf(time.Now())
	first, err := svc.Run(ctx, "courier-1", today)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := svc.Run(ctx, "courier-1", today)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	first.UpdatedAt, second.UpdatedAt = time.Time{}, time.Time{}
	if first != second {
		t.Fatalf("reruns diverged: %+v vs %+v", first, second)
	}

	// And only one record exists for the key.
	records, _ := repo.Range(ctx, "courier-1", today, today)
	if len(records) != 1 {
		t.Fatalf("expected a single record, got %d", len(records))
	}
}

func TestRefundCountsAsNegativeCollected(t *testing.T) {
	led := newCourierLedger(t, "courier-1")
	svc := NewService(led, NewMemoryRepository(), logging.Discard())

	ctx := context.Background()
	if _, err := led.Credit(ctx, ledger.Posting{OwnerID: "courier-1", Amount: 800, Kind: ledger.KindCODCollected, ReferenceCode: "cod_collected:O1"}); err != nil {
		t.Fatalf("collect: %v", err)
	}
	// Order refunded at the doorstep: compensating debit-signed collected entry.
	if _, err := led.Debit(ctx, ledger.Posting{OwnerID: "courier-1", Amount: 300, Kind: ledger.KindCODCollected, ReferenceCode: "cod_collected:O1:refund"}); err != nil {
		t.Fatalf("refund: %v", err)
	}

	rec, err := svc.Run(ctx, "courier-1", DateOf(time.Now()))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rec.TotalCollected != 500 {
		t.Fatalf("expected net collected 500, got %d", rec.TotalCollected)
	}
	if rec.Difference != 500 {
		t.Fatalf("expected difference 500, got %d", rec.Difference)
	}
}

func TestRunAllCoversEveryCourier(t *testing.T) {
	led := newCourierLedger(t, "courier-1")
	ctx := context.Background()
	if _, err := led.CreateAccount(ctx, ledger.Account{OwnerID: "courier-2", OwnerType: ledger.OwnerCourier}); err != nil {
		t.Fatalf("create courier-2: %v", err)
	}
	// Sellers are not reconciled.
	if _, err := led.CreateAccount(ctx, ledger.Account{OwnerID: "seller-1", OwnerType: ledger.OwnerSeller}); err != nil {
		t.Fatalf("create seller: %v", err)
	}

	svc := NewService(led, NewMemoryRepository(), logging.Discard())
	records, err := svc.RunAll(ctx, DateOf(time.Now()))
	if err != nil {
		t.Fatalf("run all: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 courier records, got %d", len(records))
	}
}
