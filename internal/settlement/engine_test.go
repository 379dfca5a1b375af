package settlement

import (
	"context"
	"errors"
	"testing"

	"github.com/soko-pay/soko_ledger/internal/escrow"
	"github.com/soko-pay/soko_ledger/internal/ledger"
	"github.com/soko-pay/soko_ledger/internal/logging"
)

func newTestEngine() (*Engine, ledger.Ledger, escrow.Store) {
	led := ledger.NewInMemory()
	store := escrow.NewMemoryStore()
	eng := NewEngine(led, store, nil, logging.Discard())
	return eng, led, store
}

func registerSeller(t *testing.T, eng *Engine, ownerID string) ledger.Account {
	t.Helper()
	acct, err := eng.RegisterAccount(context.Background(), RegisterInput{
		OwnerID:   ownerID,
		OwnerType: ledger.OwnerSeller,
		Bank:      ledger.BankDetails{BankName: "KCB", AccountNumber: "12345", AccountHolder: ownerID},
	})
	if err != nil {
		t.Fatalf("register account: %v", err)
	}
	return acct
}

func TestCreditWithAccount(t *testing.T) {
	eng, led, _ := newTestEngine()
	registerSeller(t, eng, "seller-1")

	ctx := context.Background()
	res, err := eng.Credit(ctx, CreditInput{OwnerID: "seller-1", OrderRef: "O1", Amount: 500, Kind: ledger.KindOrderPayment})
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if res.Escrowed || res.Duplicate {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.BalanceAfter != 500 {
		t.Fatalf("expected balance 500, got %d", res.BalanceAfter)
	}

	acct, _ := led.Account(ctx, "seller-1")
	if acct.Balance != 500 {
		t.Fatalf("expected account balance 500, got %d", acct.Balance)
	}
}

func TestCreditIdempotentReplay(t *testing.T) {
	eng, led, _ := newTestEngine()
	registerSeller(t, eng, "seller-1")

	ctx := context.Background()
	in := CreditInput{OwnerID: "seller-1", OrderRef: "O1", Amount: 500, Kind: ledger.KindOrderPayment}

	if _, err := eng.Credit(ctx, in); err != nil {
		t.Fatalf("first credit: %v", err)
	}

	res, err := eng.Credit(ctx, in)
	if err != nil {
		t.Fatalf("replay must be success, got %v", err)
	}
	if !res.Duplicate {
		t.Fatal("replay should report duplicate")
	}

	entries, _ := led.Entries(ctx, "seller-1", 10, 0)
	if len(entries) != 1 {
		t.Fatalf("expected one entry after replay, got %d", len(entries))
	}
	acct, _ := led.Account(ctx, "seller-1")
	if acct.Balance != 500 {
		t.Fatalf("balance moved on replay: %d", acct.Balance)
	}
}

func TestCreditWithoutAccountHoldsInEscrow(t *testing.T) {
	eng, _, store := newTestEngine()

	ctx := context.Background()
	res, err := eng.Credit(ctx, CreditInput{OwnerID: "seller-ghost", OrderRef: "O1", Amount: 500, Kind: ledger.KindOrderPayment})
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if !res.Escrowed {
		t.Fatal("expected amount to be escrowed")
	}

	// Replay is a no-op success.
	res, err = eng.Credit(ctx, CreditInput{OwnerID: "seller-ghost", OrderRef: "O1", Amount: 500, Kind: ledger.KindOrderPayment})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !res.Escrowed || !res.Duplicate {
		t.Fatalf("expected duplicate escrow no-op, got %+v", res)
	}

	holdings, _ := store.Untransferred(ctx, "seller-ghost")
	if len(holdings) != 1 {
		t.Fatalf("expected exactly one holding, got %d", len(holdings))
	}
	if holdings[0].Amount != 500 || holdings[0].Transferred {
		t.Fatalf("unexpected holding: %+v", holdings[0])
	}
}

func TestRegisterSweepsEscrow(t *testing.T) {
	eng, led, store := newTestEngine()

	ctx := context.Background()
	// Order delivered before the seller ever registered.
	if _, err := eng.Credit(ctx, CreditInput{OwnerID: "seller-1", OrderRef: "O1", Amount: 500, Kind: ledger.KindOrderPayment}); err != nil {
		t.Fatalf("credit: %v", err)
	}

	acct := registerSeller(t, eng, "seller-1")
	if acct.Balance != 500 {
		t.Fatalf("expected swept balance 500, got %d", acct.Balance)
	}

	entries, _ := led.Entries(ctx, "seller-1", 10, 0)
	if len(entries) != 1 {
		t.Fatalf("expected one entry from sweep, got %d", len(entries))
	}
	if entries[0].Kind != ledger.KindOrderPayment || entries[0].BalanceBefore != 0 || entries[0].BalanceAfter != 500 {
		t.Fatalf("unexpected sweep entry: %+v", entries[0])
	}

	holdings, _ := store.Untransferred(ctx, "seller-1")
	if len(holdings) != 0 {
		t.Fatalf("holdings left untransferred after sweep: %d", len(holdings))
	}
}

func TestSweepCompleteness(t *testing.T) {
	eng, led, _ := newTestEngine()

	ctx := context.Background()
	var want int64
	for i, ref := range []string{"O1", "O2", "O3", "O4"} {
		amount := int64(100 * (i + 1))
		want += amount
		if _, err := eng.Credit(ctx, CreditInput{OwnerID: "seller-1", OrderRef: ref, Amount: amount, Kind: ledger.KindOrderPayment}); err != nil {
			t.Fatalf("credit %s: %v", ref, err)
		}
	}

	registerSeller(t, eng, "seller-1")

	acct, _ := led.Account(ctx, "seller-1")
	if acct.Balance != want {
		t.Fatalf("expected balance %d, got %d", want, acct.Balance)
	}
	entries, _ := led.Entries(ctx, "seller-1", 10, 0)
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}

	// A second sweep finds nothing and changes nothing.
	n, err := eng.SweepEscrow(ctx, "seller-1")
	if err != nil {
		t.Fatalf("re-sweep: %v", err)
	}
	if n != 0 {
		t.Fatalf("re-sweep touched %d holdings", n)
	}
	acct, _ = led.Account(ctx, "seller-1")
	if acct.Balance != want {
		t.Fatalf("re-sweep moved balance to %d", acct.Balance)
	}
}

func TestSweepRetryAfterPartialFailure(t *testing.T) {
	eng, led, store := newTestEngine()

	ctx := context.Background()
	if _, err := eng.Credit(ctx, CreditInput{OwnerID: "seller-1", OrderRef: "O1", Amount: 500, Kind: ledger.KindOrderPayment}); err != nil {
		t.Fatalf("credit: %v", err)
	}
	registerSeller(t, eng, "seller-1")

	// Simulate a crash after the ledger credit but before the holding was
	// marked: create a fresh holding whose order is already posted.
	if _, err := led.Credit(ctx, ledger.Posting{
		OwnerID: "seller-1", Amount: 200, Kind: ledger.KindOrderPayment,
		OrderRef: "O2", ReferenceCode: ReferenceCode(ledger.KindOrderPayment, "O2"),
	}); err != nil {
		t.Fatalf("pre-post O2: %v", err)
	}
	if _, err := store.Put(ctx, escrow.Holding{OwnerID: "seller-1", OrderRef: "O2", Amount: 200}); err != nil {
		t.Fatalf("put holding: %v", err)
	}

	before, _ := led.Account(ctx, "seller-1")
	if _, err := eng.SweepEscrow(ctx, "seller-1"); err != nil {
		t.Fatalf("retry sweep: %v", err)
	}
	after, _ := led.Account(ctx, "seller-1")

	if after.Balance != before.Balance {
		t.Fatalf("retry re-credited an already-posted order: %d -> %d", before.Balance, after.Balance)
	}
	holdings, _ := store.Untransferred(ctx, "seller-1")
	if len(holdings) != 0 {
		t.Fatalf("retry left holdings untransferred: %d", len(holdings))
	}
}

func TestDebitSurfacesInsufficientBalance(t *testing.T) {
	eng, _, _ := newTestEngine()
	registerSeller(t, eng, "seller-1")

	ctx := context.Background()
	_, err := eng.Debit(ctx, DebitInput{OwnerID: "seller-1", Amount: 100, Kind: ledger.KindWithdrawal, RefID: "withdrawal:w1"})
	if !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestMarkAndReleasePending(t *testing.T) {
	eng, led, _ := newTestEngine()
	registerSeller(t, eng, "seller-1")

	ctx := context.Background()
	if err := eng.MarkPending(ctx, "seller-1", "O1", 300); err != nil {
		t.Fatalf("mark pending: %v", err)
	}
	acct, _ := led.Account(ctx, "seller-1")
	if acct.Pending != 300 || acct.Balance != 0 {
		t.Fatalf("unexpected state after mark: %+v", acct)
	}

	if err := eng.ReleasePending(ctx, "seller-1", "O1", 300); err != nil {
		t.Fatalf("release pending: %v", err)
	}
	acct, _ = led.Account(ctx, "seller-1")
	if acct.Pending != 0 {
		t.Fatalf("pending not released: %d", acct.Pending)
	}

	// Releasing for an owner with no account is tolerated.
	if err := eng.ReleasePending(ctx, "seller-ghost", "O9", 100); err != nil {
		t.Fatalf("release for missing account should be a no-op, got %v", err)
	}
}

func TestHandleEventCODFlow(t *testing.T) {
	eng, led, _ := newTestEngine()

	ctx := context.Background()
	if _, err := eng.RegisterAccount(ctx, RegisterInput{OwnerID: "courier-1", OwnerType: ledger.OwnerCourier}); err != nil {
		t.Fatalf("register courier: %v", err)
	}

	if err := eng.HandleEvent(ctx, Event{OwnerID: "courier-1", OrderRef: "O1", Amount: 700, EffectType: EffectCODCollected}); err != nil {
		t.Fatalf("cod collected: %v", err)
	}
	if err := eng.HandleEvent(ctx, Event{OwnerID: "courier-1", OrderRef: "O1", Amount: 700, EffectType: EffectCODDeposited}); err != nil {
		t.Fatalf("cod deposited: %v", err)
	}
	// Replayed deposit is tolerated.
	if err := eng.HandleEvent(ctx, Event{OwnerID: "courier-1", OrderRef: "O1", Amount: 700, EffectType: EffectCODDeposited}); err != nil {
		t.Fatalf("replayed deposit: %v", err)
	}

	acct, _ := led.Account(ctx, "courier-1")
	if acct.Balance != 0 {
		t.Fatalf("collected and deposited should cancel out, balance %d", acct.Balance)
	}
	entries, _ := led.Entries(ctx, "courier-1", 10, 0)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	if err := eng.HandleEvent(ctx, Event{OwnerID: "courier-1", OrderRef: "O2", EffectType: "order_misplaced"}); !errors.Is(err, ErrUnknownEffect) {
		t.Fatalf("expected ErrUnknownEffect, got %v", err)
	}
}
