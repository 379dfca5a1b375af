package ledger

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestAccount(t *testing.T, l Ledger, ownerID string, ownerType OwnerType) Account {
	t.Helper()
	acct, err := l.CreateAccount(context.Background(), Account{
		OwnerID:   ownerID,
		OwnerType: ownerType,
		Bank:      BankDetails{BankName: "Equity", AccountNumber: "0011223344", AccountHolder: "Test Owner"},
	})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	return acct
}

func TestCreateAccountExclusiveOwnership(t *testing.T) {
	l := NewInMemory()
	newTestAccount(t, l, "seller-1", OwnerSeller)

	if _, err := l.CreateAccount(context.Background(), Account{OwnerID: "seller-1", OwnerType: OwnerSeller}); !errors.Is(err, ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
}

func TestCreditSnapshotsBalances(t *testing.T) {
	l := NewInMemory()
	newTestAccount(t, l, "seller-1", OwnerSeller)

	ctx := context.Background()
	res, err := l.Credit(ctx, Posting{OwnerID: "seller-1", Amount: 500, Kind: KindOrderPayment, OrderRef: "O1", ReferenceCode: "order_payment:O1"})
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if res.BalanceBefore != 0 || res.BalanceAfter != 500 {
		t.Fatalf("unexpected snapshot: %+v", res)
	}

	acct, err := l.Account(ctx, "seller-1")
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if acct.Balance != 500 || acct.TotalCredited != 500 || acct.TotalDebited != 0 {
		t.Fatalf("unexpected account state: %+v", acct)
	}
}

func TestCreditIdempotentOnReferenceCode(t *testing.T) {
	l := NewInMemory()
	newTestAccount(t, l, "seller-1", OwnerSeller)

	ctx := context.Background()
	p := Posting{OwnerID: "seller-1", Amount: 500, Kind: KindOrderPayment, OrderRef: "O1", ReferenceCode: "order_payment:O1"}

	first, err := l.Credit(ctx, p)
	if err != nil {
		t.Fatalf("first credit: %v", err)
	}

	second, err := l.Credit(ctx, p)
	if !errors.Is(err, ErrDuplicateEntry) {
		t.Fatalf("expected ErrDuplicateEntry, got %v", err)
	}
	if second.EntryID != first.EntryID || second.BalanceAfter != first.BalanceAfter {
		t.Fatalf("replay should return original snapshot: first=%+v second=%+v", first, second)
	}

	entries, err := l.Entries(ctx, "seller-1", 10, 0)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one entry, got %d", len(entries))
	}

	acct, _ := l.Account(ctx, "seller-1")
	if acct.Balance != 500 {
		t.Fatalf("balance changed on replay: %d", acct.Balance)
	}
}

func TestDebitInsufficientBalanceLeavesStateUnchanged(t *testing.T) {
	l := NewInMemory()
	newTestAccount(t, l, "courier-1", OwnerCourier)
	SeedBalance(l, "courier-1", 100)

	ctx := context.Background()
	if _, err := l.Debit(ctx, Posting{OwnerID: "courier-1", Amount: 150, Kind: KindWithdrawal, ReferenceCode: "withdrawal:w1"}); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	acct, _ := l.Account(ctx, "courier-1")
	if acct.Balance != 100 {
		t.Fatalf("balance mutated on failed debit: %d", acct.Balance)
	}
	entries, _ := l.Entries(ctx, "courier-1", 10, 0)
	if len(entries) != 1 { // seed entry only
		t.Fatalf("failed debit appended an entry: %d", len(entries))
	}
}

func TestConservation(t *testing.T) {
	l := NewInMemory()
	newTestAccount(t, l, "seller-1", OwnerSeller)

	ctx := context.Background()
	postings := []struct {
		amount int64
		debit  bool
		kind   Kind
		ref    string
	}{
		{500, false, KindOrderPayment, "order_payment:O1"},
		{200, false, KindBonus, "bonus:B1"},
		{300, true, KindWithdrawal, "withdrawal:W1"},
		{50, true, KindPenalty, "penalty:P1"},
	}
	for _, p := range postings {
		var err error
		if p.debit {
			_, err = l.Debit(ctx, Posting{OwnerID: "seller-1", Amount: p.amount, Kind: p.kind, ReferenceCode: p.ref})
		} else {
			_, err = l.Credit(ctx, Posting{OwnerID: "seller-1", Amount: p.amount, Kind: p.kind, ReferenceCode: p.ref})
		}
		if err != nil {
			t.Fatalf("posting %s: %v", p.ref, err)
		}
	}

	acct, _ := l.Account(ctx, "seller-1")
	entries, _ := l.Entries(ctx, "seller-1", 100, 0)

	var sum int64
	for _, e := range entries {
		sum += e.Amount
	}
	if sum != acct.Balance {
		t.Fatalf("balance %d does not equal entry sum %d", acct.Balance, sum)
	}
	if acct.Balance != acct.TotalCredited-acct.TotalDebited {
		t.Fatalf("balance %d != credited %d - debited %d", acct.Balance, acct.TotalCredited, acct.TotalDebited)
	}
}

func TestCreditReleasesPending(t *testing.T) {
	l := NewInMemory()
	newTestAccount(t, l, "seller-1", OwnerSeller)

	ctx := context.Background()
	if err := l.AdjustPending(ctx, "seller-1", 300); err != nil {
		t.Fatalf("adjust pending: %v", err)
	}

	if _, err := l.Credit(ctx, Posting{OwnerID: "seller-1", Amount: 500, Kind: KindOrderPayment, ReferenceCode: "order_payment:O1"}); err != nil {
		t.Fatalf("credit: %v", err)
	}

	acct, _ := l.Account(ctx, "seller-1")
	if acct.Pending != 0 {
		t.Fatalf("pending should drain by min(pending, amount): %d", acct.Pending)
	}
	if acct.Balance != 500 {
		t.Fatalf("unexpected balance: %d", acct.Balance)
	}
}

func TestAdjustPendingFloorsAtZero(t *testing.T) {
	l := NewInMemory()
	newTestAccount(t, l, "seller-1", OwnerSeller)

	ctx := context.Background()
	_ = l.AdjustPending(ctx, "seller-1", 100)
	_ = l.AdjustPending(ctx, "seller-1", -250)

	acct, _ := l.Account(ctx, "seller-1")
	if acct.Pending != 0 {
		t.Fatalf("pending went negative: %d", acct.Pending)
	}
	if acct.Balance != 0 {
		t.Fatalf("pending adjustment touched balance: %d", acct.Balance)
	}
}

func TestEntriesNewestFirstPaginated(t *testing.T) {
	l := NewInMemory()
	newTestAccount(t, l, "seller-1", OwnerSeller)

	ctx := context.Background()
	refs := []string{"order_payment:O1", "order_payment:O2", "order_payment:O3"}
	for _, ref := range refs {
		if _, err := l.Credit(ctx, Posting{OwnerID: "seller-1", Amount: 100, Kind: KindOrderPayment, ReferenceCode: ref}); err != nil {
			t.Fatalf("credit %s: %v", ref, err)
		}
	}

	page, err := l.Entries(ctx, "seller-1", 2, 0)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected page of 2, got %d", len(page))
	}
	if page[0].ReferenceCode != "order_payment:O3" || page[1].ReferenceCode != "order_payment:O2" {
		t.Fatalf("expected newest first, got %s then %s", page[0].ReferenceCode, page[1].ReferenceCode)
	}

	rest, _ := l.Entries(ctx, "seller-1", 2, 2)
	if len(rest) != 1 || rest[0].ReferenceCode != "order_payment:O1" {
		t.Fatalf("unexpected second page: %+v", rest)
	}
}

func TestInvalidAmountRejected(t *testing.T) {
	l := NewInMemory()
	newTestAccount(t, l, "seller-1", OwnerSeller)

	ctx := context.Background()
	if _, err := l.Credit(ctx, Posting{OwnerID: "seller-1", Amount: 0, Kind: KindOrderPayment}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for zero credit, got %v", err)
	}
	if _, err := l.Debit(ctx, Posting{OwnerID: "seller-1", Amount: -5, Kind: KindWithdrawal}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for negative debit, got %v", err)
	}
}

func TestSumKindBetween(t *testing.T) {
	l := NewInMemory()
	newTestAccount(t, l, "courier-1", OwnerCourier)

	ctx := context.Background()
	if _, err := l.Credit(ctx, Posting{OwnerID: "courier-1", Amount: 700, Kind: KindCODCollected, ReferenceCode: "cod_collected:O1"}); err != nil {
		t.Fatalf("collect: %v", err)
	}
	if _, err := l.Debit(ctx, Posting{OwnerID: "courier-1", Amount: 400, Kind: KindCODDeposited, ReferenceCode: "cod_deposited:D1"}); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	now := time.Now().UTC()
	from := now.Add(-time.Hour)
	to := now.Add(time.Hour)

	collected, err := l.SumKindBetween(ctx, "courier-1", KindCODCollected, from, to)
	if err != nil {
		t.Fatalf("sum collected: %v", err)
	}
	if collected != 700 {
		t.Fatalf("expected collected 700, got %d", collected)
	}

	deposited, _ := l.SumKindBetween(ctx, "courier-1", KindCODDeposited, from, to)
	if deposited != -400 {
		t.Fatalf("deposits are debit-signed, expected -400, got %d", deposited)
	}
}
