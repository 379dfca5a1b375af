package ledger

import "context"

// SeedBalance is a test helper that credits an opening balance into an account
// when using the in-memory ledger.
func SeedBalance(l Ledger, ownerID string, amount int64) {
	if mem, ok := l.(*inMemoryLedger); ok {
		_, _ = mem.Credit(context.Background(), Posting{
			OwnerID:     ownerID,
			Amount:      amount,
			Kind:        KindAdjustment,
			Description: "test opening balance",
		})
	}
}
