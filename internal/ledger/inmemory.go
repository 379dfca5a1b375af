package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type inMemoryLedger struct {
	mu       sync.RWMutex
	accounts map[string]*Account // keyed by owner ID
	entries  map[string][]Entry  // keyed by account ID, append order
	refs     map[string]string   // accountID+"\x00"+referenceCode -> entry ID
}

// NewInMemory creates a concurrency-safe in-memory ledger useful for unit tests.
func NewInMemory() Ledger {
	return &inMemoryLedger{
		accounts: make(map[string]*Account),
		entries:  make(map[string][]Entry),
		refs:     make(map[string]string),
	}
}

func refKey(accountID, referenceCode string) string {
	return accountID + "\x00" + referenceCode
}

func (l *inMemoryLedger) CreateAccount(_ context.Context, acct Account) (Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.accounts[acct.OwnerID]; exists {
		return Account{}, ErrAccountExists
	}

	if acct.ID == "" {
		acct.ID = uuid.NewString()
	}
	acct.Balance = 0
	acct.TotalCredited = 0
	acct.TotalDebited = 0
	acct.Pending = 0
	acct.Active = true
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = time.Now().UTC()
	}

	l.accounts[acct.OwnerID] = &acct
	return acct, nil
}

func (l *inMemoryLedger) Account(_ context.Context, ownerID string) (Account, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	acct, ok := l.accounts[ownerID]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return *acct, nil
}

func (l *inMemoryLedger) AccountsByType(_ context.Context, ownerType OwnerType) ([]Account, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Account
	for _, acct := range l.accounts {
		if acct.OwnerType == ownerType {
			out = append(out, *acct)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OwnerID < out[j].OwnerID })
	return out, nil
}

func (l *inMemoryLedger) Credit(_ context.Context, p Posting) (PostingResult, error) {
	if p.Amount <= 0 {
		return PostingResult{}, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	acct, ok := l.accounts[p.OwnerID]
	if !ok {
		return PostingResult{}, ErrAccountNotFound
	}

	if res, dup := l.existingResult(acct.ID, p.ReferenceCode); dup {
		return res, ErrDuplicateEntry
	}

	before := acct.Balance
	acct.Balance += p.Amount
	acct.TotalCredited += p.Amount
	if release := min64(acct.Pending, p.Amount); release > 0 {
		acct.Pending -= release
	}

	entry := l.append(acct, p, p.Amount, before)
	return PostingResult{EntryID: entry.ID, BalanceBefore: before, BalanceAfter: acct.Balance}, nil
}

func (l *inMemoryLedger) Debit(_ context.Context, p Posting) (PostingResult, error) {
	if p.Amount <= 0 {
		return PostingResult{}, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	acct, ok := l.accounts[p.OwnerID]
	if !ok {
		return PostingResult{}, ErrAccountNotFound
	}

	if res, dup := l.existingResult(acct.ID, p.ReferenceCode); dup {
		return res, ErrDuplicateEntry
	}

	if acct.Balance < p.Amount {
		return PostingResult{}, ErrInsufficientBalance
	}

	before := acct.Balance
	acct.Balance -= p.Amount
	acct.TotalDebited += p.Amount

	entry := l.append(acct, p, -p.Amount, before)
	return PostingResult{EntryID: entry.ID, BalanceBefore: before, BalanceAfter: acct.Balance}, nil
}

func (l *inMemoryLedger) AdjustPending(_ context.Context, ownerID string, delta int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	acct, ok := l.accounts[ownerID]
	if !ok {
		return ErrAccountNotFound
	}

	acct.Pending += delta
	if acct.Pending < 0 {
		acct.Pending = 0
	}
	return nil
}

func (l *inMemoryLedger) Entries(_ context.Context, ownerID string, limit, offset int) ([]Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	acct, ok := l.accounts[ownerID]
	if !ok {
		return nil, ErrAccountNotFound
	}

	all := l.entries[acct.ID]
	// Newest first.
	out := make([]Entry, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		out = append(out, all[i])
	}
	if offset >= len(out) {
		return []Entry{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (l *inMemoryLedger) SumKindBetween(_ context.Context, ownerID string, kind Kind, from, to time.Time) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	acct, ok := l.accounts[ownerID]
	if !ok {
		return 0, ErrAccountNotFound
	}

	var sum int64
	for _, e := range l.entries[acct.ID] {
		if e.Kind != kind {
			continue
		}
		if e.CreatedAt.Before(from) || !e.CreatedAt.Before(to) {
			continue
		}
		sum += e.Amount
	}
	return sum, nil
}

func (l *inMemoryLedger) HasReference(_ context.Context, ownerID, referenceCode string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	acct, ok := l.accounts[ownerID]
	if !ok {
		return false, nil
	}
	_, exists := l.refs[refKey(acct.ID, referenceCode)]
	return exists, nil
}

// existingResult reconstructs the posting result of a previously recorded
// reference code, mirroring what the original call returned.
func (l *inMemoryLedger) existingResult(accountID, referenceCode string) (PostingResult, bool) {
	if referenceCode == "" {
		return PostingResult{}, false
	}
	entryID, ok := l.refs[refKey(accountID, referenceCode)]
	if !ok {
		return PostingResult{}, false
	}
	for _, e := range l.entries[accountID] {
		if e.ID == entryID {
			return PostingResult{EntryID: e.ID, BalanceBefore: e.BalanceBefore, BalanceAfter: e.BalanceAfter}, true
		}
	}
	return PostingResult{EntryID: entryID}, true
}

// append records the entry under the already-held write lock.
func (l *inMemoryLedger) append(acct *Account, p Posting, signedAmount, before int64) Entry {
	entry := Entry{
		ID:            uuid.NewString(),
		AccountID:     acct.ID,
		Kind:          p.Kind,
		Amount:        signedAmount,
		BalanceBefore: before,
		BalanceAfter:  acct.Balance,
		OrderRef:      p.OrderRef,
		ReferenceCode: p.ReferenceCode,
		Description:   p.Description,
		CreatedAt:     time.Now().UTC(),
	}
	l.entries[acct.ID] = append(l.entries[acct.ID], entry)
	if p.ReferenceCode != "" {
		l.refs[refKey(acct.ID, p.ReferenceCode)] = entry.ID
	}
	return entry
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
