package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// PostgresLedger persists accounts and entries in PostgreSQL. Every balance
// mutation runs in one transaction holding a row lock on the account, so
// concurrent postings to the same account serialize while other accounts
// proceed independently.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// CreateAccount inserts a new account for the owner with a zero balance.
func (l *PostgresLedger) CreateAccount(ctx context.Context, acct Account) (Account, error) {
	if acct.ID == "" {
		acct.ID = uuid.NewString()
	}
	acct.Balance = 0
	acct.TotalCredited = 0
	acct.TotalDebited = 0
	acct.Pending = 0
	acct.Active = true
	acct.CreatedAt = time.Now().UTC()

	_, err := l.db.Exec(ctx, `INSERT INTO ledger_accounts
        (id, owner_id, owner_type, balance, total_credited, total_debited, pending,
         bank_name, bank_account_number, bank_account_holder, active, created_at)
        VALUES ($1, $2, $3, 0, 0, 0, 0, $4, $5, $6, TRUE, $7)`,
		acct.ID, acct.OwnerID, acct.OwnerType,
		acct.Bank.BankName, acct.Bank.AccountNumber, acct.Bank.AccountHolder, acct.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Account{}, ErrAccountExists
		}
		return Account{}, fmt.Errorf("insert account: %w", err)
	}
	return acct, nil
}

const accountColumns = `id, owner_id, owner_type, balance, total_credited, total_debited, pending,
        bank_name, bank_account_number, bank_account_holder, active, created_at`

// Account fetches the account owned by ownerID.
func (l *PostgresLedger) Account(ctx context.Context, ownerID string) (Account, error) {
	row := l.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM ledger_accounts WHERE owner_id = $1`, ownerID)
	return scanAccount(row)
}

// AccountsByType lists every account for one owner population.
func (l *PostgresLedger) AccountsByType(ctx context.Context, ownerType OwnerType) ([]Account, error) {
	rows, err := l.db.Query(ctx, `SELECT `+accountColumns+` FROM ledger_accounts
        WHERE owner_type = $1 ORDER BY owner_id`, ownerType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, acct)
	}
	return out, rows.Err()
}

// Credit atomically appends a positive entry and applies it to the account.
// The posting is idempotent on the reference code: replays return the original
// snapshot together with ErrDuplicateEntry.
func (l *PostgresLedger) Credit(ctx context.Context, p Posting) (PostingResult, error) {
	return l.post(ctx, p, +1)
}

// Debit atomically appends a negative entry and applies it to the account.
// Fails with ErrInsufficientBalance when the amount exceeds the locked balance.
func (l *PostgresLedger) Debit(ctx context.Context, p Posting) (PostingResult, error) {
	return l.post(ctx, p, -1)
}

func (l *PostgresLedger) post(ctx context.Context, p Posting, sign int64) (PostingResult, error) {
	if p.Amount <= 0 {
		return PostingResult{}, ErrInvalidAmount
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return PostingResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var accountID uuid.UUID
	var balance, pending int64
	err = tx.QueryRow(ctx, `SELECT id, balance, pending FROM ledger_accounts
        WHERE owner_id = $1 FOR UPDATE`, p.OwnerID).Scan(&accountID, &balance, &pending)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PostingResult{}, ErrAccountNotFound
		}
		return PostingResult{}, err
	}

	if p.ReferenceCode != "" {
		var existingID uuid.UUID
		var before, after int64
		err = tx.QueryRow(ctx, `SELECT id, balance_before, balance_after FROM ledger_entries
            WHERE account_id = $1 AND reference_code = $2`, accountID, p.ReferenceCode).
			Scan(&existingID, &before, &after)
		if err == nil {
			return PostingResult{EntryID: existingID.String(), BalanceBefore: before, BalanceAfter: after}, ErrDuplicateEntry
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return PostingResult{}, err
		}
	}

	if sign < 0 && balance < p.Amount {
		return PostingResult{}, ErrInsufficientBalance
	}

	before := balance
	after := balance + sign*p.Amount

	entryID := uuid.New()
	_, err = tx.Exec(ctx, `INSERT INTO ledger_entries
        (id, account_id, kind, amount, balance_before, balance_after, order_ref, reference_code, description, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9, $10)`,
		entryID, accountID, p.Kind, sign*p.Amount, before, after, p.OrderRef, p.ReferenceCode, p.Description, time.Now().UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return PostingResult{}, ErrDuplicateEntry
		}
		return PostingResult{}, err
	}

	if sign > 0 {
		_, err = tx.Exec(ctx, `UPDATE ledger_accounts SET
            balance = $2,
            total_credited = total_credited + $3,
            pending = pending - LEAST(pending, $3)
            WHERE id = $1`, accountID, after, p.Amount)
	} else {
		_, err = tx.Exec(ctx, `UPDATE ledger_accounts SET
            balance = $2,
            total_debited = total_debited + $3
            WHERE id = $1`, accountID, after, p.Amount)
	}
	if err != nil {
		return PostingResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return PostingResult{}, err
	}

	return PostingResult{EntryID: entryID.String(), BalanceBefore: before, BalanceAfter: after}, nil
}

// AdjustPending moves the earmarked amount without touching the balance.
// Pending floors at zero.
func (l *PostgresLedger) AdjustPending(ctx context.Context, ownerID string, delta int64) error {
	tag, err := l.db.Exec(ctx, `UPDATE ledger_accounts
        SET pending = GREATEST(0, pending + $2) WHERE owner_id = $1`, ownerID, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// Entries lists the account's entry log newest first.
func (l *PostgresLedger) Entries(ctx context.Context, ownerID string, limit, offset int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.Query(ctx, `SELECT e.id, e.account_id, e.kind, e.amount, e.balance_before, e.balance_after,
            COALESCE(e.order_ref, ''), COALESCE(e.reference_code, ''), e.description, e.created_at
        FROM ledger_entries e
        INNER JOIN ledger_accounts a ON a.id = e.account_id
        WHERE a.owner_id = $1
        ORDER BY e.created_at DESC, e.id DESC
        LIMIT $2 OFFSET $3`, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var entryID, accountID uuid.UUID
		var createdAt time.Time
		if err := rows.Scan(&entryID, &accountID, &e.Kind, &e.Amount, &e.BalanceBefore, &e.BalanceAfter,
			&e.OrderRef, &e.ReferenceCode, &e.Description, &createdAt); err != nil {
			return nil, err
		}
		e.ID = entryID.String()
		e.AccountID = accountID.String()
		e.CreatedAt = createdAt.UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SumKindBetween sums signed entry amounts of one kind within [from, to).
func (l *PostgresLedger) SumKindBetween(ctx context.Context, ownerID string, kind Kind, from, to time.Time) (int64, error) {
	const query = `
        SELECT COALESCE(SUM(e.amount), 0)
        FROM ledger_entries e
        INNER JOIN ledger_accounts a ON a.id = e.account_id
        WHERE a.owner_id = $1 AND e.kind = $2 AND e.created_at >= $3 AND e.created_at < $4`
	var sum int64
	if err := l.db.QueryRow(ctx, query, ownerID, kind, from.UTC(), to.UTC()).Scan(&sum); err != nil {
		return 0, err
	}
	return sum, nil
}

// HasReference reports whether the owner's account already holds an entry with
// the reference code. A missing account reports false rather than an error so
// back-fill probes stay cheap.
func (l *PostgresLedger) HasReference(ctx context.Context, ownerID, referenceCode string) (bool, error) {
	const query = `
        SELECT EXISTS (
            SELECT 1 FROM ledger_entries e
            INNER JOIN ledger_accounts a ON a.id = e.account_id
            WHERE a.owner_id = $1 AND e.reference_code = $2
        )`
	var exists bool
	if err := l.db.QueryRow(ctx, query, ownerID, referenceCode).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (Account, error) {
	var acct Account
	var id uuid.UUID
	var createdAt time.Time
	err := row.Scan(&id, &acct.OwnerID, &acct.OwnerType, &acct.Balance, &acct.TotalCredited,
		&acct.TotalDebited, &acct.Pending, &acct.Bank.BankName, &acct.Bank.AccountNumber,
		&acct.Bank.AccountHolder, &acct.Active, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	acct.ID = id.String()
	acct.CreatedAt = createdAt.UTC()
	return acct, nil
}
