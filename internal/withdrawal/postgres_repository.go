package withdrawal

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository stores withdrawal requests in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const requestColumns = `id, owner_id, amount, bank_name, bank_account_number, bank_account_holder,
        status, admin_note, processed_by, COALESCE(processed_at, 'epoch'::timestamptz), created_at`

// Create inserts a pending withdrawal request.
func (r *PostgresRepository) Create(ctx context.Context, req Request) (Request, error) {
	req.ID = uuid.NewString()
	req.Status = StatusPending
	req.CreatedAt = time.Now().UTC()

	_, err := r.db.Exec(ctx, `INSERT INTO withdrawal_requests
        (id, owner_id, amount, bank_name, bank_account_number, bank_account_holder, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		req.ID, req.OwnerID, req.Amount, req.Bank.BankName, req.Bank.AccountNumber,
		req.Bank.AccountHolder, req.Status, req.CreatedAt)
	if err != nil {
		return Request{}, err
	}
	return req, nil
}

// Get fetches one request by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Request, error) {
	requestID, err := uuid.Parse(id)
	if err != nil {
		return Request{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT `+requestColumns+` FROM withdrawal_requests WHERE id = $1`, requestID)
	return scanRequest(row)
}

// Transition performs a compare-and-swap on the request status. The WHERE
// clause on the prior status closes the race between two concurrent
// processors of the same request.
func (r *PostgresRepository) Transition(ctx context.Context, id string, from, to Status, note, processedBy string) (Request, error) {
	requestID, err := uuid.Parse(id)
	if err != nil {
		return Request{}, ErrNotFound
	}

	var processedAt *time.Time
	if to == StatusCompleted || to == StatusRejected {
		now := time.Now().UTC()
		processedAt = &now
	}

	tag, err := r.db.Exec(ctx, `UPDATE withdrawal_requests SET
        status = $3,
        admin_note = CASE WHEN $4 <> '' THEN $4 ELSE admin_note END,
        processed_by = CASE WHEN $5 <> '' THEN $5 ELSE processed_by END,
        processed_at = COALESCE($6, processed_at)
        WHERE id = $1 AND status = $2`, requestID, from, to, note, processedBy, processedAt)
	if err != nil {
		return Request{}, err
	}
	if tag.RowsAffected() == 0 {
		current, getErr := r.Get(ctx, id)
		if getErr != nil {
			return Request{}, getErr
		}
		return current, ErrInvalidState
	}
	return r.Get(ctx, id)
}

// List returns requests newest first, optionally filtered by status.
func (r *PostgresRepository) List(ctx context.Context, status Status, limit, offset int) ([]Request, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `SELECT `+requestColumns+` FROM withdrawal_requests
        WHERE ($1 = '' OR status = $1)
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3`, string(status), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Request{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (Request, error) {
	var req Request
	var id uuid.UUID
	err := row.Scan(&id, &req.OwnerID, &req.Amount, &req.Bank.BankName, &req.Bank.AccountNumber,
		&req.Bank.AccountHolder, &req.Status, &req.AdminNote, &req.ProcessedBy, &req.ProcessedAt, &req.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrNotFound
		}
		return Request{}, err
	}
	req.ID = id.String()
	req.ProcessedAt = req.ProcessedAt.UTC()
	req.CreatedAt = req.CreatedAt.UTC()
	return req, nil
}
