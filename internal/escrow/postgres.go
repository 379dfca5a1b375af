package escrow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// PostgresStore stores escrow holdings in PostgreSQL. The unique index on
// (owner_id, order_ref) is the race barrier for concurrent creation.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore builds a store backed by PostgreSQL.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Put inserts a holding for the (owner, order) pair. A conflicting insert
// returns the existing row together with ErrAlreadyHeld.
func (s *PostgresStore) Put(ctx context.Context, h Holding) (Holding, error) {
	h.ID = uuid.NewString()
	h.Transferred = false
	h.CreatedAt = time.Now().UTC()

	_, err := s.db.Exec(ctx, `INSERT INTO escrow_holdings
        (id, owner_id, order_ref, amount, note, transferred, created_at)
        VALUES ($1, $2, $3, $4, $5, FALSE, $6)`,
		h.ID, h.OwnerID, h.OrderRef, h.Amount, h.Note, h.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			existing, getErr := s.get(ctx, h.OwnerID, h.OrderRef)
			if getErr != nil {
				return Holding{}, getErr
			}
			return existing, ErrAlreadyHeld
		}
		return Holding{}, fmt.Errorf("insert escrow holding: %w", err)
	}
	return h, nil
}

// Untransferred lists the owner's pending holdings oldest first.
func (s *PostgresStore) Untransferred(ctx context.Context, ownerID string) ([]Holding, error) {
	rows, err := s.db.Query(ctx, `SELECT id, owner_id, order_ref, amount, note, transferred,
            COALESCE(transferred_at, 'epoch'::timestamptz), created_at
        FROM escrow_holdings
        WHERE owner_id = $1 AND transferred = FALSE
        ORDER BY created_at`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Holding
	for rows.Next() {
		var h Holding
		var id uuid.UUID
		if err := rows.Scan(&id, &h.OwnerID, &h.OrderRef, &h.Amount, &h.Note, &h.Transferred, &h.TransferredAt, &h.CreatedAt); err != nil {
			return nil, err
		}
		h.ID = id.String()
		out = append(out, h)
	}
	return out, rows.Err()
}

// MarkTransferred flips the holding exactly once; a repeat call reports
// ErrAlreadyTransferred so sweep retries never double-apply.
func (s *PostgresStore) MarkTransferred(ctx context.Context, id string) error {
	holdingID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	tag, err := s.db.Exec(ctx, `UPDATE escrow_holdings
        SET transferred = TRUE, transferred_at = $2
        WHERE id = $1 AND transferred = FALSE`, holdingID, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var transferred bool
		if err := s.db.QueryRow(ctx, `SELECT transferred FROM escrow_holdings WHERE id = $1`, holdingID).Scan(&transferred); err != nil {
			return ErrNotFound
		}
		if transferred {
			return ErrAlreadyTransferred
		}
		return ErrNotFound
	}
	return nil
}

// Has reports whether any holding exists for the (owner, order) pair.
func (s *PostgresStore) Has(ctx context.Context, ownerID, orderRef string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (
        SELECT 1 FROM escrow_holdings WHERE owner_id = $1 AND order_ref = $2)`, ownerID, orderRef).Scan(&exists)
	return exists, err
}

func (s *PostgresStore) get(ctx context.Context, ownerID, orderRef string) (Holding, error) {
	var h Holding
	var id uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id, owner_id, order_ref, amount, note, transferred,
            COALESCE(transferred_at, 'epoch'::timestamptz), created_at
        FROM escrow_holdings WHERE owner_id = $1 AND order_ref = $2`, ownerID, orderRef).
		Scan(&id, &h.OwnerID, &h.OrderRef, &h.Amount, &h.Note, &h.Transferred, &h.TransferredAt, &h.CreatedAt)
	if err != nil {
		return Holding{}, err
	}
	h.ID = id.String()
	return h, nil
}
