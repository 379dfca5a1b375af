package reconciliation

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository stores reconciliation records in PostgreSQL. The unique
// index on (courier_id, date) makes recomputes overwrite instead of duplicate.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert writes the record, overwriting numeric fields for an existing key.
func (r *PostgresRepository) Upsert(ctx context.Context, rec Record) error {
	_, err := r.db.Exec(ctx, `INSERT INTO reconciliation_records
        (courier_id, date, total_collected, total_deposited, difference, status, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (courier_id, date) DO UPDATE SET
            total_collected = EXCLUDED.total_collected,
            total_deposited = EXCLUDED.total_deposited,
            difference = EXCLUDED.difference,
            status = EXCLUDED.status,
            updated_at = EXCLUDED.updated_at`,
		rec.CourierID, rec.Date, rec.TotalCollected, rec.TotalDeposited,
		rec.Difference, rec.Status, time.Now().UTC())
	return err
}

const recordColumns = `courier_id, to_char(date, 'YYYY-MM-DD'), total_collected, total_deposited, difference, status, updated_at`

// Get fetches the record for one (courier, date).
func (r *PostgresRepository) Get(ctx context.Context, courierID, date string) (Record, error) {
	row := r.db.QueryRow(ctx, `SELECT `+recordColumns+` FROM reconciliation_records
        WHERE courier_id = $1 AND date = $2::date`, courierID, date)
	return scanRecord(row)
}

// Range lists a courier's records over an inclusive date range.
func (r *PostgresRepository) Range(ctx context.Context, courierID, fromDate, toDate string) ([]Record, error) {
	rows, err := r.db.Query(ctx, `SELECT `+recordColumns+` FROM reconciliation_records
        WHERE courier_id = $1 AND date BETWEEN $2::date AND $3::date
        ORDER BY date`, courierID, fromDate, toDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	var updatedAt time.Time
	err := row.Scan(&rec.CourierID, &rec.Date, &rec.TotalCollected, &rec.TotalDeposited,
		&rec.Difference, &rec.Status, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	rec.UpdatedAt = updatedAt.UTC()
	return rec, nil
}
