// Package reconciliation compares cash couriers collected against cash they
// deposited, per courier per day, derived entirely from the ledger entry log.
package reconciliation

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates no reconciliation record exists for the key.
var ErrNotFound = errors.New("reconciliation record not found")

// Status is operator-facing progress for a record. Transitions are advisory
// and never gate the numeric computation.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
)

// Record is the collected-vs-deposited snapshot for one (courier, date).
// Re-running the job for the same key recomputes and overwrites the numbers.
type Record struct {
	CourierID      string
	Date           string // YYYY-MM-DD, UTC day
	TotalCollected int64
	TotalDeposited int64
	Difference     int64
	Status         Status
	UpdatedAt      time.Time
}

// Repository persists reconciliation records keyed by (courier, date).
type Repository interface {
	Upsert(ctx context.Context, rec Record) error
	Get(ctx context.Context, courierID, date string) (Record, error)
	Range(ctx context.Context, courierID, fromDate, toDate string) ([]Record, error)
}

// DateOf formats a point in time as the job's UTC day key.
func DateOf(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// DayBounds returns the [start, end) UTC boundaries of a YYYY-MM-DD day.
func DayBounds(date string) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation("2006-01-02", date, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, start.Add(24 * time.Hour), nil
}
