package db

import (
	"context"
	"fmt"
	"time"

	"github.com/veritas-mfg/tobacco-aps/internal/planmodel"
)

// AllocateSequence atomically reserves the next n values of the
// (kind, date) daily sequence and returns the first value allocated —
// callers assign first, first+1, ..., first+n-1. The row is created with
// next_value=1 on first use. Allocation never rolls back values once
// committed: on task failure the gap is acceptable, reuse is forbidden.
func (q *Queries) AllocateSequence(ctx context.Context, kind planmodel.OrderKind, date time.Time, n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("invalid allocation size %d", n)
	}

	// The daily-sequence bucket is the factory's local calendar date
	// (spec.md §4.8), so truncate in date's own location rather than UTC.
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO daily_sequences (order_kind, seq_date, next_value)
		VALUES ($1, $2, 1)
		ON CONFLICT (order_kind, seq_date) DO NOTHING
	`, string(kind), day); err != nil {
		return 0, fmt.Errorf("failed to seed daily sequence: %w", err)
	}

	var first int
	err = tx.QueryRowContext(ctx, `
		UPDATE daily_sequences
		SET next_value = next_value + $3
		WHERE order_kind = $1 AND seq_date = $2
		RETURNING next_value - $3
	`, string(kind), day, n).Scan(&first)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate sequence: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit sequence allocation: %w", err)
	}
	return first, nil
}
