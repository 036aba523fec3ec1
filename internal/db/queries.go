package db

import (
	"context"
	"database/sql"
	"fmt"
)

// Queries provides access to all database operations. It is a thin wrapper
// around *sql.DB; every method is a narrow, single-purpose query so callers
// never hand-assemble SQL outside this package.
type Queries struct {
	db *sql.DB
}

// New creates a new Queries instance.
func New(db *sql.DB) *Queries {
	return &Queries{db: db}
}

// DB returns the underlying database connection.
func (q *Queries) DB() *sql.DB {
	return q.db
}

// DeleteOrdersForTask removes every PackerOrder and FeederOrder written
// under taskID. It is the Orchestrator's rollback path on FAILED/CANCELLED:
// scoped by task_id rather than a blanket TRUNCATE, since distinct tasks
// share the same tables.
func (q *Queries) DeleteOrdersForTask(ctx context.Context, taskID string) error {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM packer_orders WHERE task_id = $1`, taskID); err != nil {
		return fmt.Errorf("failed to delete packer orders: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM feeder_orders WHERE task_id = $1`, taskID); err != nil {
		return fmt.Errorf("failed to delete feeder orders: %w", err)
	}

	return tx.Commit()
}
