package db

import (
	"context"
	"fmt"

	"github.com/veritas-mfg/tobacco-aps/internal/planmodel"
	"github.com/lib/pq"
)

// LoadBatch returns the validated rows of a decade-plan import batch, in
// (plannedStart asc, row asc) order — the canonical input order of the
// pipeline. Only rows with validation_status VALID or WARNING are
// returned; ERROR rows were rejected upstream by ingestion.
func (q *Queries) LoadBatch(ctx context.Context, batchID string) ([]planmodel.DecadeRow, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, batch_id, work_order_nr, article_nr, package_type, spec,
		       qty_total, qty_final, feeder_codes, maker_codes,
		       planned_start, planned_end, row_num
		FROM decade_rows
		WHERE batch_id = $1 AND validation_status IN ('VALID', 'WARNING')
		ORDER BY planned_start ASC, row_num ASC
	`, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load batch %s: %w", batchID, err)
	}
	defer rows.Close()

	var out []planmodel.DecadeRow
	for rows.Next() {
		var r planmodel.DecadeRow
		var feeders, makers pq.StringArray
		if err := rows.Scan(&r.ID, &r.BatchID, &r.WorkOrderNr, &r.ArticleNr, &r.PackageType, &r.Spec,
			&r.QtyTotal, &r.QtyFinal, &feeders, &makers,
			&r.PlannedStart, &r.PlannedEnd, &r.Row); err != nil {
			return nil, fmt.Errorf("failed to scan decade row: %w", err)
		}
		r.FeederCodes = []string(feeders)
		r.MakerCodes = []string(makers)
		out = append(out, r)
	}
	return out, rows.Err()
}

// HasUnresolvedTask reports whether batchID already has a PENDING or
// RUNNING SchedulingTask.
func (q *Queries) HasUnresolvedTask(ctx context.Context, batchID string) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM scheduling_tasks
			WHERE batch_id = $1 AND status IN ('PENDING', 'RUNNING')
		)
	`, batchID).Scan(&exists)
	return exists, err
}

// ListBatchesWithoutCompletedTask returns batch ids present in decade_rows
// that have no COMPLETED, RUNNING or PENDING SchedulingTask.
func (q *Queries) ListBatchesWithoutCompletedTask(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT DISTINCT dr.batch_id
		FROM decade_rows dr
		WHERE NOT EXISTS (
			SELECT 1 FROM scheduling_tasks st
			WHERE st.batch_id = dr.batch_id AND st.status IN ('COMPLETED', 'RUNNING', 'PENDING')
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list unprocessed batches: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
