package db

import (
	"context"
	"fmt"

	"github.com/veritas-mfg/tobacco-aps/internal/planmodel"
)

// InsertPackerOrders bulk-inserts HJB orders inside a caller-managed
// transaction, grounded on the prepared-statement batch-insert shape used
// for manufacturing-order upserts. PlanID is unique; a retry after a
// PERSISTENCE_FAILED is expected to reuse freshly allocated sequence
// numbers, never the same planId twice.
func InsertPackerOrders(ctx context.Context, tx Execer, orders []planmodel.PackerOrder) error {
	if len(orders) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO packer_orders (
			plan_id, production_line, material_code, quantity,
			plan_start, plan_end, sequence, plan_date, shift,
			input_plan_id, input_batch_code, task_id, status
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare packer order insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range orders {
		if _, err := stmt.ExecContext(ctx,
			o.PlanID, o.ProductionLine, o.MaterialCode, o.Quantity,
			o.PlanStart, o.PlanEnd, o.Sequence, o.PlanDate, o.Shift,
			o.InputPlanID, o.InputBatchCode, o.TaskID, string(o.Status),
		); err != nil {
			return fmt.Errorf("failed to insert packer order %s: %w", o.PlanID, err)
		}
	}
	return nil
}

// InsertFeederOrders bulk-inserts HWS orders inside a caller-managed
// transaction.
func InsertFeederOrders(ctx context.Context, tx Execer, orders []planmodel.FeederOrder) error {
	if len(orders) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO feeder_orders (
			plan_id, production_line, material_code,
			plan_start, plan_end, sequence, plan_date, shift,
			task_id, safety_stock, is_last_one
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare feeder order insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range orders {
		if _, err := stmt.ExecContext(ctx,
			o.PlanID, o.ProductionLine, o.MaterialCode,
			o.PlanStart, o.PlanEnd, o.Sequence, o.PlanDate, o.Shift,
			o.TaskID, o.SafetyStock, o.IsLastOne,
		); err != nil {
			return fmt.Errorf("failed to insert feeder order %s: %w", o.PlanID, err)
		}
	}
	return nil
}

// PersistWorkOrders inserts both order slices inside a single transaction —
// the atomic "write" half of the allocate+write step the Work-Order Writer
// retries as a unit.
func (q *Queries) PersistWorkOrders(ctx context.Context, packerOrders []planmodel.PackerOrder, feederOrders []planmodel.FeederOrder) error {
	tx, err := q.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := InsertPackerOrders(ctx, tx, packerOrders); err != nil {
		return err
	}
	if err := InsertFeederOrders(ctx, tx, feederOrders); err != nil {
		return err
	}
	return tx.Commit()
}

// ListPackerOrdersForTask returns every HJB order written under taskID.
func (q *Queries) ListPackerOrdersForTask(ctx context.Context, taskID string) ([]planmodel.PackerOrder, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT plan_id, production_line, material_code, quantity,
		       plan_start, plan_end, sequence, plan_date, shift,
		       input_plan_id, input_batch_code, task_id, status
		FROM packer_orders WHERE task_id = $1
		ORDER BY plan_start ASC, plan_id ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list packer orders: %w", err)
	}
	defer rows.Close()

	var out []planmodel.PackerOrder
	for rows.Next() {
		var o planmodel.PackerOrder
		var status string
		if err := rows.Scan(&o.PlanID, &o.ProductionLine, &o.MaterialCode, &o.Quantity,
			&o.PlanStart, &o.PlanEnd, &o.Sequence, &o.PlanDate, &o.Shift,
			&o.InputPlanID, &o.InputBatchCode, &o.TaskID, &status); err != nil {
			return nil, fmt.Errorf("failed to scan packer order: %w", err)
		}
		o.Status = planmodel.OrderStatus(status)
		out = append(out, o)
	}
	return out, rows.Err()
}

// ListFeederOrdersForTask returns every HWS order written under taskID.
func (q *Queries) ListFeederOrdersForTask(ctx context.Context, taskID string) ([]planmodel.FeederOrder, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT plan_id, production_line, material_code,
		       plan_start, plan_end, sequence, plan_date, shift,
		       task_id, safety_stock, is_last_one
		FROM feeder_orders WHERE task_id = $1
		ORDER BY plan_start ASC, plan_id ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list feeder orders: %w", err)
	}
	defer rows.Close()

	var out []planmodel.FeederOrder
	for rows.Next() {
		var o planmodel.FeederOrder
		if err := rows.Scan(&o.PlanID, &o.ProductionLine, &o.MaterialCode,
			&o.PlanStart, &o.PlanEnd, &o.Sequence, &o.PlanDate, &o.Shift,
			&o.TaskID, &o.SafetyStock, &o.IsLastOne); err != nil {
			return nil, fmt.Errorf("failed to scan feeder order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
