package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/veritas-mfg/tobacco-aps/internal/planmodel"
)

// ListMachines returns every machine row.
func (q *Queries) ListMachines(ctx context.Context) ([]planmodel.Machine, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT code, kind, status FROM machines`)
	if err != nil {
		return nil, fmt.Errorf("failed to list machines: %w", err)
	}
	defer rows.Close()

	var out []planmodel.Machine
	for rows.Next() {
		var m planmodel.Machine
		if err := rows.Scan(&m.Code, &m.Kind, &m.Status); err != nil {
			return nil, fmt.Errorf("failed to scan machine: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListRelations returns every feeder/packer relation row.
func (q *Queries) ListRelations(ctx context.Context) ([]planmodel.Relation, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT feeder_code, maker_code, priority, effective_from, effective_to
		FROM relations
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list relations: %w", err)
	}
	defer rows.Close()

	var out []planmodel.Relation
	for rows.Next() {
		var r planmodel.Relation
		var from, to sql.NullTime
		if err := rows.Scan(&r.FeederCode, &r.MakerCode, &r.Priority, &from, &to); err != nil {
			return nil, fmt.Errorf("failed to scan relation: %w", err)
		}
		r.EffectiveFrom = from.Time
		r.EffectiveTo = to.Time
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListSpeeds returns every machine/article speed row, including wildcard
// rows ("*" machine or article).
func (q *Queries) ListSpeeds(ctx context.Context) ([]planmodel.Speed, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT machine_code, article_nr, boxes_per_hour, efficiency
		FROM speeds
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list speeds: %w", err)
	}
	defer rows.Close()

	var out []planmodel.Speed
	for rows.Next() {
		var s planmodel.Speed
		if err := rows.Scan(&s.MachineCode, &s.ArticleNr, &s.BoxesPerHour, &s.Efficiency); err != nil {
			return nil, fmt.Errorf("failed to scan speed: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListShiftWindows returns every shift window row.
func (q *Queries) ListShiftWindows(ctx context.Context) ([]planmodel.ShiftWindow, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT shift_name, machine_scope, start_of_day_minutes, end_of_day_minutes,
		       may_overtime, max_overtime_minutes, effective_from, effective_to
		FROM shift_windows
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list shift windows: %w", err)
	}
	defer rows.Close()

	var out []planmodel.ShiftWindow
	for rows.Next() {
		var w planmodel.ShiftWindow
		var startMin, endMin, maxOT int
		var from, to sql.NullTime
		if err := rows.Scan(&w.ShiftName, &w.MachineScope, &startMin, &endMin,
			&w.MayOvertime, &maxOT, &from, &to); err != nil {
			return nil, fmt.Errorf("failed to scan shift window: %w", err)
		}
		w.StartOfDay = time.Duration(startMin) * time.Minute
		w.EndOfDay = time.Duration(endMin) * time.Minute
		w.MaxOvertime = time.Duration(maxOT) * time.Minute
		w.EffectiveFrom = from.Time
		w.EffectiveTo = to.Time
		out = append(out, w)
	}
	return out, rows.Err()
}

// ListMaintenanceWindows returns every maintenance window row.
func (q *Queries) ListMaintenanceWindows(ctx context.Context) ([]planmodel.MaintenanceWindow, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT machine_code, window_start, window_end, status
		FROM maintenance_windows
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list maintenance windows: %w", err)
	}
	defer rows.Close()

	var out []planmodel.MaintenanceWindow
	for rows.Next() {
		var w planmodel.MaintenanceWindow
		if err := rows.Scan(&w.MachineCode, &w.Start, &w.End, &w.Status); err != nil {
			return nil, fmt.Errorf("failed to scan maintenance window: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
