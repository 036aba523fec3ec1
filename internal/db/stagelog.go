package db

import (
	"context"
	"fmt"
)

// AppendStageLog inserts one structured stage-log entry. Stage logs are
// append-only: there is no update or delete path, mirroring an audit trail.
func (q *Queries) AppendStageLog(ctx context.Context, params CreateStageLogParams) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO stage_logs (task_id, stage, step, level, message, data, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, params.TaskID, params.Stage, params.Step, params.Level, params.Message, params.Data, params.DurationMs)
	return err
}

// ListStageLogs returns a task's stage-log stream, oldest first, for the
// GetTask logs endpoint.
func (q *Queries) ListStageLogs(ctx context.Context, taskID string, limit, offset int) ([]StageLogEntry, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, task_id, stage, step, level, message, data, duration_ms, at
		FROM stage_logs
		WHERE task_id = $1
		ORDER BY at ASC
		LIMIT $2 OFFSET $3
	`, taskID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list stage logs: %w", err)
	}
	defer rows.Close()

	var out []StageLogEntry
	for rows.Next() {
		var e StageLogEntry
		if err := rows.Scan(&e.ID, &e.TaskID, &e.Stage, &e.Step, &e.Level, &e.Message, &e.Data, &e.DurationMs, &e.At); err != nil {
			return nil, fmt.Errorf("failed to scan stage log: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
