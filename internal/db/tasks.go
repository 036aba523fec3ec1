package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/veritas-mfg/tobacco-aps/internal/planmodel"
)

// taskRow is the wire shape of scheduling_tasks, mirroring the nullable
// lifecycle columns the teacher's refresh_jobs table used for progress
// tracking.
type taskRow struct {
	TaskID       string
	BatchID      string
	Status       string
	CurrentStage sql.NullString
	Progress     int
	Flags        json.RawMessage
	StartedAt    sql.NullTime
	CompletedAt  sql.NullTime
	ErrorMessage sql.NullString
	ResultJSON   sql.NullString
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (r taskRow) toTask() (*planmodel.SchedulingTask, error) {
	t := &planmodel.SchedulingTask{
		TaskID:       r.TaskID,
		BatchID:      r.BatchID,
		Status:       planmodel.TaskStatus(r.Status),
		CurrentStage: r.CurrentStage.String,
		Progress:     r.Progress,
		ErrorMessage: r.ErrorMessage.String,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if err := json.Unmarshal(r.Flags, &t.Flags); err != nil {
		return nil, fmt.Errorf("failed to decode task flags: %w", err)
	}
	if r.StartedAt.Valid {
		t.StartTime = &r.StartedAt.Time
	}
	if r.CompletedAt.Valid {
		t.EndTime = &r.CompletedAt.Time
	}
	if r.ResultJSON.Valid && r.ResultJSON.String != "" {
		var summary planmodel.ResultSummary
		if err := json.Unmarshal([]byte(r.ResultJSON.String), &summary); err != nil {
			return nil, fmt.Errorf("failed to decode result summary: %w", err)
		}
		t.ResultSummary = &summary
	}
	return t, nil
}

const taskColumns = `
	task_id, batch_id, status, current_stage, progress, flags,
	started_at, completed_at, error_message, result_summary,
	created_at, updated_at
`

func scanTaskRow(scan func(dest ...interface{}) error) (*planmodel.SchedulingTask, error) {
	var r taskRow
	if err := scan(&r.TaskID, &r.BatchID, &r.Status, &r.CurrentStage, &r.Progress, &r.Flags,
		&r.StartedAt, &r.CompletedAt, &r.ErrorMessage, &r.ResultJSON,
		&r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return r.toTask()
}

// CreateSchedulingTask inserts a new task in PENDING state.
func (q *Queries) CreateSchedulingTask(ctx context.Context, taskID, batchID string, flags planmodel.SchedulingFlags) error {
	flagsJSON, err := json.Marshal(flags)
	if err != nil {
		return fmt.Errorf("failed to encode flags: %w", err)
	}
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO scheduling_tasks (task_id, batch_id, status, current_stage, progress, flags)
		VALUES ($1, $2, 'PENDING', 'load', 0, $3)
	`, taskID, batchID, flagsJSON)
	return err
}

// StartSchedulingTask marks a task RUNNING and stamps startTime.
func (q *Queries) StartSchedulingTask(ctx context.Context, taskID string) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE scheduling_tasks
		SET status = 'RUNNING', started_at = NOW(), updated_at = NOW()
		WHERE task_id = $1
	`, taskID)
	return err
}

// UpdateTaskProgress advances currentStage/progress for a running task.
func (q *Queries) UpdateTaskProgress(ctx context.Context, taskID, stage string, progress int) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE scheduling_tasks
		SET current_stage = $1, progress = $2, updated_at = NOW()
		WHERE task_id = $3
	`, stage, progress, taskID)
	return err
}

// CompleteSchedulingTask marks a task COMPLETED with its result summary.
func (q *Queries) CompleteSchedulingTask(ctx context.Context, taskID string, summary planmodel.ResultSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode result summary: %w", err)
	}
	_, err = q.db.ExecContext(ctx, `
		UPDATE scheduling_tasks
		SET status = 'COMPLETED', progress = 100, completed_at = NOW(),
		    result_summary = $2, updated_at = NOW()
		WHERE task_id = $1
	`, taskID, summaryJSON)
	return err
}

// FailSchedulingTask marks a task FAILED with an error message.
func (q *Queries) FailSchedulingTask(ctx context.Context, taskID, errMsg string) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE scheduling_tasks
		SET status = 'FAILED', error_message = $2, completed_at = NOW(), updated_at = NOW()
		WHERE task_id = $1
	`, taskID, errMsg)
	return err
}

// CancelSchedulingTask marks a task CANCELLED, only if it is still
// PENDING or RUNNING.
func (q *Queries) CancelSchedulingTask(ctx context.Context, taskID, reason string) error {
	result, err := q.db.ExecContext(ctx, `
		UPDATE scheduling_tasks
		SET status = 'CANCELLED', error_message = $2, completed_at = NOW(), updated_at = NOW()
		WHERE task_id = $1 AND status IN ('PENDING', 'RUNNING')
	`, taskID, reason)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("task not found or not cancellable: %s", taskID)
	}
	return nil
}

// GetSchedulingTask fetches one task by id.
func (q *Queries) GetSchedulingTask(ctx context.Context, taskID string) (*planmodel.SchedulingTask, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM scheduling_tasks WHERE task_id = $1`, taskID)
	task, err := scanTaskRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task not found: %s", taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// GetActiveTaskForBatch returns the non-terminal task for a batch, if any —
// used to enforce "only one non-terminal task per batchId".
func (q *Queries) GetActiveTaskForBatch(ctx context.Context, batchID string) (*planmodel.SchedulingTask, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+taskColumns+` FROM scheduling_tasks
		WHERE batch_id = $1 AND status IN ('PENDING', 'RUNNING')
		ORDER BY created_at DESC LIMIT 1
	`, batchID)
	task, err := scanTaskRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active task: %w", err)
	}
	return task, nil
}

// GetCompletedTaskForFlags returns the COMPLETED task for (batchId, flags),
// if any, backing Orchestrator idempotency.
func (q *Queries) GetCompletedTaskForFlags(ctx context.Context, batchID string, flags planmodel.SchedulingFlags) (*planmodel.SchedulingTask, error) {
	flagsJSON, err := json.Marshal(flags)
	if err != nil {
		return nil, fmt.Errorf("failed to encode flags: %w", err)
	}
	row := q.db.QueryRowContext(ctx, `
		SELECT `+taskColumns+` FROM scheduling_tasks
		WHERE batch_id = $1 AND status = 'COMPLETED' AND flags = $2::jsonb
		ORDER BY created_at DESC LIMIT 1
	`, batchID, flagsJSON)
	task, err := scanTaskRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get completed task: %w", err)
	}
	return task, nil
}

// ListTasksFilter narrows ListSchedulingTasks.
type ListTasksFilter struct {
	BatchID string
	Status  string
	Limit   int
}

// ListSchedulingTasks returns tasks matching filter, most recent first.
func (q *Queries) ListSchedulingTasks(ctx context.Context, filter ListTasksFilter) ([]planmodel.SchedulingTask, error) {
	query := `SELECT ` + taskColumns + ` FROM scheduling_tasks WHERE 1=1`
	var args []interface{}
	argNum := 1

	if filter.BatchID != "" {
		query += fmt.Sprintf(" AND batch_id = $%d", argNum)
		args = append(args, filter.BatchID)
		argNum++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, filter.Status)
		argNum++
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, filter.Limit)
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var out []planmodel.SchedulingTask
	for rows.Next() {
		task, err := scanTaskRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		out = append(out, *task)
	}
	return out, rows.Err()
}
