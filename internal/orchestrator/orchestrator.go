package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/imdario/mergo"

	"github.com/veritas-mfg/tobacco-aps/internal/db"
	"github.com/veritas-mfg/tobacco-aps/internal/metrics"
	"github.com/veritas-mfg/tobacco-aps/internal/planmodel"
	"github.com/veritas-mfg/tobacco-aps/internal/queue"
)

// TaskStore is the slice of the Postgres layer the Orchestrator needs.
// Satisfied by *db.Queries.
type TaskStore interface {
	CreateSchedulingTask(ctx context.Context, taskID, batchID string, flags planmodel.SchedulingFlags) error
	GetSchedulingTask(ctx context.Context, taskID string) (*planmodel.SchedulingTask, error)
	GetActiveTaskForBatch(ctx context.Context, batchID string) (*planmodel.SchedulingTask, error)
	GetCompletedTaskForFlags(ctx context.Context, batchID string, flags planmodel.SchedulingFlags) (*planmodel.SchedulingTask, error)
	CancelSchedulingTask(ctx context.Context, taskID, reason string) error
	ListSchedulingTasks(ctx context.Context, filter db.ListTasksFilter) ([]planmodel.SchedulingTask, error)
}

// Publisher is the narrow slice of queue.Manager the Orchestrator needs to
// dispatch work and broadcast cancellation.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Orchestrator implements StartTask/GetTask/CancelTask/ListTasks: the
// external operations of the Task Orchestrator (C9). It never runs the
// pipeline itself — that is orchestrator.Worker's job, dispatched over
// NATS exactly like the teacher dispatches bulk-operation jobs.
type Orchestrator struct {
	store TaskStore
	nats  Publisher
}

// New builds an Orchestrator.
func New(store TaskStore, nats Publisher) *Orchestrator {
	return &Orchestrator{store: store, nats: nats}
}

// StartTaskRequest is the inbound payload for StartTask.
type StartTaskRequest struct {
	BatchID     string                    `json:"batchId"`
	Flags       planmodel.SchedulingFlags `json:"flags"`
	ForceRerun  bool                      `json:"forceRerun"`
}

// taskStartMessage is what gets published to scheduling.task.start; a
// worker decodes this to know what to run.
type taskStartMessage struct {
	TaskID  string                    `json:"taskId"`
	BatchID string                    `json:"batchId"`
	Flags   planmodel.SchedulingFlags `json:"flags"`
}

// StartTask enforces the two invariants spec.md §4.9 requires: at most one
// non-terminal task per batchId, and idempotency by (batchId, flags) unless
// forceRerun is set.
func (o *Orchestrator) StartTask(ctx context.Context, req StartTaskRequest) (*planmodel.SchedulingTask, error) {
	flags := planmodel.DefaultSchedulingFlags()
	if err := mergo.Merge(&flags, req.Flags, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("failed to merge scheduling flags: %w", err)
	}

	if !req.ForceRerun {
		if existing, err := o.store.GetCompletedTaskForFlags(ctx, req.BatchID, flags); err != nil {
			return nil, fmt.Errorf("failed to check idempotency: %w", err)
		} else if existing != nil {
			metrics.TasksStarted.WithLabelValues("idempotent_hit").Inc()
			return existing, nil
		}
	}

	if active, err := o.store.GetActiveTaskForBatch(ctx, req.BatchID); err != nil {
		return nil, fmt.Errorf("failed to check active task: %w", err)
	} else if active != nil {
		metrics.TasksStarted.WithLabelValues("conflict").Inc()
		return nil, &TaskError{Kind: KindTaskAlreadyRunning, TaskID: active.TaskID, BatchID: req.BatchID,
			Detail: fmt.Sprintf("task %s is already %s for this batch", active.TaskID, active.Status)}
	}

	taskID := uuid.NewString()
	if err := o.store.CreateSchedulingTask(ctx, taskID, req.BatchID, flags); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	payload, err := json.Marshal(taskStartMessage{TaskID: taskID, BatchID: req.BatchID, Flags: flags})
	if err != nil {
		return nil, fmt.Errorf("failed to encode task start message: %w", err)
	}
	if err := o.nats.Publish(queue.SubjectTaskStart, payload); err != nil {
		return nil, fmt.Errorf("failed to dispatch task: %w", err)
	}
	metrics.TasksStarted.WithLabelValues("dispatched").Inc()

	return o.store.GetSchedulingTask(ctx, taskID)
}

// GetTask fetches one task by id.
func (o *Orchestrator) GetTask(ctx context.Context, taskID string) (*planmodel.SchedulingTask, error) {
	return o.store.GetSchedulingTask(ctx, taskID)
}

// CancelTask marks the task CANCELLED and broadcasts the cancellation so
// whichever worker owns it stops at the next stage boundary.
func (o *Orchestrator) CancelTask(ctx context.Context, taskID, reason string) error {
	if err := o.store.CancelSchedulingTask(ctx, taskID, reason); err != nil {
		return err
	}
	return o.nats.Publish(queue.GetTaskCancelSubject(taskID), []byte(reason))
}

// ListTasks returns tasks matching filter, most recent first.
func (o *Orchestrator) ListTasks(ctx context.Context, filter db.ListTasksFilter) ([]planmodel.SchedulingTask, error) {
	return o.store.ListSchedulingTasks(ctx, filter)
}
