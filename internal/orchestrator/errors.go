// Package orchestrator owns SchedulingTask lifecycle: starting, tracking,
// cancelling, and dispatching pipeline runs over NATS, grounded on the
// teacher's BulkOperationWorker job/batch shape.
package orchestrator

import "fmt"

// Kind is the orchestrator-level error discriminator, parallel to
// pipeline.Kind but for task-lifecycle failures rather than stage
// failures.
type Kind string

const (
	KindTaskAlreadyRunning Kind = "TASK_ALREADY_RUNNING"
	KindCancelled          Kind = "CANCELLED"
	KindTimeout            Kind = "TIMEOUT"
	KindPersistenceFailed  Kind = "PERSISTENCE_FAILED"
)

// TaskError carries a Kind plus the batch/task ids involved.
type TaskError struct {
	Kind    Kind
	TaskID  string
	BatchID string
	Detail  string
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("%s: batch=%s task=%s: %s", e.Kind, e.BatchID, e.TaskID, e.Detail)
}
