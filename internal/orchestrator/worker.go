package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/veritas-mfg/tobacco-aps/internal/calendar"
	"github.com/veritas-mfg/tobacco-aps/internal/db"
	"github.com/veritas-mfg/tobacco-aps/internal/metrics"
	"github.com/veritas-mfg/tobacco-aps/internal/pipeline"
	"github.com/veritas-mfg/tobacco-aps/internal/planmodel"
	"github.com/veritas-mfg/tobacco-aps/internal/queue"
	"github.com/veritas-mfg/tobacco-aps/internal/refstore"
	"github.com/veritas-mfg/tobacco-aps/internal/workorder"
)

// defaultTaskTimeout is used when NewWorker is constructed without an
// explicit timeout (e.g. in tests).
const defaultTaskTimeout = 600 * time.Second

// Worker is the queue-group subscriber that actually runs the pipeline for
// a dispatched task, modeled on the teacher's BulkOperationWorker: one
// cancellable context per in-flight task, tracked in a mutex-guarded map
// so a broadcast cancellation reaches whichever worker owns it.
type Worker struct {
	nats        *queue.Manager
	db          *db.Queries
	logger      *StageLogger
	progress    *progressPublisher
	taskTimeout time.Duration

	cancelFuncs   map[string]context.CancelFunc
	cancelFuncsMu sync.RWMutex
}

// NewWorker builds a Worker. taskTimeout bounds one task run (spec.md §5);
// zero falls back to defaultTaskTimeout.
func NewWorker(nats *queue.Manager, database *db.Queries, logger *StageLogger, taskTimeout time.Duration) *Worker {
	if taskTimeout <= 0 {
		taskTimeout = defaultTaskTimeout
	}
	return &Worker{
		nats:        nats,
		db:          database,
		logger:      logger,
		progress:    newProgressPublisher(nats),
		taskTimeout: taskTimeout,
		cancelFuncs: make(map[string]context.CancelFunc),
	}
}

// Start subscribes to the task-start queue group and the task-cancel
// broadcast.
func (w *Worker) Start() error {
	if _, err := w.nats.QueueSubscribe(queue.SubjectTaskStart, queue.QueueGroupSchedulingWorkers, w.handleTaskStart); err != nil {
		return err
	}
	if _, err := w.nats.Subscribe(queue.SubjectTaskCancelWildcard, w.handleCancellation); err != nil {
		return err
	}
	return nil
}

func (w *Worker) handleTaskStart(msg *nats.Msg) {
	var m taskStartMessage
	if err := json.Unmarshal(msg.Data, &m); err != nil {
		log.Printf("failed to decode task start message: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.taskTimeout)
	defer cancel()
	w.registerCancel(m.TaskID, cancel)
	defer w.unregisterCancel(m.TaskID)
	defer w.progress.forget(m.TaskID)

	w.run(ctx, m.TaskID, m.BatchID, m.Flags)
}

func (w *Worker) handleCancellation(msg *nats.Msg) {
	taskID := strings.TrimPrefix(msg.Subject, "scheduling.task.cancel.")
	w.cancelFuncsMu.RLock()
	cancel, ok := w.cancelFuncs[taskID]
	w.cancelFuncsMu.RUnlock()
	if ok {
		cancel()
	}
}

func (w *Worker) registerCancel(taskID string, cancel context.CancelFunc) {
	w.cancelFuncsMu.Lock()
	defer w.cancelFuncsMu.Unlock()
	w.cancelFuncs[taskID] = cancel
}

func (w *Worker) unregisterCancel(taskID string) {
	w.cancelFuncsMu.Lock()
	defer w.cancelFuncsMu.Unlock()
	delete(w.cancelFuncs, taskID)
}

var stageWeight = func() map[string]int {
	m := make(map[string]int, len(planmodel.StageWeights))
	for _, sw := range planmodel.StageWeights {
		m[sw.Stage] = sw.Weight
	}
	return m
}()

// run executes the four-stage pipeline plus load/write for one task,
// reporting cumulative progress at each stage boundary and honoring
// cooperative cancellation between stages.
func (w *Worker) run(ctx context.Context, taskID, batchID string, flags planmodel.SchedulingFlags) {
	if err := w.db.StartSchedulingTask(ctx, taskID); err != nil {
		log.Printf("task %s: failed to mark running: %v", taskID, err)
		return
	}
	metrics.ActiveTasks.Inc()
	defer metrics.ActiveTasks.Dec()

	cumulative := 0
	stageStart := time.Now()
	advance := func(stage string) {
		elapsed := time.Since(stageStart)
		metrics.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
		stageStart = time.Now()
		cumulative += stageWeight[stage]
		if err := w.db.UpdateTaskProgress(context.Background(), taskID, stage, cumulative); err != nil {
			log.Printf("task %s: failed to update progress: %v", taskID, err)
		}
		w.progress.publish(taskID, stage, cumulative, cumulative >= 100)
		w.logger.Log(context.Background(), taskID, stage, "", "info", "stage completed", map[string]interface{}{
			"progress": cumulative,
		}, elapsed)
	}

	rows, err := w.db.LoadBatch(ctx, batchID)
	if err != nil {
		w.fail(taskID, batchID, "load", err)
		return
	}
	snap, err := refstore.Load(ctx, w.db, time.Now())
	if err != nil {
		w.fail(taskID, batchID, "load", err)
		return
	}
	cal := calendar.New(snap, flags.HorizonDays)
	advance("load")

	if w.cancelledMidRun(ctx, taskID, batchID, "load") {
		return
	}

	merged, err := pipeline.Merge(rows, flags.MergeEnabled)
	if err != nil {
		w.fail(taskID, batchID, "merge", err)
		return
	}
	advance("merge")
	if w.cancelledMidRun(ctx, taskID, batchID, "merge") {
		return
	}

	split, err := pipeline.Split(merged, flags.SplitEnabled)
	if err != nil {
		w.fail(taskID, batchID, "split", err)
		return
	}
	advance("split")
	if w.cancelledMidRun(ctx, taskID, batchID, "split") {
		return
	}

	minGap := time.Duration(flags.MinGapMinutes) * time.Minute
	corrected, err := pipeline.Correct(split, snap, cal, flags.CorrectionEnabled, minGap)
	if err != nil {
		w.fail(taskID, batchID, "correct", err)
		return
	}
	advance("correct")
	if w.cancelledMidRun(ctx, taskID, batchID, "correct") {
		return
	}

	synced, err := pipeline.Synchronize(corrected, flags.ParallelEnabled, minGap)
	if err != nil {
		w.fail(taskID, batchID, "sync", err)
		return
	}
	advance("sync")
	if w.cancelledMidRun(ctx, taskID, batchID, "sync") {
		return
	}

	summary, err := workorder.WriteOrders(ctx, w.db, w.db, snap, taskID, synced)
	if err != nil {
		w.fail(taskID, batchID, "write", err)
		return
	}
	advance("write")

	if err := w.db.CompleteSchedulingTask(context.Background(), taskID, *summary); err != nil {
		log.Printf("task %s: failed to mark completed: %v", taskID, err)
		return
	}
	metrics.TasksCompleted.WithLabelValues("COMPLETED").Inc()
	metrics.WorkOrdersWritten.WithLabelValues("packer").Add(float64(summary.PackingOrders))
	metrics.WorkOrdersWritten.WithLabelValues("feeder").Add(float64(summary.FeedingOrders))
	w.logger.Log(context.Background(), taskID, "write", "", "info", "task completed", map[string]interface{}{
		"totalWorkOrders": summary.TotalWorkOrders,
	}, 0)
}

// cancelledMidRun reports whether ctx was cancelled, cleaning up partial
// output and logging if so. An external CancelTask call already set the
// CANCELLED status in the database before publishing the broadcast, so
// that case only tears down what the pipeline had written so far. A
// deadline exceeded by the task's own timeout (spec.md §5) has no such
// prior status update, so it is treated as an internal failure with
// errorMessage "TIMEOUT".
func (w *Worker) cancelledMidRun(ctx context.Context, taskID, batchID, stage string) bool {
	if ctx.Err() == nil {
		return false
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		w.fail(taskID, batchID, stage, errors.New("TIMEOUT"))
		return true
	}
	cleanup := context.Background()
	if err := w.db.DeleteOrdersForTask(cleanup, taskID); err != nil {
		log.Printf("task %s: failed to clean up after cancellation: %v", taskID, err)
	}
	metrics.TasksCompleted.WithLabelValues("CANCELLED").Inc()
	w.logger.Log(cleanup, taskID, stage, "", "warn", "task cancelled", nil, 0)
	return true
}

// fail records a stage failure: partial outputs for taskID are deleted
// (DailySequence values already allocated are not reclaimed — gaps are
// acceptable, reuse is forbidden), the task is marked FAILED, and the
// failure is logged.
func (w *Worker) fail(taskID, batchID, stage string, err error) {
	cleanup := context.Background()
	if delErr := w.db.DeleteOrdersForTask(cleanup, taskID); delErr != nil {
		log.Printf("task %s: failed to clean up partial output: %v", taskID, delErr)
	}
	if setErr := w.db.FailSchedulingTask(cleanup, taskID, err.Error()); setErr != nil {
		log.Printf("task %s: failed to mark failed: %v", taskID, setErr)
	}
	metrics.TasksCompleted.WithLabelValues("FAILED").Inc()
	w.logger.Log(cleanup, taskID, stage, "", "error", err.Error(), map[string]interface{}{"batchId": batchID}, 0)
	w.progress.forget(taskID)
}
