// Package scheduler runs the auto-import cron (H7): on a fixed interval it
// looks for decade-plan batches that have no COMPLETED, RUNNING or PENDING
// scheduling task (never scheduled, or every earlier task FAILED or was
// CANCELLED), and starts one for each. It never runs the pipeline itself —
// every batch it finds is handed to orchestrator.Orchestrator.StartTask,
// the same entry point the HTTP API uses.
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/samber/lo"

	"github.com/veritas-mfg/tobacco-aps/internal/orchestrator"
	"github.com/veritas-mfg/tobacco-aps/internal/planmodel"
)

// BatchLister is the slice of the Postgres layer the scheduler needs.
// Satisfied by *db.Queries.
type BatchLister interface {
	ListBatchesWithoutCompletedTask(ctx context.Context) ([]string, error)
}

// TaskStarter is the slice of the Orchestrator the scheduler needs.
// Satisfied by *orchestrator.Orchestrator.
type TaskStarter interface {
	StartTask(ctx context.Context, req orchestrator.StartTaskRequest) (*planmodel.SchedulingTask, error)
}

// AutoImporter is the cron-driven auto-import job.
type AutoImporter struct {
	db    BatchLister
	orch  TaskStarter
	flags planmodel.SchedulingFlags
	cron  *cron.Cron
}

// New builds an AutoImporter. flags is applied to every task it starts;
// pass planmodel.DefaultSchedulingFlags() (or the config-resolved
// equivalent) unless the deployment wants a non-default pipeline
// configuration for auto-imported batches.
func New(database BatchLister, orch TaskStarter, flags planmodel.SchedulingFlags) *AutoImporter {
	return &AutoImporter{db: database, orch: orch, flags: flags, cron: cron.New()}
}

// Start schedules the auto-import job at the given cron expression
// (e.g. "*/10 * * * *" for every ten minutes) and begins running it in the
// background. Call Stop to shut it down cleanly.
func (a *AutoImporter) Start(expr string) error {
	_, err := a.cron.AddFunc(expr, a.runOnce)
	if err != nil {
		return err
	}
	a.cron.Start()
	return nil
}

// Stop halts the cron scheduler, waiting for any in-flight run to finish.
func (a *AutoImporter) Stop() {
	ctx := a.cron.Stop()
	<-ctx.Done()
}

// runOnce lists unprocessed batches and starts a task for each. StartTask's
// own idempotency and one-active-task-per-batch checks make this safe to
// call even if a previous run is still in flight for some batch — it is
// filtered out by ListBatchesWithoutCompletedTask in the first place, but
// a race between the listing and the dispatch is harmless: StartTask
// either no-ops or returns a conflict, and neither is fatal to the run.
func (a *AutoImporter) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	batchIDs, err := a.db.ListBatchesWithoutCompletedTask(ctx)
	if err != nil {
		log.Printf("auto-import: failed to list unprocessed batches: %v", err)
		return
	}
	if len(batchIDs) == 0 {
		return
	}

	started := lo.FilterMap(batchIDs, func(batchID string, _ int) (string, bool) {
		_, err := a.orch.StartTask(ctx, orchestrator.StartTaskRequest{BatchID: batchID, Flags: a.flags})
		if err != nil {
			log.Printf("auto-import: failed to start task for batch %s: %v", batchID, err)
			return "", false
		}
		return batchID, true
	})

	log.Printf("auto-import: started %d of %d unprocessed batches", len(started), len(batchIDs))
}
