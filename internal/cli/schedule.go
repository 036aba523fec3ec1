package cli

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/veritas-mfg/tobacco-aps/internal/cliformat"
	"github.com/veritas-mfg/tobacco-aps/internal/config"
	"github.com/veritas-mfg/tobacco-aps/internal/db"
	"github.com/veritas-mfg/tobacco-aps/internal/orchestrator"
	"github.com/veritas-mfg/tobacco-aps/internal/planmodel"
	"github.com/veritas-mfg/tobacco-aps/internal/queue"
)

// NewScheduleCommand groups the operator-facing task-lifecycle
// subcommands: run, status, cancel, list. Each opens its own short-lived
// database and NATS connection rather than requiring a running `serve`
// process to be reachable over HTTP — an operator can dispatch or inspect
// a task from a bare database/NATS endpoint.
func NewScheduleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Start, inspect, cancel, and list scheduling tasks",
	}

	cmd.AddCommand(newScheduleRunCommand())
	cmd.AddCommand(newScheduleStatusCommand())
	cmd.AddCommand(newScheduleCancelCommand())
	cmd.AddCommand(newScheduleListCommand())

	return cmd
}

func withOrchestrator(fn func(ctx context.Context, orch *orchestrator.Orchestrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	database, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	natsManager, err := queue.NewManager(cfg.NATSURL)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer natsManager.Close()

	queries := db.New(database)
	orch := orchestrator.New(queries, natsManager)

	return fn(context.Background(), orch)
}

func newScheduleRunCommand() *cobra.Command {
	var batchID string
	var forceRerun bool
	var mergeEnabled, splitEnabled, correctionEnabled, parallelEnabled bool
	var minGapMinutes, horizonDays int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a scheduling run for a batch",
		RunE: func(cmd *cobra.Command, args []string) error {
			if batchID == "" {
				return fmt.Errorf("--batch-id is required")
			}
			return withOrchestrator(func(ctx context.Context, orch *orchestrator.Orchestrator) error {
				task, err := orch.StartTask(ctx, orchestrator.StartTaskRequest{
					BatchID:    batchID,
					ForceRerun: forceRerun,
					Flags: planmodel.SchedulingFlags{
						MergeEnabled:      mergeEnabled,
						SplitEnabled:      splitEnabled,
						CorrectionEnabled: correctionEnabled,
						ParallelEnabled:   parallelEnabled,
						MinGapMinutes:     minGapMinutes,
						HorizonDays:       horizonDays,
					},
				})
				if err != nil {
					return err
				}
				cmd.Println(cliformat.StatusLine(*task))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&batchID, "batch-id", "", "decade-plan batch id to schedule")
	cmd.Flags().BoolVar(&forceRerun, "force-rerun", false, "rerun even if a completed task already matches these flags")
	cmd.Flags().BoolVar(&mergeEnabled, "merge", true, "enable the Merge stage")
	cmd.Flags().BoolVar(&splitEnabled, "split", true, "enable the Split stage")
	cmd.Flags().BoolVar(&correctionEnabled, "correct", true, "enable the Time-Correction stage")
	cmd.Flags().BoolVar(&parallelEnabled, "sync", true, "enable the Parallel-Sync stage")
	cmd.Flags().IntVar(&minGapMinutes, "min-gap-minutes", 15, "minimum gap enforced between consecutive orders on the same machine")
	cmd.Flags().IntVar(&horizonDays, "horizon-days", 60, "calendar horizon in days")

	return cmd
}

func newScheduleStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <taskId>",
		Short: "Show one scheduling task's status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID := args[0]
			return withOrchestrator(func(ctx context.Context, orch *orchestrator.Orchestrator) error {
				task, err := orch.GetTask(ctx, taskID)
				if err != nil {
					return err
				}
				cmd.Println(cliformat.StatusLine(*task))
				return nil
			})
		},
	}
}

func newScheduleCancelCommand() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "cancel <taskId>",
		Short: "Cancel a non-terminal scheduling task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID := args[0]
			if reason == "" {
				reason = "cancelled via CLI"
			}
			return withOrchestrator(func(ctx context.Context, orch *orchestrator.Orchestrator) error {
				if err := orch.CancelTask(ctx, taskID, reason); err != nil {
					return err
				}
				cmd.Printf("task %s cancelled\n", taskID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "cancellation reason recorded on the task")
	return cmd
}

func newScheduleListCommand() *cobra.Command {
	var batchID, status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List scheduling tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOrchestrator(func(ctx context.Context, orch *orchestrator.Orchestrator) error {
				tasks, err := orch.ListTasks(ctx, db.ListTasksFilter{BatchID: batchID, Status: status, Limit: limit})
				if err != nil {
					return err
				}
				for _, t := range tasks {
					cmd.Println(cliformat.StatusLine(t))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&batchID, "batch-id", "", "filter by batch id")
	cmd.Flags().StringVar(&status, "status", "", "filter by status (PENDING, RUNNING, COMPLETED, FAILED, CANCELLED)")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of tasks to return")

	return cmd
}
