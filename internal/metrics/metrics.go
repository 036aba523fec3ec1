// Package metrics registers the scheduling pipeline's Prometheus
// collectors (H6). Collectors are package-level so every component that
// wants to observe a stage outcome imports this package directly instead of
// having collectors passed in.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TasksStarted counts StartTask calls by outcome ("dispatched",
	// "idempotent_hit", "conflict").
	TasksStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aps_tasks_started_total",
		Help: "Number of scheduling task start requests by outcome.",
	}, []string{"outcome"})

	// TasksCompleted counts finished pipeline runs by terminal status.
	TasksCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aps_tasks_completed_total",
		Help: "Number of scheduling tasks that reached a terminal status.",
	}, []string{"status"})

	// StageDuration observes wall-clock time spent in each pipeline stage.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aps_stage_duration_seconds",
		Help:    "Time spent in each pipeline stage.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	// WorkOrdersWritten counts persisted work orders by kind ("packer",
	// "feeder").
	WorkOrdersWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aps_work_orders_written_total",
		Help: "Number of work orders persisted by the Work-Order Writer.",
	}, []string{"kind"})

	// ActiveTasks tracks the number of tasks currently RUNNING.
	ActiveTasks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "aps_active_tasks",
		Help: "Number of scheduling tasks currently running.",
	})
)
