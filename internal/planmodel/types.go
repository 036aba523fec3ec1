// Package planmodel holds the tagged, field-named domain types shared by the
// scheduling pipeline. Nothing in this package performs I/O.
package planmodel

import "time"

// MachineKind distinguishes the two machine roles a code can play.
type MachineKind string

const (
	MachineKindPacker MachineKind = "PACKER"
	MachineKindFeeder MachineKind = "FEEDER"
)

// MaintenanceStatus mirrors the lifecycle of a scheduled maintenance window.
type MaintenanceStatus string

const (
	MaintenancePlanned    MaintenanceStatus = "PLANNED"
	MaintenanceConfirmed  MaintenanceStatus = "CONFIRMED"
	MaintenanceInProgress MaintenanceStatus = "IN_PROGRESS"
	MaintenanceCompleted  MaintenanceStatus = "COMPLETED"
	MaintenanceCancelled  MaintenanceStatus = "CANCELLED"
)

// Blocking reports whether a maintenance window in this status currently
// occupies the machine.
func (s MaintenanceStatus) Blocking() bool {
	switch s {
	case MaintenancePlanned, MaintenanceConfirmed, MaintenanceInProgress:
		return true
	default:
		return false
	}
}

// OrderStatus tracks a work order across its lifecycle on the shop floor.
type OrderStatus string

const (
	OrderPlanned     OrderStatus = "PLANNED"
	OrderDispatched  OrderStatus = "DISPATCHED"
	OrderInProgress  OrderStatus = "IN_PROGRESS"
	OrderCompleted   OrderStatus = "COMPLETED"
	OrderCancelled   OrderStatus = "CANCELLED"
)

// TaskStatus tracks a SchedulingTask across its lifecycle.
type TaskStatus string

const (
	TaskPending   TaskStatus = "PENDING"
	TaskRunning   TaskStatus = "RUNNING"
	TaskCompleted TaskStatus = "COMPLETED"
	TaskFailed    TaskStatus = "FAILED"
	TaskCancelled TaskStatus = "CANCELLED"
)

// OrderKind distinguishes the two work-order number pools.
type OrderKind string

const (
	OrderKindHJB OrderKind = "HJB"
	OrderKindHWS OrderKind = "HWS"
)

// DecadeRow is one row of an imported decade plan. Rows are immutable once
// loaded; the pipeline never mutates a DecadeRow in place.
type DecadeRow struct {
	ID           string
	BatchID      string
	WorkOrderNr  string
	ArticleNr    string
	PackageType  string
	Spec         string
	QtyTotal     float64
	QtyFinal     float64
	FeederCodes  []string // ordered, nonempty
	MakerCodes   []string // ordered, nonempty
	PlannedStart time.Time
	PlannedEnd   time.Time
	Row          int
}

// Machine is a globally unique, named production resource.
type Machine struct {
	Code   string
	Kind   MachineKind
	Status string
}

// Relation defines one edge of the feeder/packer topology.
type Relation struct {
	FeederCode    string
	MakerCode     string
	Priority      int
	EffectiveFrom time.Time
	EffectiveTo   time.Time
}

// Speed is one row of the machine/article speed table. ArticleNr and
// MachineCode may both be "*" to express a wildcard fallback tier.
type Speed struct {
	MachineCode   string
	ArticleNr     string
	BoxesPerHour  float64
	Efficiency    float64
}

// EffectiveRate is the realized throughput after efficiency derating.
func (s Speed) EffectiveRate() float64 {
	return s.BoxesPerHour * s.Efficiency
}

// ShiftWindow defines a recurring working interval inside a day.
// MachineScope "*" means the shift applies to every machine unless a
// machine-specific shift for the same day overrides it.
type ShiftWindow struct {
	ShiftName     string
	MachineScope  string
	StartOfDay    time.Duration // offset from local midnight
	EndOfDay      time.Duration
	MayOvertime   bool
	MaxOvertime   time.Duration
	EffectiveFrom time.Time
	EffectiveTo   time.Time
}

// MaintenanceWindow blocks a machine over a half-open interval while Status
// is one of the blocking states.
type MaintenanceWindow struct {
	MachineCode string
	Start       time.Time
	End         time.Time
	Status      MaintenanceStatus
}

// Interval is a half-open [Start, End) wall-clock interval.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two half-open intervals share any instant.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// LogicalOrder is the pipeline's internal working unit. It starts life with
// possibly many packers (pre-Splitter) and ends with exactly one.
type LogicalOrder struct {
	ID           string
	ArticleNr    string
	Qty          float64
	Packers      []string // sorted lexicographically; len==1 after Splitter
	Feeder       string
	TargetStart  time.Time
	TargetEnd    time.Time
	Provenance   []string // DecadeRow ids, input order
	SyncGroupID  string   // shared by siblings from one split parent
}

// Packer returns the single packer code after the Splitter has run. Before
// splitting it returns only the first of several packers, and it panics if
// Packers is empty — callers past the Splitter own the invariant.
func (o LogicalOrder) Packer() string {
	return o.Packers[0]
}

// PackerOrder is a persisted HJB work order.
type PackerOrder struct {
	PlanID        string
	ProductionLine string // packer code
	MaterialCode  string
	Quantity      float64
	PlanStart     time.Time
	PlanEnd       time.Time
	Sequence      int
	PlanDate      time.Time
	Shift         string
	InputPlanID   string // link to the covering FeederOrder
	InputBatchCode string
	TaskID        string
	Status        OrderStatus
}

// FeederOrder is a persisted HWS work order. ProductionLine is the
// comma-joined set of packer codes this feeder order serves.
type FeederOrder struct {
	PlanID        string
	ProductionLine string
	MaterialCode  string
	PlanStart     time.Time
	PlanEnd       time.Time
	Sequence      int
	PlanDate      time.Time
	Shift         string
	TaskID        string
	SafetyStock   float64 // reserved, unused by Split/Correction (spec open question)
	IsLastOne     bool
	SyncGroupID   string // internal only: links back to the LogicalOrder group this was built from
}

// SchedulingFlags toggles each pipeline stage and carries tunables. Zero
// values are filled in from DefaultSchedulingFlags via mergo before a task
// runs (see internal/orchestrator).
type SchedulingFlags struct {
	MergeEnabled      bool
	SplitEnabled      bool
	CorrectionEnabled bool
	ParallelEnabled   bool
	MinGapMinutes     int
	HorizonDays       int
}

// DefaultSchedulingFlags are merged under caller-supplied flags so a zero
// value in the request falls back to a sane default rather than disabling
// the stage outright.
func DefaultSchedulingFlags() SchedulingFlags {
	return SchedulingFlags{
		MergeEnabled:      true,
		SplitEnabled:      true,
		CorrectionEnabled: true,
		ParallelEnabled:   true,
		MinGapMinutes:     15,
		HorizonDays:       60,
	}
}

// ResultSummary is recorded on a completed SchedulingTask.
type ResultSummary struct {
	TotalWorkOrders int `json:"totalWorkOrders"`
	PackingOrders   int `json:"packingOrders"`
	FeedingOrders   int `json:"feedingOrders"`
}

// SchedulingTask tracks one run of the pipeline over one batch.
type SchedulingTask struct {
	TaskID        string
	BatchID       string
	Status        TaskStatus
	CurrentStage  string
	Progress      int
	Flags         SchedulingFlags
	StartTime     *time.Time
	EndTime       *time.Time
	ErrorMessage  string
	ResultSummary *ResultSummary
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DailySequence is the monotonic (kind, date) allocator record.
type DailySequence struct {
	OrderKind OrderKind
	Date      time.Time
	NextValue int
}

// StageWeights lists the pipeline stage names and their fixed progress
// weights, in pipeline order. The Orchestrator walks this table to compute
// cumulative progress.
var StageWeights = []struct {
	Stage  string
	Weight int
}{
	{"load", 5},
	{"merge", 20},
	{"split", 15},
	{"correct", 25},
	{"sync", 15},
	{"write", 20},
}
