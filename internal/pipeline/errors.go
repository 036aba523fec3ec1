// Package pipeline implements the four deterministic scheduling stages —
// Merge, Split, Time-Correction, Parallel-Sync — as pure, synchronous
// functions over []planmodel.LogicalOrder. Each stage returns a result or a
// typed Kind error; none of them panic or use exceptions for control flow.
package pipeline

import "fmt"

// Kind is a stable error discriminator the Task Orchestrator switches on
// without string matching.
type Kind string

const (
	KindInvalidTopology Kind = "INVALID_TOPOLOGY"
	KindSplitRequired   Kind = "SPLIT_REQUIRED"
	KindNoCapacity      Kind = "NO_CAPACITY"
	KindUnknownMachine  Kind = "UNKNOWN_MACHINE"
	KindUnknownArticle  Kind = "UNKNOWN_ARTICLE"
)

// StageError carries a Kind plus human-readable detail and the offending
// provenance (DecadeRow or LogicalOrder ids) for log/report purposes.
type StageError struct {
	Kind       Kind
	Stage      string
	Detail     string
	Provenance []string
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Stage, e.Kind, e.Detail)
}

func newStageError(stage string, kind Kind, detail string, provenance ...string) *StageError {
	return &StageError{Kind: kind, Stage: stage, Detail: detail, Provenance: provenance}
}
