// Package workorder turns corrected, synchronized LogicalOrders into
// persisted HJB (packer) and HWS (feeder) work orders, allocating their
// daily-sequence plan numbers.
package workorder

import (
	"fmt"
	"time"

	"github.com/veritas-mfg/tobacco-aps/internal/planmodel"
)

// FormatPlanID builds the MES-facing work-order number: kind followed by a
// zero-padded 9-digit daily-sequence value (^HJB[0-9]{9}$ / ^HWS[0-9]{9}$).
// The plan date is never embedded in the id — it is carried separately on
// PlanDate — so the same format applies regardless of which date's
// DailySequence produced seq.
func FormatPlanID(kind planmodel.OrderKind, seq int) string {
	return fmt.Sprintf("%s%09d", kind, seq)
}

// dateOnly truncates t to its calendar date in the factory's local time
// zone (t's own Location) — planDate and daily-sequence bucketing are
// local-date concepts (spec.md §4.2/§4.8), not UTC ones.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
