package pipeline

import (
	"sync"
	"time"

	"github.com/veritas-mfg/tobacco-aps/internal/planmodel"
)

// machineReservations is the task-local interval index mentioned in the
// concurrency model: machine-busy intervals maintained during Time
// Correction and Parallel Sync. It is not shared across tasks. All
// methods take an internal lock so the per-packer goroutines Correct starts
// can share one instance safely.
type machineReservations struct {
	mu        sync.Mutex
	busyUntil map[string]time.Time
	intervals map[string][]planmodel.Interval
}

func newMachineReservations() *machineReservations {
	return &machineReservations{
		busyUntil: make(map[string]time.Time),
		intervals: make(map[string][]planmodel.Interval),
	}
}

// reserve records [iv.Start, iv.End) as occupied on machine and advances
// its busy-until watermark.
func (r *machineReservations) reserve(machine string, iv planmodel.Interval) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intervals[machine] = append(r.intervals[machine], iv)
	if cur, ok := r.busyUntil[machine]; !ok || iv.End.After(cur) {
		r.busyUntil[machine] = iv.End
	}
}

// busyUntilFor returns the current busy-until watermark for machine; the
// second result is false (and the time is zero) if nothing has been
// reserved yet.
func (r *machineReservations) busyUntilFor(machine string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.busyUntil[machine]
	return t, ok
}

// overlapping returns any existing reservation on machine that overlaps iv.
func (r *machineReservations) overlapping(machine string, iv planmodel.Interval) []planmodel.Interval {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []planmodel.Interval
	for _, existing := range r.intervals[machine] {
		if existing.Overlaps(iv) {
			out = append(out, existing)
		}
	}
	return out
}
