// Package calendar maps wall-clock intervals to working time: the subset of
// a machine's day that lies inside a shift window and outside any active
// maintenance window. It performs no I/O; all reference data is supplied by
// the caller through the ReferenceData interface.
package calendar

import (
	"fmt"
	"sort"
	"time"

	"github.com/veritas-mfg/tobacco-aps/internal/planmodel"
)

// ErrNoCapacity is returned by Advance when no working time is available for
// a machine within the configured horizon.
type ErrNoCapacity struct {
	Machine string
	Anchor  time.Time
}

func (e *ErrNoCapacity) Error() string {
	return fmt.Sprintf("NO_CAPACITY: machine %s has no working capacity from %s within horizon", e.Machine, e.Anchor.Format(time.RFC3339))
}

// ReferenceData is the slice of the Reference Store the Calendar Service
// consults. Shifts and maintenance windows are already resolved per machine
// (scope precedence is the Reference Store's concern, not the Calendar's).
type ReferenceData interface {
	// ShiftsForDay returns the working intervals-of-day for machine on the
	// calendar day containing day, already intersected to [dayStart, dayEnd).
	ShiftsForDay(machine string, day time.Time) []planmodel.Interval
	// MaintenanceFor returns all maintenance windows on machine whose
	// blocking status is active, overlapping the half-open range.
	MaintenanceFor(machine string, from, to time.Time) []planmodel.MaintenanceWindow
}

// Calendar computes working intervals and advances timestamps by working
// duration for a single scheduling task's reference snapshot.
type Calendar struct {
	ref         ReferenceData
	horizonDays int
}

// New builds a Calendar bound to ref, searching at most horizonDays forward
// when advancing a timestamp.
func New(ref ReferenceData, horizonDays int) *Calendar {
	if horizonDays <= 0 {
		horizonDays = 60
	}
	return &Calendar{ref: ref, horizonDays: horizonDays}
}

// WorkingIntervals returns the ordered, disjoint half-open intervals inside
// [from, to) that are within a shift window and not blocked by maintenance.
func (c *Calendar) WorkingIntervals(machine string, from, to time.Time) ([]planmodel.Interval, error) {
	if !from.Before(to) {
		return nil, nil
	}

	var out []planmodel.Interval
	dayStart := startOfDay(from)
	for dayStart.Before(to) {
		dayShifts := c.ref.ShiftsForDay(machine, dayStart)
		for _, shift := range dayShifts {
			clipped := clip(shift, from, to)
			if clipped == nil {
				continue
			}
			maint := c.ref.MaintenanceFor(machine, clipped.Start, clipped.End)
			out = append(out, subtractMaintenance(*clipped, maint)...)
		}
		dayStart = dayStart.Add(24 * time.Hour)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return mergeAdjacent(out), nil
}

// FirstWorkingInstant returns the smallest instant t >= from that lies
// inside a working interval for machine.
func (c *Calendar) FirstWorkingInstant(machine string, from time.Time) (time.Time, error) {
	horizon := from.AddDate(0, 0, c.horizonDays)
	intervals, err := c.WorkingIntervals(machine, from, horizon)
	if err != nil {
		return time.Time{}, err
	}
	if len(intervals) == 0 {
		return time.Time{}, &ErrNoCapacity{Machine: machine, Anchor: from}
	}
	first := intervals[0]
	if !from.Before(first.Start) {
		return from, nil
	}
	return first.Start, nil
}

// Advance returns the smallest t >= anchor such that the sum of working
// time on machine in [anchor, t) equals durationHours.
func (c *Calendar) Advance(machine string, anchor time.Time, durationHours float64) (time.Time, error) {
	if durationHours <= 0 {
		return anchor, nil
	}

	horizon := anchor.AddDate(0, 0, c.horizonDays)
	intervals, err := c.WorkingIntervals(machine, anchor, horizon)
	if err != nil {
		return time.Time{}, err
	}

	remaining := time.Duration(durationHours * float64(time.Hour))
	for _, iv := range intervals {
		span := iv.End.Sub(iv.Start)
		if span >= remaining {
			return iv.Start.Add(remaining), nil
		}
		remaining -= span
	}
	return time.Time{}, &ErrNoCapacity{Machine: machine, Anchor: anchor}
}

// WorkingHoursBetween sums the working time on machine within [a, b).
func (c *Calendar) WorkingHoursBetween(machine string, a, b time.Time) (float64, error) {
	if !a.Before(b) {
		return 0, nil
	}
	intervals, err := c.WorkingIntervals(machine, a, b)
	if err != nil {
		return 0, err
	}
	var total time.Duration
	for _, iv := range intervals {
		total += iv.End.Sub(iv.Start)
	}
	return total.Hours(), nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func clip(iv planmodel.Interval, from, to time.Time) *planmodel.Interval {
	start := iv.Start
	if start.Before(from) {
		start = from
	}
	end := iv.End
	if end.After(to) {
		end = to
	}
	if !start.Before(end) {
		return nil
	}
	return &planmodel.Interval{Start: start, End: end}
}

// subtractMaintenance removes, from a single working interval, any time
// covered by an active maintenance window. Maintenance intervals subtract
// strictly (half-open): an order may touch but not overlap one.
func subtractMaintenance(iv planmodel.Interval, maint []planmodel.MaintenanceWindow) []planmodel.Interval {
	segments := []planmodel.Interval{iv}
	for _, m := range maint {
		if !m.Status.Blocking() {
			continue
		}
		var next []planmodel.Interval
		for _, seg := range segments {
			if !seg.Overlaps(planmodel.Interval{Start: m.Start, End: m.End}) {
				next = append(next, seg)
				continue
			}
			if seg.Start.Before(m.Start) {
				next = append(next, planmodel.Interval{Start: seg.Start, End: m.Start})
			}
			if m.End.Before(seg.End) {
				next = append(next, planmodel.Interval{Start: m.End, End: seg.End})
			}
		}
		segments = next
	}
	return segments
}

func mergeAdjacent(intervals []planmodel.Interval) []planmodel.Interval {
	if len(intervals) < 2 {
		return intervals
	}
	merged := []planmodel.Interval{intervals[0]}
	for _, iv := range intervals[1:] {
		last := &merged[len(merged)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}
