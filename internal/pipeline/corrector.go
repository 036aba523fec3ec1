package pipeline

import (
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/veritas-mfg/tobacco-aps/internal/calendar"
	"github.com/veritas-mfg/tobacco-aps/internal/planmodel"
	"github.com/veritas-mfg/tobacco-aps/internal/refstore"
)

const stageCorrect = "correct"

// Correct recomputes start/end times from quantity÷speed, honoring the
// calendar and maintenance, then serializes overlapping orders on the same
// packer with a minimum inter-order gap. When correctionEnabled is false,
// targetStart/targetEnd pass through unchanged.
func Correct(orders []planmodel.LogicalOrder, snap *refstore.Snapshot, cal *calendar.Calendar, correctionEnabled bool, minGap time.Duration) ([]planmodel.LogicalOrder, error) {
	out := make([]planmodel.LogicalOrder, len(orders))
	copy(out, orders)

	if !correctionEnabled {
		return out, nil
	}

	byPacker := make(map[string][]int)
	for i, o := range orders {
		p := o.Packer()
		byPacker[p] = append(byPacker[p], i)
	}

	reservations := newMachineReservations()

	packers := make([]string, 0, len(byPacker))
	for p := range byPacker {
		packers = append(packers, p)
	}

	g := new(errgroup.Group)
	for _, packer := range packers {
		indices := byPacker[packer]
		g.Go(func() error {
			for _, idx := range indices {
				corrected, err := correctOne(orders[idx], snap, cal, reservations, minGap)
				if err != nil {
					return err
				}
				out[idx] = corrected
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func correctOne(o planmodel.LogicalOrder, snap *refstore.Snapshot, cal *calendar.Calendar, reservations *machineReservations, minGap time.Duration) (planmodel.LogicalOrder, error) {
	packer := o.Packer()

	speed, err := snap.ResolveSpeed(packer, o.ArticleNr, o.TargetStart)
	if err != nil {
		return o, wrapRefstoreErr(err, o.Provenance)
	}
	rate := speed.EffectiveRate()
	if rate <= 0 {
		return o, newStageError(stageCorrect, KindUnknownArticle, fmt.Sprintf("non-positive effective rate for %s/%s", packer, o.ArticleNr), o.Provenance...)
	}
	hours := o.Qty / rate

	firstWorking, err := cal.FirstWorkingInstant(packer, o.TargetStart)
	if err != nil {
		return o, wrapCalendarErr(err, o.Provenance)
	}
	newStart := o.TargetStart
	if firstWorking.After(newStart) {
		newStart = firstWorking
	}

	newEnd, err := cal.Advance(packer, newStart, hours)
	if err != nil {
		return o, wrapCalendarErr(err, o.Provenance)
	}

	// Maintenance on the feeder blocks the feeder and pushes the affected
	// packer order forward (resolved open question, see spec.md §9).
	for i := 0; i < 32; i++ {
		feederMaint := snap.MaintenanceFor(o.Feeder, newStart, newEnd)
		if len(feederMaint) == 0 {
			break
		}
		nextInstant, err := cal.FirstWorkingInstant(o.Feeder, feederMaint[len(feederMaint)-1].End)
		if err != nil {
			return o, wrapCalendarErr(err, o.Provenance)
		}
		newStart = nextInstant
		newEnd, err = cal.Advance(packer, newStart, hours)
		if err != nil {
			return o, wrapCalendarErr(err, o.Provenance)
		}
	}

	// Packer non-overlap: if this order's start collides with the
	// previous order on the same packer, push it to start at the earlier
	// one's newEnd plus the configured gap.
	if busy, ok := reservations.busyUntilFor(packer); ok {
		earliestStart := busy.Add(minGap)
		if newStart.Before(earliestStart) {
			newStart = earliestStart
			newEnd, err = cal.Advance(packer, newStart, hours)
			if err != nil {
				return o, wrapCalendarErr(err, o.Provenance)
			}
		}
	}

	reservations.reserve(packer, planmodel.Interval{Start: newStart, End: newEnd})

	o.TargetStart = newStart
	o.TargetEnd = newEnd
	return o, nil
}

func wrapCalendarErr(err error, provenance []string) error {
	if _, ok := err.(*calendar.ErrNoCapacity); ok {
		return newStageError(stageCorrect, KindNoCapacity, err.Error(), provenance...)
	}
	return err
}

func wrapRefstoreErr(err error, provenance []string) error {
	switch err.(type) {
	case *refstore.ErrUnknownMachine:
		return newStageError(stageCorrect, KindUnknownMachine, err.Error(), provenance...)
	case *refstore.ErrUnknownArticle:
		return newStageError(stageCorrect, KindUnknownArticle, err.Error(), provenance...)
	default:
		return err
	}
}
