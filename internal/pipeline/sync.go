package pipeline

import (
	"sort"
	"time"

	"github.com/veritas-mfg/tobacco-aps/internal/planmodel"
)

const stageSync = "sync"

// Synchronize aligns the sibling orders produced by Split (same
// SyncGroupID, i.e. the same parent order fanned out across packers) to a
// common [groupStart, groupEnd] window so they run in parallel on their
// packers, then reserves that window on the shared feeder and pushes any
// unrelated order on the same feeder that would overlap it to start at
// groupEnd plus the configured gap. When parallelEnabled is false the
// stage is a no-op: each order keeps the timing Correct gave it.
func Synchronize(orders []planmodel.LogicalOrder, parallelEnabled bool, minGap time.Duration) ([]planmodel.LogicalOrder, error) {
	out := make([]planmodel.LogicalOrder, len(orders))
	copy(out, orders)

	if !parallelEnabled {
		return out, nil
	}

	groupIndices := make(map[string][]int)
	groupOrder := make([]string, 0)
	for i, o := range out {
		if _, seen := groupIndices[o.SyncGroupID]; !seen {
			groupOrder = append(groupOrder, o.SyncGroupID)
		}
		groupIndices[o.SyncGroupID] = append(groupIndices[o.SyncGroupID], i)
	}

	feederReservations := newMachineReservations()

	for _, gid := range groupOrder {
		indices := groupIndices[gid]
		if len(indices) <= 1 {
			continue
		}
		groupStart := out[indices[0]].TargetStart
		groupEnd := out[indices[0]].TargetEnd
		for _, idx := range indices[1:] {
			if out[idx].TargetStart.Before(groupStart) {
				groupStart = out[idx].TargetStart
			}
			if out[idx].TargetEnd.After(groupEnd) {
				groupEnd = out[idx].TargetEnd
			}
		}
		for _, idx := range indices {
			out[idx].TargetStart = groupStart
			out[idx].TargetEnd = groupEnd
		}
		feederReservations.reserve(out[indices[0]].Feeder, planmodel.Interval{Start: groupStart, End: groupEnd})
	}

	for i := range out {
		if len(groupIndices[out[i].SyncGroupID]) > 1 {
			continue
		}
		iv := planmodel.Interval{Start: out[i].TargetStart, End: out[i].TargetEnd}
		overlaps := feederReservations.overlapping(out[i].Feeder, iv)
		if len(overlaps) == 0 {
			continue
		}
		pushTo := latestEnd(overlaps).Add(minGap)
		if pushTo.After(out[i].TargetStart) {
			delta := pushTo.Sub(out[i].TargetStart)
			out[i].TargetStart = out[i].TargetStart.Add(delta)
			out[i].TargetEnd = out[i].TargetEnd.Add(delta)
		}
	}

	reassertPackerNonOverlap(out, groupIndices, minGap)

	return out, nil
}

// reassertPackerNonOverlap restores invariant 2 (no two PackerOrders on the
// same machine overlap, respecting minGap) after sibling groups have been
// independently stretched to their slowest-sibling envelope. Two orders that
// Correct serialized on a shared packer can collide again once their
// respective sync groups are pulled apart, since each group only widens
// toward its own group's bounds. A collision here pushes every order in the
// later order's sync group by the same delta, not just that one order, so a
// group's packers keep sharing one planStart/planEnd (invariant 4). Pushes
// only ever move orders later, so repeating the per-packer sweep converges:
// bounded by one pass per order in the worst case.
func reassertPackerNonOverlap(out []planmodel.LogicalOrder, groupIndices map[string][]int, minGap time.Duration) {
	for pass := 0; pass < len(out); pass++ {
		changed := false

		byPacker := make(map[string][]int)
		for i := range out {
			p := out[i].Packer()
			byPacker[p] = append(byPacker[p], i)
		}

		for packer, idxs := range byPacker {
			sort.Slice(idxs, func(a, b int) bool {
				return out[idxs[a]].TargetStart.Before(out[idxs[b]].TargetStart)
			})
			packerReservations := newMachineReservations()
			for _, idx := range idxs {
				iv := planmodel.Interval{Start: out[idx].TargetStart, End: out[idx].TargetEnd}
				overlaps := packerReservations.overlapping(packer, iv)
				if len(overlaps) > 0 {
					pushTo := latestEnd(overlaps).Add(minGap)
					if pushTo.After(out[idx].TargetStart) {
						delta := pushTo.Sub(out[idx].TargetStart)
						for _, gi := range groupIndices[out[idx].SyncGroupID] {
							out[gi].TargetStart = out[gi].TargetStart.Add(delta)
							out[gi].TargetEnd = out[gi].TargetEnd.Add(delta)
						}
						changed = true
					}
				}
				packerReservations.reserve(packer, planmodel.Interval{Start: out[idx].TargetStart, End: out[idx].TargetEnd})
			}
		}

		if !changed {
			return
		}
	}
}

func latestEnd(intervals []planmodel.Interval) time.Time {
	sort.Slice(intervals, func(i, j int) bool { return intervals[i].End.Before(intervals[j].End) })
	return intervals[len(intervals)-1].End
}
