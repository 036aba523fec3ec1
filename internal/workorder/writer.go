package workorder

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/avast/retry-go"

	"github.com/veritas-mfg/tobacco-aps/internal/planmodel"
	"github.com/veritas-mfg/tobacco-aps/internal/refstore"
)

// Allocator reserves daily-sequence plan numbers. Satisfied by
// *db.Queries.
type Allocator interface {
	AllocateSequence(ctx context.Context, kind planmodel.OrderKind, date time.Time, n int) (int, error)
}

// Store persists a batch of work orders atomically. Satisfied by
// *db.Queries.
type Store interface {
	PersistWorkOrders(ctx context.Context, packerOrders []planmodel.PackerOrder, feederOrders []planmodel.FeederOrder) error
}

// WriteOrders turns corrected, synchronized LogicalOrders into PackerOrder
// and FeederOrder rows, allocates their plan numbers, and persists them.
// Feeder orders are allocated first so their planId is known before packer
// orders are built — every PackerOrder.InputPlanID links to the real HWS
// planId of the FeederOrder covering it, never to the internal
// SyncGroupID. The whole allocate+write step is retried up to 3 times with
// jittered backoff — on retry, fresh sequence numbers are allocated; a
// planId is never reused once committed.
func WriteOrders(ctx context.Context, alloc Allocator, store Store, snap *refstore.Snapshot, taskID string, orders []planmodel.LogicalOrder) (*planmodel.ResultSummary, error) {
	var packerOrders []planmodel.PackerOrder
	var feederOrders []planmodel.FeederOrder

	err := retry.Do(
		func() error {
			var err error
			feederOrders, err = allocateFeederOrders(ctx, alloc, snap, taskID, orders)
			if err != nil {
				return err
			}
			feederPlanIDByGroup := make(map[string]string, len(feederOrders))
			for _, f := range feederOrders {
				feederPlanIDByGroup[f.SyncGroupID] = f.PlanID
			}
			packerOrders, err = allocatePackerOrders(ctx, alloc, snap, taskID, orders, feederPlanIDByGroup)
			if err != nil {
				return err
			}
			return store.PersistWorkOrders(ctx, packerOrders, feederOrders)
		},
		retry.Attempts(3),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
	)
	if err != nil {
		return nil, fmt.Errorf("PERSISTENCE_FAILED: %w", err)
	}

	return &planmodel.ResultSummary{
		TotalWorkOrders: len(packerOrders) + len(feederOrders),
		PackingOrders:   len(packerOrders),
		FeedingOrders:   len(feederOrders),
	}, nil
}

func allocatePackerOrders(ctx context.Context, alloc Allocator, snap *refstore.Snapshot, taskID string, orders []planmodel.LogicalOrder, feederPlanIDByGroup map[string]string) ([]planmodel.PackerOrder, error) {
	byDate := groupByDate(orders)

	var out []planmodel.PackerOrder
	for _, date := range sortedDates(byDate) {
		group := byDate[date]
		first, err := alloc.AllocateSequence(ctx, planmodel.OrderKindHJB, date, len(group))
		if err != nil {
			return nil, err
		}
		for i, o := range group {
			packer := o.Packer()
			out = append(out, planmodel.PackerOrder{
				PlanID:         FormatPlanID(planmodel.OrderKindHJB, first+i),
				ProductionLine: packer,
				MaterialCode:   o.ArticleNr,
				Quantity:       o.Qty,
				PlanStart:      o.TargetStart,
				PlanEnd:        o.TargetEnd,
				PlanDate:       date,
				Shift:          snap.ShiftNameAt(packer, o.TargetStart),
				InputPlanID:    feederPlanIDByGroup[o.SyncGroupID],
				InputBatchCode: taskID,
				TaskID:         taskID,
				Status:         planmodel.OrderPlanned,
			})
		}
	}
	// Sequence is the per-machine rank within a planDate, not the
	// (kind, date) allocator value that PlanID is built from (spec.md
	// §4.8, testable invariant 6): two machines sharing a day each get
	// their own dense 1..N run.
	assignSequences(out, func(o planmodel.PackerOrder) string { return o.ProductionLine },
		func(o planmodel.PackerOrder) time.Time { return o.PlanDate },
		func(o planmodel.PackerOrder) time.Time { return o.PlanStart },
		func(o planmodel.PackerOrder) string { return o.PlanID },
		func(o *planmodel.PackerOrder, seq int) { o.Sequence = seq })
	return out, nil
}

// allocateFeederOrders emits one FeederOrder per sibling group (SyncGroupID)
// covering the packers it serves, marking the latest-ending feeder order
// on each feeder as IsLastOne.
func allocateFeederOrders(ctx context.Context, alloc Allocator, snap *refstore.Snapshot, taskID string, orders []planmodel.LogicalOrder) ([]planmodel.FeederOrder, error) {
	type group struct {
		feeder      string
		articleNr   string
		packers     []string
		start, end  time.Time
	}
	groups := make(map[string]*group)
	var order []string
	for _, o := range orders {
		g, ok := groups[o.SyncGroupID]
		if !ok {
			g = &group{feeder: o.Feeder, articleNr: o.ArticleNr, start: o.TargetStart, end: o.TargetEnd}
			groups[o.SyncGroupID] = g
			order = append(order, o.SyncGroupID)
		}
		g.packers = append(g.packers, o.Packer())
		if o.TargetStart.Before(g.start) {
			g.start = o.TargetStart
		}
		if o.TargetEnd.After(g.end) {
			g.end = o.TargetEnd
		}
	}

	byDate := make(map[time.Time][]string)
	for _, gid := range order {
		date := dateOnly(groups[gid].start)
		byDate[date] = append(byDate[date], gid)
	}

	lastEndPerFeeder := make(map[string]time.Time)
	for _, gid := range order {
		g := groups[gid]
		if g.end.After(lastEndPerFeeder[g.feeder]) {
			lastEndPerFeeder[g.feeder] = g.end
		}
	}

	var out []planmodel.FeederOrder
	for _, date := range sortedDates(byDate) {
		gids := byDate[date]
		first, err := alloc.AllocateSequence(ctx, planmodel.OrderKindHWS, date, len(gids))
		if err != nil {
			return nil, err
		}
		for i, gid := range gids {
			g := groups[gid]
			productionLine := sortedCopy(g.packers)
			out = append(out, planmodel.FeederOrder{
				PlanID:         FormatPlanID(planmodel.OrderKindHWS, first+i),
				ProductionLine: joinComma(productionLine),
				MaterialCode:   g.articleNr,
				PlanStart:      g.start,
				PlanEnd:        g.end,
				PlanDate:       date,
				Shift:          snap.ShiftNameAt(g.feeder, g.start),
				TaskID:         taskID,
				IsLastOne:      g.end.Equal(lastEndPerFeeder[g.feeder]),
				SyncGroupID:    gid,
			})
		}
	}
	// Sequence is the per-feeder rank within a planDate (spec.md §4.8),
	// not the (kind, date) HWS allocator value used for PlanID. The feeder
	// code isn't a FeederOrder field (ProductionLine holds the comma-joined
	// packers it serves), so look it up via the SyncGroupID group built above.
	assignSequences(out, func(o planmodel.FeederOrder) string { return groups[o.SyncGroupID].feeder },
		func(o planmodel.FeederOrder) time.Time { return o.PlanDate },
		func(o planmodel.FeederOrder) time.Time { return o.PlanStart },
		func(o planmodel.FeederOrder) string { return o.PlanID },
		func(o *planmodel.FeederOrder, seq int) { o.Sequence = seq })
	return out, nil
}

// assignSequences numbers rows 1..N within each (planDate, machine) group,
// ordering by planStart then planId for a deterministic tie-break — the
// per-machine rank spec.md §4.8 and testable invariant 6 require, distinct
// from the (kind, date) allocator value baked into PlanID.
func assignSequences[T any](rows []T, machine func(T) string, planDate, planStart func(T) time.Time, planID func(T) string, setSeq func(*T, int)) {
	type key struct {
		date    time.Time
		machine string
	}
	groups := make(map[key][]int)
	var order []key
	for i, r := range rows {
		k := key{date: planDate(r), machine: machine(r)}
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], i)
	}
	for _, k := range order {
		indices := groups[k]
		sort.Slice(indices, func(a, b int) bool {
			ra, rb := rows[indices[a]], rows[indices[b]]
			if !planStart(ra).Equal(planStart(rb)) {
				return planStart(ra).Before(planStart(rb))
			}
			return planID(ra) < planID(rb)
		})
		for seq, idx := range indices {
			setSeq(&rows[idx], seq+1)
		}
	}
}

func groupByDate(orders []planmodel.LogicalOrder) map[time.Time][]planmodel.LogicalOrder {
	byDate := make(map[time.Time][]planmodel.LogicalOrder)
	for _, o := range orders {
		d := dateOnly(o.TargetStart)
		byDate[d] = append(byDate[d], o)
	}
	for d, group := range byDate {
		sort.Slice(group, func(i, j int) bool {
			if !group[i].TargetStart.Equal(group[j].TargetStart) {
				return group[i].TargetStart.Before(group[j].TargetStart)
			}
			return group[i].ID < group[j].ID
		})
		byDate[d] = group
	}
	return byDate
}

func sortedDates[V any](byDate map[time.Time]V) []time.Time {
	dates := make([]time.Time, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

func sortedCopy(codes []string) []string {
	cp := append([]string(nil), codes...)
	sort.Strings(cp)
	return cp
}

func joinComma(codes []string) string {
	out := ""
	for i, c := range codes {
		if i > 0 {
			out += ","
		}
		out += c
	}
	return out
}
