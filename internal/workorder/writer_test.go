package workorder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritas-mfg/tobacco-aps/internal/planmodel"
	"github.com/veritas-mfg/tobacco-aps/internal/refstore"
)

type fakeAllocator struct {
	next map[planmodel.OrderKind]int
}

func newFakeAllocator() *fakeAllocator {
	return &fakeAllocator{next: map[planmodel.OrderKind]int{planmodel.OrderKindHJB: 1, planmodel.OrderKindHWS: 1}}
}

func (f *fakeAllocator) AllocateSequence(_ context.Context, kind planmodel.OrderKind, _ time.Time, n int) (int, error) {
	first := f.next[kind]
	f.next[kind] = first + n
	return first, nil
}

type fakeStore struct {
	failTimes int
	calls     int
	packers   []planmodel.PackerOrder
	feeders   []planmodel.FeederOrder
}

func (f *fakeStore) PersistWorkOrders(_ context.Context, packerOrders []planmodel.PackerOrder, feederOrders []planmodel.FeederOrder) error {
	f.calls++
	if f.calls <= f.failTimes {
		return errors.New("transient write failure")
	}
	f.packers = packerOrders
	f.feeders = feederOrders
	return nil
}

func emptySnapshot() *refstore.Snapshot {
	return refstore.Build(time.Now(), nil, nil, nil, nil, nil)
}

func TestWriteOrders_SingleGroup(t *testing.T) {
	start := time.Date(2026, 8, 3, 6, 0, 0, 0, time.UTC)
	orders := []planmodel.LogicalOrder{
		{ID: "G1-P1", ArticleNr: "ART1", Qty: 500, Packers: []string{"P1"}, Feeder: "F1", TargetStart: start, TargetEnd: start.Add(2 * time.Hour), SyncGroupID: "G1"},
	}

	alloc := newFakeAllocator()
	store := &fakeStore{}

	summary, err := WriteOrders(context.Background(), alloc, store, emptySnapshot(), "T1", orders)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.PackingOrders)
	assert.Equal(t, 1, summary.FeedingOrders)
	require.Len(t, store.packers, 1)
	assert.Equal(t, "P1", store.packers[0].ProductionLine)
	assert.Equal(t, "T1", store.packers[0].TaskID)
	require.Len(t, store.feeders, 1)
	assert.True(t, store.feeders[0].IsLastOne)
	assert.Equal(t, store.feeders[0].PlanID, store.packers[0].InputPlanID)
}

func TestWriteOrders_SplitSiblingsShareOneFeederOrder(t *testing.T) {
	start := time.Date(2026, 8, 3, 6, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)
	orders := []planmodel.LogicalOrder{
		{ID: "G1-P1", ArticleNr: "ART1", Qty: 300, Packers: []string{"P1"}, Feeder: "F1", TargetStart: start, TargetEnd: end, SyncGroupID: "G1"},
		{ID: "G1-P2", ArticleNr: "ART1", Qty: 200, Packers: []string{"P2"}, Feeder: "F1", TargetStart: start, TargetEnd: end, SyncGroupID: "G1"},
	}

	alloc := newFakeAllocator()
	store := &fakeStore{}

	summary, err := WriteOrders(context.Background(), alloc, store, emptySnapshot(), "T1", orders)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.PackingOrders)
	assert.Equal(t, 1, summary.FeedingOrders)
	assert.Equal(t, "P1,P2", store.feeders[0].ProductionLine)
	assert.Equal(t, store.feeders[0].PlanID, store.packers[0].InputPlanID)
	assert.Equal(t, store.feeders[0].PlanID, store.packers[1].InputPlanID)
}

func TestWriteOrders_RetriesOnTransientFailure(t *testing.T) {
	start := time.Date(2026, 8, 3, 6, 0, 0, 0, time.UTC)
	orders := []planmodel.LogicalOrder{
		{ID: "G1-P1", ArticleNr: "ART1", Qty: 500, Packers: []string{"P1"}, Feeder: "F1", TargetStart: start, TargetEnd: start.Add(time.Hour), SyncGroupID: "G1"},
	}

	alloc := newFakeAllocator()
	store := &fakeStore{failTimes: 2}

	summary, err := WriteOrders(context.Background(), alloc, store, emptySnapshot(), "T1", orders)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.PackingOrders)
	assert.Equal(t, 3, store.calls)
}

func TestWriteOrders_FailsAfterExhaustingRetries(t *testing.T) {
	start := time.Date(2026, 8, 3, 6, 0, 0, 0, time.UTC)
	orders := []planmodel.LogicalOrder{
		{ID: "G1-P1", ArticleNr: "ART1", Qty: 500, Packers: []string{"P1"}, Feeder: "F1", TargetStart: start, TargetEnd: start.Add(time.Hour), SyncGroupID: "G1"},
	}

	alloc := newFakeAllocator()
	store := &fakeStore{failTimes: 10}

	_, err := WriteOrders(context.Background(), alloc, store, emptySnapshot(), "T1", orders)
	require.Error(t, err)
}

func TestWriteOrders_SequenceIsPerMachineNotGlobalAllocatorValue(t *testing.T) {
	start := time.Date(2026, 8, 3, 6, 0, 0, 0, time.UTC)
	orders := []planmodel.LogicalOrder{
		{ID: "G1-P1", ArticleNr: "ART1", Qty: 100, Packers: []string{"P1"}, Feeder: "F1", TargetStart: start, TargetEnd: start.Add(time.Hour), SyncGroupID: "G1"},
		{ID: "G2-P2", ArticleNr: "ART2", Qty: 100, Packers: []string{"P2"}, Feeder: "F1", TargetStart: start.Add(time.Hour), TargetEnd: start.Add(2 * time.Hour), SyncGroupID: "G2"},
	}

	alloc := newFakeAllocator()
	store := &fakeStore{}

	_, err := WriteOrders(context.Background(), alloc, store, emptySnapshot(), "T1", orders)
	require.NoError(t, err)
	require.Len(t, store.packers, 2)

	// The allocator hands out a shared (kind, date) run — P1 gets 1, P2
	// gets 2 from the allocator — but each packer has exactly one order
	// that day, so Sequence must be 1 on both, not the allocator value.
	for _, p := range store.packers {
		assert.Equal(t, 1, p.Sequence, "packer %s should be the first and only order on its machine that day", p.ProductionLine)
	}
}

func TestFormatPlanID(t *testing.T) {
	assert.Equal(t, "HJB000000042", FormatPlanID(planmodel.OrderKindHJB, 42))
	assert.Equal(t, "HWS000000001", FormatPlanID(planmodel.OrderKindHWS, 1))
}
