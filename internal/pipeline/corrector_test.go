package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritas-mfg/tobacco-aps/internal/calendar"
	"github.com/veritas-mfg/tobacco-aps/internal/planmodel"
	"github.com/veritas-mfg/tobacco-aps/internal/refstore"
)

func roundTheClockSnapshot(speeds []planmodel.Speed, maintenance []planmodel.MaintenanceWindow) *refstore.Snapshot {
	shifts := []planmodel.ShiftWindow{
		{ShiftName: "ALL", MachineScope: "*", StartOfDay: 0, EndOfDay: 24 * time.Hour},
	}
	return refstore.Build(time.Now(), nil, nil, speeds, shifts, maintenance)
}

func TestCorrect_Disabled_PassesThrough(t *testing.T) {
	start := time.Date(2026, 8, 3, 6, 0, 0, 0, time.UTC)
	end := start.Add(4 * time.Hour)
	orders := []planmodel.LogicalOrder{
		{ID: "O1", ArticleNr: "ART1", Qty: 1000, Packers: []string{"P1"}, Feeder: "F1", TargetStart: start, TargetEnd: end},
	}
	snap := roundTheClockSnapshot(nil, nil)
	cal := calendar.New(snap, 60)

	out, err := Correct(orders, snap, cal, false, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, start, out[0].TargetStart)
	assert.Equal(t, end, out[0].TargetEnd)
}

func TestCorrect_ComputesEndFromSpeed(t *testing.T) {
	start := time.Date(2026, 8, 3, 6, 0, 0, 0, time.UTC)
	orders := []planmodel.LogicalOrder{
		{ID: "O1", ArticleNr: "ART1", Qty: 1000, Packers: []string{"P1"}, Feeder: "F1", TargetStart: start, TargetEnd: start},
	}
	speeds := []planmodel.Speed{{MachineCode: "P1", ArticleNr: "ART1", BoxesPerHour: 500, Efficiency: 1.0}}
	snap := roundTheClockSnapshot(speeds, nil)
	cal := calendar.New(snap, 60)

	out, err := Correct(orders, snap, cal, true, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, start, out[0].TargetStart)
	assert.Equal(t, start.Add(2*time.Hour), out[0].TargetEnd)
}

func TestCorrect_SerializesOverlappingOrdersOnSamePacker(t *testing.T) {
	start := time.Date(2026, 8, 3, 6, 0, 0, 0, time.UTC)
	orders := []planmodel.LogicalOrder{
		{ID: "O1", ArticleNr: "ART1", Qty: 1000, Packers: []string{"P1"}, Feeder: "F1", TargetStart: start, TargetEnd: start},
		{ID: "O2", ArticleNr: "ART1", Qty: 1000, Packers: []string{"P1"}, Feeder: "F1", TargetStart: start, TargetEnd: start},
	}
	speeds := []planmodel.Speed{{MachineCode: "P1", ArticleNr: "ART1", BoxesPerHour: 500, Efficiency: 1.0}}
	snap := roundTheClockSnapshot(speeds, nil)
	cal := calendar.New(snap, 60)

	out, err := Correct(orders, snap, cal, true, 15*time.Minute)
	require.NoError(t, err)

	var first, second planmodel.LogicalOrder
	for _, o := range out {
		if o.ID == "O1" {
			first = o
		} else {
			second = o
		}
	}
	assert.True(t, !second.TargetStart.Before(first.TargetEnd.Add(15*time.Minute)))
}

func TestCorrect_UnknownArticleReturnsStageError(t *testing.T) {
	start := time.Date(2026, 8, 3, 6, 0, 0, 0, time.UTC)
	orders := []planmodel.LogicalOrder{
		{ID: "O1", ArticleNr: "UNKNOWN", Qty: 1000, Packers: []string{"P1"}, Feeder: "F1", TargetStart: start, TargetEnd: start},
	}
	snap := roundTheClockSnapshot(nil, nil)
	cal := calendar.New(snap, 60)

	_, err := Correct(orders, snap, cal, true, 15*time.Minute)
	require.Error(t, err)
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, KindUnknownArticle, stageErr.Kind)
}
