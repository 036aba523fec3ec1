package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritas-mfg/tobacco-aps/internal/planmodel"
)

func row(id, article string, makers, feeders []string, qty float64, start, end time.Time) planmodel.DecadeRow {
	return planmodel.DecadeRow{
		ID:           id,
		BatchID:      "B1",
		ArticleNr:    article,
		QtyTotal:     qty,
		QtyFinal:     qty,
		MakerCodes:   makers,
		FeederCodes:  feeders,
		PlannedStart: start,
		PlannedEnd:   end,
	}
}

func TestMerge_Disabled_IdentityTransform(t *testing.T) {
	start := time.Date(2026, 8, 3, 6, 0, 0, 0, time.UTC)
	end := start.Add(8 * time.Hour)
	rows := []planmodel.DecadeRow{
		row("R1", "ART1", []string{"P1"}, []string{"F1"}, 1000, start, end),
		row("R2", "ART1", []string{"P1"}, []string{"F1"}, 2000, start, end),
	}

	out, err := Merge(rows, false)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "R1", out[0].ID)
	assert.Equal(t, "R2", out[1].ID)
	assert.Equal(t, []string{"P1"}, out[0].Packers)
	assert.Equal(t, "F1", out[0].Feeder)
}

func TestMerge_Enabled_GroupsByKeyAndSumsQty(t *testing.T) {
	start1 := time.Date(2026, 8, 3, 6, 0, 0, 0, time.UTC)
	start2 := time.Date(2026, 8, 10, 6, 0, 0, 0, time.UTC)
	rows := []planmodel.DecadeRow{
		row("R1", "ART1", []string{"P1"}, []string{"F1"}, 1000, start1, start1.Add(4*time.Hour)),
		row("R2", "ART1", []string{"P1"}, []string{"F1"}, 2000, start2, start2.Add(6*time.Hour)),
		row("R3", "ART2", []string{"P1"}, []string{"F1"}, 500, start1, start1.Add(2*time.Hour)),
	}

	out, err := Merge(rows, true)
	require.NoError(t, err)
	require.Len(t, out, 2)

	var art1 planmodel.LogicalOrder
	for _, o := range out {
		if o.ArticleNr == "ART1" {
			art1 = o
		}
	}
	assert.Equal(t, float64(3000), art1.Qty)
	assert.Equal(t, []string{"R1", "R2"}, art1.Provenance)
	assert.Equal(t, start1, art1.TargetStart)
	assert.Equal(t, start2.Add(6*time.Hour), art1.TargetEnd)
}

func TestMerge_RejectsInvalidTopology(t *testing.T) {
	start := time.Date(2026, 8, 3, 6, 0, 0, 0, time.UTC)
	rows := []planmodel.DecadeRow{
		row("R1", "ART1", []string{"P1", "P2"}, []string{"F1", "F2"}, 1000, start, start.Add(time.Hour)),
	}

	_, err := Merge(rows, true)
	require.Error(t, err)
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, KindInvalidTopology, stageErr.Kind)
}

func TestMerge_DeterministicIDs(t *testing.T) {
	start := time.Date(2026, 8, 3, 6, 0, 0, 0, time.UTC)
	rows := []planmodel.DecadeRow{
		row("R1", "ART1", []string{"P1"}, []string{"F1"}, 1000, start, start.Add(time.Hour)),
	}

	out1, err := Merge(rows, true)
	require.NoError(t, err)
	out2, err := Merge(rows, true)
	require.NoError(t, err)
	assert.Equal(t, out1[0].ID, out2[0].ID)
}
