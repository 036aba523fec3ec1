package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritas-mfg/tobacco-aps/internal/planmodel"
)

func logicalOrder(id, article string, packers []string, qty float64, start, end time.Time) planmodel.LogicalOrder {
	return planmodel.LogicalOrder{
		ID:          id,
		ArticleNr:   article,
		Qty:         qty,
		Packers:     packers,
		Feeder:      "F1",
		TargetStart: start,
		TargetEnd:   end,
		Provenance:  []string{id},
	}
}

func TestSplit_SingletonPassesThrough(t *testing.T) {
	start := time.Now()
	orders := []planmodel.LogicalOrder{
		logicalOrder("G1", "ART1", []string{"P1"}, 1000, start, start.Add(time.Hour)),
	}

	out, err := Split(orders, true)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "G1", out[0].ID)
	assert.Equal(t, "G1", out[0].SyncGroupID)
}

func TestSplit_DistributesRemainderToFirstPackers(t *testing.T) {
	start := time.Now()
	orders := []planmodel.LogicalOrder{
		logicalOrder("G1", "ART1", []string{"P1", "P2", "P3"}, 1000, start, start.Add(time.Hour)),
	}

	out, err := Split(orders, true)
	require.NoError(t, err)
	require.Len(t, out, 3)

	total := 0.0
	for _, o := range out {
		total += o.Qty
		assert.Equal(t, "G1", o.SyncGroupID)
	}
	assert.Equal(t, float64(1000), total)
	assert.Equal(t, float64(334), out[0].Qty)
	assert.Equal(t, float64(333), out[1].Qty)
	assert.Equal(t, float64(333), out[2].Qty)
	assert.Equal(t, "G1-P1", out[0].ID)
}

func TestSplit_DisabledRejectsMultiPacker(t *testing.T) {
	start := time.Now()
	orders := []planmodel.LogicalOrder{
		logicalOrder("G1", "ART1", []string{"P1", "P2"}, 1000, start, start.Add(time.Hour)),
	}

	_, err := Split(orders, false)
	require.Error(t, err)
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, KindSplitRequired, stageErr.Kind)
}
