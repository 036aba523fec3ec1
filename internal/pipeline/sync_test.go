package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritas-mfg/tobacco-aps/internal/planmodel"
)

func TestSynchronize_Disabled_NoOp(t *testing.T) {
	start := time.Date(2026, 8, 3, 6, 0, 0, 0, time.UTC)
	orders := []planmodel.LogicalOrder{
		{ID: "G1-P1", Packers: []string{"P1"}, Feeder: "F1", SyncGroupID: "G1", TargetStart: start, TargetEnd: start.Add(2 * time.Hour)},
		{ID: "G1-P2", Packers: []string{"P2"}, Feeder: "F1", SyncGroupID: "G1", TargetStart: start.Add(time.Hour), TargetEnd: start.Add(3 * time.Hour)},
	}

	out, err := Synchronize(orders, false, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, start, out[0].TargetStart)
	assert.Equal(t, start.Add(time.Hour), out[1].TargetStart)
}

func TestSynchronize_AlignsSiblingsToGroupEnvelope(t *testing.T) {
	start := time.Date(2026, 8, 3, 6, 0, 0, 0, time.UTC)
	orders := []planmodel.LogicalOrder{
		{ID: "G1-P1", Packers: []string{"P1"}, Feeder: "F1", SyncGroupID: "G1", TargetStart: start, TargetEnd: start.Add(2 * time.Hour)},
		{ID: "G1-P2", Packers: []string{"P2"}, Feeder: "F1", SyncGroupID: "G1", TargetStart: start.Add(30 * time.Minute), TargetEnd: start.Add(3 * time.Hour)},
	}

	out, err := Synchronize(orders, true, 15*time.Minute)
	require.NoError(t, err)
	for _, o := range out {
		assert.Equal(t, start, o.TargetStart)
		assert.Equal(t, start.Add(3*time.Hour), o.TargetEnd)
	}
}

func TestSynchronize_PushesNonSiblingOffSharedFeeder(t *testing.T) {
	start := time.Date(2026, 8, 3, 6, 0, 0, 0, time.UTC)
	groupEnd := start.Add(2 * time.Hour)
	orders := []planmodel.LogicalOrder{
		{ID: "G1-P1", Packers: []string{"P1"}, Feeder: "F1", SyncGroupID: "G1", TargetStart: start, TargetEnd: groupEnd},
		{ID: "G1-P2", Packers: []string{"P2"}, Feeder: "F1", SyncGroupID: "G1", TargetStart: start, TargetEnd: groupEnd},
		{ID: "G2-P3", Packers: []string{"P3"}, Feeder: "F1", SyncGroupID: "G2-P3", TargetStart: start.Add(time.Hour), TargetEnd: start.Add(90 * time.Minute)},
	}

	out, err := Synchronize(orders, true, 15*time.Minute)
	require.NoError(t, err)

	var other planmodel.LogicalOrder
	for _, o := range out {
		if o.ID == "G2-P3" {
			other = o
		}
	}
	assert.True(t, !other.TargetStart.Before(groupEnd.Add(15*time.Minute)))
	assert.Equal(t, 30*time.Minute, other.TargetEnd.Sub(other.TargetStart))
}

// TestSynchronize_ReassertsPackerOverlapAfterGroupStretch covers invariant 2:
// two sync groups that don't share a feeder can still share a packer. Group
// G1 stretches to [start, start+3h] on packer P1; group G2 starts with P1 at
// [start+1h, start+2h] — inside G1's post-stretch window on the very same
// packer — but only shares G2's slower sibling's feeder, so the feeder-level
// push in Synchronize never sees the P1 collision. The final per-packer pass
// must catch it and move every order in G2 together.
func TestSynchronize_ReassertsPackerOverlapAfterGroupStretch(t *testing.T) {
	start := time.Date(2026, 8, 3, 6, 0, 0, 0, time.UTC)
	orders := []planmodel.LogicalOrder{
		{ID: "G1-P1", Packers: []string{"P1"}, Feeder: "F1", SyncGroupID: "G1", TargetStart: start, TargetEnd: start.Add(time.Hour)},
		{ID: "G1-P2", Packers: []string{"P2"}, Feeder: "F1", SyncGroupID: "G1", TargetStart: start, TargetEnd: start.Add(3 * time.Hour)},
		{ID: "G2-P1", Packers: []string{"P1"}, Feeder: "F2", SyncGroupID: "G2", TargetStart: start.Add(time.Hour), TargetEnd: start.Add(2 * time.Hour)},
		{ID: "G2-P3", Packers: []string{"P3"}, Feeder: "F2", SyncGroupID: "G2", TargetStart: start.Add(time.Hour), TargetEnd: start.Add(90 * time.Minute)},
	}

	out, err := Synchronize(orders, true, 15*time.Minute)
	require.NoError(t, err)

	byID := make(map[string]planmodel.LogicalOrder, len(out))
	for _, o := range out {
		byID[o.ID] = o
	}

	g1p1 := byID["G1-P1"]
	g2p1 := byID["G2-P1"]
	// G1 stretches P1's window to G1's envelope: [start, start+3h].
	assert.Equal(t, start, g1p1.TargetStart)
	assert.Equal(t, start.Add(3*time.Hour), g1p1.TargetEnd)
	// G2's P1 order must be pushed clear of G1's P1 window plus the gap.
	assert.False(t, g2p1.TargetStart.Before(g1p1.TargetEnd.Add(15*time.Minute)))
	// G2's sibling on P3 must have moved by the exact same delta, so the
	// group still shares one planStart/planEnd (invariant 4).
	g2p3 := byID["G2-P3"]
	assert.Equal(t, g2p1.TargetStart, g2p3.TargetStart)
	assert.Equal(t, g2p1.TargetEnd, g2p3.TargetEnd)
}
