package pipeline

import (
	"fmt"

	"github.com/veritas-mfg/tobacco-aps/internal/planmodel"
)

const stageSplit = "split"

// Split expands LogicalOrders with more than one packer into one
// LogicalOrder per packer, with an integer-preserving quantity split:
// qty/k by integer division, remainder distributed to the
// lexicographically-first packers. All children of one parent share
// SyncGroupID so the Parallel Synchronizer can find them again.
func Split(orders []planmodel.LogicalOrder, splitEnabled bool) ([]planmodel.LogicalOrder, error) {
	out := make([]planmodel.LogicalOrder, 0, len(orders))

	for _, o := range orders {
		if len(o.Packers) <= 1 {
			child := o
			child.SyncGroupID = o.ID
			out = append(out, child)
			continue
		}

		if !splitEnabled {
			return nil, newStageError(stageSplit, KindSplitRequired,
				fmt.Sprintf("order %s has %d packers but splitting is disabled", o.ID, len(o.Packers)), o.Provenance...)
		}

		k := int64(len(o.Packers))
		total := int64(o.Qty)
		base := total / k
		remainder := total % k

		for i, p := range sortedCopy(o.Packers) {
			share := base
			if int64(i) < remainder {
				share++
			}
			out = append(out, planmodel.LogicalOrder{
				ID:          fmt.Sprintf("%s-%s", o.ID, p),
				ArticleNr:   o.ArticleNr,
				Qty:         float64(share),
				Packers:     []string{p},
				Feeder:      o.Feeder,
				TargetStart: o.TargetStart,
				TargetEnd:   o.TargetEnd,
				Provenance:  o.Provenance,
				SyncGroupID: o.ID,
			})
		}
	}

	return out, nil
}
