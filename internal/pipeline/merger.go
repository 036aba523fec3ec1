package pipeline

import (
	"fmt"
	"sort"

	"github.com/veritas-mfg/tobacco-aps/internal/planmodel"
	"github.com/veritas-mfg/tobacco-aps/internal/refstore"
)

const stageMerge = "merge"

// mergeGroup accumulates the rows sharing one grouping key, preserving
// input order for the eventual provenance concatenation.
type mergeGroup struct {
	key       string
	articleNr string
	packers   []string
	feeder    string
	qty       float64
	start     planmodel.DecadeRow
	rows      []planmodel.DecadeRow
}

// Merge collapses DecadeRows that share (year-month of plannedStart,
// articleNr, canonical(packerCodes), canonical(feederCodes)) into a single
// LogicalOrder. When mergeEnabled is false, merging is the identity
// transform: every row becomes its own singleton LogicalOrder.
func Merge(rows []planmodel.DecadeRow, mergeEnabled bool) ([]planmodel.LogicalOrder, error) {
	if !mergeEnabled {
		out := make([]planmodel.LogicalOrder, 0, len(rows))
		for _, r := range rows {
			if err := checkTopology(r); err != nil {
				return nil, err
			}
			out = append(out, planmodel.LogicalOrder{
				ID:          r.ID,
				ArticleNr:   r.ArticleNr,
				Qty:         r.QtyFinal,
				Packers:     sortedCopy(r.MakerCodes),
				Feeder:      r.FeederCodes[0],
				TargetStart: r.PlannedStart,
				TargetEnd:   r.PlannedEnd,
				Provenance:  []string{r.ID},
			})
		}
		return out, nil
	}

	order := make([]string, 0)
	groups := make(map[string]*mergeGroup)

	for _, r := range rows {
		if err := checkTopology(r); err != nil {
			return nil, err
		}
		key := groupKey(r)
		g, ok := groups[key]
		if !ok {
			g = &mergeGroup{
				key:       key,
				articleNr: r.ArticleNr,
				packers:   sortedCopy(r.MakerCodes),
				feeder:    r.FeederCodes[0],
				start:     r,
			}
			groups[key] = g
			order = append(order, key)
		}
		g.qty += r.QtyFinal
		g.rows = append(g.rows, r)
		if r.PlannedStart.Before(g.start.PlannedStart) {
			g.start = r
		}
	}

	out := make([]planmodel.LogicalOrder, 0, len(order))
	for _, key := range order {
		g := groups[key]
		targetStart, targetEnd := g.rows[0].PlannedStart, g.rows[0].PlannedEnd
		provenance := make([]string, 0, len(g.rows))
		for _, r := range g.rows {
			if r.PlannedStart.Before(targetStart) {
				targetStart = r.PlannedStart
			}
			if r.PlannedEnd.After(targetEnd) {
				targetEnd = r.PlannedEnd
			}
			provenance = append(provenance, r.ID)
		}
		out = append(out, planmodel.LogicalOrder{
			ID:          key,
			ArticleNr:   g.articleNr,
			Qty:         g.qty,
			Packers:     g.packers,
			Feeder:      g.feeder,
			TargetStart: targetStart,
			TargetEnd:   targetEnd,
			Provenance:  provenance,
		})
	}
	return out, nil
}

// checkTopology rejects rows with more than one packer AND more than one
// feeder — that combination has no well-defined splitting semantics.
func checkTopology(r planmodel.DecadeRow) error {
	if len(r.MakerCodes) > 1 && len(r.FeederCodes) > 1 {
		return newStageError(stageMerge, KindInvalidTopology,
			fmt.Sprintf("row %s has %d packers and %d feeders", r.ID, len(r.MakerCodes), len(r.FeederCodes)),
			r.ID)
	}
	return nil
}

func groupKey(r planmodel.DecadeRow) string {
	yearMonth := fmt.Sprintf("%04d-%02d", r.PlannedStart.Year(), r.PlannedStart.Month())
	return yearMonth + "|" + r.ArticleNr + "|" + refstore.CanonicalCodes(r.MakerCodes) + "|" + refstore.CanonicalCodes(r.FeederCodes)
}

func sortedCopy(codes []string) []string {
	cp := append([]string(nil), codes...)
	sort.Strings(cp)
	return cp
}
