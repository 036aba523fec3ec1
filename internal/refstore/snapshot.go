// Package refstore provides read-through access to machines, feeder/packer
// topology, speeds, shifts, and maintenance windows. A Snapshot is built
// once per SchedulingTask and held immutable for the task's duration — the
// same "module-level cache" the source kept implicitly is made an explicit,
// task-scoped value here (see DESIGN.md).
package refstore

import (
	"fmt"
	"sort"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/veritas-mfg/tobacco-aps/internal/planmodel"
)

// ErrUnknownMachine is returned when a lookup references a machine code the
// snapshot has never seen.
type ErrUnknownMachine struct{ Code string }

func (e *ErrUnknownMachine) Error() string { return fmt.Sprintf("UNKNOWN_MACHINE: %s", e.Code) }

// ErrUnknownArticle is returned when speed resolution cannot find even a
// wildcard-wildcard fallback row.
type ErrUnknownArticle struct{ ArticleNr string }

func (e *ErrUnknownArticle) Error() string { return fmt.Sprintf("UNKNOWN_ARTICLE: %s", e.ArticleNr) }

const wildcard = "*"

// Snapshot is a consistent, read-only view of reference data as of AsOf.
// All lookups are pure; nothing here performs I/O once built.
type Snapshot struct {
	AsOf time.Time

	machines          map[string]planmodel.Machine
	relationsByFeeder map[string][]planmodel.Relation
	relationsByPacker map[string][]planmodel.Relation
	speeds            []planmodel.Speed
	shifts            []planmodel.ShiftWindow
	maintenance       map[string][]planmodel.MaintenanceWindow

	speedCache *gocache.Cache
}

// Build assembles a Snapshot from already-loaded reference rows. Loaders
// (Postgres-backed or fixture-backed) call this after fetching rows; Build
// itself never touches a database.
func Build(asOf time.Time, machines []planmodel.Machine, relations []planmodel.Relation, speeds []planmodel.Speed, shifts []planmodel.ShiftWindow, maintenance []planmodel.MaintenanceWindow) *Snapshot {
	s := &Snapshot{
		AsOf:              asOf,
		machines:          make(map[string]planmodel.Machine, len(machines)),
		relationsByFeeder: make(map[string][]planmodel.Relation),
		relationsByPacker: make(map[string][]planmodel.Relation),
		speeds:            speeds,
		shifts:            shifts,
		maintenance:       make(map[string][]planmodel.MaintenanceWindow),
		speedCache:        gocache.New(gocache.NoExpiration, 0),
	}
	for _, m := range machines {
		s.machines[m.Code] = m
	}
	for _, r := range relations {
		s.relationsByFeeder[r.FeederCode] = append(s.relationsByFeeder[r.FeederCode], r)
		s.relationsByPacker[r.MakerCode] = append(s.relationsByPacker[r.MakerCode], r)
	}
	for _, w := range maintenance {
		s.maintenance[w.MachineCode] = append(s.maintenance[w.MachineCode], w)
	}
	return s
}

// MachinesByKind returns all machines of the given kind, sorted by code for
// deterministic iteration.
func (s *Snapshot) MachinesByKind(kind planmodel.MachineKind) []planmodel.Machine {
	var out []planmodel.Machine
	for _, m := range s.machines {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Machine looks up one machine by code.
func (s *Snapshot) Machine(code string) (planmodel.Machine, error) {
	m, ok := s.machines[code]
	if !ok {
		return planmodel.Machine{}, &ErrUnknownMachine{Code: code}
	}
	return m, nil
}

// RelationsForFeeder returns the active relations for a feeder, ordered by
// priority then packer code.
func (s *Snapshot) RelationsForFeeder(feederCode string) []planmodel.Relation {
	return activeRelations(s.relationsByFeeder[feederCode], s.AsOf)
}

// FeedersForPacker returns the active relations for a packer.
func (s *Snapshot) FeedersForPacker(packerCode string) []planmodel.Relation {
	return activeRelations(s.relationsByPacker[packerCode], s.AsOf)
}

func activeRelations(rels []planmodel.Relation, asOf time.Time) []planmodel.Relation {
	var out []planmodel.Relation
	for _, r := range rels {
		if !r.EffectiveFrom.IsZero() && asOf.Before(r.EffectiveFrom) {
			continue
		}
		if !r.EffectiveTo.IsZero() && !asOf.Before(r.EffectiveTo) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].MakerCode < out[j].MakerCode
	})
	return out
}

// ResolveSpeed resolves the effective rate for (machine, article) using the
// fallback order exact > machine+"*" > "*"+article > "*"+"*". Results are
// memoized per (machine, article) for the lifetime of the snapshot.
func (s *Snapshot) ResolveSpeed(machine, articleNr string, _ time.Time) (planmodel.Speed, error) {
	key := machine + "\x00" + articleNr
	if cached, ok := s.speedCache.Get(key); ok {
		speed := cached.(planmodel.Speed)
		if speed.MachineCode == "" && speed.ArticleNr == "" {
			return planmodel.Speed{}, &ErrUnknownArticle{ArticleNr: articleNr}
		}
		return speed, nil
	}

	best, bestScore := planmodel.Speed{}, -1
	for _, sp := range s.speeds {
		score := speedMatchScore(sp, machine, articleNr)
		if score > bestScore {
			best, bestScore = sp, score
		}
	}
	if bestScore < 0 {
		s.speedCache.Set(key, planmodel.Speed{}, gocache.NoExpiration)
		return planmodel.Speed{}, &ErrUnknownArticle{ArticleNr: articleNr}
	}
	s.speedCache.Set(key, best, gocache.NoExpiration)
	return best, nil
}

// speedMatchScore ranks a candidate Speed row against (machine, article);
// -1 means no match. Exact match scores highest, then machine+"*", then
// "*"+article, then "*"+"*" — the precedence order from the speed table.
func speedMatchScore(sp planmodel.Speed, machine, article string) int {
	machineExact := sp.MachineCode == machine
	machineWild := sp.MachineCode == wildcard
	articleExact := sp.ArticleNr == article
	articleWild := sp.ArticleNr == wildcard

	switch {
	case machineExact && articleExact:
		return 3
	case machineExact && articleWild:
		return 2
	case machineWild && articleExact:
		return 1
	case machineWild && articleWild:
		return 0
	default:
		return -1
	}
}

// ShiftsForDay implements calendar.ReferenceData. It resolves shift scope
// precedence (machine-specific overrides "*" entirely for that machine on
// that day) and returns absolute working intervals for the calendar day
// containing day.
func (s *Snapshot) ShiftsForDay(machine string, day time.Time) []planmodel.Interval {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())

	var specific, wild []planmodel.ShiftWindow
	for _, sh := range s.shifts {
		if !sh.EffectiveFrom.IsZero() && dayStart.Before(sh.EffectiveFrom) {
			continue
		}
		if !sh.EffectiveTo.IsZero() && !dayStart.Before(sh.EffectiveTo) {
			continue
		}
		if sh.MachineScope == machine {
			specific = append(specific, sh)
		} else if sh.MachineScope == wildcard {
			wild = append(wild, sh)
		}
	}

	active := specific
	if len(active) == 0 {
		active = wild
	}

	var out []planmodel.Interval
	for _, sh := range active {
		out = append(out, planmodel.Interval{
			Start: dayStart.Add(sh.StartOfDay),
			End:   dayStart.Add(sh.EndOfDay),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// ShiftNameAt returns the name of the shift covering instant t on machine,
// or "" if none is defined. Used to label work orders for MES dispatch.
func (s *Snapshot) ShiftNameAt(machine string, t time.Time) string {
	for _, iv := range s.ShiftsForDay(machine, t) {
		if !t.Before(iv.Start) && t.Before(iv.End) {
			return s.shiftNameForInterval(machine, t, iv)
		}
	}
	return ""
}

func (s *Snapshot) shiftNameForInterval(machine string, day time.Time, iv planmodel.Interval) string {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	for _, sh := range s.shifts {
		if sh.MachineScope != machine && sh.MachineScope != wildcard {
			continue
		}
		if dayStart.Add(sh.StartOfDay).Equal(iv.Start) && dayStart.Add(sh.EndOfDay).Equal(iv.End) {
			return sh.ShiftName
		}
	}
	return ""
}

// MaintenanceFor implements calendar.ReferenceData, returning active
// maintenance windows on machine overlapping [from, to).
func (s *Snapshot) MaintenanceFor(machine string, from, to time.Time) []planmodel.MaintenanceWindow {
	var out []planmodel.MaintenanceWindow
	for _, w := range s.maintenance[machine] {
		if !w.Status.Blocking() {
			continue
		}
		if w.Start.Before(to) && from.Before(w.End) {
			out = append(out, w)
		}
	}
	return out
}

// CanonicalCodes sorts a set of machine codes lexicographically and joins
// them, the Merger's grouping-key canonicalization.
func CanonicalCodes(codes []string) string {
	cp := append([]string(nil), codes...)
	sort.Strings(cp)
	return strings.Join(cp, ",")
}
