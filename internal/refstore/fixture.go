package refstore

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/veritas-mfg/tobacco-aps/internal/planmodel"
)

// Fixture is the YAML shape of a reference-data snapshot, used for local
// development and tests that run without a database. Durations are given
// in minutes from local midnight to keep the file human-editable.
type Fixture struct {
	Machines []struct {
		Code   string `yaml:"code"`
		Kind   string `yaml:"kind"`
		Status string `yaml:"status"`
	} `yaml:"machines"`
	Relations []struct {
		Feeder   string `yaml:"feeder"`
		Maker    string `yaml:"maker"`
		Priority int    `yaml:"priority"`
	} `yaml:"relations"`
	Speeds []struct {
		Machine      string  `yaml:"machine"`
		Article      string  `yaml:"article"`
		BoxesPerHour float64 `yaml:"boxesPerHour"`
		Efficiency   float64 `yaml:"efficiency"`
	} `yaml:"speeds"`
	Shifts []struct {
		Name         string `yaml:"name"`
		MachineScope string `yaml:"machineScope"`
		StartMinute  int    `yaml:"startMinute"`
		EndMinute    int    `yaml:"endMinute"`
	} `yaml:"shifts"`
	Maintenance []struct {
		Machine string    `yaml:"machine"`
		Start   time.Time `yaml:"start"`
		End     time.Time `yaml:"end"`
		Status  string    `yaml:"status"`
	} `yaml:"maintenance"`
}

// LoadFixture reads a YAML reference-data file and builds a Snapshot from
// it, without touching a database — the same freedom the Reference Store
// contract grants any backing store that satisfies its lookups.
func LoadFixture(path string, asOf time.Time) (*Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture %s: %w", path, err)
	}

	var fx Fixture
	if err := yaml.Unmarshal(raw, &fx); err != nil {
		return nil, fmt.Errorf("failed to parse fixture %s: %w", path, err)
	}

	var machines []planmodel.Machine
	for _, m := range fx.Machines {
		machines = append(machines, planmodel.Machine{Code: m.Code, Kind: planmodel.MachineKind(m.Kind), Status: m.Status})
	}

	var relations []planmodel.Relation
	for _, r := range fx.Relations {
		relations = append(relations, planmodel.Relation{FeederCode: r.Feeder, MakerCode: r.Maker, Priority: r.Priority})
	}

	var speeds []planmodel.Speed
	for _, s := range fx.Speeds {
		speeds = append(speeds, planmodel.Speed{MachineCode: s.Machine, ArticleNr: s.Article, BoxesPerHour: s.BoxesPerHour, Efficiency: s.Efficiency})
	}

	var shifts []planmodel.ShiftWindow
	for _, sh := range fx.Shifts {
		shifts = append(shifts, planmodel.ShiftWindow{
			ShiftName:    sh.Name,
			MachineScope: sh.MachineScope,
			StartOfDay:   time.Duration(sh.StartMinute) * time.Minute,
			EndOfDay:     time.Duration(sh.EndMinute) * time.Minute,
		})
	}

	var maintenance []planmodel.MaintenanceWindow
	for _, mw := range fx.Maintenance {
		maintenance = append(maintenance, planmodel.MaintenanceWindow{
			MachineCode: mw.Machine,
			Start:       mw.Start,
			End:         mw.End,
			Status:      planmodel.MaintenanceStatus(mw.Status),
		})
	}

	return Build(asOf, machines, relations, speeds, shifts, maintenance), nil
}
