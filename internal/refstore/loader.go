package refstore

import (
	"context"
	"fmt"
	"time"

	"github.com/veritas-mfg/tobacco-aps/internal/planmodel"
)

// Source is the narrow slice of the Postgres layer the loader needs. db.Queries
// satisfies it without this package importing database/sql directly.
type Source interface {
	ListMachines(ctx context.Context) ([]planmodel.Machine, error)
	ListRelations(ctx context.Context) ([]planmodel.Relation, error)
	ListSpeeds(ctx context.Context) ([]planmodel.Speed, error)
	ListShiftWindows(ctx context.Context) ([]planmodel.ShiftWindow, error)
	ListMaintenanceWindows(ctx context.Context) ([]planmodel.MaintenanceWindow, error)
}

// Load builds a Snapshot as of asOf from a database-backed Source. Called
// once at task start; the resulting Snapshot is then held for the task's
// whole duration.
func Load(ctx context.Context, src Source, asOf time.Time) (*Snapshot, error) {
	machines, err := src.ListMachines(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load machines: %w", err)
	}
	relations, err := src.ListRelations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load relations: %w", err)
	}
	speeds, err := src.ListSpeeds(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load speeds: %w", err)
	}
	shifts, err := src.ListShiftWindows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load shift windows: %w", err)
	}
	maintenance, err := src.ListMaintenanceWindows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load maintenance windows: %w", err)
	}

	return Build(asOf, machines, relations, speeds, shifts, maintenance), nil
}
