// Package store declares the persistence collaborators the dispatch core
// depends on. Implementations live under infra/store.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ecollecte/wastefleet/core/model"
)

// ErrNotFound is returned when a referenced entity does not exist.
var ErrNotFound = errors.New("store: not found")

// BinStore exposes bin metadata.
type BinStore interface {
	// ActiveBins returns every bin currently in service.
	ActiveBins(ctx context.Context) ([]model.Bin, error)
}

// ReadingStore holds sensor telemetry.
type ReadingStore interface {
	// LatestReading returns the most recent reading for the bin, or
	// ErrNotFound if the bin never reported.
	LatestReading(ctx context.Context, binID string) (model.BinReading, error)
	Append(ctx context.Context, r model.BinReading) error
}

// CollectionPointStore exposes collection sites.
type CollectionPointStore interface {
	All(ctx context.Context) ([]model.CollectionPoint, error)
	ByIDs(ctx context.Context, ids []string) ([]model.CollectionPoint, error)
}

// DepotStore locates the depot anchoring every route.
type DepotStore interface {
	// MainDepot returns the main depot or ErrNotFound if none is configured.
	MainDepot(ctx context.Context) (model.Depot, error)
}

// VehicleStore manages the fleet. Claim and Release are the only writers of
// the busy flag inside the core.
type VehicleStore interface {
	All(ctx context.Context) ([]model.Vehicle, error)
	ByID(ctx context.Context, id string) (model.Vehicle, error)
	// Eligible returns vehicles with status AVAILABLE and busy=false.
	Eligible(ctx context.Context) ([]model.Vehicle, error)
	// Claim marks the vehicle busy only if it is not already busy. It
	// returns false when the vehicle was claimed concurrently, so two
	// planners racing on the same polling window can never double-book.
	Claim(ctx context.Context, id string) (bool, error)
	// Release clears the busy flag.
	Release(ctx context.Context, id string) error
}

// EmployeeStore exposes crew members.
type EmployeeStore interface {
	All(ctx context.Context) ([]model.Employee, error)
	SetStatus(ctx context.Context, id string, status model.EmployeeStatus) error
}

// TourneeStore persists collection rounds.
type TourneeStore interface {
	ByID(ctx context.Context, id string) (model.Tournee, error)
	ByStatus(ctx context.Context, status model.TourneeStatus) ([]model.Tournee, error)
	ByCategoryAndStatus(ctx context.Context, cat model.TrashCategory, status model.TourneeStatus) ([]model.Tournee, error)
	CompletedBetween(ctx context.Context, from, to time.Time) ([]model.Tournee, error)
	SaveAll(ctx context.Context, tournees []model.Tournee) error
	Update(ctx context.Context, t model.Tournee) error
}

// AssignmentStore persists crew assignments.
type AssignmentStore interface {
	All(ctx context.Context) ([]model.TourneeAssignment, error)
	ByTournee(ctx context.Context, tourneeID string) ([]model.TourneeAssignment, error)
	ByEmployee(ctx context.Context, employeeID string) ([]model.TourneeAssignment, error)
	// CreateBatch persists all assignments or none.
	CreateBatch(ctx context.Context, batch []model.TourneeAssignment) error
}

// ConfigStore persists the automation singleton.
type ConfigStore interface {
	// Get returns the singleton config or ErrNotFound before first use.
	Get(ctx context.Context) (model.AutomationConfig, error)
	Put(ctx context.Context, cfg model.AutomationConfig) error
}
