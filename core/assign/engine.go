// Package assign commits a vehicle and a fixed-size crew to a planned
// tournee and opens its shift window.
package assign

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ecollecte/wastefleet/core/logger"
	"github.com/ecollecte/wastefleet/core/model"
	"github.com/ecollecte/wastefleet/core/store"
)

var (
	// ErrNotPlanned is returned when the tournee is not in PLANNED state.
	ErrNotPlanned = errors.New("assign: only planned tournees can be assigned")
	// ErrNoVehicle is returned when no vehicle can be resolved.
	ErrNoVehicle = errors.New("assign: no available vehicle")
	// ErrNotEnoughCrew is returned when fewer employees than the crew size
	// are free for the shift window.
	ErrNotEnoughCrew = errors.New("assign: not enough available employees")
)

// Config defines crew assignment parameters.
type Config struct {
	CrewSize int `json:"crew_size"`
	// AvgSpeedKmh converts planned distance into shift duration.
	AvgSpeedKmh float64 `json:"avg_speed_kmh"`
	// DefaultDistanceKm replaces a non-positive planned distance so the
	// shift never has zero or negative duration.
	DefaultDistanceKm float64 `json:"default_distance_km"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.CrewSize <= 0 {
		c.CrewSize = 3
	}
	if c.AvgSpeedKmh <= 0 {
		c.AvgSpeedKmh = 25
	}
	if c.DefaultDistanceKm <= 0 {
		c.DefaultDistanceKm = 10
	}
}

// Engine performs crew and vehicle auto-assignment.
type Engine struct {
	cfg         Config
	tournees    store.TourneeStore
	vehicles    store.VehicleStore
	employees   store.EmployeeStore
	assignments store.AssignmentStore
	log         logger.Logger
	now         func() time.Time
}

// New creates an assignment engine.
func New(cfg Config, tournees store.TourneeStore, vehicles store.VehicleStore,
	employees store.EmployeeStore, assignments store.AssignmentStore, log logger.Logger) (*Engine, error) {
	if tournees == nil || vehicles == nil || employees == nil || assignments == nil {
		return nil, fmt.Errorf("assign: nil collaborator provided to New")
	}
	cfg.SetDefaults()
	return &Engine{
		cfg:         cfg,
		tournees:    tournees,
		vehicles:    vehicles,
		employees:   employees,
		assignments: assignments,
		log:         log,
		now:         time.Now,
	}, nil
}

// SetClock overrides the time source. Intended for tests.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// AutoAssign selects a vehicle and a crew for the tournee, persists one
// assignment per crew member as a single batch and advances the tournee to
// IN_PROGRESS. Every precondition is verified before the first write, so a
// failure leaves no partial state behind.
func (e *Engine) AutoAssign(ctx context.Context, tourneeID string) ([]model.TourneeAssignment, error) {
	tournee, err := e.tournees.ByID(ctx, tourneeID)
	if err != nil {
		return nil, err
	}
	if tournee.Status != model.TourneePlanned {
		return nil, fmt.Errorf("%w: tournee %s is %s", ErrNotPlanned, tourneeID, tournee.Status)
	}

	shiftStart := e.now()
	shiftEnd := shiftStart.Add(e.estimateDuration(tournee))

	vehicleID, err := e.resolveVehicle(ctx, tournee)
	if err != nil {
		return nil, err
	}

	crew, err := e.pickCrew(ctx, shiftStart, shiftEnd)
	if err != nil {
		return nil, err
	}

	batch := make([]model.TourneeAssignment, 0, len(crew))
	for _, emp := range crew {
		batch = append(batch, model.TourneeAssignment{
			ID:         uuid.NewString(),
			TourneeID:  tournee.ID,
			EmployeeID: emp.ID,
			VehicleID:  vehicleID,
			ShiftStart: shiftStart,
			ShiftEnd:   shiftEnd,
		})
	}
	if err := e.assignments.CreateBatch(ctx, batch); err != nil {
		return nil, err
	}
	for _, emp := range crew {
		if err := e.employees.SetStatus(ctx, emp.ID, model.EmployeeBusy); err != nil {
			return nil, err
		}
	}

	tournee.Status = model.TourneeInProgress
	tournee.StartedAt = &shiftStart
	if err := e.tournees.Update(ctx, tournee); err != nil {
		return nil, err
	}

	e.log.Infof("assigned crew of %d and vehicle %s to tournee %s", len(crew), vehicleID, tourneeID)
	return batch, nil
}

// estimateDuration derives the shift length from the planned distance at the
// configured average speed.
func (e *Engine) estimateDuration(t model.Tournee) time.Duration {
	km := t.PlannedKm
	if km <= 0 {
		km = e.cfg.DefaultDistanceKm
	}
	hours := km / e.cfg.AvgSpeedKmh
	return time.Duration(hours * float64(time.Hour))
}

// resolveVehicle prefers the vehicle committed at planning time and falls
// back to the first AVAILABLE vehicle otherwise.
func (e *Engine) resolveVehicle(ctx context.Context, t model.Tournee) (string, error) {
	if t.PlannedVehicleID != "" {
		return t.PlannedVehicleID, nil
	}
	all, err := e.vehicles.All(ctx)
	if err != nil {
		return "", err
	}
	for _, v := range all {
		if v.Status == model.VehicleAvailable {
			return v.ID, nil
		}
	}
	return "", ErrNoVehicle
}

// pickCrew selects the first CrewSize employees, in stable id order, that
// are logically free and have no assignment overlapping the shift window.
// No skill matching is performed.
func (e *Engine) pickCrew(ctx context.Context, shiftStart, shiftEnd time.Time) ([]model.Employee, error) {
	existing, err := e.assignments.All(ctx)
	if err != nil {
		return nil, err
	}
	busy := make(map[string]struct{})
	for _, a := range existing {
		if a.OverlapsWindow(shiftStart, shiftEnd) {
			busy[a.EmployeeID] = struct{}{}
		}
	}

	all, err := e.employees.All(ctx)
	if err != nil {
		return nil, err
	}
	var candidates []model.Employee
	for _, emp := range all {
		if _, taken := busy[emp.ID]; taken {
			continue
		}
		if emp.AvailableForShift() {
			candidates = append(candidates, emp)
		}
	}
	if len(candidates) < e.cfg.CrewSize {
		return nil, fmt.Errorf("%w: need %d, have %d", ErrNotEnoughCrew, e.cfg.CrewSize, len(candidates))
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })
	return candidates[:e.cfg.CrewSize], nil
}
