// Package tournee covers the lifecycle of collection rounds after planning:
// step servicing, completion and resource release, and CO2 reporting.
package tournee

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ecollecte/wastefleet/core/logger"
	"github.com/ecollecte/wastefleet/core/model"
	"github.com/ecollecte/wastefleet/core/store"
)

// servicedThresholdPct is the fill level below which a stop counts as
// serviced once fresh readings arrive.
const servicedThresholdPct = 10.0

// Service orchestrates tournee state against the persistence collaborators.
type Service struct {
	tournees    store.TourneeStore
	vehicles    store.VehicleStore
	employees   store.EmployeeStore
	assignments store.AssignmentStore
	points      store.CollectionPointStore
	readings    store.ReadingStore
	log         logger.Logger
	now         func() time.Time
}

// NewService creates a tournee lifecycle service.
func NewService(tournees store.TourneeStore, vehicles store.VehicleStore, employees store.EmployeeStore,
	assignments store.AssignmentStore, points store.CollectionPointStore, readings store.ReadingStore,
	log logger.Logger) (*Service, error) {
	if tournees == nil || vehicles == nil || employees == nil || assignments == nil || points == nil || readings == nil {
		return nil, fmt.Errorf("tournee: nil collaborator provided to NewService")
	}
	return &Service{
		tournees:    tournees,
		vehicles:    vehicles,
		employees:   employees,
		assignments: assignments,
		points:      points,
		readings:    readings,
		log:         log,
		now:         time.Now,
	}, nil
}

// SetClock overrides the time source. Intended for tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Complete marks the tournee COMPLETED, clears the vehicle busy flag and
// frees crew members that hold no other active assignment. Calling it on a
// tournee already in a terminal state is a no-op.
func (s *Service) Complete(ctx context.Context, tourneeID string) error {
	tournee, err := s.tournees.ByID(ctx, tourneeID)
	if err != nil {
		return err
	}
	if tournee.Status.Terminal() {
		return nil
	}

	finished := s.now()
	tournee.Status = model.TourneeCompleted
	tournee.FinishedAt = &finished
	if err := s.tournees.Update(ctx, tournee); err != nil {
		return err
	}

	if tournee.PlannedVehicleID != "" {
		if err := s.vehicles.Release(ctx, tournee.PlannedVehicleID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
	}
	return s.freeIdleCrew(ctx, tournee)
}

// freeIdleCrew flips crew members back to FREE unless they are still
// assigned to another PLANNED or IN_PROGRESS tournee.
func (s *Service) freeIdleCrew(ctx context.Context, tournee model.Tournee) error {
	assignments, err := s.assignments.ByTournee(ctx, tournee.ID)
	if err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(assignments))
	for _, a := range assignments {
		if _, dup := seen[a.EmployeeID]; dup {
			continue
		}
		seen[a.EmployeeID] = struct{}{}

		stillBusy, err := s.hasOtherActiveAssignment(ctx, a.EmployeeID, tournee.ID)
		if err != nil {
			return err
		}
		if !stillBusy {
			if err := s.employees.SetStatus(ctx, a.EmployeeID, model.EmployeeFree); err != nil && !errors.Is(err, store.ErrNotFound) {
				return err
			}
		}
	}
	return nil
}

func (s *Service) hasOtherActiveAssignment(ctx context.Context, employeeID, excludeTourneeID string) (bool, error) {
	assignments, err := s.assignments.ByEmployee(ctx, employeeID)
	if err != nil {
		return false, err
	}
	for _, a := range assignments {
		if a.TourneeID == excludeTourneeID {
			continue
		}
		t, err := s.tournees.ByID(ctx, a.TourneeID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return false, err
		}
		if t.Status == model.TourneePlanned || t.Status == model.TourneeInProgress {
			return true, nil
		}
	}
	return false, nil
}

// ByStatus lists tournees in the given status. For IN_PROGRESS tournees the
// step statuses are refreshed against the latest fill readings first, so
// serviced stops show up without waiting for an explicit completion call.
func (s *Service) ByStatus(ctx context.Context, status model.TourneeStatus) ([]model.Tournee, error) {
	tournees, err := s.tournees.ByStatus(ctx, status)
	if err != nil {
		return nil, err
	}
	if status != model.TourneeInProgress {
		return tournees, nil
	}
	for i := range tournees {
		changed, err := s.refreshStepStatuses(ctx, &tournees[i])
		if err != nil {
			return nil, err
		}
		if changed {
			if err := s.tournees.Update(ctx, tournees[i]); err != nil {
				return nil, err
			}
		}
	}
	return tournees, nil
}

// refreshStepStatuses marks PENDING steps SERVICED when every active bin of
// the tournee's category at the stop reads below the serviced threshold. A
// stop with no readings at all is left untouched.
func (s *Service) refreshStepStatuses(ctx context.Context, tournee *model.Tournee) (bool, error) {
	changed := false
	for i := range tournee.Steps {
		step := &tournee.Steps[i]
		if step.Status != model.StepPending || step.CollectionPointID == "" {
			continue
		}
		serviced, err := s.pointServiced(ctx, step.CollectionPointID, tournee.Category)
		if err != nil {
			return changed, err
		}
		if serviced {
			step.Status = model.StepServiced
			changed = true
		}
	}
	return changed, nil
}

func (s *Service) pointServiced(ctx context.Context, pointID string, cat model.TrashCategory) (bool, error) {
	points, err := s.points.ByIDs(ctx, []string{pointID})
	if err != nil {
		return false, err
	}
	if len(points) == 0 {
		return false, nil
	}

	hasReading := false
	for _, bin := range points[0].Bins {
		if !bin.Active || bin.Category != cat {
			continue
		}
		reading, err := s.readings.LatestReading(ctx, bin.ID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return false, err
		}
		hasReading = true
		if reading.FillPct >= servicedThresholdPct {
			return false, nil
		}
	}
	return hasReading, nil
}

// TotalCO2SinceDays sums the planned CO2 of tournees completed over the last
// n days, in grams.
func (s *Service) TotalCO2SinceDays(ctx context.Context, days int) (float64, error) {
	now := s.now()
	from := now.AddDate(0, 0, -days)
	completed, err := s.tournees.CompletedBetween(ctx, from, now)
	if err != nil {
		return 0, err
	}
	total := 0.0
	for _, t := range completed {
		total += t.PlannedCO2Grams
	}
	return total, nil
}
