package assign

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecollecte/wastefleet/core/model"
	"github.com/ecollecte/wastefleet/core/store"
	"github.com/ecollecte/wastefleet/infra/logger"
	"github.com/ecollecte/wastefleet/infra/store/memory"
)

var shiftStart = time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC)

type fixture struct {
	tournees    *memory.TourneeStore
	vehicles    *memory.VehicleStore
	employees   *memory.EmployeeStore
	assignments *memory.AssignmentStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{
		tournees: memory.NewTourneeStore(),
		vehicles: memory.NewVehicleStore(
			model.Vehicle{ID: "v1", Status: model.VehicleAvailable, CapacityVolumeL: 5000, Fuel: model.FuelDiesel},
		),
		employees: memory.NewEmployeeStore(
			model.Employee{ID: "e1", Name: "Ana", Status: model.EmployeeFree},
			model.Employee{ID: "e2", Name: "Ben", Status: model.EmployeeFree},
			model.Employee{ID: "e3", Name: "Cal", Status: model.EmployeeFree},
			model.Employee{ID: "e4", Name: "Dee", Status: model.EmployeeFree},
		),
		assignments: memory.NewAssignmentStore(),
	}
}

func (f *fixture) engine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	e, err := New(cfg, f.tournees, f.vehicles, f.employees, f.assignments, logger.NopLogger{})
	require.NoError(t, err)
	e.SetClock(func() time.Time { return shiftStart })
	return e
}

func (f *fixture) addPlanned(t *testing.T, id string, km float64, vehicleID string) {
	t.Helper()
	require.NoError(t, f.tournees.SaveAll(context.Background(), []model.Tournee{{
		ID:               id,
		Category:         model.CategoryPlastic,
		Status:           model.TourneePlanned,
		PlannedKm:        km,
		PlannedVehicleID: vehicleID,
		Steps:            []model.RouteStep{{Order: 0, Status: model.StepPending, CollectionPointID: "cp1"}},
	}}))
}

func TestAutoAssignSuccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addPlanned(t, "t1", 25, "v1")
	e := f.engine(t, Config{})

	batch, err := e.AutoAssign(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, batch, 3)

	// Stable id order picks e1..e3.
	assert.Equal(t, "e1", batch[0].EmployeeID)
	assert.Equal(t, "e2", batch[1].EmployeeID)
	assert.Equal(t, "e3", batch[2].EmployeeID)
	for _, a := range batch {
		assert.Equal(t, "t1", a.TourneeID)
		assert.Equal(t, "v1", a.VehicleID)
		assert.Equal(t, shiftStart, a.ShiftStart)
		// 25 km at 25 km/h is a one hour shift.
		assert.Equal(t, shiftStart.Add(time.Hour), a.ShiftEnd)
	}

	tour, err := f.tournees.ByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, model.TourneeInProgress, tour.Status)
	require.NotNil(t, tour.StartedAt)
	assert.Equal(t, shiftStart, *tour.StartedAt)

	emps, err := f.employees.All(ctx)
	require.NoError(t, err)
	statuses := map[string]model.EmployeeStatus{}
	for _, emp := range emps {
		statuses[emp.ID] = emp.Status
	}
	assert.Equal(t, model.EmployeeBusy, statuses["e1"])
	assert.Equal(t, model.EmployeeBusy, statuses["e3"])
	assert.Equal(t, model.EmployeeFree, statuses["e4"])
}

func TestAutoAssignDefaultDistanceFallback(t *testing.T) {
	f := newFixture(t)
	f.addPlanned(t, "t1", 0, "v1")
	e := f.engine(t, Config{})

	batch, err := e.AutoAssign(context.Background(), "t1")
	require.NoError(t, err)
	// 10 km fallback at 25 km/h is 24 minutes.
	assert.Equal(t, shiftStart.Add(24*time.Minute), batch[0].ShiftEnd)
}

func TestAutoAssignRejectsNonPlanned(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.tournees.SaveAll(ctx, []model.Tournee{{
		ID: "t1", Category: model.CategoryPlastic, Status: model.TourneeInProgress,
	}}))
	e := f.engine(t, Config{})

	_, err := e.AutoAssign(ctx, "t1")
	assert.ErrorIs(t, err, ErrNotPlanned)
}

func TestAutoAssignUnknownTournee(t *testing.T) {
	f := newFixture(t)
	e := f.engine(t, Config{})
	_, err := e.AutoAssign(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAutoAssignNotEnoughCrewLeavesNoState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addPlanned(t, "t1", 25, "v1")
	e := f.engine(t, Config{CrewSize: 5})

	_, err := e.AutoAssign(ctx, "t1")
	assert.ErrorIs(t, err, ErrNotEnoughCrew)

	// Nothing was written.
	all, aerr := f.assignments.All(ctx)
	require.NoError(t, aerr)
	assert.Empty(t, all)
	tour, terr := f.tournees.ByID(ctx, "t1")
	require.NoError(t, terr)
	assert.Equal(t, model.TourneePlanned, tour.Status)
	emps, eerr := f.employees.All(ctx)
	require.NoError(t, eerr)
	for _, emp := range emps {
		assert.Equal(t, model.EmployeeFree, emp.Status)
	}
}

func TestAutoAssignExcludesOverlappingCrew(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addPlanned(t, "t1", 25, "v1")
	// e1 already works a window overlapping the new one-hour shift.
	require.NoError(t, f.assignments.CreateBatch(ctx, []model.TourneeAssignment{{
		ID:         "a0",
		TourneeID:  "t0",
		EmployeeID: "e1",
		VehicleID:  "v0",
		ShiftStart: shiftStart.Add(-30 * time.Minute),
		ShiftEnd:   shiftStart.Add(30 * time.Minute),
	}}))
	e := f.engine(t, Config{})

	batch, err := e.AutoAssign(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, batch, 3)
	crew := []string{batch[0].EmployeeID, batch[1].EmployeeID, batch[2].EmployeeID}
	assert.NotContains(t, crew, "e1")
	assert.ElementsMatch(t, []string{"e2", "e3", "e4"}, crew)
}

func TestAutoAssignAdjacentWindowDoesNotBlock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addPlanned(t, "t1", 25, "v1")
	// A shift ending exactly at the new start does not overlap a half-open
	// window.
	require.NoError(t, f.assignments.CreateBatch(ctx, []model.TourneeAssignment{{
		ID:         "a0",
		TourneeID:  "t0",
		EmployeeID: "e1",
		VehicleID:  "v0",
		ShiftStart: shiftStart.Add(-2 * time.Hour),
		ShiftEnd:   shiftStart,
	}}))
	e := f.engine(t, Config{})

	batch, err := e.AutoAssign(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "e1", batch[0].EmployeeID)
}

func TestAutoAssignFallsBackToAvailableVehicle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addPlanned(t, "t1", 25, "")
	e := f.engine(t, Config{})

	batch, err := e.AutoAssign(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "v1", batch[0].VehicleID)
}

func TestAutoAssignNoVehicleAtAll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.vehicles = memory.NewVehicleStore(
		model.Vehicle{ID: "v1", Status: model.VehicleMaintenance, CapacityVolumeL: 5000},
	)
	f.addPlanned(t, "t1", 25, "")
	e := f.engine(t, Config{})

	_, err := e.AutoAssign(ctx, "t1")
	assert.ErrorIs(t, err, ErrNoVehicle)
}
