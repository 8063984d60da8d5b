package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ecollecte/wastefleet/core/model"
	"github.com/ecollecte/wastefleet/core/store"
)

type vehicleRow struct {
	ID              string  `db:"id"`
	Plate           string  `db:"plate"`
	Status          string  `db:"status"`
	CapacityVolumeL float64 `db:"capacity_volume_l"`
	Fuel            string  `db:"fuel"`
	Busy            bool    `db:"busy"`
}

func (r vehicleRow) toModel() model.Vehicle {
	return model.Vehicle{
		ID:              r.ID,
		Plate:           r.Plate,
		Status:          model.VehicleStatus(r.Status),
		CapacityVolumeL: r.CapacityVolumeL,
		Fuel:            model.FuelType(r.Fuel),
		Busy:            r.Busy,
	}
}

// VehicleStore manages the fleet in PostgreSQL. Claim relies on a
// conditional UPDATE so concurrent planners cannot both take the same
// vehicle.
type VehicleStore struct {
	db *sqlx.DB
}

// NewVehicleStore creates a VehicleStore.
func NewVehicleStore(db *sqlx.DB) *VehicleStore { return &VehicleStore{db: db} }

const vehicleColumns = `id, plate, status, capacity_volume_l, fuel, busy`

func (s *VehicleStore) All(ctx context.Context) ([]model.Vehicle, error) {
	var rows []vehicleRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT `+vehicleColumns+` FROM vehicles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select vehicles: %w", err)
	}
	return vehiclesToModel(rows), nil
}

func (s *VehicleStore) ByID(ctx context.Context, id string) (model.Vehicle, error) {
	var row vehicleRow
	err := s.db.GetContext(ctx, &row,
		`SELECT `+vehicleColumns+` FROM vehicles WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Vehicle{}, store.ErrNotFound
	}
	if err != nil {
		return model.Vehicle{}, fmt.Errorf("select vehicle: %w", err)
	}
	return row.toModel(), nil
}

func (s *VehicleStore) Eligible(ctx context.Context) ([]model.Vehicle, error) {
	var rows []vehicleRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT `+vehicleColumns+` FROM vehicles
		 WHERE status = 'AVAILABLE' AND NOT busy AND capacity_volume_l > 0
		 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select eligible vehicles: %w", err)
	}
	return vehiclesToModel(rows), nil
}

func (s *VehicleStore) Claim(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE vehicles SET busy = TRUE WHERE id = $1 AND NOT busy`, id)
	if err != nil {
		return false, fmt.Errorf("claim vehicle: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim vehicle: %w", err)
	}
	return n == 1, nil
}

func (s *VehicleStore) Release(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE vehicles SET busy = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("release vehicle: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func vehiclesToModel(rows []vehicleRow) []model.Vehicle {
	out := make([]model.Vehicle, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out
}

// EmployeeStore manages crew members in PostgreSQL.
type EmployeeStore struct {
	db *sqlx.DB
}

// NewEmployeeStore creates an EmployeeStore.
func NewEmployeeStore(db *sqlx.DB) *EmployeeStore { return &EmployeeStore{db: db} }

func (s *EmployeeStore) All(ctx context.Context) ([]model.Employee, error) {
	var rows []struct {
		ID     string `db:"id"`
		Name   string `db:"name"`
		Status string `db:"status"`
	}
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, name, status FROM employees ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select employees: %w", err)
	}
	out := make([]model.Employee, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.Employee{ID: r.ID, Name: r.Name, Status: model.EmployeeStatus(r.Status)})
	}
	return out, nil
}

func (s *EmployeeStore) SetStatus(ctx context.Context, id string, status model.EmployeeStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE employees SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("update employee status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}
