package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ecollecte/wastefleet/core/model"
	"github.com/ecollecte/wastefleet/core/store"
)

type tourneeRow struct {
	ID               string         `db:"id"`
	Category         string         `db:"category"`
	Status           string         `db:"status"`
	PlannedKm        float64        `db:"planned_km"`
	PlannedCO2Grams  float64        `db:"planned_co2_g"`
	PlannedVehicleID sql.NullString `db:"planned_vehicle_id"`
	StartedAt        sql.NullTime   `db:"started_at"`
	FinishedAt       sql.NullTime   `db:"finished_at"`
	Geometry         string         `db:"geometry"`
}

func (r tourneeRow) toModel() model.Tournee {
	t := model.Tournee{
		ID:              r.ID,
		Category:        model.TrashCategory(r.Category),
		Status:          model.TourneeStatus(r.Status),
		PlannedKm:       r.PlannedKm,
		PlannedCO2Grams: r.PlannedCO2Grams,
		Geometry:        r.Geometry,
	}
	if r.PlannedVehicleID.Valid {
		t.PlannedVehicleID = r.PlannedVehicleID.String
	}
	if r.StartedAt.Valid {
		v := r.StartedAt.Time
		t.StartedAt = &v
	}
	if r.FinishedAt.Valid {
		v := r.FinishedAt.Time
		t.FinishedAt = &v
	}
	return t
}

type stepRow struct {
	TourneeID         string  `db:"tournee_id"`
	Order             int     `db:"step_order"`
	Status            string  `db:"status"`
	CollectionPointID string  `db:"collection_point_id"`
	PredictedFillPct  float64 `db:"predicted_fill_pct"`
	Note              string  `db:"note"`
}

const tourneeColumns = `id, category, status, planned_km, planned_co2_g, planned_vehicle_id, started_at, finished_at, geometry`

// TourneeStore persists collection rounds and their steps in PostgreSQL.
type TourneeStore struct {
	db *sqlx.DB
}

// NewTourneeStore creates a TourneeStore.
func NewTourneeStore(db *sqlx.DB) *TourneeStore { return &TourneeStore{db: db} }

func (s *TourneeStore) ByID(ctx context.Context, id string) (model.Tournee, error) {
	var row tourneeRow
	err := s.db.GetContext(ctx, &row,
		`SELECT `+tourneeColumns+` FROM tournees WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Tournee{}, store.ErrNotFound
	}
	if err != nil {
		return model.Tournee{}, fmt.Errorf("select tournee: %w", err)
	}
	tours, err := s.attachSteps(ctx, []tourneeRow{row})
	if err != nil {
		return model.Tournee{}, err
	}
	return tours[0], nil
}

func (s *TourneeStore) ByStatus(ctx context.Context, status model.TourneeStatus) ([]model.Tournee, error) {
	var rows []tourneeRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT `+tourneeColumns+` FROM tournees WHERE status = $1 ORDER BY id`, string(status))
	if err != nil {
		return nil, fmt.Errorf("select tournees by status: %w", err)
	}
	return s.attachSteps(ctx, rows)
}

func (s *TourneeStore) ByCategoryAndStatus(ctx context.Context, cat model.TrashCategory, status model.TourneeStatus) ([]model.Tournee, error) {
	var rows []tourneeRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT `+tourneeColumns+` FROM tournees
		 WHERE category = $1 AND status = $2 ORDER BY id`, string(cat), string(status))
	if err != nil {
		return nil, fmt.Errorf("select tournees by category: %w", err)
	}
	return s.attachSteps(ctx, rows)
}

func (s *TourneeStore) CompletedBetween(ctx context.Context, from, to time.Time) ([]model.Tournee, error) {
	var rows []tourneeRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT `+tourneeColumns+` FROM tournees
		 WHERE status = 'COMPLETED' AND finished_at >= $1 AND finished_at < $2
		 ORDER BY id`, from, to)
	if err != nil {
		return nil, fmt.Errorf("select completed tournees: %w", err)
	}
	return s.attachSteps(ctx, rows)
}

func (s *TourneeStore) SaveAll(ctx context.Context, tournees []model.Tournee) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save tournees: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, t := range tournees {
		if err := upsertTournee(ctx, tx, t); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save tournees: %w", err)
	}
	return nil
}

func (s *TourneeStore) Update(ctx context.Context, t model.Tournee) error {
	var exists bool
	if err := s.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM tournees WHERE id = $1)`, t.ID); err != nil {
		return fmt.Errorf("check tournee: %w", err)
	}
	if !exists {
		return store.ErrNotFound
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update tournee: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := upsertTournee(ctx, tx, t); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update tournee: %w", err)
	}
	return nil
}

func upsertTournee(ctx context.Context, tx *sqlx.Tx, t model.Tournee) error {
	var vehicleID any
	if t.PlannedVehicleID != "" {
		vehicleID = t.PlannedVehicleID
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO tournees (id, category, status, planned_km, planned_co2_g, planned_vehicle_id, started_at, finished_at, geometry)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET
			category = EXCLUDED.category,
			status = EXCLUDED.status,
			planned_km = EXCLUDED.planned_km,
			planned_co2_g = EXCLUDED.planned_co2_g,
			planned_vehicle_id = EXCLUDED.planned_vehicle_id,
			started_at = EXCLUDED.started_at,
			finished_at = EXCLUDED.finished_at,
			geometry = EXCLUDED.geometry`,
		t.ID, string(t.Category), string(t.Status), t.PlannedKm, t.PlannedCO2Grams,
		vehicleID, t.StartedAt, t.FinishedAt, t.Geometry)
	if err != nil {
		return fmt.Errorf("upsert tournee %s: %w", t.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM tournee_steps WHERE tournee_id = $1`, t.ID); err != nil {
		return fmt.Errorf("replace steps for %s: %w", t.ID, err)
	}
	for _, step := range t.Steps {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO tournee_steps (tournee_id, step_order, status, collection_point_id, predicted_fill_pct, note)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			t.ID, step.Order, string(step.Status), step.CollectionPointID, step.PredictedFillPct, step.Note)
		if err != nil {
			return fmt.Errorf("insert step for %s: %w", t.ID, err)
		}
	}
	return nil
}

func (s *TourneeStore) attachSteps(ctx context.Context, rows []tourneeRow) ([]model.Tournee, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	var steps []stepRow
	err := s.db.SelectContext(ctx, &steps,
		`SELECT tournee_id, step_order, status, collection_point_id, predicted_fill_pct, note
		 FROM tournee_steps WHERE tournee_id = ANY($1)
		 ORDER BY tournee_id, step_order`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("select tournee steps: %w", err)
	}
	byTournee := make(map[string][]model.RouteStep, len(rows))
	for _, st := range steps {
		byTournee[st.TourneeID] = append(byTournee[st.TourneeID], model.RouteStep{
			Order:             st.Order,
			Status:            model.StepStatus(st.Status),
			CollectionPointID: st.CollectionPointID,
			PredictedFillPct:  st.PredictedFillPct,
			Note:              st.Note,
		})
	}

	out := make([]model.Tournee, 0, len(rows))
	for _, r := range rows {
		t := r.toModel()
		t.Steps = byTournee[r.ID]
		out = append(out, t)
	}
	return out, nil
}

type assignmentRow struct {
	ID         string    `db:"id"`
	TourneeID  string    `db:"tournee_id"`
	EmployeeID string    `db:"employee_id"`
	VehicleID  string    `db:"vehicle_id"`
	ShiftStart time.Time `db:"shift_start"`
	ShiftEnd   time.Time `db:"shift_end"`
}

// AssignmentStore persists crew assignments in PostgreSQL.
type AssignmentStore struct {
	db *sqlx.DB
}

// NewAssignmentStore creates an AssignmentStore.
func NewAssignmentStore(db *sqlx.DB) *AssignmentStore { return &AssignmentStore{db: db} }

const assignmentColumns = `id, tournee_id, employee_id, vehicle_id, shift_start, shift_end`

func (s *AssignmentStore) All(ctx context.Context) ([]model.TourneeAssignment, error) {
	return s.selectWhere(ctx, ``, nil)
}

func (s *AssignmentStore) ByTournee(ctx context.Context, tourneeID string) ([]model.TourneeAssignment, error) {
	return s.selectWhere(ctx, `WHERE tournee_id = $1`, []any{tourneeID})
}

func (s *AssignmentStore) ByEmployee(ctx context.Context, employeeID string) ([]model.TourneeAssignment, error) {
	return s.selectWhere(ctx, `WHERE employee_id = $1`, []any{employeeID})
}

func (s *AssignmentStore) CreateBatch(ctx context.Context, batch []model.TourneeAssignment) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create assignments: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, a := range batch {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO tournee_assignments (`+assignmentColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			a.ID, a.TourneeID, a.EmployeeID, a.VehicleID, a.ShiftStart, a.ShiftEnd)
		if err != nil {
			return fmt.Errorf("insert assignment %s: %w", a.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create assignments: %w", err)
	}
	return nil
}

func (s *AssignmentStore) selectWhere(ctx context.Context, where string, args []any) ([]model.TourneeAssignment, error) {
	var rows []assignmentRow
	q := `SELECT ` + assignmentColumns + ` FROM tournee_assignments ` + where + ` ORDER BY id`
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("select assignments: %w", err)
	}
	out := make([]model.TourneeAssignment, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.TourneeAssignment{
			ID:         r.ID,
			TourneeID:  r.TourneeID,
			EmployeeID: r.EmployeeID,
			VehicleID:  r.VehicleID,
			ShiftStart: r.ShiftStart,
			ShiftEnd:   r.ShiftEnd,
		})
	}
	return out, nil
}

// ConfigStore persists the automation singleton in PostgreSQL.
type ConfigStore struct {
	db *sqlx.DB
}

// NewConfigStore creates a ConfigStore.
func NewConfigStore(db *sqlx.DB) *ConfigStore { return &ConfigStore{db: db} }

func (s *ConfigStore) Get(ctx context.Context) (model.AutomationConfig, error) {
	var row struct {
		ID                       string `db:"id"`
		Mode                     string `db:"mode"`
		EmergencyScanIntervalMin int    `db:"emergency_scan_interval_min"`
	}
	err := s.db.GetContext(ctx, &row,
		`SELECT id, mode, emergency_scan_interval_min FROM automation_config LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return model.AutomationConfig{}, store.ErrNotFound
	}
	if err != nil {
		return model.AutomationConfig{}, fmt.Errorf("select automation config: %w", err)
	}
	return model.AutomationConfig{
		ID:                       row.ID,
		Mode:                     model.AutomationMode(row.Mode),
		EmergencyScanIntervalMin: row.EmergencyScanIntervalMin,
	}, nil
}

func (s *ConfigStore) Put(ctx context.Context, cfg model.AutomationConfig) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO automation_config (id, mode, emergency_scan_interval_min)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET
			mode = EXCLUDED.mode,
			emergency_scan_interval_min = EXCLUDED.emergency_scan_interval_min`,
		cfg.ID, string(cfg.Mode), cfg.EmergencyScanIntervalMin)
	if err != nil {
		return fmt.Errorf("upsert automation config: %w", err)
	}
	return nil
}
