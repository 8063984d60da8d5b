package model

import "time"

// TourneeStatus is the lifecycle state of a collection round.
type TourneeStatus string

const (
	TourneePlanned    TourneeStatus = "PLANNED"
	TourneeInProgress TourneeStatus = "IN_PROGRESS"
	TourneeCompleted  TourneeStatus = "COMPLETED"
	TourneeCancelled  TourneeStatus = "CANCELLED"
)

// Terminal reports whether the status admits no further transition.
func (s TourneeStatus) Terminal() bool {
	return s == TourneeCompleted || s == TourneeCancelled
}

// StepStatus is the per-stop state within a tournee.
type StepStatus string

const (
	StepPending  StepStatus = "PENDING"
	StepServiced StepStatus = "SERVICED"
	StepSkipped  StepStatus = "SKIPPED"
)

// RouteStep is one ordered stop of a tournee. It never exists outside its
// parent tournee.
type RouteStep struct {
	Order             int        `json:"order"`
	Status            StepStatus `json:"status"`
	CollectionPointID string     `json:"collection_point_id"`
	PredictedFillPct  float64    `json:"predicted_fill_pct"`
	Note              string     `json:"note,omitempty"`
}

// Tournee is a planned collection round for one vehicle and one category.
type Tournee struct {
	ID               string        `json:"id"`
	Category         TrashCategory `json:"category"`
	Status           TourneeStatus `json:"status"`
	PlannedKm        float64       `json:"planned_km"`
	PlannedCO2Grams  float64       `json:"planned_co2_g"`
	PlannedVehicleID string        `json:"planned_vehicle_id,omitempty"`
	StartedAt        *time.Time    `json:"started_at,omitempty"`
	FinishedAt       *time.Time    `json:"finished_at,omitempty"`
	Steps            []RouteStep   `json:"steps"`
	// Geometry is the encoded path returned by the optimizer, kept opaque.
	Geometry string `json:"geometry,omitempty"`
}

// CoveredPointIDs returns the collection points visited by the tournee.
func (t Tournee) CoveredPointIDs() []string {
	ids := make([]string, 0, len(t.Steps))
	for _, s := range t.Steps {
		if s.CollectionPointID != "" {
			ids = append(ids, s.CollectionPointID)
		}
	}
	return ids
}

// TourneeAssignment commits one employee and a vehicle to a tournee for a
// shift window. Assignments for one tournee are created as a single batch.
type TourneeAssignment struct {
	ID         string    `json:"id"`
	TourneeID  string    `json:"tournee_id"`
	EmployeeID string    `json:"employee_id"`
	VehicleID  string    `json:"vehicle_id"`
	ShiftStart time.Time `json:"shift_start"`
	ShiftEnd   time.Time `json:"shift_end"`
}

// Overlaps reports whether two half-open shift windows [s1,e1) and [s2,e2)
// intersect.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

// OverlapsWindow reports whether the assignment's shift intersects [start, end).
func (a TourneeAssignment) OverlapsWindow(start, end time.Time) bool {
	return Overlaps(a.ShiftStart, a.ShiftEnd, start, end)
}
