package planner

import (
	"context"

	"github.com/ecollecte/wastefleet/core/model"
)

// OptimizerVehicle is one fleet entry of an optimization request. Start and
// end are both anchored at the depot.
type OptimizerVehicle struct {
	ID       int            `json:"id"`
	Start    model.GeoPoint `json:"start"`
	End      model.GeoPoint `json:"end"`
	Capacity []int          `json:"capacity"`
}

// OptimizerJob is one collection stop to be sequenced by the optimizer.
type OptimizerJob struct {
	ID       int            `json:"id"`
	Location model.GeoPoint `json:"location"`
	Service  int            `json:"service"`
	Amount   []int          `json:"amount"`
}

// OptimizerOptions mirrors the solver options. G requests route geometry.
type OptimizerOptions struct {
	G bool `json:"g"`
}

// OptimizerRequest is the full problem statement sent to the solver.
type OptimizerRequest struct {
	Vehicles []OptimizerVehicle `json:"vehicles"`
	Jobs     []OptimizerJob     `json:"jobs"`
	Options  OptimizerOptions   `json:"options"`
}

// OptimizerStep is one stop of a returned route. Type is "start", "job" or
// "end"; Job is only set for job steps.
type OptimizerStep struct {
	Type     string         `json:"type"`
	Job      int            `json:"job,omitempty"`
	Location model.GeoPoint `json:"location"`
	Arrival  int64          `json:"arrival"`
	Duration int64          `json:"duration"`
	Distance float64        `json:"distance"`
}

// OptimizerRoute is one optimized vehicle route.
type OptimizerRoute struct {
	Vehicle  int             `json:"vehicle"`
	Cost     float64         `json:"cost"`
	Duration int64           `json:"duration"`
	Distance float64         `json:"distance"`
	Geometry string          `json:"geometry,omitempty"`
	Steps    []OptimizerStep `json:"steps"`
}

// OptimizerSolution is the solver response. Code zero means success.
type OptimizerSolution struct {
	Code   int              `json:"code"`
	Error  string           `json:"error,omitempty"`
	Routes []OptimizerRoute `json:"routes"`
}

// Optimizer solves the vehicle-routing problem. Implementations must honor
// the context deadline; any transport failure or non-zero solution code is
// reported as an error ("optimizer unavailable for this request").
type Optimizer interface {
	Optimize(ctx context.Context, req OptimizerRequest) (OptimizerSolution, error)
}
