// Package planner turns candidate bins into planned tournees by calling the
// external route optimizer and committing a vehicle per returned route.
package planner

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/ecollecte/wastefleet/core/logger"
	"github.com/ecollecte/wastefleet/core/metrics"
	"github.com/ecollecte/wastefleet/core/model"
	"github.com/ecollecte/wastefleet/core/store"
)

// ErrNoVehicle signals that no (AVAILABLE, busy=false) vehicle could be
// committed to the plan.
var ErrNoVehicle = errors.New("planner: no available vehicle")

// Config defines planning parameters loaded from configuration.
type Config struct {
	// BinCapacityL is the assumed bin volume when a bin carries none.
	BinCapacityL float64 `json:"bin_capacity_l"`
	// ServiceSeconds is the estimated service duration per stop.
	ServiceSeconds int `json:"service_seconds"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.BinCapacityL <= 0 {
		c.BinCapacityL = 660
	}
	if c.ServiceSeconds <= 0 {
		c.ServiceSeconds = 300
	}
}

// Planner builds optimization requests from candidate bins and materializes
// solver routes into persisted tournees.
type Planner struct {
	cfg       Config
	points    store.CollectionPointStore
	readings  store.ReadingStore
	vehicles  store.VehicleStore
	tournees  store.TourneeStore
	depots    store.DepotStore
	optimizer Optimizer
	sink      metrics.MetricsSink
	log       logger.Logger
}

// New creates a Planner. The metrics sink may be nil.
func New(cfg Config, points store.CollectionPointStore, readings store.ReadingStore,
	vehicles store.VehicleStore, tournees store.TourneeStore, depots store.DepotStore,
	optimizer Optimizer, sink metrics.MetricsSink, log logger.Logger) (*Planner, error) {
	if points == nil || readings == nil || vehicles == nil || tournees == nil || depots == nil || optimizer == nil {
		return nil, fmt.Errorf("planner: nil collaborator provided to New")
	}
	cfg.SetDefaults()
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Planner{
		cfg:       cfg,
		points:    points,
		readings:  readings,
		vehicles:  vehicles,
		tournees:  tournees,
		depots:    depots,
		optimizer: optimizer,
		sink:      sink,
		log:       log,
	}, nil
}

// PlanCategory plans tournees for every active bin of the category whose
// latest fill is at or above the threshold, across all collection points.
func (p *Planner) PlanCategory(ctx context.Context, cat model.TrashCategory, fillThreshold float64) ([]model.Tournee, error) {
	return p.plan(ctx, cat, fillThreshold, nil)
}

// PlanForcedPoints plans tournees restricted to the given collection points,
// ignoring any fill threshold. Used by the emergency pass.
func (p *Planner) PlanForcedPoints(ctx context.Context, cat model.TrashCategory, pointIDs map[string]struct{}) ([]model.Tournee, error) {
	if len(pointIDs) == 0 {
		return nil, nil
	}
	return p.plan(ctx, cat, 0, pointIDs)
}

// candidate aggregates what the request builder needs per collection point.
type candidate struct {
	point   model.CollectionPoint
	volumeL float64
	maxFill float64
}

func (p *Planner) plan(ctx context.Context, cat model.TrashCategory, threshold float64, forced map[string]struct{}) ([]model.Tournee, error) {
	depot, err := p.depots.MainDepot(ctx)
	if err != nil {
		return nil, fmt.Errorf("planner: depot: %w", err)
	}

	candidates, err := p.resolveCandidates(ctx, cat, threshold, forced)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		p.log.Infof("no candidate collection points for %s, nothing to plan", cat)
		return nil, nil
	}

	pool, err := p.vehicles.Eligible(ctx)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return nil, ErrNoVehicle
	}

	req, jobToPoint, optToVehicle := p.buildRequest(depot, candidates, pool)

	sol, err := p.optimizer.Optimize(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("planner: optimize %s: %w", cat, err)
	}
	if len(sol.Routes) == 0 {
		p.log.Warnf("optimizer returned no routes for %s", cat)
		return nil, nil
	}

	return p.materialize(ctx, cat, sol.Routes, candidates, jobToPoint, optToVehicle)
}

// resolveCandidates selects collection points with work to do, excluding any
// point already covered by a PLANNED or IN_PROGRESS tournee of the category.
func (p *Planner) resolveCandidates(ctx context.Context, cat model.TrashCategory, threshold float64, forced map[string]struct{}) ([]candidate, error) {
	covered, err := p.coveredPointIDs(ctx, cat)
	if err != nil {
		return nil, err
	}

	var points []model.CollectionPoint
	if forced != nil {
		ids := make([]string, 0, len(forced))
		for id := range forced {
			if _, dup := covered[id]; !dup {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			return nil, nil
		}
		points, err = p.points.ByIDs(ctx, ids)
	} else {
		points, err = p.points.All(ctx)
	}
	if err != nil {
		return nil, err
	}

	var out []candidate
	for _, cp := range points {
		if !cp.Active {
			continue
		}
		if forced == nil {
			if _, dup := covered[cp.ID]; dup {
				continue
			}
		}
		c := candidate{point: cp}
		for _, bin := range cp.Bins {
			if !bin.Active || bin.Category != cat {
				continue
			}
			reading, err := p.readings.LatestReading(ctx, bin.ID)
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			if forced == nil && reading.FillPct < threshold {
				continue
			}
			capacity := bin.CapacityL
			if capacity <= 0 {
				capacity = p.cfg.BinCapacityL
			}
			c.volumeL += reading.FillPct / 100 * capacity
			if reading.FillPct > c.maxFill {
				c.maxFill = reading.FillPct
			}
		}
		if c.volumeL > 0 {
			out = append(out, c)
		}
	}
	return out, nil
}

// coveredPointIDs collects collection points already routed by an active
// tournee of the same category, to avoid duplicate stops.
func (p *Planner) coveredPointIDs(ctx context.Context, cat model.TrashCategory) (map[string]struct{}, error) {
	covered := make(map[string]struct{})
	for _, status := range []model.TourneeStatus{model.TourneePlanned, model.TourneeInProgress} {
		tours, err := p.tournees.ByCategoryAndStatus(ctx, cat, status)
		if err != nil {
			return nil, err
		}
		for _, t := range tours {
			for _, id := range t.CoveredPointIDs() {
				covered[id] = struct{}{}
			}
		}
	}
	return covered, nil
}

// buildRequest maps the candidate points and the eligible pool to the solver
// wire format. Returned maps translate solver ids back to entity ids.
func (p *Planner) buildRequest(depot model.Depot, candidates []candidate, pool []model.Vehicle) (OptimizerRequest, map[int]string, map[int]string) {
	jobToPoint := make(map[int]string, len(candidates))
	optToVehicle := make(map[int]string, len(pool))

	vehicles := make([]OptimizerVehicle, 0, len(pool))
	for i, v := range pool {
		id := i + 1
		vehicles = append(vehicles, OptimizerVehicle{
			ID:       id,
			Start:    depot.Location,
			End:      depot.Location,
			Capacity: []int{int(math.Round(v.CapacityVolumeL))},
		})
		optToVehicle[id] = v.ID
	}

	jobs := make([]OptimizerJob, 0, len(candidates))
	for i, c := range candidates {
		id := i + 1
		jobs = append(jobs, OptimizerJob{
			ID:       id,
			Location: c.point.Location,
			Service:  p.cfg.ServiceSeconds,
			Amount:   []int{int(math.Round(c.volumeL))},
		})
		jobToPoint[id] = c.point.ID
	}

	return OptimizerRequest{Vehicles: vehicles, Jobs: jobs, Options: OptimizerOptions{G: true}}, jobToPoint, optToVehicle
}

// materialize turns solver routes into persisted PLANNED tournees. Each
// route's vehicle is claimed with a compare-and-swap before anything is
// written; a route whose vehicle was claimed concurrently is dropped. Claims
// are rolled back if persisting fails, so a vehicle is never left busy
// without a corresponding tournee.
func (p *Planner) materialize(ctx context.Context, cat model.TrashCategory, routes []OptimizerRoute,
	candidates []candidate, jobToPoint, optToVehicle map[int]string) ([]model.Tournee, error) {

	fillByPoint := make(map[string]float64, len(candidates))
	for _, c := range candidates {
		fillByPoint[c.point.ID] = c.maxFill
	}

	var tournees []model.Tournee
	var claimed []string
	claimLost := false
	for _, route := range routes {
		vehicleID, ok := optToVehicle[route.Vehicle]
		if !ok || len(route.Steps) == 0 {
			continue
		}
		won, err := p.vehicles.Claim(ctx, vehicleID)
		if err != nil {
			p.releaseAll(ctx, claimed)
			return nil, err
		}
		if !won {
			p.log.Warnf("vehicle %s claimed concurrently, dropping route", vehicleID)
			claimLost = true
			continue
		}
		claimed = append(claimed, vehicleID)

		t, err := p.buildTournee(ctx, cat, route, vehicleID, jobToPoint, fillByPoint)
		if err != nil {
			p.releaseAll(ctx, claimed)
			return nil, err
		}
		if len(t.Steps) == 0 {
			// Route contained only start/end markers.
			_ = p.vehicles.Release(ctx, vehicleID)
			claimed = claimed[:len(claimed)-1]
			continue
		}
		tournees = append(tournees, t)
	}

	if len(tournees) == 0 {
		if claimLost {
			return nil, ErrNoVehicle
		}
		return nil, nil
	}

	if err := p.tournees.SaveAll(ctx, tournees); err != nil {
		p.releaseAll(ctx, claimed)
		return nil, fmt.Errorf("planner: persist tournees: %w", err)
	}

	p.recordPlanned(tournees)
	p.log.Infof("planned %d tournee(s) for %s", len(tournees), cat)
	return tournees, nil
}

func (p *Planner) buildTournee(ctx context.Context, cat model.TrashCategory, route OptimizerRoute,
	vehicleID string, jobToPoint map[int]string, fillByPoint map[string]float64) (model.Tournee, error) {
	km := route.Distance / 1000

	var co2 float64
	vehicle, err := p.vehicles.ByID(ctx, vehicleID)
	if err == nil {
		co2 = km * vehicle.EmissionFactor()
	} else if !errors.Is(err, store.ErrNotFound) {
		return model.Tournee{}, err
	}

	t := model.Tournee{
		ID:               uuid.NewString(),
		Category:         cat,
		Status:           model.TourneePlanned,
		PlannedKm:        km,
		PlannedCO2Grams:  co2,
		PlannedVehicleID: vehicleID,
		Geometry:         route.Geometry,
	}
	order := 0
	for _, step := range route.Steps {
		if step.Type != "job" {
			continue
		}
		pointID := jobToPoint[step.Job]
		t.Steps = append(t.Steps, model.RouteStep{
			Order:             order,
			Status:            model.StepPending,
			CollectionPointID: pointID,
			PredictedFillPct:  fillByPoint[pointID],
		})
		order++
	}
	return t, nil
}

func (p *Planner) releaseAll(ctx context.Context, vehicleIDs []string) {
	for _, id := range vehicleIDs {
		if err := p.vehicles.Release(ctx, id); err != nil {
			p.log.Errorf("release vehicle %s: %v", id, err)
		}
	}
}

func (p *Planner) recordPlanned(tournees []model.Tournee) {
	recs := make([]metrics.PlannedTournee, 0, len(tournees))
	now := time.Now()
	for _, t := range tournees {
		recs = append(recs, metrics.PlannedTournee{
			TourneeID:  t.ID,
			Category:   t.Category,
			VehicleID:  t.PlannedVehicleID,
			DistanceKm: t.PlannedKm,
			CO2Grams:   t.PlannedCO2Grams,
			Stops:      len(t.Steps),
			Time:       now,
		})
	}
	if err := p.sink.RecordPlannedTournees(recs); err != nil {
		p.log.Errorf("metrics error: %v", err)
	}
}
