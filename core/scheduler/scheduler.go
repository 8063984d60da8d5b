// Package scheduler drives the two periodic planning loops and exposes the
// same pass functions to manual triggers.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ecollecte/wastefleet/core/logger"
	"github.com/ecollecte/wastefleet/core/model"
	"github.com/ecollecte/wastefleet/core/planner"
	"github.com/ecollecte/wastefleet/core/snapshot"
	"github.com/ecollecte/wastefleet/internal/eventbus"
)

// ErrPassRunning is returned when a pass is already in flight. Passes are
// single-flight: a timer firing while a manual trigger runs is a no-op.
var ErrPassRunning = errors.New("scheduler: pass already running")

// Config defines the scheduling cadence and full-cycle parameters.
type Config struct {
	EmergencyIntervalMin int     `json:"emergency_interval_min"`
	FullIntervalHours    int     `json:"full_interval_hours"`
	FillThresholdPct     float64 `json:"fill_threshold_pct"`
	// MaxFullRounds caps the full-cycle re-planning loop so it cannot spin
	// when vehicles run out.
	MaxFullRounds int `json:"max_full_rounds"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.EmergencyIntervalMin <= 0 {
		c.EmergencyIntervalMin = 15
	}
	if c.FullIntervalHours <= 0 {
		c.FullIntervalHours = 24
	}
	if c.FillThresholdPct <= 0 {
		c.FillThresholdPct = 80
	}
	if c.MaxFullRounds <= 0 {
		c.MaxFullRounds = 8
	}
}

// RoutePlanner is the planning collaborator.
type RoutePlanner interface {
	PlanCategory(ctx context.Context, cat model.TrashCategory, fillThreshold float64) ([]model.Tournee, error)
	PlanForcedPoints(ctx context.Context, cat model.TrashCategory, pointIDs map[string]struct{}) ([]model.Tournee, error)
}

// SnapshotSource provides refreshed bin snapshots.
type SnapshotSource interface {
	Refresh(ctx context.Context) error
	Emergencies() []snapshot.BinSnapshot
}

// Assigner commits crew and vehicle to a planned tournee.
type Assigner interface {
	AutoAssign(ctx context.Context, tourneeID string) ([]model.TourneeAssignment, error)
}

// ModeSource reads the current automation mode.
type ModeSource interface {
	Mode(ctx context.Context) (model.AutomationMode, error)
}

// PassEvent is published on the event bus after each completed pass.
type PassEvent struct {
	Kind     string
	Mode     model.AutomationMode
	Planned  int
	Failures int
	Duration time.Duration
	Time     time.Time
}

// Scheduler owns the emergency and full-cycle loops. The two loops are
// independent and may overlap each other, but each one is single-flight
// with itself.
type Scheduler struct {
	cfg      Config
	snaps    SnapshotSource
	modes    ModeSource
	planner  RoutePlanner
	assigner Assigner
	bus      eventbus.EventBus
	log      logger.Logger

	emergencyBusy atomic.Bool
	fullBusy      atomic.Bool
}

// New creates a Scheduler. The event bus may be nil.
func New(cfg Config, snaps SnapshotSource, modes ModeSource, pl RoutePlanner, assigner Assigner, bus eventbus.EventBus, log logger.Logger) (*Scheduler, error) {
	if snaps == nil || modes == nil || pl == nil || assigner == nil {
		return nil, fmt.Errorf("scheduler: nil collaborator provided to New")
	}
	cfg.SetDefaults()
	return &Scheduler{
		cfg:      cfg,
		snaps:    snaps,
		modes:    modes,
		planner:  pl,
		assigner: assigner,
		bus:      bus,
		log:      log,
	}, nil
}

// Run starts both tickers and blocks until the context is canceled. Manual
// triggers share RunEmergencyPass and RunFullPass with the tickers, so the
// timer-driven and operator-driven paths are the same code.
func (s *Scheduler) Run(ctx context.Context) {
	emergency := time.NewTicker(time.Duration(s.cfg.EmergencyIntervalMin) * time.Minute)
	full := time.NewTicker(time.Duration(s.cfg.FullIntervalHours) * time.Hour)
	defer emergency.Stop()
	defer full.Stop()

	for {
		select {
		case <-emergency.C:
			if err := s.RunEmergencyPass(ctx); err != nil && !errors.Is(err, ErrPassRunning) {
				s.log.Errorf("emergency pass: %v", err)
			}
		case <-full.C:
			if err := s.RunFullPass(ctx); err != nil && !errors.Is(err, ErrPassRunning) {
				s.log.Errorf("full pass: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// RunEmergencyPass plans tournees for every bin currently classified as an
// emergency. No-op when the mode is OFF. Failures are isolated per
// category: one category failing does not prevent the others.
func (s *Scheduler) RunEmergencyPass(ctx context.Context) error {
	if !s.emergencyBusy.CompareAndSwap(false, true) {
		return ErrPassRunning
	}
	defer s.emergencyBusy.Store(false)

	mode, err := s.modes.Mode(ctx)
	if err != nil {
		return err
	}
	if mode == model.ModeOff {
		s.log.Debugf("automation off, skipping emergency pass")
		return nil
	}

	start := time.Now()
	if err := s.snaps.Refresh(ctx); err != nil {
		return err
	}
	emergencies := s.snaps.Emergencies()
	if len(emergencies) == 0 {
		s.log.Infof("no emergency bins at this time")
		return nil
	}

	pointsByCategory := groupPointsByCategory(emergencies)
	planned, failures := 0, 0
	for cat, points := range pointsByCategory {
		s.log.Infof("emergency planning for %s, %d point(s)", cat, len(points))
		tours, err := s.planner.PlanForcedPoints(ctx, cat, points)
		if err != nil {
			s.log.Errorf("emergency planning for %s failed: %v", cat, err)
			failures++
			continue
		}
		planned += len(tours)
		s.assignAll(ctx, tours)
	}

	s.publish(PassEvent{Kind: "emergency", Mode: mode, Planned: planned, Failures: failures, Duration: time.Since(start), Time: start})
	return nil
}

// RunFullPass plans every category above the fill threshold, repeating
// rounds while new tournees keep being produced. Only runs in FULL mode.
// A planner error or the round cap stops the loop.
func (s *Scheduler) RunFullPass(ctx context.Context) error {
	if !s.fullBusy.CompareAndSwap(false, true) {
		return ErrPassRunning
	}
	defer s.fullBusy.Store(false)

	mode, err := s.modes.Mode(ctx)
	if err != nil {
		return err
	}
	if mode != model.ModeFull {
		s.log.Debugf("mode %s, skipping full pass", mode)
		return nil
	}

	start := time.Now()
	if err := s.snaps.Refresh(ctx); err != nil {
		return err
	}

	totalPlanned, failures := 0, 0
	for round := 0; round < s.cfg.MaxFullRounds; round++ {
		plannedThisRound := 0
		stop := false
		for _, cat := range model.AllCategories() {
			tours, err := s.planner.PlanCategory(ctx, cat, s.cfg.FillThresholdPct)
			if err != nil {
				if errors.Is(err, planner.ErrNoVehicle) {
					s.log.Infof("fleet exhausted during full pass, stopping")
				} else {
					s.log.Errorf("full planning for %s failed: %v", cat, err)
					failures++
				}
				stop = true
				break
			}
			plannedThisRound += len(tours)
			s.assignAll(ctx, tours)
		}
		totalPlanned += plannedThisRound
		if stop || plannedThisRound == 0 {
			break
		}
	}

	s.publish(PassEvent{Kind: "full", Mode: mode, Planned: totalPlanned, Failures: failures, Duration: time.Since(start), Time: start})
	return nil
}

func (s *Scheduler) assignAll(ctx context.Context, tours []model.Tournee) {
	for _, t := range tours {
		if _, err := s.assigner.AutoAssign(ctx, t.ID); err != nil {
			s.log.Errorf("auto-assign tournee %s: %v", t.ID, err)
		}
	}
}

func (s *Scheduler) publish(ev PassEvent) {
	if s.bus != nil {
		s.bus.Publish(ev)
	}
}

// groupPointsByCategory collapses emergency snapshots into the distinct set
// of collection points per category.
func groupPointsByCategory(snaps []snapshot.BinSnapshot) map[model.TrashCategory]map[string]struct{} {
	out := make(map[model.TrashCategory]map[string]struct{})
	for _, s := range snaps {
		if s.CollectionPointID == "" {
			continue
		}
		set, ok := out[s.Category]
		if !ok {
			set = make(map[string]struct{})
			out[s.Category] = set
		}
		set[s.CollectionPointID] = struct{}{}
	}
	return out
}
