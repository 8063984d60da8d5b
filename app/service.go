// Package app wires configuration, stores, engines and transports into a
// runnable dispatch service.
package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ecollecte/wastefleet/api"
	"github.com/ecollecte/wastefleet/config"
	"github.com/ecollecte/wastefleet/core/assign"
	"github.com/ecollecte/wastefleet/core/automation"
	"github.com/ecollecte/wastefleet/core/planner"
	"github.com/ecollecte/wastefleet/core/scheduler"
	"github.com/ecollecte/wastefleet/core/snapshot"
	"github.com/ecollecte/wastefleet/core/store"
	"github.com/ecollecte/wastefleet/core/tournee"
	"github.com/ecollecte/wastefleet/infra/logger"
	"github.com/ecollecte/wastefleet/infra/metrics"
	"github.com/ecollecte/wastefleet/infra/store/memory"
	"github.com/ecollecte/wastefleet/infra/store/postgres"
	"github.com/ecollecte/wastefleet/infra/telemetry"
	"github.com/ecollecte/wastefleet/infra/vroom"
	"github.com/ecollecte/wastefleet/internal/eventbus"
)

// Stores groups every persistence interface the service depends on.
type Stores struct {
	Bins        store.BinStore
	Readings    store.ReadingStore
	Points      store.CollectionPointStore
	Depots      store.DepotStore
	Vehicles    store.VehicleStore
	Employees   store.EmployeeStore
	Tournees    store.TourneeStore
	Assignments store.AssignmentStore
	Config      store.ConfigStore
}

// Service orchestrates the dispatch pipeline.
type Service struct {
	Snapshots *snapshot.Engine
	Scheduler *scheduler.Scheduler
	Modes     *automation.ModeController
	Tournees  *tournee.Service
	API       *api.Server

	cfg      *config.Config
	ingestor *telemetry.Ingestor
	bus      eventbus.EventBus
	db       *sqlx.DB
	log      logger.Logger
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	stores, db, err := buildStores(cfg.Storage)
	if err != nil {
		return nil, err
	}

	var sinks []metrics.Sink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(cfg.Metrics)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sink := metrics.NewInfluxSinkWithFallback(
			cfg.Metrics.InfluxURL, cfg.Metrics.InfluxToken,
			cfg.Metrics.InfluxOrg, cfg.Metrics.InfluxBucket)
		sinks = append(sinks, sink)
	}
	var sink metrics.Sink
	switch len(sinks) {
	case 0:
		// planner tolerates a nil sink
	case 1:
		sink = sinks[0]
	default:
		sink = metrics.NewMultiSink(sinks...)
	}

	optimizer, err := vroom.New(cfg.Optimizer)
	if err != nil {
		return nil, fmt.Errorf("optimizer: %w", err)
	}

	snaps := snapshot.NewEngine(stores.Bins, stores.Readings, logger.New("snapshot"))
	modes := automation.NewModeController(stores.Config)

	pl, err := planner.New(cfg.Planner, stores.Points, stores.Readings, stores.Vehicles,
		stores.Tournees, stores.Depots, optimizer, sink, logger.New("planner"))
	if err != nil {
		return nil, fmt.Errorf("planner: %w", err)
	}

	assigner, err := assign.New(cfg.Assign, stores.Tournees, stores.Vehicles,
		stores.Employees, stores.Assignments, logger.New("assign"))
	if err != nil {
		return nil, fmt.Errorf("assign engine: %w", err)
	}

	bus := eventbus.New()
	sched, err := scheduler.New(cfg.Scheduler, snaps, modes, pl, assigner, bus, logger.New("scheduler"))
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}

	tours, err := tournee.NewService(stores.Tournees, stores.Vehicles, stores.Employees,
		stores.Assignments, stores.Points, stores.Readings, logger.New("tournee"))
	if err != nil {
		return nil, fmt.Errorf("tournee service: %w", err)
	}

	svc := &Service{
		Snapshots: snaps,
		Scheduler: sched,
		Modes:     modes,
		Tournees:  tours,
		API:       api.NewServer(modes, snaps, sched, tours),
		cfg:       cfg,
		bus:       bus,
		db:        db,
		log:       logg,
	}

	if cfg.MQTT.Broker != "" {
		ing, err := telemetry.NewIngestor(cfg.MQTT, cfg.Telemetry, stores.Readings)
		if err != nil {
			return nil, fmt.Errorf("telemetry ingestor: %w", err)
		}
		svc.ingestor = ing
	} else {
		logg.Warnf("no mqtt broker configured, bin readings must arrive through the store directly")
	}

	if sink != nil {
		metrics.StartEventCollector(context.Background(), bus, sink)
	}
	return svc, nil
}

func buildStores(cfg config.StorageConfig) (Stores, *sqlx.DB, error) {
	switch cfg.Backend {
	case "postgres":
		db, err := postgres.Connect(cfg.Postgres)
		if err != nil {
			return Stores{}, nil, err
		}
		if err := postgres.Migrate(db); err != nil {
			return Stores{}, nil, err
		}
		return Stores{
			Bins:        postgres.NewBinStore(db),
			Readings:    postgres.NewReadingStore(db),
			Points:      postgres.NewCollectionPointStore(db),
			Depots:      postgres.NewDepotStore(db),
			Vehicles:    postgres.NewVehicleStore(db),
			Employees:   postgres.NewEmployeeStore(db),
			Tournees:    postgres.NewTourneeStore(db),
			Assignments: postgres.NewAssignmentStore(db),
			Config:      postgres.NewConfigStore(db),
		}, db, nil
	case "memory":
		return Stores{
			Bins:        memory.NewBinStore(),
			Readings:    memory.NewReadingStore(),
			Points:      memory.NewCollectionPointStore(),
			Depots:      memory.NewDepotStore(),
			Vehicles:    memory.NewVehicleStore(),
			Employees:   memory.NewEmployeeStore(),
			Tournees:    memory.NewTourneeStore(),
			Assignments: memory.NewAssignmentStore(),
			Config:      memory.NewConfigStore(),
		}, nil, nil
	default:
		return Stores{}, nil, fmt.Errorf("unknown storage backend %s", cfg.Backend)
	}
}

// Run starts every component and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if err := s.Snapshots.Refresh(ctx); err != nil {
		s.log.Warnf("initial snapshot refresh: %v", err)
	}

	if s.ingestor != nil {
		go func() {
			if err := s.ingestor.Start(ctx); err != nil {
				s.log.Errorf("telemetry ingestor: %v", err)
			}
		}()
	}
	go s.Scheduler.Run(ctx)
	if s.cfg.Metrics.PrometheusEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.cfg.Metrics.PrometheusPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	return s.API.Run(ctx, s.cfg.API.Addr)
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.bus.Close()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
