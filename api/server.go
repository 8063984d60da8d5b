// Package api exposes the dispatch service over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ecollecte/wastefleet/core/model"
	"github.com/ecollecte/wastefleet/core/snapshot"
	"github.com/ecollecte/wastefleet/infra/logger"
)

// ModeController reads and updates the automation mode singleton.
type ModeController interface {
	Mode(ctx context.Context) (model.AutomationMode, error)
	SetMode(ctx context.Context, mode model.AutomationMode) (model.AutomationMode, error)
}

// SnapshotSource exposes the current bin snapshot set.
type SnapshotSource interface {
	All() []snapshot.BinSnapshot
	Emergencies() []snapshot.BinSnapshot
}

// PassRunner triggers planning passes on demand.
type PassRunner interface {
	RunEmergencyPass(ctx context.Context) error
	RunFullPass(ctx context.Context) error
}

// TourneeService exposes tournee queries and lifecycle transitions.
type TourneeService interface {
	ByStatus(ctx context.Context, status model.TourneeStatus) ([]model.Tournee, error)
	Complete(ctx context.Context, tourneeID string) error
	TotalCO2SinceDays(ctx context.Context, days int) (float64, error)
}

// Server wires the HTTP handlers.
type Server struct {
	modes     ModeController
	snapshots SnapshotSource
	passes    PassRunner
	tournees  TourneeService
	log       logger.Logger
}

// NewServer creates a Server over the given collaborators.
func NewServer(modes ModeController, snapshots SnapshotSource, passes PassRunner, tournees TourneeService) *Server {
	return &Server{
		modes:     modes,
		snapshots: snapshots,
		passes:    passes,
		tournees:  tournees,
		log:       logger.New("api"),
	}
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/automation/mode", s.getMode)
		r.Put("/automation/mode", s.putMode)
		r.Post("/automation/runs/emergency", s.runEmergency)
		r.Post("/automation/runs/full", s.runFull)

		r.Get("/snapshots", s.getSnapshots)

		r.Get("/tournees", s.getTournees)
		r.Post("/tournees/{id}/complete", s.completeTournee)

		r.Get("/reports/co2", s.getCO2Report)
	})
	return r
}

// Run serves the API until the context is canceled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("api shutdown: %v", err)
		}
	}()
	s.log.Infof("api listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
