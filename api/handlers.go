package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ecollecte/wastefleet/core/model"
	"github.com/ecollecte/wastefleet/core/scheduler"
	"github.com/ecollecte/wastefleet/core/store"
)

// manualPassTimeout bounds passes triggered over the API, which run outside
// any request context.
const manualPassTimeout = 10 * time.Minute

type modeResponse struct {
	Mode model.AutomationMode `json:"mode"`
}

type modeRequest struct {
	Mode string `json:"mode"`
}

func (s *Server) getMode(w http.ResponseWriter, r *http.Request) {
	mode, err := s.modes.Mode(r.Context())
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, modeResponse{Mode: mode})
}

func (s *Server) putMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	mode, err := model.ParseAutomationMode(req.Mode)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	applied, err := s.modes.SetMode(r.Context(), mode)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, modeResponse{Mode: applied})
}

// runEmergency triggers an emergency pass in the background. The request
// returns 202 immediately; a pass already in flight yields 409.
func (s *Server) runEmergency(w http.ResponseWriter, _ *http.Request) {
	s.runPass(w, "emergency", s.passes.RunEmergencyPass)
}

func (s *Server) runFull(w http.ResponseWriter, _ *http.Request) {
	s.runPass(w, "full", s.passes.RunFullPass)
}

func (s *Server) runPass(w http.ResponseWriter, kind string, run func(context.Context) error) {
	started := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), manualPassTimeout)
		defer cancel()
		err := run(ctx)
		started <- err
		if err != nil && !errors.Is(err, scheduler.ErrPassRunning) {
			s.log.Errorf("manual %s pass: %v", kind, err)
		}
	}()

	// Report single-flight conflicts synchronously, everything else is
	// asynchronous.
	select {
	case err := <-started:
		if errors.Is(err, scheduler.ErrPassRunning) {
			s.fail(w, http.StatusConflict, err)
			return
		}
	case <-time.After(50 * time.Millisecond):
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "kind": kind})
}

func (s *Server) getSnapshots(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("emergency") == "true" {
		writeJSON(w, http.StatusOK, s.snapshots.Emergencies())
		return
	}
	writeJSON(w, http.StatusOK, s.snapshots.All())
}

func (s *Server) getTournees(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("status")
	if raw == "" {
		raw = string(model.TourneePlanned)
	}
	status := model.TourneeStatus(raw)
	switch status {
	case model.TourneePlanned, model.TourneeInProgress, model.TourneeCompleted, model.TourneeCancelled:
	default:
		s.fail(w, http.StatusBadRequest, errors.New("unknown tournee status "+raw))
		return
	}
	tours, err := s.tournees.ByStatus(r.Context(), status)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	if tours == nil {
		tours = []model.Tournee{}
	}
	writeJSON(w, http.StatusOK, tours)
}

func (s *Server) completeTournee(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.tournees.Complete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.fail(w, http.StatusNotFound, err)
			return
		}
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "completed", "id": id})
}

type co2Response struct {
	Days          int     `json:"days"`
	TotalCO2Grams float64 `json:"total_co2_g"`
}

func (s *Server) getCO2Report(w http.ResponseWriter, r *http.Request) {
	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			s.fail(w, http.StatusBadRequest, errors.New("days must be a positive integer"))
			return
		}
		days = v
	}
	total, err := s.tournees.TotalCO2SinceDays(r.Context(), days)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, co2Response{Days: days, TotalCO2Grams: total})
}

func (s *Server) fail(w http.ResponseWriter, code int, err error) {
	if code >= http.StatusInternalServerError {
		s.log.Errorf("request failed: %v", err)
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
