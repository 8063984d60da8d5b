package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecollecte/wastefleet/core/model"
	"github.com/ecollecte/wastefleet/core/scheduler"
	"github.com/ecollecte/wastefleet/core/snapshot"
	"github.com/ecollecte/wastefleet/core/store"
)

type fakeModes struct {
	mode model.AutomationMode
}

func (f *fakeModes) Mode(context.Context) (model.AutomationMode, error) { return f.mode, nil }

func (f *fakeModes) SetMode(_ context.Context, mode model.AutomationMode) (model.AutomationMode, error) {
	f.mode = mode
	return mode, nil
}

type fakeSnapshots struct {
	all []snapshot.BinSnapshot
}

func (f *fakeSnapshots) All() []snapshot.BinSnapshot { return f.all }

func (f *fakeSnapshots) Emergencies() []snapshot.BinSnapshot {
	var out []snapshot.BinSnapshot
	for _, s := range f.all {
		if s.Emergency {
			out = append(out, s)
		}
	}
	return out
}

type fakePasses struct {
	emergencyErr error
	fullErr      error
	emergencies  atomic.Int32
	fulls        atomic.Int32
}

func (f *fakePasses) RunEmergencyPass(context.Context) error {
	f.emergencies.Add(1)
	return f.emergencyErr
}

func (f *fakePasses) RunFullPass(context.Context) error {
	f.fulls.Add(1)
	return f.fullErr
}

type fakeTournees struct {
	byStatus  map[model.TourneeStatus][]model.Tournee
	completed []string
	co2       float64
	err       error
}

func (f *fakeTournees) ByStatus(_ context.Context, status model.TourneeStatus) ([]model.Tournee, error) {
	return f.byStatus[status], f.err
}

func (f *fakeTournees) Complete(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	f.completed = append(f.completed, id)
	return nil
}

func (f *fakeTournees) TotalCO2SinceDays(context.Context, int) (float64, error) {
	return f.co2, f.err
}

func newTestServer(modes *fakeModes, snaps *fakeSnapshots, passes *fakePasses, tours *fakeTournees) http.Handler {
	if modes == nil {
		modes = &fakeModes{mode: model.ModeOff}
	}
	if snaps == nil {
		snaps = &fakeSnapshots{}
	}
	if passes == nil {
		passes = &fakePasses{}
	}
	if tours == nil {
		tours = &fakeTournees{}
	}
	return NewServer(modes, snaps, passes, tours).Router()
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *strings.Reader
	if body == "" {
		rdr = strings.NewReader("")
	} else {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGetMode(t *testing.T) {
	h := newTestServer(&fakeModes{mode: model.ModeFull}, nil, nil, nil)
	rec := doJSON(t, h, http.MethodGet, "/api/automation/mode", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp modeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, model.ModeFull, resp.Mode)
}

func TestPutMode(t *testing.T) {
	modes := &fakeModes{mode: model.ModeOff}
	h := newTestServer(modes, nil, nil, nil)

	rec := doJSON(t, h, http.MethodPut, "/api/automation/mode", `{"mode":"EMERGENCIES_ONLY"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.ModeEmergenciesOnly, modes.mode)

	rec = doJSON(t, h, http.MethodPut, "/api/automation/mode", `{"mode":"TURBO"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, model.ModeEmergenciesOnly, modes.mode)
}

func TestRunEmergencyPassAccepted(t *testing.T) {
	passes := &fakePasses{}
	h := newTestServer(nil, nil, passes, nil)
	rec := doJSON(t, h, http.MethodPost, "/api/automation/runs/emergency", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)

	assert.Eventually(t, func() bool { return passes.emergencies.Load() == 1 }, time.Second, 10*time.Millisecond)
}

func TestRunFullPassConflict(t *testing.T) {
	passes := &fakePasses{fullErr: scheduler.ErrPassRunning}
	h := newTestServer(nil, nil, passes, nil)
	rec := doJSON(t, h, http.MethodPost, "/api/automation/runs/full", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetSnapshots(t *testing.T) {
	snaps := &fakeSnapshots{all: []snapshot.BinSnapshot{
		{BinID: "b1", Category: model.CategoryPlastic, FillPct: 50},
		{BinID: "b2", Category: model.CategoryOrganic, FillPct: 97, Emergency: true, Reason: snapshot.ReasonFillOver95},
	}}
	h := newTestServer(nil, snaps, nil, nil)

	rec := doJSON(t, h, http.MethodGet, "/api/snapshots", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var all []snapshot.BinSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all, 2)

	rec = doJSON(t, h, http.MethodGet, "/api/snapshots?emergency=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var urgent []snapshot.BinSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &urgent))
	require.Len(t, urgent, 1)
	assert.Equal(t, "b2", urgent[0].BinID)
}

func TestGetTournees(t *testing.T) {
	tours := &fakeTournees{byStatus: map[model.TourneeStatus][]model.Tournee{
		model.TourneeInProgress: {{ID: "t1", Status: model.TourneeInProgress}},
	}}
	h := newTestServer(nil, nil, nil, tours)

	rec := doJSON(t, h, http.MethodGet, "/api/tournees?status=IN_PROGRESS", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got []model.Tournee
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "t1", got[0].ID)

	// Defaults to PLANNED and returns an empty list rather than null.
	rec = doJSON(t, h, http.MethodGet, "/api/tournees", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())

	rec = doJSON(t, h, http.MethodGet, "/api/tournees?status=BOGUS", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCompleteTournee(t *testing.T) {
	tours := &fakeTournees{}
	h := newTestServer(nil, nil, nil, tours)

	rec := doJSON(t, h, http.MethodPost, "/api/tournees/t1/complete", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"t1"}, tours.completed)
}

func TestCompleteTourneeNotFound(t *testing.T) {
	tours := &fakeTournees{err: store.ErrNotFound}
	h := newTestServer(nil, nil, nil, tours)

	rec := doJSON(t, h, http.MethodPost, "/api/tournees/missing/complete", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCO2Report(t *testing.T) {
	tours := &fakeTournees{co2: 1234.5}
	h := newTestServer(nil, nil, nil, tours)

	rec := doJSON(t, h, http.MethodGet, "/api/reports/co2?days=7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp co2Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 7, resp.Days)
	assert.Equal(t, 1234.5, resp.TotalCO2Grams)

	rec = doJSON(t, h, http.MethodGet, "/api/reports/co2?days=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthz(t *testing.T) {
	h := newTestServer(nil, nil, nil, nil)
	rec := doJSON(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
