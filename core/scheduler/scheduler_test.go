package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecollecte/wastefleet/core/model"
	"github.com/ecollecte/wastefleet/core/planner"
	"github.com/ecollecte/wastefleet/core/snapshot"
	"github.com/ecollecte/wastefleet/infra/logger"
	"github.com/ecollecte/wastefleet/internal/eventbus"
)

type fakeSnaps struct {
	mu        sync.Mutex
	refreshes int
	snaps     []snapshot.BinSnapshot
	err       error
}

func (f *fakeSnaps) Refresh(context.Context) error {
	f.mu.Lock()
	f.refreshes++
	f.mu.Unlock()
	return f.err
}

func (f *fakeSnaps) Emergencies() []snapshot.BinSnapshot { return f.snaps }

func (f *fakeSnaps) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes
}

type fakeModes struct {
	mode model.AutomationMode
}

func (f *fakeModes) Mode(context.Context) (model.AutomationMode, error) { return f.mode, nil }

type forcedCall struct {
	cat    model.TrashCategory
	points map[string]struct{}
}

type fakePlanner struct {
	mu          sync.Mutex
	forced      []forcedCall
	categories  []model.TrashCategory
	forcedErrs  map[model.TrashCategory]error
	forcedTours map[model.TrashCategory][]model.Tournee
	// categoryPlan returns tournees per call index, letting tests script the
	// full-cycle rounds.
	categoryPlan func(call int, cat model.TrashCategory) ([]model.Tournee, error)
	release      chan struct{}
}

func (f *fakePlanner) PlanCategory(_ context.Context, cat model.TrashCategory, _ float64) ([]model.Tournee, error) {
	f.mu.Lock()
	call := len(f.categories)
	f.categories = append(f.categories, cat)
	f.mu.Unlock()
	if f.release != nil {
		<-f.release
	}
	if f.categoryPlan != nil {
		return f.categoryPlan(call, cat)
	}
	return nil, nil
}

func (f *fakePlanner) PlanForcedPoints(_ context.Context, cat model.TrashCategory, points map[string]struct{}) ([]model.Tournee, error) {
	f.mu.Lock()
	f.forced = append(f.forced, forcedCall{cat: cat, points: points})
	f.mu.Unlock()
	if f.release != nil {
		<-f.release
	}
	if err := f.forcedErrs[cat]; err != nil {
		return nil, err
	}
	return f.forcedTours[cat], nil
}

type fakeAssigner struct {
	mu       sync.Mutex
	assigned []string
	err      error
}

func (f *fakeAssigner) AutoAssign(_ context.Context, tourneeID string) ([]model.TourneeAssignment, error) {
	f.mu.Lock()
	f.assigned = append(f.assigned, tourneeID)
	f.mu.Unlock()
	return nil, f.err
}

func newScheduler(t *testing.T, cfg Config, snaps *fakeSnaps, modes *fakeModes, pl *fakePlanner, as *fakeAssigner, bus eventbus.EventBus) *Scheduler {
	t.Helper()
	s, err := New(cfg, snaps, modes, pl, as, bus, logger.NopLogger{})
	require.NoError(t, err)
	return s
}

func emergencySnap(binID, pointID string, cat model.TrashCategory) snapshot.BinSnapshot {
	return snapshot.BinSnapshot{
		BinID:             binID,
		CollectionPointID: pointID,
		Category:          cat,
		Emergency:         true,
		Reason:            snapshot.ReasonFillOver95,
	}
}

func TestEmergencyPassOffDoesNothing(t *testing.T) {
	snaps := &fakeSnaps{}
	pl := &fakePlanner{}
	s := newScheduler(t, Config{}, snaps, &fakeModes{mode: model.ModeOff}, pl, &fakeAssigner{}, nil)

	require.NoError(t, s.RunEmergencyPass(context.Background()))
	assert.Zero(t, snaps.refreshCount())
	assert.Empty(t, pl.forced)
}

func TestEmergencyPassGroupsPointsPerCategory(t *testing.T) {
	snaps := &fakeSnaps{snaps: []snapshot.BinSnapshot{
		emergencySnap("b1", "cp1", model.CategoryPlastic),
		emergencySnap("b2", "cp1", model.CategoryPlastic),
		emergencySnap("b3", "cp2", model.CategoryPlastic),
		emergencySnap("b4", "cp3", model.CategoryOrganic),
	}}
	pl := &fakePlanner{forcedTours: map[model.TrashCategory][]model.Tournee{
		model.CategoryPlastic: {{ID: "t-plastic"}},
		model.CategoryOrganic: {{ID: "t-organic"}},
	}}
	as := &fakeAssigner{}
	s := newScheduler(t, Config{}, snaps, &fakeModes{mode: model.ModeEmergenciesOnly}, pl, as, nil)

	require.NoError(t, s.RunEmergencyPass(context.Background()))
	assert.Equal(t, 1, snaps.refreshCount())
	require.Len(t, pl.forced, 2)

	byCat := map[model.TrashCategory]map[string]struct{}{}
	for _, c := range pl.forced {
		byCat[c.cat] = c.points
	}
	assert.Equal(t, map[string]struct{}{"cp1": {}, "cp2": {}}, byCat[model.CategoryPlastic])
	assert.Equal(t, map[string]struct{}{"cp3": {}}, byCat[model.CategoryOrganic])
	assert.ElementsMatch(t, []string{"t-plastic", "t-organic"}, as.assigned)
}

func TestEmergencyPassIsolatesCategoryFailures(t *testing.T) {
	snaps := &fakeSnaps{snaps: []snapshot.BinSnapshot{
		emergencySnap("b1", "cp1", model.CategoryPlastic),
		emergencySnap("b2", "cp2", model.CategoryOrganic),
	}}
	pl := &fakePlanner{
		forcedErrs:  map[model.TrashCategory]error{model.CategoryPlastic: errors.New("optimizer down")},
		forcedTours: map[model.TrashCategory][]model.Tournee{model.CategoryOrganic: {{ID: "t-organic"}}},
	}
	as := &fakeAssigner{}
	bus := eventbus.New()
	sub := bus.Subscribe()
	s := newScheduler(t, Config{}, snaps, &fakeModes{mode: model.ModeEmergenciesOnly}, pl, as, bus)

	require.NoError(t, s.RunEmergencyPass(context.Background()))
	assert.Len(t, pl.forced, 2)
	assert.Equal(t, []string{"t-organic"}, as.assigned)

	select {
	case raw := <-sub:
		ev := raw.(PassEvent)
		assert.Equal(t, "emergency", ev.Kind)
		assert.Equal(t, 1, ev.Planned)
		assert.Equal(t, 1, ev.Failures)
	case <-time.After(time.Second):
		t.Fatal("no pass event published")
	}
}

func TestEmergencyPassSingleFlight(t *testing.T) {
	snaps := &fakeSnaps{snaps: []snapshot.BinSnapshot{emergencySnap("b1", "cp1", model.CategoryPlastic)}}
	pl := &fakePlanner{release: make(chan struct{})}
	s := newScheduler(t, Config{}, snaps, &fakeModes{mode: model.ModeFull}, pl, &fakeAssigner{}, nil)

	done := make(chan error, 1)
	go func() { done <- s.RunEmergencyPass(context.Background()) }()

	// Wait for the first pass to reach the planner, then race a second one.
	require.Eventually(t, func() bool {
		pl.mu.Lock()
		defer pl.mu.Unlock()
		return len(pl.forced) == 1
	}, time.Second, time.Millisecond)

	assert.ErrorIs(t, s.RunEmergencyPass(context.Background()), ErrPassRunning)

	close(pl.release)
	require.NoError(t, <-done)

	// The guard is released afterwards.
	require.NoError(t, s.RunEmergencyPass(context.Background()))
}

func TestFullPassRequiresFullMode(t *testing.T) {
	snaps := &fakeSnaps{}
	pl := &fakePlanner{}
	s := newScheduler(t, Config{}, snaps, &fakeModes{mode: model.ModeEmergenciesOnly}, pl, &fakeAssigner{}, nil)

	require.NoError(t, s.RunFullPass(context.Background()))
	assert.Zero(t, snaps.refreshCount())
	assert.Empty(t, pl.categories)
}

func TestFullPassLoopsUntilNothingPlanned(t *testing.T) {
	// Round one plans a tournee for plastic, round two plans nothing and the
	// loop exits.
	pl := &fakePlanner{categoryPlan: func(call int, cat model.TrashCategory) ([]model.Tournee, error) {
		if call == 0 && cat == model.CategoryPlastic {
			return []model.Tournee{{ID: "t1"}}, nil
		}
		return nil, nil
	}}
	as := &fakeAssigner{}
	s := newScheduler(t, Config{}, &fakeSnaps{}, &fakeModes{mode: model.ModeFull}, pl, as, nil)

	require.NoError(t, s.RunFullPass(context.Background()))
	// Two rounds over the four categories.
	assert.Len(t, pl.categories, 2*len(model.AllCategories()))
	assert.Equal(t, []string{"t1"}, as.assigned)
}

func TestFullPassStopsWhenFleetExhausted(t *testing.T) {
	pl := &fakePlanner{categoryPlan: func(call int, cat model.TrashCategory) ([]model.Tournee, error) {
		if call == 1 {
			return nil, planner.ErrNoVehicle
		}
		return []model.Tournee{{ID: "t"}}, nil
	}}
	bus := eventbus.New()
	sub := bus.Subscribe()
	s := newScheduler(t, Config{}, &fakeSnaps{}, &fakeModes{mode: model.ModeFull}, pl, &fakeAssigner{}, bus)

	require.NoError(t, s.RunFullPass(context.Background()))
	assert.Len(t, pl.categories, 2)

	ev := (<-sub).(PassEvent)
	assert.Equal(t, "full", ev.Kind)
	assert.Equal(t, 1, ev.Planned)
	// Running out of vehicles is expected, not a failure.
	assert.Zero(t, ev.Failures)
}

func TestFullPassRoundCap(t *testing.T) {
	// Every round keeps planning, the cap has to cut the loop.
	pl := &fakePlanner{categoryPlan: func(int, model.TrashCategory) ([]model.Tournee, error) {
		return []model.Tournee{{ID: "t"}}, nil
	}}
	s := newScheduler(t, Config{MaxFullRounds: 3}, &fakeSnaps{}, &fakeModes{mode: model.ModeFull}, pl, &fakeAssigner{}, nil)

	require.NoError(t, s.RunFullPass(context.Background()))
	assert.Len(t, pl.categories, 3*len(model.AllCategories()))
}

func TestGroupPointsByCategorySkipsBlankPoint(t *testing.T) {
	grouped := groupPointsByCategory([]snapshot.BinSnapshot{
		emergencySnap("b1", "", model.CategoryPlastic),
		emergencySnap("b2", "cp1", model.CategoryPlastic),
	})
	require.Len(t, grouped, 1)
	assert.Equal(t, map[string]struct{}{"cp1": {}}, grouped[model.CategoryPlastic])
}
