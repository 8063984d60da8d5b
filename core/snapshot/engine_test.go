package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecollecte/wastefleet/core/model"
	"github.com/ecollecte/wastefleet/infra/logger"
	"github.com/ecollecte/wastefleet/infra/store/memory"
)

var refTime = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func ago(d time.Duration) *time.Time {
	t := refTime.Add(-d)
	return &t
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		cat       model.TrashCategory
		fill      float64
		collected *time.Time
		emergency bool
		reason    EmergencyReason
	}{
		{"fill at 95 fires", model.CategoryGlass, 95, nil, true, ReasonFillOver95},
		{"fill just below 95", model.CategoryGlass, 94.9, nil, false, ""},
		{"fill rule beats organic rules", model.CategoryOrganic, 96, ago(100 * time.Hour), true, ReasonFillOver95},
		{"organic over 40 at 48h", model.CategoryOrganic, 41, ago(48 * time.Hour), true, ReasonOrganic40In48h},
		{"organic over 40 just under 48h", model.CategoryOrganic, 41, ago(48*time.Hour - time.Minute), false, ""},
		{"organic at exactly 40 not enough", model.CategoryOrganic, 40, ago(50 * time.Hour), false, ""},
		{"organic stale at 72h any fill", model.CategoryOrganic, 5, ago(72 * time.Hour), true, ReasonOrganic72h},
		{"organic stale just under 72h", model.CategoryOrganic, 5, ago(72*time.Hour - time.Second), false, ""},
		{"organic 48h rule wins over 72h rule", model.CategoryOrganic, 60, ago(80 * time.Hour), true, ReasonOrganic40In48h},
		{"plastic never ages into emergency", model.CategoryPlastic, 90, ago(200 * time.Hour), false, ""},
		{"never collected disables age rules", model.CategoryOrganic, 60, nil, false, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			emergency, reason := Classify(tc.cat, tc.fill, tc.collected, refTime)
			assert.Equal(t, tc.emergency, emergency)
			assert.Equal(t, tc.reason, reason)
		})
	}
}

func TestRefreshBuildsSnapshots(t *testing.T) {
	ctx := context.Background()
	bins := memory.NewBinStore(
		model.Bin{ID: "b1", CollectionPointID: "cp1", Category: model.CategoryPlastic, CapacityL: 660, Active: true},
		model.Bin{ID: "b2", CollectionPointID: "cp1", Category: model.CategoryOrganic, CapacityL: 660, Active: true, LastCollectedAt: ago(80 * time.Hour)},
		model.Bin{ID: "b3", CollectionPointID: "cp2", Category: model.CategoryGlass, CapacityL: 660, Active: false},
	)
	readings := memory.NewReadingStore()
	require.NoError(t, readings.Append(ctx, model.BinReading{BinID: "b1", FillPct: 97, Timestamp: refTime}))
	require.NoError(t, readings.Append(ctx, model.BinReading{BinID: "b2", FillPct: 50, Timestamp: refTime}))

	e := NewEngine(bins, readings, logger.NopLogger{})
	e.SetClock(func() time.Time { return refTime })
	require.NoError(t, e.Refresh(ctx))

	all := e.All()
	require.Len(t, all, 2)

	byID := map[string]BinSnapshot{}
	for _, s := range all {
		byID[s.BinID] = s
	}
	assert.True(t, byID["b1"].Emergency)
	assert.Equal(t, ReasonFillOver95, byID["b1"].Reason)
	assert.True(t, byID["b2"].Emergency)
	assert.Equal(t, ReasonOrganic40In48h, byID["b2"].Reason)

	urgent := e.Emergencies()
	assert.Len(t, urgent, 2)
}

func TestRefreshSkipsBinsWithoutReading(t *testing.T) {
	ctx := context.Background()
	bins := memory.NewBinStore(
		model.Bin{ID: "b1", CollectionPointID: "cp1", Category: model.CategoryPlastic, CapacityL: 660, Active: true},
		model.Bin{ID: "b2", CollectionPointID: "cp1", Category: model.CategoryPaper, CapacityL: 660, Active: true},
	)
	readings := memory.NewReadingStore()
	require.NoError(t, readings.Append(ctx, model.BinReading{BinID: "b1", FillPct: 10, Timestamp: refTime}))

	e := NewEngine(bins, readings, logger.NopLogger{})
	e.SetClock(func() time.Time { return refTime })
	require.NoError(t, e.Refresh(ctx))

	all := e.All()
	require.Len(t, all, 1)
	assert.Equal(t, "b1", all[0].BinID)
	assert.Empty(t, e.Emergencies())
}

func TestRefreshIsIdempotent(t *testing.T) {
	ctx := context.Background()
	bins := memory.NewBinStore(
		model.Bin{ID: "b1", CollectionPointID: "cp1", Category: model.CategoryOrganic, CapacityL: 660, Active: true, LastCollectedAt: ago(72 * time.Hour)},
	)
	readings := memory.NewReadingStore()
	require.NoError(t, readings.Append(ctx, model.BinReading{BinID: "b1", FillPct: 20, Timestamp: refTime}))

	e := NewEngine(bins, readings, logger.NopLogger{})
	e.SetClock(func() time.Time { return refTime })

	require.NoError(t, e.Refresh(ctx))
	first := e.All()
	require.NoError(t, e.Refresh(ctx))
	second := e.All()
	assert.Equal(t, first, second)
	require.Len(t, second, 1)
	assert.Equal(t, ReasonOrganic72h, second[0].Reason)
}

func TestEmptyEngineBeforeRefresh(t *testing.T) {
	e := NewEngine(memory.NewBinStore(), memory.NewReadingStore(), logger.NopLogger{})
	assert.Empty(t, e.All())
	assert.Empty(t, e.Emergencies())
}
