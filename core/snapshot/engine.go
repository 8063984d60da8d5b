// Package snapshot maintains the in-memory view of bin state used by the
// planning scheduler, including emergency classification.
package snapshot

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/ecollecte/wastefleet/core/logger"
	"github.com/ecollecte/wastefleet/core/model"
	"github.com/ecollecte/wastefleet/core/store"
)

// EmergencyReason is a short code explaining why a bin was classified as an
// emergency.
type EmergencyReason string

const (
	ReasonFillOver95     EmergencyReason = "FILL_OVER_95"
	ReasonOrganic40In48h EmergencyReason = "ORGANIC_40_48H"
	ReasonOrganic72h     EmergencyReason = "ORGANIC_72H"
)

// BinSnapshot is the latest known state of one bin. Snapshots are rebuilt
// wholesale on every refresh; readers never observe a partially updated set.
type BinSnapshot struct {
	BinID             string              `json:"bin_id"`
	CollectionPointID string              `json:"collection_point_id"`
	Category          model.TrashCategory `json:"category"`
	FillPct           float64             `json:"fill_pct"`
	LastCollectedAt   *time.Time          `json:"last_collected_at,omitempty"`
	Emergency         bool                `json:"emergency"`
	Reason            EmergencyReason     `json:"reason,omitempty"`
}

// Engine periodically evaluates emergency rules over active bins.
type Engine struct {
	bins     store.BinStore
	readings store.ReadingStore
	log      logger.Logger
	now      func() time.Time

	cur atomic.Pointer[map[string]BinSnapshot]
}

// NewEngine creates a snapshot engine over the given stores.
func NewEngine(bins store.BinStore, readings store.ReadingStore, log logger.Logger) *Engine {
	e := &Engine{bins: bins, readings: readings, log: log, now: time.Now}
	empty := map[string]BinSnapshot{}
	e.cur.Store(&empty)
	return e
}

// SetClock overrides the time source. Intended for tests.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// Refresh rebuilds the snapshot map from active bins and their latest
// readings, then publishes it atomically. Bins that never reported a reading
// are skipped; they are surfaced via the bins_without_reading gauge so a
// sensor outage does not stay invisible.
func (e *Engine) Refresh(ctx context.Context) error {
	bins, err := e.bins.ActiveBins(ctx)
	if err != nil {
		return err
	}

	now := e.now()
	next := make(map[string]BinSnapshot, len(bins))
	missing := 0
	emergencies := 0

	for _, bin := range bins {
		reading, err := e.readings.LatestReading(ctx, bin.ID)
		if errors.Is(err, store.ErrNotFound) {
			missing++
			continue
		}
		if err != nil {
			return err
		}

		emergency, reason := Classify(bin.Category, reading.FillPct, bin.LastCollectedAt, now)
		if emergency {
			emergencies++
		}
		next[bin.ID] = BinSnapshot{
			BinID:             bin.ID,
			CollectionPointID: bin.CollectionPointID,
			Category:          bin.Category,
			FillPct:           reading.FillPct,
			LastCollectedAt:   bin.LastCollectedAt,
			Emergency:         emergency,
			Reason:            reason,
		}
	}

	e.cur.Store(&next)
	binsWithoutReading.Set(float64(missing))
	emergencyBins.Set(float64(emergencies))
	snapshotSize.Set(float64(len(next)))
	e.log.Infof("bin snapshots refreshed: total=%d emergencies=%d unread=%d", len(next), emergencies, missing)
	return nil
}

// All returns every current snapshot.
func (e *Engine) All() []BinSnapshot {
	m := *e.cur.Load()
	out := make([]BinSnapshot, 0, len(m))
	for _, s := range m {
		out = append(out, s)
	}
	return out
}

// Emergencies returns the subset of snapshots classified as emergencies.
func (e *Engine) Emergencies() []BinSnapshot {
	m := *e.cur.Load()
	var out []BinSnapshot
	for _, s := range m {
		if s.Emergency {
			out = append(out, s)
		}
	}
	return out
}

// Classify applies the emergency rules in fixed precedence order, first
// match wins:
//
//  1. fill >= 95%                                  -> FILL_OVER_95
//  2. organic, fill > 40%, uncollected >= 48h      -> ORGANIC_40_48H
//  3. organic, uncollected >= 72h, any fill        -> ORGANIC_72H
//
// With an unknown lastCollectedAt, rules 2 and 3 never fire.
func Classify(cat model.TrashCategory, fillPct float64, lastCollectedAt *time.Time, now time.Time) (bool, EmergencyReason) {
	if fillPct >= 95 {
		return true, ReasonFillOver95
	}
	if lastCollectedAt == nil {
		return false, ""
	}
	since := now.Sub(*lastCollectedAt)
	if cat == model.CategoryOrganic && fillPct > 40 && since >= 48*time.Hour {
		return true, ReasonOrganic40In48h
	}
	if cat == model.CategoryOrganic && since >= 72*time.Hour {
		return true, ReasonOrganic72h
	}
	return false, ""
}
