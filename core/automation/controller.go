// Package automation holds the global automation mode gating the planning
// scheduler.
package automation

import (
	"context"
	"errors"
	"sync"

	"github.com/ecollecte/wastefleet/core/model"
	"github.com/ecollecte/wastefleet/core/store"
)

// SingletonID is the fixed id of the persisted automation config row.
const SingletonID = "GLOBAL"

const defaultScanIntervalMin = 15

// ModeController reads and writes the automation mode. The singleton row is
// created lazily with mode OFF on first access. All transitions are allowed.
type ModeController struct {
	cfg store.ConfigStore

	mu sync.Mutex
}

// NewModeController returns a controller over the given config store.
func NewModeController(cfg store.ConfigStore) *ModeController {
	return &ModeController{cfg: cfg}
}

// Mode returns the current automation mode.
func (c *ModeController) Mode(ctx context.Context) (model.AutomationMode, error) {
	cfg, err := c.getOrCreate(ctx)
	if err != nil {
		return "", err
	}
	return cfg.Mode, nil
}

// SetMode persists the new mode and returns it.
func (c *ModeController) SetMode(ctx context.Context, mode model.AutomationMode) (model.AutomationMode, error) {
	if _, err := model.ParseAutomationMode(string(mode)); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	cfg, err := c.getOrCreateLocked(ctx)
	if err != nil {
		return "", err
	}
	cfg.Mode = mode
	if err := c.cfg.Put(ctx, cfg); err != nil {
		return "", err
	}
	return cfg.Mode, nil
}

func (c *ModeController) getOrCreate(ctx context.Context) (model.AutomationConfig, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getOrCreateLocked(ctx)
}

func (c *ModeController) getOrCreateLocked(ctx context.Context) (model.AutomationConfig, error) {
	cfg, err := c.cfg.Get(ctx)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return model.AutomationConfig{}, err
	}
	cfg = model.AutomationConfig{
		ID:                       SingletonID,
		Mode:                     model.ModeOff,
		EmergencyScanIntervalMin: defaultScanIntervalMin,
	}
	if err := c.cfg.Put(ctx, cfg); err != nil {
		return model.AutomationConfig{}, err
	}
	return cfg, nil
}
