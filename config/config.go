// Package config loads the service configuration from a file with optional
// environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/ecollecte/wastefleet/core/assign"
	coremetrics "github.com/ecollecte/wastefleet/core/metrics"
	"github.com/ecollecte/wastefleet/core/planner"
	"github.com/ecollecte/wastefleet/core/scheduler"
	"github.com/ecollecte/wastefleet/infra/mqtt"
	"github.com/ecollecte/wastefleet/infra/store/postgres"
	"github.com/ecollecte/wastefleet/infra/telemetry"
	"github.com/ecollecte/wastefleet/infra/vroom"
)

type Config struct {
	API       APIConfig          `json:"api"`
	Storage   StorageConfig      `json:"storage"`
	MQTT      mqtt.Config        `json:"mqtt"`
	Telemetry telemetry.Config   `json:"telemetry"`
	Optimizer vroom.Config       `json:"optimizer"`
	Planner   planner.Config     `json:"planner"`
	Scheduler scheduler.Config   `json:"scheduler"`
	Assign    assign.Config      `json:"assign"`
	Metrics   coremetrics.Config `json:"metrics"`
}

// Load reads the config file, applies WF_* environment overrides and
// validates the result. WF_STORAGE__BACKEND=memory maps to storage.backend.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	if err := k.Load(env.Provider("WF_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "wf_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.API.SetDefaults()
	cfg.Storage.SetDefaults()
	cfg.Telemetry.SetDefaults()
	cfg.Optimizer.SetDefaults()
	cfg.Planner.SetDefaults()
	cfg.Scheduler.SetDefaults()
	cfg.Assign.SetDefaults()
	if err := cfg.Storage.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Optimizer.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// APIConfig holds the HTTP API settings.
type APIConfig struct {
	Addr string `json:"addr"`
}

// SetDefaults applies sane defaults.
func (c *APIConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// Backend is "postgres" or "memory".
	Backend  string          `json:"backend"`
	Postgres postgres.Config `json:"postgres"`
}

// SetDefaults applies sane defaults.
func (c *StorageConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
}

// Validate checks mandatory fields.
func (c StorageConfig) Validate() error {
	switch c.Backend {
	case "memory":
		return nil
	case "postgres":
		return c.Postgres.Validate()
	default:
		return fmt.Errorf("unknown storage backend %s", c.Backend)
	}
}
