package metrics

import (
	"time"

	"github.com/ecollecte/wastefleet/core/model"
)

// PlannedTournee represents one tournee produced by a planning pass.
type PlannedTournee struct {
	TourneeID  string
	Category   model.TrashCategory
	VehicleID  string
	DistanceKm float64
	CO2Grams   float64
	Stops      int
	Time       time.Time
}

// MetricsSink records planned tournees for observability purposes.
type MetricsSink interface {
	RecordPlannedTournees(tournees []PlannedTournee) error
}

// PassResult summarizes one scheduler pass (emergency or full).
type PassResult struct {
	Kind     string
	Mode     model.AutomationMode
	Planned  int
	Failures int
	Duration time.Duration
	Time     time.Time
}

// PassRecorder records scheduler pass summaries.
type PassRecorder interface {
	RecordPassResult(res PassResult) error
}

// Config holds settings for metric sinks.
type Config struct {
	PrometheusEnabled bool   `json:"prometheus_enabled"`
	PrometheusPort    string `json:"prometheus_port"`
	InfluxEnabled     bool   `json:"influx_enabled"`
	InfluxURL         string `json:"influx_url"`
	InfluxToken       string `json:"influx_token"`
	InfluxOrg         string `json:"influx_org"`
	InfluxBucket      string `json:"influx_bucket"`
}

// NopSink discards all records.
type NopSink struct{}

func (NopSink) RecordPlannedTournees([]PlannedTournee) error { return nil }
func (NopSink) RecordPassResult(PassResult) error            { return nil }
