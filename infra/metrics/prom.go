package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/ecollecte/wastefleet/core/metrics"
)

// PromSink records planning events in Prometheus metrics.
type PromSink struct {
	planned  *prometheus.CounterVec
	distance *prometheus.CounterVec
	co2      *prometheus.CounterVec
	passes   *prometheus.CounterVec
	passTime *prometheus.HistogramVec
}

// NewPromSink registers planning metrics on the default Prometheus
// registerer. The metrics server is started separately.
func NewPromSink(cfg coremetrics.Config) (*PromSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(cfg coremetrics.Config, reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	planned := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tournees_planned_total",
		Help: "Total number of tournees planned",
	}, []string{"category"})
	distance := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "planned_distance_km_total",
		Help: "Cumulative planned distance in km",
	}, []string{"category"})
	co2 := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "planned_co2_grams_total",
		Help: "Cumulative planned CO2 in grams",
	}, []string{"category"})
	passes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "planning_passes_total",
		Help: "Number of scheduler passes executed",
	}, []string{"kind", "failed"})
	passTime := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "planning_pass_duration_seconds",
		Help:    "Duration of scheduler passes",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	s := &PromSink{planned: planned, distance: distance, co2: co2, passes: passes, passTime: passTime}
	for _, c := range []prometheus.Collector{planned, distance, co2, passes, passTime} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return nil, err
			}
		}
	}
	return s, nil
}

// RecordPlannedTournees increments per-category planning counters.
func (s *PromSink) RecordPlannedTournees(tournees []coremetrics.PlannedTournee) error {
	for _, t := range tournees {
		cat := string(t.Category)
		s.planned.WithLabelValues(cat).Inc()
		s.distance.WithLabelValues(cat).Add(t.DistanceKm)
		s.co2.WithLabelValues(cat).Add(t.CO2Grams)
	}
	return nil
}

// RecordPassResult observes one scheduler pass.
func (s *PromSink) RecordPassResult(res coremetrics.PassResult) error {
	s.passes.WithLabelValues(res.Kind, strconv.FormatBool(res.Failures > 0)).Inc()
	s.passTime.WithLabelValues(res.Kind).Observe(res.Duration.Seconds())
	return nil
}
