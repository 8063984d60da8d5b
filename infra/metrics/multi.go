package metrics

import (
	"errors"

	coremetrics "github.com/ecollecte/wastefleet/core/metrics"
)

// Sink combines the tournee and pass recording interfaces implemented by
// every sink in this package.
type Sink interface {
	coremetrics.MetricsSink
	coremetrics.PassRecorder
}

// MultiSink fans records out to several sinks. Errors are joined so one
// failing sink does not hide the others.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink creates a MultiSink from the given sinks. Nil entries are
// skipped.
func NewMultiSink(sinks ...Sink) *MultiSink {
	out := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return &MultiSink{sinks: out}
}

func (m *MultiSink) RecordPlannedTournees(tournees []coremetrics.PlannedTournee) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.RecordPlannedTournees(tournees); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordPassResult(res coremetrics.PassResult) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.RecordPassResult(res); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
