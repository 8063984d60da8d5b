package snapshot

import "github.com/prometheus/client_golang/prometheus"

var (
	snapshotSize       prometheus.Gauge
	emergencyBins      prometheus.Gauge
	binsWithoutReading prometheus.Gauge
)

func newCollectors() (prometheus.Gauge, prometheus.Gauge, prometheus.Gauge) {
	size := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "snapshot_bins_total",
		Help: "Number of bins present in the current snapshot",
	})
	emerg := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "snapshot_emergency_bins",
		Help: "Number of bins currently classified as emergencies",
	})
	unread := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "snapshot_bins_without_reading",
		Help: "Active bins skipped during refresh because they never reported a reading",
	})
	return size, emerg, unread
}

func init() {
	snapshotSize, emergencyBins, binsWithoutReading = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers snapshot metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{snapshotSize, emergencyBins, binsWithoutReading} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				panic(err)
			}
		}
	}
}
