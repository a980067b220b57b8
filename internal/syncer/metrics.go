package syncer

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Round results.
const (
	resultOK     = "ok"
	resultFailed = "failed"
)

// Metrics are the synchronization counters exported to Prometheus.
type Metrics struct {
	Rounds   *prometheus.CounterVec
	Pulled   prometheus.Counter
	Pushed   prometheus.Counter
	Entries  prometheus.Gauge
	Duration prometheus.Histogram
}

// NewMetrics creates the syncer metrics and registers them on reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Rounds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "signerstate",
			Subsystem: "sync",
			Name:      "rounds_total",
			Help:      "Synchronization rounds by result.",
		}, []string{"result"}),
		Pulled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "signerstate",
			Subsystem: "sync",
			Name:      "pulled_entries_total",
			Help:      "Entries merged from the peer.",
		}),
		Pushed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "signerstate",
			Subsystem: "sync",
			Name:      "pushed_entries_total",
			Help:      "Entries pushed to the peer.",
		}),
		Entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "signerstate",
			Subsystem: "store",
			Name:      "entries",
			Help:      "Entries in the local store after the last round.",
		}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "signerstate",
			Subsystem: "sync",
			Name:      "round_duration_seconds",
			Help:      "Wall time of a synchronization round.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}),
	}

	if reg != nil {
		reg.MustRegister(m.Rounds, m.Pulled, m.Pushed, m.Entries, m.Duration)
	}
	return m
}
