package optimizer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts the rewrites applied by each pass and times the passes.
type Metrics struct {
	rewrites *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the optimizer metrics and registers them with reg
// unless reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		rewrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "conclave",
				Subsystem: "optimizer",
				Name:      "rewrites_total",
				Help:      "Number of graph rewrites applied, by pass.",
			},
			[]string{"pass"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "conclave",
				Subsystem: "optimizer",
				Name:      "pass_duration_seconds",
				Help:      "Time spent in each rewrite pass.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"pass"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.rewrites, m.duration)
	}
	return m
}

func (m *Metrics) observe(pass string, rewrites int, d time.Duration) {
	if m == nil {
		return
	}
	m.rewrites.WithLabelValues(pass).Add(float64(rewrites))
	m.duration.WithLabelValues(pass).Observe(d.Seconds())
}
