package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	roleLabel    = "role"
	outcomeLabel = "outcome"
)

// Recorder exposes dispatch counters on its own registry.
type Recorder struct {
	registry      *prometheus.Registry
	dispatches    *prometheus.CounterVec
	lastCompleted prometheus.Gauge
	duration      prometheus.Histogram
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_dispatch_total",
				Help: "number of dispatches by role and outcome",
			},
			[]string{roleLabel, outcomeLabel},
		),
		lastCompleted: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relay_last_completed_hour",
			Help: "UTC hour of the last completed window, -1 before the first",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "relay_dispatch_seconds",
			Help:    "time spent in one dispatch",
			Buckets: prometheus.DefBuckets,
		}),
	}
	r.lastCompleted.Set(-1)
	r.registry.MustRegister(r.dispatches, r.lastCompleted, r.duration)

	return r
}

// Dispatch counts one dispatch; outcome is "ok" or an error class.
func (r *Recorder) Dispatch(role, outcome string, seconds float64) {
	r.dispatches.WithLabelValues(role, outcome).Inc()
	r.duration.Observe(seconds)
}

func (r *Recorder) Completed(hour int) {
	r.lastCompleted.Set(float64(hour))
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
