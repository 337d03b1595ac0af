package tracker

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes cycle counters to Prometheus. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	cycles        *prometheus.CounterVec
	errors        *prometheus.CounterVec
	notifications *prometheus.CounterVec
	duration      prometheus.Histogram
	lastChange    prometheus.Gauge
	records       prometheus.Gauge
}

// NewMetrics creates the collectors on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pagewatch",
			Name:      "cycles_total",
			Help:      "Poll cycles by outcome (changed, unchanged, error).",
		}, []string{"result"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pagewatch",
			Name:      "errors_total",
			Help:      "Cycle errors by kind.",
		}, []string{"kind"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pagewatch",
			Name:      "notifications_total",
			Help:      "Change notifications by result (sent, failed).",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pagewatch",
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of one poll cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		lastChange: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pagewatch",
			Name:      "last_change_timestamp_seconds",
			Help:      "Unix time of the last detected change.",
		}),
		records: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pagewatch",
			Name:      "report_records",
			Help:      "Records in the last generated report.",
		}),
	}
	reg.MustRegister(m.cycles, m.errors, m.notifications, m.duration, m.lastChange, m.records)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) observeCycle(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(result).Inc()
	m.duration.Observe(d.Seconds())
}

func (m *Metrics) observeError(kind string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(kind).Inc()
}

func (m *Metrics) observeChange(at time.Time, records int) {
	if m == nil {
		return
	}
	m.lastChange.Set(float64(at.Unix()))
	m.records.Set(float64(records))
}

func (m *Metrics) observeNotification(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.notifications.WithLabelValues("failed").Inc()
		return
	}
	m.notifications.WithLabelValues("sent").Inc()
}
