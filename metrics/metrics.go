// Package metrics exposes Prometheus instrumentation for the ingestion pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "realestate"

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds the pipeline collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	RunsTotal           *prometheus.CounterVec
	RunDuration         prometheus.Histogram
	AcquisitionAttempts *prometheus.CounterVec
	ListingsReconciled  *prometheus.CounterVec
	ListingsDeactivated prometheus.Counter
	GeocodeRequests     *prometheus.CounterVec
}

// New creates the collectors on a dedicated registry, alongside the Go runtime
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome",
		}, []string{"outcome"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of pipeline runs",
			Buckets:   []float64{10, 30, 60, 120, 300, 600, 1200, 1800, 3600},
		}),
		AcquisitionAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "acquisition_attempts_total",
			Help:      "Acquisition strategy attempts by strategy and outcome",
		}, []string{"strategy", "outcome"}),
		ListingsReconciled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "listings_reconciled_total",
			Help:      "Reconciled raw listings by result (new, updated, failed)",
		}, []string{"result"}),
		ListingsDeactivated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "listings_deactivated_total",
			Help:      "Listings marked inactive by the staleness sweep",
		}),
		GeocodeRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "geocode_requests_total",
			Help:      "Geocoding lookups by status",
		}, []string{"status"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveRun(err error, d time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(outcome(err)).Inc()
	m.RunDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveAttempt(strategy string, err error) {
	if m == nil {
		return
	}
	m.AcquisitionAttempts.WithLabelValues(strategy, outcome(err)).Inc()
}

func (m *Metrics) ObserveReconciled(result string) {
	if m == nil {
		return
	}
	m.ListingsReconciled.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveDeactivated(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.ListingsDeactivated.Add(float64(n))
}

func (m *Metrics) ObserveGeocode(status string) {
	if m == nil {
		return
	}
	m.GeocodeRequests.WithLabelValues(status).Inc()
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}
