// Package metrics exposes Prometheus collectors for a harvest run.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the collectors on a dedicated registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Registry        *prometheus.Registry
	TargetsTotal    *prometheus.CounterVec
	ErrorsTotal     *prometheus.CounterVec
	BatchDuration   prometheus.Histogram
	OpenSessions    prometheus.Gauge
	PagesWalked     prometheus.Counter
	DuplicatesFound *prometheus.GaugeVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	targets := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_targets_total",
			Help: "Targets processed by the batch scheduler, by outcome.",
		},
		[]string{"outcome"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_errors_total",
			Help: "Per-target task failures by error type.",
		},
		[]string{"error_type"},
	)
	batchDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "harvest_batch_duration_seconds",
			Help:    "Wall time of one batch, excluding the inter-batch delay.",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600},
		},
	)
	openSessions := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "harvest_open_sessions",
			Help: "Rendering sessions currently held by the pool.",
		},
	)
	pages := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harvest_listing_pages_total",
			Help: "Listing pages extracted by the pagination walker.",
		},
	)
	duplicates := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "harvest_duplicates",
			Help: "Duplicate keys found in the last report, by field.",
		},
		[]string{"field"},
	)

	registry.MustRegister(targets, errorsTotal, batchDuration, openSessions, pages, duplicates)

	return &Metrics{
		Registry:        registry,
		TargetsTotal:    targets,
		ErrorsTotal:     errorsTotal,
		BatchDuration:   batchDuration,
		OpenSessions:    openSessions,
		PagesWalked:     pages,
		DuplicatesFound: duplicates,
	}
}

// IncTarget counts one finished target; outcome is "ok", "failed" or "cached".
func (m *Metrics) IncTarget(outcome string) {
	if m == nil {
		return
	}
	m.TargetsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

func (m *Metrics) ObserveBatch(d time.Duration) {
	if m == nil {
		return
	}
	m.BatchDuration.Observe(d.Seconds())
}

// AddSessions moves the open-session gauge by delta.
func (m *Metrics) AddSessions(delta int) {
	if m == nil {
		return
	}
	m.OpenSessions.Add(float64(delta))
}

func (m *Metrics) IncPages() {
	if m == nil {
		return
	}
	m.PagesWalked.Inc()
}

func (m *Metrics) SetDuplicates(field string, n int) {
	if m == nil {
		return
	}
	m.DuplicatesFound.WithLabelValues(field).Set(float64(n))
}
