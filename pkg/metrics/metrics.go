// Package metrics defines the Prometheus metric collectors used across the
// service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the inventory service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	BuildsTotal          *prometheus.CounterVec
	BuildDuration        *prometheus.HistogramVec
	ItemsScanned         prometheus.Counter
	FragmentsResolved    prometheus.Counter
	MissingReferences    prometheus.Counter
	CyclicReferences     prometheus.Counter
	NonceChecksTotal     *prometheus.CounterVec
	ActivityEventsTotal  *prometheus.CounterVec
}

// New creates all collectors and registers them with reg. Tests pass a fresh
// prometheus.NewRegistry() so repeated construction does not collide.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		BuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inventory_builds_total",
				Help: "Inventory builds by kind (usage_index, reference_index, ...) and status.",
			},
			[]string{"kind", "status"},
		),
		BuildDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "inventory_build_duration_seconds",
				Help:    "Inventory build latency in seconds.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"kind"},
		),
		ItemsScanned: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "inventory_items_scanned_total",
				Help: "Content items whose block trees were walked.",
			},
		),
		FragmentsResolved: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "inventory_fragments_resolved_total",
				Help: "Reusable fragment references dereferenced during walks.",
			},
		),
		MissingReferences: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "inventory_missing_references_total",
				Help: "Fragment references that pointed at missing or empty items.",
			},
		),
		CyclicReferences: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "inventory_cyclic_references_total",
				Help: "Walks aborted because a fragment referenced itself transitively.",
			},
		),
		NonceChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_nonce_checks_total",
				Help: "Nonce verifications by action and result (valid, invalid, error).",
			},
			[]string{"action", "result"},
		),
		ActivityEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "activity_events_total",
				Help: "Scan activity events by outcome (queued, dropped, published, failed).",
			},
			[]string{"outcome"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.BuildsTotal,
		m.BuildDuration,
		m.ItemsScanned,
		m.FragmentsResolved,
		m.MissingReferences,
		m.CyclicReferences,
		m.NonceChecksTotal,
		m.ActivityEventsTotal,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
