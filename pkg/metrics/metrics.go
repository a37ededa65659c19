// Package metrics defines the Prometheus metric collectors used across the
// note services and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the note services.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	NotesSavedTotal      prometheus.Counter
	NotesUpdatedTotal    prometheus.Counter
	NotesDeletedTotal    prometheus.Counter
	SearchesTotal        *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	SearchResultsCount   prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	FeedEventsPublished  prometheus.Counter
	FeedEventsDropped    prometheus.Counter
	ArchiveEventsTotal   *prometheus.CounterVec
}

// New creates all collectors and registers them on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates all collectors and registers them on reg. Tests pass a
// fresh registry so repeated construction does not collide.
func NewWith(reg prometheus.Registerer) *Metrics {
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
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		NotesSavedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "notes_saved_total",
				Help: "Total notes saved.",
			},
		),
		NotesUpdatedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "notes_updated_total",
				Help: "Total notes updated.",
			},
		),
		NotesDeletedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "notes_deleted_total",
				Help: "Total notes deleted.",
			},
		),
		SearchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "searches_total",
				Help: "Total search requests by result type (ok, zero_result, error).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_results_count",
				Help:    "Number of notes returned per search.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 1000},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of search cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of search cache misses.",
			},
		),
		FeedEventsPublished: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "feed_events_published_total",
				Help: "Total note events published to the feed.",
			},
		),
		FeedEventsDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "feed_events_dropped_total",
				Help: "Total note events dropped because the feed buffer was full.",
			},
		),
		ArchiveEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archive_events_total",
				Help: "Total feed events archived by event type.",
			},
			[]string{"type"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.NotesSavedTotal,
		m.NotesUpdatedTotal,
		m.NotesDeletedTotal,
		m.SearchesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.FeedEventsPublished,
		m.FeedEventsDropped,
		m.ArchiveEventsTotal,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
