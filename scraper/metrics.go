package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scraper.
type Metrics struct {
	Registry           *prometheus.Registry
	RequestsTotal      *prometheus.CounterVec
	RequestDuration    prometheus.Histogram
	BooksRecordedTotal prometheus.Counter
	BooksAbsentTotal   prometheus.Counter
	RetriesTotal       prometheus.Counter
	ErrorsTotal        *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "library_requests_total",
			Help: "Total HTTP requests issued by the crawler, by phase.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "library_request_duration_seconds",
			Help:    "HTTP request latency for crawler requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	recorded := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "library_books_recorded_total",
			Help: "Total number of books added to the catalog.",
		},
	)
	absent := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "library_books_absent_total",
			Help: "Total number of book IDs the catalog redirected away from.",
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "library_retries_total",
			Help: "Total number of retry attempts scheduled.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "library_errors_total",
			Help: "Total number of crawler errors by type.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(requests, requestDuration, recorded, absent, retries, errorsTotal)

	return &Metrics{
		Registry:           registry,
		RequestsTotal:      requests,
		RequestDuration:    requestDuration,
		BooksRecordedTotal: recorded,
		BooksAbsentTotal:   absent,
		RetriesTotal:       retries,
		ErrorsTotal:        errorsTotal,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncRecorded increments the recorded books counter.
func (m *Metrics) IncRecorded() {
	if m == nil {
		return
	}
	m.BooksRecordedTotal.Inc()
}

// IncAbsent increments the absent books counter.
func (m *Metrics) IncAbsent() {
	if m == nil {
		return
	}
	m.BooksAbsentTotal.Inc()
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
