package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes the engine's Prometheus instruments. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	documentsCreated *prometheus.CounterVec
	paymentsRecorded *prometheus.CounterVec
	paymentAmount    *prometheus.HistogramVec
	writeConflicts   *prometheus.CounterVec
	conversions      prometheus.Counter
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// NewRegistry returns the registry holding the engine instruments.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// NewGatherer merges the engine registry with the default one, which carries
// the Go runtime, process and gorm pool collectors.
func NewGatherer(registry *prometheus.Registry) prometheus.Gatherer {
	return prometheus.Gatherers{prometheus.DefaultGatherer, registry}
}

// New registers the engine instruments on registry.
func New(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		documentsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quotebook_documents_created_total",
			Help: "Documents created by kind.",
		}, []string{"kind"}),
		paymentsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quotebook_payments_recorded_total",
			Help: "Payments recorded by method.",
		}, []string{"method"}),
		paymentAmount: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quotebook_payment_amount",
			Help:    "Recorded payment amount distribution.",
			Buckets: []float64{10, 50, 100, 500, 1000, 5000, 10000, 50000},
		}, []string{"method"}),
		writeConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quotebook_write_conflicts_total",
			Help: "Optimistic write conflicts by operation.",
		}, []string{"operation"}),
		conversions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quotebook_conversions_total",
			Help: "Quotes converted into invoices.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quotebook_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quotebook_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	registry.MustRegister(
		m.documentsCreated,
		m.paymentsRecorded,
		m.paymentAmount,
		m.writeConflicts,
		m.conversions,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

func (m *Metrics) DocumentCreated(kind string) {
	if m == nil {
		return
	}
	m.documentsCreated.WithLabelValues(sanitizeLabel(kind)).Inc()
}

func (m *Metrics) PaymentRecorded(method string, amount float64) {
	if m == nil {
		return
	}
	label := sanitizeLabel(method)
	m.paymentsRecorded.WithLabelValues(label).Inc()
	m.paymentAmount.WithLabelValues(label).Observe(amount)
}

func (m *Metrics) WriteConflict(operation string) {
	if m == nil {
		return
	}
	m.writeConflicts.WithLabelValues(sanitizeLabel(operation)).Inc()
}

func (m *Metrics) Conversion() {
	if m == nil {
		return
	}
	m.conversions.Inc()
}

// ObserveHTTPRequest records one served request.
func (m *Metrics) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	methodLabel := sanitizeLabel(method)
	routeLabel := sanitizeLabel(route)
	m.httpRequests.WithLabelValues(methodLabel, routeLabel, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(methodLabel, routeLabel).Observe(duration.Seconds())
}

func sanitizeLabel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return value
}
