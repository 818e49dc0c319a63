package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the counters the HTTP layer maintains. Label cardinality is
// kept low on purpose: method and status only, never raw paths.
type Metrics struct {
	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	salesCreated  prometheus.Counter
	salesVoided   prometheus.Counter
	saleConflicts prometheus.Counter
	saleRetries   prometheus.Counter
	registry      *prometheus.Registry
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_http_requests_total",
			Help: "HTTP requests by method and status code.",
		}, []string{"method", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pos_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		salesCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "pos_sales_created_total",
			Help: "Successfully committed sales.",
		}),
		salesVoided: factory.NewCounter(prometheus.CounterOpts{
			Name: "pos_sales_voided_total",
			Help: "Successfully voided sales.",
		}),
		saleConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "pos_sale_conflicts_total",
			Help: "Checkout attempts rejected by an optimistic concurrency conflict.",
		}),
		saleRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "pos_sale_retry_exhausted_total",
			Help: "Checkouts that exhausted their retry budget.",
		}),
		registry: registry,
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (m *Metrics) observe(method string, status int, elapsed time.Duration) {
	m.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method).Observe(elapsed.Seconds())
}
