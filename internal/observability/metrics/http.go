package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// IntakeMetrics is the registry behind the intake service's /metrics.
type IntakeMetrics struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	inFlight    prometheus.Gauge
	uploadBytes *prometheus.HistogramVec

	analyzed        *prometheus.CounterVec
	analysisLatency *prometheus.HistogramVec
	notifications   *prometheus.CounterVec
	retries         *prometheus.CounterVec
	breakerOpen     *prometheus.GaugeVec
}

func NewIntakeMetrics(service string) *IntakeMetrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	m := &IntakeMetrics{
		registry: reg,
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"service", "method", "path", "status"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"service", "method", "path"}),
		inFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "http", Name: "in_flight_requests",
			Help:        "Requests currently being served.",
			ConstLabels: prometheus.Labels{"service": service},
		}),
		uploadBytes: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "upload_size_bytes",
			Help:    "Declared Content-Length of analyze uploads.",
			Buckets: prometheus.ExponentialBuckets(16<<10, 4, 8),
		}, []string{"service"}),
	}
	m.registerAnalysis(f)
	return m
}

func (m *IntakeMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *IntakeMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := routeLabel(r.URL.Path)
		if isAnalyzeRoute(path) && r.ContentLength > 0 {
			m.uploadBytes.WithLabelValues(service).Observe(float64(r.ContentLength))
		}

		m.inFlight.Inc()
		defer m.inFlight.Dec()

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		m.requests.WithLabelValues(service, r.Method, path, strconv.Itoa(sw.status)).Inc()
		m.latency.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// routeLabel bounds label cardinality to the served routes.
func routeLabel(path string) string {
	switch path {
	case "/analyze_document", "/v1/documents/analyze", "/healthz", "/metrics", "/openapi.json":
		return path
	default:
		return "other"
	}
}

func isAnalyzeRoute(path string) bool {
	return path == "/analyze_document" || path == "/v1/documents/analyze"
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
