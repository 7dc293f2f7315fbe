package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (m *IntakeMetrics) registerAnalysis(f promauto.Factory) {
	m.analyzed = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "analysis", Name: "documents_total",
		Help: "Analyzed documents by policy, outcome and predicted category.",
	}, []string{"service", "policy", "outcome", "category"})
	m.analysisLatency = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "analysis", Name: "duration_seconds",
		Help:    "Upload-to-response analysis time, OCR and model calls included.",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
	}, []string{"service", "policy", "outcome"})
	m.notifications = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "routing", Name: "notifications_total",
		Help: "Routing notifications by publish status.",
	}, []string{"service", "status"})
	m.retries = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "resilience", Name: "retries_total",
		Help: "Retried remote operations.",
	}, []string{"operation"})
	m.breakerOpen = f.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "resilience", Name: "breaker_open",
		Help: "1 while an operation's breaker is not closed.",
	}, []string{"operation"})
}

// RecordAnalysis counts one analyze request. outcome is one of ok,
// model_error, unsupported, extraction_error, invalid or error.
func (m *IntakeMetrics) RecordAnalysis(service, policy, outcome, category string, took time.Duration) {
	if policy == "" {
		policy = "unknown"
	}
	if category == "" {
		category = "none"
	}
	m.analyzed.WithLabelValues(service, policy, outcome, category).Inc()
	m.analysisLatency.WithLabelValues(service, policy, outcome).Observe(took.Seconds())
}

func (m *IntakeMetrics) RecordNotification(service string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.notifications.WithLabelValues(service, status).Inc()
}

func (m *IntakeMetrics) ObserveRetry(operation string) {
	m.retries.WithLabelValues(operation).Inc()
}

func (m *IntakeMetrics) ObserveBreakerState(operation, state string) {
	open := 1.0
	if state == "closed" {
		open = 0
	}
	m.breakerOpen.WithLabelValues(operation).Set(open)
}
