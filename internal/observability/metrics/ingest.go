package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/document-intake/internal/core/domain"
)

// IngestMetrics collects batch-job counters. The job is short-lived, so the
// registry is flushed to a node_exporter textfile instead of being scraped.
type IngestMetrics struct {
	registry *prometheus.Registry

	filesTotal    *prometheus.CounterVec
	fileDuration  *prometheus.HistogramVec
	chunksTotal   prometheus.Counter
	lastRunTime   prometheus.Gauge
	lastRunFailed prometheus.Gauge
}

func NewIngestMetrics(service string) *IngestMetrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	filesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "files_total",
			Help:      "Ingested source files by status.",
		},
		[]string{"service", "status"},
	)
	fileDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "file_duration_seconds",
			Help:      "Per-file ingestion duration in seconds by status.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service", "status"},
	)
	chunksTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   "ingest",
		Name:        "chunks_total",
		Help:        "Chunks written to the vector store.",
		ConstLabels: constLabels,
	})
	lastRunTime := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Subsystem:   "ingest",
		Name:        "last_run_timestamp_seconds",
		Help:        "Unix time the last ingestion run finished.",
		ConstLabels: constLabels,
	})
	lastRunFailed := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Subsystem:   "ingest",
		Name:        "last_run_failed_files",
		Help:        "Files that failed in the last ingestion run.",
		ConstLabels: constLabels,
	})

	registry.MustRegister(filesTotal, fileDuration, chunksTotal, lastRunTime, lastRunFailed)

	return &IngestMetrics{
		registry:      registry,
		filesTotal:    filesTotal,
		fileDuration:  fileDuration,
		chunksTotal:   chunksTotal,
		lastRunTime:   lastRunTime,
		lastRunFailed: lastRunFailed,
	}
}

func (m *IngestMetrics) ObserveSummary(service string, summary *domain.IngestSummary, finishedAt time.Time) {
	if summary == nil {
		return
	}
	for _, rec := range summary.Records {
		status := string(rec.Status)
		m.filesTotal.WithLabelValues(service, status).Inc()
		if d := rec.UpdatedAt.Sub(rec.CreatedAt); d >= 0 {
			m.fileDuration.WithLabelValues(service, status).Observe(d.Seconds())
		}
	}
	m.chunksTotal.Add(float64(summary.Chunks))
	m.lastRunFailed.Set(float64(summary.Failed))
	m.lastRunTime.Set(float64(finishedAt.Unix()))
}

func (m *IngestMetrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
