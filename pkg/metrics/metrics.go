// Package metrics carries the Prometheus instrumentation for the
// ingestion pipeline, queue dispatcher, event bus, and search gateway.
//
// A nil *Metrics is valid everywhere and records nothing, so callers
// never need their own guards when instrumentation is disabled.
package metrics

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quernlabs/quern/pkg/models"
)

// Metrics owns a dedicated registry plus every instrument the pipeline
// reports into. It satisfies ingest.Metrics, queue.DispatcherMetrics,
// and search.Metrics.
type Metrics struct {
	registry *prometheus.Registry

	uploadsTotal      *prometheus.CounterVec
	uploadBytes       prometheus.Histogram
	callbacksTotal    *prometheus.CounterVec
	stageDuration     *prometheus.HistogramVec
	queueAttempts     *prometheus.CounterVec
	searchRequests    *prometheus.CounterVec
	searchDuration    prometheus.Histogram
	embeddingDuration prometheus.Histogram
}

// New creates the instrument set on a fresh registry that also carries
// the standard Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Metrics{
		registry: reg,
		uploadsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "quern_uploads_total",
				Help: "Accepted uploads by source, format, and processing lane",
			},
			[]string{"source", "format", "lane"},
		),
		uploadBytes: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "quern_upload_bytes",
				Help: "Distribution of accepted upload sizes in bytes",
				Buckets: []float64{
					1 << 10,  // 1 KiB
					64 << 10, // 64 KiB
					1 << 20,  // 1 MiB
					5 << 20,  // 5 MiB
					10 << 20, // 10 MiB
					50 << 20, // 50 MiB
					100 << 20,
				},
			},
		),
		callbacksTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "quern_callbacks_total",
				Help: "Applied processing callbacks by terminal result",
			},
			[]string{"result"},
		),
		stageDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "quern_processing_duration_seconds",
				Help: "Processing stage durations as reported by the pipeline",
				Buckets: []float64{
					0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300,
				},
			},
			[]string{"stage"},
		),
		queueAttempts: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "quern_queue_attempts_total",
				Help: "Dispatch attempts by outcome (dispatched, requeued, timeout, dispatch_failed)",
			},
			[]string{"result"},
		),
		searchRequests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "quern_search_requests_total",
				Help: "Search queries by mode and terminal status",
			},
			[]string{"mode", "status"},
		),
		searchDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "quern_search_duration_seconds",
				Help:    "End-to-end search latency including query embedding",
				Buckets: prometheus.DefBuckets,
			},
		),
		embeddingDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "quern_embedding_duration_seconds",
				Help:    "Query embedding round-trip latency",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

// Registry exposes the backing registry for custom collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns the scrape handler for the dedicated metrics server.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// NewServer builds the dedicated metrics HTTP server. The caller owns
// its lifecycle.
func NewServer(port int, m *Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// UploadAccepted records one created document.
func (m *Metrics) UploadAccepted(source models.SourceType, format models.DocumentFormat, lane models.ProcessingLane, sizeBytes int64) {
	if m == nil {
		return
	}
	m.uploadsTotal.WithLabelValues(string(source), string(format), string(lane)).Inc()
	if sizeBytes > 0 {
		m.uploadBytes.Observe(float64(sizeBytes))
	}
}

// CallbackApplied records one settled processing callback.
func (m *Metrics) CallbackApplied(result string) {
	if m == nil {
		return
	}
	m.callbacksTotal.WithLabelValues(result).Inc()
}

// StageObserved records one processing stage duration.
func (m *Metrics) StageObserved(stage string, d time.Duration) {
	if m == nil || d < 0 {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// JobDispatched records one job handed to a worker.
func (m *Metrics) JobDispatched() {
	if m == nil {
		return
	}
	m.queueAttempts.WithLabelValues("dispatched").Inc()
}

// JobRequeued records one job returned to the queue for another attempt.
func (m *Metrics) JobRequeued() {
	if m == nil {
		return
	}
	m.queueAttempts.WithLabelValues("requeued").Inc()
}

// JobDeadLettered records one job moved to the dead-letter list. The
// reason (TIMEOUT, DISPATCH_FAILED) becomes the result label.
func (m *Metrics) JobDeadLettered(reason string) {
	if m == nil {
		return
	}
	result := strings.ToLower(reason)
	if result == "" {
		result = "dead_lettered"
	}
	m.queueAttempts.WithLabelValues(result).Inc()
}

// SearchObserved records one search query.
func (m *Metrics) SearchObserved(mode, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.searchRequests.WithLabelValues(mode, status).Inc()
	m.searchDuration.Observe(d.Seconds())
}

// EmbeddingObserved records one query-embedding round trip.
func (m *Metrics) EmbeddingObserved(d time.Duration) {
	if m == nil {
		return
	}
	m.embeddingDuration.Observe(d.Seconds())
}
