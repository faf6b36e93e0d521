package server

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "jotter"

// Metrics holds the server's prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	requests              *prometheus.CounterVec
	uploads               *prometheus.CounterVec
	uploadedBytes         prometheus.Counter
	deletions             *prometheus.CounterVec
	orphanCleanupFailures prometheus.Counter
	gcDeletedBlobs        prometheus.Counter
}

// NewMetrics registers the server collectors on reg.
func NewMetrics(reg *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{
		gatherer: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests processed.",
		}, []string{"method", "route", "status"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "attachment_uploads_total",
			Help:      "Attachment upload attempts by outcome.",
		}, []string{"outcome"}),
		uploadedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "attachment_uploaded_bytes_total",
			Help:      "Bytes written to the blob store by successful uploads.",
		}),
		deletions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "attachment_deletions_total",
			Help:      "Attachment deletions by blob outcome.",
		}, []string{"blob"}),
		orphanCleanupFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "orphan_cleanup_failures_total",
			Help:      "Compensating blob deletes that failed after a registry append error.",
		}),
		gcDeletedBlobs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "gc_deleted_blobs_total",
			Help:      "Unreferenced blobs removed by garbage collection.",
		}),
	}

	for _, c := range []prometheus.Collector{m.requests, m.uploads, m.uploadedBytes, m.deletions, m.orphanCleanupFailures, m.gcDeletedBlobs} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) observeRequest(method, route string, status int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

func (m *Metrics) observeUpload(outcome string, size int64) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(outcome).Inc()
	if size > 0 {
		m.uploadedBytes.Add(float64(size))
	}
}

func (m *Metrics) observeDeletion(blobOutcome string) {
	if m == nil {
		return
	}
	m.deletions.WithLabelValues(blobOutcome).Inc()
}

func (m *Metrics) observeOrphanCleanupFailure() {
	if m == nil {
		return
	}
	m.orphanCleanupFailures.Inc()
}

func (m *Metrics) observeGCDeleted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.gcDeletedBlobs.Add(float64(n))
}
