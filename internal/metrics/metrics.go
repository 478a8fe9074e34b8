// Package metrics exposes Prometheus collectors for the export service.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	exportPagesTotal          *prometheus.CounterVec
	exportMediaFilesTotal     prometheus.Counter
	exportBatchesTotal        prometheus.Counter
	exportJobsTotal           *prometheus.CounterVec
	exportPageDurationSeconds prometheus.Histogram

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		exportPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "turnstatic_pages_total",
				Help: "Total pages attempted, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		exportMediaFilesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "turnstatic_media_files_total",
				Help: "Total media files copied into archives.",
			},
		)

		exportBatchesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "turnstatic_batches_total",
				Help: "Total advance-batch invocations processed.",
			},
		)

		exportJobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "turnstatic_jobs_total",
				Help: "Total export jobs, labeled by final disposition.",
			},
			[]string{"disposition"},
		)

		exportPageDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "turnstatic_page_duration_seconds",
				Help:    "Histogram of per-page fetch+transform latency.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
		)
	})
}

// Handler returns an http.Handler exposing the Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePage records one attempted page and its latency.
func ObservePage(outcome string, duration time.Duration) {
	exportPagesTotal.WithLabelValues(outcome).Inc()
	exportPageDurationSeconds.Observe(duration.Seconds())
}

// ObserveMedia adds to the copied media file counter.
func ObserveMedia(count int) {
	exportMediaFilesTotal.Add(float64(count))
}

// ObserveBatch increments the batch counter.
func ObserveBatch() {
	exportBatchesTotal.Inc()
}

// ObserveJob increments the job counter for the given disposition.
func ObserveJob(disposition string) {
	exportJobsTotal.WithLabelValues(disposition).Inc()
}
