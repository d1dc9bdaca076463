package metrics

/*
adscheck — ads.txt / app-ads.txt validation tool in Go
Copyright (C) 2026  adscheck authors

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package metrics exposes Prometheus metrics for fetch latency, task
// throughput, outcome classification counts, and worker pool health.
// Collection is opt-in: when metrics are not enabled the recording
// helpers are no-ops and no listener is started.

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry           = prometheus.NewRegistry()
	defaultRegisterer  = promauto.With(registry)
	metricsInitialized sync.Once
	metricsEnabled     bool
	metricsServer      *http.Server
)

// Metrics contains all the Prometheus metrics for the application.
type Metrics struct {
	// Fetch metrics
	FetchDuration        *prometheus.HistogramVec
	FetchTotal           *prometheus.CounterVec
	SSLDowngradesTotal   prometheus.Counter
	DNSPreflightRejected prometheus.Counter

	// Outcome metrics
	OutcomesTotal *prometheus.CounterVec
	TargetsTotal  *prometheus.CounterVec

	// Task metrics
	TaskDuration prometheus.Histogram
	RunDuration  prometheus.Histogram
	RunsTotal    prometheus.Counter

	// Queue metrics
	QueueSize            *prometheus.GaugeVec
	QueueCapacity        *prometheus.GaugeVec
	QueueBackpressureHit *prometheus.CounterVec

	// Worker metrics
	WorkerBusy      *prometheus.GaugeVec
	WorkerProcessed *prometheus.CounterVec
	WorkerPanics    *prometheus.CounterVec
}

// Global instance of metrics
var globalMetrics *Metrics
var metricsOnce sync.Once

// GetMetrics returns the global metrics instance.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = newMetrics()
	})
	return globalMetrics
}

// EnableMetrics enables metrics collection.
func EnableMetrics() {
	metricsEnabled = true
}

// IsMetricsEnabled returns whether metrics collection is enabled.
func IsMetricsEnabled() bool {
	return metricsEnabled
}

// newMetrics creates and registers all metrics.
func newMetrics() *Metrics {
	buckets := []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15, 30, 60}

	return &Metrics{
		FetchDuration: defaultRegisterer.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "adscheck_fetch_duration_seconds",
				Help:    "Time spent fetching an authorization file",
				Buckets: buckets,
			},
			[]string{"file"},
		),
		FetchTotal: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adscheck_fetch_total",
				Help: "Total number of fetch attempts by final status",
			},
			[]string{"file", "status"},
		),
		SSLDowngradesTotal: defaultRegisterer.NewCounter(
			prometheus.CounterOpts{
				Name: "adscheck_ssl_downgrades_total",
				Help: "Fetches that succeeded only after disabling certificate verification",
			},
		),
		DNSPreflightRejected: defaultRegisterer.NewCounter(
			prometheus.CounterOpts{
				Name: "adscheck_dns_preflight_rejected_total",
				Help: "Targets rejected by the DNS preflight before any HTTP attempt",
			},
		),

		OutcomesTotal: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adscheck_outcomes_total",
				Help: "Report rows produced, by classification result",
			},
			[]string{"result"},
		),
		TargetsTotal: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adscheck_targets_total",
				Help: "Targets processed, by completion status",
			},
			[]string{"status"},
		),

		TaskDuration: defaultRegisterer.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "adscheck_task_duration_seconds",
				Help:    "Time spent checking one target (all files, all references)",
				Buckets: buckets,
			},
		),
		RunDuration: defaultRegisterer.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "adscheck_run_duration_seconds",
				Help:    "Wall-clock duration of a full validation run",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		),
		RunsTotal: defaultRegisterer.NewCounter(
			prometheus.CounterOpts{
				Name: "adscheck_runs_total",
				Help: "Total validation runs started",
			},
		),

		QueueSize: defaultRegisterer.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "adscheck_queue_size",
				Help: "Current size of per-worker task queues",
			},
			[]string{"worker_id"},
		),
		QueueCapacity: defaultRegisterer.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "adscheck_queue_capacity",
				Help: "Maximum capacity of per-worker task queues",
			},
			[]string{"worker_id"},
		),
		QueueBackpressureHit: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adscheck_queue_backpressure_hits_total",
				Help: "Number of times a submission found a worker queue full",
			},
			[]string{"worker_id"},
		),

		WorkerBusy: defaultRegisterer.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "adscheck_worker_busy",
				Help: "Whether a worker is currently busy (1) or idle (0)",
			},
			[]string{"worker_id"},
		),
		WorkerProcessed: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adscheck_worker_processed_total",
				Help: "Total number of tasks processed by a worker",
			},
			[]string{"worker_id"},
		),
		WorkerPanics: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adscheck_worker_panics_total",
				Help: "Total number of panics recovered by a worker",
			},
			[]string{"worker_id"},
		),
	}
}

// StartMetricsServer starts the /metrics listener on addr. It is a no-op
// when metrics are disabled, and only ever starts one server.
func StartMetricsServer(addr string) error {
	if !metricsEnabled {
		return nil
	}

	metricsInitialized.Do(func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

		metricsServer = &http.Server{
			Addr:    addr,
			Handler: mux,
		}

		go func() {
			log.Printf("Starting metrics server on %s", addr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("Metrics server error: %v", err)
			}
		}()
	})

	return nil
}

// ShutdownMetricsServer gracefully stops the metrics listener.
func ShutdownMetricsServer(ctx context.Context) error {
	if metricsServer == nil {
		return nil
	}
	return metricsServer.Shutdown(ctx)
}

// MeasureDuration returns a stop function that observes the elapsed time
// in histogram when called. Usage: defer MeasureDuration(h, labels)().
func MeasureDuration(histogram *prometheus.HistogramVec, labels prometheus.Labels) func() {
	if !metricsEnabled {
		return func() {}
	}
	start := time.Now()
	return func() {
		histogram.With(labels).Observe(time.Since(start).Seconds())
	}
}

// UpdateQueueMetrics records a worker queue's current depth and capacity.
func (m *Metrics) UpdateQueueMetrics(workerID string, size, capacity int) {
	if !metricsEnabled {
		return
	}
	m.QueueSize.WithLabelValues(workerID).Set(float64(size))
	m.QueueCapacity.WithLabelValues(workerID).Set(float64(capacity))
}
