// Package metrics exposes pipeline counters in Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "aegis_pulse"

// Metrics holds every collector of the service
// ⭐ SSOT: 메트릭 정의는 여기서만
type Metrics struct {
	registry *prometheus.Registry

	PipelineRuns       *prometheus.CounterVec   // status
	PipelineDuration   prometheus.Histogram
	PostsCollected     *prometheus.CounterVec   // source, provenance
	PostsQuarantined   *prometheus.CounterVec   // source
	SourceFailures     *prometheus.CounterVec   // source
	ClassifierFallback *prometheus.CounterVec   // reason
	AggregatesWritten  *prometheus.CounterVec   // period
	Recomputes         *prometheus.CounterVec   // status
	RankedPosts        prometheus.Gauge
	HTTPRequests       *prometheus.CounterVec   // route, code
	HTTPDuration       *prometheus.HistogramVec // route
	WSClients          prometheus.Gauge
	LastRunTimestamp   prometheus.Gauge
}

// New creates the collectors on a private registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		PipelineRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pipeline", Name: "runs_total",
			Help: "Pipeline runs by final status",
		}, []string{"status"}),
		PipelineDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "pipeline", Name: "duration_seconds",
			Help:    "Wall time of one pipeline run",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		PostsCollected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "collector", Name: "posts_total",
			Help: "Posts collected by source and provenance",
		}, []string{"source", "provenance"}),
		PostsQuarantined: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "collector", Name: "quarantined_total",
			Help: "Posts rejected at the ingestion boundary",
		}, []string{"source"}),
		SourceFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "collector", Name: "source_failures_total",
			Help: "Subreddits or accounts that could not be fetched",
		}, []string{"source"}),
		ClassifierFallback: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "classifier", Name: "fallback_tickers_total",
			Help: "Tickers classified by the keyword heuristic",
		}, []string{"reason"}),
		AggregatesWritten: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "aggregator", Name: "written_total",
			Help: "Aggregates written by period",
		}, []string{"period"}),
		Recomputes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "trigger", Name: "recomputes_total",
			Help: "Real-time ticker recomputes by status",
		}, []string{"status"}),
		RankedPosts: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "ranker", Name: "ranked_posts",
			Help: "Posts in the current ranking",
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"route", "code"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		WSClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "ws", Name: "clients",
			Help: "Connected websocket clients",
		}),
		LastRunTimestamp: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "pipeline", Name: "last_success_timestamp_seconds",
			Help: "Unix time of the last successful run",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the private registry (tests)
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveHTTP records one served request
func (m *Metrics) ObserveHTTP(route string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// ObserveRun records one finished pipeline run
func (m *Metrics) ObserveRun(status string, elapsed time.Duration, finished time.Time) {
	if m == nil {
		return
	}
	m.PipelineRuns.WithLabelValues(status).Inc()
	m.PipelineDuration.Observe(elapsed.Seconds())
	if status == "success" {
		m.LastRunTimestamp.Set(float64(finished.Unix()))
	}
}
