package service

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService owns the Prometheus registry and the domain counters.
type MetricsService struct {
	registry *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	admissions      *prometheus.CounterVec
	gpaRecomputes   *prometheus.CounterVec
	queueDepthGauge prometheus.Gauge
}

// NewMetricsService builds the registry with process, Go runtime and
// domain collectors registered.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := &MetricsService{
		registry: registry,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, path and status.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by method and path.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admissions_total",
			Help: "Enrollment admission attempts by outcome.",
		}, []string{"outcome"}),
		gpaRecomputes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gpa_recomputations_total",
			Help: "GPA recomputation jobs by result.",
		}, []string{"result"}),
		queueDepthGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "background_queue_depth",
			Help: "Jobs currently buffered in the background queue.",
		}),
	}

	registry.MustRegister(s.httpRequests, s.httpDuration, s.admissions, s.gpaRecomputes, s.queueDepthGauge)
	return s
}

// ObserveRequest records one completed HTTP request.
func (s *MetricsService) ObserveRequest(method, path, status string, duration time.Duration) {
	s.httpRequests.WithLabelValues(method, path, status).Inc()
	s.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// ObserveAdmission counts one admission attempt by outcome.
func (s *MetricsService) ObserveAdmission(outcome string) {
	s.admissions.WithLabelValues(outcome).Inc()
}

// ObserveGPARecompute counts one recompute job by result.
func (s *MetricsService) ObserveGPARecompute(result string) {
	s.gpaRecomputes.WithLabelValues(result).Inc()
}

// SetQueueDepth reports the current buffered job count.
func (s *MetricsService) SetQueueDepth(depth int) {
	s.queueDepthGauge.Set(float64(depth))
}

// Handler exposes the registry for scraping.
func (s *MetricsService) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
