// Package metrics exposes service metrics for Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records extraction, export and HTTP metrics.
type Collector struct {
	namespace string

	// Extraction
	extractions       *prometheus.CounterVec
	extractionLatency *prometheus.HistogramVec

	// Export sinks
	exports          *prometheus.CounterVec
	publishedRecords *prometheus.CounterVec

	// Drafts
	activeDrafts prometheus.Gauge

	// HTTP
	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
}

// NewCollector creates a new collector. Metrics are not registered until
// Register is called.
func NewCollector(namespace string) *Collector {
	return &Collector{
		namespace: namespace,
		extractions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "receipt_extractions_total",
				Help:      "Total number of receipt extractions per outcome",
			},
			[]string{"outcome"},
		),
		extractionLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "receipt_extraction_duration_seconds",
				Help:      "Receipt extraction latency per outcome",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
			},
			[]string{"outcome"},
		),
		exports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "exports_total",
				Help:      "Total number of ledger exports per format and result",
			},
			[]string{"format", "result"},
		),
		publishedRecords: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "published_records_total",
				Help:      "Total number of records handled by the publish sink per result",
			},
			[]string{"result"},
		),
		activeDrafts: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "draft_sessions",
				Help:      "Current number of open draft sessions",
			},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests per method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		httpLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency per method and route",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// Register registers all metrics with the given Prometheus registry.
func (c *Collector) Register(registry *prometheus.Registry) error {
	cs := []prometheus.Collector{
		c.extractions,
		c.extractionLatency,
		c.exports,
		c.publishedRecords,
		c.activeDrafts,
		c.httpRequests,
		c.httpLatency,
	}

	for _, collector := range cs {
		if err := registry.Register(collector); err != nil {
			return err
		}
	}

	return nil
}

// NewRegistry returns a private registry carrying the collector plus the Go
// runtime and process collectors.
func NewRegistry(c *Collector) (*prometheus.Registry, error) {
	registry := prometheus.NewRegistry()
	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, err
	}
	if err := c.Register(registry); err != nil {
		return nil, err
	}
	return registry, nil
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}

// ObserveExtraction records one finished extraction job.
func (c *Collector) ObserveExtraction(outcome string, elapsed time.Duration) {
	c.extractions.WithLabelValues(outcome).Inc()
	c.extractionLatency.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// RecordExport records one export attempt.
func (c *Collector) RecordExport(format string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	c.exports.WithLabelValues(format, result).Inc()
}

// RecordPublish records the outcome counts of one publish run.
func (c *Collector) RecordPublish(created, skipped, failed int) {
	c.publishedRecords.WithLabelValues("created").Add(float64(created))
	c.publishedRecords.WithLabelValues("skipped").Add(float64(skipped))
	c.publishedRecords.WithLabelValues("failed").Add(float64(failed))
}

// SetActiveDrafts records the number of open draft sessions.
func (c *Collector) SetActiveDrafts(n int) {
	c.activeDrafts.Set(float64(n))
}

// RecordHTTPRequest records one served request.
func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}
