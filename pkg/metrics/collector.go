// Package metrics holds the Prometheus collectors of the conversion
// service.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Namespace prefixes every metric name.
const Namespace = "facet"

// Collector records conversion and HTTP metrics.
type Collector struct {
	conversionsTotal   *prometheus.CounterVec
	conversionDuration *prometheus.HistogramVec
	facesSkipped       *prometheus.CounterVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector registers the collectors with reg, or with the default
// registerer when reg is nil.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	c := &Collector{logger: logger.With(zap.String("component", "metrics"))}

	c.conversionsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversions_total",
			Help:      "Total number of conversions by target and outcome",
		},
		[]string{"target", "status"},
	)

	c.conversionDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "conversion_duration_seconds",
			Help:      "Conversion duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"target"},
	)

	c.facesSkipped = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "faces_skipped_total",
			Help:      "Faces dropped or degraded by a pipeline stage",
		},
		[]string{"stage"},
	)

	c.httpRequestsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	return c
}

// RecordConversion counts one conversion. status is "ok" or an error class.
func (c *Collector) RecordConversion(target, status string, d time.Duration) {
	if c == nil {
		return
	}
	c.conversionsTotal.WithLabelValues(target, status).Inc()
	c.conversionDuration.WithLabelValues(target).Observe(d.Seconds())
}

// RecordSkippedFaces adds n skipped faces for stage.
func (c *Collector) RecordSkippedFaces(stage string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.facesSkipped.WithLabelValues(stage).Add(float64(n))
}

// RecordHTTPRequest counts one served request.
func (c *Collector) RecordHTTPRequest(method, path string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}
