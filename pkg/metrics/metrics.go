// Package metrics exports parameter store operations as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	paramgrid "github.com/goliatone/go-paramgrid"
)

const namespace = "paramgrid"

// Collector implements paramgrid.Logger by recording each event.
type Collector struct {
	operations *prometheus.CounterVec
	errors     *prometheus.CounterVec
	warnings   *prometheus.CounterVec
	records    *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

var _ paramgrid.Logger = (*Collector)(nil)

// NewCollector registers the store metrics with reg. A nil reg uses the
// default registerer.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Collector{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Store operations by operation and parameter",
		}, []string{"operation", "param"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_errors_total",
			Help:      "Failed store operations by operation",
		}, []string{"operation"}),
		warnings: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warnings_total",
			Help:      "Warnings raised by store operations",
		}, []string{"operation"}),
		records: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Records written by store operations",
		}, []string{"operation", "param"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Store operation latency in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 14),
		}, []string{"operation"}),
	}
}

// Log implements paramgrid.Logger.
func (c *Collector) Log(event paramgrid.LogEvent) {
	if c == nil || event.Operation == "" {
		return
	}
	switch {
	case event.Err != nil || event.Level == paramgrid.LogLevelError:
		c.errors.WithLabelValues(event.Operation).Inc()
		return
	case event.Level == paramgrid.LogLevelWarn:
		c.warnings.WithLabelValues(event.Operation).Inc()
		return
	}
	c.operations.WithLabelValues(event.Operation, event.Param).Inc()
	if event.Records > 0 {
		c.records.WithLabelValues(event.Operation, event.Param).Add(float64(event.Records))
	}
	if event.Duration > 0 {
		c.duration.WithLabelValues(event.Operation).Observe(event.Duration.Seconds())
	}
}
