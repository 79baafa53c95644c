// Package metrics collects and exposes Prometheus metrics for the update
// endpoint.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector tracks update request outcomes.
type Collector struct {
	updateSuccess prometheus.Counter
	updateFailure *prometheus.CounterVec
	unauthorized  prometheus.Counter
	badRequest    prometheus.Counter
	duration      prometheus.Histogram
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		updateSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dynupd_update_success_total",
			Help: "Total number of successfully processed update requests.",
		}),
		updateFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dynupd_update_failure_total",
			Help: "Total number of update-program failures by stage.",
		}, []string{"stage"}),
		unauthorized: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dynupd_unauthorized_total",
			Help: "Total number of rejected authentication attempts.",
		}),
		badRequest: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dynupd_bad_request_total",
			Help: "Total number of malformed update requests.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dynupd_update_duration_seconds",
			Help:    "End-to-end update request handling duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.updateSuccess,
		c.updateFailure,
		c.unauthorized,
		c.badRequest,
		c.duration,
	)

	return c
}

func (c *Collector) RecordSuccess() {
	c.updateSuccess.Inc()
}

// RecordFailure records an update-program failure. stage is the failure
// classification (spawn, write, exit).
func (c *Collector) RecordFailure(stage string) {
	c.updateFailure.WithLabelValues(stage).Inc()
}

func (c *Collector) RecordUnauthorized() {
	c.unauthorized.Inc()
}

func (c *Collector) RecordBadRequest() {
	c.badRequest.Inc()
}

func (c *Collector) ObserveDuration(d time.Duration) {
	c.duration.Observe(d.Seconds())
}

// Handler returns the HTTP handler for Prometheus scrapes.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
