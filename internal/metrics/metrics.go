// Package metrics exposes pool activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rileyhilliard/boincwatch/internal/broadcast"
)

const namespace = "boincwatch"

// Outcome label values for boincwatch_polls_total.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Collector records poll outcomes on its own registry. It implements
// broadcast.Observer.
type Collector struct {
	registry  *prometheus.Registry
	polls     *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	dropped   *prometheus.CounterVec
	consumers prometheus.Gauge
}

var _ broadcast.Observer = (*Collector)(nil)

// New creates a collector with the Go runtime metrics registered alongside.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "GUI RPC polls by source and outcome.",
		}, []string{"source", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration_seconds",
			Help:      "Time spent on one poll, including dial and authentication.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"source"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_dropped_total",
			Help:      "Snapshots not delivered because a consumer queue was full.",
		}, []string{"source"}),
		consumers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "consumers",
			Help:      "Consumers currently attached to the pool.",
		}),
	}

	c.registry.MustRegister(
		c.polls,
		c.duration,
		c.dropped,
		c.consumers,
		collectors.NewGoCollector(),
	)
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) PollSucceeded(source string, took time.Duration) {
	c.polls.WithLabelValues(source, OutcomeOK).Inc()
	c.duration.WithLabelValues(source).Observe(took.Seconds())
}

func (c *Collector) PollFailed(source string, took time.Duration, _ error) {
	c.polls.WithLabelValues(source, OutcomeError).Inc()
	c.duration.WithLabelValues(source).Observe(took.Seconds())
}

func (c *Collector) SnapshotDropped(source string) {
	c.dropped.WithLabelValues(source).Inc()
}

func (c *Collector) ConsumersChanged(n int) {
	c.consumers.Set(float64(n))
}
