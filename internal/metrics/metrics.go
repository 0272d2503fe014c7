// Package metrics exports broadcaster measurements to Prometheus.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dshills/broadcaster/internal/event"
)

// Namespace prefixes every metric name.
const Namespace = "broadcaster"

// Post outcomes used as the "outcome" label.
const (
	OutcomeDelivered = "delivered"
	OutcomeDelayed   = "delayed"
	OutcomeRejected  = "rejected"
	OutcomeReplayed  = "replayed"
)

// Collector implements event.Metrics with Prometheus collectors.
type Collector struct {
	postsTotal         *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec
	notifyDuration     prometheus.Histogram
	reapedTotal        *prometheus.CounterVec
	dispatchDepth      prometheus.Gauge
	delayQueueDepth    prometheus.Gauge
	tableSize          prometheus.Gauge
}

var _ event.Metrics = (*Collector)(nil)

// New creates a Collector and registers it with reg.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		postsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "posts_total",
				Help:      "Total number of posts by event id and outcome",
			},
			[]string{"event", "outcome"},
		),
		notificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "notifications_total",
				Help:      "Total number of observer calls by event id and result",
			},
			[]string{"event", "result"},
		),
		notifyDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "notification_duration_seconds",
				Help:      "Duration of single observer calls in seconds",
				Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
			},
		),
		reapedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "observers_reaped_total",
				Help:      "Total number of collected observers purged from the table",
			},
			[]string{"event"},
		),
		dispatchDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "dispatch_depth",
				Help:      "Current broadcast nesting level",
			},
		),
		delayQueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "delay_queue_depth",
				Help:      "Posts waiting for the suspend flag to clear",
			},
		),
		tableSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "observer_table_entries",
				Help:      "Entries in the observer table, including unreaped ones",
			},
		),
	}

	for _, col := range c.collectors() {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNew is New that panics on registration failure.
func MustNew(reg prometheus.Registerer) *Collector {
	c, err := New(reg)
	if err != nil {
		panic(err)
	}
	return c
}

// Unregister removes every collector from reg.
func (c *Collector) Unregister(reg prometheus.Registerer) {
	for _, col := range c.collectors() {
		reg.Unregister(col)
	}
}

func (c *Collector) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.postsTotal,
		c.notificationsTotal,
		c.notifyDuration,
		c.reapedTotal,
		c.dispatchDepth,
		c.delayQueueDepth,
		c.tableSize,
	}
}

// PostAccepted implements event.Metrics.
func (c *Collector) PostAccepted(id event.EventID, delayed bool) {
	outcome := OutcomeDelivered
	if delayed {
		outcome = OutcomeDelayed
	}
	c.postsTotal.WithLabelValues(label(id), outcome).Inc()
}

// PostRejected implements event.Metrics.
func (c *Collector) PostRejected(id event.EventID) {
	c.postsTotal.WithLabelValues(label(id), OutcomeRejected).Inc()
}

// PostReplayed implements event.Metrics.
func (c *Collector) PostReplayed(id event.EventID) {
	c.postsTotal.WithLabelValues(label(id), OutcomeReplayed).Inc()
}

// ObserverNotified implements event.Metrics.
func (c *Collector) ObserverNotified(id event.EventID, took time.Duration, panicked bool) {
	result := "ok"
	if panicked {
		result = "panic"
	}
	c.notificationsTotal.WithLabelValues(label(id), result).Inc()
	c.notifyDuration.Observe(took.Seconds())
}

// ObserversReaped implements event.Metrics.
func (c *Collector) ObserversReaped(id event.EventID, n int) {
	c.reapedTotal.WithLabelValues(label(id)).Add(float64(n))
}

// SetDispatchDepth implements event.Metrics.
func (c *Collector) SetDispatchDepth(n int) {
	c.dispatchDepth.Set(float64(n))
}

// SetDelayQueueDepth implements event.Metrics.
func (c *Collector) SetDelayQueueDepth(n int) {
	c.delayQueueDepth.Set(float64(n))
}

// SetTableSize implements event.Metrics.
func (c *Collector) SetTableSize(n int) {
	c.tableSize.Set(float64(n))
}

func label(id event.EventID) string {
	return strconv.Itoa(int(id))
}
