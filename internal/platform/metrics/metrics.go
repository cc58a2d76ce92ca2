// Package metrics collects and exposes Prometheus metrics for the ingestion pipeline
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the interface workers and services use to record outcomes
type Recorder interface {
	RecordSyncOutcome(entityType, outcome string)
	RecordProbe(cursorName string, found bool)
	RecordBudgetDenied(op string)
	RecordLeaseContention(entityType string)
	RecordUpstreamStatus(statusCode int)
	RecordFetchLatency(op string, d time.Duration)
	RecordQueueDepth(n int)
	RecordRelationsUpserted(count int)
}

// Collector implements Recorder over a Prometheus registry
type Collector struct {
	syncOutcomes    *prometheus.CounterVec
	probes          *prometheus.CounterVec
	budgetDenied    *prometheus.CounterVec
	leaseContention *prometheus.CounterVec
	upstreamStatus  *prometheus.CounterVec
	fetchLatency    *prometheus.HistogramVec
	queueDepth      prometheus.Gauge
	relations       prometheus.Counter
}

// NewCollector creates a Collector and registers its metrics on reg
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		syncOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "animabook_sync_total",
			Help: "Entity sync attempts by entity type and outcome",
		}, []string{"entity_type", "outcome"}),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "animabook_backfill_probes_total",
			Help: "Backfill cursor probes by cursor and hit/miss",
		}, []string{"cursor", "result"}),
		budgetDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "animabook_budget_denied_total",
			Help: "Budget spends denied by operation",
		}, []string{"op"}),
		leaseContention: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "animabook_lease_contention_total",
			Help: "Entity lease acquisitions refused because another holder was live",
		}, []string{"entity_type"}),
		upstreamStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "animabook_upstream_status_total",
			Help: "Upstream API responses by HTTP status code",
		}, []string{"status_code"}),
		fetchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "animabook_fetch_latency_seconds",
			Help:    "Upstream fetch latency by operation",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "animabook_queue_depth",
			Help: "Pending items in the work queue at last sample",
		}),
		relations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "animabook_relations_upserted_total",
			Help: "Relation edges written to the graph",
		}),
	}

	reg.MustRegister(
		c.syncOutcomes,
		c.probes,
		c.budgetDenied,
		c.leaseContention,
		c.upstreamStatus,
		c.fetchLatency,
		c.queueDepth,
		c.relations,
	)

	return c
}

// RecordSyncOutcome records one sync attempt; outcome is one of ok, miss, error
func (c *Collector) RecordSyncOutcome(entityType, outcome string) {
	c.syncOutcomes.WithLabelValues(entityType, outcome).Inc()
}

// RecordProbe records a backfill probe hit or miss
func (c *Collector) RecordProbe(cursorName string, found bool) {
	result := "miss"
	if found {
		result = "hit"
	}
	c.probes.WithLabelValues(cursorName, result).Inc()
}

// RecordBudgetDenied records a denied budget spend
func (c *Collector) RecordBudgetDenied(op string) {
	c.budgetDenied.WithLabelValues(op).Inc()
}

// RecordLeaseContention records a refused lease acquisition
func (c *Collector) RecordLeaseContention(entityType string) {
	c.leaseContention.WithLabelValues(entityType).Inc()
}

// RecordUpstreamStatus records an upstream HTTP status
func (c *Collector) RecordUpstreamStatus(statusCode int) {
	c.upstreamStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordFetchLatency records upstream fetch latency for op
func (c *Collector) RecordFetchLatency(op string, d time.Duration) {
	c.fetchLatency.WithLabelValues(op).Observe(d.Seconds())
}

// RecordQueueDepth samples the pending queue size
func (c *Collector) RecordQueueDepth(n int) {
	c.queueDepth.Set(float64(n))
}

// RecordRelationsUpserted adds to the relation edge counter
func (c *Collector) RecordRelationsUpserted(count int) {
	c.relations.Add(float64(count))
}

// Handler returns the Prometheus scrape handler for gatherer
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop is a Recorder that drops everything, handy for tests and optional wiring
type Nop struct{}

func (Nop) RecordSyncOutcome(string, string)         {}
func (Nop) RecordProbe(string, bool)                 {}
func (Nop) RecordBudgetDenied(string)                {}
func (Nop) RecordLeaseContention(string)             {}
func (Nop) RecordUpstreamStatus(int)                 {}
func (Nop) RecordFetchLatency(string, time.Duration) {}
func (Nop) RecordQueueDepth(int)                     {}
func (Nop) RecordRelationsUpserted(int)              {}
