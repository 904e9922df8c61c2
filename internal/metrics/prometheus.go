package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Admission metrics
	AdmissionsTotal   *prometheus.CounterVec
	AdmissionDuration prometheus.Histogram

	// Cache metrics
	CacheHits     *prometheus.CounterVec
	CacheMisses   *prometheus.CounterVec
	CacheRebuilds *prometheus.CounterVec

	// Order pipeline metrics
	OrdersPersisted      *prometheus.CounterVec
	OrderPersistDuration prometheus.Histogram
	PendingReplays       prometheus.Counter
	ConsumerErrors       prometheus.Counter
}

// NewMetrics creates and registers Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		AdmissionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seckill_admissions_total",
				Help: "Total number of admission attempts by result",
			},
			[]string{"result"},
		),

		AdmissionDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "seckill_admission_duration_seconds",
				Help:    "Duration of admission attempts",
				Buckets: prometheus.DefBuckets,
			},
		),

		CacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seckill_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache_type"},
		),

		CacheMisses: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seckill_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache_type"},
		),

		CacheRebuilds: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seckill_cache_rebuilds_total",
				Help: "Total number of cache rebuilds by policy and status",
			},
			[]string{"policy", "status"},
		),

		OrdersPersisted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seckill_orders_persisted_total",
				Help: "Total number of order persistence attempts by status",
			},
			[]string{"status"},
		),

		OrderPersistDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "seckill_order_persist_duration_seconds",
				Help:    "Duration of transactional order persistence",
				Buckets: prometheus.DefBuckets,
			},
		),

		PendingReplays: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "seckill_pending_replays_total",
				Help: "Total number of entries reprocessed by the recovery sweep",
			},
		),

		ConsumerErrors: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "seckill_consumer_errors_total",
				Help: "Total number of order consumer processing errors",
			},
		),
	}
}

// RecordAdmission records one admission attempt. Safe on a nil receiver so
// tests can run without a registry.
func (m *Metrics) RecordAdmission(result string, duration float64) {
	if m == nil {
		return
	}
	m.AdmissionsTotal.WithLabelValues(result).Inc()
	m.AdmissionDuration.Observe(duration)
}

// RecordCacheHit records a cache hit
func (m *Metrics) RecordCacheHit(cacheType string) {
	if m == nil {
		return
	}
	m.CacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a cache miss
func (m *Metrics) RecordCacheMiss(cacheType string) {
	if m == nil {
		return
	}
	m.CacheMisses.WithLabelValues(cacheType).Inc()
}

// RecordCacheRebuild records a cache rebuild attempt
func (m *Metrics) RecordCacheRebuild(policy, status string) {
	if m == nil {
		return
	}
	m.CacheRebuilds.WithLabelValues(policy, status).Inc()
}

// RecordOrderPersisted records one order persistence attempt
func (m *Metrics) RecordOrderPersisted(status string, duration float64) {
	if m == nil {
		return
	}
	m.OrdersPersisted.WithLabelValues(status).Inc()
	m.OrderPersistDuration.Observe(duration)
}

// RecordPendingReplay records one recovery sweep replay
func (m *Metrics) RecordPendingReplay() {
	if m == nil {
		return
	}
	m.PendingReplays.Inc()
}

// RecordConsumerError records one consumer processing error
func (m *Metrics) RecordConsumerError() {
	if m == nil {
		return
	}
	m.ConsumerErrors.Inc()
}
