// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package observability wires Prometheus metrics and an OpenTelemetry
// tracer provider for the daemon, and exposes per-layer status gauges the
// admin surface reads for GetVectorIndexStatus/GetTeleportStatus/etc.
package observability

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsConfig configures the Prometheus registry.
type MetricsConfig struct {
	Enabled   bool
	Namespace string
}

func (c MetricsConfig) withDefaults() MetricsConfig {
	if c.Namespace == "" {
		c.Namespace = "agent_memory"
	}
	return c
}

// Metrics holds every Prometheus collector the daemon updates.
type Metrics struct {
	config   MetricsConfig
	registry *prometheus.Registry

	ingestEvents        *prometheus.CounterVec
	ingestRejected      *prometheus.CounterVec
	segmentsClosed      prometheus.Counter
	rollupsRun          *prometheus.CounterVec
	rollupFailures      *prometheus.CounterVec
	routerQueries       *prometheus.CounterVec
	routerTier          prometheus.Gauge
	routerLatency       prometheus.Histogram
	outboxConsumerLag   *prometheus.GaugeVec
	outboxConsumerState *prometheus.GaugeVec
	schedulerRuns       *prometheus.CounterVec
	layerHealthy        *prometheus.GaugeVec
	lastPruneCount      *prometheus.GaugeVec
}

// NewMetrics builds a Metrics instance, or returns nil if metrics are
// disabled (every method on a nil *Metrics is a safe no-op).
func NewMetrics(cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return nil
	}
	cfg = cfg.withDefaults()
	m := &Metrics{config: cfg, registry: prometheus.NewRegistry()}

	m.ingestEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace, Subsystem: "ingest", Name: "events_total", Help: "Events accepted by Ingest.",
	}, []string{"event_type"})
	m.ingestRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace, Subsystem: "ingest", Name: "rejected_total", Help: "Events rejected by Ingest (validation or novelty).",
	}, []string{"reason"})
	m.segmentsClosed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: cfg.Namespace, Subsystem: "toc", Name: "segments_closed_total", Help: "Segments closed by the TOC Builder.",
	})
	m.rollupsRun = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace, Subsystem: "toc", Name: "rollups_total", Help: "Rollups performed, by level.",
	}, []string{"level"})
	m.rollupFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace, Subsystem: "toc", Name: "rollup_failures_total", Help: "Rollups that failed, by level.",
	}, []string{"level"})
	m.routerQueries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace, Subsystem: "router", Name: "queries_total", Help: "RouteQuery calls, by intent and tier.",
	}, []string{"intent", "tier"})
	m.routerTier = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: cfg.Namespace, Subsystem: "router", Name: "current_tier", Help: "Capability tier currently in effect (1-5).",
	})
	m.routerLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: cfg.Namespace, Subsystem: "router", Name: "query_duration_seconds", Help: "RouteQuery latency.",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
	})
	m.outboxConsumerLag = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: cfg.Namespace, Subsystem: "outbox", Name: "consumer_lag", Help: "Outbox entries not yet checkpointed, by consumer.",
	}, []string{"consumer"})
	m.outboxConsumerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: cfg.Namespace, Subsystem: "outbox", Name: "consumer_state", Help: "1 if the consumer is Stalled, else 0.",
	}, []string{"consumer"})
	m.schedulerRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace, Subsystem: "scheduler", Name: "job_runs_total", Help: "Scheduled job runs, by job and result.",
	}, []string{"job", "result"})
	m.layerHealthy = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: cfg.Namespace, Subsystem: "router", Name: "layer_healthy", Help: "1 if a retrieval layer is healthy, else 0.",
	}, []string{"layer"})
	m.lastPruneCount = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: cfg.Namespace, Subsystem: "index", Name: "last_prune_count", Help: "Documents removed by the most recent prune pass.",
	}, []string{"layer"})

	m.registry.MustRegister(
		m.ingestEvents, m.ingestRejected, m.segmentsClosed, m.rollupsRun, m.rollupFailures,
		m.routerQueries, m.routerTier, m.routerLatency, m.outboxConsumerLag, m.outboxConsumerState,
		m.schedulerRuns, m.layerHealthy, m.lastPruneCount,
	)
	return m
}

func (m *Metrics) IngestEvent(eventType string) {
	if m == nil {
		return
	}
	m.ingestEvents.WithLabelValues(eventType).Inc()
}

func (m *Metrics) IngestRejected(reason string) {
	if m == nil {
		return
	}
	m.ingestRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) SegmentClosed() {
	if m == nil {
		return
	}
	m.segmentsClosed.Inc()
}

func (m *Metrics) RollupRun(level string, ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.rollupsRun.WithLabelValues(level).Inc()
		return
	}
	m.rollupFailures.WithLabelValues(level).Inc()
}

func (m *Metrics) RouterQuery(intent string, tier int, durationSeconds float64) {
	if m == nil {
		return
	}
	m.routerQueries.WithLabelValues(intent, strconv.Itoa(tier)).Inc()
	m.routerTier.Set(float64(tier))
	m.routerLatency.Observe(durationSeconds)
}

func (m *Metrics) OutboxConsumer(name string, lag int64, stalled bool) {
	if m == nil {
		return
	}
	m.outboxConsumerLag.WithLabelValues(name).Set(float64(lag))
	state := 0.0
	if stalled {
		state = 1.0
	}
	m.outboxConsumerState.WithLabelValues(name).Set(state)
}

func (m *Metrics) SchedulerRun(job, result string) {
	if m == nil {
		return
	}
	m.schedulerRuns.WithLabelValues(job, result).Inc()
}

func (m *Metrics) LayerHealth(layer string, healthy bool) {
	if m == nil {
		return
	}
	v := 0.0
	if healthy {
		v = 1.0
	}
	m.layerHealthy.WithLabelValues(layer).Set(v)
}

func (m *Metrics) LastPruneCount(layer string, count int) {
	if m == nil {
		return
	}
	m.lastPruneCount.WithLabelValues(layer).Set(float64(count))
}

// Handler returns the Prometheus scrape endpoint handler. If metrics are
// disabled, it returns 503 for every request.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics not enabled"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
