package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the counters/gauges/histograms this warehouse exports on
// /metrics, scoped to the write and read paths it owns (ingest,
// aggregation, flush, query) rather than the generic per-sink metrics
// a log-shipping agent would need.
var (
	IngestEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warehoused_ingest_events_total",
			Help: "Total number of spans/logs accepted by the ingest router",
		},
		[]string{"kind"},
	)

	IngestDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warehoused_ingest_dropped_total",
			Help: "Total number of spans/logs dropped at the ingest boundary",
		},
		[]string{"reason"},
	)

	MailboxDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "warehoused_ingest_mailbox_depth",
		Help: "Current number of pending entries in the ingest router's mailbox",
	})

	AggregatorDrainSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "warehoused_aggregator_drain_size",
		Help:    "Number of intact spans produced per aggregator drain tick",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	FlushDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "warehoused_flush_duration_seconds",
			Help:    "Time spent writing a partition during a flush tick",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"table"},
	)

	FlushFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warehoused_flush_failures_total",
			Help: "Total number of failed partition flushes",
		},
		[]string{"table"},
	)

	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "warehoused_query_duration_seconds",
			Help:    "Time spent executing a query plan, by table and tier",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"table", "tier"},
	)
)
