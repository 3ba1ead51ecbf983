// Package scheduler runs the two periodic ticks described in §5: the
// aggregator drain (1s) and the partition-writer flush (60s), the
// ticker-loop-with-panic-recovery shape grounded on the teacher's
// pkg/task_manager cleanup loop but purpose-built for these two jobs
// instead of a general named-task registry.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/warehoused/warehoused/internal/aggregator"
	"github.com/warehoused/warehoused/internal/columnar"
	"github.com/warehoused/warehoused/internal/ingest"
	"github.com/warehoused/warehoused/internal/partition"
	"github.com/warehoused/warehoused/internal/store"
	"github.com/warehoused/warehoused/internal/telemetry"
)

// Scheduler owns the two tickers that move data from the write path's
// in-memory stops toward the query path: aggregator -> hot store, and
// hot store -> cold partition files.
type Scheduler struct {
	aggregator     *aggregator.Aggregator
	router         *ingest.Router
	hot            *store.HotStore
	schema         *store.SchemaRegistry
	writer         *partition.Writer
	memoryMode     *atomic.Bool
	aggregatorTick time.Duration
	flushTick      time.Duration
	logger         *logrus.Logger
}

// New constructs a Scheduler. memoryMode, read on every flush tick,
// disables partition writes entirely when set (§8 property 7) — the
// aggregator tick still runs, since it only ever touches the hot store.
func New(agg *aggregator.Aggregator, router *ingest.Router, hot *store.HotStore, schema *store.SchemaRegistry, writer *partition.Writer, memoryMode *atomic.Bool, aggregatorTick, flushTick time.Duration, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		aggregator:     agg,
		router:         router,
		hot:            hot,
		schema:         schema,
		writer:         writer,
		memoryMode:     memoryMode,
		aggregatorTick: aggregatorTick,
		flushTick:      flushTick,
		logger:         logger,
	}
}

// Run blocks until ctx is done, driving both tickers concurrently.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.runAggregatorLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		s.runFlushLoop(ctx)
	}()
	wg.Wait()
}

func (s *Scheduler) runAggregatorLoop(ctx context.Context) {
	ticker := time.NewTicker(s.aggregatorTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.drainAggregator()
		}
	}
}

func (s *Scheduler) drainAggregator() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithField("panic", r).Error("aggregator drain tick panicked")
		}
	}()

	spans := s.aggregator.DrainIntact()
	telemetry.AggregatorDrainSize.Observe(float64(len(spans)))
	if len(spans) > 0 {
		s.hot.MergeSpans(spans)
	}

	logs := s.router.DrainPendingLogs()
	if len(logs) > 0 {
		if err := s.hot.MergeLogs(logs); err != nil {
			s.logger.WithError(err).Warn("dropping log batch: schema conflict")
		}
	}
}

func (s *Scheduler) runFlushLoop(ctx context.Context) {
	ticker := time.NewTicker(s.flushTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.flush(ctx)
		}
	}
}

func (s *Scheduler) flush(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithField("panic", r).Error("partition flush tick panicked")
		}
	}()

	if s.memoryMode.Load() {
		return
	}

	spanBatches, logBatches := s.hot.Reset()
	if err := s.timedFlush(ctx, "span", spanBatches); err != nil {
		s.logger.WithError(err).Error("flushing span partition failed, batches lost")
	}
	if err := s.timedFlush(ctx, "log", logBatches); err != nil {
		s.logger.WithError(err).Error("flushing log partition failed, batches lost")
	}
	if err := s.schema.PersistIfDirty(ctx); err != nil {
		s.logger.WithError(err).Error("persisting log schema failed, retrying next tick")
	}
}

func (s *Scheduler) timedFlush(ctx context.Context, table string, batches []*columnar.Batch) error {
	timer := prometheus.NewTimer(telemetry.FlushDuration.WithLabelValues(table))
	defer timer.ObserveDuration()

	err := s.writer.Flush(ctx, table, batches)
	if err != nil {
		telemetry.FlushFailuresTotal.WithLabelValues(table).Inc()
	}
	return err
}
