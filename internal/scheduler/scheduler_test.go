package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/warehoused/warehoused/internal/aggregator"
	"github.com/warehoused/warehoused/internal/ingest"
	"github.com/warehoused/warehoused/internal/model"
	"github.com/warehoused/warehoused/internal/objectstore"
	"github.com/warehoused/warehoused/internal/partition"
	"github.com/warehoused/warehoused/internal/store"
)

func newTestScheduler(t *testing.T, memoryMode bool) (*Scheduler, *aggregator.Aggregator, *ingest.Router, *store.HotStore) {
	t.Helper()
	backing, err := objectstore.NewLocalStore(t.TempDir(), logrus.New())
	require.NoError(t, err)
	schema := store.NewSchemaRegistry(backing, logrus.New())
	require.NoError(t, schema.Load(context.Background()))
	hot := store.NewHotStore(schema, backing, logrus.New())
	agg := aggregator.New()
	router := ingest.New(agg, hot, logrus.New(), nil)
	writer := partition.NewWriter(backing, "zstd", logrus.New())

	var mm atomic.Bool
	mm.Store(memoryMode)

	s := New(agg, router, hot, schema, writer, &mm, 5*time.Millisecond, 10*time.Millisecond, logrus.New())
	return s, agg, router, hot
}

func TestAggregatorTickMergesIntactSpans(t *testing.T) {
	s, agg, _, hot := newTestScheduler(t, true)
	end := time.Now()
	start := end.Add(-time.Millisecond)
	agg.Record(&model.WireSpan{ID: 1, TraceID: 1, ProcessID: "svc-0", Name: "op", Start: &start})
	agg.Record(&model.WireSpan{ID: 1, TraceID: 1, ProcessID: "svc-0", Name: "op", End: &end})

	s.drainAggregator()

	snap := hot.SnapshotForQuery()
	require.Len(t, snap.SpanBatches, 1)
}

func TestFlushSkippedInMemoryMode(t *testing.T) {
	s, _, _, hot := newTestScheduler(t, true)
	start := time.Now()
	end := start.Add(time.Millisecond)
	hot.MergeSpans([]*model.StoredSpan{{ID: 1, TraceID: 1, ProcessID: "svc-0", Name: "op", Start: &start, End: &end}})

	s.flush(context.Background())

	snap := hot.SnapshotForQuery()
	require.Len(t, snap.SpanBatches, 1, "memory mode must not drain the hot store via flush")
}

func TestFlushWritesPartitionWhenNotInMemoryMode(t *testing.T) {
	s, _, _, hot := newTestScheduler(t, false)
	start := time.Now()
	end := start.Add(time.Millisecond)
	hot.MergeSpans([]*model.StoredSpan{{ID: 1, TraceID: 1, ProcessID: "svc-0", Name: "op", Start: &start, End: &end}})

	s.flush(context.Background())

	snap := hot.SnapshotForQuery()
	require.Empty(t, snap.SpanBatches, "a real flush drains the hot store's batches")
}
