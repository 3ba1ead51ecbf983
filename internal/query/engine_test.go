package query

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/warehoused/warehoused/internal/columnar"
	"github.com/warehoused/warehoused/internal/model"
	"github.com/warehoused/warehoused/internal/objectstore"
	"github.com/warehoused/warehoused/internal/partition"
	"github.com/warehoused/warehoused/internal/store"
	"github.com/warehoused/warehoused/pkg/workerpool"
)

func newTestEngine(t *testing.T, memoryMode bool) (*Engine, *store.HotStore) {
	t.Helper()
	backing, err := objectstore.NewLocalStore(t.TempDir(), logrus.New())
	require.NoError(t, err)
	schema := store.NewSchemaRegistry(backing, logrus.New())
	require.NoError(t, schema.Load(context.Background()))
	hot := store.NewHotStore(schema, backing, logrus.New())

	cold := partition.NewQuery(backing, workerpool.New(2))
	var mm atomic.Bool
	mm.Store(memoryMode)
	return New(hot, cold, &mm, logrus.New()), hot
}

func TestQueryFilterByProcessPrefix(t *testing.T) {
	eng, hot := newTestEngine(t, true)

	start1 := time.Now().Add(-time.Minute)
	end1 := time.Now()
	start2 := time.Now().Add(-2 * time.Minute)
	end2 := time.Now().Add(-time.Minute)
	hot.MergeSpans([]*model.StoredSpan{
		{ID: 1, TraceID: 1, ProcessID: "checkout-0", Name: "a", Start: &start1, End: &end1},
		{ID: 2, TraceID: 2, ProcessID: "billing-0", Name: "b", Start: &start2, End: &end2},
	})

	rows, err := eng.Query("span", columnar.SpanSchema(), Like("process_id", "checkout%")).Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, model.U64Value(1), rows[0]["trace_id"])
}

func TestQueryLimitAndSkip(t *testing.T) {
	eng, hot := newTestEngine(t, true)
	start := time.Now()
	end := time.Now()
	spans := make([]*model.StoredSpan, 0, 5)
	for i := uint64(0); i < 5; i++ {
		spans = append(spans, &model.StoredSpan{ID: i, TraceID: i, ProcessID: "svc-0", Name: "op", Start: &start, End: &end})
	}
	hot.MergeSpans(spans)

	rows, err := eng.Query("span", columnar.SpanSchema(), nil).
		Sort(SortSpec{Field: "id", Desc: true}).
		Limit(1, 2).
		Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, model.U64Value(3), rows[0]["id"])
	require.Equal(t, model.U64Value(2), rows[1]["id"])
}

func TestQueryMemoryModeSkipsCold(t *testing.T) {
	eng, _ := newTestEngine(t, true)
	rows, err := eng.Query("span", columnar.SpanSchema(), nil).Collect(context.Background())
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestCountByFieldOrdersDescending(t *testing.T) {
	rows := []columnar.Row{
		{"level": model.StrValue("info")},
		{"level": model.StrValue("error")},
		{"level": model.StrValue("info")},
		{"level": model.Null},
	}
	counts := CountByField(rows, "level")
	require.Equal(t, []FieldCount{
		{Value: model.StrValue("info"), Count: 2},
		{Value: model.StrValue("error"), Count: 1},
	}, counts)
}

func TestFieldNotFound(t *testing.T) {
	require.Error(t, FieldNotFound(columnar.SpanSchema(), "nope"))
	require.NoError(t, FieldNotFound(columnar.SpanSchema(), "trace_id"))
}
