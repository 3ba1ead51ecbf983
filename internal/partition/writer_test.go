package partition

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/warehoused/warehoused/internal/columnar"
	"github.com/warehoused/warehoused/internal/model"
	"github.com/warehoused/warehoused/internal/objectstore"
	"github.com/warehoused/warehoused/pkg/workerpool"
)

func TestFlushEmptyIsNoop(t *testing.T) {
	backing, err := objectstore.NewLocalStore(t.TempDir(), logrus.New())
	require.NoError(t, err)
	w := NewWriter(backing, "zstd", logrus.New())
	require.NoError(t, w.Flush(context.Background(), "span", nil))

	objs, err := backing.List(context.Background(), "span/")
	require.NoError(t, err)
	require.Empty(t, objs)
}

func TestFlushThenQueryRoundTrip(t *testing.T) {
	backing, err := objectstore.NewLocalStore(t.TempDir(), logrus.New())
	require.NoError(t, err)

	at := time.Date(2022, 6, 11, 16, 30, 0, 0, time.UTC)
	w := NewWriter(backing, "zstd", logrus.New())
	w.clock = func() time.Time { return at }

	start := time.Date(2022, 6, 11, 16, 30, 10, 0, time.UTC)
	end := time.Date(2022, 6, 11, 16, 30, 20, 0, time.UTC)
	batch := columnar.BuildSpanBatch([]*model.StoredSpan{{
		ID: 1, TraceID: 42, ProcessID: "svc-0", Name: "op",
		Start: &start, End: &end,
	}})
	require.NoError(t, w.Flush(context.Background(), "span", []*columnar.Batch{batch}))

	objs, err := backing.List(context.Background(), "span/date=2022-06-11/hour=16/minute=30/")
	require.NoError(t, err)
	require.Len(t, objs, 1)

	pool := workerpool.New(2)
	q := NewQuery(backing, pool)
	rangeStart := time.Date(2022, 6, 11, 16, 30, 0, 0, time.UTC)
	rangeEnd := time.Date(2022, 6, 11, 16, 31, 0, 0, time.UTC)
	frame, err := q.Frame(context.Background(), "span", columnar.SpanSchema(), rangeStart, rangeEnd)
	require.NoError(t, err)
	require.Len(t, frame.Rows, 1)
	require.Equal(t, model.U64Value(42), frame.Rows[0]["trace_id"])
	require.Equal(t, model.StrValue("op"), frame.Rows[0]["name"])
}

func TestFlushNoMatchingPrefixReturnsEmptyFrame(t *testing.T) {
	backing, err := objectstore.NewLocalStore(t.TempDir(), logrus.New())
	require.NoError(t, err)
	pool := workerpool.New(2)
	q := NewQuery(backing, pool)

	start := time.Date(2022, 6, 11, 16, 30, 0, 0, time.UTC)
	end := time.Date(2022, 6, 11, 16, 31, 0, 0, time.UTC)
	frame, err := q.Frame(context.Background(), "span", columnar.SpanSchema(), start, end)
	require.NoError(t, err)
	require.Empty(t, frame.Rows)
}
