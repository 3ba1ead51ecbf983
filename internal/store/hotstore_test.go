package store

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/warehoused/warehoused/internal/model"
	"github.com/warehoused/warehoused/internal/objectstore"
)

func newTestHotStore(t *testing.T) (*HotStore, *SchemaRegistry) {
	t.Helper()
	backing, err := objectstore.NewLocalStore(t.TempDir(), logrus.New())
	require.NoError(t, err)
	schema := NewSchemaRegistry(backing, logrus.New())
	require.NoError(t, schema.Load(context.Background()))
	hs := NewHotStore(schema, backing, logrus.New())
	return hs, schema
}

func TestRegisterProcessOrdinals(t *testing.T) {
	hs, _ := newTestHotStore(t)
	ctx := context.Background()

	p0, err := hs.RegisterProcess(ctx, model.WireProcess{ServiceName: "svc"})
	require.NoError(t, err)
	require.Equal(t, "svc-0", p0.ID)

	p1, err := hs.RegisterProcess(ctx, model.WireProcess{ServiceName: "svc"})
	require.NoError(t, err)
	require.Equal(t, "svc-1", p1.ID)
}

func TestMergeLogsSchemaSuperset(t *testing.T) {
	hs, schema := newTestHotStore(t)

	err := hs.MergeLogs([]*model.StoredLog{{
		ProcessID: "svc-0",
		Level:     model.LevelInfo,
		Time:      time.Now(),
		Fields:    map[string]model.Value{"request_id": model.U64Value(42)},
	}})
	require.NoError(t, err)

	_, ok := schema.Get().Field("request_id")
	require.True(t, ok, "hot store schema must be a superset of every log batch it contains")
}

func TestResetDrainsBatchesKeepsSchema(t *testing.T) {
	hs, schema := newTestHotStore(t)
	require.NoError(t, hs.MergeLogs([]*model.StoredLog{{
		ProcessID: "svc-0", Level: model.LevelInfo, Time: time.Now(),
		Fields: map[string]model.Value{"x": model.StrValue("y")},
	}}))
	hs.MergeSpans([]*model.StoredSpan{{ID: 1, TraceID: 1, ProcessID: "svc-0", Name: "op"}})

	require.True(t, hs.IsDirty())
	spans, logs := hs.Reset()
	require.Len(t, spans, 1)
	require.Len(t, logs, 1)
	require.False(t, hs.IsDirty())

	snap := hs.SnapshotForQuery()
	require.Empty(t, snap.SpanBatches)
	require.Empty(t, snap.LogBatches)
	_, ok := schema.Get().Field("x")
	require.True(t, ok, "schema survives reset")
}
