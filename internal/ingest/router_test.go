package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/warehoused/warehoused/internal/aggregator"
	"github.com/warehoused/warehoused/internal/model"
	"github.com/warehoused/warehoused/internal/objectstore"
	"github.com/warehoused/warehoused/internal/store"
)

func newTestRouter(t *testing.T) (*Router, context.CancelFunc) {
	t.Helper()
	backing, err := objectstore.NewLocalStore(t.TempDir(), logrus.New())
	require.NoError(t, err)
	schema := store.NewSchemaRegistry(backing, logrus.New())
	require.NoError(t, schema.Load(context.Background()))
	hot := store.NewHotStore(schema, backing, logrus.New())
	agg := aggregator.New()

	r := New(agg, hot, logrus.New(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx)
	return r, cancel
}

func TestRegisterProcessRoundTrip(t *testing.T) {
	r, cancel := newTestRouter(t)
	defer cancel()

	proc, err := r.RegisterProcess(context.Background(), model.WireProcess{ServiceName: "checkout"})
	require.NoError(t, err)
	require.Equal(t, "checkout-0", proc.ID)
}

func TestRegisterProcessAfterShutdownFails(t *testing.T) {
	r, cancel := newTestRouter(t)
	cancel()
	time.Sleep(20 * time.Millisecond) // let Run observe ctx.Done and close the mailbox

	_, err := r.RegisterProcess(context.Background(), model.WireProcess{ServiceName: "checkout"})
	require.Error(t, err)
}

func TestRecordLogBuffersUntilDrained(t *testing.T) {
	r, cancel := newTestRouter(t)
	defer cancel()

	r.RecordLog(&model.WireLog{ProcessID: "svc-0", Level: model.LevelInfo, Time: time.Now(), Fields: map[string]model.Value{"msg": model.StrValue("hi")}})
	require.Eventually(t, func() bool { return len(r.DrainPendingLogs()) == 1 }, time.Second, time.Millisecond)

	require.Empty(t, r.DrainPendingLogs(), "drain empties the pending vector")
}

func TestRecordSpanDropsWhenMailboxFull(t *testing.T) {
	backing, err := objectstore.NewLocalStore(t.TempDir(), logrus.New())
	require.NoError(t, err)
	schema := store.NewSchemaRegistry(backing, logrus.New())
	require.NoError(t, schema.Load(context.Background()))
	hot := store.NewHotStore(schema, backing, logrus.New())
	agg := aggregator.New()

	// No Run goroutine consuming the mailbox: every send past capacity must
	// drop silently rather than block the caller.
	r := New(agg, hot, logrus.New(), nil)
	for i := 0; i < MailboxCapacity+10; i++ {
		id := uint64(i)
		r.RecordSpan(&model.WireSpan{ID: id, TraceID: id, ProcessID: "svc-0", Name: "op"})
	}
	// No assertion beyond "did not block" — the test itself timing out would
	// indicate a blocking bug.
}
