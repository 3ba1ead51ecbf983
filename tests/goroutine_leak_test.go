package tests

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/goleak"

	"github.com/warehoused/warehoused/internal/aggregator"
	"github.com/warehoused/warehoused/internal/ingest"
	"github.com/warehoused/warehoused/internal/objectstore"
	"github.com/warehoused/warehoused/internal/partition"
	"github.com/warehoused/warehoused/internal/scheduler"
	"github.com/warehoused/warehoused/internal/store"
)

// TestSchedulerShutdownLeavesNoGoroutines starts the ingest router and the
// scheduler's aggregator/flush ticker loops, cancels their context, and
// verifies every goroutine they spawned has exited.
func TestSchedulerShutdownLeavesNoGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t,
		goleak.IgnoreTopFunction("github.com/sirupsen/logrus.(*Entry).log"),
	)

	logger := logrus.New()
	backing, err := objectstore.NewLocalStore(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}
	schema := store.NewSchemaRegistry(backing, logger)
	if err := schema.Load(context.Background()); err != nil {
		t.Fatalf("load schema: %v", err)
	}
	hot := store.NewHotStore(schema, backing, logger)
	agg := aggregator.New()
	router := ingest.New(agg, hot, logger, nil)
	writer := partition.NewWriter(backing, "none", logger)

	var memoryMode atomic.Bool
	memoryMode.Store(true)

	sched := scheduler.New(agg, router, hot, schema, writer, &memoryMode, 5*time.Millisecond, 10*time.Millisecond, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{}, 2)
	go func() { router.Run(ctx); done <- struct{}{} }()
	go func() { sched.Run(ctx); done <- struct{}{} }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("router or scheduler did not exit after context cancellation")
		}
	}
}
