package rpcserver

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/warehoused/warehoused/internal/aggregator"
	"github.com/warehoused/warehoused/internal/ingest"
	"github.com/warehoused/warehoused/internal/model"
	"github.com/warehoused/warehoused/internal/objectstore"
	"github.com/warehoused/warehoused/internal/store"
)

func newTestServer(t *testing.T) (*Server, func()) {
	t.Helper()
	backing, err := objectstore.NewLocalStore(t.TempDir(), logrus.New())
	require.NoError(t, err)
	schema := store.NewSchemaRegistry(backing, logrus.New())
	require.NoError(t, schema.Load(context.Background()))
	hot := store.NewHotStore(schema, backing, logrus.New())
	router := ingest.New(aggregator.New(), hot, logrus.New(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	go router.Run(ctx)
	return New(router, logrus.New()), cancel
}

func TestRegisterProcessRejectsMissingPayload(t *testing.T) {
	s, cancel := newTestServer(t)
	defer cancel()

	_, err := s.RegisterProcess(context.Background(), &registerProcessRequest{})
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestRegisterProcessReturnsDerivedID(t *testing.T) {
	s, cancel := newTestServer(t)
	defer cancel()

	resp, err := s.RegisterProcess(context.Background(), &registerProcessRequest{
		Process: &model.WireProcess{ServiceName: "checkout", Tags: map[string]model.Value{}},
	})
	require.NoError(t, err)
	require.Equal(t, "checkout-0", resp.ProcessID)
}

func TestRecordSpanRejectsMissingPayload(t *testing.T) {
	s, cancel := newTestServer(t)
	defer cancel()

	_, err := s.RecordSpan(context.Background(), &recordSpanRequest{})
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestRecordEventRejectsInvalidLevel(t *testing.T) {
	s, cancel := newTestServer(t)
	defer cancel()

	_, err := s.RecordEvent(context.Background(), &recordEventRequest{
		Log: &model.WireLog{ProcessID: "svc-0", Level: "VERBOSE", Time: time.Now()},
	})
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestRecordEventAcceptsValidLog(t *testing.T) {
	s, cancel := newTestServer(t)
	defer cancel()

	_, err := s.RecordEvent(context.Background(), &recordEventRequest{
		Log: &model.WireLog{ProcessID: "svc-0", Level: model.LevelInfo, Time: time.Now(), Fields: map[string]model.Value{}},
	})
	require.NoError(t, err)
}
