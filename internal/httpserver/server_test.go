package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/warehoused/warehoused/internal/model"
	"github.com/warehoused/warehoused/internal/objectstore"
	"github.com/warehoused/warehoused/internal/partition"
	"github.com/warehoused/warehoused/internal/query"
	"github.com/warehoused/warehoused/internal/store"
	"github.com/warehoused/warehoused/internal/trace"
	"github.com/warehoused/warehoused/pkg/workerpool"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	backing, err := objectstore.NewLocalStore(t.TempDir(), logrus.New())
	require.NoError(t, err)
	schema := store.NewSchemaRegistry(backing, logrus.New())
	require.NoError(t, schema.Load(context.Background()))
	hot := store.NewHotStore(schema, backing, logrus.New())
	cold := partition.NewQuery(backing, workerpool.New(2))
	var mm atomic.Bool
	mm.Store(true)
	eng := query.New(hot, cold, &mm, logrus.New())
	asm := trace.New(eng, schema.Get)

	_, err = hot.RegisterProcess(context.Background(), model.WireProcess{ServiceName: "checkout"})
	require.NoError(t, err)

	start := time.Now().Add(-time.Minute)
	end := time.Now()
	hot.MergeSpans([]*model.StoredSpan{
		{ID: 1, TraceID: 10, ProcessID: "checkout-0", Name: "handle", Start: &start, End: &end},
	})

	return New(hot, schema, eng, asm, &mm, logrus.New())
}

func TestServicesEndpoint(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/services", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data []string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Contains(t, body.Data, "checkout")
}

func TestTraceByIDEndpoint(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/traces/10", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data  []traceDTO `json:"data"`
		Total int        `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Total)
	require.Equal(t, "10", body.Data[0].TraceID)
}

func TestLogSchemaEndpoint(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/logs/schema", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var fields []fieldDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fields))
}

func TestHealthEndpointReportsMemoryMode(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/debug/health", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var h healthDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &h))
	require.True(t, h.MemoryMode)
}
