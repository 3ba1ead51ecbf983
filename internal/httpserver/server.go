// Package httpserver exposes the read-only query HTTP surface (§6) over
// gorilla/mux: services, operations, traces, logs, and the ops-only
// /debug/health and /metrics routes. It never accepts writes — the
// ingest path is internal/rpcserver's job.
package httpserver

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/warehoused/warehoused/internal/query"
	"github.com/warehoused/warehoused/internal/store"
	"github.com/warehoused/warehoused/internal/trace"
)

// Server holds everything the query handlers need to read from.
type Server struct {
	hot        *store.HotStore
	schema     *store.SchemaRegistry
	engine     *query.Engine
	assembler  *trace.Assembler
	memoryMode *atomic.Bool
	startedAt  time.Time
	logger     *logrus.Logger
}

// New constructs a Server.
func New(hot *store.HotStore, schema *store.SchemaRegistry, engine *query.Engine, assembler *trace.Assembler, memoryMode *atomic.Bool, logger *logrus.Logger) *Server {
	return &Server{
		hot:        hot,
		schema:     schema,
		engine:     engine,
		assembler:  assembler,
		memoryMode: memoryMode,
		startedAt:  time.Now(),
		logger:     logger,
	}
}

// Router builds the mux.Router exposing every route in §6 plus the
// ops-only debug/metrics surface, wrapped in the same response-time
// middleware style the teacher's app package uses.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.loggingMiddleware)
	r.Use(compressionMiddleware)

	r.HandleFunc("/api/services", s.handleServices).Methods(http.MethodGet)
	r.HandleFunc("/api/services/{service}/operations", s.handleOperations).Methods(http.MethodGet)
	r.HandleFunc("/api/traces", s.handleTraceSearch).Methods(http.MethodGet)
	r.HandleFunc("/api/traces/{id}", s.handleTraceByID).Methods(http.MethodGet)
	r.HandleFunc("/api/logs", s.handleLogs).Methods(http.MethodGet)
	r.HandleFunc("/api/logs/schema", s.handleLogSchema).Methods(http.MethodGet)
	r.HandleFunc("/api/logs/stats/{field}", s.handleLogStats).Methods(http.MethodGet)

	r.HandleFunc("/debug/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.WithFields(logrus.Fields{
			"path":   r.URL.Path,
			"method": r.Method,
			"took":   time.Since(start),
		}).Debug("http request")
	})
}
