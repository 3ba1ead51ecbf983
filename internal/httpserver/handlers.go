package httpserver

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/warehoused/warehoused/internal/apperr"
	"github.com/warehoused/warehoused/internal/columnar"
	"github.com/warehoused/warehoused/internal/model"
	"github.com/warehoused/warehoused/internal/query"
	"github.com/warehoused/warehoused/internal/trace"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeQueryErr maps a query-boundary error to the §7 rule: a
// QueryPlanError (unknown filter field) is a 404, everything else a 500.
func writeQueryErr(w http.ResponseWriter, err error) {
	if kind, ok := apperr.KindOf(err); ok && kind == apperr.KindQueryPlan {
		writeJSON(w, http.StatusNotFound, newEnvelope([]interface{}{}, 0, 0, 0))
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func (s *Server) handleServices(w http.ResponseWriter, r *http.Request) {
	services := s.hot.Services()
	sort.Strings(services)
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": services})
}

func (s *Server) handleOperations(w http.ResponseWriter, r *http.Request) {
	service := mux.Vars(r)["service"]
	schema := columnar.SpanSchema()
	rows, err := s.engine.Query("span", schema, query.Like("process_id", service+"%")).Collect(r.Context())
	if err != nil {
		writeQueryErr(w, err)
		return
	}
	seen := make(map[string]struct{})
	var ops []string
	for _, row := range rows {
		name := row["name"]
		if name.Kind != model.KindStr {
			continue
		}
		if _, ok := seen[name.Str]; ok {
			continue
		}
		seen[name.Str] = struct{}{}
		ops = append(ops, name.Str)
	}
	sort.Strings(ops)
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": ops})
}

func queryTimeParam(r *http.Request, name string) *time.Time {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	micros, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	t := time.UnixMicro(micros)
	return &t
}

func queryIntParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func queryInt64Param(r *http.Request, name string) *int64 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

func (s *Server) handleTraceSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := trace.Parameters{
		Service:     q.Get("service"),
		Limit:       queryIntParam(r, "limit", trace.DefaultLimit),
		Start:       queryTimeParam(r, "start"),
		End:         queryTimeParam(r, "end"),
		MinDuration: queryInt64Param(r, "minDuration"),
		MaxDuration: queryInt64Param(r, "maxDuration"),
	}
	if op := q.Get("operation"); op != "" {
		params.Operation = &op
	}

	traces, err := s.assembler.Search(r.Context(), params)
	if err != nil {
		writeQueryErr(w, err)
		return
	}
	dtos := make([]traceDTO, 0, len(traces))
	for _, t := range traces {
		dtos = append(dtos, traceToDTO(t))
	}
	writeJSON(w, http.StatusOK, newEnvelope(dtos, len(dtos), params.Limit, 0))
}

func (s *Server) handleTraceByID(w http.ResponseWriter, r *http.Request) {
	idStr := mux.Vars(r)["id"]
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		writeJSON(w, http.StatusOK, newEnvelope([]traceDTO{}, 0, 1, 0))
		return
	}

	t, err := s.assembler.ByID(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusOK, newEnvelope([]traceDTO{}, 0, 1, 0))
		return
	}
	dtos := []traceDTO{traceToDTO(t)}
	writeJSON(w, http.StatusOK, newEnvelope(dtos, 1, 1, 0))
}

// logExprPredicate supports one filter shape: `field="value"` or
// `field=123` equality, with the literal typed after the column (u64,
// i64, or string). An expr without `=` falls back to a substring match
// on the message column (no message column matches nothing). An
// equality on a field the schema does not know is ignored.
func logExprPredicate(expr string, schema *columnar.Schema) query.Predicate {
	parts := strings.SplitN(expr, "=", 2)
	if len(parts) != 2 {
		return func(r columnar.Row) bool {
			cell, ok := r["message"]
			return ok && cell.Kind == model.KindStr && strings.Contains(cell.Str, expr)
		}
	}
	field := strings.TrimSpace(parts[0])
	raw := strings.Trim(strings.TrimSpace(parts[1]), `"`)
	f, ok := schema.Field(field)
	if !ok {
		return nil
	}
	switch f.Kind {
	case model.KindU64:
		if n, err := strconv.ParseUint(raw, 10, 64); err == nil {
			return query.Eq(field, model.U64Value(n))
		}
	case model.KindI64:
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return query.Eq(field, model.I64Value(n))
		}
	}
	return query.Eq(field, model.StrValue(raw))
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	schema := s.schema.Get()

	preds := []query.Predicate{
		query.Like("process_id", q.Get("service")+"%"),
		query.MicroRange("time", queryTimeParam(r, "start"), queryTimeParam(r, "end")),
	}
	if expr := q.Get("expr"); expr != "" {
		preds = append(preds, logExprPredicate(expr, schema))
	}

	limit := queryIntParam(r, "limit", 100)
	skip := queryIntParam(r, "skip", 0)

	rows, err := s.engine.Query("log", schema, query.And(preds...)).
		Sort(query.SortSpec{Field: "time", Desc: true}).
		Limit(skip, limit).
		Collect(r.Context())
	if err != nil {
		writeQueryErr(w, err)
		return
	}

	out := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		entry := make(map[string]interface{}, len(row))
		for k, v := range row {
			entry[k] = valueToJSON(v)
		}
		out = append(out, entry)
	}
	writeJSON(w, http.StatusOK, out)
}

type fieldDTO struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

func (s *Server) handleLogSchema(w http.ResponseWriter, r *http.Request) {
	schema := s.schema.Get()
	out := make([]fieldDTO, 0, len(schema.Fields))
	for _, f := range schema.Fields {
		out = append(out, fieldDTO{Name: f.Name, Type: f.Kind.String(), Nullable: f.Nullable})
	}
	writeJSON(w, http.StatusOK, out)
}

type statDTO struct {
	Value interface{} `json:"value"`
	Count int         `json:"count"`
}

func (s *Server) handleLogStats(w http.ResponseWriter, r *http.Request) {
	field := mux.Vars(r)["field"]
	schema := s.schema.Get()
	if err := query.FieldNotFound(schema, field); err != nil {
		writeQueryErr(w, err)
		return
	}

	limit := queryIntParam(r, "limit", 20)
	rows, err := s.engine.Query("log", schema, nil).
		Range(queryTimeParam(r, "start"), queryTimeParam(r, "end")).
		Collect(r.Context())
	if err != nil {
		writeQueryErr(w, err)
		return
	}

	counts := query.CountByField(rows, field)
	if limit > 0 && limit < len(counts) {
		counts = counts[:limit]
	}
	out := make([]statDTO, 0, len(counts))
	for _, c := range counts {
		out = append(out, statDTO{Value: valueToJSON(c.Value), Count: c.Count})
	}
	writeJSON(w, http.StatusOK, out)
}

type healthDTO struct {
	Status     string `json:"status"`
	Uptime     string `json:"uptime"`
	MemoryMode bool   `json:"memoryMode"`
	Goroutines int    `json:"goroutines"`
	RSSBytes   uint64 `json:"rssBytes,omitempty"`
	OpenFDs    int32  `json:"openFds,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := healthDTO{
		Status:     "healthy",
		Uptime:     time.Since(s.startedAt).String(),
		MemoryMode: s.memoryMode.Load(),
		Goroutines: runtime.NumGoroutine(),
	}
	if proc, err := selfProcess(); err == nil {
		if rss, err := proc.rssBytes(); err == nil {
			h.RSSBytes = rss
		}
		if fds, err := proc.openFDs(); err == nil {
			h.OpenFDs = fds
		}
	}
	writeJSON(w, http.StatusOK, h)
}
