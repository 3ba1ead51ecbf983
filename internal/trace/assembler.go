// Package trace implements the TraceAssembler (C8): bucketing spans by
// trace id, selecting root-matching candidates, and attaching correlated
// logs.
package trace

import (
	"context"
	"errors"
	"time"

	"github.com/warehoused/warehoused/internal/columnar"
	"github.com/warehoused/warehoused/internal/model"
	"github.com/warehoused/warehoused/internal/query"
)

// ErrNotFound is returned by ByID when no span carries the requested
// trace id within the lookup window.
var ErrNotFound = errors.New("trace: not found")

// DefaultLimit bounds Search results when the caller gives none.
const DefaultLimit = 20

// byIDWindow is the generous cold range used for a point lookup by id.
const byIDWindow = 12 * time.Hour

// Parameters selects the candidate traces for Search (§4.8).
type Parameters struct {
	Service     string
	Operation   *string
	Limit       int
	Start, End  *time.Time
	MinDuration *int64 // microseconds
	MaxDuration *int64 // microseconds
}

// Assembler executes trace search and by-id lookup over the query
// engine.
type Assembler struct {
	eng         *query.Engine
	logSchemaFn func() *columnar.Schema
}

// New constructs an Assembler. logSchemaFn returns the current stored
// log schema (the registry's Get, typically).
func New(eng *query.Engine, logSchemaFn func() *columnar.Schema) *Assembler {
	return &Assembler{eng: eng, logSchemaFn: logSchemaFn}
}

// Search runs the 5-step plan from §4.8 and returns candidate traces in
// the order their first matching root span appears in the query rows.
func (a *Assembler) Search(ctx context.Context, p Parameters) ([]*model.Trace, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	pred := query.And(
		query.Like("process_id", p.Service+"%"),
		query.MicroRange("start", p.Start, p.End),
		query.DurationMicroRange("start", "end", p.MinDuration, p.MaxDuration),
	)
	rows, err := a.eng.Query("span", columnar.SpanSchema(), pred).Range(p.Start, p.End).Collect(ctx)
	if err != nil {
		return nil, err
	}

	var candidateOrder []uint64
	seen := make(map[uint64]bool)
	for _, r := range rows {
		s := spanFromRow(r)
		if !s.IsRoot() {
			continue
		}
		if p.Operation != nil && s.Name != *p.Operation {
			continue
		}
		if !seen[s.TraceID] {
			seen[s.TraceID] = true
			candidateOrder = append(candidateOrder, s.TraceID)
		}
	}
	if len(candidateOrder) > limit {
		candidateOrder = candidateOrder[:limit]
	}
	if len(candidateOrder) == 0 {
		return nil, nil
	}

	idSet := make(map[uint64]struct{}, len(candidateOrder))
	for _, id := range candidateOrder {
		idSet[id] = struct{}{}
	}

	// Re-query span unconditionally by trace id: children outside the
	// original service/time/duration filter still belong in the trace view.
	fullRows, err := a.eng.Query("span", columnar.SpanSchema(), query.InU64("trace_id", idSet)).
		Range(p.Start, p.End).Collect(ctx)
	if err != nil {
		return nil, err
	}

	traces := make(map[uint64]*model.Trace, len(candidateOrder))
	for _, id := range candidateOrder {
		traces[id] = model.NewTrace(id)
	}
	for _, r := range fullRows {
		s := spanFromRow(r)
		if t, ok := traces[s.TraceID]; ok {
			t.AddSpan(s, nil)
		}
	}

	logRows, err := a.eng.Query("log", a.logSchemaFn(), query.InU64("trace_id", idSet)).
		Range(p.Start, p.End).Collect(ctx)
	if err != nil {
		return nil, err
	}
	attachLogs(traces, logRows)

	out := make([]*model.Trace, 0, len(candidateOrder))
	for _, id := range candidateOrder {
		out = append(out, traces[id])
	}
	return out, nil
}

// ByID looks up a single trace over a generous 12h cold range. Returns
// ErrNotFound if no span carries the id.
func (a *Assembler) ByID(ctx context.Context, id uint64) (*model.Trace, error) {
	now := time.Now()
	start := now.Add(-byIDWindow)

	rows, err := a.eng.Query("span", columnar.SpanSchema(), query.Eq("trace_id", model.U64Value(id))).
		Range(&start, &now).Collect(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}

	t := model.NewTrace(id)
	for _, r := range rows {
		t.AddSpan(spanFromRow(r), nil)
	}

	logRows, err := a.eng.Query("log", a.logSchemaFn(), query.Eq("trace_id", model.U64Value(id))).
		Range(&start, &now).Collect(ctx)
	if err != nil {
		return nil, err
	}
	attachLogs(map[uint64]*model.Trace{id: t}, logRows)
	return t, nil
}

// attachLogs implements §4.8 step 5: for each span, attach logs whose
// span_id matches; an ERROR-level attached log sets tag error=true
// (§8 property 5).
func attachLogs(traces map[uint64]*model.Trace, logRows []columnar.Row) {
	logsBySpan := make(map[uint64][]*model.StoredLog)
	for _, r := range logRows {
		l := logFromRow(r)
		if l.SpanID != nil {
			logsBySpan[*l.SpanID] = append(logsBySpan[*l.SpanID], l)
		}
	}
	for _, t := range traces {
		for _, s := range t.Spans {
			for _, l := range logsBySpan[s.ID] {
				if l.Level == model.LevelError {
					s.Tags["error"] = model.BoolValue(true)
				}
			}
		}
	}
}
