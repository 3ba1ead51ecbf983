package query

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/warehoused/warehoused/internal/apperr"
	"github.com/warehoused/warehoused/internal/columnar"
	"github.com/warehoused/warehoused/internal/model"
	"github.com/warehoused/warehoused/internal/partition"
	"github.com/warehoused/warehoused/internal/store"
	"github.com/warehoused/warehoused/internal/telemetry"
)

// DefaultColdWindow is the cold-range default when a query gives no
// explicit [start, end) (§4.7).
const DefaultColdWindow = 15 * time.Minute

// Engine executes the hot/cold union plan described in §4.7.
type Engine struct {
	hot        *store.HotStore
	cold       *partition.Query
	memoryMode *atomic.Bool
	logger     *logrus.Logger
	now        func() time.Time
	coldWindow atomic.Int64 // nanoseconds; written by New and SetColdWindow (startup and pkg/hotreload)
}

// New constructs an Engine. memoryMode gates cold-store access: set, no
// partition file is ever read or written; clear, both happen on
// schedule (§8 property 7).
func New(hot *store.HotStore, cold *partition.Query, memoryMode *atomic.Bool, logger *logrus.Logger) *Engine {
	e := &Engine{hot: hot, cold: cold, memoryMode: memoryMode, logger: logger, now: time.Now}
	e.coldWindow.Store(int64(DefaultColdWindow))
	return e
}

// SetColdWindow changes the default cold-range lookback applied when a
// query gives no explicit [start, end). Safe to call concurrently with
// in-flight queries; takes effect on the next one.
func (e *Engine) SetColdWindow(d time.Duration) {
	e.coldWindow.Store(int64(d))
}

// SortSpec orders rows by a named field.
type SortSpec struct {
	Field string
	Desc  bool
}

// Builder accumulates a query's filter/range/sort/limit clauses before
// Collect executes the plan.
type Builder struct {
	eng        *Engine
	table      string
	schema     *columnar.Schema
	pred       Predicate
	start, end *time.Time
	sorts      []SortSpec
	skip, n    int
}

// Query starts a builder over table ("span" or "log"), filtered by pred
// (nil keeps everything) and decoded against schema — the fixed span
// schema, or the caller's current log schema snapshot.
func (e *Engine) Query(table string, schema *columnar.Schema, pred Predicate) *Builder {
	return &Builder{eng: e, table: table, schema: schema, pred: pred, n: -1}
}

// Range selects which cold partitions are read (either bound may be nil,
// falling back to the cold window). It does not filter rows by time;
// callers that need that add a time predicate such as MicroRange.
func (b *Builder) Range(start, end *time.Time) *Builder {
	b.start, b.end = start, end
	return b
}

// Sort orders the collected rows by specs in order, stable on ties.
func (b *Builder) Sort(specs ...SortSpec) *Builder {
	b.sorts = specs
	return b
}

// Limit skips the first skip rows and keeps at most n (n < 0 means
// unlimited).
func (b *Builder) Limit(skip, n int) *Builder {
	b.skip, b.n = skip, n
	return b
}

// Collect executes the plan: hot frame, optional cold frame union,
// filter, sort, limit, then a JSON round trip per row (§4.7 step 4) so
// the result matches exactly what an HTTP client receives.
func (b *Builder) Collect(ctx context.Context) ([]columnar.Row, error) {
	tier := "hot"
	if !b.eng.memoryMode.Load() {
		tier = "hot+cold"
	}
	timer := prometheus.NewTimer(telemetry.QueryDuration.WithLabelValues(b.table, tier))
	defer timer.ObserveDuration()

	rows, err := b.collectRaw(ctx)
	if err != nil {
		return nil, err
	}
	return roundTripJSON(rows)
}

func (b *Builder) collectRaw(ctx context.Context) ([]columnar.Row, error) {
	var rows []columnar.Row

	for _, batch := range b.hotBatches() {
		rows = append(rows, filterRows(batch.Rows, b.pred)...)
	}

	if !b.eng.memoryMode.Load() {
		start, end := b.coldRange()
		frame, err := b.eng.cold.Frame(ctx, b.table, b.schema, start, end)
		if err != nil {
			// Cold-query failure degrades to hot-only per §7; logged, not
			// surfaced, since the hot rows already collected remain valid.
			b.eng.logger.WithError(err).WithField("table", b.table).Debug("cold query failed, degrading to hot-only")
		} else {
			rows = append(rows, filterRows(frame.Rows, b.pred)...)
		}
	}

	if len(b.sorts) > 0 {
		sortRows(rows, b.sorts)
	}

	if b.skip > 0 {
		if b.skip >= len(rows) {
			return nil, nil
		}
		rows = rows[b.skip:]
	}
	if b.n >= 0 && b.n < len(rows) {
		rows = rows[:b.n]
	}
	return rows, nil
}

func (b *Builder) hotBatches() []*columnar.Batch {
	snap := b.eng.hot.SnapshotForQuery()
	if b.table == "log" {
		return snap.LogBatches
	}
	return snap.SpanBatches
}

func (b *Builder) coldRange() (time.Time, time.Time) {
	now := b.eng.now()
	window := time.Duration(b.eng.coldWindow.Load())
	start, end := now.Add(-window), now
	if b.start != nil {
		start = *b.start
	}
	if b.end != nil {
		end = *b.end
	}
	return start, end
}

func filterRows(rows []columnar.Row, pred Predicate) []columnar.Row {
	if pred == nil {
		return rows
	}
	out := make([]columnar.Row, 0, len(rows))
	for _, r := range rows {
		if pred(r) {
			out = append(out, r)
		}
	}
	return out
}

func sortRows(rows []columnar.Row, specs []SortSpec) {
	sort.SliceStable(rows, func(i, j int) bool {
		for _, s := range specs {
			cmp := compareCell(rows[i][s.Field], rows[j][s.Field])
			if cmp == 0 {
				continue
			}
			if s.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

func compareCell(a, b model.Value) int {
	if a.Kind == model.KindNull && b.Kind == model.KindNull {
		return 0
	}
	if a.Kind == model.KindNull {
		return -1
	}
	if b.Kind == model.KindNull {
		return 1
	}
	switch a.Kind {
	case model.KindStr:
		return strings.Compare(a.Str, b.Str)
	case model.KindU64:
		switch {
		case a.U64 < b.U64:
			return -1
		case a.U64 > b.U64:
			return 1
		default:
			return 0
		}
	case model.KindI64:
		switch {
		case a.I64 < b.I64:
			return -1
		case a.I64 > b.I64:
			return 1
		default:
			return 0
		}
	case model.KindBool:
		if a.Bool == b.Bool {
			return 0
		}
		if !a.Bool {
			return -1
		}
		return 1
	default:
		return 0
	}
}

// roundTripJSON serializes each row to JSON and back, the narrow waist
// the spec calls for so query consumers never couple to the live column
// list (§4.7): a row is whatever survives a JSON hop, nothing more.
func roundTripJSON(rows []columnar.Row) ([]columnar.Row, error) {
	out := make([]columnar.Row, 0, len(rows))
	for _, r := range rows {
		data, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("query: marshal row: %w", err)
		}
		var decoded columnar.Row
		if err := json.Unmarshal(data, &decoded); err != nil {
			return nil, fmt.Errorf("query: unmarshal row: %w", err)
		}
		out = append(out, decoded)
	}
	return out, nil
}

// FieldNotFound reports a QueryPlanError for an unknown filter/sort/group
// field — the httpserver boundary maps this to the §7 "200 with empty
// result or 404" rule.
func FieldNotFound(schema *columnar.Schema, field string) error {
	if _, ok := schema.Field(field); ok {
		return nil
	}
	return apperr.New(apperr.KindQueryPlan, "query", fmt.Sprintf("unknown field %q", field))
}
