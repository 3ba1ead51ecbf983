package columnar

import (
	"encoding/json"
	"sort"
	"strconv"
	"time"

	"github.com/warehoused/warehoused/internal/model"
)

// Row is one record, keyed by column name. A missing key is a SQL NULL.
//
// Row is never mutated after it's placed into a Batch — callers that need
// a different value create a new map. That convention is what makes
// Batch cheap to "clone": a Batch handle is just a slice header over rows
// nobody writes to again, the Go equivalent of a ref-counted immutable
// column array.
type Row map[string]model.Value

// Batch is an immutable columnar record batch: a schema plus the rows
// that were used to infer it.
type Batch struct {
	Table  string // "span" or "log"
	Schema *Schema
	Rows   []Row
}

func truncateMicros(t time.Time) int64 {
	return t.UnixNano() / 1000
}

// BuildSpanBatch converts spans into a batch against the fixed span
// schema (§4.3). Empty input returns nil.
func BuildSpanBatch(spans []*model.StoredSpan) *Batch {
	if len(spans) == 0 {
		return nil
	}
	schema := SpanSchema()
	rows := make([]Row, 0, len(spans))
	for _, s := range spans {
		row := Row{
			"id":         model.U64Value(s.ID),
			"trace_id":   model.U64Value(s.TraceID),
			"name":       model.StrValue(s.Name),
			"process_id": model.StrValue(s.ProcessID),
			"tags":       model.StrValue(marshalTags(s.Tags)),
		}
		if s.ParentID != nil {
			row["parent_id"] = model.U64Value(*s.ParentID)
		}
		if s.Start != nil {
			row["start"] = model.I64Value(truncateMicros(*s.Start))
		}
		if s.End != nil {
			row["end"] = model.I64Value(truncateMicros(*s.End))
		}
		rows = append(rows, row)
	}
	return &Batch{Table: "span", Schema: schema, Rows: rows}
}

// tagTriple mirrors the on-wire {key,type,value} shape used for the
// span "tags" blob column.
type tagTriple struct {
	Key   string `json:"key"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

func marshalTags(tags map[string]model.Value) string {
	return MarshalTags(tags)
}

// MarshalTags renders a tag map as the JSON blob stored in the span
// "tags" column: a list of {key,type,value} triples in key order.
func MarshalTags(tags map[string]model.Value) string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	triples := make([]tagTriple, 0, len(keys))
	for _, k := range keys {
		v := tags[k]
		triples = append(triples, tagTriple{Key: k, Type: v.TypeName(), Value: v.String()})
	}
	b, err := json.Marshal(triples)
	if err != nil {
		// Values are all well-formed scalars; this cannot fail in practice.
		return "[]"
	}
	return string(b)
}

// UnmarshalTags parses a blob written by MarshalTags back into a tag
// map. A malformed blob yields an empty map rather than an error, since
// the only producer of this column is MarshalTags itself.
func UnmarshalTags(blob string) map[string]model.Value {
	var triples []tagTriple
	if err := json.Unmarshal([]byte(blob), &triples); err != nil {
		return map[string]model.Value{}
	}
	out := make(map[string]model.Value, len(triples))
	for _, t := range triples {
		out[t.Key] = parseTagValue(t.Type, t.Value)
	}
	return out
}

func parseTagValue(kind, raw string) model.Value {
	switch kind {
	case "str":
		return model.StrValue(raw)
	case "u64":
		if u, err := strconv.ParseUint(raw, 10, 64); err == nil {
			return model.U64Value(u)
		}
	case "i64":
		if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return model.I64Value(i)
		}
	case "bool":
		return model.BoolValue(raw == "true")
	}
	return model.Null
}

// BuildLogBatch converts logs into a batch whose schema is the fixed log
// prefix plus one column per field key observed in this batch (§4.3).
// The per-batch schema is the caller's responsibility to merge into the
// running schema (store.SchemaRegistry.Merge).
func BuildLogBatch(logs []*model.StoredLog) *Batch {
	if len(logs) == 0 {
		return nil
	}

	fieldKinds := make(map[string]model.Kind)
	for _, l := range logs {
		for k, v := range l.Fields {
			if v.IsNull() {
				continue
			}
			fieldKinds[k] = v.Kind
		}
	}
	fieldNames := make([]string, 0, len(fieldKinds))
	for k := range fieldKinds {
		fieldNames = append(fieldNames, k)
	}
	sort.Strings(fieldNames)

	fields := []Field{
		{Name: "process_id", Kind: model.KindStr, Nullable: false},
		{Name: "time", Kind: model.KindI64, Nullable: false},
		{Name: "trace_id", Kind: model.KindU64, Nullable: true},
		{Name: "span_id", Kind: model.KindU64, Nullable: true},
		{Name: "level", Kind: model.KindStr, Nullable: false},
	}
	for _, name := range fieldNames {
		fields = append(fields, Field{Name: name, Kind: fieldKinds[name], Nullable: true})
	}
	schema := NewSchema(fields)

	rows := make([]Row, 0, len(logs))
	for _, l := range logs {
		row := Row{
			"process_id": model.StrValue(l.ProcessID),
			"time":       model.I64Value(truncateMicros(l.Time)),
			"level":      model.StrValue(l.Level.Lower()),
		}
		if l.TraceID != nil {
			row["trace_id"] = model.U64Value(*l.TraceID)
		}
		if l.SpanID != nil {
			row["span_id"] = model.U64Value(*l.SpanID)
		}
		for k, v := range l.Fields {
			if k == "level" || v.IsNull() {
				continue
			}
			row[k] = v
		}
		rows = append(rows, row)
	}
	return &Batch{Table: "log", Schema: schema, Rows: rows}
}
