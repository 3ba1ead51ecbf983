package trace

import (
	"strings"
	"time"

	"github.com/warehoused/warehoused/internal/columnar"
	"github.com/warehoused/warehoused/internal/model"
)

func microsToTime(micros int64) time.Time {
	return time.UnixMicro(micros)
}

func spanFromRow(row columnar.Row) *model.StoredSpan {
	s := &model.StoredSpan{
		ID:        row["id"].U64,
		TraceID:   row["trace_id"].U64,
		Name:      row["name"].Str,
		ProcessID: row["process_id"].Str,
	}
	if p, ok := row["parent_id"]; ok && !p.IsNull() {
		v := p.U64
		s.ParentID = &v
	}
	if v, ok := row["start"]; ok && !v.IsNull() {
		t := microsToTime(v.I64)
		s.Start = &t
	}
	if v, ok := row["end"]; ok && !v.IsNull() {
		t := microsToTime(v.I64)
		s.End = &t
	}
	if v, ok := row["tags"]; ok && !v.IsNull() {
		s.Tags = columnar.UnmarshalTags(v.Str)
	}
	if s.Tags == nil {
		s.Tags = make(map[string]model.Value)
	}
	return s
}

func logFromRow(row columnar.Row) *model.StoredLog {
	l := &model.StoredLog{
		ProcessID: row["process_id"].Str,
		Level:     model.Level(strings.ToUpper(stringOrEmpty(row["level"]))),
		Fields:    make(map[string]model.Value, len(row)),
	}
	if v, ok := row["time"]; ok && !v.IsNull() {
		l.Time = microsToTime(v.I64)
	}
	if v, ok := row["trace_id"]; ok && !v.IsNull() {
		id := v.U64
		l.TraceID = &id
	}
	if v, ok := row["span_id"]; ok && !v.IsNull() {
		id := v.U64
		l.SpanID = &id
	}
	for k, v := range row {
		switch k {
		case "process_id", "time", "trace_id", "span_id", "level":
			continue
		default:
			l.Fields[k] = v
		}
	}
	return l
}

func stringOrEmpty(v model.Value) string {
	if v.Kind != model.KindStr {
		return ""
	}
	return v.Str
}
