package model

import (
	"strings"
	"time"
)

// Level is the wire log-severity enum.
type Level string

const (
	LevelTrace Level = "TRACE"
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Valid reports whether the level is one of the five wire levels.
func (l Level) Valid() bool {
	switch l {
	case LevelTrace, LevelDebug, LevelInfo, LevelWarn, LevelError:
		return true
	}
	return false
}

// Lower returns the lowercase string used in the "level" field column and
// in filter expressions (e.g. `level="error"`).
func (l Level) Lower() string { return strings.ToLower(string(l)) }

// WireLog is the log record as it arrives at the ingest boundary.
type WireLog struct {
	SpanID    *uint64
	TraceID   *uint64
	ProcessID string
	Level     Level
	Time      time.Time
	Fields    map[string]Value
}

// StoredLog is the wire log normalized for storage: level also appears as
// a string field inside Fields for query convenience (§3).
type StoredLog struct {
	SpanID    *uint64
	TraceID   *uint64
	ProcessID string
	Level     Level
	Time      time.Time
	Fields    map[string]Value
}

// ToStored normalizes a wire log: injects "level" into Fields and leaves
// everything else untouched. Timestamp truncation to microseconds happens
// in the columnar builder, not here.
func (l *WireLog) ToStored() *StoredLog {
	fields := make(map[string]Value, len(l.Fields)+1)
	for k, v := range l.Fields {
		fields[k] = v
	}
	fields["level"] = StrValue(l.Level.Lower())

	var spanID, traceID *uint64
	if l.SpanID != nil {
		v := *l.SpanID
		spanID = &v
	}
	if l.TraceID != nil {
		v := *l.TraceID
		traceID = &v
	}

	return &StoredLog{
		SpanID:    spanID,
		TraceID:   traceID,
		ProcessID: l.ProcessID,
		Level:     l.Level,
		Time:      l.Time,
		Fields:    fields,
	}
}

// CorrelatesWithSpan reports whether this log should participate in
// span-to-log correlation (invariant: a span_id-bearing log's trace_id
// must match the referenced span's trace_id — checked by the caller).
func (l *StoredLog) CorrelatesWithSpan() bool { return l.SpanID != nil }
