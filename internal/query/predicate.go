// Package query implements the QueryEngine (C7): filter/range/sort/limit
// over the union of the hot in-memory frame and cold partition frames.
package query

import (
	"strings"
	"time"

	"github.com/warehoused/warehoused/internal/columnar"
	"github.com/warehoused/warehoused/internal/model"
)

// Predicate reports whether a row should be kept. nil is treated as
// "keep everything" by every call site in this package.
type Predicate func(columnar.Row) bool

// And keeps a row iff every predicate keeps it. An empty list keeps
// everything.
func And(preds ...Predicate) Predicate {
	live := make([]Predicate, 0, len(preds))
	for _, p := range preds {
		if p != nil {
			live = append(live, p)
		}
	}
	if len(live) == 0 {
		return nil
	}
	return func(r columnar.Row) bool {
		for _, p := range live {
			if !p(r) {
				return false
			}
		}
		return true
	}
}

// Eq keeps rows whose field equals v.
func Eq(field string, v model.Value) Predicate {
	return func(r columnar.Row) bool {
		cell, ok := r[field]
		return ok && cell == v
	}
}

// Like keeps rows whose string field matches a "prefix%" pattern — the
// only shape the spec's filter expressions use (`process_id LIKE
// "<service>%"`).
func Like(field, pattern string) Predicate {
	prefix := strings.TrimSuffix(pattern, "%")
	return func(r columnar.Row) bool {
		cell, ok := r[field]
		return ok && cell.Kind == model.KindStr && strings.HasPrefix(cell.Str, prefix)
	}
}

// InU64 keeps rows whose u64 field is a member of ids.
func InU64(field string, ids map[uint64]struct{}) Predicate {
	return func(r columnar.Row) bool {
		cell, ok := r[field]
		if !ok || cell.Kind != model.KindU64 {
			return false
		}
		_, member := ids[cell.U64]
		return member
	}
}

// MicroRange keeps rows whose i64-microsecond field falls in [start, end].
// A nil bound on either side leaves that side open, matching the spec's
// "half-open when only one side is given" rule.
func MicroRange(field string, start, end *time.Time) Predicate {
	if start == nil && end == nil {
		return nil
	}
	var lo, hi int64
	if start != nil {
		lo = start.UnixMicro()
	}
	if end != nil {
		hi = end.UnixMicro()
	}
	return func(r columnar.Row) bool {
		cell, ok := r[field]
		if !ok || cell.Kind != model.KindI64 {
			return false
		}
		if start != nil && cell.I64 < lo {
			return false
		}
		if end != nil && cell.I64 > hi {
			return false
		}
		return true
	}
}

// DurationMicroRange keeps rows whose (end-start) column pair, both i64
// microseconds, falls within [min, max] microseconds. A nil bound leaves
// that side open. A missing end cell counts as "now", mirroring
// WireSpan.Duration for spans that haven't closed yet.
func DurationMicroRange(startField, endField string, min, max *int64) Predicate {
	if min == nil && max == nil {
		return nil
	}
	now := time.Now().UnixMicro()
	return func(r columnar.Row) bool {
		s, ok1 := r[startField]
		if !ok1 || s.Kind != model.KindI64 {
			return false
		}
		hi := now
		if e, ok2 := r[endField]; ok2 && e.Kind == model.KindI64 {
			hi = e.I64
		}
		d := hi - s.I64
		if min != nil && d < *min {
			return false
		}
		if max != nil && d > *max {
			return false
		}
		return true
	}
}
