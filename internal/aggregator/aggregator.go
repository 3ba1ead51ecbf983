// Package aggregator folds partial span records into at-most-one logical
// span per id and emits intact spans once closed.
//
// A tracing subscriber may send a "new span" record and a "close span"
// record separately, with intermediate field-bearing records arriving in
// between. At-most-once merging guarantees the stored span reflects the
// terminal state regardless of arrival order.
package aggregator

import (
	"sync"

	"github.com/warehoused/warehoused/internal/model"
)

// Aggregator holds the current best-known wire span per span id.
type Aggregator struct {
	mu    sync.Mutex
	spans map[uint64]*model.WireSpan
}

// New returns an empty aggregator.
func New() *Aggregator {
	return &Aggregator{spans: make(map[uint64]*model.WireSpan)}
}

// Record folds raw into the aggregator's view of its span id.
//
// If the id is unknown it is inserted as-is. Otherwise:
//   - ParentID is overwritten when raw carries one (never cleared);
//   - Tags are unioned into the existing map, last write wins on
//     duplicate keys;
//   - End is overwritten unconditionally — the last End received is
//     canonical;
//   - Start, TraceID, Name, ProcessID are fixed at first insert.
func (a *Aggregator) Record(raw *model.WireSpan) {
	a.mu.Lock()
	defer a.mu.Unlock()

	existing, ok := a.spans[raw.ID]
	if !ok {
		a.spans[raw.ID] = raw.Clone()
		return
	}

	if raw.ParentID != nil {
		p := *raw.ParentID
		existing.ParentID = &p
	}
	if existing.Tags == nil {
		existing.Tags = make(map[string]model.Value, len(raw.Tags))
	}
	for k, v := range raw.Tags {
		existing.Tags[k] = v
	}
	if raw.End != nil {
		t := *raw.End
		existing.End = &t
	}
}

// DrainIntact removes and returns every span that has received its End.
// Spans still missing End remain, eligible for completion by a later
// record. Drain is atomic with respect to concurrent Record calls.
func (a *Aggregator) DrainIntact() []*model.StoredSpan {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []*model.StoredSpan
	for id, s := range a.spans {
		if s.Intact() {
			out = append(out, s)
			delete(a.spans, id)
		}
	}
	return out
}

// Len reports the number of spans currently tracked, intact or not.
// Intended for metrics/diagnostics, not for correctness-sensitive code.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.spans)
}
