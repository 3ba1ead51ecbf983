package query

import (
	"sort"

	"github.com/warehoused/warehoused/internal/columnar"
	"github.com/warehoused/warehoused/internal/model"
)

// FieldCount is one row of a `group by field, count(*)` result.
type FieldCount struct {
	Value model.Value
	Count int
}

// CountByField groups rows by their value at field, skipping rows where
// the field is absent or null, and returns counts ordered by count
// descending (`/api/logs/stats/{field}`, §6).
func CountByField(rows []columnar.Row, field string) []FieldCount {
	order := make([]model.Value, 0)
	counts := make(map[model.Value]int)
	for _, r := range rows {
		v, ok := r[field]
		if !ok || v.IsNull() {
			continue
		}
		if _, seen := counts[v]; !seen {
			order = append(order, v)
		}
		counts[v]++
	}

	out := make([]FieldCount, 0, len(order))
	for _, v := range order {
		out = append(out, FieldCount{Value: v, Count: counts[v]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}
