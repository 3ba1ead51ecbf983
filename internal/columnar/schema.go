// Package columnar builds record batches from spans and logs and merges
// the dynamically-observed log schema, mirroring the "fixed prefix +
// per-batch inferred field columns" design from the spec's design notes.
package columnar

import (
	"fmt"

	"github.com/warehoused/warehoused/internal/model"
)

// Field describes one column: its name, cell kind, and whether the column
// may contain nulls.
type Field struct {
	Name     string
	Kind     model.Kind
	Nullable bool
}

// Schema is an ordered set of columns. The fixed prefix always comes
// first; any per-batch inferred field columns are appended in a stable
// (sorted) order so two batches built from the same field set produce
// identical schemas.
type Schema struct {
	Fields []Field
	index  map[string]int
}

// NewSchema builds a Schema from fields, indexing by name.
func NewSchema(fields []Field) *Schema {
	s := &Schema{Fields: fields, index: make(map[string]int, len(fields))}
	for i, f := range fields {
		s.index[f.Name] = i
	}
	return s
}

// Field looks up a column by name.
func (s *Schema) Field(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.Fields[i], true
}

// Contains reports whether s already contains every field of other with a
// compatible (non-demoted) kind and nullability.
func (s *Schema) Contains(other *Schema) bool {
	for _, f := range other.Fields {
		existing, ok := s.Field(f.Name)
		if !ok {
			return false
		}
		if existing.Kind != f.Kind {
			return false
		}
		if existing.Nullable && !f.Nullable {
			// existing already more permissive than required: fine.
			continue
		}
		if !existing.Nullable && f.Nullable {
			return false
		}
	}
	return true
}

// Merge returns the field-wise union of s and other: every field in either
// schema appears in the result; a field present in only one is nullable in
// the result (it can be absent from some batches); a field's nullable bit
// is never demoted from true to false (testable property 3).
func (s *Schema) Merge(other *Schema) (*Schema, error) {
	byName := make(map[string]Field, len(s.Fields)+len(other.Fields))
	order := make([]string, 0, len(s.Fields)+len(other.Fields))

	add := func(f Field) error {
		if existing, ok := byName[f.Name]; ok {
			if existing.Kind != f.Kind {
				return fmt.Errorf("columnar: field %q has conflicting types %s and %s", f.Name, existing.Kind, f.Kind)
			}
			existing.Nullable = existing.Nullable || f.Nullable
			byName[f.Name] = existing
			return nil
		}
		byName[f.Name] = f
		order = append(order, f.Name)
		return nil
	}

	for _, f := range s.Fields {
		if err := add(f); err != nil {
			return nil, err
		}
	}
	// Any field missing from the other schema becomes nullable, since a
	// batch lacking it is valid.
	for i, f := range s.Fields {
		if _, ok := other.Field(f.Name); !ok {
			f.Nullable = true
			byName[s.Fields[i].Name] = f
		}
	}
	for _, f := range other.Fields {
		if err := add(f); err != nil {
			return nil, err
		}
	}
	for _, f := range other.Fields {
		if _, ok := s.Field(f.Name); !ok {
			existing := byName[f.Name]
			existing.Nullable = true
			byName[f.Name] = existing
		}
	}

	out := make([]Field, 0, len(order))
	for _, name := range order {
		out = append(out, byName[name])
	}
	return NewSchema(out), nil
}

// FixedLogPrefix is the default schema yielded when no log schema has
// been persisted yet.
func FixedLogPrefix() *Schema {
	return NewSchema([]Field{
		{Name: "process_id", Kind: model.KindStr, Nullable: false},
		{Name: "time", Kind: model.KindI64, Nullable: false},
		{Name: "trace_id", Kind: model.KindU64, Nullable: true},
		{Name: "span_id", Kind: model.KindU64, Nullable: true},
		{Name: "level", Kind: model.KindStr, Nullable: false},
		{Name: "message", Kind: model.KindStr, Nullable: true},
	})
}

// SpanSchema is the fixed schema for every span batch (§4.3).
func SpanSchema() *Schema {
	return NewSchema([]Field{
		{Name: "id", Kind: model.KindU64, Nullable: false},
		{Name: "parent_id", Kind: model.KindU64, Nullable: true},
		{Name: "trace_id", Kind: model.KindU64, Nullable: false},
		{Name: "name", Kind: model.KindStr, Nullable: false},
		{Name: "process_id", Kind: model.KindStr, Nullable: false},
		{Name: "start", Kind: model.KindI64, Nullable: false},
		{Name: "end", Kind: model.KindI64, Nullable: true},
		{Name: "tags", Kind: model.KindStr, Nullable: false},
	})
}
