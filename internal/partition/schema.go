package partition

import (
	"github.com/parquet-go/parquet-go"
	"github.com/warehoused/warehoused/internal/columnar"
	"github.com/warehoused/warehoused/internal/model"
)

// parquetSchema translates a columnar.Schema into a dynamic parquet-go
// schema, one leaf per column, optional wherever the column is nullable.
func parquetSchema(name string, s *columnar.Schema) *parquet.Schema {
	group := make(parquet.Group, len(s.Fields))
	for _, f := range s.Fields {
		group[f.Name] = leafNode(f)
	}
	return parquet.NewSchema(name, group)
}

func leafNode(f columnar.Field) parquet.Node {
	var node parquet.Node
	switch f.Kind {
	case model.KindStr:
		node = parquet.String()
	case model.KindU64:
		node = parquet.Uint(64)
	case model.KindI64:
		node = parquet.Int(64)
	case model.KindBool:
		node = parquet.Leaf(parquet.BooleanType)
	default:
		node = parquet.String()
	}
	if f.Nullable {
		node = parquet.Optional(node)
	}
	return node
}

// rowToParquet converts one columnar.Row into the map[string]any shape
// the generic dynamic writer/reader expect, one entry per schema column,
// missing/null cells simply absent (the optional leaf fills null).
func rowToParquet(schema *columnar.Schema, row columnar.Row) map[string]any {
	out := make(map[string]any, len(schema.Fields))
	for _, f := range schema.Fields {
		v, ok := row[f.Name]
		if !ok || v.IsNull() {
			continue
		}
		out[f.Name] = nativeValue(v)
	}
	return out
}

func nativeValue(v model.Value) any {
	switch v.Kind {
	case model.KindStr:
		return v.Str
	case model.KindU64:
		return v.U64
	case model.KindI64:
		return v.I64
	case model.KindBool:
		return v.Bool
	default:
		return nil
	}
}
