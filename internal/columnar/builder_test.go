package columnar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/warehoused/warehoused/internal/model"
)

func TestBuildSpanBatch(t *testing.T) {
	start := time.Unix(0, 1_700_000_000_123_000)
	end := start.Add(5 * time.Millisecond)
	parent := uint64(3)

	batch := BuildSpanBatch([]*model.StoredSpan{{
		ID:        7,
		TraceID:   9,
		ParentID:  &parent,
		Name:      "root",
		ProcessID: "svc-0",
		Start:     &start,
		End:       &end,
		Tags:      map[string]model.Value{"http.method": model.StrValue("GET")},
	}})

	require.NotNil(t, batch)
	require.Equal(t, "span", batch.Table)
	require.Len(t, batch.Rows, 1)
	row := batch.Rows[0]
	require.Equal(t, uint64(7), row["id"].U64)
	require.Equal(t, uint64(3), row["parent_id"].U64)
	require.Contains(t, row["tags"].Str, "http.method")
	require.Contains(t, row["tags"].Str, "GET")
}

func TestBuildSpanBatchEmpty(t *testing.T) {
	require.Nil(t, BuildSpanBatch(nil))
}

func TestBuildLogBatchInfersFieldColumns(t *testing.T) {
	batch := BuildLogBatch([]*model.StoredLog{
		{ProcessID: "svc-0", Level: model.LevelError, Time: time.Now(), Fields: map[string]model.Value{"msg": model.StrValue("boom")}},
		{ProcessID: "svc-0", Level: model.LevelInfo, Time: time.Now(), Fields: map[string]model.Value{"request_id": model.U64Value(42)}},
	})

	require.NotNil(t, batch)
	_, hasMsg := batch.Schema.Field("msg")
	_, hasReqID := batch.Schema.Field("request_id")
	require.True(t, hasMsg)
	require.True(t, hasReqID)

	reqIDField, _ := batch.Schema.Field("request_id")
	require.True(t, reqIDField.Nullable, "per-batch inferred columns are nullable")

	require.Equal(t, "error", batch.Rows[0]["level"].Str)
}

func TestSchemaMergeMonotonicity(t *testing.T) {
	s1 := NewSchema([]Field{{Name: "a", Kind: model.KindStr}})
	s2 := NewSchema([]Field{{Name: "a", Kind: model.KindStr}, {Name: "b", Kind: model.KindU64, Nullable: true}})

	merged, err := s1.Merge(s2)
	require.NoError(t, err)
	require.True(t, merged.Contains(s1))
	require.True(t, merged.Contains(s2))

	aField, _ := merged.Field("a")
	require.False(t, aField.Nullable, "a is present and non-nullable in both schemas")
	bField, _ := merged.Field("b")
	require.True(t, bField.Nullable, "b is absent from s1, so becomes nullable in the union")
}

func TestTagsRoundTrip(t *testing.T) {
	tags := map[string]model.Value{
		"http.method": model.StrValue("GET"),
		"http.status": model.I64Value(200),
		"retry":       model.BoolValue(false),
	}
	blob := MarshalTags(tags)
	require.Equal(t, tags, UnmarshalTags(blob))
}

func TestSchemaContainsShortCircuits(t *testing.T) {
	current := NewSchema([]Field{{Name: "a", Kind: model.KindStr}, {Name: "b", Kind: model.KindU64, Nullable: true}})
	incoming := NewSchema([]Field{{Name: "a", Kind: model.KindStr}})
	require.True(t, current.Contains(incoming))
}
