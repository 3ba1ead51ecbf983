package partition

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/warehoused/warehoused/internal/columnar"
	"github.com/warehoused/warehoused/internal/model"
	"github.com/warehoused/warehoused/internal/objectstore"
	"github.com/warehoused/warehoused/pkg/workerpool"
)

// Query reads cold partitions back into columnar batches (C6). It
// registers the prefixes covering a time range as a single logical
// table against a caller-supplied schema (the fixed span schema, or the
// current stored log schema).
type Query struct {
	store objectstore.Store
	pool  *workerpool.Pool
}

// NewQuery constructs a Query backed by store, fanning file reads out
// across pool.
func NewQuery(store objectstore.Store, pool *workerpool.Pool) *Query {
	return &Query{store: store, pool: pool}
}

// Frame reads every parquet file under table/<prefix> for prefix in
// EnumeratePrefixes(start, end), decoding each row against schema, and
// returns the union as one batch. Files are read concurrently across the
// worker pool; per-file errors are collected and the first is returned,
// but files that did succeed still contribute their rows.
func (q *Query) Frame(ctx context.Context, table string, schema *columnar.Schema, start, end time.Time) (*columnar.Batch, error) {
	prefixes := EnumeratePrefixes(start, end)
	if len(prefixes) == 0 {
		return &columnar.Batch{Table: table, Schema: schema}, nil
	}

	var keys []string
	for _, prefix := range prefixes {
		objects, err := q.store.List(ctx, path.Join(table, prefix)+"/")
		if err != nil {
			return nil, fmt.Errorf("partition: list %s%s: %w", table, prefix, err)
		}
		for _, o := range objects {
			if strings.HasSuffix(o.Key, ".parquet") {
				keys = append(keys, o.Key)
			}
		}
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		return &columnar.Batch{Table: table, Schema: schema}, nil
	}

	results := make([][]columnar.Row, len(keys))
	errs := make([]error, len(keys))
	var wg workerpool.Group
	for i, key := range keys {
		i, key := i, key
		wg.Go(q.pool, func() {
			rows, err := q.readFile(ctx, key)
			results[i] = rows
			errs[i] = err
		})
	}
	wg.Wait()

	var firstErr error
	var rows []columnar.Row
	for i := range keys {
		if errs[i] != nil && firstErr == nil {
			firstErr = errs[i]
			continue
		}
		rows = append(rows, results[i]...)
	}
	return &columnar.Batch{Table: table, Schema: schema, Rows: rows}, firstErr
}

func (q *Query) readFile(ctx context.Context, key string) ([]columnar.Row, error) {
	handle, size, err := q.store.OpenAt(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("partition: open %s: %w", key, err)
	}
	defer handle.Close()

	file, err := parquet.OpenFile(handle, size)
	if err != nil {
		return nil, fmt.Errorf("partition: open parquet %s: %w", key, err)
	}
	reader := parquet.NewGenericReader[map[string]any](file)
	defer reader.Close()

	var rows []columnar.Row
	buf := make([]map[string]any, 128)
	for {
		n, err := reader.Read(buf)
		for i := 0; i < n; i++ {
			rows = append(rows, rowFromNativeMap(buf[i]))
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("partition: read %s: %w", key, err)
		}
	}
	return rows, nil
}

// rowFromNativeMap decodes a raw parquet row by inspecting each cell's
// runtime Go type directly, so a file's own narrower schema (it may
// predate later log-schema evolution) never needs to be reconciled
// against the schema the caller eventually queries against.
func rowFromNativeMap(raw map[string]any) columnar.Row {
	row := make(columnar.Row, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			row[k] = model.StrValue(t)
		case uint64:
			row[k] = model.U64Value(t)
		case int64:
			row[k] = model.I64Value(t)
		case bool:
			row[k] = model.BoolValue(t)
		}
	}
	return row
}
