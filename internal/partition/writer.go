package partition

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"
	"github.com/sirupsen/logrus"
	"github.com/warehoused/warehoused/internal/columnar"
	"github.com/warehoused/warehoused/internal/objectstore"
)

// Writer flushes hot-store batches to minute-partitioned parquet files
// (C5). One Writer serves both the "span" and "log" tables; the schema
// and bloom-filter column are derived per call from the batches given.
type Writer struct {
	store       objectstore.Store
	logger      *logrus.Logger
	clock       func() time.Time
	compression compress.Codec
}

// codecs maps the config.Compression setting onto parquet's codec
// values; "none" and an unrecognized name both fall back to
// uncompressed pages.
var codecs = map[string]compress.Codec{
	"snappy": parquet.Snappy,
	"gzip":   parquet.Gzip,
	"zstd":   parquet.Zstd,
	"lz4":    parquet.Lz4Raw,
}

// NewWriter constructs a Writer rooted at store, encoding partition
// files with the named codec ("none", "snappy", "gzip", "zstd", "lz4").
func NewWriter(store objectstore.Store, compression string, logger *logrus.Logger) *Writer {
	codec, ok := codecs[compression]
	if !ok {
		codec = parquet.Uncompressed
	}
	return &Writer{store: store, logger: logger, clock: time.Now, compression: codec}
}

// Flush groups batches into a single file under
// <table>/date=YYYY-MM-DD/hour=HH/minute=MM/<rand32>.parquet, using the
// minute bucket taken once at flush time so a flush call is never split
// across partitions (§4.5). Empty input is a no-op.
func (w *Writer) Flush(ctx context.Context, table string, batches []*columnar.Batch) error {
	if len(batches) == 0 {
		return nil
	}

	schema := mergedSchema(batches)
	pschema := parquetSchema(table, schema)

	var buf bytes.Buffer
	writer := parquet.NewGenericWriter[map[string]any](&buf, pschema,
		parquet.BloomFilters(parquet.SplitBlockFilter(10, "trace_id")),
		parquet.Compression(w.compression),
	)
	for _, b := range batches {
		rows := make([]map[string]any, 0, len(b.Rows))
		for _, r := range b.Rows {
			rows = append(rows, rowToParquet(schema, r))
		}
		if _, err := writer.Write(rows); err != nil {
			return fmt.Errorf("partition: write %s batch: %w", table, err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("partition: close %s writer: %w", table, err)
	}

	key := w.objectKey(table, w.clock())
	if err := w.store.Put(ctx, key, buf.Bytes()); err != nil {
		return fmt.Errorf("partition: put %s: %w", key, err)
	}
	w.logger.WithField("key", key).WithField("rows", totalRows(batches)).Info("flushed partition")
	return nil
}

// objectKey embeds a random 32-bit value in the file name to avoid
// collisions between concurrent flushes landing in the same minute
// bucket (§6).
func (w *Writer) objectKey(table string, at time.Time) string {
	return fmt.Sprintf("%s/%s%08x.parquet", table, minutePrefix(at), rand.Uint32())
}

// mergedSchema unions every batch's schema so a file whose batches don't
// all carry the same inferred log field columns still gets one coherent
// parquet schema (the per-batch schemas are always mutually compatible,
// since HotStore merges every log batch's schema into the registry
// before it is ever appended).
func mergedSchema(batches []*columnar.Batch) *columnar.Schema {
	schema := batches[0].Schema
	for _, b := range batches[1:] {
		if schema.Contains(b.Schema) {
			continue
		}
		merged, err := schema.Merge(b.Schema)
		if err != nil {
			// Batches placed in the same hot store already passed schema
			// merge once; a conflict here would mean that invariant broke.
			continue
		}
		schema = merged
	}
	return schema
}

func totalRows(batches []*columnar.Batch) int {
	n := 0
	for _, b := range batches {
		n += len(b.Rows)
	}
	return n
}
