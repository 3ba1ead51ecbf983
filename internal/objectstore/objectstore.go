// Package objectstore abstracts the local-filesystem and S3-compatible
// backends that back process.json, schema/log_schema.json, and the
// minute-partitioned parquet files.
package objectstore

import (
	"context"
	"io"
)

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	Key  string
	Size int64
}

// ReaderAtCloser is what parquet-go needs to open a file for random-access
// column reads without pulling the whole object into memory up front.
type ReaderAtCloser interface {
	io.ReaderAt
	io.Closer
}

// Store is the minimal surface the warehouse needs from an object store:
// write a named blob atomically, read one back, list keys under a prefix,
// and open one for random-access reads. Both backends (local disk,
// S3-compatible) implement it.
type Store interface {
	// Put writes data to key, replacing any prior contents atomically.
	Put(ctx context.Context, key string, data []byte) error

	// Get reads the full contents of key. It returns an error satisfying
	// errors.Is(err, ErrNotExist) when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// List enumerates objects whose key starts with prefix.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// OpenAt returns a random-access handle to key plus its size, for
	// parquet-go's column-level reads. Caller must Close it.
	OpenAt(ctx context.Context, key string) (ReaderAtCloser, int64, error)
}

// ErrNotExist is wrapped by backend-specific not-found errors.
var ErrNotExist = errNotExist{}

type errNotExist struct{}

func (errNotExist) Error() string { return "objectstore: object does not exist" }
