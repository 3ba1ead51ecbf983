package objectstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// LocalStore roots every key under a local directory.
type LocalStore struct {
	dir    string
	logger *logrus.Logger
}

// NewLocalStore returns a Store rooted at dir, creating it if necessary.
func NewLocalStore(dir string, logger *logrus.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("objectstore: create root %s: %w", dir, err)
	}
	return &LocalStore{dir: dir, logger: logger}, nil
}

func (l *LocalStore) path(key string) string {
	return filepath.Join(l.dir, filepath.FromSlash(key))
}

// Put writes data to key via a temp file + rename so readers never observe
// a partial write — the same guarantee invariant 5 requires for the
// process registry.
func (l *LocalStore) Put(_ context.Context, key string, data []byte) error {
	dest := l.path(key)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("objectstore: mkdir for %s: %w", key, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".tmp-*")
	if err != nil {
		return fmt.Errorf("objectstore: create temp for %s: %w", key, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("objectstore: write temp for %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("objectstore: sync temp for %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("objectstore: close temp for %s: %w", key, err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("objectstore: rename into place for %s: %w", key, err)
	}
	return nil
}

func (l *LocalStore) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(l.path(key))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: %w", key, ErrNotExist)
	}
	return data, err
}

func (l *LocalStore) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	root := l.path(prefix)
	var out []ObjectInfo

	// prefix may name a directory or a partial file-name prefix; walk the
	// deepest existing directory ancestor and filter.
	walkRoot := root
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		walkRoot = filepath.Dir(root)
	}

	err := filepath.Walk(walkRoot, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(l.dir, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			out = append(out, ObjectInfo{Key: key, Size: info.Size()})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("objectstore: list %s: %w", prefix, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (l *LocalStore) OpenAt(_ context.Context, key string) (ReaderAtCloser, int64, error) {
	f, err := os.Open(l.path(key))
	if os.IsNotExist(err) {
		return nil, 0, fmt.Errorf("%s: %w", key, ErrNotExist)
	}
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}
